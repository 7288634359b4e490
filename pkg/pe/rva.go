package pe

import (
	"sort"
)

// RvaMapper translates relative virtual addresses to file offsets using the
// section table. A section claims the virtual range
// [VirtualAddress, VirtualAddress+align_up(VirtualSize, SectionAlignment)).
// Addresses inside that range but past the section's raw data resolve to a
// zero-filled location: the loader would supply zeroes there, the file holds
// no bytes.
type RvaMapper struct {
	sections         []*Section
	sectionAlignment uint32
	warnings         []string
}

// NewRvaMapper builds a mapper from the parsed section table. Sections are
// examined smallest VirtualAddress first so that overlapping (malformed)
// ranges resolve deterministically; an overlap is recorded as a non-fatal
// warning.
func NewRvaMapper(sections []*Section, sectionAlignment uint32) *RvaMapper {
	m := &RvaMapper{sectionAlignment: sectionAlignment}
	m.sections = make([]*Section, len(sections))
	copy(m.sections, sections)
	sort.SliceStable(m.sections, func(i, j int) bool {
		return m.sections[i].VirtualAddress < m.sections[j].VirtualAddress
	})

	for i := 0; i+1 < len(m.sections); i++ {
		cur, next := m.sections[i], m.sections[i+1]
		if cur.VirtualAddress+m.virtualSize(cur) > next.VirtualAddress {
			m.warnings = append(m.warnings, "overlapping sections "+cur.Name+" and "+next.Name)
		}
	}
	return m
}

func (m *RvaMapper) virtualSize(s *Section) uint32 {
	vs := s.VirtualSize
	if vs == 0 {
		vs = s.SizeOfRawData
	}
	if m.sectionAlignment > 0 {
		vs = AlignUpUInt32(vs, m.sectionAlignment)
	}
	return vs
}

// Warnings returns the non-fatal conditions observed while building the
// mapper (overlapping sections and the like).
func (m *RvaMapper) Warnings() []string {
	return m.warnings
}

// SectionByRva returns the section whose virtual range contains rva, or nil.
// Ties between overlapping sections go to the smallest VirtualAddress.
func (m *RvaMapper) SectionByRva(rva uint32) *Section {
	for _, s := range m.sections {
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+m.virtualSize(s) {
			return s
		}
	}
	return nil
}

// Resolve maps rva to a file offset. zeroFilled reports that the address lies
// in a section's virtual slack past its raw data, where the file holds no
// backing bytes. Addresses outside every section fail with ErrInvalidRVA.
func (m *RvaMapper) Resolve(rva uint32) (offset int, zeroFilled bool, err error) {
	s := m.SectionByRva(rva)
	if s == nil {
		return 0, false, invalidRvaErr(rva)
	}
	off := int(rva) - int(s.VirtualAddress) + int(s.PointerToRawData)
	if rva-s.VirtualAddress >= s.SizeOfRawData {
		return off, true, nil
	}
	return off, false, nil
}

// Offset is Resolve without the zero-fill distinction; zero-filled locations
// are reported as ErrInvalidRVA since there are no file bytes to read.
func (m *RvaMapper) Offset(rva uint32) (int, error) {
	off, zero, err := m.Resolve(rva)
	if err != nil {
		return 0, err
	}
	if zero {
		return 0, invalidRvaErr(rva)
	}
	return off, nil
}

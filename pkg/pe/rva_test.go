package pe

import (
	"errors"
	"testing"
)

func testSection(name string, va, vsize, rawPtr, rawSize uint32) *Section {
	s := &Section{Name: name}
	s.VirtualAddress = va
	s.VirtualSize = vsize
	s.PointerToRawData = rawPtr
	s.SizeOfRawData = rawSize
	return s
}

func TestRvaMapperResolve(t *testing.T) {
	m := NewRvaMapper([]*Section{
		testSection(".text", 0x1000, 0x100, 0x200, 0x100),
		testSection(".data", 0x2000, 0x1800, 0x400, 0x200),
	}, 0x1000)

	tests := []struct {
		name       string
		rva        uint32
		offset     int
		zeroFilled bool
		wantErr    bool
	}{
		{"start of .text", 0x1000, 0x200, false, false},
		{"inside .text", 0x1040, 0x240, false, false},
		{"virtual slack of .text", 0x1100, 0x300, true, false},
		{"aligned tail of .text", 0x1FFF, 0x11FF, true, false},
		{"start of .data", 0x2000, 0x400, false, false},
		{"slack of .data", 0x2300, 0x700, true, false},
		{"below every section", 0x500, 0, false, true},
		{"past every section", 0x4000, 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, zeroFilled, err := m.Resolve(tt.rva)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRVA) {
					t.Fatalf("got err %v, want ErrInvalidRVA", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if offset != tt.offset || zeroFilled != tt.zeroFilled {
				t.Errorf("Resolve(0x%X) = (0x%X, %t), want (0x%X, %t)",
					tt.rva, offset, zeroFilled, tt.offset, tt.zeroFilled)
			}
		})
	}
}

func TestRvaMapperOffsetRejectsZeroFill(t *testing.T) {
	m := NewRvaMapper([]*Section{
		testSection(".text", 0x1000, 0x2000, 0x200, 0x100),
	}, 0x1000)

	if _, err := m.Offset(0x1200); !errors.Is(err, ErrInvalidRVA) {
		t.Errorf("Offset in virtual slack: got %v, want ErrInvalidRVA", err)
	}
}

func TestRvaMapperOverlapWarning(t *testing.T) {
	m := NewRvaMapper([]*Section{
		testSection("b", 0x1800, 0x100, 0x400, 0x100),
		testSection("a", 0x1000, 0x1000, 0x200, 0x200),
	}, 0x1000)

	if len(m.Warnings()) == 0 {
		t.Fatal("expected an overlap warning")
	}

	// The smaller VirtualAddress wins the overlapping range.
	if s := m.SectionByRva(0x1810); s == nil || s.Name != "a" {
		t.Errorf("SectionByRva(0x1810) = %v, want section a", s)
	}
}

func TestRvaMapperZeroVirtualSizeFallsBackToRaw(t *testing.T) {
	m := NewRvaMapper([]*Section{
		testSection(".text", 0x1000, 0, 0x200, 0x180),
	}, 0x1000)

	if s := m.SectionByRva(0x1170); s == nil {
		t.Error("rva inside raw-size-derived range should resolve")
	}
	if s := m.SectionByRva(0x2000); s != nil {
		t.Error("rva past aligned range should not resolve")
	}
}

package pe

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"
)

// ParseState tracks the lifecycle of a File. Parsing is eager: Open and
// NewFile leave the model either Valid or Invalid, never half-parsed.
type ParseState int

const (
	StateUnparsed ParseState = iota
	StateParsing
	StateValid
	StateInvalid
)

func (s ParseState) String() string {
	switch s {
	case StateUnparsed:
		return "unparsed"
	case StateParsing:
		return "parsing"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	}
	return fmt.Sprintf("ParseState(%d)", int(s))
}

// File is the parsed representation of one PE image. Header failures make the
// whole model Invalid; a failure inside a single data directory is demoted to
// a warning and leaves the rest of the model intact.
type File struct {
	Filename string

	DosHeader       *DosHeader
	Signature       uint32
	FileHeader      *FileHeader
	OptionalHeader  *OptionalHeader
	DataDirectories []DataDirectory
	Sections        []*Section

	Imports      []*Import
	BoundImports []*BoundImport
	Exports      *ExportDirectory
	Resources    *ResourceNode
	DebugEntries []*DebugEntry
	Tls          *TlsDirectory
	Relocations  []*RelocationBlock
	Certificates []*Certificate
	LoadConfig   *LoadConfig

	state         ParseState
	invalidReason error
	warnings      []string

	r         *ByteReader
	mapper    *RvaMapper
	mapped    mmap.MMap
	headerEnd int
}

// Open maps the named file read-only and parses it. The returned File holds
// the mapping until Close; a parse failure still returns the File so the
// caller can inspect State and InvalidReason.
func Open(filename string) (*File, error) {
	handle, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = handle.Close()
	}()

	mapped, err := mmap.Map(handle, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", filename, err)
	}

	f := NewFile(mapped, filename)
	f.mapped = mapped
	return f, f.invalidReason
}

// NewFile parses an in-memory image. data is aliased, not copied.
func NewFile(data []byte, filename string) *File {
	f := &File{
		Filename: filename,
		state:    StateParsing,
		r:        NewByteReader(data),
	}
	if err := f.parse(); err != nil {
		f.state = StateInvalid
		f.invalidReason = err
		return f
	}
	f.state = StateValid
	return f
}

// Close unmaps the file if it was opened through Open.
func (f *File) Close() error {
	if f.mapped == nil {
		return nil
	}
	err := f.mapped.Unmap()
	f.mapped = nil
	return err
}

// State reports whether parsing produced a usable model.
func (f *File) State() ParseState {
	return f.state
}

// IsValid is shorthand for State() == StateValid.
func (f *File) IsValid() bool {
	return f.state == StateValid
}

// InvalidReason returns the header-level error that made the model Invalid,
// or nil.
func (f *File) InvalidReason() error {
	return f.invalidReason
}

// Warnings lists the non-fatal conditions observed during parsing, in the
// order they were found.
func (f *File) Warnings() []string {
	return f.warnings
}

func (f *File) addWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	f.warnings = append(f.warnings, msg)
	log.Printf("WARNING: %s: %s", f.Filename, msg)
}

// Data returns the raw image bytes.
func (f *File) Data() []byte {
	data, _ := f.r.Bytes(0, f.r.Len())
	return data
}

// Is64 reports PE32+ images.
func (f *File) Is64() bool {
	return f.OptionalHeader != nil && f.OptionalHeader.Is64
}

// Directory returns the data directory slot for the given
// IMAGE_DIRECTORY_ENTRY_* index; ok is false when the header does not carry
// that slot or its size is zero.
func (f *File) Directory(index int) (DataDirectory, bool) {
	if index < 0 || index >= len(f.DataDirectories) {
		return DataDirectory{}, false
	}
	dir := f.DataDirectories[index]
	return dir, dir.Present()
}

// SectionByRva returns the section whose virtual range contains rva, or nil.
func (f *File) SectionByRva(rva uint32) *Section {
	return f.mapper.SectionByRva(rva)
}

// SectionByName returns the first section with the given name, or nil.
func (f *File) SectionByName(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SectionData returns the raw file bytes of the section, clamped to the file
// size.
func (f *File) SectionData(s *Section) []byte {
	length := MinInt(int(s.SizeOfRawData), f.r.Len()-int(s.PointerToRawData))
	if s.PointerToRawData == 0 || length <= 0 {
		return nil
	}
	data, err := f.r.Bytes(int(s.PointerToRawData), length)
	if err != nil {
		return nil
	}
	return data
}

func (f *File) parse() error {
	offset := 0

	magic, err := f.r.U16(0)
	if err != nil || magic != IMAGE_DOS_SIGNATURE {
		if magic == IMAGE_DOSZM_SIGNATURE {
			return fmt.Errorf("ZM executable: %w", ErrNotPE)
		}
		return fmt.Errorf("DOS header magic not found: %w", ErrNotPE)
	}

	f.DosHeader = NewDosHeader(offset)
	if err = f.r.ReadInto(&f.DosHeader.ImageDosHeader, offset, sizeOf(f.DosHeader.ImageDosHeader)); err != nil {
		return err
	}

	offset = int(f.DosHeader.E_lfanew)
	if offset < 0 || offset >= f.r.Len() {
		return malformedErr("e_lfanew 0x%X lies outside the file", f.DosHeader.E_lfanew)
	}

	if f.Signature, err = f.r.U32(offset); err != nil {
		return err
	}
	switch {
	case f.Signature == IMAGE_NT_SIGNATURE:
		// PE\0\0
	case f.Signature&0xFFFF == IMAGE_NE_SIGNATURE:
		return fmt.Errorf("NE image: %w", ErrNotPE)
	case f.Signature&0xFFFF == IMAGE_LE_SIGNATURE:
		return fmt.Errorf("LE image: %w", ErrNotPE)
	case f.Signature&0xFFFF == IMAGE_LX_SIGNATURE:
		return fmt.Errorf("LX image: %w", ErrNotPE)
	default:
		return fmt.Errorf("NT headers signature not found: %w", ErrNotPE)
	}
	offset += 4

	f.FileHeader = NewFileHeader(offset)
	if err = f.r.ReadInto(&f.FileHeader.ImageFileHeader, offset, IMAGE_SIZEOF_FILE_HEADER); err != nil {
		return err
	}
	SetFlags(f.FileHeader.Flags, ImageCharacteristics, uint32(f.FileHeader.Characteristics))
	offset += IMAGE_SIZEOF_FILE_HEADER

	if f.FileHeader.NumberOfSections > IMAGE_MAX_NUMBER_OF_SECTIONS {
		return malformedErr("NumberOfSections %d exceeds the loader limit of %d",
			f.FileHeader.NumberOfSections, IMAGE_MAX_NUMBER_OF_SECTIONS)
	}

	optionalOffset := offset
	if err = f.parseOptionalHeader(optionalOffset); err != nil {
		return err
	}

	sectionOffset := optionalOffset + int(f.FileHeader.SizeOfOptionalHeader)
	if err = f.parseSections(sectionOffset); err != nil {
		return err
	}

	f.calculateHeaderEnd(sectionOffset + len(f.Sections)*IMAGE_SIZEOF_SECTION_HEADER)

	f.mapper = NewRvaMapper(f.Sections, f.OptionalHeader.SectionAlignment)
	for _, w := range f.mapper.Warnings() {
		f.addWarning("%s", w)
	}

	ep := f.OptionalHeader.AddressOfEntryPoint
	if ep != 0 && f.mapper.SectionByRva(ep) == nil {
		f.addWarning("AddressOfEntryPoint 0x%X lies outside the section boundaries", ep)
	}

	f.parseDataDirectories()
	return nil
}

func (f *File) parseOptionalHeader(offset int) error {
	magic, err := f.r.U16(offset)
	if err != nil {
		return err
	}

	h := &OptionalHeader{fileOffset: offset, Flags: make(map[string]bool)}
	switch magic {
	case IMAGE_NT_OPTIONAL_HDR32_MAGIC:
		var raw ImageOptionalHeader32
		if err = f.r.ReadInto(&raw, offset, sizeOf(raw)); err != nil {
			return err
		}
		h.Magic = raw.Magic
		h.MajorLinkerVersion = raw.MajorLinkerVersion
		h.MinorLinkerVersion = raw.MinorLinkerVersion
		h.SizeOfCode = raw.SizeOfCode
		h.SizeOfInitializedData = raw.SizeOfInitializedData
		h.SizeOfUninitializedData = raw.SizeOfUninitializedData
		h.AddressOfEntryPoint = raw.AddressOfEntryPoint
		h.BaseOfCode = raw.BaseOfCode
		h.BaseOfData = raw.BaseOfData
		h.ImageBase = uint64(raw.ImageBase)
		h.SectionAlignment = raw.SectionAlignment
		h.FileAlignment = raw.FileAlignment
		h.MajorOperatingSystemVersion = raw.MajorOperatingSystemVersion
		h.MinorOperatingSystemVersion = raw.MinorOperatingSystemVersion
		h.MajorImageVersion = raw.MajorImageVersion
		h.MinorImageVersion = raw.MinorImageVersion
		h.MajorSubsystemVersion = raw.MajorSubsystemVersion
		h.MinorSubsystemVersion = raw.MinorSubsystemVersion
		h.Win32VersionValue = raw.Win32VersionValue
		h.SizeOfImage = raw.SizeOfImage
		h.SizeOfHeaders = raw.SizeOfHeaders
		h.CheckSum = raw.CheckSum
		h.Subsystem = raw.Subsystem
		h.DllCharacteristics = raw.DllCharacteristics
		h.SizeOfStackReserve = uint64(raw.SizeOfStackReserve)
		h.SizeOfStackCommit = uint64(raw.SizeOfStackCommit)
		h.SizeOfHeapReserve = uint64(raw.SizeOfHeapReserve)
		h.SizeOfHeapCommit = uint64(raw.SizeOfHeapCommit)
		h.LoaderFlags = raw.LoaderFlags
		h.NumberOfRvaAndSizes = raw.NumberOfRvaAndSizes
		offset += sizeOf(raw)
	case IMAGE_NT_OPTIONAL_HDR64_MAGIC:
		var raw ImageOptionalHeader64
		if err = f.r.ReadInto(&raw, offset, sizeOf(raw)); err != nil {
			return err
		}
		h.Is64 = true
		h.Magic = raw.Magic
		h.MajorLinkerVersion = raw.MajorLinkerVersion
		h.MinorLinkerVersion = raw.MinorLinkerVersion
		h.SizeOfCode = raw.SizeOfCode
		h.SizeOfInitializedData = raw.SizeOfInitializedData
		h.SizeOfUninitializedData = raw.SizeOfUninitializedData
		h.AddressOfEntryPoint = raw.AddressOfEntryPoint
		h.BaseOfCode = raw.BaseOfCode
		h.ImageBase = raw.ImageBase
		h.SectionAlignment = raw.SectionAlignment
		h.FileAlignment = raw.FileAlignment
		h.MajorOperatingSystemVersion = raw.MajorOperatingSystemVersion
		h.MinorOperatingSystemVersion = raw.MinorOperatingSystemVersion
		h.MajorImageVersion = raw.MajorImageVersion
		h.MinorImageVersion = raw.MinorImageVersion
		h.MajorSubsystemVersion = raw.MajorSubsystemVersion
		h.MinorSubsystemVersion = raw.MinorSubsystemVersion
		h.Win32VersionValue = raw.Win32VersionValue
		h.SizeOfImage = raw.SizeOfImage
		h.SizeOfHeaders = raw.SizeOfHeaders
		h.CheckSum = raw.CheckSum
		h.Subsystem = raw.Subsystem
		h.DllCharacteristics = raw.DllCharacteristics
		h.SizeOfStackReserve = raw.SizeOfStackReserve
		h.SizeOfStackCommit = raw.SizeOfStackCommit
		h.SizeOfHeapReserve = raw.SizeOfHeapReserve
		h.SizeOfHeapCommit = raw.SizeOfHeapCommit
		h.LoaderFlags = raw.LoaderFlags
		h.NumberOfRvaAndSizes = raw.NumberOfRvaAndSizes
		offset += sizeOf(raw)
	default:
		return fmt.Errorf("optional header magic 0x%X: %w", magic, ErrUnsupported)
	}
	SetFlags(h.Flags, DllCharacteristics, uint32(h.DllCharacteristics))
	f.OptionalHeader = h

	count := h.NumberOfRvaAndSizes
	if count > IMAGE_NUMBEROF_DIRECTORY_ENTRIES {
		f.addWarning("suspicious NumberOfRvaAndSizes 0x%X, capping at %d",
			count, IMAGE_NUMBEROF_DIRECTORY_ENTRIES)
		count = IMAGE_NUMBEROF_DIRECTORY_ENTRIES
	}

	for i := uint32(0); i < count; i++ {
		dir := DataDirectory{Index: int(i), Name: DirectoryEntryTypes[int(i)]}
		if err = f.r.ReadInto(&dir.ImageDataDirectory, offset, IMAGE_SIZEOF_DATA_DIRECTORY); err != nil {
			return err
		}
		f.DataDirectories = append(f.DataDirectories, dir)
		offset += IMAGE_SIZEOF_DATA_DIRECTORY
	}
	return nil
}

func (f *File) parseSections(offset int) error {
	for i := 0; i < int(f.FileHeader.NumberOfSections); i++ {
		section := &Section{Index: i, fileOffset: offset, Flags: make(map[string]bool)}
		if err := f.r.ReadInto(&section.ImageSectionHeader, offset, IMAGE_SIZEOF_SECTION_HEADER); err != nil {
			return err
		}
		section.Name = strings.TrimRight(string(section.ImageSectionHeader.Name[:]), "\x00")
		SetFlags(section.Flags, SectionCharacteristics, section.Characteristics)

		if section.PointerToRawData != 0 &&
			int(section.PointerToRawData)+int(section.SizeOfRawData) > f.r.Len() {
			f.addWarning("section %s raw data runs past end of file, clamping", section.Name)
			if int(section.PointerToRawData) >= f.r.Len() {
				section.SizeOfRawData = 0
			} else {
				section.SizeOfRawData = uint32(f.r.Len() - int(section.PointerToRawData))
			}
		}

		f.Sections = append(f.Sections, section)
		offset += IMAGE_SIZEOF_SECTION_HEADER
	}
	return nil
}

// Directory parsers run in a fixed order; any single failure is demoted to a
// warning so a corrupt directory cannot take down the whole model.
func (f *File) parseDataDirectories() {
	parsers := []struct {
		index int
		parse func(DataDirectory) error
	}{
		{IMAGE_DIRECTORY_ENTRY_EXPORT, f.parseExportDirectory},
		{IMAGE_DIRECTORY_ENTRY_IMPORT, f.parseImportDirectory},
		{IMAGE_DIRECTORY_ENTRY_RESOURCE, f.parseResourceDirectory},
		{IMAGE_DIRECTORY_ENTRY_SECURITY, f.parseCertificateDirectory},
		{IMAGE_DIRECTORY_ENTRY_BASERELOC, f.parseRelocationDirectory},
		{IMAGE_DIRECTORY_ENTRY_DEBUG, f.parseDebugDirectory},
		{IMAGE_DIRECTORY_ENTRY_TLS, f.parseTlsDirectory},
		{IMAGE_DIRECTORY_ENTRY_LOAD_CONFIG, f.parseLoadConfigDirectory},
		{IMAGE_DIRECTORY_ENTRY_BOUND_IMPORT, f.parseBoundImportDirectory},
		{IMAGE_DIRECTORY_ENTRY_DELAY_IMPORT, f.parseDelayImportDirectory},
	}

	for _, p := range parsers {
		dir, ok := f.Directory(p.index)
		if !ok {
			continue
		}
		if err := p.parse(dir); err != nil {
			f.addWarning("failed to parse %s: %v", dir.Name, err)
		}
	}
}

// calculateHeaderEnd records where the header region stops: the smallest
// section raw data pointer, or the end of the section table when no section
// carries raw data before it.
func (f *File) calculateHeaderEnd(offset int) {
	minSectionOffset := 0
	for _, section := range f.Sections {
		prd := int(section.PointerToRawData)
		if prd > 0 && (minSectionOffset == 0 || prd < minSectionOffset) {
			minSectionOffset = prd
		}
	}
	if minSectionOffset == 0 || minSectionOffset < offset {
		f.headerEnd = offset
	} else {
		f.headerEnd = minSectionOffset
	}
}

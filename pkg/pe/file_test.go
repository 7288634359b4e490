package pe

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"
)

func putStruct(t *testing.T, buf []byte, offset int, v interface{}) {
	t.Helper()
	var b bytes.Buffer
	if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
		t.Fatalf("encoding %T: %v", v, err)
	}
	copy(buf[offset:], b.Bytes())
}

func putU16(buf []byte, offset int, v uint16) {
	binary.LittleEndian.PutUint16(buf[offset:], v)
}

func putU32(buf []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buf[offset:], v)
}

// buildTestImage assembles a PE32 image with two sections, an import table
// (one named import plus one ordinal import), an export table with a
// forwarder, one relocation block and an RSDS debug record.
func buildTestImage(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 0x600)

	dos := ImageDosHeader{E_magic: IMAGE_DOS_SIGNATURE, E_lfanew: 0x80}
	putStruct(t, buf, 0, dos)

	putU32(buf, 0x80, IMAGE_NT_SIGNATURE)
	putStruct(t, buf, 0x84, ImageFileHeader{
		Machine:              IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     2,
		TimeDateStamp:        0x5F000000,
		SizeOfOptionalHeader: 224,
		Characteristics:      0x0102,
	})
	putStruct(t, buf, 0x98, ImageOptionalHeader32{
		Magic:               IMAGE_NT_OPTIONAL_HDR32_MAGIC,
		AddressOfEntryPoint: 0x1000,
		ImageBase:           0x400000,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         0x3000,
		SizeOfHeaders:       0x200,
		Subsystem:           IMAGE_SUBSYSTEM_WINDOWS_CUI,
		NumberOfRvaAndSizes: 16,
	})

	// Data directories start at 0x98 + 96 = 0xF8.
	dirs := 0xF8
	putStruct(t, buf, dirs+IMAGE_DIRECTORY_ENTRY_EXPORT*8, ImageDataDirectory{VirtualAddress: 0x2100, Size: 0x80})
	putStruct(t, buf, dirs+IMAGE_DIRECTORY_ENTRY_IMPORT*8, ImageDataDirectory{VirtualAddress: 0x2000, Size: 40})
	putStruct(t, buf, dirs+IMAGE_DIRECTORY_ENTRY_BASERELOC*8, ImageDataDirectory{VirtualAddress: 0x21A0, Size: 12})
	putStruct(t, buf, dirs+IMAGE_DIRECTORY_ENTRY_DEBUG*8, ImageDataDirectory{VirtualAddress: 0x21C0, Size: 28})

	// Section table at 0x98 + 224 = 0x178.
	text := ImageSectionHeader{
		VirtualSize: 0x100, VirtualAddress: 0x1000,
		SizeOfRawData: 0x200, PointerToRawData: 0x200,
		Characteristics: 0x60000020,
	}
	copy(text.Name[:], ".text")
	putStruct(t, buf, 0x178, text)

	rdata := ImageSectionHeader{
		VirtualSize: 0x200, VirtualAddress: 0x2000,
		SizeOfRawData: 0x200, PointerToRawData: 0x400,
		Characteristics: 0x40000040,
	}
	copy(rdata.Name[:], ".rdata")
	putStruct(t, buf, 0x178+IMAGE_SIZEOF_SECTION_HEADER, rdata)

	// .rdata content; file offset 0x400 maps to RVA 0x2000.

	// Import descriptor plus terminator.
	putStruct(t, buf, 0x400, ImageImportDescriptor{
		OriginalFirstThunk: 0x2040,
		Name:               0x2060,
		FirstThunk:         0x2080,
	})
	// Lookup table: named import, ordinal import, terminator.
	putU32(buf, 0x440, 0x2070)
	putU32(buf, 0x444, 0x80000001)
	copy(buf[0x460:], "KERNEL32.DLL\x00")
	putU16(buf, 0x470, 7)
	copy(buf[0x472:], "ExitProcess\x00")
	putU32(buf, 0x480, 0x2070)
	putU32(buf, 0x484, 0x80000001)

	// Export directory at RVA 0x2100.
	putStruct(t, buf, 0x500, ImageExportDirectory{
		Name:                  0x2150,
		Base:                  1,
		NumberOfFunctions:     2,
		NumberOfNames:         1,
		AddressOfFunctions:    0x2128,
		AddressOfNames:        0x2130,
		AddressOfNameOrdinals: 0x2134,
	})
	putU32(buf, 0x528, 0x1010) // ordinal 1: code address
	putU32(buf, 0x52C, 0x2160) // ordinal 2: inside the directory, forwarder
	putU32(buf, 0x530, 0x2140)
	putU16(buf, 0x534, 0)
	copy(buf[0x540:], "DoThing\x00")
	copy(buf[0x550:], "synth.dll\x00")
	copy(buf[0x560:], "OTHER.Func\x00")

	// One relocation block covering the .text page.
	putStruct(t, buf, 0x5A0, ImageBaseRelocation{VirtualAddress: 0x1000, SizeOfBlock: 12})
	putU16(buf, 0x5A8, uint16(IMAGE_REL_BASED_HIGHLOW)<<12|0x010)
	putU16(buf, 0x5AA, 0)

	// RSDS debug record.
	putStruct(t, buf, 0x5C0, ImageDebugDirectory{
		Type:             IMAGE_DEBUG_TYPE_CODEVIEW,
		SizeOfData:       0x20,
		PointerToRawData: 0x5E0,
	})
	putU32(buf, 0x5E0, CV_PDB_70_SIGNATURE)
	for i := 0; i < 16; i++ {
		buf[0x5E4+i] = byte(i)
	}
	putU32(buf, 0x5F4, 2) // age
	copy(buf[0x5F8:], "a.pdb\x00")

	return buf
}

func TestParseHeaders(t *testing.T) {
	f := NewFile(buildTestImage(t), "synth.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}
	if f.State() != StateValid {
		t.Errorf("state = %v", f.State())
	}
	if f.Is64() {
		t.Error("PE32 image reported as PE32+")
	}
	if f.FileHeader.Machine != IMAGE_FILE_MACHINE_I386 {
		t.Errorf("machine = 0x%X", f.FileHeader.Machine)
	}
	if f.OptionalHeader.ImageBase != 0x400000 {
		t.Errorf("image base = 0x%X", f.OptionalHeader.ImageBase)
	}
	if len(f.DataDirectories) != 16 {
		t.Errorf("data directories = %d", len(f.DataDirectories))
	}
	if len(f.Sections) != 2 || f.Sections[0].Name != ".text" || f.Sections[1].Name != ".rdata" {
		t.Errorf("sections = %+v", f.Sections)
	}
	if s := f.SectionByRva(0x2010); s == nil || s.Name != ".rdata" {
		t.Errorf("SectionByRva(0x2010) = %v", s)
	}
}

func TestParseImports(t *testing.T) {
	f := NewFile(buildTestImage(t), "synth.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}
	if len(f.Imports) != 1 {
		t.Fatalf("imports = %d, want 1", len(f.Imports))
	}

	imp := f.Imports[0]
	if imp.DllName != "KERNEL32.DLL" {
		t.Errorf("dll = %q", imp.DllName)
	}
	if len(imp.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(imp.Entries))
	}
	if e := imp.Entries[0]; e.Kind != ImportByName || e.Name != "ExitProcess" || e.Hint != 7 {
		t.Errorf("entry 0 = %+v", e)
	}
	if e := imp.Entries[1]; e.Kind != ImportByOrdinal || e.Ordinal != 1 {
		t.Errorf("entry 1 = %+v", e)
	}
}

func TestImportHash(t *testing.T) {
	f := NewFile(buildTestImage(t), "synth.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}

	sum := md5.Sum([]byte("kernel32.exitprocess,kernel32.ord1"))
	want := hex.EncodeToString(sum[:])
	if got := f.ImportHash(); got != want {
		t.Errorf("ImportHash = %s, want %s", got, want)
	}
}

func TestParseExports(t *testing.T) {
	f := NewFile(buildTestImage(t), "synth.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}
	if f.Exports == nil {
		t.Fatal("no export directory")
	}
	if f.Exports.ModuleName != "synth.dll" {
		t.Errorf("module = %q", f.Exports.ModuleName)
	}
	if len(f.Exports.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(f.Exports.Entries))
	}
	if e := f.Exports.Entries[0]; e.Ordinal != 1 || e.Name != "DoThing" || e.Address != 0x1010 || e.Forwarder != "" {
		t.Errorf("entry 0 = %+v", e)
	}
	if e := f.Exports.Entries[1]; e.Ordinal != 2 || e.Forwarder != "OTHER.Func" {
		t.Errorf("entry 1 = %+v", e)
	}
}

func TestParseRelocations(t *testing.T) {
	f := NewFile(buildTestImage(t), "synth.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}
	if len(f.Relocations) != 1 {
		t.Fatalf("blocks = %d, want 1", len(f.Relocations))
	}
	block := f.Relocations[0]
	if block.VirtualAddress != 0x1000 || len(block.Entries) != 2 {
		t.Fatalf("block = %+v", block)
	}
	if e := block.Entries[0]; e.Type != IMAGE_REL_BASED_HIGHLOW || e.Offset != 0x010 {
		t.Errorf("entry 0 = %+v", e)
	}
}

func TestParseDebugRsds(t *testing.T) {
	f := NewFile(buildTestImage(t), "synth.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}
	if len(f.DebugEntries) != 1 {
		t.Fatalf("debug entries = %d, want 1", len(f.DebugEntries))
	}
	entry := f.DebugEntries[0]
	if entry.Pdb70 == nil {
		t.Fatal("RSDS record not decoded")
	}
	if entry.Pdb70.Age != 2 || entry.PdbPath != "a.pdb" {
		t.Errorf("age %d path %q", entry.Pdb70.Age, entry.PdbPath)
	}
	if _, ok := f.PdbGUID(); !ok {
		t.Error("PdbGUID not available")
	}
}

func TestParseFailures(t *testing.T) {
	valid := buildTestImage(t)

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{
			"not MZ",
			func(b []byte) []byte { b[0], b[1] = 'N', 'O'; return b },
			ErrNotPE,
		},
		{
			"empty file",
			func(b []byte) []byte { return nil },
			ErrNotPE,
		},
		{
			"truncated after DOS magic",
			func(b []byte) []byte { return b[:0x20] },
			ErrTruncated,
		},
		{
			"e_lfanew outside file",
			func(b []byte) []byte {
				putU32(b, 0x3C, 0x10000)
				return b
			},
			ErrMalformed,
		},
		{
			"bad NT signature",
			func(b []byte) []byte {
				putU32(b, 0x80, 0x12345678)
				return b
			},
			ErrNotPE,
		},
		{
			"section count above loader limit",
			func(b []byte) []byte {
				putU16(b, 0x84+2, 97)
				return b
			},
			ErrMalformed,
		},
		{
			"ROM optional header magic",
			func(b []byte) []byte {
				putU16(b, 0x98, IMAGE_ROM_OPTIONAL_HDR_MAGIC)
				return b
			},
			ErrUnsupported,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte(nil), valid...))
			f := NewFile(data, tt.name)
			if f.IsValid() {
				t.Fatal("expected Invalid model")
			}
			if !errors.Is(f.InvalidReason(), tt.wantErr) {
				t.Errorf("reason = %v, want %v", f.InvalidReason(), tt.wantErr)
			}
		})
	}
}

func TestHeadersOnlyFileIsValid(t *testing.T) {
	buf := buildTestImage(t)
	// Zero section count and drop every directory, then cut the file right
	// after the (now empty) section table.
	putU16(buf, 0x84+2, 0)
	for i := 0; i < 16; i++ {
		putStruct(t, buf, 0xF8+i*8, ImageDataDirectory{})
	}
	f := NewFile(buf[:0x178], "headers-only.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}
	if len(f.Imports) != 0 || f.Exports != nil || f.Resources != nil {
		t.Error("headers-only image should have empty directories")
	}
}

func TestDirectoryFailureIsWarningNotFatal(t *testing.T) {
	buf := buildTestImage(t)
	// Point the import directory at an unmapped RVA.
	putStruct(t, buf, 0xF8+IMAGE_DIRECTORY_ENTRY_IMPORT*8,
		ImageDataDirectory{VirtualAddress: 0x9000, Size: 40})

	f := NewFile(buf, "broken-imports.exe")
	if !f.IsValid() {
		t.Fatalf("model should stay valid, got: %v", f.InvalidReason())
	}
	if len(f.Imports) != 0 {
		t.Errorf("imports = %d, want none", len(f.Imports))
	}
	found := false
	for _, w := range f.Warnings() {
		if bytes.Contains([]byte(w), []byte("IMAGE_DIRECTORY_ENTRY_IMPORT")) {
			found = true
		}
	}
	if !found {
		t.Errorf("no import warning recorded, warnings: %v", f.Warnings())
	}
}

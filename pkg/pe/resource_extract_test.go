package pe

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
)

func TestBuildBmpFileTruncatedHeader(t *testing.T) {
	// Claimed BITMAPINFOHEADER of 40 bytes over a 20-byte payload: the
	// color-count field lies past the end and must not be read.
	dib := make([]byte, 20)
	binary.LittleEndian.PutUint32(dib, 40)
	binary.LittleEndian.PutUint16(dib[14:], 4) // biBitCount

	out := buildBmpFile(dib)
	if out[0] != 'B' || out[1] != 'M' {
		t.Fatalf("magic = %q", out[:2])
	}
	if got := binary.LittleEndian.Uint32(out[2:]); got != uint32(14+len(dib)) {
		t.Errorf("file size = %d, want %d", got, 14+len(dib))
	}
	// 16 palette entries inferred from the bit count.
	wantOffset := uint32(14 + 40 + 16*4)
	if got := binary.LittleEndian.Uint32(out[10:]); got != wantOffset {
		t.Errorf("pixel offset = %d, want %d", got, wantOffset)
	}
}

func TestBuildBmpFileTinyPayload(t *testing.T) {
	out := buildBmpFile([]byte{0x28, 0})
	if got := binary.LittleEndian.Uint32(out[10:]); got != 14 {
		t.Errorf("pixel offset = %d, want 14", got)
	}
}

func TestExtractResourcesRoundTrip(t *testing.T) {
	f := NewFile(buildResourceImage(t), "rsrc.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}

	written, err := f.ExtractResources(t.TempDir())
	if err != nil {
		t.Fatalf("ExtractResources: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("written = %d files, want 1", len(written))
	}

	data, err := os.ReadFile(written[0].Path)
	if err != nil {
		t.Fatalf("reading %s: %v", written[0].Path, err)
	}

	// Hashing the extracted payload reproduces the per-resource hashes.
	hashes := f.ResourceHashes()
	if len(hashes) != 1 {
		t.Fatalf("resource hashes = %d, want 1", len(hashes))
	}
	rh := hashes[0]
	if rh.TypeName != "RT_MANIFEST" || rh.Key != "1" || rh.Lang != 1033 {
		t.Errorf("resource hash identity = %s/%s/%d", rh.TypeName, rh.Key, rh.Lang)
	}
	if got := HashBytes(data); got.SHA256 != rh.Hashes.SHA256 {
		t.Errorf("extracted hash %s, want %s", got.SHA256, rh.Hashes.SHA256)
	}
}

// buildIconImage assembles a one-section image with an RT_ICON leaf (id 7)
// and an RT_GROUP_ICON leaf (id 1) referencing it.
func buildIconImage(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 0x400)

	putStruct(t, buf, 0, ImageDosHeader{E_magic: IMAGE_DOS_SIGNATURE, E_lfanew: 0x80})
	putU32(buf, 0x80, IMAGE_NT_SIGNATURE)
	putStruct(t, buf, 0x84, ImageFileHeader{
		Machine:              IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     1,
		SizeOfOptionalHeader: 224,
	})
	putStruct(t, buf, 0x98, ImageOptionalHeader32{
		Magic:               IMAGE_NT_OPTIONAL_HDR32_MAGIC,
		ImageBase:           0x400000,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         0x2000,
		SizeOfHeaders:       0x200,
		NumberOfRvaAndSizes: 16,
	})
	putStruct(t, buf, 0xF8+IMAGE_DIRECTORY_ENTRY_RESOURCE*8,
		ImageDataDirectory{VirtualAddress: 0x1000, Size: 0x200})

	rsrc := ImageSectionHeader{
		VirtualSize: 0x200, VirtualAddress: 0x1000,
		SizeOfRawData: 0x200, PointerToRawData: 0x200,
		Characteristics: 0x40000040,
	}
	copy(rsrc.Name[:], ".rsrc")
	putStruct(t, buf, 0x178, rsrc)

	// Root: RT_ICON and RT_GROUP_ICON subtrees.
	putStruct(t, buf, 0x200, ImageResourceDirectory{NumberOfIdEntries: 2})
	putStruct(t, buf, 0x210, ImageResourceDirectoryEntry{
		Name:         RT_ICON,
		OffsetToData: 0x30 | resourceHighBit,
	})
	putStruct(t, buf, 0x218, ImageResourceDirectoryEntry{
		Name:         RT_GROUP_ICON,
		OffsetToData: 0x70 | resourceHighBit,
	})

	// RT_ICON id 7, language 0.
	putStruct(t, buf, 0x230, ImageResourceDirectory{NumberOfIdEntries: 1})
	putStruct(t, buf, 0x240, ImageResourceDirectoryEntry{
		Name:         7,
		OffsetToData: 0x50 | resourceHighBit,
	})
	putStruct(t, buf, 0x250, ImageResourceDirectory{NumberOfIdEntries: 1})
	putStruct(t, buf, 0x260, ImageResourceDirectoryEntry{
		Name:         0,
		OffsetToData: 0xB0,
	})

	// RT_GROUP_ICON id 1, language 0.
	putStruct(t, buf, 0x270, ImageResourceDirectory{NumberOfIdEntries: 1})
	putStruct(t, buf, 0x280, ImageResourceDirectoryEntry{
		Name:         1,
		OffsetToData: 0x90 | resourceHighBit,
	})
	putStruct(t, buf, 0x290, ImageResourceDirectory{NumberOfIdEntries: 1})
	putStruct(t, buf, 0x2A0, ImageResourceDirectoryEntry{
		Name:         0,
		OffsetToData: 0xC0,
	})

	putStruct(t, buf, 0x2B0, ImageResourceDataEntry{OffsetToData: 0x10D0, Size: 8})
	putStruct(t, buf, 0x2C0, ImageResourceDataEntry{OffsetToData: 0x10E0, Size: 20})

	copy(buf[0x2D0:0x2D8], "IMAGEBITS") // icon image payload, 8 bytes

	// GRPICONDIR: type 1, one entry naming RT_ICON id 7.
	putU16(buf, 0x2E2, 1)
	putU16(buf, 0x2E4, 1)
	buf[0x2E6] = 16        // width
	buf[0x2E7] = 16        // height
	putU16(buf, 0x2EA, 1)  // planes
	putU16(buf, 0x2EC, 32) // bit count
	putU32(buf, 0x2EE, 8)  // bytes in resource
	putU16(buf, 0x2F2, 7)  // RT_ICON id

	return buf
}

func TestExtractIconGroup(t *testing.T) {
	f := NewFile(buildIconImage(t), "icon.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}

	// Individual RT_ICON leaves are folded into the group; only the rebuilt
	// .ico file is written.
	written, err := f.ExtractResources(t.TempDir())
	if err != nil {
		t.Fatalf("ExtractResources: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("written = %d files, want 1", len(written))
	}

	ico, err := os.ReadFile(written[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint16(ico[2:]); got != 1 {
		t.Errorf("ICONDIR type = %d", got)
	}
	// The directory counts exactly the referenced RT_ICON images.
	if got := binary.LittleEndian.Uint16(ico[4:]); got != 1 {
		t.Errorf("ICONDIR count = %d, want 1", got)
	}

	size := binary.LittleEndian.Uint32(ico[14:])
	offset := binary.LittleEndian.Uint32(ico[18:])
	if offset != 6+16 {
		t.Errorf("image offset = %d, want %d", offset, 6+16)
	}
	if int(offset+size) != len(ico) {
		t.Fatalf("image extent %d+%d does not end the file (%d bytes)", offset, size, len(ico))
	}
	if !bytes.Equal(ico[offset:offset+size], f.IconByID(7)) {
		t.Error("rebuilt image bytes differ from the RT_ICON payload")
	}
}

package pe

import "testing"

// buildTlsCertImage assembles a one-section PE32 carrying a TLS directory
// with two callbacks and an attribute certificate table of two records.
func buildTlsCertImage(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 0x420)

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

	// The security directory is addressed by file offset, not RVA.
	putStruct(t, buf, 0xF8+IMAGE_DIRECTORY_ENTRY_SECURITY*8,
		ImageDataDirectory{VirtualAddress: 0x400, Size: 0x20})
	putStruct(t, buf, 0xF8+IMAGE_DIRECTORY_ENTRY_TLS*8,
		ImageDataDirectory{VirtualAddress: 0x1000, Size: 24})

	data := ImageSectionHeader{
		VirtualSize: 0x200, VirtualAddress: 0x1000,
		SizeOfRawData: 0x200, PointerToRawData: 0x200,
		Characteristics: 0xC0000040,
	}
	copy(data.Name[:], ".data")
	putStruct(t, buf, 0x178, data)

	// TLS directory at RVA 0x1000; AddressOfCallBacks is a virtual address
	// pointing at the zero-terminated array at RVA 0x1020.
	putStruct(t, buf, 0x200, ImageTlsDirectory32{
		StartAddressOfRawData: 0x401000,
		EndAddressOfRawData:   0x401010,
		AddressOfIndex:        0x402000,
		AddressOfCallBacks:    0x401020,
	})
	putU32(buf, 0x220, 0x401080)
	putU32(buf, 0x224, 0x401090)
	putU32(buf, 0x228, 0)

	// Two WIN_CERTIFICATE records, 8-byte aligned.
	putU32(buf, 0x400, 8+5)
	putU16(buf, 0x404, WIN_CERT_REVISION_2_0)
	putU16(buf, 0x406, WIN_CERT_TYPE_PKCS_SIGNED_DATA)
	copy(buf[0x408:], "cert1")

	putU32(buf, 0x410, 8+4)
	putU16(buf, 0x414, WIN_CERT_REVISION_2_0)
	putU16(buf, 0x416, WIN_CERT_TYPE_X509)
	copy(buf[0x418:], "ab42")

	return buf
}

func TestParseTlsDirectory(t *testing.T) {
	f := NewFile(buildTlsCertImage(t), "tls.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}
	if f.Tls == nil {
		t.Fatal("no TLS directory")
	}
	if f.Tls.Is64 {
		t.Error("PE32 image decoded as 64-bit TLS")
	}
	if f.Tls.StartAddressOfRawData != 0x401000 || f.Tls.EndAddressOfRawData != 0x401010 {
		t.Errorf("raw data range = 0x%X - 0x%X",
			f.Tls.StartAddressOfRawData, f.Tls.EndAddressOfRawData)
	}
	if f.Tls.AddressOfIndex != 0x402000 {
		t.Errorf("AddressOfIndex = 0x%X", f.Tls.AddressOfIndex)
	}

	want := []uint64{0x401080, 0x401090}
	if len(f.Tls.Callbacks) != len(want) {
		t.Fatalf("callbacks = %v, want %v", f.Tls.Callbacks, want)
	}
	for i, cb := range want {
		if f.Tls.Callbacks[i] != cb {
			t.Errorf("callback %d = 0x%X, want 0x%X", i, f.Tls.Callbacks[i], cb)
		}
	}
}

func TestParseTlsCallbacksBelowImageBase(t *testing.T) {
	buf := buildTlsCertImage(t)
	// An AddressOfCallBacks below ImageBase cannot be rebased to an RVA.
	putU32(buf, 0x200+12, 0x1020)

	f := NewFile(buf, "tls.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}
	if f.Tls == nil {
		t.Fatal("no TLS directory")
	}
	if len(f.Tls.Callbacks) != 0 {
		t.Errorf("callbacks = %v, want none", f.Tls.Callbacks)
	}
	if len(f.Warnings()) == 0 {
		t.Error("expected a warning about the callback address")
	}
}

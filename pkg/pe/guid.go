package pe

import (
	"encoding/binary"
	"fmt"
)

// GUID has the same structure as golang.org/x/sys/windows.GUID, declared
// locally so the package builds everywhere. The representation matches that
// used by native Windows code; CODEVIEW RSDS signatures are stored in this
// layout.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// GuidFromWindowsArray constructs a GUID from a Windows (little-endian
// fields) encoding array of bytes.
func GuidFromWindowsArray(b [16]byte) GUID {
	var g GUID
	g.Data1 = binary.LittleEndian.Uint32(b[0:4])
	g.Data2 = binary.LittleEndian.Uint16(b[4:6])
	g.Data3 = binary.LittleEndian.Uint16(b[6:8])
	copy(g.Data4[:], b[8:16])
	return g
}

// ToWindowsArray returns the GUID in Windows encoding.
func (g GUID) ToWindowsArray() [16]byte {
	b := [16]byte{}
	binary.LittleEndian.PutUint32(b[0:4], g.Data1)
	binary.LittleEndian.PutUint16(b[4:6], g.Data2)
	binary.LittleEndian.PutUint16(b[6:8], g.Data3)
	copy(b[8:16], g.Data4[:])
	return b
}

// String renders the canonical dashed form, the way symbol servers key PDBs.
func (g GUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		g.Data1, g.Data2, g.Data3, g.Data4[:2], g.Data4[2:])
}

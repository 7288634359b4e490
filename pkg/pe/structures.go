package pe

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"
)

// Raw on-disk records, laid out exactly as the PE specification defines them
// so they can be decoded with binary.Read. Model types wrapping them follow
// further down.

// DOS Header
//
//noinspection GoSnakeCaseUsage
type ImageDosHeader struct {
	E_magic    uint16
	E_cblp     uint16
	E_cp       uint16
	E_crlc     uint16
	E_cparhd   uint16
	E_minalloc uint16
	E_maxalloc uint16
	E_ss       uint16
	E_sp       uint16
	E_csum     uint16
	E_ip       uint16
	E_cs       uint16
	E_lfarlc   uint16
	E_ovno     uint16
	E_res      [8]uint8
	E_oemid    uint16
	E_oeminfo  uint16
	E_res2     [20]uint8
	E_lfanew   uint32
}

type ImageFileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type ImageOptionalHeader32 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

type ImageOptionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

type ImageDataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

//noinspection GoSnakeCaseUsage
type ImageSectionHeader struct {
	Name                 [IMAGE_SIZEOF_SHORT_NAME]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      uint32
}

type ImageImportDescriptor struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

type ImageDelayloadDescriptor struct {
	Attributes                 uint32
	DllNameRVA                 uint32
	ModuleHandleRVA            uint32
	ImportAddressTableRVA      uint32
	ImportNameTableRVA         uint32
	BoundImportAddressTableRVA uint32
	UnloadInformationTableRVA  uint32
	TimeDateStamp              uint32
}

type ImageBoundImportDescriptor struct {
	TimeDateStamp               uint32
	OffsetModuleName            uint16
	NumberOfModuleForwarderRefs uint16
}

type ImageExportDirectory struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

type ImageResourceDirectory struct {
	Characteristics      uint32
	TimeDateStamp        uint32
	MajorVersion         uint16
	MinorVersion         uint16
	NumberOfNamedEntries uint16
	NumberOfIdEntries    uint16
}

type ImageResourceDirectoryEntry struct {
	Name         uint32
	OffsetToData uint32
}

type ImageResourceDataEntry struct {
	OffsetToData uint32
	Size         uint32
	CodePage     uint32
	Reserved     uint32
}

type ImageDebugDirectory struct {
	Characteristics  uint32
	TimeDateStamp    uint32
	MajorVersion     uint16
	MinorVersion     uint16
	Type             uint32
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
}

// CodeView PDB 7.0 record, signature "RSDS".
type CvInfoPdb70 struct {
	CvSignature uint32
	Signature   [16]byte
	Age         uint32
	// NUL-terminated PDB path follows.
}

// CodeView PDB 2.0 record, signature "NB10".
type CvInfoPdb20 struct {
	CvSignature uint32
	Offset      uint32
	Signature   uint32
	Age         uint32
	// NUL-terminated PDB path follows.
}

// IMAGE_DEBUG_MISC header; the data bytes follow.
type ImageDebugMisc struct {
	DataType uint32
	Length   uint32
	Unicode  uint8
	Reserved [3]uint8
}

// FPO_DATA record for IMAGE_DEBUG_TYPE_FPO payloads.
type FpoData struct {
	OffStart  uint32
	ProcSize  uint32
	NumLocals uint32
	ParamsSize uint16
	// Bit-packed: prolog length, saved regs, SEH, BP allocation, frame type.
	Attributes uint16
}

type ImageTlsDirectory32 struct {
	StartAddressOfRawData uint32
	EndAddressOfRawData   uint32
	AddressOfIndex        uint32
	AddressOfCallBacks    uint32
	SizeOfZeroFill        uint32
	Characteristics       uint32
}

type ImageTlsDirectory64 struct {
	StartAddressOfRawData uint64
	EndAddressOfRawData   uint64
	AddressOfIndex        uint64
	AddressOfCallBacks    uint64
	SizeOfZeroFill        uint32
	Characteristics       uint32
}

type ImageBaseRelocation struct {
	VirtualAddress uint32
	SizeOfBlock    uint32
}

// WIN_CERTIFICATE header; the certificate blob follows.
type WinCertificateHeader struct {
	Length          uint32
	Revision        uint16
	CertificateType uint16
}

type ImageLoadConfigDirectory32 struct {
	Size                          uint32
	TimeDateStamp                 uint32
	MajorVersion                  uint16
	MinorVersion                  uint16
	GlobalFlagsClear              uint32
	GlobalFlagsSet                uint32
	CriticalSectionDefaultTimeout uint32
	DeCommitFreeBlockThreshold    uint32
	DeCommitTotalFreeThreshold    uint32
	LockPrefixTable               uint32
	MaximumAllocationSize         uint32
	VirtualMemoryThreshold        uint32
	ProcessHeapFlags              uint32
	ProcessAffinityMask           uint32
	CSDVersion                    uint16
	Reserved1                     uint16
	EditList                      uint32
	SecurityCookie                uint32
	SEHandlerTable                uint32
	SEHandlerCount                uint32
}

type ImageLoadConfigDirectory64 struct {
	Size                          uint32
	TimeDateStamp                 uint32
	MajorVersion                  uint16
	MinorVersion                  uint16
	GlobalFlagsClear              uint32
	GlobalFlagsSet                uint32
	CriticalSectionDefaultTimeout uint32
	DeCommitFreeBlockThreshold    uint64
	DeCommitTotalFreeThreshold    uint64
	LockPrefixTable               uint64
	MaximumAllocationSize         uint64
	VirtualMemoryThreshold        uint64
	ProcessAffinityMask           uint64
	ProcessHeapFlags              uint32
	CSDVersion                    uint16
	Reserved1                     uint16
	EditList                      uint64
	SecurityCookie                uint64
	SEHandlerTable                uint64
	SEHandlerCount                uint64
}

// VS_FIXEDFILEINFO inside a VERSION resource.
type VSFixedFileInfo struct {
	Signature        uint32
	StrucVersion     uint32
	FileVersionMS    uint32
	FileVersionLS    uint32
	ProductVersionMS uint32
	ProductVersionLS uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateMS       uint32
	FileDateLS       uint32
}

// RESDIR entry of a GROUP_ICON resource (GRPICONDIRENTRY).
type GrpIconDirEntry struct {
	Width      uint8
	Height     uint8
	ColorCount uint8
	Reserved   uint8
	Planes     uint16
	BitCount   uint16
	BytesInRes uint32
	ID         uint16
}

// Model types. These wrap the raw records with the file offset they were read
// from and with the derived fields the analyzer exposes.

type DosHeader struct {
	ImageDosHeader
	fileOffset int
}

func NewDosHeader(fileOffset int) *DosHeader {
	return &DosHeader{fileOffset: fileOffset}
}

func (h *DosHeader) String() string {
	return structString(h.fileOffset, "IMAGE_DOS_HEADER", h.ImageDosHeader)
}

type FileHeader struct {
	ImageFileHeader
	fileOffset int
	Flags      map[string]bool
}

func NewFileHeader(fileOffset int) *FileHeader {
	return &FileHeader{fileOffset: fileOffset, Flags: make(map[string]bool)}
}

func (h *FileHeader) String() string {
	return structString(h.fileOffset, "IMAGE_FILE_HEADER", h.ImageFileHeader) + flagString(h.Flags)
}

// OptionalHeader is the tagged 32/64 variant presented uniformly: fields that
// widen on PE32+ are held as uint64 so everything above the parser sees one
// shape.
type OptionalHeader struct {
	Magic                       uint16
	Is64                        bool
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32 // PE32 only, zero on PE32+
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32

	fileOffset int
	Flags      map[string]bool
}

func (h *OptionalHeader) String() string {
	name := "IMAGE_OPTIONAL_HEADER32"
	if h.Is64 {
		name = "IMAGE_OPTIONAL_HEADER64"
	}
	v := *h
	v.Flags = nil
	return structString(h.fileOffset, name, v) + flagString(h.Flags)
}

// DataDirectory is one (RVA, Size) slot of the optional header. Entries with
// Size == 0 are treated as absent regardless of RVA.
type DataDirectory struct {
	ImageDataDirectory
	Index int
	Name  string
}

func (d DataDirectory) Present() bool {
	return d.Size > 0
}

// Section is a parsed section table entry. The Name is the 8-byte field with
// NUL padding stripped.
type Section struct {
	ImageSectionHeader
	Name       string
	Index      int
	fileOffset int
	Flags      map[string]bool
}

func (s *Section) String() string {
	return structString(s.fileOffset, "IMAGE_SECTION_HEADER", s.ImageSectionHeader) + flagString(s.Flags)
}

// ImportEntryKind discriminates named imports from ordinal imports.
type ImportEntryKind int

const (
	ImportByName ImportEntryKind = iota
	ImportByOrdinal
)

// ImportEntry is a single imported symbol. Exactly one of Name / Ordinal is
// meaningful, per Kind; Hint is only set for named imports.
type ImportEntry struct {
	Kind    ImportEntryKind
	Name    string
	Hint    uint16
	Ordinal uint16
	// Thunk value the entry was decoded from, for diagnostics.
	ThunkRVA uint32
}

// Import is one DLL's worth of imported symbols, in on-disk thunk order.
type Import struct {
	ImageImportDescriptor
	DllName string
	Entries []ImportEntry
	Delayed bool
}

// BoundImport is one entry of the bound import directory.
type BoundImport struct {
	ImageBoundImportDescriptor
	ModuleName string
	Forwarders []string
}

// ExportEntry is a single exported symbol, named or ordinal-only. A forwarded
// export carries the `Dll.Symbol` target string instead of a code address.
type ExportEntry struct {
	Ordinal   uint32
	Name      string
	Address   uint32
	Forwarder string
}

// ExportDirectory is the parsed export table, entries sorted by ordinal.
type ExportDirectory struct {
	ImageExportDirectory
	ModuleName string
	Entries    []ExportEntry
}

// ResourceNode is one node of the three-level resource tree. Internal nodes
// (IsDirectory) carry children in on-disk order (named entries first, then id
// entries); leaves carry the data entry and the resolved payload bytes.
type ResourceNode struct {
	IsDirectory bool

	// Key: either a name string or a numeric id, per HasName.
	HasName bool
	Name    string
	ID      uint32

	Children []*ResourceNode

	Data     ImageResourceDataEntry
	Payload  []byte
	ZeroFill bool // payload lies in virtual slack, reported empty

	depth int
}

// Key renders the node's name or id for display and extraction filenames.
func (n *ResourceNode) Key() string {
	if n.HasName {
		return n.Name
	}
	return fmt.Sprintf("%d", n.ID)
}

// TypeName renders a root-level node's id through the RT_* table.
func (n *ResourceNode) TypeName() string {
	if n.HasName {
		return n.Name
	}
	if name, ok := ResourceTypes[n.ID]; ok {
		return name
	}
	return fmt.Sprintf("%d", n.ID)
}

// DebugEntry is one record of the debug directory with its decoded payload,
// when the type is one we understand.
type DebugEntry struct {
	ImageDebugDirectory
	TypeName string
	RawData  []byte

	// CODEVIEW
	Pdb70   *CvInfoPdb70
	Pdb20   *CvInfoPdb20
	PdbPath string

	// MISC
	Misc     *ImageDebugMisc
	MiscData string

	// FPO
	Fpo []FpoData
}

// TlsDirectory is the tagged 32/64 TLS directory with addresses widened to
// 64 bits and the callback array dereferenced through the RVA mapper.
type TlsDirectory struct {
	Is64                  bool
	StartAddressOfRawData uint64
	EndAddressOfRawData   uint64
	AddressOfIndex        uint64
	AddressOfCallBacks    uint64
	SizeOfZeroFill        uint32
	Characteristics       uint32
	// Callback virtual addresses, zero-terminated array on disk.
	Callbacks []uint64
}

// RelocationEntry is one 16-bit base relocation: type in the top 4 bits,
// offset within the page in the low 12.
type RelocationEntry struct {
	Type   uint16
	Offset uint16
}

func (e RelocationEntry) TypeName() string {
	if name, ok := BaseRelocationTypes[e.Type]; ok {
		return name
	}
	return fmt.Sprintf("%d", e.Type)
}

// RelocationBlock is one IMAGE_BASE_RELOCATION block and its entries.
type RelocationBlock struct {
	ImageBaseRelocation
	Entries []RelocationEntry
}

// Certificate is one WIN_CERTIFICATE record from the attribute certificate
// table. Data is the bCertificate body, the record minus its 8-byte header
// (typically PKCS#7 SignedData); Length still counts the whole record. The
// blob is reported, not validated.
type Certificate struct {
	WinCertificateHeader
	Data []byte
}

// LoadConfig presents the 32/64 load configuration directory uniformly.
type LoadConfig struct {
	Is64                          bool
	Size                          uint32
	TimeDateStamp                 uint32
	GlobalFlagsClear              uint32
	GlobalFlagsSet                uint32
	CriticalSectionDefaultTimeout uint32
	SecurityCookie                uint64
	SEHandlerTable                uint64
	SEHandlerCount                uint64
}

// Helper functions shared by the String methods above. The reflection walk
// prints each scalar field with its file offset, the format the dump output
// uses for headers.

func structString(fileOffset int, structName string, iface interface{}) string {
	sType := reflect.TypeOf(iface)
	sValue := reflect.ValueOf(iface)
	values := "[" + structName + "]\n"
	for i := 0; i < sType.NumField(); i++ {
		sField := sType.Field(i)
		if !sField.IsExported() {
			continue
		}
		vField := sValue.Field(i)
		fieldOffset := uint64(fileOffset) + uint64(sField.Offset)
		switch vField.Kind() {
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			values += fmt.Sprintf("0x%-6X\t%-28s\t0x%X\n", fieldOffset, sField.Name, vField.Interface())
		case reflect.String:
			values += fmt.Sprintf("0x%-6X\t%-28s\t%s\n", fieldOffset, sField.Name, vField.Interface())
		case reflect.Bool:
			values += fmt.Sprintf("0x%-6X\t%-28s\t%t\n", fieldOffset, sField.Name, vField.Interface())
		case reflect.Struct:
			values += structString(fileOffset+int(sField.Offset), sField.Name, vField.Interface())
		}
	}
	return values
}

func flagString(flagMap map[string]bool) string {
	var set []string
	for key, value := range flagMap {
		if value {
			set = append(set, key)
		}
	}
	if len(set) == 0 {
		return ""
	}
	sortStrings(set)
	return "Flags: " + strings.Join(set, " | ") + "\n"
}

// SetFlags records which of the named characteristic bits are set.
func SetFlags(flagMap map[string]bool, charMap map[string]uint32, flags uint32) {
	for key, value := range charMap {
		flagMap[key] = flags&value == value
	}
}

// EmptyStruct reports whether every scalar field of the struct is zero; used
// to find the all-zero terminator records of on-disk arrays.
func EmptyStruct(iface interface{}) bool {
	value := reflect.ValueOf(iface)
	for i := 0; i < value.NumField(); i++ {
		field := value.Field(i)
		switch field.Kind() {
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if field.Uint() != 0 {
				return false
			}
		case reflect.String:
			if field.Len() != 0 {
				return false
			}
		}
	}
	return true
}

func sizeOf(iface interface{}) int {
	return binary.Size(iface)
}

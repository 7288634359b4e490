package pe

// Signatures.
//
//noinspection GoSnakeCaseUsage
const (
	IMAGE_DOS_SIGNATURE   = 0x5A4D     // MZ
	IMAGE_DOSZM_SIGNATURE = 0x4D5A     // ZM
	IMAGE_NE_SIGNATURE    = 0x454E     // NE
	IMAGE_LE_SIGNATURE    = 0x454C     // LE
	IMAGE_LX_SIGNATURE    = 0x584C     // LX
	IMAGE_TE_SIGNATURE    = 0x5A56     // VZ
	IMAGE_NT_SIGNATURE    = 0x00004550 // PE\0\0
)

// Optional header magic values.
//
//noinspection GoSnakeCaseUsage
const (
	IMAGE_NT_OPTIONAL_HDR32_MAGIC = 0x10B
	IMAGE_NT_OPTIONAL_HDR64_MAGIC = 0x20B
	IMAGE_ROM_OPTIONAL_HDR_MAGIC  = 0x107
)

// Fixed structure sizes.
//
//noinspection GoSnakeCaseUsage
const (
	IMAGE_SIZEOF_SHORT_NAME          = 8
	IMAGE_SIZEOF_FILE_HEADER         = 20
	IMAGE_SIZEOF_SECTION_HEADER      = 40
	IMAGE_SIZEOF_DATA_DIRECTORY      = 8
	IMAGE_SIZEOF_IMPORT_DESCRIPTOR   = 20
	IMAGE_SIZEOF_RESOURCE_DIRECTORY  = 16
	IMAGE_SIZEOF_RESOURCE_ENTRY      = 8
	IMAGE_SIZEOF_RESOURCE_DATA_ENTRY = 16
	IMAGE_SIZEOF_BASE_RELOCATION     = 8
	IMAGE_SIZEOF_DEBUG_DIRECTORY     = 28
	IMAGE_SIZEOF_WIN_CERTIFICATE     = 8

	IMAGE_NUMBEROF_DIRECTORY_ENTRIES = 16

	// PE spec upper bound on the section count.
	IMAGE_MAX_NUMBER_OF_SECTIONS = 96

	IMAGE_FILE_ALIGNMENT_HARDCODED_VALUE = 0x200
)

// Ordinal flags for import thunks.
//
//noinspection GoSnakeCaseUsage
const (
	IMAGE_ORDINAL_FLAG32 = uint32(0x80000000)
	IMAGE_ORDINAL_FLAG64 = uint64(0x8000000000000000)
)

// Data directory indices, fixed by the PE specification.
//
//noinspection GoSnakeCaseUsage
const (
	IMAGE_DIRECTORY_ENTRY_EXPORT         = 0
	IMAGE_DIRECTORY_ENTRY_IMPORT         = 1
	IMAGE_DIRECTORY_ENTRY_RESOURCE       = 2
	IMAGE_DIRECTORY_ENTRY_EXCEPTION      = 3
	IMAGE_DIRECTORY_ENTRY_SECURITY       = 4
	IMAGE_DIRECTORY_ENTRY_BASERELOC      = 5
	IMAGE_DIRECTORY_ENTRY_DEBUG          = 6
	IMAGE_DIRECTORY_ENTRY_ARCHITECTURE   = 7
	IMAGE_DIRECTORY_ENTRY_GLOBALPTR      = 8
	IMAGE_DIRECTORY_ENTRY_TLS            = 9
	IMAGE_DIRECTORY_ENTRY_LOAD_CONFIG    = 10
	IMAGE_DIRECTORY_ENTRY_BOUND_IMPORT   = 11
	IMAGE_DIRECTORY_ENTRY_IAT            = 12
	IMAGE_DIRECTORY_ENTRY_DELAY_IMPORT   = 13
	IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR = 14
	IMAGE_DIRECTORY_ENTRY_RESERVED       = 15
)

// DirectoryEntryTypes maps a data directory index to its canonical name.
var DirectoryEntryTypes = map[int]string{
	IMAGE_DIRECTORY_ENTRY_EXPORT:         "IMAGE_DIRECTORY_ENTRY_EXPORT",
	IMAGE_DIRECTORY_ENTRY_IMPORT:         "IMAGE_DIRECTORY_ENTRY_IMPORT",
	IMAGE_DIRECTORY_ENTRY_RESOURCE:       "IMAGE_DIRECTORY_ENTRY_RESOURCE",
	IMAGE_DIRECTORY_ENTRY_EXCEPTION:      "IMAGE_DIRECTORY_ENTRY_EXCEPTION",
	IMAGE_DIRECTORY_ENTRY_SECURITY:       "IMAGE_DIRECTORY_ENTRY_SECURITY",
	IMAGE_DIRECTORY_ENTRY_BASERELOC:      "IMAGE_DIRECTORY_ENTRY_BASERELOC",
	IMAGE_DIRECTORY_ENTRY_DEBUG:          "IMAGE_DIRECTORY_ENTRY_DEBUG",
	IMAGE_DIRECTORY_ENTRY_ARCHITECTURE:   "IMAGE_DIRECTORY_ENTRY_ARCHITECTURE",
	IMAGE_DIRECTORY_ENTRY_GLOBALPTR:      "IMAGE_DIRECTORY_ENTRY_GLOBALPTR",
	IMAGE_DIRECTORY_ENTRY_TLS:            "IMAGE_DIRECTORY_ENTRY_TLS",
	IMAGE_DIRECTORY_ENTRY_LOAD_CONFIG:    "IMAGE_DIRECTORY_ENTRY_LOAD_CONFIG",
	IMAGE_DIRECTORY_ENTRY_BOUND_IMPORT:   "IMAGE_DIRECTORY_ENTRY_BOUND_IMPORT",
	IMAGE_DIRECTORY_ENTRY_IAT:            "IMAGE_DIRECTORY_ENTRY_IAT",
	IMAGE_DIRECTORY_ENTRY_DELAY_IMPORT:   "IMAGE_DIRECTORY_ENTRY_DELAY_IMPORT",
	IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR: "IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR",
}

// Machine types.
//
//noinspection GoSnakeCaseUsage
const (
	IMAGE_FILE_MACHINE_I386  = 0x014C
	IMAGE_FILE_MACHINE_AMD64 = 0x8664
	IMAGE_FILE_MACHINE_ARM   = 0x01C0
	IMAGE_FILE_MACHINE_ARMNT = 0x01C4
	IMAGE_FILE_MACHINE_ARM64 = 0xAA64
	IMAGE_FILE_MACHINE_IA64  = 0x0200
)

// MachineTypes maps a FileHeader machine value to its name. Unknown machine
// values are passed through numerically by the callers.
var MachineTypes = map[uint16]string{
	IMAGE_FILE_MACHINE_I386:  "IMAGE_FILE_MACHINE_I386",
	IMAGE_FILE_MACHINE_AMD64: "IMAGE_FILE_MACHINE_AMD64",
	IMAGE_FILE_MACHINE_ARM:   "IMAGE_FILE_MACHINE_ARM",
	IMAGE_FILE_MACHINE_ARMNT: "IMAGE_FILE_MACHINE_ARMNT",
	IMAGE_FILE_MACHINE_ARM64: "IMAGE_FILE_MACHINE_ARM64",
	IMAGE_FILE_MACHINE_IA64:  "IMAGE_FILE_MACHINE_IA64",
}

// ImageCharacteristics maps FileHeader characteristic flag names to values.
var ImageCharacteristics = map[string]uint32{
	"IMAGE_FILE_RELOCS_STRIPPED":         0x0001,
	"IMAGE_FILE_EXECUTABLE_IMAGE":        0x0002,
	"IMAGE_FILE_LINE_NUMS_STRIPPED":      0x0004,
	"IMAGE_FILE_LOCAL_SYMS_STRIPPED":     0x0008,
	"IMAGE_FILE_AGGRESIVE_WS_TRIM":       0x0010,
	"IMAGE_FILE_LARGE_ADDRESS_AWARE":     0x0020,
	"IMAGE_FILE_BYTES_REVERSED_LO":       0x0080,
	"IMAGE_FILE_32BIT_MACHINE":           0x0100,
	"IMAGE_FILE_DEBUG_STRIPPED":          0x0200,
	"IMAGE_FILE_REMOVABLE_RUN_FROM_SWAP": 0x0400,
	"IMAGE_FILE_NET_RUN_FROM_SWAP":       0x0800,
	"IMAGE_FILE_SYSTEM":                  0x1000,
	"IMAGE_FILE_DLL":                     0x2000,
	"IMAGE_FILE_UP_SYSTEM_ONLY":          0x4000,
	"IMAGE_FILE_BYTES_REVERSED_HI":       0x8000,
}

// DllCharacteristics maps OptionalHeader DLL characteristic flag names to
// values. Unknown bits pass through untouched.
var DllCharacteristics = map[string]uint32{
	"IMAGE_DLLCHARACTERISTICS_HIGH_ENTROPY_VA":       0x0020,
	"IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE":          0x0040,
	"IMAGE_DLLCHARACTERISTICS_FORCE_INTEGRITY":       0x0080,
	"IMAGE_DLLCHARACTERISTICS_NX_COMPAT":             0x0100,
	"IMAGE_DLLCHARACTERISTICS_NO_ISOLATION":          0x0200,
	"IMAGE_DLLCHARACTERISTICS_NO_SEH":                0x0400,
	"IMAGE_DLLCHARACTERISTICS_NO_BIND":               0x0800,
	"IMAGE_DLLCHARACTERISTICS_APPCONTAINER":          0x1000,
	"IMAGE_DLLCHARACTERISTICS_WDM_DRIVER":            0x2000,
	"IMAGE_DLLCHARACTERISTICS_GUARD_CF":              0x4000,
	"IMAGE_DLLCHARACTERISTICS_TERMINAL_SERVER_AWARE": 0x8000,
}

// SectionCharacteristics maps section flag names to values.
var SectionCharacteristics = map[string]uint32{
	"IMAGE_SCN_CNT_CODE":               0x00000020,
	"IMAGE_SCN_CNT_INITIALIZED_DATA":   0x00000040,
	"IMAGE_SCN_CNT_UNINITIALIZED_DATA": 0x00000080,
	"IMAGE_SCN_LNK_INFO":               0x00000200,
	"IMAGE_SCN_LNK_REMOVE":             0x00000800,
	"IMAGE_SCN_LNK_COMDAT":             0x00001000,
	"IMAGE_SCN_GPREL":                  0x00008000,
	"IMAGE_SCN_MEM_DISCARDABLE":        0x02000000,
	"IMAGE_SCN_MEM_NOT_CACHED":         0x04000000,
	"IMAGE_SCN_MEM_NOT_PAGED":          0x08000000,
	"IMAGE_SCN_MEM_SHARED":             0x10000000,
	"IMAGE_SCN_MEM_EXECUTE":            0x20000000,
	"IMAGE_SCN_MEM_READ":               0x40000000,
	"IMAGE_SCN_MEM_WRITE":              0x80000000,
}

// Subsystems.
//
//noinspection GoSnakeCaseUsage
const (
	IMAGE_SUBSYSTEM_UNKNOWN                  = 0
	IMAGE_SUBSYSTEM_NATIVE                   = 1
	IMAGE_SUBSYSTEM_WINDOWS_GUI              = 2
	IMAGE_SUBSYSTEM_WINDOWS_CUI              = 3
	IMAGE_SUBSYSTEM_OS2_CUI                  = 5
	IMAGE_SUBSYSTEM_POSIX_CUI                = 7
	IMAGE_SUBSYSTEM_WINDOWS_CE_GUI           = 9
	IMAGE_SUBSYSTEM_EFI_APPLICATION          = 10
	IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER  = 11
	IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER       = 12
	IMAGE_SUBSYSTEM_EFI_ROM                  = 13
	IMAGE_SUBSYSTEM_XBOX                     = 14
	IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION = 16
)

// SubsystemTypes maps a subsystem value to its name.
var SubsystemTypes = map[uint16]string{
	IMAGE_SUBSYSTEM_UNKNOWN:                  "IMAGE_SUBSYSTEM_UNKNOWN",
	IMAGE_SUBSYSTEM_NATIVE:                   "IMAGE_SUBSYSTEM_NATIVE",
	IMAGE_SUBSYSTEM_WINDOWS_GUI:              "IMAGE_SUBSYSTEM_WINDOWS_GUI",
	IMAGE_SUBSYSTEM_WINDOWS_CUI:              "IMAGE_SUBSYSTEM_WINDOWS_CUI",
	IMAGE_SUBSYSTEM_OS2_CUI:                  "IMAGE_SUBSYSTEM_OS2_CUI",
	IMAGE_SUBSYSTEM_POSIX_CUI:                "IMAGE_SUBSYSTEM_POSIX_CUI",
	IMAGE_SUBSYSTEM_WINDOWS_CE_GUI:           "IMAGE_SUBSYSTEM_WINDOWS_CE_GUI",
	IMAGE_SUBSYSTEM_EFI_APPLICATION:          "IMAGE_SUBSYSTEM_EFI_APPLICATION",
	IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER:  "IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER",
	IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER:       "IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER",
	IMAGE_SUBSYSTEM_EFI_ROM:                  "IMAGE_SUBSYSTEM_EFI_ROM",
	IMAGE_SUBSYSTEM_XBOX:                     "IMAGE_SUBSYSTEM_XBOX",
	IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION: "IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION",
}

// Debug directory types.
//
//noinspection GoSnakeCaseUsage
const (
	IMAGE_DEBUG_TYPE_UNKNOWN       = 0
	IMAGE_DEBUG_TYPE_COFF          = 1
	IMAGE_DEBUG_TYPE_CODEVIEW      = 2
	IMAGE_DEBUG_TYPE_FPO           = 3
	IMAGE_DEBUG_TYPE_MISC          = 4
	IMAGE_DEBUG_TYPE_EXCEPTION     = 5
	IMAGE_DEBUG_TYPE_FIXUP         = 6
	IMAGE_DEBUG_TYPE_OMAP_TO_SRC   = 7
	IMAGE_DEBUG_TYPE_OMAP_FROM_SRC = 8
	IMAGE_DEBUG_TYPE_BORLAND       = 9
	IMAGE_DEBUG_TYPE_RESERVED10    = 10
	IMAGE_DEBUG_TYPE_CLSID         = 11
	IMAGE_DEBUG_TYPE_VC_FEATURE    = 12
	IMAGE_DEBUG_TYPE_POGO          = 13
	IMAGE_DEBUG_TYPE_ILTCG         = 14
	IMAGE_DEBUG_TYPE_MPX           = 15
	IMAGE_DEBUG_TYPE_REPRO         = 16
)

// DebugTypes maps a debug directory type to its name.
var DebugTypes = map[uint32]string{
	IMAGE_DEBUG_TYPE_UNKNOWN:       "IMAGE_DEBUG_TYPE_UNKNOWN",
	IMAGE_DEBUG_TYPE_COFF:          "IMAGE_DEBUG_TYPE_COFF",
	IMAGE_DEBUG_TYPE_CODEVIEW:      "IMAGE_DEBUG_TYPE_CODEVIEW",
	IMAGE_DEBUG_TYPE_FPO:           "IMAGE_DEBUG_TYPE_FPO",
	IMAGE_DEBUG_TYPE_MISC:          "IMAGE_DEBUG_TYPE_MISC",
	IMAGE_DEBUG_TYPE_EXCEPTION:     "IMAGE_DEBUG_TYPE_EXCEPTION",
	IMAGE_DEBUG_TYPE_FIXUP:         "IMAGE_DEBUG_TYPE_FIXUP",
	IMAGE_DEBUG_TYPE_OMAP_TO_SRC:   "IMAGE_DEBUG_TYPE_OMAP_TO_SRC",
	IMAGE_DEBUG_TYPE_OMAP_FROM_SRC: "IMAGE_DEBUG_TYPE_OMAP_FROM_SRC",
	IMAGE_DEBUG_TYPE_BORLAND:       "IMAGE_DEBUG_TYPE_BORLAND",
	IMAGE_DEBUG_TYPE_CLSID:         "IMAGE_DEBUG_TYPE_CLSID",
	IMAGE_DEBUG_TYPE_VC_FEATURE:    "IMAGE_DEBUG_TYPE_VC_FEATURE",
	IMAGE_DEBUG_TYPE_POGO:          "IMAGE_DEBUG_TYPE_POGO",
	IMAGE_DEBUG_TYPE_ILTCG:         "IMAGE_DEBUG_TYPE_ILTCG",
	IMAGE_DEBUG_TYPE_MPX:           "IMAGE_DEBUG_TYPE_MPX",
	IMAGE_DEBUG_TYPE_REPRO:         "IMAGE_DEBUG_TYPE_REPRO",
}

// CodeView signatures.
//
//noinspection GoSnakeCaseUsage
const (
	CV_PDB_70_SIGNATURE = 0x53445352 // RSDS
	CV_PDB_20_SIGNATURE = 0x3031424E // NB10
)

// Base relocation types.
//
//noinspection GoSnakeCaseUsage
const (
	IMAGE_REL_BASED_ABSOLUTE       = 0
	IMAGE_REL_BASED_HIGH           = 1
	IMAGE_REL_BASED_LOW            = 2
	IMAGE_REL_BASED_HIGHLOW        = 3
	IMAGE_REL_BASED_HIGHADJ        = 4
	IMAGE_REL_BASED_MIPS_JMPADDR   = 5
	IMAGE_REL_BASED_THUMB_MOV32    = 7
	IMAGE_REL_BASED_MIPS_JMPADDR16 = 9
	IMAGE_REL_BASED_DIR64          = 10
)

// BaseRelocationTypes maps a relocation entry type to its name.
var BaseRelocationTypes = map[uint16]string{
	IMAGE_REL_BASED_ABSOLUTE:       "IMAGE_REL_BASED_ABSOLUTE",
	IMAGE_REL_BASED_HIGH:           "IMAGE_REL_BASED_HIGH",
	IMAGE_REL_BASED_LOW:            "IMAGE_REL_BASED_LOW",
	IMAGE_REL_BASED_HIGHLOW:        "IMAGE_REL_BASED_HIGHLOW",
	IMAGE_REL_BASED_HIGHADJ:        "IMAGE_REL_BASED_HIGHADJ",
	IMAGE_REL_BASED_MIPS_JMPADDR:   "IMAGE_REL_BASED_MIPS_JMPADDR",
	IMAGE_REL_BASED_THUMB_MOV32:    "IMAGE_REL_BASED_THUMB_MOV32",
	IMAGE_REL_BASED_MIPS_JMPADDR16: "IMAGE_REL_BASED_MIPS_JMPADDR16",
	IMAGE_REL_BASED_DIR64:          "IMAGE_REL_BASED_DIR64",
}

// Attribute certificate revisions and types.
//
//noinspection GoSnakeCaseUsage
const (
	WIN_CERT_REVISION_1_0 = 0x0100
	WIN_CERT_REVISION_2_0 = 0x0200

	WIN_CERT_TYPE_X509             = 0x0001
	WIN_CERT_TYPE_PKCS_SIGNED_DATA = 0x0002
	WIN_CERT_TYPE_TS_STACK_SIGNED  = 0x0004

	// Successive WIN_CERTIFICATE records are 8-byte aligned.
	WIN_CERTIFICATE_ALIGNMENT = 8
)

// Resource types.
//
//noinspection GoSnakeCaseUsage
const (
	RT_CURSOR       = 1
	RT_BITMAP       = 2
	RT_ICON         = 3
	RT_MENU         = 4
	RT_DIALOG       = 5
	RT_STRING       = 6
	RT_FONTDIR      = 7
	RT_FONT         = 8
	RT_ACCELERATOR  = 9
	RT_RCDATA       = 10
	RT_MESSAGETABLE = 11
	RT_GROUP_CURSOR = 12
	RT_GROUP_ICON   = 14
	RT_VERSION      = 16
	RT_DLGINCLUDE   = 17
	RT_PLUGPLAY     = 19
	RT_VXD          = 20
	RT_ANICURSOR    = 21
	RT_ANIICON      = 22
	RT_HTML         = 23
	RT_MANIFEST     = 24
)

// ResourceTypes maps a well-known resource type id to its RT_* name.
var ResourceTypes = map[uint32]string{
	RT_CURSOR:       "RT_CURSOR",
	RT_BITMAP:       "RT_BITMAP",
	RT_ICON:         "RT_ICON",
	RT_MENU:         "RT_MENU",
	RT_DIALOG:       "RT_DIALOG",
	RT_STRING:       "RT_STRING",
	RT_FONTDIR:      "RT_FONTDIR",
	RT_FONT:         "RT_FONT",
	RT_ACCELERATOR:  "RT_ACCELERATOR",
	RT_RCDATA:       "RT_RCDATA",
	RT_MESSAGETABLE: "RT_MESSAGETABLE",
	RT_GROUP_CURSOR: "RT_GROUP_CURSOR",
	RT_GROUP_ICON:   "RT_GROUP_ICON",
	RT_VERSION:      "RT_VERSION",
	RT_DLGINCLUDE:   "RT_DLGINCLUDE",
	RT_PLUGPLAY:     "RT_PLUGPLAY",
	RT_VXD:          "RT_VXD",
	RT_ANICURSOR:    "RT_ANICURSOR",
	RT_ANIICON:      "RT_ANIICON",
	RT_HTML:         "RT_HTML",
	RT_MANIFEST:     "RT_MANIFEST",
}

// High bit of a resource directory entry Name / OffsetToData field.
const resourceHighBit = uint32(0x80000000)

// Resource tree depth is fixed by the PE spec: type / name / language.
const maxResourceDepth = 3

// VS_FIXEDFILEINFO signature.
//
//noinspection GoSnakeCaseUsage
const VS_FFI_SIGNATURE = 0xFEEF04BD

package pe

import (
	"fmt"
	"strings"
)

// Well-known ordinal-to-name tables for DLLs that are commonly imported by
// ordinal. Keyed by lowercased DLL filename.
var OrdNames = map[string]map[uint64]string{
	"ws2_32.dll":   Ws232OrdNames,
	"wsock32.dll":  Ws232OrdNames,
	"oleaut32.dll": Oleaut32OrdNames,
}

// OrdLookup resolves an ordinal import to a function name when the DLL has a
// known table. With makeName set, unknown ordinals come back as "ord<N>"
// instead of the empty string.
func OrdLookup(libname string, ord uint64, makeName bool) string {
	if names, ok := OrdNames[strings.ToLower(libname)]; ok {
		if name, ok := names[ord]; ok {
			return name
		}
	}
	if makeName {
		return fmt.Sprintf("ord%d", ord)
	}
	return ""
}

var Ws232OrdNames = map[uint64]string{
	1:   "accept",
	2:   "bind",
	3:   "closesocket",
	4:   "connect",
	5:   "getpeername",
	6:   "getsockname",
	7:   "getsockopt",
	8:   "htonl",
	9:   "htons",
	10:  "ioctlsocket",
	11:  "inet_addr",
	12:  "inet_ntoa",
	13:  "listen",
	14:  "ntohl",
	15:  "ntohs",
	16:  "recv",
	17:  "recvfrom",
	18:  "select",
	19:  "send",
	20:  "sendto",
	21:  "setsockopt",
	22:  "shutdown",
	23:  "socket",
	24:  "GetAddrInfoW",
	25:  "GetNameInfoW",
	26:  "WSApSetPostRoutine",
	27:  "FreeAddrInfoW",
	28:  "WPUCompleteOverlappedRequest",
	29:  "WSAAccept",
	30:  "WSAAddressToStringA",
	31:  "WSAAddressToStringW",
	32:  "WSACloseEvent",
	33:  "WSAConnect",
	34:  "WSACreateEvent",
	35:  "WSADuplicateSocketA",
	36:  "WSADuplicateSocketW",
	37:  "WSAEnumNameSpaceProvidersA",
	38:  "WSAEnumNameSpaceProvidersW",
	39:  "WSAEnumNetworkEvents",
	40:  "WSAEnumProtocolsA",
	41:  "WSAEnumProtocolsW",
	42:  "WSAEventSelect",
	43:  "WSAGetOverlappedResult",
	44:  "WSAGetQOSByName",
	45:  "WSAGetServiceClassInfoA",
	46:  "WSAGetServiceClassInfoW",
	47:  "WSAGetServiceClassNameByClassIdA",
	48:  "WSAGetServiceClassNameByClassIdW",
	49:  "WSAHtonl",
	50:  "WSAHtons",
	51:  "gethostbyaddr",
	52:  "gethostbyname",
	53:  "getprotobyname",
	54:  "getprotobynumber",
	55:  "getservbyname",
	56:  "getservbyport",
	57:  "gethostname",
	58:  "WSAInstallServiceClassA",
	59:  "WSAInstallServiceClassW",
	60:  "WSAIoctl",
	61:  "WSAJoinLeaf",
	62:  "WSALookupServiceBeginA",
	63:  "WSALookupServiceBeginW",
	64:  "WSALookupServiceEnd",
	65:  "WSALookupServiceNextA",
	66:  "WSALookupServiceNextW",
	67:  "WSANSPIoctl",
	68:  "WSANtohl",
	69:  "WSANtohs",
	70:  "WSAProviderConfigChange",
	71:  "WSARecv",
	72:  "WSARecvDisconnect",
	73:  "WSARecvFrom",
	74:  "WSARemoveServiceClass",
	75:  "WSAResetEvent",
	76:  "WSASend",
	77:  "WSASendDisconnect",
	78:  "WSASendTo",
	79:  "WSASetEvent",
	80:  "WSASetServiceA",
	81:  "WSASetServiceW",
	82:  "WSASocketA",
	83:  "WSASocketW",
	84:  "WSAStringToAddressA",
	85:  "WSAStringToAddressW",
	86:  "WSAUnhookBlockingHook",
	87:  "WSCDeinstallProvider",
	88:  "WSCEnableNSProvider",
	89:  "WSCEnumProtocols",
	90:  "WSCGetProviderPath",
	91:  "WSCInstallNameSpace",
	92:  "WSCInstallProvider",
	93:  "WSCUnInstallNameSpace",
	94:  "WSCUpdateProvider",
	95:  "WSCWriteNameSpaceOrder",
	96:  "WSCWriteProviderOrder",
	97:  "freeaddrinfo",
	98:  "getaddrinfo",
	99:  "getnameinfo",
	101: "WSAAsyncSelect",
	102: "WSAAsyncGetHostByAddr",
	103: "WSAAsyncGetHostByName",
	104: "WSAAsyncGetProtoByNumber",
	105: "WSAAsyncGetProtoByName",
	106: "WSAAsyncGetServByPort",
	107: "WSAAsyncGetServByName",
	108: "WSACancelAsyncRequest",
	109: "WSASetBlockingHook",
	110: "WSAUnhookBlockingHook",
	111: "WSAGetLastError",
	112: "WSASetLastError",
	113: "WSACancelBlockingCall",
	114: "WSAIsBlocking",
	115: "WSAStartup",
	116: "WSACleanup",
	151: "__WSAFDIsSet",
	500: "WEP",
}

var Oleaut32OrdNames = map[uint64]string{
	2:   "SysAllocString",
	3:   "SysReAllocString",
	4:   "SysAllocStringLen",
	5:   "SysReAllocStringLen",
	6:   "SysFreeString",
	7:   "SysStringLen",
	8:   "VariantInit",
	9:   "VariantClear",
	10:  "VariantCopy",
	11:  "VariantCopyInd",
	12:  "VariantChangeType",
	13:  "VariantTimeToDosDateTime",
	14:  "DosDateTimeToVariantTime",
	15:  "SafeArrayCreate",
	16:  "SafeArrayDestroy",
	17:  "SafeArrayGetDim",
	18:  "SafeArrayGetElemsize",
	19:  "SafeArrayGetUBound",
	20:  "SafeArrayGetLBound",
	21:  "SafeArrayLock",
	22:  "SafeArrayUnlock",
	23:  "SafeArrayAccessData",
	24:  "SafeArrayUnaccessData",
	25:  "SafeArrayGetElement",
	26:  "SafeArrayPutElement",
	27:  "SafeArrayCopy",
	28:  "DispGetParam",
	29:  "DispGetIDsOfNames",
	30:  "DispInvoke",
	31:  "CreateDispTypeInfo",
	32:  "CreateStdDispatch",
	33:  "RegisterActiveObject",
	34:  "RevokeActiveObject",
	35:  "GetActiveObject",
	36:  "SafeArrayAllocDescriptor",
	37:  "SafeArrayAllocData",
	38:  "SafeArrayDestroyDescriptor",
	39:  "SafeArrayDestroyData",
	40:  "SafeArrayRedim",
	41:  "SafeArrayAllocDescriptorEx",
	42:  "SafeArrayCreateEx",
	43:  "SafeArrayCreateVectorEx",
	44:  "SafeArraySetRecordInfo",
	45:  "SafeArrayGetRecordInfo",
	46:  "VarParseNumFromStr",
	47:  "VarNumFromParseNum",
	48:  "VarI2FromUI1",
	49:  "VarI2FromI4",
	146: "VariantChangeTypeEx",
	147: "SafeArrayPtrOfIndex",
	148: "SysStringByteLen",
	149: "SysAllocStringByteLen",
	161: "LoadTypeLib",
	162: "LoadRegTypeLib",
	163: "RegisterTypeLib",
	164: "QueryPathOfRegTypeLib",
	165: "LHashValOfNameSys",
	166: "LHashValOfNameSysA",
	183: "CreateTypeLib",
	184: "LoadTypeLibEx",
	185: "SysAllocStringLen",
	186: "OaBuildVersion",
	200: "GetAltMonthNames",
	201: "OleLoadPicture",
	411: "SafeArrayGetVartype",
	412: "GetRecordInfoFromTypeInfo",
	413: "GetRecordInfoFromGuids",
	420: "VarCmp",
}

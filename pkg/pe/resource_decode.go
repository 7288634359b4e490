package pe

import (
	"fmt"

	"github.com/Velocidex/ordereddict"
)

// VersionInfo is the decoded VS_VERSIONINFO tree of a VERSION resource. The
// string tables keep their on-disk key order.
type VersionInfo struct {
	FixedInfo    *VSFixedFileInfo
	StringTables []*VersionStringTable
	Translations []uint32
}

// VersionStringTable is one StringTable block, keyed by its lang-codepage id.
type VersionStringTable struct {
	LangID  string
	Strings *ordereddict.Dict
}

// FileVersion renders the fixed-info file version as dotted quad.
func (v *VersionInfo) FileVersion() string {
	if v.FixedInfo == nil {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d.%d",
		v.FixedInfo.FileVersionMS>>16, v.FixedInfo.FileVersionMS&0xFFFF,
		v.FixedInfo.FileVersionLS>>16, v.FixedInfo.FileVersionLS&0xFFFF)
}

// ProductVersion renders the fixed-info product version as dotted quad.
func (v *VersionInfo) ProductVersion() string {
	if v.FixedInfo == nil {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d.%d",
		v.FixedInfo.ProductVersionMS>>16, v.FixedInfo.ProductVersionMS&0xFFFF,
		v.FixedInfo.ProductVersionLS>>16, v.FixedInfo.ProductVersionLS&0xFFFF)
}

// VersionInfo decodes the first VERSION resource of the file, or nil when the
// file carries none.
func (f *File) VersionInfo() (*VersionInfo, error) {
	payload := f.firstResourcePayload(RT_VERSION)
	if payload == nil {
		return nil, nil
	}
	return DecodeVersionInfo(payload)
}

// DecodeVersionInfo parses a VS_VERSIONINFO block. Every block shares one
// header shape: total length, value length, type, a NUL-terminated UTF-16
// key, then a 4-byte-aligned value and child blocks filling the rest.
func DecodeVersionInfo(data []byte) (*VersionInfo, error) {
	r := NewByteReader(data)
	info := &VersionInfo{}

	length, valueLength, _, key, valueOffset, err := readVersionBlockHeader(r, 0)
	if err != nil {
		return nil, err
	}
	if key != "VS_VERSION_INFO" {
		return nil, malformedErr("version resource root key %q", key)
	}

	if valueLength > 0 {
		var fixed VSFixedFileInfo
		if err = r.ReadInto(&fixed, valueOffset, sizeOf(fixed)); err != nil {
			return nil, err
		}
		if fixed.Signature != VS_FFI_SIGNATURE {
			return nil, malformedErr("VS_FIXEDFILEINFO signature 0x%X", fixed.Signature)
		}
		info.FixedInfo = &fixed
	}

	childOffset := align4(valueOffset + int(valueLength))
	end := MinInt(int(length), r.Len())
	for childOffset < end {
		next, err := info.decodeChild(r, childOffset, end)
		if err != nil {
			return nil, err
		}
		if next <= childOffset {
			break
		}
		childOffset = next
	}
	return info, nil
}

func (info *VersionInfo) decodeChild(r *ByteReader, offset, end int) (int, error) {
	length, _, _, key, valueOffset, err := readVersionBlockHeader(r, offset)
	if err != nil {
		return 0, err
	}
	blockEnd := MinInt(offset+int(length), end)

	switch key {
	case "StringFileInfo":
		pos := align4(valueOffset)
		for pos < blockEnd {
			next, err := info.decodeStringTable(r, pos, blockEnd)
			if err != nil {
				return 0, err
			}
			if next <= pos {
				break
			}
			pos = next
		}
	case "VarFileInfo":
		pos := align4(valueOffset)
		for pos < blockEnd {
			varLen, varValueLen, _, varKey, varValueOffset, err := readVersionBlockHeader(r, pos)
			if err != nil {
				return 0, err
			}
			if varKey == "Translation" {
				for i := 0; i+4 <= int(varValueLen); i += 4 {
					v, err := r.U32(varValueOffset + i)
					if err != nil {
						return 0, err
					}
					info.Translations = append(info.Translations, v)
				}
			}
			if varLen == 0 {
				break
			}
			pos = align4(pos + int(varLen))
		}
	}
	return align4(offset + int(length)), nil
}

func (info *VersionInfo) decodeStringTable(r *ByteReader, offset, end int) (int, error) {
	length, _, _, key, valueOffset, err := readVersionBlockHeader(r, offset)
	if err != nil {
		return 0, err
	}
	table := &VersionStringTable{LangID: key, Strings: ordereddict.NewDict()}
	blockEnd := MinInt(offset+int(length), end)

	pos := align4(valueOffset)
	for pos < blockEnd {
		strLen, strValueLen, _, strKey, strValueOffset, err := readVersionBlockHeader(r, pos)
		if err != nil {
			return 0, err
		}
		value := ""
		if strValueLen > 0 {
			// wValueLength counts UTF-16 units for string blocks.
			if value, err = r.WString(strValueOffset, int(strValueLen)); err != nil {
				return 0, err
			}
			for len(value) > 0 && value[len(value)-1] == 0 {
				value = value[:len(value)-1]
			}
		}
		table.Strings.Set(strKey, value)
		if strLen == 0 {
			break
		}
		pos = align4(pos + int(strLen))
	}

	info.StringTables = append(info.StringTables, table)
	return align4(offset + int(length)), nil
}

// readVersionBlockHeader decodes the common wLength/wValueLength/wType/szKey
// prefix and returns the offset of the aligned value area.
func readVersionBlockHeader(r *ByteReader, offset int) (length, valueLength, blockType uint16, key string, valueOffset int, err error) {
	if length, err = r.U16(offset); err != nil {
		return
	}
	if valueLength, err = r.U16(offset + 2); err != nil {
		return
	}
	if blockType, err = r.U16(offset + 4); err != nil {
		return
	}
	if key, err = r.WStringZ(offset + 6); err != nil {
		return
	}
	valueOffset = align4(offset + 6 + (len([]rune(key))+1)*2)
	return
}

func align4(x int) int {
	return (x + 3) &^ 3
}

// GroupIconEntry pairs a GRPICONDIRENTRY with nothing extra; the ID field
// names the RT_ICON resource carrying the image bits.
type GroupIcon struct {
	Type    uint16
	Entries []GrpIconDirEntry
}

// GroupIcons decodes every RT_GROUP_ICON resource in the file.
func (f *File) GroupIcons() ([]*GroupIcon, error) {
	var groups []*GroupIcon
	node := f.ResourcesByType(RT_GROUP_ICON)
	if node == nil {
		return nil, nil
	}
	for _, nameNode := range node.Children {
		for _, langNode := range nameNode.Children {
			if langNode.IsDirectory || langNode.Payload == nil {
				continue
			}
			group, err := decodeGroupIcon(langNode.Payload)
			if err != nil {
				return groups, err
			}
			groups = append(groups, group)
		}
	}
	return groups, nil
}

func decodeGroupIcon(data []byte) (*GroupIcon, error) {
	r := NewByteReader(data)
	iconType, err := r.U16(2)
	if err != nil {
		return nil, err
	}
	count, err := r.U16(4)
	if err != nil {
		return nil, err
	}

	group := &GroupIcon{Type: iconType}
	entrySize := sizeOf(GrpIconDirEntry{})
	for i := 0; i < int(count); i++ {
		var entry GrpIconDirEntry
		if err = r.ReadInto(&entry, 6+i*entrySize, entrySize); err != nil {
			return nil, err
		}
		group.Entries = append(group.Entries, entry)
	}
	return group, nil
}

// IconByID returns the payload of the RT_ICON resource with the given id.
func (f *File) IconByID(id uint16) []byte {
	node := f.ResourcesByType(RT_ICON)
	if node == nil {
		return nil
	}
	for _, nameNode := range node.Children {
		if nameNode.HasName || nameNode.ID != uint32(id) {
			continue
		}
		for _, langNode := range nameNode.Children {
			if !langNode.IsDirectory && langNode.Payload != nil {
				return langNode.Payload
			}
		}
	}
	return nil
}

// Manifest returns the embedded RT_MANIFEST XML, or "".
func (f *File) Manifest() string {
	return string(f.firstResourcePayload(RT_MANIFEST))
}

// StringTable decodes every RT_STRING block into an id-to-string map. Each
// block holds 16 counted UTF-16 strings; the block's resource id fixes the
// string ids as (blockID-1)*16 .. (blockID-1)*16+15.
func (f *File) StringTable() (map[uint32]string, error) {
	node := f.ResourcesByType(RT_STRING)
	if node == nil {
		return nil, nil
	}

	strings := make(map[uint32]string)
	for _, nameNode := range node.Children {
		if nameNode.HasName {
			continue
		}
		blockBase := (nameNode.ID - 1) * 16
		for _, langNode := range nameNode.Children {
			if langNode.IsDirectory || langNode.Payload == nil {
				continue
			}
			r := NewByteReader(langNode.Payload)
			offset := 0
			for i := uint32(0); i < 16; i++ {
				count, err := r.U16(offset)
				if err != nil {
					break
				}
				offset += 2
				if count == 0 {
					continue
				}
				s, err := r.WString(offset, int(count))
				if err != nil {
					return strings, err
				}
				strings[blockBase+i] = s
				offset += int(count) * 2
			}
		}
	}
	return strings, nil
}

func (f *File) firstResourcePayload(typeID uint32) []byte {
	node := f.ResourcesByType(typeID)
	if node == nil {
		return nil
	}
	for _, nameNode := range node.Children {
		for _, langNode := range nameNode.Children {
			if !langNode.IsDirectory && langNode.Payload != nil {
				return langNode.Payload
			}
		}
	}
	return nil
}

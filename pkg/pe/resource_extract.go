package pe

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extensions chosen per resource type when writing payloads to disk.
var resourceExtensions = map[uint32]string{
	RT_ICON:         "ico",
	RT_GROUP_ICON:   "ico",
	RT_BITMAP:       "bmp",
	RT_CURSOR:       "cur",
	RT_MANIFEST:     "xml",
	RT_HTML:         "html",
	RT_VERSION:      "bin",
	RT_STRING:       "bin",
	RT_MESSAGETABLE: "bin",
}

// ExtractedResource records one file written by ExtractResources.
type ExtractedResource struct {
	TypeName string
	Key      string
	Lang     uint32
	Path     string
	Size     int
}

// ExtractResources writes every resource leaf into dir, one file per
// type/name/language triple named <type>_<name-or-id>_<lang>.<ext>. Icon
// groups are reassembled into standalone .ico files and bitmaps get the
// BITMAPFILEHEADER the resource format strips; everything else is written
// as-is. Zero-filled payloads are skipped.
func (f *File) ExtractResources(dir string) ([]ExtractedResource, error) {
	if f.Resources == nil {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []ExtractedResource
	var firstErr error

	f.WalkResources(func(typeNode, nameNode, langNode *ResourceNode) {
		if langNode.ZeroFill || (langNode.Payload == nil && langNode.Data.Size > 0) {
			return
		}

		typeID := uint32(0)
		if !typeNode.HasName {
			typeID = typeNode.ID
		}
		if typeID == RT_ICON {
			// Individual icon images are folded into their group's .ico;
			// extracting them alone yields headerless fragments.
			return
		}

		payload := langNode.Payload
		ext := "bin"
		if e, ok := resourceExtensions[typeID]; ok {
			ext = e
		}

		switch typeID {
		case RT_GROUP_ICON:
			ico, err := f.buildIcoFile(payload)
			if err != nil {
				f.addWarning("rebuilding icon group %s: %v", nameNode.Key(), err)
				return
			}
			payload = ico
		case RT_BITMAP:
			payload = buildBmpFile(payload)
		}

		name := fmt.Sprintf("%s_%s_%d.%s",
			sanitizeFilename(typeNode.TypeName()), sanitizeFilename(nameNode.Key()), langNode.ID, ext)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		written = append(written, ExtractedResource{
			TypeName: typeNode.TypeName(),
			Key:      nameNode.Key(),
			Lang:     langNode.ID,
			Path:     path,
			Size:     len(payload),
		})
	})

	return written, firstErr
}

// buildIcoFile turns a GRPICONDIR payload plus its referenced RT_ICON images
// back into an ICO container: the directory entries' resource ids become file
// offsets into the concatenated image data.
func (f *File) buildIcoFile(groupData []byte) ([]byte, error) {
	group, err := decodeGroupIcon(groupData)
	if err != nil {
		return nil, err
	}

	type image struct {
		entry GrpIconDirEntry
		data  []byte
	}
	var images []image
	for _, entry := range group.Entries {
		data := f.IconByID(entry.ID)
		if data == nil {
			continue
		}
		images = append(images, image{entry: entry, data: data})
	}
	if len(images) == 0 {
		return nil, malformedErr("icon group references no existing RT_ICON resources")
	}

	const dirHeaderSize = 6
	const dirEntrySize = 16
	out := make([]byte, dirHeaderSize+dirEntrySize*len(images))
	binary.LittleEndian.PutUint16(out[2:], group.Type)
	binary.LittleEndian.PutUint16(out[4:], uint16(len(images)))

	offset := len(out)
	for i, img := range images {
		e := out[dirHeaderSize+i*dirEntrySize:]
		e[0] = img.entry.Width
		e[1] = img.entry.Height
		e[2] = img.entry.ColorCount
		e[3] = 0
		binary.LittleEndian.PutUint16(e[4:], img.entry.Planes)
		binary.LittleEndian.PutUint16(e[6:], img.entry.BitCount)
		binary.LittleEndian.PutUint32(e[8:], uint32(len(img.data)))
		binary.LittleEndian.PutUint32(e[12:], uint32(offset))
		offset += len(img.data)
	}
	for _, img := range images {
		out = append(out, img.data...)
	}
	return out, nil
}

// buildBmpFile prefixes a DIB resource payload with the 14-byte
// BITMAPFILEHEADER that on-disk .bmp files carry and resources omit.
func buildBmpFile(dib []byte) []byte {
	const fileHeaderSize = 14
	out := make([]byte, fileHeaderSize+len(dib))
	out[0], out[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(out[2:], uint32(len(out)))

	// Pixel data offset: file header + info header + any color table. The
	// claimed header size can exceed the payload in corrupt resources, so
	// every field read is bounds-checked against len(dib).
	pixelOffset := uint32(fileHeaderSize)
	if len(dib) >= 4 {
		infoSize := binary.LittleEndian.Uint32(dib)
		pixelOffset += infoSize
		if infoSize >= 16 && len(dib) >= 16 {
			bitCount := binary.LittleEndian.Uint16(dib[14:])
			if bitCount <= 8 {
				colors := uint32(0)
				if infoSize >= 36 && len(dib) >= 36 {
					colors = binary.LittleEndian.Uint32(dib[32:])
				}
				if colors == 0 {
					colors = 1 << bitCount
				}
				pixelOffset += colors * 4
			}
		}
	}
	binary.LittleEndian.PutUint32(out[10:], pixelOffset)
	copy(out[fileHeaderSize:], dib)
	return out
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}

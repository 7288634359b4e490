package pe

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/glaslos/ssdeep"
)

// Hashes carries the digest set computed over one byte range.
type Hashes struct {
	MD5    string
	SHA1   string
	SHA256 string
	SSDeep string
}

// HashBytes computes MD5, SHA-1 and SHA-256 over data in one pass, plus the
// ssdeep fuzzy hash. ssdeep needs a minimum input size; below it the field
// stays empty.
func HashBytes(data []byte) Hashes {
	md5Hash := md5.New()
	sha1Hash := sha1.New()
	sha256Hash := sha256.New()

	w := io.MultiWriter(md5Hash, sha1Hash, sha256Hash)
	_, _ = w.Write(data)

	h := Hashes{
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1Hash.Sum(nil)),
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
	}
	if fuzzy, err := ssdeep.FuzzyBytes(data); err == nil {
		h.SSDeep = fuzzy
	}
	return h
}

// FileHashes digests the whole image.
func (f *File) FileHashes() Hashes {
	return HashBytes(f.Data())
}

// SectionHashes digests one section's raw data.
func (f *File) SectionHashes(s *Section) Hashes {
	return HashBytes(f.SectionData(s))
}

// ResourceHash pairs one resource leaf with the digests of its payload.
type ResourceHash struct {
	TypeName string
	Key      string
	Lang     uint32
	Hashes   Hashes
}

// ResourceHashes digests every resource leaf payload, in tree order. Leaves
// whose data lies in virtual slack carry no payload and contribute nothing.
func (f *File) ResourceHashes() []ResourceHash {
	var hashes []ResourceHash
	f.WalkResources(func(typeNode, nameNode, langNode *ResourceNode) {
		if langNode.Payload == nil {
			return
		}
		hashes = append(hashes, ResourceHash{
			TypeName: typeNode.TypeName(),
			Key:      nameNode.Key(),
			Lang:     langNode.ID,
			Hashes:   HashBytes(langNode.Payload),
		})
	})
	return hashes
}

// ImportHash computes the import hash: the MD5 of the comma-joined list of
// "dll.function" pairs in on-disk order, everything lowercased, common module
// extensions stripped, and ordinal-only imports rendered through the ordinal
// tables or as "ord<N>". Delay-loaded imports do not participate.
func (f *File) ImportHash() string {
	var parts []string
	for _, imp := range f.Imports {
		if imp.Delayed {
			continue
		}
		dll := strings.ToLower(imp.DllName)
		for _, ext := range []string{".dll", ".ocx", ".sys", ".drv"} {
			if strings.HasSuffix(dll, ext) {
				dll = strings.TrimSuffix(dll, ext)
				break
			}
		}
		for _, entry := range imp.Entries {
			name := entry.Name
			if name == "" {
				name = OrdLookup(imp.DllName, uint64(entry.Ordinal), true)
			}
			parts = append(parts, dll+"."+strings.ToLower(name))
		}
	}
	if len(parts) == 0 {
		return ""
	}

	sum := md5.Sum([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

package pe

import (
	"fmt"
)

const maxDebugEntries = 256

// parseDebugDirectory walks the debug directory records and decodes the
// payload types we understand: CODEVIEW (RSDS and NB10), MISC and FPO.
// Unknown types keep their raw bytes only.
func (f *File) parseDebugDirectory(dir DataDirectory) error {
	count := int(dir.Size) / IMAGE_SIZEOF_DEBUG_DIRECTORY
	if count > maxDebugEntries {
		return malformedErr("debug directory count %d out of range", count)
	}

	offset, err := f.offsetFromRva(dir.VirtualAddress)
	if err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		entry := &DebugEntry{}
		if err = f.r.ReadInto(&entry.ImageDebugDirectory, offset, IMAGE_SIZEOF_DEBUG_DIRECTORY); err != nil {
			return err
		}
		offset += IMAGE_SIZEOF_DEBUG_DIRECTORY

		if name, ok := DebugTypes[entry.Type]; ok {
			entry.TypeName = name
		} else {
			entry.TypeName = fmt.Sprintf("%d", entry.Type)
		}

		// PointerToRawData is a file offset already; the payload usually
		// lives outside any section.
		if entry.SizeOfData != 0 && entry.PointerToRawData != 0 {
			data, err := f.r.Bytes(int(entry.PointerToRawData), int(entry.SizeOfData))
			if err != nil {
				f.addWarning("debug entry %d payload: %v", i, err)
			} else {
				entry.RawData = data
				f.decodeDebugPayload(entry)
			}
		}

		f.DebugEntries = append(f.DebugEntries, entry)
	}
	return nil
}

func (f *File) decodeDebugPayload(entry *DebugEntry) {
	dataOffset := int(entry.PointerToRawData)
	dataSize := len(entry.RawData)

	switch entry.Type {
	case IMAGE_DEBUG_TYPE_CODEVIEW:
		if dataSize < 4 {
			f.addWarning("codeview payload too small")
			return
		}
		signature, _ := f.r.U32(dataOffset)
		switch signature {
		case CV_PDB_70_SIGNATURE: // "RSDS"
			var cv CvInfoPdb70
			size := sizeOf(cv)
			if dataSize < size {
				f.addWarning("corrupt PDB 7.0 data")
				return
			}
			if err := f.r.ReadInto(&cv, dataOffset, size); err != nil {
				return
			}
			entry.Pdb70 = &cv
			if path, err := f.r.CString(dataOffset+size, MAX_STRING_LENGTH); err == nil {
				entry.PdbPath = string(path)
			}
		case CV_PDB_20_SIGNATURE: // "NB10"
			var cv CvInfoPdb20
			size := sizeOf(cv)
			if dataSize < size {
				f.addWarning("corrupt PDB 2.0 data")
				return
			}
			if err := f.r.ReadInto(&cv, dataOffset, size); err != nil {
				return
			}
			entry.Pdb20 = &cv
			if path, err := f.r.CString(dataOffset+size, MAX_STRING_LENGTH); err == nil {
				entry.PdbPath = string(path)
			}
		}

	case IMAGE_DEBUG_TYPE_MISC:
		var misc ImageDebugMisc
		size := sizeOf(misc)
		if dataSize < size {
			f.addWarning("corrupt MISC debug data")
			return
		}
		if err := f.r.ReadInto(&misc, dataOffset, size); err != nil {
			return
		}
		entry.Misc = &misc
		if misc.Unicode != 0 {
			if s, err := f.r.WStringZ(dataOffset + size); err == nil {
				entry.MiscData = s
			}
		} else if s, err := f.r.CString(dataOffset+size, dataSize-size); err == nil {
			entry.MiscData = string(s)
		}

	case IMAGE_DEBUG_TYPE_FPO:
		recordSize := sizeOf(FpoData{})
		for pos := 0; pos+recordSize <= dataSize; pos += recordSize {
			var fpo FpoData
			if err := f.r.ReadInto(&fpo, dataOffset+pos, recordSize); err != nil {
				return
			}
			entry.Fpo = append(entry.Fpo, fpo)
		}
	}
}

// PdbGUID returns the RSDS signature GUID of the first CODEVIEW entry, when
// one exists.
func (f *File) PdbGUID() (GUID, bool) {
	for _, entry := range f.DebugEntries {
		if entry.Pdb70 != nil {
			return GuidFromWindowsArray(entry.Pdb70.Signature), true
		}
	}
	return GUID{}, false
}

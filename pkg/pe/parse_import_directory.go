package pe

import (
	"bytes"
	"fmt"
)

const (
	// Caps against bogus descriptor chains in corrupt files.
	maxImportDescriptors = 4096
	maxImportThunks      = 0x10000
	maxInvalidImports    = 1000
)

// offsetFromRva resolves an RVA through the section table, falling back to a
// raw file offset for addresses inside the header region. Import and bound
// import tables are occasionally placed there by packed files.
func (f *File) offsetFromRva(rva uint32) (int, error) {
	off, err := f.mapper.Offset(rva)
	if err == nil {
		return off, nil
	}
	if int(rva) < f.headerEnd || (len(f.Sections) == 0 && int(rva) < f.r.Len()) {
		return int(rva), nil
	}
	return 0, err
}

// stringAtRva reads a NUL-terminated ANSI string at the given RVA.
func (f *File) stringAtRva(rva uint32) ([]byte, error) {
	off, err := f.offsetFromRva(rva)
	if err != nil {
		return nil, err
	}
	return f.r.CString(off, MAX_STRING_LENGTH)
}

// parseImportDirectory walks the import descriptor array and decodes each
// DLL's thunk table into ImportEntry values, in on-disk order.
func (f *File) parseImportDirectory(dir DataDirectory) error {
	rva := dir.VirtualAddress

	for count := 0; ; count++ {
		if count >= maxImportDescriptors {
			return malformedErr("import descriptor chain exceeds %d entries", maxImportDescriptors)
		}

		fileOffset, err := f.offsetFromRva(rva)
		if err != nil {
			return err
		}

		imp := &Import{}
		if err = f.r.ReadInto(&imp.ImageImportDescriptor, fileOffset, IMAGE_SIZEOF_IMPORT_DESCRIPTOR); err != nil {
			return err
		}
		if EmptyStruct(imp.ImageImportDescriptor) {
			break
		}
		rva += IMAGE_SIZEOF_IMPORT_DESCRIPTOR

		name, err := f.stringAtRva(imp.Name)
		if err != nil {
			f.addWarning("import descriptor %d has an unresolvable name RVA 0x%X", count, imp.Name)
			continue
		}
		if !validDosFilename(name) {
			name = invalidImportName
		}
		imp.DllName = string(name)

		// Prefer the import lookup table; fall back to the IAT when the
		// linker left OriginalFirstThunk zero.
		thunkRva := imp.OriginalFirstThunk
		if thunkRva == 0 {
			thunkRva = imp.FirstThunk
		}
		if thunkRva == 0 {
			f.addWarning("import descriptor for %s has no thunk table", imp.DllName)
			continue
		}

		entries, err := f.parseThunks(imp.DllName, thunkRva)
		if err != nil {
			f.addWarning("import thunks for %s: %v", imp.DllName, err)
			continue
		}
		imp.Entries = entries
		f.Imports = append(f.Imports, imp)
	}
	return nil
}

// parseThunks decodes the zero-terminated thunk array at rva. Thunks are 4
// bytes on PE32 and 8 on PE32+; the high bit marks an ordinal import, a
// clear high bit leaves the low 31 bits as the hint/name RVA.
func (f *File) parseThunks(dllName string, rva uint32) ([]ImportEntry, error) {
	var entries []ImportEntry

	thunkSize := uint32(4)
	if f.Is64() {
		thunkSize = 8
	}

	numInvalid := 0
	for idx := 0; ; idx++ {
		if idx >= maxImportThunks {
			return nil, malformedErr("thunk table exceeds %d entries", maxImportThunks)
		}

		off, err := f.offsetFromRva(rva)
		if err != nil {
			return nil, err
		}

		var value uint64
		var ordinal bool
		if f.Is64() {
			v, err := f.r.U64(off)
			if err != nil {
				return nil, err
			}
			value, ordinal = v, v&IMAGE_ORDINAL_FLAG64 != 0
		} else {
			v, err := f.r.U32(off)
			if err != nil {
				return nil, err
			}
			value, ordinal = uint64(v), v&IMAGE_ORDINAL_FLAG32 != 0
		}
		if value == 0 {
			break
		}

		entry := ImportEntry{ThunkRVA: rva}
		rva += thunkSize

		if ordinal {
			// An ordinal above 2^16 means the table is corrupt.
			if value&0x7FFFFFFF > 0xFFFF {
				return nil, malformedErr("thunk ordinal value 0x%X out of range", value)
			}
			entry.Kind = ImportByOrdinal
			entry.Ordinal = uint16(value & 0xFFFF)
			// Give pretty names to well known dll files.
			if funcname := OrdLookup(dllName, uint64(entry.Ordinal), false); funcname != "" {
				entry.Name = funcname
			}
		} else {
			hintRva := uint32(value & 0x7FFFFFFF)
			nameOff, err := f.offsetFromRva(hintRva)
			if err != nil {
				return nil, fmt.Errorf("hint/name table: %w", err)
			}
			if entry.Hint, err = f.r.U16(nameOff); err != nil {
				return nil, err
			}
			name, err := f.r.CString(nameOff+2, MAX_STRING_LENGTH)
			if err != nil {
				return nil, err
			}
			if !validFuncName(name) {
				name = invalidImportName
			}
			entry.Kind = ImportByName
			entry.Name = string(name)
		}

		// Some PEs interleave valid and invalid imports. Skip the invalid
		// entries instead of aborting, but give up when nothing legitimate
		// has shown up after many of them.
		if bytes.Equal([]byte(entry.Name), invalidImportName) {
			numInvalid++
			if numInvalid > maxInvalidImports && numInvalid == idx+1 {
				return nil, malformedErr("too many invalid import names")
			}
			continue
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// parseDelayImportDirectory decodes the delay-load descriptor table. Entries
// join Imports with the Delayed flag set; VA-based descriptors are rebased
// against ImageBase first.
func (f *File) parseDelayImportDirectory(dir DataDirectory) error {
	rva := dir.VirtualAddress

	for count := 0; ; count++ {
		if count >= maxImportDescriptors {
			return malformedErr("delay import descriptor chain exceeds %d entries", maxImportDescriptors)
		}

		off, err := f.offsetFromRva(rva)
		if err != nil {
			return err
		}

		var desc ImageDelayloadDescriptor
		if err = f.r.ReadInto(&desc, off, sizeOf(desc)); err != nil {
			return err
		}
		if EmptyStruct(desc) {
			break
		}
		rva += uint32(sizeOf(desc))

		nameRva := desc.DllNameRVA
		thunkRva := desc.ImportNameTableRVA
		if desc.Attributes&1 == 0 {
			// Attribute bit 0 clear means the fields hold virtual
			// addresses rather than RVAs.
			base := f.OptionalHeader.ImageBase
			nameRva = uint32(uint64(nameRva) - base)
			thunkRva = uint32(uint64(thunkRva) - base)
		}

		name, err := f.stringAtRva(nameRva)
		if err != nil {
			f.addWarning("delay import descriptor %d has an unresolvable name RVA 0x%X", count, nameRva)
			continue
		}
		if !validDosFilename(name) {
			name = invalidImportName
		}

		imp := &Import{DllName: string(name), Delayed: true}
		imp.OriginalFirstThunk = thunkRva
		imp.FirstThunk = desc.ImportAddressTableRVA
		imp.TimeDateStamp = desc.TimeDateStamp

		if thunkRva != 0 {
			entries, err := f.parseThunks(imp.DllName, thunkRva)
			if err != nil {
				f.addWarning("delay import thunks for %s: %v", imp.DllName, err)
				continue
			}
			imp.Entries = entries
		}
		f.Imports = append(f.Imports, imp)
	}
	return nil
}

// parseBoundImportDirectory decodes the bound import descriptor table. Module
// name fields are offsets relative to the start of the table, which lives in
// the header region.
func (f *File) parseBoundImportDirectory(dir DataDirectory) error {
	base, err := f.offsetFromRva(dir.VirtualAddress)
	if err != nil {
		return err
	}

	offset := base
	for count := 0; ; count++ {
		if count >= maxImportDescriptors {
			return malformedErr("bound import chain exceeds %d entries", maxImportDescriptors)
		}

		bound := &BoundImport{}
		if err = f.r.ReadInto(&bound.ImageBoundImportDescriptor, offset, sizeOf(bound.ImageBoundImportDescriptor)); err != nil {
			return err
		}
		if EmptyStruct(bound.ImageBoundImportDescriptor) {
			break
		}
		offset += sizeOf(bound.ImageBoundImportDescriptor)

		name, err := f.r.CString(base+int(bound.OffsetModuleName), MAX_STRING_LENGTH)
		if err != nil {
			return err
		}
		bound.ModuleName = string(name)

		for i := 0; i < int(bound.NumberOfModuleForwarderRefs); i++ {
			var fwd ImageBoundImportDescriptor
			if err = f.r.ReadInto(&fwd, offset, sizeOf(fwd)); err != nil {
				return err
			}
			offset += sizeOf(fwd)

			fwdName, err := f.r.CString(base+int(fwd.OffsetModuleName), MAX_STRING_LENGTH)
			if err != nil {
				return err
			}
			bound.Forwarders = append(bound.Forwarders, string(fwdName))
		}

		f.BoundImports = append(f.BoundImports, bound)
	}
	return nil
}

package pe

import (
	"sort"
)

const maxExportEntries = 0x10000

// parseExportDirectory decodes the export table: the address array indexed by
// unbiased ordinal, the parallel name and name-ordinal arrays, and forwarder
// strings for addresses that point back inside the directory's extent.
func (f *File) parseExportDirectory(dir DataDirectory) error {
	rva, size := dir.VirtualAddress, dir.Size

	dirOffset, err := f.offsetFromRva(rva)
	if err != nil {
		return err
	}

	exp := &ExportDirectory{}
	if err = f.r.ReadInto(&exp.ImageExportDirectory, dirOffset, sizeOf(exp.ImageExportDirectory)); err != nil {
		return err
	}

	if exp.Name != 0 {
		if name, err := f.stringAtRva(exp.Name); err == nil {
			exp.ModuleName = string(name)
		}
	}

	numFuncs := exp.NumberOfFunctions
	numNames := exp.NumberOfNames
	if numFuncs > maxExportEntries || numNames > maxExportEntries {
		return malformedErr("export counts out of range: %d functions, %d names", numFuncs, numNames)
	}
	if numNames > numFuncs {
		f.addWarning("export NumberOfNames %d exceeds NumberOfFunctions %d, clamping", numNames, numFuncs)
		numNames = numFuncs
	}

	funcsOffset, err := f.offsetFromRva(exp.AddressOfFunctions)
	if numFuncs > 0 && err != nil {
		return err
	}

	// Address array first, indexed by unbiased ordinal. Zero addresses are
	// unused slots and produce no entry.
	byOrdinal := make(map[uint32]*ExportEntry)
	for i := uint32(0); i < numFuncs; i++ {
		addr, err := f.r.U32(funcsOffset + int(i)*4)
		if err != nil {
			return err
		}
		if addr == 0 {
			continue
		}

		entry := &ExportEntry{Ordinal: exp.Base + i, Address: addr}

		// An address inside the export directory's own extent is not code
		// but a forwarder string, "TargetDll.TargetSymbol".
		if addr >= rva && addr < rva+size {
			if fwd, err := f.stringAtRva(addr); err == nil {
				entry.Forwarder = string(fwd)
			}
		}
		byOrdinal[i] = entry
	}

	// Name and name-ordinal arrays attach names to a subset of the slots.
	if numNames > 0 {
		namesOffset, err := f.offsetFromRva(exp.AddressOfNames)
		if err != nil {
			return err
		}
		ordinalsOffset, err := f.offsetFromRva(exp.AddressOfNameOrdinals)
		if err != nil {
			return err
		}

		for i := uint32(0); i < numNames; i++ {
			nameRva, err := f.r.U32(namesOffset + int(i)*4)
			if err != nil {
				return err
			}
			nameOrd, err := f.r.U16(ordinalsOffset + int(i)*2)
			if err != nil {
				return err
			}

			name, err := f.stringAtRva(nameRva)
			if err != nil || !validFuncName(name) {
				continue
			}
			if entry, ok := byOrdinal[uint32(nameOrd)]; ok {
				entry.Name = string(name)
			}
		}
	}

	for _, entry := range byOrdinal {
		exp.Entries = append(exp.Entries, *entry)
	}
	sort.Slice(exp.Entries, func(i, j int) bool {
		return exp.Entries[i].Ordinal < exp.Entries[j].Ordinal
	})

	f.Exports = exp
	return nil
}

package pe

// parseRelocationDirectory walks the base relocation blocks. Each block
// covers one 4KB page and carries 16-bit entries, type in the top nibble and
// page offset in the low 12 bits; a SizeOfBlock that cannot hold the header
// terminates the walk as malformed.
func (f *File) parseRelocationDirectory(dir DataDirectory) error {
	offset, err := f.offsetFromRva(dir.VirtualAddress)
	if err != nil {
		return err
	}
	end := offset + int(dir.Size)

	for offset < end {
		block := &RelocationBlock{}
		if err = f.r.ReadInto(&block.ImageBaseRelocation, offset, IMAGE_SIZEOF_BASE_RELOCATION); err != nil {
			return err
		}
		if block.SizeOfBlock < IMAGE_SIZEOF_BASE_RELOCATION {
			return malformedErr("relocation block at offset 0x%X has SizeOfBlock %d",
				offset, block.SizeOfBlock)
		}

		count := (int(block.SizeOfBlock) - IMAGE_SIZEOF_BASE_RELOCATION) / 2
		entryOffset := offset + IMAGE_SIZEOF_BASE_RELOCATION
		for i := 0; i < count; i++ {
			value, err := f.r.U16(entryOffset + i*2)
			if err != nil {
				return err
			}
			block.Entries = append(block.Entries, RelocationEntry{
				Type:   value >> 12,
				Offset: value & 0x0FFF,
			})
		}

		f.Relocations = append(f.Relocations, block)
		offset += int(block.SizeOfBlock)
	}
	return nil
}

package pe

// parseLoadConfigDirectory decodes the load configuration directory. The
// structure has grown over Windows releases; only the stable prefix through
// the SEH handler table is read, clamped to the smaller of the directory size
// and the structure's own Size field.
func (f *File) parseLoadConfigDirectory(dir DataDirectory) error {
	offset, err := f.offsetFromRva(dir.VirtualAddress)
	if err != nil {
		return err
	}

	cfg := &LoadConfig{Is64: f.Is64()}
	if f.Is64() {
		var raw ImageLoadConfigDirectory64
		if err = f.readLoadConfigPrefix(&raw, offset, dir.Size, uint32(sizeOf(raw))); err != nil {
			return err
		}
		cfg.Size = raw.Size
		cfg.TimeDateStamp = raw.TimeDateStamp
		cfg.GlobalFlagsClear = raw.GlobalFlagsClear
		cfg.GlobalFlagsSet = raw.GlobalFlagsSet
		cfg.CriticalSectionDefaultTimeout = raw.CriticalSectionDefaultTimeout
		cfg.SecurityCookie = raw.SecurityCookie
		cfg.SEHandlerTable = raw.SEHandlerTable
		cfg.SEHandlerCount = raw.SEHandlerCount
	} else {
		var raw ImageLoadConfigDirectory32
		if err = f.readLoadConfigPrefix(&raw, offset, dir.Size, uint32(sizeOf(raw))); err != nil {
			return err
		}
		cfg.Size = raw.Size
		cfg.TimeDateStamp = raw.TimeDateStamp
		cfg.GlobalFlagsClear = raw.GlobalFlagsClear
		cfg.GlobalFlagsSet = raw.GlobalFlagsSet
		cfg.CriticalSectionDefaultTimeout = raw.CriticalSectionDefaultTimeout
		cfg.SecurityCookie = uint64(raw.SecurityCookie)
		cfg.SEHandlerTable = uint64(raw.SEHandlerTable)
		cfg.SEHandlerCount = uint64(raw.SEHandlerCount)
	}

	f.LoadConfig = cfg
	return nil
}

// readLoadConfigPrefix decodes up to structSize bytes of the directory,
// zero-padding when the file carries a shorter (older) variant.
func (f *File) readLoadConfigPrefix(iface interface{}, offset int, dirSize, structSize uint32) error {
	available := MinUInt32(dirSize, structSize)
	if available == 0 {
		return malformedErr("load config directory is empty")
	}

	chunk, err := f.r.Bytes(offset, int(available))
	if err != nil {
		return err
	}
	padded := make([]byte, structSize)
	copy(padded, chunk)
	return NewByteReader(padded).ReadInto(iface, 0, int(structSize))
}

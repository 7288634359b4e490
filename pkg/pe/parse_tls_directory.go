package pe

const maxTlsCallbacks = 1024

// parseTlsDirectory decodes the TLS directory and follows AddressOfCallBacks
// to collect the zero-terminated callback array. The directory stores virtual
// addresses, so ImageBase is subtracted before mapping.
func (f *File) parseTlsDirectory(dir DataDirectory) error {
	offset, err := f.offsetFromRva(dir.VirtualAddress)
	if err != nil {
		return err
	}

	tls := &TlsDirectory{Is64: f.Is64()}
	if f.Is64() {
		var raw ImageTlsDirectory64
		if err = f.r.ReadInto(&raw, offset, sizeOf(raw)); err != nil {
			return err
		}
		tls.StartAddressOfRawData = raw.StartAddressOfRawData
		tls.EndAddressOfRawData = raw.EndAddressOfRawData
		tls.AddressOfIndex = raw.AddressOfIndex
		tls.AddressOfCallBacks = raw.AddressOfCallBacks
		tls.SizeOfZeroFill = raw.SizeOfZeroFill
		tls.Characteristics = raw.Characteristics
	} else {
		var raw ImageTlsDirectory32
		if err = f.r.ReadInto(&raw, offset, sizeOf(raw)); err != nil {
			return err
		}
		tls.StartAddressOfRawData = uint64(raw.StartAddressOfRawData)
		tls.EndAddressOfRawData = uint64(raw.EndAddressOfRawData)
		tls.AddressOfIndex = uint64(raw.AddressOfIndex)
		tls.AddressOfCallBacks = uint64(raw.AddressOfCallBacks)
		tls.SizeOfZeroFill = raw.SizeOfZeroFill
		tls.Characteristics = raw.Characteristics
	}

	if tls.AddressOfCallBacks != 0 {
		base := f.OptionalHeader.ImageBase
		if tls.AddressOfCallBacks > base {
			callbackRva := uint32(tls.AddressOfCallBacks - base)
			if err := f.parseTlsCallbacks(tls, callbackRva); err != nil {
				f.addWarning("TLS callback array: %v", err)
			}
		} else {
			f.addWarning("TLS AddressOfCallBacks 0x%X below ImageBase", tls.AddressOfCallBacks)
		}
	}

	f.Tls = tls
	return nil
}

func (f *File) parseTlsCallbacks(tls *TlsDirectory, rva uint32) error {
	offset, err := f.offsetFromRva(rva)
	if err != nil {
		return err
	}

	width := 4
	if tls.Is64 {
		width = 8
	}

	for i := 0; i < maxTlsCallbacks; i++ {
		var va uint64
		if tls.Is64 {
			va, err = f.r.U64(offset + i*width)
		} else {
			var v uint32
			v, err = f.r.U32(offset + i*width)
			va = uint64(v)
		}
		if err != nil {
			return err
		}
		if va == 0 {
			return nil
		}
		tls.Callbacks = append(tls.Callbacks, va)
	}
	return malformedErr("TLS callback array exceeds %d entries", maxTlsCallbacks)
}

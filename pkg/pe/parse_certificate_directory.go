package pe

// parseCertificateDirectory walks the attribute certificate table. Unlike
// every other directory its VirtualAddress is a plain file offset, and
// successive WIN_CERTIFICATE records are aligned to 8 bytes. The blobs are
// carried opaque; nothing here validates a signature.
func (f *File) parseCertificateDirectory(dir DataDirectory) error {
	offset := int(dir.VirtualAddress)
	end := offset + int(dir.Size)

	for offset < end {
		cert := &Certificate{}
		if err := f.r.ReadInto(&cert.WinCertificateHeader, offset, IMAGE_SIZEOF_WIN_CERTIFICATE); err != nil {
			return err
		}
		if cert.Length < IMAGE_SIZEOF_WIN_CERTIFICATE {
			return malformedErr("certificate at offset 0x%X has length %d", offset, cert.Length)
		}

		data, err := f.r.Bytes(offset+IMAGE_SIZEOF_WIN_CERTIFICATE,
			int(cert.Length)-IMAGE_SIZEOF_WIN_CERTIFICATE)
		if err != nil {
			return err
		}
		cert.Data = data
		f.Certificates = append(f.Certificates, cert)

		offset += int(AlignUpUInt32(cert.Length, WIN_CERTIFICATE_ALIGNMENT))
	}
	return nil
}

// CertificateTypeName renders the wCertificateType field.
func (c *Certificate) CertificateTypeName() string {
	switch c.CertificateType {
	case WIN_CERT_TYPE_X509:
		return "X509"
	case WIN_CERT_TYPE_PKCS_SIGNED_DATA:
		return "PKCS_SIGNED_DATA"
	case WIN_CERT_TYPE_TS_STACK_SIGNED:
		return "TS_STACK_SIGNED"
	}
	return "UNKNOWN"
}

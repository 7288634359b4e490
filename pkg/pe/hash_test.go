package pe

import (
	"bytes"
	"testing"
)

func TestHashBytesKnownVectors(t *testing.T) {
	h := HashBytes([]byte("abc"))
	if h.MD5 != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("MD5 = %s", h.MD5)
	}
	if h.SHA1 != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("SHA1 = %s", h.SHA1)
	}
	if h.SHA256 != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("SHA256 = %s", h.SHA256)
	}
	// Too small for a fuzzy hash.
	if h.SSDeep != "" {
		t.Errorf("SSDeep = %q for 3-byte input", h.SSDeep)
	}
}

func TestHashBytesSSDeep(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	h := HashBytes(data)
	if h.SSDeep == "" {
		t.Error("expected a fuzzy hash for a 9KB input")
	}
}

func TestSectionHashes(t *testing.T) {
	f := NewFile(buildTestImage(t), "synth.exe")
	if !f.IsValid() {
		t.Fatalf("parse failed: %v", f.InvalidReason())
	}
	text := f.SectionByName(".text")
	if text == nil {
		t.Fatal("no .text section")
	}
	got := f.SectionHashes(text)
	want := HashBytes(f.Data()[0x200:0x400])
	if got.SHA256 != want.SHA256 {
		t.Errorf("section hash %s, want %s", got.SHA256, want.SHA256)
	}
}

func TestEntropy(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want float64
	}{
		{"empty", nil, 0},
		{"uniform single byte", bytes.Repeat([]byte{0x41}, 1024), 0},
		{"two symbols", bytes.Repeat([]byte{0, 1}, 512), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Entropy(tt.data)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Entropy = %f, want %f", got, tt.want)
			}
		})
	}

	full := make([]byte, 256)
	for i := range full {
		full[i] = byte(i)
	}
	if got := Entropy(full); got < 7.999 {
		t.Errorf("Entropy over all byte values = %f, want ~8", got)
	}
}

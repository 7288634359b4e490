package pe

import (
	"math"
	"regexp"
	"sort"
)

// Maximum length of a string pulled out of the file. Prevents loading massive
// amounts of data from memory mapped files on corrupt length fields; strings
// longer than 1MB should be rather rare.
const (
	MAX_STRING_LENGTH = 0x100000 // 2^20
)

func MaxInt(x, y int) int {
	if x > y {
		return x
	}
	return y
}

func MinInt(x, y int) int {
	if x < y {
		return x
	}
	return y
}

func MaxUInt32(x, y uint32) uint32 {
	if x > y {
		return x
	}
	return y
}

func MinUInt32(x, y uint32) uint32 {
	if x < y {
		return x
	}
	return y
}

// Returns whether this value is a power of 2
func PowerOfTwo(val uint32) bool {
	return (val != 0) && (val&(val-1)) == 0x0
}

// Helper functions to align numbers

func AlignDownUInt32(x, align uint32) uint32 {
	return x & ^(align - 1)
}

func AlignUpUInt32(x, align uint32) uint32 {
	if (x & (align - 1)) != 0 {
		return AlignDownUInt32(x, align) + align
	}
	return x
}

func AlignDownUInt64(x, align uint64) uint64 {
	return x & ^(align - 1)
}

func AlignUpUInt64(x, align uint64) uint64 {
	if (x & (align - 1)) != 0 {
		return AlignDownUInt64(x, align) + align
	}
	return x
}

func sortStrings(values []string) {
	sort.Strings(values)
}

// Entropy computes the Shannon entropy of the given bytes in bits per byte,
// 0.0 for empty input up to 8.0 for uniformly random data.
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0.0
	}
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	total := float64(len(data))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// Check if an imported name uses the valid accepted characters expected in
// mangled function names. If the symbol's characters don't fall within this
// charset we will assume the name is invalid.
var validFuncNameRegex = regexp.MustCompile(`^[\pL\pN_\?@$\(\)]+$`)

// Placeholder recorded for imported symbols whose name fails validation.
var invalidImportName = []byte("<invalid>")

func validFuncName(name []byte) bool {
	return validFuncNameRegex.Match(name)
}

// Valid FAT32 8.3 short filename characters according to:
//  http://en.wikipedia.org/wiki/8.3_filename
// This will help decide whether DLL ASCII names are likely
// to be valid or otherwise corrupt data
//
// The filename length is not checked because the DLLs filename
// can be longer that the 8.3.
var validDOSNameRegex = regexp.MustCompile("^[\\pL\\pN!//$%&'\\(\\)`\\-@^_\\{\\}~+,.;=\\[\\]]+$")

func validDosFilename(name []byte) bool {
	return validDOSNameRegex.Match(name)
}

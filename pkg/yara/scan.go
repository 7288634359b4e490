package yara

import (
	"os"
)

// Cap on recorded offsets per pattern; scanning continues to the cap and
// stops, which is enough for every supported condition form.
const maxOffsetsPerPattern = 64

// ScanBytes evaluates every rule against data and returns the rules that
// fired, in rule file order.
func (rs *RuleSet) ScanBytes(data []byte) []Match {
	var matches []Match
	for _, rule := range rs.Rules {
		matched := make(map[string][]int, len(rule.Strings))
		for _, pattern := range rule.Strings {
			if offsets := findPattern(data, pattern); len(offsets) > 0 {
				matched[pattern.ID] = offsets
			}
		}
		if !rule.Condition.Eval(data, matched) {
			continue
		}

		m := Match{RuleName: rule.Name, Tags: rule.Tags, Meta: rule.Meta}
		for _, pattern := range rule.Strings {
			if offsets, ok := matched[pattern.ID]; ok {
				m.Strings = append(m.Strings, StringMatch{ID: pattern.ID, Offsets: offsets})
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// ScanFile reads the named file and scans it.
func (rs *RuleSet) ScanFile(path string) ([]Match, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return rs.ScanBytes(data), nil
}

func findPattern(data []byte, pattern *Pattern) []int {
	if pattern.IsHex {
		return findHex(data, pattern.HexByte, pattern.HexMask)
	}

	var offsets []int
	// A bare string matches its ASCII form; the wide modifier switches to
	// UTF-16LE unless ascii is also present, in which case both apply.
	if !pattern.Wide || pattern.ASCII {
		offsets = findText(data, pattern.Text, pattern.Nocase, offsets)
	}
	if pattern.Wide {
		wide := make([]byte, 0, len(pattern.Text)*2)
		for _, b := range pattern.Text {
			wide = append(wide, b, 0)
		}
		offsets = findText(data, wide, pattern.Nocase, offsets)
	}
	return offsets
}

func findText(data, needle []byte, nocase bool, offsets []int) []int {
	if len(needle) == 0 || len(needle) > len(data) {
		return offsets
	}
	for i := 0; i+len(needle) <= len(data); i++ {
		if len(offsets) >= maxOffsetsPerPattern {
			return offsets
		}
		if textMatchAt(data, needle, i, nocase) {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

func textMatchAt(data, needle []byte, at int, nocase bool) bool {
	for j, want := range needle {
		got := data[at+j]
		if nocase {
			got = lowerByte(got)
			want = lowerByte(want)
		}
		if got != want {
			return false
		}
	}
	return true
}

func lowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func findHex(data, bytes []byte, mask []bool) []int {
	var offsets []int
	if len(bytes) == 0 || len(bytes) > len(data) {
		return nil
	}
	for i := 0; i+len(bytes) <= len(data); i++ {
		if len(offsets) >= maxOffsetsPerPattern {
			return offsets
		}
		hit := true
		for j := range bytes {
			if !mask[j] && data[i+j] != bytes[j] {
				hit = false
				break
			}
		}
		if hit {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

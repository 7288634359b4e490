package yara

import (
	"fmt"
	"testing"
)

func mustParse(t *testing.T, src string) *RuleSet {
	t.Helper()
	rs, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	return rs
}

func TestScanTextOffsets(t *testing.T) {
	rs := mustParse(t, `rule r {
    strings:
        $a = "abc"
    condition:
        $a
}`)
	matches := rs.ScanBytes([]byte("xxabcyyabc"))
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	m := matches[0]
	if m.RuleName != "r" {
		t.Errorf("rule = %s", m.RuleName)
	}
	if len(m.Strings) != 1 || m.Strings[0].ID != "$a" {
		t.Fatalf("strings = %+v", m.Strings)
	}
	offsets := m.Strings[0].Offsets
	if len(offsets) != 2 || offsets[0] != 2 || offsets[1] != 7 {
		t.Errorf("offsets = %v, want [2 7]", offsets)
	}
}

func TestScanNocase(t *testing.T) {
	rs := mustParse(t, `rule r {
    strings:
        $a = "MalWare" nocase
    condition:
        $a
}`)
	if got := rs.ScanBytes([]byte("...malware...")); len(got) != 1 {
		t.Errorf("nocase scan found %d matches, want 1", len(got))
	}
	if got := rs.ScanBytes([]byte("...malwar...")); len(got) != 0 {
		t.Errorf("partial text matched")
	}
}

func TestScanWide(t *testing.T) {
	rs := mustParse(t, `rule r {
    strings:
        $a = "cmd" wide
    condition:
        $a
}`)
	wide := []byte{'c', 0, 'm', 0, 'd', 0}
	if got := rs.ScanBytes(wide); len(got) != 1 {
		t.Error("wide pattern missed UTF-16 text")
	}
	// Without the ascii modifier the narrow form must not match.
	if got := rs.ScanBytes([]byte("cmd")); len(got) != 0 {
		t.Error("wide-only pattern matched ASCII text")
	}

	both := mustParse(t, `rule r {
    strings:
        $a = "cmd" wide ascii
    condition:
        $a
}`)
	if got := both.ScanBytes([]byte("cmd")); len(got) != 1 {
		t.Error("wide ascii pattern missed ASCII text")
	}
}

func TestScanHexWildcards(t *testing.T) {
	rs := mustParse(t, `rule r {
    strings:
        $ep = { 60 BE ?? ?? 00 }
    condition:
        $ep
}`)
	if got := rs.ScanBytes([]byte{0x90, 0x60, 0xBE, 0x11, 0x22, 0x00}); len(got) != 1 {
		t.Error("hex pattern with wildcards missed")
	}
	if got := rs.ScanBytes([]byte{0x60, 0xBE, 0x11, 0x22, 0x01}); len(got) != 0 {
		t.Error("fixed byte mismatch still matched")
	}
}

func TestScanAtOffset(t *testing.T) {
	rs := mustParse(t, `rule r {
    strings:
        $mz = { 4D 5A }
    condition:
        $mz at 0
}`)
	if got := rs.ScanBytes([]byte("MZ rest of file")); len(got) != 1 {
		t.Error("MZ at 0 missed")
	}
	if got := rs.ScanBytes([]byte(" MZ")); len(got) != 0 {
		t.Error("MZ not at 0 matched")
	}
}

func TestScanOfThem(t *testing.T) {
	src := `rule r {
    strings:
        $a = "alpha"
        $b = "bravo"
        $c = "charlie"
    condition:
        %s
}`
	tests := []struct {
		cond string
		data string
		want int
	}{
		{"any of them", "has alpha only", 1},
		{"any of them", "nothing here", 0},
		{"all of them", "alpha bravo charlie", 1},
		{"all of them", "alpha bravo", 0},
		{"2 of them", "alpha charlie", 1},
		{"2 of them", "charlie", 0},
	}
	for _, tt := range tests {
		t.Run(tt.cond+"/"+tt.data, func(t *testing.T) {
			rs := mustParse(t, fmt.Sprintf(src, tt.cond))
			if got := rs.ScanBytes([]byte(tt.data)); len(got) != tt.want {
				t.Errorf("matches = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestScanBooleanOperators(t *testing.T) {
	rs := mustParse(t, `rule r {
    strings:
        $a = "good"
        $b = "bad"
    condition:
        $a and not $b
}`)
	if got := rs.ScanBytes([]byte("good stuff")); len(got) != 1 {
		t.Error("and/not condition missed")
	}
	if got := rs.ScanBytes([]byte("good but bad")); len(got) != 0 {
		t.Error("negated pattern present but rule fired")
	}

	grouped := mustParse(t, `rule r {
    strings:
        $a = "one"
        $b = "two"
        $c = "three"
    condition:
        ($a or $b) and $c
}`)
	if got := grouped.ScanBytes([]byte("two three")); len(got) != 1 {
		t.Error("grouped condition missed")
	}
	if got := grouped.ScanBytes([]byte("one two")); len(got) != 0 {
		t.Error("grouped condition fired without $c")
	}
}

func TestScanIntReads(t *testing.T) {
	mz := []byte{'M', 'Z', 0x90, 0x00, 0x03}

	tests := []struct {
		name string
		cond string
		data []byte
		want int
	}{
		{"uint16 eq", "uint16(0) == 0x5A4D", mz, 1},
		{"uint16 ne", "uint16(0) != 0x5A4D", mz, 0},
		{"uint8 eq", "uint8(2) == 0x90", mz, 1},
		{"uint32 eq", "uint32(0) == 0x00905A4D", mz, 1},
		{"read past end", "uint32(3) == 0", mz, 0},
		{"empty data", "uint16(0) == 0x5A4D", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := mustParse(t, "rule r { condition: "+tt.cond+" }")
			if got := rs.ScanBytes(tt.data); len(got) != tt.want {
				t.Errorf("matches = %d, want %d", len(got), tt.want)
			}
		})
	}
}

// The magic bundle must classify plain text, not just binary signatures.
func TestMagicBundleIdentifiesPlainText(t *testing.T) {
	rs, err := LoadRules("../../resources/magic.yara")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	text := []byte("This is an ordinary plain text file with nothing special in it.\n")
	desc := ""
	for _, m := range rs.ScanBytes(text) {
		if v, ok := m.Meta.Get("description"); ok {
			if s, _ := v.(string); s != "" {
				desc = s
			}
		}
	}
	if desc == "" {
		t.Fatal("no description match for plain text")
	}

	// Binary magic must not fall through to the text rule.
	elf := []byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0}
	for _, m := range rs.ScanBytes(elf) {
		if m.RuleName == "plain_text" {
			t.Error("ELF magic matched the plain text rule")
		}
	}
}

func TestScanRuleOrderAndMeta(t *testing.T) {
	rs := mustParse(t, `
rule second_in_file {
    meta:
        description = "fires second"
    strings:
        $x = "hit"
    condition:
        $x
}
rule also_fires {
    meta:
        description = "fires too"
    condition:
        true
}
rule never_fires {
    condition:
        false
}`)
	matches := rs.ScanBytes([]byte("a hit"))
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].RuleName != "second_in_file" || matches[1].RuleName != "also_fires" {
		t.Errorf("order = %s, %s", matches[0].RuleName, matches[1].RuleName)
	}
	if v, _ := matches[0].Meta.Get("description"); v != "fires second" {
		t.Errorf("meta = %v", v)
	}
}

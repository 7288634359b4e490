package yara

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestParseRule(t *testing.T) {
	src := `
// comment before the rule
rule upx_packed : packer suspicious
{
    meta:
        packer_name = "UPX"
        severity = 2
        experimental = false
    strings:
        $a = "UPX0" ascii
        $b = "secret" nocase wide
        $ep = { 60 BE ?? ?? ?? 00 8D }
    condition:
        $a or $b or $ep
}
`
	rs, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rs.Rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(rs.Rules))
	}
	rule := rs.Rules[0]

	if rule.Name != "upx_packed" {
		t.Errorf("name = %s", rule.Name)
	}
	if len(rule.Tags) != 2 || rule.Tags[0] != "packer" || rule.Tags[1] != "suspicious" {
		t.Errorf("tags = %v", rule.Tags)
	}
	if got := rule.MetaString("packer_name"); got != "UPX" {
		t.Errorf("packer_name = %q", got)
	}
	if v, _ := rule.Meta.Get("severity"); v != int64(2) {
		t.Errorf("severity = %v", v)
	}
	if v, _ := rule.Meta.Get("experimental"); v != false {
		t.Errorf("experimental = %v", v)
	}

	if len(rule.Strings) != 3 {
		t.Fatalf("strings = %d, want 3", len(rule.Strings))
	}
	a, b, ep := rule.Strings[0], rule.Strings[1], rule.Strings[2]
	if a.ID != "$a" || string(a.Text) != "UPX0" || !a.ASCII || a.Nocase {
		t.Errorf("$a = %+v", a)
	}
	if b.ID != "$b" || !b.Nocase || !b.Wide {
		t.Errorf("$b = %+v", b)
	}
	if !ep.IsHex || len(ep.HexByte) != 7 {
		t.Fatalf("$ep = %+v", ep)
	}
	wantMask := []bool{false, false, true, true, true, false, false}
	for i, w := range wantMask {
		if ep.HexMask[i] != w {
			t.Errorf("HexMask[%d] = %t, want %t", i, ep.HexMask[i], w)
		}
	}
	if ep.HexByte[0] != 0x60 || ep.HexByte[1] != 0xBE || ep.HexByte[6] != 0x8D {
		t.Errorf("HexByte = %x", ep.HexByte)
	}
}

func TestParseMultipleRules(t *testing.T) {
	src := `
rule first { condition: true }
rule second {
    strings:
        $mz = { 4D 5A }
    condition:
        $mz at 0
}
`
	rs, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rs.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rs.Rules))
	}
	if rs.Rules[0].Name != "first" || rs.Rules[1].Name != "second" {
		t.Errorf("names = %s, %s", rs.Rules[0].Name, rs.Rules[1].Name)
	}
}

func TestParseStringEscapes(t *testing.T) {
	rs, err := ParseRules(`rule r {
    strings:
        $s = "tab\there\x00quote\""
    condition:
        $s
}`)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	want := "tab\there\x00quote\""
	if got := string(rs.Rules[0].Strings[0].Text); got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty input", ""},
		{"no condition", `rule r { strings: $a = "x" }`},
		{"unknown section", `rule r { bogus: condition: true }`},
		{"unterminated string", `rule r { strings: $a = "x`},
		{"odd hex digits", `rule r { strings: $a = { 4D5 } condition: $a }`},
		{"lone wildcard nibble", `rule r { strings: $a = { 4D ? 5A } condition: $a }`},
		{"missing rule keyword", `norule r { condition: true }`},
		{"bad meta value", `rule r { meta: x = maybe condition: true }`},
		{"bad condition token", `rule r { condition: , }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules(tt.src)
			if !errors.Is(err, ErrRuleLoad) {
				t.Errorf("got %v, want ErrRuleLoad", err)
			}
		})
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	if _, err := LoadRules("does-not-exist.yara"); !errors.Is(err, ErrRuleLoad) {
		t.Errorf("got %v, want ErrRuleLoad", err)
	}
}

// The rule files shipped with the tool must stay inside the supported
// language subset.
func TestBundledRuleFilesParse(t *testing.T) {
	paths, err := filepath.Glob("../../resources/*.yara")
	if err != nil || len(paths) == 0 {
		t.Skipf("no bundled rule files found: %v", err)
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			rs, err := LoadRules(path)
			if err != nil {
				t.Fatalf("LoadRules: %v", err)
			}
			if len(rs.Rules) == 0 {
				t.Error("no rules parsed")
			}
		})
	}
}

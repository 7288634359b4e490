// Package yara implements a scanner for a practical subset of the YARA rule
// language: rule blocks with metadata, text strings with nocase/wide/ascii
// modifiers, hex strings with ?? wildcards, and conditions built from string
// references, boolean operators and the "N of them" quantifiers.
package yara

import (
	"errors"
	"fmt"

	"github.com/Velocidex/ordereddict"
)

// ErrRuleLoad classifies rule file syntax and IO failures.
var ErrRuleLoad = errors.New("rule load failed")

func loadErr(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrRuleLoad)...)
}

// Rule is one parsed rule block.
type Rule struct {
	Name      string
	Tags      []string
	Meta      *ordereddict.Dict
	Strings   []*Pattern
	Condition Condition
}

// MetaString returns a metadata value as a string, or "".
func (r *Rule) MetaString(key string) string {
	if r.Meta == nil {
		return ""
	}
	if v, ok := r.Meta.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Pattern is one entry of a rule's strings section. Text patterns carry the
// literal plus modifiers; hex patterns carry byte values with a wildcard mask.
type Pattern struct {
	ID string

	// Text pattern
	Text   []byte
	Nocase bool
	Wide   bool
	ASCII  bool

	// Hex pattern
	IsHex   bool
	HexByte []byte
	HexMask []bool // true = wildcard, matches any byte
}

// StringMatch records where one pattern matched.
type StringMatch struct {
	ID      string
	Offsets []int
}

// Match is one rule that fired against a scan target.
type Match struct {
	RuleName string
	Tags     []string
	Meta     *ordereddict.Dict
	Strings  []StringMatch
}

// Condition is the evaluable form of a rule's condition section. matched maps
// pattern id to its found offsets.
type Condition interface {
	Eval(data []byte, matched map[string][]int) bool
}

type andExpr struct{ left, right Condition }

func (e andExpr) Eval(data []byte, m map[string][]int) bool {
	return e.left.Eval(data, m) && e.right.Eval(data, m)
}

type orExpr struct{ left, right Condition }

func (e orExpr) Eval(data []byte, m map[string][]int) bool {
	return e.left.Eval(data, m) || e.right.Eval(data, m)
}

type notExpr struct{ inner Condition }

func (e notExpr) Eval(data []byte, m map[string][]int) bool {
	return !e.inner.Eval(data, m)
}

// stringRef is `$id`, optionally pinned to one offset with `at N`.
type stringRef struct {
	id       string
	at       int64
	pinnedAt bool
}

func (e stringRef) Eval(data []byte, m map[string][]int) bool {
	offsets, ok := m[e.id]
	if !ok || len(offsets) == 0 {
		return false
	}
	if !e.pinnedAt {
		return true
	}
	for _, off := range offsets {
		if int64(off) == e.at {
			return true
		}
	}
	return false
}

// ofThem is `any of them`, `all of them` or `N of them`.
type ofThem struct {
	count int // 0 = all
	ids   []string
}

func (e ofThem) Eval(data []byte, m map[string][]int) bool {
	hits := 0
	for _, id := range e.ids {
		if len(m[id]) > 0 {
			hits++
		}
	}
	if e.count == 0 {
		return hits == len(e.ids) && len(e.ids) > 0
	}
	return hits >= e.count
}

// boolLit covers conditions that reduce to a constant, like `true`.
type boolLit bool

func (e boolLit) Eval(data []byte, m map[string][]int) bool {
	return bool(e)
}

// intRead is `uint8(N)`, `uint16(N)` or `uint32(N)` compared against a
// literal, the little-endian reads YARA provides for magic checks.
type intRead struct {
	width  int
	offset int64
	value  uint64
	equal  bool
}

func (e intRead) Eval(data []byte, m map[string][]int) bool {
	off := int(e.offset)
	if off < 0 || off+e.width > len(data) {
		return false
	}
	var v uint64
	for i := e.width - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[off+i])
	}
	if e.equal {
		return v == e.value
	}
	return v != e.value
}

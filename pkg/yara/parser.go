package yara

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/Velocidex/ordereddict"
)

// RuleSet is an ordered collection of parsed rules.
type RuleSet struct {
	Rules []*Rule
}

// LoadRules reads and parses one rule file.
func LoadRules(path string) (*RuleSet, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErr("reading %s: %v", path, err)
	}
	rs, err := ParseRules(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// ParseRules parses rule source text.
func ParseRules(src string) (*RuleSet, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	rs := &RuleSet{}
	for !p.done() {
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		rs.Rules = append(rs.Rules, rule)
	}
	if len(rs.Rules) == 0 {
		return nil, loadErr("no rules found")
	}
	return rs, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokInt
	tokPunct
	tokStringID // $name
)

type token struct {
	kind tokenKind
	text string
	num  int64
	line int
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	line := 1
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				if src[i] == '\n' {
					line++
				}
				i++
			}
			i += 2
		case c == '"':
			text, next, err := lexString(src, i, line)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text, line: line})
			i = next
		case c == '$':
			start := i
			i++
			for i < len(src) && (isIdentChar(src[i]) || src[i] == '*') {
				i++
			}
			tokens = append(tokens, token{kind: tokStringID, text: src[start:i], line: line})
		case isDigit(c):
			// Alphanumeric run: a decimal or 0x literal becomes tokInt,
			// anything else (hex string pairs like "4D") stays an ident.
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			text := src[start:i]
			if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
				num, err := strconv.ParseInt(text[2:], 16, 64)
				if err != nil {
					return nil, loadErr("line %d: bad number %q", line, text)
				}
				tokens = append(tokens, token{kind: tokInt, text: text, num: num, line: line})
			} else if num, err := strconv.ParseInt(text, 10, 64); err == nil {
				tokens = append(tokens, token{kind: tokInt, text: text, num: num, line: line})
			} else {
				tokens = append(tokens, token{kind: tokIdent, text: text, line: line})
			}
		case isIdentChar(c):
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], line: line})
		case strings.ContainsRune("{}():=,?!<>", rune(c)):
			// == and != arrive as two punct tokens and are joined by the parser.
			tokens = append(tokens, token{kind: tokPunct, text: string(c), line: line})
			i++
		default:
			return nil, loadErr("line %d: unexpected character %q", line, string(c))
		}
	}
	return tokens, nil
}

func lexString(src string, start, line int) (string, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch c {
		case '"':
			return sb.String(), i + 1, nil
		case '\\':
			if i+1 >= len(src) {
				return "", 0, loadErr("line %d: unterminated escape", line)
			}
			i++
			switch src[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"', '\\':
				sb.WriteByte(src[i])
			case 'x':
				if i+2 >= len(src) {
					return "", 0, loadErr("line %d: truncated hex escape", line)
				}
				v, err := strconv.ParseUint(src[i+1:i+3], 16, 8)
				if err != nil {
					return "", 0, loadErr("line %d: bad hex escape", line)
				}
				sb.WriteByte(byte(v))
				i += 2
			default:
				return "", 0, loadErr("line %d: unknown escape \\%c", line, src[i])
			}
			i++
		case '\n':
			return "", 0, loadErr("line %d: newline in string literal", line)
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", 0, loadErr("line %d: unterminated string literal", line)
}

func isIdentChar(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expectIdent(text string) error {
	t := p.next()
	if t.kind != tokIdent || t.text != text {
		return loadErr("line %d: expected %q, got %q", t.line, text, t.text)
	}
	return nil
}

func (p *parser) expectPunct(text string) error {
	t := p.next()
	if t.kind != tokPunct || t.text != text {
		return loadErr("line %d: expected %q, got %q", t.line, text, t.text)
	}
	return nil
}

func (p *parser) acceptPunct(text string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptIdent(text string) bool {
	if t := p.peek(); t.kind == tokIdent && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseRule() (*Rule, error) {
	if err := p.expectIdent("rule"); err != nil {
		return nil, err
	}
	nameTok := p.next()
	if nameTok.kind != tokIdent {
		return nil, loadErr("line %d: expected rule name", nameTok.line)
	}
	rule := &Rule{Name: nameTok.text, Meta: ordereddict.NewDict()}

	if p.acceptPunct(":") {
		for p.peek().kind == tokIdent {
			rule.Tags = append(rule.Tags, p.next().text)
		}
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	for {
		t := p.peek()
		if t.kind == tokPunct && t.text == "}" {
			p.pos++
			break
		}
		if t.kind != tokIdent {
			return nil, loadErr("line %d: expected section name, got %q", t.line, t.text)
		}
		switch t.text {
		case "meta":
			p.pos++
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			if err := p.parseMeta(rule); err != nil {
				return nil, err
			}
		case "strings":
			p.pos++
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			if err := p.parseStrings(rule); err != nil {
				return nil, err
			}
		case "condition":
			p.pos++
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			cond, err := p.parseCondition(rule)
			if err != nil {
				return nil, err
			}
			rule.Condition = cond
		default:
			return nil, loadErr("line %d: unknown section %q", t.line, t.text)
		}
	}

	if rule.Condition == nil {
		return nil, loadErr("rule %s has no condition", rule.Name)
	}
	return rule, nil
}

func (p *parser) parseMeta(rule *Rule) error {
	for {
		t := p.peek()
		if t.kind != tokIdent || p.pos+1 >= len(p.tokens) || p.tokens[p.pos+1].text != "=" {
			return nil
		}
		key := p.next().text
		if err := p.expectPunct("="); err != nil {
			return err
		}
		v := p.next()
		switch v.kind {
		case tokString:
			rule.Meta.Set(key, v.text)
		case tokInt:
			rule.Meta.Set(key, v.num)
		case tokIdent:
			switch v.text {
			case "true":
				rule.Meta.Set(key, true)
			case "false":
				rule.Meta.Set(key, false)
			default:
				return loadErr("line %d: bad meta value %q", v.line, v.text)
			}
		default:
			return loadErr("line %d: bad meta value", v.line)
		}
	}
}

func (p *parser) parseStrings(rule *Rule) error {
	for {
		t := p.peek()
		if t.kind != tokStringID {
			return nil
		}
		id := p.next().text
		if err := p.expectPunct("="); err != nil {
			return err
		}

		pattern := &Pattern{ID: id}
		v := p.peek()
		switch {
		case v.kind == tokString:
			p.pos++
			pattern.Text = []byte(v.text)
		modifiers:
			for {
				switch {
				case p.acceptIdent("nocase"):
					pattern.Nocase = true
				case p.acceptIdent("wide"):
					pattern.Wide = true
				case p.acceptIdent("ascii"):
					pattern.ASCII = true
				case p.acceptIdent("fullword"):
					// Accepted for compatibility, no word-boundary check.
				default:
					break modifiers
				}
			}
		case v.kind == tokPunct && v.text == "{":
			p.pos++
			if err := p.parseHexPattern(pattern); err != nil {
				return err
			}
			pattern.IsHex = true
		default:
			return loadErr("line %d: expected string literal or hex string", v.line)
		}

		rule.Strings = append(rule.Strings, pattern)
	}
}

func (p *parser) parseHexPattern(pattern *Pattern) error {
	for {
		t := p.next()
		switch {
		case t.kind == tokPunct && t.text == "}":
			if len(pattern.HexByte) == 0 {
				return loadErr("line %d: empty hex string", t.line)
			}
			return nil
		case t.kind == tokPunct && t.text == "?":
			if !p.acceptPunct("?") {
				return loadErr("line %d: lone ? in hex string", t.line)
			}
			pattern.HexByte = append(pattern.HexByte, 0)
			pattern.HexMask = append(pattern.HexMask, true)
		case t.kind == tokInt || t.kind == tokIdent:
			// Hex byte pairs lex as numbers or identifiers ("4D", "AB", "90").
			text := t.text
			for len(text) >= 2 {
				v, err := strconv.ParseUint(text[:2], 16, 8)
				if err != nil {
					return loadErr("line %d: bad hex byte %q", t.line, text[:2])
				}
				pattern.HexByte = append(pattern.HexByte, byte(v))
				pattern.HexMask = append(pattern.HexMask, false)
				text = text[2:]
			}
			if len(text) != 0 {
				return loadErr("line %d: odd hex digits %q", t.line, t.text)
			}
		default:
			return loadErr("line %d: unexpected token %q in hex string", t.line, t.text)
		}
	}
}

// Condition grammar, loosest binding first: or, and, not, primary.
func (p *parser) parseCondition(rule *Rule) (Condition, error) {
	return p.parseOr(rule)
}

func (p *parser) parseOr(rule *Rule) (Condition, error) {
	left, err := p.parseAnd(rule)
	if err != nil {
		return nil, err
	}
	for p.acceptIdent("or") {
		right, err := p.parseAnd(rule)
		if err != nil {
			return nil, err
		}
		left = orExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd(rule *Rule) (Condition, error) {
	left, err := p.parseNot(rule)
	if err != nil {
		return nil, err
	}
	for p.acceptIdent("and") {
		right, err := p.parseNot(rule)
		if err != nil {
			return nil, err
		}
		left = andExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot(rule *Rule) (Condition, error) {
	if p.acceptIdent("not") {
		inner, err := p.parseNot(rule)
		if err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	}
	return p.parsePrimary(rule)
}

func (p *parser) parsePrimary(rule *Rule) (Condition, error) {
	t := p.peek()
	switch {
	case t.kind == tokPunct && t.text == "(":
		p.pos++
		inner, err := p.parseOr(rule)
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return inner, nil

	case t.kind == tokStringID:
		p.pos++
		ref := stringRef{id: t.text}
		if p.acceptIdent("at") {
			n := p.next()
			if n.kind != tokInt {
				return nil, loadErr("line %d: expected offset after 'at'", n.line)
			}
			ref.at = n.num
			ref.pinnedAt = true
		}
		return ref, nil

	case t.kind == tokIdent && (t.text == "any" || t.text == "all"):
		p.pos++
		if err := p.expectIdent("of"); err != nil {
			return nil, err
		}
		if err := p.expectIdent("them"); err != nil {
			return nil, err
		}
		count := 1
		if t.text == "all" {
			count = 0
		}
		return ofThem{count: count, ids: patternIDs(rule)}, nil

	case t.kind == tokInt && p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].text == "of":
		p.pos++
		if err := p.expectIdent("of"); err != nil {
			return nil, err
		}
		if err := p.expectIdent("them"); err != nil {
			return nil, err
		}
		return ofThem{count: int(t.num), ids: patternIDs(rule)}, nil

	case t.kind == tokIdent && t.text == "true":
		p.pos++
		return boolLit(true), nil

	case t.kind == tokIdent && t.text == "false":
		p.pos++
		return boolLit(false), nil

	case t.kind == tokIdent && (t.text == "uint8" || t.text == "uint16" || t.text == "uint32"):
		return p.parseIntRead()

	default:
		return nil, loadErr("line %d: unexpected token %q in condition", t.line, t.text)
	}
}

func (p *parser) parseIntRead() (Condition, error) {
	t := p.next()
	width := map[string]int{"uint8": 1, "uint16": 2, "uint32": 4}[t.text]

	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	offTok := p.next()
	if offTok.kind != tokInt {
		return nil, loadErr("line %d: expected offset in %s()", offTok.line, t.text)
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}

	equal := true
	switch {
	case p.acceptPunct("="):
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
	case p.acceptPunct("!"):
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		equal = false
	default:
		return nil, loadErr("line %d: expected == or != after %s()", t.line, t.text)
	}

	valTok := p.next()
	if valTok.kind != tokInt {
		return nil, loadErr("line %d: expected integer literal", valTok.line)
	}
	return intRead{width: width, offset: offTok.num, value: uint64(valTok.num), equal: equal}, nil
}

func patternIDs(rule *Rule) []string {
	ids := make([]string, 0, len(rule.Strings))
	for _, pattern := range rule.Strings {
		ids = append(ids, pattern.ID)
	}
	return ids
}

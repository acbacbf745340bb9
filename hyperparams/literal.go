package hyperparams

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags a literal value.
type ValueKind int

const (
	NumberValue ValueKind = iota
	StringValue
	BoolValue
	NoneValue
)

func (k ValueKind) String() string {
	switch k {
	case NumberValue:
		return "number"
	case StringValue:
		return "string"
	case BoolValue:
		return "bool"
	case NoneValue:
		return "None"
	default:
		return "unknown"
	}
}

// Value is one scalar of a mapping literal.
type Value struct {
	Kind    ValueKind
	Num     float64
	Str     string
	Boolean bool
}

func (v Value) Float() (float64, error) {
	if v.Kind != NumberValue {
		return 0, fmt.Errorf("expected a number, got %s", v.Kind)
	}
	return v.Num, nil
}

// Int accepts integers and integral floats such as 32.0.
func (v Value) Int() (int, error) {
	if v.Kind != NumberValue {
		return 0, fmt.Errorf("expected an integer, got %s", v.Kind)
	}
	if v.Num != math.Trunc(v.Num) || math.Abs(v.Num) > math.MaxInt32 {
		return 0, fmt.Errorf("expected an integer, got %v", v.Num)
	}
	return int(v.Num), nil
}

func (v Value) Bool() (bool, error) {
	if v.Kind != BoolValue {
		return false, fmt.Errorf("expected True or False, got %s", v.Kind)
	}
	return v.Boolean, nil
}

// Entry is one key/value pair in source order.
type Entry struct {
	Key   string
	Value Value
}

type Mapping []Entry

// SyntaxError reports the byte offset at which a literal could not be parsed.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Msg)
}

// ParseMapping parses a flat mapping literal:
//
//	mapping := '{' [ pair { ',' pair } [ ',' ] ] '}'
//	pair    := string ':' value
//	value   := number | string | 'True' | 'False' | 'None'
//
// Strings are single or double quoted. The whole literal may be wrapped in one
// extra pair of matching quotes. Nothing is ever evaluated.
func ParseMapping(src string) (Mapping, error) {
	src = strings.TrimSpace(src)
	if len(src) >= 2 && (src[0] == '\'' || src[0] == '"') && src[len(src)-1] == src[0] && strings.HasPrefix(strings.TrimSpace(src[1:]), "{") {
		src = src[1 : len(src)-1]
	}
	p := &literalParser{src: src}
	m, err := p.mapping()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	return m, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *literalParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *literalParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		if p.pos >= len(p.src) {
			return p.errorf("expected %q, got end of input", c)
		}
		return p.errorf("expected %q, got %q", c, p.src[p.pos])
	}
	p.pos++
	return nil
}

func (p *literalParser) mapping() (Mapping, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	var m Mapping
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return m, nil
		}
		key, err := p.str()
		if err != nil {
			return nil, err
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		m = append(m, Entry{Key: key, Value: val})

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			if p.pos >= len(p.src) {
				return nil, p.errorf("unterminated mapping")
			}
			return nil, p.errorf("expected ',' or '}', got %q", p.src[p.pos])
		}
	}
}

func (p *literalParser) str() (string, error) {
	p.skipSpace()
	quote := p.peek()
	if quote != '\'' && quote != '"' {
		return "", p.errorf("expected a quoted string")
	}
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	p.pos = start
	return "", p.errorf("unterminated string")
}

func (p *literalParser) value() (Value, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == '\'' || c == '"':
		s, err := p.str()
		return Value{Kind: StringValue, Str: s}, err
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	}
	for _, kw := range []struct {
		word string
		val  Value
	}{
		{"True", Value{Kind: BoolValue, Boolean: true}},
		{"False", Value{Kind: BoolValue, Boolean: false}},
		{"None", Value{Kind: NoneValue}},
	} {
		if strings.HasPrefix(p.src[p.pos:], kw.word) {
			p.pos += len(kw.word)
			return kw.val, nil
		}
	}
	return Value{}, p.errorf("expected a number, string, True, False or None")
}

func (p *literalParser) number() (Value, error) {
	start := p.pos
	for p.pos < len(p.src) && strings.ContainsRune("+-.0123456789eE", rune(p.src[p.pos])) {
		p.pos++
	}
	text := p.src[start:p.pos]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.pos = start
		return Value{}, p.errorf("invalid number %q", text)
	}
	return Value{Kind: NumberValue, Num: f}, nil
}

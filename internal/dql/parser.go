package dql

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hurou927/pg-composer/internal/qerrors"
)

// SyntaxError reports where the input stopped making sense.
type SyntaxError struct {
	Offset int
	Near   string
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("dql: %s at offset %d near %q", e.Msg, e.Offset, e.Near)
}

// Is makes syntax errors match qerrors.ErrValidation.
func (e *SyntaxError) Is(target error) bool {
	return target == qerrors.ErrValidation
}

type state int

const (
	stateName state = iota
	statePropertyList
	statePropertyName
	statePropertyValue
	statePropertyValueEnd
	stateChildren
)

type stateDef struct {
	name string
	// terminate marks the states the input may end in.
	terminate bool
	// skip marks states allowed to hand over without consuming input.
	skip bool
}

var states = [...]stateDef{
	stateName:             {name: "field name", terminate: true},
	statePropertyList:     {name: "property list"},
	statePropertyName:     {name: "property name", skip: true},
	statePropertyValue:    {name: "property value"},
	statePropertyValueEnd: {name: "property list"},
	stateChildren:         {name: "children"},
}

var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

var keywords = []struct {
	text  string
	value any
}{
	{"null", nil},
	{"true", true},
	{"false", false},
}

// nearLen bounds the input excerpt carried by a SyntaxError.
const nearLen = 16

type parser struct {
	input string
	pos   int
	// base is the offset of input within the whole query.
	base   int
	fields []*Field
	// prop is the property name awaiting its value.
	prop string
}

// Parse parses a query into its top-level fields.
func Parse(input string) ([]*Field, error) {
	return parse(input, 0)
}

func parse(input string, base int) ([]*Field, error) {
	p := &parser{input: input, base: base}
	st := stateName

	for {
		p.skipSpace()
		def := states[st]
		if p.pos >= len(p.input) {
			if !def.terminate {
				return nil, p.errorf(p.pos, "unexpected end of input in %s", def.name)
			}
			return p.fields, nil
		}

		start := p.pos
		next, err := p.step(st)
		if err != nil {
			return nil, err
		}
		if p.pos == start && !def.skip {
			return nil, p.errorf(start, "unexpected input in %s", def.name)
		}
		st = next
	}
}

// step consumes a prefix of the remaining input and returns the next state.
func (p *parser) step(st state) (state, error) {
	switch st {
	case stateName:
		return p.name()
	case statePropertyList:
		return p.propertyList()
	case statePropertyName:
		return p.propertyName()
	case statePropertyValue:
		return p.propertyValue()
	case statePropertyValueEnd:
		return p.propertyValueEnd()
	default:
		return p.children()
	}
}

func (p *parser) name() (state, error) {
	if p.peek() == ',' {
		p.pos++
		return stateName, nil
	}
	start := p.pos
	ident := p.ident()
	if ident == "" {
		return stateName, nil
	}
	p.fields = append(p.fields, &Field{Name: ident, Offset: p.base + start})
	return p.afterField(), nil
}

// afterField picks the state following a field name or its property list.
func (p *parser) afterField() state {
	p.skipSpace()
	switch p.peek() {
	case '(':
		return statePropertyList
	case '{':
		return stateChildren
	}
	return stateName
}

func (p *parser) propertyList() (state, error) {
	if p.peek() == '(' {
		p.pos++
	}
	return statePropertyName, nil
}

func (p *parser) propertyName() (state, error) {
	if p.peek() == ')' {
		return statePropertyValueEnd, nil
	}
	start := p.pos
	name := p.ident()
	if name == "" {
		return statePropertyName, p.errorf(start, "expected property name")
	}
	p.skipSpace()
	if p.peek() != ':' {
		return statePropertyName, p.errorf(p.pos, "expected ':' after %q", name)
	}
	p.pos++
	p.prop = name
	return statePropertyValue, nil
}

func (p *parser) propertyValue() (state, error) {
	v, err := p.value()
	if err != nil {
		return statePropertyValue, err
	}
	f := p.fields[len(p.fields)-1]
	f.Properties = append(f.Properties, Property{Name: p.prop, Value: v})
	return statePropertyValueEnd, nil
}

func (p *parser) propertyValueEnd() (state, error) {
	switch p.peek() {
	case ',':
		p.pos++
		return statePropertyName, nil
	case ')':
		p.pos++
		return p.afterField(), nil
	}
	return statePropertyValueEnd, p.errorf(p.pos, "expected ',' or ')'")
}

func (p *parser) children() (state, error) {
	open := p.pos
	if p.peek() != '{' {
		return stateChildren, nil
	}
	end, err := p.matchBrace(open)
	if err != nil {
		return stateChildren, err
	}
	children, err := parse(p.input[open+1:end], p.base+open+1)
	if err != nil {
		return stateChildren, err
	}
	f := p.fields[len(p.fields)-1]
	f.Children = append(f.Children, children...)
	p.pos = end + 1
	return stateName, nil
}

// matchBrace returns the index of the brace closing the one at open.
// Braces inside string literals are not counted.
func (p *parser) matchBrace(open int) (int, error) {
	depth := 0
	inString := false
	for i := open; i < len(p.input); i++ {
		c := p.input[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, p.errorf(open, "unbalanced '{'")
}

func (p *parser) value() (any, error) {
	rest := p.input[p.pos:]
	if rest[0] == '"' {
		return p.str()
	}
	for _, kw := range keywords {
		if strings.HasPrefix(rest, kw.text) && !isIdentByte(byteAt(rest, len(kw.text))) {
			p.pos += len(kw.text)
			return kw.value, nil
		}
	}

	m := numberPattern.FindString(rest)
	if m == "" || isIdentByte(byteAt(rest, len(m))) {
		return nil, p.errorf(p.pos, "invalid value")
	}
	start := p.pos
	p.pos += len(m)
	if !strings.ContainsAny(m, ".eE") {
		if i, err := strconv.ParseInt(m, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil, p.errorf(start, "invalid number")
	}
	return f, nil
}

// str reads a double-quoted string. The closing quote is the first one
// preceded by an even number of backslashes.
func (p *parser) str() (any, error) {
	start := p.pos
	for i := start + 1; i < len(p.input); i++ {
		if p.input[i] != '"' {
			continue
		}
		n := 0
		for j := i - 1; j > start && p.input[j] == '\\'; j-- {
			n++
		}
		if n%2 == 1 {
			continue
		}
		var s string
		if err := json.Unmarshal([]byte(p.input[start:i+1]), &s); err != nil {
			return nil, p.errorf(start, "invalid string")
		}
		p.pos = i + 1
		return s, nil
	}
	return nil, p.errorf(start, "unterminated string")
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if !isIdentByte(c) || (p.pos == start && c >= '0' && c <= '9') {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	return byteAt(p.input, p.pos)
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	near := p.input[pos:]
	if len(near) > nearLen {
		near = near[:nearLen]
	}
	return &SyntaxError{Offset: p.base + pos, Near: near, Msg: fmt.Sprintf(format, args...)}
}

func byteAt(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i]
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Package sexpr parses the S-expression text format used by KiCad design
// files.
package sexpr

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Node is either an atom or a list. Lists conventionally start with an
// unquoted atom naming the element, e.g. (layer "F.Cu").
type Node struct {
	Value  string
	Quoted bool
	IsList bool
	Items  []*Node
}

// SyntaxError reports malformed input.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sexpr: %s at offset %d", e.Msg, e.Offset)
}

// Parse reads a single top-level expression from r.
func Parse(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sexpr: read: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses a single top-level expression.
func ParseBytes(data []byte) (*Node, error) {
	p := &parser{data: data}
	p.skipSpace()
	if p.pos >= len(p.data) {
		return nil, &SyntaxError{Offset: p.pos, Msg: "empty input"}
	}
	node, err := p.parseNode(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.data) {
		return nil, &SyntaxError{Offset: p.pos, Msg: "trailing data"}
	}
	return node, nil
}

const maxDepth = 512

type parser struct {
	data []byte
	pos  int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r', '\f':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseNode(depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, &SyntaxError{Offset: p.pos, Msg: "nesting too deep"}
	}
	switch p.data[p.pos] {
	case '(':
		return p.parseList(depth)
	case ')':
		return nil, &SyntaxError{Offset: p.pos, Msg: "unexpected ')'"}
	case '"':
		return p.parseString()
	default:
		return p.parseAtom(), nil
	}
}

func (p *parser) parseList(depth int) (*Node, error) {
	start := p.pos
	p.pos++ // (
	node := &Node{IsList: true}
	for {
		p.skipSpace()
		if p.pos >= len(p.data) {
			return nil, &SyntaxError{Offset: start, Msg: "unterminated list"}
		}
		if p.data[p.pos] == ')' {
			p.pos++
			return node, nil
		}
		child, err := p.parseNode(depth + 1)
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, child)
	}
}

func (p *parser) parseString() (*Node, error) {
	start := p.pos
	p.pos++ // opening quote
	var buf bytes.Buffer
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch c {
		case '"':
			p.pos++
			return &Node{Value: buf.String(), Quoted: true}, nil
		case '\\':
			if p.pos+1 >= len(p.data) {
				return nil, &SyntaxError{Offset: p.pos, Msg: "dangling escape"}
			}
			p.pos++
			switch esc := p.data[p.pos]; esc {
			case 'n':
				buf.WriteByte('\n')
			case 't':
				buf.WriteByte('\t')
			case 'r':
				buf.WriteByte('\r')
			default:
				buf.WriteByte(esc)
			}
			p.pos++
		default:
			buf.WriteByte(c)
			p.pos++
		}
	}
	return nil, &SyntaxError{Offset: start, Msg: "unterminated string"}
}

func (p *parser) parseAtom() *Node {
	start := p.pos
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '(', ')', '"':
			return &Node{Value: string(p.data[start:p.pos])}
		}
		p.pos++
	}
	return &Node{Value: string(p.data[start:p.pos])}
}

// Name returns the leading atom of a list, or "" for atoms and empty lists.
func (n *Node) Name() string {
	if n == nil || !n.IsList || len(n.Items) == 0 || n.Items[0].IsList {
		return ""
	}
	return n.Items[0].Value
}

// Args returns the list items following the name.
func (n *Node) Args() []*Node {
	if n == nil || !n.IsList || len(n.Items) == 0 {
		return nil
	}
	return n.Items[1:]
}

// Arg returns the string value of the i-th argument.
func (n *Node) Arg(i int) (string, bool) {
	args := n.Args()
	if i < 0 || i >= len(args) || args[i].IsList {
		return "", false
	}
	return args[i].Value, true
}

// Float returns the i-th argument as a number.
func (n *Node) Float(i int) (float64, bool) {
	s, ok := n.Arg(i)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Child returns the first direct child list with the given name.
func (n *Node) Child(name string) *Node {
	for _, item := range n.Args() {
		if item.Name() == name {
			return item
		}
	}
	return nil
}

// Children returns every direct child list with the given name.
func (n *Node) Children(name string) []*Node {
	var out []*Node
	for _, item := range n.Args() {
		if item.Name() == name {
			out = append(out, item)
		}
	}
	return out
}

// HasFlag reports whether an unquoted atom equal to flag appears among the
// arguments, as in (fp_text reference "R1" hide).
func (n *Node) HasFlag(flag string) bool {
	for _, item := range n.Args() {
		if !item.IsList && !item.Quoted && item.Value == flag {
			return true
		}
	}
	return false
}

// String renders the node back to S-expression text.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if n == nil {
		return
	}
	if !n.IsList {
		if n.Quoted {
			b.WriteString(strconv.Quote(n.Value))
		} else {
			b.WriteString(n.Value)
		}
		return
	}
	b.WriteByte('(')
	for i, item := range n.Items {
		if i > 0 {
			b.WriteByte(' ')
		}
		item.write(b)
	}
	b.WriteByte(')')
}

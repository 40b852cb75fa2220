package strategy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSyntax is returned for malformed strategy expressions.
var ErrSyntax = errors.New("strategy syntax error")

// Parse reads a canonical strategy expression:
//
//	Tactic(name)
//	With(name;key=value;...)
//	AndThen(node,node,...)
//	Cond(probe > threshold,node,node)
//	['name','name',...]
func Parse(src string) (Node, error) {
	p := &parser{src: src}
	n, err := p.node()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("trailing input %q", p.src[p.pos:])
	}
	return n, nil
}

// ParseSequence parses an expression that must be free of conditionals.
func ParseSequence(src string) (Sequence, error) {
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	seq, ok := Flatten(n)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a tactic sequence", ErrSyntax, src)
	}
	return seq, nil
}

// ReadSequences parses one sequence per line, skipping blank lines and
// lines starting with '#'.
func ReadSequences(r io.Reader) ([]Sequence, error) {
	var out []Sequence
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		seq, err := ParseSequence(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, seq)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sequences: %w", err)
	}
	return out, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
}

func (p *parser) consume(s string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	if !p.consume(s) {
		return p.errorf("expected %q", s)
	}
	return nil
}

// word reads until one of the stop bytes or whitespace.
func (p *parser) word(stops string) string {
	p.skipSpace()
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || strings.IndexByte(stops, c) >= 0 {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) node() (Node, error) {
	switch {
	case p.consume("Tactic("):
		name := p.word("()")
		if name == "" {
			return nil, p.errorf("empty tactic name")
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return Atomic(name), nil
	case p.consume("With("):
		return p.with()
	case p.consume("AndThen("):
		return p.andThen()
	case p.consume("Cond("):
		return p.cond()
	case p.consume("["):
		return p.list()
	default:
		p.skipSpace()
		return nil, p.errorf("unexpected input")
	}
}

func (p *parser) with() (Node, error) {
	name := p.word(";)")
	if name == "" {
		return nil, p.errorf("empty tactic name")
	}
	params := make(map[string]string)
	for p.consume(";") {
		key := p.word("=;)")
		if key == "" {
			return nil, p.errorf("empty parameter name")
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		p.skipSpace()
		start := p.pos
		for !p.eof() && p.src[p.pos] != ';' && p.src[p.pos] != ')' {
			p.pos++
		}
		params[key] = strings.TrimSpace(p.src[start:p.pos])
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return Tactic{Name: name, Params: params}, nil
}

func (p *parser) andThen() (Node, error) {
	var steps []Node
	for {
		n, err := p.node()
		if err != nil {
			return nil, err
		}
		steps = append(steps, n)
		if p.consume(")") {
			break
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
	if len(steps) == 1 {
		return steps[0], nil
	}
	return AndThen{Steps: steps}, nil
}

func (p *parser) cond() (Node, error) {
	probe := p.word(">,()")
	if probe == "Probe" && p.consume("(") {
		probe = p.word(")")
		if err := p.expect(")"); err != nil {
			return nil, err
		}
	}
	if probe == "" {
		return nil, p.errorf("empty probe name")
	}
	if err := p.expect(">"); err != nil {
		return nil, err
	}
	raw := p.word(",")
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, p.errorf("bad threshold %q", raw)
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	then, err := p.node()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	els, err := p.node()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return Cond{If: Condition{Probe: probe, Threshold: threshold}, Then: then, Else: els}, nil
}

func (p *parser) list() (Node, error) {
	var seq Sequence
	for {
		p.skipSpace()
		if p.consume("]") {
			break
		}
		if len(seq) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		p.skipSpace()
		if p.eof() || (p.src[p.pos] != '\'' && p.src[p.pos] != '"') {
			return nil, p.errorf("expected quoted tactic name")
		}
		quote := p.src[p.pos]
		p.pos++
		end := strings.IndexByte(p.src[p.pos:], quote)
		if end < 0 {
			return nil, p.errorf("unterminated tactic name")
		}
		name := p.src[p.pos : p.pos+end]
		p.pos += end + 1
		if name == "" {
			return nil, p.errorf("empty tactic name")
		}
		seq = append(seq, Atomic(name))
	}
	if len(seq) == 0 {
		return nil, p.errorf("empty tactic list")
	}
	return seq.Node(), nil
}

package value

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// LiteralLexer tokenizes value literals such as `{A: 7, B: [true, false]}`.
var LiteralLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},

	// Hex must come before Int so "0x1F" is not split after the zero.
	{Name: "Hex", Pattern: `[-+]?0[xX][0-9a-fA-F_]+`},
	{Name: "Float", Pattern: `[-+]?(\d+\.\d*|\.\d+)([eE][-+]?\d+)?|[-+]?\d+[eE][-+]?\d+`},
	{Name: "Int", Pattern: `[-+]?\d+`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[{}\[\]():,]`},
})

// literal is a single value literal.
type literal struct {
	Bool  *string     `  @("true" | "false")`
	Hex   *string     `| @Hex`
	Float *string     `| @Float`
	Int   *string     `| @Int`
	Seq   *seqLiteral `| @@`
	Map   *mapLiteral `| @@`
	Unit  *string     `| @"(" ")"`
}

// seqLiteral is a bracketed list: [a, b, c]
type seqLiteral struct {
	Items []*literal `"[" ( @@ ( "," @@ )* ","? )? "]"`
}

// mapLiteral is a braced list of entries: {A: 1, "Input U32": 2}
type mapLiteral struct {
	Entries []*entryLiteral `"{" ( @@ ( "," @@ )* ","? )? "}"`
}

type entryLiteral struct {
	Key   string   `( @Ident | @String ) ":"`
	Value *literal `@@`
}

// Parser parses value literals.
type Parser struct {
	parser *participle.Parser[literal]
}

// NewParser creates a new literal parser instance.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[literal](
		participle.Lexer(LiteralLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build literal parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse parses a literal from a reader.
func (p *Parser) Parse(r io.Reader) (Value, error) {
	lit, err := p.parser.Parse("", r)
	if err != nil {
		return Value{}, fmt.Errorf("value: parse error: %w", err)
	}
	return lit.toValue()
}

// ParseString parses a literal from a string.
func (p *Parser) ParseString(input string) (Value, error) {
	lit, err := p.parser.ParseString("", input)
	if err != nil {
		return Value{}, fmt.Errorf("value: parse error: %w", err)
	}
	return lit.toValue()
}

var defaultParser = func() *Parser {
	p, err := NewParser()
	if err != nil {
		panic(err)
	}
	return p
}()

// ParseLiteral parses a literal with the default parser.
func ParseLiteral(input string) (Value, error) {
	return defaultParser.ParseString(input)
}

func (l *literal) toValue() (Value, error) {
	switch {
	case l.Bool != nil:
		return Bool(*l.Bool == "true"), nil
	case l.Hex != nil:
		return parseInteger(*l.Hex, 0)
	case l.Int != nil:
		return parseInteger(*l.Int, 10)
	case l.Float != nil:
		f, err := strconv.ParseFloat(*l.Float, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid float %q: %w", *l.Float, err)
		}
		return Float(f), nil
	case l.Seq != nil:
		items := make([]Value, len(l.Seq.Items))
		for i, item := range l.Seq.Items {
			v, err := item.toValue()
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindSeq, seq: items}, nil
	case l.Map != nil:
		m := NewMap()
		for _, entry := range l.Map.Entries {
			if _, dup := m.Get(entry.Key); dup {
				return Value{}, fmt.Errorf("value: duplicate key %q", entry.Key)
			}
			v, err := entry.Value.toValue()
			if err != nil {
				return Value{}, err
			}
			m.Set(entry.Key, v)
		}
		return MapValue(m), nil
	}
	return Unit(), nil
}

// parseInteger produces an Int when the literal fits int64 and a Uint for
// larger positive literals.
func parseInteger(s string, base int) (Value, error) {
	if i, err := strconv.ParseInt(s, base, 64); err == nil {
		return Int(i), nil
	}
	if !strings.HasPrefix(s, "-") {
		u, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), base, 64)
		if err == nil && u > math.MaxInt64 {
			return Uint(u), nil
		}
	}
	return Value{}, fmt.Errorf("value: integer literal %q out of range", s)
}

// Package dsl holds the tokenizer shared by the stream and composed-task grammars.
package dsl

import (
	"fmt"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

type Kind int

const (
	EOF Kind = iota
	Ident
	String
	Option
	Colon
	Pipe
	DoublePipe
	DoubleAmp
	LT
	GT
	Arrow
	Star
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "end of input"
	case Ident:
		return "identifier"
	case String:
		return "quoted string"
	case Option:
		return "option"
	case Colon:
		return "':'"
	case Pipe:
		return "'|'"
	case DoublePipe:
		return "'||'"
	case DoubleAmp:
		return "'&&'"
	case LT:
		return "'<'"
	case GT:
		return "'>'"
	case Arrow:
		return "'->'"
	case Star:
		return "'*'"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

type Token struct {
	Kind Kind
	Text string
	Pos  int
	// Key and Value are set for Option tokens.
	Key   string
	Value string
}

// ParseError locates a syntax problem within DSL text.
type ParseError struct {
	DSL string
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dsl parse error at position %d: %s", e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error { return domain.ErrInvalidDSL }

func Errorf(dsl string, pos int, format string, args ...any) *ParseError {
	return &ParseError{DSL: dsl, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Tokenize splits text into tokens, terminated by a single EOF token.
func Tokenize(text string) ([]Token, error) {
	var out []Token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '|':
			if i+1 < len(text) && text[i+1] == '|' {
				out = append(out, Token{Kind: DoublePipe, Text: "||", Pos: i})
				i += 2
			} else {
				out = append(out, Token{Kind: Pipe, Text: "|", Pos: i})
				i++
			}
		case c == '&':
			if i+1 < len(text) && text[i+1] == '&' {
				out = append(out, Token{Kind: DoubleAmp, Text: "&&", Pos: i})
				i += 2
			} else {
				return nil, Errorf(text, i, "expected '&&'")
			}
		case c == '<':
			out = append(out, Token{Kind: LT, Text: "<", Pos: i})
			i++
		case c == '>':
			out = append(out, Token{Kind: GT, Text: ">", Pos: i})
			i++
		case c == ':':
			out = append(out, Token{Kind: Colon, Text: ":", Pos: i})
			i++
		case c == '*':
			out = append(out, Token{Kind: Star, Text: "*", Pos: i})
			i++
		case c == '-' && i+1 < len(text) && text[i+1] == '>':
			out = append(out, Token{Kind: Arrow, Text: "->", Pos: i})
			i += 2
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			tok, next, err := lexOption(text, i)
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
			i = next
		case c == '\'' || c == '"':
			value, next, err := lexQuoted(text, i)
			if err != nil {
				return nil, err
			}
			out = append(out, Token{Kind: String, Text: value, Pos: i})
			i = next
		case isIdentChar(c):
			start := i
			for i < len(text) && isIdentChar(text[i]) {
				if text[i] == '-' && i+1 < len(text) && text[i+1] == '>' {
					break
				}
				i++
			}
			out = append(out, Token{Kind: Ident, Text: text[start:i], Pos: start})
		default:
			return nil, Errorf(text, i, "unexpected character %q", c)
		}
	}
	out = append(out, Token{Kind: EOF, Pos: len(text)})
	return out, nil
}

func lexOption(text string, start int) (Token, int, error) {
	i := start + 2
	keyStart := i
	for i < len(text) && isKeyChar(text[i]) {
		i++
	}
	key := text[keyStart:i]
	if key == "" {
		return Token{}, 0, Errorf(text, start, "expected option name after '--'")
	}
	if i >= len(text) || text[i] != '=' {
		return Token{}, 0, Errorf(text, i, "expected '=' after option %q", key)
	}
	i++
	var value string
	if i < len(text) && (text[i] == '\'' || text[i] == '"') {
		v, next, err := lexQuoted(text, i)
		if err != nil {
			return Token{}, 0, err
		}
		value = v
		i = next
	} else {
		valueStart := i
		for i < len(text) && !strings.ContainsRune(" \t\n\r|&<>", rune(text[i])) {
			i++
		}
		value = text[valueStart:i]
	}
	return Token{Kind: Option, Text: text[start:i], Pos: start, Key: key, Value: value}, i, nil
}

func lexQuoted(text string, start int) (string, int, error) {
	quote := text[start]
	var b strings.Builder
	i := start + 1
	for i < len(text) {
		c := text[i]
		if c == quote {
			// A doubled quote is an escaped quote.
			if i+1 < len(text) && text[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, Errorf(text, start, "unterminated quoted string")
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '$'
}

func isKeyChar(c byte) bool {
	return isIdentChar(c) || c == '*' || c == '[' || c == ']'
}

// Quote renders value so that Tokenize reads it back unchanged.
func Quote(value string) string {
	if value != "" && !strings.ContainsAny(value, " \t\n\r|&<>'\"") {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// Package namelist reads and writes the declaration blocks of a file header.
//
// A declaration looks like
//
//	&column name=x, type=double, units=m, description="beam position", &end
//
// Values containing blanks, commas, quotes or '&' are double-quoted with
// backslash escapes. A block may span several lines.
package namelist

import (
	"io"
	"strings"

	"github.com/ajitpratap0/sdds/pkg/errors"
	stringpool "github.com/ajitpratap0/sdds/pkg/strings"
)

// Field is one name=value pair
type Field struct {
	Name  string
	Value string
}

// Namelist is one &group ... &end block
type Namelist struct {
	Group  string
	Fields []Field
}

// Get returns the value of a field; names are case-insensitive
func (n *Namelist) Get(name string) (string, bool) {
	for _, f := range n.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Set appends a field
func (n *Namelist) Set(name, value string) {
	n.Fields = append(n.Fields, Field{Name: name, Value: value})
}

// String renders the block on one line
func (n *Namelist) String() string {
	b := stringpool.GetBuilder(stringpool.Small)
	defer stringpool.PutBuilder(b, stringpool.Small)
	_ = b.WriteByte('&')
	b.WriteString(n.Group)
	for _, f := range n.Fields {
		_ = b.WriteByte(' ')
		b.WriteString(f.Name)
		_ = b.WriteByte('=')
		b.WriteString(stringpool.Quote(f.Value))
		_ = b.WriteByte(',')
	}
	b.WriteString(" &end")
	return b.String()
}

// Item is either a comment line or a declaration block
type Item struct {
	Comment  string
	Namelist *Namelist
}

// LineReader is the subset of *bufio.Reader the scanner needs
type LineReader interface {
	ReadString(delim byte) (string, error)
}

// Scanner reads header items line by line and never consumes bytes past the
// line that ends the current item, so the caller can keep reading page data
// from the same reader.
type Scanner struct {
	r     LineReader
	line  int
	bytes int64
}

// NewScanner wraps r
func NewScanner(r LineReader) *Scanner {
	return &Scanner{r: r}
}

// Line returns the number of lines consumed so far
func (s *Scanner) Line() int { return s.line }

// BytesRead returns the number of bytes consumed so far
func (s *Scanner) BytesRead() int64 { return s.bytes }

// ReadLine returns the next raw line without its terminator
func (s *Scanner) ReadLine() (string, error) {
	text, err := s.r.ReadString('\n')
	s.bytes += int64(len(text))
	if err != nil {
		if err == io.EOF && text != "" {
			s.line++
			return strings.TrimRight(text, "\r\n"), nil
		}
		return "", err
	}
	s.line++
	return strings.TrimRight(text, "\r\n"), nil
}

// Next returns the next comment or declaration. Blank lines are skipped.
// io.EOF is returned when the input ends between items.
func (s *Scanner) Next() (Item, error) {
	for {
		text, err := s.ReadLine()
		if err != nil {
			return Item{}, err
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		if trimmed[0] == '!' {
			return Item{Comment: trimmed[1:]}, nil
		}
		if trimmed[0] != '&' {
			return Item{}, errors.Newf(errors.ErrorTypeProtocol, "line %d: expected a declaration, got %q", s.line, trimmed)
		}
		for !closed(trimmed) {
			more, err := s.ReadLine()
			if err != nil {
				if err == io.EOF {
					return Item{}, errors.Newf(errors.ErrorTypeProtocol, "line %d: declaration not terminated by &end", s.line)
				}
				return Item{}, err
			}
			trimmed += " " + strings.TrimSpace(more)
		}
		nl, err := Parse(trimmed)
		if err != nil {
			return Item{}, errors.Wrapf(err, errors.ErrorTypeProtocol, "line %d", s.line)
		}
		return Item{Namelist: nl}, nil
	}
}

// closed reports whether text holds an unquoted &end
func closed(text string) bool {
	for _, tok := range lex(text) {
		if !tok.quoted && strings.EqualFold(tok.text, "&end") {
			return true
		}
	}
	return false
}

// Parse decodes one complete block
func Parse(text string) (*Namelist, error) {
	tokens := lex(text)
	if len(tokens) == 0 || tokens[0].quoted || !strings.HasPrefix(tokens[0].text, "&") {
		return nil, errors.Newf(errors.ErrorTypeProtocol, "declaration must start with '&': %q", text)
	}
	nl := &Namelist{Group: strings.ToLower(tokens[0].text[1:])}
	if nl.Group == "" || nl.Group == "end" {
		return nil, errors.Newf(errors.ErrorTypeProtocol, "missing group name in %q", text)
	}
	i := 1
	for i < len(tokens) {
		tok := tokens[i]
		if !tok.quoted && tok.text == "," {
			i++
			continue
		}
		if !tok.quoted && strings.EqualFold(tok.text, "&end") {
			return nl, nil
		}
		if tok.quoted || tok.text == "=" {
			return nil, errors.Newf(errors.ErrorTypeProtocol, "expected a field name in &%s, got %q", nl.Group, tok.text)
		}
		name := tok.text
		if i+1 >= len(tokens) || tokens[i+1].quoted || tokens[i+1].text != "=" {
			return nil, errors.Newf(errors.ErrorTypeProtocol, "field %q of &%s has no value", name, nl.Group)
		}
		i += 2
		value := ""
		if i < len(tokens) && (tokens[i].quoted || !isSeparator(tokens[i].text)) {
			value = tokens[i].text
			i++
		}
		nl.Set(strings.ToLower(name), value)
	}
	return nil, errors.Newf(errors.ErrorTypeProtocol, "&%s not terminated by &end", nl.Group)
}

func isSeparator(text string) bool {
	return text == "," || text == "=" || strings.EqualFold(text, "&end")
}

type token struct {
	text   string
	quoted bool
}

// lex splits a block into names, '=' signs, commas and values. Blanks
// separate tokens.
func lex(text string) []token {
	var out []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '=' || c == ',':
			out = append(out, token{text: string(c)})
			i++
		case c == '"':
			j := i + 1
			for j < len(text) && text[j] != '"' {
				if text[j] == '\\' {
					j++
				}
				j++
			}
			end := min(j, len(text))
			out = append(out, token{text: stringpool.Unescape(text[i+1 : end]), quoted: true})
			i = end + 1
		default:
			j := i
			for j < len(text) && !strings.ContainsRune(" \t,=\r\n", rune(text[j])) {
				j++
			}
			out = append(out, token{text: text[i:j]})
			i = j
		}
	}
	return out
}

// Fields splits a data line into blank-separated tokens, honouring double
// quotes and backslash escapes inside them. quoted reports, per token,
// whether it was written in quotes so that "" can be told from a missing value.
func Fields(line string) (tokens []string, quoted []bool) {
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '"':
			j := i + 1
			for j < len(line) && line[j] != '"' {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			end := min(j, len(line))
			tokens = append(tokens, stringpool.Unescape(line[i+1:end]))
			quoted = append(quoted, true)
			i = end + 1
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' && line[j] != '\r' && line[j] != '\n' {
				j++
			}
			tokens = append(tokens, line[i:j])
			quoted = append(quoted, false)
			i = j
		}
	}
	return tokens, quoted
}

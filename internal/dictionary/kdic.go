package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// Write renders dom in the engine's .kdic text format.
func Write(w io.Writer, dom *Domain) error {
	bw := bufio.NewWriter(w)
	for i, d := range dom.Dictionaries {
		if i > 0 {
			bw.WriteString("\n")
		}
		writeDictionary(bw, d)
	}
	return bw.Flush()
}

func writeDictionary(w *bufio.Writer, d *Dictionary) {
	if d.Root {
		w.WriteString("Root\t")
	}
	fmt.Fprintf(w, "Dictionary\t%s", name(d.Name))
	if len(d.Key) > 0 {
		keys := make([]string, len(d.Key))
		for i, k := range d.Key {
			keys[i] = name(k)
		}
		fmt.Fprintf(w, "\t(%s)", strings.Join(keys, ", "))
	}
	w.WriteString("\n")
	if d.Meta.Len() > 0 {
		w.WriteString(d.Meta.format())
		w.WriteString("\n")
	}
	w.WriteString("{\n")
	for _, v := range d.Variables {
		if !v.Used {
			w.WriteString("Unused")
		}
		w.WriteString("\t")
		w.WriteString(v.Type)
		if v.RefType != "" {
			fmt.Fprintf(w, "(%s)", name(v.RefType))
		}
		fmt.Fprintf(w, "\t%s\t", name(v.Name))
		if v.Rule != "" {
			fmt.Fprintf(w, " = %s\t", v.Rule)
		}
		w.WriteString(";")
		if v.Meta.Len() > 0 {
			w.WriteString("\t")
			w.WriteString(v.Meta.format())
		}
		w.WriteString("\n")
	}
	w.WriteString("};\n")
}

// name quotes identifiers holding characters outside letters, digits and '_'.
func name(s string) string {
	plain := s != ""
	for _, r := range s {
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			plain = false
			break
		}
	}
	if plain {
		return s
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Read parses .kdic text. It understands dictionary headers with keys, meta-data,
// variables with optional Unused markers, relation types and derivation rules.
// Comments are dropped.
func Read(r io.Reader) (*Domain, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary file: %w", err)
	}
	toks, err := tokenize(string(data))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: string(data)}
	dom := &Domain{}
	for !p.done() {
		d, err := p.dictionary()
		if err != nil {
			return nil, err
		}
		if err := dom.Add(d); err != nil {
			return nil, err
		}
	}
	return dom, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokPunct
	tokMeta
)

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
	line  int
}

func tokenize(src string) ([]token, error) {
	var toks []token
	line := 1
	for i := 0; i < len(src); {
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
		case c == '#' && (i == 0 || src[i-1] == '\n'):
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '`' || c == '"':
			text, next, err := readQuoted(src, i, c)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			kind := tokWord
			if c == '"' {
				kind = tokString
			}
			toks = append(toks, token{kind: kind, text: text, start: i, end: next, line: line})
			i = next
		case c == '<':
			end := i + 1
			inString := false
			for end < len(src) && (inString || src[end] != '>') {
				if src[end] == '"' {
					inString = !inString
				}
				if src[end] == '\n' {
					return nil, fmt.Errorf("line %d: unterminated meta-data", line)
				}
				end++
			}
			if end >= len(src) {
				return nil, fmt.Errorf("line %d: unterminated meta-data", line)
			}
			toks = append(toks, token{kind: tokMeta, text: src[i+1 : end], start: i, end: end + 1, line: line})
			i = end + 1
		case strings.ContainsRune("(){};,=", rune(c)):
			toks = append(toks, token{kind: tokPunct, text: string(c), start: i, end: i + 1, line: line})
			i++
		default:
			end := i
			for end < len(src) && !strings.ContainsRune(" \t\r\n(){};,=<\"`", rune(src[end])) {
				end++
			}
			if end == i {
				return nil, fmt.Errorf("line %d: unexpected character %q", line, c)
			}
			toks = append(toks, token{kind: tokWord, text: src[i:end], start: i, end: end, line: line})
			i = end
		}
	}
	return toks, nil
}

// readQuoted reads a quoted run starting at src[i]; a doubled quote stands for
// itself.
func readQuoted(src string, i int, q byte) (string, int, error) {
	var sb strings.Builder
	for j := i + 1; j < len(src); j++ {
		if src[j] == q {
			if j+1 < len(src) && src[j+1] == q {
				sb.WriteByte(q)
				j++
				continue
			}
			return sb.String(), j + 1, nil
		}
		sb.WriteByte(src[j])
	}
	return "", 0, fmt.Errorf("unterminated quote %c", q)
}

type parser struct {
	toks []token
	src  string
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: tokPunct, text: "EOF"}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(text string) error {
	t := p.next()
	if t.kind != tokPunct || t.text != text {
		return fmt.Errorf("line %d: expected %q, got %q", t.line, text, t.text)
	}
	return nil
}

func (p *parser) word() (string, error) {
	t := p.next()
	if t.kind != tokWord {
		return "", fmt.Errorf("line %d: expected a name, got %q", t.line, t.text)
	}
	return t.text, nil
}

func (p *parser) dictionary() (*Dictionary, error) {
	d := &Dictionary{}
	head, err := p.word()
	if err != nil {
		return nil, err
	}
	if head == "Root" {
		d.Root = true
		if head, err = p.word(); err != nil {
			return nil, err
		}
	}
	if head != "Dictionary" {
		return nil, fmt.Errorf("expected Dictionary, got %q", head)
	}
	if d.Name, err = p.word(); err != nil {
		return nil, err
	}

	if t := p.peek(); t.kind == tokPunct && t.text == "(" {
		p.next()
		for {
			key, err := p.word()
			if err != nil {
				return nil, err
			}
			d.Key = append(d.Key, key)
			t := p.next()
			if t.text == ")" {
				break
			}
			if t.text != "," {
				return nil, fmt.Errorf("line %d: expected ',' or ')' in key list, got %q", t.line, t.text)
			}
		}
	}
	if err := p.meta(&d.Meta); err != nil {
		return nil, err
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}

	for {
		t := p.peek()
		if t.kind == tokPunct && t.text == "}" {
			p.next()
			break
		}
		if p.done() {
			return nil, fmt.Errorf("dictionary %s is never closed", d.Name)
		}
		v, err := p.variable()
		if err != nil {
			return nil, fmt.Errorf("dictionary %s: %w", d.Name, err)
		}
		if err := d.AddVariable(v); err != nil {
			return nil, err
		}
	}
	if t := p.peek(); t.kind == tokPunct && t.text == ";" {
		p.next()
	}
	return d, nil
}

func (p *parser) variable() (*Variable, error) {
	v := &Variable{Used: true}
	typ, err := p.word()
	if err != nil {
		return nil, err
	}
	if typ == "Unused" {
		v.Used = false
		if typ, err = p.word(); err != nil {
			return nil, err
		}
	}
	v.Type = typ
	if t := p.peek(); t.kind == tokPunct && t.text == "(" {
		p.next()
		if v.RefType, err = p.word(); err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
	}
	if v.Name, err = p.word(); err != nil {
		return nil, err
	}

	if t := p.peek(); t.kind == tokPunct && t.text == "=" {
		p.next()
		start := p.peek().start
		depth := 0
		end := start
		for {
			t := p.peek()
			if p.done() {
				return nil, fmt.Errorf("variable %s: rule is never terminated", v.Name)
			}
			if t.kind == tokPunct && t.text == ";" && depth == 0 {
				break
			}
			if t.kind == tokPunct && t.text == "(" {
				depth++
			}
			if t.kind == tokPunct && t.text == ")" {
				depth--
			}
			end = t.end
			p.next()
		}
		v.Rule = strings.TrimSpace(p.src[start:end])
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	if err := p.meta(&v.Meta); err != nil {
		return nil, err
	}
	return v, nil
}

func (p *parser) meta(m *MetaData) error {
	for p.peek().kind == tokMeta {
		t := p.next()
		key, raw, hasValue := strings.Cut(t.text, "=")
		key = strings.TrimSpace(key)
		var value any = true
		if hasValue {
			raw = strings.TrimSpace(raw)
			if strings.HasPrefix(raw, `"`) {
				s, _, err := readQuoted(raw, 0, '"')
				if err != nil {
					return fmt.Errorf("line %d: meta-data %s: %w", t.line, key, err)
				}
				value = s
			} else {
				f, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("line %d: meta-data %s: invalid value %q", t.line, key, raw)
				}
				value = f
			}
		}
		if err := m.Set(key, value); err != nil {
			return fmt.Errorf("line %d: %w", t.line, err)
		}
	}
	return nil
}

// Package script parses scenario templates into an ordered list of nodes.
//
// A template is line oriented. A line may hold any number of scalar tokens
// written __name__. A mapping block is written
//
//	__DICT__
//	__name__
//	Key.Field.Path
//	Value.Field.Path
//	__END_DICT__
//
// and expands, per mapping entry, to a key line and a value line.
package script

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	blockStart = "__DICT__"
	blockEnd   = "__END_DICT__"
)

var tokenPattern = regexp.MustCompile(`__([A-Za-z][A-Za-z0-9]*(?:_[A-Za-z0-9]+)*)__`)

// NodeKind identifies the shape of a template node.
type NodeKind int

const (
	LiteralNode NodeKind = iota
	ScalarNode
	MappingNode
)

// Segment is a piece of a scalar line: literal text when Token is empty.
type Segment struct {
	Text  string
	Token string
}

// Node is one element of a parsed template.
type Node struct {
	Kind NodeKind
	// Text is the whole line of a literal node.
	Text string
	// Segments holds the pieces of a scalar line in order.
	Segments []Segment
	// Token, KeyField and ValueField describe a mapping block.
	Token      string
	KeyField   string
	ValueField string
}

// Template is a parsed scenario template. It is immutable once parsed.
type Template struct {
	nodes  []Node
	tokens []string
}

// Nodes returns the template nodes in source order.
func (t *Template) Nodes() []Node {
	out := make([]Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Tokens returns every token name referenced by the template, in order of first
// appearance.
func (t *Template) Tokens() []string {
	out := make([]string, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// MappingTokens returns the tokens used as mapping block values.
func (t *Template) MappingTokens() []string {
	var out []string
	for _, n := range t.nodes {
		if n.Kind == MappingNode {
			out = append(out, n.Token)
		}
	}
	return out
}

// Parse dedents body, drops its leading and trailing blank lines and splits it
// into nodes.
func Parse(body string) (*Template, error) {
	lines := dedent(body)
	t := &Template{}
	seen := make(map[string]bool)
	addToken := func(name string) {
		if !seen[name] {
			seen[name] = true
			t.tokens = append(t.tokens, name)
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == blockEnd {
			return nil, fmt.Errorf("line %d: %s without %s", i+1, blockEnd, blockStart)
		}
		if trimmed != blockStart {
			node := parseLine(line)
			for _, seg := range node.Segments {
				if seg.Token != "" {
					addToken(seg.Token)
				}
			}
			t.nodes = append(t.nodes, node)
			continue
		}

		start := i + 1
		end := -1
		for j := start; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == blockEnd {
				end = j
				break
			}
		}
		if end < 0 {
			return nil, fmt.Errorf("line %d: %s is never closed", i+1, blockStart)
		}
		block := lines[start:end]
		if len(block) != 3 {
			return nil, fmt.Errorf("line %d: mapping block needs a token line and two field lines, got %d lines", i+1, len(block))
		}
		tokenLine := strings.TrimSpace(block[0])
		match := tokenPattern.FindStringSubmatch(tokenLine)
		if match == nil || match[0] != tokenLine {
			return nil, fmt.Errorf("line %d: mapping block must start with a single token, got %q", start+1, tokenLine)
		}
		keyField := strings.TrimSpace(block[1])
		valueField := strings.TrimSpace(block[2])
		if keyField == "" || valueField == "" {
			return nil, fmt.Errorf("line %d: mapping block field lines cannot be empty", start+2)
		}
		addToken(match[1])
		t.nodes = append(t.nodes, Node{
			Kind:       MappingNode,
			Token:      match[1],
			KeyField:   keyField,
			ValueField: valueField,
		})
		i = end
	}
	return t, nil
}

func parseLine(line string) Node {
	locs := tokenPattern.FindAllStringSubmatchIndex(line, -1)
	if len(locs) == 0 {
		return Node{Kind: LiteralNode, Text: line}
	}
	var segments []Segment
	pos := 0
	for _, loc := range locs {
		if loc[0] > pos {
			segments = append(segments, Segment{Text: line[pos:loc[0]]})
		}
		segments = append(segments, Segment{Token: line[loc[2]:loc[3]]})
		pos = loc[1]
	}
	if pos < len(line) {
		segments = append(segments, Segment{Text: line[pos:]})
	}
	return Node{Kind: ScalarNode, Segments: segments}
}

// dedent removes the longest whitespace prefix shared by all non-blank lines,
// strips trailing carriage returns and drops leading and trailing blank lines.
func dedent(body string) []string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = ""
			continue
		}
		out[i] = strings.TrimPrefix(line, prefix)
	}
	return out
}

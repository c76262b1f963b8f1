// Package format guesses the layout of a delimited data table from its first
// bytes.
package format

import (
	"strconv"
	"strings"

	"github.com/sourceplane/khiopsctl/internal/dictionary"
)

// HeadSize is the number of bytes read for detection.
const HeadSize = 64 * 1024

const maxSampleLines = 50

// Candidate separators, in tie-break order.
var candidates = []rune{'\t', ';', ',', '|', ' '}

// Format describes how a data table is laid out.
type Format struct {
	HeaderLine     bool
	FieldSeparator rune
}

// Default is the layout assumed when nothing is known.
func Default() Format {
	return Format{HeaderLine: true, FieldSeparator: '\t'}
}

// EngineSeparator returns the separator as the engine expects it in a scenario:
// empty for tab.
func (f Format) EngineSeparator() string {
	if f.FieldSeparator == '\t' || f.FieldSeparator == 0 {
		return ""
	}
	return string(f.FieldSeparator)
}

// Hint holds the values a caller already knows. Nil fields are unknown.
type Hint struct {
	HeaderLine     *bool
	FieldSeparator *rune
}

// Complete reports whether the hint leaves nothing to detect.
func (h Hint) Complete() bool {
	return h.HeaderLine != nil && h.FieldSeparator != nil
}

// Apply overrides f with every known value of h.
func (h Hint) Apply(f Format) Format {
	if h.HeaderLine != nil {
		f.HeaderLine = *h.HeaderLine
	}
	if h.FieldSeparator != nil {
		f.FieldSeparator = *h.FieldSeparator
	}
	return f
}

// Detect guesses the format of a table from its head. When dict is not nil the
// first line is a header if its fields are native variable names of dict.
func Detect(head []byte, dict *dictionary.Dictionary) Format {
	lines := sampleLines(string(head))
	if len(lines) == 0 {
		return Default()
	}

	sep := detectSeparator(lines)
	return Format{
		HeaderLine:     detectHeader(lines, sep, dict),
		FieldSeparator: sep,
	}
}

func sampleLines(text string) []string {
	raw := strings.Split(text, "\n")
	// the last line may be cut by the read limit
	if len(raw) > 1 && !strings.HasSuffix(text, "\n") {
		raw = raw[:len(raw)-1]
	}
	var lines []string
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == maxSampleLines {
			break
		}
	}
	return lines
}

// detectSeparator picks the candidate whose count on the first line is
// non-zero and repeated on the most lines.
func detectSeparator(lines []string) rune {
	best := '\t'
	bestScore := 0
	for _, c := range candidates {
		first := strings.Count(lines[0], string(c))
		if first == 0 {
			continue
		}
		score := 0
		for _, line := range lines {
			if strings.Count(line, string(c)) == first {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func detectHeader(lines []string, sep rune, dict *dictionary.Dictionary) bool {
	first := splitFields(lines[0], sep)

	if dict != nil {
		native := make(map[string]bool)
		for _, v := range dict.NativeVariables() {
			native[v.Name] = true
		}
		if len(native) > 0 {
			for _, field := range first {
				if !native[field] {
					return false
				}
			}
			return true
		}
	}

	for _, field := range first {
		if isNumber(field) {
			return false
		}
	}
	if len(lines) < 2 {
		return true
	}
	for _, field := range splitFields(lines[1], sep) {
		if isNumber(field) {
			return true
		}
	}
	// all text: a header is indistinguishable from data, keep the engine default
	return true
}

func splitFields(line string, sep rune) []string {
	fields := strings.Split(line, string(sep))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if len(f) >= 2 && strings.HasPrefix(f, `"`) && strings.HasSuffix(f, `"`) {
			f = strings.ReplaceAll(f[1:len(f)-1], `""`, `"`)
		}
		fields[i] = f
	}
	return fields
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

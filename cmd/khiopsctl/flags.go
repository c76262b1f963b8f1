package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/pflag"
)

// tableFormatFlags holds the header and separator flags of one table.
type tableFormatFlags struct {
	prefix    string
	header    bool
	separator string
}

func (f *tableFormatFlags) register(flags *pflag.FlagSet, prefix, what string) {
	f.prefix = prefix
	flags.BoolVar(&f.header, prefix+"header-line", true, "The "+what+" table starts with a header line")
	flags.StringVar(&f.separator, prefix+"field-separator", "", "Field separator of the "+what+" table (a single character or 'tab')")
}

// values returns the settings the user gave explicitly. Unset flags are nil
// so that detection or defaults can fill them.
func (f *tableFormatFlags) values(flags *pflag.FlagSet) (*bool, *rune, error) {
	var header *bool
	if flags.Changed(f.prefix + "header-line") {
		h := f.header
		header = &h
	}
	if !flags.Changed(f.prefix + "field-separator") {
		return header, nil, nil
	}
	sep, err := parseSeparator(f.separator)
	if err != nil {
		return nil, nil, err
	}
	return header, &sep, nil
}

func parseSeparator(s string) (rune, error) {
	switch s {
	case "", "tab", `\t`:
		return '\t', nil
	case "space":
		return ' ', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("invalid field separator %q: expected a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

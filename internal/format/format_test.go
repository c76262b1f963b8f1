package format_test

import (
	"testing"

	"github.com/sourceplane/khiopsctl/internal/dictionary"
	"github.com/sourceplane/khiopsctl/internal/format"
	"github.com/stretchr/testify/assert"
)

func irisDictionary() *dictionary.Dictionary {
	d := dictionary.New("Iris")
	for _, name := range []string{"SepalLength", "Class"} {
		_ = d.AddVariable(&dictionary.Variable{Name: name, Type: dictionary.Numerical, Used: true})
	}
	_ = d.AddVariable(&dictionary.Variable{Name: "Ratio", Type: dictionary.Numerical, Rule: "Divide(SepalLength, 2)"})
	return d
}

func TestDetect(t *testing.T) {
	t.Run("Should detect a tab separated table with a header", func(t *testing.T) {
		f := format.Detect([]byte("SepalLength\tClass\n5.1\tsetosa\n4.9\tsetosa\n"), nil)
		assert.Equal(t, format.Format{HeaderLine: true, FieldSeparator: '\t'}, f)
		assert.Equal(t, "", f.EngineSeparator())
	})

	t.Run("Should detect a semicolon separated table without header", func(t *testing.T) {
		f := format.Detect([]byte("5.1;3.5;setosa\n4.9;3.0;setosa\n4.7;3.2;set"), nil)
		assert.Equal(t, ';', f.FieldSeparator)
		assert.False(t, f.HeaderLine)
		assert.Equal(t, ";", f.EngineSeparator())
	})

	t.Run("Should prefer the most consistent separator", func(t *testing.T) {
		head := "a;b,c,d\n1;2,3,4\n5,6,7\n8,9,10\n"
		f := format.Detect([]byte(head), nil)
		assert.Equal(t, ',', f.FieldSeparator)
	})

	t.Run("Should match the header against native variables", func(t *testing.T) {
		dict := irisDictionary()
		f := format.Detect([]byte("Class,SepalLength\nsetosa,5.1\n"), dict)
		assert.True(t, f.HeaderLine)

		f = format.Detect([]byte("Class,Ratio\nsetosa,5.1\n"), dict)
		assert.False(t, f.HeaderLine)
	})

	t.Run("Should fall back to defaults on empty input", func(t *testing.T) {
		assert.Equal(t, format.Default(), format.Detect(nil, nil))
	})
}

func TestHint(t *testing.T) {
	header := false
	sep := ','

	t.Run("Should override detected values individually", func(t *testing.T) {
		hint := format.Hint{HeaderLine: &header}
		assert.False(t, hint.Complete())
		f := hint.Apply(format.Format{HeaderLine: true, FieldSeparator: ';'})
		assert.Equal(t, format.Format{HeaderLine: false, FieldSeparator: ';'}, f)
	})

	t.Run("Should be complete when both values are known", func(t *testing.T) {
		hint := format.Hint{HeaderLine: &header, FieldSeparator: &sep}
		assert.True(t, hint.Complete())
		assert.Equal(t, format.Format{HeaderLine: false, FieldSeparator: ','}, hint.Apply(format.Default()))
	})
}

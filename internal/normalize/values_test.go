package normalize_test

import (
	"testing"

	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/normalize"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/sourceplane/khiopsctl/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSpec() *task.Spec {
	return task.MustNew(task.Definition{
		Name:       "sample",
		Component:  "khiops",
		MinVersion: "9.0",
		Required: []task.Parameter{
			{Name: "dictionary_name", Type: params.StringLike},
		},
		Optional: []task.Parameter{
			{Name: "max_cells", Type: params.Int, Default: 0},
			{Name: "build", Type: params.Bool, Default: true},
			{Name: "parts", Type: params.MappingOf(params.StringLike, params.Int)},
		},
		Template: `
			ClassName __dictionary_name__
			MaxCellNumber __max_cells__
			Build __build__
			__DICT__
			__parts__
			Parts.List.Key
			Parts.MaxPartNumber
			__END_DICT__
		`,
	})
}

func TestParseAssignments(t *testing.T) {
	spec := sampleSpec()

	t.Run("Should parse values by declared type", func(t *testing.T) {
		values, err := normalize.ParseAssignments(spec, []string{
			"dictionary_name=Iris",
			"max_cells=100",
			"build=false",
			"parts=SepalLength=3,Class=2",
		})
		require.NoError(t, err)
		assert.Equal(t, "Iris", values["dictionary_name"])
		assert.Equal(t, int64(100), values["max_cells"])
		assert.Equal(t, false, values["build"])

		parts, ok := values["parts"].(*params.Mapping)
		require.True(t, ok)
		assert.Equal(t, []params.Entry{
			{Key: "SepalLength", Value: int64(3)},
			{Key: "Class", Value: int64(2)},
		}, parts.Entries())
	})

	t.Run("Should keep the text after the first equal sign", func(t *testing.T) {
		values, err := normalize.ParseAssignments(spec, []string{"dictionary_name=a=b"})
		require.NoError(t, err)
		assert.Equal(t, "a=b", values["dictionary_name"])
	})

	t.Run("Should reject unknown parameters", func(t *testing.T) {
		_, err := normalize.ParseAssignments(spec, []string{"colour=blue"})
		assert.ErrorIs(t, err, errs.ErrUnknownParameter)
	})

	t.Run("Should reject malformed values", func(t *testing.T) {
		_, err := normalize.ParseAssignments(spec, []string{"max_cells=many"})
		assert.ErrorIs(t, err, errs.ErrTypeMismatch)

		_, err = normalize.ParseAssignments(spec, []string{"parts=SepalLength"})
		assert.ErrorContains(t, err, "expected key=value")

		_, err = normalize.ParseAssignments(spec, []string{"parts=A=1,A=2"})
		assert.ErrorContains(t, err, "listed twice")

		_, err = normalize.ParseAssignments(spec, []string{"max_cells"})
		assert.ErrorContains(t, err, "expected name=value")
	})

	t.Run("Should reject a parameter assigned twice", func(t *testing.T) {
		_, err := normalize.ParseAssignments(spec, []string{"max_cells=1", "max_cells=2"})
		assert.ErrorContains(t, err, "assigned twice")
	})
}

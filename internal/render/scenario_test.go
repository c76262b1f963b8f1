package render_test

import (
	"testing"

	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/sourceplane/khiopsctl/internal/render"
	"github.com/sourceplane/khiopsctl/internal/task"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simplifySpec() *task.Spec {
	return task.MustNew(task.Definition{
		Name:       "simplify_coclustering",
		Component:  "khiops_coclustering",
		MinVersion: "9.0",
		Required: []task.Parameter{
			{Name: "coclustering_file_path", Type: params.StringLike, Artifact: true},
			{Name: "results_dir", Type: params.StringLike, Artifact: true},
		},
		Optional: []task.Parameter{
			{Name: "max_cells", Type: params.Int, Default: 0},
			{Name: "build_cluster_variable", Type: params.Bool, Default: true},
			{Name: "max_part_numbers", Type: params.MappingOf(params.StringLike, params.Int)},
			{Name: "results_prefix", Type: params.StringLike, Default: ""},
		},
		RequiredFlags: []string{"coclustering_file_path", "results_dir"},
		Template: `
			// Coclustering file
			InputCoclusteringFileName __coclustering_file_path__
			PostProcessingSpec.MaxCellNumber __max_cells__
			__DICT__
			__max_part_numbers__
			PostProcessingSpec.PostProcessedAttributes.List.Key
			PostProcessingSpec.PostProcessedAttributes.MaxPartNumber
			__END_DICT__
			DeploymentSpec.BuildPredictedClusterAttribute __build_cluster_variable__
			AnalysisResults.ResultFilesDirectory __results_dir__
			AnalysisResults.ResultFilesPrefix __results_prefix__
			Exit
		`,
	})
}

func TestRenderer_Render(t *testing.T) {
	r := render.NewRenderer()
	spec := simplifySpec()

	t.Run("Should expand scalars and mapping entries in insertion order", func(t *testing.T) {
		scenario, err := r.RenderValues(spec, map[string]any{
			"coclustering_file_path": "Iris.khcj",
			"results_dir":            "out",
			"max_cells":              500,
			"max_part_numbers":       params.NewMapping("b", 4, "a", 3),
		})
		require.NoError(t, err)

		expected := "// Coclustering file\n" +
			"InputCoclusteringFileName Iris.khcj\n" +
			"PostProcessingSpec.MaxCellNumber 500\n" +
			"PostProcessingSpec.PostProcessedAttributes.List.Key b\n" +
			"PostProcessingSpec.PostProcessedAttributes.MaxPartNumber 4\n" +
			"PostProcessingSpec.PostProcessedAttributes.List.Key a\n" +
			"PostProcessingSpec.PostProcessedAttributes.MaxPartNumber 3\n" +
			"DeploymentSpec.BuildPredictedClusterAttribute true\n" +
			"AnalysisResults.ResultFilesDirectory out\n" +
			"AnalysisResults.ResultFilesPrefix \n" +
			"Exit\n"
		assert.Equal(t, expected, scenario.Text)
		assert.Equal(t, []string{"Iris.khcj", "out"}, scenario.Artifacts)
		assert.Equal(t, "simplify_coclustering", scenario.Task)
	})

	t.Run("Should collapse an empty mapping block", func(t *testing.T) {
		scenario, err := r.RenderValues(spec, map[string]any{
			"coclustering_file_path": "Iris.khcj",
			"results_dir":            "out",
		})
		require.NoError(t, err)
		assert.NotContains(t, scenario.Text, "PostProcessedAttributes")
		assert.NotContains(t, scenario.Text, "__")
		assert.Contains(t, scenario.Text, "PostProcessingSpec.MaxCellNumber 0\n")
	})

	t.Run("Should render identical text for identical inputs", func(t *testing.T) {
		values := func() map[string]any {
			return map[string]any{
				"coclustering_file_path": "Iris.khcj",
				"results_dir":            "out",
				"max_part_numbers":       params.NewMapping("x", 1, "y", 2, "z", 3),
			}
		}
		first, err := r.RenderValues(spec, values())
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := r.RenderValues(spec, values())
			require.NoError(t, err)
			assert.Equal(t, first.Text, again.Text)
		}
	})

	t.Run("Should fail on an empty required-flagged value before expansion", func(t *testing.T) {
		_, err := r.RenderValues(spec, map[string]any{
			"coclustering_file_path": "Iris.khcj",
			"results_dir":            "",
		})
		assert.ErrorIs(t, err, errs.ErrMissingRequiredParameter)
		assert.ErrorContains(t, err, "results_dir")
	})

	t.Run("Should reject line breaks in string values", func(t *testing.T) {
		_, err := r.RenderValues(spec, map[string]any{
			"coclustering_file_path": "Iris.khcj\nExit",
			"results_dir":            "out",
		})
		assert.ErrorIs(t, err, errs.ErrTypeMismatch)
	})

	t.Run("Should reject a nil spec", func(t *testing.T) {
		_, err := r.Render(nil, task.Binding{})
		assert.Error(t, err)
	})
}

func TestRenderer_WriteScenario(t *testing.T) {
	t.Run("Should write the scenario and create parent directories", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		r := render.NewRenderer()
		scenario := &render.Scenario{Task: "t", Text: "Exit\n"}
		require.NoError(t, r.WriteScenario(fs, scenario, "/tmp/run/scenario._kh"))

		data, err := afero.ReadFile(fs, "/tmp/run/scenario._kh")
		require.NoError(t, err)
		assert.Equal(t, "Exit\n", string(data))
		assert.Contains(t, r.DebugDump(scenario), "Exit")
	})
}

func TestCatalogViewer(t *testing.T) {
	registry, err := task.NewRegistry(simplifySpec())
	require.NoError(t, err)
	viewer := render.NewCatalogViewer(registry)

	t.Run("Should list tasks with their version chains", func(t *testing.T) {
		tree := viewer.ViewTree()
		assert.Contains(t, tree, "simplify_coclustering [khiops_coclustering]")
		assert.Contains(t, tree, ">= 9.0 (2 required, 4 optional)")
	})

	t.Run("Should describe parameters and defaults", func(t *testing.T) {
		view := viewer.ViewTask("simplify_coclustering")
		assert.Contains(t, view, "results_dir (string) *non-empty")
		assert.Contains(t, view, "max_cells (int) = 0")
		assert.Contains(t, view, `results_prefix (string) = ""`)
		assert.Contains(t, view, "max_part_numbers (map[string]int) = <none>")
		assert.Contains(t, viewer.ViewTask("missing"), "No task found")
	})
}

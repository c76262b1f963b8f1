package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sourceplane/khiopsctl/internal/fsys"
	"github.com/sourceplane/khiopsctl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStep(fs *fsys.FileSystem, name, in, out string, calls *[]string) pipeline.Step {
	return pipeline.Step{
		Name:    name,
		Kind:    pipeline.LocalDerivation,
		Inputs:  []string{in},
		Outputs: []string{out},
		Run: func(_ context.Context, state *pipeline.State) error {
			*calls = append(*calls, name)
			path := state.Scope.Temp(out+"_", ".txt")
			if err := fs.WriteFile(path, []byte(state.Get(in))); err != nil {
				return err
			}
			state.Set(out, path)
			return nil
		},
	}
}

func TestPipeline_Validate(t *testing.T) {
	noop := func(context.Context, *pipeline.State) error { return nil }

	t.Run("Should reject reading an artifact before it is produced", func(t *testing.T) {
		p := &pipeline.Pipeline{Name: "deploy", Inputs: []string{"table"}, Steps: []pipeline.Step{
			{Name: "deploy", Inputs: []string{"keys"}, Outputs: []string{"deployed"}, Run: noop},
			{Name: "extract", Inputs: []string{"table"}, Outputs: []string{"keys"}, Run: noop},
		}}
		assert.ErrorContains(t, p.Validate(), "step deploy reads keys before any step produces it")
	})

	t.Run("Should reject artifacts produced twice", func(t *testing.T) {
		p := &pipeline.Pipeline{Name: "deploy", Inputs: []string{"table"}, Steps: []pipeline.Step{
			{Name: "a", Outputs: []string{"table"}, Run: noop},
		}}
		assert.ErrorContains(t, p.Validate(), "already provided by input")
	})

	t.Run("Should reject duplicate step names", func(t *testing.T) {
		p := &pipeline.Pipeline{Name: "deploy", Steps: []pipeline.Step{
			{Name: "a", Run: noop},
			{Name: "a", Run: noop},
		}}
		assert.ErrorContains(t, p.Validate(), "declared twice")
	})
}

func TestPipeline_Run(t *testing.T) {
	t.Run("Should run steps in order and clean temporaries on success", func(t *testing.T) {
		fs := fsys.NewMemory()
		var calls []string
		var progress bytes.Buffer
		p := &pipeline.Pipeline{
			Name:     "chain",
			Inputs:   []string{"source"},
			Progress: &progress,
			Steps: []pipeline.Step{
				writeStep(fs, "first", "source", "middle", &calls),
				writeStep(fs, "second", "middle", "final", &calls),
			},
		}
		scope := pipeline.NewScope(fs, pipeline.KeepOnFailure)
		state, err := p.Run(context.Background(), scope, map[string]string{"source": "data"})
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, calls)
		assert.Contains(t, progress.String(), "✓ second")

		temps := scope.Temporaries()
		require.Len(t, temps, 2)
		for _, path := range temps {
			assert.Contains(t, path, scope.Token())
		}
		content, err := fs.ReadFile(state.Get("final"))
		require.NoError(t, err)
		assert.Equal(t, temps[0], string(content))

		require.NoError(t, scope.Close(context.Background()))
		for _, path := range temps {
			exists, _ := fs.Exists(path)
			assert.False(t, exists)
		}
	})

	t.Run("Should stop at the first failure and keep temporaries", func(t *testing.T) {
		fs := fsys.NewMemory()
		var calls []string
		boom := errors.New("boom")
		p := &pipeline.Pipeline{
			Name:   "chain",
			Inputs: []string{"source"},
			Steps: []pipeline.Step{
				writeStep(fs, "first", "source", "middle", &calls),
				{Name: "broken", Kind: pipeline.EngineCall, Inputs: []string{"middle"}, Run: func(context.Context, *pipeline.State) error {
					calls = append(calls, "broken")
					return boom
				}},
				writeStep(fs, "never", "middle", "final", &calls),
			},
		}
		scope := pipeline.NewScope(fs, pipeline.KeepOnFailure)
		_, err := p.Run(context.Background(), scope, map[string]string{"source": "data"})
		require.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, "step broken failed")
		assert.Equal(t, []string{"first", "broken"}, calls)
		assert.True(t, scope.Failed())

		require.NoError(t, scope.Close(context.Background()))
		exists, _ := fs.Exists(scope.Temporaries()[0])
		assert.True(t, exists)
	})

	t.Run("Should fail when a step forgets its output", func(t *testing.T) {
		p := &pipeline.Pipeline{Name: "chain", Steps: []pipeline.Step{
			{Name: "lazy", Outputs: []string{"x"}, Run: func(context.Context, *pipeline.State) error { return nil }},
		}}
		_, err := p.Run(context.Background(), pipeline.NewScope(fsys.NewMemory(), ""), nil)
		assert.ErrorContains(t, err, "did not record its output x")
	})

	t.Run("Should fail on a missing pipeline input", func(t *testing.T) {
		p := &pipeline.Pipeline{Name: "chain", Inputs: []string{"source"}}
		_, err := p.Run(context.Background(), pipeline.NewScope(fsys.NewMemory(), ""), nil)
		assert.ErrorContains(t, err, "missing input source")
	})

	t.Run("Should not start steps after cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var calls []string
		fs := fsys.NewMemory()
		p := &pipeline.Pipeline{Name: "chain", Inputs: []string{"source"}, Steps: []pipeline.Step{
			writeStep(fs, "first", "source", "middle", &calls),
		}}
		_, err := p.Run(ctx, pipeline.NewScope(fs, ""), map[string]string{"source": "x"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, calls)
	})
}

func TestArtifactScope(t *testing.T) {
	t.Run("Should honour every cleanup policy", func(t *testing.T) {
		for _, tc := range []struct {
			policy  pipeline.CleanupPolicy
			failed  bool
			removed bool
		}{
			{pipeline.KeepOnFailure, false, true},
			{pipeline.KeepOnFailure, true, false},
			{pipeline.Always, true, true},
			{pipeline.Never, false, false},
		} {
			fs := fsys.NewMemory()
			scope := pipeline.NewScope(fs, tc.policy)
			path := scope.Temp("CC_", ".kdic")
			require.NoError(t, fs.WriteFile(path, []byte("x")))
			if tc.failed {
				scope.MarkFailed()
			}
			require.NoError(t, scope.Close(context.Background()))
			exists, _ := fs.Exists(path)
			assert.Equal(t, !tc.removed, exists, "policy %s failed=%v", tc.policy, tc.failed)
		}
	})

	t.Run("Should give concurrent scopes distinct paths", func(t *testing.T) {
		fs := fsys.NewMemory()
		a := pipeline.NewScope(fs, "").Temp("CC_", ".kdic")
		b := pipeline.NewScope(fs, "").Temp("CC_", ".kdic")
		assert.NotEqual(t, a, b)
		assert.True(t, strings.HasPrefix(a, "/tmp/CC_"))
	})

	t.Run("Should parse policy names", func(t *testing.T) {
		policy, err := pipeline.ParseCleanupPolicy("Always")
		require.NoError(t, err)
		assert.Equal(t, pipeline.Always, policy)
		policy, err = pipeline.ParseCleanupPolicy("")
		require.NoError(t, err)
		assert.Equal(t, pipeline.KeepOnFailure, policy)
		_, err = pipeline.ParseCleanupPolicy("sometimes")
		assert.Error(t, err)
	})
}

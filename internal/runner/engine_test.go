package runner_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/fsys"
	"github.com/sourceplane/khiopsctl/internal/render"
	"github.com/sourceplane/khiopsctl/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeEngine = `#!/bin/sh
if [ "$1" = "-v" ]; then
  echo "Khiops 10.2.1"
  exit 0
fi
while [ $# -gt 0 ]; do
  case "$1" in
    -i) scenario="$2"; shift ;;
    -e) log="$2"; shift ;;
  esac
  shift
done
if grep -q LOGERROR "$scenario"; then
  echo "error : Data table file Iris.txt: cannot open file" > "$log"
  exit 0
fi
if grep -q EXIT2 "$scenario"; then
  echo "fatal error : internal" > "$log"
  exit 2
fi
if grep -q SLEEP "$scenario"; then
  sleep 5
fi
echo "Khiops 10.2.1 batch" > "$log"
exit 0
`

func newFakeEngine(t *testing.T) (*runner.ProcessEngine, *prometheus.Registry) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine is a shell script")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "MODL")
	require.NoError(t, os.WriteFile(bin, []byte(fakeEngine), 0o755))

	reg := prometheus.NewRegistry()
	engine := runner.NewProcessEngine(bin, bin, fsys.NewOS(dir), &bytes.Buffer{})
	engine.Metrics = runner.NewMetrics(reg)
	return engine, reg
}

func scenario(text string) *render.Scenario {
	return &render.Scenario{Task: "deploy_model", Component: runner.ToolKhiops, Version: "10.0", Text: text}
}

func TestProcessEngine_Execute(t *testing.T) {
	t.Run("Should succeed on a clean run", func(t *testing.T) {
		engine, _ := newFakeEngine(t)
		require.NoError(t, engine.Execute(context.Background(), scenario("TransferDatabase\nExit\n")))
		assert.Equal(t, 1.0, testutil.ToFloat64(engine.Metrics.Invocations().WithLabelValues("deploy_model", "success")))
	})

	t.Run("Should fail when the log reports an error despite exit 0", func(t *testing.T) {
		engine, _ := newFakeEngine(t)
		err := engine.Execute(context.Background(), scenario("LOGERROR\n"))
		require.ErrorIs(t, err, errs.ErrEngineExecutionFailure)
		assert.ErrorContains(t, err, "cannot open file")
		assert.Equal(t, 1.0, testutil.ToFloat64(engine.Metrics.Invocations().WithLabelValues("deploy_model", "failure")))
	})

	t.Run("Should carry the exit code and log verbatim", func(t *testing.T) {
		engine, _ := newFakeEngine(t)
		err := engine.Execute(context.Background(), scenario("EXIT2\n"))
		var execErr *errs.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, 2, execErr.ExitCode)
		assert.Equal(t, "fatal error : internal\n", execErr.Log)
	})

	t.Run("Should kill the engine on timeout", func(t *testing.T) {
		engine, _ := newFakeEngine(t)
		engine.Timeout = 200 * time.Millisecond
		start := time.Now()
		err := engine.Execute(context.Background(), scenario("SLEEP\n"))
		assert.ErrorIs(t, err, errs.ErrEngineExecutionFailure)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("Should leave no temporary files behind", func(t *testing.T) {
		engine, _ := newFakeEngine(t)
		require.NoError(t, engine.Execute(context.Background(), scenario("Exit\n")))
		entries, err := os.ReadDir(engine.FS.TempDir())
		require.NoError(t, err)
		assert.Len(t, entries, 1) // the fake engine itself
	})

	t.Run("Should print scenarios in dry-run mode", func(t *testing.T) {
		var out bytes.Buffer
		engine := runner.NewProcessEngine("MODL", "MODL_Coclustering", fsys.NewMemory(), &out)
		engine.DryRun = true
		require.NoError(t, engine.Execute(context.Background(), scenario("TransferDatabase\nExit\n")))
		assert.Contains(t, out.String(), "→ deploy_model (MODL, spec 10.0)")
		assert.Contains(t, out.String(), "    TransferDatabase\n")
	})

	t.Run("Should reject unknown tools", func(t *testing.T) {
		engine := runner.NewProcessEngine("MODL", "", fsys.NewMemory(), &bytes.Buffer{})
		s := scenario("Exit\n")
		s.Component = runner.ToolCoclustering
		assert.ErrorContains(t, engine.Execute(context.Background(), s), "khiops_coclustering")
	})
}

func TestProcessEngine_Version(t *testing.T) {
	t.Run("Should detect the version from the tool", func(t *testing.T) {
		engine, _ := newFakeEngine(t)
		version, err := engine.Version(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "10.2.1", version)
	})

	t.Run("Should retry after a cancelled query", func(t *testing.T) {
		engine, _ := newFakeEngine(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := engine.Version(ctx)
		require.ErrorIs(t, err, context.Canceled)

		version, err := engine.Version(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "10.2.1", version)
	})

	t.Run("Should prefer a pinned version", func(t *testing.T) {
		engine := runner.NewProcessEngine("missing-binary", "", fsys.NewMemory(), &bytes.Buffer{})
		engine.PinnedVersion = "9.0.1"
		version, err := engine.Version(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "9.0.1", version)
	})
}

func TestParseVersion(t *testing.T) {
	for _, tc := range []struct {
		output   string
		expected string
	}{
		{"Khiops 10.2.1\n", "10.2.1"},
		{"Khiops 9.0", "9.0"},
		{"Khiops Coclustering 10.1.0-b.3", "10.1.0-b.3"},
	} {
		version, err := runner.ParseVersion(tc.output)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, version)
	}
	_, err := runner.ParseVersion("Khiops")
	assert.Error(t, err)
}

func TestLogErrors(t *testing.T) {
	log := "Khiops 10.2.1\nwarning : 3 records skipped\nerror : Missing key\nfatal error : stop\n"
	assert.Equal(t, []string{"error : Missing key", "fatal error : stop"}, runner.LogErrors(log))
	assert.Empty(t, runner.LogErrors("warning : only a warning\n"))
}

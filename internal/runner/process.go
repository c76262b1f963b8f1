package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/fsys"
	"github.com/sourceplane/khiopsctl/internal/logger"
	"github.com/sourceplane/khiopsctl/internal/render"
)

// ProcessEngine runs the engine tools as subprocesses in batch mode.
type ProcessEngine struct {
	Tools   map[string]string
	FS      *fsys.FileSystem
	Stdout  io.Writer
	DryRun  bool
	Timeout time.Duration
	Metrics *Metrics
	// PinnedVersion skips version detection when set.
	PinnedVersion string

	versionMu sync.Mutex
	version   string
}

// NewProcessEngine creates an engine running bin for standard tasks and
// coclusteringBin for coclustering tasks.
func NewProcessEngine(bin, coclusteringBin string, fs *fsys.FileSystem, stdout io.Writer) *ProcessEngine {
	return &ProcessEngine{
		Tools: map[string]string{
			ToolKhiops:       bin,
			ToolCoclustering: coclusteringBin,
		},
		FS:     fs,
		Stdout: stdout,
	}
}

func (e *ProcessEngine) tool(component string) (string, error) {
	bin, ok := e.Tools[component]
	if !ok || bin == "" {
		return "", fmt.Errorf("no executable configured for engine tool %q", component)
	}
	return bin, nil
}

// Execute writes the scenario to a temporary file, runs the tool on it and
// inspects the engine log.
func (e *ProcessEngine) Execute(ctx context.Context, scenario *render.Scenario) (err error) {
	if scenario == nil {
		return fmt.Errorf("scenario cannot be nil")
	}
	bin, err := e.tool(scenario.Component)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx).With("task", scenario.Task)

	if e.DryRun {
		fmt.Fprintf(e.Stdout, "→ %s (%s, spec %s)\n", scenario.Task, bin, scenario.Version)
		for _, line := range strings.Split(strings.TrimSuffix(scenario.Text, "\n"), "\n") {
			fmt.Fprintf(e.Stdout, "    %s\n", line)
		}
		return nil
	}

	start := time.Now()
	defer func() { e.Metrics.observe(scenario.Task, start, err) }()

	scenarioPath := e.FS.TempPath("scenario_", "._kh")
	logPath := e.FS.TempPath("engine_", ".log")
	if err := e.FS.WriteFile(scenarioPath, []byte(scenario.Text)); err != nil {
		return err
	}
	defer func() {
		if rmErr := e.FS.Remove(scenarioPath); rmErr != nil {
			log.Warn("failed to remove scenario file", "path", scenarioPath, "error", rmErr)
		}
		if rmErr := e.FS.Remove(logPath); rmErr != nil {
			log.Warn("failed to remove engine log", "path", logPath, "error", rmErr)
		}
	}()

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	log.Debug("running engine", "bin", bin, "scenario", scenarioPath)
	output, exitCode, runErr := run(ctx, bin, "-b", "-i", scenarioPath, "-e", logPath)
	engineLog := e.readLog(logPath)

	if runErr != nil {
		return &errs.ExecutionError{Task: scenario.Task, ExitCode: exitCode, Log: engineLog, Cause: runErr}
	}
	if exitCode != 0 {
		if engineLog == "" {
			engineLog = string(output)
		}
		return &errs.ExecutionError{Task: scenario.Task, ExitCode: exitCode, Log: engineLog}
	}
	if logErrors := LogErrors(engineLog); len(logErrors) > 0 {
		return &errs.ExecutionError{
			Task:  scenario.Task,
			Log:   engineLog,
			Cause: fmt.Errorf("engine log reports %d error(s): %s", len(logErrors), logErrors[0]),
		}
	}
	log.Debug("engine finished", "duration", time.Since(start))
	return nil
}

func (e *ProcessEngine) readLog(path string) string {
	exists, err := e.FS.Exists(path)
	if err != nil || !exists {
		return ""
	}
	data, err := e.FS.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// Version returns the pinned version, or asks the main tool. Only a
// successful answer is cached; a failed or cancelled query is retried by the
// next caller.
func (e *ProcessEngine) Version(ctx context.Context) (string, error) {
	if e.PinnedVersion != "" {
		return e.PinnedVersion, nil
	}
	e.versionMu.Lock()
	defer e.versionMu.Unlock()
	if e.version != "" {
		return e.version, nil
	}

	bin, err := e.tool(ToolKhiops)
	if err != nil {
		return "", err
	}
	output, exitCode, err := run(ctx, bin, "-v")
	if err != nil {
		return "", fmt.Errorf("failed to query engine version: %w", err)
	}
	if exitCode != 0 {
		return "", fmt.Errorf("engine version query exited with code %d", exitCode)
	}
	version, err := ParseVersion(string(output))
	if err != nil {
		return "", err
	}
	e.version = version
	return version, nil
}

// run starts bin and waits for it, killing its process group when ctx is done.
// A non-zero exit is reported through the exit code, not as an error.
func run(ctx context.Context, bin string, args ...string) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("execution cancelled: %w", err)
	}
	cmd := exec.Command(bin, args...)
	setProcessGroup(cmd)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return nil, 0, fmt.Errorf("failed to start %s: %w", bin, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return output.Bytes(), 0, fmt.Errorf("execution cancelled: %w", ctx.Err())
	case err = <-done:
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output.Bytes(), exitErr.ExitCode(), nil
		}
		return output.Bytes(), 0, fmt.Errorf("failed to execute %s: %w", bin, err)
	}
	return output.Bytes(), 0, nil
}

package runner

import (
	"context"
	"sync"

	"github.com/sourceplane/khiopsctl/internal/render"
)

// Recorder is an in-process Engine that records every scenario it receives.
// OnExecute, when set, simulates the engine: it can write the files a task
// produces or return a failure.
type Recorder struct {
	EngineVersion string
	OnExecute     func(ctx context.Context, scenario *render.Scenario) error

	mu           sync.Mutex
	scenarios    []*render.Scenario
	versionCalls int
}

// NewRecorder creates a recorder reporting version.
func NewRecorder(version string) *Recorder {
	return &Recorder{EngineVersion: version}
}

func (r *Recorder) Execute(ctx context.Context, scenario *render.Scenario) error {
	r.mu.Lock()
	r.scenarios = append(r.scenarios, scenario)
	r.mu.Unlock()
	if r.OnExecute != nil {
		return r.OnExecute(ctx, scenario)
	}
	return nil
}

func (r *Recorder) Version(context.Context) (string, error) {
	r.mu.Lock()
	r.versionCalls++
	r.mu.Unlock()
	return r.EngineVersion, nil
}

// Scenarios returns the recorded scenarios in execution order.
func (r *Recorder) Scenarios() []*render.Scenario {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*render.Scenario(nil), r.scenarios...)
}

// VersionCalls returns how many times the engine version was asked for. Each
// call stands for one subprocess of a real engine.
func (r *Recorder) VersionCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versionCalls
}

// Calls returns the number of recorded executions.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scenarios)
}

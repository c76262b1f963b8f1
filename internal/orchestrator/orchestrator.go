// Package orchestrator runs single engine tasks and the composite operations
// built from several of them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sourceplane/khiopsctl/internal/dictionary"
	"github.com/sourceplane/khiopsctl/internal/errs"
	"github.com/sourceplane/khiopsctl/internal/format"
	"github.com/sourceplane/khiopsctl/internal/fsys"
	"github.com/sourceplane/khiopsctl/internal/logger"
	"github.com/sourceplane/khiopsctl/internal/pipeline"
	"github.com/sourceplane/khiopsctl/internal/render"
	"github.com/sourceplane/khiopsctl/internal/runner"
	"github.com/sourceplane/khiopsctl/internal/task"
)

// Orchestrator resolves task specs against the installed engine, renders them
// and hands the scenarios to the engine.
type Orchestrator struct {
	registry *task.Registry
	engine   runner.Engine
	fs       *fsys.FileSystem
	renderer *render.Renderer
	validate *validator.Validate
	cleanup  pipeline.CleanupPolicy
	progress io.Writer

	versionMu sync.Mutex
	version   string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCleanupPolicy sets when composite operations remove their temporaries.
func WithCleanupPolicy(policy pipeline.CleanupPolicy) Option {
	return func(o *Orchestrator) { o.cleanup = policy }
}

// WithProgress prints one line per pipeline step to w.
func WithProgress(w io.Writer) Option {
	return func(o *Orchestrator) { o.progress = w }
}

// New creates an orchestrator.
func New(registry *task.Registry, engine runner.Engine, fs *fsys.FileSystem, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		engine:   engine,
		fs:       fs,
		renderer: render.NewRenderer(),
		validate: validator.New(),
		cleanup:  pipeline.KeepOnFailure,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EngineVersion returns the installed engine version, queried once.
func (o *Orchestrator) EngineVersion(ctx context.Context) (string, error) {
	o.versionMu.Lock()
	defer o.versionMu.Unlock()
	if o.version != "" {
		return o.version, nil
	}
	version, err := o.engine.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to determine engine version: %w", err)
	}
	o.version = version
	return version, nil
}

// Resolve picks the spec of a task for the installed engine.
func (o *Orchestrator) Resolve(ctx context.Context, name string) (*task.Spec, error) {
	version, err := o.EngineVersion(ctx)
	if err != nil {
		return nil, err
	}
	return o.registry.Resolve(name, version)
}

// RenderTask renders a task without running it.
func (o *Orchestrator) RenderTask(ctx context.Context, name string, values map[string]any) (*render.Scenario, error) {
	spec, err := o.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return o.renderer.RenderValues(spec, values)
}

// RunTask renders a task and runs it.
func (o *Orchestrator) RunTask(ctx context.Context, name string, values map[string]any) (*render.Scenario, error) {
	scenario, err := o.RenderTask(ctx, name, values)
	if err != nil {
		return nil, err
	}
	if err := o.engine.Execute(ctx, scenario); err != nil {
		return scenario, err
	}
	return scenario, nil
}

// resolveStep resolves every task a composite operation needs into specs. It
// runs after the local validation steps, since resolving may query the engine.
func (o *Orchestrator) resolveStep(specs map[string]*task.Spec, names ...string) pipeline.Step {
	return pipeline.Step{
		Name: "resolve-tasks",
		Kind: pipeline.LocalDerivation,
		Run: func(ctx context.Context, _ *pipeline.State) error {
			for _, name := range names {
				spec, err := o.Resolve(ctx, name)
				if err != nil {
					return err
				}
				specs[name] = spec
			}
			return nil
		},
	}
}

// engineStep renders the spec resolved for name with the values computed at
// run time and executes it. Rendered scenarios are appended to sink.
func (o *Orchestrator) engineStep(specs map[string]*task.Spec, name string, values func(*pipeline.State) map[string]any, sink *[]*render.Scenario) func(context.Context, *pipeline.State) error {
	return func(ctx context.Context, state *pipeline.State) error {
		spec, ok := specs[name]
		if !ok {
			return fmt.Errorf("task %s was not resolved before use", name)
		}
		scenario, err := o.renderer.RenderValues(spec, values(state))
		if err != nil {
			return err
		}
		*sink = append(*sink, scenario)
		logger.FromContext(ctx).Debug("executing engine task", "task", spec.String(), "artifacts", len(scenario.Artifacts))
		return o.engine.Execute(ctx, scenario)
	}
}

// checkRequest validates a request struct and maps the first failure onto the
// error taxonomy.
func (o *Orchestrator) checkRequest(operation string, req any) error {
	err := o.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required", "required_without":
		return errs.MissingParameter(operation, fe.Field())
	}
	return &errs.ParameterError{
		Kind:      errs.ErrTypeMismatch,
		Task:      operation,
		Parameter: fe.Field(),
		Detail:    fmt.Sprintf("value %v does not satisfy %s=%s", fe.Value(), fe.Tag(), fe.Param()),
	}
}

// loadDomain returns a private copy of the caller's domain or reads the file.
func (o *Orchestrator) loadDomain(path string, dom *dictionary.Domain) (*dictionary.Domain, error) {
	if dom != nil {
		return dom.Copy(), nil
	}
	return dictionary.ReadFile(o.fs.Afero(), path)
}

func lookupDictionary(dom *dictionary.Domain, name string) (*dictionary.Dictionary, error) {
	d, ok := dom.Get(name)
	if !ok {
		return nil, &errs.SchemaError{Dictionary: name, Reason: "is not defined in the dictionary domain"}
	}
	return d, nil
}

// resolveFormat detects the input table format unless the caller fixed both
// values. Known values always win over detected ones.
func (o *Orchestrator) resolveFormat(ctx context.Context, detect bool, hint format.Hint, dataTable string, dict *dictionary.Dictionary) (format.Format, error) {
	if !detect || hint.Complete() {
		return hint.Apply(format.Default()), nil
	}
	head, err := o.fs.ReadHead(dataTable, format.HeadSize)
	if err != nil {
		return format.Format{}, err
	}
	detected := format.Detect(head, dict)
	logger.FromContext(ctx).Debug("detected table format",
		"table", dataTable, "header", detected.HeaderLine, "separator", string(detected.FieldSeparator))
	return hint.Apply(detected), nil
}

// outputFormat applies the caller's output settings over header=true, sep=tab.
func outputFormat(header *bool, sep *rune) format.Format {
	return format.Hint{HeaderLine: header, FieldSeparator: sep}.Apply(format.Default())
}

// runPipeline runs p in a fresh scope and closes the scope on every path.
func (o *Orchestrator) runPipeline(ctx context.Context, p *pipeline.Pipeline, inputs map[string]string) (state *pipeline.State, err error) {
	scope := pipeline.NewScope(o.fs, o.cleanup)
	ctx = logger.ContextWithLogger(ctx, logger.FromContext(ctx).With("scope", scope.Token()))
	defer func() {
		if closeErr := scope.Close(ctx); closeErr != nil {
			logger.FromContext(ctx).Warn("temporary cleanup incomplete", "error", closeErr)
		}
	}()
	p.Progress = o.progress
	return p.Run(ctx, scope, inputs)
}

// Bool returns a pointer to b, for optional request fields.
func Bool(b bool) *bool { return &b }

// Rune returns a pointer to r, for optional request fields.
func Rune(r rune) *rune { return &r }

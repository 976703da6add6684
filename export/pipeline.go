package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pipeline runs one export as a scoped acquisition: acquire an engine,
// assemble the document, render it, and always release the engine.
type Pipeline struct {
	Acquirer    Acquirer
	Dispatcher  *Dispatcher
	Profiles    ProfileSource
	Sanitizer   Sanitizer
	Assembler   func(markup string) (DocumentShell, error)
	History     HistoryStore
	Observer    StateObserver
	Logger      Logger
	Now         func() time.Time
	IDGenerator func() string
}

// NewPipeline creates a pipeline with default dispatcher and environment
// profile detection.
func NewPipeline(acquirer Acquirer) *Pipeline {
	return &Pipeline{
		Acquirer:    acquirer,
		Dispatcher:  NewDispatcher(),
		Profiles:    EnvProfileSource{},
		Assembler:   Assemble,
		Logger:      NopLogger{},
		Now:         time.Now,
		IDGenerator: uuid.NewString,
	}
}

var _ Exporter = (*Pipeline)(nil)

// Export validates req and runs it to completion. On failure the returned
// error is an *ExportError; its Kind is one of validation, acquisition,
// render or internal. A panic raised while assembling or rendering is
// recovered and reported as internal.
func (p *Pipeline) Export(ctx context.Context, req RenderRequest) (artifact Artifact, err error) {
	if p == nil {
		return Artifact{}, NewError(KindInternal, "pipeline is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := req.Validate(); err != nil {
		return Artifact{}, err
	}
	if p.Acquirer == nil {
		return Artifact{}, NewError(KindInternal, "pipeline requires an acquirer", nil)
	}
	p.applyDefaults()

	markup := req.Markup
	if p.Sanitizer != nil {
		markup = p.Sanitizer.Sanitize(markup)
		if strings.TrimSpace(markup) == "" {
			return Artifact{}, NewError(KindValidation, "HTML content is required", nil)
		}
	}

	runID := p.IDGenerator()
	startedAt := p.Now()
	profile := p.Profiles.Profile()
	tracker := newStateTracker(runID, p.Observer, p.Logger)

	defer func() {
		p.record(ctx, runID, req.Mode, profile.Class, startedAt, artifact, err)
	}()

	p.advance(ctx, tracker, StateAcquiring)
	handle, err := p.Acquirer.Acquire(ctx, profile)
	if err == nil && handle == nil {
		err = NewError(KindAcquisition, "acquirer returned no engine", nil)
	}
	if err != nil {
		err = classify(KindAcquisition, "engine acquisition failed", err)
		p.advance(ctx, tracker, StateClosing)
		p.advance(ctx, tracker, StateFailed)
		p.logFailure(runID, req.Mode, profile.Class, err)
		return Artifact{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = NewError(KindInternal, "export panicked", fmt.Errorf("%v", r))
			artifact = Artifact{}
		}
		p.advance(ctx, tracker, StateClosing)
		p.release(runID, handle)
		if err != nil {
			p.advance(ctx, tracker, StateFailed)
			p.logFailure(runID, req.Mode, profile.Class, err)
			return
		}
		p.advance(ctx, tracker, StateDone)
	}()

	p.advance(ctx, tracker, StateAssembling)
	shell, err := p.Assembler(markup)
	if err != nil {
		return Artifact{}, classify(KindInternal, "document assembly failed", err)
	}

	p.advance(ctx, tracker, StateRendering)
	artifact, err = p.Dispatcher.Render(ctx, handle, shell, req.Mode)
	if err != nil {
		return Artifact{}, classify(KindRender, "render failed", err)
	}
	artifact.Filename = SuggestedFilename(req.Mode, startedAt)

	p.Logger.Infof("export %s: rendered %s (%d bytes, profile=%s)", runID, req.Mode, len(artifact.Bytes), profile.Class)
	return artifact, nil
}

func (p *Pipeline) applyDefaults() {
	if p.Dispatcher == nil {
		p.Dispatcher = NewDispatcher()
	}
	if p.Profiles == nil {
		p.Profiles = EnvProfileSource{}
	}
	if p.Assembler == nil {
		p.Assembler = Assemble
	}
	if p.Logger == nil {
		p.Logger = NopLogger{}
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.IDGenerator == nil {
		p.IDGenerator = uuid.NewString
	}
}

func (p *Pipeline) advance(ctx context.Context, tracker *stateTracker, to PipelineState) {
	if err := tracker.advance(ctx, to); err != nil {
		p.Logger.Errorf("export %s: %v", tracker.runID, err)
	}
}

// release closes the handle. Teardown failures are logged and never replace
// the run outcome.
func (p *Pipeline) release(runID string, handle EngineHandle) {
	if err := handle.Close(); err != nil {
		teardown := NewError(KindTeardown, "engine teardown failed", err)
		p.Logger.Errorf("export %s: %v", runID, teardown)
	}
}

func (p *Pipeline) logFailure(runID string, mode Mode, profile ProfileClass, err error) {
	p.Logger.Errorf("export %s: %s export failed (kind=%s, profile=%s): %v", runID, mode, KindFromError(err), profile, err)
}

func (p *Pipeline) record(ctx context.Context, runID string, mode Mode, profile ProfileClass, startedAt time.Time, artifact Artifact, err error) {
	if p.History == nil {
		return
	}
	completedAt := p.Now()
	record := RenderRecord{
		ID:          runID,
		Mode:        mode,
		Profile:     profile,
		State:       RunDone,
		Bytes:       int64(len(artifact.Bytes)),
		Filename:    artifact.Filename,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
	}
	if err != nil {
		record.State = RunFailed
		record.ErrorKind = KindFromError(err)
		record.Bytes = 0
		record.Filename = ""
	}
	if recErr := p.History.Record(context.WithoutCancel(ctx), record); recErr != nil {
		p.Logger.Errorf("export %s: record history: %v", runID, recErr)
	}
}

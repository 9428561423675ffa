package core

import (
	"context"
	"sync"
	"time"
)

// Observer is told about every finished run. Implementations must not block.
type Observer interface {
	ObserveRun(RunSummary)
}

// Pipeline is the entry point for parsing a file into BOQ items. It holds a
// default configuration that callers may replace between runs; each run
// works on its own copy, so runs may proceed concurrently.
type Pipeline struct {
	mu        sync.RWMutex
	config    ParseConfig
	observers []Observer
}

// NewPipeline creates a pipeline with cfg as its default configuration.
func NewPipeline(cfg ParseConfig, observers ...Observer) *Pipeline {
	return &Pipeline{
		config:    cfg.Clone(),
		observers: observers,
	}
}

// Configuration returns a copy of the current default configuration.
func (p *Pipeline) Configuration() ParseConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.Clone()
}

// UpdateConfiguration applies partial on top of the default configuration.
// Runs already in flight keep the configuration they started with.
func (p *Pipeline) UpdateConfiguration(partial PartialConfig) ParseConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = partial.Apply(p.config)
	return p.config.Clone()
}

// ParseOption adjusts a single run.
type ParseOption func(*runSettings)

type runSettings struct {
	config     ParseConfig
	onProgress ProgressFunc
	runID      string
}

// WithConfig replaces the default configuration for one run.
func WithConfig(cfg ParseConfig) ParseOption {
	return func(s *runSettings) { s.config = cfg.Clone() }
}

// WithProgress sets the progress sink for one run.
func WithProgress(fn ProgressFunc) ParseOption {
	return func(s *runSettings) { s.onProgress = fn }
}

// WithRunID tags progress and observer notifications with id.
func WithRunID(id string) ParseOption {
	return func(s *runSettings) { s.runID = id }
}

// ParseSpreadsheet parses in as a workbook regardless of its name.
func (p *Pipeline) ParseSpreadsheet(ctx context.Context, in FileInput, opts ...ParseOption) ParseResult {
	return p.run(ctx, in, FormatSpreadsheet, opts)
}

// ParseDelimitedText parses in as delimited text regardless of its name.
func (p *Pipeline) ParseDelimitedText(ctx context.Context, in FileInput, opts ...ParseOption) ParseResult {
	return p.run(ctx, in, FormatDelimitedText, opts)
}

// ParseAuto detects the format of in and parses it.
func (p *Pipeline) ParseAuto(ctx context.Context, in FileInput, opts ...ParseOption) ParseResult {
	return p.run(ctx, in, FormatUnsupported, opts)
}

// run executes one pass. ctx only supplies the logger: a started run always
// finishes, and callers wanting cancellation discard the result.
func (p *Pipeline) run(ctx context.Context, in FileInput, kind FormatKind, opts []ParseOption) ParseResult {
	start := time.Now()

	settings := runSettings{config: p.Configuration()}
	for _, opt := range opts {
		opt(&settings)
	}
	cfg := settings.config

	logger := LoggerFromContext(ctx).With("file", in.Name)
	if settings.runID != "" {
		logger = logger.With("run_id", settings.runID)
	}

	progress := func(lo, hi int) ProgressFunc {
		return func(pr Progress) {
			pr.RunID = settings.runID
			pr.FileName = in.Name
			pr.Percent = lo + min(max(pr.Percent, 0), 100)*(hi-lo)/100
			notify(settings.onProgress, pr)
		}
	}

	finish := func(result ParseResult, phase Phase) ParseResult {
		notify(settings.onProgress, Progress{
			RunID:     settings.runID,
			FileName:  in.Name,
			Phase:     phase,
			Percent:   100,
			RowsDone:  result.Metadata.TotalRows,
			RowsTotal: result.Metadata.TotalRows,
		})

		logger.Info("parse finished",
			"success", result.Success,
			"format", result.Metadata.DetectedFormat.String(),
			"items", len(result.Items),
			"errors", len(result.Errors),
			"warnings", len(result.Warnings),
			"duration_ms", result.Metadata.ProcessingTimeMs,
		)

		summary := RunSummary{
			RunID:    settings.runID,
			FileName: in.Name,
			Result:   result,
			Duration: time.Since(start),
		}
		for _, o := range p.observers {
			observe(o, summary)
		}
		return result
	}

	fail := func(format FormatKind, err error) ParseResult {
		logger.Warn("parse rejected", "error", err)
		return finish(FailedResult(in.Name, format, ErrorFormat, err, time.Since(start)), PhaseFailed)
	}

	logger.Info("parse started", "size", in.Size)
	notify(settings.onProgress, Progress{RunID: settings.runID, FileName: in.Name, Phase: PhaseDetecting})

	if kind == FormatUnsupported {
		detected, err := DetectFormat(in.Name, in.MediaType, in.Size, cfg.maxFileSize())
		if err != nil {
			return fail(FormatUnsupported, err)
		}
		kind = detected
	} else if err := checkSize(in.Size, cfg.maxFileSize()); err != nil {
		return fail(kind, err)
	}

	reader := ReaderFor(kind, cfg)
	grid, err := reader.Read(in, progress(5, 50))
	if err != nil {
		return fail(kind, err)
	}

	b := NewResultBuilder(in.Name, kind)
	stats := NewDataProcessor(cfg, logger).ForFormat(kind).Process(grid, b, progress(50, 100))
	return finish(b.Build(stats, time.Since(start)), PhaseComplete)
}

// observe calls o and discards any panic it raises.
func observe(o Observer, s RunSummary) {
	defer func() { _ = recover() }()
	o.ObserveRun(s)
}

package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ppiankov/termwatch/internal/alert"
	"github.com/ppiankov/termwatch/internal/audit"
	"github.com/ppiankov/termwatch/internal/history"
	"github.com/ppiankov/termwatch/internal/policy"
)

// ProcessorConfig holds runtime configuration for transcript processing.
// Audit, History and Alerts are optional.
type ProcessorConfig struct {
	Dirs      DirConfig
	Evaluator *policy.Evaluator
	Audit     *audit.Log
	History   *history.Store
	Alerts    *alert.Dispatcher
}

// Processor moves one transcript through its lifecycle.
type Processor struct {
	cfg  ProcessorConfig
	eval atomic.Pointer[policy.Evaluator]
}

// NewProcessor creates a processor with the given configuration.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Evaluator == nil {
		cfg.Evaluator = policy.New(nil, nil)
	}
	p := &Processor{cfg: cfg}
	p.eval.Store(cfg.Evaluator)
	return p
}

// Evaluator returns the evaluator used for new transcripts.
func (p *Processor) Evaluator() *policy.Evaluator { return p.eval.Load() }

// SetEvaluator replaces the evaluator used for new transcripts.
func (p *Processor) SetEvaluator(e *policy.Evaluator) { p.eval.Store(e) }

// Process handles a single transcript:
// validate → move to processing → evaluate → write report → move to done.
// A transcript that cannot be read ends in failed with a failed report.
func (p *Processor) Process(ctx context.Context, path string) error {
	// Reject symlinks before reading so an inbox entry cannot point the
	// daemon at an arbitrary file.
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat transcript: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("rejected symlink: %s", filepath.Base(path))
	}

	name := filepath.Base(path)
	id := TranscriptID(name)
	if err := ValidateID(id); err != nil {
		if mvErr := moveFile(path, filepath.Join(p.cfg.Dirs.FailedDir(), name)); mvErr != nil {
			_ = os.Remove(path)
		}
		return p.writeFailedReport("", name, fmt.Sprintf("validation failed: %v", err))
	}

	processingPath := filepath.Join(p.cfg.Dirs.ProcessingDir(), name)
	if err := moveFile(path, processingPath); err != nil {
		return fmt.Errorf("move to processing: %w", err)
	}

	res, doc, err := p.Evaluator().EvaluateFile(processingPath)
	if err != nil {
		_ = moveFile(processingPath, filepath.Join(p.cfg.Dirs.FailedDir(), name))
		return p.writeFailedReport(id, name, err.Error())
	}

	report := &Report{
		ID:             id,
		Transcript:     name,
		TranscriptHash: doc.Hash,
		Status:         ReportDone,
		Result:         res,
		CompletedAt:    time.Now().UTC(),
	}
	if err := p.writeReport(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	donePath := filepath.Join(p.cfg.Dirs.DoneDir(), name)
	if p.cfg.Audit != nil {
		if err := p.cfg.Audit.Record(audit.EntryFromResult(donePath, doc.Hash, res)); err != nil {
			fmt.Fprintf(os.Stderr, "daemon: audit %s: %v\n", name, err)
		}
	}
	if p.cfg.History != nil {
		if _, err := p.cfg.History.Record(ctx, history.RunFromResult(donePath, doc.Hash, res)); err != nil {
			fmt.Fprintf(os.Stderr, "daemon: history %s: %v\n", name, err)
		}
	}

	if p.cfg.Alerts != nil {
		p.cfg.Alerts.Dispatch(alert.EventFromResult(donePath, doc.Hash, res))
	}

	if err := moveFile(processingPath, donePath); err != nil {
		return fmt.Errorf("move to done: %w", err)
	}
	return nil
}

// writeReport writes a report to the outbox directory atomically.
func (p *Processor) writeReport(r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	filename := r.ID + ".json"
	tmpPath := filepath.Join(p.cfg.Dirs.Outbox, filename+".tmp")
	finalPath := filepath.Join(p.cfg.Dirs.Outbox, filename)

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	return os.Rename(tmpPath, finalPath)
}

// writeFailedReport writes a minimal failed report. An empty id is
// replaced by a generated one.
func (p *Processor) writeFailedReport(id, name, errMsg string) error {
	if id == "" {
		id = fmt.Sprintf("unknown-%d", time.Now().UnixNano())
	}
	r := &Report{
		ID:          id,
		Transcript:  name,
		Status:      ReportFailed,
		Error:       errMsg,
		CompletedAt: time.Now().UTC(),
	}
	return p.writeReport(r)
}

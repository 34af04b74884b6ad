package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finplan/internal/amqp"
	"finplan/internal/log"
	"finplan/internal/metrics"
	"finplan/internal/sheets"
	"finplan/internal/storage"
)

// Journal is the part of the submission journal the exporter needs.
type Journal interface {
	Get(ctx context.Context, id string) (storage.Entry, error)
	ListUnexported(ctx context.Context, limit int) ([]storage.Entry, error)
	MarkExported(ctx context.Context, id, sheetsRef string) error
}

// Config holds configuration for the export worker
type Config struct {
	// SweepInterval is how often unexported entries are retried (default: 30s)
	SweepInterval time.Duration

	// BatchSize is the max number of entries exported per sweep (default: 10)
	BatchSize int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		SweepInterval: 30 * time.Second,
		BatchSize:     10,
	}
}

// ExportWorker copies journalled records to the spreadsheet. Messages from
// the broker are the fast path; the periodic sweep picks up anything whose
// message was lost.
type ExportWorker struct {
	journal  Journal
	appender sheets.RecordAppender
	config   Config
	logger   *log.Logger
	metrics  *metrics.Metrics

	// Serializes exports so a message and a sweep never append the same entry twice.
	exportMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportWorker(journal Journal, appender sheets.RecordAppender, config Config, logger *log.Logger, m *metrics.Metrics) *ExportWorker {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultConfig().SweepInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportWorker{
		journal:  journal,
		appender: appender,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
		metrics:  m,
	}
}

// HandleRecordSubmitted exports the entry named by msg. Unknown entries are
// dropped; a failed append is returned so the message is requeued.
func (w *ExportWorker) HandleRecordSubmitted(ctx context.Context, msg *amqp.RecordSubmittedMessage) error {
	w.logger.InfoContext(ctx, "Processing record submitted message",
		log.FieldOperation, log.OpConsume,
		log.FieldRecordID, msg.ID,
		log.FieldRecordKind, msg.Kind,
	)

	w.exportMu.Lock()
	defer w.exportMu.Unlock()

	entry, err := w.journal.Get(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Journal entry not found, dropping message", log.FieldRecordID, msg.ID)
		w.metrics.ObserveExport(metrics.OutcomeFailure)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get journal entry: %w", err)
	}

	return w.export(ctx, entry)
}

// Sweep exports up to BatchSize unexported entries and returns how many
// reached the spreadsheet.
func (w *ExportWorker) Sweep(ctx context.Context) (int, error) {
	w.exportMu.Lock()
	defer w.exportMu.Unlock()

	pending, err := w.journal.ListUnexported(ctx, w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unexported entries: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Sweeping unexported entries", "count", len(pending))

	exported := 0
	for _, entry := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		if err := w.export(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export entry",
				log.FieldOperation, log.OpExport,
				log.FieldRecordID, entry.ID,
				log.FieldError, err.Error(),
			)
			continue
		}
		exported++
	}
	return exported, nil
}

func (w *ExportWorker) export(ctx context.Context, entry storage.Entry) error {
	if entry.Exported() {
		w.logger.DebugContext(ctx, "Entry already exported", log.FieldRecordID, entry.ID)
		return nil
	}

	ref, err := w.appender.Append(ctx, entry)
	if err != nil {
		w.metrics.ObserveExport(metrics.OutcomeFailure)
		return fmt.Errorf("append to sheets: %w", err)
	}
	w.metrics.ObserveExport(metrics.OutcomeSuccess)

	if err := w.journal.MarkExported(ctx, entry.ID, ref); err != nil {
		// The row exists; a later sweep would duplicate it, so only log.
		w.logger.ErrorContext(ctx, "Failed to mark entry exported",
			log.FieldRecordID, entry.ID,
			log.FieldSheetsRef, ref,
			log.FieldError, err.Error(),
		)
		return nil
	}

	w.logger.InfoContext(ctx, "Exported entry",
		log.FieldOperation, log.OpExport,
		log.FieldRecordID, entry.ID,
		log.FieldRecordKind, string(entry.Kind),
		log.FieldSheetsRef, ref,
	)
	return nil
}

// Start begins the sweep loop. Returns an error if already running.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("export worker is already running")
	}
	w.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	w.stopCh, w.doneCh = stopCh, doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	w.logger.InfoContext(ctx, "Export worker started",
		"sweep_interval", w.config.SweepInterval,
		"batch_size", w.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for the current sweep to finish.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Export worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}
}

func (w *ExportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ExportWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Catch up on startup
	w.sweep(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExportWorker) sweep(ctx context.Context) {
	if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Export sweep failed", log.FieldError, err.Error())
	}
}

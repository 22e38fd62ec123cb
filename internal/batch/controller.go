package batch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/domain"
	"github.com/yeleman/anam-desktop/internal/importer"
	"github.com/yeleman/anam-desktop/internal/survey"
)

// DefaultCheckpointEvery records between intermediate commits
const DefaultCheckpointEvery = 50

// ErrAlreadyRun a Controller imports a single dataset
var ErrAlreadyRun = errors.New("batch controller already used")

// Session exclusive transactional connection owned by one run
type Session interface {
	importer.Tx
	Commit() error
	Rollback() error
	Close() error
}

// ConnectFunc opens the run's session
type ConnectFunc func(ctx context.Context) (Session, error)

// RecordImporter imports one survey record within the session
type RecordImporter interface {
	ImportRecord(ctx context.Context, tx importer.Tx, rec survey.Record) (domain.IdentifierMap, error)
}

// Notifier acknowledges a committed dataset to the dataset service
type Notifier interface {
	MarkImported(ctx context.Context, collectID string, ids domain.IdentifierMap) error
}

// Observer receives progress after every record and state change. It is
// called on the import goroutine and must not block.
type Observer interface {
	OnProgress(p Progress)
}

// Config controller settings
type Config struct {
	RunID           string
	CheckpointEvery int
}

// Controller drives one import run: connect, import every record in order
// with a commit every CheckpointEvery records, commit, then notify.
type Controller struct {
	cfg      Config
	connect  ConnectFunc
	importer RecordImporter
	notifier Notifier
	observer Observer
	logger   *zap.Logger

	mu       sync.Mutex
	used     bool
	progress Progress
}

// NewController creates a controller. notifier and observer may be nil.
func NewController(cfg Config, connect ConnectFunc, imp RecordImporter, notifier Notifier, observer Observer, logger *zap.Logger) *Controller {
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = DefaultCheckpointEvery
	}
	return &Controller{
		cfg:      cfg,
		connect:  connect,
		importer: imp,
		notifier: notifier,
		observer: observer,
		logger:   logger,
		progress: Progress{RunID: cfg.RunID, State: StateIdle, StateName: StateIdle.String()},
	}
}

// Progress returns the latest snapshot
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Run imports records of dataset collectID. The returned report is never
// nil; err is non-nil unless the run Succeeded. Once records are being
// imported, ctx cancellation no longer interrupts the run; it only bounds
// connecting and the final notification.
func (c *Controller) Run(ctx context.Context, collectID string, records []survey.Record) (*Report, error) {
	c.mu.Lock()
	if c.used {
		c.mu.Unlock()
		return &Report{RunID: c.cfg.RunID, CollectID: collectID, State: StateFailed, Err: ErrAlreadyRun}, ErrAlreadyRun
	}
	c.used = true
	c.progress.CollectID = collectID
	c.progress.Total = len(records)
	c.mu.Unlock()

	log := c.logger.With(
		zap.String("run_id", c.cfg.RunID),
		zap.String("collect_id", collectID),
		zap.Int("total", len(records)))

	report := &Report{
		RunID:       c.cfg.RunID,
		CollectID:   collectID,
		Total:       len(records),
		Identifiers: domain.IdentifierMap{},
	}

	c.transition(StateConnecting)
	session, err := c.connect(ctx)
	if err != nil {
		var connErr *domain.ConnectionError
		if !errors.As(err, &connErr) {
			err = &domain.ConnectionError{Target: "case database", Err: err}
		}
		return c.fail(log, report, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("Failed to close session", zap.Error(err))
		}
	}()

	importCtx := context.WithoutCancel(ctx)
	c.transition(StateImporting)

	// identifiers reach the report only once their transaction commits
	pending, pendingIDs := 0, domain.IdentifierMap{}
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		c.update(func(p *Progress) { p.Index = i + 1 })

		ids, err := c.importOne(importCtx, session, rec, seen)
		if err != nil {
			if rbErr := session.Rollback(); rbErr != nil {
				log.Error("Rollback failed", zap.Error(rbErr))
			}
			report.FailedIndex = i + 1
			report.FailedIdent = rec.Ident()
			report.RolledBack = pending + 1
			log.Error("Record import failed, rolled back",
				zap.Int("record_index", i+1),
				zap.String("ident", report.FailedIdent),
				zap.Int("committed", report.Committed),
				zap.Int("rolled_back", report.RolledBack),
				zap.Error(err))
			return c.fail(log, report, err)
		}

		pendingIDs.Merge(ids)
		pending++
		report.Processed++
		c.update(func(p *Progress) { p.Processed = report.Processed })

		if pending == c.cfg.CheckpointEvery && i+1 < len(records) {
			if err := c.commit(session, report, pending, pendingIDs); err != nil {
				log.Error("Checkpoint commit failed", zap.Int("record_index", i+1), zap.Error(err))
				return c.fail(log, report, err)
			}
			pending, pendingIDs = 0, domain.IdentifierMap{}
			log.Info("Checkpoint committed", zap.Int("committed", report.Committed))
			c.transition(StateImporting)
		}
	}

	if err := c.commit(session, report, pending, pendingIDs); err != nil {
		log.Error("Final commit failed", zap.Error(err))
		return c.fail(log, report, err)
	}
	log.Info("Import committed", zap.Int("committed", report.Committed))

	c.transition(StateFinalizing)
	if c.notifier != nil {
		if err := c.notifier.MarkImported(ctx, collectID, report.Identifiers); err != nil {
			var notifErr *domain.NotificationError
			if !errors.As(err, &notifErr) {
				err = &domain.NotificationError{CollectID: collectID, Err: err}
			}
			report.Err = err
			report.State = StatePartiallyFailed
			c.transition(StatePartiallyFailed)
			log.Error("Dataset committed but not marked imported", zap.Error(err))
			return report, err
		}
	}

	report.State = StateSucceeded
	c.transition(StateSucceeded)
	log.Info("Import succeeded")
	return report, nil
}

// importOne rejects an ident already seen in this run, then imports rec
func (c *Controller) importOne(ctx context.Context, session Session, rec survey.Record, seen map[string]struct{}) (domain.IdentifierMap, error) {
	ident := rec.Ident()
	if _, dup := seen[ident]; dup && ident != "" {
		return nil, &domain.ValidationError{Ident: ident, Err: domain.ErrDuplicateIdent}
	}
	ids, err := c.importer.ImportRecord(ctx, session, rec)
	if err != nil {
		return nil, err
	}
	seen[ident] = struct{}{}
	return ids, nil
}

// commit makes pending records durable. The committed count and the
// identifier map only move by what the transaction held.
func (c *Controller) commit(session Session, report *Report, pending int, ids domain.IdentifierMap) error {
	c.transition(StateCommitting)
	if err := session.Commit(); err != nil {
		report.RolledBack = pending
		return &domain.CommitError{Committed: report.Committed, Err: err}
	}
	report.Committed += pending
	report.Identifiers.Merge(ids)
	c.update(func(p *Progress) { p.Committed = report.Committed })
	return nil
}

func (c *Controller) fail(log *zap.Logger, report *Report, err error) (*Report, error) {
	report.Err = err
	report.State = StateFailed
	c.transition(StateFailed)
	log.Error("Import failed", zap.Int("committed", report.Committed), zap.Error(err))
	return report, err
}

func (c *Controller) transition(s State) {
	c.update(func(p *Progress) {
		p.State = s
		p.StateName = s.String()
		if s != StateImporting {
			p.Index = 0
		}
	})
}

func (c *Controller) update(fn func(p *Progress)) {
	c.mu.Lock()
	fn(&c.progress)
	snapshot := c.progress
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.OnProgress(snapshot)
	}
}

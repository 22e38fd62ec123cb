package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/batch"
	"github.com/yeleman/anam-desktop/internal/collect"
	"github.com/yeleman/anam-desktop/internal/config"
	"github.com/yeleman/anam-desktop/internal/database"
	"github.com/yeleman/anam-desktop/internal/fieldmap"
	"github.com/yeleman/anam-desktop/internal/importer"
	"github.com/yeleman/anam-desktop/internal/location"
	"github.com/yeleman/anam-desktop/internal/mqtt"
	"github.com/yeleman/anam-desktop/internal/progress"
	rediscommon "github.com/yeleman/anam-desktop/internal/redis"
	"github.com/yeleman/anam-desktop/internal/report"
	"github.com/yeleman/anam-desktop/internal/repository"
	"github.com/yeleman/anam-desktop/internal/runlock"
)

// progressBuffer updates queued for slow observers before dropping
const progressBuffer = 256

// Locker single-run guard
type Locker interface {
	Acquire(ctx context.Context, key string) (*runlock.Lock, error)
}

// ImportOptions per-run switches
type ImportOptions struct {
	// ReportPath overrides the workbook location, empty uses Import.ReportDir
	ReportPath string
	// SkipMark leaves the collect unmarked on the dataset service
	SkipMark bool
}

// ImportService wires the import pipeline for the CLI
type ImportService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *goredis.Client
	mqttClient  *mqtt.Client
	collects    *collect.Client
	connector   *repository.Connector
	importer    *importer.CaseImporter
	locker      Locker
}

// NewImportService creates the import service from configuration
func NewImportService(cfg *config.Config, logger *zap.Logger) (*ImportService, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	svc, err := newImportService(cfg, logger, db)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return svc, nil
}

func newImportService(cfg *config.Config, logger *zap.Logger, db *sql.DB) (*ImportService, error) {
	locations, err := location.LoadFile(cfg.Import.LocationsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load locations: %w", err)
	}
	fields, err := fieldmap.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load field map: %w", err)
	}
	logger.Info("Reference data loaded",
		zap.String("locations_file", cfg.Import.LocationsFile),
		zap.Int("communes", locations.Size()))

	svc := &ImportService{
		config:    cfg,
		logger:    logger,
		db:        db,
		collects:  collect.NewClient(&cfg.Store, logger.Named("collect")),
		connector: repository.NewConnector(db, cfg.Database.Identity(), cfg.Database.ProbeTimeout, logger.Named("repository")),
		importer: importer.NewCaseImporter(fields, locations, importer.Options{
			CreatedBy: cfg.Import.CreatedBy,
			OgdID:     cfg.Import.OgdID,
		}, logger.Named("importer")),
		locker: runlock.NewLocalLocker(),
	}

	if cfg.Redis.Enabled {
		svc.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(context.Background(), svc.redisClient); err != nil {
			_ = rediscommon.Close(svc.redisClient)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		svc.locker = runlock.NewRedisLocker(svc.redisClient, cfg.Redis.LockTTL, logger.Named("runlock"))
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT, logger.Named("mqtt"))
		if err != nil {
			// progress publishing is optional, the import runs without it
			logger.Warn("MQTT progress disabled", zap.Error(err))
		} else {
			svc.mqttClient = client
		}
	}

	return svc, nil
}

// Import runs the batch import of the eligible targets of collectID
func (s *ImportService) Import(ctx context.Context, collectID string, opts ImportOptions) (*batch.Report, error) {
	lock, err := s.locker.Acquire(ctx, s.config.Database.Identity())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			s.logger.Warn("Failed to release run lock", zap.Error(err))
		}
	}()

	c, err := s.collects.Get(ctx, collectID)
	if err != nil {
		return nil, fmt.Errorf("failed to download collect %s: %w", collectID, err)
	}
	records := c.Eligible()

	runID := uuid.New().String()
	log := s.logger.With(zap.String("run_id", runID), zap.String("collect_id", collectID))
	log.Info("Starting import",
		zap.String("collect", c.Name()),
		zap.Int("targets", len(c.Dataset.Targets)),
		zap.Int("eligible", len(records)))

	async := progress.NewAsync(s.observers(), progressBuffer, log)

	var notifier batch.Notifier
	if !opts.SkipMark {
		notifier = s.collects
	}
	controller := batch.NewController(
		batch.Config{RunID: runID, CheckpointEvery: s.config.Import.CheckpointEvery},
		s.connect,
		s.importer,
		notifier,
		async,
		log.Named("batch"),
	)

	rep, runErr := controller.Run(ctx, collectID, records)
	async.Close()
	if dropped := async.Dropped(); dropped > 0 {
		log.Warn("Slow progress observers, updates dropped", zap.Int("dropped", dropped))
	}

	if path := s.reportPath(opts, collectID); path != "" {
		meta := report.Meta{CollectID: collectID, CollectName: c.Name(), GeneratedAt: time.Now()}
		if err := report.Write(path, meta, rep); err != nil {
			log.Error("Failed to write run report", zap.String("path", path), zap.Error(err))
		} else {
			log.Info("Run report written", zap.String("path", path))
		}
	}
	return rep, runErr
}

func (s *ImportService) connect(ctx context.Context) (batch.Session, error) {
	session, err := s.connector.Open(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ImportService) observers() batch.Observer {
	observers := progress.Fanout{progress.NewLog(s.logger.Named("progress"))}
	if s.redisClient != nil && s.config.Redis.ProgressStream != "" {
		observers = append(observers, progress.NewStream(s.redisClient, s.config.Redis.ProgressStream, s.logger))
	}
	if s.mqttClient != nil {
		observers = append(observers, progress.NewMQTT(s.mqttClient, s.config.MQTT.Topic, s.config.MQTT.QoS, s.logger))
	}
	return observers
}

func (s *ImportService) reportPath(opts ImportOptions, collectID string) string {
	if opts.ReportPath != "" {
		return opts.ReportPath
	}
	if s.config.Import.ReportDir != "" {
		return filepath.Join(s.config.Import.ReportDir, report.FileName(collectID, time.Now()))
	}
	return ""
}

// Collects lists collects, archived ones only when includeArchived
func (s *ImportService) Collects(ctx context.Context, includeArchived bool) ([]collect.Collect, error) {
	all, err := s.collects.List(ctx)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		return all, nil
	}
	out := make([]collect.Collect, 0, len(all))
	for _, c := range all {
		if !c.Archived {
			out = append(out, c)
		}
	}
	return out, nil
}

// Collect downloads one collect with its dataset
func (s *ImportService) Collect(ctx context.Context, collectID string) (*collect.Collect, error) {
	return s.collects.Get(ctx, collectID)
}

// Archive archives a collect
func (s *ImportService) Archive(ctx context.Context, collectID string) error {
	return s.collects.Archive(ctx, collectID)
}

// Unarchive unarchives a collect
func (s *ImportService) Unarchive(ctx context.Context, collectID string) error {
	return s.collects.Unarchive(ctx, collectID)
}

// Check probes the dataset service, the case database and Redis when enabled
func (s *ImportService) Check(ctx context.Context) error {
	var errs []error
	if err := s.collects.Check(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dataset service: %w", err))
	}
	conn, err := database.Acquire(ctx, s.db, s.config.Database.Identity(), s.config.Database.ProbeTimeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("case database: %w", err))
	} else {
		_ = conn.Close()
	}
	if s.redisClient != nil {
		if err := rediscommon.Ping(ctx, s.redisClient); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.mqttClient != nil && !s.mqttClient.IsConnected() {
		errs = append(errs, fmt.Errorf("mqtt: not connected to %s", s.config.MQTT.Broker))
	}
	return errors.Join(errs...)
}

// ErrNoProgressStream progress history needs Redis with a progress stream
var ErrNoProgressStream = errors.New("progress stream not configured, enable redis")

// RecentProgress returns the latest count progress updates of every run
// published to the Redis progress stream
func (s *ImportService) RecentProgress(ctx context.Context, count int64) ([]batch.Progress, error) {
	if s.redisClient == nil || s.config.Redis.ProgressStream == "" {
		return nil, ErrNoProgressStream
	}
	return progress.History(ctx, s.redisClient, s.config.Redis.ProgressStream, count)
}

// Close releases every connection
func (s *ImportService) Close() error {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	var errs []error
	if err := rediscommon.Close(s.redisClient); err != nil {
		errs = append(errs, err)
	}
	if err := database.Close(s.db); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

package operations

import (
	"time"

	"github.com/kebairia/redis-backup/internal/backup"
	"github.com/kebairia/redis-backup/internal/config"
	"github.com/kebairia/redis-backup/internal/database"
	"github.com/kebairia/redis-backup/internal/logger"
	"github.com/kebairia/redis-backup/internal/retention"
	"github.com/kebairia/redis-backup/internal/snapshot"
)

// OperationManager sequences one backup run against a single store.
type OperationManager struct {
	cfg          config.Config
	store        database.Store
	log          logger.Logger
	controller   *snapshot.Controller
	materializer *backup.Materializer
	catalog      retention.Catalog
	now          func() time.Time
}

// Option overrides a collaborator of the OperationManager.
type Option func(*OperationManager)

// WithClock drives both the BGSAVE wait loop and backup naming from clock.
func WithClock(clock snapshot.Clock) Option {
	return func(om *OperationManager) {
		om.controller.Clock = clock
		om.materializer.Now = clock.Now
		om.now = clock.Now
	}
}

// WithMaterializerOptions applies opts to the copy-and-verify stage.
func WithMaterializerOptions(opts ...backup.MaterializerOption) Option {
	return func(om *OperationManager) {
		for _, opt := range opts {
			opt(om.materializer)
		}
	}
}

// WithCatalog replaces the directory scan used for retention.
func WithCatalog(c retention.Catalog) Option {
	return func(om *OperationManager) {
		if c != nil {
			om.catalog = c
		}
	}
}

// NewOperationManager wires the pipeline stages from cfg. The store must
// already be connected; the manager never closes it.
func NewOperationManager(cfg config.Config, store database.Store, log logger.Logger, opts ...Option) *OperationManager {
	controller := snapshot.NewController(log)
	controller.PollInterval = cfg.Snapshot.PollInterval

	om := &OperationManager{
		cfg:          cfg,
		store:        store,
		log:          log,
		controller:   controller,
		materializer: backup.NewMaterializer(log, backup.WithCompression(cfg.Backup.Compress)),
		catalog:      retention.DirCatalog{Dir: cfg.Backup.Directory},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(om)
	}
	return om
}

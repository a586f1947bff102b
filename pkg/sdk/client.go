package dicomgw

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/db"
	"github.com/kailas-cloud/dicomgw/internal/db/memory"
	dbRedis "github.com/kailas-cloud/dicomgw/internal/db/redis"
	"github.com/kailas-cloud/dicomgw/internal/dicomobj"
	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/repository/cache"
	"github.com/kailas-cloud/dicomgw/internal/repository/freshness"
	"github.com/kailas-cloud/dicomgw/internal/transport/dimse"
	healthuc "github.com/kailas-cloud/dicomgw/internal/usecase/health"
	metadatauc "github.com/kailas-cloud/dicomgw/internal/usecase/metadata"
	objectuc "github.com/kailas-cloud/dicomgw/internal/usecase/object"
	queryuc "github.com/kailas-cloud/dicomgw/internal/usecase/query"
	"github.com/kailas-cloud/dicomgw/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped out in tests.
type queryUseCase interface {
	Find(ctx context.Context, level domain.Level, params url.Values, defaults []string) ([]domain.Record, error)
}

type metadataUseCase interface {
	SeriesMetadata(ctx context.Context, study, series string, params url.Values) ([]domain.Record, error)
}

type objectUseCase interface {
	Frame(ctx context.Context, ref domain.ObjectRef) ([]byte, error)
	Instance(ctx context.Context, ref domain.ObjectRef) ([]byte, error)
}

type availabilityUseCase interface {
	EnsureAvailable(ctx context.Context, study, series string) error
}

type objectCache interface {
	ObjectPath(study, sop string) string
	Exists(path string) bool
}

type sweepUseCase interface {
	Sweep(ctx context.Context, active string) (int, error)
}

// Client is the dicomgw SDK entry point.
type Client struct {
	store     db.Store
	queries   queryUseCase
	metadata  metadataUseCase
	objects   objectUseCase
	available availabilityUseCase
	cache     objectCache
	sweeper   sweepUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, connects to the freshness store and checks it is ready.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.archiveAET == "" || cfg.archiveHost == "" || cfg.archivePort <= 0 {
		return nil, errors.New("dicomgw: archive required (use WithArchive)")
	}
	if cfg.retrieval != RetrievalGet && cfg.retrieval != RetrievalMove {
		return nil, fmt.Errorf("dicomgw: unknown retrieval mode %q", cfg.retrieval)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("dicomgw: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs, dimse.ExecRunner{BinDir: cfg.binDir}), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		if len(cfg.addrs) == 0 {
			return nil, fmt.Errorf("dicomgw: %s address required", cfg.driver)
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("dicomgw: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("dicomgw: unknown driver %q", cfg.driver)
	}
}

// wireClient assembles the same stack the server runs, minus HTTP.
func wireClient(store db.Store, cfg *clientConfig, obs *observer, runner dimse.Runner) *Client {
	log := zap.NewNop()
	incoming := cfg.incomingDir
	if incoming == "" {
		incoming = filepath.Join(cfg.cachePath, ".incoming")
	}

	local := domain.Peer{AET: cfg.localAET, Port: cfg.localPort}
	archive := domain.Peer{AET: cfg.archiveAET, Host: cfg.archiveHost, Port: cfg.archivePort}
	client := dimse.NewClient(&dimse.Config{
		Local:       local,
		Archive:     archive,
		Mode:        cfg.retrieval,
		IncomingDir: incoming,
		Runner:      runner,
		Logger:      log,
	})

	objects := cache.New(cfg.cachePath, cfg.retentionMinutes, freshness.New(store, cfg.keyPrefix), log)
	coord := retrieval.New(client, objects, retrieval.NewLockRegistry(), log)
	resolver := retrieval.NewResolver(objects, coord, cfg.refreshOnHit, log)

	translator := queryuc.NewTranslator(local, archive, queryuc.Policy{
		MinPatientNameChars: cfg.minPatientNameChars,
		AppendWildcard:      cfg.appendWildcard,
	})
	querySvc := queryuc.New(translator, client, log)

	return &Client{
		store:     store,
		queries:   querySvc,
		metadata:  metadatauc.New(querySvc, resolver, dicomobj.Reader{}, log),
		objects:   objectuc.New(resolver, dicomobj.Reader{}, objects, log),
		available: coord,
		cache:     objects,
		sweeper:   objects,
		healthSvc: healthuc.New(store, client),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks freshness store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

package dicomgw

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "memory"
	addrs    []string
	password string

	archiveAET  string
	archiveHost string
	archivePort int
	localAET    string
	localPort   int

	retrieval   string
	binDir      string
	incomingDir string

	cachePath        string
	retentionMinutes int
	refreshOnHit     bool
	keyPrefix        string

	minPatientNameChars int
	appendWildcard      bool

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		driver:           "memory",
		localAET:         "DICOMGW",
		localPort:        9999,
		retrieval:        RetrievalGet,
		cachePath:        "./data",
		retentionMinutes: 60,
		keyPrefix:        "dicomgw:",
	}
}

// WithValkey stores the freshness index in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores the freshness index in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps the freshness index in process memory (default).
// Expiry state is lost on restart.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithArchive sets the archive to query and retrieve from. Required.
func WithArchive(aet, host string, port int) Option {
	return optionFunc(func(c *clientConfig) {
		c.archiveAET = aet
		c.archiveHost = host
		c.archivePort = port
	})
}

// WithLocal sets our own application entity. Defaults: DICOMGW, port 9999.
func WithLocal(aet string, port int) Option {
	return optionFunc(func(c *clientConfig) {
		c.localAET = aet
		c.localPort = port
	})
}

// WithRetrieval selects C-GET (RetrievalGet, default) or C-MOVE
// (RetrievalMove). Move mode needs a storescp writing into incomingDir;
// the client does not start one.
func WithRetrieval(mode, incomingDir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.retrieval = mode
		c.incomingDir = incomingDir
	})
}

// WithToolkit sets the directory holding the DCMTK binaries.
// Empty uses $PATH (default).
func WithToolkit(binDir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.binDir = binDir
	})
}

// WithCache sets the cache root and the retention of retrieved studies.
// A negative retention disables expiry tracking. Defaults: ./data, 60.
func WithCache(path string, retentionMinutes int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cachePath = path
		c.retentionMinutes = retentionMinutes
	})
}

// WithRefreshOnHit extends a study's expiry every time it is served from cache.
func WithRefreshOnHit() Option {
	return optionFunc(func(c *clientConfig) {
		c.refreshOnHit = true
	})
}

// WithKeyPrefix namespaces freshness keys. Default: "dicomgw:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithPatientNamePolicy rejects PatientName matches shorter than minChars
// and optionally turns them into prefix matches.
func WithPatientNamePolicy(minChars int, appendWildcard bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.minPatientNameChars = minChars
		c.appendWildcard = appendWildcard
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// Package dimse drives the DCMTK command-line tools to talk to a DICOM archive.
package dimse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/dicomobj"
	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/logger"
)

// Retrieval modes.
const (
	ModeGet  = "get"
	ModeMove = "move"
)

const (
	objectExt     = ".dcm"
	findRspPrefix = "rsp"
)

// Config holds the association parameters.
type Config struct {
	Local   domain.Peer
	Archive domain.Peer
	// Mode is ModeGet (C-GET pull) or ModeMove (C-MOVE to our own storescp).
	Mode string
	// IncomingDir receives C-STORE sub-operations in move mode and holds
	// staging directories in get mode.
	IncomingDir string
	Verbose     bool
	Runner      Runner
	Logger      *zap.Logger
}

// Client implements find, retrieve and echo on top of DCMTK.
type Client struct {
	local       domain.Peer
	archive     domain.Peer
	mode        string
	incomingDir string
	verbose     bool
	runner      Runner
	logger      *zap.Logger
}

// NewClient creates a DCMTK-backed client.
func NewClient(cfg *Config) *Client {
	r := cfg.Runner
	if r == nil {
		r = ExecRunner{}
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeGet
	}
	return &Client{
		local:       cfg.Local,
		archive:     cfg.Archive,
		mode:        mode,
		incomingDir: cfg.IncomingDir,
		verbose:     cfg.Verbose,
		runner:      r,
		logger:      cfg.Logger,
	}
}

// Find runs findscu with the envelope's keys and decodes every response.
// The envelope's peers override the client defaults when set.
func (c *Client) Find(ctx context.Context, env domain.Envelope) ([]domain.Record, error) {
	dir, err := os.MkdirTemp("", "dicomgw-find-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFindFailed, err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	local, archive := c.local, c.archive
	if env.Source.AET != "" {
		local = env.Source
	}
	if env.Target.AET != "" {
		archive = env.Target
	}

	args := c.association(local, archive, true)
	args = append(args, "--extract", "-od", dir, "-k", levelKey(env.Level))
	for _, tv := range env.Tags {
		args = append(args, "-k", queryKey(tv))
	}

	if _, err := c.run(ctx, "findscu", args...); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFindFailed, err)
	}

	files, err := filepath.Glob(filepath.Join(dir, findRspPrefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFindFailed, err)
	}
	sort.Strings(files)

	records := make([]domain.Record, 0, len(files))
	for _, f := range files {
		rec, err := dicomobj.ReadRecord(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrFindFailed, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Retrieve pulls every object of a series into dest as <sop>.dcm. dest is
// created only once an object is ingested.
func (c *Client) Retrieve(ctx context.Context, study, series, dest string) error {
	keys := []string{
		"-k", levelKey(domain.LevelSeries),
		"-k", queryKey(domain.TagValue{Tag: domain.TagStudyInstanceUID, Value: study}),
		"-k", queryKey(domain.TagValue{Tag: domain.TagSeriesInstanceUID, Value: series}),
	}

	var src string
	switch c.mode {
	case ModeMove:
		args := c.association(c.local, c.archive, true)
		args = append(args, "-aem", c.local.AET)
		args = append(args, keys...)
		if _, err := c.run(ctx, "movescu", args...); err != nil {
			return err
		}
		src = c.incomingDir
	default:
		if c.incomingDir != "" {
			if err := os.MkdirAll(c.incomingDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", c.incomingDir, err)
			}
		}
		staging, err := os.MkdirTemp(c.incomingDir, "get-*")
		if err != nil {
			return fmt.Errorf("create staging dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(staging) }()

		args := c.association(c.local, c.archive, true)
		args = append(args, "-od", staging)
		args = append(args, keys...)
		if _, err := c.run(ctx, "getscu", args...); err != nil {
			return err
		}
		src = staging
	}

	received, err := ingest(src, study, dest, c.logger)
	if err != nil {
		return err
	}
	if received == 0 && !hasObjects(dest) {
		return fmt.Errorf("no objects received for series %s", series)
	}
	logger.FromContext(ctx, c.logger).Debug("Objects ingested",
		append(logger.SeriesFields(study, series), zap.Int("count", received))...)
	return nil
}

// Echo sends a C-ECHO to the archive.
func (c *Client) Echo(ctx context.Context) error {
	if _, err := c.run(ctx, "echoscu", c.association(c.local, c.archive, false)...); err != nil {
		return fmt.Errorf("echo %s@%s:%d: %w", c.archive.AET, c.archive.Host, c.archive.Port, err)
	}
	return nil
}

// association builds the common peer arguments. studyRoot selects the
// Study Root information model for query/retrieve tools.
func (c *Client) association(local, archive domain.Peer, studyRoot bool) []string {
	var args []string
	if c.verbose {
		args = append(args, "-v")
	}
	if studyRoot {
		args = append(args, "-S")
	}
	return append(args, "-aet", local.AET, "-aec", archive.AET,
		archive.Host, strconv.Itoa(archive.Port))
}

func (c *Client) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	log := logger.FromContext(ctx, c.logger)
	log.Debug("Running DIMSE tool", zap.String("tool", name), zap.Strings("args", args))
	out, err := c.runner.Run(ctx, name, args...)
	if c.verbose && len(out) > 0 {
		log.Debug("DIMSE tool output", zap.String("tool", name), zap.ByteString("output", out))
	}
	return out, err
}

func levelKey(l domain.Level) string {
	return "0008,0052=" + string(l)
}

func queryKey(tv domain.TagValue) string {
	if tv.Value == "" {
		return tv.Tag.Group()
	}
	return tv.Tag.Group() + "=" + tv.Value
}

// ingest moves every object of study found in src to dest/<sop>.dcm.
// Files that do not parse yet (still being written) or belong to another
// study are left in place for a later ingest.
func ingest(src, study, dest string, l *zap.Logger) (int, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read %s: %w", src, err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(src, e.Name())
		obj, err := dicomobj.ReadAttributes(path)
		if err != nil {
			continue
		}
		if s, _ := obj.String(domain.TagStudyInstanceUID); s != study {
			continue
		}
		sop, ok := obj.String(domain.TagSOPInstanceUID)
		if !ok || domain.ValidateUID(sop) != nil {
			l.Warn("Skipping received object without usable SOPInstanceUID", zap.String("path", path))
			continue
		}
		if n == 0 {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return 0, fmt.Errorf("create %s: %w", dest, err)
			}
		}
		if err := os.Rename(path, filepath.Join(dest, sop+objectExt)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue // picked up by a concurrent ingest
			}
			return n, fmt.Errorf("store %s: %w", sop, err)
		}
		n++
	}
	return n, nil
}

func hasObjects(dir string) bool {
	matches, _ := filepath.Glob(filepath.Join(dir, "*"+objectExt))
	return len(matches) > 0
}

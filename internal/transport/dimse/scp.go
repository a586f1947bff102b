package dimse

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/domain"
)

const scpRestartDelay = 2 * time.Second

// SCP supervises a storescp child process receiving C-MOVE sub-operations.
type SCP struct {
	local       domain.Peer
	incomingDir string
	verbose     bool
	runner      Runner
	logger      *zap.Logger
	restart     time.Duration
}

// NewSCP creates a storescp supervisor listening as cfg.Local.
func NewSCP(cfg *Config) *SCP {
	r := cfg.Runner
	if r == nil {
		r = ExecRunner{}
	}
	return &SCP{
		local:       cfg.Local,
		incomingDir: cfg.IncomingDir,
		verbose:     cfg.Verbose,
		runner:      r,
		logger:      cfg.Logger,
		restart:     scpRestartDelay,
	}
}

// Run keeps storescp alive until ctx is cancelled. A crashed process is
// restarted after a short delay.
func (s *SCP) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.incomingDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.incomingDir, err)
	}

	args := []string{"-aet", s.local.AET, "-od", s.incomingDir}
	if s.verbose {
		args = append([]string{"-v"}, args...)
	}
	args = append(args, strconv.Itoa(s.local.Port))

	for {
		s.logger.Info("Starting storescp",
			zap.String("aet", s.local.AET),
			zap.Int("port", s.local.Port),
			zap.String("dir", s.incomingDir),
		)
		_, err := s.runner.Run(ctx, "storescp", args...)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Error("storescp exited", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.restart):
		}
	}
}

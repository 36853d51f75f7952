package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/config"
	"github.com/dokzlo13/sdactl/internal/db"
	"github.com/dokzlo13/sdactl/internal/ledger"
)

// Services is a container for the collaborators shared by every run.
type Services struct {
	cfg *config.Config

	// Core infrastructure; DB is nil when the ledger is disabled.
	DB   *db.DB
	Exec catalyst.Executor

	client *catalyst.Client
}

// NewServices creates the controller client and, when configured, opens the
// task ledger.
func NewServices(cfg *config.Config) (*Services, error) {
	client := catalyst.NewClient(catalyst.Options{
		BaseURL:   cfg.Catalyst.BaseURL(),
		Username:  cfg.Catalyst.Username,
		Password:  cfg.Catalyst.Password,
		Version:   cfg.Catalyst.Version,
		VerifyTLS: cfg.Catalyst.VerifyTLS,
		Timeout:   cfg.Catalyst.Timeout.Duration(),
		RateLimit: cfg.Catalyst.RateLimitRPS,
	})
	s, err := newServices(cfg, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.client = client
	return s, nil
}

func newServices(cfg *config.Config, exec catalyst.Executor) (*Services, error) {
	s := &Services{cfg: cfg, Exec: exec}
	if cfg.Ledger.Path == "" {
		return s, nil
	}
	database, err := db.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	return s, nil
}

// Ledger returns the ledger of one run, or nil when the ledger is disabled.
func (s *Services) Ledger(runID string) *ledger.Ledger {
	if s.DB == nil {
		return nil
	}
	return ledger.New(s.DB.DB, runID)
}

// Prune drops ledger rows past the retention period.
func (s *Services) Prune(ctx context.Context) {
	if s.DB == nil || s.cfg.Ledger.RetentionDays <= 0 {
		return
	}
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
	n, err := ledger.New(s.DB.DB, "").DeleteOlderThan(ctx, retention)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prune task ledger")
		return
	}
	if n > 0 {
		log.Debug().Int64("rows", n).Int("retention_days", s.cfg.Ledger.RetentionDays).Msg("Pruned task ledger")
	}
}

// Close releases all resources.
func (s *Services) Close() {
	if s.client != nil {
		s.client.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

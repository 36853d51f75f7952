package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/config"
	"github.com/dokzlo13/sdactl/internal/ledger"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/resolve"
	"github.com/dokzlo13/sdactl/internal/task"
)

// App wires the configuration, the controller client and the ledger into
// reconciliation runs.
type App struct {
	cfg      *config.Config
	services *Services
	newRunID func() string
}

// New creates a new App talking to the configured controller.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services, newRunID: uuid.NewString}, nil
}

// NewWithExecutor creates an App over exec instead of an HTTP client.
func NewWithExecutor(cfg *config.Config, exec catalyst.Executor) (*App, error) {
	services, err := newServices(cfg, exec)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services, newRunID: uuid.NewString}, nil
}

// Close releases the client and the ledger.
func (a *App) Close() error {
	if a.services != nil {
		a.services.Close()
	}
	return nil
}

// Apply makes the controller match doc for the items of domain.
func (a *App) Apply(ctx context.Context, doc *playbook.Document, domain Domain) *reconcile.Result {
	return a.execute(ctx, "apply", doc, domain, (*reconcile.Orchestrator).Apply)
}

// Verify compares the controller against doc without writing.
func (a *App) Verify(ctx context.Context, doc *playbook.Document, domain Domain) *reconcile.Result {
	return a.execute(ctx, "verify", doc, domain, (*reconcile.Orchestrator).Verify)
}

type runFunc func(*reconcile.Orchestrator, context.Context, *reconcile.Run, *playbook.Document) *reconcile.Result

func (a *App) execute(ctx context.Context, command string, doc *playbook.Document, domain Domain, fn runFunc) *reconcile.Result {
	runID := a.newRunID()
	ctx = log.With().Str("run_id", runID).Logger().WithContext(ctx)

	for i := range doc.Config {
		if keys := domain.foreignKeys(&doc.Config[i]); len(keys) > 0 {
			log.Warn().
				Int("item", i).
				Strs("keys", keys).
				Str("domain", string(domain)).
				Msg("Ignoring item keys outside the selected domain")
		}
	}

	a.services.Prune(ctx)
	l := a.services.Ledger(runID)
	run := a.newRun(runID, doc, l)
	if l != nil {
		l.RunStarted(ctx, command, string(doc.State), len(doc.Config))
	}

	orch := reconcile.NewOrchestrator(domain.Handlers(a.cfg.Export.Dir)...)
	log.Debug().
		Str("command", command).
		Str("domain", string(domain)).
		Strs("kinds", kindNames(orch.Kinds())).
		Msg("Handlers selected")

	res := fn(orch, ctx, run, doc)

	if l != nil {
		l.RunFinished(context.WithoutCancel(ctx), res.Changed, res.Failed, res.Msg)
	}
	return res
}

func (a *App) newRun(runID string, doc *playbook.Document, l *ledger.Ledger) *reconcile.Run {
	cfg := task.Config{
		Interval: doc.Interval(a.cfg.Task.PollInterval.Duration()),
		Timeout:  doc.Timeout(a.cfg.Task.Timeout.Duration()),
	}
	if l != nil {
		cfg.Journal = l
	}
	exec := a.services.Exec
	poller := task.NewPoller(exec, cfg)
	return &reconcile.Run{
		ID:    runID,
		State: doc.State,
		Exec:  exec,
		Tasks: poller,
		Names: resolve.New(exec, poller.Timeout()),
	}
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}

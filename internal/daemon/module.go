// Package daemon composes the application with fx and owns the HTTP
// server lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/config"
	"github.com/matheus3301/wadesk/internal/lock"
	"github.com/matheus3301/wadesk/internal/logging"
	"github.com/matheus3301/wadesk/internal/outbox"
	"github.com/matheus3301/wadesk/internal/provider"
	"github.com/matheus3301/wadesk/internal/recon"
	"github.com/matheus3301/wadesk/internal/session"
	"github.com/matheus3301/wadesk/internal/snapshot"
	"github.com/matheus3301/wadesk/internal/status"
	"github.com/matheus3301/wadesk/internal/store"
	"github.com/matheus3301/wadesk/internal/transfer"
	"github.com/matheus3301/wadesk/internal/wa"
	"github.com/matheus3301/wadesk/internal/web"
)

// Params holds the resolved startup options passed to the fx module.
type Params struct {
	DataDir string
	Addr    string // optional listen override; empty = from config
}

// Module composes all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			providePaths,
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAdapter,
			provideProviderClient,
			provideEngine,
			provideBuilder,
			providePipeline,
			provideSender,
			provideWebServer,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func providePaths(p Params) (session.Paths, error) {
	paths := session.Resolve(p.DataDir)
	if err := paths.Ensure(); err != nil {
		return session.Paths{}, err
	}
	return paths, nil
}

func provideConfig(paths session.Paths) (*config.Config, error) {
	path := paths.ConfigFile()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	// First run: persist the defaults so the file exists for wadeskctl and
	// for the user to edit.
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		if err := config.Save(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}
	return cfg, nil
}

func provideLogger(paths session.Paths) (*zap.Logger, error) {
	return logging.New(paths.LogFile())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(paths session.Paths, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring daemon lock", zap.String("data_dir", paths.DataDir))
	l, err := lock.Acquire(paths.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("daemon lock acquired")
	return l, nil
}

func provideStore(paths session.Paths, b *bus.Bus, logger *zap.Logger) (*store.Store, error) {
	db, err := store.Open(paths.MetadataDB())
	if err != nil {
		return nil, err
	}
	st := store.New(db, b)
	result, err := st.Init()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("metadata store ready", zap.String("path", paths.MetadataDB()))
	return st, nil
}

func provideAdapter(paths session.Paths, machine *status.Machine, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), paths, machine, b, logger)
}

func provideProviderClient(adapter *wa.Adapter) provider.Client {
	return adapter
}

func provideEngine(st *store.Store, client provider.Client, b *bus.Bus, logger *zap.Logger) *recon.Engine {
	return recon.New(st, client, b, logger)
}

func provideBuilder(cfg *config.Config, client provider.Client, st *store.Store, engine *recon.Engine, b *bus.Bus, logger *zap.Logger) *snapshot.Builder {
	window := time.Duration(cfg.ActivityWindowHours) * time.Hour
	return snapshot.New(client, st, engine, b, logger, cfg.HistoryLimit, window)
}

func providePipeline(st *store.Store, b *bus.Bus, logger *zap.Logger) *transfer.Pipeline {
	return transfer.New(st, b, logger)
}

func provideSender(st *store.Store, client provider.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(st, client, b, logger)
}

func provideWebServer(st *store.Store, pipeline *transfer.Pipeline, engine *recon.Engine, builder *snapshot.Builder, machine *status.Machine, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *web.Server {
	return web.NewServer(st, pipeline, engine, builder, machine, adapter, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, adapter *wa.Adapter, machine *status.Machine, builder *snapshot.Builder, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) {
	var cancelRefresh context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			handler := wa.NewEventHandler(adapter.Mirror(), machine, b, logger)
			adapter.RegisterEventHandler(handler.Handle)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			sender.Start(context.Background())

			var refreshCtx context.Context
			refreshCtx, cancelRefresh = context.WithCancel(context.Background())
			go runRefreshLoop(refreshCtx, builder, b, logger)

			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
				go runQRAuth(adapter, logger)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancelRefresh != nil {
				cancelRefresh()
			}
			sender.Stop()
			adapter.Disconnect()
			srv.Stop(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// runRefreshLoop coalesces refresh requests so a burst of provider events
// produces one snapshot rebuild.
func runRefreshLoop(ctx context.Context, builder *snapshot.Builder, b *bus.Bus, logger *zap.Logger) {
	ch, unsub := b.Subscribe(bus.KindRefreshWanted, 16)
	defer unsub()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if timer == nil {
				timer = time.AfterFunc(300*time.Millisecond, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			}
		case <-fire:
			timer = nil
			if _, err := builder.Build(ctx); err != nil {
				logger.Debug("snapshot rebuild skipped", zap.Error(err))
			}
		}
	}
}

// runQRAuth drives the pairing flow until it succeeds or gives up; the
// web layer serves the codes it publishes.
func runQRAuth(adapter *wa.Adapter, logger *zap.Logger) {
	events, err := adapter.StartQRAuth(context.Background())
	if err != nil {
		logger.Error("QR auth failed to start", zap.Error(err))
		return
	}
	for evt := range events {
		switch evt.Type {
		case wa.AuthEventQRCode:
			logger.Info("pairing code generated")
		case wa.AuthEventAuthenticated:
			logger.Info("session authenticated")
		case wa.AuthEventTimeout, wa.AuthEventAuthFailed:
			logger.Warn("pairing failed", zap.String("reason", evt.Message))
		}
	}
}

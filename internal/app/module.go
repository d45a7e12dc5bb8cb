// Package app composes the interactive client from its parts.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brightpath-hq/inbox/internal/bus"
	"github.com/brightpath-hq/inbox/internal/channel"
	"github.com/brightpath-hq/inbox/internal/config"
	"github.com/brightpath-hq/inbox/internal/lock"
	"github.com/brightpath-hq/inbox/internal/logging"
	"github.com/brightpath-hq/inbox/internal/profile"
	"github.com/brightpath-hq/inbox/internal/realtime"
	"github.com/brightpath-hq/inbox/internal/rest"
	"github.com/brightpath-hq/inbox/internal/status"
	intsync "github.com/brightpath-hq/inbox/internal/sync"
	"github.com/brightpath-hq/inbox/internal/tui"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("inbox",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideBackend,
			provideTransport,
			provideSynchronizer,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w (run `inboxctl init` first)", profile.ConfigPath(), err)
	}
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("%s: backend_url is not set", profile.ConfigPath())
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	// The TUI owns the terminal, so no console core.
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, false)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideBackend(cfg *config.Config) *rest.Client {
	return rest.NewClient(cfg.BackendURL, cfg.AccessToken)
}

func provideTransport(cfg *config.Config, b *bus.Bus, m *status.Machine, logger *zap.Logger) *realtime.Manager {
	url := cfg.RealtimeURL
	if url == "" {
		url = cfg.BackendURL
	}
	return realtime.NewManager(url, b, m, logger, realtime.Options{
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    time.Duration(cfg.ReconnectDelayMS) * time.Millisecond,
	})
}

func provideSynchronizer(cfg *config.Config, backend *rest.Client, mgr *realtime.Manager, b *bus.Bus, logger *zap.Logger) *intsync.Synchronizer {
	s := intsync.NewSynchronizer(backend, mgr, b, logger, cfg.UserID)
	if cfg.DefaultChannel != "" {
		// Accepts both the display label and the wire spelling; a typo in
		// the config falls back to the built-in default.
		if ch, err := channel.Parse(cfg.DefaultChannel); err == nil {
			s.SetInitialChannel(ch)
		} else {
			logger.Warn("ignoring default_channel", zap.Error(err))
		}
	}
	return s
}

func provideTUI(p Params, s *intsync.Synchronizer, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(s, b, logger, p.ProfileName)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, tuiApp *tui.App, s *intsync.Synchronizer, mgr *realtime.Manager, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			s.Start(context.Background())

			// Connect and load in the background; the UI comes up immediately
			// and fills in as data lands.
			go func() {
				// A failed dial arms the manager's reconnect loop, so this
				// is a warning, not a dead end.
				if _, err := mgr.Connect(context.Background(), cfg.AccessToken); err != nil {
					logger.Warn("initial realtime connect failed, retrying", zap.Error(err))
				}
			}()
			go s.LoadConversations(context.Background())

			go func() {
				if err := tuiApp.Run(); err != nil {
					logger.Error("tui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			tuiApp.Stop()
			s.Stop()
			mgr.Disconnect()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}

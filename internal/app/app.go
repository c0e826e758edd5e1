package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"nickel-watch/internal/alerting"
	"nickel-watch/internal/config"
	"nickel-watch/internal/fetcher"
	"nickel-watch/internal/report"
	"nickel-watch/internal/scheduler"
	"nickel-watch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// ConfigPath 为 --config 参数，空表示默认查找 ./config.yaml
	ConfigPath string
	// Out 为命令的表格输出，默认 stdout
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
	}
}

func (a *App) newClient() (*fetcher.Client, error) {
	if err := a.Config.RequireRefreshToken(); err != nil {
		return nil, err
	}
	cfg := a.Config.IFinD
	return fetcher.New(fetcher.Options{
		BaseURL:      cfg.BaseURL,
		RefreshToken: cfg.RefreshToken,
		TokenCache:   cfg.TokenCache,
		TokenTTL:     cfg.TokenTTL,
		Timeout:      cfg.RequestTimeout,
		TokenTimeout: cfg.TokenTimeout,
		UserAgent:    cfg.UserAgent,
	}, a.Logger), nil
}

// newNotifiers returns the configured alert channels. The console channel is
// always present; console=false drops it for commands that already print alerts.
func (a *App) newNotifiers(console bool) []alerting.Notifier {
	var out []alerting.Notifier
	if console {
		out = append(out, alerting.NewConsoleNotifier(a.Out))
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		out = append(out, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	return out
}

func (a *App) newScheduler() (*scheduler.Scheduler, error) {
	sessions, err := a.Config.Sessions()
	if err != nil {
		return nil, err
	}
	return scheduler.New(scheduler.Options{
		Interval:            a.Config.Monitor.Interval,
		AlignToStart:        a.Config.Monitor.AlignToBucket,
		StartupDelay:        a.Config.Monitor.StartupDelay,
		RunImmediately:      true,
		Sessions:            sessions,
		SkipOutsideSessions: a.Config.Monitor.SkipOutsideSessions,
	}, a.Logger), nil
}

func (a *App) newBuilder() *report.Builder {
	return report.NewBuilder(a.Config.Report.ChartDir, a.Config.Report.TableRows, a.Logger)
}

func (a *App) barStore() *storage.BarStore {
	return storage.NewBarStore(a.Config.Daily.RawDir)
}

func (a *App) seriesStore() *storage.SeriesStore {
	return storage.NewSeriesStore(a.Config.Macro.Dir)
}

func (a *App) snapshotLog() *storage.SnapshotLog {
	if a.Config.Monitor.SnapshotDir == "" {
		return nil
	}
	return storage.NewSnapshotLog(a.Config.Monitor.SnapshotDir)
}

func (a *App) now() time.Time {
	loc, err := a.Config.Location()
	if err != nil {
		return time.Now()
	}
	return time.Now().In(loc)
}

func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func isShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

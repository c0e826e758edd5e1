package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"nickel-watch/internal/config"
	"nickel-watch/internal/service"
)

// MonitorOptions select the outputs of the realtime monitor.
type MonitorOptions struct {
	// Live 同时输出自动刷新的 HTML 页面
	Live bool
	// Quiet 关闭终端行情表
	Quiet bool
	// Watch 监听配置文件变化并热更新预警参数
	Watch bool
}

// Monitor runs the realtime poll loop until interrupted.
func (a *App) Monitor(ctx context.Context, opts MonitorOptions) error {
	ctx, cancel := withSignals(ctx)
	defer cancel()

	client, err := a.newClient()
	if err != nil {
		return err
	}
	sched, err := a.newScheduler()
	if err != nil {
		return err
	}

	monitor := service.NewMonitor(a.Config, client, a.newNotifiers(true), a.snapshotLog(), a.Logger)
	if !opts.Quiet {
		monitor.AddPublisher(NewStatusPrinter(a.Out, a.Config.Report.RecentAlerts))
	}
	if opts.Live {
		builder := a.newBuilder()
		builder.ChartDir = ""
		page := NewLivePage(
			a.Config.Report.RealtimeOutput,
			a.historySections(ctx, client),
			a.macroSections(builder),
			a.Logger,
		)
		monitor.AddPublisher(page)
		a.Logger.Info().Str("path", page.Path()).Msg("实时页面输出已启用，用浏览器打开该文件即可")
	}

	sessions, _ := a.Config.Sessions()
	a.Logger.Info().
		Strs("codes", a.Config.Codes()).
		Dur("interval", a.Config.Monitor.Interval).
		Str("sessions", sessions.String()).
		Float64("day_price_pct", a.Config.Alerting.DayPricePct).
		Float64("short_price_pct", a.Config.Alerting.ShortPricePct).
		Float64("oi_pct", a.Config.Alerting.OIPct).
		Dur("cooldown", a.Config.Alerting.Cooldown).
		Msg("starting realtime monitor")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(gctx, sched)
	})

	if path := config.UsedFile(a.ConfigPath); opts.Watch && path != "" {
		g.Go(func() error {
			err := config.Watch(gctx, path, a.Logger, func(cfg *config.Config) {
				// 轮询间隔与交易时段需重启生效
				monitor.ApplyConfig(cfg)
			})
			if err != nil {
				a.Logger.Warn().Err(err).Str("path", path).Msg("配置热更新不可用")
			}
			return nil
		})
	}

	err = g.Wait()
	if !isShutdown(err) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("realtime monitor stopped")
	return nil
}

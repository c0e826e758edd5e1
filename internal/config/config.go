package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"nickel-watch/internal/alerting"
	"nickel-watch/internal/logging"
	"nickel-watch/internal/scheduler"
)

// 示例配置中的占位符，视为未配置
const refreshTokenPlaceholder = "在这里填写你的refresh_token"

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	IFinD    IFinDConfig    `mapstructure:"ifind"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Daily    DailyConfig    `mapstructure:"daily"`
	Report   ReportConfig   `mapstructure:"report"`
	Macro    MacroConfig    `mapstructure:"macro"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`
}

// IFinDConfig covers the quote API connectivity.
type IFinDConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RefreshToken   string        `mapstructure:"refresh_token"`
	TokenCache     string        `mapstructure:"token_cache"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TokenTimeout   time.Duration `mapstructure:"token_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// Instrument is one watched contract.
type Instrument struct {
	Code  string `mapstructure:"code"`
	Name  string `mapstructure:"name"`
	Short string `mapstructure:"short"`
}

// WatchConfig lists the watched contracts.
type WatchConfig struct {
	Instruments []Instrument `mapstructure:"instruments"`
}

// MonitorConfig governs polling cadence.
type MonitorConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	AlignToBucket       bool          `mapstructure:"align_to_bucket"`
	StartupDelay        time.Duration `mapstructure:"startup_delay"`
	Sessions            []string      `mapstructure:"sessions"`
	SkipOutsideSessions bool          `mapstructure:"skip_outside_sessions"`
	SnapshotDir         string        `mapstructure:"snapshot_dir"`
	HistoryDays         int           `mapstructure:"history_days"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled              bool              `mapstructure:"enabled"`
	DayPricePct          float64           `mapstructure:"day_price_pct"`
	ShortPricePct        float64           `mapstructure:"short_price_pct"`
	OIPct                float64           `mapstructure:"oi_pct"`
	NearHighPct          float64           `mapstructure:"near_high_pct"`
	NearLowPct           float64           `mapstructure:"near_low_pct"`
	HighSeverityMultiple float64           `mapstructure:"high_severity_multiple"`
	Severities           map[string]string `mapstructure:"severities"`
	Cooldown             time.Duration     `mapstructure:"cooldown"`
	HistorySize          int               `mapstructure:"history_size"`
	Telegram             TelegramConfig    `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// DailyConfig sets the daily history job.
type DailyConfig struct {
	LookbackDays int    `mapstructure:"lookback_days"`
	RawDir       string `mapstructure:"raw_dir"`
}

// ReportConfig sets HTML output.
type ReportConfig struct {
	Output         string `mapstructure:"output"`
	RealtimeOutput string `mapstructure:"realtime_output"`
	ChartDir       string `mapstructure:"chart_dir"`
	HistoryDays    int    `mapstructure:"history_days"`
	TableRows      int    `mapstructure:"table_rows"`
	RecentAlerts   int    `mapstructure:"recent_alerts"`
}

// MacroIndicator is one EDB or futures series tracked on the macro page.
type MacroIndicator struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Unit     string `mapstructure:"unit"`
	Category string `mapstructure:"category"`
	// futures 序列使用的行情字段，默认 close
	Field string `mapstructure:"field"`
}

// MacroConfig sets the macro fetch job.
type MacroConfig struct {
	Dir          string           `mapstructure:"dir"`
	LookbackDays int              `mapstructure:"lookback_days"`
	EDB          []MacroIndicator `mapstructure:"edb"`
	Futures      []MacroIndicator `mapstructure:"futures"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("NICKELWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ifind.refresh_token", "NICKELWATCH_IFIND_REFRESH_TOKEN", "IFIND_REFRESH_TOKEN")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// UsedFile reports the config file Load would read, empty when none exists.
func UsedFile(path string) string {
	if path != "" {
		return path
	}
	for _, name := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	// 已存在的环境变量优先
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "nickelwatch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "Asia/Shanghai")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.dir", "")

	v.SetDefault("ifind.base_url", "https://quantapi.51ifind.com/api/v1")
	v.SetDefault("ifind.token_cache", "data/.token_cache.json")
	v.SetDefault("ifind.token_ttl", "144h")
	v.SetDefault("ifind.request_timeout", "60s")
	v.SetDefault("ifind.token_timeout", "30s")
	v.SetDefault("ifind.user_agent", "nickelwatch/1.0")

	v.SetDefault("watch.instruments", []map[string]string{
		{"code": "NIZL.SHF", "name": "沪镍主力", "short": "ni"},
		{"code": "SSZL.SHF", "name": "不锈钢主力", "short": "ss"},
	})

	v.SetDefault("monitor.interval", "30s")
	v.SetDefault("monitor.align_to_bucket", false)
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.sessions", scheduler.DefaultSessions)
	v.SetDefault("monitor.skip_outside_sessions", false)
	v.SetDefault("monitor.snapshot_dir", "logs")
	v.SetDefault("monitor.history_days", 60)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.day_price_pct", 1.0)
	v.SetDefault("alerting.short_price_pct", 0.5)
	v.SetDefault("alerting.oi_pct", 1.0)
	v.SetDefault("alerting.near_high_pct", 0.1)
	v.SetDefault("alerting.near_low_pct", 0.1)
	v.SetDefault("alerting.high_severity_multiple", 2.0)
	v.SetDefault("alerting.severities", map[string]string{})
	v.SetDefault("alerting.cooldown", "5m")
	v.SetDefault("alerting.history_size", alerting.DefaultHistorySize)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("daily.lookback_days", 90)
	v.SetDefault("daily.raw_dir", "data/raw")

	v.SetDefault("report.output", "dashboard.html")
	v.SetDefault("report.realtime_output", "realtime.html")
	v.SetDefault("report.chart_dir", "charts")
	v.SetDefault("report.history_days", 180)
	v.SetDefault("report.table_rows", 10)
	v.SetDefault("report.recent_alerts", 8)

	v.SetDefault("macro.dir", "data/macro")
	v.SetDefault("macro.lookback_days", 365)
	v.SetDefault("macro.edb", []map[string]string{
		{"id": "S004303610", "name": "LME镍库存", "unit": "吨", "category": "库存"},
		{"id": "G002600885", "name": "美元指数", "unit": "点", "category": "宏观"},
	})
	v.SetDefault("macro.futures", []map[string]string{
		{"id": "NI00.SHF", "name": "沪镍连续", "unit": "元/吨", "category": "期货", "field": "close"},
	})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Watch.Instruments) == 0 {
		return fmt.Errorf("watch.instruments must not be empty")
	}
	seen := make(map[string]bool, len(c.Watch.Instruments))
	for i, inst := range c.Watch.Instruments {
		code := strings.ToUpper(strings.TrimSpace(inst.Code))
		if code == "" {
			return fmt.Errorf("watch.instruments[%d].code is required", i)
		}
		if seen[code] {
			return fmt.Errorf("watch.instruments: duplicate code %s", code)
		}
		seen[code] = true
		c.Watch.Instruments[i].Code = code
		if inst.Name == "" {
			c.Watch.Instruments[i].Name = code
		}
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if _, err := c.Sessions(); err != nil {
		return fmt.Errorf("monitor.sessions: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}

	for name, pct := range map[string]float64{
		"alerting.day_price_pct":   c.Alerting.DayPricePct,
		"alerting.short_price_pct": c.Alerting.ShortPricePct,
		"alerting.oi_pct":          c.Alerting.OIPct,
		"alerting.near_high_pct":   c.Alerting.NearHighPct,
		"alerting.near_low_pct":    c.Alerting.NearLowPct,
	} {
		if pct < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if _, err := c.severities(); err != nil {
		return err
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}

	if c.Daily.LookbackDays <= 0 {
		return fmt.Errorf("daily.lookback_days must be greater than zero")
	}
	if c.Report.HistoryDays <= 0 {
		return fmt.Errorf("report.history_days must be greater than zero")
	}
	if c.Macro.LookbackDays <= 0 {
		return fmt.Errorf("macro.lookback_days must be greater than zero")
	}
	return nil
}

// RequireRefreshToken fails when no usable refresh token is configured.
func (c *Config) RequireRefreshToken() error {
	token := strings.TrimSpace(c.IFinD.RefreshToken)
	if token == "" || token == refreshTokenPlaceholder {
		return errors.New("ifind.refresh_token 未配置，请在配置文件或环境变量 IFIND_REFRESH_TOKEN 中设置")
	}
	return nil
}

// Codes returns watched contract codes in configured order.
func (c *Config) Codes() []string {
	codes := make([]string, len(c.Watch.Instruments))
	for i, inst := range c.Watch.Instruments {
		codes[i] = inst.Code
	}
	return codes
}

// InstrumentName returns the display name for code, or code itself.
func (c *Config) InstrumentName(code string) string {
	for _, inst := range c.Watch.Instruments {
		if strings.EqualFold(inst.Code, code) {
			return inst.Name
		}
	}
	return code
}

// Thresholds converts alerting settings into evaluator thresholds.
func (c *Config) Thresholds() alerting.Thresholds {
	th := alerting.DefaultThresholds()
	th.DayPricePct = decimal.NewFromFloat(c.Alerting.DayPricePct)
	th.ShortPricePct = decimal.NewFromFloat(c.Alerting.ShortPricePct)
	th.OIPct = decimal.NewFromFloat(c.Alerting.OIPct)
	th.NearHighPct = decimal.NewFromFloat(c.Alerting.NearHighPct)
	th.NearLowPct = decimal.NewFromFloat(c.Alerting.NearLowPct)
	if c.Alerting.HighSeverityMultiple > 0 {
		th.HighMultiple = decimal.NewFromFloat(c.Alerting.HighSeverityMultiple)
	}
	overrides, _ := c.severities()
	for kind, sev := range overrides {
		th.Severities[kind] = sev
	}
	return th
}

func (c *Config) severities() (map[alerting.ConditionType]alerting.Severity, error) {
	out := make(map[alerting.ConditionType]alerting.Severity, len(c.Alerting.Severities))
	for key, value := range c.Alerting.Severities {
		kind := alerting.ConditionType(strings.ToUpper(strings.TrimSpace(key)))
		known := false
		for _, k := range alerting.AllConditionTypes {
			if k == kind {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("alerting.severities: unknown condition %q", key)
		}
		if kind == alerting.DayPrice {
			return nil, fmt.Errorf("alerting.severities: %s severity follows the move size and cannot be fixed", kind)
		}
		sev, ok := alerting.ParseSeverity(value)
		if !ok {
			return nil, fmt.Errorf("alerting.severities.%s: invalid severity %q", key, value)
		}
		out[kind] = sev
	}
	return out, nil
}

// Sessions parses monitor.sessions in the configured timezone.
func (c *Config) Sessions() (scheduler.Sessions, error) {
	loc, err := c.Location()
	if err != nil {
		return scheduler.Sessions{}, err
	}
	return scheduler.ParseSessions(c.Monitor.Sessions, loc)
}

// Location resolves app.timezone, falling back to time.Local when empty.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" || strings.EqualFold(c.App.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.App.Timezone)
}

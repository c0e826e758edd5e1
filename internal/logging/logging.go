package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config describes logger runtime configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	TimeFormat  string `mapstructure:"time_format"`
	Caller      bool   `mapstructure:"caller"`
	PrettyPrint bool   `mapstructure:"pretty"`
	// Dir 非空时额外按天写 JSON 日志文件
	Dir string `mapstructure:"dir"`
}

// NewLogger constructs a zerolog logger writing to stdout.
func NewLogger(cfg Config) zerolog.Logger {
	return build(cfg, logWriter(cfg, os.Stdout))
}

// Open constructs the logger and, when cfg.Dir is set, tees every event into
// <dir>/nickelwatch_YYYY-MM-DD.log. The returned closer releases the file.
func Open(cfg Config) (zerolog.Logger, io.Closer, error) {
	console := logWriter(cfg, os.Stdout)
	if cfg.Dir == "" {
		return build(cfg, console), nopCloser{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	file := &DailyFile{Dir: cfg.Dir, Prefix: "nickelwatch"}
	return build(cfg, zerolog.MultiLevelWriter(console, file)), file, nil
}

func build(cfg Config, writer io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil && cfg.Level != "" {
		level = parsed
	}

	logger := zerolog.New(writer).Level(level)
	builder := logger.With().Timestamp()
	if cfg.Caller {
		builder = builder.Caller()
	}

	return builder.Logger()
}

func logWriter(cfg Config, out *os.File) io.Writer {
	if cfg.PrettyPrint || strings.EqualFold(cfg.Format, "console") {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd()),
		}
	}
	return out
}

// DailyFile is an io.Writer that appends to <Dir>/<Prefix>_YYYY-MM-DD.log,
// switching files when the local date changes.
type DailyFile struct {
	Dir    string
	Prefix string

	mu   sync.Mutex
	day  string
	file *os.File
	now  func() time.Time
}

// Write implements io.Writer.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	day := now().Format("2006-01-02")
	if d.file == nil || day != d.day {
		if d.file != nil {
			_ = d.file.Close()
			d.file = nil
		}
		path := filepath.Join(d.Dir, d.Prefix+"_"+day+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		d.file = f
		d.day = day
	}
	return d.file.Write(p)
}

// Close closes the current file.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

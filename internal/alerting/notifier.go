package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, cond Condition) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, cond Condition) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(cond),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("instrument", cond.InstrumentID).
		Str("type", string(cond.Type)).
		Str("severity", string(cond.Severity)).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(cond Condition) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s 【%s】%s\n", severityIcon(cond.Severity), cond.InstrumentName, cond.Message))
	builder.WriteString(cond.Detail + "\n")
	builder.WriteString(fmt.Sprintf("Type: %s  Severity: %s\n", cond.Type, cond.Severity))
	builder.WriteString(fmt.Sprintf("Time: %s", cond.DetectedAt.Format("2006-01-02 15:04:05")))
	return builder.String()
}

func severityIcon(sev Severity) string {
	switch sev {
	case SeverityHigh:
		return "🚨"
	case SeverityMedium:
		return "⚠️"
	default:
		return "📢"
	}
}

// ConsoleNotifier 把预警打印到终端。
type ConsoleNotifier struct {
	out io.Writer
}

// NewConsoleNotifier writes alerts to out.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

// Notify prints a three-line alert block.
func (c *ConsoleNotifier) Notify(_ context.Context, cond Condition) error {
	_, err := fmt.Fprintf(c.out, "\n%s 【%s】%s\n   %s\n   时间: %s\n",
		severityIcon(cond.Severity), cond.InstrumentName, cond.Message, cond.Detail,
		cond.DetectedAt.Format("15:04:05"))
	return err
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*ConsoleNotifier)(nil)
)

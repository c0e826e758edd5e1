package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleCondition() Condition {
	return Condition{
		InstrumentID:   "NIZL.SHF",
		InstrumentName: "沪镍主力",
		Type:           DayPrice,
		ChangePct:      decimal.RequireFromString("1.5"),
		MagnitudePct:   decimal.RequireFromString("1.5"),
		Severity:       SeverityMedium,
		Message:        "日内上涨 1.50%",
		Detail:         "开盘 100 → 现价 102",
		DetectedAt:     time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleCondition()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "沪镍主力") || !strings.Contains(received["text"], "日内上涨 1.50%") {
		t.Fatalf("text 应包含合约名与消息: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleCondition()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestTelegramNotifierHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleCondition()); err == nil {
		t.Fatal("502 应报错")
	}
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	if err := NewConsoleNotifier(&buf).Notify(context.Background(), sampleCondition()); err != nil {
		t.Fatalf("console notify: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"⚠️", "【沪镍主力】日内上涨 1.50%", "开盘 100 → 现价 102", "时间: 10:00:00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q: %q", want, out)
		}
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

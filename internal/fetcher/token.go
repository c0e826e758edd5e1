package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	accessTokenPath = "/get_access_token"
	// 官方有效期 7 天，保守按 6 天计算
	defaultTokenTTL = 6 * 24 * time.Hour
)

// TokenOptions parameterise access token acquisition.
type TokenOptions struct {
	BaseURL      string
	RefreshToken string
	CachePath    string
	TTL          time.Duration
	Timeout      time.Duration
}

// TokenSource 用长期有效的 refresh_token 换取 access_token，并缓存到本地文件。
type TokenSource struct {
	opts   TokenOptions
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenCache struct {
	AccessToken string    `json:"access_token"`
	ExpireTime  time.Time `json:"expire_time"`
}

// NewTokenSource builds a token source and loads a still-valid cached token if present.
func NewTokenSource(opts TokenOptions, logger zerolog.Logger) *TokenSource {
	if opts.TTL <= 0 {
		opts.TTL = defaultTokenTTL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}

	s := &TokenSource{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "ifind_token").Logger(),
		now:    time.Now,
	}
	s.loadCache()
	return s
}

// Token returns a valid access token, exchanging the refresh token when needed.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.expiresAt.After(s.now()) {
		return s.token, nil
	}
	if s.opts.RefreshToken == "" {
		return "", errors.New("ifind refresh token not configured")
	}

	s.logger.Info().Msg("正在获取 access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.BaseURL+accessTokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("refresh_token", s.opts.RefreshToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send token request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", parseHTTPError(accessTokenPath, resp.StatusCode, payload)
	}

	var result struct {
		ErrorCode int    `json:"errorcode"`
		ErrMsg    string `json:"errmsg"`
		Data      struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if result.ErrorCode != 0 {
		return "", &APIError{Endpoint: accessTokenPath, Code: result.ErrorCode, Message: result.ErrMsg}
	}
	if result.Data.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}

	s.token = result.Data.AccessToken
	s.expiresAt = s.now().Add(s.opts.TTL)
	s.saveCache()

	s.logger.Info().Time("expires_at", s.expiresAt).Msg("获取 access_token 成功")
	return s.token, nil
}

// ExpiresAt reports the expiry of the current token, zero when none is held.
func (s *TokenSource) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Invalidate forgets the in-memory token so the next call exchanges again.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

func (s *TokenSource) loadCache() {
	if s.opts.CachePath == "" {
		return
	}
	raw, err := os.ReadFile(s.opts.CachePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("读取 token 缓存失败")
		}
		return
	}

	var cache tokenCache
	if err := json.Unmarshal(raw, &cache); err != nil {
		s.logger.Warn().Err(err).Msg("token 缓存格式错误")
		return
	}
	if cache.AccessToken == "" || !cache.ExpireTime.After(s.now()) {
		return
	}

	s.token = cache.AccessToken
	s.expiresAt = cache.ExpireTime
	s.logger.Info().Time("expires_at", cache.ExpireTime).Msg("从缓存加载 token")
}

func (s *TokenSource) saveCache() {
	if s.opts.CachePath == "" {
		return
	}
	raw, err := json.Marshal(tokenCache{AccessToken: s.token, ExpireTime: s.expiresAt})
	if err != nil {
		s.logger.Warn().Err(err).Msg("序列化 token 缓存失败")
		return
	}
	if dir := filepath.Dir(s.opts.CachePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			s.logger.Warn().Err(err).Msg("创建 token 缓存目录失败")
			return
		}
	}
	if err := os.WriteFile(s.opts.CachePath, raw, 0o600); err != nil {
		s.logger.Warn().Err(err).Msg("保存 token 缓存失败")
	}
}

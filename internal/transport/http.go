package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/arbiter/internal/logging"
	"github.com/any-hub/arbiter/internal/version"
)

// DefaultMaxResponseBytes 限制单次响应正文的读取上限。
const DefaultMaxResponseBytes int64 = 32 * 1024 * 1024

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewClient 返回共享 http.Client，timeout <= 0 时使用 30s。
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// HTTPTransport 基于 net/http 实现 Transport，所有 Arbiter 共享一份实例。
type HTTPTransport struct {
	client   *http.Client
	logger   *logrus.Logger
	maxBytes int64
}

// NewHTTPTransport 使用给定 client 构造传输层；client 为 nil 时创建默认 client。
func NewHTTPTransport(client *http.Client, logger *logrus.Logger) *HTTPTransport {
	if client == nil {
		client = NewClient(0)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPTransport{
		client:   client,
		logger:   logger,
		maxBytes: DefaultMaxResponseBytes,
	}
}

// WithMaxResponseBytes 调整响应正文上限，n <= 0 时保持默认值。
func (t *HTTPTransport) WithMaxResponseBytes(n int64) *HTTPTransport {
	if n > 0 {
		t.maxBytes = n
	}
	return t
}

// Perform 执行一次 GET/POST 并将 JSON 响应解码为通用值。
func (t *HTTPTransport) Perform(ctx context.Context, url string, payload any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := t.buildRequest(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, url, err)
	}
	defer resp.Body.Close()

	fields := logging.UnitFields("", url, req.Method)
	fields["action"] = "transport"
	fields["request_id"] = req.Header.Get("X-Request-ID")
	fields["upstream_status"] = resp.StatusCode
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	t.logger.WithFields(fields).Debug("transport_complete")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s %s: %w: %d", req.Method, url, ErrUnexpectedStatus, resp.StatusCode)
	}

	var result any
	decoder := json.NewDecoder(io.LimitReader(resp.Body, t.maxBytes))
	if err := decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", url, err)
	}
	var trailing json.RawMessage
	if err := decoder.Decode(&trailing); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
		return nil, fmt.Errorf("decode %s response: %w", url, err)
	}
	return result, nil
}

func (t *HTTPTransport) buildRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	method := http.MethodGet
	var body io.Reader = http.NoBody
	if !IsAbsent(payload) {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		method = http.MethodPost
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

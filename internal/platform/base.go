package platform

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/go-resty/resty/v2"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/logger"
	"github.com/social-agent/pkg/ratelimit"
)

// MinTokenLength rejects obviously malformed tokens without a network call
const MinTokenLength = 10

const (
	readTimeout  = 10 * time.Second
	postTimeout  = 15 * time.Second
	probeTimeout = 5 * time.Second
)

// Deps are shared by every adapter
type Deps struct {
	Governor *ratelimit.Governor
	Log      *logger.Logger
	// HTTP is optional; adapters build their own resty client when nil
	HTTP *resty.Client
}

func newHTTPClient() *resty.Client {
	return resty.New().
		SetTimeout(postTimeout).
		SetHeader("User-Agent", "social-agent/1.0").
		SetHeader("Accept", "application/json")
}

// base carries what every REST adapter shares
type base struct {
	platform   models.Platform
	baseURL    string
	http       *resty.Client
	governor   *ratelimit.Governor
	log        *logger.Logger
	metricKeys []string
	// healthy judges a probe status code; nil means anything below 500
	healthy func(status int) bool
}

func newBase(p models.Platform, baseURL, defaultURL string, deps Deps, metricKeys []string) base {
	if baseURL == "" {
		baseURL = defaultURL
	}
	client := deps.HTTP
	if client == nil {
		client = newHTTPClient()
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return base{
		platform:   p,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       client,
		governor:   deps.Governor,
		log:        log.WithComponent("platform").WithPlatform(string(p)),
		metricKeys: metricKeys,
	}
}

func (b *base) Platform() models.Platform {
	return b.platform
}

func opTimeout(op ratelimit.OpClass) time.Duration {
	if op == ratelimit.OpPost {
		return postTimeout
	}
	return readTimeout
}

// admit consults the governor; a denial is returned before any I/O happens
func (b *base) admit(ctx context.Context, op ratelimit.OpClass) error {
	if b.governor == nil {
		return nil
	}
	return b.governor.Admit(ctx, string(b.platform), op)
}

func (b *base) record(ctx context.Context, op ratelimit.OpClass) {
	if b.governor == nil {
		return
	}
	if err := b.governor.Record(ctx, string(b.platform), op); err != nil {
		b.log.Warn().Err(err).Str("op", string(op)).Msg("Failed to record rate limit usage")
	}
}

// request describes one authenticated call
type request struct {
	op      ratelimit.OpClass
	method  string
	path    string
	token   string
	query   map[string]string
	headers map[string]string
	body    interface{}
	form    map[string]string
}

// call admits, performs and accounts one authenticated request.
// A non-nil error is either a *ratelimit.LimitError or an *UpstreamError for transport failures.
func (b *base) call(ctx context.Context, r request) (*resty.Response, error) {
	if err := b.admit(ctx, r.op); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout(r.op))
	defer cancel()

	req := b.http.R().SetContext(ctx)
	if r.token != "" {
		req.SetAuthToken(r.token)
	}
	if r.query != nil {
		req.SetQueryParams(r.query)
	}
	if r.headers != nil {
		req.SetHeaders(r.headers)
	}
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}
	if r.form != nil {
		req.SetFormData(r.form)
	}

	b.log.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Msg("Making platform API request")

	resp, err := req.Execute(r.method, b.baseURL+r.path)
	if err != nil {
		return nil, &UpstreamError{Platform: b.platform, Err: err}
	}

	b.log.Debug().
		Int("status", resp.StatusCode()).
		Msg("Platform API response")

	if resp.IsSuccess() {
		b.record(ctx, r.op)
	}
	return resp, nil
}

// getJSON performs a read and decodes a 2xx body into out
func (b *base) getJSON(ctx context.Context, token, path string, query map[string]string, out interface{}) (*resty.Response, error) {
	resp, err := b.call(ctx, request{op: ratelimit.OpRead, method: http.MethodGet, path: path, token: token, query: query})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return resp, nil
	}
	if err := decode(resp, out); err != nil {
		return resp, err
	}
	return resp, nil
}

func decode(resp *resty.Response, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// validate probes path with the token. 401/403 mean invalid; 5xx, 429 and
// transport failures are returned as errors so the caller can retry.
func (b *base) validate(ctx context.Context, token, path string, query map[string]string) (Validation, error) {
	if len(token) < MinTokenLength {
		return Validation{Valid: false, Error: "token is too short to be valid"}, nil
	}

	resp, err := b.call(ctx, request{op: ratelimit.OpRead, method: http.MethodGet, path: path, token: token, query: query})
	if err != nil {
		return Validation{}, err
	}

	status := resp.StatusCode()
	switch {
	case resp.IsSuccess():
		return Validation{Valid: true}, nil
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return Validation{}, &UpstreamError{Platform: b.platform, StatusCode: status}
	default:
		return Validation{Valid: false, Error: upstreamMessage(resp)}, nil
	}
}

// probe issues an unauthenticated GET against url and never fails
func (b *base) probe(ctx context.Context, url string) Health {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	resp, err := b.http.R().SetContext(ctx).Get(url)
	latency := time.Since(start)

	h := Health{Platform: b.platform, Latency: latency}
	if err != nil {
		h.Error = err.Error()
		b.log.Warn().Err(err).Dur("latency", latency).Msg("Health probe failed")
		return h
	}

	h.StatusCode = resp.StatusCode()
	if b.healthy != nil {
		h.Healthy = b.healthy(h.StatusCode)
	} else {
		h.Healthy = h.StatusCode < http.StatusInternalServerError
	}
	return h
}

func (b *base) CheckHealth(ctx context.Context) Health {
	return b.probe(ctx, b.baseURL)
}

// zeroMetrics returns every known metric key set to zero
func (b *base) zeroMetrics() models.Metrics {
	m := make(models.Metrics, len(b.metricKeys))
	for _, k := range b.metricKeys {
		m[k] = 0
	}
	return m
}

// metricsFrom fills the known keys from values, leaving the rest at zero
func (b *base) metricsFrom(values map[string]float64) models.Metrics {
	m := b.zeroMetrics()
	for k, v := range values {
		if _, known := m[k]; known {
			m[k] = v
		}
	}
	return m
}

// failure logs a failed call and builds the matching Result
func failure[T any](b *base, what string, resp *resty.Response, err error) Result[T] {
	ev := b.log.Error().Str("operation", what)
	if resp != nil {
		ev = ev.Int("status", resp.StatusCode()).Str("body", truncate(string(resp.Body()), 500))
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("Platform call failed")

	switch {
	case err != nil:
		return Failed[T]("%s %s failed: %v", b.platform, what, err)
	case resp != nil:
		return Failed[T]("%s %s failed: %s", b.platform, what, upstreamMessage(resp))
	default:
		return Failed[T]("%s %s failed", b.platform, what)
	}
}

// upstreamMessage extracts a readable error from structured or plain-text bodies
func upstreamMessage(resp *resty.Response) string {
	body := resp.Body()
	var structured struct {
		Message          string      `json:"message"`
		ErrorDescription string      `json:"error_description"`
		Detail           string      `json:"detail"`
		Error            interface{} `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil {
		switch {
		case structured.Message != "":
			return fmt.Sprintf("%d: %s", resp.StatusCode(), structured.Message)
		case structured.ErrorDescription != "":
			return fmt.Sprintf("%d: %s", resp.StatusCode(), structured.ErrorDescription)
		case structured.Detail != "":
			return fmt.Sprintf("%d: %s", resp.StatusCode(), structured.Detail)
		}
		switch e := structured.Error.(type) {
		case string:
			return fmt.Sprintf("%d: %s", resp.StatusCode(), e)
		case map[string]interface{}:
			if msg, ok := e["message"].(string); ok && msg != "" {
				return fmt.Sprintf("%d: %s", resp.StatusCode(), msg)
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return resp.Status()
	}
	return fmt.Sprintf("%d: %s", resp.StatusCode(), truncate(text, 200))
}

// truncate keeps the first n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

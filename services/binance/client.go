package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 15 * time.Second
	maxLoggedBody   = 512
	apiKeyHeader    = "X-MBX-APIKEY"
	signatureParam  = "signature"
	timestampParam  = "timestamp"
	maxResponseSize = 10 << 20
)

// RestClient issues raw REST calls against the Binance API on behalf of
// one key pair. Signed requests carry a millisecond timestamp and an
// HMAC-SHA256 signature computed over the canonical query string.
type RestClient struct {
	apiKey     string
	apiSecret  string
	hosts      Hosts
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Entry
	now        func() time.Time
}

// Option customizes a RestClient.
type Option func(*RestClient)

// WithHosts overrides the host routing table (testnet, fakes).
func WithHosts(hosts Hosts) Option {
	return func(c *RestClient) { c.hosts = hosts }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *RestClient) { c.httpClient = hc }
}

// WithLimiter installs a token-bucket limiter shared across clients
// hitting the same upstream. Binance enforces per-IP limits, so the fan-out
// layer passes one limiter to every account client in a batch.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *RestClient) { c.limiter = l }
}

// WithClock overrides the timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *RestClient) { c.now = now }
}

// NewRestClient creates a client for one API key pair.
func NewRestClient(apiKey, apiSecret string, opts ...Option) *RestClient {
	c := &RestClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		hosts:     DefaultHosts(),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logrus.WithField("component", "binance-rest"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign computes the hex HMAC-SHA256 digest of payload under secret.
func Sign(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// Do executes one request. For signed endpoints the timestamp is injected
// and the signature appended as the final parameter; the query string sent
// on the wire is exactly the string that was signed. All methods carry
// parameters in the query string, matching Binance's signed-endpoint
// convention.
func (c *RestClient) Do(ctx context.Context, method, path string, params *Params, signed bool) (json.RawMessage, error) {
	if params == nil {
		params = NewParams()
	} else {
		params = params.Clone()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if signed {
		params.Set(timestampParam, strconv.FormatInt(c.now().UnixMilli(), 10))
		params.Set(signatureParam, Sign(c.apiSecret, params.Encode()))
	}

	host := c.hosts.forGroup(groupForPath(path))
	fullURL := host + path
	if qs := params.Encode(); qs != "" {
		fullURL += "?" + qs
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"params": c.redactedParams(params),
	}).Info("binance request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"path":   path,
		"status": resp.StatusCode,
		"body":   truncate(string(body), maxLoggedBody),
	}).Info("binance response")

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp, body)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON response from %s: %s", path, truncate(string(body), maxLoggedBody))
	}
	return json.RawMessage(body), nil
}

// Get issues an unsigned or signed GET.
func (c *RestClient) Get(ctx context.Context, path string, params *Params, signed bool) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, params, signed)
}

// Post issues a signed POST.
func (c *RestClient) Post(ctx context.Context, path string, params *Params) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, params, true)
}

// Delete issues a signed DELETE.
func (c *RestClient) Delete(ctx context.Context, path string, params *Params) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, path, params, true)
}

// Put issues a PUT; listen-key keepalives use this unsigned.
func (c *RestClient) Put(ctx context.Context, path string, params *Params, signed bool) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, path, params, signed)
}

func (c *RestClient) apiError(resp *http.Response, body []byte) error {
	apiErr := &APIError{HTTPStatus: resp.StatusCode}

	var upstream struct {
		Code int64  `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &upstream); err == nil && upstream.Msg != "" {
		apiErr.Code = upstream.Code
		apiErr.Message = upstream.Msg
	} else {
		apiErr.Message = truncate(string(body), maxLoggedBody)
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			apiErr.RetryAfter = secs
		}
	}
	return apiErr
}

// redactedParams renders params for logging with the signature masked.
// The API key never appears in params (it travels as a header), but the
// signature is derived from the secret and is masked anyway.
func (c *RestClient) redactedParams(params *Params) string {
	if params.Get(signatureParam) == "" {
		return params.Encode()
	}
	clone := params.Clone()
	clone.Set(signatureParam, "***")
	return clone.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package catalyst is the transport to the Catalyst Center REST API. Every
// operation is addressed as family.function with named params, mirroring the
// controller's SDK surface.
package catalyst

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Executor issues one logical API call.
type Executor interface {
	Exec(ctx context.Context, family, function string, params Params) (*Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Username  string
	Password  string
	Version   string
	VerifyTLS bool
	Timeout   time.Duration
	RateLimit float64
}

// Client talks to Catalyst Center over HTTPS with token authentication.
type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	token string
}

var _ Executor = (*Client)(nil)

// NewClient creates a new Catalyst Center client
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 10.0
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !opts.VerifyTLS}, //nolint:gosec
	}

	burst := int(opts.RateLimit)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), burst),
	}
}

// Close closes idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Login obtains a fresh authentication token.
func (c *Client) Login(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/dna/system/api/v1/auth/token", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.opts.Username, c.opts.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to authenticate to Catalyst Center: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authentication failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Token string `json:"Token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.Token == "" {
		return fmt.Errorf("authentication response carried no token")
	}

	c.mu.Lock()
	c.token = result.Token
	c.mu.Unlock()

	log.Debug().Str("base_url", c.opts.BaseURL).Msg("Authenticated to Catalyst Center")
	return nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Exec performs family.function with params. A 401 triggers one re-login.
func (c *Client) Exec(ctx context.Context, family, function string, params Params) (*Response, error) {
	rt, err := lookup(family, function)
	if err != nil {
		return nil, err
	}
	path, query, body, err := rt.build(params)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("catalyst: marshal payload for %s.%s: %w", family, function, err)
		}
	}

	url := c.opts.BaseURL + path
	if len(query) > 0 {
		url += "?" + query.Encode()
	}

	if c.currentToken() == "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		log.Debug().
			Str("family", family).
			Str("function", function).
			Str("method", rt.method).
			Str("path", path).
			Msg("API call")

		status, raw, header, err := c.do(ctx, rt.method, url, payload)
		if err != nil {
			return nil, fmt.Errorf("catalyst: %s.%s: %w", family, function, err)
		}

		if status == http.StatusUnauthorized && attempt == 0 {
			log.Debug().Msg("Token rejected, re-authenticating")
			if err := c.Login(ctx); err != nil {
				return nil, err
			}
			continue
		}

		if status < 200 || status >= 300 {
			return nil, &APIError{
				Family:     family,
				Function:   function,
				Params:     params,
				StatusCode: status,
				Body:       string(raw),
			}
		}

		return newHTTPResponse(raw, header), nil
	}
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) (int, []byte, http.Header, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("X-Auth-Token", c.currentToken())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, raw, resp.Header, nil
}

func newHTTPResponse(raw []byte, header http.Header) *Response {
	r := &Response{Raw: raw}
	if cd := header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			r.Filename = params["filename"]
		}
	}
	return r
}

package backupapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	userAgent = "dnac-backup-client"

	defaultWaitInterval = 5 * time.Second
	defaultWaitTimeout  = 2 * time.Hour
)

// Client is the client for interacting with the appliance backup API.
type Client struct {
	client    *http.Client
	ServerURL *url.URL
	username  string
	password  string

	// token is the session token issued by the auth endpoint.
	mu    sync.Mutex
	token string

	userAgent string
	limiter   *rate.Limiter

	waitInterval time.Duration
	waitTimeout  time.Duration

	logger *zap.Logger
}

// NewClient creates a Client with given options.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				TLSClientConfig:       &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // appliances ship self-signed certificates
			},
			Timeout: 10 * time.Second,
		},
		userAgent:    userAgent,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		waitInterval: defaultWaitInterval,
		waitTimeout:  defaultWaitTimeout,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.ServerURL == nil {
		return nil, errors.New("missing appliance server url")
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	return c, nil
}

// ClientOption provides mechanism to configure Client.
type ClientOption func(c *Client) error

// WithHTTPClient sets the underlying HTTP client for Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) error {
		if client == nil {
			return errors.New("nil HTTP client")
		}
		c.client = client
		return nil
	}
}

// WithServerURL sets the server url for Client. A bare hostname is served over https.
func WithServerURL(serverURL string) ClientOption {
	return func(c *Client) error {
		su, err := url.Parse(serverURL)
		if err != nil {
			return err
		}
		if su.Scheme == "" {
			su, err = url.Parse("https://" + serverURL)
			if err != nil {
				return err
			}
		}
		if su.Host == "" {
			return fmt.Errorf("invalid server url %q", serverURL)
		}
		c.ServerURL = su
		return nil
	}
}

// WithCredentials sets the username and password used to obtain a token.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithVerifyTLS toggles certificate verification on the default transport.
func WithVerifyTLS(verify bool) ClientOption {
	return func(c *Client) error {
		t, ok := c.client.Transport.(*http.Transport)
		if !ok {
			return errors.New("custom transport, cannot change TLS verification")
		}
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verify} //nolint:gosec // opt-in by configuration
		return nil
	}
}

// WithRateLimit spaces outgoing requests to at most r per second.
func WithRateLimit(r float64, burst int) ClientOption {
	return func(c *Client) error {
		if r <= 0 || burst <= 0 {
			return fmt.Errorf("invalid rate limit %v/%d", r, burst)
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
		return nil
	}
}

// WithWaitTimeout bounds how long WaitForBackup keeps polling.
func WithWaitTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.waitTimeout = d
		return nil
	}
}

// WithUserAgent replaces the default User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) error {
		if ua != "" {
			c.userAgent = ua
		}
		return nil
	}
}

// WithLogger sets the logger for Client.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// NewRequest create new http request
func (c *Client) NewRequest(method, relPath string, body interface{}) (*http.Request, error) {
	buf := new(bytes.Buffer)
	if body != nil {
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, err
		}
	}

	reqURL, err := c.urlStringFromRelPath(relPath)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, reqURL, buf)
	if err != nil {
		return nil, err
	}

	return req, nil
}

// Do makes an http request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	return c.client.Do(req)
}

func (c *Client) urlStringFromRelPath(relPath string) (string, error) {
	if c.ServerURL.Path != "" && c.ServerURL.Path != "/" {
		relPath = path.Join(c.ServerURL.Path, relPath)
	}
	relURL, err := url.Parse(relPath)
	if err != nil {
		return "", err
	}

	u := c.ServerURL.ResolveReference(relURL)
	return u.String(), nil
}

// call performs op against relPath and decodes the response body into out.
// A 401 on a token-authenticated call refreshes the token once and replays.
func (c *Client) call(ctx context.Context, op Operation, relPath string, body, out interface{}) error {
	if op != OpAuth {
		if _, err := c.ensureToken(ctx); err != nil {
			return err
		}
	}

	resp, err := c.send(ctx, op, relPath, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && op != OpAuth {
		resp.Body.Close()
		c.logger.Debug("token rejected, re-authenticating", zap.String("path", relPath))
		c.resetToken()
		if _, err := c.ensureToken(ctx); err != nil {
			return err
		}
		if resp, err = c.send(ctx, op, relPath, body); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if err := checkResponse(op, resp); err != nil {
		c.logger.Debug("appliance call failed", zap.Stringer("op", op), zap.String("path", relPath), zap.Error(err))
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", op, relPath, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, op Operation, relPath string, body interface{}) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	req, err := c.NewRequest(op.Method(), relPath, body)
	if err != nil {
		return nil, err
	}
	if op == OpAuth {
		req.SetBasicAuth(c.username, c.password)
	} else {
		req.Header.Set("X-Auth-Token", c.currentToken())
	}

	resp, err := c.Do(req.WithContext(ctx))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}

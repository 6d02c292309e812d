package rws

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultUsername       = "Default User"
	DefaultPassword       = "robotics"
	DefaultRequestTimeout = 30 * time.Second

	// SubProtocol — sub-protocol, по которому контроллер отличает канал
	// подписки от обычного сокета.
	SubProtocol = "robapi2_subscription"

	authPath   = "/rw"
	logoutPath = "/logout"
)

type Config struct {
	BaseURL        string        `json:"base_url"`
	Username       string        `json:"username"`
	Password       string        `json:"password"`
	RequestTimeout time.Duration `json:"request_timeout"`

	// для https-контроллеров с самоподписанным сертификатом
	InsecureSkipVerify bool   `json:"insecure_skip_verify"`
	CAFile             string `json:"ca_file"`
}

// Client — одна сессия RWS. Cookie сессии после Authenticate только читается,
// поэтому REST-вызовы и канал событий могут идти параллельно.
type Client struct {
	base     string
	baseURL  *url.URL
	username string
	password string

	http   *http.Client
	jar    *cookiejar.Jar
	dialer *websocket.Dialer

	logger        *slog.Logger
	sessionID     string
	authenticated atomic.Bool
}

type Option func(*Client)

// WithLogger задаёт логгер; по умолчанию slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("rws: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("rws: invalid base url %q", cfg.BaseURL)
	}

	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	tlsConf, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	// копия до ConfigureTransport: ALPN h2 не нужен при апгрейде WebSocket
	wsTLS := tlsConf.Clone()

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConf,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if u.Scheme == "https" {
		if err := http2.ConfigureTransport(tr); err != nil {
			return nil, fmt.Errorf("rws: http2: %w", err)
		}
	}

	c := &Client{
		base:     base,
		baseURL:  u,
		username: cfg.Username,
		password: cfg.Password,
		jar:      jar,
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Jar:       jar,
			Transport: newAuthTransport(tr, cfg.Username, cfg.Password),
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.RequestTimeout,
			Subprotocols:     []string{SubProtocol},
			TLSClientConfig:  wsTLS,
		},
		logger:    slog.Default(),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session", c.sessionID)
	return c, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	if !cfg.InsecureSkipVerify && cfg.CAFile == "" {
		return nil, nil
	}
	tc := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("rws: read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("rws: no certificates in %s", cfg.CAFile)
		}
		tc.RootCAs = pool
	}
	return tc, nil
}

// Authenticate — один запрос к /rw; успех определяется только 2xx.
// Cookie сессии сохраняется в jar и дальше подставляется сама.
func (c *Client) Authenticate(ctx context.Context) error {
	resp, err := c.Request(ctx, http.MethodGet, authPath, nil)
	if err != nil {
		c.authenticated.Store(false)
		c.logger.Error("authentication error", "err", err)
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if !resp.OK() {
		c.authenticated.Store(false)
		c.logger.Error("authentication rejected", "status", resp.Status)
		return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.Status)
	}
	c.authenticated.Store(true)
	c.logger.Info("authenticated", "base", c.base)
	return nil
}

func (c *Client) Authenticated() bool { return c.authenticated.Load() }

func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) BaseURL() string { return c.base }

// Logout закрывает сессию на контроллере. Флаг сбрасывается при любом исходе.
func (c *Client) Logout(ctx context.Context) error {
	defer c.authenticated.Store(false)
	resp, err := c.Request(ctx, http.MethodGet, logoutPath, nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Method: http.MethodGet, Path: logoutPath, Status: resp.Status}
	}
	c.logger.Info("logged out")
	return nil
}

// Close освобождает простаивающие HTTP-соединения. Канал событий закрывается отдельно.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Package recon gathers the surface of a target for the reasoner: response
// headers and HTML for web endpoints, key configuration files for
// repositories.
package recon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/runner"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultRawBaseURL  = "https://raw.githubusercontent.com"
	maxBodySize        = 1 << 20
	maxRepoFileSize    = 256 << 10
	userAgent          = "sentinel-adk/0.3 (+security scan)"
)

// Executor is the part of runner.Runner used for optional network tools.
type Executor interface {
	Probe(ctx context.Context, command string) bool
	Run(ctx context.Context, t runner.Task) engine.ToolResult
}

// Recon implements both recon paths.
type Recon struct {
	client     *http.Client
	exec       Executor
	limiter    *rate.Limiter
	rawBaseURL string
	portScan   bool
	nikto      bool
}

type Option func(*Recon)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Recon) { r.client = c }
}

// WithRawBaseURL points repository recon at a different raw content host.
func WithRawBaseURL(u string) Option {
	return func(r *Recon) { r.rawBaseURL = strings.TrimRight(u, "/") }
}

// WithRateLimit paces raw file fetches at rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(r *Recon) { r.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithPortScan runs nmap against web targets when it is installed.
func WithPortScan(enabled bool) Option {
	return func(r *Recon) { r.portScan = enabled }
}

// WithNikto runs nikto against web targets when it is installed.
func WithNikto(enabled bool) Option {
	return func(r *Recon) { r.nikto = enabled }
}

func New(exec Executor, opts ...Option) *Recon {
	r := &Recon{
		client:     &http.Client{Timeout: DefaultHTTPTimeout},
		exec:       exec,
		limiter:    rate.NewLimiter(rate.Limit(10), 2),
		rawBaseURL: DefaultRawBaseURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recon) get(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return r.client.Do(req)
}

// readLimited reads at most n bytes of the body and drains the rest.
func readLimited(body io.ReadCloser, n int64) ([]byte, error) {
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, n))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	return data, nil
}

// normalizeURL adds https:// to scheme-less locators.
func normalizeURL(target string) string {
	t := strings.TrimSpace(target)
	if !strings.Contains(t, "://") {
		return "https://" + t
	}
	return t
}

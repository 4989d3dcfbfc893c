package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`   // Default: 30s.
	MaxBytes  int64         `yaml:"max_bytes"` // Default: 10MB.
	UserAgent string        `yaml:"user_agent"`
	// CacheBustParam names the query parameter set to the current unix
	// milliseconds on every request. Empty disables it. Default: "timestamp".
	CacheBustParam string `yaml:"cache_bust_param"`
	// NoCacheBust disables the cache-busting parameter.
	NoCacheBust bool `yaml:"no_cache_bust"`
	// AllowPrivate skips the private-address check, for local endpoints.
	AllowPrivate bool `yaml:"allow_private"`

	// URLValidator overrides ValidateURL. Ignored when AllowPrivate is set.
	URLValidator func(string) error `yaml:"-"`
	// Now overrides time.Now for the cache-busting parameter.
	Now func() time.Time `yaml:"-"`
}

func (c *HTTPConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "plotmap/1.0"
	}
	if c.CacheBustParam == "" && !c.NoCacheBust {
		c.CacheBustParam = "timestamp"
	}
	if c.NoCacheBust {
		c.CacheBustParam = ""
	}
	if c.AllowPrivate {
		c.URLValidator = func(string) error { return nil }
	} else if c.URLValidator == nil {
		c.URLValidator = ValidateURL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// HTTPSource polls a sheet endpoint with conditional GET.
type HTTPSource struct {
	client *http.Client
	config HTTPConfig

	mu      sync.Mutex
	etag    string // validator of the last committed fetch
	pending string // validator of the last successful, uncommitted fetch
}

// NewHTTP creates an HTTPSource. Redirects are re-validated.
func NewHTTP(cfg HTTPConfig) *HTTPSource {
	cfg.defaults()
	validate := cfg.URLValidator
	return &HTTPSource{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves and decodes the current rows. A 304 answer to the
// committed ETag returns ErrNotModified. The response ETag is held until
// Commit.
func (s *HTTPSource) Fetch(ctx context.Context) ([]plot.Plot, error) {
	if err := s.config.URLValidator(s.config.URL); err != nil {
		return nil, fmt.Errorf("%w: url blocked: %v", ErrTransport, err)
	}
	target, err := s.requestURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %v", ErrTransport, err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	s.mu.Lock()
	s.pending = ""
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d", ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if int64(len(body)) > s.config.MaxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformed, s.config.MaxBytes)
	}

	plots, err := Decode(body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.pending = resp.Header.Get("ETag")
	s.mu.Unlock()
	return plots, nil
}

// Commit makes the last fetch's ETag the If-None-Match of later requests.
func (s *HTTPSource) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != "" {
		s.etag = s.pending
		s.pending = ""
	}
}

// Rollback forgets the last fetch's ETag; the previous one stays in use.
func (s *HTTPSource) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ""
}

func (s *HTTPSource) requestURL() (string, error) {
	if s.config.CacheBustParam == "" {
		return s.config.URL, nil
	}
	u, err := url.Parse(s.config.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(s.config.CacheBustParam, strconv.FormatInt(s.config.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

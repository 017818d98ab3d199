package size

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"

	_ "golang.org/x/image/webp"
)

var ErrUnsupportedScheme = errors.New("size: only http and https images can be probed")

// Prober measures the natural dimensions of the content an item references.
type Prober interface {
	Probe(ctx context.Context, ref string) (LayoutSize, error)
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, ref string) (LayoutSize, error)

func (f ProberFunc) Probe(ctx context.Context, ref string) (LayoutSize, error) { return f(ctx, ref) }

// HTTPClient is the subset of *http.Client the prober needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type HTTPProberOption func(*HTTPProber)

func WithHTTPClient(c HTTPClient) HTTPProberOption {
	return func(p *HTTPProber) { p.client = c }
}

func WithUserAgent(ua string) HTTPProberOption {
	return func(p *HTTPProber) { p.userAgent = ua }
}

// HTTPProber fetches an image and decodes only its header to learn its size.
type HTTPProber struct {
	client    HTTPClient
	userAgent string
}

func NewHTTPProber(opts ...HTTPProberOption) *HTTPProber {
	p := &HTTPProber{client: http.DefaultClient, userAgent: "pinfeed/1.0"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTTPProber) Probe(ctx context.Context, ref string) (LayoutSize, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return LayoutSize{}, fmt.Errorf("invalid image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return LayoutSize{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return LayoutSize{}, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return LayoutSize{}, fmt.Errorf("fetching %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return LayoutSize{}, fmt.Errorf("fetching %s: unexpected status %d", ref, resp.StatusCode)
	}

	cfg, format, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return LayoutSize{}, fmt.Errorf("decoding %s: %w", ref, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return LayoutSize{}, fmt.Errorf("decoding %s: %s image reports %dx%d", ref, format, cfg.Width, cfg.Height)
	}
	return LayoutSize{Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
}

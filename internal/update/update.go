package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultRepo    = "matheuskafuri/pinfeed"
	checkTimeout   = 5 * time.Second
)

// Result holds the outcome of a version check.
type Result struct {
	LatestVersion string
	URL           string
}

type ghRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type Option func(*Checker)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		c.client = client
	}
}

func WithBaseURL(url string) Option {
	return func(c *Checker) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

func WithRepo(repo string) Option {
	return func(c *Checker) {
		c.repo = repo
	}
}

func WithLogger(l log.Logger) Option {
	return func(c *Checker) {
		c.log = log.NewHelper(log.With(l, "component", "update"))
	}
}

// Checker asks the GitHub Releases API for the latest pinfeed release.
type Checker struct {
	client  *http.Client
	baseURL string
	repo    string
	log     *log.Helper
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		client:  http.DefaultClient,
		baseURL: defaultBaseURL,
		repo:    defaultRepo,
		log:     log.NewHelper(log.With(log.DefaultLogger, "component", "update")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reports a newer release than currentVersion, or nil when there is
// none. Failures are logged and also yield nil.
func (c *Checker) Check(ctx context.Context, currentVersion string) *Result {
	release, err := c.latest(ctx)
	if err != nil {
		c.log.Debugw("msg", "version check failed", "error", err)
		return nil
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	current := strings.TrimPrefix(currentVersion, "v")
	if latest == "" || latest == current {
		return nil
	}
	return &Result{LatestVersion: latest, URL: release.HTMLURL}
}

func (c *Checker) latest(ctx context.Context) (*ghRelease, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("releases API returned %s", resp.Status)
	}

	var release ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	return &release, nil
}

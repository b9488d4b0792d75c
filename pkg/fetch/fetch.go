// Package fetch downloads module jars from an update provider into the local
// bundle directory.
//
// The provider is asked for
//
//	{base}/rest/update/provider/download/{name}/{version}/{identity}?allowRedirect=true
//
// and may answer with the jar or with a 301/302 redirect to its final
// location. Redirects are followed by hand, at most five times.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/juju/clock"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/cfboot/pkg/buildinfo"
	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/httputil"
	"github.com/matzehuels/cfboot/pkg/identity"
	"github.com/matzehuels/cfboot/pkg/observability"
)

// Latest asks the provider for the newest version of a module.
const Latest = "latest"

// Defaults.
const (
	DefaultBaseURL      = "https://update.lucee.org"
	DefaultMaxRedirects = 5
	DefaultTimeout      = 10 * time.Minute

	maxRetryDelay = 10 * time.Second
)

// Fetcher downloads modules into a directory.
type Fetcher struct {
	dir          string
	baseURL      string
	client       *http.Client
	enabled      bool
	logger       *log.Logger
	attempts     int
	delay        time.Duration
	maxRedirects int
	clock        clock.Clock

	group singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL sets the update provider location.
func WithBaseURL(u string) Option {
	return func(f *Fetcher) { f.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client. The client must not follow
// redirects on its own.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithEnabled turns downloading on or off.
func WithEnabled(enabled bool) Option {
	return func(f *Fetcher) { f.enabled = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithRetry sets how often a request failing with a network error or a 5xx
// status is attempted.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(f *Fetcher) { f.attempts, f.delay = attempts, delay }
}

// WithClock sets the clock that paces retries.
func WithClock(c clock.Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// WithMaxRedirects bounds the number of redirects followed.
func WithMaxRedirects(n int) Option {
	return func(f *Fetcher) { f.maxRedirects = n }
}

// New returns a Fetcher writing into dir.
func New(dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:          dir,
		baseURL:      DefaultBaseURL,
		enabled:      true,
		attempts:     3,
		delay:        500 * time.Millisecond,
		maxRedirects: DefaultMaxRedirects,
		clock:        clock.WallClock,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = httputil.NewClient(httputil.DefaultConnectTimeout, httputil.WithoutRedirects(), httputil.WithTimeout(DefaultTimeout))
	}
	if f.logger == nil {
		f.logger = log.New(io.Discard)
	}
	return f
}

// Dir returns the target directory.
func (f *Fetcher) Dir() string { return f.dir }

// BaseURL returns the update provider location.
func (f *Fetcher) BaseURL() string { return f.baseURL }

// Enabled reports whether downloads are allowed.
func (f *Fetcher) Enabled() bool { return f.enabled }

// URL builds the download URL. The identity query, when present, comes
// before allowRedirect.
func (f *Fetcher) URL(name, ver string, id *identity.Identity) string {
	if ver == "" {
		ver = Latest
	}
	q := id.QueryString()
	sep := "&"
	if q == "" {
		sep = "?"
	}
	return f.baseURL + "/rest/update/provider/download/" + url.PathEscape(name) + "/" + url.PathEscape(ver) + "/" + q + sep + "allowRedirect=true"
}

// Download fetches name in version ver (empty or [Latest] for the newest)
// and returns the path of the jar in the target directory. Concurrent calls
// for the same module share one transfer.
func (f *Fetcher) Download(ctx context.Context, name, ver string, id *identity.Identity) (string, error) {
	if ver == "" {
		ver = Latest
	}
	if !f.enabled {
		return "", errors.New(errors.ErrCodeDownloadDisabled,
			"The server is missing the module jar [%s:%s], and has been prevented from downloading it. "+
				"If this jar is not a core jar, it will need to be manually downloaded and placed in the [%s] directory.",
			name, ver, f.dir)
	}
	if err := errors.ValidateModuleName(name); err != nil {
		return "", err
	}
	if ver != Latest {
		if err := errors.ValidateVersionText(ver); err != nil {
			return "", err
		}
	}

	v, err, _ := f.group.Do(name+":"+ver, func() (any, error) {
		start := time.Now()
		path, size, err := f.download(ctx, name, ver, id)
		observability.Resolver().OnDownload(ctx, name, ver, size, time.Since(start), err)
		return path, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (f *Fetcher) download(ctx context.Context, name, ver string, id *identity.Identity) (string, int64, error) {
	start := f.URL(name, ver, id)
	f.logger.Info("downloading module", "module", name+":"+ver, "url", start)

	resp, err := f.open(ctx, name, ver, start)
	if err != nil {
		f.logger.Error("download failed", "module", name+":"+ver, "error", err)
		return "", 0, err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(f.dir, ".download-*.part")
	if err != nil {
		return "", 0, err
	}
	size, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, errors.Wrap(errors.ErrCodeDownloadFailed, err, "Failed to download the module [%s:%s] from [%s]", name, ver, start)
	}

	resolved := ver
	if ver == Latest {
		d, err := bundle.ReadFile(tmp.Name())
		if err != nil {
			os.Remove(tmp.Name())
			return "", 0, errors.Wrap(errors.ErrCodeDownloadFailed, err, "module [%s:%s] downloaded from [%s] is not a valid bundle", name, ver, start)
		}
		resolved = d.Version.String()
	}

	target := filepath.Join(f.dir, name+"-"+resolved+".jar")
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", 0, err
	}
	f.logger.Info("downloaded module", "module", name+":"+resolved, "path", target, "bytes", size)
	return target, size, nil
}

// open issues the GET and follows redirects. The returned response has
// status 200.
func (f *Fetcher) open(ctx context.Context, name, ver, start string) (*http.Response, error) {
	target := start
	for redirects := 0; ; redirects++ {
		resp, err := f.get(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Wrap(errors.ErrCodeDownloadFailed, err, "Failed to download the module [%s:%s] from [%s]", name, ver, target)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return resp, nil
		case http.StatusMovedPermanently, http.StatusFound:
			loc := location(resp.Header)
			resp.Body.Close()
			if loc == "" || redirects >= f.maxRedirects {
				return nil, f.failed(name, ver, start)
			}
			next, err := resolveReference(target, loc)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeDownloadFailed, err, "invalid redirect location %q", loc)
			}
			f.logger.Info("download redirected", "location", next)
			target = next
		default:
			resp.Body.Close()
			return nil, f.failed(name, ver, start)
		}
	}
}

func (f *Fetcher) get(ctx context.Context, target string) (*http.Response, error) {
	var resp *http.Response
	backoff := httputil.Backoff{Attempts: f.attempts, Delay: f.delay, MaxDelay: maxRetryDelay, Clock: f.clock}
	err := backoff.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			f.logger.Debug("retrying download", "url", target, "attempt", attempt)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", buildinfo.UserAgent())
		r, err := f.client.Do(req)
		if err != nil {
			return &httputil.RetryableError{Err: err}
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return &httputil.RetryableError{Err: fmt.Errorf("status %d from %s", r.StatusCode, target)}
		}
		resp = r
		return nil
	})
	return resp, err
}

func (f *Fetcher) failed(name, ver, from string) error {
	return errors.New(errors.ErrCodeDownloadFailed,
		"Download bundle failed for [%s] in version [%s] from [%s], please download manually and copy to [%s]",
		name, ver, from, f.dir)
}

// location returns the Location header, whatever its capitalisation.
func location(h http.Header) string {
	for k, vs := range h {
		if strings.EqualFold(k, "Location") && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

func resolveReference(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

const (
	// DefaultTimeout bounds a whole fetch, connection through body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBytes caps the size of a fetched image.
	DefaultMaxBytes int64 = 32 << 20

	maxRedirects = 10
)

// FetchError describes a failed remote fetch. StatusCode is zero when no
// response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrBlockedAddress is wrapped into a FetchError when the private-network
// guard rejects a host.
var ErrBlockedAddress = errors.New("address is in a restricted network")

// HTTPFetcher downloads image bytes over HTTP(S).
type HTTPFetcher struct {
	client       *http.Client
	maxBytes     int64
	blockPrivate bool
	resolver     *net.Resolver
	blocked      func(net.IP) bool
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the underlying client. Its Timeout is left as is.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout sets the client timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithMaxBytes caps the response body size. Non-positive values are ignored.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithBlockPrivate refuses hosts that resolve to loopback, private or
// link-local addresses. The check runs on the request URL, on every redirect
// target and on the address actually dialed, so a redirect or a DNS answer
// that changes between lookup and connect cannot reach a restricted network.
// A client given with WithHTTPClient keeps its own Transport and only gets the
// URL and redirect checks.
func WithBlockPrivate(block bool) Option {
	return func(f *HTTPFetcher) {
		f.blockPrivate = block
	}
}

// NewHTTPFetcher returns a fetcher with DefaultTimeout and DefaultMaxBytes.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   &http.Client{Timeout: DefaultTimeout},
		maxBytes: DefaultMaxBytes,
		resolver: net.DefaultResolver,
		blocked:  restrictedIP,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.blockPrivate {
		f.client = f.guardedClient()
	}
	return f
}

// guardedClient returns a copy of the client that re-checks redirect targets
// and, when it owns the transport, every dialed address.
func (f *HTTPFetcher) guardedClient() *http.Client {
	c := *f.client
	if c.Transport == nil {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   f.controlDial,
		}
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.Proxy = nil
		t.DialContext = dialer.DialContext
		c.Transport = t
	}

	next := c.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if err := f.checkURL(req.Context(), req.URL.String()); err != nil {
			return err
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	return &c
}

// controlDial runs after name resolution, on the literal address being dialed.
func (f *HTTPFetcher) controlDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("dial %s: not an ip address", address)
	}
	if f.blocked(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

// FetchBytes downloads rawURL and returns the body. Every failure is a
// *FetchError.
func (f *HTTPFetcher) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.checkURL(ctx, rawURL); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("body exceeds %d bytes", f.maxBytes)}
	}

	return data, nil
}

// checkURL accepts only http(s) URLs and, when blockPrivate is set, rejects
// hosts with any address in a restricted network.
func (f *HTTPFetcher) checkURL(ctx context.Context, rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	if !f.blockPrivate {
		return nil
	}

	host := u.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		addrs, err := f.resolver.LookupIPAddr(ctx, host)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", host, err)
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}

	if len(ips) == 0 {
		return fmt.Errorf("no addresses for %s", host)
	}
	for _, ip := range ips {
		if f.blocked(ip) {
			return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
		}
	}
	return nil
}

func restrictedIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

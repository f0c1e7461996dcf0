package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Connection pool settings. A pipeline run issues at most one request per
// unique taxon to a single host, so the per-host pool is sized for that burst.
const (
	defaultMaxIdleConns        = 32
	defaultMaxIdleConnsPerHost = 16
	defaultIdleConnTimeout     = 90 * time.Second
	maxRedirects               = 10
)

// Options configures the shared HTTP client.
type Options struct {
	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration

	// UserAgent is injected into every request that does not set one.
	UserAgent string

	// ProxyAddress optionally routes traffic through a SOCKS5 proxy.
	// Accepted forms are "host:port" and "socks5://[user:pass@]host:port".
	ProxyAddress string
}

// NewHTTPClient creates the HTTP client used for all API traffic.
// It validates the proxy address but does not connect to it.
func NewHTTPClient(opts Options) (*http.Client, error) {
	if opts.Timeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	base := &http.Transport{
		Proxy:               nil,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	if opts.ProxyAddress != "" {
		dialer, err := newSOCKS5Dialer(opts.ProxyAddress)
		if err != nil {
			return nil, err
		}
		base.DialContext = dialContextFunc(dialer)
	} else {
		base.DialContext = (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}

	return &http.Client{
		Transport: &userAgentTransport{base: base, userAgent: opts.UserAgent},
		Timeout:   opts.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// newSOCKS5Dialer parses the proxy address and creates a SOCKS5 dialer.
func newSOCKS5Dialer(address string) (proxy.Dialer, error) {
	hostPort, auth, err := parseProxyAddress(address)
	if err != nil {
		return nil, err
	}

	dialer, err := proxy.SOCKS5("tcp", hostPort, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	return dialer, nil
}

// parseProxyAddress splits a proxy address into host:port and optional credentials.
func parseProxyAddress(address string) (string, *proxy.Auth, error) {
	var auth *proxy.Auth
	hostPort := address

	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil || u.Scheme != "socks5" {
			return "", nil, ErrInvalidProxyAddress
		}
		hostPort = u.Host
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
	}

	if !isValidHostPort(hostPort) {
		return "", nil, ErrInvalidProxyAddress
	}
	return hostPort, auth, nil
}

// isValidHostPort checks for a non-empty host and a port in 1..65535.
func isValidHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return portNum >= 1 && portNum <= 65535
}

// dialContextFunc adapts a proxy.Dialer to http.Transport.DialContext.
// The SOCKS5 dialer from x/net implements proxy.ContextDialer; other dialers
// are raced against the context.
func dialContextFunc(dialer proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)

		go func() {
			conn, err := dialer.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			// close a connection that completes after we gave up on it
			go func() {
				if result := <-resultCh; result.conn != nil {
					_ = result.conn.Close()
				}
			}()
			return nil, ctx.Err()
		}
	}
}

// userAgentTransport wraps an http.RoundTripper to inject the User-Agent
// header into every request.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" || req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}

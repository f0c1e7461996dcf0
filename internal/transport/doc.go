// Package transport builds the HTTP client shared by every AntWeb request.
//
// The client is constructed once by whatever composes the application (the
// CLI command or the HTTP server) and injected into the API client. It
// carries the per-request timeout, injects the User-Agent header, and can
// optionally route traffic through a SOCKS5 proxy.
package transport

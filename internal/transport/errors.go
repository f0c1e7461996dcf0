package transport

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address is neither
	// "host:port" nor a socks5:// URL.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port or socks5://[user:pass@]host:port")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid transport timeout: must be positive")
)

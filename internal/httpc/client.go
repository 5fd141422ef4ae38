// Package httpc provides HTTP clients with sensible defaults.
// Use this instead of http.DefaultClient to ensure timeouts are set.
package httpc

import (
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 5 * time.Second
	DefaultConnectTimeout  = 3 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// NewClient creates an HTTP client with the specified overall timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	connect := DefaultConnectTimeout
	if timeout < connect {
		connect = timeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connect,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   connect,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// NewResty wraps an HTTP client from NewClient in a resty client.
// Retries are disabled: callers get exactly one attempt.
func NewResty(timeout time.Duration) *resty.Client {
	return FromHTTP(NewClient(timeout))
}

// FromHTTP wraps an existing HTTP client in a resty client with retries disabled.
func FromHTTP(hc *http.Client) *resty.Client {
	return resty.NewWithClient(hc).
		SetRetryCount(0).
		SetHeader("User-Agent", "go-infer-trigger")
}

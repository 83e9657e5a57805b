package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"

	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

// NewHTTPClient builds the client used for probing and transfers.
// Proxy and TLS behaviour come from the runtime config; an unusable proxy
// URL falls back to the environment.
func NewHTTPClient(runtime *types.RuntimeConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   types.DialTimeout,
		KeepAlive: types.KeepAliveDuration,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          types.DefaultMaxIdleConns,
		IdleConnTimeout:       types.DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   types.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: types.DefaultResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}

	if runtime != nil && runtime.ProxyURL != "" {
		configureProxy(transport, dialer, runtime.ProxyURL)
	}

	if runtime != nil && runtime.SkipTLSVerification {
		utils.Debug("HTTP client: TLS verification disabled")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user opt-in
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: preserveHeaders,
	}
}

func configureProxy(transport *http.Transport, dialer *net.Dialer, raw string) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		utils.Debug("HTTP client: invalid proxy URL %s: %v", raw, err)
		return
	}

	if !strings.HasPrefix(parsed.Scheme, "socks5") {
		transport.Proxy = http.ProxyURL(parsed)
		return
	}

	utils.Debug("HTTP client: using SOCKS5 proxy %s", parsed.Host)
	socks, err := proxy.FromURL(parsed, dialer)
	if err != nil {
		utils.Debug("HTTP client: failed to create SOCKS5 dialer: %v", err)
		return
	}
	transport.Proxy = nil
	if cd, ok := socks.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
		return
	}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return socks.Dial(network, addr)
	}
}

// preserveHeaders copies the original request headers onto redirects,
// including the ones net/http strips when a signed link bounces to a CDN host.
func preserveHeaders(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if len(via) > 0 {
		for key, vals := range via[0].Header {
			if _, ok := req.Header[key]; !ok {
				req.Header[key] = vals
			}
		}
	}
	return nil
}

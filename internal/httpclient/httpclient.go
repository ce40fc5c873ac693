package httpclient

import (
	"net/http"
	"time"

	"codeagent/internal/logging"
)

// UserAgent is sent on outbound requests that do not set their own.
const UserAgent = "Mozilla/5.0 (compatible; codeagent/1.0; +https://github.com/codeagent)"

// New returns an http.Client configured for outbound requests. It honours
// HTTP(S)_PROXY/NO_PROXY and logs each request at debug level.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: Transport(), logger: logging.OrNop(logger)},
	}
}

// Transport returns a clone of the default transport with proxy support.
func Transport() *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	transport := base.Clone()
	transport.Proxy = http.ProxyFromEnvironment
	return transport
}

type userAgentTransport struct {
	base   http.RoundTripper
	logger logging.Logger
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	started := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("%s %s failed after %s: %v", req.Method, req.URL.Redacted(), time.Since(started), err)
		return nil, err
	}
	t.logger.Debug("%s %s -> %d in %s", req.Method, req.URL.Redacted(), resp.StatusCode, time.Since(started))
	return resp, nil
}

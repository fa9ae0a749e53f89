package telegram

import (
	"errors"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/m3rciful/redistbot/core/telegram/netutil"
)

const (
	dialTimeout         = 5 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
	idleConnTimeout     = 90 * time.Second
	transportRetries    = 2
	transportBackoff    = 500 * time.Millisecond
)

// requestSlack is added to the long-poll timeout for the client deadline.
const requestSlack = 20 * time.Second

var errNoReplay = errors.New("telegram: request body cannot be replayed")

// BuildHTTPClient returns the client used for Bot API calls. pollTimeout is
// the getUpdates long-poll duration, which every request deadline must exceed.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}
	return &http.Client{
		Timeout:   pollTimeout + requestSlack,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: transportRetries,
			backoff:    transportBackoff,
		},
	}
}

// retryTransport repeats a request only when repeating cannot duplicate a
// side effect: connection failures before anything was sent, or timeouts on
// read-only get* methods. A timed out sendMessage may have been delivered.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func readOnly(req *http.Request) bool {
	return strings.HasPrefix(path.Base(req.URL.Path), "get")
}

func (t *retryTransport) retryable(req *http.Request, err error) bool {
	switch netutil.Classify(err) {
	case netutil.KindDial, netutil.KindDNS:
		return true
	case netutil.KindTimeout:
		return readOnly(req)
	}
	return false
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	for attempt := 0; ; attempt++ {
		try := req
		if attempt > 0 {
			try = req.Clone(req.Context())
			if req.Body != nil && req.Body != http.NoBody {
				if req.GetBody == nil {
					return nil, errNoReplay
				}
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				try.Body = body
			}
		}

		resp, err := base.RoundTrip(try)
		if err == nil || attempt >= t.maxRetries || !t.retryable(req, err) {
			return resp, err
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt+1))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

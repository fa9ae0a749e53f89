package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := map[string]struct {
		err  error
		want Kind
	}{
		"nil":      {nil, KindNone},
		"deadline": {fmt.Errorf("edit: %w", context.DeadlineExceeded), KindTimeout},
		"canceled": {context.Canceled, KindCanceled},
		"net":      {timeoutErr{}, KindTimeout},
		"dial":     {&net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindDial},
		"dns":      {&net.DNSError{Err: "no such host", Name: "api.telegram.org"}, KindDNS},
		"4xx":      {errors.New("telegram: chat not found (400)"), KindClient},
		"5xx":      {errors.New("telegram: bad gateway (502)"), KindServer},
		"other":    {errors.New("weird"), KindUnknown},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), name)
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(timeoutErr{}))
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.True(t, ShouldRetry(errors.New("telegram: internal error (500)")))
	assert.False(t, ShouldRetry(errors.New("telegram: message is not modified (400)")))
	assert.False(t, ShouldRetry(nil))
	assert.Zero(t, RetryAfter(errors.New("plain")))
}

func TestRedact(t *testing.T) {
	msg := Redact(errors.New("Post https://api.telegram.org/bot123:ABC-def/sendMessage: EOF"))
	assert.NotContains(t, msg, "123:ABC-def")
	assert.Contains(t, msg, "bot<redacted>")
	assert.Empty(t, Redact(nil))
}

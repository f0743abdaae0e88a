package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	cases := map[string]error{
		"":         nil,
		"canceled": fmt.Errorf("send: %w", context.Canceled),
		"timeout":  &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: context.DeadlineExceeded},
		"reset":    fmt.Errorf("read: %w", syscall.ECONNRESET),
		"dns":      &net.DNSError{Err: "no such host", Name: "api.telegram.org"},
		"dial":     dial,
		"unknown":  errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Kind(err), "%v", err)
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("x")}))
	assert.True(t, ShouldRetry(syscall.ECONNRESET))
	assert.False(t, ShouldRetry(context.Canceled))
	assert.False(t, ShouldRetry(errors.New("bad request")))
	assert.False(t, ShouldRetry(nil))
}

// SPDX-License-Identifier: AGPL-3.0-only
package llm

import (
	"context"
	stderrors "errors"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/aman-senpai/macassist/internal/errors"
)

func TestClassifyTransportError(t *testing.T) {
	endpoint := "http://localhost:11434"
	cases := []struct {
		name string
		err  error
		want errors.Kind
	}{
		{"deadline", context.DeadlineExceeded, errors.KindNetwork},
		{"canceled", context.Canceled, errors.KindNetwork},
		{"refused", syscall.ECONNREFUSED, errors.KindServerUnreachable},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, errors.KindServerUnreachable},
		{"url refused", &url.Error{Op: "Post", URL: endpoint, Err: stderrors.New("dial tcp 127.0.0.1:11434: connect: connection refused")}, errors.KindServerUnreachable},
		{"url other", &url.Error{Op: "Post", URL: endpoint, Err: stderrors.New("EOF")}, errors.KindNetwork},
		{"plain", stderrors.New("mystery"), errors.KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyTransportError(tc.err, endpoint)
			if errors.KindOf(got) != tc.want {
				t.Errorf("classifyTransportError(%v) = %s, want %s", tc.err, errors.KindOf(got), tc.want)
			}
		})
	}
}

func TestClassifyTransportErrorNil(t *testing.T) {
	if got := classifyTransportError(nil, "x"); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}

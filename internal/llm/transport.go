// SPDX-License-Identifier: AGPL-3.0-only
package llm

import (
	"context"
	stderrors "errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/aman-senpai/macassist/internal/errors"
)

// classifyTransportError maps a connection-level failure onto the
// ProviderError taxonomy. A host that refuses or cannot accept connections
// is server_unreachable (the orchestration layer treats it differently from
// a slow or flaky network); everything else transport-shaped is network.
func classifyTransportError(err error, endpoint string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Network(err)
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return errors.ServerUnreachable(endpoint, err)
	}
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return errors.ServerUnreachable(endpoint, err)
	}
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return errors.Network(err)
		}
		// url.Error wraps the dial failure; fall through to string matching
		// for refusals that are not surfaced as syscall errors.
		if strings.Contains(urlErr.Error(), "connection refused") {
			return errors.ServerUnreachable(endpoint, err)
		}
		return errors.Network(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.Network(err)
	}
	return errors.Unknown(err)
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treerpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	rpc "github.com/gorilla/rpc/v2/json2"
)

const (
	maxAttempts   = 3
	retryBaseWait = 500 * time.Millisecond
)

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
// Instrument hosts are restarted often; a pooled connection to a previous
// process instance fails with EOF.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError reports whether err happened before the request reached
// the server. Failures after that point are not retried: a set_param or
// remote_call may already have run on the device.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		strings.Contains(err.Error(), "connection refused")
}

func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseWait
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx)
}

// SendJSONRequest issues a JSON-RPC 2.0 call to uri and decodes the result
// into reply. Connection failures before the request is sent are retried
// with exponential backoff, so every call runs at most once on the server.
// Everything else, including a connection dropped mid-call, is returned
// immediately.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params any,
	reply any,
	options ...Option,
) error {
	requestBodyBytes, err := rpc.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewOptions(options)
	target := *uri
	target.RawQuery = ops.QueryParams().Encode()

	attempt := 0
	send := func() error {
		attempt++
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			target.String(),
			bytes.NewReader(requestBodyBytes),
		)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		request.Header = ops.Headers().Clone()
		request.Header.Set("Content-Type", "application/json")

		resp, err := newHTTPClient().Do(request)
		if err != nil {
			log.Printf("[RPC] %s attempt %d failed: %v (retryable=%v)", method, attempt, err, isRetryableError(err))
			if isRetryableError(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("failed to issue request: %w", err))
		}
		defer CleanlyCloseBody(resp.Body)
		if attempt > 1 {
			log.Printf("[RPC] %s succeeded on attempt %d", method, attempt)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return backoff.Permanent(fmt.Errorf("received status code: %d", resp.StatusCode))
		}
		err = rpc.DecodeClientResponse(resp.Body, reply)
		if errors.Is(err, rpc.ErrNullResult) {
			return nil
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode client response: %w", err))
		}
		return nil
	}

	err = backoff.Retry(send, retryPolicy(ctx))
	if err != nil && isRetryableError(err) {
		return fmt.Errorf("failed to issue request after %d attempts: %w", attempt, err)
	}
	return err
}

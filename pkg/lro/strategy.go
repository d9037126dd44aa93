// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Strategy is the polling mechanism chosen from the initial response.
type Strategy string

const (
	// StrategyNone means the operation completed with the initial response.
	StrategyNone         Strategy = "none"
	StrategyAzureAsyncOp Strategy = "azure-async-operation"
	StrategyLocation     Strategy = "location"
	StrategyBody         Strategy = "body"
)

func (s Strategy) valid() bool {
	switch s {
	case StrategyNone, StrategyAzureAsyncOp, StrategyLocation, StrategyBody:
		return true
	}
	return false
}

const (
	headerAzureAsyncOperation = "Azure-AsyncOperation"
	headerLocation            = "Location"
	headerRetryAfter          = "Retry-After"
	headerRetryAfterMS        = "Retry-After-Ms"
	headerXMSRetryAfterMS     = "X-Ms-Retry-After-Ms"
)

// selection is the outcome of inspecting an initial response.
type selection struct {
	strategy Strategy
	status   Status
	pollURL  string
	location string
}

// selectStrategy picks how to track an operation from its initial response.
// The checks run in order; the first match wins.
func selectStrategy(method, resourceURL string, resp *Response, disablePolling bool) selection {
	location := resolveURL(resourceURL, resp.Header.Get(headerLocation))

	if disablePolling {
		return selection{strategy: StrategyNone, status: StatusSucceeded, location: location}
	}

	if asyncURL := resp.Header.Get(headerAzureAsyncOperation); asyncURL != "" {
		return selection{strategy: StrategyAzureAsyncOp, status: StatusInProgress, pollURL: resolveURL(resourceURL, asyncURL), location: location}
	}

	if resp.StatusCode == http.StatusAccepted && location != "" {
		return selection{strategy: StrategyLocation, status: StatusInProgress, pollURL: location, location: location}
	}

	state, hasState := providerState(resp.Body)
	if (method == http.MethodPut || method == http.MethodPatch) && hasState && !statusFromProvider(state).Terminal() {
		return selection{strategy: StrategyBody, status: StatusInProgress, pollURL: resourceURL}
	}
	if resp.StatusCode == http.StatusAccepted {
		return selection{strategy: StrategyBody, status: StatusInProgress, pollURL: resourceURL}
	}

	status := StatusSucceeded
	if hasState {
		if s := statusFromProvider(state); s.Terminal() {
			status = s
		}
	}
	return selection{strategy: StrategyNone, status: status, location: location}
}

// resolveURL resolves a possibly relative header URL against base. Services
// may return a bare path such as /operations/123.
func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// retryAfter reads the delay a service asked for. Millisecond headers take
// precedence over Retry-After, which may hold seconds or an HTTP date. A
// delay that is not positive counts as absent.
func retryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	if header == nil {
		return 0, false
	}
	for _, key := range []string{headerRetryAfterMS, headerXMSRetryAfterMS} {
		if v := strings.TrimSpace(header.Get(key)); v != "" {
			if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
				return time.Duration(ms) * time.Millisecond, true
			}
		}
	}

	v := strings.TrimSpace(header.Get(headerRetryAfter))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, false
	}
	return 0, false
}

// nextPoll returns when the following poll may be sent.
func nextPoll(header http.Header, now time.Time, interval time.Duration) time.Time {
	if d, ok := retryAfter(header, now); ok {
		return now.Add(d)
	}
	return now.Add(interval)
}

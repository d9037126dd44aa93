// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/platform-engineering-labs/azext/pkg/logging"
	"github.com/segmentio/ksuid"
	"k8s.io/utils/clock"
)

// DefaultPollInterval is used when a response carries no Retry-After.
const DefaultPollInterval = 30 * time.Second

// LROClient is the capability set of a long-running operation client.
// Operation wrappers depend on this interface rather than on *Client.
type LROClient interface {
	Submit(ctx context.Context, req *Request, opts *SubmitOptions) (*Poller, error)
	Poll(ctx context.Context, p *Poller) (*Poller, error)
	Resume(token string) (*Poller, error)
	Result(ctx context.Context, p *Poller) (json.RawMessage, error)
	WaitForCompletion(ctx context.Context, p *Poller, timeout time.Duration) (*Poller, error)
}

var _ LROClient = (*Client)(nil)

// Options configures a Client. Zero values take defaults.
type Options struct {
	// Endpoint is the resource manager endpoint, e.g. https://management.azure.com.
	Endpoint string
	// APIVersion is used for requests built without their own version.
	APIVersion   string
	PollInterval time.Duration
	// ErrorMap defaults to DefaultErrorMap().
	ErrorMap *ErrorMap
	Clock    clock.Clock
}

// SubmitOptions contains the optional parameters for Client.Submit.
type SubmitOptions struct {
	// DisablePolling completes the operation with the initial response.
	DisablePolling bool
}

// Client drives long-running ARM operations over a Transport. A Client holds
// no per-operation state and may be shared between goroutines.
type Client struct {
	transport    Transport
	endpoint     string
	apiVersion   string
	pollInterval time.Duration
	errorMap     ErrorMap
	clock        clock.Clock
}

// NewClient creates a Client. A nil opts uses all defaults, which leaves the
// endpoint empty; requests then need absolute paths.
func NewClient(transport Transport, opts *Options) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts == nil {
		opts = &Options{}
	}
	c := &Client{
		transport:    transport,
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		apiVersion:   opts.APIVersion,
		pollInterval: opts.PollInterval,
		errorMap:     DefaultErrorMap(),
		clock:        opts.Clock,
	}
	if opts.PollInterval < 0 {
		return nil, fmt.Errorf("poll interval must not be negative, got %s", opts.PollInterval)
	}
	if c.pollInterval == 0 {
		c.pollInterval = DefaultPollInterval
	}
	if opts.ErrorMap != nil {
		c.errorMap = *opts.ErrorMap
	}
	if c.clock == nil {
		c.clock = clock.RealClock{}
	}
	return c, nil
}

// Endpoint returns the base URL relative request paths resolve against.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Submit sends req and returns a handle describing how the operation will be
// tracked. A status code outside the request's accepted set is returned as
// a *RequestFailedError and no handle is created.
func (c *Client) Submit(ctx context.Context, req *Request, opts *SubmitOptions) (*Poller, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if opts == nil {
		opts = &SubmitOptions{}
	}
	log := logging.LoggerFromContext(ctx)

	target, err := req.url(c.endpoint, c.apiVersion)
	if err != nil {
		return nil, err
	}

	resp, sendErr := c.transport.Send(ctx, req.method, target, req.Header(), req.Body())
	if err := translate(req.method, target, resp, sendErr, req.accepted, c.errorMap); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	sel := selectStrategy(req.method, target, resp, opts.DisablePolling)
	p := &Poller{
		id:            ksuid.New(),
		strategy:      sel.strategy,
		method:        req.method,
		resourceURL:   target,
		pollURL:       sel.pollURL,
		locationURL:   sel.location,
		finalStateVia: req.finalStateVia,
		status:        sel.status,
		noPolling:     opts.DisablePolling,
		initial:       resp.clone(),
		lastBody:      slices.Clone(resp.Body),
		nextPollAt:    nextPoll(resp.Header, now, c.pollInterval),
	}
	if p.status == StatusFailed || p.status == StatusCanceled {
		p.lastError = serviceErrorFromBody(resp.Body)
	}

	log.V(1).Info("Operation submitted",
		"operationID", p.ID(),
		"method", req.method,
		"statusCode", resp.StatusCode,
		"strategy", p.strategy,
		"status", p.status)
	return p, nil
}

// Poll performs at most one status request. It blocks until the handle's next
// allowed poll time, so callers never need to sleep between polls. A terminal
// handle is returned as is. On failure the input handle is returned with the
// error.
func (c *Client) Poll(ctx context.Context, p *Poller) (*Poller, error) {
	if p == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if p.status.Terminal() {
		return p, nil
	}
	log := logging.LoggerFromContext(ctx)

	if err := c.sleepUntil(ctx, p.nextPollAt); err != nil {
		return p, err
	}

	resp, sendErr := c.transport.Send(ctx, http.MethodGet, p.pollURL, nil, nil)
	if err := translate(http.MethodGet, p.pollURL, resp, sendErr, defaultAcceptedCodes, c.errorMap); err != nil {
		log.V(1).Info("Poll failed", "operationID", p.ID(), "error", err.Error())
		return p, err
	}

	next := p.clone()
	next.pollCount++
	next.status = statusFromResponse(resp)
	next.lastBody = slices.Clone(resp.Body)
	if next.status == StatusFailed || next.status == StatusCanceled {
		next.lastError = serviceErrorFromBody(resp.Body)
	}

	switch p.strategy {
	case StrategyAzureAsyncOp:
		if u := resp.Header.Get(headerAzureAsyncOperation); u != "" {
			next.pollURL = resolveURL(p.pollURL, u)
		}
	case StrategyLocation:
		if u := resp.Header.Get(headerLocation); u != "" {
			next.pollURL = resolveURL(p.pollURL, u)
			next.locationURL = next.pollURL
		}
	}
	next.nextPollAt = nextPoll(resp.Header, c.clock.Now(), c.pollInterval)

	log.V(1).Info("Poll completed",
		"operationID", next.ID(),
		"pollCount", next.pollCount,
		"statusCode", resp.StatusCode,
		"status", next.status)
	return next, nil
}

// Resume rebuilds a handle from a token produced by Poller.ResumeToken. It
// makes no network calls.
func (c *Client) Resume(token string) (*Poller, error) {
	return decodeToken(token)
}

// Result returns the final payload of a Succeeded operation. The payload may
// be empty for operations that produce none.
func (c *Client) Result(ctx context.Context, p *Poller) (json.RawMessage, error) {
	if p == nil {
		return nil, fmt.Errorf("poller is required")
	}
	switch p.status {
	case StatusInProgress:
		return nil, ErrOperationNotComplete
	case StatusFailed, StatusCanceled:
		return nil, &OperationFailedError{OperationID: p.ID(), Status: p.status, Err: p.LastError()}
	}

	finalURL := c.finalURL(p)
	if p.strategy == StrategyAzureAsyncOp {
		if finalURL == "" {
			return json.RawMessage(p.LastBody()), nil
		}
		return c.fetch(ctx, finalURL)
	}

	if p.noPolling || len(p.lastBody) > 0 || finalURL == "" {
		return json.RawMessage(p.LastBody()), nil
	}
	return c.fetch(ctx, finalURL)
}

// finalURL is where the payload of a finished operation lives, or "" when the
// operation has no separate final resource.
func (c *Client) finalURL(p *Poller) string {
	switch {
	case p.method == http.MethodDelete:
		return ""
	case p.method == http.MethodPut || p.method == http.MethodPatch,
		p.finalStateVia == FinalStateViaOriginalURI:
		return p.resourceURL
	case p.locationURL != "":
		return p.locationURL
	}
	return ""
}

func (c *Client) fetch(ctx context.Context, u string) (json.RawMessage, error) {
	resp, sendErr := c.transport.Send(ctx, http.MethodGet, u, nil, nil)
	if err := translate(http.MethodGet, u, resp, sendErr, defaultAcceptedCodes, c.errorMap); err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

// WaitForCompletion polls until p reaches a terminal state. A timeout of zero
// or less waits indefinitely. When the timeout expires first, the latest
// handle is returned with ErrTimeout; the operation itself is not canceled.
func (c *Client) WaitForCompletion(ctx context.Context, p *Poller, timeout time.Duration) (*Poller, error) {
	if p == nil {
		return nil, fmt.Errorf("poller is required")
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = c.clock.Now().Add(timeout)
	}

	current := p
	for !current.status.Terminal() {
		if !deadline.IsZero() && current.nextPollAt.After(deadline) {
			if err := c.sleepUntil(ctx, deadline); err != nil {
				return current, err
			}
			return current, ErrTimeout
		}
		next, err := c.Poll(ctx, current)
		if err != nil {
			return current, err
		}
		current = next
	}
	return current, nil
}

func (c *Client) sleepUntil(ctx context.Context, t time.Time) error {
	d := t.Sub(c.clock.Now())
	if d <= 0 {
		return ctx.Err()
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

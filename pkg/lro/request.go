// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// FinalStateVia names where the final payload of an azure-async-operation
// style operation is read from.
type FinalStateVia string

const (
	FinalStateViaAzureAsyncOp FinalStateVia = "azure-async-operation"
	FinalStateViaLocation     FinalStateVia = "location"
	FinalStateViaOriginalURI  FinalStateVia = "original-uri"
)

var defaultAcceptedCodes = []int{http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent}

var pathParamPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Request is a fully described ARM operation. It is built once by NewRequest
// and never changes afterwards.
type Request struct {
	method        string
	path          string
	apiVersion    string
	body          []byte
	header        http.Header
	accepted      []int
	finalStateVia FinalStateVia
}

// RequestOption customizes a Request during construction.
type RequestOption func(*Request)

// WithAcceptedCodes replaces the default set of accepted status codes.
func WithAcceptedCodes(codes ...int) RequestOption {
	return func(r *Request) {
		r.accepted = slices.Clone(codes)
	}
}

// WithFinalStateVia sets where the final payload is read from.
func WithFinalStateVia(via FinalStateVia) RequestOption {
	return func(r *Request) {
		r.finalStateVia = via
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.header.Add(key, value)
	}
}

// NewRequest expands pathTemplate with pathParams and marshals body to JSON.
// Every {name} in the template must have a non-empty value; values are
// path-escaped. A nil body sends no payload. An empty apiVersion defers to
// the client's configured version.
func NewRequest(method, pathTemplate string, pathParams map[string]string, apiVersion string, body any, opts ...RequestOption) (*Request, error) {
	if method == "" {
		return nil, fmt.Errorf("request method is required")
	}
	var expandErr error
	path := pathParamPattern.ReplaceAllStringFunc(pathTemplate, func(m string) string {
		name := m[1 : len(m)-1]
		val := pathParams[name]
		if strings.TrimSpace(val) == "" {
			if expandErr == nil {
				expandErr = fmt.Errorf("parameter %s cannot be empty", name)
			}
			return m
		}
		return url.PathEscape(val)
	})
	if expandErr != nil {
		return nil, expandErr
	}

	r := &Request{
		method:        strings.ToUpper(method),
		path:          path,
		apiVersion:    apiVersion,
		header:        http.Header{},
		accepted:      slices.Clone(defaultAcceptedCodes),
		finalStateVia: FinalStateViaAzureAsyncOp,
	}
	if body != nil {
		raw, ok := body.(json.RawMessage)
		if !ok {
			var err error
			raw, err = json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
		}
		r.body = slices.Clone(raw)
		r.header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Request) Method() string               { return r.method }
func (r *Request) Path() string                 { return r.path }
func (r *Request) APIVersion() string           { return r.apiVersion }
func (r *Request) Body() []byte                 { return slices.Clone(r.body) }
func (r *Request) Header() http.Header          { return r.header.Clone() }
func (r *Request) AcceptedCodes() []int         { return slices.Clone(r.accepted) }
func (r *Request) FinalStateVia() FinalStateVia { return r.finalStateVia }

// url joins endpoint and the expanded path and sets api-version, using
// fallbackVersion when the request carries none.
func (r *Request) url(endpoint, fallbackVersion string) (string, error) {
	version := r.apiVersion
	if version == "" {
		version = fallbackVersion
	}
	if version == "" {
		return "", fmt.Errorf("api version is required for %s %s", r.method, r.path)
	}
	u, err := url.Parse(strings.TrimRight(endpoint, "/") + r.path)
	if err != nil {
		return "", fmt.Errorf("invalid request URL: %w", err)
	}
	q := u.Query()
	q.Set("api-version", version)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Response is a completed HTTP exchange as seen by the poller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
		Body:       slices.Clone(r.Body),
	}
}

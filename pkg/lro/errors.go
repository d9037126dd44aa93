// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
)

const headerErrorCode = "X-Ms-Error-Code"

var (
	// ErrOperationNotComplete is returned by Result for a handle that is still InProgress.
	ErrOperationNotComplete = errors.New("operation has not reached a terminal state")

	// ErrTimeout is returned by WaitForCompletion when its local deadline passes
	// while the operation is still InProgress.
	ErrTimeout = errors.New("timed out waiting for operation to complete")

	// ErrInvalidContinuationToken is returned by Resume for tokens that cannot be decoded.
	ErrInvalidContinuationToken = errors.New("invalid continuation token")
)

// ErrorKind classifies a failed HTTP exchange.
type ErrorKind string

const (
	KindUnauthorized  ErrorKind = "Unauthorized"
	KindNotFound      ErrorKind = "NotFound"
	KindConflict      ErrorKind = "Conflict"
	KindRequestFailed ErrorKind = "RequestFailed"
)

// ErrorMap maps HTTP status codes to error kinds. The zero value maps every
// code to KindRequestFailed. An ErrorMap is never modified after construction
// and is safe to share.
type ErrorMap struct {
	kinds map[int]ErrorKind
}

// DefaultErrorMap returns the mapping used by ARM operation clients.
func DefaultErrorMap() ErrorMap {
	return NewErrorMap(nil)
}

// NewErrorMap returns the default mapping with overrides applied on top.
func NewErrorMap(overrides map[int]ErrorKind) ErrorMap {
	kinds := map[int]ErrorKind{
		http.StatusUnauthorized: KindUnauthorized,
		http.StatusNotFound:     KindNotFound,
		http.StatusConflict:     KindConflict,
	}
	for code, kind := range overrides {
		kinds[code] = kind
	}
	return ErrorMap{kinds: kinds}
}

// Kind returns the kind for statusCode.
func (m ErrorMap) Kind(statusCode int) ErrorKind {
	if kind, ok := m.kinds[statusCode]; ok {
		return kind
	}
	return KindRequestFailed
}

// ServiceError is the ARM error body: {"error": {"code": ..., "message": ...}}.
type ServiceError struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Target  string         `json:"target,omitempty"`
	Details []ServiceError `json:"details,omitempty"`
}

func (e *ServiceError) String() string {
	if e == nil {
		return ""
	}
	out := e.Code
	if e.Target != "" {
		out += ": " + e.Target
	}
	if e.Message != "" {
		out += ": " + e.Message
	}
	return out
}

// TransportError reports a failure to complete the HTTP exchange at all:
// DNS, TLS, connection reset and the like.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport failure: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RequestFailedError reports a well-formed HTTP response whose status code
// was not accepted.
type RequestFailedError struct {
	Kind       ErrorKind
	Method     string
	URL        string
	StatusCode int
	// Code and Message come from the service error body or the
	// x-ms-error-code header and may be empty.
	Code    string
	Message string
	Body    []byte
}

func (e *RequestFailedError) Error() string {
	msg := fmt.Sprintf("%s %s: %s (%d)", e.Method, e.URL, e.Kind, e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// OperationFailedError is returned by Result when the operation ended Failed or Canceled.
type OperationFailedError struct {
	OperationID string
	Status      Status
	Err         *ServiceError
}

func (e *OperationFailedError) Error() string {
	msg := fmt.Sprintf("operation %s finished with status %s", e.OperationID, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.String()
	}
	return msg
}

// translate is the single point where an HTTP exchange is mapped onto the
// error taxonomy. It returns nil when resp carries an accepted status code.
func translate(method, url string, resp *Response, sendErr error, accepted []int, errorMap ErrorMap) error {
	if sendErr != nil {
		if errors.Is(sendErr, context.Canceled) || errors.Is(sendErr, context.DeadlineExceeded) {
			return sendErr
		}
		return &TransportError{Method: method, URL: url, Err: sendErr}
	}
	if slices.Contains(accepted, resp.StatusCode) {
		return nil
	}

	rf := &RequestFailedError{
		Kind:       errorMap.Kind(resp.StatusCode),
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
	if se := extractServiceError(resp.Body); se != nil {
		rf.Code = se.Code
		rf.Message = se.Message
	}
	if rf.Code == "" && resp.Header != nil {
		rf.Code = resp.Header.Get(headerErrorCode)
	}
	return rf
}

// extractServiceError reads the ARM error format, falling back to a bare
// {"code": ..., "message": ...} object some services return.
func extractServiceError(body []byte) *ServiceError {
	if se := serviceErrorFromBody(body); se != nil {
		return se
	}
	var bare ServiceError
	if err := json.Unmarshal(body, &bare); err == nil && bare.Code != "" {
		return &bare
	}
	return nil
}

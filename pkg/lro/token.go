// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

// Continuation tokens have the form lro:v1:{ksuid}:{state}, where state is
// the base64url encoded JSON of the handle. The KSUID is the operation ID so
// a token can be correlated with logs without decoding it.
const tokenPrefix = "lro:v1:"

type tokenState struct {
	Strategy      Strategy      `json:"strategy"`
	Method        string        `json:"method"`
	ResourceURL   string        `json:"resourceURL"`
	PollURL       string        `json:"pollURL,omitempty"`
	LocationURL   string        `json:"locationURL,omitempty"`
	FinalStateVia FinalStateVia `json:"finalStateVia"`
	Status        Status        `json:"status"`
	PollCount     int           `json:"pollCount"`
	NoPolling     bool          `json:"noPolling,omitempty"`
	InitialStatus int           `json:"initialStatus,omitempty"`
	InitialHeader http.Header   `json:"initialHeader,omitempty"`
	InitialBody   []byte        `json:"initialBody,omitempty"`
	LastBody      []byte        `json:"lastBody,omitempty"`
	LastError     *ServiceError `json:"lastError,omitempty"`
	NextPollAt    time.Time     `json:"nextPollAt"`
}

// ResumeToken serializes the handle. Resume on any client rebuilds an
// equivalent handle from it.
func (p *Poller) ResumeToken() (string, error) {
	state := tokenState{
		Strategy:      p.strategy,
		Method:        p.method,
		ResourceURL:   p.resourceURL,
		PollURL:       p.pollURL,
		LocationURL:   p.locationURL,
		FinalStateVia: p.finalStateVia,
		Status:        p.status,
		PollCount:     p.pollCount,
		NoPolling:     p.noPolling,
		LastBody:      p.lastBody,
		LastError:     p.lastError,
		NextPollAt:    p.nextPollAt.UTC(),
	}
	if p.initial != nil {
		state.InitialStatus = p.initial.StatusCode
		state.InitialHeader = p.initial.Header
		state.InitialBody = p.initial.Body
	}

	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode continuation token: %w", err)
	}
	return tokenPrefix + p.id.String() + ":" + base64.RawURLEncoding.EncodeToString(data), nil
}

// decodeToken is the inverse of ResumeToken. Every failure wraps
// ErrInvalidContinuationToken.
func decodeToken(token string) (*Poller, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(token), tokenPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidContinuationToken, tokenPrefix)
	}
	idPart, statePart, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, fmt.Errorf("%w: malformed token", ErrInvalidContinuationToken)
	}
	id, err := ksuid.Parse(idPart)
	if err != nil {
		return nil, fmt.Errorf("%w: bad operation id: %v", ErrInvalidContinuationToken, err)
	}
	data, err := base64.RawURLEncoding.DecodeString(statePart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContinuationToken, err)
	}

	var state tokenState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContinuationToken, err)
	}
	if !state.Strategy.valid() {
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidContinuationToken, state.Strategy)
	}
	if !state.Status.valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidContinuationToken, state.Status)
	}
	if state.Method == "" {
		return nil, fmt.Errorf("%w: missing method", ErrInvalidContinuationToken)
	}
	if !state.Status.Terminal() && state.PollURL == "" {
		return nil, fmt.Errorf("%w: in-progress operation without a poll URL", ErrInvalidContinuationToken)
	}

	p := &Poller{
		id:            id,
		strategy:      state.Strategy,
		method:        state.Method,
		resourceURL:   state.ResourceURL,
		pollURL:       state.PollURL,
		locationURL:   state.LocationURL,
		finalStateVia: state.FinalStateVia,
		status:        state.Status,
		pollCount:     state.PollCount,
		noPolling:     state.NoPolling,
		lastBody:      state.LastBody,
		lastError:     state.LastError,
		nextPollAt:    state.NextPollAt,
	}
	if state.InitialStatus != 0 {
		p.initial = &Response{
			StatusCode: state.InitialStatus,
			Header:     state.InitialHeader,
			Body:       state.InitialBody,
		}
	}
	return p, nil
}

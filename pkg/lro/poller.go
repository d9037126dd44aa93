// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"slices"
	"time"

	"github.com/segmentio/ksuid"
)

// Poller is a handle on one long-running operation. Handles are values: the
// client never changes a handle it has returned, it returns a new one.
type Poller struct {
	id            ksuid.KSUID
	strategy      Strategy
	method        string
	resourceURL   string
	pollURL       string
	locationURL   string
	finalStateVia FinalStateVia
	status        Status
	pollCount     int
	// noPolling marks handles whose payload is the initial response.
	noPolling     bool
	initial       *Response
	lastBody      []byte
	lastError     *ServiceError
	nextPollAt    time.Time
}

// ID is a unique, time-ordered identifier for the operation, assigned on submit.
func (p *Poller) ID() string                   { return p.id.String() }
func (p *Poller) Strategy() Strategy           { return p.strategy }
func (p *Poller) Method() string               { return p.method }
func (p *Poller) ResourceURL() string          { return p.resourceURL }
func (p *Poller) PollURL() string              { return p.pollURL }
func (p *Poller) LocationURL() string          { return p.locationURL }
func (p *Poller) FinalStateVia() FinalStateVia { return p.finalStateVia }
func (p *Poller) Status() Status               { return p.status }
func (p *Poller) Done() bool                   { return p.status.Terminal() }
func (p *Poller) PollCount() int               { return p.pollCount }
func (p *Poller) NextPollAt() time.Time        { return p.nextPollAt }

// InitialResponse returns a copy of the response to the submitting request.
// It is nil for handles rebuilt from a token that carried no initial body.
func (p *Poller) InitialResponse() *Response { return p.initial.clone() }

// LastBody returns a copy of the most recent response body.
func (p *Poller) LastBody() []byte { return slices.Clone(p.lastBody) }

// LastError returns the service error reported by the operation, if any.
func (p *Poller) LastError() *ServiceError {
	if p.lastError == nil {
		return nil
	}
	se := *p.lastError
	return &se
}

func (p *Poller) clone() *Poller {
	next := *p
	next.initial = p.initial.clone()
	next.lastBody = slices.Clone(p.lastBody)
	next.lastError = p.LastError()
	return &next
}

// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"encoding/json"
	"strings"
)

// Status is the lifecycle state of a long-running operation.
type Status string

const (
	StatusInProgress Status = "InProgress"
	StatusSucceeded  Status = "Succeeded"
	StatusFailed     Status = "Failed"
	StatusCanceled   Status = "Canceled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

func (s Status) valid() bool {
	return s == StatusInProgress || s.Terminal()
}

// statusFromProvider maps a provider state string such as "Running",
// "Succeeded" or "Cancelled" onto Status. Any non-terminal value is InProgress.
func statusFromProvider(state string) Status {
	switch strings.ToLower(state) {
	case "succeeded":
		return StatusSucceeded
	case "failed":
		return StatusFailed
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return StatusInProgress
	}
}

// operationBody is the subset of an ARM response body the poller reads.
type operationBody struct {
	Status     string `json:"status"`
	Properties *struct {
		ProvisioningState string `json:"provisioningState"`
	} `json:"properties"`
	Error *ServiceError `json:"error"`
}

// providerState extracts the top-level "status" or
// "properties.provisioningState" from body. ok is false when neither is present.
func providerState(body []byte) (state string, ok bool) {
	if len(body) == 0 {
		return "", false
	}
	var ob operationBody
	if err := json.Unmarshal(body, &ob); err != nil {
		return "", false
	}
	if ob.Status != "" {
		return ob.Status, true
	}
	if ob.Properties != nil && ob.Properties.ProvisioningState != "" {
		return ob.Properties.ProvisioningState, true
	}
	return "", false
}

// statusFromResponse derives the operation status from a poll or initial
// response. Without a state field a 202 means work is still pending and any
// other accepted code means the operation is done.
func statusFromResponse(resp *Response) Status {
	if state, ok := providerState(resp.Body); ok {
		return statusFromProvider(state)
	}
	if resp.StatusCode == 202 {
		return StatusInProgress
	}
	return StatusSucceeded
}

// serviceErrorFromBody returns the "error" object of body, if any.
func serviceErrorFromBody(body []byte) *ServiceError {
	if len(body) == 0 {
		return nil
	}
	var ob operationBody
	if err := json.Unmarshal(body, &ob); err != nil {
		return nil
	}
	return ob.Error
}

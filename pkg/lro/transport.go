// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/google/uuid"
)

const headerClientRequestID = "X-Ms-Client-Request-Id"

// Transport performs a single HTTP exchange. Implementations return an error
// only when no response was received; any status code is a valid Response.
type Transport interface {
	Send(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error)
}

// PipelineTransport sends requests through an azcore pipeline, so
// authentication, retries and telemetry come from the SDK policies.
type PipelineTransport struct {
	pipeline runtime.Pipeline
}

// NewPipelineTransport wraps pl. Use arm.Client.Pipeline() for ARM calls.
func NewPipelineTransport(pl runtime.Pipeline) *PipelineTransport {
	return &PipelineTransport{pipeline: pl}
}

func (t *PipelineTransport) Send(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	req, err := runtime.NewRequest(ctx, method, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	raw := req.Raw()
	for key, values := range header {
		for _, v := range values {
			raw.Header.Add(key, v)
		}
	}
	if raw.Header.Get(headerClientRequestID) == "" {
		raw.Header.Set(headerClientRequestID, uuid.NewString())
	}
	raw.Header.Set("Accept", "application/json")

	if len(body) > 0 {
		contentType := raw.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}
		if err := req.SetBody(streaming.NopCloser(bytes.NewReader(body)), contentType); err != nil {
			return nil, fmt.Errorf("failed to set request body: %w", err)
		}
	}

	resp, err := t.pipeline.Do(req)
	if err != nil {
		return nil, err
	}

	payload, err := runtime.Payload(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       payload,
	}, nil
}

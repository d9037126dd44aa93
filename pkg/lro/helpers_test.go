// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package lro

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

const testEndpoint = "https://management.example.test"

var startTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordedCall struct {
	Method string
	URL    string
	At     time.Time
}

// scriptedTransport answers by "METHOD /path". Each route holds a queue of
// responses; the last one repeats once the queue is drained.
type scriptedTransport struct {
	mu     sync.Mutex
	clock  *clocktesting.FakeClock
	routes map[string][]*Response
	calls  []recordedCall
	err    error
}

func newScriptedTransport(fc *clocktesting.FakeClock) *scriptedTransport {
	return &scriptedTransport{clock: fc, routes: map[string][]*Response{}}
}

func (s *scriptedTransport) on(method, path string, responses ...*Response) *scriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = append(s.routes[method+" "+path], responses...)
	return s
}

func (s *scriptedTransport) Send(ctx context.Context, method, rawURL string, header http.Header, body []byte) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, recordedCall{Method: method, URL: rawURL, At: s.clock.Now()})
	if s.err != nil {
		return nil, s.err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	key := method + " " + u.Path
	queue := s.routes[key]
	if len(queue) == 0 {
		return &Response{StatusCode: http.StatusNotFound, Header: http.Header{}}, nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.routes[key] = queue[1:]
	}
	return resp.clone(), nil
}

func (s *scriptedTransport) callsTo(method, path string) []recordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedCall
	for _, c := range s.calls {
		u, _ := url.Parse(c.URL)
		if c.Method == method && u.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func respond(status int, body string, headers ...string) *Response {
	h := http.Header{}
	for i := 0; i+1 < len(headers); i += 2 {
		h.Set(headers[i], headers[i+1])
	}
	var b []byte
	if body != "" {
		b = []byte(body)
	}
	return &Response{StatusCode: status, Header: h, Body: b}
}

// runClock advances fc one second at a time whenever something is waiting on
// it, until the test ends.
func runClock(t *testing.T, fc *clocktesting.FakeClock) {
	t.Helper()
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			default:
			}
			if fc.HasWaiters() {
				fc.Step(time.Second)
				continue
			}
			time.Sleep(time.Millisecond)
		}
	}()
	t.Cleanup(func() {
		close(done)
		<-stopped
	})
}

func newTestClient(t *testing.T, transport Transport, fc *clocktesting.FakeClock) *Client {
	t.Helper()
	c, err := NewClient(transport, &Options{
		Endpoint:   testEndpoint,
		APIVersion: "2024-01-01",
		Clock:      fc,
	})
	require.NoError(t, err)
	return c
}

func mustRequest(t *testing.T, method, path string, body any, opts ...RequestOption) *Request {
	t.Helper()
	req, err := NewRequest(method, path, nil, "", body, opts...)
	require.NoError(t, err)
	return req
}

var errConnectionReset = errors.New("connection reset by peer")

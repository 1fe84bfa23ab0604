// Copyright 2024 the Pinniped contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// RecordedCall is a request received by a FakeBackend.
type RecordedCall struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     string
}

// FakeBackend is an httptest server which records every call and answers each one with the next
// handler registered for the request path. Handlers for a path are consumed in order, and the last
// one is reused once the others are exhausted.
type FakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string][]http.HandlerFunc
	calls    []RecordedCall
}

func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	f := &FakeBackend{handlers: map[string][]http.HandlerFunc{}}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		// use assert instead of require to not break the http.Handler with a panic
		assert.NoError(t, err)

		f.mu.Lock()
		f.calls = append(f.calls, RecordedCall{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     string(body),
		})
		handler := f.nextHandlerLocked(r.URL.Path)
		f.mu.Unlock()

		if handler == nil {
			http.Error(w, "no fake handler for "+r.URL.Path, http.StatusNotFound)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(f.Server.Close)

	return f
}

// On registers handlers for a path, to be used in order.
func (f *FakeBackend) On(path string, handlers ...http.HandlerFunc) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[path] = append(f.handlers[path], handlers...)
	return f
}

func (f *FakeBackend) nextHandlerLocked(path string) http.HandlerFunc {
	handlers := f.handlers[path]
	switch len(handlers) {
	case 0:
		return nil
	case 1:
		return handlers[0]
	default:
		f.handlers[path] = handlers[1:]
		return handlers[0]
	}
}

// Calls returns a copy of all calls received so far.
func (f *FakeBackend) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]RecordedCall(nil), f.calls...)
}

// CallsTo returns the calls received for a path.
func (f *FakeBackend) CallsTo(path string) []RecordedCall {
	var out []RecordedCall
	for _, c := range f.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Respond returns a handler which writes the given status, Set-Cookie values and body.
func Respond(status int, body string, setCookies ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		for _, c := range setCookies {
			w.Header().Add("Set-Cookie", c)
		}
		if len(body) != 0 {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

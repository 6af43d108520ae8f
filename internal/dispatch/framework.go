// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package dispatch

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// FrameworkRequest is the materialised request object handed to a
// framework-mode handler: a parsed URL and a header map built on first
// access, plus a cookie jar decoded from the Cookie header the same way
// net/http does it. Session stores and authentication are out of this
// module's scope (spec.md §1): an embedder layers those on top of
// FrameworkRequest, not inside it.
type FrameworkRequest struct {
	rc *RequestContext

	headersOnce sync.Once
	headers     map[string]string

	urlOnce sync.Once
	url     *url.URL
	urlErr  error

	cookiesOnce sync.Once
	cookies     []*http.Cookie
}

func newFrameworkRequest(rc *RequestContext) *FrameworkRequest {
	return &FrameworkRequest{rc: rc}
}

func (r *FrameworkRequest) Method() string   { return r.rc.View.Method() }
func (r *FrameworkRequest) Protocol() string { return r.rc.View.Protocol() }

// URL lazily parses the request's scheme/authority/path/query into a
// *url.URL, caching the result.
func (r *FrameworkRequest) URL() (*url.URL, error) {
	r.urlOnce.Do(func() {
		raw := r.rc.View.Scheme() + "://" + r.rc.View.Authority() + r.rc.View.URI()
		r.url, r.urlErr = url.Parse(raw)
	})
	return r.url, r.urlErr
}

// Header materialises the header list into a lowercase-keyed map on
// first access (spec.md §4.5's "materialises headers into a map lazily
// on first access"), then serves subsequent lookups from it.
func (r *FrameworkRequest) Header(name string) (string, bool) {
	r.ensureHeaders()
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

// Headers returns the materialised header map.
func (r *FrameworkRequest) Headers() map[string]string {
	r.ensureHeaders()
	return r.headers
}

func (r *FrameworkRequest) ensureHeaders() {
	r.headersOnce.Do(func() {
		fields, err := r.rc.View.Headers()
		m := make(map[string]string, len(fields))
		if err == nil {
			for _, f := range fields {
				m[strings.ToLower(f.Name)] = f.Value
			}
		}
		r.headers = m
	})
}

// Cookies parses the Cookie request header the same way net/http.Request
// does, reusing the standard library's cookie grammar rather than
// reimplementing it.
func (r *FrameworkRequest) Cookies() []*http.Cookie {
	r.cookiesOnce.Do(func() {
		cookieHeader, _ := r.Header("cookie")
		h := http.Header{}
		if cookieHeader != "" {
			h.Set("Cookie", cookieHeader)
		}
		req := &http.Request{Header: h}
		r.cookies = req.Cookies()
	})
	return r.cookies
}

// Body returns the request body as a stream (see DirectRequest.Body).
func (r *FrameworkRequest) Body() io.Reader { return r.rc.Body }

// Detach switches the bridge connection into tunnel mode; see
// DirectRequest.Detach.
func (r *FrameworkRequest) Detach() *DetachedSocket { return r.rc.Detacher.Detach() }

func (r *FrameworkRequest) ConnID() string { return r.rc.ConnID }

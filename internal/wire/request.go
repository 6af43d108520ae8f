// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package wire

// RequestHead is the materialised form of a decoded request head. It is
// built on demand from a LazyRequestView (framework/materialised
// dispatch mode); direct/lazy mode never needs to construct one.
type RequestHead struct {
	Method    string
	Scheme    string
	Authority string
	Path      string
	Query     string
	Protocol  string
	Headers   []HeaderField
}

// EncodeRequestHead serialises a request head as a frame payload prelude
// (version, type, then the method/scheme/authority/path/query/protocol/
// headers fields). For frameType == ReqFull, a trailing u32 body length
// field is appended too, since that length is itself part of the head
// fields per spec.md §3; the body bytes themselves are never appended
// here — callers pass them to the frame writer as a separate part so a
// streamed body is never copied into this buffer.
func EncodeRequestHead(version Version, frameType FrameType, head RequestHead, bodyLen int) []byte {
	b := newBuilder(128)
	b.u8(uint8(version))
	b.u8(uint8(frameType))
	b.str(head.Method)
	b.str(head.Scheme)
	b.str(head.Authority)
	b.str(head.Path)
	b.str(head.Query)
	b.str(head.Protocol)
	encodeHeaders(b, version, head.Headers)

	if frameType == ReqFull {
		b.u32(uint32(bodyLen))
	}

	return b.buf
}

// LazyRequestView is a request handle that borrows from the decoded
// frame payload: field accessors decode on demand, and headers stay as
// offsets into the frame until asked for. Header(name) resolves a single
// value; Headers() materialises the whole (name, value) list at once, as
// there is no accessor for one entry by index. It never copies the
// request body into heap memory unless Body() is actually called.
type LazyRequestView struct {
	version  Version
	payload  []byte
	method   span
	scheme   span
	authority span
	path     span
	query    span
	protocol span
	headers  []headerEntry

	hasBody    bool
	bodyOffset int
	bodyLen    int

	uri *string
}

// NewLazyRequestView parses field offsets out of rest (the payload bytes
// following the version/type header of a REQ_FULL or REQ_START frame).
// It validates UTF-8 and field bounds but does not allocate any field's
// string form; that happens only on first access via the accessors.
func NewLazyRequestView(version Version, frameType FrameType, rest []byte) (*LazyRequestView, error) {
	c := &cursor{b: rest}
	v := &LazyRequestView{version: version, payload: rest}

	var err error
	if v.method, err = c.stringSpan(); err != nil {
		return nil, &DecodeError{Op: "method", Err: err}
	}
	if v.scheme, err = c.stringSpan(); err != nil {
		return nil, &DecodeError{Op: "scheme", Err: err}
	}
	if v.authority, err = c.stringSpan(); err != nil {
		return nil, &DecodeError{Op: "authority", Err: err}
	}
	if v.path, err = c.stringSpan(); err != nil {
		return nil, &DecodeError{Op: "path", Err: err}
	}
	if v.query, err = c.stringSpan(); err != nil {
		return nil, &DecodeError{Op: "query", Err: err}
	}
	if v.protocol, err = c.stringSpan(); err != nil {
		return nil, &DecodeError{Op: "protocol", Err: err}
	}

	headers, err := decodeHeaders(c, version)
	if err != nil {
		return nil, &DecodeError{Op: "headers", Err: err}
	}
	v.headers = headers

	switch frameType {
	case ReqFull:
		n, err := c.u32()
		if err != nil {
			return nil, &DecodeError{Op: "body-length", Err: err}
		}
		bodySpan, err := c.bytes(int(n))
		if err != nil {
			return nil, &DecodeError{Op: "body", Err: err}
		}
		v.hasBody = true
		v.bodyOffset = bodySpan.start
		v.bodyLen = int(n)
	case ReqStart:
		// Body arrives later as REQ_CHUNK/REQ_END frames; no body
		// bytes are present on the head frame itself.
	}

	return v, nil
}

func (v *LazyRequestView) Method() string    { return v.method.str(v.payload) }
func (v *LazyRequestView) Scheme() string    { return v.scheme.str(v.payload) }
func (v *LazyRequestView) Authority() string { return v.authority.str(v.payload) }
func (v *LazyRequestView) Path() string      { return v.path.str(v.payload) }
func (v *LazyRequestView) Query() string     { return v.query.str(v.payload) }
func (v *LazyRequestView) Protocol() string  { return v.protocol.str(v.payload) }

// URI reconstructs path[?query] once and caches the result, since
// spec.md §4.2 calls out URI reconstruction as deferred-but-memoised.
func (v *LazyRequestView) URI() string {
	if v.uri != nil {
		return *v.uri
	}
	path := v.Path()
	query := v.Query()
	var uri string
	if query == "" {
		uri = path
	} else {
		uri = path + "?" + query
	}
	v.uri = &uri
	return uri
}

// Header looks up a single header by ASCII-case-insensitive name,
// without materialising the rest of the header list.
func (v *LazyRequestView) Header(name string) (string, bool) {
	return findHeader(v.payload, v.headers, name)
}

// Headers materialises the full (name, value) list. Prefer Header for a
// single lookup; this is for callers (e.g. framework mode) that need the
// complete set.
func (v *LazyRequestView) Headers() ([]HeaderField, error) {
	return materializeHeaders(v.payload, v.headers)
}

// HasBody reports whether this view carries inline body bytes (true only
// for a decoded REQ_FULL; a REQ_START view's body arrives separately
// through the connection's streaming state machine).
func (v *LazyRequestView) HasBody() bool { return v.hasBody }

// Body returns the inline body slice for a REQ_FULL view. It aliases the
// decoded frame payload and is only valid for the lifetime of that
// payload buffer.
func (v *LazyRequestView) Body() []byte {
	if !v.hasBody {
		return nil
	}
	return v.payload[v.bodyOffset : v.bodyOffset+v.bodyLen]
}

// Materialize builds an owned RequestHead, copying every field. Used by
// framework/materialised dispatch mode, which needs a complete,
// independent request object rather than a borrowed view.
func (v *LazyRequestView) Materialize() (RequestHead, error) {
	headers, err := v.Headers()
	if err != nil {
		return RequestHead{}, err
	}
	return RequestHead{
		Method:    v.Method(),
		Scheme:    v.Scheme(),
		Authority: v.Authority(),
		Path:      v.Path(),
		Query:     v.Query(),
		Protocol:  v.Protocol(),
		Headers:   headers,
	}, nil
}

// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package wire

// ResponseHead is the materialised form of a decoded response head.
type ResponseHead struct {
	Status  uint16
	Headers []HeaderField
}

// EncodeResponseHead serialises a response head (status, headers, and
// for frameType == RespFull a trailing body length field) as a frame
// payload prelude. As with EncodeRequestHead, body bytes are never
// appended here.
func EncodeResponseHead(version Version, frameType FrameType, head ResponseHead, bodyLen int) []byte {
	b := newBuilder(64)
	b.u8(uint8(version))
	b.u8(uint8(frameType))
	b.u16(head.Status)
	encodeHeaders(b, version, head.Headers)

	if frameType == RespFull {
		b.u32(uint32(bodyLen))
	}

	return b.buf
}

// LazyResponseView mirrors LazyRequestView for the front-end side of the
// bridge: it borrows from the decoded payload and defers field
// construction to first access.
type LazyResponseView struct {
	payload []byte
	status  uint16
	headers []headerEntry

	hasBody    bool
	bodyOffset int
	bodyLen    int
}

// NewLazyResponseView parses field offsets out of rest (the payload
// bytes following the version/type header of a RESP_FULL or RESP_START
// frame).
func NewLazyResponseView(version Version, frameType FrameType, rest []byte) (*LazyResponseView, error) {
	c := &cursor{b: rest}
	v := &LazyResponseView{payload: rest}

	status, err := c.u16()
	if err != nil {
		return nil, &DecodeError{Op: "status", Err: err}
	}
	v.status = status

	headers, err := decodeHeaders(c, version)
	if err != nil {
		return nil, &DecodeError{Op: "headers", Err: err}
	}
	v.headers = headers

	switch frameType {
	case RespFull:
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
	case RespStart:
		// body arrives via RESP_CHUNK/RESP_END
	}

	return v, nil
}

func (v *LazyResponseView) Status() uint16 { return v.status }

func (v *LazyResponseView) Header(name string) (string, bool) {
	return findHeader(v.payload, v.headers, name)
}

func (v *LazyResponseView) Headers() ([]HeaderField, error) {
	return materializeHeaders(v.payload, v.headers)
}

func (v *LazyResponseView) HasBody() bool { return v.hasBody }

func (v *LazyResponseView) Body() []byte {
	if !v.hasBody {
		return nil
	}
	return v.payload[v.bodyOffset : v.bodyOffset+v.bodyLen]
}

func (v *LazyResponseView) Materialize() (ResponseHead, error) {
	headers, err := v.Headers()
	if err != nil {
		return ResponseHead{}, err
	}
	return ResponseHead{Status: v.status, Headers: headers}, nil
}

// PreEncodedResponse is a fully serialised RESP_FULL payload computed
// once and reused across requests, eliding per-request header/body
// encoding for responses that never change (spec.md §4.2, §9). It is
// immutable by contract: spec.md §9's open question is resolved in
// favour of treating pre-encoded responses as immutable rather than
// exposing a parameterised-template family.
type PreEncodedResponse struct {
	prelude []byte
	body    []byte
}

// NewPreEncodedResponse builds and caches the RESP_FULL prelude for a
// static status/header/body combination.
func NewPreEncodedResponse(version Version, status uint16, headers []HeaderField, body []byte) *PreEncodedResponse {
	head := ResponseHead{Status: status, Headers: headers}
	prelude := EncodeResponseHead(version, RespFull, head, len(body))
	return &PreEncodedResponse{prelude: prelude, body: body}
}

// Parts returns the prelude and body as the two parts a frame writer
// needs to emit this response with a single framed write, never
// re-running header or status encoding.
func (p *PreEncodedResponse) Parts() (prelude, body []byte) {
	return p.prelude, p.body
}

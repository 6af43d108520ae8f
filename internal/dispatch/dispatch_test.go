// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package dispatch

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kata-containers/kata-containers/src/runtime/bridge/internal/wire"
)

func buildRequestView(t *testing.T, frameType wire.FrameType, headers []wire.HeaderField, body []byte) *wire.LazyRequestView {
	t.Helper()
	head := wire.RequestHead{
		Method:    "GET",
		Scheme:    "http",
		Authority: "localhost",
		Path:      "/ping",
		Query:     "a=1",
		Protocol:  "HTTP/1.1",
		Headers:   headers,
	}
	payload := wire.EncodeRequestHead(wire.Version2, frameType, head, len(body))
	// payload = [version][type][fields...][bodyLen?]; the frame encoder
	// appends the body bytes as a separate write part, so reconstruct
	// that layout here for the decoder under test.
	if frameType == wire.ReqFull {
		payload = append(payload, body...)
	}
	version, ft, rest, err := wire.DecodeHead(payload)
	require.NoError(t, err)
	require.Equal(t, frameType, ft)

	view, err := wire.NewLazyRequestView(version, ft, rest)
	require.NoError(t, err)
	return view
}

type stubDetacher struct {
	called bool
}

func (s *stubDetacher) Detach() *DetachedSocket {
	s.called = true
	r, w := io.Pipe()
	return NewDetachedSocket(r, w, w)
}

func TestDirectFacadeDispatch(t *testing.T) {
	view := buildRequestView(t, wire.ReqFull, []wire.HeaderField{{Name: "X-Test", Value: "yes"}}, []byte("hello"))
	det := &stubDetacher{}
	rc := &RequestContext{
		ConnID:   "conn-1",
		Version:  wire.Version2,
		View:     view,
		Body:     bytes.NewReader(view.Body()),
		Detacher: det,
	}

	var gotMethod, gotURI string
	var gotHeader string
	facade := NewDirectFacade(func(ctx context.Context, req *DirectRequest) (Response, error) {
		gotMethod = req.Method()
		gotURI = req.URI()
		gotHeader, _ = req.Header("x-test")
		body, _ := io.ReadAll(req.Body())
		assert.Equal(t, "hello", string(body))
		assert.Equal(t, "conn-1", req.ConnID())
		return NewResponse(200, nil, nil, 0), nil
	})

	resp, err := facade.Dispatch(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, uint16(200), resp.Status)
	assert.Equal(t, "GET", gotMethod)
	assert.Equal(t, "/ping?a=1", gotURI)
	assert.Equal(t, "yes", gotHeader)
}

func TestFrameworkFacadeDispatch(t *testing.T) {
	view := buildRequestView(t, wire.ReqFull, []wire.HeaderField{
		{Name: "Cookie", Value: "session=abc"},
	}, nil)
	rc := &RequestContext{
		ConnID:   "conn-2",
		Version:  wire.Version2,
		View:     view,
		Body:     bytes.NewReader(nil),
		Detacher: &stubDetacher{},
	}

	facade := NewFrameworkFacade(func(ctx context.Context, req *FrameworkRequest) (Response, error) {
		u, err := req.URL()
		require.NoError(t, err)
		assert.Equal(t, "/ping", u.Path)
		assert.Equal(t, "a=1", u.RawQuery)

		cookies := req.Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "session", cookies[0].Name)
		assert.Equal(t, "abc", cookies[0].Value)

		v, ok := req.Header("cookie")
		assert.True(t, ok)
		assert.Equal(t, "session=abc", v)
		return NewStreamedResponse(200, nil, nil), nil
	})

	resp, err := facade.Dispatch(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, -1, resp.BodyLen)
}

func TestDispatchNoHandlerConfigured(t *testing.T) {
	facade := &Facade{}
	_, err := facade.Dispatch(context.Background(), &RequestContext{})
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestDetachedSocketReadWriteClose(t *testing.T) {
	r, w := io.Pipe()
	sock := NewDetachedSocket(r, w, w)

	go func() {
		_, _ = sock.Write([]byte("ping"))
		_ = sock.Close()
	}()

	buf := make([]byte, 4)
	n, err := sock.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestDetachViaRequest(t *testing.T) {
	det := &stubDetacher{}
	view := buildRequestView(t, wire.ReqFull, nil, nil)
	rc := &RequestContext{View: view, Body: bytes.NewReader(nil), Detacher: det}
	req := &DirectRequest{rc: rc}

	sock := req.Detach()
	require.NotNil(t, sock)
	assert.True(t, det.called)
}

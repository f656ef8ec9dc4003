package http

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransport captures every prepared call and answers with a fixed
// result.
type recordingTransport struct {
	calls  []*Prepared
	result *Result
	err    error
	onCall func(*Prepared)
}

func (rt *recordingTransport) Perform(_ context.Context, p *Prepared) (*Result, error) {
	rt.calls = append(rt.calls, p)
	if rt.onCall != nil {
		rt.onCall(p)
	}
	if rt.err != nil {
		return nil, rt.err
	}
	if rt.result != nil {
		return rt.result, nil
	}
	return rawResult("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n", `{"ok":true}`), nil
}

func (rt *recordingTransport) last(t *testing.T) *Prepared {
	t.Helper()
	require.NotEmpty(t, rt.calls)
	return rt.calls[len(rt.calls)-1]
}

func rawResult(head, body string) *Result {
	r := &Result{
		Raw:  []byte(head + body),
		Info: Info{HeaderSize: len(head)},
	}
	resp := NewResponse(r, "")
	r.Info.HTTPCode = resp.StatusCode()
	r.Info.ContentType = resp.Header("Content-Type")
	return r
}

func newTestRequest(t *testing.T, rt *recordingTransport) *Request {
	t.Helper()
	r, err := NewRequest(rt)
	require.NoError(t, err)
	return r
}

func TestNewRequest_RequiresTransport(t *testing.T) {
	_, err := NewRequest(nil)
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestRequest_Defaults(t *testing.T) {
	r := newTestRequest(t, &recordingTransport{})

	assert.Equal(t, MethodGet, r.Method())
	assert.Equal(t, DefaultUserAgent, r.UserAgent())
	assert.Equal(t, StateConfigured, r.State())
	assert.Equal(t, ParamsUnset, r.Params().Mode())
}

func TestRequest_GetAppendsQuery(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)
	r.SetParam("param", "foo")

	resp, err := r.Execute(context.Background(), "https://api.example.com/get", "get")
	require.NoError(t, err)

	p := rt.last(t)
	assert.Equal(t, "https://api.example.com/get?param=foo", p.URL)
	assert.Equal(t, MethodGet, p.Verb())
	assert.Nil(t, p.Body)
	assert.Nil(t, p.Form)
	assert.Equal(t, "https://api.example.com/get?param=foo", r.URL())
	assert.Equal(t, StateCompleted, r.State())
	assert.Equal(t, 200, resp.StatusCode())
}

func TestRequest_GetKeepsExistingQuery(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)

	_, err := r.Execute(context.Background(), "https://example.com/search?page=2", MethodGet, WithQuery("q=go"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/search?page=2&q=go", rt.last(t).URL)
}

func TestRequest_DefaultOptions(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)
	r.SetOption(OptAutoReferer, false)

	_, err := r.Execute(context.Background(), "https://example.com", MethodGet)
	require.NoError(t, err)

	opts := rt.last(t).Options
	assert.True(t, opts.Bool(OptFollowLocation, false))
	assert.True(t, opts.Bool(OptHeaderOut, false))
	assert.False(t, opts.Bool(OptAutoReferer, true))
	assert.Equal(t, DefaultUserAgent, opts.Text(OptUserAgent))
}

func TestRequest_PostMappingIsMultipart(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)
	r.SetParam("name", "widget").SetParam("count", 2)

	_, err := r.Execute(context.Background(), "https://example.com/items", MethodPost)
	require.NoError(t, err)

	p := rt.last(t)
	assert.Equal(t, []FormField{
		{Name: "name", Value: "widget"},
		{Name: "count", Value: "2"},
	}, p.Form)
	assert.Nil(t, p.Body)
	for _, line := range p.Headers {
		assert.NotContains(t, line, "Content-Type")
	}
}

func TestRequest_PostRawIsURLEncoded(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)

	_, err := r.Execute(context.Background(), "https://example.com/items", MethodPost, WithQuery("a=1&b=2"))
	require.NoError(t, err)

	p := rt.last(t)
	assert.Nil(t, p.Form)
	assert.Equal(t, "a=1&b=2", string(p.Body))
	assert.Contains(t, p.Headers, "Content-Type: application/x-www-form-urlencoded")
	assert.Contains(t, p.Headers, "Content-Length: 7")
	assert.Equal(t, "https://example.com/items", p.URL)
}

func TestRequest_OtherMethodsUseVerbOverride(t *testing.T) {
	for _, method := range []string{MethodPut, MethodPatch, "PURGE"} {
		t.Run(method, func(t *testing.T) {
			rt := &recordingTransport{}
			r := newTestRequest(t, rt)
			r.SetParam("a", "1")

			_, err := r.Execute(context.Background(), "https://example.com/items/1", method)
			require.NoError(t, err)

			p := rt.last(t)
			assert.Equal(t, method, p.CustomMethod)
			assert.Equal(t, method, p.Verb())
			assert.Equal(t, "a=1", string(p.Body))
			assert.Contains(t, p.Headers, "Content-Type: application/x-www-form-urlencoded")
			assert.Equal(t, "https://example.com/items/1", p.URL)
		})
	}
}

func TestRequest_HeadHasNoBody(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)

	_, err := r.Execute(context.Background(), "https://example.com", MethodHead)
	require.NoError(t, err)
	assert.True(t, rt.last(t).NoBody)
}

func TestRequest_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		method string
		target error
	}{
		{"empty url", "", MethodGet, ErrInvalidURL},
		{"unsupported scheme", "ftp://example.com/file", MethodGet, ErrInvalidURL},
		{"missing host", "https://", MethodGet, ErrInvalidURL},
		{"method with space", "https://example.com", "GE T", ErrInvalidMethod},
		{"method with slash", "https://example.com", "GET/1", ErrInvalidMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &recordingTransport{}
			r := newTestRequest(t, rt)

			resp, err := r.Execute(context.Background(), tt.url, tt.method)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, IsConfiguration(err))
			assert.False(t, IsTransportInit(err))
			assert.ErrorIs(t, err, tt.target)
			assert.Empty(t, rt.calls)
		})
	}
}

func TestRequest_TransportInitError(t *testing.T) {
	cause := errors.New("pool exhausted")
	rt := &recordingTransport{err: cause}
	r := newTestRequest(t, rt)

	_, err := r.Execute(context.Background(), "https://example.com", MethodGet)
	require.Error(t, err)
	assert.True(t, IsTransportInit(err))
	assert.ErrorIs(t, err, cause)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindTransportInit, e.Kind)
}

func TestRequest_CallOptionsPersist(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)

	_, err := r.Execute(context.Background(), "https://example.com", MethodGet,
		WithParams(KV("a", "1")),
		WithHeaders(H("X-Trace", "abc")),
		WithTransportOptions(TransportOptions{OptMaxRedirects: 2}),
	)
	require.NoError(t, err)

	assert.Equal(t, "a=1", r.Params().Encode())
	v, ok := r.Headers().Get("X-Trace")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	assert.Equal(t, int64(2), r.Options().Int(OptMaxRedirects, 0))
}

func TestRequest_EncodingHeadersAreNotPersisted(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)

	_, err := r.Execute(context.Background(), "https://example.com", MethodPost, WithQuery("a=1"))
	require.NoError(t, err)

	_, ok := r.Headers().Lookup("Content-Type")
	assert.False(t, ok)
}

func TestRequest_BeforeExecuteHook(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)
	r.OnBeforeExecute(func(req *Request) {
		req.SetHeader("X-Hook", "ran")
		req.SetParam("from", "hook")
	})

	_, err := r.Execute(context.Background(), "https://example.com", MethodGet)
	require.NoError(t, err)
	assert.Contains(t, rt.last(t).Headers, "X-Hook: ran")
	assert.Equal(t, "https://example.com?from=hook", rt.last(t).URL)
}

func TestRequest_FallsBackToConfiguredURLAndMethod(t *testing.T) {
	rt := &recordingTransport{}
	r := newTestRequest(t, rt)
	r.SetURL("https://example.com/resource").SetMethod("delete")

	_, err := r.Execute(context.Background(), "", "")
	require.NoError(t, err)

	p := rt.last(t)
	assert.Equal(t, "https://example.com/resource", p.URL)
	assert.Equal(t, MethodDelete, p.Verb())
}

func TestRequest_UploadClosesFiles(t *testing.T) {
	path := writeTempFile(t, "upload.txt", "payload")

	var opened *os.File
	rt := &recordingTransport{onCall: func(p *Prepared) {
		for _, f := range p.Form {
			if f.File != nil {
				opened = f.Content.(*os.File)
			}
		}
	}}
	r := newTestRequest(t, rt)
	r.AddFile(path, "doc", "text/plain")

	_, err := r.Execute(context.Background(), "https://example.com/upload", MethodPost)
	require.NoError(t, err)

	require.NotNil(t, opened)
	_, err = opened.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrClosed)

	form := rt.last(t).Form
	require.Len(t, form, 1)
	assert.Equal(t, "doc", form[0].Name)
	assert.Equal(t, "text/plain", form[0].File.MimeType)
}

func TestRequest_UploadMissingFile(t *testing.T) {
	path := writeTempFile(t, "gone.txt", "payload")

	rt := &recordingTransport{}
	r := newTestRequest(t, rt)
	r.AddFile(path, "doc", "")
	require.NoError(t, os.Remove(path))

	_, err := r.Execute(context.Background(), "https://example.com/upload", MethodPost)
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, ErrFileUnavailable)
	assert.Empty(t, rt.calls)
}

func TestRequest_AuthAndProxyOptions(t *testing.T) {
	r := newTestRequest(t, &recordingTransport{})

	r.SetBasicAuth("user", "pass")
	assert.Equal(t, AuthBasic, AuthScheme(r.Options().Int(OptHTTPAuth, 0)))
	assert.Equal(t, "user:pass", r.Options().Text(OptUserPwd))

	r.SetDigestAuth("u", "p")
	assert.Equal(t, AuthDigest, AuthScheme(r.Options().Int(OptHTTPAuth, 0)))

	r.SetProxy("proxy.local", 3128, "px", "secret")
	assert.Equal(t, "proxy.local", r.Options().Text(OptProxy))
	assert.Equal(t, int64(3128), r.Options().Int(OptProxyPort, 0))
	assert.Equal(t, "px:secret", r.Options().Text(OptProxyUserPwd))
}

func TestRequest_Clone(t *testing.T) {
	r := newTestRequest(t, &recordingTransport{})
	r.SetURL("https://example.com").SetParam("a", "1").SetHeader("X-A", "1")

	c := r.Clone()
	c.SetParam("b", "2").SetHeader("X-B", "2")

	assert.Equal(t, "a=1", r.Params().Encode())
	assert.Equal(t, 1, r.Headers().Len())
	assert.Equal(t, "https://example.com", c.URL())
	assert.Same(t, r.Transport(), c.Transport())
}

func TestRequest_SetTransport(t *testing.T) {
	r := newTestRequest(t, &recordingTransport{})
	err := r.SetTransport(nil)
	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "configured", StateConfigured.String())
	assert.Equal(t, "executing", StateExecuting.String())
	assert.Equal(t, "completed", StateCompleted.String())
}

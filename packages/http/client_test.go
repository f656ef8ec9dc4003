package http

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	hlog "github.com/abdul-hamid-achik/hitclient/packages/log"
)

func TestClient_GetJoinsBaseURL(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(WithBaseURL("https://api.example.com"), WithTransport(rt))
	client.SetParam("param", "foo")

	resp, err := client.Get(context.Background(), " /get ")
	require.NoError(t, err)

	p := rt.last(t)
	assert.Equal(t, "https://api.example.com/get?param=foo", p.URL)
	assert.Equal(t, MethodGet, p.Verb())
	assert.Equal(t, DefaultUserAgent, p.UserAgent)
	assert.Equal(t, "https://api.example.com/get?param=foo", client.Request().URL())
	assert.Equal(t, 200, resp.StatusCode())
}

func TestClient_Verbs(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(WithTransport(rt))
	ctx := context.Background()
	url := "https://example.com/resource"

	calls := []struct {
		method string
		call   func() (*Response, error)
	}{
		{MethodPost, func() (*Response, error) { return client.Post(ctx, url) }},
		{MethodPut, func() (*Response, error) { return client.Put(ctx, url) }},
		{MethodPatch, func() (*Response, error) { return client.Patch(ctx, url) }},
		{MethodDelete, func() (*Response, error) { return client.Delete(ctx, url) }},
		{MethodHead, func() (*Response, error) { return client.Head(ctx, url) }},
		{MethodOptions, func() (*Response, error) { return client.Options(ctx, url) }},
	}

	for _, c := range calls {
		t.Run(c.method, func(t *testing.T) {
			_, err := c.call()
			require.NoError(t, err)
			assert.Equal(t, c.method, rt.last(t).Verb())
		})
	}
}

func TestClient_EmptyURL(t *testing.T) {
	rt := &recordingTransport{}
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)
	client := NewClient(WithTransport(rt), WithMetrics(mc))

	_, err := client.Get(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Empty(t, rt.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.errorsTotal.WithLabelValues(string(KindConfiguration), MethodGet)))
}

func TestClient_Defaults(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(
		WithTransport(rt),
		WithUserAgent("agent/1.0"),
		WithDefaultHeader("X-Api-Key", "k"),
		WithDefaultHeaders(map[string]string{"Accept": "application/json"}),
		WithDefaultParams(map[string]string{"b": "2", "a": "1"}),
		WithFollowRedirects(false),
		WithMaxRedirects(3),
		WithValidateSSL(false),
		WithProxy("proxy.local:3128"),
		WithConnectTimeout(2*time.Second),
		WithTransportOption(OptVerbose, true),
	)

	_, err := client.Get(context.Background(), "https://example.com")
	require.NoError(t, err)

	p := rt.last(t)
	assert.Equal(t, "https://example.com?a=1&b=2", p.URL)
	assert.Equal(t, "agent/1.0", p.UserAgent)
	assert.Equal(t, "agent/1.0", p.Options.Text(OptUserAgent))
	assert.Contains(t, p.Headers, "X-Api-Key: k")
	assert.Contains(t, p.Headers, "Accept: application/json")
	assert.False(t, p.Options.Bool(OptFollowLocation, true))
	assert.Equal(t, int64(3), p.Options.Int(OptMaxRedirects, 0))
	assert.False(t, p.Options.Bool(OptSSLVerifyPeer, true))
	assert.Equal(t, "proxy.local:3128", p.Options.Text(OptProxy))
	assert.Equal(t, 2*time.Second, p.Options.Duration(OptConnectTimeoutMS))
	assert.Equal(t, DefaultTimeout, p.Options.Duration(OptTimeoutMS))
	assert.True(t, p.Options.Bool(OptVerbose, false))
}

func TestClient_DefaultHeadersKeepURLValues(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(
		WithTransport(rt),
		WithDefaultHeader("Referer", "https://ref.example.com"),
		WithDefaultHeaders(map[string]string{
			"Origin":   "https://app.example.com",
			"X-Window": "09:00-17:00",
		}),
	)

	assert.Equal(t, []string{
		"Referer: https://ref.example.com",
		"Origin: https://app.example.com",
		"X-Window: 09:00-17:00",
	}, client.Headers().Lines())

	_, err := client.Get(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, rt.last(t).Headers, "Origin: https://app.example.com")
}

func TestClient_SetTimeout(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(WithTransport(rt), WithTimeout(5*time.Second))
	assert.Equal(t, 5*time.Second, client.TransportOptions().Duration(OptTimeoutMS))

	client.SetTimeout(1.5)
	assert.Equal(t, 1500*time.Millisecond, client.TransportOptions().Duration(OptTimeoutMS))

	client.SetTimeout(-1)
	assert.Equal(t, 1500*time.Millisecond, client.TransportOptions().Duration(OptTimeoutMS))
}

func TestClient_Setters(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(WithTransport(rt))

	client.SetBaseURL("https://example.com").SetBaseURL("  ")
	assert.Equal(t, "https://example.com", client.BaseURL())

	client.SetParams(KV("a", "1")).AddParams("b=2")
	assert.Equal(t, "a=1&b=2", client.Params().Encode())
	client.SetParams()
	assert.True(t, client.Params().IsEmpty())

	client.SetHeaders(H("X-A", "1"))
	assert.Equal(t, 1, client.Headers().Len())

	client.SetTransportOptions(TransportOptions{OptReferer: "https://ref.example"})
	assert.Equal(t, "https://ref.example", client.TransportOptions().Text(OptReferer))

	client.Expect(" JSON ")
	assert.Equal(t, "JSON", client.ExpectedType())

	path := writeTempFile(t, "a.txt", "a")
	client.AddFile(path, "", "").SetFiles(NamedFile("doc", path))
	require.Len(t, client.Files(), 2)
}

func TestClient_ExpectedTypeReachesResponse(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(WithTransport(rt), WithExpectedType("json"))

	resp, err := client.Get(context.Background(), "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, "json", resp.ExpectedType())
	data, err := resp.Data()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, data)
}

func TestClient_SetRequest(t *testing.T) {
	client := NewClient(WithTransport(&recordingTransport{}))

	err := client.SetRequest(nil)
	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, ErrNoRequest)

	rt := &recordingTransport{}
	r, err := NewRequest(rt)
	require.NoError(t, err)
	require.NoError(t, client.SetRequest(r))

	_, err = client.Get(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, rt.calls, 1)
}

func TestClient_RequestID(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(WithTransport(rt), WithRequestID(""))

	_, err := client.Get(context.Background(), "https://example.com")
	require.NoError(t, err)
	first, ok := client.Headers().Get(DefaultRequestIDHeader)
	require.True(t, ok)
	_, err = uuid.Parse(first)
	assert.NoError(t, err)
	assert.Contains(t, rt.last(t).Headers, DefaultRequestIDHeader+": "+first)

	_, err = client.Get(context.Background(), "https://example.com")
	require.NoError(t, err)
	second, _ := client.Headers().Get(DefaultRequestIDHeader)
	assert.NotEqual(t, first, second)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(WithTransport(rt), WithRateLimit(rate.Limit(1), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "https://example.com")
	require.Error(t, err)
	assert.True(t, IsTransportInit(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rt.calls)
}

func TestClient_RateLimitAllowsBurst(t *testing.T) {
	rt := &recordingTransport{}
	client := NewClient(WithTransport(rt), WithRateLimit(rate.Limit(100), 2))

	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), "https://example.com")
		require.NoError(t, err)
	}
	assert.Len(t, rt.calls, 2)
}

func TestClient_LogsAndRecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := hlog.New(&hlog.Config{Level: "debug", Format: hlog.FormatJSON, Output: &buf})
	mc := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	rt := &recordingTransport{}
	client := NewClient(WithTransport(rt), WithLogger(logger), WithMetrics(mc), WithRequestID("X-Trace-Id"))

	_, err := client.Get(context.Background(), "https://example.com/items")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"executing request"`)
	assert.Contains(t, out, `"msg":"request completed"`)
	assert.Contains(t, out, `"request_id"`)
	assert.Contains(t, out, `"status":200`)
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.requestsTotal.WithLabelValues(MethodGet, "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(mc.requestsInFlight.WithLabelValues(MethodGet)))

	_, ok := client.Headers().Get("X-Trace-Id")
	assert.True(t, ok)
}

func TestClient_AuthOptions(t *testing.T) {
	basic := NewClient(WithTransport(&recordingTransport{}), WithBasicAuth("u", "p"))
	assert.Equal(t, AuthBasic, AuthScheme(basic.TransportOptions().Int(OptHTTPAuth, 0)))

	digest := NewClient(WithTransport(&recordingTransport{}), WithDigestAuth("u", "p"))
	assert.Equal(t, AuthDigest, AuthScheme(digest.TransportOptions().Int(OptHTTPAuth, 0)))
	assert.Equal(t, "u:p", digest.TransportOptions().Text(OptUserPwd))
}

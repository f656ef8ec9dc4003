package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitclient/packages/capture"
	"github.com/abdul-hamid-achik/hitclient/packages/http"
)

func TestJSONFormatter_DecodedBody(t *testing.T) {
	var buf bytes.Buffer
	resp := response(200, "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n", `{"id":7,"tags":["a"]}`, "application/json", "json")

	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).FormatResponse(resp, nil))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, float64(200), doc["status"])
	assert.Equal(t, "HTTP/1.1 200 OK", doc["statusLine"])
	assert.Equal(t, "https://api.example.com/items", doc["url"])
	assert.Equal(t, float64(12), doc["duration"])
	assert.Equal(t, map[string]any{"id": float64(7), "tags": []any{"a"}}, doc["body"])
	assert.Equal(t, map[string]any{"Content-Type": "application/json"}, doc["headers"])
	assert.NotContains(t, doc, "requestHeaders")
	assert.NotContains(t, doc, "decodeError")
}

func TestJSONFormatter_RawBody(t *testing.T) {
	out := NewJSONFormatter().Build(response(500, "HTTP/1.1 500 Internal Server Error\r\n\r\n", "boom", "", ""), nil)

	assert.Equal(t, 500, out.Status)
	assert.Equal(t, "boom", out.Body)
	assert.Empty(t, out.DecodeError)
}

func TestJSONFormatter_DecodeFailureKeepsText(t *testing.T) {
	out := NewJSONFormatter().Build(response(200, "HTTP/1.1 200 OK\r\n\r\n", "<not valid", "", "xml"), nil)

	assert.Equal(t, "<not valid", out.Body)
	assert.NotEmpty(t, out.DecodeError)
}

func TestJSONFormatter_TransferFailure(t *testing.T) {
	resp := http.NewResponse(&http.Result{Info: http.Info{
		Errno: http.ErrnoCouldNotConnect,
		Error: "connection refused",
	}}, "")

	out := NewJSONFormatter().Build(resp, nil)
	assert.Equal(t, 0, out.Status)
	assert.Equal(t, http.ErrnoCouldNotConnect, out.Errno)
	assert.Equal(t, "connection refused", out.Error)
	assert.Nil(t, out.Body)
}

func TestJSONFormatter_VerboseRequestHeaders(t *testing.T) {
	resp := http.NewResponse(&http.Result{Info: http.Info{
		HTTPCode:      204,
		RequestHeader: "DELETE /items/7 HTTP/1.1\r\nHost: api.example.com\r\n\r\n",
	}}, "")

	out := NewJSONFormatter(JSONWithVerbose(true)).Build(resp, nil)
	assert.Equal(t, map[string]string{"Host": "api.example.com"}, out.RequestHeaders)
}

func TestJSONFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).FormatError(errors.New("bad flag")))
	assert.JSONEq(t, `{"error":"bad flag"}`, buf.String())
}

func TestJSONFormatter_Captures(t *testing.T) {
	var buf bytes.Buffer
	resp := response(200, "HTTP/1.1 200 OK\r\n\r\n", `{"token":"abc"}`, "", "json")
	captures := []capture.Value{
		{Name: "token", Value: "abc", Found: true},
		{Name: "missing"},
	}

	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).FormatResponse(resp, captures))

	var doc struct {
		Captures map[string]any `json:"captures"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, map[string]any{"token": "abc", "missing": nil}, doc.Captures)
}

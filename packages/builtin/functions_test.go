package builtin

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	r := NewRegistry()
	r.SetClock(func() time.Time { return time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC) })

	tests := []struct {
		expr string
		want string
	}{
		{"now()", "2024-03-09T14:30:00Z"},
		{"timestamp()", "1709994600"},
		{"timestampMs()", "1709994600000"},
		{"date()", "2024-03-09"},
		{`date("02/01/2006")`, "09/03/2024"},
		{"base64(hello)", "aGVsbG8="},
		{"base64Decode(aGVsbG8=)", "hello"},
		{`basicAuth("Aladdin", "open sesame")`, "QWxhZGRpbjpvcGVuIHNlc2FtZQ=="},
		{"md5(abc)", "900150983cd24fb0d6963f7d28e17f72"},
		{"sha256(abc)", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{`urlEncode("a b&c")`, "a+b%26c"},
		{"urlDecode(a+b%26c)", "a b&c"},
		{`base64("a,b")`, "YSxi"},
		{"  random(4, 4)  ", "4"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := r.Call(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCall_Random(t *testing.T) {
	r := NewRegistry()

	id, err := r.Call("uuid()")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	for i := 0; i < 20; i++ {
		v, err := r.Call("random(1, 6)")
		require.NoError(t, err)
		n, err := strconv.Atoi(v)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 6)
	}

	s, err := r.Call("randomString(12)")
	require.NoError(t, err)
	assert.Len(t, s, 12)

	s, err = r.Call("randomString()")
	require.NoError(t, err)
	assert.Len(t, s, 16)
}

func TestCall_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Call("nope()")
	assert.ErrorIs(t, err, ErrUnknownFunction)

	for _, expr := range []string{"notacall", "random(a, 2)", "random(5, 1)", "randomString(-1)", "base64()", "basicAuth(only)", "base64Decode(!!)"} {
		t.Run(expr, func(t *testing.T) {
			_, err := r.Call(expr)
			assert.Error(t, err)
		})
	}
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("tenant", func(args []string) (string, error) { return "acme", nil })

	got, err := r.Call("tenant()")
	require.NoError(t, err)
	assert.Equal(t, "acme", got)
}

func TestIsCall(t *testing.T) {
	assert.True(t, IsCall("uuid()"))
	assert.True(t, IsCall(" random(1, 2) "))
	assert.False(t, IsCall("name"))
	assert.False(t, IsCall("$HOME"))
}

func TestParseArgs(t *testing.T) {
	assert.Nil(t, parseArgs("  "))
	assert.Equal(t, []string{"a", "b c", "d,e"}, parseArgs(`a, "b c", 'd,e'`))
}

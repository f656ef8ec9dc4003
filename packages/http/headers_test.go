package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderStore_SetIsIdempotent(t *testing.T) {
	h := NewHeaderStore()
	h.Set("Accept", "application/json").Set("Accept", "application/json")

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, []string{"Accept: application/json"}, h.Lines())
}

func TestHeaderStore_Apply(t *testing.T) {
	tests := []struct {
		name    string
		entries []Header
		want    []string
	}{
		{
			name:    "name and value",
			entries: []Header{H("X-Token", "abc")},
			want:    []string{"X-Token: abc"},
		},
		{
			name:    "line entry",
			entries: []Header{Line("Content-Type: text/plain")},
			want:    []string{"Content-Type: text/plain"},
		},
		{
			name:    "numeric name is a line",
			entries: []Header{H("0", "Accept: */*")},
			want:    []string{"Accept: */*"},
		},
		{
			name:    "value carrying a name overrides the name",
			entries: []Header{H("X-Ignored", "X-Real: value")},
			want:    []string{"X-Real: value"},
		},
		{
			name:    "empty value is ignored",
			entries: []Header{H("X-Empty", "")},
			want:    []string{},
		},
		{
			name:    "nil value removes",
			entries: []Header{H("X-A", "1"), H("X-B", "2"), H("X-A", nil)},
			want:    []string{"X-B: 2"},
		},
		{
			name:    "line without colon is ignored",
			entries: []Header{Line("garbage")},
			want:    []string{},
		},
		{
			name:    "scalar values are formatted",
			entries: []Header{H("X-Count", 3), H("X-Flag", true)},
			want:    []string{"X-Count: 3", "X-Flag: 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHeaderStore()
			h.Apply(tt.entries...)
			assert.Equal(t, tt.want, h.Lines())
		})
	}
}

func TestHeaderStore_ApplyWithNoEntriesClears(t *testing.T) {
	h := NewHeaderStore()
	h.Set("A", "1").Set("B", "2")

	h.Apply()
	assert.Equal(t, 0, h.Len())
}

func TestHeaderStore_Lookup(t *testing.T) {
	h := NewHeaderStore()
	h.Set("Content-Type", "text/html")

	_, ok := h.Get("content-type")
	assert.False(t, ok)

	v, ok := h.Lookup("content-type")
	assert.True(t, ok)
	assert.Equal(t, "text/html", v)
}

func TestHeaderStore_SetMapIsSorted(t *testing.T) {
	h := NewHeaderStore()
	h.SetMap(map[string]string{"Zeta": "z", "Alpha": "a", "Mid": "m"})

	assert.Equal(t, []string{"Alpha", "Mid", "Zeta"}, h.Names())
	assert.Equal(t, map[string]string{"Zeta": "z", "Alpha": "a", "Mid": "m"}, h.Map())
}

func TestHeaderStore_PutKeepsColonsInValue(t *testing.T) {
	h := NewHeaderStore()
	h.Put("Origin", "https://app.example.com").Put(" X-Window ", "09:00-17:00").Put("X-Empty", "").Put(" ", "x")
	h.SetMap(map[string]string{"Referer": "https://ref.example.com/a"})

	assert.Equal(t, []string{
		"Origin: https://app.example.com",
		"X-Window: 09:00-17:00",
		"Referer: https://ref.example.com/a",
	}, h.Lines())

	h.Set("X-Ignored", "X-Real: value")
	_, ok := h.Get("X-Real")
	assert.True(t, ok)
}

func TestHeaderStore_RemoveAndClone(t *testing.T) {
	h := NewHeaderStore()
	h.Set("A", "1").Set("B", "2")

	c := h.Clone()
	h.Remove("A")

	assert.Equal(t, []string{"B"}, h.Names())
	assert.Equal(t, []string{"A", "B"}, c.Names())
}

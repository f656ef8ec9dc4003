package env

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/hitclient/packages/builtin"
)

func newTestResolver(vars map[string]string, environ map[string]string) *Resolver {
	r := NewResolver()
	r.SetVariables(vars)
	r.lookupEnv = func(name string) (string, bool) {
		v, ok := environ[name]
		return v, ok
	}
	return r
}

func TestResolve(t *testing.T) {
	vars := map[string]string{"host": "api.example.com", "TOKEN": "from-var"}
	environ := map[string]string{"TOKEN": "from-env", "EMPTY": ""}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no placeholders", "plain", "plain"},
		{"variable", "https://{{host}}/v1", "https://api.example.com/v1"},
		{"spaces inside braces", "{{ host }}", "api.example.com"},
		{"environment wins for $", "Bearer {{$TOKEN}}", "Bearer from-env"},
		{"empty environment value", "[{{$EMPTY}}]", "[]"},
		{"variable without $ ignores environment", "{{TOKEN}}", "from-var"},
		{"$ falls back to variables", "{{$host}}", "api.example.com"},
		{"unresolved is kept", "{{missing}}/{{host}}", "{{missing}}/api.example.com"},
	}

	r := newTestResolver(vars, environ)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.input); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveAll(t *testing.T) {
	r := newTestResolver(map[string]string{"id": "7"}, nil)
	got := r.ResolveAll([]string{"id={{id}}", "X-Id: {{id}}"})
	want := []string{"id=7", "X-Id: 7"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveAll() = %v, want %v", got, want)
	}
}

func TestUnresolved(t *testing.T) {
	r := newTestResolver(map[string]string{"a": "1"}, map[string]string{"B": "2"})

	got := r.Unresolved("{{a}} {{$B}} {{c}} {{$D}}")
	want := []string{"c", "$D"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unresolved() = %v, want %v", got, want)
	}
	if got := r.Unresolved("{{a}}"); got != nil {
		t.Errorf("Unresolved() = %v, want nil", got)
	}
}

func TestResolveWarnsOnUnresolved(t *testing.T) {
	var buf bytes.Buffer
	r := newTestResolver(nil, nil)
	r.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	r.Resolve("{{nope}}")
	if !strings.Contains(buf.String(), "placeholder=nope") {
		t.Errorf("expected warning for unresolved placeholder, got %q", buf.String())
	}
}

func TestSetVariableOverrides(t *testing.T) {
	r := newTestResolver(map[string]string{"env": "staging"}, nil)
	r.SetVariable("env", "prod")
	if v, _ := r.GetVariable("env"); v != "prod" {
		t.Errorf("GetVariable() = %q, want prod", v)
	}
}

func TestResolveFunctions(t *testing.T) {
	functions := builtin.NewRegistry()
	functions.Register("tenant", func(args []string) (string, error) { return "acme-" + strings.Join(args, "-"), nil })
	functions.Register("broken", func([]string) (string, error) { return "", errors.New("boom") })

	var buf bytes.Buffer
	r := newTestResolver(nil, nil)
	r.SetFunctions(functions)
	r.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	if got := r.Resolve("/t/{{tenant(eu, 1)}}"); got != "/t/acme-eu-1" {
		t.Errorf("Resolve() = %q, want /t/acme-eu-1", got)
	}
	if got := r.Resolve("Basic {{ basicAuth(ann, pw) }}"); got != "Basic YW5uOnB3" {
		t.Errorf("Resolve() = %q, want Basic YW5uOnB3", got)
	}
	if got := r.Resolve("{{broken()}}"); got != "{{broken()}}" {
		t.Errorf("Resolve() = %q, want placeholder kept", got)
	}
	if !strings.Contains(buf.String(), "placeholder function failed") {
		t.Errorf("expected warning for failed function, got %q", buf.String())
	}
}

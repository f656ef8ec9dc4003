package env

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitclient/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Resolver substitutes placeholders. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	lookupEnv func(string) (string, bool)
	functions *builtin.Registry
	logger    *slog.Logger
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
		lookupEnv: os.LookupEnv,
		functions: builtin.NewRegistry(),
		logger:    slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger warned about unresolved placeholders.
func (r *Resolver) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetFunctions replaces the registry used for {{name(args)}} placeholders.
func (r *Resolver) SetFunctions(functions *builtin.Registry) {
	if functions == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions = functions
}

func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) lookup(expr string) (string, bool) {
	if builtin.IsCall(expr) {
		r.mu.RLock()
		functions, logger := r.functions, r.logger
		r.mu.RUnlock()
		val, err := functions.Call(expr)
		if err != nil {
			logger.Warn("placeholder function failed", slog.String("placeholder", expr), slog.Any("error", err))
			return "", false
		}
		return val, true
	}
	if name, ok := strings.CutPrefix(expr, "$"); ok {
		if val, found := r.lookupEnv(name); found {
			return val, true
		}
		return r.GetVariable(name)
	}
	return r.GetVariable(expr)
}

// Resolve replaces every placeholder it can resolve.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := r.lookup(expr); ok {
			return val
		}

		r.mu.RLock()
		logger := r.logger
		r.mu.RUnlock()
		logger.Warn("unresolved placeholder", slog.String("placeholder", expr))
		return match
	})
}

// ResolveAll resolves each value in order.
func (r *Resolver) ResolveAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = r.Resolve(v)
	}
	return out
}

// Unresolved lists the placeholders in input that have no value.
func (r *Resolver) Unresolved(input string) []string {
	var missing []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if _, ok := r.lookup(expr); !ok {
			missing = append(missing, expr)
		}
	}
	return missing
}

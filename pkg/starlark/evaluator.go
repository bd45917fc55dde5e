// Package starlark lets template helpers be written as Starlark functions.
package starlark

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

// DefaultMaxSteps bounds the work of a single helper call.
const DefaultMaxSteps = 1_000_000

// Evaluator loads helper scripts. Every top-level function whose name does
// not start with an underscore becomes a helper.
type Evaluator struct {
	Logger   *slog.Logger
	MaxSteps uint64
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{Logger: logger, MaxSteps: DefaultMaxSteps}
}

func (e *Evaluator) thread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			e.Logger.Info(msg, "script", name)
		},
	}
	if e.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(e.MaxSteps)
	}
	return thread
}

// LoadFile reads and loads a helper script from disk.
func (e *Evaluator) LoadFile(path string) (map[string]handlebars.Helper, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.Load(path, src)
}

// Load executes src and returns its helpers. The module globals are frozen,
// so the helpers may run concurrently.
func (e *Evaluator) Load(filename string, src any) (map[string]handlebars.Helper, error) {
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, e.thread(filename), filename, src, builtins())
	if err != nil {
		return nil, fmt.Errorf("loading helper script %s: %w", filename, err)
	}
	globals.Freeze()
	helpers := map[string]handlebars.Helper{}
	for name, v := range globals {
		fn, ok := v.(*starlark.Function)
		if !ok || name[0] == '_' {
			continue
		}
		helpers[name] = e.helper(name, fn)
	}
	e.Logger.Debug("loaded helper script", "file", filename, "helpers", len(helpers))
	return helpers, nil
}

// LoadRegistry adds the helpers of every script to base.
func (e *Evaluator) LoadRegistry(base handlebars.Registry[handlebars.Helper], paths ...string) (handlebars.Registry[handlebars.Helper], error) {
	for _, p := range paths {
		helpers, err := e.LoadFile(p)
		if err != nil {
			return base, err
		}
		for name, h := range helpers {
			base = base.With(name, h)
		}
	}
	return base, nil
}

// helper adapts fn. Template params are passed positionally and the hash as
// keyword arguments. A function declaring an "options" parameter also
// receives the block handle.
func (e *Evaluator) helper(name string, fn *starlark.Function) handlebars.Helper {
	wantsOptions := false
	for i := 0; i < fn.NumParams(); i++ {
		if p, _ := fn.Param(i); p == "options" {
			wantsOptions = true
		}
	}
	return func(_ any, opts *handlebars.Options) (any, error) {
		args := make(starlark.Tuple, 0, len(opts.Params()))
		for i, p := range opts.Params() {
			v, err := ToStarlark(p)
			if err != nil {
				return nil, fmt.Errorf("helper %s: param %d: %w", name, i, err)
			}
			args = append(args, v)
		}
		keys := make([]string, 0, len(opts.Hash()))
		for k := range opts.Hash() {
			if wantsOptions && k == "options" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kwargs := make([]starlark.Tuple, 0, len(keys)+1)
		for _, k := range keys {
			v, err := ToStarlark(opts.Hash()[k])
			if err != nil {
				return nil, fmt.Errorf("helper %s: hash %s: %w", name, k, err)
			}
			kwargs = append(kwargs, starlark.Tuple{starlark.String(k), v})
		}
		if wantsOptions {
			kwargs = append(kwargs, starlark.Tuple{starlark.String("options"), optionsValue(opts)})
		}
		out, err := starlark.Call(e.thread(name), fn, args, kwargs)
		if err != nil {
			return nil, fmt.Errorf("helper %s: %w", name, err)
		}
		return FromStarlark(out), nil
	}
}

// Package rule compiles visibility rules written as Lua expressions.
//
// Declarative manifests cannot carry Go closures, so a field's
// visible_when entry is a Lua expression such as
//
//	debug == true and volume > 50
//
// Every setting in the snapshot is exposed as a global of the same name,
// and also through the cfg table for keys that are not valid Lua
// identifiers (cfg["audio.master"]). The expression runs in a sandboxed
// state with only the base, table, string and math libraries, and with
// file loading and module lookup removed.
package rule

import (
	"context"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/sinmod/sinconfig/internal/config/schema"
)

// DefaultTimeout bounds a single rule evaluation.
const DefaultTimeout = 100 * time.Millisecond

// Globals removed from the sandbox.
var unsafeGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
	"setfenv",
	"getfenv",
	"collectgarbage",
	"print",
}

// Engine owns the Lua state shared by every compiled rule.
//
// Engine is not safe for concurrent use; rules are evaluated on the
// goroutine that owns the settings session.
type Engine struct {
	L       *lua.LState
	timeout time.Duration
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-evaluation timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// NewEngine creates a sandboxed rule engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	e.L = L
	return e
}

// Close releases the Lua state. Compiled rules fail afterwards.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.L.Close()
}

// Expr is a compiled visibility expression. It implements schema.Rule.
type Expr struct {
	source string
	proto  *lua.FunctionProto
	engine *Engine
}

// Compile parses and compiles a Lua expression.
func (e *Engine) Compile(expr string) (*Expr, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, &CompileError{Expr: expr, Err: ErrEmptyExpression}
	}

	chunk, err := parse.Parse(strings.NewReader("return ("+expr+")"), "<rule>")
	if err != nil {
		return nil, &CompileError{Expr: expr, Err: err}
	}
	proto, err := lua.Compile(chunk, "<rule>")
	if err != nil {
		return nil, &CompileError{Expr: expr, Err: err}
	}
	return &Expr{source: expr, proto: proto, engine: e}, nil
}

// MustCompile is like Compile but panics on error.
func (e *Engine) MustCompile(expr string) *Expr {
	x, err := e.Compile(expr)
	if err != nil {
		panic(err)
	}
	return x
}

// String returns the expression source.
func (x *Expr) String() string {
	return x.source
}

// Evaluate runs the expression against values. Lua truthiness applies:
// only nil and false hide the field.
func (x *Expr) Evaluate(values schema.Snapshot) (visible bool, err error) {
	e := x.engine
	if e.closed {
		return false, &EvalError{Expr: x.source, Err: ErrEngineClosed}
	}
	L := e.L

	if e.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		L.SetContext(ctx)
		defer L.RemoveContext()
	}

	top := L.GetTop()
	defer L.SetTop(top)

	defer func() {
		if r := recover(); r != nil {
			err = &EvalError{Expr: x.source, Err: fmt.Errorf("lua panic: %v", r)}
		}
	}()

	fn := L.NewFunctionFromProto(x.proto)
	L.SetFEnv(fn, e.env(values))
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return false, &EvalError{Expr: x.source, Err: err}
	}
	return lua.LVAsBool(L.Get(-1)), nil
}

// env builds the globals table for one evaluation. Unknown names fall
// through to the sandbox globals so library functions stay reachable.
func (e *Engine) env(values schema.Snapshot) *lua.LTable {
	L := e.L
	env := L.CreateTable(0, values.Len()+1)
	cfg := L.CreateTable(0, values.Len())

	for _, key := range values.Keys() {
		v, _ := values.Get(key)
		lv := toLua(L, v)
		env.RawSetString(key, lv)
		cfg.RawSetString(key, lv)
	}
	env.RawSetString("cfg", cfg)

	mt := L.CreateTable(0, 1)
	mt.RawSetString("__index", L.G.Global)
	L.SetMetatable(env, mt)
	return env
}

// toLua converts a canonical setting value.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case schema.Color:
		t := L.CreateTable(4, 0)
		for _, c := range val {
			t.Append(lua.LNumber(c))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

package luaengine

import (
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"

	"github.com/jonwraymond/toolscript/script"
)

// chunkName is the source name reported in Lua error positions.
const chunkName = "script"

// CompileError is returned by Compile for syntax errors and nesting-depth
// violations.
type CompileError struct {
	Message string
	Err     error
}

// Error returns the compile error message.
func (e *CompileError) Error() string { return e.Message }

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error { return e.Err }

// RuntimeError is a Lua error raised by the script itself, or by the VM
// (type errors, stack overflow).
type RuntimeError struct {
	// Message is the Lua error value rendered as text.
	Message string

	// Traceback is the Lua stack trace, when available.
	Traceback string
}

// Error returns the runtime error message.
func (e *RuntimeError) Error() string { return e.Message }

// Factory creates sandboxed Lua engines. The zero value is ready to use.
type Factory struct{}

// NewFactory returns a Factory.
func NewFactory() *Factory { return &Factory{} }

// NewEngine creates a fresh Lua state enforcing cfg.
func (f *Factory) NewEngine(cfg script.EngineConfig) (script.Engine, error) {
	return NewEngine(cfg)
}

// Engine is a script.Engine backed by a single gopher-lua state.
type Engine struct {
	L       *lua.LState
	cfg     script.EngineConfig
	conv    converter
	pctx    *progressContext
	errMeta *lua.LTable

	// entries counts the keys of tables that have taken a non-array key.
	entries map[*lua.LTable]int
}

var _ script.Engine = (*Engine)(nil)

// NewEngine creates a sandboxed engine enforcing cfg.
func NewEngine(cfg script.EngineConfig) (*Engine, error) {
	stack := cfg.MaxCallDepth
	if stack <= 0 {
		stack = lua.CallStackSize
	}
	L := lua.NewState(lua.Options{
		CallStackSize: stack,
		SkipOpenLibs:  true,
	})
	e := &Engine{
		L:       L,
		cfg:     cfg,
		conv:    newConverter(cfg),
		pctx:    newProgressContext(cfg.MaxOperations),
		entries: make(map[*lua.LTable]int),
	}
	if err := e.sandbox(); err != nil {
		L.Close()
		return nil, err
	}
	e.errMeta = L.NewTable()
	e.errMeta.RawSetString("__tostring", L.NewFunction(hostErrorString))
	L.SetContext(e.pctx)
	return e, nil
}

// Bind exposes fn to scripts as a global function. Arguments and results
// are converted with the engine's size caps applied.
func (e *Engine) Bind(name string, fn script.HostFunc) {
	e.L.SetGlobal(name, e.L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		args := make([]script.Value, 0, top)
		for i := 1; i <= top; i++ {
			v, err := e.conv.toValue(L.Get(i))
			if err != nil {
				e.raise(fmt.Errorf("%s: argument %d: %w", name, i, err))
				return 0
			}
			args = append(args, v)
		}
		out, err := fn(args)
		if err != nil {
			e.raise(err)
			return 0
		}
		lv, err := e.conv.toLua(L, out)
		if err != nil {
			e.raise(fmt.Errorf("%s: result: %w", name, err))
			return 0
		}
		L.Push(lv)
		return 1
	}))
}

// OnProgress installs the abort-poll hook. It runs before every VM
// instruction.
func (e *Engine) OnProgress(fn script.ProgressFunc) {
	e.pctx.hook = fn
}

type program struct {
	proto *lua.FunctionProto
}

// Compile parses source. Source that is a single expression evaluates to
// that expression; otherwise source is a chunk whose return value, or whose
// trailing function call, is the result. Concatenation and indexed stores
// are compiled as calls that apply the size caps.
func (e *Engine) Compile(source string) (script.Program, error) {
	chunk, err := parse.Parse(strings.NewReader("return "+source), chunkName)
	if err != nil {
		chunk, err = parse.Parse(strings.NewReader(source), chunkName)
		if err != nil {
			return nil, &CompileError{Message: err.Error(), Err: err}
		}
		chunk = returnTrailingCall(chunk)
	}
	if err := checkDepth(chunk, e.cfg.MaxCallDepth); err != nil {
		return nil, &CompileError{Message: err.Error(), Err: err}
	}
	chunk = rewriteSizes(chunk, e.conv)
	proto, err := lua.Compile(chunk, chunkName)
	if err != nil {
		return nil, &CompileError{Message: err.Error(), Err: err}
	}
	return &program{proto: proto}, nil
}

// returnTrailingCall turns a final call statement into a return of that
// call, so `f(a); g(b)` yields g's result.
func returnTrailingCall(chunk []ast.Stmt) []ast.Stmt {
	if len(chunk) == 0 {
		return chunk
	}
	call, ok := chunk[len(chunk)-1].(*ast.FuncCallStmt)
	if !ok {
		return chunk
	}
	ret := &ast.ReturnStmt{Exprs: []ast.Expr{call.Expr}}
	ret.SetLine(call.Line())
	ret.SetLastLine(call.LastLine())
	out := make([]ast.Stmt, len(chunk))
	copy(out, chunk)
	out[len(out)-1] = ret
	return out
}

// Evaluate runs p and converts its first return value.
func (e *Engine) Evaluate(p script.Program) (script.Value, error) {
	prog, ok := p.(*program)
	if !ok || prog == nil {
		return script.Unit(), errors.New("luaengine: program was not compiled by this engine")
	}
	L := e.L
	L.Push(L.NewFunctionFromProto(prog.proto))
	err := L.PCall(0, 1, nil)
	if cause := e.pctx.aborted(); cause != nil {
		return script.Unit(), cause
	}
	if err != nil {
		return script.Unit(), e.evalError(err)
	}
	lv := L.Get(-1)
	L.Pop(1)
	return e.conv.toValue(lv)
}

// Operations returns the number of VM instructions executed so far.
func (e *Engine) Operations() uint64 { return e.pctx.count() }

// Close releases the Lua state.
func (e *Engine) Close() error {
	e.L.Close()
	return nil
}

// raise throws err into the running script as a Lua error. The Go error is
// carried in a userdata so Evaluate can hand it back unchanged.
func (e *Engine) raise(err error) {
	ud := e.L.NewUserData()
	ud.Value = err
	ud.Metatable = e.errMeta
	e.L.Error(ud, 1)
}

// evalError recovers host errors raised through raise and wraps everything
// else as a RuntimeError.
func (e *Engine) evalError(err error) error {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return err
	}
	if ud, ok := apiErr.Object.(*lua.LUserData); ok {
		if hostErr, ok := ud.Value.(error); ok {
			return hostErr
		}
	}
	msg := err.Error()
	if apiErr.Object != nil {
		msg = apiErr.Object.String()
	}
	return &RuntimeError{Message: msg, Traceback: apiErr.StackTrace}
}

func hostErrorString(L *lua.LState) int {
	ud := L.CheckUserData(1)
	if err, ok := ud.Value.(error); ok {
		L.Push(lua.LString(err.Error()))
	} else {
		L.Push(lua.LString(ud.String()))
	}
	return 1
}

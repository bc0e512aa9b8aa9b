package luaengine

import (
	"fmt"

	"github.com/yuin/gopher-lua/ast"
)

// Globals that rewritten chunks call into. The names are not valid Lua
// identifiers, so source code cannot spell them.
const (
	concatGlobal = "\x00concat"
	storeGlobal  = "\x00store"
	tableGlobal  = "\x00table"
)

// sizeRewriter routes the operations that grow strings and tables inside a
// script through host functions that apply the size caps:
//
//	a .. b .. c         becomes  concat(a, b, c)
//	t[k] = v            becomes  store(t, k, v)
//	{x, f()}            becomes  table({x, f()})
//
// Multiple assignments that target indexed expressions evaluate their right
// hand side into block locals first, then store each target in order.
type sizeRewriter struct {
	strings bool
	tables  bool
	temps   int
}

// rewriteSizes rewrites chunk in place for the caps c enforces.
func rewriteSizes(chunk []ast.Stmt, c converter) []ast.Stmt {
	r := &sizeRewriter{
		strings: c.maxString > 0,
		tables:  c.maxArray > 0 || c.maxMap > 0,
	}
	if !r.strings && !r.tables {
		return chunk
	}
	return r.stmts(chunk)
}

func (r *sizeRewriter) stmts(list []ast.Stmt) []ast.Stmt {
	for i, s := range list {
		list[i] = r.stmt(s)
	}
	return list
}

func (r *sizeRewriter) stmt(s ast.Stmt) ast.Stmt {
	switch st := s.(type) {
	case *ast.AssignStmt:
		r.exprs(st.Lhs)
		r.exprs(st.Rhs)
		if r.tables {
			return r.store(st)
		}
	case *ast.LocalAssignStmt:
		r.exprs(st.Exprs)
	case *ast.FuncCallStmt:
		st.Expr = r.expr(st.Expr)
	case *ast.DoBlockStmt:
		r.stmts(st.Stmts)
	case *ast.WhileStmt:
		st.Condition = r.expr(st.Condition)
		r.stmts(st.Stmts)
	case *ast.RepeatStmt:
		st.Condition = r.expr(st.Condition)
		r.stmts(st.Stmts)
	case *ast.IfStmt:
		st.Condition = r.expr(st.Condition)
		r.stmts(st.Then)
		r.stmts(st.Else)
	case *ast.NumberForStmt:
		st.Init = r.expr(st.Init)
		st.Limit = r.expr(st.Limit)
		st.Step = r.expr(st.Step)
		r.stmts(st.Stmts)
	case *ast.GenericForStmt:
		r.exprs(st.Exprs)
		r.stmts(st.Stmts)
	case *ast.FuncDefStmt:
		if st.Func != nil {
			r.stmts(st.Func.Stmts)
		}
	case *ast.ReturnStmt:
		r.exprs(st.Exprs)
	}
	return s
}

// store replaces indexed assignment targets with calls to the store global.
func (r *sizeRewriter) store(st *ast.AssignStmt) ast.Stmt {
	indexed := false
	for _, l := range st.Lhs {
		if _, ok := l.(*ast.AttrGetExpr); ok {
			indexed = true
			break
		}
	}
	if !indexed {
		return st
	}
	if len(st.Lhs) == 1 && len(st.Rhs) == 1 {
		return storeStmt(st, st.Lhs[0].(*ast.AttrGetExpr), st.Rhs[0])
	}

	names := make([]string, len(st.Lhs))
	for i := range names {
		r.temps++
		names[i] = fmt.Sprintf("\x00v%d", r.temps)
	}
	local := &ast.LocalAssignStmt{Names: names, Exprs: st.Rhs}
	place(local, st)
	block := &ast.DoBlockStmt{Stmts: []ast.Stmt{local}}
	place(block, st)
	for i, l := range st.Lhs {
		val := ident(names[i], st)
		if get, ok := l.(*ast.AttrGetExpr); ok {
			block.Stmts = append(block.Stmts, storeStmt(st, get, val))
			continue
		}
		a := &ast.AssignStmt{Lhs: []ast.Expr{l}, Rhs: []ast.Expr{val}}
		place(a, st)
		block.Stmts = append(block.Stmts, a)
	}
	return block
}

func (r *sizeRewriter) exprs(list []ast.Expr) {
	for i, e := range list {
		list[i] = r.expr(e)
	}
}

func (r *sizeRewriter) expr(e ast.Expr) ast.Expr {
	switch ex := e.(type) {
	case nil:
		return nil
	case *ast.StringConcatOpExpr:
		if r.strings {
			call := &ast.FuncCallExpr{
				Func:      ident(concatGlobal, ex),
				Args:      r.operands(ex, nil),
				AdjustRet: true,
			}
			place(call, ex)
			return call
		}
		ex.Lhs = r.expr(ex.Lhs)
		ex.Rhs = r.expr(ex.Rhs)
	case *ast.AttrGetExpr:
		ex.Object = r.expr(ex.Object)
		ex.Key = r.expr(ex.Key)
	case *ast.TableExpr:
		for _, f := range ex.Fields {
			f.Key = r.expr(f.Key)
			f.Value = r.expr(f.Value)
		}
		if r.tables && openEnded(ex) {
			call := &ast.FuncCallExpr{
				Func:      ident(tableGlobal, ex),
				Args:      []ast.Expr{ex},
				AdjustRet: true,
			}
			place(call, ex)
			return call
		}
	case *ast.FuncCallExpr:
		ex.Func = r.expr(ex.Func)
		ex.Receiver = r.expr(ex.Receiver)
		r.exprs(ex.Args)
	case *ast.LogicalOpExpr:
		ex.Lhs = r.expr(ex.Lhs)
		ex.Rhs = r.expr(ex.Rhs)
	case *ast.RelationalOpExpr:
		ex.Lhs = r.expr(ex.Lhs)
		ex.Rhs = r.expr(ex.Rhs)
	case *ast.ArithmeticOpExpr:
		ex.Lhs = r.expr(ex.Lhs)
		ex.Rhs = r.expr(ex.Rhs)
	case *ast.UnaryMinusOpExpr:
		ex.Expr = r.expr(ex.Expr)
	case *ast.UnaryNotOpExpr:
		ex.Expr = r.expr(ex.Expr)
	case *ast.UnaryLenOpExpr:
		ex.Expr = r.expr(ex.Expr)
	case *ast.FunctionExpr:
		r.stmts(ex.Stmts)
	}
	return e
}

// operands flattens a concatenation chain left to right. Each operand is
// truncated to one value, as the operator does.
func (r *sizeRewriter) operands(e ast.Expr, out []ast.Expr) []ast.Expr {
	if c, ok := e.(*ast.StringConcatOpExpr); ok {
		out = r.operands(c.Lhs, out)
		return r.operands(c.Rhs, out)
	}
	e = r.expr(e)
	switch ex := e.(type) {
	case *ast.FuncCallExpr:
		ex.AdjustRet = true
	case *ast.Comma3Expr:
		ex.AdjustRet = true
	}
	return append(out, e)
}

// openEnded reports whether a constructor ends in a positional call or
// vararg, whose value count is only known at run time.
func openEnded(t *ast.TableExpr) bool {
	if len(t.Fields) == 0 {
		return false
	}
	last := t.Fields[len(t.Fields)-1]
	if last.Key != nil {
		return false
	}
	switch ex := last.Value.(type) {
	case *ast.FuncCallExpr:
		return !ex.AdjustRet
	case *ast.Comma3Expr:
		return !ex.AdjustRet
	}
	return false
}

func storeStmt(at ast.PositionHolder, target *ast.AttrGetExpr, value ast.Expr) ast.Stmt {
	call := &ast.FuncCallExpr{
		Func: ident(storeGlobal, at),
		Args: []ast.Expr{target.Object, target.Key, value},
	}
	place(call, at)
	st := &ast.FuncCallStmt{Expr: call}
	place(st, at)
	return st
}

func ident(name string, at ast.PositionHolder) *ast.IdentExpr {
	id := &ast.IdentExpr{Value: name}
	place(id, at)
	return id
}

func place(n, at ast.PositionHolder) {
	n.SetLine(at.Line())
	n.SetLastLine(at.LastLine())
}

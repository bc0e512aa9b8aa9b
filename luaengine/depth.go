package luaengine

import (
	"fmt"

	"github.com/yuin/gopher-lua/ast"
)

// depthChecker rejects chunks whose block or expression nesting exceeds limit.
type depthChecker struct {
	limit int
	err   error
}

// checkDepth walks chunk and returns an error naming the first line that
// nests deeper than limit. A non-positive limit disables the check.
func checkDepth(chunk []ast.Stmt, limit int) error {
	if limit <= 0 {
		return nil
	}
	d := &depthChecker{limit: limit}
	d.stmts(chunk, 0)
	return d.err
}

func (d *depthChecker) enter(depth int, line int) bool {
	if d.err != nil {
		return false
	}
	if depth > d.limit {
		d.err = fmt.Errorf("line %d: nesting exceeds maximum depth (%d)", line, d.limit)
		return false
	}
	return true
}

func (d *depthChecker) stmts(list []ast.Stmt, depth int) {
	for _, s := range list {
		d.stmt(s, depth)
	}
}

func (d *depthChecker) stmt(s ast.Stmt, depth int) {
	if !d.enter(depth, s.Line()) {
		return
	}
	next := depth + 1
	switch st := s.(type) {
	case *ast.AssignStmt:
		d.exprs(st.Lhs, next)
		d.exprs(st.Rhs, next)
	case *ast.LocalAssignStmt:
		d.exprs(st.Exprs, next)
	case *ast.FuncCallStmt:
		d.expr(st.Expr, next)
	case *ast.DoBlockStmt:
		d.stmts(st.Stmts, next)
	case *ast.WhileStmt:
		d.expr(st.Condition, next)
		d.stmts(st.Stmts, next)
	case *ast.RepeatStmt:
		d.expr(st.Condition, next)
		d.stmts(st.Stmts, next)
	case *ast.IfStmt:
		d.expr(st.Condition, next)
		d.stmts(st.Then, next)
		// elseif chains are nested IfStmts in Else; keep them at this depth
		d.stmts(st.Else, depth)
	case *ast.NumberForStmt:
		d.expr(st.Init, next)
		d.expr(st.Limit, next)
		if st.Step != nil {
			d.expr(st.Step, next)
		}
		d.stmts(st.Stmts, next)
	case *ast.GenericForStmt:
		d.exprs(st.Exprs, next)
		d.stmts(st.Stmts, next)
	case *ast.FuncDefStmt:
		if st.Func != nil {
			d.stmts(st.Func.Stmts, next)
		}
	case *ast.ReturnStmt:
		d.exprs(st.Exprs, next)
	}
}

func (d *depthChecker) exprs(list []ast.Expr, depth int) {
	for _, e := range list {
		d.expr(e, depth)
	}
}

func (d *depthChecker) expr(e ast.Expr, depth int) {
	if e == nil || !d.enter(depth, e.Line()) {
		return
	}
	next := depth + 1
	switch ex := e.(type) {
	case *ast.AttrGetExpr:
		d.expr(ex.Object, next)
		d.expr(ex.Key, next)
	case *ast.TableExpr:
		for _, f := range ex.Fields {
			d.expr(f.Key, next)
			d.expr(f.Value, next)
		}
	case *ast.FuncCallExpr:
		d.expr(ex.Func, next)
		d.expr(ex.Receiver, next)
		d.exprs(ex.Args, next)
	case *ast.LogicalOpExpr:
		d.expr(ex.Lhs, next)
		d.expr(ex.Rhs, next)
	case *ast.RelationalOpExpr:
		d.expr(ex.Lhs, next)
		d.expr(ex.Rhs, next)
	case *ast.ArithmeticOpExpr:
		d.expr(ex.Lhs, next)
		d.expr(ex.Rhs, next)
	case *ast.StringConcatOpExpr:
		d.expr(ex.Lhs, next)
		d.expr(ex.Rhs, next)
	case *ast.UnaryMinusOpExpr:
		d.expr(ex.Expr, next)
	case *ast.UnaryNotOpExpr:
		d.expr(ex.Expr, next)
	case *ast.UnaryLenOpExpr:
		d.expr(ex.Expr, next)
	case *ast.FunctionExpr:
		d.stmts(ex.Stmts, next)
	}
}

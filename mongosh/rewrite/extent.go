package rewrite

import (
	"github.com/dop251/goja/ast"
)

// span is a half-open byte range into the source.
type span struct {
	start, end int
}

// extents computes node byte ranges. goja has no node for parenthesized
// expressions and derives most composite ranges from their children, so a
// node like (a, b).c would otherwise start at "a" instead of "(".
type extents struct {
	src string
}

func (x extents) start(n ast.Node) int {
	switch n := n.(type) {
	case *ast.DotExpression:
		return x.wrapped(n.Left).start
	case *ast.BracketExpression:
		return x.wrapped(n.Left).start
	case *ast.PrivateDotExpression:
		return x.wrapped(n.Left).start
	case *ast.CallExpression:
		return x.wrapped(n.Callee).start
	case *ast.BinaryExpression:
		return x.wrapped(n.Left).start
	case *ast.AssignExpression:
		return x.wrapped(n.Left).start
	case *ast.ConditionalExpression:
		return x.wrapped(n.Test).start
	case *ast.SequenceExpression:
		return x.wrapped(n.Sequence[0]).start
	case *ast.UnaryExpression:
		if n.Postfix {
			return x.wrapped(n.Operand).start
		}
	case *ast.TemplateLiteral:
		if n.Tag != nil {
			return x.wrapped(n.Tag).start
		}
	case *ast.OptionalChain:
		return x.start(n.Expression)
	case *ast.Optional:
		return x.start(n.Expression)
	case *ast.ExpressionStatement:
		return x.wrapped(n.Expression).start
	}
	return int(n.Idx0()) - 1
}

func (x extents) end(n ast.Node) int {
	switch n := n.(type) {
	case *ast.BinaryExpression:
		return x.wrapped(n.Right).end
	case *ast.AssignExpression:
		return x.wrapped(n.Right).end
	case *ast.ConditionalExpression:
		return x.wrapped(n.Alternate).end
	case *ast.SequenceExpression:
		return x.wrapped(n.Sequence[len(n.Sequence)-1]).end
	case *ast.UnaryExpression:
		operand := x.wrapped(n.Operand).end
		if n.Postfix {
			return x.skipSpace(operand) + 2
		}
		return operand
	case *ast.ArrowFunctionLiteral:
		if body, ok := n.Body.(*ast.ExpressionBody); ok {
			return x.wrapped(body.Expression).end
		}
	case *ast.YieldExpression:
		if n.Argument != nil {
			return x.wrapped(n.Argument).end
		}
	case *ast.AwaitExpression:
		return x.wrapped(n.Argument).end
	case *ast.OptionalChain:
		return x.end(n.Expression)
	case *ast.Optional:
		return x.end(n.Expression)
	case *ast.ExpressionStatement:
		return x.wrapped(n.Expression).end
	}
	return int(n.Idx1()) - 1
}

func (x extents) span(n ast.Node) span {
	return span{x.start(n), x.end(n)}
}

// wrapped widens the node's range over the parentheses enclosing exactly it.
func (x extents) wrapped(n ast.Node) span {
	s := x.span(n)
	for {
		before := x.skipSpaceBack(s.start)
		after := x.skipSpace(s.end)
		if before == 0 || after >= len(x.src) || x.src[before-1] != '(' || x.src[after] != ')' {
			return s
		}
		s = span{before - 1, after + 1}
	}
}

func (x extents) skipSpace(i int) int {
	for i < len(x.src) && isSpace(x.src[i]) {
		i++
	}
	return i
}

func (x extents) skipSpaceBack(i int) int {
	for i > 0 && isSpace(x.src[i-1]) {
		i--
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

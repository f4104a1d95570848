package rewrite

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
)

// walker visits every node of a program in post-order, turning member reads
// into accessor calls. Member expressions in write position are visited for
// their sub-expressions but keep their own syntax.
type walker struct {
	ed *editor
}

func (w *walker) statements(list []ast.Statement) {
	for _, s := range list {
		w.statement(s)
	}
}

func (w *walker) statement(s ast.Statement) {
	switch s := s.(type) {
	case nil:
	case *ast.ExpressionStatement:
		w.expr(s.Expression)
	case *ast.BlockStatement:
		w.block(s)
	case *ast.VariableStatement:
		w.bindings(s.List)
	case *ast.LexicalDeclaration:
		w.bindings(s.List)
	case *ast.FunctionDeclaration:
		w.function(s.Function)
	case *ast.ClassDeclaration:
		w.class(s.Class)
	case *ast.IfStatement:
		w.expr(s.Test)
		w.statement(s.Consequent)
		w.statement(s.Alternate)
	case *ast.ForStatement:
		w.forInit(s.Initializer)
		w.expr(s.Test)
		w.expr(s.Update)
		w.statement(s.Body)
	case *ast.ForInStatement:
		w.forInto(s.Into)
		w.expr(s.Source)
		w.statement(s.Body)
	case *ast.ForOfStatement:
		w.forInto(s.Into)
		w.expr(s.Source)
		w.statement(s.Body)
	case *ast.WhileStatement:
		w.expr(s.Test)
		w.statement(s.Body)
	case *ast.DoWhileStatement:
		w.statement(s.Body)
		w.expr(s.Test)
	case *ast.SwitchStatement:
		w.expr(s.Discriminant)
		for _, c := range s.Body {
			w.expr(c.Test)
			w.statements(c.Consequent)
		}
	case *ast.TryStatement:
		w.block(s.Body)
		if s.Catch != nil {
			w.target(s.Catch.Parameter)
			w.block(s.Catch.Body)
		}
		w.block(s.Finally)
	case *ast.ReturnStatement:
		w.expr(s.Argument)
	case *ast.ThrowStatement:
		w.expr(s.Argument)
	case *ast.LabelledStatement:
		w.statement(s.Statement)
	case *ast.WithStatement:
		w.expr(s.Object)
		w.statement(s.Body)
	}
}

func (w *walker) block(b *ast.BlockStatement) {
	if b != nil {
		w.statements(b.List)
	}
}

func (w *walker) bindings(list []*ast.Binding) {
	for _, b := range list {
		w.target(b.Target)
		w.expr(b.Initializer)
	}
}

func (w *walker) forInit(init ast.ForLoopInitializer) {
	switch init := init.(type) {
	case *ast.ForLoopInitializerExpression:
		w.expr(init.Expression)
	case *ast.ForLoopInitializerVarDeclList:
		w.bindings(init.List)
	case *ast.ForLoopInitializerLexicalDecl:
		w.bindings(init.LexicalDeclaration.List)
	}
}

func (w *walker) forInto(into ast.ForInto) {
	switch into := into.(type) {
	case *ast.ForIntoVar:
		w.bindings([]*ast.Binding{into.Binding})
	case *ast.ForDeclaration:
		w.target(into.Target)
	case *ast.ForIntoExpression:
		w.target(into.Expression)
	}
}

func (w *walker) function(f *ast.FunctionLiteral) {
	if f == nil {
		return
	}
	w.params(f.ParameterList)
	w.block(f.Body)
}

func (w *walker) params(p *ast.ParameterList) {
	if p == nil {
		return
	}
	w.bindings(p.List)
	w.target(p.Rest)
}

func (w *walker) class(c *ast.ClassLiteral) {
	if c == nil {
		return
	}
	w.expr(c.SuperClass)
	for _, el := range c.Body {
		switch el := el.(type) {
		case *ast.FieldDefinition:
			if el.Computed {
				w.expr(el.Key)
			}
			w.expr(el.Initializer)
		case *ast.MethodDefinition:
			if el.Computed {
				w.expr(el.Key)
			}
			w.function(el.Body)
		case *ast.ClassStaticBlock:
			w.block(el.Block)
		}
	}
}

func (w *walker) exprs(list []ast.Expression) {
	for _, e := range list {
		w.expr(e)
	}
}

// expr visits an expression in read position.
func (w *walker) expr(e ast.Expression) {
	switch e := e.(type) {
	case nil:
	case *ast.DotExpression:
		w.expr(e.Left)
		w.readMember(e, false)
	case *ast.BracketExpression:
		w.expr(e.Left)
		w.expr(e.Member)
		w.readMember(e, false)
	case *ast.PrivateDotExpression:
		w.expr(e.Left)
	case *ast.CallExpression:
		w.expr(e.Callee)
		w.exprs(e.ArgumentList)
	case *ast.NewExpression:
		switch callee := e.Callee.(type) {
		case *ast.DotExpression:
			w.expr(callee.Left)
			w.readMember(callee, true)
		case *ast.BracketExpression:
			w.expr(callee.Left)
			w.expr(callee.Member)
			w.readMember(callee, true)
		default:
			w.expr(e.Callee)
		}
		w.exprs(e.ArgumentList)
	case *ast.AssignExpression:
		w.target(e.Left)
		w.expr(e.Right)
	case *ast.UnaryExpression:
		switch e.Operator {
		case token.INCREMENT, token.DECREMENT, token.DELETE:
			w.target(e.Operand)
		default:
			w.expr(e.Operand)
		}
	case *ast.BinaryExpression:
		w.expr(e.Left)
		w.expr(e.Right)
	case *ast.ConditionalExpression:
		w.expr(e.Test)
		w.expr(e.Consequent)
		w.expr(e.Alternate)
	case *ast.SequenceExpression:
		w.exprs(e.Sequence)
	case *ast.ArrayLiteral:
		w.exprs(e.Value)
	case *ast.ObjectLiteral:
		for _, p := range e.Value {
			w.property(p)
		}
	case *ast.SpreadElement:
		w.expr(e.Expression)
	case *ast.TemplateLiteral:
		w.expr(e.Tag)
		w.exprs(e.Expressions)
	case *ast.FunctionLiteral:
		w.function(e)
	case *ast.ArrowFunctionLiteral:
		w.params(e.ParameterList)
		switch body := e.Body.(type) {
		case *ast.ExpressionBody:
			w.expr(body.Expression)
		case *ast.BlockStatement:
			w.block(body)
		}
	case *ast.ClassLiteral:
		w.class(e)
	case *ast.YieldExpression:
		w.expr(e.Argument)
	case *ast.AwaitExpression:
		w.expr(e.Argument)
	case *ast.OptionalChain:
		w.chain(e.Expression)
	case *ast.Optional:
		w.chain(e.Expression)
	case *ast.ObjectPattern, *ast.ArrayPattern:
		w.target(e)
	}
}

func (w *walker) property(p ast.Property) {
	switch p := p.(type) {
	case *ast.PropertyShort:
		w.expr(p.Initializer)
	case *ast.PropertyKeyed:
		if p.Computed {
			w.expr(p.Key)
		}
		w.expr(p.Value)
	case *ast.SpreadElement:
		w.expr(p.Expression)
	}
}

// target visits an expression in write position.
func (w *walker) target(e ast.Expression) {
	switch e := e.(type) {
	case nil, *ast.Identifier:
	case *ast.DotExpression:
		w.expr(e.Left)
	case *ast.BracketExpression:
		w.expr(e.Left)
		w.expr(e.Member)
	case *ast.ArrayPattern:
		for _, el := range e.Elements {
			w.target(el)
		}
		w.target(e.Rest)
	case *ast.ObjectPattern:
		for _, p := range e.Properties {
			switch p := p.(type) {
			case *ast.PropertyShort:
				w.expr(p.Initializer)
			case *ast.PropertyKeyed:
				if p.Computed {
					w.expr(p.Key)
				}
				w.target(p.Value)
			case *ast.SpreadElement:
				w.target(p.Expression)
			}
		}
		w.target(e.Rest)
	case *ast.AssignExpression:
		// default value inside a pattern
		w.target(e.Left)
		w.expr(e.Right)
	case *ast.SpreadElement:
		w.target(e.Expression)
	default:
		w.expr(e)
	}
}

// chain visits the links of an optional chain. The links stay member
// accesses so short-circuiting keeps working; arguments and computed keys
// are still read normally.
func (w *walker) chain(e ast.Expression) {
	switch e := e.(type) {
	case *ast.DotExpression:
		w.chain(e.Left)
	case *ast.BracketExpression:
		w.chain(e.Left)
		w.expr(e.Member)
	case *ast.CallExpression:
		w.chain(e.Callee)
		w.exprs(e.ArgumentList)
	case *ast.TemplateLiteral:
		w.chain(e.Tag)
		w.exprs(e.Expressions)
	case *ast.Optional:
		w.chain(e.Expression)
	default:
		w.expr(e)
	}
}

func (w *walker) readMember(e ast.Expression, paren bool) {
	var left ast.Expression
	var prop string
	switch e := e.(type) {
	case *ast.DotExpression:
		left = e.Left
		prop = quote(e.Identifier.Name.String())
	case *ast.BracketExpression:
		left = e.Left
		switch m := e.Member.(type) {
		case *ast.StringLiteral:
			prop = quote(m.Value.String())
		case *ast.SequenceExpression:
			prop = "(" + w.ed.text(w.ed.ext.wrapped(m)) + ")"
		default:
			prop = w.ed.text(w.ed.ext.wrapped(m))
		}
	default:
		return
	}
	if _, ok := left.(*ast.SuperExpression); ok {
		return
	}
	repl := AccessorName + "(" + w.ed.text(w.ed.ext.wrapped(left)) + ", " + prop + ")"
	if paren {
		repl = "(" + repl + ")"
	}
	w.ed.replace(w.ed.ext.span(e), repl)
}

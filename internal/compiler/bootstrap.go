package compiler

import (
	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/typesys"
)

// bootstrap populates the root environment exactly the way
// original_source/initCSTD.cpp sets up the global scope before compiling
// any user file (§4.1): the handful of libc bindings the language's
// runtime calls directly, the math module, and the built-in generic
// array[T] wrapper struct.
func (c *Compiler) bootstrap() {
	c.bootstrapCBindings()
	c.bootstrapMath()
	c.bootstrapArray()
}

// bootstrapCBindings declares the exact external C functions
// initCSTD.cpp binds at root scope: malloc, free, exit, printf, puts,
// usleep, memset, putchar.
func (c *Compiler) bootstrapCBindings() {
	r := c.Reg
	i64 := r.Primitive(typesys.Int64)
	i32 := r.Primitive(typesys.Int32)
	str := r.Primitive(typesys.StrPointer)
	ptr := r.Primitive(typesys.RawPointer)
	void := r.Primitive(typesys.Void)

	c.declareBuiltin("malloc", []typesys.Param{{Name: "size", Type: i64}}, ptr, false)
	c.declareBuiltin("free", []typesys.Param{{Name: "p", Type: ptr}}, void, false)
	c.declareBuiltin("exit", []typesys.Param{{Name: "code", Type: i32}}, void, false)
	c.declareBuiltin("printf", []typesys.Param{{Name: "fmt", Type: str}}, i32, true)
	c.declareBuiltin("puts", []typesys.Param{{Name: "s", Type: str}}, i32, false)
	c.declareBuiltin("usleep", []typesys.Param{{Name: "usec", Type: i64}}, i32, false)
	c.declareBuiltin("memset", []typesys.Param{{Name: "p", Type: ptr}, {Name: "v", Type: i32}, {Name: "n", Type: i64}}, ptr, false)
	c.declareBuiltin("putchar", []typesys.Param{{Name: "c", Type: i32}}, i32, false)
}

// bootstrapMath declares the math module's function list, taken verbatim
// from initCSTD.cpp: every entry is a plain double-in, double-out (or
// double,double-in for the two binary ones) C math.h binding.
func (c *Compiler) bootstrapMath() {
	f64 := c.Reg.Primitive(typesys.Float64)
	unary := []string{"sin", "cos", "tan", "sqrt", "log", "log2", "log10", "exp", "floor", "ceil", "fabs"}
	binary := []string{"pow", "atan2", "hypot"}

	math := environ.New("math")
	for _, name := range unary {
		c.addMathFn(math, name, []typesys.Param{{Name: "x", Type: f64}}, f64)
	}
	for _, name := range binary {
		c.addMathFn(math, name, []typesys.Param{{Name: "x", Type: f64}, {Name: "y", Type: f64}}, f64)
	}
	c.Root.Add(&environ.Record{Kind: environ.RecordModule, Name: "math", Module: math})
}

// addMathFn declares one math.h binding on the module and registers it
// in the math module's own scope under its bare name (`sin`, etc.), which
// the root environment reaches through the `math` module record.
func (c *Compiler) addMathFn(math *environ.Environment, name string, params []typesys.Param, ret *typesys.Type) {
	paramStrs := make([]string, len(params))
	for i, p := range params {
		paramStrs[i] = p.Type.Backend()
	}
	c.builder.DeclareExternal(name, ret.Backend(), paramStrs, false)
	fn := &typesys.Function{Name: name, Mangled: name, Params: params, ReturnType: ret, HasBody: false}
	math.Add(&environ.Record{Kind: environ.RecordFunction, Name: name, Func: fn})
}

// declareBuiltin both emits an external declaration on the module and
// registers a matching RecordFunction in the root environment, the two
// halves of wiring a C binding into scope (§4.1).
func (c *Compiler) declareBuiltin(name string, params []typesys.Param, ret *typesys.Type, variadic bool) {
	paramStrs := make([]string, len(params))
	for i, p := range params {
		paramStrs[i] = p.Type.Backend()
	}
	retBackend := "void"
	if !ret.IsVoid() {
		retBackend = ret.Backend()
	}
	c.builder.DeclareExternal(name, retBackend, paramStrs, variadic)
	fn := &typesys.Function{Name: name, Mangled: name, Params: params, ReturnType: ret, Variadic: variadic, HasBody: false}
	c.Root.Add(&environ.Record{Kind: environ.RecordFunction, Name: name, Func: fn})
}

// bootstrapArray synthesizes the built-in array[T] struct of §4.1:
// fields {data: raw_array[T], len: int} and a bounds-checked __index__
// that prints a diagnostic and exits with status 1 on out-of-range
// access instead of raising (§4.6's Raise is not implemented — see
// SPEC_FULL.md). It is registered as an ordinary generic-struct template,
// so a call site like `array[int]` instantiates it through the same
// Generic Instantiator path (§4.7) any user-defined generic struct goes
// through.
func (c *Compiler) bootstrapArray() {
	tmpl := arrayTemplate()
	c.Root.Add(&environ.Record{
		Kind: environ.RecordGenericStructTemplate, Name: tmpl.Name,
		Template: tmpl, CapturingEnv: c.Root, GenericParams: tmpl.Generics,
	})
}

func arrayTemplate() *ast.StructStatement {
	const elemParam = "T"

	selfField := func(name string) ast.Expression {
		return &ast.InfixExpression{Operator: ".", Left: &ast.Identifier{Name: "self"}, Right: &ast.Identifier{Name: name}}
	}
	outOfBounds := func(cond ast.Expression) ast.Statement {
		return &ast.IfElse{
			Condition: cond,
			Then: &ast.BlockStatement{Statements: []ast.Statement{
				&ast.ExpressionStatement{Expr: &ast.CallExpression{
					Callee: &ast.Identifier{Name: "printf"},
					Args:   []ast.Expression{&ast.StringLiteral{Value: "array index out of bounds\n"}},
				}},
				&ast.ExpressionStatement{Expr: &ast.CallExpression{
					Callee: &ast.Identifier{Name: "exit"},
					Args:   []ast.Expression{&ast.IntegerLiteral{Value: 1}},
				}},
			}},
		}
	}

	return &ast.StructStatement{
		Name:     "array",
		Generics: []string{elemParam},
		Fields: []ast.Param{
			{Name: "data", Type: ast.TypeNode{Name: "raw_array", Generics: []ast.TypeNode{{Name: elemParam}}}},
			{Name: "len", Type: ast.TypeNode{Name: "int"}},
		},
		Methods: []*ast.FunctionStatement{{
			Name:   "__index__",
			Params: []ast.Param{{Name: "i", Type: ast.TypeNode{Name: "int"}}},
			Return: &ast.TypeNode{Name: elemParam},
			Body: &ast.BlockStatement{Statements: []ast.Statement{
				outOfBounds(&ast.InfixExpression{Left: &ast.Identifier{Name: "i"}, Operator: "<", Right: &ast.IntegerLiteral{Value: 0}}),
				outOfBounds(&ast.InfixExpression{Left: &ast.Identifier{Name: "i"}, Operator: ">=", Right: selfField("len")}),
				&ast.Return{Value: &ast.IndexExpression{Left: selfField("data"), Index: &ast.Identifier{Name: "i"}}},
			}},
		}},
	}
}

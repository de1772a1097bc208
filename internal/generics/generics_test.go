package generics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/diag"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/resolve"
	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/typesys"
)

// countingBody counts how many times a body was actually compiled, so
// tests can distinguish "returned the cached instance" from "recompiled".
type countingBody struct{ calls int }

func (c *countingBody) CompileFunctionBody(fn *ast.FunctionStatement, env *environ.Environment, b *ssa.Builder, mangled string, returnType *typesys.Type) *diag.Diagnostic {
	c.calls++
	return nil
}

func (c *countingBody) CompileMethodBody(fn *ast.FunctionStatement, env *environ.Environment, b *ssa.Builder, mangled string, returnType *typesys.Type, selfType *typesys.Type) *diag.Diagnostic {
	c.calls++
	return nil
}

func idTemplate() *environ.Record {
	capturing := environ.New("root")
	fn := &ast.FunctionStatement{
		Name:     "id",
		Generics: []string{"T"},
		Params:   []ast.Param{{Name: "x", Type: ast.TypeNode{Name: "T"}}},
		Return:   &ast.TypeNode{Name: "T"},
		Body:     &ast.BlockStatement{Statements: []ast.Statement{&ast.Return{Value: &ast.Identifier{Name: "x"}}}},
	}
	return &environ.Record{
		Kind: environ.RecordGenericFunctionTemplate, Name: "id",
		Template: fn, CapturingEnv: capturing, GenericParams: fn.Generics,
	}
}

// TestInstantiateFunctionMemoizesPerArgumentTuple implements the §8
// round-trip property: "Instantiating a generic with the same argument
// tuple twice produces the same monomorphic symbol."
func TestInstantiateFunctionMemoizesPerArgumentTuple(t *testing.T) {
	reg := typesys.NewRegistry()
	resolver := resolve.New(reg, nil, "main.gc")
	body := &countingBody{}
	mod := ssa.NewModule("main")
	b := ssa.NewBuilder(mod)
	inst := New(reg, resolver, body, b, "main.gc")

	tmpl := idTemplate()
	i64 := reg.Primitive(typesys.Int64)

	fn1, d := inst.InstantiateFunction(tmpl, []*typesys.Type{i64})
	require.Nil(t, d)
	fn2, d := inst.InstantiateFunction(tmpl, []*typesys.Type{i64})
	require.Nil(t, d)

	assert.Same(t, fn1, fn2, "same argument tuple must return the cached instance")
	assert.Equal(t, 1, body.calls, "the body must be compiled exactly once across both calls")
	assert.Equal(t, "id__int", fn1.Mangled)
}

// A different argument tuple must produce a distinct instance and compile
// a fresh body, scoped separately from the int instantiation.
func TestInstantiateFunctionDistinguishesArgumentTuples(t *testing.T) {
	reg := typesys.NewRegistry()
	resolver := resolve.New(reg, nil, "main.gc")
	body := &countingBody{}
	mod := ssa.NewModule("main")
	b := ssa.NewBuilder(mod)
	inst := New(reg, resolver, body, b, "main.gc")

	tmpl := idTemplate()
	i64 := reg.Primitive(typesys.Int64)
	f64 := reg.Primitive(typesys.Float64)

	fnInt, d := inst.InstantiateFunction(tmpl, []*typesys.Type{i64})
	require.Nil(t, d)
	fnFloat, d := inst.InstantiateFunction(tmpl, []*typesys.Type{f64})
	require.Nil(t, d)

	assert.NotEqual(t, fnInt.Mangled, fnFloat.Mangled)
	assert.Equal(t, 2, body.calls)
}

// A body-less (declaration-only) generic template must register a symbol
// without invoking the body compiler at all — the Open Question §9/
// DESIGN.md resolve this way.
func TestInstantiateFunctionDeclarationOnlySkipsBody(t *testing.T) {
	reg := typesys.NewRegistry()
	resolver := resolve.New(reg, nil, "main.gc")
	body := &countingBody{}
	mod := ssa.NewModule("main")
	b := ssa.NewBuilder(mod)
	inst := New(reg, resolver, body, b, "main.gc")

	capturing := environ.New("root")
	fn := &ast.FunctionStatement{
		Name:     "id",
		Generics: []string{"T"},
		Params:   []ast.Param{{Name: "x", Type: ast.TypeNode{Name: "T"}}},
		Return:   &ast.TypeNode{Name: "T"},
		Body:     nil,
	}
	tmpl := &environ.Record{
		Kind: environ.RecordGenericFunctionTemplate, Name: "id",
		Template: fn, CapturingEnv: capturing, GenericParams: fn.Generics,
	}

	i64 := reg.Primitive(typesys.Int64)
	result, d := inst.InstantiateFunction(tmpl, []*typesys.Type{i64})
	require.Nil(t, d)
	assert.False(t, result.HasBody)
	assert.Equal(t, 0, body.calls)
}

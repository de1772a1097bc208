package overload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/typesys"
)

func newEngine() (*Engine, *typesys.Registry, *ssa.Builder) {
	reg := typesys.NewRegistry()
	mod := ssa.NewModule("test")
	b := ssa.NewBuilder(mod)
	return New(b, nil, "main.gc"), reg, b
}

func TestResolveCallPicksFirstFullMatch(t *testing.T) {
	e, reg, _ := newEngine()
	i64 := reg.Primitive(typesys.Int64)
	i32 := reg.Primitive(typesys.Int32)

	exact := &environ.Record{Kind: environ.RecordFunction, Name: "f", Func: &typesys.Function{
		Params: []typesys.Param{{Type: i32}},
	}}
	convertible := &environ.Record{Kind: environ.RecordFunction, Name: "f", Func: &typesys.Function{
		Params: []typesys.Param{{Type: i64}},
	}}

	rec, rejected := e.ResolveCall([]*environ.Record{convertible, exact}, []*typesys.Type{i32})
	require.NotNil(t, rec)
	assert.Same(t, convertible, rec)
	assert.Nil(t, rejected)
}

func TestResolveCallReportsMismatchMatrix(t *testing.T) {
	e, reg, _ := newEngine()
	i64 := reg.Primitive(typesys.Int64)
	strT := reg.Primitive(typesys.StrPointer)

	cand := &environ.Record{Kind: environ.RecordFunction, Name: "f", Func: &typesys.Function{
		Params: []typesys.Param{{Type: i64}},
	}}
	rec, rejected := e.ResolveCall([]*environ.Record{cand}, []*typesys.Type{strT})
	assert.Nil(t, rec)
	require.Len(t, rejected, 1)
	assert.Equal(t, []int{0}, rejected[0].Mismatch)
}

func TestConvertInsertsSExtForWidening(t *testing.T) {
	e, reg, b := newEngine()
	b.BeginFunction("f", "i64", nil, false)
	b.SetInsertBlock(b.AppendBlock("entry"))

	i32 := reg.Primitive(typesys.Int32)
	i64 := reg.Primitive(typesys.Int64)
	v, d := e.Convert("%1", i32, i64, nil, ast.Span{})
	require.Nil(t, d)
	assert.NotEmpty(t, v)
	assert.Contains(t, b.CurrentBlock().Instructions[0], "sext")
}

func TestConvertNumericToBoolIsUnimplemented(t *testing.T) {
	e, reg, b := newEngine()
	b.BeginFunction("f", "i1", nil, false)
	b.SetInsertBlock(b.AppendBlock("entry"))

	i64 := reg.Primitive(typesys.Int64)
	boolT := reg.Primitive(typesys.Bool)
	_, d := e.Convert("%1", i64, boolT, nil, ast.Span{})
	require.NotNil(t, d)
	assert.Equal(t, "UNIMPLEMENTED", string(d.Code))
}

func TestCommonTypeWidensNarrowerOperand(t *testing.T) {
	e, reg, _ := newEngine()
	i32 := reg.Primitive(typesys.Int32)
	i64 := reg.Primitive(typesys.Int64)
	assert.True(t, e.CommonType(i32, i64).Equal(i64))
	assert.True(t, e.CommonType(i64, i32).Equal(i64))
}

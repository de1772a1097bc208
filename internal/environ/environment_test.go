package environ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/gigglyc/internal/typesys"
)

func TestLookupWalksParentChain(t *testing.T) {
	reg := typesys.NewRegistry()
	root := New("root")
	root.Add(&Record{Kind: RecordVariable, Name: "g", VarType: reg.Primitive(typesys.Int64)})

	child := root.NewChild("fn")
	assert.True(t, child.IsVariable("g"))
	assert.Nil(t, child.LookupLocal("g"))
	assert.NotNil(t, child.Lookup("g"))
}

func TestAddDeduplicatesIdenticalSignature(t *testing.T) {
	reg := typesys.NewRegistry()
	env := New("root")
	fn := &typesys.Function{Name: "f", Params: []typesys.Param{{Name: "x", Type: reg.Primitive(typesys.Int64)}}}
	env.Add(&Record{Kind: RecordFunction, Name: "f", Func: fn})
	env.Add(&Record{Kind: RecordFunction, Name: "f", Func: fn})
	require.Len(t, env.LookupLocal("f"), 1)

	fn2 := &typesys.Function{Name: "f", Params: []typesys.Param{{Name: "x", Type: reg.Primitive(typesys.Float64)}}}
	env.Add(&Record{Kind: RecordFunction, Name: "f", Func: fn2})
	require.Len(t, env.LookupLocal("f"), 2)
}

func TestFindFunctionStrictVsConvertible(t *testing.T) {
	reg := typesys.NewRegistry()
	env := New("root")
	fn := &typesys.Function{Name: "f", Params: []typesys.Param{{Name: "x", Type: reg.Primitive(typesys.Int64)}}}
	env.Add(&Record{Kind: RecordFunction, Name: "f", Func: fn})

	canConvert := func(from, to *typesys.Type) bool {
		return typesys.CanConvert(from, to, nil)
	}

	rec := env.FindFunction("f", []*typesys.Type{reg.Primitive(typesys.Int32)}, true, canConvert)
	assert.Nil(t, rec, "strict mode must reject a convertible-but-not-equal argument")

	rec = env.FindFunction("f", []*typesys.Type{reg.Primitive(typesys.Int32)}, false, canConvert)
	require.NotNil(t, rec)
	assert.Equal(t, "f", rec.Name)
}

func TestFindFunctionVariadicMatchesTail(t *testing.T) {
	reg := typesys.NewRegistry()
	env := New("root")
	fn := &typesys.Function{
		Name:     "printf",
		Params:   []typesys.Param{{Name: "fmt", Type: reg.Primitive(typesys.StrPointer)}},
		Variadic: true,
	}
	env.Add(&Record{Kind: RecordFunction, Name: "printf", Func: fn})

	rec := env.FindFunction("printf", []*typesys.Type{
		reg.Primitive(typesys.StrPointer),
		reg.Primitive(typesys.Int64),
		reg.Primitive(typesys.Float64),
	}, true, nil)
	require.NotNil(t, rec)
}

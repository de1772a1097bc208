package typesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversionLattice(t *testing.T) {
	reg := NewRegistry()
	i32 := reg.Primitive(Int32)
	i64 := reg.Primitive(Int64)
	u32 := reg.Primitive(Uint32)
	u64 := reg.Primitive(Uint64)
	f32 := reg.Primitive(Float32)
	f64 := reg.Primitive(Float64)
	b := reg.Primitive(Bool)

	cases := []struct {
		name          string
		from, to      *Type
		wantConvert   bool
		wantWidens    bool
	}{
		{"int32->int64 widens", i32, i64, true, true},
		{"uint32->uint64 widens", u32, u64, true, true},
		{"uint32->int64 widens", u32, i64, true, true},
		{"int64->int32 truncates", i64, i32, true, false},
		{"uint64->uint32 truncates", u64, u32, true, false},
		{"float32->float64 widens", f32, f64, true, true},
		{"float64->float32 narrows", f64, f32, true, false},
		{"float->int narrows", f64, i32, true, false},
		{"bool->numeric widens", b, i64, true, true},
		{"numeric->bool convertible but not implemented", i64, b, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantConvert, CanConvert(tc.from, tc.to, nil))
			if tc.wantConvert {
				assert.Equal(t, tc.wantWidens, Widens(tc.from, tc.to))
			}
		})
	}
}

func TestConvertNumericToBoolIsUnimplementedKind(t *testing.T) {
	reg := NewRegistry()
	kind := Convert(reg.Primitive(Int64), reg.Primitive(Bool), nil)
	assert.Equal(t, ConvNumericToBool, kind)
}

func TestStructEqualityByNameAndGenericArgs(t *testing.T) {
	reg := NewRegistry()
	intT := reg.Primitive(Int64)
	strT := reg.Primitive(StrPointer)

	boxInt := reg.NewStructType("Box", []Field{{Name: "v", Type: intT}}, []*Type{intT})
	boxIntAgain := reg.NewStructType("Box", []Field{{Name: "v", Type: intT}}, []*Type{intT})
	boxStr := reg.NewStructType("Box", []Field{{Name: "v", Type: strT}}, []*Type{strT})

	assert.True(t, boxInt.Equal(boxIntAgain))
	assert.False(t, boxInt.Equal(boxStr))
}

func TestAutocastConversion(t *testing.T) {
	reg := NewRegistry()
	fromT := reg.NewStructType("Celsius", nil, nil)
	toT := reg.Primitive(Float64)

	lookup := func(from, to *Type) bool {
		return from.StructName == "Celsius" && to.Equal(reg.Primitive(Float64))
	}
	assert.True(t, CanConvert(fromT, toT, lookup))
	assert.Equal(t, ConvAutocast, Convert(fromT, toT, lookup))
}

package typesys

// ConvKind tags how a conversion must be emitted, matching the list in
// §4.4's "convert(value, from, to)" paragraph.
type ConvKind int

const (
	ConvNone ConvKind = iota
	ConvSExt
	ConvZExt
	ConvTrunc
	ConvIntToFloat
	ConvFloatToInt
	ConvFloatExt
	ConvFloatTrunc
	ConvBoolToNumeric
	ConvNumericToBool // canConvert=yes but NOT IMPLEMENTED (§4.4, §9)
	ConvAutocast
)

// CanConvert implements the §4.4 "canConvert" relation. autocastLookup is
// consulted for the struct-with-autocast-method row of the table; it may
// be nil when the caller only cares about numeric/bool conversions.
func CanConvert(from, to *Type, autocastLookup func(from, to *Type) bool) bool {
	return classify(from, to, autocastLookup) != (convClass{})
}

// Widens implements the §4.4 "widens?" column, used to pick which operand
// of a mixed-type binary expression gets coerced (§4.5 "common-type
// coercion").
func Widens(from, to *Type) bool {
	c := classify(from, to, nil)
	return c.kind != ConvNone && c.widens
}

// Convert returns the ConvKind needed to turn a `from`-typed value into a
// `to`-typed one, or ConvNone if from==to. Returns ConvKind(-1) when no
// conversion exists.
func Convert(from, to *Type, autocastLookup func(from, to *Type) bool) ConvKind {
	c := classify(from, to, autocastLookup)
	if c.kind == ConvNone && !from.Equal(to) {
		return ConvKind(-1)
	}
	return c.kind
}

type convClass struct {
	kind   ConvKind
	widens bool
}

func classify(from, to *Type, autocastLookup func(from, to *Type) bool) convClass {
	if from.Equal(to) {
		return convClass{kind: ConvNone}
	}
	if from == nil || to == nil {
		return convClass{}
	}

	if from.Kind == KindPrimitive && to.Kind == KindPrimitive {
		f, t := from.Prim, to.Prim

		if f == Bool && t != Bool {
			return convClass{kind: ConvBoolToNumeric, widens: true}
		}
		if f != Bool && t == Bool {
			// canConvert=yes but emission is not implemented (§4.4).
			return convClass{kind: ConvNumericToBool, widens: false}
		}

		switch {
		case f.IsInteger() && t.IsInteger():
			return classifyIntToInt(f, t)
		case f.IsFloat() && t.IsFloat():
			return classifyFloatToFloat(f, t)
		case f.IsInteger() && t.IsFloat():
			return classifyIntToFloat(f, t)
		case f.IsFloat() && t.IsInteger():
			return convClass{kind: ConvFloatToInt, widens: false}
		}
		return convClass{}
	}

	if from.Kind == KindStruct && autocastLookup != nil && autocastLookup(from, to) {
		return convClass{kind: ConvAutocast, widens: false}
	}

	return convClass{}
}

func classifyIntToInt(f, t Primitive) convClass {
	widens := false
	switch {
	case f == Int32 && t == Int64:
		widens = true
	case f == Uint32 && (t == Uint64 || t == Int64):
		widens = true
	case f == Int64 && t == Int32:
		widens = false
	case f == Uint64 && t == Uint32:
		widens = false
	default:
		// Any other integer pair (e.g. Int8 <-> Int32) still converts;
		// widen iff the destination is strictly larger.
		widens = t.Width() > f.Width()
	}
	kind := ConvZExt
	if f.Width() > t.Width() {
		kind = ConvTrunc
	} else if f.Width() < t.Width() {
		if f.IsUnsigned() {
			kind = ConvZExt
		} else {
			kind = ConvSExt
		}
	} else {
		kind = ConvZExt
	}
	return convClass{kind: kind, widens: widens}
}

func classifyFloatToFloat(f, t Primitive) convClass {
	if f == Float32 && t == Float64 {
		return convClass{kind: ConvFloatExt, widens: true}
	}
	return convClass{kind: ConvFloatTrunc, widens: false}
}

func classifyIntToFloat(f, t Primitive) convClass {
	// "widens only for 32->64 combos listed above" (§4.4): int32/uint32 to
	// float64 counts as widening; everything else does not.
	widens := (f == Int32 || f == Uint32) && t == Float64
	return convClass{kind: ConvIntToFloat, widens: widens}
}

// Package overload implements the Overload & Conversion Engine of §4.4: it
// matches call-sites against candidate signatures, inserts implicit
// numeric conversions per the fixed precedence table, and drives
// operator-method (dunder) dispatch.
package overload

import (
	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/diag"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/typesys"
)

// AutocastLookup answers whether `from` has an autocast method producing
// `to`, consulted by the §4.4 conversion table's struct row. Implemented
// by the Value Resolver, which has access to struct method tables.
type AutocastLookup func(from, to *typesys.Type) bool

// Engine is the Overload & Conversion Engine.
type Engine struct {
	Builder  *ssa.Builder
	Autocast AutocastLookup
	File     string
}

func New(b *ssa.Builder, autocast AutocastLookup, file string) *Engine {
	return &Engine{Builder: b, Autocast: autocast, File: file}
}

// CanConvert implements §4.4's canConvert relation, including the
// struct-autocast row.
func (e *Engine) CanConvert(from, to *typesys.Type) bool {
	return typesys.CanConvert(from, to, e.Autocast)
}

// Convert inserts the conversion instruction needed to turn a value typed
// `from` into one typed `to`, returning the converted ssa.Value. Returns
// an "unimplemented" diagnostic for numeric->bool, matching §4.4/§9.
func (e *Engine) Convert(val ssa.Value, from, to *typesys.Type, method *typesys.Method, node ast.Span) (ssa.Value, *diag.Diagnostic) {
	kind := typesys.Convert(from, to, e.Autocast)
	switch kind {
	case typesys.ConvNone:
		return val, nil
	case typesys.ConvSExt:
		return e.Builder.CreateSExt(val, from.Backend(), to.Backend()), nil
	case typesys.ConvZExt:
		return e.Builder.CreateZExt(val, from.Backend(), to.Backend()), nil
	case typesys.ConvTrunc:
		return e.Builder.CreateTrunc(val, from.Backend(), to.Backend()), nil
	case typesys.ConvFloatExt:
		return e.Builder.CreateFPExt(val, from.Backend(), to.Backend()), nil
	case typesys.ConvFloatTrunc:
		return e.Builder.CreateFPTrunc(val, from.Backend(), to.Backend()), nil
	case typesys.ConvIntToFloat:
		if from.Prim.IsUnsigned() {
			return e.Builder.CreateUIToFP(val, from.Backend(), to.Backend()), nil
		}
		return e.Builder.CreateSIToFP(val, from.Backend(), to.Backend()), nil
	case typesys.ConvFloatToInt:
		if to.Prim.IsUnsigned() {
			return e.Builder.CreateFPToUI(val, from.Backend(), to.Backend()), nil
		}
		return e.Builder.CreateFPToSI(val, from.Backend(), to.Backend()), nil
	case typesys.ConvBoolToNumeric:
		if to.Kind == typesys.KindPrimitive && to.Prim.IsFloat() {
			return e.Builder.CreateUIToFP(val, from.Backend(), to.Backend()), nil
		}
		return e.Builder.CreateZExt(val, from.Backend(), to.Backend()), nil
	case typesys.ConvNumericToBool:
		return "", diag.New(diag.CodeNotImplemented, e.File, node.StartLine, node.StartCol, node.EndLine, node.EndCol,
			"conversion from %s to bool is not implemented", from)
	case typesys.ConvAutocast:
		if method == nil {
			return "", diag.New(diag.CodeInternal, e.File, node.StartLine, node.StartCol, node.EndLine, node.EndCol,
				"autocast conversion selected with no method bound")
		}
		return e.Builder.CreateCall(method.Fn.Mangled, to.Backend(), []ssa.Value{val}), nil
	default:
		return "", diag.New(diag.CodeWrongType, e.File, node.StartLine, node.StartCol, node.EndLine, node.EndCol,
			"cannot convert %s to %s", from, to)
	}
}

// CommonType implements §4.5's "common-type coercion": given two operand
// types meeting at an infix operator, returns which one the other must be
// coerced to, per the widens? column.
func (e *Engine) CommonType(lt, rt *typesys.Type) *typesys.Type {
	if lt.Equal(rt) {
		return lt
	}
	if typesys.Widens(lt, rt) {
		return rt
	}
	if typesys.Widens(rt, lt) {
		return lt
	}
	// Neither widens (e.g. int64 -> int32 is narrowing either way); keep
	// the left operand's type, matching the original compiler's
	// left-biased narrowing convert call order.
	return lt
}

// Candidate is one overload-resolution candidate, paired with its
// mismatch set for diagnostic reporting (§4.4, §6).
type Candidate struct {
	Record    *environ.Record
	Mismatch  []int
}

// ResolveCall implements §4.4's overload resolution: iterate candidates,
// pair positional arguments with parameters, accept equality or
// convertibility, and return the first fully-matching candidate. If none
// matches, returns every candidate's mismatch set for diagnostics.
func (e *Engine) ResolveCall(candidates []*environ.Record, argTypes []*typesys.Type) (*environ.Record, []Candidate) {
	var rejected []Candidate
	for _, rec := range candidates {
		fn := rec.Func
		if fn == nil {
			continue
		}
		if !fn.Variadic && len(fn.Params) != len(argTypes) {
			rejected = append(rejected, Candidate{Record: rec, Mismatch: allIndices(len(argTypes))})
			continue
		}
		if fn.Variadic && len(argTypes) < len(fn.Params) {
			rejected = append(rejected, Candidate{Record: rec, Mismatch: allIndices(len(argTypes))})
			continue
		}
		var mismatch []int
		for i := range fn.Params {
			if fn.Params[i].Type.Equal(argTypes[i]) {
				continue
			}
			if !e.CanConvert(argTypes[i], fn.Params[i].Type) {
				mismatch = append(mismatch, i)
			}
		}
		if len(mismatch) == 0 {
			return rec, nil
		}
		rejected = append(rejected, Candidate{Record: rec, Mismatch: mismatch})
	}
	return nil, rejected
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Dunder maps an infix operator to the method-dispatch name used for
// struct operands (§4.5).
var Dunder = map[string]string{
	"+": "__add__", "-": "__sub__", "*": "__mul__", "/": "__div__",
	"%": "__mod__", "**": "__pow__", "==": "__eq__", "!=": "__neq__",
	"<": "__lt__", ">": "__gt__", "<=": "__lte__", ">=": "__gte__",
}

// Package value implements the Value Resolver of §4.5: it lowers one
// expression node to an emitted SSA value (or, for module/type-level
// names, a handle carrying no value at all) and the type that value
// carries forward.
//
// Member access, array indexing, and struct construction all need the
// Type Resolver (to resolve field/parameter types) and the Generic
// Instantiator (to trigger monomorphization from a call site), and in
// turn the Overload Engine needs this package's struct-autocast lookup
// (§4.4's struct row). internal/compiler wires the resulting loop: this
// package imports resolve, overload and generics downward; the autocast
// closure internal/compiler assigns to the overload Engine's Autocast
// field is the only edge that points the other way, and it is a plain
// func value, not an import.
package value

import (
	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/diag"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/generics"
	"github.com/oxhq/gigglyc/internal/overload"
	"github.com/oxhq/gigglyc/internal/resolve"
	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/typesys"
)

// Resolved is what resolving one expression produces. Exactly one of the
// handle fields (ModuleEnv/StructType/GenericFunc/GenericStruct) is set
// for a name that names a module, type, or template rather than a value
// (§4.5 "return a typed handle with no ssa value"); otherwise Val (and,
// for an addressable result, Addr) carries the emitted value. A
// struct-typed field or raw_array element is returned by address only:
// Addr is set and Val is empty.
type Resolved struct {
	Val  ssa.Value
	Addr ssa.Value // non-empty when this result is an lvalue
	Type *typesys.Type

	ModuleEnv     *environ.Environment
	StructType    *typesys.Type
	GenericFunc   *environ.Record
	GenericStruct *environ.Record
}

// IsHandle reports whether r names a module/type/template rather than a
// value.
func (r *Resolved) IsHandle() bool {
	return r.ModuleEnv != nil || r.StructType != nil || r.GenericFunc != nil || r.GenericStruct != nil
}

// Resolver is the Value Resolver component.
type Resolver struct {
	Reg      *typesys.Registry
	Types    *resolve.Resolver
	Overload *overload.Engine
	Generics *generics.Instantiator
	Builder  *ssa.Builder
	File     string
}

func New(reg *typesys.Registry, types *resolve.Resolver, ovl *overload.Engine, gen *generics.Instantiator, b *ssa.Builder, file string) *Resolver {
	return &Resolver{Reg: reg, Types: types, Overload: ovl, Generics: gen, Builder: b, File: file}
}

// Autocast implements overload.AutocastLookup: `from` converts to `to` via
// autocast iff it is a struct carrying a method attributed `autocast`
// (taking only `self`) whose return type is `to`.
func (r *Resolver) Autocast(from, to *typesys.Type) bool {
	return r.findAutocastMethod(from, to) != nil
}

// findAutocastMethod looks up the autocast-attributed method on `from`
// that produces `to`, used both by Autocast (canConvert) and by call
// sites that need the method to actually emit the call (§4.4's convert
// table).
func (r *Resolver) findAutocastMethod(from, to *typesys.Type) *typesys.Method {
	if from == nil || from.Kind != typesys.KindStruct {
		return nil
	}
	for _, m := range from.Methods {
		if m.Fn.Autocast && len(m.Fn.Params) == 1 && m.Fn.ReturnType.Equal(to) {
			return m
		}
	}
	return nil
}

// Resolve dispatches on expression kind per §4.5.
func (r *Resolver) Resolve(expr ast.Expression, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	switch n := expr.(type) {
	case *ast.IntegerLiteral:
		return &Resolved{Val: r.Builder.ConstInt(n.Value), Type: r.Reg.Primitive(typesys.Int64)}, nil
	case *ast.FloatLiteral:
		return &Resolved{Val: r.Builder.ConstFloat(n.Value), Type: r.Reg.Primitive(typesys.Float64)}, nil
	case *ast.BooleanLiteral:
		return &Resolved{Val: r.Builder.ConstBool(n.Value), Type: r.Reg.Primitive(typesys.Bool)}, nil
	case *ast.StringLiteral:
		return &Resolved{Val: r.Builder.NewGlobalString(n.Value), Type: r.Reg.Primitive(typesys.StrPointer)}, nil
	case *ast.Identifier:
		return r.resolveIdentifierIn(n.Name, env, n.Span)
	case *ast.ArrayLiteral:
		return r.resolveArrayLiteral(n, env)
	case *ast.IndexExpression:
		return r.resolveIndex(n, env)
	case *ast.InfixExpression:
		return r.resolveInfix(n, env)
	case *ast.CallExpression:
		return r.resolveCall(n, env)
	default:
		sp := expr.Pos()
		return nil, diag.New(diag.CodeInternal, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "unhandled expression node")
	}
}

// resolveIdentifierIn looks up name in env, producing a load for a
// variable, a handle for a module/struct/generic template, or the
// nullptr sentinel (§4.5 "Identifier").
func (r *Resolver) resolveIdentifierIn(name string, env *environ.Environment, sp ast.Span) (*Resolved, *diag.Diagnostic) {
	if name == "nullptr" {
		return &Resolved{Val: r.Builder.ConstNullPtr(), Type: r.Reg.Primitive(typesys.NullPointer)}, nil
	}
	if rec := env.Variable(name); rec != nil {
		v := r.Builder.CreateLoad(rec.VarType.Backend(), rec.Address)
		return &Resolved{Val: v, Addr: rec.Address, Type: rec.VarType}, nil
	}
	if rec := env.ModuleRecord(name); rec != nil {
		return &Resolved{ModuleEnv: rec.Module}, nil
	}
	if rec := env.Struct(name); rec != nil {
		return &Resolved{StructType: rec.Struct}, nil
	}
	if rec := env.GenericFunctionTemplate(name); rec != nil {
		return &Resolved{GenericFunc: rec}, nil
	}
	if rec := env.GenericStructTemplate(name); rec != nil {
		return &Resolved{GenericStruct: rec}, nil
	}
	return nil, diag.New(diag.CodeUndefined, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "undefined name %q", name)
}

// resolveTypeArg recognizes expr as a type-valued call argument (a bare
// identifier naming a primitive or a concrete struct), used to split the
// leading type-argument prefix of a generic-struct call and the element
// type of `raw_array(T, n)` (§4.5 "Call expression"). ok is false when
// expr is an ordinary value argument, not a diagnostic condition.
func (r *Resolver) resolveTypeArg(expr ast.Expression, env *environ.Environment) (*typesys.Type, bool) {
	id, ok := expr.(*ast.Identifier)
	if !ok {
		return nil, false
	}
	if t, ok := resolve.PrimitiveByName(id.Name, r.Reg); ok {
		return t, true
	}
	if rec := env.Struct(id.Name); rec != nil {
		return rec.Struct, true
	}
	return nil, false
}

// resolveArrayLiteral implements §4.5's array-literal rule: every element
// must share one type (coerced via §4.4), allocated on the stack or via
// malloc when `new`-prefixed.
func (r *Resolver) resolveArrayLiteral(lit *ast.ArrayLiteral, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	if len(lit.Elements) == 0 {
		sp := lit.Pos()
		return nil, diag.New(diag.CodeWrongType, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "array literal must have at least one element")
	}
	elems := make([]*Resolved, len(lit.Elements))
	for i, e := range lit.Elements {
		res, d := r.Resolve(e, env)
		if d != nil {
			return nil, d
		}
		elems[i] = res
	}
	elemType := elems[0].Type
	vals := make([]ssa.Value, len(elems))
	vals[0] = elems[0].Val
	for i := 1; i < len(elems); i++ {
		v, d := r.convertElem(elems[i], elemType, lit.Pos())
		if d != nil {
			return nil, d
		}
		vals[i] = v
	}

	backend := elemType.Backend()
	n := len(vals)
	var base ssa.Value
	if lit.New {
		elemSize := r.sizeofBytes(backend)
		bytes := r.Builder.CreateMul(elemSize, r.Builder.ConstInt(int64(n)), "i64")
		base = r.Builder.CreateCall("malloc", "ptr", []ssa.Value{bytes})
	} else {
		base = r.Builder.CreateAlloca(arrayBackend(backend, n), "array-literal")
	}
	for i, v := range vals {
		addr := r.Builder.CreateGEP(backend, base, i)
		r.Builder.CreateStore(v, addr, false)
	}
	return &Resolved{Val: base, Type: r.Reg.RawArray(elemType)}, nil
}

// sizeofBytes computes the byte size of one value of backend type `ty` via
// the null-pointer GEP trick (§4.1 heap allocation: "malloc(bytes) with
// bytes = sizeof(T) * n"): index one element past a null pointer, then
// read the resulting offset back as an integer.
func (r *Resolver) sizeofBytes(ty string) ssa.Value {
	addr := r.Builder.CreateGEP(ty, r.Builder.ConstNullPtr(), 1)
	return r.Builder.CreatePtrToInt(addr, "i64")
}

func arrayBackend(elemBackend string, n int) string {
	return elemBackend + " x " + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (r *Resolver) convertElem(res *Resolved, to *typesys.Type, sp ast.Span) (ssa.Value, *diag.Diagnostic) {
	if res.Type.Equal(to) {
		return res.Val, nil
	}
	if !r.Overload.CanConvert(res.Type, to) {
		return "", diag.New(diag.CodeArrayElemType, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"array element type %s does not match %s", res.Type, to)
	}
	return r.ConvertTo(res, to, sp)
}

// ConvertTo converts an already-resolved value to `to`, looking up the
// autocast method on its own if the target doesn't already equal its
// type. Exported for internal/stmt, which needs the same conversion path
// for variable declarations and assignments.
func (r *Resolver) ConvertTo(res *Resolved, to *typesys.Type, sp ast.Span) (ssa.Value, *diag.Diagnostic) {
	if res.Type.Equal(to) {
		return res.Val, nil
	}
	return r.Overload.Convert(res.Val, res.Type, to, r.findAutocastMethod(res.Type, to), sp)
}

// resolveIndex implements §4.5's "Index expression": raw_array indexing
// emits a GEP (plus a load for non-struct elements), struct indexing
// dispatches to `__index__`.
func (r *Resolver) resolveIndex(idx *ast.IndexExpression, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	left, d := r.Resolve(idx.Left, env)
	if d != nil {
		return nil, d
	}
	sp := idx.Pos()
	switch {
	case left.Type != nil && left.Type.Kind == typesys.KindRawArray:
		index, d := r.Resolve(idx.Index, env)
		if d != nil {
			return nil, d
		}
		if !index.Type.Prim.IsInteger() {
			return nil, diag.New(diag.CodeWrongType, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "array index must be an integer")
		}
		elemBackend := left.Type.Elem.Backend()
		buf := left.Val
		if buf == "" {
			// a raw_array result that carries only an address: load the
			// buffer pointer from that address.
			buf = r.Builder.CreateLoad("ptr", left.Addr)
		}
		addr := r.Builder.CreateGEP(elemBackend, buf, index.Val)
		if left.Type.Elem.Kind == typesys.KindStruct {
			return &Resolved{Addr: addr, Type: left.Type.Elem}, nil
		}
		v := r.Builder.CreateLoad(elemBackend, addr)
		return &Resolved{Val: v, Addr: addr, Type: left.Type.Elem}, nil
	case left.Type != nil && left.Type.Kind == typesys.KindStruct:
		m := left.Type.FindMethod("__index__")
		if m == nil {
			return nil, diag.New(diag.CodeCantIndex, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "%s has no __index__ method", left.Type)
		}
		index, d := r.Resolve(idx.Index, env)
		if d != nil {
			return nil, d
		}
		args, d := r.convertCallArgs(m.Fn.Params[1:], []*Resolved{index}, sp)
		if d != nil {
			return nil, d
		}
		v := r.Builder.CreateCall(m.Fn.Mangled, m.Fn.ReturnType.Backend(), append([]ssa.Value{left.Addr}, args...))
		return &Resolved{Val: v, Type: m.Fn.ReturnType}, nil
	default:
		return nil, diag.New(diag.CodeCantIndex, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "%s is not indexable", left.Type)
	}
}

// resolveInfix implements §4.5's "Infix expression", including `.` member
// access and dunder dispatch for struct operands.
func (r *Resolver) resolveInfix(inf *ast.InfixExpression, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	if inf.Operator == "." {
		return r.resolveMember(inf, env)
	}

	left, d := r.Resolve(inf.Left, env)
	if d != nil {
		return nil, d
	}
	right, d := r.Resolve(inf.Right, env)
	if d != nil {
		return nil, d
	}
	sp := inf.Pos()

	if (inf.Operator == "==" || inf.Operator == "!=") && (isNullPointer(left.Type) || isNullPointer(right.Type)) {
		pred := "eq"
		if inf.Operator == "!=" {
			pred = "ne"
		}
		v := r.Builder.CreateICmp(pred, left.Val, right.Val, "ptr")
		return &Resolved{Val: v, Type: r.Reg.Primitive(typesys.Bool)}, nil
	}

	if left.Type.Kind == typesys.KindStruct || right.Type.Kind == typesys.KindStruct {
		return r.resolveDunder(inf.Operator, left, right, sp)
	}

	common := r.Overload.CommonType(left.Type, right.Type)
	lv, d := r.Overload.Convert(left.Val, left.Type, common, nil, sp)
	if d != nil {
		return nil, d
	}
	rv, d := r.Overload.Convert(right.Val, right.Type, common, nil, sp)
	if d != nil {
		return nil, d
	}

	switch {
	case common.Prim.IsInteger() || common.Prim == typesys.Bool:
		return r.resolveIntInfix(inf.Operator, lv, rv, common, sp)
	case common.Prim.IsFloat():
		return r.resolveFloatInfix(inf.Operator, lv, rv, common, sp)
	default:
		return nil, diag.New(diag.CodeWrongInfix, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"operator %s is not supported for %s", inf.Operator, common)
	}
}

func isNullPointer(t *typesys.Type) bool {
	return t != nil && t.Kind == typesys.KindPrimitive && t.Prim == typesys.NullPointer
}

var intCmpPred = map[string]string{"==": "eq", "!=": "ne", "<": "slt", ">": "sgt", "<=": "sle", ">=": "sge"}
var uintCmpPred = map[string]string{"==": "eq", "!=": "ne", "<": "ult", ">": "ugt", "<=": "ule", ">=": "uge"}

func (r *Resolver) resolveIntInfix(op string, lv, rv ssa.Value, ty *typesys.Type, sp ast.Span) (*Resolved, *diag.Diagnostic) {
	backend := ty.Backend()
	unsigned := ty.Prim.IsUnsigned()
	switch op {
	case "+":
		return &Resolved{Val: r.Builder.CreateAdd(lv, rv, backend), Type: ty}, nil
	case "-":
		return &Resolved{Val: r.Builder.CreateSub(lv, rv, backend), Type: ty}, nil
	case "*":
		return &Resolved{Val: r.Builder.CreateMul(lv, rv, backend), Type: ty}, nil
	case "/":
		if unsigned {
			return &Resolved{Val: r.Builder.CreateUDiv(lv, rv, backend), Type: ty}, nil
		}
		return &Resolved{Val: r.Builder.CreateSDiv(lv, rv, backend), Type: ty}, nil
	case "%":
		if unsigned {
			return &Resolved{Val: r.Builder.CreateURem(lv, rv, backend), Type: ty}, nil
		}
		return &Resolved{Val: r.Builder.CreateSRem(lv, rv, backend), Type: ty}, nil
	case "<<":
		return &Resolved{Val: r.Builder.CreateShl(lv, rv, backend), Type: ty}, nil
	case ">>":
		if unsigned {
			return &Resolved{Val: r.Builder.CreateLShr(lv, rv, backend), Type: ty}, nil
		}
		return &Resolved{Val: r.Builder.CreateAShr(lv, rv, backend), Type: ty}, nil
	case "**":
		return nil, diag.New(diag.CodeWrongInfix, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "exponent is not supported on integer operands")
	default:
		preds := intCmpPred
		if unsigned {
			preds = uintCmpPred
		}
		pred, ok := preds[op]
		if !ok {
			return nil, diag.New(diag.CodeWrongInfix, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "unknown operator %s", op)
		}
		return &Resolved{Val: r.Builder.CreateICmp(pred, lv, rv, backend), Type: r.Reg.Primitive(typesys.Bool)}, nil
	}
}

var floatCmpPred = map[string]string{"==": "eq", "!=": "ne", "<": "lt", ">": "gt", "<=": "le", ">=": "ge"}

func (r *Resolver) resolveFloatInfix(op string, lv, rv ssa.Value, ty *typesys.Type, sp ast.Span) (*Resolved, *diag.Diagnostic) {
	backend := ty.Backend()
	switch op {
	case "+":
		return &Resolved{Val: r.Builder.CreateFAdd(lv, rv, backend), Type: ty}, nil
	case "-":
		return &Resolved{Val: r.Builder.CreateFSub(lv, rv, backend), Type: ty}, nil
	case "*":
		return &Resolved{Val: r.Builder.CreateFMul(lv, rv, backend), Type: ty}, nil
	case "/":
		return &Resolved{Val: r.Builder.CreateFDiv(lv, rv, backend), Type: ty}, nil
	case "%":
		return &Resolved{Val: r.Builder.CreateFRem(lv, rv, backend), Type: ty}, nil
	default:
		pred, ok := floatCmpPred[op]
		if !ok {
			return nil, diag.New(diag.CodeWrongInfix, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "unknown operator %s", op)
		}
		return &Resolved{Val: r.Builder.CreateFCmp(pred, lv, rv, backend), Type: r.Reg.Primitive(typesys.Bool)}, nil
	}
}

// resolveDunder implements §4.5's struct-operand fallback: try the left
// operand's dunder method, then the right operand's.
func (r *Resolver) resolveDunder(op string, left, right *Resolved, sp ast.Span) (*Resolved, *diag.Diagnostic) {
	name, ok := overload.Dunder[op]
	if !ok {
		return nil, diag.New(diag.CodeWrongInfix, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "operator %s has no struct dispatch", op)
	}
	if left.Type.Kind == typesys.KindStruct {
		if m := left.Type.FindMethod(name); m != nil {
			return r.callDunder(m, left, right, sp)
		}
	}
	if right.Type.Kind == typesys.KindStruct {
		if m := right.Type.FindMethod(name); m != nil {
			return r.callDunder(m, right, left, sp)
		}
	}
	return nil, diag.New(diag.CodeWrongInfix, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
		"neither %s nor %s implements %s", left.Type, right.Type, name)
}

func (r *Resolver) callDunder(m *typesys.Method, self, other *Resolved, sp ast.Span) (*Resolved, *diag.Diagnostic) {
	args, d := r.convertCallArgs(m.Fn.Params[1:], []*Resolved{other}, sp)
	if d != nil {
		return nil, d
	}
	v := r.Builder.CreateCall(m.Fn.Mangled, m.Fn.ReturnType.Backend(), append([]ssa.Value{self.Addr}, args...))
	return &Resolved{Val: v, Type: m.Fn.ReturnType}, nil
}

// resolveMember implements §4.5's "Member access": a module dispatches to
// a nested lookup, a struct instance computes a field GEP and, for a
// non-struct field, loads through it so the result is usable as an
// r-value the same way an Identifier's load is (§4.5 "Identifier"). A
// struct-typed field keeps the bare address, as §4.5's dunder/call
// dispatch always addresses a struct rather than loading it.
func (r *Resolver) resolveMember(inf *ast.InfixExpression, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	left, d := r.Resolve(inf.Left, env)
	if d != nil {
		return nil, d
	}
	sp := inf.Pos()
	rightID, ok := inf.Right.(*ast.Identifier)
	if !ok {
		return nil, diag.New(diag.CodeNotAMember, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "member access requires a name on the right")
	}
	switch {
	case left.ModuleEnv != nil:
		return r.resolveIdentifierIn(rightID.Name, left.ModuleEnv, sp)
	case left.Type != nil && left.Type.Kind == typesys.KindStruct:
		idx, ft := left.Type.FieldIndex(rightID.Name)
		if idx < 0 {
			return nil, diag.New(diag.CodeNotAMember, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
				"%s has no field %q", left.Type, rightID.Name)
		}
		addr := r.Builder.CreateGEP(ft.Backend(), left.Addr, idx)
		if ft.Kind == typesys.KindStruct {
			return &Resolved{Addr: addr, Type: ft}, nil
		}
		v := r.Builder.CreateLoad(ft.Backend(), addr)
		return &Resolved{Val: v, Addr: addr, Type: ft}, nil
	default:
		return nil, diag.New(diag.CodeNotAMember, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "%s has no members", left.Type)
	}
}

// convertCallArgs applies §4.4 conversion and §4.5's reference-parameter
// transform ("the call-site passes the argument's address rather than a
// loaded value. This transformation happens after overload matching.")
// positionally against params.
func (r *Resolver) convertCallArgs(params []typesys.Param, args []*Resolved, sp ast.Span) ([]ssa.Value, *diag.Diagnostic) {
	out := make([]ssa.Value, 0, len(args))
	for i, a := range args {
		if i >= len(params) {
			// variadic tail: pass through unconverted.
			out = append(out, a.Val)
			continue
		}
		p := params[i]
		if p.ByReference {
			out = append(out, a.Addr)
			continue
		}
		if a.Type.Equal(p.Type) {
			out = append(out, a.Val)
			continue
		}
		v, d := r.Overload.Convert(a.Val, a.Type, p.Type, r.findAutocastMethod(a.Type, p.Type), sp)
		if d != nil {
			return nil, d
		}
		out = append(out, v)
	}
	return out, nil
}

// resolveCall implements §4.4 plus §4.5's "Call expression" special
// forms: `raw_array(T, n)`, struct construction, generic-struct
// instantiation, and ordinary overload-resolved calls.
func (r *Resolver) resolveCall(call *ast.CallExpression, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	sp := call.Pos()
	id, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return nil, diag.New(diag.CodeInternal, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "call target must be a name")
	}

	if id.Name == "raw_array" {
		return r.resolveRawArrayCall(call, env)
	}

	if rec := env.Struct(id.Name); rec != nil {
		return r.resolveStructConstruct(rec.Struct, call, env)
	}
	if rec := env.GenericStructTemplate(id.Name); rec != nil {
		return r.resolveGenericStructCall(rec, call, env)
	}
	if rec := env.GenericFunctionTemplate(id.Name); rec != nil {
		return r.resolveGenericFunctionCall(rec, call, env)
	}

	candidates := env.Lookup(id.Name)
	if len(candidates) == 0 {
		return nil, diag.New(diag.CodeUndefined, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "undefined function %q", id.Name)
	}
	args := make([]*Resolved, len(call.Args))
	argTypes := make([]*typesys.Type, len(call.Args))
	for i, a := range call.Args {
		res, d := r.Resolve(a, env)
		if d != nil {
			return nil, d
		}
		args[i] = res
		argTypes[i] = res.Type
	}
	rec, rejected := r.Overload.ResolveCall(candidates, argTypes)
	if rec == nil {
		return nil, overloadDiag(r.File, sp, id.Name, rejected)
	}
	vals, d := r.convertCallArgs(rec.Func.Params, args, sp)
	if d != nil {
		return nil, d
	}
	v := r.Builder.CreateCall(rec.Func.Mangled, rec.Func.ReturnType.Backend(), vals)
	return &Resolved{Val: v, Type: rec.Func.ReturnType}, nil
}

func overloadDiag(file string, sp ast.Span, name string, rejected []overload.Candidate) *diag.Diagnostic {
	d := diag.New(diag.CodeNoOverload, file, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "no overload of %q matches the given arguments", name)
	for _, c := range rejected {
		sig := "?"
		if c.Record.Func != nil {
			sig = c.Record.Name
		}
		d.Candidates = append(d.Candidates, diag.CandidateMismatch{Signature: sig, MismatchIndex: c.Mismatch})
	}
	return d
}

// resolveRawArrayCall constructs an uninitialized buffer of n elements of
// type T (§4.5).
func (r *Resolver) resolveRawArrayCall(call *ast.CallExpression, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	sp := call.Pos()
	if len(call.Args) != 2 {
		return nil, diag.New(diag.CodeWrongType, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "raw_array expects (type, count)")
	}
	elemType, ok := r.resolveTypeArg(call.Args[0], env)
	if !ok {
		return nil, diag.New(diag.CodeWrongType, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "raw_array's first argument must name a type")
	}
	count, d := r.Resolve(call.Args[1], env)
	if d != nil {
		return nil, d
	}
	backend := elemType.Backend()
	var base ssa.Value
	if call.New {
		elemSize := r.sizeofBytes(backend)
		bytes := r.Builder.CreateMul(elemSize, count.Val, "i64")
		base = r.Builder.CreateCall("malloc", "ptr", []ssa.Value{bytes})
	} else if lit, ok := call.Args[1].(*ast.IntegerLiteral); ok {
		base = r.Builder.CreateAlloca(arrayBackend(backend, int(lit.Value)), "raw_array")
	} else {
		elemSize := r.sizeofBytes(backend)
		bytes := r.Builder.CreateMul(elemSize, count.Val, "i64")
		base = r.Builder.CreateCall("malloc", "ptr", []ssa.Value{bytes})
	}
	return &Resolved{Val: base, Type: r.Reg.RawArray(elemType)}, nil
}

// resolveStructConstruct implements the constructor protocol: allocate,
// then call __init__(self, args...) (§4.5).
func (r *Resolver) resolveStructConstruct(st *typesys.Type, call *ast.CallExpression, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	sp := call.Pos()
	var self ssa.Value
	if call.New {
		bytes := r.sizeofBytes("%" + st.StructName)
		self = r.Builder.CreateCall("malloc", "ptr", []ssa.Value{bytes})
	} else {
		self = r.Builder.CreateAlloca("%"+st.StructName, st.StructName)
	}
	init := st.FindMethod("__init__")
	if init == nil {
		if len(call.Args) != 0 {
			return nil, diag.New(diag.CodeNoOverload, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "%s has no __init__ but was called with arguments", st)
		}
		return &Resolved{Val: self, Addr: self, Type: st}, nil
	}
	args := make([]*Resolved, len(call.Args))
	for i, a := range call.Args {
		res, d := r.Resolve(a, env)
		if d != nil {
			return nil, d
		}
		args[i] = res
	}
	vals, d := r.convertCallArgs(init.Fn.Params[1:], args, sp)
	if d != nil {
		return nil, d
	}
	r.Builder.CreateCall(init.Fn.Mangled, "void", append([]ssa.Value{self}, vals...))
	return &Resolved{Val: self, Addr: self, Type: st}, nil
}

// resolveGenericStructCall splits the leading type-valued argument prefix
// from call.Args, instantiates the template against it, then runs the
// ordinary struct-constructor protocol against the remaining arguments
// (§4.5 "generic-struct name triggers template instantiation with the
// prefix of arguments whose values are types").
func (r *Resolver) resolveGenericStructCall(rec *environ.Record, call *ast.CallExpression, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	var typeArgs []*typesys.Type
	rest := call.Args
	for len(rest) > 0 {
		t, ok := r.resolveTypeArg(rest[0], env)
		if !ok {
			break
		}
		typeArgs = append(typeArgs, t)
		rest = rest[1:]
	}
	st, d := r.Generics.InstantiateStruct(rec, typeArgs, r.File, call)
	if d != nil {
		return nil, d
	}
	remainder := &ast.CallExpression{Callee: call.Callee, Args: rest, New: call.New}
	remainder.Span = call.Span
	return r.resolveStructConstruct(st, remainder, env)
}

// resolveGenericFunctionCall instantiates a generic function template
// against the resolved argument types, then emits the call.
func (r *Resolver) resolveGenericFunctionCall(rec *environ.Record, call *ast.CallExpression, env *environ.Environment) (*Resolved, *diag.Diagnostic) {
	args := make([]*Resolved, len(call.Args))
	argTypes := make([]*typesys.Type, len(call.Args))
	for i, a := range call.Args {
		res, d := r.Resolve(a, env)
		if d != nil {
			return nil, d
		}
		args[i] = res
		argTypes[i] = res.Type
	}
	fn, d := r.Generics.InstantiateFunction(rec, argTypes)
	if d != nil {
		return nil, d
	}
	vals, d := r.convertCallArgs(fn.Params, args, call.Pos())
	if d != nil {
		return nil, d
	}
	v := r.Builder.CreateCall(fn.Mangled, fn.ReturnType.Backend(), vals)
	return &Resolved{Val: v, Type: fn.ReturnType}, nil
}

// Package generics implements the Generic Instantiator of §4.7: it
// monomorphizes generic functions and structs per argument-type tuple.
// Function instances are memoized on the Instantiator, keyed by template
// name and argument-type tuple, so two generic templates with the same
// name share cache entries; struct instances are memoized in the type
// Registry.
//
// Resolving field/parameter type nodes during binding needs the Type
// Resolver, and compiling a generic function's body needs the Statement
// Compiler — both of which sit "above" this package in the source
// compiler's call graph even though §2 places Generic Instantiator above
// Type Resolver in dependency order. As with internal/resolve, the
// Statement Compiler dependency is inverted behind the BodyCompiler
// interface below so this package only imports downward; internal/compiler
// wires the concrete stmt.Compiler in at startup.
package generics

import (
	"fmt"

	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/diag"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/resolve"
	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/typesys"
)

// BodyCompiler compiles a generic function's body under a freshly bound
// instantiation environment (§4.7 "compile the body under the new
// environment").
type BodyCompiler interface {
	CompileFunctionBody(fn *ast.FunctionStatement, env *environ.Environment, b *ssa.Builder, mangled string, returnType *typesys.Type) *diag.Diagnostic
	CompileMethodBody(fn *ast.FunctionStatement, env *environ.Environment, b *ssa.Builder, mangled string, returnType *typesys.Type, selfType *typesys.Type) *diag.Diagnostic
}

// Instantiator is the Generic Instantiator.
type Instantiator struct {
	Reg      *typesys.Registry
	Resolver *resolve.Resolver
	Body     BodyCompiler
	Builder  *ssa.Builder
	File     string

	// funcInstances memoizes (template name, argument-type tuple) ->
	// monomorphic function, per §3 "Lifecycle".
	funcInstances map[string]*typesys.Function
}

func New(reg *typesys.Registry, resolver *resolve.Resolver, body BodyCompiler, b *ssa.Builder, file string) *Instantiator {
	return &Instantiator{Reg: reg, Resolver: resolver, Body: body, Builder: b, File: file, funcInstances: make(map[string]*typesys.Function)}
}

// instKey produces the memoization key described in §3/§8 ("instantiating
// a generic with the same argument tuple twice produces the same
// monomorphic symbol").
func instKey(name string, args []*typesys.Type) string {
	key := name
	for _, a := range args {
		key += "," + a.String()
	}
	return key
}

// Mangle produces the monomorphic symbol name for a generic-function
// instantiation, e.g. `id__int` for scenario 3 of §8.
func Mangle(name string, args []*typesys.Type) string {
	s := name
	for _, a := range args {
		s += "__" + a.String()
	}
	return s
}

// InstantiateFunction implements the generic-function half of §4.7: bind
// each template parameter whose declared type is a bare identifier to the
// corresponding argument type, create a child environment under the
// template's capturing environment, and compile (or skip compiling, for a
// declaration-only template — see the Open Question this resolves in
// DESIGN.md) the body.
func (inst *Instantiator) InstantiateFunction(tmpl *environ.Record, argTypes []*typesys.Type) (*typesys.Function, *diag.Diagnostic) {
	fnNode, ok := tmpl.Template.(*ast.FunctionStatement)
	if !ok {
		return nil, diag.New(diag.CodeInternal, inst.File, 0, 0, 0, 0, "generic-function template has no parse tree")
	}
	key := instKey(fnNode.Name, argTypes)
	if cached, ok := inst.funcInstances[key]; ok {
		return cached, nil
	}
	if len(fnNode.Params) != len(argTypes) {
		sp := fnNode.Pos()
		return nil, diag.New(diag.CodeWrongType, inst.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"generic function %s expects %d argument(s), got %d", fnNode.Name, len(fnNode.Params), len(argTypes))
	}

	child := tmpl.CapturingEnv.NewChild("generic-instance " + fnNode.Name)
	bindGenericParams(child, fnNode.Generics, fnNode.Params, argTypes)

	params := make([]typesys.Param, len(fnNode.Params))
	for i, p := range fnNode.Params {
		pt, d := inst.Resolver.ResolveType(&p.Type, child)
		if d != nil {
			return nil, d
		}
		params[i] = typesys.Param{Name: p.Name, Type: pt, ByReference: p.ByReference}
	}
	retType, d := inst.Resolver.ResolveType(fnNode.Return, child)
	if d != nil {
		return nil, d
	}

	mangled := Mangle(fnNode.Name, argTypes)
	fn := &typesys.Function{
		Name: fnNode.Name, Mangled: mangled, Params: params, ReturnType: retType,
		Autocast: fnNode.Autocast, Variadic: false, HasBody: fnNode.Body != nil,
	}
	inst.funcInstances[key] = fn

	if fnNode.Body == nil {
		// §9 Open Question: `_CallGfunc` creates a symbol even when the
		// template body is absent. This module resolves that by
		// registering the external-linkage declaration and stopping
		// here — no body is compiled, matching how §4.8 handles imported
		// (declaration-only) functions.
		paramStrs := make([]string, len(params))
		for i, p := range params {
			paramStrs[i] = p.Type.Backend()
		}
		retBackend := "void"
		if !retType.IsVoid() {
			retBackend = retType.Backend()
		}
		inst.Builder.DeclareExternal(mangled, retBackend, paramStrs, false)
		return fn, nil
	}

	child.Add(&environ.Record{Kind: environ.RecordFunction, Name: fnNode.Name, Func: fn})
	for i, p := range params {
		child.Add(&environ.Record{Kind: environ.RecordVariable, Name: fnNode.Params[i].Name, VarType: p.Type})
	}

	if d := inst.Body.CompileFunctionBody(fnNode, child, inst.Builder, mangled, retType); d != nil {
		return nil, d
	}
	return fn, nil
}

// InstantiateStruct implements the generic-struct half of §4.7 and
// satisfies resolve.StructInstantiator. Field types are rewritten through
// the binding, then the struct type is created and memoized.
func (inst *Instantiator) InstantiateStruct(tmpl *environ.Record, args []*typesys.Type, file string, node ast.Node) (*typesys.Type, *diag.Diagnostic) {
	structNode, ok := tmpl.Template.(*ast.StructStatement)
	if !ok {
		sp := node.Pos()
		return nil, diag.New(diag.CodeInternal, file, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"generic-struct template has no parse tree")
	}
	if existing, ok := inst.Reg.LookupStructInstance(structNode.Name, args); ok {
		return existing, nil
	}
	if len(structNode.Generics) != len(args) {
		sp := node.Pos()
		return nil, diag.New(diag.CodeWrongType, file, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"%s expects %d generic argument(s), got %d", structNode.Name, len(structNode.Generics), len(args))
	}

	child := tmpl.CapturingEnv.NewChild("generic-instance " + structNode.Name)
	for i, g := range structNode.Generics {
		child.BindGeneric(g, args[i])
	}

	fields := make([]typesys.Field, len(structNode.Fields))
	for i, f := range structNode.Fields {
		ft, d := inst.Resolver.ResolveType(&f.Type, child)
		if d != nil {
			return nil, d
		}
		fields[i] = typesys.Field{Name: f.Name, Type: ft}
	}

	st := inst.Reg.NewStructType(structNode.Name, fields, args)

	for _, m := range structNode.Methods {
		if len(m.Generics) > 0 {
			// §4.7 constraint: struct methods may not themselves be
			// generic.
			sp := m.Pos()
			return nil, diag.New(diag.CodeWrongType, file, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
				"method %s.%s may not be generic; attach generics at the struct level", structNode.Name, m.Name)
		}
		params := make([]typesys.Param, 0, len(m.Params)+1)
		params = append(params, typesys.Param{Name: "self", Type: typesys.Reference(st)})
		for _, p := range m.Params {
			pt, d := inst.Resolver.ResolveType(&p.Type, child)
			if d != nil {
				return nil, d
			}
			params = append(params, typesys.Param{Name: p.Name, Type: pt, ByReference: p.ByReference})
		}
		retType, d := inst.Resolver.ResolveType(m.Return, child)
		if d != nil {
			return nil, d
		}
		mangled := fmt.Sprintf("%s.%s", st.String(), m.Name)
		fn := &typesys.Function{Name: m.Name, Mangled: mangled, Params: params, ReturnType: retType, Autocast: m.Autocast, HasBody: m.Body != nil}
		st.Methods[m.Name] = &typesys.Method{Name: m.Name, Fn: fn}

		if m.Body != nil {
			methodEnv := child.NewChild("method " + m.Name)
			if d := inst.Body.CompileMethodBody(m, methodEnv, inst.Builder, mangled, retType, st); d != nil {
				return nil, d
			}
		}
	}

	return st, nil
}

// bindGenericParams implements §4.7's binding rule: "for each template
// parameter position whose declared type is an identifier literal, bind
// that identifier to a fresh type-record that aliases the incoming
// argument type. For positions whose declared type is a concrete
// expression, check compatibility."
func bindGenericParams(env *environ.Environment, generics []string, params []ast.Param, argTypes []*typesys.Type) {
	isGenericName := make(map[string]bool, len(generics))
	for _, g := range generics {
		isGenericName[g] = true
	}
	for i, p := range params {
		if i >= len(argTypes) {
			break
		}
		if isGenericName[p.Type.Name] && len(p.Type.Generics) == 0 {
			env.BindGeneric(p.Type.Name, argTypes[i])
		}
	}
}

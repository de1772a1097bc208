// Package compiler is the top-level entry point of §2: it bootstraps one
// file's Type Registry and root Environment with the C bindings and
// built-ins of §4.1, wires every subsystem's interface-injection point
// together, and drives top-level declaration compilation for a parsed
// Program.
package compiler

import (
	"fmt"

	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/diag"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/generics"
	"github.com/oxhq/gigglyc/internal/mangle"
	"github.com/oxhq/gigglyc/internal/overload"
	"github.com/oxhq/gigglyc/internal/resolve"
	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/stmt"
	"github.com/oxhq/gigglyc/internal/typesys"
	"github.com/oxhq/gigglyc/internal/value"
)

// Importer resolves an ImportStatement into the current scope. It is
// satisfied by *modloader.Loader; the interface lives here (rather than
// compiler importing modloader directly) so internal/compiler stays the
// single place that wires together optional collaborators, exactly like
// resolve.StructInstantiator and generics.BodyCompiler invert their
// upstream dependency (see those packages' doc comments).
type Importer interface {
	Import(imp *ast.ImportStatement, into *environ.Environment) *diag.Diagnostic
}

// Compiler owns every subsystem for exactly one file's compilation (§5:
// "each compiler instance owns its own environment tree and backend
// module").
type Compiler struct {
	File   string // relative path, used for mangling (§6) and diagnostics
	Reg    *typesys.Registry
	Root   *environ.Environment
	Module *ssa.Module

	Types    *resolve.Resolver
	Value    *value.Resolver
	Overload *overload.Engine
	Generics *generics.Instantiator
	Stmt     *stmt.Compiler
	builder  *ssa.Builder

	// Loader resolves import declarations (§4.8). Left nil, a Program
	// containing an ImportStatement fails with CodeInternal rather than
	// panicking — wiring a loader is the driver's job, not bootstrap's.
	Loader Importer
}

// New bootstraps a fresh compiler for relPath: a primitive registry, the
// root environment, and the C bindings, math module, and array[T]
// wrapper struct of §4.1, then wires the Type Resolver, Overload Engine,
// Value Resolver, Generic Instantiator, and Statement Compiler together.
func New(relPath string) *Compiler {
	reg := typesys.NewRegistry()
	root := environ.New("root")
	mod := ssa.NewModule(mangle.Symbol(relPath, "module"))
	b := ssa.NewBuilder(mod)

	c := &Compiler{File: relPath, Reg: reg, Root: root, Module: mod, builder: b}

	c.Types = resolve.New(reg, nil, relPath)
	c.Overload = overload.New(b, nil, relPath)
	c.Value = value.New(reg, c.Types, c.Overload, nil, b, relPath)
	c.Overload.Autocast = c.Value.Autocast
	c.Stmt = stmt.New(reg, c.Types, c.Value, relPath)
	c.Generics = generics.New(reg, c.Types, c.Stmt, b, relPath)
	c.Types.Instantiator = c.Generics
	c.Value.Generics = c.Generics

	c.bootstrap()
	return c
}

// Builder exposes the module's Instruction Emitter for collaborators
// wired in after construction (internal/modloader declares a dependency
// file's exported symbols into this same module).
func (c *Compiler) Builder() *ssa.Builder { return c.builder }

// Compile lowers every top-level declaration of prog into c.Module,
// stopping at the first fatal diagnostic (§7: "compilation stops at the
// first fatal error; no attempt is made to recover and continue").
func (c *Compiler) Compile(prog *ast.Program) *diag.Diagnostic {
	for _, s := range prog.Statements {
		if d := c.compileTopLevel(s); d != nil {
			return d
		}
	}
	return nil
}

func (c *Compiler) compileTopLevel(s ast.Statement) *diag.Diagnostic {
	switch n := s.(type) {
	case *ast.FunctionStatement:
		return c.compileFunction(n, c.Root)
	case *ast.StructStatement:
		return c.compileStruct(n, c.Root)
	case *ast.ImportStatement:
		return c.compileImport(n)
	default:
		sp := s.Pos()
		return diag.New(diag.CodeNodeOutsideHost, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"only function, struct, and import declarations are allowed at file scope")
	}
}

// compileFunction registers fn in env. A generic function is registered
// as a template only (§4.7 instantiates it lazily, from call sites). A
// non-generic function with no body (an external/forward declaration) is
// declared on the module without compiling anything; one with a body is
// compiled immediately via the Statement Compiler.
func (c *Compiler) compileFunction(fn *ast.FunctionStatement, env *environ.Environment) *diag.Diagnostic {
	if len(fn.Generics) > 0 {
		env.Add(&environ.Record{
			Kind: environ.RecordGenericFunctionTemplate, Name: fn.Name,
			Template: fn, CapturingEnv: env, GenericParams: fn.Generics,
		})
		return nil
	}

	mangled := mangle.Symbol(c.File, fn.Name)
	params := make([]typesys.Param, len(fn.Params))
	for i, p := range fn.Params {
		pt, d := c.Types.ResolveType(&p.Type, env)
		if d != nil {
			return d
		}
		params[i] = typesys.Param{Name: p.Name, Type: pt, ByReference: p.ByReference}
	}
	retType, d := c.Types.ResolveType(fn.Return, env)
	if d != nil {
		return d
	}
	record := &typesys.Function{
		Name: fn.Name, Mangled: mangled, Params: params, ReturnType: retType,
		Autocast: fn.Autocast, Variadic: fn.Variadic, HasBody: fn.Body != nil,
	}
	env.Add(&environ.Record{Kind: environ.RecordFunction, Name: fn.Name, Func: record})

	if fn.Body == nil {
		c.declareExternalFunction(mangled, params, retType, fn.Variadic)
		return nil
	}

	body := env.NewChild("function " + fn.Name)
	return c.Stmt.CompileFunctionBody(fn, body, c.builder, mangled, retType)
}

// compileStruct registers st in env. A generic struct is registered as a
// template only, instantiated on demand by the Type Resolver (§4.3 step
//4/§4.7). A concrete struct has its fields and methods resolved and
// compiled immediately; method bodies go through CompileMethodBody so the
// implicit self receiver is wired exactly like a generic instance's (§4.7
// "struct methods may not themselves be generic").
func (c *Compiler) compileStruct(st *ast.StructStatement, env *environ.Environment) *diag.Diagnostic {
	if len(st.Generics) > 0 {
		env.Add(&environ.Record{
			Kind: environ.RecordGenericStructTemplate, Name: st.Name,
			Template: st, CapturingEnv: env, GenericParams: st.Generics,
		})
		return nil
	}

	fields := make([]typesys.Field, len(st.Fields))
	for i, f := range st.Fields {
		ft, d := c.Types.ResolveType(&f.Type, env)
		if d != nil {
			return d
		}
		fields[i] = typesys.Field{Name: f.Name, Type: ft}
	}
	typ := c.Reg.NewStructType(st.Name, fields, nil)
	env.Add(&environ.Record{Kind: environ.RecordStructType, Name: st.Name, Struct: typ})

	for _, m := range st.Methods {
		if len(m.Generics) > 0 {
			sp := m.Pos()
			return diag.New(diag.CodeWrongType, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
				"method %s.%s may not be generic; attach generics at the struct level", st.Name, m.Name)
		}
		params := make([]typesys.Param, 0, len(m.Params)+1)
		params = append(params, typesys.Param{Name: "self", Type: typesys.Reference(typ)})
		for _, p := range m.Params {
			pt, d := c.Types.ResolveType(&p.Type, env)
			if d != nil {
				return d
			}
			params = append(params, typesys.Param{Name: p.Name, Type: pt, ByReference: p.ByReference})
		}
		retType, d := c.Types.ResolveType(m.Return, env)
		if d != nil {
			return d
		}
		mangled := fmt.Sprintf("%s.%s", typ.String(), m.Name)
		fn := &typesys.Function{Name: m.Name, Mangled: mangled, Params: params, ReturnType: retType, Autocast: m.Autocast, HasBody: m.Body != nil}
		typ.Methods[m.Name] = &typesys.Method{Name: m.Name, Fn: fn}

		if m.Body == nil {
			c.declareExternalFunction(mangled, params, retType, false)
			continue
		}
		methodEnv := env.NewChild("method " + m.Name)
		if d := c.Stmt.CompileMethodBody(m, methodEnv, c.builder, mangled, retType, typ); d != nil {
			return d
		}
	}
	return nil
}

func (c *Compiler) compileImport(imp *ast.ImportStatement) *diag.Diagnostic {
	if c.Loader == nil {
		sp := imp.Pos()
		return diag.New(diag.CodeInternal, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"no module loader wired; cannot resolve import %q", imp.Path)
	}
	return c.Loader.Import(imp, c.Root)
}

func (c *Compiler) declareExternalFunction(mangled string, params []typesys.Param, retType *typesys.Type, variadic bool) {
	// params[0] is "self" for a struct method; it still lowers to a plain
	// "ptr" parameter like any other pointer argument, so no special-casing
	// is needed here.
	paramStrs := make([]string, len(params))
	for i, p := range params {
		paramStrs[i] = p.Type.Backend()
	}
	retBackend := "void"
	if !retType.IsVoid() {
		retBackend = retType.Backend()
	}
	c.builder.DeclareExternal(mangled, retBackend, paramStrs, variadic)
}

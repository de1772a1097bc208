// Package modloader implements the Module Loader of §4.8: it resolves a
// relative import path to a sibling source file, busy-waits on the
// driver-side build record until that file's compilation finishes, and
// grafts the dependency's exported function/struct declarations into the
// importing scope as external-linkage declarations — never recompiling
// the dependency's bodies.
//
// The teacher's internal/scanner walks a project tree with
// doublestar glob patterns to discover source files for a language
// provider; this module reuses that walk to discover the candidate .gc
// file an import path names.
package modloader

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/buildstore"
	"github.com/oxhq/gigglyc/internal/diag"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/mangle"
	"github.com/oxhq/gigglyc/internal/resolve"
	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/typesys"
)

// Parser turns a source file's content into a parse tree. The lexer and
// parser are out-of-scope collaborators (§1); callers inject whichever
// implementation they have (cmd/gcc wires the real one once it exists).
type Parser func(path string) (*ast.Program, error)

// Loader is the Module Loader. Each Loader serves one importing file (see
// New); what the files of a single driver invocation share is the build
// Store it polls, the cross-file synchronization point (§5).
type Loader struct {
	Store   *buildstore.Store
	Reg     *typesys.Registry
	Types   *resolve.Resolver // reused to resolve a dependency's type nodes
	Builder *ssa.Builder      // the importing file's own module — declarations are grafted into it

	Parse   Parser
	BaseDir string // directory import paths resolve relative to

	PollInterval time.Duration
	PollTimeout  time.Duration

	File string // importing file's relative path, for diagnostics
}

// New builds a Loader wired to one compiler instance's registry,
// resolver, and builder (internal/compiler.New's caller assigns the
// result to Compiler.Loader).
func New(store *buildstore.Store, reg *typesys.Registry, types *resolve.Resolver, b *ssa.Builder, parse Parser, baseDir, file string, pollInterval, pollTimeout time.Duration) *Loader {
	return &Loader{
		Store: store, Reg: reg, Types: types, Builder: b,
		Parse: parse, BaseDir: baseDir, File: file,
		PollInterval: pollInterval, PollTimeout: pollTimeout,
	}
}

// Import implements §4.8 end to end: resolve the path, wait for the
// dependency to finish compiling, parse it fresh, and declare its
// top-level functions/structs/imports into `into` as external
// declarations under a new module record.
func (l *Loader) Import(imp *ast.ImportStatement, into *environ.Environment) *diag.Diagnostic {
	sp := imp.Pos()

	depPath, err := l.resolvePath(imp.Path)
	if err != nil {
		return diag.New(diag.CodeUndefined, l.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"cannot resolve import %q: %v", imp.Path, err)
	}

	rec, err := l.Store.FindOrCreate(depPath)
	if err != nil {
		return diag.New(diag.CodeInternal, l.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"tracking import %q: %v", depPath, err)
	}
	if d := l.awaitCompiled(rec, sp); d != nil {
		return d
	}

	prog, err := l.Parse(filepath.Join(l.BaseDir, depPath))
	if err != nil {
		return diag.New(diag.CodeInternal, l.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"parsing import %q: %v", depPath, err)
	}

	modEnv := environ.New("module " + depPath)
	for _, stmt := range prog.Statements {
		if d := l.declare(stmt, depPath, modEnv); d != nil {
			return d
		}
	}

	alias := imp.Alias
	if alias == "" {
		alias = defaultAlias(depPath)
	}
	into.Add(&environ.Record{Kind: environ.RecordModule, Name: alias, Module: modEnv})
	return nil
}

// declare grafts one of the dependency's top-level declarations into
// modEnv without compiling any body: functions and struct methods become
// external-linkage declarations on the importer's own module (their
// mangled names already match what the dependency file itself produced,
// by construction of mangle.Symbol), and nested imports recurse.
func (l *Loader) declare(s ast.Statement, depPath string, modEnv *environ.Environment) *diag.Diagnostic {
	switch n := s.(type) {
	case *ast.FunctionStatement:
		return l.declareFunction(n, depPath, modEnv)
	case *ast.StructStatement:
		return l.declareStruct(n, depPath, modEnv)
	case *ast.ImportStatement:
		return l.Import(n, modEnv)
	default:
		return nil // only declarations are exported; anything else is a no-op here
	}
}

func (l *Loader) declareFunction(fn *ast.FunctionStatement, depPath string, modEnv *environ.Environment) *diag.Diagnostic {
	if len(fn.Generics) > 0 {
		modEnv.Add(&environ.Record{
			Kind: environ.RecordGenericFunctionTemplate, Name: fn.Name,
			Template: fn, CapturingEnv: modEnv, GenericParams: fn.Generics,
		})
		return nil
	}
	params := make([]typesys.Param, len(fn.Params))
	for i, p := range fn.Params {
		pt, d := l.Types.ResolveType(&p.Type, modEnv)
		if d != nil {
			return d
		}
		params[i] = typesys.Param{Name: p.Name, Type: pt, ByReference: p.ByReference}
	}
	retType, d := l.Types.ResolveType(fn.Return, modEnv)
	if d != nil {
		return d
	}
	mangled := mangle.Symbol(depPath, fn.Name)
	l.declareExternal(mangled, params, retType, fn.Variadic)
	rf := &typesys.Function{Name: fn.Name, Mangled: mangled, Params: params, ReturnType: retType, Autocast: fn.Autocast, Variadic: fn.Variadic, HasBody: false}
	modEnv.Add(&environ.Record{Kind: environ.RecordFunction, Name: fn.Name, Func: rf})
	return nil
}

func (l *Loader) declareStruct(st *ast.StructStatement, depPath string, modEnv *environ.Environment) *diag.Diagnostic {
	if len(st.Generics) > 0 {
		modEnv.Add(&environ.Record{
			Kind: environ.RecordGenericStructTemplate, Name: st.Name,
			Template: st, CapturingEnv: modEnv, GenericParams: st.Generics,
		})
		return nil
	}
	fields := make([]typesys.Field, len(st.Fields))
	for i, f := range st.Fields {
		ft, d := l.Types.ResolveType(&f.Type, modEnv)
		if d != nil {
			return d
		}
		fields[i] = typesys.Field{Name: f.Name, Type: ft}
	}
	typ := l.Reg.NewStructType(st.Name, fields, nil)
	modEnv.Add(&environ.Record{Kind: environ.RecordStructType, Name: st.Name, Struct: typ})

	for _, m := range st.Methods {
		params := make([]typesys.Param, 0, len(m.Params)+1)
		params = append(params, typesys.Param{Name: "self", Type: typesys.Reference(typ)})
		for _, p := range m.Params {
			pt, d := l.Types.ResolveType(&p.Type, modEnv)
			if d != nil {
				return d
			}
			params = append(params, typesys.Param{Name: p.Name, Type: pt, ByReference: p.ByReference})
		}
		retType, d := l.Types.ResolveType(m.Return, modEnv)
		if d != nil {
			return d
		}
		mangled := typ.String() + "." + m.Name
		l.declareExternal(mangled, params, retType, false)
		typ.Methods[m.Name] = &typesys.Method{Name: m.Name, Fn: &typesys.Function{
			Name: m.Name, Mangled: mangled, Params: params, ReturnType: retType, Autocast: m.Autocast, HasBody: false,
		}}
	}
	return nil
}

func (l *Loader) declareExternal(mangled string, params []typesys.Param, ret *typesys.Type, variadic bool) {
	paramStrs := make([]string, len(params))
	for i, p := range params {
		paramStrs[i] = p.Type.Backend()
	}
	retBackend := "void"
	if !ret.IsVoid() {
		retBackend = ret.Backend()
	}
	l.Builder.DeclareExternal(mangled, retBackend, paramStrs, variadic)
}

// awaitCompiled busy-waits on rec.Compiled, the producer/consumer
// handshake of §4.8 step 2 / §5: "the driver may compile sibling files in
// parallel; the Module Loader's poll is what lets an importer block until
// its dependency's symbols exist."
func (l *Loader) awaitCompiled(rec *buildstore.FileRecord, sp ast.Span) *diag.Diagnostic {
	if rec.Compiled {
		return nil
	}
	deadline := time.Now().Add(l.PollTimeout)
	for {
		if time.Now().After(deadline) {
			return diag.New(diag.CodeInternal, l.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
				"timed out waiting for %q to finish compiling", rec.Path)
		}
		time.Sleep(l.PollInterval)
		if err := l.Store.Refresh(rec); err != nil {
			return diag.New(diag.CodeInternal, l.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
				"polling build record for %q: %v", rec.Path, err)
		}
		if rec.Compiled {
			return nil
		}
	}
}

// resolvePath turns an import path like "utils/math" into the relative
// .gc file it names, glob-matching against every source file under
// BaseDir the way the teacher's scanner walks a project tree with
// doublestar patterns rather than assuming a fixed extension placement.
func (l *Loader) resolvePath(importPath string) (string, error) {
	want := strings.TrimSuffix(filepath.ToSlash(importPath), ".gc") + ".gc"
	matches, err := doublestar.Glob(os.DirFS(l.BaseDir), "**/*.gc")
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if m == want {
			return m, nil
		}
	}
	return "", os.ErrNotExist
}

// defaultAlias derives a module's bare scope name from its file path when
// the import has no explicit alias: the last path segment, extension
// stripped, with any remaining dots (from a segment like "v1.2") replaced
// so the result is always a valid identifier.
func defaultAlias(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, ".", "_")
}

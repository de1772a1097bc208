// Package resolve implements the Type Resolver of §4.3: it turns a
// parse-tree TypeNode into a resolved typesys.Type, triggering on-demand
// generic struct instantiation when the name resolves to a template.
//
// The Generic Instantiator is architecturally "above" the Type Resolver in
// the dependency order of §2, yet §4.3 step 4 has the resolver *trigger*
// instantiation. This module resolves that mutual reference the way a
// single-pass compiler resolves any forward reference: through an
// injected interface (StructInstantiator) rather than a direct import, so
// package-level dependencies stay acyclic while the runtime call graph
// still loops back (internal/generics implements the interface and is
// wired in by internal/compiler).
package resolve

import (
	"strings"

	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/diag"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/typesys"
)

// StructInstantiator triggers generic-struct monomorphization (§4.7) from
// within type resolution (§4.3 step 4).
type StructInstantiator interface {
	InstantiateStruct(tmpl *environ.Record, args []*typesys.Type, file string, node ast.Node) (*typesys.Type, *diag.Diagnostic)
}

// Resolver is the Type Resolver component.
type Resolver struct {
	Reg          *typesys.Registry
	Instantiator StructInstantiator
	File         string
}

// New creates a Resolver bound to one file's compilation (mangled names
// and diagnostics carry File).
func New(reg *typesys.Registry, inst StructInstantiator, file string) *Resolver {
	return &Resolver{Reg: reg, Instantiator: inst, File: file}
}

// ResolveType implements §4.3's five-step algorithm.
func (r *Resolver) ResolveType(node *ast.TypeNode, env *environ.Environment) (*typesys.Type, *diag.Diagnostic) {
	if node == nil {
		return nil, nil // void
	}

	// Step 1: resolve the name (identifier, or dotted module-qualified
	// path) to whatever the scope chain holds for it.
	baseName, lookupEnv, d := r.resolveNamePath(node.Name, env, node)
	if d != nil {
		return nil, d
	}

	// Step 2: recursively resolve each generic argument.
	args := make([]*typesys.Type, len(node.Generics))
	for i := range node.Generics {
		t, d := r.ResolveType(&node.Generics[i], env)
		if d != nil {
			return nil, d
		}
		args[i] = t
	}

	var result *typesys.Type

	if bound, ok := lookupEnv.GenericBinding(baseName); ok && len(args) == 0 {
		result = bound
		if node.Reference {
			result = typesys.Reference(result)
		}
		return result, nil
	}

	switch baseName {
	case "raw_array":
		if len(args) != 1 {
			return nil, diag.New(diag.CodeWrongType, r.File, node.StartLine, node.StartCol, node.EndLine, node.EndCol,
				"raw_array expects exactly one generic argument, got %d", len(args))
		}
		result = r.Reg.RawArray(args[0])
	default:
		if prim, ok := PrimitiveByName(baseName, r.Reg); ok {
			result = prim
		} else if recs := lookupEnv.Lookup(baseName); len(recs) > 0 {
			rec := recs[0]
			switch rec.Kind {
			case environ.RecordStructType:
				// Step 3: a concrete struct type.
				if len(args) > 0 && !rec.Struct.Equal(r.Reg.Any()) {
					return nil, diag.New(diag.CodeWrongType, r.File, node.StartLine, node.StartCol, node.EndLine, node.EndCol,
						"%s is not generic but was given %d generic argument(s)", baseName, len(args))
				}
				result = rec.Struct
			case environ.RecordGenericStructTemplate:
				// Step 4: look up or trigger instantiation (§4.7).
				if r.Instantiator == nil {
					return nil, diag.New(diag.CodeInternal, r.File, node.StartLine, node.StartCol, node.EndLine, node.EndCol,
						"no generic instantiator wired for %s", baseName)
				}
				inst, d := r.Instantiator.InstantiateStruct(rec, args, r.File, node)
				if d != nil {
					return nil, d
				}
				result = inst
			default:
				return nil, diag.New(diag.CodeWrongType, r.File, node.StartLine, node.StartCol, node.EndLine, node.EndCol,
					"%s does not name a type", baseName)
			}
		} else {
			return nil, diag.New(diag.CodeUndefined, r.File, node.StartLine, node.StartCol, node.EndLine, node.EndCol,
				"undefined type %q", baseName)
		}
	}

	// Step 5: the reference flag wraps the produced handle so
	// function-parameter emission uses pointer-to-T (§4.3 step 5).
	if node.Reference {
		result = typesys.Reference(result)
	}
	return result, nil
}

// resolveNamePath walks a dotted path ("mod.Sub.Type") through module
// records, returning the final segment's bare name and the environment it
// should be looked up in (a module's inner scope, or the original env).
func (r *Resolver) resolveNamePath(path string, env *environ.Environment, node ast.Node) (string, *environ.Environment, *diag.Diagnostic) {
	segments := strings.Split(path, ".")
	cur := env
	for i, seg := range segments[:len(segments)-1] {
		modRec := cur.ModuleRecord(seg)
		if modRec == nil {
			sp := node.Pos()
			return "", nil, diag.New(diag.CodeNotAMember, r.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
				"%q is not a module", strings.Join(segments[:i+1], "."))
		}
		cur = modRec.Module
	}
	return segments[len(segments)-1], cur, nil
}

// PrimitiveByName maps a source-level primitive name to its registry
// singleton. Exported so internal/value can recognize a bare identifier as
// a type argument (e.g. `raw_array(int, n)`) without resolving it as a
// variable reference.
func PrimitiveByName(name string, reg *typesys.Registry) (*typesys.Type, bool) {
	m := map[string]typesys.Primitive{
		"int": typesys.Int64, "int64": typesys.Int64,
		"int32": typesys.Int32, "uint": typesys.Uint64, "uint64": typesys.Uint64,
		"uint32": typesys.Uint32, "float": typesys.Float64, "float64": typesys.Float64,
		"float32": typesys.Float32, "char": typesys.Int8, "int8": typesys.Int8,
		"bool": typesys.Bool, "str": typesys.StrPointer, "void": typesys.Void,
		"ptr": typesys.RawPointer,
	}
	if p, ok := m[name]; ok {
		return reg.Primitive(p), true
	}
	if name == "nullptr_t" {
		return reg.Primitive(typesys.NullPointer), true
	}
	return nil, false
}

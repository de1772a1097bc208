// Package environ implements the Environment of §3/§4.2: an ordered,
// lexically nested mapping from name to an overload set of Records. The
// loop-context stack is not stored here; see LoopFrame.
//
// The shape follows the teacher's internal/registry.Registry (a mutex-
// guarded map plus alias/extension side-indexes) generalized from "one
// provider per language name" to "one overload set per declared name",
// and the scoping/lifecycle rules come from original_source's
// enviornment.cpp/.hpp (§9's redesign note keeps the parent-pointer chain
// but replaces raw owning pointers with values held in the Records slice).
package environ

import (
	"fmt"

	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/typesys"
)

// RecordKind tags which variant a Record holds (§3 "Records").
type RecordKind int

const (
	RecordVariable RecordKind = iota
	RecordFunction
	RecordStructType
	RecordGenericFunctionTemplate
	RecordGenericStructTemplate
	RecordModule
)

// Record is the tagged variant of §3. Exactly one group of kind-specific
// fields is meaningful, selected by Kind.
type Record struct {
	Kind RecordKind
	Name string

	// RecordVariable
	Address  ssa.Value
	VarType  *typesys.Type
	Volatile bool

	// RecordFunction
	Func *typesys.Function

	// RecordStructType
	Struct *typesys.Type

	// RecordGenericFunctionTemplate / RecordGenericStructTemplate
	Template       any // *ast.FunctionStatement or *ast.StructStatement
	CapturingEnv   *Environment
	GenericParams  []string

	// RecordModule
	Module *Environment
}

// LoopFrame is the 5-tuple of §4.2/§8: the basic blocks associated with
// one active loop.
//
// §9's redesign note flags "Environment's ownership of basic-block stack
// for break/continue" for replacement: "Move loop-context into an explicit
// argument threaded through the statement compiler, scoped to the loop
// construct". This module implements that redesign — LoopFrame values are
// carried as an explicit []*LoopFrame parameter by internal/stmt, not
// stored on Environment. The type lives here only because Environment's
// NewChild/scope lifecycle is what a loop body scope still uses.
type LoopFrame struct {
	ContinueBlock  *ssa.Block
	BodyBlock      *ssa.Block
	ConditionBlock *ssa.Block
	IfBreakBlock   *ssa.Block // nil when absent
	NotBreakBlock  *ssa.Block // nil when absent
}

// Environment is one lexical scope: an ordered overload-set map plus a
// parent link forming the scope chain (§3). Per §9's redesign note,
// each scope pre-indexes its own overload sets by name on insertion
// (Add checks only that name's slice for an identical signature before
// appending, rather than re-scanning the whole scope).
type Environment struct {
	name    string
	parent  *Environment
	records map[string][]*Record
	// order preserves insertion order of names, only used when callers
	// need a deterministic walk (e.g. module re-export, tests).
	order []string

	// bindings is the explicit generic-parameter binding map §9 calls
	// for: "Replace [mutating a struct-type record's name] with an
	// explicit generic-binding map on the environment that is consulted
	// during type resolution." internal/generics populates this when
	// instantiating a template instead of registering a disguised
	// RecordStructType.
	bindings map[string]*typesys.Type

	// children is retained so that records owned by a child scope stay
	// alive for the process lifetime of the enclosing environment (§3
	// "Lifecycle" — children keep owned sub-records alive until program
	// end; see DESIGN.md's internal/environ entry).
	children []*Environment
}

// New creates a root environment (no parent), used once for the built-in
// scope (§4.1).
func New(name string) *Environment {
	return &Environment{name: name, records: make(map[string][]*Record)}
}

// NewChild creates a nested scope under parent, per §3 "Lifecycle":
// "created on function entry, block entry ..., generic instantiation, and
// module import".
func (e *Environment) NewChild(name string) *Environment {
	child := &Environment{name: name, parent: e, records: make(map[string][]*Record)}
	e.children = append(e.children, child)
	return child
}

// Name returns this scope's label (e.g. "function main", "if-then").
func (e *Environment) Name() string { return e.name }

// Parent returns the enclosing scope, or nil at the root.
func (e *Environment) Parent() *Environment { return e.parent }

// Add appends record to the overload set for record.Name. Per §4.2 it
// "fails silently if an identical signature already exists" — identical
// meaning same kind and, for functions, the same parameter-type tuple.
func (e *Environment) Add(record *Record) {
	existing := e.records[record.Name]
	for _, r := range existing {
		if sameSignature(r, record) {
			return
		}
	}
	if len(existing) == 0 {
		e.order = append(e.order, record.Name)
	}
	e.records[record.Name] = append(existing, record)
}

func sameSignature(a, b *Record) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case RecordFunction:
		if a.Func == nil || b.Func == nil {
			return a.Func == b.Func
		}
		if len(a.Func.Params) != len(b.Func.Params) {
			return false
		}
		for i := range a.Func.Params {
			if !a.Func.Params[i].Type.Equal(b.Func.Params[i].Type) {
				return false
			}
		}
		return true
	case RecordStructType:
		return a.Struct != nil && b.Struct != nil && a.Struct.Equal(b.Struct)
	default:
		return true
	}
}

// Lookup walks the scope chain from e upward, returning the full overload
// list for name, or nil if undeclared anywhere in the chain. Matches the
// innermost scope that declares the name at all (shadowing), then returns
// every record in that one scope's overload set.
func (e *Environment) Lookup(name string) []*Record {
	for env := e; env != nil; env = env.parent {
		if recs, ok := env.records[name]; ok && len(recs) > 0 {
			return recs
		}
	}
	return nil
}

// LookupLocal looks up name only in this scope, without walking to parent.
func (e *Environment) LookupLocal(name string) []*Record {
	return e.records[name]
}

// BindGeneric records that, within this scope and its children, the
// generic parameter name aliases the concrete type t (§4.7 binding step,
// §9 redesign note).
func (e *Environment) BindGeneric(name string, t *typesys.Type) {
	if e.bindings == nil {
		e.bindings = make(map[string]*typesys.Type)
	}
	e.bindings[name] = t
}

// GenericBinding walks the scope chain looking for a generic-parameter
// binding, consulted by the Type Resolver before falling back to ordinary
// name resolution.
func (e *Environment) GenericBinding(name string) (*typesys.Type, bool) {
	for env := e; env != nil; env = env.parent {
		if t, ok := env.bindings[name]; ok {
			return t, true
		}
	}
	return nil, false
}

func filterKind(recs []*Record, kind RecordKind) []*Record {
	var out []*Record
	for _, r := range recs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func (e *Environment) IsVariable(name string) bool { return len(filterKind(e.Lookup(name), RecordVariable)) > 0 }
func (e *Environment) IsFunction(name string) bool { return len(filterKind(e.Lookup(name), RecordFunction)) > 0 }
func (e *Environment) IsStruct(name string) bool   { return len(filterKind(e.Lookup(name), RecordStructType)) > 0 }
func (e *Environment) IsModule(name string) bool   { return len(filterKind(e.Lookup(name), RecordModule)) > 0 }
func (e *Environment) IsGenericFunction(name string) bool {
	return len(filterKind(e.Lookup(name), RecordGenericFunctionTemplate)) > 0
}
func (e *Environment) IsGenericStruct(name string) bool {
	return len(filterKind(e.Lookup(name), RecordGenericStructTemplate)) > 0
}

// Variable returns the single variable record for name, or nil.
func (e *Environment) Variable(name string) *Record {
	recs := filterKind(e.Lookup(name), RecordVariable)
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// Struct returns the single struct-type record for name, or nil.
func (e *Environment) Struct(name string) *Record {
	recs := filterKind(e.Lookup(name), RecordStructType)
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// ModuleRecord returns the single module record for name, or nil.
func (e *Environment) ModuleRecord(name string) *Record {
	recs := filterKind(e.Lookup(name), RecordModule)
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// GenericFunctionTemplate returns the single generic-function-template
// record for name, or nil.
func (e *Environment) GenericFunctionTemplate(name string) *Record {
	recs := filterKind(e.Lookup(name), RecordGenericFunctionTemplate)
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// GenericStructTemplate returns the single generic-struct-template record
// for name, or nil.
func (e *Environment) GenericStructTemplate(name string) *Record {
	recs := filterKind(e.Lookup(name), RecordGenericStructTemplate)
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// FindFunction implements §4.2's find_function: a linear search over the
// overload list, with strict exact-type matching or, in non-strict mode,
// accepting convertibility (canConvert, supplied as canConvertFn to avoid
// an import cycle with the overload package). Variadic records match any
// argument tail. Returns the first match, or nil.
func (e *Environment) FindFunction(name string, argTypes []*typesys.Type, strict bool, canConvertFn func(from, to *typesys.Type) bool) *Record {
	for _, rec := range filterKind(e.Lookup(name), RecordFunction) {
		if functionMatches(rec.Func, argTypes, strict, canConvertFn) {
			return rec
		}
	}
	return nil
}

func functionMatches(fn *typesys.Function, argTypes []*typesys.Type, strict bool, canConvertFn func(from, to *typesys.Type) bool) bool {
	if fn.Variadic {
		if len(argTypes) < len(fn.Params) {
			return false
		}
	} else if len(argTypes) != len(fn.Params) {
		return false
	}
	for i, p := range fn.Params {
		if p.Type.Equal(argTypes[i]) {
			continue
		}
		if strict {
			return false
		}
		if canConvertFn == nil || !canConvertFn(argTypes[i], p.Type) {
			return false
		}
	}
	return true
}

func (e *Environment) String() string {
	return fmt.Sprintf("Environment(%s)", e.name)
}

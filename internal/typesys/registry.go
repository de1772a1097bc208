package typesys

// Registry catalogs every concrete type produced during compilation. It
// owns the primitive singletons and the factories that build struct/array
// types, and answers the equality/conversion queries later components need
// (§4.1). A Registry belongs to exactly one file's compiler instance — per
// §5 ("each compiler instance owns its own environment tree"), nothing
// here is shared across goroutines.
type Registry struct {
	primitives map[Primitive]*Type
	// structs indexes every struct type ever created by its full name
	// (including any generic-argument suffix), so the generic instantiator
	// can memoize per argument-type tuple (§3 "Lifecycle").
	structs map[string]*Type
	any     *Type
}

// NewRegistry bootstraps the primitive scope described in §4.1: one Type
// per primitive in §3, plus the universal marker type Any.
func NewRegistry() *Registry {
	r := &Registry{
		primitives: make(map[Primitive]*Type),
		structs:    make(map[string]*Type),
	}
	for p, backend := range primitiveBackend {
		r.primitives[p] = &Type{Kind: KindPrimitive, Prim: p, backend: backend}
	}
	// Any is a marker struct with no fields/methods; it participates in
	// generic-parameter constraints only (§4.7's "declared type is an
	// identifier literal" case binds to whatever concrete type is passed).
	r.any = &Type{Kind: KindStruct, StructName: "Any", Methods: map[string]*Method{}, backend: "ptr"}
	return r
}

// Primitive returns the singleton Type for p.
func (r *Registry) Primitive(p Primitive) *Type { return r.primitives[p] }

// Any returns the universal marker type.
func (r *Registry) Any() *Type { return r.any }

// NewStructType creates (but does not register) a struct type with the
// given fields. Callers register it into an Environment; the Registry only
// tracks it for generic-instance memoization.
func (r *Registry) NewStructType(name string, fields []Field, generics []*Type) *Type {
	t := &Type{
		Kind:        KindStruct,
		StructName:  name,
		Fields:      fields,
		Methods:     make(map[string]*Method),
		GenericArgs: generics,
		backend:     "ptr",
	}
	r.structs[mangleStructKey(name, generics)] = t
	return t
}

// LookupStructInstance returns a previously created instantiation of a
// generic struct template for the given argument tuple, implementing the
// "generic instances are cached ... keyed by the argument-type tuple"
// lifecycle rule of §3.
func (r *Registry) LookupStructInstance(name string, args []*Type) (*Type, bool) {
	t, ok := r.structs[mangleStructKey(name, args)]
	return t, ok
}

func mangleStructKey(name string, args []*Type) string {
	key := name
	for _, a := range args {
		key += "," + a.String()
	}
	return key
}

// RawArray constructs the raw_array[T] type described in §3/§4.1: exactly
// one element-type parameter.
func (r *Registry) RawArray(elem *Type) *Type {
	return &Type{Kind: KindRawArray, Elem: elem, backend: "ptr"}
}

// GenericParam produces a placeholder type used only inside template
// bodies during instantiation binding (§3).
func (r *Registry) GenericParam(name string) *Type {
	return &Type{Kind: KindGenericParam, ParamName: name}
}

// Reference wraps t so that a parameter using it emits a pointer-to-T
// backend signature (§4.3 step 5), without being a distinct type for
// equality purposes.
func Reference(t *Type) *Type {
	clone := *t
	clone.Reference = true
	return &clone
}

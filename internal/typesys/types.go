// Package typesys implements the Type Registry of §3/§4.1: the tagged
// type variant, primitive bootstrap, and the equality/conversion queries
// every later component builds on. It is the lowest package in the
// dependency order of §2.
package typesys

import "fmt"

// Kind tags which variant a Type value holds.
type Kind int

const (
	KindPrimitive Kind = iota
	KindStruct
	KindRawArray
	KindGenericParam
)

// Primitive enumerates the primitive kinds of §3.
type Primitive int

const (
	Int64 Primitive = iota
	Int32
	Uint64
	Uint32
	Float64
	Float32
	Int8
	Bool
	StrPointer
	Void
	RawPointer
	NullPointer
)

var primitiveNames = map[Primitive]string{
	Int64: "int", Int32: "int32", Uint64: "uint", Uint32: "uint32",
	Float64: "float", Float32: "float32", Int8: "char", Bool: "bool",
	StrPointer: "str", Void: "void", RawPointer: "ptr", NullPointer: "nullptr_t",
}

// backendHandle is the textual SSA type string a Type lowers to (§6
// "Output"). Real backends would carry a richer handle (llvm::Type*); the
// textual emitter only needs this string.
type backendHandle = string

var primitiveBackend = map[Primitive]backendHandle{
	Int64: "i64", Int32: "i32", Uint64: "i64", Uint32: "i32",
	Float64: "double", Float32: "float", Int8: "i8", Bool: "i1",
	StrPointer: "ptr", Void: "void", RawPointer: "ptr", NullPointer: "ptr",
}

func (p Primitive) IsInteger() bool {
	switch p {
	case Int64, Int32, Uint64, Uint32, Int8:
		return true
	}
	return false
}

func (p Primitive) IsUnsigned() bool {
	return p == Uint64 || p == Uint32
}

func (p Primitive) IsFloat() bool {
	return p == Float64 || p == Float32
}

// Width returns the bit width of an integer/float/bool primitive.
func (p Primitive) Width() int {
	switch p {
	case Int64, Uint64, Float64:
		return 64
	case Int32, Uint32, Float32:
		return 32
	case Int8, Bool:
		return 8
	default:
		return 0
	}
}

// Field is one named, typed struct member (§3).
type Field struct {
	Name string
	Type *Type
}

// Method is a struct's member function, found by name during dunder/field
// dispatch (§4.5).
type Method struct {
	Name string
	Fn   *Function
}

// Function captures everything the Overload Engine (§4.4) and Value
// Resolver (§4.5) need about a callable: its mangled backend symbol,
// parameter/return types, and attributes.
type Function struct {
	Name       string
	Mangled    string
	Params     []Param
	ReturnType *Type
	Autocast   bool
	Variadic   bool
	// HasBody is false for an external declaration (§4.8 import bodies,
	// §4.1 C bindings): only a signature exists, no emission is performed.
	HasBody bool
}

// Param is one function parameter (§3).
type Param struct {
	Name        string
	Type        *Type
	ByReference bool
}

// Type is the tagged variant of §3. Exactly one of the kind-specific
// fields below is meaningful, selected by Kind.
type Type struct {
	Kind Kind

	// KindPrimitive
	Prim Primitive

	// KindStruct
	StructName string
	Fields     []Field
	Methods    map[string]*Method
	// GenericArgs distinguishes instantiations of the same template; nil
	// or empty for a non-generic struct.
	GenericArgs []*Type

	// KindRawArray
	Elem *Type

	// KindGenericParam — only meaningful inside an uninstantiated
	// template body.
	ParamName string

	// Reference marks a parameter-position type as "passed by reference"
	// (§4.3 step 5); the backend handle for such a type is a pointer to
	// the underlying type's handle. Reference never participates in type
	// equality — it is a parameter-passing annotation, not a distinct
	// type.
	Reference bool

	backend backendHandle
}

// Backend returns the textual SSA type this Type lowers to.
func (t *Type) Backend() string {
	if t == nil {
		return "void"
	}
	if t.Reference {
		return "ptr"
	}
	return t.backend
}

// String renders a human-readable name, used in diagnostics and mangling.
func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case KindPrimitive:
		return primitiveNames[t.Prim]
	case KindRawArray:
		return fmt.Sprintf("raw_array[%s]", t.Elem.String())
	case KindGenericParam:
		return t.ParamName
	case KindStruct:
		if len(t.GenericArgs) == 0 {
			return t.StructName
		}
		s := t.StructName + "["
		for i, g := range t.GenericArgs {
			if i > 0 {
				s += ", "
			}
			s += g.String()
		}
		return s + "]"
	default:
		return "?"
	}
}

// Equal implements the struct-equality invariant of §3: "two struct types
// are equal iff they share name AND generic-argument tuple". Primitives
// compare by Primitive; raw arrays compare by element type; generic
// params compare by name (only meaningful within one template binding).
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindPrimitive:
		return t.Prim == o.Prim
	case KindRawArray:
		return t.Elem.Equal(o.Elem)
	case KindGenericParam:
		return t.ParamName == o.ParamName
	case KindStruct:
		if t.StructName != o.StructName {
			return false
		}
		if len(t.GenericArgs) != len(o.GenericArgs) {
			return false
		}
		for i := range t.GenericArgs {
			if !t.GenericArgs[i].Equal(o.GenericArgs[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// IsVoid reports whether t is the void primitive (nil also counts as void,
// matching a function with no declared return type).
func (t *Type) IsVoid() bool {
	return t == nil || (t.Kind == KindPrimitive && t.Prim == Void)
}

// FindMethod looks up a struct method by name, used for dunder dispatch
// (§4.5) and array-wrapper's __index__ (§4.1).
func (t *Type) FindMethod(name string) *Method {
	if t == nil || t.Kind != KindStruct {
		return nil
	}
	return t.Methods[name]
}

// FieldIndex returns the struct field index and type for a member-access
// name, or -1 if absent (§4.5 "Member access").
func (t *Type) FieldIndex(name string) (int, *Type) {
	if t == nil || t.Kind != KindStruct {
		return -1, nil
	}
	for i, f := range t.Fields {
		if f.Name == name {
			return i, f.Type
		}
	}
	return -1, nil
}

package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/gigglyc/internal/ast"
)

func fn(name string, params []ast.Param, ret *ast.TypeNode, body *ast.BlockStatement) *ast.FunctionStatement {
	return &ast.FunctionStatement{Name: name, Params: params, Return: ret, Body: body}
}

func typeNode(name string) *ast.TypeNode { return &ast.TypeNode{Name: name} }

// scenario 1 of §8's worked examples: `def main() -> int { return 2 + 3 * 4; }`
// must lower the precedence-respecting tree into a mul followed by an add.
func TestCompileIntegerArithmetic(t *testing.T) {
	body := &ast.BlockStatement{Statements: []ast.Statement{
		&ast.Return{Value: &ast.InfixExpression{
			Left:     &ast.IntegerLiteral{Value: 2},
			Operator: "+",
			Right: &ast.InfixExpression{
				Left:     &ast.IntegerLiteral{Value: 3},
				Operator: "*",
				Right:    &ast.IntegerLiteral{Value: 4},
			},
		}},
	}}
	prog := &ast.Program{Statements: []ast.Statement{fn("main", nil, typeNode("int"), body)}}

	c := New("main.gc")
	require.Nil(t, c.Compile(prog))

	out := c.Module.Render()
	assert.Contains(t, out, "mul i64 3, 4")
	assert.Contains(t, out, "add i64 2,")
	assert.Contains(t, out, "ret i64")
}

// scenario 2: a narrower parameter widens to the declared return type via
// an implicit sext, per §4.4's conversion table.
func TestCompileImplicitWideningInsertsSExt(t *testing.T) {
	body := &ast.BlockStatement{Statements: []ast.Statement{
		&ast.Return{Value: &ast.Identifier{Name: "x"}},
	}}
	params := []ast.Param{{Name: "x", Type: *typeNode("int32")}}
	prog := &ast.Program{Statements: []ast.Statement{fn("widen", params, typeNode("int"), body)}}

	c := New("main.gc")
	require.Nil(t, c.Compile(prog))

	out := c.Module.Render()
	assert.Contains(t, out, "sext i32")
	assert.Contains(t, out, "to i64")
}

// scenario 3: calling a generic function monomorphizes it per argument-type
// tuple, producing the `id__int` symbol named in §8.
func TestCompileGenericFunctionMonomorphizes(t *testing.T) {
	idBody := &ast.BlockStatement{Statements: []ast.Statement{
		&ast.Return{Value: &ast.Identifier{Name: "x"}},
	}}
	idFn := fn("id", []ast.Param{{Name: "x", Type: *typeNode("T")}}, typeNode("T"), idBody)
	idFn.Generics = []string{"T"}

	mainBody := &ast.BlockStatement{Statements: []ast.Statement{
		&ast.Return{Value: &ast.CallExpression{
			Callee: &ast.Identifier{Name: "id"},
			Args:   []ast.Expression{&ast.IntegerLiteral{Value: 5}},
		}},
	}}
	prog := &ast.Program{Statements: []ast.Statement{
		idFn,
		fn("main", nil, typeNode("int"), mainBody),
	}}

	c := New("main.gc")
	require.Nil(t, c.Compile(prog))

	out := c.Module.Render()
	assert.Contains(t, out, "id__int")
	assert.Contains(t, out, "call i64 @id__int(5)")
}

// scenario 4: `new Box(5)` allocates, dispatches __init__, and a later
// index expression dispatches the __index__ dunder.
func TestCompileStructConstructAndIndexDispatch(t *testing.T) {
	initBody := &ast.BlockStatement{Statements: []ast.Statement{
		&ast.VariableAssignment{
			Target: &ast.InfixExpression{Left: &ast.Identifier{Name: "self"}, Operator: ".", Right: &ast.Identifier{Name: "value"}},
			Value:  &ast.Identifier{Name: "v"},
		},
	}}
	initFn := fn("__init__", []ast.Param{{Name: "v", Type: *typeNode("int")}}, nil, initBody)

	indexBody := &ast.BlockStatement{Statements: []ast.Statement{
		&ast.Return{Value: &ast.InfixExpression{Left: &ast.Identifier{Name: "self"}, Operator: ".", Right: &ast.Identifier{Name: "value"}}},
	}}
	indexFn := fn("__index__", []ast.Param{{Name: "i", Type: *typeNode("int")}}, typeNode("int"), indexBody)

	box := &ast.StructStatement{
		Name:    "Box",
		Fields:  []ast.Param{{Name: "value", Type: *typeNode("int")}},
		Methods: []*ast.FunctionStatement{initFn, indexFn},
	}

	mainBody := &ast.BlockStatement{Statements: []ast.Statement{
		&ast.VariableDeclaration{Name: "b", Value: &ast.CallExpression{
			Callee: &ast.Identifier{Name: "Box"},
			Args:   []ast.Expression{&ast.IntegerLiteral{Value: 5}},
			New:    true,
		}},
		&ast.Return{Value: &ast.IndexExpression{
			Left:  &ast.Identifier{Name: "b"},
			Index: &ast.IntegerLiteral{Value: 0},
		}},
	}}
	prog := &ast.Program{Statements: []ast.Statement{box, fn("main", nil, typeNode("int"), mainBody)}}

	c := New("main.gc")
	require.Nil(t, c.Compile(prog))

	out := c.Module.Render()
	// the constructor sizes its allocation via the null-pointer GEP trick
	// rather than a hardcoded element count.
	assert.Contains(t, out, "getelementptr %Box, ptr null, i64 1")
	assert.Contains(t, out, "ptrtoint ptr")
	assert.Contains(t, out, "Box.__init__")
	assert.Contains(t, out, "Box.__index__")
}

// scenario 5: a break with depth 1 inside a nested while must target the
// outer loop's continuation block, not the inner one's own.
func TestCompileNestedBreakTargetsOuterLoop(t *testing.T) {
	inner := &ast.While{
		Condition: &ast.BooleanLiteral{Value: true},
		Body: &ast.BlockStatement{Statements: []ast.Statement{
			&ast.Break{Depth: 1},
		}},
	}
	outer := &ast.While{
		Condition: &ast.BooleanLiteral{Value: true},
		Body:      &ast.BlockStatement{Statements: []ast.Statement{inner}},
	}
	body := &ast.BlockStatement{Statements: []ast.Statement{
		outer,
		&ast.Return{Value: &ast.IntegerLiteral{Value: 0}},
	}}
	prog := &ast.Program{Statements: []ast.Statement{fn("main", nil, typeNode("int"), body)}}

	c := New("main.gc")
	require.Nil(t, c.Compile(prog))

	out := c.Module.Render()
	// the inner loop's own blocks are disambiguated with a numeric suffix
	// (internal/ssa.Builder.AppendBlock) since "while.cont" is already taken
	// by the outer loop.
	assert.True(t, hasExactLine(out, "while.cont.1:"))
	// the break must branch to the outer loop's continuation block, whose
	// label is the unsuffixed "while.cont", not the inner's own.
	assert.True(t, hasExactLine(out, "br label %while.cont"))
}

// hasExactLine reports whether any line, trimmed of surrounding whitespace,
// equals want exactly — guards against "while.cont" matching as a substring
// of the disambiguated "while.cont.1".
func hasExactLine(text, want string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}

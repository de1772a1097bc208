package modloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/buildstore"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/resolve"
	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/typesys"
)

// scenario 6 of §8: a.gc declares `f() -> int { return 9; }`; main.gc
// imports a and calls a.f(). The loader must produce an external
// declaration for f's mangled symbol without recompiling its body, and the
// symbol it hands back must be exactly what a call site needs to invoke.
func TestImportDeclaresExternalSymbolForDependencyFunction(t *testing.T) {
	baseDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "a.gc"), []byte("def f() -> int { return 9; }"), 0o644))

	store, err := buildstore.OpenMemory()
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.MarkCompiled("a.gc", nil, nil, nil, nil))

	reg := typesys.NewRegistry()
	types := resolve.New(reg, nil, "main.gc")
	mod := ssa.NewModule("main")
	b := ssa.NewBuilder(mod)

	aProgram := &ast.Program{Statements: []ast.Statement{
		&ast.FunctionStatement{
			Name:   "f",
			Return: &ast.TypeNode{Name: "int"},
			Body: &ast.BlockStatement{Statements: []ast.Statement{
				&ast.Return{Value: &ast.IntegerLiteral{Value: 9}},
			}},
		},
	}}
	parse := func(path string) (*ast.Program, error) { return aProgram, nil }

	loader := New(store, reg, types, b, parse, baseDir, "main.gc", time.Millisecond, time.Second)

	into := environ.New("root")
	d := loader.Import(&ast.ImportStatement{Path: "a"}, into)
	require.Nil(t, d)

	modRec := into.Lookup("a")
	require.Len(t, modRec, 1)
	require.NotNil(t, modRec[0].Module)

	fRecs := modRec[0].Module.Lookup("f")
	require.Len(t, fRecs, 1)
	assert.Equal(t, "a..f", fRecs[0].Func.Mangled)

	// the dependency's body was never compiled: only an external
	// declaration was emitted, no defined function.
	out := mod.Render()
	assert.Contains(t, out, "declare i64 @a..f()")
	assert.NotContains(t, out, "define i64 @a..f()")

	// the declared symbol is exactly what a call site needs: it lowers to
	// a valid call instruction against the external declaration.
	b.BeginFunction("main..main", "i64", nil, false)
	b.SetInsertBlock(b.AppendBlock("entry"))
	v := b.CreateCall(fRecs[0].Func.Mangled, "i64", nil)
	b.CreateRet(v, "i64")

	out = mod.Render()
	assert.Contains(t, out, "call i64 @a..f()")
}

// A dependency still being compiled must block the import until the build
// store's Compiled flag flips, the producer/consumer handshake of §4.8
// step 2 / §5.
func TestImportWaitsForDependencyToFinishCompiling(t *testing.T) {
	baseDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "a.gc"), []byte("def f() -> int { return 9; }"), 0o644))

	store, err := buildstore.OpenMemory()
	require.NoError(t, err)
	defer store.Close()
	_, err = store.FindOrCreate("a.gc") // tracked, but not yet marked compiled
	require.NoError(t, err)

	reg := typesys.NewRegistry()
	types := resolve.New(reg, nil, "main.gc")
	mod := ssa.NewModule("main")
	b := ssa.NewBuilder(mod)

	aProgram := &ast.Program{Statements: []ast.Statement{
		&ast.FunctionStatement{Name: "f", Return: &ast.TypeNode{Name: "int"}},
	}}
	parse := func(path string) (*ast.Program, error) { return aProgram, nil }

	loader := New(store, reg, types, b, parse, baseDir, "main.gc", 5*time.Millisecond, 30*time.Millisecond)

	done := make(chan *ast.ImportStatement)
	go func() {
		time.Sleep(15 * time.Millisecond)
		require.NoError(t, store.MarkCompiled("a.gc", nil, nil, nil, nil))
		close(done)
	}()

	into := environ.New("root")
	d := loader.Import(&ast.ImportStatement{Path: "a"}, into)
	require.Nil(t, d)
	<-done

	recs := into.Lookup("a")
	require.Len(t, recs, 1)
}

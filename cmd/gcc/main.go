// Command gcc is the thin CLI entry point for the core: it wires one
// source unit through the lexer/parser stand-in below and
// internal/compiler, then prints the emitted IR (or renders a fatal
// diagnostic) to stdout/stderr. The real lexer and parser are
// out-of-scope collaborators (§1); sampleProgram below is their stand-in
// until one is wired in, the way the teacher's demo/cmd command stands
// in for a real editor integration with hand-built fixtures.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/compiler"
	"github.com/oxhq/gigglyc/internal/config"
	"github.com/oxhq/gigglyc/internal/diag"
)

func main() {
	var envPath string
	var relPath string

	rootCmd := &cobra.Command{
		Use:   "gcc",
		Short: "GigglyC ahead-of-time compiler",
		Long:  "Compiles a single GigglyC source unit down to textual SSA IR.",
	}

	compileCmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the built-in sample program and print its IR",
		Long: "Compiles the built-in sample program (scenario 1 of the " +
			"language's worked examples: `def main() -> int { return 2 + 3 * 4; }`) " +
			"and prints the emitted module. A real invocation would replace " +
			"sampleProgram with the lexer/parser's output for a given file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(envPath)
			_ = cfg // wired for future driver use (build-store path, poll cadence)

			c := compiler.New(relPath)
			if d := c.Compile(sampleProgram()); d != nil {
				printDiagnostic(d)
				os.Exit(1)
			}
			fmt.Print(c.Module.Render())
			return nil
		},
	}
	compileCmd.Flags().StringVar(&envPath, "env", ".env", "path to a .env file with GC_* overrides")
	compileCmd.Flags().StringVar(&relPath, "file", "main.gc", "relative path used for name mangling and diagnostics")

	rootCmd.AddCommand(compileCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printDiagnostic(d *diag.Diagnostic) {
	diag.NewTextSink(os.Stderr).Report(d)
}

// sampleProgram hand-builds the parse tree for:
//
//	def main() -> int {
//	    return 2 + 3 * 4;
//	}
//
// matching §8 scenario 1's worked example, until a real lexer/parser is
// wired into this command.
func sampleProgram() *ast.Program {
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
	return &ast.Program{Statements: []ast.Statement{
		&ast.FunctionStatement{
			Name:   "main",
			Return: &ast.TypeNode{Name: "int"},
			Body:   body,
		},
	}}
}

// Package stmt implements the Statement Compiler of §4.6: the
// structured-control-flow state machine that lowers statements to basic
// blocks with explicit branches.
//
// Compiler satisfies generics.BodyCompiler, closing the loop the Generic
// Instantiator's package-level interface opened: internal/compiler wires
// this concrete type in at startup so instantiated generic bodies compile
// through the same state machine as ordinary function bodies.
package stmt

import (
	"fmt"

	"github.com/oxhq/gigglyc/internal/ast"
	"github.com/oxhq/gigglyc/internal/diag"
	"github.com/oxhq/gigglyc/internal/environ"
	"github.com/oxhq/gigglyc/internal/resolve"
	"github.com/oxhq/gigglyc/internal/ssa"
	"github.com/oxhq/gigglyc/internal/typesys"
	"github.com/oxhq/gigglyc/internal/value"
)

// Signal is the unreachable-signal result of compiling one statement or
// block: whether control diverted irrevocably (return/break/continue)
// before reaching the statement after it. Per the §9 redesign note this
// replaces exception-based control-flow propagation with an explicit
// return value threaded by the caller.
type Signal int

const (
	SigNone Signal = iota
	SigReturn
	SigBreak
	SigContinue
)

// Compiler is the Statement Compiler.
type Compiler struct {
	Reg      *typesys.Registry
	Types    *resolve.Resolver
	Value    *value.Resolver
	File     string

	currentReturn *typesys.Type
}

func New(reg *typesys.Registry, types *resolve.Resolver, val *value.Resolver, file string) *Compiler {
	return &Compiler{Reg: reg, Types: types, Value: val, File: file}
}

// CompileFunctionBody implements generics.BodyCompiler and is also the
// entry point internal/compiler uses for ordinary (non-generic) function
// bodies that have no implicit receiver.
func (c *Compiler) CompileFunctionBody(fn *ast.FunctionStatement, env *environ.Environment, b *ssa.Builder, mangled string, returnType *typesys.Type) *diag.Diagnostic {
	return c.compileBody(fn, env, b, mangled, returnType, nil)
}

// CompileMethodBody is CompileFunctionBody with an implicit by-reference
// "self" receiver wired ahead of fn's declared parameters, matching how
// every struct method is invoked with the instance address as its first
// argument (§4.5's dunder/member/constructor call sites all pass
// self.Addr positionally before the rest). selfType is the (possibly
// freshly instantiated) struct type the method belongs to.
func (c *Compiler) CompileMethodBody(fn *ast.FunctionStatement, env *environ.Environment, b *ssa.Builder, mangled string, returnType *typesys.Type, selfType *typesys.Type) *diag.Diagnostic {
	return c.compileBody(fn, env, b, mangled, returnType, selfType)
}

func (c *Compiler) compileBody(fn *ast.FunctionStatement, env *environ.Environment, b *ssa.Builder, mangled string, returnType *typesys.Type, selfType *typesys.Type) *diag.Diagnostic {
	retBackend := "void"
	if !returnType.IsVoid() {
		retBackend = returnType.Backend()
	}
	var params []string
	if selfType != nil {
		params = append(params, "self: "+selfType.Backend())
	}
	paramTypes := make([]*typesys.Type, len(fn.Params))
	for i, p := range fn.Params {
		pt, d := c.Types.ResolveType(&p.Type, env)
		if d != nil {
			return d
		}
		paramTypes[i] = pt
		params = append(params, fmt.Sprintf("%s: %s", p.Name, pt.Backend()))
	}

	ip := b.SaveInsertPoint()
	b.BeginFunction(mangled, retBackend, params, fn.Variadic)
	b.SetInsertBlock(b.AppendBlock("entry"))

	if selfType != nil {
		selfAddr := b.CreateAlloca(selfType.Backend(), "self.addr")
		b.CreateStore(ssa.Value("%self"), selfAddr, false)
		env.Add(&environ.Record{Kind: environ.RecordVariable, Name: "self", Address: selfAddr, VarType: selfType})
	}
	for i, p := range fn.Params {
		pt := paramTypes[i]
		addr := b.CreateAlloca(pt.Backend(), p.Name+".addr")
		b.CreateStore(ssa.Value("%"+p.Name), addr, false)
		env.Add(&environ.Record{Kind: environ.RecordVariable, Name: p.Name, Address: addr, VarType: pt})
	}

	prevReturn := c.currentReturn
	prevBuilder := c.Value.Builder
	c.currentReturn = returnType
	c.Value.Builder = b
	defer func() {
		c.currentReturn = prevReturn
		c.Value.Builder = prevBuilder
		b.RestoreInsertPoint(ip)
	}()

	_, d := c.CompileBlock(fn.Body, env, nil, b)
	if d != nil {
		return d
	}
	if !b.CurrentBlock().Terminated() {
		if returnType.IsVoid() {
			b.CreateRet("", "void")
		} else {
			b.CreateUnreachable()
		}
	}
	return nil
}

// CompileBlock compiles every statement in order, stopping early once a
// statement diverts control (§9's redesign note: the caller, not the
// Environment, decides what is reachable next).
func (c *Compiler) CompileBlock(block *ast.BlockStatement, env *environ.Environment, loops []*environ.LoopFrame, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	child := env.NewChild("block")
	for _, s := range block.Statements {
		if b.CurrentBlock().Terminated() {
			break
		}
		sig, d := c.CompileStatement(s, child, loops, b)
		if d != nil {
			return sig, d
		}
		if sig != SigNone {
			return sig, nil
		}
	}
	return SigNone, nil
}

func (c *Compiler) CompileStatement(stmt ast.Statement, env *environ.Environment, loops []*environ.LoopFrame, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		_, d := c.Value.Resolve(s.Expr, env)
		return SigNone, d
	case *ast.BlockStatement:
		return c.CompileBlock(s, env, loops, b)
	case *ast.VariableDeclaration:
		return c.compileVarDecl(s, env, b)
	case *ast.VariableAssignment:
		return c.compileAssign(s, env, b)
	case *ast.IfElse:
		return c.compileIf(s, env, loops, b)
	case *ast.While:
		return c.compileWhile(s, env, loops, b)
	case *ast.For:
		return c.compileFor(s, env, loops, b)
	case *ast.Break:
		return c.compileBreak(s, loops, b)
	case *ast.Continue:
		return c.compileContinue(s, loops, b)
	case *ast.Return:
		return c.compileReturn(s, env, b)
	case *ast.SwitchCase:
		return c.compileSwitch(s, env, loops, b)
	case *ast.Raise:
		sp := s.Pos()
		return SigNone, diag.New(diag.CodeNotImplemented, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "raise is not implemented")
	case *ast.TryCatch:
		sp := s.Pos()
		return SigNone, diag.New(diag.CodeNotImplemented, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "try/catch is not implemented")
	default:
		sp := stmt.Pos()
		return SigNone, diag.New(diag.CodeInternal, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "unhandled statement node")
	}
}

func (c *Compiler) compileVarDecl(decl *ast.VariableDeclaration, env *environ.Environment, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	sp := decl.Pos()
	if len(env.LookupLocal(decl.Name)) > 0 {
		return SigNone, diag.New(diag.CodeDuplicate, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "%q is already declared in this scope", decl.Name)
	}
	res, d := c.Value.Resolve(decl.Value, env)
	if d != nil {
		return SigNone, d
	}
	varType := res.Type
	if decl.Type != nil {
		declared, d := c.Types.ResolveType(decl.Type, env)
		if d != nil {
			return SigNone, d
		}
		varType = declared
	}
	val, d := c.Value.ConvertTo(res, varType, sp)
	if d != nil {
		return SigNone, d
	}
	addr := b.CreateAlloca(varType.Backend(), decl.Name)
	b.CreateStore(val, addr, decl.Volatile)
	env.Add(&environ.Record{Kind: environ.RecordVariable, Name: decl.Name, Address: addr, VarType: varType, Volatile: decl.Volatile})
	return SigNone, nil
}

func (c *Compiler) compileAssign(assign *ast.VariableAssignment, env *environ.Environment, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	sp := assign.Pos()
	target, d := c.Value.Resolve(assign.Target, env)
	if d != nil {
		return SigNone, d
	}
	if target.Addr == "" {
		return SigNone, diag.New(diag.CodeWrongType, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "left-hand side of assignment is not assignable")
	}
	res, d := c.Value.Resolve(assign.Value, env)
	if d != nil {
		return SigNone, d
	}
	val, d := c.Value.ConvertTo(res, target.Type, sp)
	if d != nil {
		return SigNone, d
	}
	volatile := false
	if id, ok := assign.Target.(*ast.Identifier); ok {
		if rec := env.Variable(id.Name); rec != nil {
			volatile = rec.Volatile
		}
	}
	b.CreateStore(val, target.Addr, volatile)
	return SigNone, nil
}

func (c *Compiler) requireBool(res *value.Resolved, sp ast.Span) *diag.Diagnostic {
	if res.Type == nil || res.Type.Kind != typesys.KindPrimitive || res.Type.Prim != typesys.Bool {
		return diag.New(diag.CodeWrongType, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "condition must be bool, got %s", res.Type)
	}
	return nil
}

// compileIf implements the if/else row of §4.6's state-machine table:
// then/cont[/else] blocks, a cond-br entry, and an unconditional branch
// to cont from both arms.
func (c *Compiler) compileIf(stmt *ast.IfElse, env *environ.Environment, loops []*environ.LoopFrame, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	sp := stmt.Pos()
	cond, d := c.Value.Resolve(stmt.Condition, env)
	if d != nil {
		return SigNone, d
	}
	if d := c.requireBool(cond, sp); d != nil {
		return SigNone, d
	}

	thenBlk := b.AppendBlock("if.then")
	contBlk := b.AppendBlock("if.cont")
	var elseBlk *ssa.Block
	branchElse := contBlk
	if stmt.Else != nil {
		elseBlk = b.AppendBlock("if.else")
		branchElse = elseBlk
	}
	b.CreateCondBr(cond.Val, thenBlk, branchElse)

	b.SetInsertBlock(thenBlk)
	thenSig, d := c.CompileBlock(stmt.Then, env, loops, b)
	if d != nil {
		return SigNone, d
	}
	if !b.CurrentBlock().Terminated() {
		b.CreateBr(contBlk)
	}

	elseSig := SigNone
	if stmt.Else != nil {
		b.SetInsertBlock(elseBlk)
		elseSig, d = c.CompileBlock(stmt.Else, env, loops, b)
		if d != nil {
			return SigNone, d
		}
		if !b.CurrentBlock().Terminated() {
			b.CreateBr(contBlk)
		}
	}

	b.SetInsertBlock(contBlk)
	if stmt.Else != nil && thenSig != SigNone && thenSig == elseSig {
		return thenSig, nil
	}
	return SigNone, nil
}

// compileWhile implements the while row: cond/body/cont[/ifbreak/notbreak]
// blocks, an unconditional branch into cond, a cond-br dispatching to
// body or cont, a body back-edge to cond.
func (c *Compiler) compileWhile(stmt *ast.While, env *environ.Environment, loops []*environ.LoopFrame, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	sp := stmt.Pos()
	condBlk := b.AppendBlock("while.cond")
	bodyBlk := b.AppendBlock("while.body")
	contBlk := b.AppendBlock("while.cont")

	b.CreateBr(condBlk)
	b.SetInsertBlock(condBlk)
	cond, d := c.Value.Resolve(stmt.Condition, env)
	if d != nil {
		return SigNone, d
	}
	if d := c.requireBool(cond, sp); d != nil {
		return SigNone, d
	}
	b.CreateCondBr(cond.Val, bodyBlk, contBlk)

	b.SetInsertBlock(bodyBlk)
	frame := &environ.LoopFrame{ContinueBlock: condBlk, BodyBlock: bodyBlk, ConditionBlock: condBlk, NotBreakBlock: contBlk}
	_, d = c.CompileBlock(stmt.Body, env, prependLoop(frame, loops), b)
	if d != nil {
		return SigNone, d
	}
	if !b.CurrentBlock().Terminated() {
		b.CreateBr(condBlk)
	}

	b.SetInsertBlock(contBlk)
	return SigNone, nil
}

func prependLoop(frame *environ.LoopFrame, loops []*environ.LoopFrame) []*environ.LoopFrame {
	out := make([]*environ.LoopFrame, 0, len(loops)+1)
	out = append(out, frame)
	return append(out, loops...)
}

// compileFor implements the for-each row: `__iter__` obtains the
// iterator once, `__done__` gates the loop from the cond block, and
// `__next__` rebinds the loop variable at the top of the body.
func (c *Compiler) compileFor(stmt *ast.For, env *environ.Environment, loops []*environ.LoopFrame, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	sp := stmt.Pos()
	iterable, d := c.Value.Resolve(stmt.Iterable, env)
	if d != nil {
		return SigNone, d
	}
	if iterable.Type == nil || iterable.Type.Kind != typesys.KindStruct {
		return SigNone, diag.New(diag.CodeWrongType, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "%s is not iterable", iterable.Type)
	}
	iterMethod := iterable.Type.FindMethod("__iter__")
	if iterMethod == nil {
		return SigNone, diag.New(diag.CodeWrongType, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "%s has no __iter__ method", iterable.Type)
	}
	iterVal := b.CreateCall(iterMethod.Fn.Mangled, iterMethod.Fn.ReturnType.Backend(), []ssa.Value{iterable.Addr})
	iterType := iterMethod.Fn.ReturnType
	iterAddr := b.CreateAlloca(iterType.Backend(), "iter")
	b.CreateStore(iterVal, iterAddr, false)

	doneMethod := iterType.FindMethod("__done__")
	nextMethod := iterType.FindMethod("__next__")
	if doneMethod == nil || nextMethod == nil {
		return SigNone, diag.New(diag.CodeWrongType, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "%s is not a valid iterator (missing __done__/__next__)", iterType)
	}

	condBlk := b.AppendBlock("for.cond")
	bodyBlk := b.AppendBlock("for.body")
	contBlk := b.AppendBlock("for.cont")

	b.CreateBr(condBlk)
	b.SetInsertBlock(condBlk)
	doneVal := b.CreateCall(doneMethod.Fn.Mangled, doneMethod.Fn.ReturnType.Backend(), []ssa.Value{iterAddr})
	b.CreateCondBr(doneVal, contBlk, bodyBlk)

	b.SetInsertBlock(bodyBlk)
	nextVal := b.CreateCall(nextMethod.Fn.Mangled, nextMethod.Fn.ReturnType.Backend(), []ssa.Value{iterAddr})
	loopVarAddr := b.CreateAlloca(nextMethod.Fn.ReturnType.Backend(), stmt.LoopVar)
	b.CreateStore(nextVal, loopVarAddr, false)

	bodyEnv := env.NewChild("for-body")
	bodyEnv.Add(&environ.Record{Kind: environ.RecordVariable, Name: stmt.LoopVar, Address: loopVarAddr, VarType: nextMethod.Fn.ReturnType})

	frame := &environ.LoopFrame{ContinueBlock: condBlk, BodyBlock: bodyBlk, ConditionBlock: condBlk, NotBreakBlock: contBlk}
	_, d = c.CompileBlock(stmt.Body, bodyEnv, prependLoop(frame, loops), b)
	if d != nil {
		return SigNone, d
	}
	if !b.CurrentBlock().Terminated() {
		b.CreateBr(condBlk)
	}

	b.SetInsertBlock(contBlk)
	return SigNone, nil
}

func (c *Compiler) loopAt(loops []*environ.LoopFrame, depth int, sp ast.Span) (*environ.LoopFrame, *diag.Diagnostic) {
	if depth < 0 || depth >= len(loops) {
		return nil, diag.New(diag.CodeLoopDepth, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
			"break/continue depth %d has no enclosing loop", depth)
	}
	return loops[depth], nil
}

func (c *Compiler) compileBreak(stmt *ast.Break, loops []*environ.LoopFrame, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	frame, d := c.loopAt(loops, stmt.Depth, stmt.Pos())
	if d != nil {
		return SigNone, d
	}
	target := frame.IfBreakBlock
	if target == nil {
		target = frame.NotBreakBlock
	}
	b.CreateBr(target)
	return SigBreak, nil
}

func (c *Compiler) compileContinue(stmt *ast.Continue, loops []*environ.LoopFrame, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	frame, d := c.loopAt(loops, stmt.Depth, stmt.Pos())
	if d != nil {
		return SigNone, d
	}
	b.CreateBr(frame.ContinueBlock)
	return SigContinue, nil
}

func (c *Compiler) compileReturn(stmt *ast.Return, env *environ.Environment, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	sp := stmt.Pos()
	if stmt.Value == nil {
		if !c.currentReturn.IsVoid() {
			return SigNone, diag.New(diag.CodeWrongType, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol,
				"bare return is only valid when the function returns void")
		}
		b.CreateRet("", "void")
		return SigReturn, nil
	}
	res, d := c.Value.Resolve(stmt.Value, env)
	if d != nil {
		return SigNone, d
	}
	val, d := c.Value.ConvertTo(res, c.currentReturn, sp)
	if d != nil {
		return SigNone, d
	}
	b.CreateRet(val, c.currentReturn.Backend())
	return SigReturn, nil
}

// compileSwitch implements the switch row: one block per case plus a
// default block (ending in unreachable when there is no `other` arm), and
// the synthetic unreachable "garbage" block §4.6/§9 describe for where
// case-value evaluation occurs.
func (c *Compiler) compileSwitch(stmt *ast.SwitchCase, env *environ.Environment, loops []*environ.LoopFrame, b *ssa.Builder) (Signal, *diag.Diagnostic) {
	sp := stmt.Pos()
	cond, d := c.Value.Resolve(stmt.Condition, env)
	if d != nil {
		return SigNone, d
	}
	if cond.Type == nil || !cond.Type.Prim.IsInteger() {
		return SigNone, diag.New(diag.CodeWrongType, c.File, sp.StartLine, sp.StartCol, sp.EndLine, sp.EndCol, "switch condition must be an integer")
	}

	garbageBlk := b.AppendBlock("switch.garbage")
	endBlk := b.AppendBlock("switch.end")
	defaultBlk := b.AppendBlock("switch.default")

	armBlocks := make([]*ssa.Block, len(stmt.Cases))
	var cases []ssa.SwitchCase
	for i, arm := range stmt.Cases {
		armBlocks[i] = b.AppendBlock(fmt.Sprintf("switch.case%d", i))
		for _, valExpr := range arm.Values {
			lit, ok := valExpr.(*ast.IntegerLiteral)
			if !ok {
				vsp := valExpr.Pos()
				return SigNone, diag.New(diag.CodeWrongType, c.File, vsp.StartLine, vsp.StartCol, vsp.EndLine, vsp.EndCol,
					"switch case values must be compile-time integer constants")
			}
			cases = append(cases, ssa.SwitchCase{Value: lit.Value, Block: armBlocks[i]})
		}
	}
	b.CreateSwitch(cond.Val, cond.Type.Backend(), cases, defaultBlk)

	b.SetInsertBlock(garbageBlk)
	b.CreateUnreachable()

	for i, arm := range stmt.Cases {
		b.SetInsertBlock(armBlocks[i])
		_, d := c.CompileBlock(arm.Body, env, loops, b)
		if d != nil {
			return SigNone, d
		}
		if !b.CurrentBlock().Terminated() {
			b.CreateBr(endBlk)
		}
	}
	if stmt.Other != nil {
		b.SetInsertBlock(defaultBlk)
		_, d := c.CompileBlock(stmt.Other, env, loops, b)
		if d != nil {
			return SigNone, d
		}
		if !b.CurrentBlock().Terminated() {
			b.CreateBr(endBlk)
		}
	} else {
		b.SetInsertBlock(defaultBlk)
		b.CreateUnreachable()
	}

	b.SetInsertBlock(endBlk)
	return SigNone, nil
}

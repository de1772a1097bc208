// Package diag implements the structured diagnostic contract of §6/§7: a
// uniform payload for both human and machine consumers, built the same way
// the teacher's internal/core.CLIError is (a code/message/detail triple),
// widened with the source span and suggested-fix fields §6 calls for.
//
// The core never renders output itself — it only constructs Diagnostic
// values and returns them to its caller, which hands them to a Sink. Sink
// is the out-of-scope reporting component's contract.
package diag

import (
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Code enumerates the error taxonomy of §7.
type Code string

const (
	CodeSyntax           Code = "SYNTAX"
	CodeUndefined        Code = "NAME_NOT_DEFINED"
	CodeDuplicate        Code = "NAME_DUPLICATE"
	CodeNotAMember       Code = "NAME_NOT_A_MEMBER"
	CodeWrongType        Code = "TYPE_MISMATCH"
	CodeWrongInfix       Code = "TYPE_WRONG_INFIX"
	CodeCantIndex        Code = "TYPE_CANT_INDEX"
	CodeArrayElemType    Code = "TYPE_ARRAY_ELEMENT_MISMATCH"
	CodeNoOverload       Code = "OVERLOAD_NO_MATCH"
	CodeAmbiguousCall    Code = "OVERLOAD_AMBIGUOUS"
	CodeNodeOutsideHost  Code = "STRUCTURAL_NODE_OUTSIDE_HOST"
	CodeLoopDepth        Code = "STRUCTURAL_LOOP_DEPTH"
	CodeNotImplemented   Code = "UNIMPLEMENTED"
	CodeInternal         Code = "INTERNAL"
)

// SuggestedFix is an optional before/after rewrite of the offending span.
type SuggestedFix struct {
	Description string
	Before      string
	After       string
}

// Unified renders the fix as a unified diff, the way the teacher's
// diff-oriented Edit/pipeline model would present a rewrite. Returns ""
// when there is no fix to show.
func (f *SuggestedFix) Unified(path string) string {
	if f == nil || (f.Before == "" && f.After == "") {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(f.Before),
		B:        difflib.SplitLines(f.After),
		FromFile: path,
		ToFile:   path,
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

// Diagnostic is the structured record of §6: file/source span, message,
// and an optional suggested fix. It implements error the same way the
// teacher's CLIError does: Error() for a plain message, JSON() for the
// structured payload.
type Diagnostic struct {
	Code      Code           `json:"code"`
	File      string         `json:"file"`
	Source    string         `json:"source,omitempty"`
	StartLine int            `json:"start_line"`
	StartCol  int            `json:"start_col"`
	EndLine   int            `json:"end_line"`
	EndCol    int            `json:"end_col"`
	Message   string         `json:"message"`
	Fix       *SuggestedFix  `json:"suggested_fix,omitempty"`

	// Candidates carries the no-overload mismatch matrix (§6): for each
	// rejected candidate, the indices of parameters that failed to match.
	Candidates []CandidateMismatch `json:"candidates,omitempty"`
}

// CandidateMismatch names one rejected overload and the parameter
// positions whose argument could not convert to it.
type CandidateMismatch struct {
	Signature     string `json:"signature"`
	MismatchIndex []int  `json:"mismatch_index"`
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.StartLine, d.StartCol, d.Message)
}

func (d *Diagnostic) String() string { return d.Error() }

func (d *Diagnostic) JSON() string {
	b, _ := json.Marshal(d)
	return string(b)
}

// New builds a Diagnostic anchored to a span-bearing node's position.
func New(code Code, file string, startLine, startCol, endLine, endCol int, msg string, args ...any) *Diagnostic {
	return &Diagnostic{
		Code:      code,
		File:      file,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   endLine,
		EndCol:    endCol,
		Message:   fmt.Sprintf(msg, args...),
	}
}

// Sink is the rendering boundary every fatal diagnostic crosses. The
// driver (cmd/gcc) calls Report on the Diagnostic the core returned and
// then, per §7's propagation policy, the process exits non-zero; Sink
// implementations decide how/whether to format for humans.
type Sink interface {
	Report(d *Diagnostic)
}

// Fatal wraps a Diagnostic so callers can propagate it as an ordinary Go
// error. The core's own components return *Diagnostic directly and do not
// construct Fatal values.
type Fatal struct {
	*Diagnostic
}

func (f *Fatal) Unwrap() error { return f.Diagnostic }

// AsFatal wraps a diagnostic as a returnable error.
func AsFatal(d *Diagnostic) *Fatal { return &Fatal{Diagnostic: d} }

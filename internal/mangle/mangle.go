// Package mangle implements §6's name-mangling rule in one place so that
// internal/compiler (mangling the file it is compiling) and
// internal/modloader (predicting the mangled names a dependency file
// already produced, without recompiling it) always agree on a symbol's
// final name.
package mangle

import "strings"

// Symbol mangles a top-level declaration's name: the relative path with
// its .gc extension removed and its separators replaced by "..", joined to
// the symbol name with "..".
// main.gc's main function is special-cased to the unmangled name "main"
// (§6 "Name mangling").
func Symbol(relPath, name string) string {
	if relPath == "main.gc" && name == "main" {
		return "main"
	}
	prefix := strings.ReplaceAll(relPath, "\\", "/")
	prefix = strings.TrimSuffix(prefix, ".gc")
	prefix = strings.ReplaceAll(prefix, "/", "..")
	return prefix + ".." + name
}

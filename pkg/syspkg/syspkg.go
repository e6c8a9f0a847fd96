// Package syspkg implements lily's one bootstrapped native package: sys,
// whose sole member is argv: list[string] (spec.md §6, "sys package").
//
// lily has no general module/import system (spec.md §1), so sys isn't
// loaded through one; it's wired in as a fixed vm global slot that the
// compiler's compilePackageAccess resolves sys::argv against directly,
// mirroring spec.md §4.3's find_class_callable dynamic-loader fallback
// for natively-registered members that aren't declared in source.
package syspkg

// GlobalSlot is the vm global slot sys::argv lives in. Both the compiler
// (resolving a sys::argv reference) and the vm (seeding the value before
// Main runs) import this package so the two stay in lockstep without a
// package cycle between them.
const GlobalSlot = 0

// Argv converts the embedder's command-line arguments into the boxed
// element slice a list[string] value holds.
func Argv(args []string) []interface{} {
	elems := make([]interface{}, len(args))
	for i, a := range args {
		elems[i] = a
	}
	return elems
}

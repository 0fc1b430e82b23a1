package runtime

// GlobalRegistry is the single process-wide namespace table (spec §3.4,
// §9 "global mutable state" — deliberately the one piece of state that is
// NOT per-goroutine, since namespaces are shared across the whole VM).
var GlobalRegistry = NewNamespaceRegistry()

// CoreNamespace is the namespace builtins and bootstrap code register
// into; user code typically starts in "user" with core's public vars
// referred in, mirroring clojure.core/user.
var CoreNamespace = GlobalRegistry.FindOrCreate("clj.core")

func init() {
	userNS := GlobalRegistry.FindOrCreate("user")
	SetCurrentNamespace(userNS)
}

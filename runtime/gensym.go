package runtime

import (
	"strings"

	"github.com/google/uuid"
)

// Gensym allocates a symbol name guaranteed unique across the whole
// process, used for macro hygiene and anonymous record/protocol type-key
// allocation (spec §3.5). prefix is cosmetic only; uniqueness comes from
// a UUIDv4 suffix rather than a counter, so it stays unique across
// restarts and across a saved/restored bootstrap cache (§6.5) without
// needing to persist a counter.
func Gensym(prefix string) *Symbol {
	if prefix == "" {
		prefix = "G__"
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return &Symbol{Name: prefix + id[:12]}
}

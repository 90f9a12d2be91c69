package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable contract ids for tests.
//
// Ids have the form "<prefix>-0001", "<prefix>-0002", ... so golden files
// and contract log assertions do not depend on random UUIDs.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix becomes "contract".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "contract"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

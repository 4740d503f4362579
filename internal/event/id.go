package event

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces event identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator derives event IDs from random UUIDs. Only random bytes go
// into the ID: events minted in the same millisecond (a Stop and its derived
// AssistantResponse share a timestamp) must still get distinct IDs.
type UUIDGenerator struct{}

// NewID returns an identifier of the form evt_<12 hex chars>.
func (UUIDGenerator) NewID() string {
	u := uuid.New()
	return "evt_" + hex.EncodeToString(u[:6])
}

// SequenceGenerator produces deterministic sequential IDs for tests.
type SequenceGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *SequenceGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("evt_%012d", g.n)
}

package app

import (
	"fmt"
	"sync"
)

// planSlotID marks book-plan generation as the slot holder, as opposed to
// a chapter id.
const planSlotID = "book-plan"

// slotGuard grants the single generation slot each book allows. Holding the
// slot means one AI call (plan or chapter) is in flight for that book; the
// release func must run on every exit path.
type slotGuard struct {
	mu     sync.Mutex
	active map[string]string // bookID -> slot holder (plan or chapter id)
}

func newSlotGuard() *slotGuard {
	return &slotGuard{active: make(map[string]string)}
}

// acquire claims the book's generation slot for the given holder. It
// returns the release func, or ErrGenerationInFlight when occupied.
func (g *slotGuard) acquire(bookID, holderID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if holder, busy := g.active[bookID]; busy {
		return nil, fmt.Errorf("%w (%s)", ErrGenerationInFlight, holder)
	}
	g.active[bookID] = holderID
	released := false
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if !released {
			released = true
			delete(g.active, bookID)
		}
	}, nil
}

// holder reports the current slot holder for a book, if any.
func (g *slotGuard) holder(bookID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	holder, busy := g.active[bookID]
	return holder, busy
}

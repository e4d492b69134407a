package ruleset

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrStaleVersion is returned by Swap when the new snapshot's version does
// not increase.
var ErrStaleVersion = errors.New("rule set version must increase")

// Holder publishes the active rule set. Readers call Load once per
// validation and keep that snapshot for its whole run.
type Holder struct {
	cur atomic.Pointer[RuleSet]
}

// NewHolder creates a holder with an initial snapshot, which may be nil.
func NewHolder(rs *RuleSet) *Holder {
	h := &Holder{}
	if rs != nil {
		h.cur.Store(rs)
	}
	return h
}

// Load returns the active snapshot, or nil when none has been set.
func (h *Holder) Load() *RuleSet {
	return h.cur.Load()
}

// Swap installs next as the active snapshot. It fails with
// ErrStaleVersion unless next.Version is greater than the current one.
func (h *Holder) Swap(next *RuleSet) error {
	if next == nil {
		return errors.New("cannot install a nil rule set")
	}
	for {
		cur := h.cur.Load()
		if cur != nil && next.Version <= cur.Version {
			return fmt.Errorf("%w: have %d, got %d", ErrStaleVersion, cur.Version, next.Version)
		}
		if h.cur.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

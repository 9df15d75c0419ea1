package buffer

import (
	"github.com/pkg/errors"
	"github.com/ryogrid/bufpool/types"
)

// Replacer tracks the frames eligible for eviction and picks the next victim
type Replacer interface {
	// Victim removes and returns the next frame to evict. false when nothing is eligible.
	Victim() (types.FrameID, bool)
	// Pin removes the frame from the eligible set. No-op when absent.
	Pin(types.FrameID)
	// Unpin makes the frame eligible. No-op, and no change of rank, when already eligible.
	Unpin(types.FrameID)
	// Size returns the number of eligible frames
	Size() int
}

// NewReplacer builds the replacer named kind ("lru" or "clock")
func NewReplacer(kind string, poolSize uint32) (Replacer, error) {
	switch kind {
	case "", "lru":
		return NewLRUReplacer(poolSize), nil
	case "clock":
		return NewClockReplacer(poolSize), nil
	}
	return nil, errors.Errorf("unknown replacer %q", kind)
}

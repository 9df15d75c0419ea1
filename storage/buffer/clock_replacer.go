package buffer

import (
	"sync"

	"github.com/ryogrid/bufpool/common"
	"github.com/ryogrid/bufpool/types"
)

// ClockReplacer implements a clock (second chance) replacer.
// A frame gets its reference bit when it becomes eligible; the hand clears
// set bits as it sweeps and evicts the first eligible frame found with a clear bit.
type ClockReplacer struct {
	mu       sync.Mutex
	eligible []bool
	refBit   []bool
	hand     int
	size     int
}

var _ Replacer = &ClockReplacer{}

func NewClockReplacer(poolSize uint32) *ClockReplacer {
	common.SH_Assert(poolSize > 0, "ClockReplacer: pool size must be positive")
	return &ClockReplacer{
		eligible: make([]bool, poolSize),
		refBit:   make([]bool, poolSize),
	}
}

func (c *ClockReplacer) Victim() (types.FrameID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size == 0 {
		return types.InvalidFrameID, false
	}
	// two sweeps at most: the first may only clear reference bits
	for {
		idx := c.hand
		c.hand = (c.hand + 1) % len(c.eligible)
		if !c.eligible[idx] {
			continue
		}
		if c.refBit[idx] {
			c.refBit[idx] = false
			continue
		}
		c.eligible[idx] = false
		c.size--
		return types.FrameID(idx), true
	}
}

func (c *ClockReplacer) Pin(frameID types.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.eligible[frameID] {
		return
	}
	c.eligible[frameID] = false
	c.refBit[frameID] = false
	c.size--
}

func (c *ClockReplacer) Unpin(frameID types.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eligible[frameID] {
		return
	}
	c.eligible[frameID] = true
	c.refBit[frameID] = true
	c.size++
}

func (c *ClockReplacer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

package buffer

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/ryogrid/bufpool/common"
	"github.com/ryogrid/bufpool/types"
)

// LRUReplacer evicts the frame that became eligible longest ago.
// Recency is the time a frame last reached zero pins, not the time it was last accessed.
type LRUReplacer struct {
	mu  sync.Mutex
	lru *simplelru.LRU[types.FrameID, struct{}]
}

var _ Replacer = &LRUReplacer{}

func NewLRUReplacer(poolSize uint32) *LRUReplacer {
	// the list can never hold more than poolSize distinct frames, so it never evicts on its own
	lru, err := simplelru.NewLRU[types.FrameID, struct{}](int(poolSize), nil)
	common.SH_Assert(err == nil, "LRUReplacer: pool size must be positive")
	return &LRUReplacer{lru: lru}
}

func (r *LRUReplacer) Victim() (types.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frameID, _, ok := r.lru.RemoveOldest()
	if !ok {
		return types.InvalidFrameID, false
	}
	return frameID, true
}

func (r *LRUReplacer) Pin(frameID types.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lru.Remove(frameID)
}

func (r *LRUReplacer) Unpin(frameID types.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Add would move an existing entry to the front
	if r.lru.Contains(frameID) {
		return
	}
	r.lru.Add(frameID, struct{}{})
}

func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lru.Len()
}

// frames returns the eligible frames, oldest first
func (r *LRUReplacer) frames() []types.FrameID {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lru.Keys()
}

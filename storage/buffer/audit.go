package buffer

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/ryogrid/bufpool/types"
)

// Audit checks the bookkeeping invariants of the pool and reports the first violation:
//   - the page table maps each resident page to the frame holding it, one entry per frame
//   - free frames hold no page, are unpinned and appear once
//   - every frame is either free or resident
//   - the replacer holds exactly the resident frames with a zero pin count
func (b *BufferPoolManager) Audit() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	residentFrames := mapset.NewThreadUnsafeSet[types.FrameID]()
	for pageID, frameID := range b.pageTable {
		if int(frameID) < 0 || int(frameID) >= len(b.pages) {
			return errors.Errorf("page %d maps to frame %d out of range", pageID, frameID)
		}
		if got := b.pages[frameID].GetPageId(); got != pageID {
			return errors.Errorf("page %d maps to frame %d which holds page %d", pageID, frameID, got)
		}
		if !residentFrames.Add(frameID) {
			return errors.Errorf("frame %d is mapped by more than one page", frameID)
		}
	}

	freeFrames := mapset.NewThreadUnsafeSet[types.FrameID]()
	for _, frameID := range b.freeList {
		if !freeFrames.Add(frameID) {
			return errors.Errorf("frame %d is in the free list twice", frameID)
		}
		pg := b.pages[frameID]
		if pg.GetPageId() != types.InvalidPageID || pg.PinCount() != 0 || pg.IsDirty() {
			return errors.Errorf("free frame %d is not empty (page %d, pin count %d, dirty %v)",
				frameID, pg.GetPageId(), pg.PinCount(), pg.IsDirty())
		}
	}

	if overlap := residentFrames.Intersect(freeFrames); overlap.Cardinality() > 0 {
		return errors.Errorf("frames %v are both free and resident", overlap.ToSlice())
	}
	if n := residentFrames.Cardinality() + freeFrames.Cardinality(); n != len(b.pages) {
		return errors.Errorf("%d of %d frames are accounted for", n, len(b.pages))
	}

	evictable := mapset.NewThreadUnsafeSet[types.FrameID]()
	for _, frameID := range residentFrames.ToSlice() {
		pinCount := b.pages[frameID].PinCount()
		if pinCount < 0 {
			return errors.Errorf("frame %d has negative pin count %d", frameID, pinCount)
		}
		if pinCount == 0 {
			evictable.Add(frameID)
		}
	}
	if b.replacer.Size() != evictable.Cardinality() {
		return errors.Errorf("replacer tracks %d frames, %d are evictable", b.replacer.Size(), evictable.Cardinality())
	}
	if lru, ok := b.replacer.(*LRUReplacer); ok {
		tracked := mapset.NewThreadUnsafeSet[types.FrameID](lru.frames()...)
		if !tracked.Equal(evictable) {
			return errors.Errorf("replacer tracks %v, evictable frames are %v", tracked.ToSlice(), evictable.ToSlice())
		}
	}
	return nil
}

package buffer

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/ryogrid/bufpool/common"
	"github.com/ryogrid/bufpool/storage/disk"
	"github.com/ryogrid/bufpool/storage/page"
	"github.com/ryogrid/bufpool/types"
	"github.com/sirupsen/logrus"
)

var scratchPool = sync.Pool{
	New: func() any {
		return new([common.PageSize]byte)
	},
}

// BufferPoolManager represents the buffer pool manager.
// One latch guards the page table, the free list, frame metadata and the replacer,
// and is held for the whole of every public operation, disk IO included.
// Helpers with the Locked suffix expect the latch to be held and never take it.
type BufferPoolManager struct {
	diskManager disk.DiskManager
	pages       []*page.Page
	replacer    Replacer
	freeList    []types.FrameID
	pageTable   map[types.PageID]types.FrameID
	mutex       *sync.Mutex
	metrics     *Metrics
}

type Option func(*BufferPoolManager)

// WithReplacer replaces the default LRUReplacer
func WithReplacer(replacer Replacer) Option {
	return func(b *BufferPoolManager) {
		b.replacer = replacer
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(b *BufferPoolManager) {
		b.metrics = metrics
	}
}

// NewBufferPoolManager returns a empty buffer pool manager
func NewBufferPoolManager(poolSize uint32, diskManager disk.DiskManager, opts ...Option) *BufferPoolManager {
	common.SH_Assert(poolSize > 0, "NewBufferPoolManager: pool size must be positive")

	freeList := make([]types.FrameID, 0, poolSize)
	pages := make([]*page.Page, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		freeList = append(freeList, types.FrameID(i))
		pages[i] = page.NewEmpty(types.FrameID(i))
	}

	b := &BufferPoolManager{
		diskManager: diskManager,
		pages:       pages,
		freeList:    freeList,
		pageTable:   make(map[types.PageID]types.FrameID, poolSize),
		mutex:       new(sync.Mutex),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.replacer == nil {
		b.replacer = NewLRUReplacer(poolSize)
	}
	if b.metrics == nil {
		b.metrics = NewMetrics(nil)
	}
	return b
}

// FetchPage fetches the requested page from the buffer pool and pins it.
// On a miss the page is read from disk into a free frame, or into a victim
// frame after the victim has been written back if dirty.
func (b *BufferPoolManager) FetchPage(pageID types.PageID) (*page.Page, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if frameID, ok := b.pageTable[pageID]; ok {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.Pin(frameID)
		b.metrics.Hits.Inc()
		common.ShPrintf(common.DEBUG_INFO_DETAIL, "FetchPage: hit pageID=%d frameID=%d pinCount=%d\n", pageID, frameID, pg.PinCount())
		return pg, nil
	}
	b.metrics.Misses.Inc()

	frameID, isFromFreeList, err := b.getFrameIDLocked()
	if err != nil {
		return nil, err
	}
	pg := b.pages[frameID]

	// read into a scratch buffer so a failed read leaves the reserved frame untouched
	buf := scratchPool.Get().(*[common.PageSize]byte)
	defer scratchPool.Put(buf)
	if err := b.diskManager.ReadPage(pageID, buf[:]); err != nil {
		b.restoreFrameLocked(frameID, isFromFreeList)
		return nil, b.ioFailure("read", pageID, frameID, err)
	}
	b.metrics.DiskReads.Inc()

	if !isFromFreeList {
		if err := b.writeBackLocked(pg); err != nil {
			b.restoreFrameLocked(frameID, isFromFreeList)
			return nil, err
		}
	}

	*pg.Data() = *buf
	b.installLocked(pg, pageID)
	common.ShPrintf(common.BUFFER_INTERNAL_STATE, "FetchPage: loaded pageID=%d into frameID=%d\n", pageID, frameID)
	return pg, nil
}

// UnpinPage unpins the target page from the buffer pool.
// A true isDirty marks the page dirty; false never clears an existing mark.
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return errors.Wrapf(ErrNotResident, "unpin page %d", pageID)
	}
	pg := b.pages[frameID]
	if pg.PinCount() <= 0 {
		return errors.Wrapf(ErrDoubleUnpin, "unpin page %d", pageID)
	}

	if isDirty {
		pg.SetIsDirty(true)
	}
	if pg.DecPinCount() == 0 {
		b.replacer.Unpin(frameID)
	}
	return nil
}

// FlushPage writes the target page to disk whether or not it is dirty, and clears its dirty flag.
// The page may be pinned.
func (b *BufferPoolManager) FlushPage(pageID types.PageID) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return errors.Wrapf(ErrNotResident, "flush page %d", pageID)
	}
	return b.flushFrameLocked(b.pages[frameID])
}

// NewPage allocates a new page on disk and pins it in a zeroed frame.
// The frame is reserved before the id is allocated, so an exhausted pool does not consume ids.
func (b *BufferPoolManager) NewPage() (*page.Page, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, isFromFreeList, err := b.getFrameIDLocked()
	if err != nil {
		return nil, err
	}
	pg := b.pages[frameID]

	if !isFromFreeList {
		if err := b.writeBackLocked(pg); err != nil {
			b.restoreFrameLocked(frameID, isFromFreeList)
			return nil, err
		}
	}

	pageID, err := b.diskManager.AllocatePage()
	if err != nil {
		b.restoreFrameLocked(frameID, isFromFreeList)
		return nil, b.ioFailure("allocate", types.InvalidPageID, frameID, err)
	}

	pg.ZeroData()
	b.installLocked(pg, pageID)
	common.ShPrintf(common.BUFFER_INTERNAL_STATE, "NewPage: pageID=%d frameID=%d\n", pageID, frameID)
	return pg, nil
}

// DeletePage deletes a page from the buffer pool and deallocates it on disk.
// A page which is not resident is not touched. The page is not flushed first since its id is deallocated anyway.
func (b *BufferPoolManager) DeletePage(pageID types.PageID) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return nil
	}
	pg := b.pages[frameID]
	if pg.PinCount() > 0 {
		return errors.Wrapf(ErrPagePinned, "delete page %d (pin count %d)", pageID, pg.PinCount())
	}

	if err := b.diskManager.DeallocatePage(pageID); err != nil {
		return b.ioFailure("deallocate", pageID, frameID, err)
	}

	delete(b.pageTable, pageID)
	b.replacer.Pin(frameID)
	pg.Reset()
	b.freeList = append(b.freeList, frameID)
	common.ShPrintf(common.BUFFER_INTERNAL_STATE, "DeletePage: pageID=%d frameID=%d returned to free list\n", pageID, frameID)
	return nil
}

// FlushAllPages flushes every resident page regardless of pin count and dirty flag.
// It keeps going after a failure and returns the first one.
func (b *BufferPoolManager) FlushAllPages() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var firstErr error
	for _, pg := range b.pages {
		if !pg.GetPageId().IsValid() {
			continue
		}
		if err := b.flushFrameLocked(pg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetPages returns the frames of the pool
func (b *BufferPoolManager) GetPages() []*page.Page {
	return b.pages
}

func (b *BufferPoolManager) GetPoolSize() uint32 {
	return uint32(len(b.pages))
}

func (b *BufferPoolManager) ResidentPageCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.pageTable)
}

func (b *BufferPoolManager) FreeFrameCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.freeList)
}

// EvictableFrameCount returns the number of resident, unpinned frames
func (b *BufferPoolManager) EvictableFrameCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.replacer.Size()
}

// getFrameIDLocked reserves a frame: the free list first, then a victim from the replacer.
// The returned frame is in neither the free list nor the replacer.
func (b *BufferPoolManager) getFrameIDLocked() (types.FrameID, bool, error) {
	if len(b.freeList) > 0 {
		frameID := b.freeList[0]
		b.freeList = b.freeList[1:]
		return frameID, true, nil
	}

	frameID, ok := b.replacer.Victim()
	if !ok {
		return types.InvalidFrameID, false, ErrPoolExhausted
	}
	common.SH_Assert(b.pages[frameID].PinCount() == 0, "victim frame is pinned")
	return frameID, false, nil
}

// restoreFrameLocked undoes getFrameIDLocked after a failure
func (b *BufferPoolManager) restoreFrameLocked(frameID types.FrameID, isFromFreeList bool) {
	if isFromFreeList {
		b.freeList = append([]types.FrameID{frameID}, b.freeList...)
		return
	}
	b.replacer.Unpin(frameID)
}

// writeBackLocked writes a dirty victim to disk. The frame keeps its page until this succeeds.
func (b *BufferPoolManager) writeBackLocked(pg *page.Page) error {
	if !pg.IsDirty() {
		return nil
	}
	if err := b.diskManager.WritePage(pg.GetPageId(), pg.Data()[:]); err != nil {
		return b.ioFailure("write back", pg.GetPageId(), pg.FrameID(), err)
	}
	pg.SetIsDirty(false)
	b.metrics.WriteBacks.Inc()
	return nil
}

func (b *BufferPoolManager) flushFrameLocked(pg *page.Page) error {
	if err := b.diskManager.WritePage(pg.GetPageId(), pg.Data()[:]); err != nil {
		return b.ioFailure("flush", pg.GetPageId(), pg.FrameID(), err)
	}
	pg.SetIsDirty(false)
	b.metrics.Flushes.Inc()
	return nil
}

// installLocked makes pg the pinned home of pageID, dropping the page it held before
func (b *BufferPoolManager) installLocked(pg *page.Page, pageID types.PageID) {
	if old := pg.GetPageId(); old.IsValid() {
		delete(b.pageTable, old)
		b.metrics.Evictions.Inc()
		common.ShPrintf(common.BUFFER_INTERNAL_STATE, "evicted pageID=%d from frameID=%d\n", old, pg.FrameID())
	}
	pg.SetPageId(pageID)
	pg.SetIsDirty(false)
	pg.SetPinCount(1)
	b.pageTable[pageID] = pg.FrameID()
	b.replacer.Pin(pg.FrameID())
}

func (b *BufferPoolManager) ioFailure(op string, pageID types.PageID, frameID types.FrameID, err error) error {
	common.Logger.WithFields(logrus.Fields{
		"op":       op,
		"page_id":  pageID,
		"frame_id": frameID,
	}).WithError(err).Warn("buffer pool I/O failure")
	return newIOError(op, pageID, err)
}

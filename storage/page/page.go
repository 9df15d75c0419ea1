package page

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/ryogrid/bufpool/common"
	"github.com/ryogrid/bufpool/types"
)

// Page represents an abstract page on disk, held in one frame of the buffer pool.
// The frame id never changes; the resident page id changes as pages are evicted and loaded.
// Metadata mutators are meant to be called by the buffer pool under its latch.
type Page struct {
	frameID  types.FrameID
	id       types.PageID
	pinCount int32
	isDirty  bool
	data     *[common.PageSize]byte
	rwlatch  *xsync.RBMutex
}

// NewEmpty creates a frame holding no page
func NewEmpty(frameID types.FrameID) *Page {
	return &Page{
		frameID:  frameID,
		id:       types.InvalidPageID,
		pinCount: 0,
		isDirty:  false,
		data:     &[common.PageSize]byte{},
		rwlatch:  xsync.NewRBMutex(),
	}
}

func (p *Page) FrameID() types.FrameID {
	return p.frameID
}

// GetPageId returns the id of the resident page, or InvalidPageID when the frame is free
func (p *Page) GetPageId() types.PageID {
	return p.id
}

func (p *Page) SetPageId(pageID types.PageID) {
	p.id = pageID
}

func (p *Page) PinCount() int32 {
	return atomic.LoadInt32(&p.pinCount)
}

func (p *Page) IncPinCount() {
	atomic.AddInt32(&p.pinCount, 1)
}

// DecPinCount decrements the pin count and returns the new value
func (p *Page) DecPinCount() int32 {
	return atomic.AddInt32(&p.pinCount, -1)
}

func (p *Page) SetPinCount(pinCount int32) {
	atomic.StoreInt32(&p.pinCount, pinCount)
}

func (p *Page) IsDirty() bool {
	return p.isDirty
}

func (p *Page) SetIsDirty(isDirty bool) {
	p.isDirty = isDirty
}

// Data returns the page bytes. Pinning keeps them resident; it does not make them exclusive.
func (p *Page) Data() *[common.PageSize]byte {
	return p.data
}

// Copy copies data to the page's data at offset
func (p *Page) Copy(offset uint32, data []byte) {
	copy(p.data[offset:], data)
}

func (p *Page) ZeroData() {
	*p.data = [common.PageSize]byte{}
}

// Reset returns the frame to the empty state
func (p *Page) Reset() {
	p.id = types.InvalidPageID
	p.SetPinCount(0)
	p.isDirty = false
	p.ZeroData()
}

// WLatch locks the page contents for writing
func (p *Page) WLatch() {
	p.rwlatch.Lock()
}

func (p *Page) WUnlatch() {
	p.rwlatch.Unlock()
}

// RLatch locks the page contents for reading. The returned token must be passed to RUnlatch.
func (p *Page) RLatch() *xsync.RToken {
	return p.rwlatch.RLock()
}

func (p *Page) RUnlatch(t *xsync.RToken) {
	p.rwlatch.RUnlock(t)
}

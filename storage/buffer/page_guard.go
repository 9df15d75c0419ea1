package buffer

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/ryogrid/bufpool/common"
	"github.com/ryogrid/bufpool/storage/page"
	"github.com/ryogrid/bufpool/types"
)

// PageGuard is a pinned page lease. Release unpins it exactly once; after that
// the guard hands out nothing, so a frame reused for another page cannot be reached through it.
type PageGuard struct {
	bpm      *BufferPoolManager
	pg       *page.Page
	pageID   types.PageID
	dirty    bool
	released bool
	mu       sync.Mutex
}

// FetchPageGuard fetches pageID and wraps the pinned frame in a guard
func (b *BufferPoolManager) FetchPageGuard(pageID types.PageID) (*PageGuard, error) {
	pg, err := b.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	return &PageGuard{bpm: b, pg: pg, pageID: pageID}, nil
}

// NewPageGuard allocates a page and wraps the pinned frame in a guard
func (b *BufferPoolManager) NewPageGuard() (*PageGuard, error) {
	pg, err := b.NewPage()
	if err != nil {
		return nil, err
	}
	return &PageGuard{bpm: b, pg: pg, pageID: pg.GetPageId()}, nil
}

func (g *PageGuard) PageID() types.PageID {
	return g.pageID
}

// Data returns the page bytes, or nil once the guard is released
func (g *PageGuard) Data() *[common.PageSize]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return nil
	}
	return g.pg.Data()
}

// Page returns the pinned frame, or nil once the guard is released
func (g *PageGuard) Page() *page.Page {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return nil
	}
	return g.pg
}

// MarkDirty makes Release unpin the page as dirty
func (g *PageGuard) MarkDirty() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return errors.Wrapf(ErrGuardReleased, "page %d", g.pageID)
	}
	g.dirty = true
	return nil
}

// Release unpins the page. Calls after the first return ErrGuardReleased.
func (g *PageGuard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return errors.Wrapf(ErrGuardReleased, "page %d", g.pageID)
	}
	g.released = true
	g.pg = nil
	return g.bpm.UnpinPage(g.pageID, g.dirty)
}

package buffer

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/ryogrid/bufpool/common"
	"github.com/ryogrid/bufpool/storage/disk"
	"github.com/ryogrid/bufpool/types"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected disk failure")

// faultyDiskManager fails the selected operations on demand
type faultyDiskManager struct {
	disk.DiskManager
	failWrites     atomic.Bool
	failReads      atomic.Bool
	failAllocate   atomic.Bool
	failDeallocate atomic.Bool
}

func (f *faultyDiskManager) WritePage(pageID types.PageID, data []byte) error {
	if f.failWrites.Load() {
		return errInjected
	}
	return f.DiskManager.WritePage(pageID, data)
}

func (f *faultyDiskManager) ReadPage(pageID types.PageID, data []byte) error {
	if f.failReads.Load() {
		// scribble over the buffer like a torn read would
		for i := range data {
			data[i] = 0xee
		}
		return errInjected
	}
	return f.DiskManager.ReadPage(pageID, data)
}

func (f *faultyDiskManager) AllocatePage() (types.PageID, error) {
	if f.failAllocate.Load() {
		return types.InvalidPageID, errInjected
	}
	return f.DiskManager.AllocatePage()
}

func (f *faultyDiskManager) DeallocatePage(pageID types.PageID) error {
	if f.failDeallocate.Load() {
		return errInjected
	}
	return f.DiskManager.DeallocatePage(pageID)
}

func newTestPool(t *testing.T, poolSize uint32, opts ...Option) (*BufferPoolManager, *faultyDiskManager) {
	t.Helper()
	dm := &faultyDiskManager{DiskManager: disk.NewVirtualDiskManagerImpl("test.db")}
	t.Cleanup(dm.ShutDown)
	return NewBufferPoolManager(poolSize, dm, opts...), dm
}

// seedPages writes n pages straight to disk, page i holding "page i"
func seedPages(t *testing.T, dm disk.DiskManager, n int) {
	t.Helper()
	data := make([]byte, common.PageSize)
	for i := 0; i < n; i++ {
		pageID, err := dm.AllocatePage()
		require.NoError(t, err)
		copy(data, pageContent(pageID))
		require.NoError(t, dm.WritePage(pageID, data))
	}
}

func pageContent(pageID types.PageID) string {
	return fmt.Sprintf("page %03d", pageID)
}

func requireAudit(t *testing.T, bpm *BufferPoolManager) {
	t.Helper()
	require.NoError(t, bpm.Audit())
}

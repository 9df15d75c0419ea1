package disk

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dsnet/golib/memfile"
	"github.com/pkg/errors"
	"github.com/ryogrid/bufpool/common"
	"github.com/ryogrid/bufpool/types"
)

// VirtualDiskManagerImpl keeps the page file in memory.
// Tests and the bench use it when no real file is wanted.
type VirtualDiskManagerImpl struct {
	db          *memfile.File
	fileName    string
	nextPageID  types.PageID
	deallocated mapset.Set[types.PageID]
	numWrites   uint64
	numReads    uint64
	size        int64
	isShutDown  bool
	dbFileMutex *sync.Mutex
}

func NewVirtualDiskManagerImpl(dbFilename string) DiskManager {
	return &VirtualDiskManagerImpl{
		db:          memfile.New(make([]byte, 0)),
		fileName:    dbFilename,
		nextPageID:  types.PageID(0),
		deallocated: mapset.NewThreadUnsafeSet[types.PageID](),
		dbFileMutex: new(sync.Mutex),
	}
}

// ShutDown marks the disk closed; subsequent IO fails with ErrShutDown
func (d *VirtualDiskManagerImpl) ShutDown() {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	d.isShutDown = true
}

func (d *VirtualDiskManagerImpl) checkAllocated(pageID types.PageID) error {
	if d.isShutDown {
		return ErrShutDown
	}
	if pageID < 0 || pageID >= d.nextPageID || d.deallocated.Contains(pageID) {
		return errors.Wrapf(ErrPageNotAllocated, "page %d", pageID)
	}
	return nil
}

// Write a page to the database file
func (d *VirtualDiskManagerImpl) WritePage(pageId types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if err := d.checkAllocated(pageId); err != nil {
		return err
	}

	offset := int64(pageId) * int64(common.PageSize)
	buf := make([]byte, common.PageSize)
	copy(buf, pageData)
	if _, err := d.db.WriteAt(buf, offset); err != nil {
		return errors.Wrapf(err, "write of page %d", pageId)
	}

	if offset >= d.size {
		d.size = offset + int64(len(buf))
	}
	d.numWrites++
	return nil
}

// Read a page from the database file
func (d *VirtualDiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if err := d.checkAllocated(pageID); err != nil {
		return err
	}
	d.numReads++

	offset := int64(pageID) * int64(common.PageSize)
	if offset+int64(len(pageData)) > d.size {
		// allocated but never written
		for i := range pageData {
			pageData[i] = 0
		}
		return nil
	}

	if _, err := d.db.ReadAt(pageData, offset); err != nil {
		return errors.Wrapf(ErrPastEndOfFile, "page %d: %v", pageID, err)
	}
	return nil
}

// AllocatePage allocates a new page
func (d *VirtualDiskManagerImpl) AllocatePage() (types.PageID, error) {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if d.isShutDown {
		return types.InvalidPageID, ErrShutDown
	}
	ret := d.nextPageID
	d.nextPageID++
	return ret, nil
}

// DeallocatePage deallocates page
func (d *VirtualDiskManagerImpl) DeallocatePage(pageID types.PageID) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if err := d.checkAllocated(pageID); err != nil {
		return err
	}
	d.deallocated.Add(pageID)
	return nil
}

// GetNumWrites returns the number of disk writes
func (d *VirtualDiskManagerImpl) GetNumWrites() uint64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.numWrites
}

func (d *VirtualDiskManagerImpl) GetNumReads() uint64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.numReads
}

// Size returns the size of the file in disk
func (d *VirtualDiskManagerImpl) Size() int64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.size
}

// RemoveDBFile does nothing; there is no file
func (d *VirtualDiskManagerImpl) RemoveDBFile() {
}

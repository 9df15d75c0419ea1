// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package disk

import (
	"os"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ncw/directio"
	"github.com/pkg/errors"
	"github.com/ryogrid/bufpool/common"
	"github.com/ryogrid/bufpool/types"
	"github.com/sirupsen/logrus"
)

// DiskManagerImpl is the disk implementation of DiskManager
type DiskManagerImpl struct {
	db          *os.File
	fileName    string
	nextPageID  types.PageID
	deallocated mapset.Set[types.PageID]
	numWrites   uint64
	numReads    uint64
	size        int64
	isShutDown  bool
	dbFileMutex *sync.Mutex
}

// NewDiskManagerImpl returns a DiskManager instance
func NewDiskManagerImpl(dbFilename string) (DiskManager, error) {
	file, err := openDBFile(dbFilename)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open db file %s", dbFilename)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "file info error")
	}

	fileSize := fileInfo.Size()
	nPages := fileSize / common.PageSize

	return &DiskManagerImpl{
		db:          file,
		fileName:    dbFilename,
		nextPageID:  types.PageID(int32(nPages)),
		deallocated: mapset.NewThreadUnsafeSet[types.PageID](),
		size:        fileSize,
		dbFileMutex: new(sync.Mutex),
	}, nil
}

// openDBFile prefers O_DIRECT and falls back to buffered IO on filesystems
// (tmpfs for example) which reject it
func openDBFile(dbFilename string) (*os.File, error) {
	file, err := directio.OpenFile(dbFilename, os.O_RDWR|os.O_CREATE, 0666)
	if err == nil {
		return file, nil
	}
	common.Logger.WithFields(logrus.Fields{
		"file":  dbFilename,
		"error": err,
	}).Warn("direct IO unavailable, falling back to buffered IO")
	return os.OpenFile(dbFilename, os.O_RDWR|os.O_CREATE, 0666)
}

// ShutDown closes of the database file
func (d *DiskManagerImpl) ShutDown() {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	if d.isShutDown {
		return
	}
	d.isShutDown = true
	if err := d.db.Close(); err != nil {
		common.ShPrintf(common.ERROR, "close of db file failed: %v\n", err)
	}
}

func (d *DiskManagerImpl) checkAllocated(pageID types.PageID) error {
	if d.isShutDown {
		return ErrShutDown
	}
	if pageID < 0 || pageID >= d.nextPageID || d.deallocated.Contains(pageID) {
		return errors.Wrapf(ErrPageNotAllocated, "page %d", pageID)
	}
	return nil
}

// Write a page to the database file
func (d *DiskManagerImpl) WritePage(pageId types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if err := d.checkAllocated(pageId); err != nil {
		return err
	}

	offset := int64(pageId) * int64(common.PageSize)
	// this works because directio.BlockSize == common.PageSize
	block := directio.AlignedBlock(directio.BlockSize)
	copy(block, pageData)

	bytesWritten, err := d.db.WriteAt(block, offset)
	if err != nil {
		return errors.Wrapf(err, "write of page %d", pageId)
	}
	if bytesWritten != common.PageSize {
		return errors.Errorf("short write of page %d: %d bytes", pageId, bytesWritten)
	}

	if offset >= d.size {
		d.size = offset + int64(bytesWritten)
	}
	d.numWrites++
	return nil
}

// Read a page from the database file
func (d *DiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if err := d.checkAllocated(pageID); err != nil {
		return err
	}
	d.numReads++

	offset := int64(pageID) * int64(common.PageSize)
	if offset >= d.size {
		// allocated but never written
		for i := range pageData {
			pageData[i] = 0
		}
		return nil
	}

	block := directio.AlignedBlock(directio.BlockSize)
	bytesRead, err := d.db.ReadAt(block, offset)
	if err != nil && bytesRead == 0 {
		return errors.Wrapf(err, "I/O error while reading page %d", pageID)
	}
	for i := bytesRead; i < common.PageSize; i++ {
		block[i] = 0
	}
	copy(pageData, block)
	return nil
}

// AllocatePage allocates a new page
func (d *DiskManagerImpl) AllocatePage() (types.PageID, error) {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if d.isShutDown {
		return types.InvalidPageID, ErrShutDown
	}
	ret := d.nextPageID
	d.nextPageID++
	return ret, nil
}

// DeallocatePage deallocates page.
// The id is not reused; reading it afterwards fails with ErrPageNotAllocated.
func (d *DiskManagerImpl) DeallocatePage(pageID types.PageID) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if err := d.checkAllocated(pageID); err != nil {
		return err
	}
	d.deallocated.Add(pageID)
	return nil
}

// GetNumWrites returns the number of disk writes
func (d *DiskManagerImpl) GetNumWrites() uint64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.numWrites
}

// GetNumReads returns the number of disk reads
func (d *DiskManagerImpl) GetNumReads() uint64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.numReads
}

// Size returns the size of the file in disk
func (d *DiskManagerImpl) Size() int64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.size
}

// ATTENTION: this method can be call after calling of Shutdown method
func (d *DiskManagerImpl) RemoveDBFile() {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if err := os.Remove(d.fileName); err != nil && !os.IsNotExist(err) {
		common.ShPrintf(common.ERROR, "file remove failed: %v\n", err)
	}
}

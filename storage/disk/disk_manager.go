package disk

import (
	"github.com/pkg/errors"
	"github.com/ryogrid/bufpool/types"
)

var (
	ErrPageNotAllocated = errors.New("page is not allocated")
	ErrPastEndOfFile    = errors.New("I/O error past end of file")
	ErrShutDown         = errors.New("disk manager is shut down")
)

// DiskManager is responsible for interacting with disk
type DiskManager interface {
	ReadPage(types.PageID, []byte) error
	WritePage(types.PageID, []byte) error
	AllocatePage() (types.PageID, error)
	DeallocatePage(types.PageID) error
	GetNumWrites() uint64
	GetNumReads() uint64
	Size() int64
	ShutDown()
	RemoveDBFile()
}

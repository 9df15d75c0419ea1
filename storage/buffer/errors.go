package buffer

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/ryogrid/bufpool/types"
)

var (
	// ErrPoolExhausted means every frame is pinned: no free frame and no eviction candidate
	ErrPoolExhausted = errors.New("buffer pool exhausted: all frames are pinned")
	ErrNotResident   = errors.New("page is not resident in the buffer pool")
	ErrDoubleUnpin   = errors.New("page pin count is already zero")
	ErrPagePinned    = errors.New("page is pinned")
	ErrIO            = errors.New("disk I/O failure")
	ErrGuardReleased = errors.New("page guard already released")
)

// IOError reports a failed call into the disk manager
type IOError struct {
	Op     string
	PageID types.PageID
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s page %d: %v", e.Op, e.PageID, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func newIOError(op string, pageID types.PageID, err error) error {
	return errors.WithStack(&IOError{Op: op, PageID: pageID, Err: err})
}

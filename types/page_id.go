package types

import (
	"encoding/binary"
)

// PageID is the type of the page identifier
type PageID int32

// InvalidPageID represents an invalid page ID
const InvalidPageID = PageID(-1)

// IsValid checks if id is valid
func (id PageID) IsValid() bool {
	return id != InvalidPageID && id >= 0
}

// Serialize casts it to []byte
func (id PageID) Serialize() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(id))
	return buf
}

// NewPageIDFromBytes creates a page id from []byte
func NewPageIDFromBytes(data []byte) PageID {
	return PageID(int32(binary.LittleEndian.Uint32(data)))
}

// FrameID is the index of a frame in the buffer pool
type FrameID int32

const InvalidFrameID = FrameID(-1)

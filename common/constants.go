package common

const (
	// PageSize is the size of a page in disk (4KB). It must equal directio.BlockSize.
	PageSize = 4096
	// BufferPoolMaxFrameNumForTest is the pool size most tests run with
	BufferPoolMaxFrameNumForTest = 32
	// DefaultPoolSize is the number of frames used when the config does not say
	DefaultPoolSize = 1024
)

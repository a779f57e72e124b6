package seiche

import (
	"fmt"
	"os"
	"runtime"

	// cross-platform memory-mapped file package
	mmap "github.com/edsrzf/mmap-go"
)

const maxUInt32 = 0xffffffff

// IndexFile is the read abstraction over one sub-index file. The shard
// reader asks for byte ranges — bucket loads, posting lists, sections —
// and the mmap implementation serves them without copying.
type IndexFile interface {
	Read(off, sz uint32) ([]byte, error)
	Name() string
	Size() (uint32, error)
	Close()
}

// mmapFile serves byte ranges straight out of a read-only memory
// mapping. The mapping is page-rounded, so reads are bounded by the
// true file size, not the mapping length.
type mmapFile struct {
	name string
	size uint32
	data mmap.MMap
}

func (f *mmapFile) Read(off, sz uint32) ([]byte, error) {
	if off+sz < off || off+sz > f.size {
		return nil, fmt.Errorf("%w: read [%d,%d) beyond %d bytes of %s",
			ErrCorrupt, off, off+sz, f.size, f.name)
	}
	return f.data[off : off+sz], nil
}

func (f *mmapFile) Name() string { return f.name }

func (f *mmapFile) Size() (uint32, error) { return f.size, nil }

func (f *mmapFile) Close() {
	_ = f.data.Unmap()
}

// NewIndexFile memory-maps f for reading. It takes ownership of f and
// may close it. The mapping length is rounded up to the page size on
// Unix (mmap zero-fills the spare bytes); Windows requires the mapping
// to equal the file size.
func NewIndexFile(f *os.File) (IndexFile, error) {
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	sz := fi.Size()
	if sz < 16 {
		// smaller than the shard header and tail together
		return nil, fmt.Errorf("%w: %s is too small for a shard", ErrCorrupt, f.Name())
	}
	if sz >= maxUInt32 {
		return nil, fmt.Errorf("shard %s too large: %d", f.Name(), sz)
	}

	mapped := int(sz)
	if runtime.GOOS != "windows" {
		page := os.Getpagesize() - 1
		mapped = (mapped + page) &^ page
	}
	data, err := mmap.MapRegion(f, mapped, mmap.RDONLY, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", f.Name(), err)
	}
	return &mmapFile{name: f.Name(), size: uint32(sz), data: data}, nil
}

// memIndexFile serves an in-memory byte slice through the IndexFile
// interface; used by tests and by freshly built, not yet persisted
// sub-indices.
type memIndexFile struct {
	name string
	data []byte
}

// NewMemIndexFile wraps data as an IndexFile.
func NewMemIndexFile(name string, data []byte) IndexFile {
	return &memIndexFile{name: name, data: data}
}

func (f *memIndexFile) Read(off, sz uint32) ([]byte, error) {
	if off+sz < off || off+sz > uint32(len(f.data)) {
		return nil, fmt.Errorf("%w: read [%d,%d) beyond %d bytes of %s",
			ErrCorrupt, off, off+sz, len(f.data), f.name)
	}
	return f.data[off : off+sz], nil
}

func (f *memIndexFile) Name() string          { return f.name }
func (f *memIndexFile) Size() (uint32, error) { return uint32(len(f.data)), nil }
func (f *memIndexFile) Close()                {}

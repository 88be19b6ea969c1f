package pagestore

import (
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	"github.com/govetachun/redbtree/pkg/dbg"
)

// fileStoreSig tags the master page so a reopen can refuse a foreign file.
const fileStoreSig = "redbtree-pagestore-01"

// masterPageSize: sig(21B) | root(8B) | flushed(8B) |
// freelist head(8B) | table dir root(8B) | applied WAL seq(8B) — 61 bytes
// used of the 64 reserved
const masterPageSize = 64

// FileStore is a single-writer, mmap-backed Store, grounded on
// btree/disk.go's mmapInit/extendMmap/extendFile/pageRead/pageNew and on
// concurrent-reader-writer/define.go's version-tagged free list. It keeps
// exactly one write transaction's uncommitted pages in memory (temp) and
// commits them with the same two-phase fsync barrier the teacher uses:
// page data must reach disk before the master page is overwritten.
type FileStore struct {
	path     string
	fp       *os.File
	pageSize int

	mmap struct {
		fileSize int
		total    int
		chunks   [][]byte
	}

	flushed PageNumber          // first page number not yet durable
	temp    map[PageNumber][]byte // pages allocated this transaction
	order   []PageNumber          // append order, for deterministic flush

	pendingFree []PageNumber // freed this transaction, reclaimed at commit
	free        diskFreeList
	root        PageNumber

	dir          PageNumber // table-name -> root directory page
	committedDir PageNumber // dir as of the last successful Commit, for Rollback
	appliedSeq   uint64     // highest WAL sequence number reflected in root/dir
}

// OpenFile opens or creates a store file at path with the given page size.
func OpenFile(path string, pageSize int) (*FileStore, error) {
	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s: %w", path, err)
	}
	fs := &FileStore{
		path:     path,
		fp:       fp,
		pageSize: pageSize,
		flushed:  1, // page 0 reserved for the master page
		temp:     map[PageNumber][]byte{},
	}
	fs.free = diskFreeList{pageSize: pageSize, get: fs.freeListPageBytes, alloc: fs.freeListAlloc}
	if err := fs.mmapInit(); err != nil {
		fp.Close()
		return nil, err
	}
	if err := fs.loadMaster(); err != nil {
		fp.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) PageSize() int { return fs.pageSize }

func (fs *FileStore) mmapInit() error {
	fi, err := fs.fp.Stat()
	if err != nil {
		return fmt.Errorf("pagestore: stat: %w", err)
	}
	size := int(fi.Size())
	if size == 0 {
		if err := fs.extendFile(1); err != nil {
			return err
		}
		fi, err = fs.fp.Stat()
		if err != nil {
			return err
		}
		size = int(fi.Size())
	}
	if size%fs.pageSize != 0 {
		return fmt.Errorf("pagestore: file size %d not a multiple of page size %d", size, fs.pageSize)
	}
	mmapSize := 64 << 20
	for mmapSize < size {
		mmapSize *= 2
	}
	chunk, err := syscall.Mmap(int(fs.fp.Fd()), 0, mmapSize,
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("pagestore: mmap: %w: %w", ErrAllocationFailed, err)
	}
	fs.mmap.fileSize = size
	fs.mmap.total = len(chunk)
	fs.mmap.chunks = [][]byte{chunk}
	return nil
}

func (fs *FileStore) extendMmap(minTotal int) error {
	if minTotal <= fs.mmap.total {
		return nil
	}
	alloc := fs.mmap.total
	if alloc < 64<<20 {
		alloc = 64 << 20
	}
	for fs.mmap.total+alloc < minTotal {
		alloc *= 2
	}
	chunk, err := syscall.Mmap(int(fs.fp.Fd()), int64(fs.mmap.total), alloc,
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("pagestore: mmap extend: %w: %w", ErrAllocationFailed, err)
	}
	fs.mmap.total += alloc
	fs.mmap.chunks = append(fs.mmap.chunks, chunk)
	return nil
}

func (fs *FileStore) extendFile(npages int) error {
	filePages := fs.mmap.fileSize / fs.pageSize
	if filePages >= npages {
		return nil
	}
	for filePages < npages {
		inc := filePages / 8
		if inc < 1 {
			inc = 1
		}
		filePages += inc
	}
	size := filePages * fs.pageSize
	if err := fs.fp.Truncate(int64(size)); err != nil {
		return fmt.Errorf("pagestore: truncate: %w: %w", ErrAllocationFailed, err)
	}
	fs.mmap.fileSize = size
	return nil
}

// pageBytes returns the live mmap'd slice for a committed page number.
func (fs *FileStore) pageBytes(n PageNumber) []byte {
	start := PageNumber(0)
	for _, chunk := range fs.mmap.chunks {
		end := start + PageNumber(len(chunk)/fs.pageSize)
		if n < end {
			offset := int(n-start) * fs.pageSize
			return chunk[offset : offset+fs.pageSize]
		}
		start = end
	}
	panic(fmt.Sprintf("pagestore: page %d out of mapped range", n))
}

func (fs *FileStore) loadMaster() error {
	master := fs.pageBytes(0)
	sig := string(master[:len(fileStoreSig)])
	if master[0] == 0 && allZero(master[:masterPageSize]) {
		// freshly created file: nothing to load yet.
		return nil
	}
	if sig != fileStoreSig {
		return fmt.Errorf("pagestore: bad master signature %q", sig)
	}
	off := len(fileStoreSig)
	fs.root = PageNumberFromBytes(master[off:])
	fs.flushed = PageNumberFromBytes(master[off+8:])
	fs.free.head = PageNumberFromBytes(master[off+16:])
	fs.dir = PageNumberFromBytes(master[off+24:])
	fs.committedDir = fs.dir
	fs.appliedSeq = binary.LittleEndian.Uint64(master[off+32:])
	return nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func (fs *FileStore) storeMaster() error {
	if err := fs.extendMmap(int(fs.flushed) * fs.pageSize); err != nil {
		return err
	}
	master := fs.pageBytes(0)
	copy(master, fileStoreSig)
	off := len(fileStoreSig)
	fs.root.PutBytes(master[off:])
	fs.flushed.PutBytes(master[off+8:])
	fs.free.head.PutBytes(master[off+16:])
	fs.dir.PutBytes(master[off+24:])
	binary.LittleEndian.PutUint64(master[off+32:], fs.appliedSeq)
	fs.committedDir = fs.dir
	return nil
}

// AppliedSeq returns the highest write-ahead log sequence number already
// reflected in the table directory/root as of the last Commit — a
// reopening caller replays only records past this point (spec.md §4.13).
func (fs *FileStore) AppliedSeq() uint64 { return fs.appliedSeq }

// SetAppliedSeq records the WAL sequence number the current transaction's
// writes correspond to, persisted at the next Commit alongside the root.
func (fs *FileStore) SetAppliedSeq(seq uint64) { fs.appliedSeq = seq }

// Root returns the caller's last-committed root page number.
func (fs *FileStore) Root() PageNumber { return fs.root }

// SetRoot records the new root to be written at the next Commit.
func (fs *FileStore) SetRoot(n PageNumber) { fs.root = n }

func (fs *FileStore) Allocate(minBytes int) (Page, error) {
	size := fs.pageSize
	if minBytes > size {
		size = minBytes
	}
	var n PageNumber
	if reused := fs.free.pop(); reused != InvalidPageNumber {
		n = reused
	} else {
		// order only grows within a transaction, so a fresh number is never
		// handed out twice even after a temp page has been freed.
		n = fs.flushed + PageNumber(len(fs.order))
	}
	buf := make([]byte, size)
	fs.temp[n] = buf
	fs.order = append(fs.order, n)
	return Page{Number: n, Bytes: buf}, nil
}

func (fs *FileStore) Get(n PageNumber) (Page, error) {
	if buf, ok := fs.temp[n]; ok {
		return Page{Number: n, Bytes: buf}, nil
	}
	if n >= fs.flushed {
		return Page{}, fmt.Errorf("pagestore: page %d not allocated", n)
	}
	return Page{Number: n, Bytes: fs.pageBytes(n)}, nil
}

func (fs *FileStore) GetMut(n PageNumber) (Page, error) {
	dbg.Assert(fs.Uncommitted(n), "GetMut called on committed page %d", n)
	return fs.Get(n)
}

func (fs *FileStore) Uncommitted(n PageNumber) bool {
	_, ok := fs.temp[n]
	return ok
}

func (fs *FileStore) Free(n PageNumber) {
	if _, ok := fs.temp[n]; ok {
		delete(fs.temp, n)
		return
	}
	fs.pendingFree = append(fs.pendingFree, n)
}

func (fs *FileStore) FreeIfUncommitted(n PageNumber) bool {
	if _, ok := fs.temp[n]; ok {
		delete(fs.temp, n)
		return true
	}
	return false
}

// freeListPageBytes / freeListAlloc let diskFreeList read/write pages
// through the same Get/Allocate path as everything else.
func (fs *FileStore) freeListPageBytes(n PageNumber) []byte {
	p, err := fs.Get(n)
	if err != nil {
		panic(err)
	}
	return p.Bytes
}

func (fs *FileStore) freeListAlloc() PageNumber {
	p, err := fs.Allocate(fs.pageSize)
	if err != nil {
		panic(err)
	}
	return p.Number
}

// Commit persists every page allocated or freed during the current
// transaction: write data pages, fsync (the barrier), fold pendingFree
// into the on-disk free list, write+fsync the master page. Mirrors
// btree/disk.go's flushPages/syncPages ordering.
func (fs *FileStore) Commit() error {
	// Folding pendingFree into the on-disk free list can itself allocate
	// fresh node pages (diskFreeList.push -> fl.alloc), so this must run
	// before the extend/copy pass below, or those node pages would be
	// sized and written out of the batch they belong to.
	fs.free.push(fs.pendingFree)
	fs.pendingFree = nil

	npages := int(fs.flushed) + len(fs.order)
	if err := fs.extendFile(npages); err != nil {
		return err
	}
	if err := fs.extendMmap(npages * fs.pageSize); err != nil {
		return err
	}
	maxPage := fs.flushed
	for _, n := range fs.order {
		buf := fs.temp[n]
		if buf == nil {
			continue
		}
		copy(fs.pageBytes(n), buf)
		if n+1 > maxPage {
			maxPage = n + 1
		}
	}
	if err := fs.fp.Sync(); err != nil {
		return fmt.Errorf("pagestore: fsync data: %w", err)
	}
	fs.flushed = maxPage
	fs.temp = map[PageNumber][]byte{}
	fs.order = nil
	if err := fs.storeMaster(); err != nil {
		return err
	}
	if err := fs.fp.Sync(); err != nil {
		return fmt.Errorf("pagestore: fsync master: %w", err)
	}
	return nil
}

// Rollback discards every page allocated this transaction without
// touching the file.
func (fs *FileStore) Rollback() {
	fs.temp = map[PageNumber][]byte{}
	fs.order = nil
	fs.pendingFree = nil
	fs.dir = fs.committedDir
}

// Close unmaps and closes the underlying file.
func (fs *FileStore) Close() error {
	for _, chunk := range fs.mmap.chunks {
		if err := syscall.Munmap(chunk); err != nil {
			return err
		}
	}
	return fs.fp.Close()
}

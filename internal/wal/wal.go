// Package wal is the write-ahead/commit log the core engine is built
// against only through an interface (spec.md §1: "the write-ahead/commit
// log... specified here only through the interfaces the core consumes").
// Log is that interface; FileLog is one concrete, minimal implementation
// so the CLI has something durable to run against. It is deliberately
// the simplest possible append-only record log — no group commit, no
// checksums beyond a length prefix — grounded on btree/disk.go's
// flushPages/syncPages two-phase fsync discipline (data before the
// record marking it durable), not on any third-party log library,
// because none of the example repos import one (see DESIGN.md).
package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Log is the interface form of the log (spec.md §1); FileLog implements
// it, and the CLI uses *FileLog directly. Append records one entry and
// returns its sequence number; Sync makes every Append so far durable;
// Replay reads every record back in append order.
type Log interface {
	Append(record []byte) (seq uint64, err error)
	Sync() error
	Replay(fn func(seq uint64, record []byte) error) error
	Close() error
}

// FileLog is an append-only file of length-prefixed records:
// u64 seq | u32 length | payload.
type FileLog struct {
	fp  *os.File
	seq uint64
}

// OpenFile opens or creates a log file at path, replaying nothing itself
// — callers that need the existing records call Replay before writing.
func OpenFile(path string) (*FileLog, error) {
	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &FileLog{fp: fp}, nil
}

// Append writes one record and advances the in-memory sequence counter;
// the record is not guaranteed durable until the next Sync.
func (l *FileLog) Append(record []byte) (uint64, error) {
	l.seq++
	var header [12]byte
	binary.LittleEndian.PutUint64(header[0:8], l.seq)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(record)))
	if _, err := l.fp.Write(header[:]); err != nil {
		return 0, fmt.Errorf("wal: write header: %w", err)
	}
	if _, err := l.fp.Write(record); err != nil {
		return 0, fmt.Errorf("wal: write record: %w", err)
	}
	return l.seq, nil
}

// Sync fsyncs the log file — the barrier a caller must cross before
// treating appended records as committed, the same "data fsync before
// the master page" ordering the page store's Commit uses.
func (l *FileLog) Sync() error {
	if err := l.fp.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

// Replay reads every record from the beginning of the file in order,
// calling fn for each. Used at reopen to recover any writes the page
// store's master page doesn't yet reflect.
func (l *FileLog) Replay(fn func(seq uint64, record []byte) error) error {
	if _, err := l.fp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	var header [12]byte
	for {
		if _, err := io.ReadFull(l.fp, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("wal: read header: %w", err)
		}
		seq := binary.LittleEndian.Uint64(header[0:8])
		n := binary.LittleEndian.Uint32(header[8:12])
		record := make([]byte, n)
		if _, err := io.ReadFull(l.fp, record); err != nil {
			return fmt.Errorf("wal: read record: %w", err)
		}
		if err := fn(seq, record); err != nil {
			return err
		}
		if seq > l.seq {
			l.seq = seq
		}
	}
	return nil
}

// Close closes the underlying file.
func (l *FileLog) Close() error {
	return l.fp.Close()
}

// Seq returns the sequence number of the most recently appended (or
// replayed) record, 0 if none yet.
func (l *FileLog) Seq() uint64 { return l.seq }

package main

import (
	"encoding/binary"
	"fmt"
)

// Record op codes for the write-ahead log this CLI keeps alongside the
// page store — put carries a value, delete doesn't.
const (
	opPut    byte = 1
	opDelete byte = 2
)

// encodeRecord lays out one WAL record as:
// op(1B) | tableNameLen(u16) | tableName | keyLen(u32) | key | [valLen(u32) | val]
// the val fields are omitted entirely for opDelete.
func encodeRecord(op byte, table string, key, val []byte) []byte {
	size := 1 + 2 + len(table) + 4 + len(key)
	if op == opPut {
		size += 4 + len(val)
	}
	buf := make([]byte, size)
	buf[0] = op
	off := 1
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(table)))
	off += 2
	off += copy(buf[off:], table)
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(key)))
	off += 4
	off += copy(buf[off:], key)
	if op == opPut {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(val)))
		off += 4
		copy(buf[off:], val)
	}
	return buf
}

func decodeRecord(record []byte) (op byte, table string, key, val []byte, err error) {
	if len(record) < 1+2+4 {
		return 0, "", nil, nil, fmt.Errorf("wal: short record (%d bytes)", len(record))
	}
	op = record[0]
	off := 1
	tableLen := int(binary.LittleEndian.Uint16(record[off:]))
	off += 2
	if off+tableLen > len(record) {
		return 0, "", nil, nil, fmt.Errorf("wal: truncated table name")
	}
	table = string(record[off : off+tableLen])
	off += tableLen
	if off+4 > len(record) {
		return 0, "", nil, nil, fmt.Errorf("wal: truncated key length")
	}
	keyLen := int(binary.LittleEndian.Uint32(record[off:]))
	off += 4
	if off+keyLen > len(record) {
		return 0, "", nil, nil, fmt.Errorf("wal: truncated key")
	}
	key = record[off : off+keyLen]
	off += keyLen
	if op == opPut {
		if off+4 > len(record) {
			return 0, "", nil, nil, fmt.Errorf("wal: truncated value length")
		}
		valLen := int(binary.LittleEndian.Uint32(record[off:]))
		off += 4
		if off+valLen > len(record) {
			return 0, "", nil, nil, fmt.Errorf("wal: truncated value")
		}
		val = record[off : off+valLen]
	}
	return op, table, key, val, nil
}

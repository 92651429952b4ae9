package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/nikhilrao/relstore/pkg/common"
)

// OpType represents the kind of WAL record.
type OpType byte

const (
	// OpPageWrite records a page mutation: Data is the new page image
	// (or a page-specific delta, at the caller's discretion).
	OpPageWrite OpType = 1

	// OpCheckpoint marks a point after which every page mutation logged
	// before it is guaranteed to be flushed to the data file.
	OpCheckpoint OpType = 4
)

const (
	// EntryHeaderSize is the fixed size of the entry header.
	// Layout: LSN(8) + PageID(4) + OpType(1) + Reserved(3) + DataLen(4) + Timestamp(8)
	EntryHeaderSize = 28
)

// Entry is a single WAL record: one page mutation or a checkpoint
// marker.
type Entry struct {
	LSN       uint64
	PageID    common.PageID
	OpType    OpType
	Data      []byte
	Timestamp time.Time
}

// Encode serializes the entry to bytes with a trailing CRC32 checksum.
// Format: [Header(28)] [Data] [CRC32(4)]
func (e *Entry) Encode() []byte {
	dataLen := len(e.Data)
	totalSize := EntryHeaderSize + dataLen + 4

	buf := make([]byte, totalSize)
	binary.LittleEndian.PutUint64(buf[0:8], e.LSN)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(int32(e.PageID)))
	buf[12] = byte(e.OpType)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(dataLen))
	binary.LittleEndian.PutUint64(buf[20:28], uint64(e.Timestamp.Unix()))

	copy(buf[EntryHeaderSize:], e.Data)

	crc := crc32.ChecksumIEEE(buf[:EntryHeaderSize+dataLen])
	binary.LittleEndian.PutUint32(buf[EntryHeaderSize+dataLen:], crc)
	return buf
}

// DecodeEntry deserializes a WAL entry from bytes.
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntryHeaderSize+4 {
		return nil, ErrTruncated
	}

	dataLen := int(binary.LittleEndian.Uint32(data[16:20]))
	expectedSize := EntryHeaderSize + dataLen + 4
	if len(data) < expectedSize {
		return nil, ErrTruncated
	}

	storedCRC := binary.LittleEndian.Uint32(data[EntryHeaderSize+dataLen:])
	computedCRC := crc32.ChecksumIEEE(data[:EntryHeaderSize+dataLen])
	if storedCRC != computedCRC {
		return nil, ErrCorrupted
	}

	entry := &Entry{
		LSN:    binary.LittleEndian.Uint64(data[0:8]),
		PageID: common.PageID(int32(binary.LittleEndian.Uint32(data[8:12]))),
		OpType: OpType(data[12]),
	}
	ts := binary.LittleEndian.Uint64(data[20:28])
	entry.Timestamp = time.Unix(int64(ts), 0)

	if dataLen > 0 {
		entry.Data = make([]byte, dataLen)
		copy(entry.Data, data[EntryHeaderSize:EntryHeaderSize+dataLen])
	}
	return entry, nil
}

// Size returns the encoded size of the entry.
func (e *Entry) Size() int {
	return EntryHeaderSize + len(e.Data) + 4
}

// String returns a human-readable representation of the entry.
func (e *Entry) String() string {
	opName := "UNKNOWN"
	switch e.OpType {
	case OpPageWrite:
		opName = "PAGE_WRITE"
	case OpCheckpoint:
		opName = "CHECKPOINT"
	}
	return fmt.Sprintf("WAL[LSN=%d PageID=%d Op=%s DataLen=%d]", e.LSN, e.PageID, opName, len(e.Data))
}

// Package heap implements the fixed-slot record file backing one table:
// an append/update file of constant-size slots, each carrying one
// record plus a next_deleted link, with deleted slots threaded into a
// LIFO free list rooted at a 4-byte file header.
//
// Heap holds only a path, never a kept-open file
// handle — every operation opens, seeks, reads/writes, and closes. This
// keeps two tabula processes free to operate on disjoint tables without
// coordinating file handles, at the cost of an open() per call.
package heap

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/filesys"
	"go.uber.org/zap"
)

// noFreeSlot is the header/next_deleted sentinel meaning "no deleted slot
// follows"; a live record carries it in its own next_deleted field.
const noFreeSlot int32 = -1

// freeListEnd is the next_deleted value of the last slot on the free
// list. It differs from noFreeSlot so that a deleted slot never reads
// back as live; the header itself still holds noFreeSlot when the list
// is empty.
const freeListEnd int32 = -2

const headerSize = 4

// Heap is a fixed-slot record file for one table.
type Heap struct {
	path     string
	schema   *types.TableSchema
	slotSize int
	log      *zap.SugaredLogger
}

// Config groups Heap's construction parameters.
type Config struct {
	Path   string
	Schema *types.TableSchema
	Logger *zap.SugaredLogger
}

// Create initializes a brand-new, empty heap file at cfg.Path: a single
// header slot holding noFreeSlot, and no record slots.
func Create(cfg Config) (*Heap, error) {
	h := newHeap(cfg)

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "create_heap", h.path)
	}
	defer f.Close()

	if err := writeHeader(f, noFreeSlot); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "create_heap", h.path)
	}

	h.log.Infow("heap file created", "path", h.path, "slotSize", h.slotSize)
	return h, nil
}

// Open wraps an existing heap file without touching its contents.
func Open(cfg Config) (*Heap, error) {
	h := newHeap(cfg)
	if _, err := os.Stat(h.path); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "open_heap", h.path)
	}
	return h, nil
}

func newHeap(cfg Config) *Heap {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Heap{
		path:     cfg.Path,
		schema:   cfg.Schema,
		slotSize: types.RecordSize(cfg.Schema) + 4,
		log:      log,
	}
}

// Append writes record into the free-list head slot if one exists, else
// onto the end of the file, and returns its position.
func (h *Heap) Append(record types.Record) (int64, error) {
	packed, err := types.EncodeRecord(h.schema, record)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(h.path, os.O_RDWR, 0644)
	if err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "append", h.path)
	}
	defer f.Close()

	head, err := readHeader(f)
	if err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "append", h.path)
	}

	if head == noFreeSlot {
		maxPos, err := maxPositionLocked(f, h.slotSize)
		if err != nil {
			return 0, err
		}
		if err := writeSlot(f, h.slotSize, maxPos, packed, noFreeSlot); err != nil {
			return 0, tabulaerrors.ClassifyFileIOError(err, "append", h.path)
		}
		return maxPos, nil
	}

	position := int64(head)
	_, nextDeleted, err := readSlotRaw(f, h.slotSize, position)
	if err != nil {
		return 0, err
	}
	if nextDeleted == freeListEnd {
		nextDeleted = noFreeSlot
	}
	if err := writeHeader(f, nextDeleted); err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "append", h.path)
	}
	if err := writeSlot(f, h.slotSize, position, packed, noFreeSlot); err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "append", h.path)
	}
	return position, nil
}

// Read returns the live record at position, or (nil, false, nil) if the
// slot has been deleted.
func (h *Heap) Read(position int64) (types.Record, bool, error) {
	f, err := os.OpenFile(h.path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, false, tabulaerrors.ClassifyFileIOError(err, "read", h.path)
	}
	defer f.Close()

	if err := h.checkPosition(f, position); err != nil {
		return nil, false, err
	}

	raw, nextDeleted, err := readSlotRaw(f, h.slotSize, position)
	if err != nil {
		return nil, false, err
	}
	if nextDeleted != noFreeSlot {
		return nil, false, nil
	}

	record, err := types.DecodeRecord(h.schema, raw)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// Delete marks position free, threads it onto the free list, and returns
// the record that occupied the slot.
func (h *Heap) Delete(position int64) (types.Record, error) {
	f, err := os.OpenFile(h.path, os.O_RDWR, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "delete", h.path)
	}
	defer f.Close()

	if err := h.checkPosition(f, position); err != nil {
		return nil, err
	}

	raw, nextDeleted, err := readSlotRaw(f, h.slotSize, position)
	if err != nil {
		return nil, err
	}
	if nextDeleted != noFreeSlot {
		return nil, tabulaerrors.NewPositionalError(
			nil, tabulaerrors.ErrorCodeSlotDeleted, fmt.Sprintf("position %d is already deleted", position),
		).WithPosition(position)
	}

	record, err := types.DecodeRecord(h.schema, raw)
	if err != nil {
		return nil, err
	}

	head, err := readHeader(f)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "delete", h.path)
	}
	link := head
	if link == noFreeSlot {
		link = freeListEnd
	}
	if err := writeSlot(f, h.slotSize, position, raw, link); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "delete", h.path)
	}
	if err := writeHeader(f, int32(position)); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "delete", h.path)
	}

	return record, nil
}

// MaxPosition returns the count of slots ever written (live + deleted).
func (h *Heap) MaxPosition() (int64, error) {
	f, err := os.OpenFile(h.path, os.O_RDONLY, 0644)
	if err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "max_position", h.path)
	}
	defer f.Close()
	return maxPositionLocked(f, h.slotSize)
}

func (h *Heap) checkPosition(f *os.File, position int64) error {
	if position < 0 {
		return h.outOfRange(position)
	}
	maxPos, err := maxPositionLocked(f, h.slotSize)
	if err != nil {
		return err
	}
	if position >= maxPos {
		return h.outOfRange(position)
	}
	return nil
}

func (h *Heap) outOfRange(position int64) error {
	return tabulaerrors.NewPositionalError(
		nil, tabulaerrors.ErrorCodePositionOutOfRange, fmt.Sprintf("position %d is out of range", position),
	).WithPosition(position)
}

func maxPositionLocked(f *os.File, slotSize int) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size() - headerSize
	if size < 0 {
		return 0, nil
	}
	return size / int64(slotSize), nil
}

func readHeader(f *os.File) (int32, error) {
	var buf [headerSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeHeader(f *os.File, head int32) error {
	var buf [headerSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(head))
	_, err := f.WriteAt(buf[:], 0)
	return err
}

func slotOffset(position int64, slotSize int) int64 {
	return headerSize + position*int64(slotSize)
}

func readSlotRaw(f *os.File, slotSize int, position int64) ([]byte, int32, error) {
	buf := make([]byte, slotSize)
	if _, err := f.ReadAt(buf, slotOffset(position, slotSize)); err != nil && err != io.EOF {
		return nil, 0, err
	}
	recordBytes := buf[:slotSize-4]
	nextDeleted := int32(binary.LittleEndian.Uint32(buf[slotSize-4:]))
	return recordBytes, nextDeleted, nil
}

func writeSlot(f *os.File, slotSize int, position int64, record []byte, nextDeleted int32) error {
	buf := make([]byte, slotSize)
	copy(buf, record)
	binary.LittleEndian.PutUint32(buf[slotSize-4:], uint32(nextDeleted))
	_, err := f.WriteAt(buf, slotOffset(position, slotSize))
	return err
}

// Clear removes the heap's backing file.
func (h *Heap) Clear() error {
	if err := filesys.RemoveIfExists(h.path); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "clear", h.path)
	}
	return nil
}

// Path returns the heap file's path.
func (h *Heap) Path() string { return h.path }

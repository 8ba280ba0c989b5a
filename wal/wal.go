// Package wal implements the segmented, append-only write-ahead log that
// backs transaction commit durability and crash recovery.
package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/arohank/dstxncore/internal/errs"
)

const segmentPrefix = "log_"
const segmentSuffix = ".log"

// Log is a segmented, buffered write-ahead log. Appends are buffered in
// memory up to bufSize bytes; a segment rolls over to the next sequence
// number once it would exceed fileSize. Log is safe for concurrent use.
type Log struct {
	mu sync.Mutex

	fs       fileSystem
	dir      string
	bufSize  int
	fileSize uint64

	buf []byte

	activeSeq      int64
	activeFile     file
	segmentWritten uint64 // bytes written (flushed or buffered) to the active segment
	streamBase     uint64 // byte offset of the active segment's start within the whole log stream

	closed bool
}

// Open opens (or creates) the WAL directory, replays any existing segments,
// and returns a ready Log along with every record recovered from replay.
func Open(dir string, bufSize int, fileSize uint64) (*Log, []Record, error) {
	return open(defaultFileSystem, dir, bufSize, fileSize)
}

func open(fs fileSystem, dir string, bufSize int, fileSize uint64) (*Log, []Record, error) {
	log.WithFields(log.Fields{"dir": dir, "bufSize": bufSize, "fileSize": fileSize}).Info("wal::Open; started")

	if err := fs.mkdirAll(dir, 0o755); err != nil {
		return nil, nil, errs.NewIoError(fmt.Sprintf("wal: creating log folder %s: %v", dir, err))
	}

	seqs, err := listSegments(fs, dir)
	if err != nil {
		return nil, nil, err
	}

	w := &Log{
		fs:       fs,
		dir:      dir,
		bufSize:  bufSize,
		fileSize: fileSize,
	}

	var records []Record

	if len(seqs) == 0 {
		w.activeSeq = 0
	} else {
		result, err := replaySegments(fs, dir, seqs)
		if err != nil {
			return nil, nil, err
		}
		records = result.records

		for _, s := range seqs {
			if s >= result.stoppedAtSeq {
				break
			}
			sz, err := segmentSize(fs, dir, s)
			if err != nil {
				return nil, nil, err
			}
			w.streamBase += sz
		}

		w.activeSeq = result.stoppedAtSeq
		w.segmentWritten = result.validOffset

		if err := truncateSegment(dir, w.activeSeq, result.validOffset); err != nil {
			return nil, nil, errs.NewIoError(fmt.Sprintf("wal: truncating segment %d: %v", w.activeSeq, err))
		}

		// Segments after the one replay stopped in hold only the discarded
		// tail; remove them so a later rollover starts them empty.
		for _, s := range seqs {
			if s > w.activeSeq {
				if err := os.Remove(segmentPath(dir, s)); err != nil {
					return nil, nil, errs.NewIoError(fmt.Sprintf("wal: removing segment %d: %v", s, err))
				}
			}
		}
	}

	f, err := fs.create(segmentPath(dir, w.activeSeq))
	if err != nil {
		return nil, nil, errs.NewIoError(fmt.Sprintf("wal: opening active segment: %v", err))
	}
	w.activeFile = f

	log.WithFields(log.Fields{"records": len(records), "activeSeq": w.activeSeq}).Info("wal::Open; done")
	return w, records, nil
}

func segmentPath(dir string, seq int64) string {
	return dir + string(os.PathSeparator) + fmt.Sprintf("%s%020d%s", segmentPrefix, seq, segmentSuffix)
}

// listSegments returns the sequence numbers of all log segments in dir, in
// ascending order.
func listSegments(fs fileSystem, dir string) ([]int64, error) {
	entries, err := fs.readDir(dir)
	if err != nil {
		return nil, errs.NewIoError(fmt.Sprintf("wal: listing segments in %s: %v", dir, err))
	}

	var seqs []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		middle := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
		seq, err := strconv.ParseInt(middle, 10, 64)
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

func segmentSize(fs fileSystem, dir string, seq int64) (uint64, error) {
	info, err := os.Stat(segmentPath(dir, seq))
	if err != nil {
		return 0, errs.NewIoError(fmt.Sprintf("wal: stat segment %d: %v", seq, err))
	}
	return uint64(info.Size()), nil
}

func truncateSegment(dir string, seq int64, size uint64) error {
	return os.Truncate(segmentPath(dir, seq), int64(size))
}

// Append encodes a record and buffers it for the given kind/txn, rolling
// the active segment over first if the record wouldn't fit within
// fileSize. It returns the record's assigned LSN. Append flushes only when
// the buffer reaches bufSize or the segment rolls over, and never fsyncs;
// call Flush and Sync (or AppendSync) for durability.
func (w *Log) Append(kind Kind, txnID uint64, extra ...uint64) (uint64, error) {
	var payload []byte
	switch kind {
	case KindBegin:
		payload = make([]byte, 16)
		binary.BigEndian.PutUint64(payload[0:8], txnID)
		binary.BigEndian.PutUint64(payload[8:16], valueOr(extra, 0))
	case KindCommit:
		payload = make([]byte, 16)
		binary.BigEndian.PutUint64(payload[0:8], txnID)
		binary.BigEndian.PutUint64(payload[8:16], valueOr(extra, 0))
	case KindAbort:
		payload = make([]byte, 8)
		binary.BigEndian.PutUint64(payload[0:8], txnID)
	default:
		return 0, errs.NewIoError("wal: Append called with a kind requiring a payload; use AppendUserData")
	}

	return w.appendEncoded(kind, payload)
}

// AppendUserData appends a UserData record carrying opaque caller bytes.
func (w *Log) AppendUserData(txnID uint64, data []byte) (uint64, error) {
	payload := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(payload[0:8], txnID)
	copy(payload[8:], data)
	return w.appendEncoded(KindUserData, payload)
}

func valueOr(extra []uint64, def uint64) uint64 {
	if len(extra) == 0 {
		return def
	}
	return extra[0]
}

func (w *Log) appendEncoded(kind Kind, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, errs.NewIoError("wal: Append called on a closed log")
	}

	recLen := uint64(headerSize + len(payload) + trailerSize)

	if w.segmentWritten > 0 && w.segmentWritten+recLen > w.fileSize {
		if err := w.rolloverLocked(); err != nil {
			return 0, err
		}
	}

	lsn := w.streamBase + w.segmentWritten
	rec := encode(lsn, kind, payload)

	w.buf = append(w.buf, rec...)
	w.segmentWritten += recLen

	if len(w.buf) >= w.bufSize {
		if err := w.flushLocked(); err != nil {
			return 0, err
		}
	}

	log.WithFields(log.Fields{"kind": kind, "lsn": lsn}).Debug("wal::Log.Append; buffered record")
	return lsn, nil
}

// rolloverLocked flushes and closes the active segment and opens the next
// one. Callers must hold w.mu.
func (w *Log) rolloverLocked() error {
	log.WithFields(log.Fields{"seq": w.activeSeq}).Info("wal::Log.rolloverLocked; rolling over segment")

	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.activeFile.Close(); err != nil {
		return errs.NewIoError(fmt.Sprintf("wal: closing segment %d: %v", w.activeSeq, err))
	}

	w.streamBase += w.segmentWritten
	w.activeSeq++
	w.segmentWritten = 0

	f, err := w.fs.create(segmentPath(w.dir, w.activeSeq))
	if err != nil {
		return errs.NewIoError(fmt.Sprintf("wal: creating segment %d: %v", w.activeSeq, err))
	}
	w.activeFile = f
	return nil
}

// Flush drains the in-memory buffer to the active segment's file. It does
// not fsync.
func (w *Log) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Log) flushLocked() error {
	if len(w.buf) == 0 {
		return nil
	}
	if _, err := w.activeFile.Write(w.buf); err != nil {
		return errs.NewIoError(fmt.Sprintf("wal: writing segment %d: %v", w.activeSeq, err))
	}
	w.buf = w.buf[:0]
	return nil
}

// Sync fsyncs the active segment file, making everything flushed so far
// durable.
func (w *Log) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Log) syncLocked() error {
	if err := w.activeFile.Sync(); err != nil {
		return errs.NewIoError(fmt.Sprintf("wal: fsyncing segment %d: %v", w.activeSeq, err))
	}
	return nil
}

// AppendSync appends a fixed-shape record (Begin/Commit/Abort) and blocks
// until it is durable: buffered, flushed, and fsynced. Commit records must
// go through this path per spec §4.3's durability requirement.
func (w *Log) AppendSync(kind Kind, txnID uint64, extra ...uint64) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var payload []byte
	switch kind {
	case KindBegin, KindCommit:
		payload = make([]byte, 16)
		binary.BigEndian.PutUint64(payload[0:8], txnID)
		binary.BigEndian.PutUint64(payload[8:16], valueOr(extra, 0))
	case KindAbort:
		payload = make([]byte, 8)
		binary.BigEndian.PutUint64(payload[0:8], txnID)
	default:
		return 0, errs.NewIoError("wal: AppendSync called with a kind requiring a payload")
	}

	recLen := uint64(headerSize + len(payload) + trailerSize)
	if w.segmentWritten > 0 && w.segmentWritten+recLen > w.fileSize {
		if err := w.rolloverLocked(); err != nil {
			return 0, err
		}
	}

	lsn := w.streamBase + w.segmentWritten
	rec := encode(lsn, kind, payload)
	w.buf = append(w.buf, rec...)
	w.segmentWritten += recLen

	if err := w.flushLocked(); err != nil {
		return 0, err
	}
	if err := w.syncLocked(); err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{"kind": kind, "lsn": lsn, "txnID": txnID}).Info("wal::Log.AppendSync; durable")
	return lsn, nil
}

// Close flushes, fsyncs, and closes the active segment file.
func (w *Log) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.syncLocked(); err != nil {
		return err
	}
	if err := w.activeFile.Close(); err != nil {
		return errs.NewIoError(fmt.Sprintf("wal: closing segment %d: %v", w.activeSeq, err))
	}

	w.closed = true
	return nil
}

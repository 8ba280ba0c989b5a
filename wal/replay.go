package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/arohank/dstxncore/internal/errs"
)

// replayResult describes where, within the logical multi-segment stream,
// valid decoding stopped.
type replayResult struct {
	records []Record
	// stoppedAtSeq is the segment in which decoding stopped — either the
	// last segment (clean case) or an earlier one (a segment was corrupt
	// or truncated before its end, which also truncates every segment
	// after it from the manager's point of view).
	stoppedAtSeq int64
	// validOffset is the byte offset within stoppedAtSeq at which the
	// next Append should resume.
	validOffset uint64
}

// replaySegments reads every segment in seqs (ascending) end-to-end as one
// logical stream, decoding records until the first truncated or
// CRC-invalid record, per spec §4.3's Replay semantics.
//
// A decoded record whose embedded LSN does not match the offset it was
// read from is an ordering violation, not a tail artifact, and returns
// InvalidLogError immediately.
func replaySegments(fs fileSystem, dir string, seqs []int64) (replayResult, error) {
	var records []Record
	var streamOffset uint64
	var lastSeq int64
	var lastData []byte

	for _, seq := range seqs {
		data, err := readSegmentFile(dir, seq)
		if err != nil {
			return replayResult{}, err
		}
		lastSeq, lastData = seq, data

		offsetInSegment := uint64(0)
		for {
			rec, consumed, ok := decodeOne(data[offsetInSegment:])
			if !ok {
				break
			}

			expectedLSN := streamOffset + offsetInSegment
			if rec.LSN != expectedLSN {
				return replayResult{}, errs.NewInvalidLogError(
					fmt.Sprintf("wal: ordering violation in segment %d: record lsn %d != expected offset %d", seq, rec.LSN, expectedLSN))
			}

			records = append(records, rec)
			offsetInSegment += consumed
		}

		if offsetInSegment < uint64(len(data)) {
			// Hit a truncated or checksum-invalid record before
			// consuming the whole segment: this is where the stream
			// ends, regardless of whether later segments exist.
			log.WithFields(log.Fields{"segment": seq, "validOffset": offsetInSegment, "segmentSize": len(data)}).
				Info("wal::replaySegments; stopped at first truncated or invalid record")
			return replayResult{records: records, stoppedAtSeq: seq, validOffset: offsetInSegment}, nil
		}

		streamOffset += uint64(len(data))
	}

	log.WithFields(log.Fields{"segments": len(seqs), "records": len(records)}).Info("wal::replaySegments; done")
	return replayResult{records: records, stoppedAtSeq: lastSeq, validOffset: uint64(len(lastData))}, nil
}

func readSegmentFile(dir string, seq int64) ([]byte, error) {
	data, err := os.ReadFile(segmentPath(dir, seq))
	if err != nil {
		return nil, errs.NewIoError(fmt.Sprintf("wal: reading segment %d: %v", seq, err))
	}
	return data, nil
}

// decodeOne decodes a single record from the front of buf. ok is false if
// buf doesn't contain a complete, checksum-valid record (truncated tail or
// CRC mismatch) — the normal, non-error end-of-valid-data condition.
func decodeOne(buf []byte) (rec Record, consumed uint64, ok bool) {
	if len(buf) < headerSize {
		return Record{}, 0, false
	}

	payloadLen := binary.BigEndian.Uint32(buf[0:4])
	lsn := binary.BigEndian.Uint64(buf[4:12])
	kind := Kind(buf[12])

	total := headerSize + int(payloadLen) + trailerSize
	if total < 0 || len(buf) < total {
		return Record{}, 0, false
	}

	payload := buf[headerSize : headerSize+int(payloadLen)]
	wantCRC := binary.BigEndian.Uint32(buf[headerSize+int(payloadLen) : total])
	gotCRC := crc32.ChecksumIEEE(buf[:headerSize+int(payloadLen)])
	if wantCRC != gotCRC {
		return Record{}, 0, false
	}

	decoded, decodeOK := decodePayload(kind, payload)
	if !decodeOK {
		return Record{}, 0, false
	}
	decoded.LSN = lsn

	return decoded, uint64(total), true
}

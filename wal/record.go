package wal

import (
	"encoding/binary"
	"hash/crc32"
)

// Kind tags the variant of a log record, per spec §3's tagged-variant log
// record: Begin, UserData, Commit, Abort.
type Kind uint8

const (
	// KindBegin marks the start of a transaction: payload is
	// (txnID, startSnapshot).
	KindBegin Kind = iota
	// KindUserData carries opaque caller-supplied bytes tied to a txn.
	KindUserData
	// KindCommit marks a transaction committed: payload is
	// (txnID, commitSnapshot).
	KindCommit
	// KindAbort marks a transaction aborted: payload is (txnID).
	KindAbort
)

func (k Kind) String() string {
	switch k {
	case KindBegin:
		return "BEGIN"
	case KindUserData:
		return "USERDATA"
	case KindCommit:
		return "COMMIT"
	case KindAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// Record is a single decoded WAL entry, tagged with the LSN it was written
// at.
type Record struct {
	LSN            uint64
	Kind           Kind
	TxnID          uint64
	StartSnapshot  uint64
	CommitSnapshot uint64
	Payload        []byte
}

// headerSize is the size of [length][lsn][kind] preceding the payload.
const headerSize = 4 + 8 + 1

// trailerSize is the size of the trailing crc32.
const trailerSize = 4

// encode serializes a record for the given lsn and kind/payload into the
// on-disk framing: [u32 length][u64 lsn][u8 kind][payload][u32 crc32], all
// big-endian, crc32 computed with the IEEE polynomial over everything but
// the crc field itself.
func encode(lsn uint64, kind Kind, payload []byte) []byte {
	total := headerSize + len(payload) + trailerSize
	buf := make([]byte, total)

	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint64(buf[4:12], lsn)
	buf[12] = byte(kind)
	copy(buf[headerSize:], payload)

	crc := crc32.ChecksumIEEE(buf[:headerSize+len(payload)])
	binary.BigEndian.PutUint32(buf[headerSize+len(payload):], crc)

	return buf
}

// decodePayload fills in the Record's typed fields from its raw payload,
// per the Kind's wire layout.
func decodePayload(kind Kind, payload []byte) (Record, bool) {
	r := Record{Kind: kind}

	switch kind {
	case KindBegin:
		if len(payload) != 16 {
			return Record{}, false
		}
		r.TxnID = binary.BigEndian.Uint64(payload[0:8])
		r.StartSnapshot = binary.BigEndian.Uint64(payload[8:16])
	case KindCommit:
		if len(payload) != 16 {
			return Record{}, false
		}
		r.TxnID = binary.BigEndian.Uint64(payload[0:8])
		r.CommitSnapshot = binary.BigEndian.Uint64(payload[8:16])
	case KindAbort:
		if len(payload) != 8 {
			return Record{}, false
		}
		r.TxnID = binary.BigEndian.Uint64(payload[0:8])
	case KindUserData:
		if len(payload) < 8 {
			return Record{}, false
		}
		r.TxnID = binary.BigEndian.Uint64(payload[0:8])
		r.Payload = payload[8:]
	default:
		return Record{}, false
	}

	return r, true
}

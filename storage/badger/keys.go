package badger

import (
	"encoding/binary"
)

const (
	chunkRecordPrefix  = "chkrec"
	chunkOrdinalPrefix = "chkord"
	chunkBasePrefix    = "chkbas"
	chunkOrdinalSeq    = "chkseq"
	auditRecordPrefix  = "audrec"
)

// keySeparator terminates variable-length key segments so that one
// segment can never be a prefix of another.
const keySeparator = 0x00

// chunkRecordKeyPrefix returns the prefix shared by all primary chunk keys.
func chunkRecordKeyPrefix() []byte {
	return []byte(chunkRecordPrefix + ":")
}

// makeChunkKey generates the primary key for a chunk.
// Format: prefix:id
func makeChunkKey(id string) []byte {
	return append(chunkRecordKeyPrefix(), id...)
}

// chunkOrdinalKeyPrefix returns the prefix of the insertion-order index.
func chunkOrdinalKeyPrefix() []byte {
	return []byte(chunkOrdinalPrefix + ":")
}

// makeChunkOrdinalKey generates a key in the insertion-order index.
// Format: prefix:ordinal (BigEndian so lexicographic order equals insertion order)
func makeChunkOrdinalKey(ordinal uint64) []byte {
	prefix := chunkOrdinalKeyPrefix()
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], ordinal)
	return buf
}

// makePartialChunkBaseKey generates the prefix of all index entries for one document.
// Format: prefix:baseID\x00
func makePartialChunkBaseKey(baseID string) []byte {
	buf := make([]byte, 0, len(chunkBasePrefix)+len(baseID)+2)
	buf = append(buf, chunkBasePrefix+":"...)
	buf = append(buf, baseID...)
	return append(buf, keySeparator)
}

// makeChunkBaseKey generates a key in the per-document index.
// Format: prefix:baseID\x00chunkIndex
func makeChunkBaseKey(baseID string, chunkIndex int) []byte {
	partial := makePartialChunkBaseKey(baseID)
	buf := make([]byte, len(partial)+8)
	offset := copy(buf, partial)
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkIndex))
	return buf
}

// auditRecordKeyPrefix returns the prefix shared by all audit keys.
func auditRecordKeyPrefix() []byte {
	return []byte(auditRecordPrefix + ":")
}

// makePartialAuditKey generates the prefix of all records of one run.
// Format: prefix:runID\x00
func makePartialAuditKey(runID string) []byte {
	buf := auditRecordKeyPrefix()
	buf = append(buf, runID...)
	return append(buf, keySeparator)
}

// makeAuditKey generates the key of one iteration's record.
// Format: prefix:runID\x00iteration
func makeAuditKey(runID string, iteration int) []byte {
	partial := makePartialAuditKey(runID)
	buf := make([]byte, len(partial)+8)
	offset := copy(buf, partial)
	binary.BigEndian.PutUint64(buf[offset:], uint64(iteration))
	return buf
}

// runIDFromAuditKey extracts the run id from an audit key.
func runIDFromAuditKey(key []byte) string {
	rest := key[len(auditRecordKeyPrefix()):]
	if len(rest) < 9 {
		return ""
	}
	return string(rest[:len(rest)-9])
}

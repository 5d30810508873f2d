package storage

import "encoding/binary"

// recipientKey encodes a vote option index as a fixed-size big-endian key,
// so recipients iterate in index order.
func recipientKey(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)
	return key
}

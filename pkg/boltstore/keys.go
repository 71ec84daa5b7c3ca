package boltstore

import (
	"encoding/binary"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
)

// Bucket name constants for bbolt storage.
var (
	bucketMeta    = []byte("meta")
	bucketObjects = []byte("objects")
	bucketPlayers = []byte("players") // exact player name -> ref
)

// Meta key constants.
var (
	keyNextRef = []byte("nextref")
	keyVersion = []byte("version")
)

const schemaVersion = 2

// refToKey converts a DBRef to an 8-byte big-endian key.
// The offset keeps Nothing (-1) sorting before real refs.
func refToKey(ref gamedb.DBRef) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(int64(ref)+1<<32))
	return buf
}

// keyToRef converts an 8-byte big-endian key back to a DBRef.
func keyToRef(b []byte) gamedb.DBRef {
	v := binary.BigEndian.Uint64(b)
	return gamedb.DBRef(int64(v) - 1<<32)
}

func intToKey(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func keyToInt(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}

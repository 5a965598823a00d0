package model

import (
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/zeebo/xxh3"
)

// Key identifies one artifact: a resource rendered in a format.
// It is the join key across the memory and the disk tiers.
type Key struct {
	Hi uint64
	Lo uint64
}

var hasherPool = sync.Pool{New: func() any { return xxh3.New() }}

// NewKey derives the key of resourceID rendered in formatName.
// Both parts are length-prefixed before hashing, so ("ab", "c") and ("a", "bc") never meet.
func NewKey(resourceID, formatName string) Key {
	hasher := hasherPool.Get().(*xxh3.Hasher)
	hasher.Reset()

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(resourceID)))
	_, _ = hasher.Write(lenBuf[:n])
	_, _ = hasher.WriteString(resourceID)
	n = binary.PutUvarint(lenBuf[:], uint64(len(formatName)))
	_, _ = hasher.Write(lenBuf[:n])
	_, _ = hasher.WriteString(formatName)

	u128 := hasher.Sum128()
	hasherPool.Put(hasher)

	return Key{Hi: u128.Hi, Lo: u128.Lo}
}

// String returns 32 lowercase hex chars; used as the on-disk file name.
func (k Key) String() string {
	var raw [16]byte
	binary.BigEndian.PutUint64(raw[0:8], k.Hi)
	binary.BigEndian.PutUint64(raw[8:16], k.Lo)
	return hex.EncodeToString(raw[:])
}

func (k Key) IsZero() bool { return k.Hi == 0 && k.Lo == 0 }

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, bool) {
	if len(s) != 32 {
		return Key{}, false
	}
	var raw [16]byte
	if _, err := hex.Decode(raw[:], []byte(s)); err != nil {
		return Key{}, false
	}
	return Key{
		Hi: binary.BigEndian.Uint64(raw[0:8]),
		Lo: binary.BigEndian.Uint64(raw[8:16]),
	}, true
}

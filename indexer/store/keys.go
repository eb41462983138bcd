package store

import (
	"encoding/binary"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// Key encoding conventions (spec.md §4.1): all integer components use
// big-endian byte order so lexicographic key order matches numeric
// order, enabling range scans with a plain bbolt cursor. This
// generalizes the teacher's shared/bytes.Bytes8 helper (which only
// covered a single fixed width) to every width the column layout needs.

// be32 big-endian encodes a height or slot.
func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// be64 big-endian encodes a sequence number.
func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// heightKey builds the blocks_by_height / canonical_at_height key prefix:
// BE(height).
func heightKey(h types.Height) []byte {
	return be32(uint32(h))
}

// slotKey builds the blocks_by_slot / canonical_at_slot key prefix:
// BE(slot).
func slotKey(s types.GlobalSlot) []byte {
	return be32(uint32(s))
}

// seqKey builds the events_log key: BE(seq).
func seqKey(seq uint64) []byte {
	return be64(seq)
}

// heightStateHashKey builds BE(height) ‖ state_hash for blocks_by_height.
func heightStateHashKey(h types.Height, sh types.StateHash) []byte {
	return append(heightKey(h), []byte(sh)...)
}

// slotStateHashKey builds BE(slot) ‖ state_hash for blocks_by_slot.
func slotStateHashKey(s types.GlobalSlot, sh types.StateHash) []byte {
	return append(slotKey(s), []byte(sh)...)
}

// usernameHistoryKey builds public_key ‖ BE(index) for username_history.
func usernameHistoryKey(pk types.PublicKey, index uint32) []byte {
	return append([]byte(pk), be32(index)...)
}

// zkappEventKey builds token ‖ public_key ‖ BE(index) for zkapp_events.
// A NUL separator keeps token/pk boundaries unambiguous since both are
// variable-length printable strings.
func zkappEventKey(token types.TokenAddress, pk types.PublicKey, index uint32) []byte {
	k := make([]byte, 0, len(token)+1+len(pk)+4)
	k = append(k, []byte(token)...)
	k = append(k, 0)
	k = append(k, []byte(pk)...)
	k = append(k, be32(index)...)
	return k
}

// zkappEventPrefix builds token ‖ public_key, the range-scan prefix over
// all events of one account.
func zkappEventPrefix(token types.TokenAddress, pk types.PublicKey) []byte {
	k := make([]byte, 0, len(token)+1+len(pk))
	k = append(k, []byte(token)...)
	k = append(k, 0)
	k = append(k, []byte(pk)...)
	return k
}

// zkappEventCountKey builds token ‖ public_key for zkapp_events_count.
func zkappEventCountKey(token types.TokenAddress, pk types.PublicKey) []byte {
	return zkappEventPrefix(token, pk)
}

// stakingLedgerEpochKey builds network ‖ 0 ‖ BE(epoch) for
// staking_ledgers_by_epoch.
func stakingLedgerEpochKey(network string, epoch uint32) []byte {
	k := make([]byte, 0, len(network)+1+4)
	k = append(k, []byte(network)...)
	k = append(k, 0)
	k = append(k, be32(epoch)...)
	return k
}

// hasPrefix reports whether key starts with prefix, used when walking a
// bbolt cursor over a composite-key range.
func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

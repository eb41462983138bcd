package store

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/snappy"
)

// encode gob-serializes v and compresses the result with snappy, mirroring
// the teacher's db/kv/encoding.go (proto.Marshal + snappy.Encode) — the
// indexer has no protobuf schema of its own so gob (stdlib, a natural fit
// for tagged Go structs with no external wire contract) stands in for
// proto.Marshal, but the snappy compression step is kept verbatim.
func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return snappy.Encode(nil, buf.Bytes()), nil
}

// decode reverses encode into dst, which must be a pointer.
func decode(data []byte, dst interface{}) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(raw)).Decode(dst)
}

package model

import (
	"bytes"
	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes the document for the durable and remote stores.
func (m Metadata) Encode() ([]byte, error) {
	return msgpack.Marshal(m.Normalize())
}

// DecodeMetadata is the inverse of Metadata.Encode. Numbers come back as
// int64, uint64 or float64 regardless of their encoded width.
func DecodeMetadata(b []byte) (Metadata, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)

	var meta Metadata
	if err := dec.Decode(&meta); err != nil {
		return nil, err
	}
	return meta.Normalize(), nil
}

package model

// Metadata is an opaque structured document stored alongside a value.
type Metadata map[string]any

// Normalize returns m or an empty document when m is nil.
func (m Metadata) Normalize() Metadata {
	if m == nil {
		return Metadata{}
	}
	return m
}

// Entry is what byte stores hand back on a hit.
type Entry struct {
	Value    []byte
	Metadata Metadata
	Size     int64
}

// NewEntry never leaves Metadata nil.
func NewEntry(value []byte, meta Metadata) Entry {
	return Entry{Value: value, Metadata: meta.Normalize(), Size: int64(len(value))}
}

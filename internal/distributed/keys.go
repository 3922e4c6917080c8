package distributed

import "strings"

const (
	metadataSegment = "metadata:"
	valuesSegment   = "values:"

	fieldMetadata = "metadata"
	fieldID       = "id"
)

type keyspace struct {
	metadataPrefix string
	valuesPrefix   string
}

func newKeyspace(namespace string) keyspace {
	return keyspace{
		metadataPrefix: namespace + metadataSegment,
		valuesPrefix:   namespace + valuesSegment,
	}
}

func (ks keyspace) metadataKey(key string) string { return ks.metadataPrefix + key }
func (ks keyspace) valueKey(id string) string     { return ks.valuesPrefix + id }

// cacheKey recovers the logical key of a metadata key.
func (ks keyspace) cacheKey(remote string) (string, bool) {
	return strings.CutPrefix(remote, ks.metadataPrefix)
}

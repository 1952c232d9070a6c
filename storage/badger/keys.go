package badger

import (
	"encoding/binary"

	"github.com/poiesic/clauseguard/core"
)

// Key prefixes for different data types
const (
	chunkPrefix       = "chunk:"
	sourceChunkPrefix = "srcchunk:"
	documentPrefix    = "doc:"
	manifestPrefix    = "manifest:"
)

// namespace is prepended to the document and chunk keys of one collection.
// Format: collection + NUL
type namespace []byte

func newNamespace(collection string) namespace {
	ns := make([]byte, 0, len(collection)+1)
	ns = append(ns, collection...)
	return append(ns, 0)
}

// prefix returns ns + p in a fresh slice.
func (ns namespace) prefix(p string) []byte {
	buf := make([]byte, 0, len(ns)+len(p))
	buf = append(buf, ns...)
	return append(buf, p...)
}

// chunkKey generates a key for a chunk by ID.
// Format: ns + prefix + 8 byte ID
func (ns namespace) chunkKey(id core.ID) []byte {
	buf := ns.prefix(chunkPrefix)
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// partialSourceChunkKey generates the prefix shared by all chunks of a source.
// Format: ns + prefix + source + NUL
func (ns namespace) partialSourceChunkKey(source string) []byte {
	buf := ns.prefix(sourceChunkPrefix)
	buf = append(buf, source...)
	return append(buf, 0)
}

// sourceChunkKey generates a key of the source index.
// Format: ns + prefix + source + NUL + 8 byte sequence number.
// BigEndian sequence numbers make the chunks of a source sort in document order.
func (ns namespace) sourceChunkKey(source string, seq int) []byte {
	return binary.BigEndian.AppendUint64(ns.partialSourceChunkKey(source), uint64(seq))
}

// documentKey generates a key for a document record.
func (ns namespace) documentKey(source string) []byte {
	return append(ns.prefix(documentPrefix), source...)
}

// makeManifestKey generates a key for a collection manifest.
// Manifests live outside any namespace.
func makeManifestKey(collection string) []byte {
	return []byte(manifestPrefix + collection)
}

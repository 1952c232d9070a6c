// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/clauseguard/core"
)

// decoder reads consecutive mus-encoded fields and remembers the first error.
type decoder struct {
	bs  []byte
	off int
	err error
}

func (d *decoder) id() core.ID {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs[d.off:])
	d.off += n
	d.err = err
	return core.ID(v)
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.bs[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) bool() bool {
	if d.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(d.bs[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) time() time.Time {
	if d.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.off:])
	d.off += n
	d.err = err
	return fromMicros(v)
}

func (d *decoder) done() error {
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, d.err)
	}
	if d.off != len(d.bs) {
		return fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(d.bs)-d.off)
	}
	return nil
}

func micros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := &decoder{bs: data}
	id := d.id()
	return id, d.done()
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	size := varint.Uint64.Size(uint64(chunk.Id)) +
		ord.String.Size(chunk.Source) +
		varint.Int.Size(chunk.Seq) +
		varint.Int.Size(chunk.Start) +
		ord.String.Size(chunk.Text)
	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(chunk.Id), buf)
	n += ord.String.Marshal(chunk.Source, buf[n:])
	n += varint.Int.Marshal(chunk.Seq, buf[n:])
	n += varint.Int.Marshal(chunk.Start, buf[n:])
	ord.String.Marshal(chunk.Text, buf[n:])
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	d := &decoder{bs: data}
	chunk := &core.Chunk{
		Id:     d.id(),
		Source: d.string(),
		Seq:    d.int(),
		Start:  d.int(),
		Text:   d.string(),
	}
	if err := d.done(); err != nil {
		return nil, err
	}
	return chunk, nil
}

// MarshalDocumentRecord serializes a DocumentRecord to bytes.
func MarshalDocumentRecord(doc *core.DocumentRecord) []byte {
	ingested := micros(doc.IngestedAt)
	size := ord.String.Size(doc.Source) +
		varint.Int.Size(doc.Chunks) +
		varint.Int.Size(doc.Characters) +
		varint.Int64.Size(ingested)
	buf := make([]byte, size)
	n := ord.String.Marshal(doc.Source, buf)
	n += varint.Int.Marshal(doc.Chunks, buf[n:])
	n += varint.Int.Marshal(doc.Characters, buf[n:])
	varint.Int64.Marshal(ingested, buf[n:])
	return buf
}

// UnmarshalDocumentRecord deserializes a DocumentRecord from bytes.
func UnmarshalDocumentRecord(data []byte) (*core.DocumentRecord, error) {
	d := &decoder{bs: data}
	doc := &core.DocumentRecord{
		Source:     d.string(),
		Chunks:     d.int(),
		Characters: d.int(),
		IngestedAt: d.time(),
	}
	if err := d.done(); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalManifest serializes a Manifest to bytes.
func MarshalManifest(m *core.Manifest) []byte {
	created, updated := micros(m.CreatedAt), micros(m.UpdatedAt)
	size := ord.String.Size(m.Collection) +
		ord.String.Size(m.EmbeddingModel) +
		varint.Int.Size(m.Dimension) +
		ord.String.Size(string(m.Metric)) +
		ord.Bool.Size(m.Reindexing) +
		varint.Int64.Size(created) +
		varint.Int64.Size(updated)
	buf := make([]byte, size)
	n := ord.String.Marshal(m.Collection, buf)
	n += ord.String.Marshal(m.EmbeddingModel, buf[n:])
	n += varint.Int.Marshal(m.Dimension, buf[n:])
	n += ord.String.Marshal(string(m.Metric), buf[n:])
	n += ord.Bool.Marshal(m.Reindexing, buf[n:])
	n += varint.Int64.Marshal(created, buf[n:])
	varint.Int64.Marshal(updated, buf[n:])
	return buf
}

// UnmarshalManifest deserializes a Manifest from bytes.
func UnmarshalManifest(data []byte) (*core.Manifest, error) {
	d := &decoder{bs: data}
	m := &core.Manifest{
		Collection:     d.string(),
		EmbeddingModel: d.string(),
		Dimension:      d.int(),
		Metric:         core.Metric(d.string()),
		Reindexing:     d.bool(),
		CreatedAt:      d.time(),
		UpdatedAt:      d.time(),
	}
	if err := d.done(); err != nil {
		return nil, err
	}
	return m, nil
}

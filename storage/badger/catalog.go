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

package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/clauseguard/core"
	"github.com/poiesic/clauseguard/storage"
)

// DefaultBatchSize is used by ForEachChunk when batchSize is not positive.
const DefaultBatchSize = 100

// DefaultCollection is the collection a catalog records when none is given.
const DefaultCollection = "documents"

// Catalog implements storage.Catalog for BadgerDB.
// Documents and chunks are kept under a per-collection key namespace, so
// catalogs of different collections can share one backend.
type Catalog struct {
	backend    *Backend
	collection string
	ns         namespace
}

var _ storage.Catalog = (*Catalog)(nil)

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog) error

// WithCollection sets the collection whose documents and chunks the catalog
// records. Default is DefaultCollection.
func WithCollection(name string) CatalogOption {
	return func(c *Catalog) error {
		if name == "" || strings.ContainsRune(name, 0) {
			return fmt.Errorf("%w: invalid collection name %q", core.ErrInvalidConfig, name)
		}
		c.collection = name
		return nil
	}
}

// NewCatalog creates a catalog on top of backend.
// The caller keeps ownership of backend and closes it after the catalog.
func NewCatalog(backend *Backend, opts ...CatalogOption) (storage.Catalog, error) {
	if backend == nil {
		return nil, errors.New("badger backend required")
	}
	c := &Catalog{backend: backend, collection: DefaultCollection}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.ns = newNamespace(c.collection)
	return c, nil
}

// Close releases resources. Catalog has no resources of its own.
func (c *Catalog) Close() error {
	return nil
}

// RecordIngestion stores docs and chunks in a single transaction,
// replacing the chunk set previously recorded for each doc's source.
func (c *Catalog) RecordIngestion(ctx context.Context, docs []*core.DocumentRecord, chunks []core.Chunk) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.deleteSourceChunks(tx, doc.Source); err != nil {
				return err
			}
			if doc.IngestedAt.IsZero() {
				doc.IngestedAt = time.Now().UTC()
			}
			if err := tx.Set(c.ns.documentKey(doc.Source), storage.MarshalDocumentRecord(doc)); err != nil {
				return err
			}
		}

		for i := range chunks {
			chunk := &chunks[i]
			if err := tx.Set(c.ns.chunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			if err := tx.Set(c.ns.sourceChunkKey(chunk.Source, chunk.Seq), storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// deleteSourceChunks removes the chunks and index entries recorded for source.
func (c *Catalog) deleteSourceChunks(tx *badger.Txn, source string) error {
	ids, indexKeys, err := c.readSourceIndex(tx, source)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if err := tx.Delete(c.ns.chunkKey(id)); err != nil {
			return err
		}
		if err := tx.Delete(indexKeys[i]); err != nil {
			return err
		}
	}
	return nil
}

// readSourceIndex returns the chunk IDs of source in order with their index keys.
func (c *Catalog) readSourceIndex(tx *badger.Txn, source string) ([]core.ID, [][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = c.ns.partialSourceChunkKey(source)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []core.ID
	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		err := item.Value(func(val []byte) error {
			id, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, item.KeyCopy(nil))
	}
	return ids, keys, nil
}

// ChunkIDs returns the IDs of the chunks recorded for source, in order.
func (c *Catalog) ChunkIDs(ctx context.Context, source string) ([]core.ID, error) {
	var ids []core.ID
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		ids, _, err = c.readSourceIndex(tx, source)
		return err
	}, false)
	return ids, err
}

// GetDocument returns the record for source.
func (c *Catalog) GetDocument(ctx context.Context, source string) (*core.DocumentRecord, error) {
	var doc *core.DocumentRecord
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(c.ns.documentKey(source))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			doc, err = storage.UnmarshalDocumentRecord(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns every document record ordered by source.
func (c *Catalog) ListDocuments(ctx context.Context) ([]*core.DocumentRecord, error) {
	var docs []*core.DocumentRecord
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.ns.prefix(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocumentRecord(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return docs, err
}

// ForEachChunk calls fn with successive batches of chunks in key order.
// Each batch is read in its own transaction, so fn may run for a long time
// without pinning a read snapshot.
func (c *Catalog) ForEachChunk(ctx context.Context, batchSize int, fn func([]core.Chunk) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var after []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, last, err := c.readChunkPage(after, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = last
	}
}

// readChunkPage reads up to limit chunks whose keys sort after the key after.
func (c *Catalog) readChunkPage(after []byte, limit int) ([]core.Chunk, []byte, error) {
	var batch []core.Chunk
	var last []byte
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.ns.prefix(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		if after == nil {
			iter.Rewind()
		} else {
			iter.Seek(after)
			if iter.Valid() && bytes.Equal(iter.Item().Key(), after) {
				iter.Next()
			}
		}

		for ; iter.Valid() && len(batch) < limit; iter.Next() {
			item := iter.Item()
			err := item.Value(func(val []byte) error {
				chunk, err := storage.UnmarshalChunk(val)
				if err != nil {
					return err
				}
				batch = append(batch, *chunk)
				return nil
			})
			if err != nil {
				return err
			}
			last = item.KeyCopy(nil)
		}
		return nil
	}, false)
	return batch, last, err
}

// CountChunks returns the number of recorded chunks.
func (c *Catalog) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.ns.prefix(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// SaveManifest creates or replaces the manifest of its collection.
// CreatedAt is preserved from an existing manifest; UpdatedAt is set to now.
func (c *Catalog) SaveManifest(ctx context.Context, manifest *core.Manifest) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		key := makeManifestKey(manifest.Collection)
		now := time.Now().UTC()

		existing, err := readManifest(tx, key)
		if err != nil {
			return err
		}
		switch {
		case existing != nil:
			manifest.CreatedAt = existing.CreatedAt
		case manifest.CreatedAt.IsZero():
			manifest.CreatedAt = now
		}
		manifest.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalManifest(manifest)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// CreateManifest records the first manifest of its collection.
// The existence check and the write share one transaction; a manifest
// committed concurrently makes the commit fail with badger.ErrConflict,
// which is reported as storage.ErrManifestExists.
func (c *Catalog) CreateManifest(ctx context.Context, manifest *core.Manifest) error {
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		key := makeManifestKey(manifest.Collection)
		existing, err := readManifest(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrManifestExists
		}

		now := time.Now().UTC()
		if manifest.CreatedAt.IsZero() {
			manifest.CreatedAt = now
		}
		manifest.UpdatedAt = now
		if err := tx.Set(key, storage.MarshalManifest(manifest)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %s", storage.ErrManifestExists, manifest.Collection)
	}
	return err
}

// DeleteManifest removes the manifest of collection.
func (c *Catalog) DeleteManifest(ctx context.Context, collection string) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeManifestKey(collection)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadManifest returns the manifest of collection.
// Returns nil, nil if no manifest exists.
func (c *Catalog) LoadManifest(ctx context.Context, collection string) (*core.Manifest, error) {
	var manifest *core.Manifest
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		manifest, err = readManifest(tx, makeManifestKey(collection))
		return err
	}, false)
	return manifest, err
}

func readManifest(tx *badger.Txn, key []byte) (*core.Manifest, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var manifest *core.Manifest
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		manifest, unmarshalErr = storage.UnmarshalManifest(val)
		return unmarshalErr
	})
	return manifest, err
}

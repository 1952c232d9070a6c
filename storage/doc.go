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

// Package storage provides the storage abstraction layer for clauseguard.
//
// Two interfaces decouple persistence from the pipelines:
//
//   - VectorIndex: chunk vectors and similarity search for one collection
//   - Catalog: documents, chunks and embedding manifests
//
// # Implementations
//
//   - storage/chromem: embedded VectorIndex, in-memory or persisted to disk
//   - storage/pgvector: VectorIndex on PostgreSQL with the pgvector extension
//   - storage/badger: Catalog on BadgerDB
//
// # Constructor Return Type Pattern
//
// Public constructors return the interface types to keep callers decoupled
// from a particular backend:
//
//	catalog, err := badger.NewCatalog(backend, badger.WithCollection("standards"))  // returns storage.Catalog
//
// # Serialization
//
// Catalog values are encoded with mus-go (see serialization.go). Time values
// are stored as Unix microseconds, so they round-trip at microsecond precision
// in UTC.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access from
// multiple goroutines.
package storage

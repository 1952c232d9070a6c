package badger

import "github.com/poiesic/clauseguard/storage"

// NewMemoryCatalog creates an in-memory catalog for testing.
// Caller must close both the catalog and the backend when done.
func NewMemoryCatalog(opts ...CatalogOption) (storage.Catalog, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}

	catalog, err := NewCatalog(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	return catalog, backend, nil
}

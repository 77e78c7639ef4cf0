package index

// Index is the capability an index manager needs from a secondary index. A value maps to a set of primary keys.
type Index interface {
	Name() string

	// Insert adds pk to the primary keys of value. Inserting a pair twice is a no-op.
	Insert(value, pk []byte) error

	// Find returns the primary keys of value, or nil if value is not indexed.
	Find(value []byte) ([][]byte, error)

	// Delete removes pk from value, or value entirely when pk is nil. Deleting a missing pair is not an error.
	Delete(value, pk []byte) error

	// Update moves pk from oldValue to newValue.
	Update(oldValue, newValue, pk []byte) error

	// Save makes every change durable.
	Save() error

	// Load discards the in-memory state and reloads the index from its file.
	Load() error

	Close() error
}

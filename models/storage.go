package models

// Storage defines the persistence layer for labeltree.
//
// The engine keeps its whole state in memory and treats storage as a
// write-behind copy: LoadState is called once at startup and SaveState
// after every mutating operation. The primary implementations use DuckDB
// or SQLite through database/sql.
//
// Thread Safety: the engine serializes its calls, implementations need not
// be safe for concurrent use.
type Storage interface {
	// LoadState reads the persisted state.
	//
	// A fresh database yields an empty state with default preferences,
	// not an error. Options are returned as stored; normalization is the
	// engine's job.
	LoadState() (*State, error)

	// SaveState replaces the persisted state with s.
	//
	// Implementations must write atomically: either the whole state is
	// stored or the previous state is kept.
	SaveState(s *State) error

	// Close releases any resources held by the storage.
	//
	// After Close is called, the storage should not be used.
	Close() error
}

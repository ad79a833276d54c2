package kerrors

// Sentinel *KfeError values for the directory/search/embedding domain.
// Callers compare with errors.Is, which KfeError.Is resolves by code so
// wrapping (fmt.Errorf("...: %w", ErrDirectoryNotFound)) still matches.
var (
	// ErrDirectoryNotFound is returned when an operation names a directory
	// that was never registered with the engine.
	ErrDirectoryNotFound = New(ErrCodeDirectoryNotFound, "directory not registered", nil)

	// ErrDirectoryAlreadyRegistered is returned when registering a root
	// path that is already tracked.
	ErrDirectoryAlreadyRegistered = New(ErrCodeDirectoryAlreadyExists, "directory already registered", nil)

	// ErrDirectoryNotReady is returned when a search or edit request
	// arrives before a directory's initial reconciliation has finished.
	ErrDirectoryNotReady = New(ErrCodeDirectoryNotReady, "directory is still initializing", nil)

	// ErrFileNotIndexed is returned when an operation targets a file the
	// directory's metadata store has no row for.
	ErrFileNotIndexed = New(ErrCodeFileNotIndexed, "file is not indexed", nil)

	// ErrHashMismatch is returned when a stored embedding's source-text
	// hash no longer matches the current text, i.e. the embedding is stale.
	ErrHashMismatch = New(ErrCodeHashMismatch, "stored embedding hash does not match current content", nil)

	// ErrDimensionMismatch is returned when a query vector's width does
	// not match the calculator it's being compared against.
	ErrDimensionMismatch = New(ErrCodeDimensionMismatch, "embedding dimension mismatch", nil)
)

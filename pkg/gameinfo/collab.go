package gameinfo

// Collaborator capability contracts consumed by the cache core. The format
// packages provide the production implementations; tests substitute fakes.
//
// All three follow the same error convention: a missing sub-entry or file is
// reported with an error satisfying errors.Is(err, os.ErrNotExist) and is
// tolerated silently by the loader, while any other error aborts the field
// (never the whole cache).

// Bundle is an open container of named sub-entries.
type Bundle interface {
	// ReadSubFile reads a whole sub-entry by its conventional name
	// (e.g. "PARAM.SFO", "ICON0.PNG"). Absent entries return an error
	// wrapping os.ErrNotExist.
	ReadSubFile(name string) ([]byte, error)

	Close() error
}

// Volume is a read-only filesystem mounted over a disc image.
type Volume interface {
	// ReadFile reads a whole file by absolute path inside the volume.
	// Absent files return an error wrapping os.ErrNotExist.
	ReadFile(path string) ([]byte, error)

	Close() error
}

// Opener constructs format collaborators for a game image path.
//
// OpenBundle and OpenVolume failures are structural ("cannot even open the
// source"); the loader aborts that record's population without mutating it
// and never retries.
type Opener interface {
	OpenBundle(path string) (Bundle, error)
	OpenVolume(path string) (Volume, error)
}

// MetadataCodec parses the binary metadata blob into a flat table.
type MetadataCodec interface {
	Parse(data []byte) (map[string]string, error)
}

// Decoder turns raw artwork bytes into a renderable artifact. It runs
// synchronously on the foreground path, under the record lock.
type Decoder interface {
	Decode(data []byte) (*Artwork, error)
}

package cab

import (
	"errors"

	"github.com/jmcooper8654/wix4/archive"
)

// Errors re-exported from archive.
var (
	// ErrNilArchive is returned when an entry is constructed, or asked
	// to refresh, without an owning cabinet.
	ErrNilArchive = archive.ErrNilArchive

	// ErrNotFound is returned when the cabinet no longer contains an
	// entry at the requested path.
	ErrNotFound = archive.ErrNotFound
)

// Errors reported by cabinet reading and writing.
var (
	// ErrUnsupportedCompression is returned when folder data uses a
	// codec this package cannot decompress.
	ErrUnsupportedCompression = errors.New("cab: unsupported compression type")

	// ErrDataChecksum is returned when a data block fails its checksum.
	ErrDataChecksum = errors.New("cab: data block checksum mismatch")

	// ErrEntrySpansCabinets is returned when an entry's data starts in
	// a previous cabinet of a chained set and cannot be read from this
	// one alone.
	ErrEntrySpansCabinets = errors.New("cab: entry data continues from another cabinet")

	// ErrTooManyFiles is returned when a cabinet would contain more
	// files than the format can index.
	ErrTooManyFiles = errors.New("cab: too many files")

	// ErrSizeOverflow is returned when a file or folder is too large
	// for the cabinet size fields.
	ErrSizeOverflow = errors.New("cab: size overflows cabinet field")
)

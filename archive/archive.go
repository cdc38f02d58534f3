// Package archive defines the metadata common to file entries inside any
// supported archive container, and the contract an owning container
// implements so that its entries can re-resolve their metadata on
// demand.
package archive

import "errors"

// Sentinel errors shared by archive implementations and their entries.
var (
	// ErrNilArchive is returned when an operation that needs an owning
	// archive is attempted without one.
	ErrNilArchive = errors.New("archive: nil archive reference")

	// ErrNotFound is returned when an archive no longer contains an
	// entry at the requested path.
	ErrNotFound = errors.New("archive: entry not found")
)

// Entry is the minimal read surface of a resolved archive entry.
type Entry interface {
	// Path returns the archive-internal path of the entry.
	Path() string
}

// Archive is the owning container an entry can ask for fresh metadata.
//
// ResolveEntry re-reads the container's current state and returns a
// fully populated entry for path, ErrNotFound if the container no
// longer holds one, or a wrapped I/O error if the container cannot be
// read. The call blocks until the lookup completes; cancellation policy
// belongs to the implementation, not to this contract.
type Archive interface {
	ResolveEntry(path string) (Entry, error)

	// Name returns a display name for the archive.
	Name() string
}

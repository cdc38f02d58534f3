package cab

import (
	"fmt"
	"time"

	"github.com/jmcooper8654/wix4/archive"
	"github.com/jmcooper8654/wix4/snapshot"
)

// folderIndexKey is the snapshot field key for the folder index. It is
// appended after the base entry fields and its position and name are
// part of the wire layout.
const folderIndexKey = "cabFolder"

// FileInfo describes one file stored in a cabinet.
//
// Beyond the common entry metadata it carries the index, in the
// cabinet's zero-based folder numbering, of the folder holding the
// file's compressed data. A folder index of -1 means the index is not
// known: either it has not been resolved yet, or the file's data starts
// in a previous cabinet of a chained set, where this cabinet cannot
// address it. Reading [FileInfo.FolderIndex] on an unresolved entry
// refreshes it from the owning cabinet first.
//
// A FileInfo is not safe for concurrent mutation. Concurrent refreshes
// of the same instance race on its fields; callers must serialize
// access to an instance. Distinct instances are independent.
type FileInfo struct {
	archive.FileInfo

	folderIndex int
}

// NewEntry creates an entry for path with only the owning cabinet
// known. The folder index starts unresolved and is fetched from the
// cabinet on first use. Returns ErrNilArchive when a is nil.
func NewEntry(a archive.Archive, path string) (*FileInfo, error) {
	base, err := archive.New(a, path)
	if err != nil {
		return nil, err
	}
	return &FileInfo{FileInfo: base, folderIndex: -1}, nil
}

// newResolved creates a fully populated entry. The folder index is
// stored verbatim; a cabinet that cannot address the folder passes -1.
func newResolved(a archive.Archive, path string, folderIndex, volume int, attrs archive.Attributes, modTime time.Time, size int64) *FileInfo {
	return &FileInfo{
		FileInfo:    archive.NewFull(a, path, volume, attrs, modTime, size),
		folderIndex: folderIndex,
	}
}

// FromSnapshot restores an entry from a persisted record: the base
// fields first, in their defined order, then the folder index. A
// missing or non-integer folder field is an error, never a default.
func FromSnapshot(rec *snapshot.Record) (*FileInfo, error) {
	base, err := archive.DecodeFields(rec)
	if err != nil {
		return nil, err
	}
	idx, err := rec.Int(folderIndexKey)
	if err != nil {
		return nil, err
	}
	if idx < -1 {
		return nil, fmt.Errorf("cab: snapshot folder index %d out of range", idx)
	}
	return &FileInfo{FileInfo: base, folderIndex: int(idx)}, nil
}

// Decode restores an entry from the wire form produced by Encode.
func Decode(data []byte) (*FileInfo, error) {
	rec, err := snapshot.Decode(data)
	if err != nil {
		return nil, err
	}
	return FromSnapshot(rec)
}

// Snapshot writes the entry to a new record: the base fields first,
// then the folder index under the "cabFolder" key.
func (f *FileInfo) Snapshot() *snapshot.Record {
	rec := snapshot.NewRecord()
	f.FileInfo.EncodeFields(rec)
	rec.PutInt(folderIndexKey, int64(f.folderIndex))
	return rec
}

// Encode returns the entry's snapshot in wire form.
func (f *FileInfo) Encode() ([]byte, error) {
	return f.Snapshot().Encode()
}

// FolderIndex returns the index of the folder holding this file's data.
//
// If the index is not yet known the entry refreshes from the owning
// cabinet first; a successful refresh may still report -1 when the
// cabinet itself cannot address the folder, which is a valid outcome
// and not an error. Such reads attempt another refresh next time. A
// resolved index is returned as-is with no further cabinet access.
func (f *FileInfo) FolderIndex() (int, error) {
	if f.folderIndex < 0 {
		if err := f.Refresh(); err != nil {
			return 0, err
		}
	}
	return f.folderIndex, nil
}

// Refresh re-resolves the entry's path against the owning cabinet and
// replaces every scalar field with the freshly read values, base fields
// first, then the folder index. The replacement is all-or-nothing: on
// any failure the entry is left exactly as it was. Errors from the
// cabinet propagate unchanged, with no retry.
//
// Entity variants that extend the copied field set should wrap this
// method, calling it before applying their own fields.
func (f *FileInfo) Refresh() error {
	a := f.Archive()
	if a == nil {
		return ErrNilArchive
	}
	entry, err := a.ResolveEntry(f.Path())
	if err != nil {
		return err
	}
	fresh, ok := entry.(*FileInfo)
	if !ok {
		return fmt.Errorf("cab: archive %q resolved %q to a %T, not a cabinet entry", a.Name(), f.Path(), entry)
	}
	f.FileInfo.RefreshFrom(&fresh.FileInfo)
	f.folderIndex = fresh.folderIndex
	return nil
}

// Cabinet returns the owning archive narrowed to a *Cabinet, or nil
// when the entry has no owning archive or it is not a cabinet reader.
// The reference is a back-link only; the cabinet's lifetime is governed
// by whoever opened it.
func (f *FileInfo) Cabinet() *Cabinet {
	c, _ := f.Archive().(*Cabinet)
	return c
}

// CabinetName returns the owning archive's display name, or the empty
// string when the entry has no owning archive.
func (f *FileInfo) CabinetName() string {
	if a := f.Archive(); a != nil {
		return a.Name()
	}
	return ""
}

package archive

import (
	"time"

	"github.com/jmcooper8654/wix4/snapshot"
)

// Attributes is the file attribute bitset carried by archive entries.
type Attributes uint16

// Attribute bits.
const (
	AttrReadOnly Attributes = 0x01
	AttrHidden   Attributes = 0x02
	AttrSystem   Attributes = 0x04
	AttrArchive  Attributes = 0x20
	AttrExec     Attributes = 0x40
)

// Snapshot field keys for the base entry fields, written in this order.
const (
	fieldName          = "name"
	fieldArchiveNumber = "archiveNumber"
	fieldAttributes    = "attributes"
	fieldLastWriteTime = "lastWriteTime"
	fieldLength        = "length"
)

// FileInfo is the metadata common to a file entry in any archive type.
//
// The path and the owning-archive reference are fixed at construction;
// the remaining scalar fields are replaced wholesale when an entry
// refreshes from its owning archive. The archive reference is a
// non-owning back-link: the archive's lifetime is independent of any
// entry describing it, and a FileInfo holds no resources of its own.
type FileInfo struct {
	path    string
	archive Archive

	volume     int
	attributes Attributes
	modTime    time.Time
	size       int64
}

// New creates a base entry from the path alone, for callers that will
// resolve the remaining metadata later through the owning archive.
func New(a Archive, path string) (FileInfo, error) {
	if a == nil {
		return FileInfo{}, ErrNilArchive
	}
	return FileInfo{path: path, archive: a}, nil
}

// NewFull creates a fully populated base entry. The archive reference
// may be nil for entries produced directly from a raw stream rather
// than through a container query.
func NewFull(a Archive, path string, volume int, attrs Attributes, modTime time.Time, size int64) FileInfo {
	return FileInfo{
		path:       path,
		archive:    a,
		volume:     volume,
		attributes: attrs,
		modTime:    modTime,
		size:       size,
	}
}

// Path returns the archive-internal path of the entry, exactly as
// stored in the archive, directory separators included.
func (fi *FileInfo) Path() string {
	return fi.path
}

// Archive returns the owning archive, or nil for entries produced
// directly from a raw stream.
func (fi *FileInfo) Archive() Archive {
	return fi.archive
}

// VolumeIndex returns the index, within a chained archive set, of the
// volume in which the entry's data starts.
func (fi *FileInfo) VolumeIndex() int {
	return fi.volume
}

// Attributes returns the entry's file attribute bits.
func (fi *FileInfo) Attributes() Attributes {
	return fi.attributes
}

// ModTime returns the entry's last-write timestamp.
func (fi *FileInfo) ModTime() time.Time {
	return fi.modTime
}

// Size returns the entry's uncompressed length in bytes.
func (fi *FileInfo) Size() int64 {
	return fi.size
}

// RefreshFrom copies the scalar metadata fields from a freshly resolved
// entry describing the same path. The path and the owning-archive
// reference are immutable and are not copied. Derived entities invoke
// this before applying their own fields so that the base-then-derived
// order is an explicit part of the refresh contract.
func (fi *FileInfo) RefreshFrom(fresh *FileInfo) {
	fi.volume = fresh.volume
	fi.attributes = fresh.attributes
	fi.modTime = fresh.modTime
	fi.size = fresh.size
}

// EncodeFields appends the base entry fields to rec in their defined
// order. Derived entities call this before appending their own fields.
func (fi *FileInfo) EncodeFields(rec *snapshot.Record) {
	rec.PutString(fieldName, fi.path)
	rec.PutInt(fieldArchiveNumber, int64(fi.volume))
	rec.PutUint(fieldAttributes, uint64(fi.attributes))
	rec.PutInt(fieldLastWriteTime, fi.modTime.UnixNano())
	rec.PutInt(fieldLength, fi.size)
}

// DecodeFields reads the base entry fields from rec. The owning-archive
// reference is not part of a snapshot and is left nil.
func DecodeFields(rec *snapshot.Record) (FileInfo, error) {
	name, err := rec.String(fieldName)
	if err != nil {
		return FileInfo{}, err
	}
	volume, err := rec.Int(fieldArchiveNumber)
	if err != nil {
		return FileInfo{}, err
	}
	attrs, err := rec.Uint(fieldAttributes)
	if err != nil {
		return FileInfo{}, err
	}
	lastWrite, err := rec.Int(fieldLastWriteTime)
	if err != nil {
		return FileInfo{}, err
	}
	length, err := rec.Int(fieldLength)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		path:       name,
		volume:     int(volume),
		attributes: Attributes(attrs),
		modTime:    time.Unix(0, lastWrite),
		size:       length,
	}, nil
}

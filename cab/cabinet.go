package cab

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/jmcooper8654/wix4/archive"
	"github.com/jmcooper8654/wix4/internal/mscab"
)

// Interface compliance.
var _ archive.Archive = (*Cabinet)(nil)

// Cabinet reads a cabinet archive.
//
// The header, folder table, and file table are parsed once when the
// cabinet is opened; enumeration is served from that parse. ResolveEntry
// re-reads the file table from the source so that entries refreshing
// through it observe the cabinet's current state.
type Cabinet struct {
	src  io.ReaderAt
	size int64
	name string

	header  mscab.Header
	folders []mscab.Folder
	files   []mscab.FileEntry

	resolveGroup singleflight.Group

	digestOnce sync.Once
	digest     digest.Digest
	digestErr  error

	logger *slog.Logger
	closer io.Closer
}

// Option configures a Cabinet.
type Option func(*Cabinet)

// WithName sets the cabinet's display name. Open defaults to the file's
// base name; New defaults to the empty string.
func WithName(name string) Option {
	return func(c *Cabinet) {
		c.name = name
	}
}

// WithLogger sets the logger used for read diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cabinet) {
		c.logger = logger
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Cabinet) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Open opens the cabinet file at path.
func Open(path string, opts ...Option) (*Cabinet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cab: open cabinet: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cab: stat cabinet: %w", err)
	}
	c, err := New(f, info.Size(), append([]Option{WithName(filepath.Base(path))}, opts...)...)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	return c, nil
}

// New reads a cabinet from src, which must remain available for the
// lifetime of the Cabinet and of any entry content readers it hands out.
func New(src io.ReaderAt, size int64, opts ...Option) (*Cabinet, error) {
	c := &Cabinet{src: src, size: size}
	for _, opt := range opts {
		opt(c)
	}

	r := bufio.NewReader(io.NewSectionReader(src, 0, size))
	header, err := mscab.ReadHeader(r)
	if err != nil {
		return nil, err
	}
	c.header = header

	c.folders = make([]mscab.Folder, 0, header.FolderCount)
	for i := 0; i < int(header.FolderCount); i++ {
		folder, err := mscab.ReadFolder(r, header.FolderReserve)
		if err != nil {
			return nil, err
		}
		c.folders = append(c.folders, folder)
	}

	c.files, err = c.readFileTable()
	if err != nil {
		return nil, err
	}

	c.log().Debug("opened cabinet",
		"name", c.name,
		"folders", len(c.folders),
		"files", len(c.files),
		"setID", header.SetID,
		"cabinet", header.CabinetIndex)
	return c, nil
}

// Close releases the underlying file when the cabinet was opened from
// disk. Cabinets created with New hold nothing to release.
func (c *Cabinet) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}

// readFileTable parses the file table from the source.
func (c *Cabinet) readFileTable() ([]mscab.FileEntry, error) {
	offset := int64(c.header.FilesOffset)
	r := bufio.NewReader(io.NewSectionReader(c.src, offset, c.size-offset))
	files := make([]mscab.FileEntry, 0, c.header.FileCount)
	for i := 0; i < int(c.header.FileCount); i++ {
		fe, err := mscab.ReadFileEntry(r)
		if err != nil {
			return nil, err
		}
		files = append(files, fe)
	}
	return files, nil
}

// Name returns the cabinet's display name.
func (c *Cabinet) Name() string {
	return c.name
}

// SetID returns the identifier shared by all cabinets of a chained set.
func (c *Cabinet) SetID() uint16 {
	return c.header.SetID
}

// Index returns this cabinet's zero-based position in its chained set.
func (c *Cabinet) Index() int {
	return int(c.header.CabinetIndex)
}

// Prev returns the file name of the previous cabinet in a chained set,
// or the empty string for the first or only cabinet.
func (c *Cabinet) Prev() string {
	return c.header.PrevName
}

// Next returns the file name of the next cabinet in a chained set, or
// the empty string for the last or only cabinet.
func (c *Cabinet) Next() string {
	return c.header.NextName
}

// FolderCount returns the number of folders in this cabinet.
func (c *Cabinet) FolderCount() int {
	return len(c.folders)
}

// Len returns the number of file entries in this cabinet.
func (c *Cabinet) Len() int {
	return len(c.files)
}

// Digest returns the sha256 digest of the cabinet's content, computed
// on first use.
func (c *Cabinet) Digest() (digest.Digest, error) {
	c.digestOnce.Do(func() {
		c.digest, c.digestErr = digest.Canonical.FromReader(io.NewSectionReader(c.src, 0, c.size))
		if c.digestErr != nil {
			c.digestErr = fmt.Errorf("cab: digest cabinet: %w", c.digestErr)
		}
	})
	return c.digest, c.digestErr
}

// Entries returns fully populated entries for every file in the
// cabinet, in file-table order.
func (c *Cabinet) Entries() iter.Seq[*FileInfo] {
	return func(yield func(*FileInfo) bool) {
		for _, fe := range c.files {
			if !yield(c.entryFromRecord(fe)) {
				return
			}
		}
	}
}

// ResolveEntry re-reads the file table and returns a fresh, fully
// populated entry for path. Concurrent resolutions share one file-table
// read, but every caller gets its own entry instance. Returns
// ErrNotFound when the cabinet's current state has no entry at path.
func (c *Cabinet) ResolveEntry(path string) (archive.Entry, error) {
	v, err, _ := c.resolveGroup.Do("fileTable", func() (any, error) {
		return c.readFileTable()
	})
	if err != nil {
		return nil, err
	}
	for _, fe := range v.([]mscab.FileEntry) {
		if fe.Name == path {
			return c.entryFromRecord(fe), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// entryFromRecord builds an entry from a file-table record, mapping the
// continued-folder sentinels into this cabinet's folder numbering. The
// name-encoding attribute bit is a wire detail and is masked off.
func (c *Cabinet) entryFromRecord(fe mscab.FileEntry) *FileInfo {
	attrs := archive.Attributes(fe.Attributes &^ mscab.AttrNameUTF)
	return newResolved(c,
		fe.Name,
		folderIndexOf(fe.FolderIndex, len(c.folders)),
		int(c.header.CabinetIndex),
		attrs,
		mscab.TimeFromDOS(fe.Date, fe.Time),
		int64(fe.Size))
}

// folderIndexOf maps a raw file-record folder number to an index in
// this cabinet. Data starting in a previous cabinet has no addressable
// folder here, which resolves to -1; data continuing into the next
// cabinet starts in this cabinet's last folder.
func folderIndexOf(raw uint16, folderCount int) int {
	switch raw {
	case mscab.FolderContinuedFromPrev, mscab.FolderContinuedPrevAndNext:
		return -1
	case mscab.FolderContinuedToNext:
		return folderCount - 1
	default:
		return int(raw)
	}
}

package cab

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcooper8654/wix4/archive"
	"github.com/jmcooper8654/wix4/snapshot"
)

// fakeArchive scripts ResolveEntry and counts how often it is asked.
type fakeArchive struct {
	name    string
	resolve func(path string) (archive.Entry, error)
	calls   int
}

func (f *fakeArchive) ResolveEntry(path string) (archive.Entry, error) {
	f.calls++
	return f.resolve(path)
}

func (f *fakeArchive) Name() string { return f.name }

// bareEntry satisfies archive.Entry without being a cabinet entry.
type bareEntry struct{ path string }

func (b bareEntry) Path() string { return b.path }

// resolveTo returns a resolve func handing out a fresh entry with the
// given folder index and fixed metadata.
func resolveTo(folder int) func(path string) (archive.Entry, error) {
	mod := time.Date(2023, time.April, 5, 12, 0, 0, 0, time.Local)
	return func(path string) (archive.Entry, error) {
		return newResolved(nil, path, folder, 1, archive.AttrArchive, mod, 42), nil
	}
}

func TestNewEntryRequiresArchive(t *testing.T) {
	t.Parallel()

	_, err := NewEntry(nil, `a.txt`)
	assert.ErrorIs(t, err, ErrNilArchive)
}

func TestFolderIndexLazyResolve(t *testing.T) {
	t.Parallel()

	fa := &fakeArchive{name: "test.cab", resolve: resolveTo(0)}
	fi, err := NewEntry(fa, `docs\readme.txt`)
	require.NoError(t, err)
	require.Equal(t, 0, fa.calls, "construction must not resolve")

	idx, err := fi.FolderIndex()
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, fa.calls, "first read resolves exactly once")

	// Refresh is destructive: every scalar field was replaced.
	assert.Equal(t, int64(42), fi.Size())
	assert.Equal(t, 1, fi.VolumeIndex())
	assert.Equal(t, archive.AttrArchive, fi.Attributes())

	idx, err = fi.FolderIndex()
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, fa.calls, "resolved value is cached")
}

func TestFolderIndexDirectConstruction(t *testing.T) {
	t.Parallel()

	fa := &fakeArchive{name: "test.cab", resolve: resolveTo(0)}
	fi := newResolved(fa, `docs\readme.txt`, 2, 0, archive.AttrReadOnly, time.Now(), 10)

	idx, err := fi.FolderIndex()
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 0, fa.calls, "a known index never resolves")
}

func TestFolderIndexUnknownAfterRefresh(t *testing.T) {
	t.Parallel()

	fa := &fakeArchive{name: "test.cab", resolve: resolveTo(-1)}
	fi, err := NewEntry(fa, `spanned.bin`)
	require.NoError(t, err)

	// The cabinet itself reports the folder as unknown. That is a
	// successful refresh, not an error.
	idx, err := fi.FolderIndex()
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
	assert.Equal(t, 1, fa.calls)

	// Still unresolved, so the next read asks again.
	_, err = fi.FolderIndex()
	require.NoError(t, err)
	assert.Equal(t, 2, fa.calls)
}

func TestRefreshFailureLeavesEntryUnchanged(t *testing.T) {
	t.Parallel()

	ioErr := errors.New("read failed")
	tests := []struct {
		name string
		err  error
	}{
		{name: "not found", err: ErrNotFound},
		{name: "io failure", err: ioErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fa := &fakeArchive{
				name:    "test.cab",
				resolve: func(string) (archive.Entry, error) { return nil, tt.err },
			}
			mod := time.Date(2020, time.January, 2, 3, 4, 6, 0, time.Local)
			fi := newResolved(fa, `a.txt`, -1, 7, archive.AttrHidden, mod, 123)

			_, err := fi.FolderIndex()
			assert.ErrorIs(t, err, tt.err, "failure propagates unchanged")

			// No partial replacement on failure.
			assert.Equal(t, -1, fi.folderIndex)
			assert.Equal(t, 7, fi.VolumeIndex())
			assert.Equal(t, archive.AttrHidden, fi.Attributes())
			assert.True(t, fi.ModTime().Equal(mod))
			assert.Equal(t, int64(123), fi.Size())
		})
	}
}

func TestRefreshOverwritesResolvedValue(t *testing.T) {
	t.Parallel()

	fa := &fakeArchive{name: "test.cab", resolve: resolveTo(3)}
	fi := newResolved(fa, `a.txt`, 1, 0, archive.AttrReadOnly, time.Now(), 10)

	require.NoError(t, fi.Refresh())
	idx, err := fi.FolderIndex()
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, int64(42), fi.Size())
	assert.Equal(t, 1, fa.calls, "explicit refresh resolves once")
}

func TestRefreshRejectsForeignEntry(t *testing.T) {
	t.Parallel()

	fa := &fakeArchive{
		name:    "test.cab",
		resolve: func(path string) (archive.Entry, error) { return bareEntry{path: path}, nil },
	}
	fi, err := NewEntry(fa, `a.txt`)
	require.NoError(t, err)

	err = fi.Refresh()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a cabinet entry")
}

func TestRefreshWithoutArchive(t *testing.T) {
	t.Parallel()

	fi := newResolved(nil, `raw.txt`, -1, 0, 0, time.Now(), 0)
	assert.ErrorIs(t, fi.Refresh(), ErrNilArchive)
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	fa := &fakeArchive{name: "test.cab", resolve: resolveTo(0)}
	mod := time.Date(2022, time.November, 11, 9, 30, 2, 0, time.Local)
	fi := newResolved(fa, `docs\readme.txt`, 5, 2, archive.AttrReadOnly|archive.AttrArchive, mod, 4096)

	data, err := fi.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, `docs\readme.txt`, got.Path())
	assert.Equal(t, 2, got.VolumeIndex())
	assert.Equal(t, archive.AttrReadOnly|archive.AttrArchive, got.Attributes())
	assert.True(t, got.ModTime().Equal(mod))
	assert.Equal(t, int64(4096), got.Size())
	assert.Equal(t, 5, got.folderIndex)
	assert.Nil(t, got.Archive(), "archive identity does not round-trip")
}

func TestSnapshotFieldLayout(t *testing.T) {
	t.Parallel()

	fi := newResolved(nil, `a.txt`, 1, 0, 0, time.Now(), 0)
	rec := fi.Snapshot()
	assert.Equal(t,
		[]string{"name", "archiveNumber", "attributes", "lastWriteTime", "length", "cabFolder"},
		rec.Keys(),
		"base fields first, folder index last")
}

func TestFromSnapshotBadFolderField(t *testing.T) {
	t.Parallel()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		fi := newResolved(nil, `a.txt`, 5, 0, 0, time.Now(), 0)
		rec := snapshot.NewRecord()
		fi.FileInfo.EncodeFields(rec)

		_, err := FromSnapshot(rec)
		assert.ErrorIs(t, err, snapshot.ErrMissingField)
	})

	t.Run("not an integer", func(t *testing.T) {
		t.Parallel()
		fi := newResolved(nil, `a.txt`, 5, 0, 0, time.Now(), 0)
		rec := snapshot.NewRecord()
		fi.FileInfo.EncodeFields(rec)
		rec.PutString("cabFolder", "five")

		_, err := FromSnapshot(rec)
		assert.ErrorIs(t, err, snapshot.ErrFieldType, "corruption must not default to -1")
	})

	t.Run("below sentinel", func(t *testing.T) {
		t.Parallel()
		fi := newResolved(nil, `a.txt`, 5, 0, 0, time.Now(), 0)
		rec := snapshot.NewRecord()
		fi.FileInfo.EncodeFields(rec)
		rec.PutInt("cabFolder", -2)

		_, err := FromSnapshot(rec)
		assert.Error(t, err)
	})
}

func TestDelegationProperties(t *testing.T) {
	t.Parallel()

	fa := &fakeArchive{name: "media1.cab", resolve: resolveTo(0)}
	fi, err := NewEntry(fa, `a.txt`)
	require.NoError(t, err)

	assert.Equal(t, "media1.cab", fi.CabinetName())
	assert.Nil(t, fi.Cabinet(), "fake archive is not a cabinet reader")

	raw := newResolved(nil, `raw.txt`, 0, 0, 0, time.Now(), 0)
	assert.Empty(t, raw.CabinetName())
}

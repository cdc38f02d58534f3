package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcooper8654/wix4/snapshot"
)

// stubArchive is a minimal Archive for construction tests.
type stubArchive struct{ name string }

func (s *stubArchive) ResolveEntry(path string) (Entry, error) { return nil, ErrNotFound }
func (s *stubArchive) Name() string                            { return s.name }

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil archive", func(t *testing.T) {
		t.Parallel()
		_, err := New(nil, `a.txt`)
		assert.ErrorIs(t, err, ErrNilArchive)
	})

	t.Run("path and archive stored", func(t *testing.T) {
		t.Parallel()
		a := &stubArchive{name: "test.cab"}
		fi, err := New(a, `docs\readme.txt`)
		require.NoError(t, err)
		assert.Equal(t, `docs\readme.txt`, fi.Path())
		assert.Same(t, a, fi.Archive().(*stubArchive))
		assert.Zero(t, fi.Size())
	})
}

func TestNewFull(t *testing.T) {
	t.Parallel()

	mod := time.Date(2021, time.May, 4, 10, 30, 0, 0, time.Local)
	fi := NewFull(nil, `bin\setup.exe`, 1, AttrReadOnly|AttrArchive, mod, 2048)

	assert.Equal(t, `bin\setup.exe`, fi.Path())
	assert.Nil(t, fi.Archive())
	assert.Equal(t, 1, fi.VolumeIndex())
	assert.Equal(t, AttrReadOnly|AttrArchive, fi.Attributes())
	assert.True(t, fi.ModTime().Equal(mod))
	assert.Equal(t, int64(2048), fi.Size())
}

func TestRefreshFrom(t *testing.T) {
	t.Parallel()

	a := &stubArchive{name: "test.cab"}
	fi, err := New(a, `a.txt`)
	require.NoError(t, err)

	mod := time.Date(2022, time.July, 1, 8, 0, 0, 0, time.Local)
	fresh := NewFull(nil, `a.txt`, 3, AttrSystem, mod, 99)
	fi.RefreshFrom(&fresh)

	// Scalar fields replaced, identity untouched.
	assert.Equal(t, 3, fi.VolumeIndex())
	assert.Equal(t, AttrSystem, fi.Attributes())
	assert.True(t, fi.ModTime().Equal(mod))
	assert.Equal(t, int64(99), fi.Size())
	assert.Equal(t, `a.txt`, fi.Path())
	assert.Same(t, a, fi.Archive().(*stubArchive))
}

func TestFieldsRoundTrip(t *testing.T) {
	t.Parallel()

	mod := time.Date(2020, time.December, 24, 18, 0, 2, 0, time.Local)
	fi := NewFull(&stubArchive{}, `docs\readme.txt`, 2, AttrHidden, mod, 777)

	rec := snapshot.NewRecord()
	fi.EncodeFields(rec)
	assert.Equal(t, []string{"name", "archiveNumber", "attributes", "lastWriteTime", "length"}, rec.Keys())

	got, err := DecodeFields(rec)
	require.NoError(t, err)
	assert.Equal(t, fi.Path(), got.Path())
	assert.Equal(t, fi.VolumeIndex(), got.VolumeIndex())
	assert.Equal(t, fi.Attributes(), got.Attributes())
	assert.True(t, got.ModTime().Equal(fi.ModTime()))
	assert.Equal(t, fi.Size(), got.Size())
	assert.Nil(t, got.Archive(), "archive identity does not round-trip")
}

func TestDecodeFieldsMissing(t *testing.T) {
	t.Parallel()

	rec := snapshot.NewRecord()
	rec.PutString("name", "a.txt")
	_, err := DecodeFields(rec)
	assert.ErrorIs(t, err, snapshot.ErrMissingField)
}

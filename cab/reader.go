package cab

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/jmcooper8654/wix4/internal/mscab"
)

// OpenEntry returns a reader over the uncompressed content of the entry
// at path, using the file table parsed at open time. Entries whose data
// spans cabinet volumes cannot be read from this cabinet alone and fail
// with ErrEntrySpansCabinets.
func (c *Cabinet) OpenEntry(path string) (io.Reader, error) {
	for _, fe := range c.files {
		if fe.Name != path {
			continue
		}
		switch fe.FolderIndex {
		case mscab.FolderContinuedFromPrev, mscab.FolderContinuedToNext, mscab.FolderContinuedPrevAndNext:
			return nil, fmt.Errorf("%w: %s", ErrEntrySpansCabinets, path)
		}
		if int(fe.FolderIndex) >= len(c.folders) {
			return nil, fmt.Errorf("cab: entry %q names folder %d of %d", path, fe.FolderIndex, len(c.folders))
		}
		fr, err := c.openFolder(c.folders[fe.FolderIndex])
		if err != nil {
			return nil, err
		}
		if _, err := io.CopyN(io.Discard, fr, int64(fe.FolderOffset)); err != nil {
			return nil, fmt.Errorf("cab: seek to entry %q: %w", path, err)
		}
		return io.LimitReader(fr, int64(fe.Size)), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// openFolder returns a reader over a folder's uncompressed data stream.
func (c *Cabinet) openFolder(f mscab.Folder) (io.Reader, error) {
	comp := f.Compression()
	switch comp {
	case mscab.CompNone, mscab.CompMSZIP:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, comp)
	}
	return &folderReader{
		cab:        c,
		comp:       comp,
		offset:     int64(f.DataOffset),
		blocksLeft: int(f.BlockCount),
	}, nil
}

// folderReader decompresses a folder's data blocks one at a time.
// MSZIP blocks share a history window: each block's deflate stream may
// reference the previous block's uncompressed bytes as its dictionary.
type folderReader struct {
	cab        *Cabinet
	comp       mscab.Compression
	offset     int64
	blocksLeft int

	buf     []byte
	pos     int
	history []byte
}

func (r *folderReader) Read(p []byte) (int, error) {
	for r.pos >= len(r.buf) {
		if r.blocksLeft == 0 {
			return 0, io.EOF
		}
		if err := r.nextBlock(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf[r.pos:])
	r.pos += n
	return n, nil
}

func (r *folderReader) nextBlock() error {
	reserve := r.cab.header.DataReserve
	sr := io.NewSectionReader(r.cab.src, r.offset, r.cab.size-r.offset)
	dh, err := mscab.ReadDataHeader(sr, reserve)
	if err != nil {
		return err
	}
	payload := make([]byte, dh.CompressedSize)
	if _, err := io.ReadFull(sr, payload); err != nil {
		return fmt.Errorf("mscab: read data block payload: %w", err)
	}
	r.offset += int64(mscab.DataHeaderSize) + int64(reserve) + int64(dh.CompressedSize)
	r.blocksLeft--

	// A zero checksum means the creator did not compute one.
	if dh.Checksum != 0 && mscab.DataChecksum(payload, dh.Reserve, dh.CompressedSize, dh.UncompressedSize) != dh.Checksum {
		return ErrDataChecksum
	}

	switch r.comp {
	case mscab.CompNone:
		r.buf = payload
	case mscab.CompMSZIP:
		if len(payload) < len(mscab.MSZIPSignature) || string(payload[:2]) != mscab.MSZIPSignature {
			return fmt.Errorf("cab: data block missing %s signature", mscab.MSZIPSignature)
		}
		fr := flate.NewReaderDict(bytes.NewReader(payload[2:]), r.history)
		out := make([]byte, dh.UncompressedSize)
		if _, err := io.ReadFull(fr, out); err != nil {
			fr.Close()
			return fmt.Errorf("cab: decompress data block: %w", err)
		}
		fr.Close()
		r.buf = out
		r.history = out
	}
	r.pos = 0
	return nil
}

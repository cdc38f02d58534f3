package cab

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"golang.org/x/sync/errgroup"

	"github.com/jmcooper8654/wix4/archive"
	"github.com/jmcooper8654/wix4/internal/mscab"
)

// File describes one file to store when creating a cabinet.
type File struct {
	// Path is the cabinet-internal name, backslash separators included.
	Path string

	// Data is the uncompressed content.
	Data []byte

	// ModTime is the last-write timestamp, stored at two-second
	// resolution in local time. The zero value stores the DOS epoch.
	ModTime time.Time

	// Attributes are the file attribute bits to record.
	Attributes archive.Attributes
}

// compressedBlock is one data block ready to be written.
type compressedBlock struct {
	payload          []byte
	uncompressedSize uint16
}

// compressedFolder is one folder's data blocks after compression.
type compressedFolder struct {
	files  []File
	blocks []compressedBlock
}

// Create writes a single-volume cabinet containing files to w.
//
// Files are grouped into folders (see CreateWithFilesPerFolder) and
// each folder's data is compressed independently, so folders compress
// in parallel.
func Create(w io.Writer, files []File, opts ...CreateOption) error {
	cfg := createConfig{compression: CompressionMSZIP}
	for _, opt := range opts {
		opt(&cfg)
	}
	switch cfg.compression {
	case CompressionNone, CompressionMSZIP:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedCompression, cfg.compression)
	}

	if len(files) > math.MaxUint16 {
		return fmt.Errorf("%w: %d", ErrTooManyFiles, len(files))
	}
	for _, f := range files {
		if f.Path == "" {
			return fmt.Errorf("cab: file with empty path")
		}
		if int64(len(f.Data)) > math.MaxUint32 {
			return fmt.Errorf("%w: file %q is %d bytes", ErrSizeOverflow, f.Path, len(f.Data))
		}
	}

	folders, err := compressFolders(files, &cfg)
	if err != nil {
		return err
	}
	return writeCabinet(w, folders, len(files), &cfg)
}

// Save writes a cabinet to path atomically, using a temp file in the
// target directory and renaming it into place.
func Save(path string, files []File, opts ...CreateOption) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("cab: create cabinet directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cab-*")
	if err != nil {
		return fmt.Errorf("cab: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := Create(tmp, files, opts...); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cab: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cab: rename cabinet into place: %w", err)
	}
	return nil
}

// compressFolders groups files into folders and compresses each
// folder's concatenated data into blocks, folders in parallel.
func compressFolders(files []File, cfg *createConfig) ([]compressedFolder, error) {
	perFolder := cfg.filesPerFolder
	if perFolder <= 0 {
		perFolder = len(files)
	}

	var folders []compressedFolder
	for start := 0; start < len(files); start += perFolder {
		end := min(start+perFolder, len(files))
		folders = append(folders, compressedFolder{files: files[start:end]})
	}
	if len(folders) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d folders", ErrSizeOverflow, len(folders))
	}

	var g errgroup.Group
	for i := range folders {
		g.Go(func() error {
			folder := &folders[i]
			var total int64
			for _, f := range folder.files {
				total += int64(len(f.Data))
			}
			if total > math.MaxUint32 {
				return fmt.Errorf("%w: folder %d holds %d bytes", ErrSizeOverflow, i, total)
			}
			blocks, err := compressFolderData(folder.files, cfg.compression)
			if err != nil {
				return fmt.Errorf("cab: compress folder %d: %w", i, err)
			}
			folder.blocks = blocks
			cfg.log().Debug("compressed folder",
				"folder", i,
				"files", len(folder.files),
				"blocks", len(blocks),
				"bytes", total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return folders, nil
}

// compressFolderData turns the folder's concatenated file data into
// data-block payloads. MSZIP blocks chain their deflate dictionary to
// the previous block's uncompressed bytes.
func compressFolderData(files []File, comp Compression) ([]compressedBlock, error) {
	var data []byte
	for _, f := range files {
		data = append(data, f.Data...)
	}

	var blocks []compressedBlock
	var dict []byte
	for len(data) > 0 {
		chunk := data[:min(mscab.MaxBlockSize, len(data))]
		data = data[len(chunk):]

		var payload []byte
		switch comp {
		case CompressionNone:
			payload = chunk
		case CompressionMSZIP:
			var buf bytes.Buffer
			buf.WriteString(mscab.MSZIPSignature)
			fw, err := flate.NewWriterDict(&buf, flate.DefaultCompression, dict)
			if err != nil {
				return nil, err
			}
			if _, err := fw.Write(chunk); err != nil {
				return nil, err
			}
			if err := fw.Close(); err != nil {
				return nil, err
			}
			payload = buf.Bytes()
			dict = chunk
		}
		if len(payload) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: block payload is %d bytes", ErrSizeOverflow, len(payload))
		}
		blocks = append(blocks, compressedBlock{
			payload:          payload,
			uncompressedSize: uint16(len(chunk)),
		})
	}
	return blocks, nil
}

// writeCabinet lays out and writes the header, folder table, file
// table, and data sections.
func writeCabinet(w io.Writer, folders []compressedFolder, fileCount int, cfg *createConfig) error {
	fileRecords := make([]mscab.FileEntry, 0, fileCount)
	fileTableSize := 0
	for i, folder := range folders {
		var offset uint32
		for _, f := range folder.files {
			date, tim := mscab.DOSDateTime(f.ModTime)
			attrs := uint16(f.Attributes)
			if !isASCII(f.Path) {
				attrs |= mscab.AttrNameUTF
			}
			fe := mscab.FileEntry{
				Size:         uint32(len(f.Data)),
				FolderOffset: offset,
				FolderIndex:  uint16(i),
				Date:         date,
				Time:         tim,
				Attributes:   attrs,
				Name:         f.Path,
			}
			fileRecords = append(fileRecords, fe)
			fileTableSize += fe.MarshaledSize()
			offset += uint32(len(f.Data))
		}
	}

	filesOffset := mscab.HeaderSize + len(folders)*mscab.FolderSize
	dataOffset := int64(filesOffset + fileTableSize)

	folderRecords := make([]mscab.Folder, len(folders))
	for i, folder := range folders {
		folderRecords[i] = mscab.Folder{
			DataOffset:   uint32(dataOffset),
			BlockCount:   uint16(len(folder.blocks)),
			TypeCompress: uint16(cfg.compression),
		}
		for _, b := range folder.blocks {
			dataOffset += int64(mscab.DataHeaderSize) + int64(len(b.payload))
		}
	}
	if dataOffset > math.MaxUint32 {
		return fmt.Errorf("%w: cabinet is %d bytes", ErrSizeOverflow, dataOffset)
	}

	header := mscab.Header{
		CabinetSize:  uint32(dataOffset),
		FilesOffset:  uint32(filesOffset),
		VersionMinor: mscab.VersionMinor,
		VersionMajor: mscab.VersionMajor,
		FolderCount:  uint16(len(folders)),
		FileCount:    uint16(fileCount),
		SetID:        cfg.setID,
		CabinetIndex: cfg.cabinetIndex,
	}

	if _, err := w.Write(header.Marshal()); err != nil {
		return fmt.Errorf("cab: write header: %w", err)
	}
	for _, fr := range folderRecords {
		if _, err := w.Write(fr.Marshal()); err != nil {
			return fmt.Errorf("cab: write folder table: %w", err)
		}
	}
	for _, fe := range fileRecords {
		if _, err := w.Write(fe.Marshal()); err != nil {
			return fmt.Errorf("cab: write file table: %w", err)
		}
	}
	for _, folder := range folders {
		for _, b := range folder.blocks {
			dh := mscab.DataHeader{
				Checksum:         mscab.DataChecksum(b.payload, nil, uint16(len(b.payload)), b.uncompressedSize),
				CompressedSize:   uint16(len(b.payload)),
				UncompressedSize: b.uncompressedSize,
			}
			if _, err := w.Write(dh.Marshal()); err != nil {
				return fmt.Errorf("cab: write data block header: %w", err)
			}
			if _, err := w.Write(b.payload); err != nil {
				return fmt.Errorf("cab: write data block: %w", err)
			}
		}
	}
	return nil
}

// isASCII reports whether s can be stored without the UTF name bit.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

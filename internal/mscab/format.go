// Package mscab implements the on-disk layout of cabinet files: the
// header, folder, file, and data-block structures, their checksums, and
// the DOS timestamp encoding used by file records.
//
// The package only frames bytes. Interpreting folder numbering, chained
// volume sets, and compressed folder contents is left to callers.
package mscab

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Signature is the four magic bytes at the start of every cabinet.
const Signature = "MSCF"

// Current format version.
const (
	VersionMajor = 1
	VersionMinor = 3
)

// Structure sizes for the fixed portions of each record.
const (
	HeaderSize     = 36
	FolderSize     = 8
	FileFixedSize  = 16
	DataHeaderSize = 8
)

// Header flag bits.
const (
	FlagPrevCabinet    = 0x0001
	FlagNextCabinet    = 0x0002
	FlagReservePresent = 0x0004
)

// Compression identifies the codec used for a folder's data blocks.
type Compression uint16

// Compression type codes, stored in the low nibble of a folder's
// typeCompress field.
const (
	CompNone    Compression = 0
	CompMSZIP   Compression = 1
	CompQuantum Compression = 2
	CompLZX     Compression = 3
)

// String returns the conventional name for the compression code.
func (c Compression) String() string {
	switch c {
	case CompNone:
		return "none"
	case CompMSZIP:
		return "mszip"
	case CompQuantum:
		return "quantum"
	case CompLZX:
		return "lzx"
	default:
		return fmt.Sprintf("compression(%d)", uint16(c))
	}
}

// Folder-number sentinels in a file record. An entry carrying one of
// these continues across cabinet volumes rather than naming a folder in
// this cabinet.
const (
	FolderContinuedFromPrev    = 0xFFFD
	FolderContinuedToNext      = 0xFFFE
	FolderContinuedPrevAndNext = 0xFFFF
)

// File attribute bits.
const (
	AttrReadOnly = 0x01
	AttrHidden   = 0x02
	AttrSystem   = 0x04
	AttrArchive  = 0x20
	AttrExec     = 0x40
	AttrNameUTF  = 0x80
)

// MSZIP framing.
const (
	MSZIPSignature = "CK"

	// MaxBlockSize is the largest uncompressed payload of one data block.
	MaxBlockSize = 32768
)

// ErrBadSignature is returned when the cabinet magic bytes are wrong.
var ErrBadSignature = errors.New("mscab: bad cabinet signature")

// Header is the cabinet file header, including the optional reserve
// sizes and chained-volume names controlled by its flag bits.
type Header struct {
	CabinetSize  uint32
	FilesOffset  uint32
	VersionMinor uint8
	VersionMajor uint8
	FolderCount  uint16
	FileCount    uint16
	Flags        uint16
	SetID        uint16
	CabinetIndex uint16

	// Populated when FlagReservePresent is set.
	HeaderReserve uint16
	FolderReserve uint8
	DataReserve   uint8

	// Populated when FlagPrevCabinet / FlagNextCabinet are set.
	PrevName string
	PrevDisk string
	NextName string
	NextDisk string
}

// ReadHeader parses the cabinet header, consuming the fixed part plus
// any reserve area and chained-volume names its flags declare.
func ReadHeader(r *bufio.Reader) (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, fmt.Errorf("mscab: read header: %w", err)
	}
	if string(b[0:4]) != Signature {
		return Header{}, ErrBadSignature
	}
	h := Header{
		CabinetSize:  binary.LittleEndian.Uint32(b[8:12]),
		FilesOffset:  binary.LittleEndian.Uint32(b[16:20]),
		VersionMinor: b[24],
		VersionMajor: b[25],
		FolderCount:  binary.LittleEndian.Uint16(b[26:28]),
		FileCount:    binary.LittleEndian.Uint16(b[28:30]),
		Flags:        binary.LittleEndian.Uint16(b[30:32]),
		SetID:        binary.LittleEndian.Uint16(b[32:34]),
		CabinetIndex: binary.LittleEndian.Uint16(b[34:36]),
	}
	if h.VersionMajor != VersionMajor {
		return Header{}, fmt.Errorf("mscab: unsupported cabinet version %d.%d", h.VersionMajor, h.VersionMinor)
	}
	if h.Flags&FlagReservePresent != 0 {
		var rb [4]byte
		if _, err := io.ReadFull(r, rb[:]); err != nil {
			return Header{}, fmt.Errorf("mscab: read reserve sizes: %w", err)
		}
		h.HeaderReserve = binary.LittleEndian.Uint16(rb[0:2])
		h.FolderReserve = rb[2]
		h.DataReserve = rb[3]
		if h.HeaderReserve > 0 {
			if _, err := r.Discard(int(h.HeaderReserve)); err != nil {
				return Header{}, fmt.Errorf("mscab: skip header reserve: %w", err)
			}
		}
	}
	var err error
	if h.Flags&FlagPrevCabinet != 0 {
		if h.PrevName, err = readCString(r); err != nil {
			return Header{}, fmt.Errorf("mscab: read previous cabinet name: %w", err)
		}
		if h.PrevDisk, err = readCString(r); err != nil {
			return Header{}, fmt.Errorf("mscab: read previous disk name: %w", err)
		}
	}
	if h.Flags&FlagNextCabinet != 0 {
		if h.NextName, err = readCString(r); err != nil {
			return Header{}, fmt.Errorf("mscab: read next cabinet name: %w", err)
		}
		if h.NextDisk, err = readCString(r); err != nil {
			return Header{}, fmt.Errorf("mscab: read next disk name: %w", err)
		}
	}
	return h, nil
}

// Marshal encodes the fixed header part. Reserve areas and
// chained-volume names are not written; the writer here produces
// single-volume cabinets without reserve data.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:4], Signature)
	binary.LittleEndian.PutUint32(b[8:12], h.CabinetSize)
	binary.LittleEndian.PutUint32(b[16:20], h.FilesOffset)
	b[24] = h.VersionMinor
	b[25] = h.VersionMajor
	binary.LittleEndian.PutUint16(b[26:28], h.FolderCount)
	binary.LittleEndian.PutUint16(b[28:30], h.FileCount)
	binary.LittleEndian.PutUint16(b[30:32], h.Flags)
	binary.LittleEndian.PutUint16(b[32:34], h.SetID)
	binary.LittleEndian.PutUint16(b[34:36], h.CabinetIndex)
	return b
}

// Folder is one folder table record.
type Folder struct {
	DataOffset   uint32
	BlockCount   uint16
	TypeCompress uint16
}

// Compression returns the codec code from the typeCompress field.
func (f Folder) Compression() Compression {
	return Compression(f.TypeCompress & 0x000F)
}

// ReadFolder parses one folder record, skipping the per-folder reserve
// area when the header declared one.
func ReadFolder(r *bufio.Reader, reserve uint8) (Folder, error) {
	var b [FolderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Folder{}, fmt.Errorf("mscab: read folder: %w", err)
	}
	f := Folder{
		DataOffset:   binary.LittleEndian.Uint32(b[0:4]),
		BlockCount:   binary.LittleEndian.Uint16(b[4:6]),
		TypeCompress: binary.LittleEndian.Uint16(b[6:8]),
	}
	if reserve > 0 {
		if _, err := r.Discard(int(reserve)); err != nil {
			return Folder{}, fmt.Errorf("mscab: skip folder reserve: %w", err)
		}
	}
	return f, nil
}

// Marshal encodes one folder record.
func (f Folder) Marshal() []byte {
	b := make([]byte, FolderSize)
	binary.LittleEndian.PutUint32(b[0:4], f.DataOffset)
	binary.LittleEndian.PutUint16(b[4:6], f.BlockCount)
	binary.LittleEndian.PutUint16(b[6:8], f.TypeCompress)
	return b
}

// FileEntry is one file table record.
type FileEntry struct {
	Size         uint32
	FolderOffset uint32
	FolderIndex  uint16
	Date         uint16
	Time         uint16
	Attributes   uint16
	Name         string
}

// ReadFileEntry parses one file record including its trailing
// NUL-terminated name.
func ReadFileEntry(r *bufio.Reader) (FileEntry, error) {
	var b [FileFixedSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return FileEntry{}, fmt.Errorf("mscab: read file record: %w", err)
	}
	name, err := readCString(r)
	if err != nil {
		return FileEntry{}, fmt.Errorf("mscab: read file name: %w", err)
	}
	return FileEntry{
		Size:         binary.LittleEndian.Uint32(b[0:4]),
		FolderOffset: binary.LittleEndian.Uint32(b[4:8]),
		FolderIndex:  binary.LittleEndian.Uint16(b[8:10]),
		Date:         binary.LittleEndian.Uint16(b[10:12]),
		Time:         binary.LittleEndian.Uint16(b[12:14]),
		Attributes:   binary.LittleEndian.Uint16(b[14:16]),
		Name:         name,
	}, nil
}

// Marshal encodes one file record including the NUL-terminated name.
func (fe FileEntry) Marshal() []byte {
	b := make([]byte, FileFixedSize, FileFixedSize+len(fe.Name)+1)
	binary.LittleEndian.PutUint32(b[0:4], fe.Size)
	binary.LittleEndian.PutUint32(b[4:8], fe.FolderOffset)
	binary.LittleEndian.PutUint16(b[8:10], fe.FolderIndex)
	binary.LittleEndian.PutUint16(b[10:12], fe.Date)
	binary.LittleEndian.PutUint16(b[12:14], fe.Time)
	binary.LittleEndian.PutUint16(b[14:16], fe.Attributes)
	b = append(b, fe.Name...)
	return append(b, 0)
}

// MarshaledSize returns the encoded length of the record.
func (fe FileEntry) MarshaledSize() int {
	return FileFixedSize + len(fe.Name) + 1
}

// DataHeader is the fixed header of one data block, plus the per-block
// reserve bytes when the cabinet header declared a data reserve.
type DataHeader struct {
	Checksum         uint32
	CompressedSize   uint16
	UncompressedSize uint16
	Reserve          []byte
}

// ReadDataHeader parses one data-block header, retaining the per-block
// reserve area when the header declared one: the reserve bytes are part
// of the checksummed region.
func ReadDataHeader(r io.Reader, reserve uint8) (DataHeader, error) {
	b := make([]byte, DataHeaderSize+int(reserve))
	if _, err := io.ReadFull(r, b); err != nil {
		return DataHeader{}, fmt.Errorf("mscab: read data block header: %w", err)
	}
	dh := DataHeader{
		Checksum:         binary.LittleEndian.Uint32(b[0:4]),
		CompressedSize:   binary.LittleEndian.Uint16(b[4:6]),
		UncompressedSize: binary.LittleEndian.Uint16(b[6:8]),
	}
	if reserve > 0 {
		dh.Reserve = b[DataHeaderSize:]
	}
	return dh, nil
}

// Marshal encodes one data-block header.
func (dh DataHeader) Marshal() []byte {
	b := make([]byte, DataHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], dh.Checksum)
	binary.LittleEndian.PutUint16(b[4:6], dh.CompressedSize)
	binary.LittleEndian.PutUint16(b[6:8], dh.UncompressedSize)
	return b
}

// readCString reads bytes up to and excluding a NUL terminator.
func readCString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

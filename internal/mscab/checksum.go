package mscab

import "encoding/binary"

// Checksum folds data into seed four bytes at a time, little-endian,
// with trailing bytes packed high-to-low. This is the cabinet CSUM
// algorithm; data-block checksums chain it over the block's size fields
// and payload.
func Checksum(data []byte, seed uint32) uint32 {
	csum := seed
	for len(data) >= 4 {
		csum ^= binary.LittleEndian.Uint32(data[:4])
		data = data[4:]
	}
	var ul uint32
	switch len(data) {
	case 3:
		ul |= uint32(data[0]) << 16
		ul |= uint32(data[1]) << 8
		ul |= uint32(data[2])
	case 2:
		ul |= uint32(data[0]) << 8
		ul |= uint32(data[1])
	case 1:
		ul = uint32(data[0])
	}
	return csum ^ ul
}

// DataChecksum computes the checksum stored in a data-block header.
// The checksummed region runs from the size fields through the stored
// payload, so any per-block reserve bytes sitting between them are
// folded too. The region is folded contiguously; reserve lengths that
// are not word multiples shift the fold boundaries into the payload.
func DataChecksum(payload, reserve []byte, compressedSize, uncompressedSize uint16) uint32 {
	region := make([]byte, 0, 4+len(reserve)+len(payload))
	region = binary.LittleEndian.AppendUint16(region, compressedSize)
	region = binary.LittleEndian.AppendUint16(region, uncompressedSize)
	region = append(region, reserve...)
	region = append(region, payload...)
	return Checksum(region, 0)
}

// Package crc implements the CRC-32 variant used by bzip2: the 0x04C11DB7 polynomial
// processed most-significant-bit first, with inverted initial and final values. This is
// not the reflected (zlib/IEEE) ordering that hash/crc32 computes.
package crc

import "hash"

// Size of a checksum in bytes.
const Size = 4

const polynomial = 0x04c11db7

var table = makeTable()

func makeTable() *[256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c&0x80000000 != 0 {
				c = c<<1 ^ polynomial
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return &t
}

// Update returns the result of adding the bytes in p to the checksum prior.
// Update(0, p) is the checksum of p, and checksums may be extended piecewise.
func Update(prior uint32, p []byte) uint32 {
	c := ^prior
	for _, b := range p {
		c = c<<8 ^ table[byte(c>>24)^b]
	}
	return ^c
}

// Checksum returns the bzip2 CRC-32 of data.
func Checksum(data []byte) uint32 {
	return Update(0, data)
}

// Fold combines a block checksum into the running stream checksum.
func Fold(stream, block uint32) uint32 {
	return (stream<<1 | stream>>31) ^ block
}

// FoldAll folds block checksums in order, starting from zero.
func FoldAll(blocks []uint32) uint32 {
	var stream uint32
	for _, b := range blocks {
		stream = Fold(stream, b)
	}
	return stream
}

type digest struct {
	crc uint32
}

// New returns a hash.Hash32 computing the bzip2 CRC-32.
func New() hash.Hash32 {
	return &digest{}
}

func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return 1 }
func (d *digest) Reset()         { d.crc = 0 }
func (d *digest) Sum32() uint32  { return d.crc }

func (d *digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, p)
	return len(p), nil
}

func (d *digest) Sum(in []byte) []byte {
	s := d.crc
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

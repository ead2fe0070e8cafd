package l1geom

// MaxMortonAxis is the largest per-axis coordinate Morton3D can encode
// (10 bits per axis, 30 bits total).
const MaxMortonAxis = 1<<10 - 1

// expand3 spreads the low 10 bits of v so that there are two zero bits
// between each original bit.
func expand3(v uint32) uint32 {
	v &= 0x000003FF
	v = (v | (v << 16)) & 0x030000FF
	v = (v | (v << 8)) & 0x0300F00F
	v = (v | (v << 4)) & 0x030C30C3
	v = (v | (v << 2)) & 0x09249249
	return v
}

// compact3 is the inverse of expand3.
func compact3(v uint32) uint32 {
	v &= 0x09249249
	v = (v | (v >> 2)) & 0x030C30C3
	v = (v | (v >> 4)) & 0x0300F00F
	v = (v | (v >> 8)) & 0x030000FF
	v = (v | (v >> 16)) & 0x000003FF
	return v
}

// Morton3D interleaves the bits of x, y and z (x in the lowest position).
// For a power-of-two grid of side G the result lies in [0, G^3).
func Morton3D(x, y, z uint32) uint32 {
	return expand3(x) | expand3(y)<<1 | expand3(z)<<2
}

// Morton3DInvert recovers the coordinates encoded by Morton3D.
func Morton3DInvert(code uint32) (x, y, z uint32) {
	return compact3(code), compact3(code >> 1), compact3(code >> 2)
}

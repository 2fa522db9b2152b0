// Package hash implements the fast modular hash used to map tokens into vocabulary buckets
package hash

func Hash(n uint32, s uint32, max uint32) uint32 {
	// mixing stage, mix input with salt using subtraction
	var m = uint32(n) - uint32(s)

	// hashing stage, use xor shift with prime coefficients
	m ^= m << 2
	m ^= m << 3
	m ^= m >> 5
	m ^= m >> 7
	m ^= m << 11
	m ^= m << 13
	m ^= m >> 17
	m ^= m << 19

	// mixing stage 2, mix input with salt using addition
	m += s

	// modular stage, multiply shift instead of modulo
	// https://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/
	return uint32((uint64(m) * uint64(max)) >> 32)
}

// String hashes a string into [0, max). Every byte is folded through Hash, so
// the result depends on the whole string and on salt.
func String(str string, salt uint32, max uint32) uint32 {
	var n = uint32(len(str))
	for i := 0; i < len(str); i++ {
		n = Hash(n^uint32(str[i]), salt+uint32(i), 0xffffffff)
	}
	return Hash(n, salt, max)
}

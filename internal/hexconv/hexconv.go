package hexconv

// Invalid marks a byte that isn't a hex digit in the Halfbyte table.
const Invalid = 0xFF

// Halfbyte maps an ASCII hex digit to its value. Every other byte maps to Invalid.
var Halfbyte = func() (table [256]byte) {
	for i := range table {
		table[i] = Invalid
	}

	for c := byte('0'); c <= '9'; c++ {
		table[c] = c - '0'
	}

	for c := byte('a'); c <= 'f'; c++ {
		table[c] = c - 'a' + 10
		table[c-'a'+'A'] = c - 'a' + 10
	}

	return table
}()

const digits = "0123456789abcdef"

// Append appends the lowercase hex representation of n without leading zeroes.
func Append(dst []byte, n uint64) []byte {
	if n == 0 {
		return append(dst, '0')
	}

	var buff [16]byte
	i := len(buff)

	for n > 0 {
		i--
		buff[i] = digits[n&0xf]
		n >>= 4
	}

	return append(dst, buff[i:]...)
}

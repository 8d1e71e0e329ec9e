package runner

// patternByte is the byte the given rank writes at file position pos.
func patternByte(rank int, pos int64) byte {
	return byte(pos) ^ byte(pos>>8) ^ byte(pos>>16) ^ byte(rank*37+1)
}

func fillPattern(buf []byte, rank int, offset int64) {
	for i := range buf {
		buf[i] = patternByte(rank, offset+int64(i))
	}
}

// verifyPattern returns the index of the first byte that differs from the
// pattern, or -1.
func verifyPattern(buf []byte, rank int, offset int64) int {
	for i, b := range buf {
		if b != patternByte(rank, offset+int64(i)) {
			return i
		}
	}
	return -1
}

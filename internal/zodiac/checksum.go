package zodiac

// wordChecksum computes the 16-bit checksum the receiver stores after the
// header and after the payload: the negated wraparound sum of the covered
// words, so that summing the covered words together with the stored checksum
// yields zero.
func wordChecksum(words []uint16) uint16 {
	var sum uint16
	for _, w := range words {
		sum += w
	}
	return ^sum + 1
}

// Package compression implements the OpenEXR chunk codecs used by exrio.
//
// Both ZIP and RLE first reorder a chunk so that the even-indexed bytes come
// before the odd-indexed bytes, then replace every byte by its difference
// from the previous one, biased by 128. The codec proper runs on the result.
package compression

// encodeBytes reorders raw into even/odd halves and applies the delta
// predictor. raw is not modified.
func encodeBytes(raw []byte) []byte {
	n := len(raw)
	out := make([]byte, n)
	if n == 0 {
		return out
	}

	lo, hi := 0, (n+1)/2
	for i := 0; i < n; i += 2 {
		out[lo] = raw[i]
		lo++
		if i+1 < n {
			out[hi] = raw[i+1]
			hi++
		}
	}

	prev := out[0]
	for i := 1; i < n; i++ {
		cur := out[i]
		out[i] = cur - prev + 128
		prev = cur
	}
	return out
}

// decodeBytes reverses encodeBytes. buf is used as scratch and its contents
// are destroyed; the reconstructed bytes are written to dst, which must have
// the same length.
func decodeBytes(dst, buf []byte) {
	n := len(buf)
	if n == 0 {
		return
	}

	for i := 1; i < n; i++ {
		buf[i] = buf[i-1] + buf[i] - 128
	}

	lo, hi := 0, (n+1)/2
	for i := 0; i < n; i += 2 {
		dst[i] = buf[lo]
		lo++
		if i+1 < n {
			dst[i+1] = buf[hi]
			hi++
		}
	}
}

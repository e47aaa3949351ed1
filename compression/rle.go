package compression

const (
	rleMinRun = 3
	rleMaxRun = 127
)

// RLECompress encodes a chunk with the OpenEXR RLE codec.
//
// After byte reordering and prediction, runs of 3 to 128 equal bytes are
// written as a count byte n-1 followed by the value, and stretches of up to
// 127 literal bytes as a negative count byte -n followed by the bytes.
func RLECompress(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	src := encodeBytes(raw)
	dst := make([]byte, 0, len(src)+len(src)/rleMaxRun+1)

	start := 0
	for start < len(src) {
		end := start + 1
		for end < len(src) && src[end] == src[start] && end-start <= rleMaxRun {
			end++
		}

		if end-start >= rleMinRun {
			dst = append(dst, byte(end-start-1), src[start])
			start = end
			continue
		}

		for end < len(src) && end-start < rleMaxRun {
			if end+2 < len(src) && src[end] == src[end+1] && src[end+1] == src[end+2] {
				break
			}
			end++
		}
		dst = append(dst, byte(-int8(end-start)))
		dst = append(dst, src[start:end]...)
		start = end
	}
	return dst
}

// RLEDecompress decodes an RLE chunk whose uncompressed size is size.
func RLEDecompress(src []byte, size int) ([]byte, error) {
	buf := make([]byte, size)
	pos := 0

	for i := 0; i < len(src); {
		count := int(int8(src[i]))
		i++

		if count < 0 {
			n := -count
			if i+n > len(src) {
				return nil, ErrCorrupted
			}
			if pos+n > size {
				return nil, ErrSizeMismatch
			}
			copy(buf[pos:], src[i:i+n])
			pos += n
			i += n
			continue
		}

		n := count + 1
		if i >= len(src) {
			return nil, ErrCorrupted
		}
		if pos+n > size {
			return nil, ErrSizeMismatch
		}
		v := src[i]
		i++
		for end := pos + n; pos < end; pos++ {
			buf[pos] = v
		}
	}

	if pos != size {
		return nil, ErrSizeMismatch
	}

	out := make([]byte, size)
	decodeBytes(out, buf)
	return out, nil
}

package half

import "encoding/binary"

// FromFloat32Slice converts src into dst. It converts min(len(dst), len(src))
// values and returns that count.
func FromFloat32Slice(dst []Half, src []float32) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = FromFloat32(src[i])
	}
	return n
}

// ToFloat32Slice converts src into dst. It converts min(len(dst), len(src))
// values and returns that count.
func ToFloat32Slice(dst []float32, src []Half) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = src[i].Float32()
	}
	return n
}

// PutFloat32s encodes src as little-endian binary16 values into dst, which
// must hold at least 2*len(src) bytes.
func PutFloat32s(dst []byte, src []float32) {
	if len(src) == 0 {
		return
	}
	_ = dst[2*len(src)-1]
	for i, f := range src {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(FromFloat32(f)))
	}
}

// Float32s decodes little-endian binary16 values from src into dst, which
// must hold at least len(src)/2 values.
func Float32s(dst []float32, src []byte) {
	n := len(src) / 2
	if n == 0 {
		return
	}
	_ = dst[n-1]
	for i := 0; i < n; i++ {
		dst[i] = Half(binary.LittleEndian.Uint16(src[2*i:])).Float32()
	}
}

// Package half converts between float32 and IEEE 754 binary16 values.
//
// Binary16 has 1 sign bit, 5 exponent bits (bias 15) and 10 mantissa bits.
// OpenEXR stores most colour channels in this format.
package half

import (
	"math"
	"strconv"
)

// Half is an IEEE 754 binary16 value.
type Half uint16

const (
	signMask     = 0x8000
	exponentMask = 0x7C00
	mantissaMask = 0x03FF
	bias         = 15
)

// Special values.
const (
	Inf    Half = 0x7C00
	NegInf Half = 0xFC00
	NaN    Half = 0x7E00
	Zero   Half = 0x0000
	Max    Half = 0x7BFF // 65504
)

// FromBits returns the Half with the given bit pattern.
func FromBits(bits uint16) Half {
	return Half(bits)
}

// Bits returns the bit pattern of h.
func (h Half) Bits() uint16 {
	return uint16(h)
}

// FromFloat32 rounds f to the nearest binary16 value, ties to even.
// Values too large for binary16 become infinities; NaN stays NaN.
func FromFloat32(f float32) Half {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & signMask
	exp := int(bits>>23) & 0xFF
	mant := bits & 0x007FFFFF

	if exp == 0xFF {
		if mant == 0 {
			return Half(sign | exponentMask)
		}
		// Keep the top mantissa bits and force the quiet bit so the
		// result cannot collapse into an infinity.
		return Half(sign | exponentMask | 0x0200 | uint16(mant>>13))
	}

	e := exp - 127 + bias
	switch {
	case e >= 0x1F:
		return Half(sign | exponentMask)
	case e <= 0:
		// Subnormal or zero result.
		if e < -10 {
			return Half(sign)
		}
		mant |= 0x00800000
		shift := uint(14 - e)
		return Half(sign | uint16(roundShift(mant, shift)))
	}

	m := roundShift(mant, 13)
	// A mantissa carry bumps the exponent, which is exactly what adding
	// the two fields does.
	v := uint32(e)<<10 + m
	if v >= 0x7C00 {
		return Half(sign | exponentMask)
	}
	return Half(sign | uint16(v))
}

// roundShift shifts v right by s bits, rounding to nearest even.
func roundShift(v uint32, s uint) uint32 {
	q := v >> s
	rem := v & (1<<s - 1)
	halfway := uint32(1) << (s - 1)
	if rem > halfway || (rem == halfway && q&1 == 1) {
		q++
	}
	return q
}

// Float32 returns h as a float32. The conversion is exact.
func (h Half) Float32() float32 {
	sign := uint32(h&signMask) << 16
	exp := uint32(h&exponentMask) >> 10
	mant := uint32(h & mantissaMask)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: value is mant * 2^-24.
		f := float32(mant) * (1.0 / (1 << 24))
		if sign != 0 {
			f = -f
		}
		return f
	case 0x1F:
		return math.Float32frombits(sign | 0x7F800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp-bias+127)<<23 | mant<<13)
}

// IsNaN reports whether h is a NaN.
func (h Half) IsNaN() bool {
	return h&exponentMask == exponentMask && h&mantissaMask != 0
}

// IsInf reports whether h is an infinity of either sign.
func (h Half) IsInf() bool {
	return h&0x7FFF == exponentMask
}

// IsFinite reports whether h is neither infinite nor NaN.
func (h Half) IsFinite() bool {
	return h&exponentMask != exponentMask
}

func (h Half) String() string {
	return strconv.FormatFloat(float64(h.Float32()), 'g', -1, 32)
}

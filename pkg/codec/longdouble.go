package codec

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// LongDoubleSize is the on-disk size of a longdouble: an x87 80-bit extended
// float padded with zeros to 16 bytes.
const LongDoubleSize = 16

const (
	extBias     = 16383
	float64Bias = 1023
)

// PutLongDouble encodes f as an 80-bit extended float into buf[:16]. In
// little-endian order the 64-bit significand comes first, then the 16-bit
// sign and exponent, then six bytes of padding; big-endian reverses all 16
// bytes.
func PutLongDouble(buf []byte, f float64, order binary.ByteOrder) {
	se, mant := toExtended(f)
	clear(buf[:LongDoubleSize])
	if order == binary.BigEndian {
		binary.BigEndian.PutUint16(buf[6:8], se)
		binary.BigEndian.PutUint64(buf[8:16], mant)
		return
	}
	binary.LittleEndian.PutUint64(buf[0:8], mant)
	binary.LittleEndian.PutUint16(buf[8:10], se)
}

// LongDouble decodes an 80-bit extended float written by PutLongDouble.
// Precision beyond float64 is rounded away.
func LongDouble(buf []byte, order binary.ByteOrder) float64 {
	var se uint16
	var mant uint64
	if order == binary.BigEndian {
		se = binary.BigEndian.Uint16(buf[6:8])
		mant = binary.BigEndian.Uint64(buf[8:16])
	} else {
		mant = binary.LittleEndian.Uint64(buf[0:8])
		se = binary.LittleEndian.Uint16(buf[8:10])
	}
	return fromExtended(se, mant)
}

func toExtended(f float64) (uint16, uint64) {
	b := math.Float64bits(f)
	sign := uint16(b>>63) << 15
	exp := int((b >> 52) & 0x7ff)
	frac := b & (1<<52 - 1)
	switch {
	case exp == 0x7ff && frac == 0:
		return sign | 0x7fff, 1 << 63
	case exp == 0x7ff:
		return sign | 0x7fff, 3<<62 | frac<<11
	case exp == 0 && frac == 0:
		return sign, 0
	case exp == 0:
		shift := bits.LeadingZeros64(frac)
		e := 63 - shift - 1074 + extBias
		return sign | uint16(e), frac << shift
	}
	return sign | uint16(exp-float64Bias+extBias), 1<<63 | frac<<11
}

func fromExtended(se uint16, mant uint64) float64 {
	negative := se&0x8000 != 0
	exp := int(se & 0x7fff)
	var f float64
	switch {
	case exp == 0x7fff && mant<<1 == 0:
		f = math.Inf(1)
	case exp == 0x7fff:
		f = math.NaN()
	case mant == 0:
		f = 0
	default:
		if exp == 0 {
			exp = 1
		}
		// float64(mant) rounds to nearest; Ldexp handles subnormal results
		// and overflow to infinity.
		f = math.Ldexp(float64(mant), exp-extBias-63)
	}
	if negative {
		f = math.Copysign(f, -1)
	}
	return f
}

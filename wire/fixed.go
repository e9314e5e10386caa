package wire

import (
	"fmt"
	"math"
	"strings"
)

// Fixed is the protocol's signed 24.8 fixed-point number, used
// anywhere the core protocol needs fractional values.
type Fixed int32

// FixedInt converts a whole number to Fixed.
func FixedInt(v int) Fixed {
	return Fixed(v << 8)
}

// FixedFloat converts v to Fixed, truncating anything below 1/256.
func FixedFloat(v float64) Fixed {
	i, frac := math.Modf(v)
	return Fixed((int(i) << 8) | int(math.Abs(frac)*math.Exp2(8)))
}

// Int returns the whole part of f.
func (f Fixed) Int() int {
	return int(f >> 8)
}

// Frac returns the fractional part of f in 1/256 units.
func (f Fixed) Frac() int {
	return int(uint32(f) & 0xFF)
}

func (f Fixed) Float() float64 {
	i := f.Int()
	frac := f.Frac()
	return float64(i) + math.Abs(float64(frac)*math.Exp2(-8))
}

func (f Fixed) String() string {
	var sb strings.Builder
	fmt.Fprint(&sb, f.Int())
	if frac := f.Frac(); frac != 0 {
		fmt.Fprintf(&sb, ".%v", frac)
	}
	return sb.String()
}

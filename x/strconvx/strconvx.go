package strconvx

import "strconv"

// FormatFixed renders f in plain decimal notation with exactly prec
// fractional digits. Exponent forms are never produced.
func FormatFixed(f float64, prec int) string {
	if prec < 0 {
		prec = 0
	}
	return strconv.FormatFloat(f, 'f', prec, 64)
}

package qrrender

// finderSpan is the side of a finder pattern core in modules.
const finderSpan = 7

// IsFinderModule reports whether module (x, y) of an n×n symbol lies in one of
// the three finder zones: top-left, top-right or bottom-left. The bottom-right
// corner never holds a finder pattern.
func IsFinderModule(x, y, n int) bool {
	inLow := func(v int) bool { return v >= 0 && v < finderSpan }
	inHigh := func(v int) bool { return v >= n-finderSpan && v <= n-1 }

	switch {
	case inLow(x) && inLow(y):
		return true
	case inHigh(x) && inLow(y):
		return true
	case inLow(x) && inHigh(y):
		return true
	}
	return false
}

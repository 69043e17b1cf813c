package rdc

// RefSign is the square-wave form of the reference excitation, -1, 0 or +1.
type RefSign int8

// Reference discriminates the reference winding voltage into its sign.
// An exact zero maps to 0 so that the loop does not integrate at the crossing.
func Reference(v float64) RefSign {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

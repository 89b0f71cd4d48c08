package domain

// BloodGroup is one of the eight canonical ABO/Rh groups.
type BloodGroup string

const (
	APositive  BloodGroup = "A+"
	ANegative  BloodGroup = "A-"
	BPositive  BloodGroup = "B+"
	BNegative  BloodGroup = "B-"
	ABPositive BloodGroup = "AB+"
	ABNegative BloodGroup = "AB-"
	OPositive  BloodGroup = "O+"
	ONegative  BloodGroup = "O-"
)

// BloodGroups lists the canonical groups in display order.
var BloodGroups = []BloodGroup{
	APositive, ANegative,
	BPositive, BNegative,
	ABPositive, ABNegative,
	OPositive, ONegative,
}

// Valid reports whether g is a canonical group.
func (g BloodGroup) Valid() bool {
	for _, c := range BloodGroups {
		if g == c {
			return true
		}
	}
	return false
}

// ParseBloodGroup accepts only the exact canonical spelling.
func ParseBloodGroup(s string) (BloodGroup, bool) {
	g := BloodGroup(s)
	return g, g.Valid()
}

// CountByBloodGroup returns a count for every canonical group, zeros included.
func CountByBloodGroup(donors []Donor) map[BloodGroup]int {
	counts := make(map[BloodGroup]int, len(BloodGroups))
	for _, g := range BloodGroups {
		counts[g] = 0
	}
	for _, d := range donors {
		if _, ok := counts[d.BloodGroup]; ok {
			counts[d.BloodGroup]++
		}
	}
	return counts
}

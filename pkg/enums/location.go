package enums

import "slices"

// LocationName enumerates the campus drop-off points.
type LocationName string

const (
	LocationHall1       LocationName = "hall1"
	LocationHall2       LocationName = "hall2"
	LocationHall3       LocationName = "hall3"
	LocationFacultySci  LocationName = "faculty_sci"
	LocationFacultyEng  LocationName = "faculty_eng"
	LocationFacultyArts LocationName = "faculty_arts"
	LocationLibrary     LocationName = "library"
	LocationCafe        LocationName = "cafe"
)

var validLocationNames = []LocationName{
	LocationHall1,
	LocationHall2,
	LocationHall3,
	LocationFacultySci,
	LocationFacultyEng,
	LocationFacultyArts,
	LocationLibrary,
	LocationCafe,
}

var locationLabels = map[LocationName]string{
	LocationHall1:       "Hall 1",
	LocationHall2:       "Hall 2",
	LocationHall3:       "Hall 3",
	LocationFacultySci:  "Faculty of Science",
	LocationFacultyEng:  "Faculty of Engineering",
	LocationFacultyArts: "Faculty of Arts",
	LocationLibrary:     "Library",
	LocationCafe:        "Cafe",
}

// LocationNames returns the canonical names in display order.
func LocationNames() []LocationName {
	out := make([]LocationName, len(validLocationNames))
	copy(out, validLocationNames)
	return out
}

// String implements fmt.Stringer.
func (l LocationName) String() string {
	return string(l)
}

// Label returns the human readable name.
func (l LocationName) Label() string {
	if label, ok := locationLabels[l]; ok {
		return label
	}
	return string(l)
}

// IsValid reports whether the value is a known LocationName.
func (l LocationName) IsValid() bool {
	return slices.Contains(validLocationNames, l)
}

// ParseLocationName converts raw input into a LocationName.
func ParseLocationName(value string) (LocationName, error) {
	return parse(validLocationNames, value, "location")
}

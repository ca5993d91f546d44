package domain

// PlacemarkKind tags the geometry variant a track-file placemark carries.
// The variants are mutually exclusive; classification happens once, before
// any geometry extraction.
type PlacemarkKind int

const (
	// PlacemarkPoint is a single coordinate, shown as a POI.
	PlacemarkPoint PlacemarkKind = iota
	// PlacemarkMultiLine is a multi-geometry holding one or more lines.
	PlacemarkMultiLine
	// PlacemarkLine is a lone polyline.
	PlacemarkLine
)

func (k PlacemarkKind) String() string {
	switch k {
	case PlacemarkPoint:
		return "point"
	case PlacemarkMultiLine:
		return "multiline"
	case PlacemarkLine:
		return "line"
	}
	return "unknown"
}

// Placemark is the classified form of one track-file placemark node.
// Exactly one of Point or Lines is populated, according to Kind.
type Placemark struct {
	Kind        PlacemarkKind
	Name        string
	Description string
	Point       *Point
	Lines       [][]Point
}

// Package kml parses KML and KMZ track documents into domain routes.
package kml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/pkg/geospatial"
)

var (
	// ErrMalformedKML means the document is not well-formed XML or lacks
	// the mandatory kml root element. No partial route is returned.
	ErrMalformedKML = errors.New("malformed kml document")

	// ErrNoKMLEntry means a KMZ archive contains no doc.kml and no
	// *.kml entry at all.
	ErrNoKMLEntry = errors.New("kmz archive has no kml entry")
)

// --- Wire model ---

type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description"`
	Placemarks  []kmlPlacemark `xml:"Placemark"`
	Folders     []kmlFolder    `xml:"Folder"`
}

type kmlFolder struct {
	Placemarks []kmlPlacemark `xml:"Placemark"`
	Folders    []kmlFolder    `xml:"Folder"`
}

type kmlPlacemark struct {
	Name          string            `xml:"name"`
	Description   string            `xml:"description"`
	Point         *kmlPoint         `xml:"Point"`
	MultiGeometry *kmlMultiGeometry `xml:"MultiGeometry"`
	LineString    *kmlLineString    `xml:"LineString"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

type kmlLineString struct {
	Coordinates string `xml:"coordinates"`
}

type kmlMultiGeometry struct {
	LineStrings []kmlLineString `xml:"LineString"`
}

// --- Parsing ---

// Parse reads a KML document and produces an immutable route with its
// bounding box and derived statistics.
func Parse(r io.Reader) (*domain.Route, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc kmlRoot
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKML, err)
	}

	route := &domain.Route{
		Name:        strings.TrimSpace(doc.Document.Name),
		Description: strings.TrimSpace(doc.Document.Description),
		BBox:        geospatial.NewBBox(),
	}

	for _, pm := range collectPlacemarks(doc.Document) {
		placemark := classify(pm)
		if placemark == nil {
			continue
		}
		applyPlacemark(route, placemark)
	}

	computeStats(route)
	return route, nil
}

// ParseKMZ unwraps a KMZ archive and parses the track document inside.
// The entry named exactly doc.kml wins; otherwise the first entry with a
// .kml suffix (case-insensitive) is used.
func ParseKMZ(data []byte) (*domain.Route, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open kmz: %v", ErrMalformedKML, err)
	}

	entry := findKMLEntry(zr)
	if entry == nil {
		return nil, ErrNoKMLEntry
	}

	f, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open kmz entry %s: %w", entry.Name, err)
	}
	defer f.Close()

	return Parse(f)
}

// ParseAuto sniffs the zip magic and dispatches to ParseKMZ or Parse.
func ParseAuto(data []byte) (*domain.Route, error) {
	if len(data) >= 2 && data[0] == 'P' && data[1] == 'K' {
		return ParseKMZ(data)
	}
	return Parse(bytes.NewReader(data))
}

func findKMLEntry(zr *zip.Reader) *zip.File {
	for _, f := range zr.File {
		if f.Name == "doc.kml" {
			return f
		}
	}
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			return f
		}
	}
	return nil
}

func collectPlacemarks(doc kmlDocument) []kmlPlacemark {
	placemarks := append([]kmlPlacemark(nil), doc.Placemarks...)
	var walk func(folders []kmlFolder)
	walk = func(folders []kmlFolder) {
		for _, f := range folders {
			placemarks = append(placemarks, f.Placemarks...)
			walk(f.Folders)
		}
	}
	walk(doc.Folders)
	return placemarks
}

// classify resolves a placemark node to exactly one geometry variant.
// The fallback order is fixed: point, then multi-geometry, then a lone
// line. Nodes carrying none of the three are dropped.
func classify(pm kmlPlacemark) *domain.Placemark {
	out := &domain.Placemark{
		Name:        strings.TrimSpace(pm.Name),
		Description: strings.TrimSpace(pm.Description),
	}

	switch {
	case pm.Point != nil:
		points := parseCoordinates(pm.Point.Coordinates)
		if len(points) == 0 {
			return nil
		}
		out.Kind = domain.PlacemarkPoint
		out.Point = &points[0]

	case pm.MultiGeometry != nil:
		out.Kind = domain.PlacemarkMultiLine
		for _, ls := range pm.MultiGeometry.LineStrings {
			if points := parseCoordinates(ls.Coordinates); len(points) > 0 {
				out.Lines = append(out.Lines, points)
			}
		}
		if len(out.Lines) == 0 {
			return nil
		}

	case pm.LineString != nil:
		points := parseCoordinates(pm.LineString.Coordinates)
		if len(points) == 0 {
			return nil
		}
		out.Kind = domain.PlacemarkLine
		out.Lines = [][]domain.Point{points}

	default:
		return nil
	}

	return out
}

func applyPlacemark(route *domain.Route, pm *domain.Placemark) {
	switch pm.Kind {
	case domain.PlacemarkPoint:
		p := *pm.Point
		route.POIs = append(route.POIs, domain.POI{
			Name:        pm.Name,
			Description: pm.Description,
			Lat:         p.Lat,
			Lon:         p.Lon,
			Ele:         p.Ele,
		})
		route.BBox.Extend(p.Lat, p.Lon)

	case domain.PlacemarkMultiLine, domain.PlacemarkLine:
		for _, line := range pm.Lines {
			route.Segments = append(route.Segments, domain.Segment{Points: line})
			for _, p := range line {
				route.BBox.Extend(p.Lat, p.Lon)
			}
		}
	}
}

// parseCoordinates decodes whitespace-separated lon,lat[,ele] triplets.
// The source format puts longitude first; the domain model stores
// latitude first. Elevation falls back to 0 when absent or non-numeric.
func parseCoordinates(text string) []domain.Point {
	var points []domain.Point
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			continue
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			continue
		}
		var ele float64
		if len(parts) >= 3 {
			if v, err := strconv.ParseFloat(parts[2], 64); err == nil {
				ele = v
			}
		}
		points = append(points, domain.Point{Lat: lat, Lon: lon, Ele: ele})
	}
	return points
}

// Package geometry turns REST query geometries into WKT polygon literals in
// geographic coordinates.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
)

const (
	TypeEnvelope = "esriGeometryEnvelope"
	TypePolygon  = "esriGeometryPolygon"
	TypePoint    = "esriGeometryPoint"
)

const (
	WGS84                = 4326
	WebMercator          = 102100
	WebMercatorEPSG      = 3857
	WebMercatorAuxiliary = 102113
)

// Descriptor is a parsed query geometry. The set of implementations is closed;
// add a new variant here and in Parse to support another geometry type.
type Descriptor interface {
	// outline returns the closed ring in the descriptor's own coordinates
	outline() orb.Ring
	// wkid is the spatial reference embedded in the geometry, 0 if none
	wkid() int
}

type Envelope struct {
	XMin, YMin, XMax, YMax float64
	WKID                   int
}

// ring order is (xmax,ymin),(xmax,ymax),(xmin,ymax),(xmin,ymin),(xmax,ymin)
func (e Envelope) outline() orb.Ring {
	return orb.Ring{
		{e.XMax, e.YMin},
		{e.XMax, e.YMax},
		{e.XMin, e.YMax},
		{e.XMin, e.YMin},
		{e.XMax, e.YMin},
	}
}

func (e Envelope) wkid() int { return e.WKID }

type spatialReference struct {
	WKID       int `json:"wkid"`
	LatestWKID int `json:"latestWkid"`
}

func (s *spatialReference) code() int {
	if s == nil {
		return 0
	}
	if s.WKID != 0 {
		return s.WKID
	}
	return s.LatestWKID
}

type esriEnvelope struct {
	XMin             *float64          `json:"xmin"`
	YMin             *float64          `json:"ymin"`
	XMax             *float64          `json:"xmax"`
	YMax             *float64          `json:"ymax"`
	SpatialReference *spatialReference `json:"spatialReference"`
}

// Parse decodes the geometry request parameter. An empty geometryType means
// envelope.
func Parse(raw, geometryType string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperr.DataShapef("empty geometry")
	}
	t := strings.TrimSpace(geometryType)
	if t == "" {
		t = TypeEnvelope
	}
	switch t {
	case TypeEnvelope:
		return parseEnvelope(raw)
	default:
		return nil, apperr.DataShapef("unsupported geometry type %q", t)
	}
}

func parseEnvelope(raw string) (Envelope, error) {
	if !strings.HasPrefix(raw, "{") {
		return parseEnvelopeShorthand(raw)
	}
	var v esriEnvelope
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Envelope{}, apperr.Wrap(apperr.DataShape, err, "parse envelope")
	}
	bounds := []struct {
		name string
		val  *float64
	}{
		{"xmin", v.XMin}, {"ymin", v.YMin}, {"xmax", v.XMax}, {"ymax", v.YMax},
	}
	for _, b := range bounds {
		if b.val == nil {
			return Envelope{}, apperr.DataShapef("envelope missing %s", b.name)
		}
		if math.IsNaN(*b.val) || math.IsInf(*b.val, 0) {
			return Envelope{}, apperr.DataShapef("envelope %s is not finite", b.name)
		}
	}
	return Envelope{
		XMin: *v.XMin, YMin: *v.YMin, XMax: *v.XMax, YMax: *v.YMax,
		WKID: v.SpatialReference.code(),
	}, nil
}

// xmin,ymin,xmax,ymax
func parseEnvelopeShorthand(raw string) (Envelope, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return Envelope{}, apperr.DataShapef("expected 4 comma-separated values: xmin,ymin,xmax,ymax")
	}
	var vals [4]float64
	names := [4]string{"xmin", "ymin", "xmax", "ymax"}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Envelope{}, apperr.Wrap(apperr.DataShape, err, names[i])
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Envelope{}, apperr.DataShapef("envelope %s is not finite", names[i])
		}
		vals[i] = f
	}
	return Envelope{XMin: vals[0], YMin: vals[1], XMax: vals[2], YMax: vals[3]}, nil
}

// ParseSR accepts a bare wkid ("102100") or a spatial reference object
// ({"wkid":102100}). Empty input returns 0.
func ParseSR(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if strings.HasPrefix(raw, "{") {
		var sr spatialReference
		if err := json.Unmarshal([]byte(raw), &sr); err != nil {
			return 0, apperr.Wrap(apperr.DataShape, err, "parse inSR")
		}
		if sr.code() == 0 {
			return 0, apperr.DataShapef("inSR has no wkid")
		}
		return sr.code(), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Wrap(apperr.DataShape, err, "parse inSR")
	}
	return n, nil
}

// Translate returns the descriptor's outline in EPSG:4326. sr overrides the
// descriptor's own spatial reference; when both are 0, 4326 is assumed.
// Vertex order is preserved as given.
func Translate(d Descriptor, sr int) (orb.Ring, error) {
	if d == nil {
		return nil, apperr.DataShapef("nil geometry")
	}
	if sr == 0 {
		sr = d.wkid()
	}
	if sr == 0 {
		sr = WGS84
	}
	ring := d.outline()
	switch sr {
	case WGS84:
		return ring, nil
	case WebMercator, WebMercatorEPSG, WebMercatorAuxiliary:
		out := make(orb.Ring, len(ring))
		for i, p := range ring {
			out[i] = project.Mercator.ToWGS84(p)
		}
		return out, nil
	default:
		return nil, apperr.DataShapef("unsupported spatial reference %d", sr)
	}
}

// SpatialFilterWKT runs parse, translate and encode for the raw request
// values. An empty geometry yields "" and no error.
func SpatialFilterWKT(rawGeometry, geometryType, inSR string) (string, error) {
	if strings.TrimSpace(rawGeometry) == "" {
		return "", nil
	}
	d, err := Parse(rawGeometry, geometryType)
	if err != nil {
		return "", err
	}
	sr, err := ParseSR(inSR)
	if err != nil {
		return "", err
	}
	ring, err := Translate(d, sr)
	if err != nil {
		return "", err
	}
	wkt, err := EncodeWKT(ring)
	if err != nil {
		return "", fmt.Errorf("encode wkt: %w", err)
	}
	return wkt, nil
}

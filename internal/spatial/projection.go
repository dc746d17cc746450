package spatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Well-known EPSG codes
const (
	EPSGWGS84        = 4326 // geographic lon/lat
	EPSGWebMercator  = 3857 // spherical pseudo-mercator, metres
	epsgGoogle       = 900913
	epsgMercatorOld  = 3785
	epsgESRIMercator = 102100
	epsgESRIOld      = 102113
)

// ProjectionError reports an unsupported reference system or a coordinate
// outside the domain of the source system.
type ProjectionError struct {
	EPSG   int
	Reason string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection EPSG:%d: %s", e.EPSG, e.Reason)
}

// Projector converts a coordinate from one reference system into another.
type Projector interface {
	Project(p orb.Point) (orb.Point, error)
}

// crs describes a reference system by its conversion to and from WGS84.
// Nil conversions mean the system is WGS84 itself.
type crs struct {
	code      int
	toWGS84   orb.Projection
	fromWGS84 orb.Projection
}

func (c crs) geographic() bool {
	return c.toWGS84 == nil
}

var registry = map[int]crs{
	EPSGWGS84: {code: EPSGWGS84},
	EPSGWebMercator: {
		code:      EPSGWebMercator,
		toWGS84:   project.Mercator.ToWGS84,
		fromWGS84: project.WGS84.ToMercator,
	},
}

func init() {
	// Aliases that name the same spherical mercator
	for _, alias := range []int{epsgGoogle, epsgMercatorOld, epsgESRIMercator, epsgESRIOld} {
		registry[alias] = registry[EPSGWebMercator]
	}
}

// Supported reports whether an EPSG code can be used as input or output
func Supported(code int) bool {
	_, ok := registry[code]
	return ok
}

func lookup(code int) (crs, error) {
	c, ok := registry[code]
	if !ok {
		return crs{}, &ProjectionError{EPSG: code, Reason: "unsupported reference system"}
	}
	return c, nil
}

// Transformer projects coordinates from an input EPSG system to an output one.
// It is stateless beyond the two systems and safe for concurrent use.
type Transformer struct {
	in  crs
	out crs
}

// NewTransformer resolves both EPSG codes. Unknown codes yield a *ProjectionError.
func NewTransformer(inEPSG, outEPSG int) (*Transformer, error) {
	in, err := lookup(inEPSG)
	if err != nil {
		return nil, err
	}
	out, err := lookup(outEPSG)
	if err != nil {
		return nil, err
	}
	return &Transformer{in: in, out: out}, nil
}

// InEPSG returns the canonical input code
func (t *Transformer) InEPSG() int { return t.in.code }

// OutEPSG returns the canonical output code
func (t *Transformer) OutEPSG() int { return t.out.code }

// Project converts p (x=lng/easting, y=lat/northing) from the input system
// to the output system.
func (t *Transformer) Project(p orb.Point) (orb.Point, error) {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return orb.Point{}, &ProjectionError{EPSG: t.in.code, Reason: fmt.Sprintf("non-finite coordinate %v", p)}
	}
	if t.in.geographic() && !ValidLngLat(p[0], p[1]) {
		return orb.Point{}, &ProjectionError{EPSG: t.in.code, Reason: fmt.Sprintf("coordinate %v outside lon/lat domain", p)}
	}
	if t.in.code == t.out.code {
		return p, nil
	}

	wgs := p
	if t.in.toWGS84 != nil {
		wgs = t.in.toWGS84(p)
	}
	if t.out.fromWGS84 != nil {
		return t.out.fromWGS84(wgs), nil
	}
	return wgs, nil
}

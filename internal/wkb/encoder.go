// Package wkb encodes points and mesh cells as PostGIS extended WKB.
package wkb

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/wegman-software/jgd-go/internal/coord"
	"github.com/wegman-software/jgd-go/internal/mesh"
)

// WKB type constants (ISO SQL/MM specification)
const (
	wkbPoint   = 1
	wkbPolygon = 3

	// SRID flag for EWKB (PostGIS extended WKB)
	wkbSRIDFlag = 0x20000000
)

// PointSize is the encoded length of an EWKB point
const PointSize = 25

// Encoder encodes geometries to little-endian EWKB tagged with an SRID.
// The returned slices alias the encoder's buffer until the next call.
type Encoder struct {
	buf  []byte
	srid uint32
}

// NewEncoder creates an encoder for the given SRID (a datum's EPSG code)
func NewEncoder(srid int) *Encoder {
	return &Encoder{
		buf:  make([]byte, 0, PointSize),
		srid: uint32(srid),
	}
}

// SRID returns the encoder's SRID
func (e *Encoder) SRID() int {
	return int(e.srid)
}

// EncodePoint encodes p as an EWKB point (X=lon, Y=lat)
func (e *Encoder) EncodePoint(p coord.LatLon) []byte {
	e.header(wkbPoint, PointSize)
	e.appendFloat64(p.Lon)
	e.appendFloat64(p.Lat)
	return e.buf
}

// EncodeCell encodes the outline of a third-order mesh cell as an EWKB
// polygon, counter-clockwise from the south-west corner.
func (e *Encoder) EncodeCell(c mesh.Code) []byte {
	east, north, northEast := c.Neighbors()
	ring := []coord.LatLon{
		c.Origin(), east.Origin(), northEast.Origin(), north.Origin(), c.Origin(),
	}

	e.header(wkbPolygon, 17+len(ring)*16)
	e.appendUint32(1) // rings
	e.appendUint32(uint32(len(ring)))
	for _, p := range ring {
		e.appendFloat64(p.Lon)
		e.appendFloat64(p.Lat)
	}
	return e.buf
}

// Hex returns the hex form PostGIS prints for geometries
func Hex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodePoint decodes an EWKB point produced by EncodePoint
func DecodePoint(b []byte) (coord.LatLon, int, error) {
	if len(b) != PointSize {
		return coord.LatLon{}, 0, fmt.Errorf("ewkb point must be %d bytes, got %d", PointSize, len(b))
	}
	if b[0] != 0x01 {
		return coord.LatLon{}, 0, errors.New("only little-endian ewkb is supported")
	}
	if typ := binary.LittleEndian.Uint32(b[1:5]); typ != wkbPoint|wkbSRIDFlag {
		return coord.LatLon{}, 0, fmt.Errorf("not an ewkb point: type 0x%x", typ)
	}
	srid := int(binary.LittleEndian.Uint32(b[5:9]))
	lon := math.Float64frombits(binary.LittleEndian.Uint64(b[9:17]))
	lat := math.Float64frombits(binary.LittleEndian.Uint64(b[17:25]))
	return coord.New(lat, lon), srid, nil
}

func (e *Encoder) header(typ uint32, size int) {
	if cap(e.buf) < size {
		e.buf = make([]byte, 0, size)
	}
	e.buf = e.buf[:0]
	e.buf = append(e.buf, 0x01) // little-endian
	e.appendUint32(typ | wkbSRIDFlag)
	e.appendUint32(e.srid)
}

func (e *Encoder) appendUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) appendFloat64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}

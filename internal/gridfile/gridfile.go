// Package gridfile stores correction grids in a compact binary form
// that loads without re-parsing the published text files.
//
// Layout (little-endian):
//
//	[0:4]   magic "JGDG"
//	[4:6]   version (uint16)
//	[6:8]   reserved
//	[8:12]  node count (uint32)
//	[12:16] name length (uint32)
//	name bytes
//	count x 12-byte records: lat serial (int16), lon serial (int16),
//	                         dLat (int32), dLon (int32) in 1e-5"
//
// Records are sorted south to north, west to east.
package gridfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/wegman-software/jgd-go/internal/grid"
	"github.com/wegman-software/jgd-go/internal/mesh"
)

const (
	magic      = "JGDG"
	version    = 1
	headerSize = 16
	recordSize = 12
	maxName    = 256
)

// Write encodes g to w
func Write(w io.Writer, g *grid.Grid) error {
	bw := bufio.NewWriter(w)
	name := g.Name()
	if len(name) > maxName {
		return fmt.Errorf("grid name too long: %d bytes", len(name))
	}

	nodes := g.Nodes()
	header := make([]byte, headerSize)
	copy(header[0:4], magic)
	binary.LittleEndian.PutUint16(header[4:], version)
	binary.LittleEndian.PutUint32(header[8:], uint32(len(nodes)))
	binary.LittleEndian.PutUint32(header[12:], uint32(len(name)))
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if _, err := bw.WriteString(name); err != nil {
		return err
	}

	rec := make([]byte, recordSize)
	for _, n := range nodes {
		if !fitsInt16(n.Code.Lat) || !fitsInt16(n.Code.Lon) {
			return fmt.Errorf("mesh %s does not fit the grid file format", n.Code)
		}
		binary.LittleEndian.PutUint16(rec[0:], uint16(int16(n.Code.Lat)))
		binary.LittleEndian.PutUint16(rec[2:], uint16(int16(n.Code.Lon)))
		binary.LittleEndian.PutUint32(rec[4:], uint32(n.Shift.Lat))
		binary.LittleEndian.PutUint32(rec[8:], uint32(n.Shift.Lon))
		if _, err := bw.Write(rec); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteFile encodes g to a new file at path
func WriteFile(path string, g *grid.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create grid file: %w", err)
	}
	if err := Write(f, g); err != nil {
		f.Close()
		return fmt.Errorf("failed to write grid file: %w", err)
	}
	return f.Close()
}

// Open memory-maps a grid file read-only and decodes it
func Open(path string, opts ...grid.Option) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open grid file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat grid file: %w", err)
	}
	if info.Size() < headerSize {
		return nil, &grid.MalformedGridError{Grid: path, Reason: "file shorter than header"}
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap grid file: %w", err)
	}
	defer data.Unmap()

	g, err := Decode(data, opts...)
	var merr *grid.MalformedGridError
	if errors.As(err, &merr) && merr.Grid == "" {
		merr.Grid = path
	}
	return g, err
}

// Decode parses an encoded grid held in memory
func Decode(data []byte, opts ...grid.Option) (*grid.Grid, error) {
	if len(data) < headerSize || string(data[0:4]) != magic {
		return nil, &grid.MalformedGridError{Reason: "not a grid file"}
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != version {
		return nil, &grid.MalformedGridError{Reason: fmt.Sprintf("unsupported grid file version %d", v)}
	}

	count := int64(binary.LittleEndian.Uint32(data[8:]))
	nameLen := int64(binary.LittleEndian.Uint32(data[12:]))
	if nameLen > maxName {
		return nil, &grid.MalformedGridError{Reason: "grid name too long"}
	}
	body := headerSize + nameLen
	if want := body + count*recordSize; int64(len(data)) != want {
		return nil, &grid.MalformedGridError{
			Reason: fmt.Sprintf("size mismatch: header says %d bytes, file has %d", want, len(data)),
		}
	}
	name := string(data[headerSize:body])

	nodes := make([]grid.Node, count)
	for i := range nodes {
		rec := data[body+int64(i)*recordSize:]
		nodes[i] = grid.Node{
			Code: mesh.Code{
				Lat: int32(int16(binary.LittleEndian.Uint16(rec[0:]))),
				Lon: int32(int16(binary.LittleEndian.Uint16(rec[2:]))),
			},
			Shift: grid.Shift{
				Lat: int32(binary.LittleEndian.Uint32(rec[4:])),
				Lon: int32(binary.LittleEndian.Uint32(rec[8:])),
			},
		}
	}

	return grid.FromNodes(name, nodes, opts...)
}

func fitsInt16(v int32) bool {
	return v >= math.MinInt16 && v <= math.MaxInt16
}

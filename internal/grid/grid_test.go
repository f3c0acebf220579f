package grid

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/jgd-go/internal/coord"
	"github.com/wegman-software/jgd-go/internal/mesh"
)

// smallest is a single interpolation cell at 0°N 0°E, shifts in 1e-5"
//
//	         45"
//	(0, 0) -- (6, 6)
//	  |          | 30"
//	(-6, 0) -- (0, 6)
var smallest = []Node{
	{Code: mesh.Code{Lat: 0, Lon: 0}, Shift: Shift{Lat: -6, Lon: 0}},
	{Code: mesh.Code{Lat: 0, Lon: 1}, Shift: Shift{Lat: 0, Lon: 6}},
	{Code: mesh.Code{Lat: 1, Lon: 0}, Shift: Shift{Lat: 0, Lon: 0}},
	{Code: mesh.Code{Lat: 1, Lon: 1}, Shift: Shift{Lat: 6, Lon: 6}},
}

func record(t *testing.T, line int, c mesh.Code, dLat, dLon string) Record {
	t.Helper()
	n, err := c.Standard()
	require.NoError(t, err)
	return Record{Line: line, MeshCode: strconv.FormatInt(n, 10), DLat: dLat, DLon: dLon}
}

func TestCorrectionAtCorner(t *testing.T) {
	g, err := FromNodes("smallest", smallest)
	require.NoError(t, err)

	shift, err := g.CorrectionAt(coord.New(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, shift.Lon)
	assert.InDelta(t, -6e-5/3600, shift.Lat, 1e-20)
}

func TestCorrectionAtMiddle(t *testing.T) {
	g, err := FromNodes("smallest", smallest)
	require.NoError(t, err)

	shift, err := g.CorrectionAt(coord.FromSecs(10, 15))
	require.NoError(t, err)
	assert.InDelta(t, -2e-5/3600, shift.Lat, 1e-18)
	assert.InDelta(t, 2e-5/3600, shift.Lon, 1e-18)
}

func TestCorrectionAtCellCentre(t *testing.T) {
	sw := mesh.Of(coord.New(35.6581, 139.7414))
	se, nw, ne := sw.Neighbors()
	records := []Record{
		record(t, 1, sw, "0.00000", "0.00000"),
		record(t, 2, se, "0.00010", "0.00010"),
		record(t, 3, nw, "0.00010", "0.00000"),
		record(t, 4, ne, "0.00000", "0.00010"),
	}

	g, err := New("centre", records)
	require.NoError(t, err)

	centre := sw.Origin().Add(coord.FromSecs(mesh.LatSecs/2.0, mesh.LonSecs/2.0))
	got, err := g.CorrectionAt(centre)
	require.NoError(t, err)

	// average of the four corners
	assert.InDelta(t, 0.00005, got.Lat*3600, 1e-12)
	assert.InDelta(t, 0.00005, got.Lon*3600, 1e-12)
}

func TestCorrectionAtMissingCorner(t *testing.T) {
	tests := []struct {
		name    string
		drop    int
		corner  Corner
		missing mesh.Code
	}{
		{"sw", 0, SouthWest, mesh.Code{Lat: 0, Lon: 0}},
		{"se", 1, SouthEast, mesh.Code{Lat: 0, Lon: 1}},
		{"nw", 2, NorthWest, mesh.Code{Lat: 1, Lon: 0}},
		{"ne", 3, NorthEast, mesh.Code{Lat: 1, Lon: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := append([]Node{}, smallest[:tt.drop]...)
			nodes = append(nodes, smallest[tt.drop+1:]...)
			g, err := FromNodes("partial", nodes)
			require.NoError(t, err)

			_, err = g.CorrectionAt(coord.FromSecs(10, 15))
			var oerr *OutOfGridError
			require.ErrorAs(t, err, &oerr)
			assert.Equal(t, tt.corner, oerr.Corner)
			assert.Equal(t, tt.missing, oerr.Missing)
			assert.Equal(t, mesh.Code{}, oerr.Cell)
			assert.Contains(t, err.Error(), tt.name+" corner")
		})
	}
}

func TestCorrectionAtOutsideJapan(t *testing.T) {
	g, err := FromNodes("smallest", smallest)
	require.NoError(t, err)

	_, err = g.CorrectionAt(coord.New(48.85, 2.35))
	var oerr *OutOfGridError
	assert.ErrorAs(t, err, &oerr)
}

func TestNewMalformed(t *testing.T) {
	c := mesh.Of(coord.New(35.6581, 139.7414))
	tests := []struct {
		name    string
		records []Record
		field   string
	}{
		{"empty", nil, ""},
		{"non-numeric code", []Record{{Line: 3, MeshCode: "5339x589", DLat: "1.0", DLon: "1.0"}}, "MeshCode"},
		{"code out of range", []Record{{Line: 3, MeshCode: "53398589", DLat: "1.0", DLon: "1.0"}}, "MeshCode"},
		{"non-numeric dB", []Record{record(t, 3, c, "abc", "1.0")}, "dB"},
		{"too many decimals", []Record{record(t, 3, c, "1.0", "1.000001")}, "dL"},
		{"overflow", []Record{record(t, 3, c, "99999.99999", "1.0")}, "dB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New("bad", tt.records)
			assert.Nil(t, g)
			var merr *MalformedGridError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, "bad", merr.Grid)
			assert.Equal(t, tt.field, merr.Field)
			if tt.field != "" {
				assert.Equal(t, 3, merr.Line)
			}
		})
	}
}

func TestDuplicatePolicy(t *testing.T) {
	c := mesh.Of(coord.New(35.6581, 139.7414))
	records := []Record{
		record(t, 1, c, "1.00000", "2.00000"),
		record(t, 2, c, "3.00000", "4.00000"),
	}

	g, err := New("dups", records)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
	shift, ok := g.Lookup(c)
	require.True(t, ok)
	assert.Equal(t, Shift{Lat: 300000, Lon: 400000}, shift)

	_, err = New("dups", records, WithStrict())
	var merr *MalformedGridError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 2, merr.Line)
	assert.Equal(t, "duplicate mesh code", merr.Reason)
}

func TestNodesSortedAndBounds(t *testing.T) {
	shuffled := []Node{smallest[3], smallest[0], smallest[2], smallest[1]}
	g, err := FromNodes("smallest", shuffled)
	require.NoError(t, err)

	assert.Equal(t, smallest, g.Nodes())
	assert.Equal(t, Bounds{Min: mesh.Code{Lat: 0, Lon: 0}, Max: mesh.Code{Lat: 1, Lon: 1}}, g.Bounds())
	assert.Equal(t, coord.FromSecs(30, 45), g.Bounds().NorthEast())
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    int32
		wantErr bool
	}{
		{"12.79799", 1279799, false},
		{"-8.13354", -813354, false},
		{"0.0001", 10, false},
		{"+1", 100000, false},
		{"-0.00001", -1, false},
		{".5", 50000, false},
		{"  3.2 ", 320000, false},
		{"", 0, true},
		{"-", 0, true},
		{"1.2.3", 0, true},
		{"1e5", 0, true},
		{"0.000001", 0, true},
		{"21474.83648", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSeconds(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

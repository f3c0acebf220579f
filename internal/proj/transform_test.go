package proj

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/jgd-go/internal/coord"
	"github.com/wegman-software/jgd-go/internal/grid"
	"github.com/wegman-software/jgd-go/internal/mesh"
)

// syntheticGrid covers 35°N-36°N, 139°E-140°E with smoothly varying shifts
// of roughly the magnitude of the real grids around Tokyo.
func syntheticGrid(t *testing.T, name string, baseLat, baseLon int32) *grid.Grid {
	t.Helper()
	var nodes []grid.Node
	for lat := int32(35 * 120); lat <= 36*120; lat++ {
		for lon := int32(139 * 80); lon <= 140*80; lon++ {
			nodes = append(nodes, grid.Node{
				Code: mesh.Code{Lat: lat, Lon: lon},
				Shift: grid.Shift{
					Lat: baseLat + (lat-35*120)*12 + (lon-139*80)*5,
					Lon: baseLon - (lat-35*120)*7 + (lon-139*80)*9,
				},
			})
		}
	}
	g, err := grid.FromNodes(name, nodes)
	require.NoError(t, err)
	return g
}

func testChain(t *testing.T, opts ...ChainOption) *Chain {
	t.Helper()
	tky := syntheticGrid(t, grid.TKY2JGD, 1164188, -1159415)
	patch := syntheticGrid(t, grid.PatchJGD, -8586, 13588)
	return NewChain(tky, patch, opts...)
}

var tokyoStation = coord.New(35.6812, 139.7671)

func TestForwardAtNode(t *testing.T) {
	chain := testChain(t)
	code := mesh.Code{Lat: 35*120 + 30, Lon: 139*80 + 30}
	p := code.Origin()

	got, err := chain.TransformLatLon(p, Tokyo, JGD2000)
	require.NoError(t, err)

	shift := grid.Shift{Lat: 1164188 + 30*12 + 30*5, Lon: -1159415 - 30*7 + 30*9}.Degrees()
	assert.InDelta(t, p.Lat+shift.Lat, got.Lat, 1e-12)
	assert.InDelta(t, p.Lon+shift.Lon, got.Lon, 1e-12)
}

func TestIdentity(t *testing.T) {
	chain := NewChain(nil, nil)
	for _, d := range Datums {
		got, err := chain.Transform(Coordinate{LatLon: tokyoStation, Datum: d}, d)
		require.NoError(t, err)
		assert.Equal(t, tokyoStation, got.LatLon)
		assert.Equal(t, d, got.Datum)
	}
}

func TestChainedEqualsComposed(t *testing.T) {
	chain := testChain(t)

	direct, err := chain.Transform(TokyoCoord(tokyoStation), JGD2011)
	require.NoError(t, err)

	mid, err := chain.Transform(TokyoCoord(tokyoStation), JGD2000)
	require.NoError(t, err)
	composed, err := chain.Transform(mid, JGD2011)
	require.NoError(t, err)

	assert.Equal(t, composed, direct)
	assert.Equal(t, JGD2011, direct.Datum)
}

func TestRoundTrip(t *testing.T) {
	chain := testChain(t)
	// inverse error is bounded by the convergence threshold
	tolerance := 2 * DefaultTolerance / coord.SecsInDeg

	pairs := []struct{ a, b Datum }{
		{Tokyo, JGD2000},
		{JGD2000, JGD2011},
		{Tokyo, JGD2011},
		{JGD2011, Tokyo},
		{JGD2000, Tokyo},
	}
	points := []coord.LatLon{
		tokyoStation,
		coord.New(35.5, 139.5),
		coord.New(35.123456, 139.987654),
	}

	for _, pair := range pairs {
		for _, p := range points {
			t.Run(pair.a.String()+"-"+pair.b.String(), func(t *testing.T) {
				there, err := chain.TransformLatLon(p, pair.a, pair.b)
				require.NoError(t, err)
				back, err := chain.TransformLatLon(there, pair.b, pair.a)
				require.NoError(t, err)
				assert.InDelta(t, p.Lat, back.Lat, tolerance)
				assert.InDelta(t, p.Lon, back.Lon, tolerance)
			})
		}
	}
}

func TestInverseSatisfiesForward(t *testing.T) {
	chain := testChain(t)

	q, err := chain.TransformLatLon(tokyoStation, JGD2000, Tokyo)
	require.NoError(t, err)

	shift, err := chain.Path(Tokyo, JGD2000)[0].Grid.CorrectionAt(q)
	require.NoError(t, err)
	assert.InDelta(t, tokyoStation.Lat, q.Add(shift).Lat, DefaultTolerance/coord.SecsInDeg)
	assert.InDelta(t, tokyoStation.Lon, q.Add(shift).Lon, DefaultTolerance/coord.SecsInDeg)
}

func TestOutOfCoverage(t *testing.T) {
	chain := testChain(t)

	_, err := chain.TransformLatLon(coord.New(43.06, 141.35), Tokyo, JGD2011)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfCoverage)

	var terr *TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, OutOfCoverage, terr.Kind)
	assert.Equal(t, Tokyo, terr.From)
	assert.Equal(t, JGD2000, terr.To)

	var oerr *grid.OutOfGridError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, grid.TKY2JGD, oerr.Grid)
}

func TestOutOfCoverageOnSecondStep(t *testing.T) {
	tky := syntheticGrid(t, grid.TKY2JGD, 1164188, -1159415)
	// PatchJGD coverage is limited to one cell near Sendai
	patch, err := grid.FromNodes(grid.PatchJGD, []grid.Node{
		{Code: mesh.Code{Lat: 4591, Lon: 11269}},
		{Code: mesh.Code{Lat: 4591, Lon: 11270}},
		{Code: mesh.Code{Lat: 4592, Lon: 11269}},
		{Code: mesh.Code{Lat: 4592, Lon: 11270}},
	})
	require.NoError(t, err)
	chain := NewChain(tky, patch)

	_, err = chain.Transform(TokyoCoord(tokyoStation), JGD2011)
	var terr *TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, JGD2000, terr.From)
	assert.Equal(t, JGD2011, terr.To)
	assert.Contains(t, err.Error(), "JGD2000 -> JGD2011")
}

func TestGridNotLoaded(t *testing.T) {
	chain := NewChain(nil, syntheticGrid(t, grid.PatchJGD, 0, 0))

	_, err := chain.TransformLatLon(tokyoStation, Tokyo, JGD2000)
	assert.ErrorIs(t, err, ErrGridNotLoaded)

	_, err = chain.TransformLatLon(tokyoStation, JGD2000, Tokyo)
	assert.ErrorIs(t, err, ErrGridNotLoaded)

	_, err = chain.TransformLatLon(tokyoStation, JGD2000, JGD2011)
	assert.NoError(t, err)
}

func TestNoConvergence(t *testing.T) {
	chain := testChain(t, WithMaxIterations(1))

	_, err := chain.TransformLatLon(tokyoStation, JGD2000, Tokyo)
	assert.ErrorIs(t, err, ErrNoConvergence)
	assert.False(t, errors.Is(err, ErrOutOfCoverage))

	// forward steps never iterate
	_, err = chain.TransformLatLon(tokyoStation, Tokyo, JGD2000)
	assert.NoError(t, err)
}

func TestInvalidInput(t *testing.T) {
	chain := testChain(t)

	_, err := chain.TransformLatLon(coord.New(139.7671, 35.6812), Tokyo, JGD2000)
	var derr *coord.DegreesError
	require.ErrorAs(t, err, &derr)
	assert.True(t, derr.PossiblyReversed)

	_, err = chain.TransformLatLon(tokyoStation, Datum(7), JGD2000)
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	chain := testChain(t)

	tests := []struct {
		from, to Datum
		want     [][2]Datum
	}{
		{Tokyo, Tokyo, nil},
		{Tokyo, JGD2000, [][2]Datum{{Tokyo, JGD2000}}},
		{Tokyo, JGD2011, [][2]Datum{{Tokyo, JGD2000}, {JGD2000, JGD2011}}},
		{JGD2011, Tokyo, [][2]Datum{{JGD2011, JGD2000}, {JGD2000, Tokyo}}},
		{JGD2011, JGD2000, [][2]Datum{{JGD2011, JGD2000}}},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"-"+tt.to.String(), func(t *testing.T) {
			var got [][2]Datum
			for _, s := range chain.Path(tt.from, tt.to) {
				got = append(got, [2]Datum{s.From, s.To})
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, grid.PatchJGD, chain.Path(JGD2011, JGD2000)[0].Grid.Name())
}

func TestConcurrentUse(t *testing.T) {
	chain := testChain(t)
	want, err := chain.TransformLatLon(tokyoStation, JGD2011, Tokyo)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]coord.LatLon, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = chain.TransformLatLon(tokyoStation, JGD2011, Tokyo)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestParseDatum(t *testing.T) {
	tests := []struct {
		in      string
		want    Datum
		wantErr bool
	}{
		{"tokyo", Tokyo, false},
		{"EPSG:4301", Tokyo, false},
		{"JGD2000", JGD2000, false},
		{"4612", JGD2000, false},
		{" jgd2011 ", JGD2011, false},
		{"epsg:6668", JGD2011, false},
		{"wgs84", 0, true},
		{"4326", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDatum(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 6668, JGD2011.EPSG())
	assert.Equal(t, "Tokyo", Tokyo.String())
}

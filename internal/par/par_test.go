package par

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/jgd-go/internal/grid"
)

const tky2jgdSample = "JGD2000 TKY2JGD Ver.2.1.1\r\n" +
	"MeshCode   dB(sec)   dL(sec)\r\n" +
	"46303582  12.79799  -8.13354\r\n" +
	"46303583  12.79879  -8.13847\r\n" +
	"\r\n" +
	"46303592  12.80074  -8.13402\r\n"

func TestRead(t *testing.T) {
	records, err := Read(context.Background(), strings.NewReader(tky2jgdSample))
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, grid.Record{Line: 3, MeshCode: "46303582", DLat: "12.79799", DLon: "-8.13354"}, records[0])
	assert.Equal(t, 6, records[2].Line)
}

func TestReadPatchJGDExtraColumn(t *testing.T) {
	input := `touhokutaiheiyouoki2011 Ver.4.0.0
  MeshCode   dB(sec)   dL(sec)   dH(m)
57404112  -0.08586   0.13588   0.000
`
	records, err := Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0.13588", records[0].DLon)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no header", "46303582  12.79799  -8.13354\n"},
		{"short row", "MeshCode dB(sec) dL(sec)\n46303582  12.79799\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(context.Background(), strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}

	_, err := Read(context.Background(), strings.NewReader("MeshCode dB(sec) dL(sec)\n46303582  12.79799\n"))
	var merr *grid.MalformedGridError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 2, merr.Line)
}

func TestReadBuildsGrid(t *testing.T) {
	records, err := Read(context.Background(), strings.NewReader(tky2jgdSample))
	require.NoError(t, err)

	g, err := grid.New(grid.TKY2JGD, records)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
}

func TestReadCancelled(t *testing.T) {
	var b strings.Builder
	b.WriteString("MeshCode dB(sec) dL(sec)\n")
	for i := 0; i < ctxCheckLines*2; i++ {
		b.WriteString("46303582  12.79799  -8.13354\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Read(ctx, strings.NewReader(b.String()))
	assert.ErrorIs(t, err, context.Canceled)
}

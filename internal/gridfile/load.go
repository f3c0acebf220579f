package gridfile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/jgd-go/internal/grid"
	"github.com/wegman-software/jgd-go/internal/logger"
	"github.com/wegman-software/jgd-go/internal/par"
)

// NameFromPath derives a grid name from a parameter file name,
// e.g. "TKY2JGD.par" -> "TKY2JGD"
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsParFile reports whether path looks like a GSI text parameter file
func IsParFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".par")
}

// Load reads a grid from either a GSI .par text file or a compiled
// grid file, chosen by extension.
func Load(ctx context.Context, path string, opts ...grid.Option) (*grid.Grid, error) {
	log := logger.Get()
	start := time.Now()

	var (
		g   *grid.Grid
		err error
	)
	if IsParFile(path) {
		g, err = loadPar(ctx, path, opts)
	} else {
		g, err = Open(path, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load grid %s: %w", path, err)
	}

	b := g.Bounds()
	log.Debug("Grid loaded",
		zap.String("path", path),
		zap.String("name", g.Name()),
		zap.Int("nodes", g.Len()),
		zap.Stringer("south_west", b.SouthWest()),
		zap.Stringer("north_east", b.NorthEast()),
		zap.Duration("duration", time.Since(start)),
	)
	return g, nil
}

func loadPar(ctx context.Context, path string, opts []grid.Option) (*grid.Grid, error) {
	records, err := par.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return grid.New(NameFromPath(path), records, opts...)
}

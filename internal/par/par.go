// Package par tokenizes GSI parameter files (TKY2JGD.par, PatchJGD
// *.par) into grid records.
//
// Format:
//
//	JGD2000 TKY2JGD Ver.2.1.1
//	MeshCode   dB(sec)   dL(sec)
//	46303582  12.79799  -8.13354
//	...
//
// Everything before the MeshCode header is free text and is skipped.
package par

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wegman-software/jgd-go/internal/grid"
)

const (
	headerPrefix = "MeshCode"
	minColumns   = 3

	// how often ctx is checked while reading
	ctxCheckLines = 4096
)

// ErrNoHeader is returned when the MeshCode header line never appears
var ErrNoHeader = errors.New("par: missing MeshCode header line")

// Read tokenizes records from r. Lines may end in CRLF or LF.
// Columns after dL (dH in some PatchJGD files) are ignored.
func Read(ctx context.Context, r io.Reader) ([]grid.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []grid.Record
	inBody := false
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		if lineNo%ctxCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if !inBody {
			if strings.HasPrefix(strings.TrimSpace(line), headerPrefix) {
				inBody = true
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < minColumns {
			return nil, &grid.MalformedGridError{
				Line:   lineNo,
				Value:  line,
				Reason: fmt.Sprintf("expected %d columns, got %d", minColumns, len(fields)),
			}
		}

		records = append(records, grid.Record{
			Line:     lineNo,
			MeshCode: fields[0],
			DLat:     fields[1],
			DLon:     fields[2],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading parameter file: %w", err)
	}
	if !inBody {
		return nil, ErrNoHeader
	}

	return records, nil
}

// ReadFile reads and tokenizes a parameter file from disk
func ReadFile(ctx context.Context, filename string) ([]grid.Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(ctx, f)
}

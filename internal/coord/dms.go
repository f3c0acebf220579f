package coord

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dms is an angle in degrees, minutes and seconds.
// D carries the sign; M and S are non-negative unless D is zero.
type Dms struct {
	D int
	M int
	S float64
}

// DmsFromDegrees splits decimal degrees into degrees, minutes, seconds.
// Seconds are rounded to 1e-5 before splitting so S never reaches 60.
func DmsFromDegrees(deg float64) Dms {
	total := math.Round(math.Abs(deg)*SecsInDeg*1e5) / 1e5
	a := Dms{
		D: int(total / SecsInDeg),
		M: int(math.Mod(total, SecsInDeg) / 60),
		S: math.Mod(total, 60),
	}
	if deg < 0 {
		switch {
		case a.D != 0:
			a.D = -a.D
		case a.M != 0:
			a.M = -a.M
		default:
			a.S = -a.S
		}
	}
	return a
}

// Degrees converts back to decimal degrees
func (a Dms) Degrees() float64 {
	sign := 1.0
	if a.D < 0 || (a.D == 0 && (a.M < 0 || (a.M == 0 && a.S < 0))) {
		sign = -1
	}
	return sign * (math.Abs(float64(a.D)) + math.Abs(float64(a.M))/60 + math.Abs(a.S)/SecsInDeg)
}

// String formats as D°M'S"
func (a Dms) String() string {
	return fmt.Sprintf("%d°%02d'%08.5f\"", a.D, a.M, a.S)
}

// ParseAngle accepts decimal degrees ("35.6581") or colon separated
// degrees, minutes and seconds ("35:39:29.1572").
func ParseAngle(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid angle %q: %w", s, err)
		}
		return v, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid angle %q: too many components", s)
	}
	neg := strings.HasPrefix(parts[0], "-")

	var dms Dms
	for i, part := range parts {
		if i > 0 && (strings.HasPrefix(part, "-") || strings.HasPrefix(part, "+")) {
			return 0, fmt.Errorf("invalid angle %q: only the degrees may carry a sign", s)
		}
		switch i {
		case 0, 1:
			n, err := strconv.Atoi(strings.TrimPrefix(part, "-"))
			if err != nil {
				return 0, fmt.Errorf("invalid angle component %q: %w", part, err)
			}
			if i == 0 {
				dms.D = n
			} else {
				dms.M = n
			}
		case 2:
			f, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid angle component %q: %w", part, err)
			}
			dms.S = f
		}
	}
	if dms.M >= 60 || dms.S >= 60 || dms.M < 0 || dms.S < 0 {
		return 0, fmt.Errorf("invalid angle %q: minutes and seconds must be in [0, 60)", s)
	}

	deg := dms.Degrees()
	if neg {
		deg = -deg
	}
	return deg, nil
}

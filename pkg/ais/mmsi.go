package ais

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/travigo/vesseltracker/pkg/util"
)

var ErrInvalidMMSI = errors.New("mmsi must be exactly 9 ASCII digits")

// MMSI is the Maritime Mobile Service Identity of a vessel
type MMSI string

func ParseMMSI(s string) (MMSI, error) {
	if len(s) != 9 || !util.AllRunes(s, util.IsASCIIDigit) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMMSI, s)
	}

	return MMSI(s), nil
}

// MMSIFromInt formats n without padding, so numbers with fewer than nine
// digits are rejected.
func MMSIFromInt(n int64) (MMSI, error) {
	return ParseMMSI(strconv.FormatInt(n, 10))
}

func (m MMSI) String() string {
	return string(m)
}

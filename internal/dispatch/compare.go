package dispatch

import (
	"github.com/nerrad567/lumen-core/internal/transport"
)

// Default comparison tolerances.
const (
	DefaultBrightnessTolerance   = 5   // percentage points
	DefaultColorChannelTolerance = 10  // per channel, 0-255
	DefaultColorTempTolerance    = 100 // Kelvin
)

// Tolerances configures the maximum numeric deviation still counted as
// a match. Bounds are inclusive: a deviation equal to the tolerance
// matches.
type Tolerances struct {
	Brightness   int
	ColorChannel int
	ColorTemp    int
}

// DefaultTolerances returns the standard tolerance configuration.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Brightness:   DefaultBrightnessTolerance,
		ColorChannel: DefaultColorChannelTolerance,
		ColorTemp:    DefaultColorTempTolerance,
	}
}

// Comparison is the field-level result of comparing desired against
// observed state.
type Comparison struct {
	Matched    []string
	Mismatched []string
}

// FullMatch reports whether every asserted field matched.
func (c Comparison) FullMatch() bool {
	return len(c.Mismatched) == 0 && len(c.Matched) > 0
}

// Compare checks each asserted desired field against the observed
// snapshot. It owns the semantic unit mapping exclusively: power as
// boolean, brightness as percentage, colour channels 0-255, colour
// temperature in Kelvin.
//
// Desired fields absent from the observation count as mismatched, never
// matched: missing data must not be treated as success. Scene is never
// observable on either transport, so an asserted scene always counts as
// mismatched here.
//
// Pure function: deterministic for the same inputs and tolerances.
func Compare(desired transport.DesiredState, observed *transport.ObservedState, tol Tolerances) Comparison {
	var c Comparison

	record := func(field string, matched bool) {
		if matched {
			c.Matched = append(c.Matched, field)
		} else {
			c.Mismatched = append(c.Mismatched, field)
		}
	}

	if desired.Power != nil {
		matched := observed != nil && observed.Power != nil && *observed.Power == *desired.Power
		record(transport.FieldPower, matched)
	}

	if desired.Brightness != nil {
		matched := observed != nil && observed.Brightness != nil &&
			withinTolerance(*desired.Brightness, *observed.Brightness, tol.Brightness)
		record(transport.FieldBrightness, matched)
	}

	if desired.Color != nil {
		matched := observed != nil && observed.Color != nil &&
			withinTolerance(int(desired.Color.R), int(observed.Color.R), tol.ColorChannel) &&
			withinTolerance(int(desired.Color.G), int(observed.Color.G), tol.ColorChannel) &&
			withinTolerance(int(desired.Color.B), int(observed.Color.B), tol.ColorChannel)
		record(transport.FieldColor, matched)
	}

	if desired.ColorTempK != nil {
		matched := observed != nil && observed.ColorTempK != nil &&
			withinTolerance(*desired.ColorTempK, *observed.ColorTempK, tol.ColorTemp)
		record(transport.FieldColorTemp, matched)
	}

	if desired.Scene != nil {
		// Neither protocol reports the active scene
		record(transport.FieldScene, false)
	}

	return c
}

// withinTolerance reports whether |a-b| <= tol.
func withinTolerance(a, b, tol int) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tol
}

// Package quantity represents physical magnitudes tagged with a unit.
//
// Only time is fully convertible: operators that take a duration accept a
// Quantity and call Duration. Other units (volts, amps, degrees, ...) are
// carried through records as-is and convert only between scales of the
// same dimension.
package quantity

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/kbukum/pipecat/errors"
)

// Dimension groups units that can be converted into one another.
type Dimension string

const (
	DimensionTime        Dimension = "time"
	DimensionVoltage     Dimension = "voltage"
	DimensionCurrent     Dimension = "current"
	DimensionCharge      Dimension = "charge"
	DimensionTemperature Dimension = "temperature"
	DimensionAngle       Dimension = "angle"
	DimensionLength      Dimension = "length"
	DimensionSpeed       Dimension = "speed"
	DimensionNone        Dimension = ""
)

// Unit is a canonical unit symbol such as "s", "min" or "mV".
type Unit string

const (
	Nanosecond  Unit = "ns"
	Microsecond Unit = "us"
	Millisecond Unit = "ms"
	Second      Unit = "s"
	Minute      Unit = "min"
	Hour        Unit = "h"
	Day         Unit = "d"

	Volt       Unit = "V"
	Millivolt  Unit = "mV"
	Ampere     Unit = "A"
	Milliamp   Unit = "mA"
	AmpHour    Unit = "Ah"
	MilliampHr Unit = "mAh"
	Celsius    Unit = "degC"
	Degree     Unit = "deg"
	Meter      Unit = "m"
	Kilometer  Unit = "km"
	Knot       Unit = "knot"
	MeterPerS  Unit = "m/s"
)

type unitInfo struct {
	dim   Dimension
	scale float64 // multiplier to the dimension's base unit
}

var units = map[Unit]unitInfo{
	Nanosecond:  {DimensionTime, 1e-9},
	Microsecond: {DimensionTime, 1e-6},
	Millisecond: {DimensionTime, 1e-3},
	Second:      {DimensionTime, 1},
	Minute:      {DimensionTime, 60},
	Hour:        {DimensionTime, 3600},
	Day:         {DimensionTime, 86400},
	Volt:        {DimensionVoltage, 1},
	Millivolt:   {DimensionVoltage, 1e-3},
	Ampere:      {DimensionCurrent, 1},
	Milliamp:    {DimensionCurrent, 1e-3},
	AmpHour:     {DimensionCharge, 1},
	MilliampHr:  {DimensionCharge, 1e-3},
	Celsius:     {DimensionTemperature, 1},
	Degree:      {DimensionAngle, 1},
	Meter:       {DimensionLength, 1},
	Kilometer:   {DimensionLength, 1e3},
	MeterPerS:   {DimensionSpeed, 1},
	Knot:        {DimensionSpeed, 1852.0 / 3600.0},
}

var aliases = map[string]Unit{
	"nanosecond": Nanosecond, "nanoseconds": Nanosecond,
	"µs": Microsecond, "microsecond": Microsecond, "microseconds": Microsecond,
	"millisecond": Millisecond, "milliseconds": Millisecond, "msec": Millisecond,
	"sec": Second, "second": Second, "seconds": Second, "secs": Second,
	"mins": Minute, "minute": Minute, "minutes": Minute,
	"hr": Hour, "hrs": Hour, "hour": Hour, "hours": Hour,
	"day": Day, "days": Day,
	"volt": Volt, "volts": Volt,
	"millivolt": Millivolt, "millivolts": Millivolt,
	"amp": Ampere, "amps": Ampere, "ampere": Ampere, "amperes": Ampere,
	"milliamp": Milliamp, "milliamps": Milliamp,
	"degc": Celsius, "celsius": Celsius,
	"degree": Degree, "degrees": Degree,
	"meter": Meter, "meters": Meter, "metre": Meter, "metres": Meter,
	"kilometer": Kilometer, "kilometers": Kilometer,
	"knots": Knot,
}

// LookupUnit resolves a unit symbol or long name. Unknown names are
// returned unchanged with ok=false so they can still be carried opaquely.
func LookupUnit(name string) (Unit, bool) {
	name = strings.TrimSpace(name)
	if _, ok := units[Unit(name)]; ok {
		return Unit(name), true
	}
	if u, ok := aliases[strings.ToLower(name)]; ok {
		return u, true
	}
	return Unit(name), false
}

// Dimension returns the dimension of u, or DimensionNone if u is unknown.
func (u Unit) Dimension() Dimension {
	return units[u].dim
}

// Quantity is a magnitude paired with a unit.
type Quantity struct {
	Magnitude float64 `json:"value"`
	Unit      Unit    `json:"units"`
}

// New creates a quantity, resolving long unit names such as "minutes".
func New(magnitude float64, unit string) Quantity {
	u, _ := LookupUnit(unit)
	return Quantity{Magnitude: magnitude, Unit: u}
}

// Of converts a time.Duration to a quantity in seconds.
func Of(d time.Duration) Quantity {
	return Quantity{Magnitude: d.Seconds(), Unit: Second}
}

// To converts q to the given unit.
func (q Quantity) To(unit Unit) (Quantity, error) {
	if q.Unit == unit {
		return q, nil
	}
	from, okFrom := units[q.Unit]
	to, okTo := units[unit]
	if !okFrom || !okTo || from.dim != to.dim {
		return Quantity{}, errors.InvalidInput("unit",
			fmt.Sprintf("cannot convert %s to %s", q.Unit, unit))
	}
	return Quantity{Magnitude: q.Magnitude * from.scale / to.scale, Unit: unit}, nil
}

// Seconds returns the magnitude of a time quantity in seconds.
func (q Quantity) Seconds() (float64, error) {
	s, err := q.To(Second)
	if err != nil {
		return 0, err
	}
	return s.Magnitude, nil
}

// Duration converts a time quantity to a time.Duration.
func (q Quantity) Duration() (time.Duration, error) {
	s, err := q.Seconds()
	if err != nil {
		return 0, err
	}
	return time.Duration(math.Round(s * float64(time.Second))), nil
}

// String renders the quantity as "<magnitude> <unit>".
func (q Quantity) String() string {
	return strconv.FormatFloat(q.Magnitude, 'g', -1, 64) + " " + string(q.Unit)
}

// Parse reads "3 minutes", "0.5s", "250 ms" or a Go duration string such
// as "1m30s".
func Parse(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Quantity{}, errors.InvalidFormat("quantity", "<number> <unit>")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return Of(d), nil
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !(unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' || r == 'e' || r == 'E')
	})
	if split <= 0 {
		return Quantity{}, errors.InvalidFormat("quantity", "<number> <unit>")
	}
	// An exponent marker directly followed by letters belongs to the unit.
	for split > 0 && (s[split-1] == 'e' || s[split-1] == 'E') {
		split--
	}
	magnitude, err := strconv.ParseFloat(s[:split], 64)
	if err != nil {
		return Quantity{}, errors.InvalidFormat("quantity", "<number> <unit>").WithCause(err)
	}
	unit, ok := LookupUnit(s[split:])
	if !ok {
		return Quantity{}, errors.InvalidInput("unit", fmt.Sprintf("unknown unit %q", strings.TrimSpace(s[split:])))
	}
	return Quantity{Magnitude: magnitude, Unit: unit}, nil
}

// ParseDuration parses s with Parse and converts the result to a duration.
func ParseDuration(s string) (time.Duration, error) {
	q, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return q.Duration()
}

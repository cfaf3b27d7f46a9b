package domain

import (
	"fmt"
	"strings"

	"github.com/martinlindhe/unit"
)

// ConversionError signals that a value could not be converted between two
// unit expressions, either because a unit is unparsable or because the
// units are dimensionally incompatible.
type ConversionError struct {
	From string
	To   string
	Msg  string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %q: %s", e.From, e.To, e.Msg)
}

// dimension groups units that are mutually convertible.
type dimension int

const (
	dimTemperature dimension = iota
	dimLength
	dimSpeed
	dimPressure
	dimRatio
	dimAngle
	dimIrradiance
)

// unitDef converts between a unit and its dimension's base unit
// (kelvin, meter, m/s, pascal; ratio/angle/irradiance are identity).
type unitDef struct {
	dim      dimension
	toBase   func(float64) float64
	fromBase func(float64) float64
}

func identity(v float64) float64 { return v }

var units = map[string]unitDef{
	"celsius": {dimTemperature,
		func(v float64) float64 { return unit.FromCelsius(v).Kelvin() },
		func(v float64) float64 { return unit.FromKelvin(v).Celsius() }},
	"fahrenheit": {dimTemperature,
		func(v float64) float64 { return unit.FromFahrenheit(v).Kelvin() },
		func(v float64) float64 { return unit.FromKelvin(v).Fahrenheit() }},
	"kelvin": {dimTemperature, identity, identity},

	"millimeter": {dimLength,
		func(v float64) float64 { return (unit.Length(v) * unit.Millimeter).Meters() },
		func(v float64) float64 { return (unit.Length(v) * unit.Meter).Millimeters() }},
	"centimeter": {dimLength,
		func(v float64) float64 { return (unit.Length(v) * unit.Centimeter).Meters() },
		func(v float64) float64 { return (unit.Length(v) * unit.Meter).Centimeters() }},
	"meter": {dimLength, identity, identity},
	"inch": {dimLength,
		func(v float64) float64 { return (unit.Length(v) * unit.Inch).Meters() },
		func(v float64) float64 { return (unit.Length(v) * unit.Meter).Inches() }},

	"kilometers per hour": {dimSpeed,
		func(v float64) float64 { return (unit.Speed(v) * unit.KilometersPerHour).MetersPerSecond() },
		func(v float64) float64 { return (unit.Speed(v) * unit.MetersPerSecond).KilometersPerHour() }},
	"meters per second": {dimSpeed, identity, identity},
	"miles per hour": {dimSpeed,
		func(v float64) float64 { return (unit.Speed(v) * unit.MilesPerHour).MetersPerSecond() },
		func(v float64) float64 { return (unit.Speed(v) * unit.MetersPerSecond).MilesPerHour() }},
	"knot": {dimSpeed,
		func(v float64) float64 { return (unit.Speed(v) * unit.Knot).MetersPerSecond() },
		func(v float64) float64 { return (unit.Speed(v) * unit.MetersPerSecond).Knots() }},

	"pascal": {dimPressure, identity, identity},
	"hectopascal": {dimPressure,
		func(v float64) float64 { return (unit.Pressure(v) * unit.Hectopascal).Pascals() },
		func(v float64) float64 { return (unit.Pressure(v) * unit.Pascal).Hectopascals() }},
	"kilopascal": {dimPressure,
		func(v float64) float64 { return (unit.Pressure(v) * unit.Kilopascal).Pascals() },
		func(v float64) float64 { return (unit.Pressure(v) * unit.Pascal).Kilopascals() }},
	"millibar": {dimPressure,
		func(v float64) float64 { return (unit.Pressure(v) * unit.Millibar).Pascals() },
		func(v float64) float64 { return (unit.Pressure(v) * unit.Pascal).Millibars() }},

	"percent":                {dimRatio, identity, identity},
	"degree":                 {dimAngle, identity, identity},
	"watts per square meter": {dimIrradiance, identity, identity},
}

// spellings maps provider unit vocabulary to the canonical table keys.
// Providers are wildly inconsistent: "% RH", "°C", "mb", "Deg" all
// appear in real feeds.
var spellings = map[string]string{
	"celsius": "celsius", "°c": "celsius", "c": "celsius",
	"deg c": "celsius", "degc": "celsius", "degrees celsius": "celsius",
	"fahrenheit": "fahrenheit", "°f": "fahrenheit", "f": "fahrenheit",
	"deg f":  "fahrenheit",
	"kelvin": "kelvin", "k": "kelvin",

	"mm": "millimeter", "millimeter": "millimeter", "millimetre": "millimeter",
	"millimeters": "millimeter", "millimetres": "millimeter",
	"cm": "centimeter", "centimeter": "centimeter", "centimetre": "centimeter",
	"m": "meter", "meter": "meter", "metre": "meter",
	"meters": "meter", "metres": "meter",
	"in": "inch", "inch": "inch", "inches": "inch",

	"km/h": "kilometers per hour", "kph": "kilometers per hour",
	"km/hr": "kilometers per hour", "kilometers per hour": "kilometers per hour",
	"m/s": "meters per second", "mps": "meters per second",
	"meters per second": "meters per second",
	"mph":               "miles per hour", "miles per hour": "miles per hour",
	"knot": "knot", "knots": "knot", "kt": "knot",

	"pa": "pascal", "pascal": "pascal",
	"hpa": "hectopascal", "hectopascal": "hectopascal",
	"kpa": "kilopascal", "kilopascal": "kilopascal",
	"mb": "millibar", "mbar": "millibar", "millibar": "millibar",
	"millibars": "millibar",

	"%": "percent", "percent": "percent", "% rh": "percent", "%rh": "percent",
	"degree": "degree", "degrees": "degree", "deg": "degree",
	"w/m2": "watts per square meter", "w/m²": "watts per square meter",
	"watts per square meter": "watts per square meter",
}

// parseUnit resolves a unit expression to its table entry.
func parseUnit(expr string) (unitDef, string, error) {
	norm := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(expr))), " ")
	key, ok := spellings[norm]
	if !ok {
		return unitDef{}, "", fmt.Errorf("unknown unit %q", expr)
	}
	return units[key], key, nil
}

// Convert translates value from one unit expression to another. It returns
// a *ConversionError when either unit is unparsable or the two are
// dimensionally incompatible.
func Convert(value float64, from, to string) (float64, error) {
	src, srcKey, err := parseUnit(from)
	if err != nil {
		return 0, &ConversionError{From: from, To: to, Msg: err.Error()}
	}
	dst, dstKey, err := parseUnit(to)
	if err != nil {
		return 0, &ConversionError{From: from, To: to, Msg: err.Error()}
	}
	if src.dim != dst.dim {
		return 0, &ConversionError{From: from, To: to, Msg: "incompatible dimensions"}
	}
	if srcKey == dstKey {
		return value, nil
	}
	return dst.fromBase(src.toBase(value)), nil
}

// CheckUnits reconciles an observed value with the variable's canonical
// unit. Unit-less data (either side empty) passes through by convention;
// matching units pass through; differing units are converted. A failed
// conversion means the data's units cannot be confirmed and the caller
// must reject the record.
func CheckUnits(value float64, observed, canonical string) (float64, error) {
	obs := strings.TrimSpace(observed)
	canon := strings.TrimSpace(canonical)
	if obs == "" || canon == "" {
		return value, nil
	}
	return Convert(value, obs, canon)
}

package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/quantity"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/transform"
)

// Fields written by ICharger208B.
var (
	ChargerMode                = record.Path("charger", "mode")
	ChargerSupply              = record.Path("charger", "supply")
	ChargerInternalTemperature = record.Path("charger", "temperature", "internal")
	ChargerExternalTemperature = record.Path("charger", "temperature", "external")
	BatteryVoltage             = record.Path("battery", "voltage")
	BatteryCurrent             = record.Path("battery", "current")
	BatteryCharge              = record.Path("battery", "charge")
)

var chargerModes = map[int]string{
	1:  "charge",
	2:  "discharge",
	3:  "monitor",
	4:  "wait",
	5:  "motor",
	6:  "finished",
	7:  "error",
	8:  "trickle-LIxx",
	9:  "trickle-NIxx",
	10: "foam-cut",
	11: "info",
	12: "discharge-external",
}

// icharger status lines carry at least this many semicolon separated
// fields; the last one used is the charge counter at index 16.
const chargerFields = 17

// ICharger208B decodes the status lines an iCharger 208B writes to its
// serial port while charging or discharging. Lines are read from the
// "string" field unless WithKey says otherwise.
func ICharger208B(p *pipeline.Pipeline[*record.Record], opts ...Option) *pipeline.Pipeline[*record.Record] {
	o := newOptions("icharger208b", transform.DefaultPayloadKey, opts)
	return decodeEach(p, o, func(line string) (*record.Record, error) {
		return decodeCharger(line, o)
	})
}

func decodeCharger(line string, o *options) (*record.Record, error) {
	raw := strings.Split(strings.TrimSpace(line), ";")
	if len(raw) < chargerFields {
		return nil, fmt.Errorf("status line has %d fields, want at least %d", len(raw), chargerFields)
	}
	code, err := strconv.Atoi(raw[1])
	if err != nil {
		return nil, fmt.Errorf("mode %q: %w", raw[1], err)
	}
	mode, ok := chargerModes[code]
	if !ok {
		return nil, fmt.Errorf("unknown mode %d", code)
	}

	values := make(map[int]float64, 6)
	for _, i := range []int{3, 4, 5, 14, 15, 16} {
		v, err := strconv.ParseFloat(raw[i], 64)
		if err != nil {
			return nil, fmt.Errorf("field %d %q: %w", i, raw[i], err)
		}
		values[i] = v
	}

	r := record.New()
	record.AddField(o.log, r, ChargerMode, mode)
	record.AddField(o.log, r, ChargerSupply, quantity.Quantity{Magnitude: values[3] / 1000, Unit: quantity.Volt})
	record.AddField(o.log, r, BatteryVoltage, quantity.Quantity{Magnitude: values[4] / 1000, Unit: quantity.Volt})
	record.AddField(o.log, r, BatteryCurrent, quantity.Quantity{Magnitude: values[5] * 10, Unit: quantity.Milliamp})
	record.AddField(o.log, r, ChargerInternalTemperature, quantity.Quantity{Magnitude: values[14] / 10, Unit: quantity.Celsius})
	record.AddField(o.log, r, ChargerExternalTemperature, quantity.Quantity{Magnitude: values[15] / 10, Unit: quantity.Celsius})
	record.AddField(o.log, r, BatteryCharge, quantity.Quantity{Magnitude: values[16], Unit: quantity.MilliampHr})
	return r, nil
}

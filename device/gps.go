package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adrianmo/go-nmea"

	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/quantity"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/transform"
)

// NMEA decodes GPS and compass sentences. GGA, GLL, RMC, TXT and HDG
// sentences are broken out into fields; any other sentence go-nmea knows
// yields a record holding only its "id". Lines that are not NMEA, fail
// their checksum or use an unknown sentence type are logged and dropped.
// Sentences are read from the "string" field unless WithKey says otherwise.
func NMEA(p *pipeline.Pipeline[*record.Record], opts ...Option) *pipeline.Pipeline[*record.Record] {
	o := newOptions("nmea", transform.DefaultPayloadKey, opts)
	return decodeEach(p, o, func(line string) (*record.Record, error) {
		return decodeNMEA(line, o)
	})
}

func decodeNMEA(line string, o *options) (*record.Record, error) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return nil, err
	}

	r := record.New()
	add := func(key string, v any) { record.AddField(o.log, r, record.Key(key), v) }
	degrees := func(v float64) quantity.Quantity { return quantity.Quantity{Magnitude: v, Unit: quantity.Degree} }
	meters := func(v float64) quantity.Quantity { return quantity.Quantity{Magnitude: v, Unit: quantity.Meter} }

	add("id", s.Prefix())
	switch m := s.(type) {
	case nmea.GGA:
		quality, err := strconv.Atoi(m.FixQuality)
		if err != nil {
			return nil, fmt.Errorf("fix quality %q: %w", m.FixQuality, err)
		}
		add("time", m.Time.String())
		add("latitude", degrees(m.Latitude))
		add("longitude", degrees(m.Longitude))
		add("quality", quality)
		add("satellites", int(m.NumSatellites))
		add("dop", m.HDOP)
		add("altitude", meters(m.Altitude))
		add("geoid-height", meters(m.Separation))
	case nmea.GLL:
		add("latitude", degrees(m.Latitude))
		add("longitude", degrees(m.Longitude))
		add("time", m.Time.String())
		add("active", m.Validity == "A")
	case nmea.RMC:
		add("time", m.Time.String())
		add("active", m.Validity == "A")
		add("latitude", degrees(m.Latitude))
		add("longitude", degrees(m.Longitude))
		add("speed", quantity.Quantity{Magnitude: m.Speed, Unit: quantity.Knot})
		add("track", degrees(m.Course))
		add("date", m.Date.String())
		add("variation", degrees(m.Variation))
	case nmea.TXT:
		add("text", m.Message)
	case nmea.HDG:
		add("heading", degrees(m.Heading))
		add("variation", degrees(m.Variation))
	}
	return r, nil
}

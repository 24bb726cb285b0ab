package device

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/quantity"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/transform"
)

func lines(ls ...string) *pipeline.Pipeline[*record.Record] {
	rs := make([]*record.Record, len(ls))
	for i, l := range ls {
		rs[i] = record.Of("string", l)
	}
	return pipeline.FromSlice(rs)
}

func collect(t *testing.T, p *pipeline.Pipeline[*record.Record]) []*record.Record {
	t.Helper()
	out, err := pipeline.Collect(context.Background(), p)
	require.NoError(t, err)
	return out
}

func debugLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.NewWithWriter(&logger.Config{Level: "debug", Format: logger.FormatJSON}, "test", buf)
}

func assertQuantity(t *testing.T, r *record.Record, key record.Key, magnitude float64, unit quantity.Unit) {
	t.Helper()
	v, ok := r.Get(key)
	require.True(t, ok, "missing %s in %s", key, r)
	q, ok := v.(quantity.Quantity)
	require.True(t, ok, "%s is %T", key, v)
	assert.InDelta(t, magnitude, q.Magnitude, 1e-4, "%s", key)
	assert.Equal(t, unit, q.Unit, "%s", key)
}

func field(t *testing.T, r *record.Record, key record.Key) any {
	t.Helper()
	v, ok := r.Get(key)
	require.True(t, ok, "missing %s in %s", key, r)
	return v
}

func TestICharger208B(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		mode     string
		supply   float64
		voltage  float64
		current  float64
		internal float64
		external float64
		charge   float64
	}{
		{
			name:     "charging",
			line:     "$1;1;;12250;11996;90;3997;3999;4000;0;0;0;0;0;263;0;39;46\r\n",
			mode:     "charge",
			supply:   12.25,
			voltage:  11.996,
			current:  900,
			internal: 26.3,
			charge:   39,
		},
		{
			name:     "finished",
			line:     "$1;6;;12180;12600;0;4200;4200;4200;0;0;0;0;0;301;215;2210;12",
			mode:     "finished",
			supply:   12.18,
			voltage:  12.6,
			internal: 30.1,
			external: 21.5,
			charge:   2210,
		},
		{
			name:     "external discharge",
			line:     "$1;12;;11900;7400;150;3700;3700;0;0;0;0;0;0;250;0;0;0",
			mode:     "discharge-external",
			supply:   11.9,
			voltage:  7.4,
			current:  1500,
			internal: 25,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := collect(t, ICharger208B(lines(tt.line)))
			require.Len(t, out, 1)
			r := out[0]

			assert.Equal(t, tt.mode, field(t, r, ChargerMode))
			assertQuantity(t, r, ChargerSupply, tt.supply, quantity.Volt)
			assertQuantity(t, r, BatteryVoltage, tt.voltage, quantity.Volt)
			assertQuantity(t, r, BatteryCurrent, tt.current, quantity.Milliamp)
			assertQuantity(t, r, ChargerInternalTemperature, tt.internal, quantity.Celsius)
			assertQuantity(t, r, ChargerExternalTemperature, tt.external, quantity.Celsius)
			assertQuantity(t, r, BatteryCharge, tt.charge, quantity.MilliampHr)
			assert.False(t, r.Has("string"), "raw line is not carried over")
		})
	}
}

func TestICharger208B_DropsBadLines(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"short", "$1;1;;12250", "fields"},
		{"unknown mode", "$1;42;;12250;11996;90;0;0;0;0;0;0;0;0;263;0;39;46", "unknown mode 42"},
		{"bad mode", "$1;x;;12250;11996;90;0;0;0;0;0;0;0;0;263;0;39;46", "mode"},
		{"bad number", "$1;1;;12250;volts;90;0;0;0;0;0;0;0;0;263;0;39;46", "field 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			good := "$1;3;;12250;11996;0;0;0;0;0;0;0;0;0;263;0;39;46"
			out := collect(t, ICharger208B(lines(tt.line, good), WithLogger(debugLogger(&buf))))

			require.Len(t, out, 1, "only the good line survives")
			assert.Equal(t, "monitor", field(t, out[0], ChargerMode))
			assert.Contains(t, buf.String(), "dropping record")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestICharger208B_WithKey(t *testing.T) {
	p := pipeline.FromSlice([]*record.Record{
		record.Of("line", "$1;2;;12250;11996;90;0;0;0;0;0;0;0;0;263;0;39;46"),
	})
	out := collect(t, ICharger208B(p, WithKey("line")))
	require.Len(t, out, 1)
	assert.Equal(t, "discharge", field(t, out[0], ChargerMode))
}

func TestNMEA(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		check    func(t *testing.T, r *record.Record)
	}{
		{
			name:     "GGA",
			sentence: "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
			check: func(t *testing.T, r *record.Record) {
				assert.Equal(t, "GPGGA", field(t, r, "id"))
				assert.Contains(t, field(t, r, "time"), "12:35:19")
				assertQuantity(t, r, "latitude", 48.1173, quantity.Degree)
				assertQuantity(t, r, "longitude", 11.5167, quantity.Degree)
				assert.Equal(t, 1, field(t, r, "quality"))
				assert.Equal(t, 8, field(t, r, "satellites"))
				assert.InDelta(t, 0.9, field(t, r, "dop"), 1e-9)
				assertQuantity(t, r, "altitude", 545.4, quantity.Meter)
				assertQuantity(t, r, "geoid-height", 46.9, quantity.Meter)
			},
		},
		{
			name:     "RMC",
			sentence: "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
			check: func(t *testing.T, r *record.Record) {
				assert.Equal(t, "GPRMC", field(t, r, "id"))
				assert.Equal(t, true, field(t, r, "active"))
				assertQuantity(t, r, "latitude", 48.1173, quantity.Degree)
				assertQuantity(t, r, "speed", 22.4, quantity.Knot)
				assertQuantity(t, r, "track", 84.4, quantity.Degree)
				assert.Contains(t, field(t, r, "date"), "94")
				assertQuantity(t, r, "variation", -3.1, quantity.Degree)
			},
		},
		{
			name:     "GLL",
			sentence: "$GPGLL,4916.45,N,12311.12,W,225444,A,*1D",
			check: func(t *testing.T, r *record.Record) {
				assert.Equal(t, "GPGLL", field(t, r, "id"))
				assertQuantity(t, r, "latitude", 49.2742, quantity.Degree)
				assertQuantity(t, r, "longitude", -123.1853, quantity.Degree)
				assert.Contains(t, field(t, r, "time"), "22:54:44")
				assert.Equal(t, true, field(t, r, "active"))
			},
		},
		{
			name:     "TXT",
			sentence: "$GPTXT,01,01,02,ANTSTATUS=OK*3B",
			check: func(t *testing.T, r *record.Record) {
				assert.Equal(t, "ANTSTATUS=OK", field(t, r, "text"))
			},
		},
		{
			name:     "HDG",
			sentence: "$HCHDG,98.3,0.0,E,12.6,W*57",
			check: func(t *testing.T, r *record.Record) {
				assert.Equal(t, "HCHDG", field(t, r, "id"))
				assertQuantity(t, r, "heading", 98.3, quantity.Degree)
				assertQuantity(t, r, "variation", -12.6, quantity.Degree)
			},
		},
		{
			name:     "other sentence keeps only its id",
			sentence: "$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39",
			check: func(t *testing.T, r *record.Record) {
				assert.Equal(t, "GPGSA", field(t, r, "id"))
				assert.Equal(t, 1, r.Len())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := collect(t, NMEA(lines(tt.sentence+"\r\n")))
			require.Len(t, out, 1)
			tt.check(t, out[0])
		})
	}
}

func TestNMEA_DropsBadSentences(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not nmea", "hello world"},
		{"bad checksum", "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*48"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			out := collect(t, NMEA(lines(tt.line, "$GPTXT,01,01,02,ANTSTATUS=OK*3B"), WithLogger(debugLogger(&buf))))
			require.Len(t, out, 1)
			assert.Equal(t, "GPTXT", field(t, out[0], "id"))
			assert.Contains(t, buf.String(), "dropping record")
		})
	}
}

func TestNMEA_MissingField(t *testing.T) {
	var buf bytes.Buffer
	out := collect(t, NMEA(pipeline.FromSlice([]*record.Record{record.Of("other", 1)}), WithLogger(debugLogger(&buf))))
	assert.Empty(t, out)
	assert.Contains(t, buf.String(), "record has no field string")
}

const metarResponse = `<?xml version="1.0" encoding="UTF-8"?>
<response version="1.2">
  <data num_results="2">
    <METAR>
      <raw_text>KABQ 202152Z 27011KT 10SM FEW080 34/M01 A3011</raw_text>
      <station_id>KABQ</station_id>
      <observation_time>2016-07-20T21:52:00Z</observation_time>
      <latitude>35.05</latitude>
      <longitude>-106.62</longitude>
      <temp_c>34.4</temp_c>
      <dewpoint_c>-1.1</dewpoint_c>
      <wind_dir_degrees>270</wind_dir_degrees>
      <wind_speed_kt>11</wind_speed_kt>
      <visibility_statute_mi>10.0</visibility_statute_mi>
      <altim_in_hg>30.11</altim_in_hg>
      <flight_category>VFR</flight_category>
      <elevation_m>1618.0</elevation_m>
    </METAR>
    <METAR>
      <raw_text>KABQ 202052Z 26009KT 10SM FEW080 33/M01 A3013</raw_text>
      <station_id>KABQ</station_id>
      <observation_time>2016-07-20T20:52:00Z</observation_time>
      <temp_c>33.3</temp_c>
      <wind_speed_kt>calm</wind_speed_kt>
    </METAR>
  </data>
</response>`

func TestMETAR(t *testing.T) {
	var buf bytes.Buffer
	p := transform.ParseXML(lines(metarResponse), "", "")
	out := collect(t, METAR(p, WithLogger(debugLogger(&buf))))
	require.Len(t, out, 2)

	earlier, later := out[0], out[1]
	assert.Equal(t, time.Date(2016, 7, 20, 20, 52, 0, 0, time.UTC), field(t, earlier, "observation-time"))
	assert.Equal(t, time.Date(2016, 7, 20, 21, 52, 0, 0, time.UTC), field(t, later, "observation-time"))

	assert.Equal(t, "KABQ", field(t, later, "station-id"))
	assert.Equal(t, "KABQ 202152Z 27011KT 10SM FEW080 34/M01 A3011", field(t, later, "raw"))
	assert.Equal(t, "VFR", field(t, later, "flight-category"))
	assertQuantity(t, later, "latitude", 35.05, quantity.Degree)
	assertQuantity(t, later, "longitude", -106.62, quantity.Degree)
	assertQuantity(t, later, "temperature", 34.4, quantity.Celsius)
	assertQuantity(t, later, "dewpoint", -1.1, quantity.Celsius)
	assertQuantity(t, later, "wind-direction", 270, quantity.Degree)
	assertQuantity(t, later, "wind-speed", 11, quantity.Knot)
	assertQuantity(t, later, "visibility", 10, "mi")
	assertQuantity(t, later, "altimeter", 30.11, "inHg")
	assertQuantity(t, later, "elevation", 1618, quantity.Meter)

	assertQuantity(t, earlier, "temperature", 33.3, quantity.Celsius)
	assert.False(t, earlier.Has("latitude"), "missing elements are left out")
	assert.False(t, earlier.Has("wind-speed"), "unparsable elements are left out")
	assert.Contains(t, buf.String(), "skipping METAR element")
}

func TestMETAR_DropsRecordsWithoutXML(t *testing.T) {
	var buf bytes.Buffer
	out := collect(t, METAR(lines("<response/>"), WithLogger(debugLogger(&buf))))
	assert.Empty(t, out)
	assert.Contains(t, buf.String(), "dropping record")
}

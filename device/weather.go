package device

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/quantity"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/transform"
)

type metarField struct {
	element string
	key     record.Key
	unit    string // empty for text
}

// Units outside quantity's table (mi, inHg) are carried opaquely.
var metarFields = []metarField{
	{"raw_text", "raw", ""},
	{"station_id", "station-id", ""},
	{"latitude", "latitude", "deg"},
	{"longitude", "longitude", "deg"},
	{"temp_c", "temperature", "degC"},
	{"dewpoint_c", "dewpoint", "degC"},
	{"wind_dir_degrees", "wind-direction", "deg"},
	{"wind_speed_kt", "wind-speed", "knot"},
	{"visibility_statute_mi", "visibility", "mi"},
	{"altim_in_hg", "altimeter", "inHg"},
	{"flight_category", "flight-category", ""},
	{"elevation_m", "elevation", "m"},
}

// METAR expands aviationweather.gov METAR responses into one record per
// observation, ordered by observation time. The response must already be
// parsed by transform.ParseXML; its root element is read from the "xml"
// field unless WithKey says otherwise. Elements missing from an
// observation are left out of its record; elements that do not parse are
// logged and left out.
func METAR(p *pipeline.Pipeline[*record.Record], opts ...Option) *pipeline.Pipeline[*record.Record] {
	o := newOptions("metar", transform.DefaultXMLKey, opts)
	return pipeline.FlatMap(p, func(_ context.Context, r *record.Record) ([]*record.Record, error) {
		v, ok := r.Get(o.key)
		if !ok {
			o.drop(fmt.Errorf("record has no field %s", o.key))
			return nil, nil
		}
		root, ok := v.(*xmlquery.Node)
		if !ok {
			o.drop(fmt.Errorf("field %s is %T, not an XML node", o.key, v))
			return nil, nil
		}
		return decodeMETARs(root, o), nil
	})
}

func decodeMETARs(root *xmlquery.Node, o *options) []*record.Record {
	metars := xmlquery.Find(root, "data/METAR")
	sort.SliceStable(metars, func(i, j int) bool {
		return observed(metars[i]) < observed(metars[j])
	})

	out := make([]*record.Record, 0, len(metars))
	for _, m := range metars {
		out = append(out, decodeMETAR(m, o))
	}
	return out
}

func observed(n *xmlquery.Node) string {
	if e := xmlquery.FindOne(n, "observation_time"); e != nil {
		return e.InnerText()
	}
	return ""
}

func decodeMETAR(n *xmlquery.Node, o *options) *record.Record {
	r := record.New()
	if ts := observed(n); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			o.log.Warn("skipping METAR element", logger.Fields("element", "observation_time", logger.FieldError, err.Error()))
		} else {
			record.AddField(o.log, r, "observation-time", t.UTC())
		}
	}
	for _, f := range metarFields {
		e := xmlquery.FindOne(n, f.element)
		if e == nil {
			continue
		}
		txt := strings.TrimSpace(e.InnerText())
		if f.unit == "" {
			record.AddField(o.log, r, f.key, txt)
			continue
		}
		v, err := strconv.ParseFloat(txt, 64)
		if err != nil {
			o.log.Warn("skipping METAR element", logger.Fields("element", f.element, logger.FieldError, err.Error()))
			continue
		}
		record.AddField(o.log, r, f.key, quantity.New(v, f.unit))
	}
	return r
}

package transform

import (
	"bytes"
	"context"
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
)

// DefaultXMLKey is the field ParseXML writes when no output key is given.
const DefaultXMLKey record.Key = "xml"

// ParseXML parses the XML document in each record's key field and stores
// its root element (an *xmlquery.Node) under keyOut. Empty keys default to
// DefaultPayloadKey and DefaultXMLKey. Records that cannot be parsed are
// logged and dropped.
func ParseXML(p *pipeline.Pipeline[*record.Record], key, keyOut record.Key, opts ...Option) *pipeline.Pipeline[*record.Record] {
	if key == "" {
		key = DefaultPayloadKey
	}
	if keyOut == "" {
		keyOut = DefaultXMLKey
	}
	o := newOptions("parse_xml", opts)
	parsed := pipeline.Map(p, func(_ context.Context, r *record.Record) (*record.Record, error) {
		root, err := decodeXML(r, key)
		if err != nil {
			o.log.Error("dropping record", logger.Fields(
				logger.FieldKey, key.String(),
				logger.FieldError, err.Error(),
			))
			return nil, nil
		}
		record.AddField(o.log, r, keyOut, root)
		return r, nil
	})
	return dropNil(parsed)
}

func decodeXML(r *record.Record, key record.Key) (*xmlquery.Node, error) {
	raw, err := payload(r, key)
	if err != nil {
		return nil, err
	}
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing xml: %w", err)
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n, nil
		}
	}
	return nil, fmt.Errorf("document has no root element")
}

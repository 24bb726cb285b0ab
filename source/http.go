package source

import (
	"context"
	"mime"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/resilience"
)

// DefaultPollInterval is the wait between HTTPGet requests.
const DefaultPollInterval = 5 * time.Second

// Fields written by HTTPGet. Response headers go under Path("header", name).
const (
	StatusKey   record.Key = "status"
	EncodingKey record.Key = "encoding"
	BodyKey     record.Key = "body"
)

// HTTPGet requests url every poll and yields one record per response,
// holding the status code, every response header, the charset named by
// the Content-Type and the body text. Failed requests are logged and
// retried at the next poll. A poll of zero or less uses
// DefaultPollInterval.
func HTTPGet(url string, poll time.Duration, opts ...Option) *pipeline.Pipeline[*record.Record] {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	o := newOptions("http_get", opts)
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*record.Record] {
		client := o.client
		if client == nil {
			client = resty.New()
		}
		first := true
		return pipeline.Generate(func(ctx context.Context) (*record.Record, bool, error) {
			for {
				if !first {
					if err := resilience.Sleep(ctx, poll); err != nil {
						return nil, false, err
					}
				}
				first = false

				resp, err := client.R().
					SetContext(ctx).
					SetHeaders(o.headers).
					Get(url)
				if err != nil {
					if ctx.Err() != nil {
						return nil, false, ctx.Err()
					}
					o.log.Error("request failed", logger.Fields(
						"url", url,
						logger.FieldError, err.Error(),
					))
					continue
				}
				return responseRecord(resp), true, nil
			}
		}).Iter(ctx)
	})
}

func responseRecord(resp *resty.Response) *record.Record {
	r := record.New()
	r.Set(StatusKey, resp.StatusCode())

	header := resp.Header()
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.Set(record.Path("header", name), strings.Join(header.Values(name), ", "))
	}

	r.Set(EncodingKey, charset(header.Get("Content-Type")))
	r.Set(BodyKey, resp.String())
	return r
}

func charset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

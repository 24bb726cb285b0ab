package config

import (
	"strconv"
	"time"

	"github.com/kbukum/pipecat/observability"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/resilience"
	"github.com/kbukum/pipecat/source"
	"github.com/kbukum/pipecat/validation"
)

// Source kinds.
const (
	SourceStdin       = "stdin"
	SourceFile        = "file"
	SourceSerial      = "serial"
	SourceUDP         = "udp"
	SourceHTTPGet     = "http-get"
	SourceHTTPReceive = "http-receive"
	SourceMetronome   = "metronome"
	SourceGob         = "gob"
)

// SourceKinds lists every supported source kind.
var SourceKinds = []string{
	SourceStdin, SourceFile, SourceSerial, SourceUDP,
	SourceHTTPGet, SourceHTTPReceive, SourceMetronome, SourceGob,
}

// Config is the complete pipecat configuration.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// Sources are multiplexed when more than one is given.
	Sources   []SourceConfig       `yaml:"sources" mapstructure:"sources" validate:"dive"`
	Transform TransformConfig      `yaml:"transform" mapstructure:"transform"`
	Limit     LimitConfig          `yaml:"limit" mapstructure:"limit"`
	Output    OutputConfig         `yaml:"output" mapstructure:"output"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// SourceConfig describes one record source.
type SourceConfig struct {
	// Name labels the stream in logs and metrics. Defaults to Kind.
	Name string `yaml:"name" mapstructure:"name"`
	Kind string `yaml:"kind" mapstructure:"kind" validate:"required,oneof=stdin file serial udp http-get http-receive metronome gob"`
	// Path is the file, device or gob archive to read.
	Path string `yaml:"path" mapstructure:"path"`
	// Address is the listen address of udp and http-receive sources.
	Address string `yaml:"address" mapstructure:"address"`
	URL     string `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	// Interval is the http-get poll period or the metronome rate.
	Interval    time.Duration          `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	MaxDatagram int                    `yaml:"max_datagram" mapstructure:"max_datagram" validate:"gte=0"`
	Retry       resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
	Receive     source.ReceiveConfig   `yaml:"receive" mapstructure:"receive"`
	Headers     map[string]string      `yaml:"headers" mapstructure:"headers"`
	// Baud, DataBits, Parity and StopBits set the line of a serial device.
	Baud     int    `yaml:"baud" mapstructure:"baud" validate:"gte=0"`
	DataBits int    `yaml:"data_bits" mapstructure:"data_bits" validate:"omitempty,oneof=5 6 7 8"`
	Parity   string `yaml:"parity" mapstructure:"parity" validate:"omitempty,oneof=none odd even mark space"`
	StopBits string `yaml:"stop_bits" mapstructure:"stop_bits" validate:"omitempty,oneof=1 1.5 2"`
}

// Port returns the serial line settings of a serial source.
func (s SourceConfig) Port() source.PortConfig {
	return source.PortConfig{
		Device:   s.Path,
		BaudRate: s.Baud,
		DataBits: s.DataBits,
		Parity:   s.Parity,
		StopBits: s.StopBits,
	}
}

// TransformConfig selects the stages applied to every record.
type TransformConfig struct {
	// Parse decodes the payload field: "json", "xml" or empty for none.
	Parse      string `yaml:"parse" mapstructure:"parse" validate:"omitempty,oneof=json xml"`
	ParseKey   string `yaml:"parse_key" mapstructure:"parse_key"`
	Delimiter  string `yaml:"delimiter" mapstructure:"delimiter"`
	Timestamp  bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Keep       string `yaml:"keep" mapstructure:"keep"`
	Duplicates string `yaml:"duplicates" mapstructure:"duplicates"`
	Trace      bool   `yaml:"trace" mapstructure:"trace"`
	// Device decodes instrument output after parsing: "icharger208b" and
	// "nmea" read text lines, "metar" reads a parsed XML response.
	Device string `yaml:"device" mapstructure:"device" validate:"omitempty,oneof=icharger208b nmea metar"`
}

// LimitConfig bounds a run. Zero values disable a limit.
type LimitConfig struct {
	Count    int           `yaml:"count" mapstructure:"count" validate:"gte=0"`
	Duration time.Duration `yaml:"duration" mapstructure:"duration" validate:"gte=0"`
	Poll     time.Duration `yaml:"poll" mapstructure:"poll" validate:"gte=0"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Initial  time.Duration `yaml:"initial" mapstructure:"initial" validate:"gte=0"`
	// UntilKey and UntilValue end the run after the first record whose
	// UntilKey field renders as UntilValue.
	UntilKey   string `yaml:"until_key" mapstructure:"until_key"`
	UntilValue string `yaml:"until_value" mapstructure:"until_value"`
	// QueueCapacity bounds bridge queues; zero is unbounded.
	QueueCapacity int `yaml:"queue_capacity" mapstructure:"queue_capacity" validate:"gte=0"`
}

// OutputConfig selects where records go.
type OutputConfig struct {
	Dump bool   `yaml:"dump" mapstructure:"dump"`
	CSV  string `yaml:"csv" mapstructure:"csv"`
	Gob  string `yaml:"gob" mapstructure:"gob"`
	// Broadcast is the listen address of the websocket hub; empty disables it.
	Broadcast string `yaml:"broadcast" mapstructure:"broadcast"`
	Topic     string `yaml:"topic" mapstructure:"topic"`
	// Summary keys are reported with mean, stddev and range after the run.
	Summary []string `yaml:"summary" mapstructure:"summary"`
}

// Default returns a configuration reading lines from stdin and dumping
// them to stdout.
func Default() *Config {
	cfg := &Config{Output: OutputConfig{Dump: true}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields across every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if len(c.Sources) == 0 {
		c.Sources = []SourceConfig{{Kind: SourceStdin}}
	}
	for i := range c.Sources {
		c.Sources[i].applyDefaults()
	}
	if c.Limit.Poll == 0 {
		c.Limit.Poll = pipeline.DefaultPollInterval
	}
	if c.Limit.Initial == 0 {
		c.Limit.Initial = pipeline.DefaultInitialTimeout
	}
	if c.Output.Topic == "" {
		c.Output.Topic = c.Name
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Name
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = c.Environment
	}
	c.Telemetry.ApplyDefaults()
}

func (s *SourceConfig) applyDefaults() {
	if s.Name == "" {
		s.Name = s.Kind
	}
	switch s.Kind {
	case SourceUDP:
		if s.MaxDatagram == 0 {
			s.MaxDatagram = source.DefaultDatagramSize
		}
	case SourceHTTPGet:
		if s.Interval == 0 {
			s.Interval = source.DefaultPollInterval
		}
	case SourceHTTPReceive:
		if s.Receive == (source.ReceiveConfig{}) {
			s.Receive = source.DefaultReceiveConfig()
		}
	case SourceMetronome:
		if s.Interval == 0 {
			s.Interval = time.Second
		}
	case SourceSerial:
		if s.Baud == 0 {
			s.Baud = source.DefaultBaudRate
		}
		if s.DataBits == 0 {
			s.DataBits = source.DefaultDataBits
		}
		if s.Parity == "" {
			s.Parity = source.DefaultParity
		}
		if s.StopBits == "" {
			s.StopBits = source.DefaultStopBits
		}
		if s.Retry.InitialBackoff == 0 {
			retry := resilience.DefaultRetryConfig()
			retry.MaxAttempts = s.Retry.MaxAttempts
			s.Retry = retry
		}
	}
}

// Validate checks struct tags and the rules spanning several fields.
func (c *Config) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(c))
	if err := c.ServiceConfig.Validate(); err != nil {
		v.AddError("service", err.Error())
	}
	for i, s := range c.Sources {
		s.validate(v, i)
	}
	v.Custom(c.Limit.UntilValue == "" || c.Limit.UntilKey != "",
		"limit.until_key", "is required with until_value")
	v.Custom(c.Limit.Duration == 0 || c.Limit.Poll <= c.Limit.Duration,
		"limit.poll", "must not exceed limit.duration")
	v.Custom(c.Transform.Parse != "xml" || c.Transform.Delimiter == "",
		"transform.delimiter", "only applies to json")
	switch c.Transform.Device {
	case "metar":
		v.Custom(c.Transform.Parse == "xml", "transform.parse", "must be xml for the metar device")
	case "icharger208b", "nmea":
		v.Custom(c.Transform.Parse == "", "transform.parse", "must be empty for the "+c.Transform.Device+" device")
	}
	return v.Err()
}

func (s SourceConfig) validate(v *validation.Validator, i int) {
	field := func(name string) string {
		return "sources[" + strconv.Itoa(i) + "]." + name
	}
	switch s.Kind {
	case SourceFile, SourceSerial, SourceGob:
		v.Required(field("path"), s.Path)
	case SourceUDP, SourceHTTPReceive:
		v.Required(field("address"), s.Address)
	case SourceHTTPGet:
		v.Required(field("url"), s.URL)
		v.Positive(field("interval"), s.Interval)
	case SourceMetronome:
		v.Positive(field("interval"), s.Interval)
	}
}

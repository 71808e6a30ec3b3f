package daemon

import (
	"dcsingest/internal/framer"
	"dcsingest/internal/global"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const layoutRange string = time.RFC3339

// Loads JSON config from file
func LoadConfig(path string) (cfg global.JSONConfig, err error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config file: %v", err)
		return
	}

	err = json.Unmarshal(configFile, &cfg)
	if err != nil {
		err = fmt.Errorf("invalid config syntax in '%s': %v", path, err)
		return
	}

	return
}

// Parses JSON config into daemon config
func NewDaemonConf(cfg global.JSONConfig) (config Config, err error) {
	if len(cfg.Sources) == 0 {
		err = fmt.Errorf("no sources configured")
		return
	}

	names := make(map[string]bool)
	for _, sourceCfg := range cfg.Sources {
		var spec SourceSpec
		spec, err = parseSource(sourceCfg)
		if err != nil {
			return
		}
		if names[spec.Name] {
			err = fmt.Errorf("duplicate source name '%s'", spec.Name)
			return
		}
		names[spec.Name] = true
		config.Sources = append(config.Sources, spec)
	}

	config.PlatformsFile = cfg.PlatformsFile
	config.PlatformCacheSize = cfg.PlatformCacheSize

	// Output settings
	config.OutputFilePath = cfg.Outputs.FilePath
	config.OutputStdout = cfg.Outputs.Stdout
	config.BeatsEndpoint = cfg.Outputs.BeatsAddress

	// Queue settings
	config.MinQueueSize = cfg.Queue.MinSize
	config.MaxQueueSize = cfg.Queue.MaxSize

	// Metric settings
	config.MetricQueryServerEnabled = cfg.Metrics.Enabled
	config.MetricQueryServerPort = cfg.Metrics.ListenPort
	if cfg.Metrics.MaxAge != "" {
		config.MetricMaxAge, err = time.ParseDuration(cfg.Metrics.MaxAge)
		if err != nil {
			err = fmt.Errorf("failed to parse metric max age time: %v", err)
			return
		}
	}
	if cfg.Metrics.Interval != "" {
		config.MetricCollectionInterval, err = time.ParseDuration(cfg.Metrics.Interval)
		if err != nil {
			err = fmt.Errorf("failed to parse metric collection interval time: %v", err)
			return
		}
	}
	return
}

func parseSource(cfg global.SourceConfig) (spec SourceSpec, err error) {
	if cfg.Name == "" {
		err = fmt.Errorf("source without a name")
		return
	}
	spec = SourceSpec{
		Name:                cfg.Name,
		Transport:           strings.ToLower(cfg.Transport),
		Address:             cfg.Address,
		Path:                cfg.Path,
		Username:            cfg.Username,
		DCPAddress:          cfg.DCPAddress,
		Reconnect:           cfg.Reconnect,
		Format:              strings.ToLower(cfg.Format),
		RequestsPerMinute:   cfg.RequestsPerMinute,
		LegacyChannelRanges: cfg.LegacyChannelRanges,
		Group:               strings.ToLower(cfg.Group),
		Recheck:             time.Duration(cfg.RecheckSeconds) * time.Second,
		Reprobe:             time.Duration(cfg.ReprobeSeconds) * time.Second,
	}

	if spec.Group != "" {
		if spec.Group != "hotbackup" && spec.Group != "roundrobin" {
			err = fmt.Errorf("source '%s': unknown group type '%s' (expected hotbackup or roundrobin)", cfg.Name, cfg.Group)
			return
		}
		if len(cfg.Members) == 0 {
			err = fmt.Errorf("source '%s': group has no members", cfg.Name)
			return
		}
		for _, memberCfg := range cfg.Members {
			var member SourceSpec
			member, err = parseSource(memberCfg)
			if err != nil {
				err = fmt.Errorf("group '%s': %w", cfg.Name, err)
				return
			}
			spec.Members = append(spec.Members, member)
		}
		return
	}

	switch spec.Transport {
	case "tcp", "lrgs":
		if spec.Address == "" {
			err = fmt.Errorf("source '%s': %s transport requires an address", cfg.Name, spec.Transport)
			return
		}
	case "file", "follow":
		if spec.Path == "" {
			err = fmt.Errorf("source '%s': %s transport requires a path", cfg.Name, spec.Transport)
			return
		}
	default:
		err = fmt.Errorf("source '%s': unknown transport '%s' (expected tcp, file, follow or lrgs)", cfg.Name, cfg.Transport)
		return
	}
	if spec.Format == "" {
		err = fmt.Errorf("source '%s': no message format", cfg.Name)
		return
	}

	spec.Since, err = parseRangeTime(cfg.Since)
	if err != nil {
		err = fmt.Errorf("source '%s': invalid since time: %v", cfg.Name, err)
		return
	}
	spec.Until, err = parseRangeTime(cfg.Until)
	if err != nil {
		err = fmt.Errorf("source '%s': invalid until time: %v", cfg.Name, err)
		return
	}

	spec.Framing, err = parseFraming(cfg)
	if err != nil {
		err = fmt.Errorf("source '%s': %v", cfg.Name, err)
		return
	}
	return
}

func parseFraming(cfg global.SourceConfig) (framing framer.Config, err error) {
	framing.StartDelimiter, err = ParseDelimiter(cfg.StartDelimiter)
	if err != nil {
		err = fmt.Errorf("invalid start delimiter: %v", err)
		return
	}
	framing.EndDelimiter, err = ParseDelimiter(cfg.EndDelimiter)
	if err != nil {
		err = fmt.Errorf("invalid end delimiter: %v", err)
		return
	}

	framing.Parity, err = framer.ParseParity(cfg.Parity)
	if err != nil {
		return
	}

	if cfg.ReadTimeout != "" {
		framing.ReadTimeout, err = time.ParseDuration(cfg.ReadTimeout)
		if err != nil {
			err = fmt.Errorf("invalid read timeout: %v", err)
			return
		}
	}

	if cfg.MaxMessageLength < 0 {
		err = fmt.Errorf("negative maximum message length %d", cfg.MaxMessageLength)
		return
	}

	framing.LengthAdjust = cfg.LengthAdjust
	framing.OneMessagePerSource = cfg.OneMessagePerSource
	framing.MaxMessageLength = cfg.MaxMessageLength
	framing.AllowUnknownPlatform = cfg.AllowUnknownPlatform
	return
}

// Decodes an escaped ASCII delimiter such as \r\n or \x02
func ParseDelimiter(escaped string) (delimiter []byte, err error) {
	if escaped == "" {
		return
	}
	unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(escaped, `"`, `\"`) + `"`)
	if err != nil {
		err = fmt.Errorf("cannot decode %q: %v", escaped, err)
		return
	}
	delimiter = []byte(unquoted)
	return
}

// Absolute RFC3339 time, "now", or a negative offset from now such as -2h
func parseRangeTime(raw string) (parsed time.Time, err error) {
	switch {
	case raw == "":
	case raw == "now":
		parsed = time.Now()
	case strings.HasPrefix(raw, "-"):
		var offset time.Duration
		offset, err = time.ParseDuration(raw)
		if err == nil {
			parsed = time.Now().Add(offset)
		}
	default:
		parsed, err = time.Parse(layoutRange, raw)
	}
	return
}

// Sets defaults for any missing/invalid values
func (cfg *Config) setDefaults() {
	// Queue
	if cfg.MinQueueSize <= 0 {
		cfg.MinQueueSize = global.DefaultMinQueueSize
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = global.DefaultMaxQueueSize
	}
	if cfg.MaxQueueSize < cfg.MinQueueSize {
		cfg.MaxQueueSize = cfg.MinQueueSize
	}

	// Platform lookup
	if cfg.PlatformCacheSize <= 0 {
		cfg.PlatformCacheSize = global.DefaultPlatformCacheSize
	}

	// Outputs
	if cfg.OutputFilePath == "" && cfg.BeatsEndpoint == "" {
		cfg.OutputStdout = true
	}

	// Metrics
	if cfg.MetricMaxAge == 0 {
		cfg.MetricMaxAge = global.DefaultMetricMaxAge
	}
	if cfg.MetricQueryServerPort == 0 {
		cfg.MetricQueryServerPort = global.HTTPListenPort
	}
	if cfg.MetricCollectionInterval == 0 {
		cfg.MetricCollectionInterval = global.DefaultMetricInterval
	}
}

package global

type CommandSet struct {
	CommandName     string                 // Exact name of cli command
	UsageOption     string                 // Expected command value in usage top line
	Description     string                 // Short text displayed on parent command
	FullDescription string                 // Long text displayed on current command
	ChildCommands   map[string]*CommandSet // Available subcommands
}

type CtxKey string

// Daemon configuration file layout

type JSONConfig struct {
	Sources           []SourceConfig `json:"sources"`
	PlatformsFile     string         `json:"platformsFile,omitempty"`
	PlatformCacheSize int            `json:"platformCacheSize,omitempty"`
	Outputs           OutputConfig   `json:"outputs"`
	Metrics           MetricConf     `json:"metrics"`
	Queue             QueueConf      `json:"queue"`
}

// One top level source, either a single transport or a group of member sources
type SourceConfig struct {
	Name string `json:"name"`

	// Transport selection: tcp, file, follow, lrgs
	Transport string `json:"transport,omitempty"`
	Address   string `json:"address,omitempty"`
	Path      string `json:"path,omitempty"`

	// LRGS archive retrieval
	Username   string `json:"username,omitempty"`
	Since      string `json:"since,omitempty"`
	Until      string `json:"until,omitempty"`
	DCPAddress string `json:"dcpAddress,omitempty"`

	// Framing
	Format               string `json:"format,omitempty"`
	StartDelimiter       string `json:"startDelimiter,omitempty"` // escaped ASCII
	EndDelimiter         string `json:"endDelimiter,omitempty"`   // escaped ASCII
	LengthAdjust         int    `json:"lengthAdjust,omitempty"`
	OneMessagePerSource  bool   `json:"oneMessagePerSource,omitempty"`
	Parity               string `json:"parity,omitempty"` // none, odd, even, strip
	MaxMessageLength     int    `json:"maxMessageLength,omitempty"`
	ReadTimeout          string `json:"readTimeout,omitempty"`
	RequestsPerMinute    int    `json:"requestsPerMinute,omitempty"`
	LegacyChannelRanges  bool   `json:"legacyChannelRanges,omitempty"`
	AllowUnknownPlatform bool   `json:"allowUnknownPlatform,omitempty"`
	Reconnect            bool   `json:"reconnect,omitempty"`

	// Groups: hotbackup, roundrobin
	Group          string         `json:"group,omitempty"`
	RecheckSeconds int            `json:"recheckSeconds,omitempty"`
	ReprobeSeconds int            `json:"reprobeSeconds,omitempty"`
	Members        []SourceConfig `json:"members,omitempty"`
}

type OutputConfig struct {
	FilePath     string `json:"filePath,omitempty"`
	Stdout       bool   `json:"stdout"`
	BeatsAddress string `json:"beatsAddress,omitempty"`
}

type MetricConf struct {
	Enabled    bool   `json:"enabled"`
	Interval   string `json:"interval,omitempty"`
	MaxAge     string `json:"maxAge,omitempty"`
	ListenPort int    `json:"listenPort,omitempty"`
}

type QueueConf struct {
	MinSize int `json:"minSize,omitempty"`
	MaxSize int `json:"maxSize,omitempty"`
}

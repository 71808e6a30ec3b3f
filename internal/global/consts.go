package global

import "time"

const (
	// Descriptive Names for available verbosity levels
	VerbosityNone int = iota
	VerbosityStandard
	VerbosityProgress
	VerbosityData
	VerbosityFullData
	VerbosityDebug

	// Descriptive names for available severity levels
	ErrorLog string = "Error"
	WarnLog  string = "Warn"
	InfoLog  string = "Info"
)

const (
	ProgVersion  string = "v0.3.0"
	ProgBaseName string = "dcsingest"

	// Context keys
	LoggerKey  CtxKey = "logger"  // Event queue (mostly for variable log verbosity handling)
	LogTagsKey CtxKey = "logtags" // List of tags in order of broad->specific appended/popped at various parts of the program

	DefaultConfigPath   string = "/etc/dcsingest.json"
	DefaultMinQueueSize int    = 256
	DefaultMaxQueueSize int    = 8192

	// Framing defaults
	DefaultMaxMessageLength  int           = 99999
	DefaultReadTimeout       time.Duration = 90 * time.Second
	DefaultMinRetryBackoff   time.Duration = 10 * time.Millisecond
	DefaultMaxRetryBackoff   time.Duration = 1 * time.Second
	DefaultSkipLogInterval   int           = 1000 // log every N bytes skipped while hunting
	DefaultParitySentinel    byte          = '$'
	DefaultPlatformCacheSize int           = 1024

	// Group defaults
	DefaultRecheckInterval time.Duration = 1 * time.Hour
	DefaultReprobeInterval time.Duration = 1 * time.Minute

	// Source reconnects and queue scaling
	DefaultMinReconnectBackoff time.Duration = 1 * time.Second
	DefaultMaxReconnectBackoff time.Duration = 1 * time.Minute
	DefaultScaleInterval       time.Duration = 5 * time.Second

	// Timeout values
	ShutdownTimeout time.Duration = 20 * time.Second
	DialTimeout     time.Duration = 20 * time.Second

	// Metric HTTP server
	HTTPListenPort   int           = 16480
	HTTPListenAddr   string        = "localhost" // Metric queries only exposed to local machine
	HTTPReadTimeout  time.Duration = 30 * time.Second
	HTTPWriteTimeout time.Duration = 10 * time.Second
	HTTPIdleTimeout  time.Duration = 180 * time.Second
	PrometheusPath   string        = "/metrics"
	DataPath         string        = "/data/"
	DiscoveryPath    string        = "/discover/"

	DefaultMetricInterval time.Duration = 30 * time.Second
	DefaultMetricMaxAge   time.Duration = 1 * time.Hour

	// Namespacing Name Components
	NSMetric string = "Metrics"
	NSTest   string = "Test"
	NSCLI    string = "CLI"
	NSDaemon string = "Daemon"
	NSSource string = "Source"
	NSFramer string = "Framer"
	NSGroup  string = "Group"
	NSOut    string = "Output"
	NSQueue  string = "Queue"
	NSWorker string = "Worker"
)

package daemon

import (
	"context"
	"dcsingest/internal/framer"
	"dcsingest/internal/group"
	"dcsingest/internal/metrics"
	"dcsingest/internal/output"
	"dcsingest/internal/queue"
	"dcsingest/internal/resolver"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// One configured source after parsing: a single transport or a group of members
type SourceSpec struct {
	Name string

	Transport  string
	Address    string
	Path       string
	Username   string
	DCPAddress string
	Since      time.Time
	Until      time.Time
	Reconnect  bool

	Format              string
	Framing             framer.Config
	RequestsPerMinute   int
	LegacyChannelRanges bool

	Group   string
	Recheck time.Duration
	Reprobe time.Duration
	Members []SourceSpec
}

type Config struct {
	Sources []SourceSpec

	PlatformsFile     string
	PlatformCacheSize int

	// Outputs
	OutputFilePath string
	OutputStdout   bool
	BeatsEndpoint  string

	// Queue boundaries
	MinQueueSize int
	MaxQueueSize int

	// Metrics
	MetricQueryServerEnabled bool
	MetricQueryServerPort    int
	MetricCollectionInterval time.Duration
	MetricMaxAge             time.Duration
}

// Top level source and what it exposes to the metric collector
type worker struct {
	spec       SourceSpec
	member     group.Member
	collectors []metrics.Collector
}

type Daemon struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	wg           sync.WaitGroup // support goroutines (output, metrics, scaling)
	shutdownOnce sync.Once

	sources     errgroup.Group // one goroutine per top level source
	sourcesCtx  context.Context
	stopSources context.CancelFunc
	sourcesDone chan struct{}
	sourcesErr  error

	Queue     *queue.Queue
	Output    *output.Worker
	platforms *resolver.ReloadableFile
	cache     *resolver.CachedLookup
	workers   []*worker

	Registry     *metrics.Registry
	Exporter     *metrics.Exporter
	MetricServer *http.Server
}

// Daemon for continuous framing of every configured source and delivery of messages to the outputs
package daemon

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/metrics"
	"dcsingest/internal/output"
	"dcsingest/internal/queue"
	"dcsingest/internal/resolver"
	"dcsingest/pkg/header"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Create new daemon instance
func NewDaemon(cfg Config) (new *Daemon) {
	ctx, cancel := context.WithCancel(context.Background())
	new = &Daemon{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	return
}

// Builds the pipeline and starts all workers in background
func (daemon *Daemon) Start(globalCtx context.Context) (err error) {
	// New context for the daemon
	daemon.ctx, daemon.cancel = context.WithCancel(context.Background())
	if logger := logctx.GetLogger(globalCtx); logger != nil {
		daemon.ctx = logctx.WithLogger(daemon.ctx, logger)
	}
	daemon.ctx = logctx.OverwriteCtxTag(daemon.ctx, logctx.GetTagList(globalCtx))
	daemon.ctx = logctx.AppendCtxTag(daemon.ctx, global.NSDaemon)

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog, "Starting...\n")

	// Pre-startup
	daemon.cfg.setDefaults()
	global.Hostname, err = os.Hostname()
	if err != nil {
		err = fmt.Errorf("failed to determine local hostname: %v", err)
		return
	}

	// Platform metadata
	var lookup resolver.Lookup
	if daemon.cfg.PlatformsFile != "" {
		daemon.platforms, err = resolver.NewReloadableFile(daemon.cfg.PlatformsFile)
		if err != nil {
			return
		}
		daemon.cache, err = resolver.NewCachedLookup(daemon.platforms, daemon.cfg.PlatformCacheSize)
		if err != nil {
			return
		}
		lookup = daemon.cache
	}

	// Sources (built before anything runs so config errors leave nothing behind)
	parsers := header.Default()
	for _, spec := range daemon.cfg.Sources {
		entry := &worker{spec: spec}
		entry.member, entry.collectors, err = buildMember(spec, parsers, lookup)
		if err != nil {
			return
		}
		daemon.workers = append(daemon.workers, entry)
	}

	// Output queue
	daemon.Queue, err = queue.New([]string{global.NSOut},
		uint64(daemon.cfg.MinQueueSize),
		daemon.cfg.MinQueueSize,
		daemon.cfg.MaxQueueSize)
	if err != nil {
		err = fmt.Errorf("failed creating output queue: %v", err)
		return
	}

	// Outputs
	sinks, err := daemon.newSinks()
	if err != nil {
		return
	}
	daemon.Output = output.NewWorker([]string{global.NSOut}, daemon.Queue, sinks...)

	outputCtx := logctx.AppendCtxTag(daemon.ctx, global.NSOut)
	daemon.wg.Add(2)
	go func() {
		defer daemon.wg.Done()
		daemon.Output.Run(outputCtx)
	}()
	go func() {
		defer daemon.wg.Done()
		daemon.scaleQueue(logctx.AppendCtxTag(outputCtx, global.NSQueue))
	}()

	// Metrics
	daemon.Registry = metrics.New()
	daemon.Exporter = metrics.NewExporter(global.ProgBaseName)
	daemon.wg.Add(1)
	go func() {
		defer daemon.wg.Done()
		metrics.Run(daemon.ctx, daemon.Registry, daemon.Exporter,
			daemon.cfg.MetricCollectionInterval,
			daemon.cfg.MetricMaxAge,
			daemon.Collectors)
	}()

	if daemon.cfg.MetricQueryServerEnabled {
		serverCtx := logctx.AppendCtxTag(daemon.ctx, global.NSMetric)
		daemon.MetricServer, err = metrics.NewServer(serverCtx,
			daemon.cfg.MetricQueryServerPort,
			daemon.Registry,
			daemon.Exporter)
		if err != nil {
			err = fmt.Errorf("failed creating metric server: %v", err)
			daemon.Shutdown()
			return
		}
		daemon.wg.Add(1)
		go func() {
			defer daemon.wg.Done()
			metrics.Serve(serverCtx, daemon.MetricServer)
		}()
	}

	// Source workers
	daemon.sourcesCtx, daemon.stopSources = context.WithCancel(daemon.ctx)
	daemon.sourcesDone = make(chan struct{})
	for _, entry := range daemon.workers {
		daemon.sources.Go(func() error {
			return daemon.runSource(daemon.sourcesCtx, entry)
		})
	}
	go func() {
		daemon.sourcesErr = daemon.sources.Wait()
		close(daemon.sourcesDone)
	}()

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog,
		"Startup complete with %d sources.\n", len(daemon.workers))
	return
}

func (daemon *Daemon) newSinks() (sinks []output.Sink, err error) {
	if daemon.cfg.OutputStdout {
		sinks = append(sinks, output.NewStdout())
	}

	file, err := output.NewFile(daemon.cfg.OutputFilePath)
	if err != nil {
		err = fmt.Errorf("failed opening output file: %v", err)
		return
	}
	if file != nil {
		sinks = append(sinks, file)
	}

	beats, err := output.NewBeats(daemon.cfg.BeatsEndpoint)
	if err != nil {
		err = fmt.Errorf("failed connecting to beats endpoint: %v", err)
		if file != nil {
			file.Close()
		}
		return
	}
	if beats != nil {
		sinks = append(sinks, beats)
	}
	return
}

// Every metric producer in the pipeline
func (daemon *Daemon) Collectors() (collectors []metrics.Collector) {
	if daemon.Queue != nil {
		collectors = append(collectors, daemon.Queue)
	}
	if daemon.Output != nil {
		collectors = append(collectors, daemon.Output)
	}
	for _, entry := range daemon.workers {
		collectors = append(collectors, entry.collectors...)
	}
	return
}

func (daemon *Daemon) scaleQueue(ctx context.Context) {
	ticker := time.NewTicker(global.DefaultScaleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			daemon.Queue.ScaleCapacity(ctx)
		}
	}
}

// Blocks until shutdown or until every source finished
func (daemon *Daemon) Run() (err error) {
	select {
	case <-daemon.ctx.Done():
	case <-daemon.sourcesDone:
		err = daemon.sourcesErr
	}
	return
}

// Re-reads the platforms file and drops cached lookups
func (daemon *Daemon) Reload(ctx context.Context) (err error) {
	if daemon.platforms == nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "No platforms file configured, nothing to reload\n")
		return
	}

	count, err := daemon.platforms.Reload()
	if err != nil {
		err = fmt.Errorf("failed to reload platforms: %w", err)
		return
	}
	daemon.cache.Purge()

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"Reloaded %d platforms from %s\n", count, daemon.cfg.PlatformsFile)
	return
}

// Gracefully stops sources, drains queued messages to the outputs, then stops everything else.
// Later calls wait for the first one to finish.
func (daemon *Daemon) Shutdown() {
	daemon.shutdownOnce.Do(daemon.shutdown)
}

func (daemon *Daemon) shutdown() {
	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog,
		"Daemon shutdown started...\n")

	// Stop metric server
	if daemon.MetricServer != nil {
		err := daemon.MetricServer.Shutdown(daemon.ctx)
		if err != nil && err != http.ErrServerClosed {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
				"metric HTTP server did not shutdown gracefully: %v\n", err)
		}
	}

	// Stop source workers
	if daemon.stopSources != nil {
		daemon.stopSources()
		select {
		case <-daemon.sourcesDone:
			if daemon.sourcesErr != nil {
				logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
					"sources stopped with error: %v\n", daemon.sourcesErr)
			}
		case <-time.After(global.ShutdownTimeout):
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
				"sources did not stop within %v\n", global.ShutdownTimeout)
		}
	}

	// Let the output worker catch up before stopping it
	if daemon.Queue != nil {
		drained, remaining := daemon.Queue.WaitEmpty(global.ShutdownTimeout)
		if !drained {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
				"output queue did not empty in time: dropped %d messages\n", remaining)
		}
	}

	// Stop the run loop after sources are stopped and the queue is drained
	daemon.cancel()

	// Wait for all workers to finish (with timeout)
	done := make(chan struct{})
	go func() {
		daemon.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(global.ShutdownTimeout):
		logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
			"Timeout: daemon did not shutdown within %v seconds\n", global.ShutdownTimeout.Seconds())
		return
	}

	if daemon.Output != nil {
		err := daemon.Output.Close()
		if err != nil {
			logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog,
				"failed closing outputs: %v\n", err)
		}
	}

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog,
		"Daemon shutdown completed successfully\n")
}

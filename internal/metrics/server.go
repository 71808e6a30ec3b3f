package metrics

import (
	"bytes"
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type httpLogWriter struct {
	ctx context.Context
}

type jError struct {
	Msg string `json:"error"`
}

// Local HTTP server: Prometheus scrape endpoint plus JSON search and discovery of the registry
func NewServer(ctx context.Context, port int, registry *Registry, exporter *Exporter) (server *http.Server, err error) {
	promRegistry := prometheus.NewRegistry()
	err = promRegistry.Register(exporter)
	if err != nil {
		return
	}

	mux := http.NewServeMux()
	mux.Handle(global.PrometheusPath, promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	mux.HandleFunc(global.DataPath, func(response http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodGet {
			response.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handleData(ctx, registry, response, request)
	})

	mux.HandleFunc(global.DiscoveryPath, func(response http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodGet {
			response.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handleDiscovery(ctx, registry, response, request)
	})

	server = &http.Server{
		Addr:         global.HTTPListenAddr + ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  global.HTTPReadTimeout,
		WriteTimeout: global.HTTPWriteTimeout,
		IdleTimeout:  global.HTTPIdleTimeout,
		ErrorLog:     log.New(httpLogWriter{ctx: ctx}, "", 0),
	}
	return
}

// Blocks serving requests until the server is shut down
func Serve(ctx context.Context, server *http.Server) {
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"metric server listening on http://%s%s\n", server.Addr, global.PrometheusPath)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "metric server failed: %v\n", err)
	}
}

func namespaceFromPath(path, prefix string) (namespace []string) {
	raw := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if raw != "" {
		namespace = strings.Split(raw, "/")
	}
	return
}

// Absolute RFC3339 times or offsets from now such as -5m
func parseQueryTime(raw string, fallback time.Time) (parsed time.Time, ok bool) {
	ok = true
	switch {
	case raw == "" || raw == "now":
		parsed = fallback
	case raw[0] == '-' || raw[0] == '+':
		offset, err := time.ParseDuration(raw)
		if err != nil {
			ok = false
			return
		}
		parsed = time.Now().Add(offset)
	default:
		var err error
		parsed, err = time.Parse(time.RFC3339Nano, raw)
		ok = err == nil
	}
	return
}

func handleData(ctx context.Context, registry *Registry, response http.ResponseWriter, request *http.Request) {
	start, ok := parseQueryTime(request.FormValue("starttime"), time.Now().Add(-time.Minute))
	if !ok {
		response.WriteHeader(http.StatusBadRequest)
		return
	}
	end, ok := parseQueryTime(request.FormValue("endtime"), time.Now())
	if !ok {
		response.WriteHeader(http.StatusBadRequest)
		return
	}

	found := registry.Search(request.FormValue("name"), namespaceFromPath(request.URL.Path, global.DataPath), start, end)
	writeResults(ctx, response, found)
}

func handleDiscovery(ctx context.Context, registry *Registry, response http.ResponseWriter, request *http.Request) {
	metricType := MetricType(strings.ToLower(request.FormValue("type")))
	switch metricType {
	case "", Counter, Gauge, Summary:
	default:
		response.WriteHeader(http.StatusBadRequest)
		return
	}

	found := registry.Discover(request.FormValue("name"), namespaceFromPath(request.URL.Path, global.DiscoveryPath), metricType)
	writeResults(ctx, response, found)
}

func writeResults(ctx context.Context, response http.ResponseWriter, found []Metric) {
	if len(found) == 0 {
		writeJSON(ctx, response, jError{Msg: "search returned no results"})
		return
	}
	results := make([]JMetric, 0, len(found))
	for _, metric := range found {
		results = append(results, metric.Convert())
	}
	writeJSON(ctx, response, results)
}

func writeJSON(ctx context.Context, response http.ResponseWriter, content any) {
	buf := new(bytes.Buffer)
	err := json.NewEncoder(buf).Encode(content)
	if err != nil {
		response.WriteHeader(http.StatusInternalServerError)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "failed marshaling metric results: %v\n", err)
		return
	}
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusOK)
	response.Write(buf.Bytes())
}

// Routes net/http server errors into the context logger
func (writer httpLogWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	if n == 0 {
		return
	}
	logctx.LogEvent(writer.ctx, global.VerbosityStandard, global.ErrorLog, "%s\n", strings.TrimSpace(string(p)))
	return
}

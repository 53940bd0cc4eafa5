// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Command erebusd hosts the process-table and system-telemetry request
// handlers over an in-process dispatch.Dispatcher (spec.md §4.7); it
// does not itself terminate a wire RPC protocol (spec.md §1's explicit
// non-goal), so main's job is construction and lifecycle, not framing.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/antimetal/erebusd/internal/procservice"
	"github.com/antimetal/erebusd/pkg/dispatch"
	"github.com/antimetal/erebusd/pkg/iconcache"
	"github.com/antimetal/erebusd/pkg/performance"
	"github.com/antimetal/erebusd/pkg/performance/collectors"
	"github.com/antimetal/erebusd/pkg/plugin"
	"github.com/antimetal/erebusd/pkg/procfs"
	"github.com/antimetal/erebusd/pkg/session"
	"github.com/antimetal/erebusd/pkg/tracer"
)

var (
	setupLog logr.Logger

	procPath        string
	iconIndexDir    string
	iconCacheDir    string
	bpfObjectPath   string
	enableTracer    bool
	metricsAddr     string
	probeAddr       string
	collectInterval time.Duration
	sweepInterval   time.Duration
)

func init() {
	flag.StringVar(&procPath, "proc-path", "/proc",
		"Root of the /proc mount read for process and system state")
	flag.StringVar(&iconIndexDir, "icon-index-dir", "",
		"Directory persisting the icon cache's resolved-path index; empty keeps it in-memory only")
	flag.StringVar(&iconCacheDir, "icon-cache-dir", "",
		"Directory holding pre-rendered icon files written by the external icon-resolution agent")
	flag.StringVar(&bpfObjectPath, "bpf-object", "/etc/erebusd/process.bpf.o",
		"Path to the compiled process-event BPF object")
	flag.BoolVar(&enableTracer, "enable-tracer", true,
		"Attach the eBPF process-event tracer (C8); requires CAP_BPF/CAP_PERFMON")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080",
		"The address the Prometheus metrics endpoint binds to. Set to '0' to disable")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081",
		"The address the health probe endpoint binds to. Set to '0' to disable")
	flag.DurationVar(&collectInterval, "collect-interval", 15*time.Second,
		"Interval between performance collector runs")
	flag.DurationVar(&sweepInterval, "session-sweep-interval", 5*time.Minute,
		"Interval between stale session/stream sweeps; this is hardening on top of the "+
			"edge-triggered reaping done on every DeleteSession/EndStream call")

	opts := zap.Options{}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	setupLog = ctrl.Log.WithName("setup")
}

func main() {
	ctx := ctrl.SetupSignalHandler()

	reader, err := procfs.New(procPath)
	if err != nil {
		setupLog.Error(err, "unable to open proc filesystem")
		os.Exit(1)
	}

	sessions := session.NewManager(setupLog.WithName("session"))
	registry := dispatch.NewRegistry(setupLog)
	_ = dispatch.NewDispatcher(registry, setupLog) // wired to an in-process caller, not a listener; see package doc

	hostRegion, hostAccountID := resolveHostIdentity(setupLog.WithName("hostident"))
	if hostRegion != "" {
		setupLog.Info("resolved host identity", "region", hostRegion)
	}

	plugins, err := plugin.NewManager(plugin.ManagerOptions{
		Registry: registry,
		Log:      setupLog,
	})
	if err != nil {
		setupLog.Error(err, "unable to create plugin manager")
		os.Exit(1)
	}
	if _, err := plugins.Load("procservice", procservice.Plugin(sessions, reader, hostRegion, hostAccountID)); err != nil {
		setupLog.Error(err, "unable to load procservice plugin")
		os.Exit(1)
	}
	defer func() {
		if err := plugins.UnloadAll(); err != nil {
			setupLog.Error(err, "error unloading plugins")
		}
	}()

	metricsRegistry := prometheus.NewRegistry()
	performance.MustRegisterMetrics(metricsRegistry)
	startPerformanceCollection(ctx, reader)

	iconManager := setupIconCache(ctx)
	_ = iconManager // held alive for its lifetime; consumed by process-icon enrichment when a caller wires one in

	if enableTracer {
		go runTracer(ctx, setupLog.WithName("tracer"))
	}

	go sweepStaleSessions(ctx, sessions)

	if err := serveMetricsAndHealth(ctx, metricsRegistry); err != nil {
		setupLog.Error(err, "metrics/health server exited with an error")
		os.Exit(1)
	}
}

// startPerformanceCollection runs the ambient performance collectors (CPU,
// memory, load, CPU info, disk, disk info, memory info, network info, TCP)
// on a ticker, feeding duration/error Prometheus metrics. This is independent
// of the process-table request handlers: it is the daemon's own
// self-observability, not part of any dispatch.Service reply.
func startPerformanceCollection(ctx context.Context, reader *procfs.ProcFS) {
	log := ctrl.Log.WithName("performance")

	config := performance.CollectionConfig{HostProcPath: procPath}
	config.ApplyDefaults()

	mgr, err := performance.NewManager(performance.ManagerOptions{
		Config: config,
		Logger: log,
	})
	if err != nil {
		log.Error(err, "unable to create performance manager")
		return
	}

	cpuCollector, err := collectors.NewCPUCollector(log, config)
	if err != nil {
		log.Error(err, "unable to create cpu collector")
	} else if err := mgr.RegisterPointCollector(cpuCollector); err != nil {
		log.Error(err, "unable to register cpu collector")
	}

	memCollector, err := collectors.NewMemoryCollector(log, config)
	if err != nil {
		log.Error(err, "unable to create memory collector")
	} else if err := mgr.RegisterPointCollector(memCollector); err != nil {
		log.Error(err, "unable to register memory collector")
	}

	loadCollector, err := collectors.NewLoadCollector(log, config)
	if err != nil {
		log.Error(err, "unable to create load collector")
	} else if err := mgr.RegisterPointCollector(loadCollector); err != nil {
		log.Error(err, "unable to register load collector")
	}

	if err := mgr.RegisterPointCollector(collectors.NewCPUInfoCollector(log, config)); err != nil {
		log.Error(err, "unable to register cpu-info collector")
	}

	diskCollector, err := collectors.NewDiskCollector(log, config)
	if err != nil {
		log.Error(err, "unable to create disk collector")
	} else if err := mgr.RegisterPointCollector(diskCollector); err != nil {
		log.Error(err, "unable to register disk collector")
	}

	diskInfoCollector, err := collectors.NewDiskInfoCollector(log, config)
	if err != nil {
		log.Error(err, "unable to create disk-info collector")
	} else if err := mgr.RegisterPointCollector(diskInfoCollector); err != nil {
		log.Error(err, "unable to register disk-info collector")
	}

	memInfoCollector, err := collectors.NewMemoryInfoCollector(log, config)
	if err != nil {
		log.Error(err, "unable to create memory-info collector")
	} else if err := mgr.RegisterPointCollector(memInfoCollector); err != nil {
		log.Error(err, "unable to register memory-info collector")
	}

	netInfoCollector, err := collectors.NewNetworkInfoCollector(log, config)
	if err != nil {
		log.Error(err, "unable to create network-info collector")
	} else if err := mgr.RegisterPointCollector(netInfoCollector); err != nil {
		log.Error(err, "unable to register network-info collector")
	}

	tcpCollector, err := collectors.NewTCPCollector(log, config)
	if err != nil {
		log.Error(err, "unable to create tcp collector")
	} else if err := mgr.RegisterPointCollector(tcpCollector); err != nil {
		log.Error(err, "unable to register tcp collector")
	}

	go func() {
		ticker := time.NewTicker(collectInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mgr.RunOnce(ctx)
			}
		}
	}()
}

// setupIconCache wires C9's two-tier cache and the comm/exe resolution
// layer above it. There is no external icon-resolution agent process in
// this deployment (spec.md §1 lists icon/desktop-entry discovery as an
// external collaborator), so resolution is driven by a stub that always
// reports a miss; LookupByName still round-trips through the real
// request/response machinery, it just never finds anything until a real
// agent is deployed alongside this one.
func setupIconCache(ctx context.Context) *iconcache.Manager {
	log := ctrl.Log.WithName("iconcache")

	cache, err := iconcache.New(log, iconIndexDir, iconCacheDir, newNoResolver())
	if err != nil {
		log.Error(err, "unable to create icon cache")
		return nil
	}
	cache.Start(ctx)

	mgr, err := iconcache.NewManager(log, cache, nil)
	if err != nil {
		log.Error(err, "unable to create icon manager")
		return nil
	}
	return mgr
}

// runTracer loads and attaches the eBPF process-event tracer, retrying
// attachment with exponential backoff: a transient failure (module not
// yet loaded, BTF not yet available) shouldn't be fatal to the whole
// daemon.
func runTracer(ctx context.Context, log logr.Logger) {
	t := tracer.New(log, bpfObjectPath)

	events, err := backoff.Retry(ctx, func() (<-chan any, error) {
		ch, err := t.Start(ctx)
		if err != nil {
			log.Error(err, "failed to start process-event tracer, retrying...")
			return nil, err
		}
		return ch, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()))
	if err != nil {
		log.Error(err, "giving up on process-event tracer")
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.V(1).Info("process event", "event", ev)
		}
	}
}

// sweepStaleSessions is the hardening ticker spec.md §9 anticipates: a
// background reaper on top of the edge-triggered sweeps DeleteSession and
// EndStream already perform, guarding against a client that never calls
// either.
func sweepStaleSessions(ctx context.Context, sessions *session.Manager) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Sweep()
		}
	}
}

// serveMetricsAndHealth runs the Prometheus metrics and healthz/readyz
// endpoints until ctx is cancelled. Each is skipped if its bind address
// is "0", matching cmd/main.go's convention for disabling a listener.
func serveMetricsAndHealth(ctx context.Context, metricsRegistry *prometheus.Registry) error {
	var servers []*http.Server

	if metricsAddr != "0" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{Addr: metricsAddr, Handler: mux})
	}

	if probeAddr != "0" {
		mux := http.NewServeMux()
		mux.Handle("/healthz", healthz.CheckHandler{Checker: healthz.Ping})
		mux.Handle("/readyz", healthz.CheckHandler{Checker: healthz.Ping})
		servers = append(servers, &http.Server{Addr: probeAddr, Handler: mux})
	}

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			setupLog.Info("starting http server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errs <- err
			}
		}()
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	return nil
}

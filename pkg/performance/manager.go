// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package performance

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
)

// collectDuration and collectErrors instrument every RunOnce pass, one
// observation per registered point collector per tick, exposed through
// cmd/erebusd's metrics server the same way cmd/main.go wired
// metricsserver.Options around its own Prometheus registry.
var (
	collectDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "erebusd_collector_run_duration_seconds",
		Help:    "Duration of one performance collector run, labeled by metric type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"metric_type"})

	collectErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "erebusd_collector_run_errors_total",
		Help: "Count of failed performance collector runs, labeled by metric type.",
	}, []string{"metric_type"})
)

// MustRegisterMetrics registers this package's Prometheus collectors
// against reg. Call once at startup before RunOnce.
func MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(collectDuration, collectErrors)
}

// Manager coordinates collector registration and periodic collection.
type Manager struct {
	config      CollectionConfig
	logger      logr.Logger
	registry    *CollectorRegistry
	nodeName    string
	clusterName string
}

type ManagerOptions struct {
	Config      CollectionConfig
	Logger      logr.Logger
	NodeName    string
	ClusterName string
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Logger.GetSink() == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Get node name from environment if not provided
	nodeName := opts.NodeName
	if nodeName == "" {
		nodeName = os.Getenv("NODE_NAME")
		if nodeName == "" {
			hostname, err := os.Hostname()
			if err != nil {
				return nil, fmt.Errorf("failed to get hostname: %w", err)
			}
			nodeName = hostname
		}
	}

	// Apply defaults to config
	config := opts.Config
	config.ApplyDefaults()

	// Override paths for containerized environments
	if os.Getenv("HOST_PROC") != "" {
		config.HostProcPath = os.Getenv("HOST_PROC")
	}
	if os.Getenv("HOST_SYS") != "" {
		config.HostSysPath = os.Getenv("HOST_SYS")
	}
	if os.Getenv("HOST_DEV") != "" {
		config.HostDevPath = os.Getenv("HOST_DEV")
	}

	m := &Manager{
		config:      config,
		logger:      opts.Logger.WithName("performance-manager"),
		registry:    NewCollectorRegistry(opts.Logger),
		nodeName:    nodeName,
		clusterName: opts.ClusterName,
	}

	return m, nil
}

func (m *Manager) RegisterPointCollector(collector PointCollector) error {
	return m.registry.RegisterPoint(collector)
}

// RunOnce runs every enabled point collector exactly once, timing each
// and recording its outcome against collectDuration/collectErrors, and
// returns a Snapshot assembled from whichever collectors succeeded. A
// failed collector is logged and skipped rather than aborting the whole
// pass, mirroring erebus-processmgr's per-collector isolation (one
// collector's failure never blocks the others' properties).
func (m *Manager) RunOnce(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Timestamp:   time.Now(),
		NodeName:    m.nodeName,
		ClusterName: m.clusterName,
		CollectorRun: CollectorRunInfo{
			CollectorStats: make(map[MetricType]CollectorStat),
		},
	}

	start := time.Now()
	for _, collector := range m.registry.GetEnabledPoint(m.config) {
		metricType := collector.Type()

		collectStart := time.Now()
		data, err := collector.Collect(ctx)
		duration := time.Since(collectStart)

		collectDuration.WithLabelValues(string(metricType)).Observe(duration.Seconds())

		stat := CollectorStat{Status: CollectorStatusActive, Duration: duration, Data: data}
		if err != nil {
			collectErrors.WithLabelValues(string(metricType)).Inc()
			m.logger.Error(err, "collector run failed", "type", metricType)
			stat.Status = CollectorStatusFailed
			stat.Error = err
		}
		snap.CollectorRun.CollectorStats[metricType] = stat
		applySnapshotField(snap, metricType, data)
	}
	snap.CollectorRun.Duration = time.Since(start)

	return snap
}

// applySnapshotField places a successful collector's result into the
// Snapshot's typed Metrics field matching its MetricType.
func applySnapshotField(snap *Snapshot, metricType MetricType, data any) {
	if data == nil {
		return
	}
	switch metricType {
	case MetricTypeLoad:
		if v, ok := data.(*LoadStats); ok {
			snap.Metrics.Load = v
		}
	case MetricTypeMemory:
		if v, ok := data.(*MemoryStats); ok {
			snap.Metrics.Memory = v
		}
	case MetricTypeCPU:
		if v, ok := data.([]*CPUStats); ok {
			stats := make([]CPUStats, len(v))
			for i, s := range v {
				if s != nil {
					stats[i] = *s
				}
			}
			snap.Metrics.CPU = stats
		}
	case MetricTypeCPUInfo:
		if v, ok := data.(*CPUInfo); ok {
			snap.Metrics.CPUInfo = v
		}
	case MetricTypeMemoryInfo:
		if v, ok := data.(*MemoryInfo); ok {
			snap.Metrics.MemoryInfo = v
		}
	case MetricTypeDisk:
		if v, ok := data.([]*DiskStats); ok {
			stats := make([]DiskStats, len(v))
			for i, s := range v {
				if s != nil {
					stats[i] = *s
				}
			}
			snap.Metrics.Disks = stats
		}
	case MetricTypeTCP:
		if v, ok := data.(*TCPStats); ok {
			snap.Metrics.TCP = v
		}
	case MetricTypeDiskInfo:
		if v, ok := data.([]DiskInfo); ok {
			snap.Metrics.DiskInfo = v
		}
	case MetricTypeNetworkInfo:
		if v, ok := data.([]NetworkInfo); ok {
			snap.Metrics.NetworkInfo = v
		}
	}
}

func (m *Manager) RegisterContinuousCollector(collector ContinuousCollector) error {
	return m.registry.RegisterContinuous(collector)
}

// GetRegistry returns the collector registry for inspection
func (m *Manager) GetRegistry() *CollectorRegistry {
	return m.registry
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() CollectionConfig {
	return m.config
}

// GetNodeName returns the node name
func (m *Manager) GetNodeName() string {
	return m.nodeName
}

// GetClusterName returns the cluster name
func (m *Manager) GetClusterName() string {
	return m.clusterName
}

// TODO: Add methods for:
// - Starting/stopping collection based on external signals
// - Performing on-demand collection
// - Managing collector lifecycle
// - Integrating with BadgerDB for storage
// - Forwarding data to intake service

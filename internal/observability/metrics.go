package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "farm_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for one ETL run.
type Metrics struct {
	RecordsExtracted    prometheus.Counter
	RecordsDropped      prometheus.Counter
	CoordinatesRepaired *prometheus.CounterVec // labels: kind={swap,sign}
	FeaturesExported    prometheus.Counter
	RecordsPersisted    prometheus.Counter
	RecordsPublished    prometheus.Counter
	SideChannelFailures *prometheus.CounterVec // labels: channel={persist,publish}
	RunDuration         prometheus.Histogram
	LastSuccess         prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={reverse}
	GeocodeEnabled     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics creates all pipeline metrics and registers them with reg. A
// fresh registry per run (or per test) avoids "already registered" panics.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Total rows read from the source spreadsheet.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Total records removed by geographic validation.",
		}),
		CoordinatesRepaired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinates_repaired_total",
			Help:      "Coordinate corrections by kind.",
		}, []string{"kind"}),
		FeaturesExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_exported_total",
			Help:      "Total GeoJSON features written.",
		}),
		RecordsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_persisted_total",
			Help:      "Total farm rows inserted into the relational store.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Total records written to the Kafka topic.",
		}),
		SideChannelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_channel_failures_total",
			Help:      "Best-effort output failures by channel.",
		}, []string{"channel"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-transform-load run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote its export.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when municipality backfill is enabled, 0 otherwise.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RecordsExtracted,
		m.RecordsDropped,
		m.CoordinatesRepaired,
		m.FeaturesExported,
		m.RecordsPersisted,
		m.RecordsPublished,
		m.SideChannelFailures,
		m.RunDuration,
		m.LastSuccess,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// WriteTextfile writes the current metric values in Prometheus text format,
// for pickup by the node_exporter textfile collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Package sdmetrics instruments the diff engine with Prometheus metrics,
// mirroring the dedicated-registry pattern the rest of the stack uses for
// its own metrics: a private Registry rather than the global default, so
// embedding callers never collide with it.
package sdmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sampldiff"

var (
	// Registry is a dedicated Prometheus registry for all sampldiff metrics.
	Registry = prometheus.NewRegistry()

	// ChunkingDuration measures time spent content-defined-chunking a
	// stream, labeled by which side of the diff ("a" or "b") was chunked.
	ChunkingDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunking_duration_ms",
			Help:      "Duration of content-defined chunking in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000},
		},
		[]string{"stream"},
	)

	// ChunksProduced counts chunks emitted per stream side.
	ChunksProduced = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_produced_total",
			Help:      "Total chunks produced by the content-defined chunker",
		},
		[]string{"stream"},
	)

	// NarrowDuration measures time spent narrowing rough hunks to
	// byte-exact boundaries.
	NarrowDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "narrow_duration_ms",
			Help:      "Duration of the byte-exact narrowing pass in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000},
		},
	)

	// HunksRough counts hunks emitted by the rough diff stage, before
	// narrowing.
	HunksRough = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hunks_rough_total",
			Help:      "Total rough hunks produced by the hunk builder",
		},
	)

	// HunksNarrowed counts hunks remaining after narrowing (narrowing may
	// drop hunks that collapse to empty on both sides).
	HunksNarrowed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hunks_narrowed_total",
			Help:      "Total hunks remaining after byte-exact narrowing",
		},
	)

	// ArchivePutTotal counts archive store writes by outcome (stored vs
	// deduped).
	ArchivePutTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_put_total",
			Help:      "Total archive Put operations by outcome",
		},
		[]string{"outcome"}, // stored | deduped
	)

	// ArchiveBytesStored accumulates compressed bytes actually written to
	// the archive's content-addressable store.
	ArchiveBytesStored = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_bytes_stored_total",
			Help:      "Cumulative compressed bytes written to the archive store",
		},
	)

	// ArchiveDedupedTotal counts Put calls that found an existing CID and
	// skipped writing new bytes.
	ArchiveDedupedTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_deduped_total",
			Help:      "Total archive Put calls that deduplicated against an existing CID",
		},
	)
)

func init() {
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	Registry.MustRegister(prometheus.NewGoCollector())
}

// ObserveChunking records chunking latency and chunk count for one stream
// side ("a" or "b").
func ObserveChunking(start time.Time, streamLabel string, chunkCount int) {
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	ChunkingDuration.WithLabelValues(streamLabel).Observe(elapsed)
	if chunkCount > 0 {
		ChunksProduced.WithLabelValues(streamLabel).Add(float64(chunkCount))
	}
}

// ObserveNarrow records narrowing latency and the rough/narrowed hunk
// counts for one diff.
func ObserveNarrow(start time.Time, roughCount, narrowedCount int) {
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	NarrowDuration.Observe(elapsed)
	HunksRough.Add(float64(roughCount))
	HunksNarrowed.Add(float64(narrowedCount))
}

// ObserveArchivePut records an archive Put outcome and, for newly stored
// payloads, the number of compressed bytes written.
func ObserveArchivePut(deduped bool, storedBytes int) {
	if deduped {
		ArchivePutTotal.WithLabelValues("deduped").Inc()
		ArchiveDedupedTotal.Inc()
		return
	}
	ArchivePutTotal.WithLabelValues("stored").Inc()
	if storedBytes > 0 {
		ArchiveBytesStored.Add(float64(storedBytes))
	}
}

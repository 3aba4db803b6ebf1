package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SegmentsRecordedTotal counts finished segments per station.
	SegmentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavepulse_segments_recorded_total",
		Help: "Number of audio segments successfully captured.",
	}, []string{"station"})

	// RecordRetriesTotal counts capture attempts that hit a transient failure.
	RecordRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavepulse_record_retries_total",
		Help: "Number of segment capture retries after transient stream failures.",
	}, []string{"station"})

	// RecordFailuresTotal counts stations abandoned for a slot invocation.
	RecordFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavepulse_record_failures_total",
		Help: "Number of station recordings abandoned for a slot.",
	}, []string{"station", "reason"})

	// SlotsFiredTotal counts scheduler slot triggers.
	SlotsFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wavepulse_slots_fired_total",
		Help: "Number of schedule slots dispatched.",
	})

	// BufferAllocationsTotal counts segments copied per device buffer.
	BufferAllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavepulse_buffer_allocations_total",
		Help: "Number of segments allocated to each device buffer.",
	}, []string{"device"})

	// ScribeBatchesTotal counts transcription batches per device listener.
	ScribeBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavepulse_scribe_batches_total",
		Help: "Number of transcription batches handed to the collaborator.",
	}, []string{"device"})

	// TranscriptsClassifiedTotal counts classified transcript files.
	TranscriptsClassifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wavepulse_transcripts_classified_total",
		Help: "Number of transcripts classified and reformatted.",
	})

	// BackupUploadsTotal counts archived files per target.
	BackupUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavepulse_backup_uploads_total",
		Help: "Number of files uploaded to the backup archive.",
	}, []string{"target"})

	// BackupFailuresTotal counts abandoned backup cycles per target.
	BackupFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavepulse_backup_failures_total",
		Help: "Number of backup cycles abandoned after retry exhaustion.",
	}, []string{"target"})

	// RunStateGauge is 1 while the shared run-state is set.
	RunStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wavepulse_running",
		Help: "Whether the shared run-state flag is currently set.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics persistence: dumps a JSON summary of accumulated samples to disk,
// grounded on the original prototype's
// common/metrics_logger.py (log_rtt/log_packet_loss/.../save/get_summary).
// A dump whose path ends in ".gz" is gzip-compressed with
// klauspost/compress, following that
// library's use in the R2Northstar Atlas server for static asset and log
// compression.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/klauspost/compress/gzip"
)

// Recorder accumulates raw samples in memory between periodic persistence
// calls, mirroring MetricsLogger's Python lists-of-floats.
type Recorder struct {
	rtt             []float64
	jitter          []float64
	packetLoss      []float64
	bandwidthKbps   []float64
	predictionError []float64
	tickDurationMs  []float64

	smoothedJitter float64
	haveJitterBase bool
	lastRTT        float64
}

// NewRecorder returns an empty sample recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// LogRTT records a round-trip-time sample (seconds) and updates the
// RFC 3550-style smoothed jitter estimate: jitter += (|diff| - jitter)/16.
func (r *Recorder) LogRTT(rttSeconds float64) (jitter float64) {
	r.rtt = append(r.rtt, rttSeconds)

	if r.haveJitterBase {
		diff := rttSeconds - r.lastRTT
		if diff < 0 {
			diff = -diff
		}
		r.smoothedJitter += (diff - r.smoothedJitter) / 16.0
	}
	r.lastRTT = rttSeconds
	r.haveJitterBase = true

	r.jitter = append(r.jitter, r.smoothedJitter)
	return r.smoothedJitter
}

// LogPacketLoss records an instantaneous loss-rate sample.
func (r *Recorder) LogPacketLoss(rate float64) { r.packetLoss = append(r.packetLoss, rate) }

// LogBandwidth records a bandwidth sample in kbps.
func (r *Recorder) LogBandwidth(kbps float64) { r.bandwidthKbps = append(r.bandwidthKbps, kbps) }

// LogPredictionError records a client-side reconciliation error sample.
func (r *Recorder) LogPredictionError(err float64) {
	r.predictionError = append(r.predictionError, err)
}

// LogTickDuration records how long one simulation tick took to run.
func (r *Recorder) LogTickDuration(ms float64) { r.tickDurationMs = append(r.tickDurationMs, ms) }

// Summary is the persisted/report-friendly rollup of every recorded metric.
type Summary struct {
	RTT             SeriesSummary `json:"rtt_seconds"`
	JitterMean      float64       `json:"jitter_mean_seconds"`
	PacketLossMean  float64       `json:"packet_loss_mean"`
	BandwidthMean   float64       `json:"bandwidth_mean_kbps"`
	PredictionError SeriesSummary `json:"prediction_error"`
	TickDuration    SeriesSummary `json:"tick_duration_ms"`
	SampleCount     int           `json:"sample_count"`
}

// SeriesSummary holds the descriptive statistics get_summary() computed per
// series in the original prototype.
type SeriesSummary struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
}

// GetSummary computes the rollup over every sample recorded so far.
func (r *Recorder) GetSummary() Summary {
	return Summary{
		RTT:             summarize(r.rtt),
		JitterMean:      mean(r.jitter),
		PacketLossMean:  mean(r.packetLoss),
		BandwidthMean:   mean(r.bandwidthKbps),
		PredictionError: summarize(r.predictionError),
		TickDuration:    summarize(r.tickDurationMs),
		SampleCount:     len(r.rtt),
	}
}

// Save writes the current summary as JSON to path, gzip-compressing the
// payload when path ends in ".gz".
func (r *Recorder) Save(path string) error {
	summary := r.GetSummary()
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("telemetry: marshal summary: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("telemetry: create %s: %w", path, err)
	}
	defer f.Close()

	if len(path) > 3 && path[len(path)-3:] == ".gz" {
		gw := gzip.NewWriter(f)
		defer gw.Close()
		_, err = gw.Write(data)
		return err
	}
	_, err = f.Write(data)
	return err
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func summarize(xs []float64) SeriesSummary {
	if len(xs) == 0 {
		return SeriesSummary{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	return SeriesSummary{
		Mean: mean(xs),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P50:  percentile(sorted, 0.50),
		P95:  percentile(sorted, 0.95),
		P99:  percentile(sorted, 0.99),
	}
}

// percentile assumes sorted is already sorted ascending.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

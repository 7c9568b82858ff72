package telemetry

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerTagsRunID(t *testing.T) {
	logger, runID := NewLogger(zerolog.InfoLevel, false)
	if runID == "" {
		t.Error("run id is empty")
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want InfoLevel", logger.GetLevel())
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := ParseLevel("bogus"); got != zerolog.InfoLevel {
		t.Errorf("ParseLevel(bogus) = %v, want InfoLevel", got)
	}
	if got := ParseLevel("debug"); got != zerolog.DebugLevel {
		t.Errorf("ParseLevel(debug) = %v, want DebugLevel", got)
	}
}

func TestRecorderJitterSmoothing(t *testing.T) {
	r := NewRecorder()
	r.LogRTT(0.100)
	j := r.LogRTT(0.116) // diff=0.016, jitter = 0 + (0.016-0)/16 = 0.001
	want := 0.001
	if diff := j - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("jitter = %v, want %v", j, want)
	}
}

func TestRecorderSummary(t *testing.T) {
	r := NewRecorder()
	for _, v := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
		r.LogRTT(v)
	}
	s := r.GetSummary()
	if s.SampleCount != 5 {
		t.Errorf("SampleCount = %d, want 5", s.SampleCount)
	}
	if s.RTT.Min != 0.1 || s.RTT.Max != 0.5 {
		t.Errorf("RTT min/max = %v/%v, want 0.1/0.5", s.RTT.Min, s.RTT.Max)
	}
	if s.RTT.Mean != 0.3 {
		t.Errorf("RTT mean = %v, want 0.3", s.RTT.Mean)
	}
}

func TestRecorderSummaryEmpty(t *testing.T) {
	r := NewRecorder()
	s := r.GetSummary()
	if s.SampleCount != 0 {
		t.Errorf("SampleCount = %d, want 0", s.SampleCount)
	}
	if s.RTT.Mean != 0 {
		t.Errorf("empty RTT mean = %v, want 0", s.RTT.Mean)
	}
}

func TestRecorderSaveJSON(t *testing.T) {
	r := NewRecorder()
	r.LogRTT(0.05)

	tmp, err := os.CreateTemp(t.TempDir(), "metrics-*.json")
	if err != nil {
		t.Fatalf("CreateTemp() error = %v", err)
	}
	tmp.Close()

	if err := r.Save(tmp.Name()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("saved file is empty")
	}
}

func TestRecorderSaveGzip(t *testing.T) {
	r := NewRecorder()
	r.LogRTT(0.05)

	path := t.TempDir() + "/metrics.json.gz"
	if err := r.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() == 0 {
		t.Error("gzip-saved file is empty")
	}
}

func TestNewMetricsRegistersCollectors(t *testing.T) {
	m := NewMetrics()
	mfs, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(mfs) == 0 {
		t.Error("no metric families registered")
	}
}

func TestPlainStatusLineStripsStyling(t *testing.T) {
	styled := StatusLine(3, "tick=42", 0.1, 12.5)
	plain := PlainStatusLine(3, "tick=42", 0.1, 12.5)
	if styled == plain {
		t.Error("styled and plain status lines are identical, want styling stripped")
	}
}

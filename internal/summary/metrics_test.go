package summary_test

import (
	"encoding/json"
	"math"
	"testing"

	"visuallab/internal/summary"
)

func TestMetricsUnmarshalNullBecomesNaN(t *testing.T) {
	var m summary.Metrics
	if err := json.Unmarshal([]byte(`{"accuracy":0.91,"precision":null,"recall":0.85}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Accuracy != 0.91 || m.Recall != 0.85 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if !math.IsNaN(m.Precision) || !math.IsNaN(m.F1Score) {
		t.Fatalf("expected NaN for null/absent fields, got %+v", m)
	}
}

func TestMetricsUnmarshalRejectsUnrelatedObject(t *testing.T) {
	var m summary.Metrics
	if err := json.Unmarshal([]byte(`{"error":"No dataset uploaded"}`), &m); err == nil {
		t.Fatal("expected error for object without metric fields")
	}
}

func TestMetricsUnmarshalAllNullIsUndefined(t *testing.T) {
	var m summary.Metrics
	if err := json.Unmarshal([]byte(`{"accuracy":null,"precision":null,"recall":null,"f1Score":null}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for name, v := range map[string]float64{"accuracy": m.Accuracy, "precision": m.Precision, "recall": m.Recall, "f1Score": m.F1Score} {
		if !math.IsNaN(v) {
			t.Fatalf("expected %s to be NaN, got %v", name, v)
		}
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("all-undefined metrics should validate: %v", err)
	}
}

func TestMetricsUnmarshalRejectsNull(t *testing.T) {
	var m summary.Metrics
	if err := m.UnmarshalJSON([]byte(`null`)); err == nil {
		t.Fatal("expected error for null metrics object")
	}
}

func TestMetricsValidateRange(t *testing.T) {
	ok := summary.Metrics{Accuracy: 0.5, Precision: math.NaN(), Recall: 1, F1Score: 0}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := summary.Metrics{Accuracy: 1.2}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected range error")
	}
}

func TestMetricsMarshalEncodesNaNAsNull(t *testing.T) {
	data, err := json.Marshal(summary.Metrics{Accuracy: 0.5, Precision: math.NaN(), Recall: 0.25, F1Score: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"accuracy":0.5,"precision":null,"recall":0.25,"f1Score":1}`
	if string(data) != want {
		t.Fatalf("got %s want %s", data, want)
	}
}

func TestFormatMetric(t *testing.T) {
	if got := summary.FormatMetric(0.916); got != "0.92" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := summary.FormatMetric(math.NaN()); got != "n/a" {
		t.Fatalf("unexpected NaN format %q", got)
	}
}

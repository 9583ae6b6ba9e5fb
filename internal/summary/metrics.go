package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Metrics describes one completed training run. A NaN field means the
// measurement was undefined (for example a degenerate class split).
type Metrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1Score   float64
}

var metricKeys = []string{"accuracy", "precision", "recall", "f1Score"}

type metricsWire struct {
	Accuracy  *float64 `json:"accuracy"`
	Precision *float64 `json:"precision"`
	Recall    *float64 `json:"recall"`
	F1Score   *float64 `json:"f1Score"`
}

// Validate reports whether every field is NaN or within [0, 1].
func (m Metrics) Validate() error {
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"accuracy", m.Accuracy},
		{"precision", m.Precision},
		{"recall", m.Recall},
		{"f1Score", m.F1Score},
	} {
		if math.IsNaN(field.value) {
			continue
		}
		if math.IsInf(field.value, 0) || field.value < 0 || field.value > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", field.name, field.value)
		}
	}
	return nil
}

// MarshalJSON encodes undefined (NaN) fields as null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsWire{
		Accuracy:  definedOrNil(m.Accuracy),
		Precision: definedOrNil(m.Precision),
		Recall:    definedOrNil(m.Recall),
		F1Score:   definedOrNil(m.F1Score),
	})
}

// UnmarshalJSON decodes null or absent fields as NaN. An object carrying none
// of the four keys is rejected.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("metrics must be a JSON object")
	}
	known := 0
	for _, key := range metricKeys {
		if _, ok := raw[key]; ok {
			known++
		}
	}
	if known == 0 {
		return errors.New("metrics object has no known fields")
	}
	var wire metricsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Accuracy = valueOrNaN(wire.Accuracy)
	m.Precision = valueOrNaN(wire.Precision)
	m.Recall = valueOrNaN(wire.Recall)
	m.F1Score = valueOrNaN(wire.F1Score)
	return nil
}

// FormatMetric renders a metric with two decimals, or "n/a" when undefined.
func FormatMetric(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func definedOrNil(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

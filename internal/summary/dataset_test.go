package summary_test

import (
	"encoding/json"
	"strings"
	"testing"

	"visuallab/internal/summary"
)

func TestNormalizeCanonicalizesColumnOrder(t *testing.T) {
	ds := summary.Dataset{
		RowCount:    2,
		ColumnCount: 2,
		Preview: []summary.Record{
			summary.NewRecord("a", json.Number("1"), "b", json.Number("2")),
			summary.NewRecord("b", json.Number("4"), "a", json.Number("3")),
		},
	}
	out, err := ds.Normalize(5)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := strings.Join(out.Preview[1].Columns(), ","); got != "a,b" {
		t.Fatalf("expected second record reordered to a,b, got %s", got)
	}
	if v, _ := out.Preview[1].Get("a"); v != json.Number("3") {
		t.Fatalf("unexpected value for a: %#v", v)
	}
}

func TestNormalizeRejectsMismatchedKeySets(t *testing.T) {
	ds := summary.Dataset{
		Preview: []summary.Record{
			summary.NewRecord("a", 1, "b", 2),
			summary.NewRecord("a", 1, "c", 2),
		},
	}
	if _, err := ds.Normalize(5); err == nil {
		t.Fatal("expected key set mismatch error")
	}
	short := summary.Dataset{
		Preview: []summary.Record{
			summary.NewRecord("a", 1, "b", 2),
			summary.NewRecord("a", 1),
		},
	}
	if _, err := short.Normalize(5); err == nil {
		t.Fatal("expected column count mismatch error")
	}
}

func TestNormalizeCapsPreview(t *testing.T) {
	ds := summary.Dataset{RowCount: 10}
	for i := 0; i < 8; i++ {
		ds.Preview = append(ds.Preview, summary.NewRecord("a", i))
	}
	out, err := ds.Normalize(3)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out.Preview) != 3 {
		t.Fatalf("expected 3 preview rows, got %d", len(out.Preview))
	}
	if len(ds.Preview) != 8 {
		t.Fatal("Normalize must not mutate the receiver")
	}
}

func TestNormalizeRejectsNegativeCounts(t *testing.T) {
	for _, ds := range []summary.Dataset{
		{RowCount: -1},
		{ColumnCount: -1},
		{MissingValueCount: -1},
	} {
		if _, err := ds.Normalize(5); err == nil {
			t.Fatalf("expected error for %+v", ds)
		}
	}
}

func TestDatasetJSONDecodesBackendShape(t *testing.T) {
	payload := `{"rows":100,"columns":5,"missingValues":3,"preview":[{"a":1,"b":2}]}`
	var ds summary.Dataset
	if err := json.Unmarshal([]byte(payload), &ds); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ds.RowCount != 100 || ds.ColumnCount != 5 || ds.MissingValueCount != 3 {
		t.Fatalf("unexpected counts %+v", ds)
	}
	if got := strings.Join(ds.Columns(), ","); got != "a,b" {
		t.Fatalf("unexpected columns %q", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ds := summary.Dataset{Preview: []summary.Record{summary.NewRecord("a", "x")}}
	clone := ds.Clone()
	clone.Preview[0].Fields[0].Value = "changed"
	if v, _ := ds.Preview[0].Get("a"); v != "x" {
		t.Fatalf("clone shares storage with original: %#v", v)
	}
}

package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNew_AutoDimension(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "shorts-extract"
	defer func() { functionName = "" }()

	r := New("TestNamespace")
	if r.namespace != "TestNamespace" {
		t.Errorf("expected namespace TestNamespace, got %s", r.namespace)
	}
	if r.dimensions["FunctionName"] != "shorts-extract" {
		t.Errorf("expected FunctionName dimension, got %s", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	initOnce.Do(func() {})
	functionName = ""

	var buf bytes.Buffer
	rec := New(Namespace).To(&buf)
	rec.now = func() time.Time { return time.UnixMilli(1700000000123) }
	rec.Dimension("Outcome", "success")
	rec.Metric("ExtractMs", 1234.5, UnitMilliseconds)
	rec.Count("Extractions")
	rec.Property("key", "uploads/clip.mov")
	rec.Flush()

	output := buf.String()
	if strings.Count(output, "\n") != 1 || !strings.HasSuffix(output, "\n") {
		t.Fatalf("expected exactly one line, got %q", output)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, output)
	}

	awsMap, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if awsMap["Timestamp"] != float64(1700000000123) {
		t.Errorf("Timestamp = %v", awsMap["Timestamp"])
	}

	cwArr, ok := awsMap["CloudWatchMetrics"].([]any)
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}
	cw := cwArr[0].(map[string]any)
	if cw["Namespace"] != "ShortsMediaHelper" {
		t.Errorf("expected namespace ShortsMediaHelper, got %v", cw["Namespace"])
	}
	metrics := cw["Metrics"].([]any)
	if len(metrics) != 2 || metrics[0].(map[string]any)["Name"] != "ExtractMs" {
		t.Errorf("expected sorted metric definitions, got %v", metrics)
	}

	if doc["Outcome"] != "success" {
		t.Errorf("expected Outcome=success, got %v", doc["Outcome"])
	}
	if doc["ExtractMs"] != 1234.5 {
		t.Errorf("expected ExtractMs=1234.5, got %v", doc["ExtractMs"])
	}
	if doc["Extractions"] != float64(1) {
		t.Errorf("expected Extractions=1, got %v", doc["Extractions"])
	}
	if doc["key"] != "uploads/clip.mov" {
		t.Errorf("expected key property, got %v", doc["key"])
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	New("Test").To(&buf).Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestRecorder_ToNilDiscards(t *testing.T) {
	rec := New("Test").To(nil).Count("Calls")
	rec.Flush()
}

func TestRecorder_Duration(t *testing.T) {
	rec := New("Test").Duration("ProbeMs", 1500*time.Millisecond)
	if rec.values["ProbeMs"] != float64(1500) || rec.metrics["ProbeMs"].Unit != UnitMilliseconds {
		t.Errorf("got %v %v", rec.values["ProbeMs"], rec.metrics["ProbeMs"])
	}
}

func TestRecorder_Chaining(t *testing.T) {
	functionName = ""
	rec := New("Test").
		Dimension("Op", "test").
		Metric("Duration", 100, UnitMilliseconds).
		Count("Calls").
		Property("id", "xyz")

	if rec.dimensions["Op"] != "test" {
		t.Error("chaining Dimension failed")
	}
	if rec.values["Duration"] != float64(100) {
		t.Error("chaining Metric failed")
	}
	if rec.values["Calls"] != float64(1) {
		t.Error("chaining Count failed")
	}
	if rec.properties["id"] != "xyz" {
		t.Error("chaining Property failed")
	}
}

package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("workflow_type", "vat"),
		attribute.String("client_id", "456"),
		attribute.String("to_stage", "FILED_TO_HMRC"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "workflow_type" && attrs[1].Key != "workflow_type" {
		t.Fatalf("expected workflow_type to be retained")
	}
	if attrs[0].Key != "to_stage" && attrs[1].Key != "to_stage" {
		t.Fatalf("expected to_stage to be retained")
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordWorkflowFiled(ctx, "vat")
	m.RecordStageTransition(ctx, "ltd", "FILED_CH_HMRC")
	m.RecordRegistrySync(ctx, "companies_house", "ok")
	m.RecordReminderSent(ctx, "vat")
}

func TestNewBuildsInstruments(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected metrics instance")
	}
	m.RecordWorkflowFiled(context.Background(), "non-ltd")
}

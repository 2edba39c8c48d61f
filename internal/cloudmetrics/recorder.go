package cloudmetrics

import (
	"strings"
	"sync"
)

type Recorder interface {
	RecordWorkflowFiled(workflowType string)
	RecordRegistrySync(source string)
	RecordRegistrySyncFailure(operation string)
	UpdateActiveClients(category string, count int)
}

type recorder struct {
	metrics *metrics
}

type noopRecorder struct{}

func (noopRecorder) RecordWorkflowFiled(string)        {}
func (noopRecorder) RecordRegistrySync(string)         {}
func (noopRecorder) RecordRegistrySyncFailure(string)  {}
func (noopRecorder) UpdateActiveClients(string, int)   {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

func RecordWorkflowFiled(workflowType string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordWorkflowFiled(workflowType)
}

func RecordRegistrySync(source string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordRegistrySync(source)
}

func RecordRegistrySyncFailure(operation string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordRegistrySyncFailure(operation)
}

func UpdateActiveClients(category string, count int) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.UpdateActiveClients(category, count)
}

func (r *recorder) RecordWorkflowFiled(workflowType string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.workflowsFiled.WithLabelValues(normalizeLabel(workflowType)).Inc()
}

func (r *recorder) RecordRegistrySync(source string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.registrySyncs.WithLabelValues(normalizeLabel(source)).Inc()
}

func (r *recorder) RecordRegistrySyncFailure(operation string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.registrySyncFails.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (r *recorder) UpdateActiveClients(category string, count int) {
	if r == nil || r.metrics == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	r.metrics.activeClients.WithLabelValues(normalizeLabel(category)).Set(float64(count))
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}

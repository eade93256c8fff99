package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/mmk-portal/internal/errors"
)

type recordedMetric struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

type recordingSink struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, recordedMetric{kind: "count", name: name, value: float64(value), tags: tags})
}

func (r *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, recordedMetric{kind: "timing", name: name, value: float64(value), tags: tags})
}

func TestEmitSessionTransition(t *testing.T) {
	sink := &recordingSink{}

	EmitSessionTransition(sink, SessionMetric{Transition: TransitionLogin, Result: ResultSuccess, Role: "HR"})
	EmitSessionTransition(sink, SessionMetric{
		Transition: TransitionLogin,
		Result:     ResultError,
		Err:        errors.New("bad token"),
	})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "session.transition", sink.metrics[0].name)
	assert.Equal(t, map[string]string{"transition": "login", "result": "success", "role": "HR"}, sink.metrics[0].tags)
	assert.Equal(t, "errors_errorstring", sink.metrics[1].tags["error_class"])
}

func TestEmitBackendCall(t *testing.T) {
	sink := &recordingSink{}

	EmitBackendCall(sink, BackendMetric{
		Operation: "login",
		Result:    ResultError,
		Duration:  20 * time.Millisecond,
		Err:       apperrors.Unauthorized("nope"),
	})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "count", sink.metrics[0].kind)
	assert.Equal(t, "unauthorized", sink.metrics[0].tags["error_class"])
	assert.Equal(t, "timing", sink.metrics[1].kind)
	assert.Equal(t, "backend.duration", sink.metrics[1].name)
	assert.Equal(t, sink.metrics[0].tags, sink.metrics[1].tags)
}

func TestEmitGuardDecision(t *testing.T) {
	sink := &recordingSink{}
	EmitGuardDecision(sink, "/portal/hr", "login")
	require.Len(t, sink.metrics, 1)
	assert.Equal(t, map[string]string{"route": "/portal/hr", "outcome": "login"}, sink.metrics[0].tags)
}

func TestNilSinkIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitSessionTransition(nil, SessionMetric{})
		EmitGuardDecision(nil, "/", "render")
		EmitBackendCall(nil, BackendMetric{})
	})
}

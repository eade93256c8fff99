// Package metrics emits the portal's standard counters and timings.
package metrics

import (
	"time"

	obserrors "github.com/target/mmk-portal/internal/observability/errors"
	"github.com/target/mmk-portal/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Session transitions.
const (
	TransitionRestore = "restore"
	TransitionLogin   = "login"
	TransitionLogout  = "logout"
	TransitionExpire  = "expire"
)

// SessionMetric captures one session state transition.
type SessionMetric struct {
	Transition string
	Result     string
	Role       string
	Err        error
}

// EmitSessionTransition counts a session transition.
func EmitSessionTransition(sink statsd.Sink, in SessionMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Role != "" {
		tags["role"] = in.Role
	}
	addErrorClass(tags, in.Result, in.Err)
	sink.Count("session.transition", 1, tags)
}

// EmitGuardDecision counts one route guard outcome.
func EmitGuardDecision(sink statsd.Sink, route, outcome string) {
	if sink == nil {
		return
	}
	sink.Count("guard.decision", 1, map[string]string{
		"route":   route,
		"outcome": outcome,
	})
}

// BackendMetric captures one call to the authentication backend.
type BackendMetric struct {
	Operation string
	Result    string
	Duration  time.Duration
	Err       error
}

// EmitBackendCall counts and times a backend call.
func EmitBackendCall(sink statsd.Sink, in BackendMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"operation": in.Operation,
		"result":    in.Result,
	}
	addErrorClass(tags, in.Result, in.Err)
	sink.Count("backend.call", 1, tags)
	if in.Duration > 0 {
		sink.Timing("backend.duration", in.Duration, CloneTags(tags))
	}
}

func addErrorClass(tags map[string]string, result string, err error) {
	if err == nil || result != ResultError {
		return
	}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

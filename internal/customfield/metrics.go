// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for save metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// AttributeSaves counts SaveEntityAttributes calls.
// Use RegisterMetrics to register this with a Prometheus registry.
var AttributeSaves = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "customfields_attribute_saves_total",
		Help: "Total number of entity attribute saves by entity type and outcome",
	},
	[]string{"entity_type", "outcome"},
)

// AttributeSaveDuration observes SaveEntityAttributes latency.
var AttributeSaveDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "customfields_attribute_save_duration_seconds",
		Help:    "Entity attribute save duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"entity_type"},
)

// ValueRejections counts submitted values rejected by type validation.
var ValueRejections = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "customfields_value_rejections_total",
		Help: "Total number of field values rejected by validation, by field type",
	},
	[]string{"field_type"},
)

// EntityPurges counts OnEntityDeleted invocations.
var EntityPurges = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "customfields_entity_purges_total",
		Help: "Total number of entity deletions that purged custom attributes",
	},
	[]string{"entity_type"},
)

// RegisterMetrics registers the package metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AttributeSaves)
	reg.MustRegister(AttributeSaveDuration)
	reg.MustRegister(ValueRejections)
	reg.MustRegister(EntityPurges)
}

func recordSave(entityType EntityType, err error, duration time.Duration) {
	AttributeSaves.WithLabelValues(entityType.String(), outcomeOf(err)).Inc()
	AttributeSaveDuration.WithLabelValues(entityType.String()).Observe(duration.Seconds())
}

func recordRejection(fieldType FieldType) {
	ValueRejections.WithLabelValues(fieldType.String()).Inc()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrConflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

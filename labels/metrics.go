package labels

import (
	"errors"

	"github.com/orian/labeltree/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts public engine operations by outcome
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labeltree_operations_total",
		Help: "Label engine operations by operation and result",
	}, []string{"op", "result"})

	// labelsStored tracks the size of the label store
	labelsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labeltree_labels",
		Help: "Number of labels in the store",
	})

	// itemsMapped tracks the size of the assignment mapping
	itemsMapped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labeltree_mapped_items",
		Help: "Number of items assigned to a label",
	})

	autoAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labeltree_auto_assignments_total",
		Help: "Items assigned by auto-apply rules",
	}, []string{"trigger"}) // "added" or "retroactive"

	pathUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labeltree_path_updates_total",
		Help: "Labels whose move path was recomputed by propagation",
	})

	snapshotRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labeltree_snapshot_requests_total",
		Help: "Change feed requests by result",
	}, []string{"result"}) // "fresh" or "unchanged"
)

// observe records the outcome of one public operation.
func observe(op string, err error) {
	operationsTotal.WithLabelValues(op, resultOf(err)).Inc()
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrUnknownLabel):
		return "unknown_label"
	case errors.Is(err, models.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, models.ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, models.ErrInvalidOptions):
		return "invalid_options"
	case errors.Is(err, models.ErrNotInitialized):
		return "not_initialized"
	default:
		return "error"
	}
}

// updateGauges must be called with the engine lock held.
func (e *Engine) updateGauges() {
	labelsStored.Set(float64(len(e.labels)))
	itemsMapped.Set(float64(len(e.mappings)))
}

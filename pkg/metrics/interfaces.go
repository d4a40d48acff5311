package metrics

import (
	"net/http"

	"github.com/mfreeman451/nodeverify/pkg/models"
)

// CycleStore keeps the most recent cycle outcomes.
type CycleStore interface {
	Add(point models.CyclePoint)
	GetPoints() []models.CyclePoint
}

// Exporter serves the collected metrics.
type Exporter interface {
	Handler() http.Handler
	History() []models.CyclePoint
}

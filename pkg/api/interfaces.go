package api

import (
	"context"

	"github.com/mfreeman451/nodeverify/pkg/models"
	"github.com/mfreeman451/nodeverify/pkg/verifier"
)

//go:generate mockgen -destination=mock_verifier.go -package=api github.com/mfreeman451/nodeverify/pkg/api Verifier

// Verifier runs request cycles for the API. *verifier.Service implements it.
type Verifier interface {
	Cycle(ctx context.Context, sess *verifier.Session, action verifier.Action) (*verifier.View, error)
	Stats(ctx context.Context) (*models.StoreStats, error)
	Totals(ctx context.Context, mode models.RefreshMode) (*models.Totals, error)
}

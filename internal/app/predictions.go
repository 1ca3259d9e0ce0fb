package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/types"
)

// Predictions returns what has been saved for userID, in category order, and
// the first category that still needs work.
func (s *Service) Predictions(ctx context.Context, userID string) (types.PredictionsView, error) {
	return withSpan(s, ctx, "Predictions", userID, func(ctx context.Context, _ trace.Span) (types.PredictionsView, error) {
		if userID == "" {
			return types.PredictionsView{}, ErrInvalidUser
		}
		p, err := s.running()
		if err != nil {
			return types.PredictionsView{}, err
		}
		return s.predictions(ctx, p, userID)
	})
}

func (s *Service) predictions(ctx context.Context, p pipeline, userID string) (types.PredictionsView, error) {
	snaps, err := p.store.List(ctx, userID)
	if err != nil {
		return types.PredictionsView{}, fmt.Errorf("list predictions: %w", err)
	}

	view := types.PredictionsView{
		UserID:      userID,
		Predictions: make([]types.SavedPrediction, 0, len(snaps)),
	}
	done := make(map[model.Category]bool, len(snaps))
	for _, snap := range snaps {
		sp := savedPrediction(snap)
		view.Predictions = append(view.Predictions, sp)
		done[sp.Category] = sp.Complete
	}
	for _, c := range model.Categories {
		if !done[c] {
			view.NextIncomplete = c
			break
		}
	}
	view.Complete = view.NextIncomplete == ""
	return view, nil
}

// Compare lines userID's saved predictions up against the other players'.
// It is only available once the season is locked. With against set only that
// user is compared; otherwise every seeded user is.
func (s *Service) Compare(ctx context.Context, userID, against string) (types.Comparison, error) {
	return withSpan(s, ctx, "Compare", userID, func(ctx context.Context, span trace.Span) (types.Comparison, error) {
		span.SetAttributes(attribute.String("against", against))
		if userID == "" {
			return types.Comparison{}, ErrInvalidUser
		}
		if !s.locked() {
			return types.Comparison{}, ErrSeasonOpen
		}
		p, err := s.running()
		if err != nil {
			return types.Comparison{}, err
		}

		names := make(map[string]string, len(s.data.Users))
		others := make([]string, 0, len(s.data.Users))
		for _, u := range s.data.Users {
			names[u.ID] = u.Name
			if u.ID != userID {
				others = append(others, u.ID)
			}
		}
		if against != "" {
			others = []string{against}
		}

		out := types.Comparison{Season: s.Season()}
		for i, id := range append([]string{userID}, others...) {
			view, err := s.predictions(ctx, p, id)
			if err != nil {
				return types.Comparison{}, err
			}
			if i > 0 && len(view.Predictions) == 0 {
				if against != "" {
					return types.Comparison{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
				}
				continue
			}
			name := names[id]
			if name == "" {
				name = id
			}
			out.Entries = append(out.Entries, types.ComparisonEntry{
				UserID:      id,
				Name:        name,
				Predictions: view.Predictions,
			})
		}
		return out, nil
	})
}

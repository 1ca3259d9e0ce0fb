package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/pickem/internal/adapters/autosave"
	"github.com/okian/pickem/internal/adapters/repository"
	"github.com/okian/pickem/internal/domain/dedupe"
	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
	"github.com/okian/pickem/internal/domain/reorder"
	"github.com/okian/pickem/internal/domain/types"
	"github.com/okian/pickem/pkg/metrics"
)

// pipeline is the part of the service that only exists between Start and Stop.
type pipeline struct {
	debouncer *autosave.Debouncer
	deduper   dedupe.Deduper
	store     *repository.MemoryStore
}

func (s *Service) running() (pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return pipeline{}, ErrNotStarted
	}
	return pipeline{debouncer: s.debouncer, deduper: s.deduper, store: s.store}, nil
}

func (s *Service) lookup(userID string) (*board, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	s.mu.RLock()
	b, ok := s.boards[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBoardNotFound, userID)
	}
	return b, nil
}

// editable returns the board and pipeline for a mutation, refusing once the
// season is locked.
func (s *Service) editable(userID string) (*board, pipeline, error) {
	if s.locked() {
		metrics.RecordMutationBlocked()
		return nil, pipeline{}, ErrSeasonLocked
	}
	b, err := s.lookup(userID)
	if err != nil {
		return nil, pipeline{}, err
	}
	p, err := s.running()
	if err != nil {
		return nil, pipeline{}, err
	}
	return b, p, nil
}

// notify hands the category's current snapshot to the debouncer.
// Callers hold b.mu.
func (s *Service) notify(ctx context.Context, p pipeline, b *board, category model.Category) {
	p.debouncer.Notify(ctx, autosave.Key{UserID: b.userID, Category: category}, s.stamp(b.snapshot(category, s.data.Props)))
}

// stamp pairs snap with the next revision. Callers hold b.mu, so one board's
// snapshots are numbered in the order its state changed.
func (s *Service) stamp(snap payload.Payload) autosave.Snapshot {
	return autosave.Snapshot{Payload: snap, Revision: s.revision.Add(1)}
}

// Open creates userID's board, or returns it when already open. Without
// initial data a new board starts from the user's saved predictions, falling
// back to the defaults for anything never saved.
func (s *Service) Open(ctx context.Context, userID string, init *Initial) (types.BoardView, error) {
	return withSpan(s, ctx, "Open", userID, func(ctx context.Context, span trace.Span) (types.BoardView, error) {
		if userID == "" {
			return types.BoardView{}, ErrInvalidUser
		}

		if b, err := s.lookup(userID); err == nil {
			b.mu.Lock()
			defer b.mu.Unlock()
			return s.boardView(b), nil
		}

		b, err := s.newBoard(userID, init)
		if err != nil {
			return types.BoardView{}, err
		}

		if init == nil {
			if p, err := s.running(); err == nil {
				snaps, err := p.store.List(ctx, userID)
				if err != nil {
					return types.BoardView{}, fmt.Errorf("load saved predictions: %w", err)
				}
				b.restore(snaps, s.policy)
				span.SetAttributes(attribute.Int("board.restored", len(snaps)))
			}
		}

		s.mu.Lock()
		if existing, ok := s.boards[userID]; ok {
			b = existing
		} else {
			s.boards[userID] = b
		}
		open := len(s.boards)
		s.mu.Unlock()
		metrics.UpdateBoardsOpen(open)

		b.mu.Lock()
		defer b.mu.Unlock()
		return s.boardView(b), nil
	})
}

// Board returns the view of an open board.
func (s *Service) Board(ctx context.Context, userID string) (types.BoardView, error) {
	return withSpan(s, ctx, "Board", userID, func(context.Context, trace.Span) (types.BoardView, error) {
		b, err := s.lookup(userID)
		if err != nil {
			return types.BoardView{}, err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		return s.boardView(b), nil
	})
}

// Close discards userID's board. Edits still waiting on the quiet period are
// saved first.
func (s *Service) Close(ctx context.Context, userID string) error {
	_, err := withSpan(s, ctx, "Close", userID, func(ctx context.Context, _ trace.Span) (struct{}, error) {
		b, err := s.lookup(userID)
		if err != nil {
			return struct{}{}, err
		}

		s.mu.Lock()
		delete(s.boards, userID)
		open := len(s.boards)
		s.mu.Unlock()
		metrics.UpdateBoardsOpen(open)

		p, err := s.running()
		if err != nil {
			return struct{}{}, nil
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		var errs []error
		for _, c := range model.Categories {
			if _, err := p.debouncer.FlushKey(ctx, autosave.Key{UserID: userID, Category: c}); err != nil {
				errs = append(errs, fmt.Errorf("flush %s: %w", c, err))
			}
		}
		return struct{}{}, errors.Join(errs...)
	})
	return err
}

type moved struct {
	view    types.StandingsView
	changed bool
}

// Reorder moves draggedID to target in conference's standings. An unknown id
// or a move onto itself reports changed=false.
func (s *Service) Reorder(ctx context.Context, userID string, conference model.Conference, draggedID string, target int) (types.StandingsView, bool, error) {
	m, err := withSpan(s, ctx, "Reorder", userID, func(ctx context.Context, span trace.Span) (moved, error) {
		span.SetAttributes(
			attribute.String("conference", string(conference)),
			attribute.String("item.id", draggedID),
			attribute.Int("target", target),
		)
		if !validConference(conference) {
			return moved{}, fmt.Errorf("%w: conference %q", ErrInvalidInput, conference)
		}
		b, p, err := s.editable(userID)
		if err != nil {
			return moved{}, err
		}

		b.mu.Lock()
		items := b.standings[conference]
		next := reorder.Reorder(items, draggedID, target)
		m := s.applyMove(ctx, p, b, conference, items, next)
		b.mu.Unlock()

		outcome := "noop"
		if m.changed {
			outcome = "moved"
			s.listener.Publish(userID, EventStandingsReordered, m.view)
		}
		metrics.RecordReorder(string(conference), outcome)
		return m, nil
	})
	return m.view, m.changed, err
}

// Drag feeds one gesture event to conference's drag session. Only a drop
// after a start can change the standings.
func (s *Service) Drag(ctx context.Context, userID string, conference model.Conference, ev types.DragEvent) (types.StandingsView, bool, error) {
	m, err := withSpan(s, ctx, "Drag", userID, func(ctx context.Context, span trace.Span) (moved, error) {
		span.SetAttributes(
			attribute.String("conference", string(conference)),
			attribute.String("drag.kind", ev.Kind),
		)
		if !validConference(conference) {
			return moved{}, fmt.Errorf("%w: conference %q", ErrInvalidInput, conference)
		}
		b, p, err := s.editable(userID)
		if err != nil {
			return moved{}, err
		}

		b.mu.Lock()
		session := b.drags[conference]
		var m moved
		switch ev.Kind {
		case types.DragStart:
			session.Start(ev.ItemID)
		case types.DragOver:
			session.Over(ev.Index)
		case types.DragDrop:
			items := b.standings[conference]
			next, _ := session.Drop(items, ev.Index)
			m = s.applyMove(ctx, p, b, conference, items, next)
			outcome := "noop"
			if m.changed {
				outcome = "dropped"
			}
			metrics.RecordDragOutcome(string(conference), outcome)
		case types.DragEnd:
			if session.Active() {
				metrics.RecordDragOutcome(string(conference), "cancelled")
			}
			session.End()
		default:
			b.mu.Unlock()
			return moved{}, fmt.Errorf("%w: drag kind %q", ErrInvalidInput, ev.Kind)
		}
		if ev.Kind != types.DragDrop {
			m.view = s.standingsView(b, conference)
		}
		b.mu.Unlock()

		if m.changed {
			s.listener.Publish(userID, EventStandingsReordered, m.view)
		}
		return m, nil
	})
	return m.view, m.changed, err
}

// applyMove stores next when it differs from items and schedules an autosave.
// Callers hold b.mu.
func (s *Service) applyMove(ctx context.Context, p pipeline, b *board, c model.Conference, items, next []model.Item) moved {
	changed := reorder.Changed(items, next)
	if changed {
		b.standings[c] = next
		s.notify(ctx, p, b, model.CategoryStandings)
	}
	return moved{view: s.standingsView(b, c), changed: changed}
}

// ActivateSlot points the board's cursor at ref. A ref naming no slot leaves
// the cursor unchanged and reports changed=false.
func (s *Service) ActivateSlot(ctx context.Context, userID string, ref model.SlotRef) (types.SlotUpdate, error) {
	return withSpan(s, ctx, "ActivateSlot", userID, func(_ context.Context, span trace.Span) (types.SlotUpdate, error) {
		span.SetAttributes(
			attribute.String("category", string(ref.Category)),
			attribute.String("slot.group", ref.Group),
			attribute.Int("slot.index", ref.Slot),
		)
		b, _, err := s.editable(userID)
		if err != nil {
			return types.SlotUpdate{}, err
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		activated := b.picker.Activate(ref)
		return slotUpdate(b, activated, ref.Category), nil
	})
}

// AssignPlayer writes playerID into the active slot. Without an active slot
// nothing changes.
func (s *Service) AssignPlayer(ctx context.Context, userID, playerID string) (types.SlotUpdate, error) {
	return withSpan(s, ctx, "AssignPlayer", userID, func(ctx context.Context, span trace.Span) (types.SlotUpdate, error) {
		span.SetAttributes(attribute.String("player.id", playerID))
		b, p, err := s.editable(userID)
		if err != nil {
			return types.SlotUpdate{}, err
		}
		player, ok := s.catalog.Lookup(playerID)
		if !ok {
			return types.SlotUpdate{}, fmt.Errorf("%w: %q", ErrPlayerNotFound, playerID)
		}

		b.mu.Lock()
		res := b.picker.Assign(player)
		if res.Changed {
			s.notify(ctx, p, b, res.Category)
			metrics.RecordSlotAssignment(string(res.Category))
		}
		if res.Rejected {
			metrics.RecordSlotRejection(string(res.Category))
		}
		u := slotUpdate(b, res.Changed, res.Category)
		u.Rejected = res.Rejected
		u.Displaced = res.Displaced
		b.mu.Unlock()

		if res.Changed {
			s.listener.Publish(userID, EventSlotsUpdated, u)
		}
		return u, nil
	})
}

// ClearSlot empties the active slot. Without an active slot nothing changes.
func (s *Service) ClearSlot(ctx context.Context, userID string) (types.SlotUpdate, error) {
	return withSpan(s, ctx, "ClearSlot", userID, func(ctx context.Context, _ trace.Span) (types.SlotUpdate, error) {
		b, p, err := s.editable(userID)
		if err != nil {
			return types.SlotUpdate{}, err
		}

		b.mu.Lock()
		res := b.picker.Clear()
		if res.Changed {
			s.notify(ctx, p, b, res.Category)
			metrics.RecordSlotClear(string(res.Category))
		}
		u := slotUpdate(b, res.Changed, res.Category)
		b.mu.Unlock()

		if res.Changed {
			s.listener.Publish(userID, EventSlotsUpdated, u)
		}
		return u, nil
	})
}

// slotUpdate describes the board after a cursor operation. Callers hold b.mu.
func slotUpdate(b *board, changed bool, category model.Category) types.SlotUpdate {
	u := types.SlotUpdate{Changed: changed}
	if ref, ok := b.picker.Active(); ok {
		u.Cursor = &ref
	}
	if set, ok := b.picker.Set(category); ok {
		u.Set = &set
	}
	return u
}

// PickProp records an over/under pick and saves the props category at once.
// The pick stays on the board even when the save is refused.
func (s *Service) PickProp(ctx context.Context, userID, propID, prediction string) ([]types.PropView, error) {
	return withSpan(s, ctx, "PickProp", userID, func(ctx context.Context, span trace.Span) ([]types.PropView, error) {
		span.SetAttributes(attribute.String("prop.id", propID))
		b, p, err := s.editable(userID)
		if err != nil {
			return nil, err
		}
		if err := s.checkPick(propID, prediction); err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.picks[propID] = prediction
		snap := s.stamp(b.snapshot(model.CategoryProps, s.data.Props))
		view := s.propsView(b)
		b.mu.Unlock()

		metrics.RecordPropPick()
		s.listener.Publish(userID, EventPropsUpdated, view)

		key := autosave.Key{UserID: userID, Category: model.CategoryProps}
		if err := p.debouncer.SaveNow(ctx, key, snap); err != nil {
			return view, err
		}
		return view, nil
	})
}

// Save saves category now, or every category when category is empty. A
// repeated idempotencyKey is acknowledged with the first request's id and
// nothing is queued.
func (s *Service) Save(ctx context.Context, userID string, category model.Category, idempotencyKey string) (types.SaveReceipt, error) {
	return withSpan(s, ctx, "Save", userID, func(ctx context.Context, span trace.Span) (types.SaveReceipt, error) {
		span.SetAttributes(attribute.String("category", string(category)))

		categories := model.Categories
		if category != "" {
			if !slices.Contains(model.Categories, category) {
				return types.SaveReceipt{}, fmt.Errorf("%w: category %q", ErrInvalidInput, category)
			}
			categories = []model.Category{category}
		}

		b, p, err := s.editable(userID)
		if err != nil {
			return types.SaveReceipt{}, err
		}

		receipt := types.SaveReceipt{
			RequestID:  uuid.NewString(),
			Categories: append([]model.Category(nil), categories...),
		}

		dedupeKey := ""
		if idempotencyKey != "" {
			dedupeKey = userID + "|" + idempotencyKey
			if first, seen := p.deduper.SeenAndRecord(ctx, dedupeKey, receipt.RequestID); seen {
				metrics.RecordSaveDuplicate()
				span.SetAttributes(attribute.Bool("save.duplicate", true))
				receipt.RequestID = first
				receipt.Duplicate = true
				return receipt, nil
			}
		}

		b.mu.Lock()
		snaps := make(map[model.Category]autosave.Snapshot, len(categories))
		for _, c := range categories {
			if snap := b.snapshot(c, s.data.Props); snap != nil {
				snaps[c] = s.stamp(snap)
			}
		}
		b.mu.Unlock()

		unrecord := func() {
			if dedupeKey != "" {
				p.deduper.Unrecord(ctx, dedupeKey)
			}
		}
		// Nothing is queued unless every category would be accepted.
		for _, c := range categories {
			snap, ok := snaps[c]
			if !ok {
				continue
			}
			if err := snap.Payload.Validate(); err != nil {
				unrecord()
				return types.SaveReceipt{}, fmt.Errorf("save %s for %s: %w", c, userID, err)
			}
		}
		for _, c := range categories {
			snap, ok := snaps[c]
			if !ok {
				continue
			}
			if err := p.debouncer.SaveNow(ctx, autosave.Key{UserID: userID, Category: c}, snap); err != nil {
				unrecord()
				return types.SaveReceipt{}, err
			}
		}
		return receipt, nil
	})
}

// FilterPlayers searches the player catalog. When a query matches nothing the
// closest names are offered as suggestions.
func (s *Service) FilterPlayers(ctx context.Context, query, tag string) types.PlayerSearch {
	res, _ := withSpan(s, ctx, "FilterPlayers", "", func(_ context.Context, span trace.Span) (types.PlayerSearch, error) {
		span.SetAttributes(attribute.String("query", query), attribute.String("tag", tag))
		out := types.PlayerSearch{Items: s.catalog.Filter(query, tag)}
		if len(out.Items) == 0 && query != "" && s.suggestLimit > 0 {
			out.Suggestions = s.catalog.Suggest(query, s.suggestLimit)
		}
		metrics.RecordPlayerSearch()
		return out, nil
	})
	return res
}

func validConference(c model.Conference) bool {
	return slices.Contains(model.Conferences, c)
}

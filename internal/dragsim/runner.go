package dragsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/reorder"
	"github.com/okian/pickem/internal/domain/types"
	"github.com/okian/pickem/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	reportPermission    = 0600
)

// savePollInterval is how often the saved predictions are polled.
const savePollInterval = 20 * time.Millisecond

// Report is what Run writes to Config.Output.
type Report struct {
	Config Config                                   `json:"config"`
	Stats  Stats                                    `json:"stats"`
	Final  map[string]map[model.Conference][]string `json:"final"`
	Errors []string                                 `json:"errors,omitempty"`
}

// counters is Stats guarded for concurrent workers.
type counters struct {
	mu     sync.Mutex
	stats  Stats
	final  map[string]map[model.Conference][]string
	errors []string
}

func (c *counters) add(f func(*Stats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}

func (c *counters) fail(userID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errors.Is(err, ErrInvariant) {
		c.stats.Mismatches++
	} else {
		c.stats.Failed++
	}
	c.errors = append(c.errors, userID+": "+err.Error())
}

// Run executes a simulation and returns its statistics. It fails when the
// server is unreachable or any invariant was violated.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	c := &counters{
		stats: Stats{StartTime: time.Now(), Users: cfg.Users},
		final: make(map[string]map[model.Conference][]string),
	}

	log.Info(ctx, "starting drag simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("gestures", cfg.Gestures),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}

	users := NewGenerator(cfg.Seed).UserIDs(cfg.Users)

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Each user gets its own generator so a seed replays exactly.
				gen := NewGenerator(cfg.Seed + int64(i) + 1)
				if err := simulateUser(ctx, cfg, client, gen, users[i], c, log); err != nil {
					c.fail(users[i], err)
					log.Warn(ctx, "user simulation failed", logger.String("user", users[i]), logger.Error(err))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range users {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	c.stats.EndTime = time.Now()
	c.stats.Duration = c.stats.EndTime.Sub(c.stats.StartTime)
	stats := c.stats

	displayFinalStats(ctx, log, &stats)

	if cfg.Output != "" {
		report := Report{Config: *cfg, Stats: stats, Final: c.final, Errors: c.errors}
		if err := writeReport(cfg.Output, &report); err != nil {
			log.Warn(ctx, "failed to write report", logger.Error(err))
		}
	}

	if err := ctx.Err(); err != nil {
		return &stats, fmt.Errorf("simulation interrupted: %w", err)
	}
	if stats.Mismatches > 0 {
		return &stats, fmt.Errorf("%w: %d mismatches", ErrInvariant, stats.Mismatches)
	}
	if stats.Failed > 0 {
		return &stats, fmt.Errorf("%d users failed", stats.Failed)
	}
	return &stats, nil
}

// simulateUser opens a board, plays cfg.Gestures gestures on it, saves and
// checks the saved standings.
func simulateUser(ctx context.Context, cfg *Config, client *Client, gen *Generator, userID string, c *counters, log logger.Logger) error {
	board, err := client.Open(ctx, userID)
	if err != nil {
		return fmt.Errorf("open board: %w", err)
	}
	local := make(map[model.Conference][]model.Item, len(board.Standings))
	for _, v := range board.Standings {
		items, err := itemsOf(v)
		if err != nil {
			return err
		}
		local[v.Conference] = items
	}

	for n := 0; n < cfg.Gestures; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		conf := gen.Conference()
		before := local[conf]
		g := gen.Gesture(conf, before)

		res, err := play(ctx, client, userID, g)
		if err != nil {
			return fmt.Errorf("gesture %d (%s): %w", n, g.Kind, err)
		}

		want := before
		if g.Kind != KindCancel {
			want = reorder.Reorder(before, g.ItemID, g.Target)
		}
		if err := checkStep(before, want, res); err != nil {
			return fmt.Errorf("gesture %d %+v: %w", n, g, err)
		}
		local[conf] = want

		c.add(func(s *Stats) {
			s.Gestures++
			switch {
			case g.Kind == KindCancel:
				s.Cancelled++
			case res.Changed:
				s.Moved++
			default:
				s.Noops++
			}
		})
		if cfg.Verbose {
			log.Debug(ctx, "gesture",
				logger.String("user", userID),
				logger.String("conference", string(conf)),
				logger.String("kind", g.Kind),
				logger.String("item", g.ItemID),
				logger.Int("target", g.Target),
				logger.Bool("changed", res.Changed))
		}
	}

	if err := saveAndVerify(ctx, cfg, client, userID, local); err != nil {
		return err
	}
	c.add(func(s *Stats) { s.Saved++ })

	final := make(map[model.Conference][]string, len(local))
	for conf, items := range local {
		final[conf] = model.IDs(items)
	}
	c.mu.Lock()
	c.final[userID] = final
	c.mu.Unlock()

	return client.Close(ctx, userID)
}

// play sends g the way a browser would.
func play(ctx context.Context, client *Client, userID string, g Gesture) (standingsResult, error) {
	if g.Kind == KindReorder {
		return client.Reorder(ctx, userID, g.Conference, g.ItemID, g.Target)
	}

	steps := []types.DragEvent{
		{Kind: types.DragStart, ItemID: g.ItemID},
		{Kind: types.DragOver, Index: g.Target},
	}
	if g.Kind == KindCancel {
		steps = append(steps, types.DragEvent{Kind: types.DragEnd})
	} else {
		steps = append(steps, types.DragEvent{Kind: types.DragDrop, Index: g.Target})
	}

	var res standingsResult
	for _, ev := range steps {
		var err error
		if res, err = client.Drag(ctx, userID, g.Conference, ev); err != nil {
			return standingsResult{}, err
		}
	}
	return res, nil
}

// saveAndVerify saves the standings twice under one idempotency key and
// waits for the saved copy to match local.
func saveAndVerify(ctx context.Context, cfg *Config, client *Client, userID string, local map[model.Conference][]model.Item) error {
	key := uuid.NewString()
	first, _, err := client.Save(ctx, userID, key)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	again, status, err := client.Save(ctx, userID, key)
	if err != nil {
		return fmt.Errorf("repeat save: %w", err)
	}
	if !again.Duplicate || again.RequestID != first.RequestID {
		return fmt.Errorf("%w: repeated idempotency key answered %d with request %s, want duplicate of %s",
			ErrInvariant, status, again.RequestID, first.RequestID)
	}

	wait := cfg.SaveWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	deadline := time.Now().Add(wait)
	var lastErr error
	for {
		preds, err := client.Predictions(ctx, userID)
		if err != nil {
			return fmt.Errorf("predictions: %w", err)
		}
		for _, p := range preds {
			if p.Category == model.CategoryStandings {
				lastErr = checkSaved(p.Payload, local)
				if lastErr == nil {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			if lastErr == nil {
				lastErr = fmt.Errorf("%w: standings never saved", ErrInvariant)
			}
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(savePollInterval):
		}
	}
}

func writeReport(path string, report *Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, raw, reportPermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Gestures) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("users", stats.Users),
		logger.Int("gestures", stats.Gestures),
		logger.Int("moved", stats.Moved),
		logger.Int("noops", stats.Noops),
		logger.Int("cancelled", stats.Cancelled),
		logger.Int("saved", stats.Saved),
		logger.Int("failed", stats.Failed),
		logger.Int("mismatches", stats.Mismatches),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("gesturesPerSecond", perSecond))
}

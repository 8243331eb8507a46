// Package readstate executes mark-read, mark-all-read and delete against
// the owning sources. Local state changes first; each source call then
// confirms or rolls back only its own entries.
package readstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/notifeed/internal/feed"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// Coordinator applies optimistic read-state mutations to a feed.Store.
type Coordinator struct {
	store   *feed.Store
	sources map[model.Source]source.Source
	journal Journal
	log     zerolog.Logger
}

// New creates a Coordinator. journal may be nil.
func New(
	store *feed.Store,
	sources []source.Source,
	journal Journal,
	logger zerolog.Logger,
) *Coordinator {
	if journal == nil {
		journal = nopJournal{}
	}
	m := make(map[model.Source]source.Source, len(sources))
	for _, s := range sources {
		m[s.Source()] = s
	}
	return &Coordinator{
		store:   store,
		sources: m,
		journal: journal,
		log:     logger.With().Str("component", "readstate").Logger(),
	}
}

// MarkRead flips keys to read locally, then issues one mark-read call per
// source concurrently. A failed call reverts only that source's entries.
func (c *Coordinator) MarkRead(ctx context.Context, keys []model.Key) Report {
	bySource := partition(keys)
	report := Report{Op: model.OpMarkRead}

	var order []model.Source
	flipped := make(map[model.Source][]model.Key, len(bySource))
	for _, src := range model.Sources {
		ks, ok := bySource[src]
		if !ok {
			continue
		}
		order = append(order, src)
		flipped[src] = c.store.MarkRead(ks)
	}

	outcomes := make([]Outcome, len(order))
	var g errgroup.Group
	for i, src := range order {
		g.Go(func() error {
			outcomes[i] = c.markIDs(ctx, src, ids(bySource[src]), flipped[src])
			return nil
		})
	}
	_ = g.Wait()

	report.Outcomes = outcomes
	return report
}

// MarkAllRead marks every entry read. A source with a bulk primitive gets
// one bulk call; any other source gets a per-id call for its currently
// unread entries. The calls are independent and may partially succeed.
func (c *Coordinator) MarkAllRead(ctx context.Context) Report {
	report := Report{Op: model.OpMarkAllRead}

	var order []model.Source
	for _, src := range model.Sources {
		if _, ok := c.sources[src]; ok {
			order = append(order, src)
		}
	}

	outcomes := make([]Outcome, len(order))
	var g errgroup.Group
	for i, src := range order {
		g.Go(func() error {
			outcomes[i] = c.markAll(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	report.Outcomes = outcomes
	return report
}

func (c *Coordinator) markAll(ctx context.Context, src model.Source) Outcome {
	adapter := c.sources[src]

	if bulk, ok := adapter.(source.BulkMarker); ok {
		flipped := c.store.MarkSourceRead(src)
		err := c.step(ctx, model.Step{Op: model.OpMarkAllRead, Source: src}, func(ctx context.Context) error {
			return bulk.MarkAllRead(ctx)
		})
		return c.settle(src, flipped, err)
	}

	keys := c.store.UnreadKeys(src)
	if len(keys) == 0 {
		return Outcome{Source: src, Skipped: true}
	}
	flipped := c.store.MarkRead(keys)
	return c.markIDs(ctx, src, ids(keys), flipped)
}

// markIDs sends a per-id mark-read call and settles the optimistic flip.
func (c *Coordinator) markIDs(
	ctx context.Context,
	src model.Source,
	idList []string,
	flipped []model.Key,
) Outcome {
	adapter, ok := c.sources[src]
	if !ok {
		return c.settle(src, flipped, fmt.Errorf("%s: %w", src, ErrUnknownSource))
	}
	marker, ok := adapter.(source.IDMarker)
	if !ok {
		return c.settle(src, flipped, fmt.Errorf("%s mark read: %w", src, ErrUnsupported))
	}

	err := c.step(ctx, model.Step{Op: model.OpMarkRead, Source: src, IDs: idList}, func(ctx context.Context) error {
		return marker.MarkRead(ctx, idList)
	})
	return c.settle(src, flipped, err)
}

// settle reverts flipped when err is non-nil and builds the outcome.
func (c *Coordinator) settle(src model.Source, flipped []model.Key, err error) Outcome {
	if err == nil {
		return Outcome{Source: src, Keys: flipped}
	}

	reverted := c.store.Revert(flipped)
	c.log.Warn().Err(err).
		Str("source", string(src)).
		Int("reverted", reverted).
		Msg("mark read rejected, rolled back")

	return Outcome{
		Source: src,
		Keys:   flipped,
		Err:    &MarkReadFailedError{Source: src, Keys: flipped, Err: err},
	}
}

// Delete removes key locally, then asks its source to delete it. A failed
// call returns a DeleteFailedError and the entry is not reinserted.
func (c *Coordinator) Delete(ctx context.Context, key model.Key) error {
	if _, ok := c.store.Remove(key); !ok {
		c.log.Debug().Str("key", key.String()).Msg("delete of entry not in feed")
	}

	err := c.deleteRemote(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key.String()).Msg("delete rejected")
		return &DeleteFailedError{Key: key, Err: err}
	}
	return nil
}

func (c *Coordinator) deleteRemote(ctx context.Context, key model.Key) error {
	adapter, ok := c.sources[key.Source]
	if !ok {
		return fmt.Errorf("%s: %w", key.Source, ErrUnknownSource)
	}

	step := model.Step{Op: model.OpDelete, Source: key.Source, IDs: []string{key.ID}}
	switch d := adapter.(type) {
	case source.BatchDeleter:
		return c.step(ctx, step, func(ctx context.Context) error {
			return d.Delete(ctx, []string{key.ID})
		})
	case source.SingleDeleter:
		return c.step(ctx, step, func(ctx context.Context) error {
			return d.DeleteOne(ctx, key.ID)
		})
	default:
		return fmt.Errorf("%s delete: %w", key.Source, ErrUnsupported)
	}
}

// Replay re-runs a previously failed step.
func (c *Coordinator) Replay(ctx context.Context, step model.Step) error {
	switch step.Op {
	case model.OpMarkRead:
		keys := make([]model.Key, len(step.IDs))
		for i, id := range step.IDs {
			keys[i] = model.Key{Source: step.Source, ID: id}
		}
		flipped := c.store.MarkRead(keys)
		return c.markIDs(ctx, step.Source, step.IDs, flipped).Err

	case model.OpMarkAllRead:
		if _, ok := c.sources[step.Source]; !ok {
			return fmt.Errorf("%s: %w", step.Source, ErrUnknownSource)
		}
		return c.markAll(ctx, step.Source).Err

	case model.OpDelete:
		var errs []error
		for _, id := range step.IDs {
			if err := c.Delete(ctx, model.Key{Source: step.Source, ID: id}); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	default:
		return fmt.Errorf("replay %q: %w", step.Op, ErrUnsupported)
	}
}

// step runs fn as one journaled saga step.
func (c *Coordinator) step(ctx context.Context, s model.Step, fn func(context.Context) error) error {
	id, jerr := c.journal.Begin(ctx, s)
	if jerr != nil {
		c.log.Error().Err(jerr).Str("op", string(s.Op)).Msg("journal begin failed")
	}

	err := fn(ctx)

	// The outcome is recorded even when ctx ended the call, so a cancelled
	// step is listed as failed instead of staying pending.
	if jerr == nil {
		if ferr := c.journal.Finish(context.WithoutCancel(ctx), id, err); ferr != nil {
			c.log.Error().Err(ferr).Str("step", id).Msg("journal finish failed")
		}
	}
	return err
}

func partition(keys []model.Key) map[model.Source][]model.Key {
	out := make(map[model.Source][]model.Key)
	seen := make(map[model.Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out[k.Source] = append(out[k.Source], k)
	}
	return out
}

func ids(keys []model.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.ID
	}
	return out
}

package realtime

import (
	"errors"
	"fmt"
	gosync "sync"

	"github.com/rs/zerolog"

	"github.com/nhle/notifeed/internal/feed"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// ErrClassificationAmbiguous means a push payload matched no source's
// shape. Such events are dropped.
var ErrClassificationAmbiguous = errors.New("push payload matches no known source")

// ErrDuplicate means the pushed entry is already in the feed.
var ErrDuplicate = errors.New("push entry already in feed")

// Ingestor translates push events and prepends them to the feed.
type Ingestor struct {
	store   *feed.Store
	sources map[model.Source]source.Source
	log     zerolog.Logger

	mu     gosync.Mutex
	unsubs []func()
}

// NewIngestor creates an Ingestor writing into store.
func NewIngestor(store *feed.Store, sources []source.Source, logger zerolog.Logger) *Ingestor {
	m := make(map[model.Source]source.Source, len(sources))
	for _, s := range sources {
		m[s.Source()] = s
	}
	return &Ingestor{
		store:   store,
		sources: m,
		log:     logger.With().Str("component", "ingestor").Logger(),
	}
}

// Attach subscribes to events on ch and activates live ingestion. With
// no events, DefaultEvent is used.
func (in *Ingestor) Attach(ch Channel, events ...string) error {
	if len(events) == 0 {
		events = []string{DefaultEvent}
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	for _, event := range events {
		unsub, err := ch.Subscribe(event, func(data []byte) {
			in.handle(event, data)
		})
		if err != nil {
			return fmt.Errorf("subscribing to %q: %w", event, err)
		}
		in.unsubs = append(in.unsubs, unsub)
	}

	in.store.ActivateLive()
	return nil
}

// Detach removes every subscription made by Attach.
func (in *Ingestor) Detach() {
	in.mu.Lock()
	defer in.mu.Unlock()

	for _, unsub := range in.unsubs {
		unsub()
	}
	in.unsubs = nil
}

func (in *Ingestor) handle(event string, data []byte) {
	env, err := source.DecodeEnvelope(event, data)
	if err != nil {
		in.log.Warn().Err(err).Str("event", event).Msg("dropping undecodable push frame")
		return
	}

	in.report(event, env, in.OnEvent(env))
}

// report logs why a push event was not ingested. Push failures never
// reach the sender, so this is their only trace.
func (in *Ingestor) report(event string, env source.Envelope, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrClassificationAmbiguous):
		in.log.Warn().Err(err).Str("event", event).Str("tag", env.Source).Msg("dropping push event")
	case errors.Is(err, ErrDuplicate):
		in.log.Debug().Err(err).Str("event", event).Msg("ignoring duplicate push event")
	default:
		in.log.Warn().Err(err).Str("event", event).Str("tag", env.Source).Msg("push event not ingested")
	}
}

// OnEvent routes env to its adapter and prepends the translated entry. A
// tagged envelope goes straight to the named source; an untagged one is
// classified by payload shape.
func (in *Ingestor) OnEvent(env source.Envelope) error {
	var src model.Source
	if env.Source != "" {
		parsed, err := model.ParseSource(env.Source)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrClassificationAmbiguous, err)
		}
		src = parsed
	} else {
		src = source.Classify(env.Payload)
	}

	adapter, ok := in.sources[src]
	if !ok {
		return fmt.Errorf("%w: no adapter for %s", ErrClassificationAmbiguous, src)
	}

	n, ok := adapter.TranslatePush(env.Payload)
	if !ok {
		return fmt.Errorf("%w: not a %s payload", ErrClassificationAmbiguous, src)
	}
	n.Source = src
	n.IsRead = false

	if !in.store.Push(n) {
		return fmt.Errorf("%w: %s", ErrDuplicate, n.Key())
	}
	in.log.Debug().Str("key", n.Key().String()).Msg("pushed entry ingested")
	return nil
}

// Package refresh detects changes to a patient's record lists and pushes
// them to the hub, so clients no longer poll the backend themselves.
package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/mediimate/gateway/internal/platform/websocket"
)

// Source returns a canonical snapshot of one record list. Any change to the
// list must change the snapshot bytes.
type Source interface {
	Snapshot(ctx context.Context, token, kind, subject string) ([]byte, error)
}

// TokenSource yields the backend token of a live session.
type TokenSource interface {
	TokenFor(ctx context.Context, sessionID string) (string, error)
}

type watch struct {
	topic       string
	kind        string
	subject     string
	fingerprint string
	inFlight    bool
}

// Poller polls the backend for every topic that has subscribers and
// publishes an event when a list's fingerprint changes. It implements
// websocket.TopicListener so watches follow hub subscriptions.
type Poller struct {
	publisher websocket.EventPublisher
	source    Source
	tokens    TokenSource
	timeout   time.Duration
	logger    zerolog.Logger

	mu        sync.Mutex
	watches   map[string]*watch
	sessions  map[string]string // subject -> session id
	scheduler *gocron.Scheduler
}

func NewPoller(publisher websocket.EventPublisher, source Source, tokens TokenSource, logger zerolog.Logger) *Poller {
	return &Poller{
		publisher: publisher,
		source:    source,
		tokens:    tokens,
		timeout:   15 * time.Second,
		logger:    logger.With().Str("component", "refresh_poller").Logger(),
		watches:   make(map[string]*watch),
		sessions:  make(map[string]string),
	}
}

// Remember records which session polls on behalf of subject. The most
// recent connection wins.
func (p *Poller) Remember(subject, sessionID string) {
	p.mu.Lock()
	p.sessions[subject] = sessionID
	p.mu.Unlock()
}

// Forget drops every subject polled with sessionID.
func (p *Poller) Forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for subject, id := range p.sessions {
		if id == sessionID {
			delete(p.sessions, subject)
		}
	}
}

func (p *Poller) TopicActive(topic string) {
	kind, subject, ok := websocket.ParseTopic(topic)
	if !ok {
		return
	}
	p.mu.Lock()
	if _, exists := p.watches[topic]; !exists {
		p.watches[topic] = &watch{topic: topic, kind: kind, subject: subject}
	}
	p.mu.Unlock()
	p.logger.Debug().Str("topic", topic).Msg("watch started")
}

func (p *Poller) TopicIdle(topic string) {
	p.mu.Lock()
	delete(p.watches, topic)
	p.mu.Unlock()
	p.logger.Debug().Str("topic", topic).Msg("watch dropped")
}

// Watching reports whether topic is being polled.
func (p *Poller) Watching(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.watches[topic]
	return ok
}

// PollOnce polls every watched topic concurrently and waits for them to
// finish. A topic whose previous poll is still running is skipped.
func (p *Poller) PollOnce(ctx context.Context) {
	p.mu.Lock()
	var due []*watch
	for _, w := range p.watches {
		if w.inFlight {
			continue
		}
		w.inFlight = true
		due = append(due, w)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range due {
		wg.Add(1)
		go func(w *watch) {
			defer wg.Done()
			p.poll(ctx, w)
			p.mu.Lock()
			w.inFlight = false
			p.mu.Unlock()
		}(w)
	}
	wg.Wait()
}

func (p *Poller) poll(ctx context.Context, w *watch) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	sessionID, ok := p.sessions[w.subject]
	p.mu.Unlock()
	if !ok {
		return
	}

	token, err := p.tokens.TokenFor(ctx, sessionID)
	if err != nil {
		p.logger.Debug().Err(err).Str("topic", w.topic).Msg("no live session for watch")
		p.Forget(sessionID)
		return
	}

	snap, err := p.source.Snapshot(ctx, token, w.kind, w.subject)
	if err != nil {
		p.logger.Warn().Err(err).Str("topic", w.topic).Msg("refresh poll failed")
		return
	}
	sum := sha256.Sum256(snap)
	fp := hex.EncodeToString(sum[:])

	p.mu.Lock()
	previous := w.fingerprint
	w.fingerprint = fp
	_, stillWatched := p.watches[w.topic]
	p.mu.Unlock()

	// The first poll only sets the baseline.
	if previous == "" || previous == fp || !stillWatched {
		return
	}

	err = p.publisher.Publish(ctx, websocket.Event{
		Type:  w.kind + ".changed",
		Topic: w.topic,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("topic", w.topic).Msg("publish refresh event failed")
	}
}

// Start runs PollOnce every interval until Stop.
func (p *Poller) Start(interval time.Duration) error {
	p.scheduler = gocron.NewScheduler(time.UTC)
	_, err := p.scheduler.Every(interval).SingletonMode().Do(func() {
		p.PollOnce(context.Background())
	})
	if err != nil {
		return err
	}
	p.scheduler.StartAsync()
	p.logger.Info().Dur("interval", interval).Msg("refresh poller started")
	return nil
}

func (p *Poller) Stop() {
	if p.scheduler != nil {
		p.scheduler.Stop()
	}
}

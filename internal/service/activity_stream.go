package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/observability"
)

const activityBufferSize = 16

// ActivityStream fans committed activity entries out to live subscribers of
// the same tenant, across nodes when NATS is configured.
type ActivityStream interface {
	Publish(ctx context.Context, entry dto.ActivityResponse)
	Subscribe(orgID string) (<-chan dto.ActivityResponse, func())
	Start(ctx context.Context)
}

type activityStream struct {
	nats          *nats.Conn
	subjectPrefix string
	logger        zerolog.Logger
	broker        *activityBroker
	nodeID        string
}

type activityEvent struct {
	Source string               `json:"source"`
	Entry  dto.ActivityResponse `json:"entry"`
	SentAt time.Time            `json:"sent_at"`
}

type activityBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.ActivityResponse]struct{}
}

// NewActivityStream constructs the stream. natsConn may be nil for a single node.
func NewActivityStream(natsConn *nats.Conn, subjectPrefix string, logger zerolog.Logger) ActivityStream {
	prefix := strings.Trim(strings.ReplaceAll(subjectPrefix, ":", "."), ".")
	if prefix == "" {
		prefix = "steward"
	}

	return &activityStream{
		nats:          natsConn,
		subjectPrefix: prefix,
		logger:        logger.With().Str("component", "activity_stream").Logger(),
		broker: &activityBroker{
			subscribers: make(map[string]map[chan dto.ActivityResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *activityStream) Start(ctx context.Context) {
	if s.nats == nil {
		return
	}

	sub, err := s.nats.Subscribe(s.subjectPrefix+".activity.*", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats activity subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain activity nats subscription")
		}
	}()
}

func (s *activityStream) Publish(ctx context.Context, entry dto.ActivityResponse) {
	s.broker.broadcast(entry.OrgID, entry)

	if s.nats == nil {
		return
	}

	payload, err := json.Marshal(activityEvent{
		Source: s.nodeID,
		Entry:  entry,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode activity event")
		return
	}

	if err := s.nats.Publish(s.subject(entry.OrgID), payload); err != nil {
		s.logger.Warn().Err(err).Str("org_id", entry.OrgID).Msg("failed to publish activity event")
	}
}

func (s *activityStream) Subscribe(orgID string) (<-chan dto.ActivityResponse, func()) {
	channel := make(chan dto.ActivityResponse, activityBufferSize)

	s.broker.subscribe(orgID, channel)
	observability.ActivityStreamClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(orgID, channel)
			observability.ActivityStreamClients().Dec()
		})
	}

	return channel, cleanup
}

func (s *activityStream) subject(orgID string) string {
	return s.subjectPrefix + ".activity." + orgID
}

func (s *activityStream) handleEvent(payload []byte) {
	var event activityEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid activity event payload")
		return
	}

	if event.Source == s.nodeID || event.Entry.OrgID == "" {
		return
	}

	s.broker.broadcast(event.Entry.OrgID, event.Entry)
}

func (b *activityBroker) subscribe(orgID string, ch chan dto.ActivityResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[orgID]; !exists {
		b.subscribers[orgID] = make(map[chan dto.ActivityResponse]struct{})
	}
	b.subscribers[orgID][ch] = struct{}{}
}

func (b *activityBroker) unsubscribe(orgID string, ch chan dto.ActivityResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[orgID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, orgID)
		}
	}
}

// broadcast drops the entry for subscribers whose buffer is full.
func (b *activityBroker) broadcast(orgID string, entry dto.ActivityResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[orgID] {
		select {
		case ch <- entry:
		default:
		}
	}
}

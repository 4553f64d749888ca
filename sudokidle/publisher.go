package sudokidle

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	EventLevelUp         = "level_up"
	EventLifeLost        = "life_lost"
	EventAbilityUnlocked = "ability_unlocked"
	EventAbilityUsed     = "ability_used"
	EventIdleProduced    = "idle_produced"
	EventIdlerUpgraded   = "idler_upgraded"
	EventSudokuCompleted = "sudoku_completed"
	EventGameReset       = "game_reset"
)

// NotificationCodeEvent is the Nakama notification code used for forwarded game events.
const NotificationCodeEvent = 2100

type Event struct {
	Id        string            `json:"id,omitempty"`
	Name      string            `json:"name,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Value     string            `json:"value,omitempty"`

	// The system that generated this event.
	System SystemType `json:"-"`
	// Source ID identifies the ability or idler the event concerns, if any.
	SourceId string `json:"-"`
}

// The Publisher receives events generated by a Game after each state change has been applied and
// persisted.
//
// Publisher implementations must safely handle concurrent calls, and handle any errors or retries
// internally. Callers will not repeat calls in case of errors.
type Publisher interface {
	Send(ctx context.Context, logger runtime.Logger, userID string, events []*Event)
}

// eventQueue collects events raised by a system until the owning Game drains them.
type eventQueue struct {
	pending []*Event
}

func (q *eventQueue) emit(system SystemType, name, sourceID, value string, metadata map[string]string) {
	q.pending = append(q.pending, &Event{
		Id:       uuid.NewString(),
		Name:     name,
		Metadata: metadata,
		Value:    value,
		System:   system,
		SourceId: sourceID,
	})
}

// DrainEvents returns and clears the events raised since the last drain.
func (q *eventQueue) DrainEvents() []*Event {
	events := q.pending
	q.pending = nil
	return events
}

// LoggerPublisher writes every event to the logger at info level.
type LoggerPublisher struct{}

func (LoggerPublisher) Send(ctx context.Context, logger runtime.Logger, userID string, events []*Event) {
	for _, e := range events {
		logger.WithFields(map[string]interface{}{
			"user_id":  userID,
			"event_id": e.Id,
			"system":   e.System.String(),
			"source":   e.SourceId,
		}).Info("Event %s value=%s metadata=%v", e.Name, e.Value, e.Metadata)
	}
}

// NotificationPublisher forwards events to the player as non-persistent Nakama notifications.
type NotificationPublisher struct {
	nk runtime.NakamaModule
}

func NewNotificationPublisher(nk runtime.NakamaModule) *NotificationPublisher {
	return &NotificationPublisher{nk: nk}
}

func (p *NotificationPublisher) Send(ctx context.Context, logger runtime.Logger, userID string, events []*Event) {
	if userID == "" || len(events) == 0 {
		return
	}

	notifications := make([]*runtime.NotificationSend, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			logger.Error("Failed to marshal event %s: %v", e.Name, err)
			continue
		}
		var content map[string]interface{}
		if err := json.Unmarshal(data, &content); err != nil {
			logger.Error("Failed to build notification content for %s: %v", e.Name, err)
			continue
		}
		notifications = append(notifications, &runtime.NotificationSend{
			UserID:     userID,
			Subject:    e.Name,
			Content:    content,
			Code:       NotificationCodeEvent,
			Persistent: false,
		})
	}

	if len(notifications) == 0 {
		return
	}
	if err := p.nk.NotificationsSend(ctx, notifications); err != nil {
		logger.Error("Failed to send event notifications: %v", err)
	}
}

package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskflowhq/taskflow/internal/domain"
	pkgkafka "github.com/taskflowhq/taskflow/pkg/kafka"
)

// Notifier creates in-app notifications from consumed events.
type Notifier interface {
	Notify(ctx context.Context, notification *domain.Notification) error
}

// ConsumerHandler routes incoming Kafka events to notification creation.
// Producers publish without waiting for the notification to exist; this
// handler is the only place sharing events turn into user-visible messages.
type ConsumerHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewConsumerHandler creates a new event consumer handler.
func NewConsumerHandler(notifier Notifier, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{
		notifier: notifier,
		logger:   logger,
	}
}

// Handle processes an incoming Kafka event based on its event type.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicNoteShared:
		return h.handleNoteShared(ctx, event)
	case TopicHabitShared:
		return h.handleHabitShared(ctx, event)
	case TopicTeamMemberAdded:
		return h.handleTeamMemberAdded(ctx, event)
	case TopicTaskAssigned:
		return h.handleTaskAssigned(ctx, event)
	case TopicUserRegistered:
		// Registration is audited elsewhere; nothing to notify.
		return nil
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (h *ConsumerHandler) handleNoteShared(ctx context.Context, event *pkgkafka.Event) error {
	var data NoteSharedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal note.shared data: %w", err)
	}

	n := domain.NewNoteSharedNotification(data.RecipientID, data.OwnerName, data.NoteTitle, data.NoteID, data.Role)
	return h.notifier.Notify(ctx, n)
}

func (h *ConsumerHandler) handleHabitShared(ctx context.Context, event *pkgkafka.Event) error {
	var data HabitSharedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal habit.shared data: %w", err)
	}

	n := domain.NewHabitSharedNotification(data.RecipientID, data.OwnerName, data.HabitName, data.HabitID)
	return h.notifier.Notify(ctx, n)
}

func (h *ConsumerHandler) handleTeamMemberAdded(ctx context.Context, event *pkgkafka.Event) error {
	var data TeamMemberAddedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal team.member_added data: %w", err)
	}

	n := domain.NewTeamInviteNotification(data.RecipientID, data.OwnerName, data.TeamName, data.TeamID)
	return h.notifier.Notify(ctx, n)
}

func (h *ConsumerHandler) handleTaskAssigned(ctx context.Context, event *pkgkafka.Event) error {
	var data TaskAssignedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal task.assigned data: %w", err)
	}

	n := domain.NewTaskAssignedNotification(data.RecipientID, data.AssignerName, data.TaskTitle, data.TaskID)
	return h.notifier.Notify(ctx, n)
}

// processedEventTTL bounds how long consumed event IDs are remembered for
// deduplication. Rebalances and producer retries can redeliver within this
// window; anything older is handled by the notification being idempotent to
// read.
const processedEventTTL = 24 * time.Hour

// NewConsumers creates Kafka consumers for all topics that produce
// in-app notifications. Events are deduplicated by event ID across topics,
// and messages that exhaust handler retries land on per-topic DLQ topics.
func NewConsumers(brokers []string, groupID string, handler *ConsumerHandler, logger *slog.Logger) []*pkgkafka.Consumer {
	topics := []string{
		TopicNoteShared,
		TopicHabitShared,
		TopicTeamMemberAdded,
		TopicTaskAssigned,
	}

	store := pkgkafka.NewMemoryIdempotencyStore(processedEventTTL)
	handle := pkgkafka.IdempotentHandler(store, handler.Handle, logger)

	consumers := make([]*pkgkafka.Consumer, 0, len(topics))

	for _, topic := range topics {
		cfg := pkgkafka.ConsumerConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}

		consumer := pkgkafka.NewConsumer(cfg, handle, logger).
			WithDLQ(pkgkafka.NewDLQProducer(brokers, logger))
		consumers = append(consumers, consumer)
	}

	return consumers
}

package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskflowhq/taskflow/internal/domain"
	pkgkafka "github.com/taskflowhq/taskflow/pkg/kafka"
)

// Kafka topic constants for TaskFlow domain events.
const (
	TopicUserRegistered  = "taskflow.user.registered"
	TopicNoteShared      = "taskflow.note.shared"
	TopicHabitShared     = "taskflow.habit.shared"
	TopicTeamMemberAdded = "taskflow.team.member_added"
	TopicTaskAssigned    = "taskflow.task.assigned"
)

// Source identifier for events originating from the TaskFlow server.
const SourceTaskflow = "taskflow"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NoteSharedData is the payload for a note.shared event.
type NoteSharedData struct {
	NoteID      string `json:"note_id"`
	NoteTitle   string `json:"note_title"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name"`
	RecipientID string `json:"recipient_id"`
	Role        string `json:"role"`
}

// HabitSharedData is the payload for a habit.shared event.
type HabitSharedData struct {
	HabitID     string `json:"habit_id"`
	HabitName   string `json:"habit_name"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name"`
	RecipientID string `json:"recipient_id"`
}

// TeamMemberAddedData is the payload for a team.member_added event.
type TeamMemberAddedData struct {
	TeamID      string `json:"team_id"`
	TeamName    string `json:"team_name"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name"`
	RecipientID string `json:"recipient_id"`
}

// TaskAssignedData is the payload for a task.assigned event.
type TaskAssignedData struct {
	TaskID       string `json:"task_id"`
	TaskTitle    string `json:"task_title"`
	AssignerID   string `json:"assigner_id"`
	AssignerName string `json:"assigner_name"`
	RecipientID  string `json:"recipient_id"`
}

// Producer publishes TaskFlow domain events to Kafka. Publishing is
// fire-and-forget from the caller's point of view: sharing a note must not
// fail because the broker is down, so callers log and swallow errors.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}
	return p.publish(ctx, TopicUserRegistered, user.ID, "user", data)
}

// PublishNoteShared publishes a note.shared event.
func (p *Producer) PublishNoteShared(ctx context.Context, data NoteSharedData) error {
	return p.publish(ctx, TopicNoteShared, data.NoteID, "note", data)
}

// PublishHabitShared publishes a habit.shared event.
func (p *Producer) PublishHabitShared(ctx context.Context, data HabitSharedData) error {
	return p.publish(ctx, TopicHabitShared, data.HabitID, "habit", data)
}

// PublishTeamMemberAdded publishes a team.member_added event.
func (p *Producer) PublishTeamMemberAdded(ctx context.Context, data TeamMemberAddedData) error {
	return p.publish(ctx, TopicTeamMemberAdded, data.TeamID, "team", data)
}

// PublishTaskAssigned publishes a task.assigned event.
func (p *Producer) PublishTaskAssigned(ctx context.Context, data TaskAssignedData) error {
	return p.publish(ctx, TopicTaskAssigned, data.TaskID, "task", data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceTaskflow, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}

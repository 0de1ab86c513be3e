package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/event"
	"github.com/taskflowhq/taskflow/internal/repository"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// CreateTaskInput holds the parameters for creating a task.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	FolderID    *string
	TeamID      *string
	AssigneeID  *string
}

// UpdateTaskInput holds the parameters for a partial task update. Nil fields
// are left untouched.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
	FolderID    *string
	AssigneeID  *string
}

// TaskFilter narrows task listings at the service boundary.
type TaskFilter struct {
	FolderID *string
	Status   *string
}

// TaskService implements task management: CRUD, trash, and team assignment.
type TaskService struct {
	taskRepo   repository.TaskRepository
	folderRepo repository.FolderRepository
	teamRepo   repository.TeamRepository
	userRepo   repository.UserRepository
	producer   *event.Producer
	logger     *slog.Logger
}

// NewTaskService creates a new task service.
func NewTaskService(
	taskRepo repository.TaskRepository,
	folderRepo repository.FolderRepository,
	teamRepo repository.TeamRepository,
	userRepo repository.UserRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		folderRepo: folderRepo,
		teamRepo:   teamRepo,
		userRepo:   userRepo,
		producer:   producer,
		logger:     logger,
	}
}

// Create adds a new task for the user.
func (s *TaskService) Create(ctx context.Context, userID string, input CreateTaskInput) (*domain.Task, error) {
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	if !domain.IsValidTaskPriority(priority) {
		return nil, apperrors.InvalidInput("priority must be one of: low, medium, high")
	}

	if input.FolderID != nil {
		if err := s.checkFolderOwnership(ctx, userID, *input.FolderID); err != nil {
			return nil, err
		}
	}
	if input.TeamID != nil {
		if err := s.checkTeamMembership(ctx, userID, *input.TeamID, input.AssigneeID); err != nil {
			return nil, err
		}
	} else if input.AssigneeID != nil && *input.AssigneeID != userID {
		return nil, apperrors.InvalidInput("tasks can only be assigned within a team")
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.TaskStatusTodo,
		Priority:    priority,
		DueDate:     input.DueDate,
		FolderID:    input.FolderID,
		TeamID:      input.TeamID,
		AssigneeID:  input.AssigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.publishAssignment(ctx, task, userID)

	s.logger.InfoContext(ctx, "task created",
		slog.String("task_id", task.ID),
		slog.String("user_id", userID),
	)

	return task, nil
}

// Get returns a single task owned by the user.
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	return s.getOwned(ctx, userID, taskID)
}

// List returns the user's active tasks, optionally filtered by folder or status.
func (s *TaskService) List(ctx context.Context, userID string, filter TaskFilter) ([]domain.Task, error) {
	if filter.Status != nil && !domain.IsValidTaskStatus(*filter.Status) {
		return nil, apperrors.InvalidInput("status must be one of: todo, in_progress, done")
	}

	tasks, err := s.taskRepo.ListByUserID(ctx, userID, repository.TaskFilter{
		FolderID: filter.FolderID,
		Status:   filter.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListTrash returns the user's soft-deleted tasks.
func (s *TaskService) ListTrash(ctx context.Context, userID string) ([]domain.Task, error) {
	tasks, err := s.taskRepo.ListByUserID(ctx, userID, repository.TaskFilter{Deleted: true})
	if err != nil {
		return nil, fmt.Errorf("list trashed tasks: %w", err)
	}
	return tasks, nil
}

// Update applies a partial update to a task.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, input UpdateTaskInput) (*domain.Task, error) {
	task, err := s.getOwned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted {
		return nil, apperrors.InvalidInput("task is in the trash; restore it first")
	}

	prevAssignee := task.AssigneeID

	if input.Title != nil {
		if *input.Title == "" {
			return nil, apperrors.InvalidInput("title cannot be empty")
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		if !domain.IsValidTaskStatus(*input.Status) {
			return nil, apperrors.InvalidInput("status must be one of: todo, in_progress, done")
		}
		task.Status = *input.Status
	}
	if input.Priority != nil {
		if !domain.IsValidTaskPriority(*input.Priority) {
			return nil, apperrors.InvalidInput("priority must be one of: low, medium, high")
		}
		task.Priority = *input.Priority
	}
	if input.ClearDue {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.FolderID != nil {
		if *input.FolderID == "" {
			task.FolderID = nil
		} else {
			if err := s.checkFolderOwnership(ctx, userID, *input.FolderID); err != nil {
				return nil, err
			}
			task.FolderID = input.FolderID
		}
	}
	if input.AssigneeID != nil {
		if task.TeamID == nil {
			return nil, apperrors.InvalidInput("tasks can only be assigned within a team")
		}
		if err := s.checkTeamMembership(ctx, userID, *task.TeamID, input.AssigneeID); err != nil {
			return nil, err
		}
		task.AssigneeID = input.AssigneeID
	}

	task.UpdatedAt = time.Now().UTC()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if assigneeChanged(prevAssignee, task.AssigneeID) {
		s.publishAssignment(ctx, task, userID)
	}

	return task, nil
}

// Trash soft-deletes a task.
func (s *TaskService) Trash(ctx context.Context, userID, taskID string) error {
	task, err := s.getOwned(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.IsDeleted {
		return nil
	}

	if err := s.taskRepo.SetDeleted(ctx, taskID, true, time.Now().UTC()); err != nil {
		return fmt.Errorf("trash task: %w", err)
	}
	return nil
}

// Restore brings a task back from the trash.
func (s *TaskService) Restore(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	task, err := s.getOwned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsDeleted {
		return task, nil
	}

	if err := s.taskRepo.SetDeleted(ctx, taskID, false, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("restore task: %w", err)
	}

	task.IsDeleted = false
	task.DeletedAt = nil
	return task, nil
}

// Purge permanently removes a trashed task.
func (s *TaskService) Purge(ctx context.Context, userID, taskID string) error {
	task, err := s.getOwned(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if !task.IsDeleted {
		return apperrors.InvalidInput("only trashed tasks can be permanently deleted")
	}

	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("purge task: %w", err)
	}

	s.logger.InfoContext(ctx, "task purged",
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
	)
	return nil
}

func (s *TaskService) getOwned(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		// Hide the task's existence from non-owners.
		return nil, apperrors.NotFound("task", taskID)
	}
	return task, nil
}

func (s *TaskService) checkFolderOwnership(ctx context.Context, userID, folderID string) error {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return apperrors.InvalidInput("folder does not exist")
	}
	if folder.UserID != userID {
		return apperrors.InvalidInput("folder does not exist")
	}
	return nil
}

// checkTeamMembership verifies the acting user belongs to the team and, when
// an assignee is given, that the assignee does too.
func (s *TaskService) checkTeamMembership(ctx context.Context, userID, teamID string, assigneeID *string) error {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return apperrors.InvalidInput("team does not exist")
	}
	if !team.HasMember(userID) {
		return apperrors.Forbidden("you are not a member of this team")
	}
	if assigneeID != nil && !team.HasMember(*assigneeID) {
		return apperrors.InvalidInput("assignee is not a member of the team")
	}
	return nil
}

// publishAssignment emits a task.assigned event when the task is assigned to
// someone other than the actor. Publish failures are logged and swallowed.
func (s *TaskService) publishAssignment(ctx context.Context, task *domain.Task, actorID string) {
	if task.AssigneeID == nil || *task.AssigneeID == actorID {
		return
	}

	assignerName := ""
	if actor, err := s.userRepo.GetByID(ctx, actorID); err == nil {
		assignerName = actor.Name
	}

	data := event.TaskAssignedData{
		TaskID:       task.ID,
		TaskTitle:    task.Title,
		AssignerID:   actorID,
		AssignerName: assignerName,
		RecipientID:  *task.AssigneeID,
	}
	if err := s.producer.PublishTaskAssigned(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish task.assigned event",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}

func assigneeChanged(prev, next *string) bool {
	switch {
	case prev == nil && next == nil:
		return false
	case prev == nil || next == nil:
		return true
	default:
		return *prev != *next
	}
}

package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier hears about goals whose progress has just reached 100.
type Notifier interface {
	NotifyGoalCompleted(ctx context.Context, userID uuid.UUID, goal *models.Goal)
}

type TaskInput struct {
	Title        string
	Notes        *string
	EstimateMins *int
}

// TaskInputFromRequest trims the title and notes. Blank notes and
// non-positive estimates are stored as absent.
func TaskInputFromRequest(req models.TaskRequest) TaskInput {
	in := TaskInput{
		Title: strings.TrimSpace(req.Title),
		Notes: trimmedOrNil(req.Notes),
	}
	if req.EstimateMins != nil && *req.EstimateMins > 0 {
		mins := *req.EstimateMins
		in.EstimateMins = &mins
	}
	return in
}

func (in TaskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ValidationError("Task title is required")
	}
	return nil
}

type TaskService struct {
	db       *gorm.DB
	notifier Notifier
}

// NewTaskService wires the task service. notifier may be nil.
func NewTaskService(db *gorm.DB, notifier Notifier) *TaskService {
	return &TaskService{db: db, notifier: notifier}
}

// Create appends a task to an owned goal. Its order is one past the
// current maximum, or 0 for the first task.
func (s *TaskService) Create(ctx context.Context, userID, goalID uuid.UUID, in TaskInput) (*models.Task, *models.Goal, error) {
	var (
		task models.Task
		goal *models.Goal
		prev int
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockGoal(tx, userID, goalID)
		if err != nil {
			return err
		}
		if err := in.validate(); err != nil {
			return err
		}
		prev = locked.Progress

		var last []models.Task
		err = tx.Where("goal_id = ?", goalID).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}, Desc: true}).
			Limit(1).
			Find(&last).Error
		if err != nil {
			return err
		}
		next := 0
		if len(last) > 0 {
			next = last[0].Order + 1
		}

		task = models.Task{
			GoalID:       goalID,
			Title:        strings.TrimSpace(in.Title),
			Notes:        in.Notes,
			Done:         false,
			Order:        next,
			EstimateMins: in.EstimateMins,
		}
		if err := tx.Create(&task).Error; err != nil {
			return err
		}

		goal, err = recalculateGoalProgress(tx, userID, goalID)
		return err
	})
	if err != nil {
		return nil, nil, dbError(err)
	}
	s.notifyIfCompleted(ctx, userID, prev, goal)
	return &task, goal, nil
}

// Update edits a task's text fields. Progress is not touched.
func (s *TaskService) Update(ctx context.Context, userID, taskID uuid.UUID, in TaskInput) (*models.Task, error) {
	var task *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = findOwnedTask(tx, userID, taskID)
		if err != nil {
			return err
		}
		if err := in.validate(); err != nil {
			return err
		}
		fields := map[string]interface{}{
			"title":         strings.TrimSpace(in.Title),
			"notes":         in.Notes,
			"estimate_mins": in.EstimateMins,
		}
		if err := tx.Model(task).Updates(fields).Error; err != nil {
			return err
		}
		return tx.First(task, "id = ?", taskID).Error
	})
	if err != nil {
		return nil, dbError(err)
	}
	return task, nil
}

// Toggle flips a task's done flag and recomputes its goal's progress from
// the task set as it stands after the write.
func (s *TaskService) Toggle(ctx context.Context, userID, taskID uuid.UUID) (*models.Task, *models.Goal, error) {
	var (
		task *models.Task
		goal *models.Goal
		prev int
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := findOwnedTask(tx, userID, taskID)
		if err != nil {
			return err
		}
		locked, err := lockGoal(tx, userID, owned.GoalID)
		if err != nil {
			return err
		}
		prev = locked.Progress

		// Re-read under the goal lock so a concurrent toggle is not lost.
		task = &models.Task{}
		if err := tx.First(task, "id = ?", taskID).Error; err != nil {
			return err
		}
		task.Done = !task.Done
		if err := tx.Model(task).Update("done", task.Done).Error; err != nil {
			return err
		}

		goal, err = recalculateGoalProgress(tx, userID, owned.GoalID)
		return err
	})
	if err != nil {
		return nil, nil, dbError(err)
	}
	s.notifyIfCompleted(ctx, userID, prev, goal)
	return task, goal, nil
}

// Delete removes a task and recomputes its goal's progress over the tasks
// that remain.
func (s *TaskService) Delete(ctx context.Context, userID, taskID uuid.UUID) (*models.Goal, error) {
	var (
		goal *models.Goal
		prev int
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := findOwnedTask(tx, userID, taskID)
		if err != nil {
			return err
		}
		locked, err := lockGoal(tx, userID, owned.GoalID)
		if err != nil {
			return err
		}
		prev = locked.Progress

		if err := tx.Delete(&models.Task{}, "id = ?", taskID).Error; err != nil {
			return err
		}

		goal, err = recalculateGoalProgress(tx, userID, owned.GoalID)
		return err
	})
	if err != nil {
		return nil, dbError(err)
	}
	s.notifyIfCompleted(ctx, userID, prev, goal)
	return goal, nil
}

func (s *TaskService) notifyIfCompleted(ctx context.Context, userID uuid.UUID, prev int, goal *models.Goal) {
	if s.notifier == nil || goal == nil {
		return
	}
	if prev < 100 && goal.Progress == 100 {
		s.notifier.NotifyGoalCompleted(ctx, userID, goal)
	}
}

// findOwnedTask loads a task whose parent goal belongs to userID. Tasks of
// other users are reported exactly like missing ones.
func findOwnedTask(tx *gorm.DB, userID, taskID uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := tx.Joins("JOIN goals ON goals.id = tasks.goal_id").
		Where("tasks.id = ? AND goals.user_id = ?", taskID, userID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("Task not found")
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// recalculateGoalProgress stores the task-derived progress of a goal and
// returns the refreshed goal with its tasks.
func recalculateGoalProgress(tx *gorm.DB, userID, goalID uuid.UUID) (*models.Goal, error) {
	var tasks []models.Task
	if err := tx.Where("goal_id = ?", goalID).Find(&tasks).Error; err != nil {
		return nil, err
	}

	progress := progressOf(tasks)
	if err := tx.Model(&models.Goal{}).Where("id = ?", goalID).Update("progress", progress).Error; err != nil {
		return nil, err
	}
	slog.Debug("goal progress recalculated", "goal_id", goalID, "tasks", len(tasks), "progress", progress)

	return loadGoal(tx, userID, goalID)
}

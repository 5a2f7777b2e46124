package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultPriority = 3

// GoalInput is a validated create or edit form. Pointer fields are absent
// when nil.
type GoalInput struct {
	Title       string
	Description *string
	Priority    int
	Deadline    *time.Time
}

// GoalInputFromRequest normalises a request body. Priority defaults to 3,
// blank descriptions are dropped and the deadline is parsed from
// YYYY-MM-DD or RFC 3339. Range checks happen in validate.
func GoalInputFromRequest(req models.GoalRequest) (GoalInput, error) {
	in := GoalInput{
		Title:       strings.TrimSpace(req.Title),
		Description: trimmedOrNil(req.Description),
		Priority:    defaultPriority,
	}
	if req.Priority != nil {
		in.Priority = *req.Priority
	}
	if req.Deadline != nil && strings.TrimSpace(*req.Deadline) != "" {
		d, err := parseDeadline(strings.TrimSpace(*req.Deadline))
		if err != nil {
			return in, ValidationError("Invalid deadline")
		}
		in.Deadline = &d
	}
	return in, nil
}

func (in GoalInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ValidationError("Title is required")
	}
	if in.Priority < 1 || in.Priority > 5 {
		return ValidationError("Priority must be between 1 and 5")
	}
	return nil
}

func parseDeadline(s string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, s)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// orderedTasks is the Preload condition that keeps tasks in display order.
func orderedTasks(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}})
}

type GoalService struct {
	db *gorm.DB
}

func NewGoalService(db *gorm.DB) *GoalService {
	return &GoalService{db: db}
}

// List returns the user's goals newest first, each with its tasks.
func (s *GoalService) List(ctx context.Context, userID uuid.UUID) ([]models.Goal, error) {
	var goals []models.Goal
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Tasks", orderedTasks).
		Order("created_at DESC").
		Find(&goals).Error
	if err != nil {
		return nil, dbError(err)
	}
	return goals, nil
}

func (s *GoalService) Get(ctx context.Context, userID, goalID uuid.UUID) (*models.Goal, error) {
	return loadGoal(s.db.WithContext(ctx), userID, goalID)
}

func (s *GoalService) Create(ctx context.Context, userID uuid.UUID, in GoalInput) (*models.Goal, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	goal := models.Goal{
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Priority:    in.Priority,
		Deadline:    in.Deadline,
		Progress:    0,
	}
	if err := s.db.WithContext(ctx).Create(&goal).Error; err != nil {
		return nil, dbError(err)
	}
	return &goal, nil
}

// Update replaces the editable fields of an owned goal. A non-nil progress
// is clamped to [0,100]; nil leaves the stored value alone.
func (s *GoalService) Update(ctx context.Context, userID, goalID uuid.UUID, in GoalInput, progress *int) (*models.Goal, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *models.Goal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := lockGoal(tx, userID, goalID)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{
			"title":       strings.TrimSpace(in.Title),
			"description": in.Description,
			"priority":    in.Priority,
			"deadline":    in.Deadline,
		}
		if progress != nil {
			fields["progress"] = ClampProgress(*progress)
		}
		if err := tx.Model(goal).Updates(fields).Error; err != nil {
			return err
		}

		updated, err = loadGoal(tx, userID, goalID)
		return err
	})
	if err != nil {
		return nil, dbError(err)
	}
	return updated, nil
}

// Delete removes an owned goal and its tasks. The explicit task delete keeps
// the cascade intact on databases opened without foreign key enforcement.
func (s *GoalService) Delete(ctx context.Context, userID, goalID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := lockGoal(tx, userID, goalID)
		if err != nil {
			return err
		}
		if err := tx.Where("goal_id = ?", goal.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(goal).Error
	})
	return dbError(err)
}

func loadGoal(db *gorm.DB, userID, goalID uuid.UUID) (*models.Goal, error) {
	var goal models.Goal
	err := db.Preload("Tasks", orderedTasks).
		Where("id = ? AND user_id = ?", goalID, userID).
		First(&goal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("Goal not found")
	}
	if err != nil {
		return nil, dbError(err)
	}
	return &goal, nil
}

// lockGoal loads an owned goal inside tx, holding its row lock on databases
// that support SELECT ... FOR UPDATE. SQLite has no row locks; its
// transactions begin IMMEDIATE (see database.sqliteDSN) and so hold the
// database write lock from the first statement.
func lockGoal(tx *gorm.DB, userID, goalID uuid.UUID) (*models.Goal, error) {
	q := tx.Where("id = ? AND user_id = ?", goalID, userID)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var goal models.Goal
	err := q.First(&goal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("Goal not found")
	}
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

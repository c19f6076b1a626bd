package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sahilchouksey/syllabus-sync/model"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// ListByUser returns every task of the user ordered by due date
func (r *TaskRepository) ListByUser(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("due_date").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// ListUpcoming returns tasks due at or after from, soonest first
func (r *TaskRepository) ListUpcoming(ctx context.Context, userID uint, from time.Time, limit int) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ? AND due_date >= ?", userID, from).
		Order("due_date").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindForUser(ctx context.Context, id, userID uint) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return &task, nil
}

// Complete marks an assignment completed at the given time
func (r *TaskRepository) Complete(ctx context.Context, id, userID uint, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Task{}).
		Where("id = ? AND user_id = ? AND type = ?", id, userID, model.TaskTypeAssignment).
		Updates(map[string]interface{}{
			"status":       model.TaskStatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to complete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ImportCourse creates a course and its tasks in one transaction
func (r *TaskRepository) ImportCourse(ctx context.Context, course *model.Course, tasks []model.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(course).Error; err != nil {
			return fmt.Errorf("failed to create course: %w", err)
		}
		if len(tasks) == 0 {
			return nil
		}
		for i := range tasks {
			tasks[i].CourseID = &course.ID
			tasks[i].UserID = course.UserID
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return fmt.Errorf("failed to create tasks: %w", err)
		}
		return nil
	})
}

// FindCourseByName matches a user's course by case-insensitive name
func (r *TaskRepository) FindCourseByName(ctx context.Context, userID uint, name string) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND LOWER(name) = LOWER(?)", userID, name).
		Order("created_at DESC").
		Take(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	return &course, nil
}

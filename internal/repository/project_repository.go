package repository

import (
	"errors"
	"fmt"

	"go-agency-billing/internal/models"

	"gorm.io/gorm"
)

// ProjectRepository is a read-only lookup. Project records are owned by the
// project management service; this backend never mutates them.
type ProjectRepository struct {
	db *Database
}

func NewProjectRepository(db *Database) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetProjectRef resolves a project id to its display reference.
func (r *ProjectRepository) GetProjectRef(id string) (*models.ProjectRef, error) {
	var project models.Project

	if err := r.db.DB.Select("id", "name").First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("project", id)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &models.ProjectRef{ID: project.ID, Name: project.Name}, nil
}

// ProjectExists reports whether the referenced project is known.
func (r *ProjectRepository) ProjectExists(id string) (bool, error) {
	var count int64
	if err := r.db.DB.Model(&models.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check project: %w", err)
	}
	return count > 0, nil
}

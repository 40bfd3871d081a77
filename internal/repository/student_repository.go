package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// StudentRepository reads the student directory maintained elsewhere in
// the platform. The fee engine only needs a student's current placement.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindPlacement returns the student's current class and section.
func (r *StudentRepository) FindPlacement(ctx context.Context, studentID string) (*models.StudentPlacement, error) {
	const query = `SELECT student_id, class_id, section_id FROM student_placements WHERE student_id = $1`
	var placement models.StudentPlacement
	if err := r.db.GetContext(ctx, &placement, query, studentID); err != nil {
		return nil, err
	}
	return &placement, nil
}

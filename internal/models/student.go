package models

// StudentPlacement is the slice of the student directory the fee engine
// consumes: a student's current class and section, used by amount
// resolution. The directory itself is an external collaborator.
type StudentPlacement struct {
	StudentID string  `db:"student_id" json:"student_id"`
	ClassID   string  `db:"class_id" json:"class_id"`
	SectionID *string `db:"section_id" json:"section_id,omitempty"`
}

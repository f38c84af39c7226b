package errors

import "fmt"

// DataIntegrityError signals that stored data (typically a question's
// answer key) is malformed. Grading must abort with this error instead
// of committing a zero score.
type DataIntegrityError struct {
	Entity string `json:"entity"`
	ID     uint   `json:"id"`
	Reason string `json:"reason"`
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity error on %s %d: %s", e.Entity, e.ID, e.Reason)
}

func NewDataIntegrityError(entity string, id uint, reason string) *DataIntegrityError {
	return &DataIntegrityError{Entity: entity, ID: id, Reason: reason}
}

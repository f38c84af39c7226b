package models

import (
	"time"

	"gorm.io/datatypes"
)

type ProctoringEventKind string

const (
	ProctorTabSwitch      ProctoringEventKind = "tab_switch"
	ProctorWindowBlur     ProctoringEventKind = "window_blur"
	ProctorFullscreenExit ProctoringEventKind = "fullscreen_exit"
	ProctorCopyPaste      ProctoringEventKind = "copy_paste"
	ProctorRightClick     ProctoringEventKind = "right_click"
	ProctorMultipleFaces  ProctoringEventKind = "multiple_faces"
	ProctorNoFace         ProctoringEventKind = "no_face"
)

// ProctoringEvent is one entry in an attempt's append-only
// suspicious-activity log. Events are recorded while the attempt is
// in progress and never mutated afterward.
type ProctoringEvent struct {
	ID        uint                `json:"id" gorm:"primaryKey"`
	AttemptID uint                `json:"attempt_id" gorm:"not null;index"`
	Kind      ProctoringEventKind `json:"kind" gorm:"not null;index"`

	Detail   datatypes.JSON `json:"detail" gorm:"type:jsonb"`
	Severity int            `json:"severity" gorm:"default:1"` // 1-5

	OccurredAt time.Time `json:"occurred_at"`
	TimeOffset int       `json:"time_offset"` // seconds from attempt start

	CreatedAt time.Time `json:"created_at"`
}

func (ProctoringEvent) TableName() string {
	return "proctoring_events"
}

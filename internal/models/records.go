package models

import (
	"time"

	"github.com/google/uuid"
)

// ExperienceRecord is the persisted header of an experience.
type ExperienceRecord struct {
	ID         uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name       string    `json:"name" gorm:"type:text;not null;uniqueIndex;column:name"`
	MainSource string    `json:"main_source" gorm:"type:text;not null;column:main_source"`
	CreatedAt  time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// TableName overrides the gorm table name.
func (ExperienceRecord) TableName() string { return "experiences" }

// QuestionRecord stores one question of an experience.
type QuestionRecord struct {
	ID            uuid.UUID `gorm:"type:text;primaryKey;column:id"`
	ExperienceID  uuid.UUID `gorm:"type:text;not null;column:experience_id"`
	QuestionID    int       `gorm:"type:integer;not null;column:question_id"`
	TriggerTime   float64   `gorm:"type:real;not null;column:trigger_time"`
	Prompt        string    `gorm:"type:text;not null;column:prompt"`
	Options       []string  `gorm:"type:text;not null;serializer:json;column:options"`
	AllowMultiple bool      `gorm:"type:integer;not null;default:0;column:allow_multiple"`
}

// TableName overrides the gorm table name.
func (QuestionRecord) TableName() string { return "questions" }

// BranchRecord stores one branch point of an experience.
type BranchRecord struct {
	ID           uuid.UUID      `gorm:"type:text;primaryKey;column:id"`
	ExperienceID uuid.UUID      `gorm:"type:text;not null;column:experience_id"`
	BranchID     int            `gorm:"type:integer;not null;column:branch_id"`
	TriggerTime  float64        `gorm:"type:real;not null;column:trigger_time"`
	Title        string         `gorm:"type:text;not null;column:title"`
	Condition    *ConditionSpec `gorm:"type:text;serializer:json;column:condition"`
	Options      []OptionRecord `gorm:"foreignKey:BranchRowID;references:ID"`
}

// TableName overrides the gorm table name.
func (BranchRecord) TableName() string { return "branches" }

// OptionRecord stores one option of a branch.
type OptionRecord struct {
	ID            uuid.UUID `gorm:"type:text;primaryKey;column:id"`
	BranchRowID   uuid.UUID `gorm:"type:text;not null;column:branch_row_id"`
	OptionID      int       `gorm:"type:integer;not null;column:option_id"`
	Position      int       `gorm:"type:integer;not null;column:position"`
	Text          string    `gorm:"type:text;not null;column:text"`
	IsRecommended bool      `gorm:"type:integer;not null;default:0;column:is_recommended"`
	VideoSource   string    `gorm:"type:text;not null;column:video_source"`
	StartOffset   float64   `gorm:"type:real;not null;default:0;column:start_offset"`
	SwitchOffset  *float64  `gorm:"type:real;column:switch_offset"`
	ResumeOffset  *float64  `gorm:"type:real;column:resume_offset"`
	Tags          []string  `gorm:"type:text;not null;serializer:json;column:tags"`
}

// TableName overrides the gorm table name.
func (OptionRecord) TableName() string { return "branch_options" }

// MediaRecord is a known media source and its duration in seconds.
type MediaRecord struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	URI       string    `json:"uri" gorm:"type:text;not null;uniqueIndex;column:uri"`
	Duration  float64   `json:"duration" gorm:"type:real;not null;column:duration"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// TableName overrides the gorm table name.
func (MediaRecord) TableName() string { return "media" }

// NewMediaRecord creates a media record with a generated id.
func NewMediaRecord(uri string, duration float64) *MediaRecord {
	return &MediaRecord{
		ID:        uuid.New(),
		URI:       uri,
		Duration:  duration,
		CreatedAt: time.Now().UTC(),
	}
}

// ToQuestion converts the record into the domain type.
func (r *QuestionRecord) ToQuestion() Question {
	return Question{
		ID:            r.QuestionID,
		TriggerTime:   r.TriggerTime,
		Prompt:        r.Prompt,
		Options:       append([]string(nil), r.Options...),
		AllowMultiple: r.AllowMultiple,
	}
}

// ToBranch converts the record and its options into the domain type.
// The compiled Condition is attached later by the schedule registry.
func (r *BranchRecord) ToBranch() BranchDefinition {
	b := BranchDefinition{
		ID:            r.BranchID,
		TriggerTime:   r.TriggerTime,
		Title:         r.Title,
		ConditionSpec: r.Condition,
		Options:       make([]BranchOption, 0, len(r.Options)),
	}
	for _, o := range r.Options {
		b.Options = append(b.Options, BranchOption{
			ID:            o.OptionID,
			Text:          o.Text,
			IsRecommended: o.IsRecommended,
			VideoSource:   o.VideoSource,
			StartOffset:   o.StartOffset,
			SwitchOffset:  SecondsFromPtr(o.SwitchOffset),
			ResumeOffset:  SecondsFromPtr(o.ResumeOffset),
			Tags:          append([]string(nil), o.Tags...),
		})
	}
	return b
}

// NewQuestionRecord builds a record for q under experienceID.
func NewQuestionRecord(experienceID uuid.UUID, q Question) *QuestionRecord {
	return &QuestionRecord{
		ID:            uuid.New(),
		ExperienceID:  experienceID,
		QuestionID:    q.ID,
		TriggerTime:   q.TriggerTime,
		Prompt:        q.Prompt,
		Options:       append([]string(nil), q.Options...),
		AllowMultiple: q.AllowMultiple,
	}
}

// NewBranchRecord builds a record, including option rows, for b under experienceID.
func NewBranchRecord(experienceID uuid.UUID, b BranchDefinition) *BranchRecord {
	rec := &BranchRecord{
		ID:           uuid.New(),
		ExperienceID: experienceID,
		BranchID:     b.ID,
		TriggerTime:  b.TriggerTime,
		Title:        b.Title,
		Condition:    b.ConditionSpec,
	}
	for i, o := range b.Options {
		tags := o.Tags
		if tags == nil {
			tags = []string{}
		}
		rec.Options = append(rec.Options, OptionRecord{
			ID:            uuid.New(),
			BranchRowID:   rec.ID,
			OptionID:      o.ID,
			Position:      i,
			Text:          o.Text,
			IsRecommended: o.IsRecommended,
			VideoSource:   o.VideoSource,
			StartOffset:   o.StartOffset,
			SwitchOffset:  o.SwitchOffset.Ptr(),
			ResumeOffset:  o.ResumeOffset.Ptr(),
			Tags:          tags,
		})
	}
	return rec
}

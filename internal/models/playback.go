package models

import "time"

// ReturnFrame captures the state needed to restore a source after a diversion.
type ReturnFrame struct {
	SourceURI      string  `json:"source_uri"`
	LocalTime      float64 `json:"local_time"`
	CumulativeTime float64 `json:"cumulative_time"`
	// ResumeOffset is the selected option's resume point on SourceURI.
	ResumeOffset float64 `json:"resume_offset"`
	BranchID     int     `json:"branch_id"`
	OptionID     int     `json:"option_id"`
}

// PendingSwitch is a diversion armed for a future main-clock time.
type PendingSwitch struct {
	BranchID     int     `json:"branch_id"`
	OptionID     int     `json:"option_id"`
	SwitchOffset float64 `json:"switch_offset"`
}

// JourneyKind distinguishes question and branch entries.
type JourneyKind string

const (
	JourneyQuestion JourneyKind = "question"
	JourneyBranch   JourneyKind = "branch"
)

// JourneyEntry is one resolved interruption in chronological order.
type JourneyEntry struct {
	Kind             JourneyKind `json:"kind"`
	Title            string      `json:"title"`
	ChosenText       string      `json:"chosen_text"`
	TimestampSeconds float64     `json:"timestamp_seconds"`
}

// PersonalityProfile is the end-of-session synthesis shown on the summary view.
type PersonalityProfile struct {
	UserType    string   `json:"userType"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
}

// FallbackProfile is shown when the summary collaborator is unavailable.
func FallbackProfile() PersonalityProfile {
	return PersonalityProfile{
		UserType:    "Creative Explorer",
		Description: "You are imaginative and introspective, seeking meaning in every choice.",
		Traits:      []string{"Curious", "Open to Experience"},
	}
}

// Handoff is passed to the summary boundary once a session completes.
type Handoff struct {
	Answers     []Answer       `json:"answers"`
	Journey     []JourneyEntry `json:"journey"`
	CompletedAt time.Time      `json:"completed_at"`
}

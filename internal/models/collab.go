package models

// FilterOption is an option as exchanged with the filtering collaborator.
// IDs are the option's stable id rendered as a string.
type FilterOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// FilterRequest asks the filtering collaborator to narrow or reword options.
type FilterRequest struct {
	SelectedOptionsSoFar []string       `json:"selectedOptionsSoFar"`
	AvailableOptions     []FilterOption `json:"availableOptions"`
	MaxOptions           int            `json:"maxOptions"`
}

// FilterResponse is the filtering collaborator's reply.
type FilterResponse struct {
	Options []FilterOption `json:"options"`
}

// SummaryRequest asks the summary collaborator for a personality profile.
type SummaryRequest struct {
	SelectedOptions []string `json:"selectedOptions"`
}

package model

import "time"

// OutreachType is the kind of action a salesperson logged for a company.
type OutreachType string

const (
	OutreachContacted OutreachType = "contacted"
	OutreachSnoozed   OutreachType = "snoozed"
	OutreachNote      OutreachType = "note"
)

// IsValid reports whether t is a known outreach action type.
func (t OutreachType) IsValid() bool {
	switch t {
	case OutreachContacted, OutreachSnoozed, OutreachNote:
		return true
	}
	return false
}

// OutreachAction records a manual follow-up against a company. Used to hide
// recently contacted or snoozed companies from the priority list.
type OutreachAction struct {
	ID         string       `json:"id"`
	CompanyID  string       `json:"company_id"`
	ActionType OutreachType `json:"action_type"`
	Note       string       `json:"note,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

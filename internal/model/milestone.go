package model

// Milestone marks a dated event in the couple's timeline. Milestones are
// listed by Date (the day the event happened), not by CreatedAt.
type Milestone struct {
	ID          string    `json:"id"`
	SpaceID     string    `json:"spaceId"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Icon        *string   `json:"icon"`
	Photos      []string  `json:"photos"`
	Location    *Location `json:"location"`
	CreatedAt   string    `json:"createdAt"`
	CreatedBy   string    `json:"createdBy"`
}

// MilestoneUpdate lists the milestone fields that may be patched.
type MilestoneUpdate struct {
	Title       Opt[string]    `json:"title"`
	Description Opt[*string]   `json:"description"`
	Date        Opt[string]    `json:"date"`
	Type        Opt[string]    `json:"type"`
	Icon        Opt[*string]   `json:"icon"`
	Photos      Opt[[]string]  `json:"photos"`
	Location    Opt[*Location] `json:"location"`
}

// Notification is an in-app message for one user. Read only ever moves
// from false to true.
type Notification struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	CreatedAt string  `json:"createdAt"`
	Read      bool    `json:"read"`
	ActionURL *string `json:"actionUrl"`
}

// Notification types.
const (
	NotificationMemory    = "memory"
	NotificationMilestone = "milestone"
	NotificationReaction  = "reaction"
	NotificationComment   = "comment"
	NotificationReply     = "comment_reply"
	NotificationReminder  = "reminder"
	NotificationUnbind    = "unbind"
	NotificationPartner   = "partner"
)

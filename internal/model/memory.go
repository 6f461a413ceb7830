package model

// Location is where a memory or milestone happened.
type Location struct {
	Name      string   `json:"name"`
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Memory is one journal entry.
//
// Photos and Stickers are lists of URLs / sticker ids. A nil slice means
// "never set" and is stored as NULL; an empty slice is stored as "[]".
type Memory struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"spaceId"`
	Content   string    `json:"content"`
	Mood      *string   `json:"mood"`
	Photos    []string  `json:"photos"`
	Location  *Location `json:"location"`
	VoiceNote *string   `json:"voiceNote"`
	Stickers  []string  `json:"stickers"`
	CreatedAt string    `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
	WordCount *int      `json:"wordCount"`
}

// MemoryUpdate lists the memory fields that may be patched.
type MemoryUpdate struct {
	Content   Opt[string]    `json:"content"`
	Mood      Opt[*string]   `json:"mood"`
	Photos    Opt[[]string]  `json:"photos"`
	Location  Opt[*Location] `json:"location"`
	VoiceNote Opt[*string]   `json:"voiceNote"`
	Stickers  Opt[[]string]  `json:"stickers"`
	WordCount Opt[*int]      `json:"wordCount"`
}

// Reaction is a user's reaction to a memory. At most one per
// (MemoryID, UserID) is kept by the reaction service.
type Reaction struct {
	ID        string `json:"id"`
	MemoryID  string `json:"memoryId"`
	UserID    string `json:"userId"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
}

// Comment is a comment on a memory. ParentID points at the comment being
// replied to; replies are one level deep.
type Comment struct {
	ID        string  `json:"id"`
	MemoryID  string  `json:"memoryId"`
	UserID    string  `json:"userId"`
	ParentID  *string `json:"parentId"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"createdAt"`
}

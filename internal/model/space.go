package model

// MaxSpaceMembers is the pairing model: a space holds one couple.
const MaxSpaceMembers = 2

// Space is the shared journal of one couple.
type Space struct {
	ID              string `json:"id"`
	AnniversaryDate string `json:"anniversaryDate"`
	InviteCode      string `json:"inviteCode"`
	CreatedAt       string `json:"createdAt"`
}

// SpaceUpdate lists the space fields that may be patched.
type SpaceUpdate struct {
	AnniversaryDate Opt[string] `json:"anniversaryDate"`
	InviteCode      Opt[string] `json:"inviteCode"`
}

// SpaceMember links a user to a space. Its identity is (SpaceID, UserID).
//
// PetName is what this member calls themselves in the app;
// PartnerPetName is what they call their partner.
type SpaceMember struct {
	SpaceID        string  `json:"spaceId"`
	UserID         string  `json:"userId"`
	PetName        *string `json:"petName"`
	PartnerPetName *string `json:"partnerPetName"`
	JoinedAt       string  `json:"joinedAt"`
}

// SpaceMemberUpdate lists the membership fields that may be patched.
type SpaceMemberUpdate struct {
	PetName        Opt[*string] `json:"petName"`
	PartnerPetName Opt[*string] `json:"partnerPetName"`
	JoinedAt       Opt[string]  `json:"joinedAt"`
}

// UnbindStatus is the state of an unbind request.
type UnbindStatus string

const (
	UnbindPending   UnbindStatus = "pending"
	UnbindCancelled UnbindStatus = "cancelled"
	UnbindCompleted UnbindStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s UnbindStatus) Valid() bool {
	switch s {
	case UnbindPending, UnbindCancelled, UnbindCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether an unbind request may move from s to next.
// Only pending requests move, and only to a terminal state.
func (s UnbindStatus) CanTransitionTo(next UnbindStatus) bool {
	return s == UnbindPending && (next == UnbindCancelled || next == UnbindCompleted)
}

// UnbindRequest is a member's request to dissolve a space. It stays pending
// for a cooling-off period during which either member can cancel it; once it
// expires the space is deleted and the request is marked completed.
type UnbindRequest struct {
	ID          string       `json:"id"`
	SpaceID     string       `json:"spaceId"`
	RequestedBy string       `json:"requestedBy"`
	RequestedAt string       `json:"requestedAt"`
	ExpiresAt   string       `json:"expiresAt"`
	Status      UnbindStatus `json:"status"`
}

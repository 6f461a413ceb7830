package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/sakif/sanctuary/internal/model"
)

// ===== SPACES =====

type spaceDoc struct {
	ID              string `firestore:"id"`
	AnniversaryDate string `firestore:"anniversary_date"`
	InviteCode      string `firestore:"invite_code"`
	CreatedAt       any    `firestore:"created_at"`
}

func (d *spaceDoc) model() *model.Space {
	return &model.Space{
		ID:              d.ID,
		AnniversaryDate: d.AnniversaryDate,
		InviteCode:      d.InviteCode,
		CreatedAt:       normalizeTime(d.CreatedAt),
	}
}

func (s *Store) CreateSpace(ctx context.Context, sp *model.Space) (*model.Space, error) {
	doc := spaceDoc{
		ID:              sp.ID,
		AnniversaryDate: sp.AnniversaryDate,
		InviteCode:      sp.InviteCode,
		CreatedAt:       s.stamp(sp.CreatedAt),
	}
	if _, err := s.col(colSpaces).Doc(sp.ID).Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore: creating space: %w", err)
	}
	return s.GetSpaceByID(ctx, sp.ID)
}

func (s *Store) GetSpaceByID(ctx context.Context, id string) (*model.Space, error) {
	d, err := getDoc[spaceDoc](ctx, s.col(colSpaces).Doc(id))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting space %s: %w", id, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) GetSpaceByInviteCode(ctx context.Context, code string) (*model.Space, error) {
	d, err := firstDoc[spaceDoc](ctx, s.col(colSpaces).Where("invite_code", "==", code))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting space by invite code: %w", err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) UpdateSpace(ctx context.Context, id string, upd model.SpaceUpdate) (*model.Space, error) {
	var u updates
	add(&u, "anniversary_date", upd.AnniversaryDate)
	add(&u, "invite_code", upd.InviteCode)

	found, err := updateDoc(ctx, s.col(colSpaces).Doc(id), u)
	if err != nil {
		return nil, fmt.Errorf("firestore: updating space %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return s.GetSpaceByID(ctx, id)
}

func (s *Store) DeleteSpace(ctx context.Context, id string) error {
	if _, err := s.col(colSpaces).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: deleting space %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListSpaces(ctx context.Context) ([]model.Space, error) {
	docs, err := queryDocs[spaceDoc](ctx, s.col(colSpaces).OrderBy("created_at", firestore.Asc))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing spaces: %w", err)
	}
	spaces := make([]model.Space, 0, len(docs))
	for i := range docs {
		spaces = append(spaces, *docs[i].model())
	}
	return spaces, nil
}

// ===== MEMBERS =====

type memberDoc struct {
	SpaceID        string  `firestore:"space_id"`
	UserID         string  `firestore:"user_id"`
	PetName        *string `firestore:"pet_name"`
	PartnerPetName *string `firestore:"partner_pet_name"`
	JoinedAt       any     `firestore:"joined_at"`
}

func (d *memberDoc) model() *model.SpaceMember {
	return &model.SpaceMember{
		SpaceID:        d.SpaceID,
		UserID:         d.UserID,
		PetName:        d.PetName,
		PartnerPetName: d.PartnerPetName,
		JoinedAt:       normalizeTime(d.JoinedAt),
	}
}

// memberDocID is the composite document id of a membership.
func memberDocID(spaceID, userID string) string {
	return spaceID + "_" + userID
}

func (s *Store) AddSpaceMember(ctx context.Context, m *model.SpaceMember) error {
	doc := memberDoc{
		SpaceID:        m.SpaceID,
		UserID:         m.UserID,
		PetName:        m.PetName,
		PartnerPetName: m.PartnerPetName,
		JoinedAt:       s.stamp(m.JoinedAt),
	}
	if _, err := s.col(colSpaceMembers).Doc(memberDocID(m.SpaceID, m.UserID)).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore: adding member %s to space %s: %w", m.UserID, m.SpaceID, err)
	}
	return nil
}

func (s *Store) ListSpaceMembers(ctx context.Context, spaceID string) ([]model.SpaceMember, error) {
	docs, err := queryDocs[memberDoc](ctx, s.col(colSpaceMembers).
		Where("space_id", "==", spaceID).
		OrderBy("joined_at", firestore.Asc))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing members of space %s: %w", spaceID, err)
	}
	members := make([]model.SpaceMember, 0, len(docs))
	for i := range docs {
		members = append(members, *docs[i].model())
	}
	return members, nil
}

func (s *Store) GetSpaceMemberByUserID(ctx context.Context, userID string) (*model.SpaceMember, error) {
	d, err := firstDoc[memberDoc](ctx, s.col(colSpaceMembers).Where("user_id", "==", userID))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting membership of user %s: %w", userID, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) CountSpaceMembers(ctx context.Context, spaceID string) (int, error) {
	n, err := count(ctx, s.col(colSpaceMembers).Where("space_id", "==", spaceID))
	if err != nil {
		return 0, fmt.Errorf("firestore: counting members of space %s: %w", spaceID, err)
	}
	return n, nil
}

func (s *Store) UpdateSpaceMember(ctx context.Context, spaceID, userID string, upd model.SpaceMemberUpdate) (*model.SpaceMember, error) {
	var u updates
	add(&u, "pet_name", upd.PetName)
	add(&u, "partner_pet_name", upd.PartnerPetName)
	add(&u, "joined_at", upd.JoinedAt)

	ref := s.col(colSpaceMembers).Doc(memberDocID(spaceID, userID))
	if _, err := updateDoc(ctx, ref, u); err != nil {
		return nil, fmt.Errorf("firestore: updating member %s of space %s: %w", userID, spaceID, err)
	}

	d, err := getDoc[memberDoc](ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("firestore: reading member %s of space %s: %w", userID, spaceID, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) DeleteSpaceMembersBySpaceID(ctx context.Context, spaceID string) error {
	if err := s.deleteWhere(ctx, s.col(colSpaceMembers).Where("space_id", "==", spaceID)); err != nil {
		return fmt.Errorf("firestore: deleting members of space %s: %w", spaceID, err)
	}
	return nil
}

// ===== UNBIND REQUESTS =====

type unbindDoc struct {
	ID          string `firestore:"id"`
	SpaceID     string `firestore:"space_id"`
	RequestedBy string `firestore:"requested_by"`
	RequestedAt any    `firestore:"requested_at"`
	ExpiresAt   any    `firestore:"expires_at"`
	Status      string `firestore:"status"`
}

func (d *unbindDoc) model() *model.UnbindRequest {
	return &model.UnbindRequest{
		ID:          d.ID,
		SpaceID:     d.SpaceID,
		RequestedBy: d.RequestedBy,
		RequestedAt: normalizeTime(d.RequestedAt),
		ExpiresAt:   normalizeTime(d.ExpiresAt),
		Status:      model.UnbindStatus(d.Status),
	}
}

func (s *Store) CreateUnbindRequest(ctx context.Context, r *model.UnbindRequest) (*model.UnbindRequest, error) {
	status := r.Status
	if status == "" {
		status = model.UnbindPending
	}
	doc := unbindDoc{
		ID:          r.ID,
		SpaceID:     r.SpaceID,
		RequestedBy: r.RequestedBy,
		RequestedAt: s.stamp(r.RequestedAt),
		ExpiresAt:   r.ExpiresAt,
		Status:      string(status),
	}
	ref := s.col(colUnbindRequests).Doc(r.ID)
	if _, err := ref.Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore: creating unbind request: %w", err)
	}

	d, err := getDoc[unbindDoc](ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("firestore: reading unbind request %s: %w", r.ID, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

// GetUnbindRequestBySpaceID returns the newest pending request. Ordering by
// requested_at breaks ties if callers ever let two pending requests exist.
func (s *Store) GetUnbindRequestBySpaceID(ctx context.Context, spaceID string) (*model.UnbindRequest, error) {
	d, err := firstDoc[unbindDoc](ctx, s.col(colUnbindRequests).
		Where("space_id", "==", spaceID).
		Where("status", "==", string(model.UnbindPending)).
		OrderBy("requested_at", firestore.Desc))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting unbind request of space %s: %w", spaceID, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) UpdateUnbindRequestStatus(ctx context.Context, id string, status model.UnbindStatus) error {
	_, err := updateDoc(ctx, s.col(colUnbindRequests).Doc(id), updates{{Path: "status", Value: string(status)}})
	if err != nil {
		return fmt.Errorf("firestore: updating unbind request %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteUnbindRequestsBySpaceID(ctx context.Context, spaceID string) error {
	if err := s.deleteWhere(ctx, s.col(colUnbindRequests).Where("space_id", "==", spaceID)); err != nil {
		return fmt.Errorf("firestore: deleting unbind requests of space %s: %w", spaceID, err)
	}
	return nil
}

func (s *Store) ListExpiredUnbindRequests(ctx context.Context) ([]model.UnbindRequest, error) {
	docs, err := queryDocs[unbindDoc](ctx, s.col(colUnbindRequests).
		Where("status", "==", string(model.UnbindPending)).
		Where("expires_at", "<=", s.nowString()).
		OrderBy("expires_at", firestore.Asc))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing expired unbind requests: %w", err)
	}
	reqs := make([]model.UnbindRequest, 0, len(docs))
	for i := range docs {
		reqs = append(reqs, *docs[i].model())
	}
	return reqs, nil
}

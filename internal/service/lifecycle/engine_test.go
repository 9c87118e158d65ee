package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/venue-reservation/internal/model"
)

const (
	ownerID  int64 = 20
	renterID int64 = 9
	otherID  int64 = 77
)

var (
	owner    = model.Actor{UserID: ownerID, Role: model.RoleClient}
	renter   = model.Actor{UserID: renterID, Role: model.RoleUser}
	stranger = model.Actor{UserID: otherID, Role: model.RoleClient}
	admin    = model.Actor{UserID: 1, Role: model.RoleAdmin}
	system   = model.SystemActor()
)

var allStatuses = []model.Status{
	model.StatusPending,
	model.StatusAccepted,
	model.StatusConfirmed,
	model.StatusCancellationRequested,
	model.StatusCancelled,
	model.StatusRejected,
	model.StatusCompleted,
}

func fixture(status model.Status, previous *model.Status) (*model.Reservation, *model.Venue) {
	uid := renterID
	ends := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
	return &model.Reservation{
			ID:             5,
			VenueID:        1,
			RenterUserID:   &uid,
			StartsAt:       ends.Add(-2 * time.Hour),
			EndsAt:         ends,
			Status:         status,
			PreviousStatus: previous,
		}, &model.Venue{
			ID:          1,
			OwnerUserID: ownerID,
			Title:       "Sunset Hall",
			Status:      model.VenueOpen,
		}
}

func statusPtr(s model.Status) *model.Status {
	return &s
}

var afterEvent = time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

func TestResolve_許可される遷移(t *testing.T) {
	tests := []struct {
		name           string
		from           model.Status
		previous       *model.Status
		to             model.Status
		actor          model.Actor
		wantInitiator  Party
		wantRecipients []Recipient
	}{
		{
			name:          "オーナーが承認すると予約者に通知",
			from:          model.StatusPending,
			to:            model.StatusAccepted,
			actor:         owner,
			wantInitiator: PartyOwner,
			wantRecipients: []Recipient{
				{UserID: renterID, Audience: model.AudienceRenter, Key: model.MessageKeyForStatus(model.StatusAccepted)},
			},
		},
		{
			name:          "管理者は他人の会場でも操作できる",
			from:          model.StatusAccepted,
			to:            model.StatusConfirmed,
			actor:         admin,
			wantInitiator: PartyOwner,
			wantRecipients: []Recipient{
				{UserID: renterID, Audience: model.AudienceRenter, Key: model.MessageKeyForStatus(model.StatusConfirmed)},
			},
		},
		{
			name:          "予約者のキャンセル申請はオーナーに通知",
			from:          model.StatusConfirmed,
			to:            model.StatusCancellationRequested,
			actor:         renter,
			wantInitiator: PartyRenter,
			wantRecipients: []Recipient{
				{UserID: ownerID, Audience: model.AudienceOwner, Key: model.MessageKeyForStatus(model.StatusCancellationRequested)},
			},
		},
		{
			name:          "キャンセル申請の承認",
			from:          model.StatusCancellationRequested,
			previous:      statusPtr(model.StatusConfirmed),
			to:            model.StatusCancelled,
			actor:         owner,
			wantInitiator: PartyOwner,
			wantRecipients: []Recipient{
				{UserID: renterID, Audience: model.AudienceRenter, Key: model.MessageCancellationApproved},
			},
		},
		{
			name:          "キャンセル申請の却下で元のステータスに戻る",
			from:          model.StatusCancellationRequested,
			previous:      statusPtr(model.StatusConfirmed),
			to:            model.StatusConfirmed,
			actor:         owner,
			wantInitiator: PartyOwner,
			wantRecipients: []Recipient{
				{UserID: renterID, Audience: model.AudienceRenter, Key: model.MessageCancellationRejected},
			},
		},
		{
			name:          "キャンセル申請中の予約をオーナーが却下",
			from:          model.StatusCancellationRequested,
			previous:      statusPtr(model.StatusConfirmed),
			to:            model.StatusRejected,
			actor:         owner,
			wantInitiator: PartyOwner,
			wantRecipients: []Recipient{
				{UserID: renterID, Audience: model.AudienceRenter, Key: model.MessageKeyForStatus(model.StatusRejected)},
			},
		},
		{
			name:          "システムによる完了は両者に通知",
			from:          model.StatusConfirmed,
			to:            model.StatusCompleted,
			actor:         system,
			wantInitiator: PartySystem,
			wantRecipients: []Recipient{
				{UserID: renterID, Audience: model.AudienceRenter, Key: model.MessageKeyForStatus(model.StatusCompleted)},
				{UserID: ownerID, Audience: model.AudienceOwner, Key: model.MessageKeyForStatus(model.StatusCompleted)},
			},
		},
		{
			name:          "オーナーによる完了",
			from:          model.StatusConfirmed,
			to:            model.StatusCompleted,
			actor:         owner,
			wantInitiator: PartyOwner,
			wantRecipients: []Recipient{
				{UserID: renterID, Audience: model.AudienceRenter, Key: model.MessageKeyForStatus(model.StatusCompleted)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, venue := fixture(tt.from, tt.previous)

			tr, err := Resolve(res, venue, tt.actor, tt.to, afterEvent)
			require.NoError(t, err)
			assert.Equal(t, tt.from, tr.From)
			assert.Equal(t, tt.to, tr.To)
			assert.Equal(t, tt.wantInitiator, tr.Initiator)
			assert.Equal(t, tt.wantRecipients, tr.Recipients)
		})
	}
}

func TestResolve_権限なし(t *testing.T) {
	tests := []struct {
		name  string
		from  model.Status
		to    model.Status
		actor model.Actor
	}{
		{name: "予約者は承認できない", from: model.StatusPending, to: model.StatusAccepted, actor: renter},
		{name: "他人の会場は操作できない", from: model.StatusPending, to: model.StatusAccepted, actor: stranger},
		{name: "オーナーはキャンセル申請できない", from: model.StatusConfirmed, to: model.StatusCancellationRequested, actor: owner},
		{name: "他人の予約はキャンセル申請できない", from: model.StatusConfirmed, to: model.StatusCancellationRequested, actor: stranger},
		{name: "システムは承認できない", from: model.StatusPending, to: model.StatusAccepted, actor: system},
		{name: "ゲストは操作できない", from: model.StatusPending, to: model.StatusCancelled, actor: model.Actor{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, venue := fixture(tt.from, nil)

			_, err := Resolve(res, venue, tt.actor, tt.to, afterEvent)
			assert.ErrorIs(t, err, model.ErrUnauthorized)
		})
	}
}

// 遷移表にない組み合わせはすべて ErrInvalidTransition になる
func TestResolve_遷移表にない遷移(t *testing.T) {
	allowed := map[edge]bool{}
	for e := range matrix {
		allowed[e] = true
	}
	// 却下で戻る遷移
	allowed[edge{model.StatusCancellationRequested, model.StatusConfirmed}] = true

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if allowed[edge{from, to}] {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				res, venue := fixture(from, statusPtr(model.StatusConfirmed))

				for _, actor := range []model.Actor{owner, renter, admin, system} {
					_, err := Resolve(res, venue, actor, to, afterEvent)
					assert.True(t, errors.Is(err, model.ErrInvalidTransition), "actor %s: got %v", actor.Role, err)
				}
			})
		}
	}
}

func TestResolve_キャンセル申請の却下は元のステータスのみ(t *testing.T) {
	res, venue := fixture(model.StatusCancellationRequested, statusPtr(model.StatusAccepted))

	_, err := Resolve(res, venue, owner, model.StatusConfirmed, afterEvent)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = Resolve(res, venue, owner, model.StatusAccepted, afterEvent)
	assert.NoError(t, err)
}

func TestResolve_システムは終了前に完了できない(t *testing.T) {
	res, venue := fixture(model.StatusConfirmed, nil)

	_, err := Resolve(res, venue, system, model.StatusCompleted, res.EndsAt.Add(-time.Minute))
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = Resolve(res, venue, system, model.StatusCompleted, res.EndsAt)
	assert.NoError(t, err)

	// オーナーは終了前でも完了にできる
	_, err = Resolve(res, venue, owner, model.StatusCompleted, res.EndsAt.Add(-time.Hour))
	assert.NoError(t, err)
}

func TestResolve_ゲスト予約(t *testing.T) {
	res, venue := fixture(model.StatusPending, nil)
	res.RenterUserID = nil

	tr, err := Resolve(res, venue, owner, model.StatusAccepted, afterEvent)
	require.NoError(t, err)
	assert.Empty(t, tr.Recipients)

	res.Status = model.StatusConfirmed
	tr, err = Resolve(res, venue, system, model.StatusCompleted, afterEvent)
	require.NoError(t, err)
	assert.Equal(t, []Recipient{{UserID: ownerID, Audience: model.AudienceOwner, Key: model.MessageKeyForStatus(model.StatusCompleted)}}, tr.Recipients)
}

func TestResolve_不明なステータス(t *testing.T) {
	res, venue := fixture(model.StatusPending, nil)

	_, err := Resolve(res, venue, owner, model.Status("archived"), afterEvent)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreationRecipients(t *testing.T) {
	_, venue := fixture(model.StatusPending, nil)
	got := CreationRecipients(venue)
	require.Len(t, got, 1)
	assert.Equal(t, ownerID, got[0].UserID)
	assert.Equal(t, model.AudienceOwner, got[0].Audience)
}

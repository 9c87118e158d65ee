// Package lifecycle は予約ステータスの遷移表と、遷移ごとの権限・通知先を扱います
package lifecycle

import (
	"fmt"
	"time"

	"github.com/uma-arai/venue-reservation/internal/model"
)

// Party は遷移を起こせる立場です
type Party string

const (
	// PartyOwner は会場オーナー(管理者を含む)です
	PartyOwner  Party = "owner"
	PartyRenter Party = "renter"
	// PartySystem は定期実行の完了処理です
	PartySystem Party = "system"
)

type edge struct {
	from model.Status
	to   model.Status
}

// 遷移表。cancellation_requested から元のステータスへ戻す遷移は予約ごとに決まるため、ここには含めない
var matrix = map[edge][]Party{
	{model.StatusPending, model.StatusAccepted}:                {PartyOwner},
	{model.StatusPending, model.StatusRejected}:                {PartyOwner},
	{model.StatusPending, model.StatusCancelled}:               {PartyOwner},
	{model.StatusPending, model.StatusCancellationRequested}:   {PartyRenter},
	{model.StatusAccepted, model.StatusConfirmed}:              {PartyOwner},
	{model.StatusAccepted, model.StatusCancelled}:              {PartyOwner},
	{model.StatusAccepted, model.StatusRejected}:               {PartyOwner},
	{model.StatusAccepted, model.StatusCancellationRequested}:  {PartyRenter},
	{model.StatusConfirmed, model.StatusCompleted}:             {PartyOwner, PartySystem},
	{model.StatusConfirmed, model.StatusCancelled}:             {PartyOwner},
	{model.StatusConfirmed, model.StatusRejected}:              {PartyOwner},
	{model.StatusConfirmed, model.StatusCancellationRequested}: {PartyRenter},
	{model.StatusCancellationRequested, model.StatusCancelled}: {PartyOwner},
	{model.StatusCancellationRequested, model.StatusRejected}:  {PartyOwner},
}

// Recipient は通知の宛先です
type Recipient struct {
	UserID   int64
	Audience model.Audience
	Key      model.MessageKey
}

// Transition は許可された遷移です
type Transition struct {
	ReservationID int64
	From          model.Status
	// To は実際に保存するステータス。キャンセル申請の却下では元のステータスになります
	To         model.Status
	Initiator  Party
	Recipients []Recipient
}

// Event converts the transition into the event published after commit.
func (t Transition) Event(venueID int64, actor model.Actor, at time.Time) model.ReservationEvent {
	return model.ReservationEvent{
		ReservationID: t.ReservationID,
		VenueID:       venueID,
		From:          t.From,
		To:            t.To,
		ActorUserID:   actor.UserID,
		ActorRole:     actor.Role,
		CreatedAt:     at,
	}
}

// Resolve は遷移表と操作者の権限を確認し、許可された遷移と通知先を返します
// 遷移表にない遷移は ErrInvalidTransition、権限がない場合は ErrUnauthorized を返します
func Resolve(res *model.Reservation, venue *model.Venue, actor model.Actor, target model.Status, now time.Time) (Transition, error) {
	if !target.Valid() {
		return Transition{}, model.NewValidationError("status", fmt.Sprintf("unknown reservation status %q", target))
	}

	parties, err := allowedParties(res, target)
	if err != nil {
		return Transition{}, err
	}

	initiator, ok := matchParty(parties, res, venue, actor)
	if !ok {
		return Transition{}, fmt.Errorf("%s may not move reservation %d from %s to %s: %w",
			describe(actor), res.ID, res.Status, target, model.ErrUnauthorized)
	}

	if initiator == PartySystem && now.Before(res.EndsAt) {
		return Transition{}, fmt.Errorf("reservation %d has not ended yet: %w", res.ID, model.ErrInvalidTransition)
	}

	t := Transition{
		ReservationID: res.ID,
		From:          res.Status,
		To:            target,
		Initiator:     initiator,
	}
	t.Recipients = recipients(t, res, venue)
	return t, nil
}

func allowedParties(res *model.Reservation, target model.Status) ([]Party, error) {
	if res.Status.IsTerminal() {
		return nil, fmt.Errorf("reservation %d is %s and can no longer change: %w", res.ID, res.Status, model.ErrInvalidTransition)
	}

	if parties, ok := matrix[edge{res.Status, target}]; ok {
		return parties, nil
	}

	// キャンセル申請の却下: 申請前のステータスに戻す
	if res.Status == model.StatusCancellationRequested && res.PreviousStatus != nil && *res.PreviousStatus == target {
		return []Party{PartyOwner}, nil
	}

	return nil, fmt.Errorf("cannot move reservation %d from %s to %s: %w", res.ID, res.Status, target, model.ErrInvalidTransition)
}

func matchParty(parties []Party, res *model.Reservation, venue *model.Venue, actor model.Actor) (Party, bool) {
	for _, p := range parties {
		switch p {
		case PartyOwner:
			if actor.IsAdmin() || (!actor.IsSystem() && actor.UserID != 0 && venue.IsOwnedBy(actor.UserID)) {
				return p, true
			}
		case PartyRenter:
			if !actor.IsSystem() && actor.UserID != 0 && res.IsRenter(actor.UserID) {
				return p, true
			}
		case PartySystem:
			if actor.IsSystem() {
				return p, true
			}
		}
	}
	return "", false
}

// recipients は遷移を起こしていない側を通知先として返します
// システムによる完了は予約者とオーナーの両方に通知します。ゲスト予約の予約者には通知しません
func recipients(t Transition, res *model.Reservation, venue *model.Venue) []Recipient {
	owner := Recipient{UserID: venue.OwnerUserID, Audience: model.AudienceOwner, Key: model.MessageKeyForStatus(t.To)}

	var renter *Recipient
	if res.RenterUserID != nil {
		renter = &Recipient{UserID: *res.RenterUserID, Audience: model.AudienceRenter, Key: renterMessageKey(t)}
	}

	switch t.Initiator {
	case PartyRenter:
		return []Recipient{owner}
	case PartySystem:
		if renter != nil {
			return []Recipient{*renter, owner}
		}
		return []Recipient{owner}
	default:
		if renter != nil {
			return []Recipient{*renter}
		}
		return nil
	}
}

func renterMessageKey(t Transition) model.MessageKey {
	if t.From == model.StatusCancellationRequested {
		switch t.To {
		case model.StatusCancelled:
			return model.MessageCancellationApproved
		case model.StatusRejected:
			// 申請中でも予約そのものを却下できる
			return model.MessageKeyForStatus(model.StatusRejected)
		}
		return model.MessageCancellationRejected
	}
	return model.MessageKeyForStatus(t.To)
}

// CreationRecipients は新規予約時の通知先(会場オーナー)を返します
func CreationRecipients(venue *model.Venue) []Recipient {
	return []Recipient{{
		UserID:   venue.OwnerUserID,
		Audience: model.AudienceOwner,
		Key:      model.MessageKeyForStatus(model.StatusPending),
	}}
}

func describe(actor model.Actor) string {
	if actor.IsSystem() {
		return "system"
	}
	return fmt.Sprintf("user %d (%s)", actor.UserID, actor.Role)
}

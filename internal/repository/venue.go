package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/venue-reservation/internal/model"
)

// VenueRepository は会場カタログの読み取りを担当するインターフェースです
// 会場の登録・編集は別システムの責務で、ここからは更新しません
type VenueRepository interface {
	GetByID(ctx context.Context, venueID int64) (*model.Venue, error)
	ListIDsByOwner(ctx context.Context, ownerUserID int64) ([]int64, error)
}

// VenueRepositoryImpl はVenueRepositoryの実装です
type VenueRepositoryImpl struct {
	db *DB
}

// NewVenueRepository は新しいVenueRepositoryを作成します
func NewVenueRepository(db *DB) *VenueRepositoryImpl {
	return &VenueRepositoryImpl{
		db: db,
	}
}

// GetByID は指定された会場IDから会場情報を取得します
func (r *VenueRepositoryImpl) GetByID(ctx context.Context, venueID int64) (*model.Venue, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "VenueRepository.GetByID")
	defer seg.Close(nil)

	query := `
		SELECT id, user_id, title, price, status
		FROM venue
		WHERE id = $1`

	var venue model.Venue
	if err := r.db.GetContext(ctx, &venue, query, venueID); err != nil {
		return nil, notFound(err, "venue", venueID)
	}

	return &venue, nil
}

// ListIDsByOwner はオーナーが所有する会場IDの一覧を取得します
func (r *VenueRepositoryImpl) ListIDsByOwner(ctx context.Context, ownerUserID int64) ([]int64, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "VenueRepository.ListIDsByOwner")
	defer seg.Close(nil)

	query := `
		SELECT id
		FROM venue
		WHERE user_id = $1
		ORDER BY id`

	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, query, ownerUserID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list venues for owner %d: %w", ownerUserID, err)
	}

	return ids, nil
}

// Package pricing は予約の利用時間と料金を計算します
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uma-arai/venue-reservation/internal/model"
)

const (
	costPlaces     = 2
	durationPlaces = 4
)

var secondsPerHour = decimal.NewFromInt(3600)

// Cost は予約作成時に確定する料金です
type Cost struct {
	DurationHours decimal.Decimal
	TotalCost     decimal.Decimal
}

// ComputeCost は利用時間と合計金額を計算します
// End <= Start の場合は翌日終了として扱います。合計金額は小数第2位で四捨五入します
func ComputeCost(start, end model.TimeOfDay, pricePerHour decimal.Decimal) (Cost, error) {
	if pricePerHour.IsNegative() {
		return Cost{}, model.NewValidationError("price_per_hour", fmt.Sprintf("must not be negative: %s", pricePerHour))
	}

	window := model.Window{Start: start, End: end}
	seconds := decimal.NewFromInt(int64(window.Duration() / time.Second))

	// 秒単位で計算してから丸めることで、1.5時間などの端数でも誤差が出ないようにする
	total := pricePerHour.Mul(seconds).Div(secondsPerHour).Round(costPlaces)
	hours := seconds.Div(secondsPerHour).Round(durationPlaces)

	return Cost{DurationHours: hours, TotalCost: total}, nil
}

package reservation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/uma-arai/venue-reservation/internal/model"
)

// CreateRequest は予約作成リクエストです
type CreateRequest struct {
	VenueID           int64  `json:"venue_id" validate:"required,gt=0"`
	EventDate         string `json:"event_date" validate:"required"`
	StartTime         string `json:"start_time" validate:"required"`
	EndTime           string `json:"end_time" validate:"required"`
	FirstName         string `json:"first_name" validate:"required,max=100"`
	LastName          string `json:"last_name" validate:"required,max=100"`
	Email             string `json:"email" validate:"required,email,max=255"`
	MobileCountryCode string `json:"mobile_country_code" validate:"omitempty,max=8"`
	MobileNumber      string `json:"mobile_number" validate:"omitempty,max=32"`
	Address           string `json:"address" validate:"omitempty,max=255"`
	Country           string `json:"country" validate:"omitempty,max=100"`
	Notes             string `json:"notes" validate:"max=2000"`
	// 割引は適用せず、そのまま保存します
	VoucherCode string `json:"voucher_code" validate:"omitempty,max=64"`
}

// normalized は前後の空白を取り除いたリクエストを返します
// 空白だけの氏名が required を通らないよう、検証の前に呼びます
func (r CreateRequest) normalized() CreateRequest {
	r.EventDate = strings.TrimSpace(r.EventDate)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.EndTime = strings.TrimSpace(r.EndTime)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.MobileCountryCode = strings.TrimSpace(r.MobileCountryCode)
	r.MobileNumber = strings.TrimSpace(r.MobileNumber)
	r.Address = strings.TrimSpace(r.Address)
	r.Country = strings.TrimSpace(r.Country)
	r.VoucherCode = strings.TrimSpace(r.VoucherCode)
	return r
}

func (r CreateRequest) contact() model.ContactInfo {
	return model.ContactInfo{
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		Email:             r.Email,
		MobileCountryCode: r.MobileCountryCode,
		MobileNumber:      r.MobileNumber,
		Address:           r.Address,
		Country:           r.Country,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーのフィールド名はJSONのキーに合わせる
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// toValidationError はvalidatorのエラーをフィールド単位のValidationErrorに変換します
func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &model.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), describeTag(fe))
	}
	return verr
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/avrile/rental-system/internal/model"
)

// ErrInvalidStay возвращается при некорректной форме запроса на проживание.
var ErrInvalidStay = errors.New("invalid stay request")

const dateLayout = "2006-01-02"

// ParseDate разбирает календарную дату в формате YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidStay, s)
	}
	return t, nil
}

// ValidateStay проверяет форму запроса до обращения к расчётным компонентам:
// дата выезда строго позже даты заезда, хотя бы один взрослый, неотрицательное
// число детей, неотрицательная скидка известного вида.
func ValidateStay(start, end time.Time, adults, children int, kind model.DiscountKind, discountValue float64) error {
	if !end.After(start) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidStay)
	}
	if adults < 1 {
		return fmt.Errorf("%w: at least one adult required", ErrInvalidStay)
	}
	if children < 0 {
		return fmt.Errorf("%w: negative child count", ErrInvalidStay)
	}
	if discountValue < 0 {
		return fmt.Errorf("%w: negative discount", ErrInvalidStay)
	}
	switch kind {
	case model.DiscountKindPercent, model.DiscountKindAmount, model.DiscountKindNone:
	default:
		return fmt.Errorf("%w: unknown discount kind %q", ErrInvalidStay, kind)
	}
	return nil
}

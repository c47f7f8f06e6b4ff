// Package pricing рассчитывает детализированную стоимость проживания.
package pricing

import (
	"math"
	"time"

	"github.com/avrile/rental-system/internal/model"
)

// basisNights — фиксированный базисный период: базисная цена сезона задаётся
// за 21 ночь, ставка за ночь получается делением на эту константу.
const basisNights = 21

// Stay описывает запрос на расчёт стоимости проживания.
// Даты трактуются как календарные дни, интервал [StartDate, EndDate).
type Stay struct {
	StartDate time.Time
	EndDate   time.Time

	Adults   int
	Children int

	Linens                bool
	MidStayCleaning       bool
	CancellationInsurance bool

	// DiscountValue — процент при DiscountKindPercent, иначе сумма в евро.
	DiscountKind  model.DiscountKind
	DiscountValue float64
}

// Breakdown содержит постатейную детализацию стоимости в центах.
// Каждое денежное поле округлено до цента независимо от остальных.
type Breakdown struct {
	Nights            int
	BasePriceCents    int64
	DiscountCents     int64
	NetBaseCents      int64
	LinensFeeCents    int64
	CleaningFeeCents  int64
	InsuranceFeeCents int64
	TouristTaxCents   int64
	TotalCents        int64
}

// Calculate рассчитывает стоимость проживания по тарифным параметрам.
// Функция тотальна над корректным входом и не возвращает ошибок: проверка
// формы запроса выполняется вызывающей стороной до расчёта. Интервал короче
// одной ночи — нарушение контракта, вызывающее панику.
//
// Сезон определяется только месяцем даты заезда: проживание, начавшееся
// в низкий сезон и закончившееся в высокий, целиком тарифицируется по
// низкому сезону. Страховка отмены начисляется на базу за вычетом скидки.
func Calculate(stay Stay, cfg model.PricingSettings) Breakdown {
	nights := nightsBetween(stay.StartDate, stay.EndDate)
	if nights < 1 {
		panic("pricing: stay must contain at least one night")
	}

	basis := cfg.HighSeasonBasisCents
	if isLowSeason(stay.StartDate.Month(), cfg.LowSeasonMonths) {
		basis = cfg.LowSeasonBasisCents
	}

	base := roundCents(float64(nights) * float64(basis) / basisNights)

	var discount int64
	if stay.DiscountKind == model.DiscountKindPercent {
		discount = roundCents(float64(base) * stay.DiscountValue / 100)
	} else {
		// Неуказанный вид скидки трактуется как фиксированная сумма.
		discount = roundCents(stay.DiscountValue * 100)
	}

	// Отрицательная нетто-база при скидке больше базы не ограничивается нулём:
	// скидка принимается так, как её ввёл оператор.
	netBase := base - discount

	var linens int64
	if stay.Linens {
		linens = cfg.LinensFeeCents
	}

	var cleaning int64
	if stay.MidStayCleaning {
		cleaning = cfg.CleaningFeeCents
	}

	var insurance int64
	if stay.CancellationInsurance {
		insurance = roundCents(float64(netBase) * cfg.InsurancePercent / 100)
	}

	touristTax := int64(stay.Adults+stay.Children) * int64(nights) * cfg.TouristTaxCents

	return Breakdown{
		Nights:            nights,
		BasePriceCents:    base,
		DiscountCents:     discount,
		NetBaseCents:      netBase,
		LinensFeeCents:    linens,
		CleaningFeeCents:  cleaning,
		InsuranceFeeCents: insurance,
		TouristTaxCents:   touristTax,
		TotalCents:        base - discount + linens + cleaning + insurance + touristTax,
	}
}

// roundCents округляет значение в центах до целого по правилу
// «половина от нуля» (math.Round).
func roundCents(v float64) int64 {
	return int64(math.Round(v))
}

func isLowSeason(m time.Month, low []time.Month) bool {
	for _, lm := range low {
		if m == lm {
			return true
		}
	}
	return false
}

// nightsBetween возвращает число ночей между календарными датами.
func nightsBetween(start, end time.Time) int {
	s := dateOnly(start)
	e := dateOnly(end)
	return int(e.Sub(s) / (24 * time.Hour))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package pricing

import (
	"testing"
	"time"

	"github.com/avrile/rental-system/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testSettings() model.PricingSettings {
	return model.PricingSettings{
		LowSeasonBasisCents:  105000, // 1050.00
		HighSeasonBasisCents: 210000, // 2100.00
		LowSeasonMonths:      []time.Month{time.January, time.February, time.November, time.December},
		LinensFeeCents:       5000,
		CleaningFeeCents:     8000,
		InsurancePercent:     5,
		TouristTaxCents:      150,
	}
}

func TestCalculate_EndToEnd(t *testing.T) {
	// 7 ночей в высокий сезон, базис 2100 -> 100 за ночь, бельё и уборка,
	// без скидки и страховки, 2 взрослых, ставка налога 1.5.
	stay := Stay{
		StartDate:       date(2024, time.July, 1),
		EndDate:         date(2024, time.July, 8),
		Adults:          2,
		Linens:          true,
		MidStayCleaning: true,
	}

	b := Calculate(stay, testSettings())

	if b.Nights != 7 {
		t.Fatalf("Nights = %d, want 7", b.Nights)
	}
	if b.BasePriceCents != 70000 {
		t.Fatalf("BasePriceCents = %d, want 70000", b.BasePriceCents)
	}
	if b.TouristTaxCents != 2100 {
		t.Fatalf("TouristTaxCents = %d, want 2100", b.TouristTaxCents)
	}
	if b.TotalCents != 85100 {
		t.Fatalf("TotalCents = %d, want 85100", b.TotalCents)
	}
}

func TestCalculate_SeasonByStartMonthOnly(t *testing.T) {
	// Заезд в декабре, выезд в январе: весь период по низкому сезону.
	stay := Stay{
		StartDate: date(2024, time.December, 29),
		EndDate:   date(2025, time.January, 5),
		Adults:    1,
	}

	b := Calculate(stay, testSettings())

	// 7 ночей по 50.00 (низкий базис 1050 / 21).
	if b.BasePriceCents != 35000 {
		t.Fatalf("BasePriceCents = %d, want 35000", b.BasePriceCents)
	}
}

func TestCalculate_DiscountKinds(t *testing.T) {
	tests := []struct {
		name      string
		kind      model.DiscountKind
		value     float64
		wantCents int64
	}{
		{
			name:      "percent of base",
			kind:      model.DiscountKindPercent,
			value:     10,
			wantCents: 7000,
		},
		{
			name:      "flat amount",
			kind:      model.DiscountKindAmount,
			value:     100,
			wantCents: 10000,
		},
		{
			name:      "unspecified kind falls through to amount",
			kind:      model.DiscountKindNone,
			value:     50,
			wantCents: 5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stay := Stay{
				StartDate:     date(2024, time.July, 1),
				EndDate:       date(2024, time.July, 8),
				Adults:        1,
				DiscountKind:  tt.kind,
				DiscountValue: tt.value,
			}

			b := Calculate(stay, testSettings())
			if b.DiscountCents != tt.wantCents {
				t.Fatalf("DiscountCents = %d, want %d", b.DiscountCents, tt.wantCents)
			}
			if b.NetBaseCents != b.BasePriceCents-tt.wantCents {
				t.Fatalf("NetBaseCents = %d, want %d", b.NetBaseCents, b.BasePriceCents-tt.wantCents)
			}
		})
	}
}

func TestCalculate_InsuranceOnDiscountedBase(t *testing.T) {
	// База 700, скидка 10% -> 70, страховка 5% от 630 = 31.50.
	stay := Stay{
		StartDate:             date(2024, time.July, 1),
		EndDate:               date(2024, time.July, 8),
		Adults:                2,
		CancellationInsurance: true,
		DiscountKind:          model.DiscountKindPercent,
		DiscountValue:         10,
	}

	b := Calculate(stay, testSettings())

	if b.InsuranceFeeCents != 3150 {
		t.Fatalf("InsuranceFeeCents = %d, want 3150", b.InsuranceFeeCents)
	}
}

func TestCalculate_TouristTaxPerPersonPerNight(t *testing.T) {
	// 2 взрослых + 1 ребёнок, 7 ночей, ставка 1.50 -> 31.50.
	stay := Stay{
		StartDate: date(2024, time.July, 1),
		EndDate:   date(2024, time.July, 8),
		Adults:    2,
		Children:  1,
	}

	b := Calculate(stay, testSettings())
	if b.TouristTaxCents != 3150 {
		t.Fatalf("TouristTaxCents = %d, want 3150", b.TouristTaxCents)
	}

	moreChildren := stay
	moreChildren.Children = 2
	b2 := Calculate(moreChildren, testSettings())
	if b2.TouristTaxCents <= b.TouristTaxCents {
		t.Fatalf("tax must grow with children: %d then %d", b.TouristTaxCents, b2.TouristTaxCents)
	}
}

func TestCalculate_TotalIsSumOfComponents(t *testing.T) {
	stay := Stay{
		StartDate:             date(2024, time.March, 10),
		EndDate:               date(2024, time.March, 15),
		Adults:                2,
		Children:              2,
		Linens:                true,
		MidStayCleaning:       true,
		CancellationInsurance: true,
		DiscountKind:          model.DiscountKindPercent,
		DiscountValue:         7.5,
	}

	b := Calculate(stay, testSettings())

	sum := b.BasePriceCents - b.DiscountCents + b.LinensFeeCents +
		b.CleaningFeeCents + b.InsuranceFeeCents + b.TouristTaxCents
	if b.TotalCents != sum {
		t.Fatalf("TotalCents = %d, want sum of components %d", b.TotalCents, sum)
	}
}

func TestCalculate_NetBaseNotClamped(t *testing.T) {
	// Скидка больше базы: нетто-база уходит в минус и не обрезается.
	stay := Stay{
		StartDate:     date(2024, time.July, 1),
		EndDate:       date(2024, time.July, 2),
		Adults:        1,
		DiscountKind:  model.DiscountKindAmount,
		DiscountValue: 500,
	}

	b := Calculate(stay, testSettings())
	if b.NetBaseCents >= 0 {
		t.Fatalf("NetBaseCents = %d, want negative", b.NetBaseCents)
	}
}

func TestCalculate_RoundingHalfAwayFromZero(t *testing.T) {
	// Базис 1000.00 за 21 ночь -> 47.619... за ночь; 1 ночь округляется
	// до 47.62, а не усекается.
	cfg := testSettings()
	cfg.HighSeasonBasisCents = 100000

	stay := Stay{
		StartDate: date(2024, time.July, 1),
		EndDate:   date(2024, time.July, 2),
		Adults:    1,
	}

	b := Calculate(stay, cfg)
	if b.BasePriceCents != 4762 {
		t.Fatalf("BasePriceCents = %d, want 4762", b.BasePriceCents)
	}
}

func TestCalculate_PanicsOnEmptyStay(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for zero-night stay")
		}
	}()

	Calculate(Stay{
		StartDate: date(2024, time.July, 1),
		EndDate:   date(2024, time.July, 1),
		Adults:    1,
	}, testSettings())
}

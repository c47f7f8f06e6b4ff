package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/avrile/rental-system/internal/model"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-07-15")
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	want := time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseDate = %v, want %v", got, want)
	}

	if _, err := ParseDate("15/07/2024"); !errors.Is(err, ErrInvalidStay) {
		t.Fatalf("expected ErrInvalidStay for bad format, got %v", err)
	}
}

func TestValidateStay(t *testing.T) {
	start := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.July, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		adults   int
		children int
		kind     model.DiscountKind
		discount float64
		wantErr  bool
	}{
		{
			name:   "valid",
			start:  start,
			end:    end,
			adults: 2,
		},
		{
			name:    "end equals start",
			start:   start,
			end:     start,
			adults:  1,
			wantErr: true,
		},
		{
			name:    "end before start",
			start:   end,
			end:     start,
			adults:  1,
			wantErr: true,
		},
		{
			name:    "no adults",
			start:   start,
			end:     end,
			adults:  0,
			wantErr: true,
		},
		{
			name:     "negative children",
			start:    start,
			end:      end,
			adults:   1,
			children: -1,
			wantErr:  true,
		},
		{
			name:     "negative discount",
			start:    start,
			end:      end,
			adults:   1,
			kind:     model.DiscountKindAmount,
			discount: -5,
			wantErr:  true,
		},
		{
			name:     "unknown discount kind",
			start:    start,
			end:      end,
			adults:   1,
			kind:     model.DiscountKind("coupon"),
			discount: 5,
			wantErr:  true,
		},
		{
			name:     "empty discount kind is allowed",
			start:    start,
			end:      end,
			adults:   1,
			discount: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStay(tt.start, tt.end, tt.adults, tt.children, tt.kind, tt.discount)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStay) {
					t.Fatalf("expected ErrInvalidStay, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

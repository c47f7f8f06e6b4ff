// Package availability проверяет пересечения бронирований и считает занятость.
//
// Все интервалы полуоткрытые [start, end): день выезда не занят, поэтому
// новое проживание может начинаться в день выезда предыдущего.
package availability

import (
	"sort"
	"time"

	"github.com/avrile/rental-system/internal/model"
)

// ConflictKind классифицирует вид пересечения для сообщения оператору.
type ConflictKind string

const (
	// ConflictKindArrival — заезд попадает внутрь существующего проживания.
	ConflictKindArrival ConflictKind = "arrival_during_stay"
	// ConflictKindDeparture — выезд попадает внутрь существующего проживания.
	ConflictKindDeparture ConflictKind = "departure_during_stay"
	// ConflictKindEnclosed — существующее проживание целиком внутри запрошенного.
	ConflictKindEnclosed ConflictKind = "fully_overlapping_stay"
)

// Proposed описывает проверяемый интервал проживания.
type Proposed struct {
	PropertyID int64
	ClientID   int64
	StartDate  time.Time
	EndDate    time.Time
	// ExcludeBookingID исключает из проверки само редактируемое бронирование.
	ExcludeBookingID int64
}

// Conflict описывает пересечение с существующим бронированием.
type Conflict struct {
	BookingID    int64        `json:"booking_id"`
	Kind         ConflictKind `json:"kind"`
	OverlapStart time.Time    `json:"overlap_start"`
	OverlapEnd   time.Time    `json:"overlap_end"`
	// SameClient позволяет вызывающей стороне разрешить клиенту
	// продление собственного проживания; решение остаётся за ней.
	SameClient bool `json:"same_client"`
}

// FindConflicts возвращает пересечения запрошенного интервала с существующими
// бронированиями того же объекта. Отменённые и заблокированные интервалы
// доступность не ограничивают. Пустой список на входе даёт пустой результат.
func FindConflicts(p Proposed, existing []model.Booking) []Conflict {
	pStart := dateOnly(p.StartDate)
	pEnd := dateOnly(p.EndDate)

	var conflicts []Conflict
	for _, b := range existing {
		if b.PropertyID != p.PropertyID {
			continue
		}
		if b.Status != model.BookingStatusPending && b.Status != model.BookingStatusConfirmed {
			continue
		}
		if p.ExcludeBookingID != 0 && b.ID == p.ExcludeBookingID {
			continue
		}

		eStart := dateOnly(b.StartDate)
		eEnd := dateOnly(b.EndDate)

		// Общий критерий пересечения полуоткрытых интервалов.
		if !(eStart.Before(pEnd) && eEnd.After(pStart)) {
			continue
		}

		conflicts = append(conflicts, Conflict{
			BookingID:    b.ID,
			Kind:         classify(pStart, pEnd, eStart, eEnd),
			OverlapStart: maxDate(pStart, eStart),
			OverlapEnd:   minDate(pEnd, eEnd),
			SameClient:   b.ClientID == p.ClientID,
		})
	}

	return conflicts
}

// classify определяет вид пересечения. Порядок проверок повторяет порядок
// сообщений в интерфейсе: заезд внутри чужого проживания, выезд внутри,
// чужое проживание целиком внутри запрошенного.
func classify(pStart, pEnd, eStart, eEnd time.Time) ConflictKind {
	if !eStart.After(pStart) && eEnd.After(pStart) {
		return ConflictKindArrival
	}
	if eStart.Before(pEnd) && !eEnd.Before(pEnd) {
		return ConflictKindDeparture
	}
	return ConflictKindEnclosed
}

// OccupiedDays возвращает отсортированный список календарных дней периода,
// занятых хотя бы одним бронированием со статусом pending, confirmed или
// blocked. Интервал каждого бронирования обрезается по границам периода;
// день считается от обрезанного начала включительно до обрезанного конца
// исключительно. Период с началом позже конца даёт пустой результат.
func OccupiedDays(periodStart, periodEnd time.Time, bookings []model.Booking) []time.Time {
	ps := dateOnly(periodStart)
	pe := dateOnly(periodEnd)

	occupied := make(map[time.Time]struct{})
	for _, b := range bookings {
		switch b.Status {
		case model.BookingStatusPending, model.BookingStatusConfirmed, model.BookingStatusBlocked:
		default:
			continue
		}

		from := maxDate(dateOnly(b.StartDate), ps)
		to := minDate(dateOnly(b.EndDate), pe)

		for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
			occupied[d] = struct{}{}
		}
	}

	days := make([]time.Time, 0, len(occupied))
	for d := range occupied {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return days
}

// OccupancyRate возвращает долю занятых дней периода по всем объектам:
// |занятые дни| / (дней в периоде * число объектов). При пустом периоде
// или отсутствии объектов возвращает 0.
func OccupancyRate(occupiedDays int, periodStart, periodEnd time.Time, propertyCount int) float64 {
	days := int(dateOnly(periodEnd).Sub(dateOnly(periodStart)) / (24 * time.Hour))
	if days <= 0 || propertyCount <= 0 {
		return 0
	}
	return float64(occupiedDays) / float64(days*propertyCount)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

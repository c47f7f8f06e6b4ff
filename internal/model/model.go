// Package model содержит доменные сущности сервиса аренды недвижимости.
package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus описывает статус бронирования.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	// BookingStatusBlocked — интервал, занятый внешним каналом продаж,
	// а не бронированием клиента.
	BookingStatusBlocked BookingStatus = "blocked"
)

// DiscountKind описывает способ применения скидки к базовой стоимости.
type DiscountKind string

const (
	DiscountKindPercent DiscountKind = "percent"
	DiscountKindAmount  DiscountKind = "amount"
	// DiscountKindNone — скидка без указанного вида трактуется как фиксированная сумма.
	DiscountKindNone DiscountKind = ""
)

// Booking описывает бронирование: проживание [StartDate, EndDate),
// состав гостей, выбранные опции и сохранённую детализацию стоимости в центах.
type Booking struct {
	ID         int64
	Reference  uuid.UUID
	PropertyID int64
	ClientID   int64
	StartDate  time.Time
	EndDate    time.Time
	Status     BookingStatus

	Adults   int
	Children int

	Linens                bool
	MidStayCleaning       bool
	CancellationInsurance bool

	DiscountKind  DiscountKind
	DiscountValue float64

	Nights            int
	BasePriceCents    int64
	DiscountCents     int64
	LinensFeeCents    int64
	CleaningFeeCents  int64
	InsuranceFeeCents int64
	TouristTaxCents   int64
	TotalPriceCents   int64

	CreatedAt time.Time
}

// Property описывает объект недвижимости.
type Property struct {
	ID   int64
	Name string
	// ChannelRef — идентификатор объекта во внешнем канале продаж;
	// пустая строка означает, что календарь объекта не синхронизируется.
	ChannelRef string
}

// Client представляет клиента агентства.
type Client struct {
	ID    int64
	Name  string
	Email string
}

// Invoice описывает выставленный счёт с присвоенным номером.
type Invoice struct {
	ID          int64
	BookingID   int64
	Number      string
	AmountCents int64
	CreatedAt   time.Time
	// DeletedAt — отметка мягкого удаления; номер счёта при удалении не освобождается.
	DeletedAt *time.Time
}

// PricingSettings содержит тарифные параметры организации:
// базисные цены сезонов, стоимость опций и ставки в центах.
type PricingSettings struct {
	LowSeasonBasisCents  int64
	HighSeasonBasisCents int64
	LowSeasonMonths      []time.Month
	LinensFeeCents       int64
	CleaningFeeCents     int64
	InsurancePercent     float64
	TouristTaxCents      int64
}

// OccupancyReport содержит результат расчёта занятости за период.
type OccupancyReport struct {
	From          time.Time   `json:"from"`
	To            time.Time   `json:"to"`
	OccupiedDays  []time.Time `json:"occupied_days"`
	PropertyCount int         `json:"property_count"`
	Rate          float64     `json:"rate"`
}

// Package service реализует бизнес-логику сервиса аренды недвижимости.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avrile/rental-system/internal/availability"
	"github.com/avrile/rental-system/internal/channel"
	"github.com/avrile/rental-system/internal/model"
	"github.com/avrile/rental-system/internal/pricing"
	"github.com/avrile/rental-system/internal/repository"
	"github.com/avrile/rental-system/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetPricingSettings(ctx context.Context) (*model.PricingSettings, error)
	CreateBooking(ctx context.Context, b *model.Booking) (int64, error)
	UpdateBookingStay(ctx context.Context, b *model.Booking) error
	GetBookingByID(ctx context.Context, id int64) (*model.Booking, error)
	ListBookingIntervals(ctx context.Context, propertyID int64) ([]model.Booking, error)
	ListBookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	CountProperties(ctx context.Context) (int, error)
	GetPropertiesForSync(ctx context.Context) ([]model.Property, error)
	ReplaceChannelBlocks(ctx context.Context, propertyID int64, ranges []repository.BlockRange) error
	CreateInvoice(ctx context.Context, bookingID int64, prefix string, amountCents int64) (*model.Invoice, error)
	DeleteInvoice(ctx context.Context, id int64) error
	ListInvoices(ctx context.Context) ([]model.Invoice, error)
}

// ConflictError возвращается при пересечении запрошенного проживания
// с существующими бронированиями.
type ConflictError struct {
	Conflicts []availability.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stay conflicts with %d existing booking(s)", len(e.Conflicts))
}

// StayRequest описывает проверенный запрос на проживание.
type StayRequest struct {
	PropertyID int64
	ClientID   int64
	StartDate  time.Time
	EndDate    time.Time

	Adults   int
	Children int

	Linens                bool
	MidStayCleaning       bool
	CancellationInsurance bool

	DiscountKind  model.DiscountKind
	DiscountValue float64
}

// Service содержит бизнес-логику сервиса аренды недвижимости.
type Service struct {
	repo          Repository
	channelClient *channel.Client
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом канала продаж.
func NewService(repo Repository, channelClient *channel.Client) *Service {
	return &Service{
		repo:          repo,
		channelClient: channelClient,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) calculate(ctx context.Context, req StayRequest) (pricing.Breakdown, error) {
	if err := validation.ValidateStay(req.StartDate, req.EndDate, req.Adults, req.Children, req.DiscountKind, req.DiscountValue); err != nil {
		return pricing.Breakdown{}, err
	}

	settings, err := s.repo.GetPricingSettings(ctx)
	if err != nil {
		return pricing.Breakdown{}, err
	}

	return pricing.Calculate(pricing.Stay{
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		Adults:                req.Adults,
		Children:              req.Children,
		Linens:                req.Linens,
		MidStayCleaning:       req.MidStayCleaning,
		CancellationInsurance: req.CancellationInsurance,
		DiscountKind:          req.DiscountKind,
		DiscountValue:         req.DiscountValue,
	}, *settings), nil
}

// Quote рассчитывает стоимость проживания без сохранения бронирования.
func (s *Service) Quote(ctx context.Context, req StayRequest) (*pricing.Breakdown, error) {
	b, err := s.calculate(ctx, req)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) checkConflicts(ctx context.Context, req StayRequest, excludeBookingID int64) error {
	existing, err := s.repo.ListBookingIntervals(ctx, req.PropertyID)
	if err != nil {
		return err
	}

	conflicts := availability.FindConflicts(availability.Proposed{
		PropertyID:       req.PropertyID,
		ClientID:         req.ClientID,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		ExcludeBookingID: excludeBookingID,
	}, existing)
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}

	return nil
}

// CreateBooking проверяет доступность, рассчитывает стоимость и сохраняет бронирование.
func (s *Service) CreateBooking(ctx context.Context, req StayRequest) (*model.Booking, error) {
	breakdown, err := s.calculate(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.checkConflicts(ctx, req, 0); err != nil {
		return nil, err
	}

	booking := &model.Booking{
		Reference:             uuid.New(),
		PropertyID:            req.PropertyID,
		ClientID:              req.ClientID,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		Status:                model.BookingStatusPending,
		Adults:                req.Adults,
		Children:              req.Children,
		Linens:                req.Linens,
		MidStayCleaning:       req.MidStayCleaning,
		CancellationInsurance: req.CancellationInsurance,
		DiscountKind:          req.DiscountKind,
		DiscountValue:         req.DiscountValue,
	}
	applyBreakdown(booking, breakdown)

	id, err := s.repo.CreateBooking(ctx, booking)
	if err != nil {
		return nil, err
	}
	booking.ID = id

	return booking, nil
}

// UpdateBookingStay перепроверяет доступность и пересчитывает стоимость
// редактируемого бронирования; само бронирование из проверки исключается.
func (s *Service) UpdateBookingStay(ctx context.Context, bookingID int64, req StayRequest) (*model.Booking, error) {
	booking, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	req.PropertyID = booking.PropertyID
	req.ClientID = booking.ClientID

	breakdown, err := s.calculate(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.checkConflicts(ctx, req, bookingID); err != nil {
		return nil, err
	}

	booking.StartDate = req.StartDate
	booking.EndDate = req.EndDate
	booking.Adults = req.Adults
	booking.Children = req.Children
	booking.Linens = req.Linens
	booking.MidStayCleaning = req.MidStayCleaning
	booking.CancellationInsurance = req.CancellationInsurance
	booking.DiscountKind = req.DiscountKind
	booking.DiscountValue = req.DiscountValue
	applyBreakdown(booking, breakdown)

	if err := s.repo.UpdateBookingStay(ctx, booking); err != nil {
		return nil, err
	}

	return booking, nil
}

func applyBreakdown(b *model.Booking, p pricing.Breakdown) {
	b.Nights = p.Nights
	b.BasePriceCents = p.BasePriceCents
	b.DiscountCents = p.DiscountCents
	b.LinensFeeCents = p.LinensFeeCents
	b.CleaningFeeCents = p.CleaningFeeCents
	b.InsuranceFeeCents = p.InsuranceFeeCents
	b.TouristTaxCents = p.TouristTaxCents
	b.TotalPriceCents = p.TotalCents
}

// ListBookings возвращает бронирования объекта.
func (s *Service) ListBookings(ctx context.Context, propertyID int64) ([]model.Booking, error) {
	return s.repo.ListBookingIntervals(ctx, propertyID)
}

// OccupancyReport считает занятые дни периода и долю занятости по всем объектам.
func (s *Service) OccupancyReport(ctx context.Context, from, to time.Time) (*model.OccupancyReport, error) {
	report := &model.OccupancyReport{
		From:         from,
		To:           to,
		OccupiedDays: []time.Time{},
	}

	// Перевёрнутый период — пустой отчёт, а не ошибка.
	if !from.Before(to) {
		return report, nil
	}

	bookings, err := s.repo.ListBookingsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	propertyCount, err := s.repo.CountProperties(ctx)
	if err != nil {
		return nil, err
	}

	report.OccupiedDays = availability.OccupiedDays(from, to, bookings)
	report.PropertyCount = propertyCount
	report.Rate = availability.OccupancyRate(len(report.OccupiedDays), from, to, propertyCount)

	return report, nil
}

// CreateInvoice выставляет счёт на полную стоимость бронирования.
// Номер присваивается в транзакции репозитория; повторы при конфликте
// нумерации выполняются там же.
func (s *Service) CreateInvoice(ctx context.Context, bookingID int64, prefix string) (*model.Invoice, error) {
	booking, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	return s.repo.CreateInvoice(ctx, bookingID, prefix, booking.TotalPriceCents)
}

// DeleteInvoice мягко удаляет счёт; его номер повторно не выдаётся.
func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	return s.repo.DeleteInvoice(ctx, id)
}

// ListInvoices возвращает действующие счета.
func (s *Service) ListInvoices(ctx context.Context) ([]model.Invoice, error) {
	return s.repo.ListInvoices(ctx)
}

// StartCalendarSync запускает фоновую синхронизацию календарей с внешним каналом продаж.
func (s *Service) StartCalendarSync(ctx context.Context) {
	if s.channelClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.syncCalendars(ctx)
			}
		}
	}()
}

func (s *Service) syncCalendars(ctx context.Context) {
	properties, err := s.repo.GetPropertiesForSync(ctx)
	if err != nil {
		return
	}

	for _, p := range properties {
		cal, statusCode, retryAfter, err := s.channelClient.GetCalendar(ctx, p.ChannelRef)
		if err != nil {
			continue
		}

		if statusCode == 429 {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if cal == nil {
			continue
		}

		ranges := make([]repository.BlockRange, 0, len(cal.Ranges))
		for _, r := range cal.Ranges {
			if !r.Start.Before(r.End) {
				continue
			}
			ranges = append(ranges, repository.BlockRange{Start: r.Start, End: r.End})
		}

		_ = s.repo.ReplaceChannelBlocks(ctx, p.ID, ranges)
	}
}

// IsNotFound сообщает, является ли ошибка отсутствием сущности в хранилище.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrBookingNotFound) ||
		errors.Is(err, repository.ErrInvoiceNotFound) ||
		errors.Is(err, repository.ErrSettingsNotFound)
}

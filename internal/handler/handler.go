// Package handler содержит HTTP-обработчики API сервиса аренды недвижимости.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/avrile/rental-system/internal/model"
	"github.com/avrile/rental-system/internal/pricing"
	"github.com/avrile/rental-system/internal/service"
	"github.com/avrile/rental-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Quote(ctx context.Context, req service.StayRequest) (*pricing.Breakdown, error)
	CreateBooking(ctx context.Context, req service.StayRequest) (*model.Booking, error)
	UpdateBookingStay(ctx context.Context, bookingID int64, req service.StayRequest) (*model.Booking, error)
	ListBookings(ctx context.Context, propertyID int64) ([]model.Booking, error)
	OccupancyReport(ctx context.Context, from, to time.Time) (*model.OccupancyReport, error)
	CreateInvoice(ctx context.Context, bookingID int64, prefix string) (*model.Invoice, error)
	DeleteInvoice(ctx context.Context, id int64) error
	ListInvoices(ctx context.Context) ([]model.Invoice, error)
}

// Handler реализует HTTP-обработчики API сервиса аренды недвижимости.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

const dateLayout = "2006-01-02"

func euros(cents int64) float64 {
	return float64(cents) / 100
}

type stayRequest struct {
	PropertyID            int64   `json:"property_id"`
	ClientID              int64   `json:"client_id"`
	StartDate             string  `json:"start_date"`
	EndDate               string  `json:"end_date"`
	Adults                int     `json:"adults"`
	Children              int     `json:"children"`
	Linens                bool    `json:"linens"`
	MidStayCleaning       bool    `json:"mid_stay_cleaning"`
	CancellationInsurance bool    `json:"cancellation_insurance"`
	DiscountKind          string  `json:"discount_kind"`
	DiscountValue         float64 `json:"discount_value"`
}

func (r stayRequest) toService() (service.StayRequest, error) {
	start, err := validation.ParseDate(r.StartDate)
	if err != nil {
		return service.StayRequest{}, err
	}
	end, err := validation.ParseDate(r.EndDate)
	if err != nil {
		return service.StayRequest{}, err
	}

	return service.StayRequest{
		PropertyID:            r.PropertyID,
		ClientID:              r.ClientID,
		StartDate:             start,
		EndDate:               end,
		Adults:                r.Adults,
		Children:              r.Children,
		Linens:                r.Linens,
		MidStayCleaning:       r.MidStayCleaning,
		CancellationInsurance: r.CancellationInsurance,
		DiscountKind:          model.DiscountKind(r.DiscountKind),
		DiscountValue:         r.DiscountValue,
	}, nil
}

type breakdownResponse struct {
	Nights       int     `json:"nights"`
	BasePrice    float64 `json:"base_price"`
	Discount     float64 `json:"discount"`
	LinensFee    float64 `json:"linens_fee"`
	CleaningFee  float64 `json:"cleaning_fee"`
	InsuranceFee float64 `json:"insurance_fee"`
	TouristTax   float64 `json:"tourist_tax"`
	TotalPrice   float64 `json:"total_price"`
}

func newBreakdownResponse(b pricing.Breakdown) breakdownResponse {
	return breakdownResponse{
		Nights:       b.Nights,
		BasePrice:    euros(b.BasePriceCents),
		Discount:     euros(b.DiscountCents),
		LinensFee:    euros(b.LinensFeeCents),
		CleaningFee:  euros(b.CleaningFeeCents),
		InsuranceFee: euros(b.InsuranceFeeCents),
		TouristTax:   euros(b.TouristTaxCents),
		TotalPrice:   euros(b.TotalCents),
	}
}

type bookingResponse struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Property  int64  `json:"property_id"`
	Client    int64  `json:"client_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
	breakdownResponse
}

func newBookingResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:        b.ID,
		Reference: b.Reference.String(),
		Property:  b.PropertyID,
		Client:    b.ClientID,
		StartDate: b.StartDate.Format(dateLayout),
		EndDate:   b.EndDate.Format(dateLayout),
		Status:    string(b.Status),
		breakdownResponse: breakdownResponse{
			Nights:       b.Nights,
			BasePrice:    euros(b.BasePriceCents),
			Discount:     euros(b.DiscountCents),
			LinensFee:    euros(b.LinensFeeCents),
			CleaningFee:  euros(b.CleaningFeeCents),
			InsuranceFee: euros(b.InsuranceFeeCents),
			TouristTax:   euros(b.TouristTaxCents),
			TotalPrice:   euros(b.TotalPriceCents),
		},
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// writeError переводит ошибку бизнес-логики в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	var conflictErr *service.ConflictError
	switch {
	case errors.Is(err, validation.ErrInvalidStay):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &conflictErr):
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":     conflictErr.Error(),
			"conflicts": conflictErr.Conflicts,
		})
	case service.IsNotFound(err):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Quote рассчитывает стоимость проживания без создания бронирования.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req stayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	stay, err := req.toService()
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	breakdown, err := h.service.Quote(r.Context(), stay)
	if err != nil {
		h.writeError(w, err, "quote")
		return
	}

	h.writeJSON(w, http.StatusOK, newBreakdownResponse(*breakdown))
}

// CreateBooking создаёт бронирование после проверки доступности.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req stayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	stay, err := req.toService()
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), stay)
	if err != nil {
		h.writeError(w, err, "create booking")
		return
	}

	h.writeJSON(w, http.StatusCreated, newBookingResponse(booking))
}

// UpdateBookingStay перепроверяет и пересчитывает редактируемое бронирование.
func (h *Handler) UpdateBookingStay(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req stayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	stay, err := req.toService()
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	booking, err := h.service.UpdateBookingStay(r.Context(), id, stay)
	if err != nil {
		h.writeError(w, err, "update booking")
		return
	}

	h.writeJSON(w, http.StatusOK, newBookingResponse(booking))
}

// ListBookings возвращает бронирования объекта недвижимости.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	propertyID, err := strconv.ParseInt(r.URL.Query().Get("property_id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), propertyID)
	if err != nil {
		h.writeError(w, err, "list bookings")
		return
	}

	if len(bookings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, newBookingResponse(&bookings[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type occupancyResponse struct {
	From          string   `json:"from"`
	To            string   `json:"to"`
	OccupiedDays  []string `json:"occupied_days"`
	PropertyCount int      `json:"property_count"`
	Rate          float64  `json:"rate"`
}

// Occupancy возвращает занятые дни и долю занятости за период.
func (h *Handler) Occupancy(w http.ResponseWriter, r *http.Request) {
	from, err := validation.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := validation.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.OccupancyReport(r.Context(), from, to)
	if err != nil {
		h.writeError(w, err, "occupancy report")
		return
	}

	resp := occupancyResponse{
		From:          report.From.Format(dateLayout),
		To:            report.To.Format(dateLayout),
		OccupiedDays:  make([]string, 0, len(report.OccupiedDays)),
		PropertyCount: report.PropertyCount,
		Rate:          report.Rate,
	}
	for _, d := range report.OccupiedDays {
		resp.OccupiedDays = append(resp.OccupiedDays, d.Format(dateLayout))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type createInvoiceRequest struct {
	BookingID int64  `json:"booking_id"`
	Prefix    string `json:"prefix"`
}

type invoiceResponse struct {
	ID        int64   `json:"id"`
	BookingID int64   `json:"booking_id"`
	Number    string  `json:"number"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

func newInvoiceResponse(inv *model.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:        inv.ID,
		BookingID: inv.BookingID,
		Number:    inv.Number,
		Amount:    euros(inv.AmountCents),
		CreatedAt: inv.CreatedAt.Format(time.RFC3339),
	}
}

// CreateInvoice выставляет счёт по бронированию и присваивает ему номер.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.BookingID == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	inv, err := h.service.CreateInvoice(r.Context(), req.BookingID, req.Prefix)
	if err != nil {
		h.writeError(w, err, "create invoice")
		return
	}

	h.writeJSON(w, http.StatusCreated, newInvoiceResponse(inv))
}

// ListInvoices возвращает действующие счета.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context())
	if err != nil {
		h.writeError(w, err, "list invoices")
		return
	}

	if len(invoices) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		resp = append(resp, newInvoiceResponse(&invoices[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// DeleteInvoice мягко удаляет счёт; присвоенный номер не освобождается.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteInvoice(r.Context(), id); err != nil {
		h.writeError(w, err, "delete invoice")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

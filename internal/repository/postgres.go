// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/avrile/rental-system/internal/model"
	"github.com/avrile/rental-system/internal/sequence"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrBookingNotFound возвращается, если бронирование не найдено.
var (
	ErrBookingNotFound = errors.New("booking not found")
	// ErrInvoiceNotFound возвращается, если счёт не найден или уже удалён.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrSettingsNotFound возвращается при отсутствии тарифных параметров организации.
	ErrSettingsNotFound = errors.New("pricing settings not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetPricingSettings возвращает тарифные параметры организации.
func (r *PostgresRepository) GetPricingSettings(ctx context.Context) (*model.PricingSettings, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT low_season_basis, high_season_basis, low_season_months,
		        linens_fee, cleaning_fee, insurance_percent, tourist_tax
		 FROM pricing_settings
		 ORDER BY id
		 LIMIT 1`,
	)

	var s model.PricingSettings
	var months []int32
	err := row.Scan(&s.LowSeasonBasisCents, &s.HighSeasonBasisCents, &months,
		&s.LinensFeeCents, &s.CleaningFeeCents, &s.InsurancePercent, &s.TouristTaxCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get pricing settings: %w", err)
	}

	for _, m := range months {
		s.LowSeasonMonths = append(s.LowSeasonMonths, time.Month(m))
	}

	return &s, nil
}

const bookingColumns = `id, reference, property_id, COALESCE(client_id, 0), start_date, end_date, status,
	adults, children, linens, mid_stay_cleaning, cancellation_insurance,
	discount_kind, discount_value, nights, base_price, discount, linens_fee,
	cleaning_fee, insurance_fee, tourist_tax, total_price, created_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.Reference, &b.PropertyID, &b.ClientID, &b.StartDate, &b.EndDate, &b.Status,
		&b.Adults, &b.Children, &b.Linens, &b.MidStayCleaning, &b.CancellationInsurance,
		&b.DiscountKind, &b.DiscountValue, &b.Nights, &b.BasePriceCents, &b.DiscountCents, &b.LinensFeeCents,
		&b.CleaningFeeCents, &b.InsuranceFeeCents, &b.TouristTaxCents, &b.TotalPriceCents, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking сохраняет бронирование с рассчитанной стоимостью и возвращает его идентификатор.
func (r *PostgresRepository) CreateBooking(ctx context.Context, b *model.Booking) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO bookings (reference, property_id, client_id, start_date, end_date, status,
		        adults, children, linens, mid_stay_cleaning, cancellation_insurance,
		        discount_kind, discount_value, nights, base_price, discount, linens_fee,
		        cleaning_fee, insurance_fee, tourist_tax, total_price)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 RETURNING id`,
		b.Reference, b.PropertyID, b.ClientID, b.StartDate, b.EndDate, string(b.Status),
		b.Adults, b.Children, b.Linens, b.MidStayCleaning, b.CancellationInsurance,
		string(b.DiscountKind), b.DiscountValue, b.Nights, b.BasePriceCents, b.DiscountCents, b.LinensFeeCents,
		b.CleaningFeeCents, b.InsuranceFeeCents, b.TouristTaxCents, b.TotalPriceCents,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert booking: %w", err)
	}
	return id, nil
}

// UpdateBookingStay обновляет даты, состав гостей, опции и пересчитанную стоимость бронирования.
func (r *PostgresRepository) UpdateBookingStay(ctx context.Context, b *model.Booking) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE bookings
		 SET start_date = $2, end_date = $3, adults = $4, children = $5,
		     linens = $6, mid_stay_cleaning = $7, cancellation_insurance = $8,
		     discount_kind = $9, discount_value = $10, nights = $11, base_price = $12,
		     discount = $13, linens_fee = $14, cleaning_fee = $15, insurance_fee = $16,
		     tourist_tax = $17, total_price = $18
		 WHERE id = $1`,
		b.ID, b.StartDate, b.EndDate, b.Adults, b.Children,
		b.Linens, b.MidStayCleaning, b.CancellationInsurance,
		string(b.DiscountKind), b.DiscountValue, b.Nights, b.BasePriceCents,
		b.DiscountCents, b.LinensFeeCents, b.CleaningFeeCents, b.InsuranceFeeCents,
		b.TouristTaxCents, b.TotalPriceCents,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// GetBookingByID возвращает бронирование по идентификатору.
func (r *PostgresRepository) GetBookingByID(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListBookingIntervals возвращает бронирования объекта для проверки пересечений.
func (r *PostgresRepository) ListBookingIntervals(ctx context.Context, propertyID int64) ([]model.Booking, error) {
	return r.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE property_id = $1 ORDER BY start_date`,
		propertyID,
	)
}

// ListBookingsBetween возвращает бронирования, пересекающие период [from, to).
func (r *PostgresRepository) ListBookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	return r.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE start_date < $2 AND end_date > $1 ORDER BY start_date`,
		from, to,
	)
}

func (r *PostgresRepository) listBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	var res []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		res = append(res, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CountProperties возвращает число объектов недвижимости.
func (r *PostgresRepository) CountProperties(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}
	return n, nil
}

// GetPropertiesForSync возвращает объекты, подключённые к внешнему каналу продаж.
func (r *PostgresRepository) GetPropertiesForSync(ctx context.Context) ([]model.Property, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, channel_ref FROM properties WHERE channel_ref <> '' ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select properties: %w", err)
	}
	defer rows.Close()

	var res []model.Property
	for rows.Next() {
		var p model.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.ChannelRef); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// BlockRange описывает занятый внешним каналом интервал [Start, End).
type BlockRange struct {
	Start time.Time
	End   time.Time
}

// ReplaceChannelBlocks заменяет заблокированные интервалы объекта данными
// из календарного фида в одной транзакции. Временные сбои БД ретраятся.
func (r *PostgresRepository) ReplaceChannelBlocks(ctx context.Context, propertyID int64, ranges []BlockRange) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`DELETE FROM bookings WHERE property_id = $1 AND status = $2`,
			propertyID, string(model.BookingStatusBlocked),
		)
		if err != nil {
			return fmt.Errorf("delete channel blocks: %w", err)
		}

		for _, br := range ranges {
			_, err = tx.Exec(ctx,
				`INSERT INTO bookings (reference, property_id, start_date, end_date, status, adults)
				 VALUES (gen_random_uuid(), $1, $2, $3, $4, 0)`,
				propertyID, br.Start, br.End, string(model.BookingStatusBlocked),
			)
			if err != nil {
				return fmt.Errorf("insert channel block: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// CreateInvoice присваивает счёту следующий номер дня и сохраняет его.
//
// Подсчёт созданных за день счетов и вставка выполняются в одной транзакции
// под блокировкой строки (день, префикс): две конкурентные транзакции не
// могут прочитать одно и то же значение счётчика. Уникальный индекс по
// номеру — страховка; при его срабатывании или сбое сериализации вся
// операция подсчёта и вставки повторяется ограниченное число раз.
//
// Счётчик считает созданные, а не существующие счета: мягко удалённые
// строки учитываются, поэтому удаление счёта оставляет разрыв в нумерации,
// но никогда не приводит к повторной выдаче номера.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, bookingID int64, prefix string, amountCents int64) (*model.Invoice, error) {
	var inv *model.Invoice

	backoff := retry.WithMaxRetries(3, retry.NewConstant(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		created, err := r.createInvoiceTx(ctx, bookingID, prefix, amountCents)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) &&
				(pgErr.Code == pgerrcode.UniqueViolation ||
					pgErr.Code == pgerrcode.SerializationFailure ||
					pgErr.Code == pgerrcode.DeadlockDetected) {
				return retry.RetryableError(err)
			}
			return err
		}
		inv = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return inv, nil
}

func (r *PostgresRepository) createInvoiceTx(ctx context.Context, bookingID int64, prefix string, amountCents int64) (*model.Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Блокируем область нумерации (день, префикс) до подсчёта.
	_, err = tx.Exec(ctx,
		`INSERT INTO invoice_scopes (day, prefix) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		day, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure invoice scope: %w", err)
	}

	var dummy int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM invoice_scopes WHERE day = $1 AND prefix = $2 FOR UPDATE`,
		day, prefix,
	).Scan(&dummy)
	if err != nil {
		return nil, fmt.Errorf("lock invoice scope: %w", err)
	}

	// Удалённые счета намеренно входят в подсчёт.
	var createdToday int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices
		 WHERE prefix = $1 AND created_at >= $2 AND created_at < $3`,
		prefix, day, day.AddDate(0, 0, 1),
	).Scan(&createdToday)
	if err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}

	number := sequence.Next(day, prefix, createdToday)

	var inv model.Invoice
	err = tx.QueryRow(ctx,
		`INSERT INTO invoices (booking_id, prefix, number, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, booking_id, number, amount, created_at`,
		bookingID, prefix, number, amountCents, now,
	).Scan(&inv.ID, &inv.BookingID, &inv.Number, &inv.AmountCents, &inv.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, fmt.Errorf("%w: booking %d", ErrBookingNotFound, bookingID)
		}
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &inv, nil
}

// DeleteInvoice выполняет мягкое удаление счёта. Номер не освобождается.
func (r *PostgresRepository) DeleteInvoice(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// ListInvoices возвращает неудалённые счета, новые первыми.
func (r *PostgresRepository) ListInvoices(ctx context.Context) ([]model.Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, booking_id, number, amount, created_at
		 FROM invoices
		 WHERE deleted_at IS NULL
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var res []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		if err := rows.Scan(&inv.ID, &inv.BookingID, &inv.Number, &inv.AmountCents, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		res = append(res, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

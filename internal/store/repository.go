package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/model"
)

const (
	orderFields = "id, order_number, customer_name, items, total_price, status, created_at, updated_at"

	uniqueViolation = "23505"
	pingTimeout     = 5 * time.Second
)

//go:embed migrations/*.sql
var migrations embed.FS

type IRepository interface {
	Ping(context.Context) error
	CreateOrder(context.Context, model.Order) (model.Order, error)
	GetOrders(context.Context, model.Status) ([]model.Order, error)
	GetOrderByNumber(context.Context, string) (model.Order, error)
	UpdateOrderStatus(context.Context, StatusUpdate) (model.Order, error)
}

// StatusUpdate describes one status write. From restricts the statuses the
// order may currently be in; nil accepts any. The write is a single
// statement, so concurrent updates of one order resolve as last writer wins.
type StatusUpdate struct {
	Number string
	Status model.Status
	From   []model.Status
	At     time.Time
}

type Repository struct {
	Conn   *sql.DB
	Logger *zap.SugaredLogger
}

// Connect opens the pool and pings it until it answers, pausing backoff
// between attempts. Migrations are applied once connected.
func Connect(ctx context.Context, connString string, attempts int, backoff time.Duration, logger *zap.SugaredLogger) (*sql.DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if attempts < 1 {
		attempts = 1
	}
	attempt := 0
	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			logger.Warnf("Database connection failed, retrying in %s... (%d/%d): %s", backoff, attempt, attempts, err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
	}

	if err = migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Database initialized successfully")
	return db, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func NewRepository(conn *sql.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{Conn: conn, Logger: logger}
}

func (r Repository) Ping(ctx context.Context) error {
	return r.Conn.PingContext(ctx)
}

func (r Repository) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return model.Order{}, err
	}

	row := r.Conn.QueryRowContext(ctx, "INSERT INTO orders (order_number, customer_name, items, total_price, status, created_at, updated_at) "+
		"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING "+orderFields,
		o.Number, o.CustomerName, string(items), o.TotalPrice, o.Status, o.CreatedAt)

	created, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Order{}, errNumberTaken
		}
		return model.Order{}, err
	}
	return created, nil
}

func (r Repository) GetOrders(ctx context.Context, status model.Status) ([]model.Order, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = r.Conn.QueryContext(ctx, "SELECT "+orderFields+" FROM orders ORDER BY created_at DESC, id DESC")
	} else {
		rows, err = r.Conn.QueryContext(ctx, "SELECT "+orderFields+" FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

func (r Repository) GetOrderByNumber(ctx context.Context, number string) (model.Order, error) {
	row := r.Conn.QueryRowContext(ctx, "SELECT "+orderFields+" FROM orders WHERE order_number = $1", number)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// UpdateOrderStatus never moves updated_at before created_at, whatever the
// caller's clock says.
func (r Repository) UpdateOrderStatus(ctx context.Context, u StatusUpdate) (model.Order, error) {
	query := "UPDATE orders SET status = $1, updated_at = GREATEST($2, created_at) WHERE order_number = $3"
	args := []interface{}{u.Status, u.At, u.Number}
	if u.From != nil {
		query += " AND status = ANY(string_to_array($4, ','))"
		args = append(args, joinStatuses(u.From))
	}

	row := r.Conn.QueryRowContext(ctx, query+" RETURNING "+orderFields, args...)
	o, err := scanOrder(row)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, err
	}
	if u.From == nil {
		return model.Order{}, ErrOrderNotFound
	}

	var exist bool
	err = r.Conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)", u.Number).Scan(&exist)
	if err != nil {
		return model.Order{}, err
	}
	if !exist {
		return model.Order{}, ErrOrderNotFound
	}
	return model.Order{}, ErrInvalidTransition
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (model.Order, error) {
	var (
		o     model.Order
		items []byte
	)
	err := s.Scan(&o.ID, &o.Number, &o.CustomerName, &items, &o.TotalPrice, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return model.Order{}, err
	}

	if err = json.Unmarshal(items, &o.Items); err != nil {
		return model.Order{}, fmt.Errorf("decode items of %s: %w", o.Number, err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func joinStatuses(ss []model.Status) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

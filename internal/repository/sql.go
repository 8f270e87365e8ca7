package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"camarero/internal/domain"
)

// Поддерживаемые хранилища
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// dialect различия SQL между SQLite и Postgres
type dialect struct {
	name      string
	autoID    string
	forUpdate string
	numbered  bool // $1, $2 вместо ?
}

var (
	sqliteDialect = dialect{
		name:   BackendSQLite,
		autoID: "INTEGER PRIMARY KEY AUTOINCREMENT",
	}
	postgresDialect = dialect{
		name:      BackendPostgres,
		autoID:    "BIGSERIAL PRIMARY KEY",
		forUpdate: " FOR UPDATE",
		numbered:  true,
	}
)

// rebind переписывает ? в плейсхолдеры диалекта
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func scanNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTxKey struct{}

// SQLStore реализация Store поверх database/sql (SQLite или Postgres)
type SQLStore struct {
	db *sql.DB
	d  dialect
}

var _ Store = (*SQLStore)(nil)

// OpenSQL открывает базу и применяет миграции. backend: sqlite | postgres.
func OpenSQL(ctx context.Context, backend, dsn string) (*SQLStore, error) {
	var (
		db  *sql.DB
		d   dialect
		err error
	)
	switch backend {
	case BackendSQLite:
		d = sqliteDialect
		db, err = openSQLite(dsn)
	case BackendPostgres:
		d = postgresDialect
		db, err = sql.Open(PostgresDriverName, dsn)
		if err == nil {
			err = db.PingContext(ctx)
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &SQLStore{db: db, d: d}, nil
}

// openSQLite opens a SQLite database with appropriate settings
func openSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// единственный писатель: транзакция пересчёта заказа сериализует всех остальных
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// Backend sqlite | postgres
func (s *SQLStore) Backend() string { return s.d.name }

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// SchemaVersion текущая версия схемы
func (s *SQLStore) SchemaVersion(ctx context.Context) (string, error) {
	v, err := schemaVersion(ctx, s.db)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (s *SQLStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTransaction выполняет fn в транзакции; вложенные вызовы используют внешнюю
func (s *SQLStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// exists различает отсутствие строки и проигранную условную запись
func (s *SQLStore) exists(ctx context.Context, table, id string) (bool, error) {
	var one int
	err := s.q(ctx).QueryRowContext(ctx, s.d.rebind("SELECT 1 FROM "+table+" WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Items

const itemColumns = `id, order_id, status, kds_destination, quantity, item_name_snapshot, unit_price, notes,
created_at, prepared_at, served_at, served_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (*domain.OrderItem, error) {
	var (
		it                   domain.OrderItem
		status               string
		createdAt            string
		preparedAt, servedAt sql.NullString
	)
	if err := r.Scan(&it.ID, &it.OrderID, &status, &it.KDSDestination, &it.Quantity, &it.ItemNameSnapshot,
		&it.UnitPrice, &it.Notes, &createdAt, &preparedAt, &servedAt, &it.ServedBy); err != nil {
		return nil, err
	}
	it.Status = domain.ItemStatus(status)
	var err error
	if it.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if it.PreparedAt, err = scanNullTime(preparedAt); err != nil {
		return nil, err
	}
	if it.ServedAt, err = scanNullTime(servedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *SQLStore) GetItem(ctx context.Context, id string) (*domain.OrderItem, error) {
	row := s.q(ctx).QueryRowContext(ctx, s.d.rebind("SELECT "+itemColumns+" FROM order_items WHERE id = ?"), id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

func (s *SQLStore) UpdateItemStatus(ctx context.Context, u ItemStatusUpdate) (*domain.OrderItem, error) {
	at := formatTime(u.At)
	set := "status = ?"
	args := []any{string(u.Next)}
	switch u.Next {
	case domain.ItemStatusReady:
		set += ", prepared_at = COALESCE(prepared_at, ?)"
		args = append(args, at)
	case domain.ItemStatusServed:
		set += ", served_at = COALESCE(served_at, ?), served_by = ?"
		args = append(args, at, u.By)
	}
	args = append(args, u.ItemID, string(u.Expected))

	res, err := s.q(ctx).ExecContext(ctx, s.d.rebind("UPDATE order_items SET "+set+" WHERE id = ? AND status = ?"), args...)
	if err != nil {
		return nil, fmt.Errorf("update item status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		ok, err := s.exists(ctx, "order_items", u.ItemID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotFound
		}
		return nil, ErrPreconditionFailed
	}
	return s.GetItem(ctx, u.ItemID)
}

func (s *SQLStore) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		s.d.rebind("SELECT "+itemColumns+" FROM order_items WHERE order_id = ? ORDER BY line_no"), orderID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()
	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// Orders

const orderColumns = `id, tenant_id, order_number, status, total_amount, discount_amount, final_amount,
table_identifier, order_type, bill_requested, payment_preference, payment_reference, payment_method, paid_by,
version, created_at, updated_at, confirmed_at, billed_at, paid_at`

func scanOrder(r rowScanner) (*domain.Order, error) {
	var (
		o                           domain.Order
		status, orderType           string
		billRequested               int
		createdAt, updatedAt        string
		confirmedAt, billedAt, paid sql.NullString
	)
	if err := r.Scan(&o.ID, &o.TenantID, &o.OrderNumber, &status, &o.TotalAmount, &o.DiscountAmount, &o.FinalAmount,
		&o.TableIdentifier, &orderType, &billRequested, &o.PaymentPreference, &o.PaymentReference, &o.PaymentMethod,
		&o.PaidBy, &o.Version, &createdAt, &updatedAt, &confirmedAt, &billedAt, &paid); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.OrderType = domain.OrderType(orderType)
	o.BillRequested = billRequested != 0

	var err error
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if o.ConfirmedAt, err = scanNullTime(confirmedAt); err != nil {
		return nil, err
	}
	if o.BilledAt, err = scanNullTime(billedAt); err != nil {
		return nil, err
	}
	if o.PaidAt, err = scanNullTime(paid); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *SQLStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		var seq int64
		if err := q.QueryRowContext(ctx, s.d.rebind("SELECT COALESCE(MAX(seq), 0) + 1 FROM orders WHERE tenant_id = ?"),
			o.TenantID).Scan(&seq); err != nil {
			return fmt.Errorf("next order number: %w", err)
		}
		o.OrderNumber = FormatOrderNumber(seq)
		if o.CreatedAt.IsZero() {
			o.CreatedAt = time.Now().UTC()
		}
		o.UpdatedAt = o.CreatedAt

		_, err := q.ExecContext(ctx, s.d.rebind(`INSERT INTO orders (id, tenant_id, seq, order_number, status,
total_amount, discount_amount, final_amount, table_identifier, order_type, bill_requested, payment_preference,
payment_reference, payment_method, paid_by, version, created_at, updated_at, confirmed_at, billed_at, paid_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			o.ID, o.TenantID, seq, o.OrderNumber, string(o.Status),
			o.TotalAmount.String(), o.DiscountAmount.String(), o.FinalAmount.String(), o.TableIdentifier,
			string(o.OrderType), boolInt(o.BillRequested), o.PaymentPreference, o.PaymentReference, o.PaymentMethod,
			o.PaidBy, o.Version, formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
			nullTime(o.ConfirmedAt), nullTime(o.BilledAt), nullTime(o.PaidAt))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return s.insertItems(ctx, o.ID, 0, o.CreatedAt, o.Items)
	})
}

// insertItems пишет позиции с номерами строк начиная с firstLine
func (s *SQLStore) insertItems(ctx context.Context, orderID string, firstLine int, createdAt time.Time, items []domain.OrderItem) error {
	q := s.q(ctx)
	for i := range items {
		it := &items[i]
		it.OrderID = orderID
		if it.CreatedAt.IsZero() {
			it.CreatedAt = createdAt
		}
		_, err := q.ExecContext(ctx, s.d.rebind(`INSERT INTO order_items (id, order_id, line_no, status,
kds_destination, quantity, item_name_snapshot, unit_price, notes, created_at, prepared_at, served_at, served_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			it.ID, orderID, firstLine+i, string(it.Status), it.KDSDestination, it.Quantity, it.ItemNameSnapshot,
			it.UnitPrice.String(), it.Notes, formatTime(it.CreatedAt), nullTime(it.PreparedAt), nullTime(it.ServedAt),
			it.ServedBy)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) AddItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.exists(ctx, "orders", orderID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		var next int
		if err := s.q(ctx).QueryRowContext(ctx,
			s.d.rebind("SELECT COALESCE(MAX(line_no), -1) + 1 FROM order_items WHERE order_id = ?"), orderID).Scan(&next); err != nil {
			return fmt.Errorf("next line number: %w", err)
		}
		return s.insertItems(ctx, orderID, next, time.Now().UTC(), items)
	})
}

func (s *SQLStore) getOrder(ctx context.Context, id, suffix string) (*domain.Order, error) {
	row := s.q(ctx).QueryRowContext(ctx, s.d.rebind("SELECT "+orderColumns+" FROM orders WHERE id = ?"+suffix), id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.Items, err = s.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SQLStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder(ctx, id, "")
}

func (s *SQLStore) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder(ctx, id, s.d.forUpdate)
}

func (s *SQLStore) UpdateOrder(ctx context.Context, o *domain.Order, expected domain.OrderStatus, expectedVersion int64) error {
	now := time.Now().UTC()
	res, err := s.q(ctx).ExecContext(ctx, s.d.rebind(`UPDATE orders SET status = ?, total_amount = ?,
discount_amount = ?, final_amount = ?, bill_requested = ?, payment_preference = ?, payment_reference = ?,
payment_method = ?, paid_by = ?, version = version + 1, updated_at = ?,
confirmed_at = COALESCE(confirmed_at, ?),
billed_at = CASE WHEN ? = 0 THEN NULL ELSE COALESCE(billed_at, ?) END, paid_at = COALESCE(paid_at, ?)
WHERE id = ? AND status = ? AND version = ?`),
		string(o.Status), o.TotalAmount.String(), o.DiscountAmount.String(), o.FinalAmount.String(),
		boolInt(o.BillRequested), o.PaymentPreference, o.PaymentReference, o.PaymentMethod, o.PaidBy,
		formatTime(now), nullTime(o.ConfirmedAt), boolInt(o.BillRequested), nullTime(o.BilledAt), nullTime(o.PaidAt),
		o.ID, string(expected), expectedVersion)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		ok, err := s.exists(ctx, "orders", o.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return ErrPreconditionFailed
	}
	o.Version = expectedVersion + 1
	o.UpdatedAt = now
	return nil
}

// inClause "?, ?, ?" для n аргументов
func inClause(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLStore) ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE tenant_id = ?"
	args := []any{f.TenantID}
	if len(f.Statuses) > 0 {
		query += " AND status IN (" + inClause(len(f.Statuses)) + ")"
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY created_at, order_number"

	rows, err := s.q(ctx).QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// курсор закрыт до загрузки позиций: у SQLite одно соединение
	rows.Close()

	for i := range out {
		if out[i].Items, err = s.loadItems(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLStore) ListItems(ctx context.Context, f ItemFilter) ([]ItemRow, error) {
	query := `SELECT i.id, i.order_id, i.status, i.kds_destination, i.quantity, i.item_name_snapshot, i.unit_price,
i.notes, i.created_at, i.prepared_at, i.served_at, i.served_by,
o.order_number, o.status, o.table_identifier, o.created_at
FROM order_items i JOIN orders o ON o.id = i.order_id
WHERE o.tenant_id = ?`
	args := []any{f.TenantID}
	if f.Destination != "" {
		query += " AND i.kds_destination = ?"
		args = append(args, f.Destination)
	}
	if len(f.ItemStatuses) > 0 {
		query += " AND i.status IN (" + inClause(len(f.ItemStatuses)) + ")"
		for _, st := range f.ItemStatuses {
			args = append(args, string(st))
		}
	}
	switch {
	case len(f.OrderStatuses) > 0:
		query += " AND o.status IN (" + inClause(len(f.OrderStatuses)) + ")"
		for _, st := range f.OrderStatuses {
			args = append(args, string(st))
		}
	case len(f.ExcludeOrderStatuses) > 0:
		query += " AND o.status NOT IN (" + inClause(len(f.ExcludeOrderStatuses)) + ")"
		for _, st := range f.ExcludeOrderStatuses {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY o.created_at, o.order_number, i.created_at, i.line_no"

	rows, err := s.q(ctx).QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	out := make([]ItemRow, 0)
	for rows.Next() {
		var (
			it                        domain.OrderItem
			itemStatus, orderStatus   string
			itemCreated, orderCreated string
			preparedAt, servedAt      sql.NullString
			ref                       OrderRef
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &itemStatus, &it.KDSDestination, &it.Quantity, &it.ItemNameSnapshot,
			&it.UnitPrice, &it.Notes, &itemCreated, &preparedAt, &servedAt, &it.ServedBy,
			&ref.OrderNumber, &orderStatus, &ref.TableIdentifier, &orderCreated); err != nil {
			return nil, err
		}
		it.Status = domain.ItemStatus(itemStatus)
		ref.ID = it.OrderID
		ref.Status = domain.OrderStatus(orderStatus)
		if it.CreatedAt, err = parseTime(itemCreated); err != nil {
			return nil, err
		}
		if ref.CreatedAt, err = parseTime(orderCreated); err != nil {
			return nil, err
		}
		if it.PreparedAt, err = scanNullTime(preparedAt); err != nil {
			return nil, err
		}
		if it.ServedAt, err = scanNullTime(servedAt); err != nil {
			return nil, err
		}
		out = append(out, ItemRow{Item: it, Order: ref})
	}
	return out, rows.Err()
}

// Status log

func (s *SQLStore) AppendStatusLog(ctx context.Context, e domain.StatusLogEntry) error {
	_, err := s.q(ctx).ExecContext(ctx, s.d.rebind(`INSERT INTO order_status_log
(order_id, item_id, from_status, to_status, changed_by, changed_at) VALUES (?, ?, ?, ?, ?, ?)`),
		e.OrderID, e.ItemID, e.From, e.To, e.ChangedBy, formatTime(e.ChangedAt))
	if err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	return nil
}

func (s *SQLStore) ListStatusLog(ctx context.Context, orderID string) ([]domain.StatusLogEntry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, s.d.rebind(`SELECT id, order_id, item_id, from_status, to_status,
changed_by, changed_at FROM order_status_log WHERE order_id = ? ORDER BY id`), orderID)
	if err != nil {
		return nil, fmt.Errorf("list status log: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StatusLogEntry, 0)
	for rows.Next() {
		var (
			e  domain.StatusLogEntry
			at string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ItemID, &e.From, &e.To, &e.ChangedBy, &at); err != nil {
			return nil, err
		}
		if e.ChangedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

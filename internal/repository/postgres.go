package repository

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lavka/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// PgStore хранилище на PostgreSQL поверх pgxpool.
// Внутри транзакции все репозитории работают через pgx.Tx из контекста,
// снаружи — напрямую через пул.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore { return &PgStore{pool: pool} }

// EnsureSchema создаёт таблицы, если их ещё нет
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

type pgTxKey struct{}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PgStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

var _ TxManager = (*PgStore)(nil)

func (s *PgStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func mapPgErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// PgProducts репозиторий товаров
type PgProducts struct{ store *PgStore }

func NewPgProducts(store *PgStore) *PgProducts { return &PgProducts{store: store} }

var _ ProductRepository = (*PgProducts)(nil)

func (r *PgProducts) Create(ctx context.Context, p *domain.Product) error {
	err := r.store.q(ctx).QueryRow(ctx,
		`INSERT INTO products(name, sku, price, stock) VALUES($1, $2, $3, $4) RETURNING id`,
		p.Name, p.SKU, p.Price, p.Stock,
	).Scan(&p.ID)
	return mapPgErr(err)
}

func (r *PgProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT id, name, sku, price, stock FROM products WHERE id=$1`, id,
	).Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &p, nil
}

func (r *PgProducts) Update(ctx context.Context, p *domain.Product) error {
	tag, err := r.store.q(ctx).Exec(ctx,
		`UPDATE products SET name=$2, sku=$3, price=$4, stock=$5 WHERE id=$1`,
		p.ID, p.Name, p.SKU, p.Price, p.Stock,
	)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgProducts) Delete(ctx context.Context, id int64) error {
	tag, err := r.store.q(ctx).Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgProducts) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT id, name, sku, price, stock FROM products
		 WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		   AND ($2::float8 IS NULL OR price >= $2)
		   AND ($3::float8 IS NULL OR price <= $3)
		 ORDER BY id`,
		f.NameSubstring, f.MinPrice, f.MaxPrice,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DecrementStock одна условная запись; ноль затронутых строк — сигнал отказа
func (r *PgProducts) DecrementStock(ctx context.Context, id int64, qty int64) error {
	tag, err := r.store.q(ctx).Exec(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id=$1 AND stock >= $2`, id, qty,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.store.q(ctx).QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStockConflict
	}
	return nil
}

// PgCustomers репозиторий покупателей
type PgCustomers struct{ store *PgStore }

func NewPgCustomers(store *PgStore) *PgCustomers { return &PgCustomers{store: store} }

var _ CustomerRepository = (*PgCustomers)(nil)

func (r *PgCustomers) Create(ctx context.Context, c *domain.Customer) error {
	err := r.store.q(ctx).QueryRow(ctx,
		`INSERT INTO customers(name, email, address) VALUES($1, $2, $3) RETURNING id`,
		c.Name, c.Email, c.Address,
	).Scan(&c.ID)
	return mapPgErr(err)
}

func (r *PgCustomers) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT id, name, email, address FROM customers WHERE id=$1`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Address)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &c, nil
}

// PgOrders репозиторий заказов
type PgOrders struct{ store *PgStore }

func NewPgOrders(store *PgStore) *PgOrders { return &PgOrders{store: store} }

var _ OrderRepository = (*PgOrders)(nil)

func (r *PgOrders) Create(ctx context.Context, o *domain.Order) error {
	err := r.store.q(ctx).QueryRow(ctx,
		`INSERT INTO orders(uuid, customer_id, delivery_location, delivery_charge,
		                    delivery_status, status, total_price, discount)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		o.UUID, o.CustomerID, o.DeliveryLocation, o.DeliveryCharge,
		o.DeliveryStatus, o.Status, o.TotalPrice, o.Discount,
	).Scan(&o.ID, &o.CreatedAt)
	return mapPgErr(err)
}

func (r *PgOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT id, uuid, customer_id, created_at, fulfilled_at, delivery_location,
		        delivery_charge, delivery_status, status, total_price, discount
		 FROM orders WHERE id=$1`, id,
	).Scan(&o.ID, &o.UUID, &o.CustomerID, &o.CreatedAt, &o.FulfilledAt, &o.DeliveryLocation,
		&o.DeliveryCharge, &o.DeliveryStatus, &o.Status, &o.TotalPrice, &o.Discount)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &o, nil
}

func (r *PgOrders) Update(ctx context.Context, o *domain.Order) error {
	tag, err := r.store.q(ctx).Exec(ctx,
		`UPDATE orders SET fulfilled_at=$2, delivery_status=$3, status=$4 WHERE id=$1`,
		o.ID, o.FulfilledAt, o.DeliveryStatus, o.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgOrders) CreateLineItem(ctx context.Context, li *domain.OrderLineItem) error {
	err := r.store.q(ctx).QueryRow(ctx,
		`INSERT INTO order_line_items(order_id, product_id, quantity, unit_price, discount, amount)
		 VALUES($1, $2, $3, $4, $5, $6) RETURNING id`,
		li.OrderID, li.ProductID, li.Quantity, li.UnitPrice, li.Discount, li.Amount,
	).Scan(&li.ID)
	return mapPgErr(err)
}

func (r *PgOrders) ListLineItems(ctx context.Context, orderID int64) ([]domain.OrderLineItem, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price, discount, amount
		 FROM order_line_items WHERE order_id=$1 ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.OrderLineItem, 0)
	for rows.Next() {
		var li domain.OrderLineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.Quantity,
			&li.UnitPrice, &li.Discount, &li.Amount); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

// PgPayments репозиторий платежей
type PgPayments struct{ store *PgStore }

func NewPgPayments(store *PgStore) *PgPayments { return &PgPayments{store: store} }

var _ PaymentRepository = (*PgPayments)(nil)

func (r *PgPayments) Create(ctx context.Context, p *domain.Payment) error {
	err := r.store.q(ctx).QueryRow(ctx,
		`INSERT INTO payments(order_id, customer_id, method, transaction_id, amount, status, pay_date)
		 VALUES($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.OrderID, p.CustomerID, p.Method, p.TransactionID, p.Amount, p.Status, p.PayDate,
	).Scan(&p.ID)
	return mapPgErr(err)
}

func (r *PgPayments) GetByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error) {
	var p domain.Payment
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT id, order_id, customer_id, method, transaction_id, amount, status, pay_date
		 FROM payments WHERE order_id=$1`, orderID,
	).Scan(&p.ID, &p.OrderID, &p.CustomerID, &p.Method, &p.TransactionID, &p.Amount, &p.Status, &p.PayDate)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &p, nil
}

func (r *PgPayments) Update(ctx context.Context, p *domain.Payment) error {
	tag, err := r.store.q(ctx).Exec(ctx,
		`UPDATE payments SET transaction_id=$2, status=$3, pay_date=$4 WHERE id=$1`,
		p.ID, p.TransactionID, p.Status, p.PayDate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PgShipments репозиторий отгрузок
type PgShipments struct{ store *PgStore }

func NewPgShipments(store *PgStore) *PgShipments { return &PgShipments{store: store} }

var _ ShipmentRepository = (*PgShipments)(nil)

func (r *PgShipments) Create(ctx context.Context, s *domain.Shipment) error {
	err := r.store.q(ctx).QueryRow(ctx,
		`INSERT INTO shipments(order_id, street, zip_code, city, state, country, status, assignee)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		s.OrderID, s.Street, s.ZipCode, s.City, s.State, s.Country, s.Status, s.Assignee,
	).Scan(&s.ID)
	return mapPgErr(err)
}

func (r *PgShipments) GetByOrderID(ctx context.Context, orderID int64) (*domain.Shipment, error) {
	var s domain.Shipment
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT id, order_id, street, zip_code, city, state, country, status, assignee
		 FROM shipments WHERE order_id=$1`, orderID,
	).Scan(&s.ID, &s.OrderID, &s.Street, &s.ZipCode, &s.City, &s.State, &s.Country, &s.Status, &s.Assignee)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &s, nil
}

func (r *PgShipments) Update(ctx context.Context, s *domain.Shipment) error {
	tag, err := r.store.q(ctx).Exec(ctx,
		`UPDATE shipments SET status=$2, assignee=$3 WHERE id=$1`,
		s.ID, s.Status, s.Assignee,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PgInvoices репозиторий счетов
type PgInvoices struct{ store *PgStore }

func NewPgInvoices(store *PgStore) *PgInvoices { return &PgInvoices{store: store} }

var _ InvoiceRepository = (*PgInvoices)(nil)

func (r *PgInvoices) Create(ctx context.Context, inv *domain.Invoice) error {
	err := r.store.q(ctx).QueryRow(ctx,
		`INSERT INTO invoices(order_id, customer_id, payment_id, sub_total, vat_percent, vat_amount, net_amount)
		 VALUES($1, $2, $3, $4, $5, $6, $7) RETURNING id, issued_at`,
		inv.OrderID, inv.CustomerID, inv.PaymentID, inv.SubTotal, inv.VATPercent, inv.VATAmount, inv.NetAmount,
	).Scan(&inv.ID, &inv.IssuedAt)
	return mapPgErr(err)
}

func (r *PgInvoices) GetByOrderID(ctx context.Context, orderID int64) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT id, order_id, customer_id, payment_id, sub_total, vat_percent, vat_amount, net_amount, issued_at
		 FROM invoices WHERE order_id=$1`, orderID,
	).Scan(&inv.ID, &inv.OrderID, &inv.CustomerID, &inv.PaymentID, &inv.SubTotal,
		&inv.VATPercent, &inv.VATAmount, &inv.NetAmount, &inv.IssuedAt)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &inv, nil
}

func (r *PgInvoices) CreateLineItem(ctx context.Context, li *domain.InvoiceLineItem) error {
	err := r.store.q(ctx).QueryRow(ctx,
		`INSERT INTO invoice_line_items(invoice_id, product_id, quantity, unit_price,
		                                discount_percent, discount_amount, total)
		 VALUES($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		li.InvoiceID, li.ProductID, li.Quantity, li.UnitPrice,
		li.DiscountPercent, li.DiscountAmount, li.Total,
	).Scan(&li.ID)
	return mapPgErr(err)
}

func (r *PgInvoices) ListLineItems(ctx context.Context, invoiceID int64) ([]domain.InvoiceLineItem, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT id, invoice_id, product_id, quantity, unit_price, discount_percent, discount_amount, total
		 FROM invoice_line_items WHERE invoice_id=$1 ORDER BY id`, invoiceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.InvoiceLineItem, 0)
	for rows.Next() {
		var li domain.InvoiceLineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.ProductID, &li.Quantity,
			&li.UnitPrice, &li.DiscountPercent, &li.DiscountAmount, &li.Total); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

// PgCarts репозиторий корзины
type PgCarts struct{ store *PgStore }

func NewPgCarts(store *PgStore) *PgCarts { return &PgCarts{store: store} }

var _ CartRepository = (*PgCarts)(nil)

func (r *PgCarts) Add(ctx context.Context, it *domain.CartItem) error {
	err := r.store.q(ctx).QueryRow(ctx,
		`INSERT INTO cart_items(customer_id, product_id, quantity) VALUES($1, $2, $3)
		 RETURNING id, added_at`,
		it.CustomerID, it.ProductID, it.Quantity,
	).Scan(&it.ID, &it.AddedAt)
	return mapPgErr(err)
}

func (r *PgCarts) GetByIDs(ctx context.Context, customerID int64, ids []int64) ([]domain.CartItem, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT id, customer_id, product_id, quantity, added_at
		 FROM cart_items WHERE customer_id=$1 AND id = ANY($2) ORDER BY id`,
		customerID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.CartItem, 0, len(ids))
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CustomerID, &it.ProductID, &it.Quantity, &it.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// каждая запрошенная строка обязана существовать и принадлежать покупателю
	if len(out) != len(ids) {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r *PgCarts) ListByCustomer(ctx context.Context, customerID int64) ([]domain.CartItem, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT id, customer_id, product_id, quantity, added_at
		 FROM cart_items WHERE customer_id=$1 ORDER BY id`, customerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.CartItem, 0)
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CustomerID, &it.ProductID, &it.Quantity, &it.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PgCarts) DeleteByIDs(ctx context.Context, ids []int64) error {
	tag, err := r.store.q(ctx).Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return ErrNotFound
	}
	return nil
}

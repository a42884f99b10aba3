package service_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/lib/metrics"
	"github.com/linemk/storefront/internal/payment"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/session"
	"github.com/linemk/storefront/internal/storage"
)

// memStore хранит все таблицы в памяти и реализует все репозитории.
// memTx сериализует транзакции и откатывает снимок данных при ошибке.
type memStore struct {
	mu sync.Mutex

	users    map[int64]*models.User
	products map[int64]*models.Product
	orders   map[int64]*models.Order
	items    map[int64]*models.OrderItem
	payments map[int64]*models.Payment // ключ: order_id
	carts    map[int64]map[int64]int   // user_id -> product_id -> quantity
	nextID   int64

	failCreateOrder error
}

var (
	_ storage.UserStorage      = (*memStore)(nil)
	_ storage.ProductStorage   = (*memStore)(nil)
	_ storage.OrderStorage     = (*memStore)(nil)
	_ storage.PaymentStorage   = (*memStore)(nil)
	_ storage.CartStorage      = (*memStore)(nil)
	_ storage.AnalyticsStorage = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*models.User),
		products: make(map[int64]*models.Product),
		orders:   make(map[int64]*models.Order),
		items:    make(map[int64]*models.OrderItem),
		payments: make(map[int64]*models.Payment),
		carts:    make(map[int64]map[int64]int),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	users    map[int64]models.User
	products map[int64]models.Product
	orders   map[int64]models.Order
	items    map[int64]models.OrderItem
	payments map[int64]models.Payment
	carts    map[int64]map[int64]int
}

func copyValues[T any](in map[int64]*T) map[int64]T {
	out := make(map[int64]T, len(in))
	for k, v := range in {
		out[k] = *v
	}
	return out
}

func toPointers[T any](in map[int64]T) map[int64]*T {
	out := make(map[int64]*T, len(in))
	for k, v := range in {
		v := v
		out[k] = &v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	carts := make(map[int64]map[int64]int, len(s.carts))
	for k, v := range s.carts {
		carts[k] = maps.Clone(v)
	}
	return memSnapshot{
		users:    copyValues(s.users),
		products: copyValues(s.products),
		orders:   copyValues(s.orders),
		items:    copyValues(s.items),
		payments: copyValues(s.payments),
		carts:    carts,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = toPointers(snap.users)
	s.products = toPointers(snap.products)
	s.orders = toPointers(snap.orders)
	s.items = toPointers(snap.items)
	s.payments = toPointers(snap.payments)
	s.carts = snap.carts
}

type memTx struct {
	mu    sync.Mutex
	store *memStore
	calls int
}

func (t *memTx) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++

	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// --- users

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *memStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, storage.ErrUserExists
		}
	}
	user.ID = s.id()
	c := *user
	s.users[user.ID] = &c
	return user, nil
}

func (s *memStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// --- products

func (s *memStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (s *memStore) LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	return s.GetProductByID(ctx, id)
}

func (s *memStore) ListAvailableProducts(ctx context.Context) ([]*models.Product, error) {
	return s.listProducts(func(p *models.Product) bool { return p.Available }), nil
}

func (s *memStore) ListProductsBySeller(ctx context.Context, sellerID int64) ([]*models.Product, error) {
	return s.listProducts(func(p *models.Product) bool { return p.SellerID == sellerID }), nil
}

func (s *memStore) listProducts(keep func(*models.Product) bool) []*models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Product
	for _, p := range s.products {
		if keep(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product.ID = s.id()
	c := *product
	s.products[product.ID] = &c
	return product, nil
}

func (s *memStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return storage.ErrProductNotFound
	}
	c := *product
	s.products[product.ID] = &c
	return nil
}

func (s *memStore) DecrementInventory(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.Inventory < quantity {
		return storage.ErrStockNotDecremented
	}
	p.Inventory -= quantity
	return nil
}

func (s *memStore) IncrementInventory(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return storage.ErrProductNotFound
	}
	p.Inventory += quantity
	return nil
}

// --- orders

func (s *memStore) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateOrder != nil {
		return s.failCreateOrder
	}
	order.ID = s.id()
	c := *order
	c.Items = nil
	s.orders[order.ID] = &c
	return nil
}

func (s *memStore) CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	c := *item
	s.items[item.ID] = &c
	return nil
}

func (s *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (s *memStore) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	return s.GetOrderByID(ctx, id)
}

func (s *memStore) LockOrderByItemIDTx(ctx context.Context, tx *sql.Tx, itemID int64) (*models.Order, error) {
	item, err := s.LockOrderItemByIDTx(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	return s.GetOrderByID(ctx, item.OrderID)
}

func (s *memStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			c := *o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (s *memStore) listItems(keep func(*models.OrderItem) bool) []*models.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.OrderItem
	for _, it := range s.items {
		if keep(it) {
			c := *it
			if p, ok := s.products[c.ProductID]; ok {
				c.ProductTitle = p.Title
			}
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) GetItemsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	return s.listItems(func(it *models.OrderItem) bool { return it.OrderID == orderID }), nil
}

func (s *memStore) GetItemsByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID int64) ([]*models.OrderItem, error) {
	items := s.listItems(func(it *models.OrderItem) bool { return it.OrderID == orderID })
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

func (s *memStore) GetItemsBySellerID(ctx context.Context, sellerID int64) ([]*models.OrderItem, error) {
	return s.listItems(func(it *models.OrderItem) bool { return it.SellerID == sellerID }), nil
}

func (s *memStore) LockOrderItemByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.OrderItem, error) {
	items := s.listItems(func(it *models.OrderItem) bool { return it.ID == id })
	if len(items) == 0 {
		return nil, storage.ErrOrderItemNotFound
	}
	return items[0], nil
}

func (s *memStore) UpdateOrderItemStatus(ctx context.Context, tx *sql.Tx, id int64, status models.ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return storage.ErrOrderItemNotFound
	}
	it.Status = status
	return nil
}

func (s *memStore) CountUndeliveredItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) (int, error) {
	items := s.listItems(func(it *models.OrderItem) bool {
		return it.OrderID == orderID && it.Status != models.ItemStatusDelivered
	})
	return len(items), nil
}

// --- payments

func (s *memStore) UpsertPayment(ctx context.Context, tx *sql.Tx, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.payments[p.OrderID]; ok {
		p.ID = existing.ID
	} else {
		p.ID = s.id()
	}
	c := *p
	s.payments[p.OrderID] = &c
	return nil
}

func (s *memStore) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	if !ok {
		return nil, storage.ErrPaymentNotFound
	}
	c := *p
	return &c, nil
}

// --- carts

func (s *memStore) GetCartItems(ctx context.Context, userID int64) ([]*models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CartItem
	for productID, qty := range s.carts[userID] {
		out = append(out, &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *memStore) LockCartItemsTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartItem, error) {
	return s.GetCartItems(ctx, userID)
}

func (s *memStore) AddCartItemTx(ctx context.Context, tx *sql.Tx, userID, productID int64, quantity int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carts[userID] == nil {
		s.carts[userID] = make(map[int64]int)
	}
	s.carts[userID][productID] += quantity
	return s.carts[userID][productID], nil
}

func (s *memStore) DecrementCartItemTx(ctx context.Context, tx *sql.Tx, userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	qty, ok := s.carts[userID][productID]
	switch {
	case !ok:
	case qty <= 1:
		delete(s.carts[userID], productID)
	default:
		s.carts[userID][productID] = qty - 1
	}
	return nil
}

func (s *memStore) RemoveCartItem(ctx context.Context, userID, productID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.carts[userID][productID]
	delete(s.carts[userID], productID)
	return ok, nil
}

func (s *memStore) DeleteCartItemsTx(ctx context.Context, tx *sql.Tx, userID int64, productIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range productIDs {
		delete(s.carts[userID], id)
	}
	return nil
}

// --- analytics

func (s *memStore) paidItems(sellerID int64) []*models.OrderItem {
	s.mu.Lock()
	paid := make(map[int64]bool)
	for id, o := range s.orders {
		switch o.Status {
		case models.OrderStatusPaid, models.OrderStatusShipped, models.OrderStatusOutForDelivery, models.OrderStatusDelivered:
			paid[id] = true
		}
	}
	s.mu.Unlock()
	return s.listItems(func(it *models.OrderItem) bool { return it.SellerID == sellerID && paid[it.OrderID] })
}

func (s *memStore) GetSellerSummary(ctx context.Context, sellerID int64) (*models.SellerSummary, error) {
	sum := &models.SellerSummary{TotalRevenue: decimal.Zero}
	orders := make(map[int64]bool)
	for _, it := range s.paidItems(sellerID) {
		sum.TotalRevenue = sum.TotalRevenue.Add(it.LineTotal())
		sum.TotalItems += it.Quantity
		orders[it.OrderID] = true
	}
	sum.TotalOrders = len(orders)
	return sum, nil
}

func (s *memStore) GetSellerProductSales(ctx context.Context, sellerID int64) ([]*models.ProductSales, error) {
	byProduct := make(map[int64]*models.ProductSales)
	for _, it := range s.paidItems(sellerID) {
		ps, ok := byProduct[it.ProductID]
		if !ok {
			ps = &models.ProductSales{ProductID: it.ProductID, Title: it.ProductTitle, Revenue: decimal.Zero}
			byProduct[it.ProductID] = ps
		}
		ps.Quantity += it.Quantity
		ps.Revenue = ps.Revenue.Add(it.LineTotal())
	}
	var out []*models.ProductSales
	for _, ps := range byProduct {
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revenue.GreaterThan(out[j].Revenue) })
	return out, nil
}

// --- helpers

func (s *memStore) inventory(t *testing.T, productID int64) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Inventory
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) cartOf(userID int64) map[int64]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.carts[userID])
}

func (s *memStore) putInCart(userID, productID int64, qty int) {
	_, _ = s.AddCartItemTx(context.Background(), nil, userID, productID, qty)
}

func (s *memStore) addUser(seller bool) *models.User {
	u, _ := s.CreateUser(context.Background(), &models.User{Email: gofakeit.Email(), IsSeller: seller})
	return u
}

func (s *memStore) addProduct(sellerID int64, price string, inventory int) *models.Product {
	p, _ := s.CreateProduct(context.Background(), &models.Product{
		Title:     gofakeit.ProductName(),
		BasePrice: decimal.RequireFromString(price),
		Inventory: inventory,
		Available: true,
		SellerID:  sellerID,
	})
	return p
}

type declineProvider struct{}

func (declineProvider) Charge(_ context.Context, order *models.Order) (payment.ChargeResult, error) {
	return payment.ChargeResult{PaymentID: "DECLINED-1", Status: models.PaymentStatusFailed}, nil
}

type brokenProvider struct{}

func (brokenProvider) Charge(context.Context, *models.Order) (payment.ChargeResult, error) {
	return payment.ChargeResult{}, errors.New("provider unavailable")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	store       *memStore
	tx          *memTx
	metrics     *metrics.Metrics
	sessions    *session.Store
	engine      service.OrderEngine
	payments    service.PaymentService
	fulfillment service.FulfillmentService
	carts       service.CartService
	seller      service.SellerService
	catalog     service.CatalogService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithProvider(t, payment.NewMockProvider())
}

func newEnvWithProvider(t *testing.T, provider payment.Provider) *env {
	t.Helper()
	store := newMemStore()
	tx := &memTx{store: store}
	m := metrics.New()
	log := testLogger()
	sessions := session.NewStore(0)
	ledger := service.NewInventoryLedger(store)

	return &env{
		store:       store,
		tx:          tx,
		metrics:     m,
		sessions:    sessions,
		engine:      service.NewOrderEngine(log, tx, store, store, store, ledger, m),
		payments:    service.NewPaymentService(log, tx, store, store, store, provider, m),
		fulfillment: service.NewFulfillmentService(log, tx, store, m),
		carts:       service.NewCartService(log, tx, store, store, sessions),
		seller:      service.NewSellerService(log, store, store),
		catalog:     service.NewCatalogService(log, store),
	}
}

// scrape возвращает текущие метрики в текстовом формате
func (e *env) scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	e.metrics.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	return rr.Body.String()
}

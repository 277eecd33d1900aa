package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/events"
	"github.com/matheusmosca/commerce-settlement/internal/gateway"
	"github.com/matheusmosca/commerce-settlement/internal/repository/memory"
)

const (
	testUser      = "user-1"
	testAddress   = "addr-1"
	testShipping  = "POST"
	testBaseURL   = "http://shop.test"
	productMug    = "p-mug"
	productPoster = "p-poster"
)

// MockGateway simula o gateway de pagamento
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Payment, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*gateway.Payment)
	return p, args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, authority string, amount int64) (*gateway.Verification, error) {
	args := m.Called(ctx, authority, amount)
	v, _ := args.Get(0).(*gateway.Verification)
	return v, args.Error(1)
}

func (m *MockGateway) StartURL(authority string) string {
	return "https://gw.test/pg/StartPay/" + authority
}

// MockPublisher registra os eventos publicados
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockPublisher) Close() error { return nil }

type fixture struct {
	store     *memory.Store
	repos     Repositories
	gateway   *MockGateway
	publisher *MockPublisher
	carts     *CartUseCase
	orders    *OrderUseCase
	settler   *Settler
	payments  *PaymentUseCase
	receipts  *ReceiptUseCase
	inventory *InventoryUseCase
}

func storeRepositories(store *memory.Store) Repositories {
	return Repositories{
		Tx:        store,
		Products:  store,
		Coupons:   store,
		Shipping:  store,
		Addresses: store,
		Carts:     store,
		Orders:    store,
		Receipts:  store,
		Ledger:    store,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memory.NewStore(), true)
}

func newFixtureWith(t *testing.T, store *memory.Store, allowNegative bool) *fixture {
	t.Helper()

	store.PutProduct(domain.Product{ID: productMug, Name: "Mug", Category: "kitchen", Price: 30000, Stock: 10})
	discount := int64(20000)
	store.PutProduct(domain.Product{ID: productPoster, Name: "Poster", Category: "decor", Price: 25000, DiscountPrice: &discount, Stock: 5})
	store.PutShippingMethod(domain.ShippingMethod{Code: testShipping, Name: "Post", Cost: 15000, Active: true})
	store.PutShippingMethod(domain.ShippingMethod{Code: "OFF", Name: "Disabled", Cost: 1, Active: false})
	store.PutAddress(domain.Address{ID: testAddress, UserID: testUser, Label: "home"})
	store.PutAddress(domain.Address{ID: "addr-other", UserID: "user-2", Label: "other"})
	store.PutCoupon(domain.Coupon{ID: "c-fixed", Code: "FIX20", Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(20000), Active: true})
	store.PutCoupon(domain.Coupon{ID: "c-pct", Code: "PCT15", Type: domain.CouponTypePercentage, Value: decimal.NewFromInt(15), Active: true})
	store.PutCoupon(domain.Coupon{ID: "c-once", Code: "ONCE", Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(1000), Active: true, UsageLimit: 1})
	expired := time.Now().Add(-time.Hour)
	store.PutCoupon(domain.Coupon{ID: "c-expired", Code: "OLD", Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(1000), Active: true, ExpiresAt: &expired})

	repos := storeRepositories(store)
	gw := new(MockGateway)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	obs := Observability{Publisher: pub}

	settler := NewSettler(repos, allowNegative, obs)
	return &fixture{
		store:     store,
		repos:     repos,
		gateway:   gw,
		publisher: pub,
		carts:     NewCartUseCase(repos),
		orders:    NewOrderUseCase(repos, testBaseURL, obs),
		settler:   settler,
		payments:  NewPaymentUseCase(repos, gw, settler, testBaseURL, obs),
		receipts:  NewReceiptUseCase(repos, settler, obs),
		inventory: NewInventoryUseCase(repos, obs),
	}
}

func (f *fixture) addToCart(t *testing.T, owner domain.Owner, productID string, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), owner, productID, qty)
	require.NoError(t, err)
}

// placeOrder coloca 2 canecas e 1 pôster no carrinho do usuário e cria o pedido
func (f *fixture) placeOrder(t *testing.T, method domain.PaymentMethod) *domain.Order {
	t.Helper()
	owner := domain.UserOwner(testUser)
	f.addToCart(t, owner, productMug, 2)
	f.addToCart(t, owner, productPoster, 1)

	res, err := f.orders.CreateOrder(context.Background(), CreateOrderRequest{
		Owner:          owner,
		AddressID:      testAddress,
		ShippingMethod: testShipping,
		PaymentMethod:  method,
	})
	require.NoError(t, err)
	return res.Order
}

// withReference grava a referência do gateway no pedido
func (f *fixture) withReference(t *testing.T, orderID, reference string) {
	t.Helper()
	ok, err := f.store.SetPaymentReference(context.Background(), nil, orderID, reference)
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), nil, productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) paymentStatus(t *testing.T, orderID string) domain.PaymentStatus {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), nil, orderID)
	require.NoError(t, err)
	return o.PaymentStatus
}

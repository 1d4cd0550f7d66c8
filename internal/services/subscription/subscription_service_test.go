package subscription

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/domain"
	"github.com/hookpay/webhook-service/internal/domain/models"
	"github.com/hookpay/webhook-service/internal/domain/ports"
)

type stubDB struct{}

func (stubDB) GetDB() ports.DBTX { return nil }

func (stubDB) WithTransaction(ctx context.Context, fn func(context.Context, ports.DBTX) error) error {
	return fn(ctx, nil)
}

// MockCustomerRepository mocks the customer repository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Create(ctx context.Context, db ports.DBTX, customer *models.Customer) error {
	args := m.Called(ctx, db, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, db ports.DBTX, id int64) (*models.Customer, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockCustomerRepository) GetByEmail(ctx context.Context, db ports.DBTX, email string) (*models.Customer, error) {
	args := m.Called(ctx, db, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockCustomerRepository) GetByProviderCustomerID(ctx context.Context, db ports.DBTX, providerCustomerID string) (*models.Customer, error) {
	args := m.Called(ctx, db, providerCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockCustomerRepository) SetProviderCustomerID(ctx context.Context, db ports.DBTX, id int64, providerCustomerID string) error {
	args := m.Called(ctx, db, id, providerCustomerID)
	return args.Error(0)
}

// MockSubscriptionRepository mocks the subscription repository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, db ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, db, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, db ports.DBTX, id int64) (*models.Subscription, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, db ports.DBTX, providerSubscriptionID string) (*models.Subscription, error) {
	args := m.Called(ctx, db, providerSubscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, db ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, db, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) ListPastDue(ctx context.Context, db ports.DBTX) ([]*models.Subscription, error) {
	args := m.Called(ctx, db)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListActiveExpiredBy(ctx context.Context, db ports.DBTX, cutoff time.Time) ([]*models.Subscription, error) {
	args := m.Called(ctx, db, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

type serviceFixture struct {
	service       *Service
	customers     *MockCustomerRepository
	subscriptions *MockSubscriptionRepository
	now           time.Time
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		customers:     new(MockCustomerRepository),
		subscriptions: new(MockSubscriptionRepository),
		now:           time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	f.service = NewService(stubDB{}, f.customers, f.subscriptions, zap.NewNop())
	f.service.now = func() time.Time { return f.now }
	return f
}

func TestCreateRequiresCustomerReference(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.Create(context.Background(), CreateInput{PlanID: 1})
	assert.True(t, domain.IsInvalidPayloadError(err))
	assert.Equal(t, "customer_id or customer_email is required", domain.ErrorMessage(err))
}

func TestCreateWithNewEmailCreatesCustomer(t *testing.T) {
	f := newServiceFixture()

	f.customers.On("GetByEmail", mock.Anything, mock.Anything, "ana@example.com").
		Return(nil, domain.ErrCustomerNotFound).Once()

	var createdCustomer *models.Customer
	f.customers.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Customer")).
		Run(func(args mock.Arguments) {
			createdCustomer = args.Get(2).(*models.Customer)
			createdCustomer.ID = 42
		}).
		Return(nil).Once()

	f.subscriptions.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Subscription")).
		Run(func(args mock.Arguments) { args.Get(2).(*models.Subscription).ID = 100 }).
		Return(nil).Once()

	result, err := f.service.Create(context.Background(), CreateInput{CustomerEmail: "ana@example.com", PlanID: 3})
	require.NoError(t, err)

	require.NotNil(t, createdCustomer)
	assert.Equal(t, "ana@example.com", createdCustomer.Email)
	assert.Equal(t, "active", createdCustomer.Status)
	assert.True(t, strings.HasPrefix(createdCustomer.ProviderCustomerID, "cus_"))
	assert.Len(t, createdCustomer.ProviderCustomerID, len("cus_")+16)

	sub := result.Subscription
	assert.Equal(t, int64(42), sub.CustomerID)
	assert.Equal(t, int64(3), sub.PlanID)
	assert.Equal(t, models.SubStatusPendingActivation, sub.Status)
	assert.Equal(t, f.now, sub.CurrentPeriodEnd)
	assert.True(t, strings.HasPrefix(sub.ProviderSubscriptionID, "sub_"))
	assert.Equal(t, createdCustomer.ProviderCustomerID, result.ProviderCustomerID)
}

func TestCreateWithExistingCustomerKeepsProviderID(t *testing.T) {
	f := newServiceFixture()

	customer := &models.Customer{ID: 7, Email: "bob@example.com", ProviderCustomerID: "cus_existing0000001"}
	f.customers.On("GetByID", mock.Anything, mock.Anything, int64(7)).Return(customer, nil).Once()
	f.subscriptions.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	result, err := f.service.Create(context.Background(), CreateInput{CustomerID: 7})
	require.NoError(t, err)

	assert.Equal(t, "cus_existing0000001", result.ProviderCustomerID)
	f.customers.AssertNotCalled(t, "SetProviderCustomerID", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAssignsProviderIDLazily(t *testing.T) {
	f := newServiceFixture()

	customer := &models.Customer{ID: 7, Email: "bob@example.com"}
	f.customers.On("GetByID", mock.Anything, mock.Anything, int64(7)).Return(customer, nil).Once()
	f.customers.On("SetProviderCustomerID", mock.Anything, mock.Anything, int64(7), mock.AnythingOfType("string")).Return(nil).Once()
	f.subscriptions.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	result, err := f.service.Create(context.Background(), CreateInput{CustomerID: 7})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.ProviderCustomerID, "cus_"))
}

func TestCreateUnknownCustomerID(t *testing.T) {
	f := newServiceFixture()

	f.customers.On("GetByID", mock.Anything, mock.Anything, int64(99)).
		Return(nil, domain.ErrCustomerNotFound).Once()

	_, err := f.service.Create(context.Background(), CreateInput{CustomerID: 99})
	assert.True(t, domain.IsNotFoundError(err))
}

func TestSetCancelAtPeriodEnd(t *testing.T) {
	f := newServiceFixture()

	sub := &models.Subscription{ID: 5, Status: models.SubStatusActive}
	f.subscriptions.On("GetByID", mock.Anything, mock.Anything, int64(5)).Return(sub, nil).Twice()
	f.subscriptions.On("Update", mock.Anything, mock.Anything, sub).Return(nil).Twice()

	got, err := f.service.SetCancelAtPeriodEnd(context.Background(), 5, true)
	require.NoError(t, err)
	assert.True(t, got.CancelAtPeriodEnd)

	got, err = f.service.SetCancelAtPeriodEnd(context.Background(), 5, false)
	require.NoError(t, err)
	assert.False(t, got.CancelAtPeriodEnd)
}

func TestEnforceGracePeriod(t *testing.T) {
	f := newServiceFixture()

	overdue := f.now.Add(-25 * time.Hour)
	recent := f.now.Add(-time.Hour)
	expired := &models.Subscription{ID: 1, Status: models.SubStatusPastDue, PastDueSince: &overdue}
	withinGrace := &models.Subscription{ID: 2, Status: models.SubStatusPastDue, PastDueSince: &recent}
	noMarker := &models.Subscription{ID: 3, Status: models.SubStatusPastDue}

	f.subscriptions.On("ListPastDue", mock.Anything, mock.Anything).
		Return([]*models.Subscription{expired, withinGrace, noMarker}, nil).Once()
	f.subscriptions.On("Update", mock.Anything, mock.Anything, expired).Return(nil).Once()

	summary, err := f.service.EnforceGracePeriod(context.Background())
	require.NoError(t, err)

	assert.Equal(t, f.now, summary.CheckedAt)
	assert.Equal(t, 1, summary.CanceledCount)
	assert.Equal(t, []int64{1}, summary.CanceledSubscriptionIDs)

	assert.Equal(t, models.SubStatusCanceled, expired.Status)
	assert.True(t, expired.AccessRevoked)
	require.NotNil(t, expired.CanceledAt)
	assert.Equal(t, models.SubStatusPastDue, withinGrace.Status)
	assert.Equal(t, models.SubStatusPastDue, noMarker.Status)
}

func TestEnforceGracePeriodBoundary(t *testing.T) {
	f := newServiceFixture()

	// Exactly 24 hours past due is canceled.
	exact := f.now.Add(-24 * time.Hour)
	boundary := &models.Subscription{ID: 4, Status: models.SubStatusPastDue, PastDueSince: &exact}

	f.subscriptions.On("ListPastDue", mock.Anything, mock.Anything).
		Return([]*models.Subscription{boundary}, nil).Once()
	f.subscriptions.On("Update", mock.Anything, mock.Anything, boundary).Return(nil).Once()

	summary, err := f.service.EnforceGracePeriod(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, summary.CanceledSubscriptionIDs)
}

func TestExpireSubscriptions(t *testing.T) {
	f := newServiceFixture()

	lapsed := &models.Subscription{ID: 10, Status: models.SubStatusActive, CurrentPeriodEnd: f.now.Add(-time.Hour)}
	scheduled := &models.Subscription{ID: 11, Status: models.SubStatusActive, CurrentPeriodEnd: f.now.Add(-time.Minute), CancelAtPeriodEnd: true}

	f.subscriptions.On("ListActiveExpiredBy", mock.Anything, mock.Anything, f.now).
		Return([]*models.Subscription{lapsed, scheduled}, nil).Once()
	f.subscriptions.On("Update", mock.Anything, mock.Anything, lapsed).Return(nil).Once()
	f.subscriptions.On("Update", mock.Anything, mock.Anything, scheduled).Return(nil).Once()

	summary, err := f.service.ExpireSubscriptions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{10}, summary.ExpiredIDs)
	assert.Equal(t, []int64{11}, summary.CanceledIDs)

	assert.Equal(t, models.SubStatusExpired, lapsed.Status)
	require.NotNil(t, lapsed.ExpiredAt)
	assert.Equal(t, models.SubStatusCanceled, scheduled.Status)
	assert.True(t, scheduled.AccessRevoked)
}

func TestExpireSubscriptionsEmptySweep(t *testing.T) {
	f := newServiceFixture()

	f.subscriptions.On("ListActiveExpiredBy", mock.Anything, mock.Anything, f.now).
		Return([]*models.Subscription{}, nil).Once()

	summary, err := f.service.ExpireSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.ExpiredIDs)
	assert.Empty(t, summary.CanceledIDs)
}

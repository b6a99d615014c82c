package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/internal/cart"
	"github.com/angelmondragon/foodapp-backend/internal/catalog"
	"github.com/angelmondragon/foodapp-backend/internal/orders"
	"github.com/angelmondragon/foodapp-backend/pkg/db"
	"github.com/angelmondragon/foodapp-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox"
)

type checkoutFixture struct {
	client   *db.Client
	carts    cart.Repository
	cartSvc  cart.Service
	outbox   *outbox.Repository
	svc      Service
	regular  models.DeliveryType
	express  models.DeliveryType
	location models.Location
	jollof   models.Meal
	beans    models.Meal
}

func newCheckoutFixture(t *testing.T, tx txRunner) checkoutFixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	if tx == nil {
		tx = client
	}

	f := checkoutFixture{
		client:   client,
		carts:    cart.NewRepository(conn),
		outbox:   outbox.NewRepository(conn),
		regular:  models.DeliveryType{Name: enums.DeliveryTypeRegular, Price: decimal.NewFromInt(500)},
		express:  models.DeliveryType{Name: enums.DeliveryTypeExpress, Price: decimal.NewFromInt(1000)},
		location: models.Location{Name: enums.LocationHall1},
		jollof:   models.Meal{Name: "Jollof Rice", Price: decimal.NewFromInt(2500), IsAvailable: true},
		beans:    models.Meal{Name: "Beans and Plantain", Price: decimal.NewFromInt(1500), IsAvailable: true},
	}
	for _, row := range []any{&f.regular, &f.express, &f.location, &f.jollof, &f.beans} {
		require.NoError(t, conn.Create(row).Error)
	}

	catalogRepo := catalog.NewRepository(conn)
	cartSvc, err := cart.NewService(f.carts, client, catalogRepo)
	require.NoError(t, err)
	f.cartSvc = cartSvc

	svc, err := NewService(Deps{
		Tx:      tx,
		Carts:   f.carts,
		Catalog: catalogRepo,
		Orders:  orders.NewRepository(conn),
		Outbox:  outbox.NewService(f.outbox, nil),
	}, Options{MaxAttempts: 3, BaseBackoff: time.Millisecond})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func intPtr(v int) *int { return &v }

func (f checkoutFixture) fillCart(t *testing.T, userID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := f.cartSvc.UpsertItem(ctx, userID, cart.UpsertItemInput{MealID: f.jollof.ID, Quantity: intPtr(2)})
	require.NoError(t, err)
	_, err = f.cartSvc.UpsertItem(ctx, userID, cart.UpsertItemInput{MealID: f.beans.ID, Plates: intPtr(2)})
	require.NoError(t, err)
}

func (f checkoutFixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(&models.Order{}).Count(&n).Error)
	return n
}

func validGift() *orders.GiftInput {
	return &orders.GiftInput{
		RecipientName:         "Ada Obi",
		RecipientMatricNumber: "190401001",
		WhatsAppNumber:        "08012345678",
	}
}

func TestExecuteCreatesPendingOrderAndClearsCart(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	userID := uuid.New()
	f.fillCart(t, userID)

	dto, err := f.svc.Execute(context.Background(), userID, Input{DeliveryTypeID: f.express.ID, LocationID: f.location.ID})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, dto.Status)
	assert.Equal(t, "9000.00", dto.TotalAmount)
	assert.Equal(t, "", dto.PaymentReference)
	assert.False(t, dto.IsGift)
	assert.Nil(t, dto.GiftDetails)
	assert.Equal(t, enums.DeliveryTypeExpress, dto.DeliveryType.Name)
	assert.Equal(t, enums.LocationHall1, dto.Location.Name)
	require.Len(t, dto.Items, 2)

	byMeal := map[uuid.UUID]orders.OrderItemDTO{}
	for _, item := range dto.Items {
		byMeal[item.MealID] = item
	}
	assert.Equal(t, "2500.00", byMeal[f.jollof.ID].UnitPrice)
	assert.Equal(t, "5000.00", byMeal[f.jollof.ID].TotalPrice)
	assert.Equal(t, "1500.00", byMeal[f.beans.ID].UnitPrice)
	assert.Equal(t, "3000.00", byMeal[f.beans.ID].TotalPrice)
	assert.Equal(t, 2, byMeal[f.beans.ID].Plates)

	snapshot, err := f.cartSvc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Items)
	assert.Equal(t, "0.00", snapshot.TotalAmount)
}

func TestExecuteQueuesOrderCreatedEvent(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	userID := uuid.New()
	f.fillCart(t, userID)

	dto, err := f.svc.Execute(context.Background(), userID, Input{DeliveryTypeID: f.regular.ID, LocationID: f.location.ID})
	require.NoError(t, err)

	events, err := f.outbox.ListByAggregate(context.Background(), dto.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)
	assert.Nil(t, events[0].PublishedAt)

	envelope, err := outbox.DecodeEnvelope(events[0].Payload)
	require.NoError(t, err)
	assert.Contains(t, string(envelope.Data), `"total_amount":"8500.00"`)
	assert.Contains(t, string(envelope.Data), `"item_count":2`)
}

func TestExecuteRejectsEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()
	input := Input{DeliveryTypeID: f.regular.ID, LocationID: f.location.ID}

	_, err := f.svc.Execute(ctx, uuid.New(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeEmptyCart), "missing cart: %v", err)

	userID := uuid.New()
	snapshot, err := f.cartSvc.UpsertItem(ctx, userID, cart.UpsertItemInput{MealID: f.jollof.ID})
	require.NoError(t, err)
	_, err = f.cartSvc.RemoveItem(ctx, userID, snapshot.Items[0].ID)
	require.NoError(t, err)

	_, err = f.svc.Execute(ctx, userID, input)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeEmptyCart), "empty cart: %v", err)
	assert.Zero(t, f.countOrders(t))
}

func TestExecuteRejectsTotalBeyondMoneyColumn(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	feast := models.Meal{Name: "Banquet", Price: decimal.NewFromInt(99_999_900), IsAvailable: true}
	require.NoError(t, f.client.DB().Create(&feast).Error)
	_, err := f.cartSvc.UpsertItem(ctx, userID, cart.UpsertItemInput{MealID: feast.ID})
	require.NoError(t, err, "the line alone still fits")

	_, err = f.svc.Execute(ctx, userID, Input{DeliveryTypeID: f.regular.ID, LocationID: f.location.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Zero(t, f.countOrders(t))

	snapshot, err := f.cartSvc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, snapshot.Items, 1)
}

func TestExecuteRejectsUnknownReferences(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	userID := uuid.New()
	f.fillCart(t, userID)
	ctx := context.Background()

	_, err := f.svc.Execute(ctx, userID, Input{DeliveryTypeID: uuid.New(), LocationID: f.location.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	assert.Contains(t, err.Error(), "delivery type")

	_, err = f.svc.Execute(ctx, userID, Input{DeliveryTypeID: f.regular.ID, LocationID: uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	assert.Contains(t, err.Error(), "location")

	assert.Zero(t, f.countOrders(t))
	snapshot, err := f.cartSvc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, snapshot.Items, 2)
}

func TestExecuteEmptyCartWinsOverUnknownReferences(t *testing.T) {
	f := newCheckoutFixture(t, nil)

	_, err := f.svc.Execute(context.Background(), uuid.New(), Input{DeliveryTypeID: uuid.New(), LocationID: uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeEmptyCart))
}

func TestExecuteInvalidGiftLeavesNoOrder(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	userID := uuid.New()
	f.fillCart(t, userID)
	ctx := context.Background()

	gift := validGift()
	gift.WhatsAppNumber = "8012345678"
	_, err := f.svc.Execute(ctx, userID, Input{
		DeliveryTypeID: f.regular.ID,
		LocationID:     f.location.ID,
		IsGift:         true,
		GiftDetails:    gift,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Execute(ctx, userID, Input{DeliveryTypeID: f.regular.ID, LocationID: f.location.ID, IsGift: true})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	assert.Zero(t, f.countOrders(t))
	var gifts int64
	require.NoError(t, f.client.DB().Model(&models.GiftDetails{}).Count(&gifts).Error)
	assert.Zero(t, gifts)
}

func TestExecuteGiftOrderStoresRecipient(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	userID := uuid.New()
	f.fillCart(t, userID)

	dto, err := f.svc.Execute(context.Background(), userID, Input{
		DeliveryTypeID: f.regular.ID,
		LocationID:     f.location.ID,
		IsGift:         true,
		GiftDetails:    validGift(),
	})
	require.NoError(t, err)
	assert.True(t, dto.IsGift)
	require.NotNil(t, dto.GiftDetails)
	assert.Equal(t, "Ada Obi", dto.GiftDetails.RecipientName)
	assert.Equal(t, "08012345678", dto.GiftDetails.WhatsAppNumber)
}

func TestExecuteIgnoresGiftPayloadWhenNotGift(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	userID := uuid.New()
	f.fillCart(t, userID)

	dto, err := f.svc.Execute(context.Background(), userID, Input{
		DeliveryTypeID: f.regular.ID,
		LocationID:     f.location.ID,
		GiftDetails:    &orders.GiftInput{RecipientName: "ignored"},
	})
	require.NoError(t, err)
	assert.False(t, dto.IsGift)
	assert.Nil(t, dto.GiftDetails)
}

func TestOrderItemsKeepPriceAfterMealChanges(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	userID := uuid.New()
	f.fillCart(t, userID)

	dto, err := f.svc.Execute(context.Background(), userID, Input{DeliveryTypeID: f.express.ID, LocationID: f.location.ID})
	require.NoError(t, err)

	conn := f.client.DB()
	require.NoError(t, conn.Model(&models.Meal{}).Where("id = ?", f.jollof.ID).Update("price", decimal.NewFromInt(9999)).Error)

	var items []models.OrderItem
	require.NoError(t, conn.Where("order_id = ? AND meal_id = ?", dto.ID, f.jollof.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.True(t, items[0].UnitPrice.Equal(decimal.NewFromInt(2500)), "unit price %s", items[0].UnitPrice)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", dto.ID).Error)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(9000)))
}

// The sqlite pool has one connection, so this checks the one-winner outcome.
// The cart row lock itself is covered by TestFindByUserForUpdateLocksRow.
func TestConcurrentCheckoutsCreateOneOrder(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	userID := uuid.New()
	f.fillCart(t, userID)
	input := Input{DeliveryTypeID: f.regular.ID, LocationID: f.location.ID}

	const callers = 2
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Execute(context.Background(), userID, input)
		}(i)
	}
	wg.Wait()

	var succeeded, empty int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.Is(err, pkgerrors.CodeEmptyCart):
			empty++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, empty)
	assert.EqualValues(t, 1, f.countOrders(t))
}

type conflictingTx struct {
	calls int
	fail  int
	next  txRunner
}

func (c *conflictingTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.calls++
	if c.calls <= c.fail || c.next == nil {
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	}
	return c.next.WithTx(ctx, fn)
}

type retryCounter struct {
	retries  int
	outcomes []string
}

func (r *retryCounter) ObserveCheckout(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func (r *retryCounter) IncCheckoutRetry() { r.retries++ }

func TestExecuteReturnsConflictAfterRetriesExhausted(t *testing.T) {
	tx := &conflictingTx{fail: 100}
	f := newCheckoutFixture(t, tx)
	recorder := &retryCounter{}
	svc, err := NewService(Deps{
		Tx:      tx,
		Carts:   f.carts,
		Catalog: catalog.NewRepository(f.client.DB()),
		Orders:  orders.NewRepository(f.client.DB()),
		Outbox:  outbox.NewService(f.outbox, nil),
		Metrics: recorder,
	}, Options{MaxAttempts: 3, BaseBackoff: time.Millisecond})
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), uuid.New(), Input{DeliveryTypeID: f.regular.ID, LocationID: f.location.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
	assert.Equal(t, 3, tx.calls)
	assert.Equal(t, 2, recorder.retries)
	assert.Equal(t, []string{"conflict"}, recorder.outcomes)
}

func TestExecuteSucceedsAfterTransientConflict(t *testing.T) {
	tx := &conflictingTx{fail: 1}
	f := newCheckoutFixture(t, tx)
	tx.next = f.client
	userID := uuid.New()
	f.fillCart(t, userID)

	dto, err := f.svc.Execute(context.Background(), userID, Input{DeliveryTypeID: f.express.ID, LocationID: f.location.ID})
	require.NoError(t, err)
	assert.Equal(t, "9000.00", dto.TotalAmount)
	assert.Equal(t, 2, tx.calls)
}

func TestExecuteRequiresUser(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	_, err := f.svc.Execute(context.Background(), uuid.Nil, Input{})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestNewServiceValidatesDeps(t *testing.T) {
	_, err := NewService(Deps{}, Options{})
	require.Error(t, err)
}

package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
	"github.com/dmehra2102/food-order-events/pkg/logging"
)

func newTestService(t *testing.T, cache Cache, codec Codec) (*Service, *store) {
	t.Helper()
	st := newStore()
	st.seed(domain.Restaurant{
		ID: 7, Name: "Spice Route", Email: "owner@spiceroute.test", Address: "12 Market St", Contact: "555-0107",
		MenuItems: []domain.MenuItem{
			{ID: 70, Name: "Paneer Tikka", Description: "grilled", PriceCents: 24950},
			{ID: 71, Name: "Naan", PriceCents: 300},
		},
	})
	return NewService(logging.Discard(), restaurantRepo{st}, menuRepo{st}, cache, codec), st
}

func TestGetRestaurant_MissPopulatesCache(t *testing.T) {
	cache := newMemCache()
	svc, st := newTestService(t, cache, nil)

	view, err := svc.GetRestaurant(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Spice Route", view.Name)
	require.Len(t, view.MenuItems, 2)
	assert.Equal(t, "249.50", view.MenuItems[0].Price)

	assert.True(t, cache.has("restaurant:7"))
	assert.Equal(t, RestaurantTTL, cache.ttls["restaurant:7"])
	assert.Equal(t, 1, st.gets)
}

func TestGetRestaurant_RepeatedReadsServedFromCache(t *testing.T) {
	cache := newMemCache()
	svc, st := newTestService(t, cache, nil)
	ctx := context.Background()

	first, err := svc.GetRestaurant(ctx, 7)
	require.NoError(t, err)
	raw := append([]byte(nil), cache.entries["restaurant:7"]...)

	second, err := svc.GetRestaurant(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, raw, cache.entries["restaurant:7"])
	assert.Equal(t, 1, st.gets, "second read must not touch the repository")
}

func TestGetRestaurant_NotFound(t *testing.T) {
	cache := newMemCache()
	svc, _ := newTestService(t, cache, nil)

	_, err := svc.GetRestaurant(context.Background(), 404)

	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Restaurant not found with id: 404", nf.Error())
	assert.False(t, cache.has("restaurant:404"))
}

func TestListRestaurants_CachedWithShorterTTL(t *testing.T) {
	cache := newMemCache()
	svc, st := newTestService(t, cache, nil)
	ctx := context.Background()

	views, err := svc.ListRestaurants(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, ListTTL, cache.ttls[AllKey])

	_, err = svc.ListRestaurants(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.lists)
}

func TestUpdateRestaurant_NoStaleReadAfterWrite(t *testing.T) {
	cache := newMemCache()
	svc, _ := newTestService(t, cache, nil)
	ctx := context.Background()

	_, err := svc.GetRestaurant(ctx, 7)
	require.NoError(t, err)
	_, err = svc.ListRestaurants(ctx)
	require.NoError(t, err)

	_, err = svc.UpdateRestaurant(ctx, 7, domain.RestaurantInput{
		Name: "Spice Route Express", Email: "owner@spiceroute.test", Address: "12 Market St", Contact: "555-0107",
	})
	require.NoError(t, err)
	assert.False(t, cache.has("restaurant:7"))
	assert.False(t, cache.has(AllKey))

	view, err := svc.GetRestaurant(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Spice Route Express", view.Name)
	assert.Len(t, view.MenuItems, 2, "nil menu input leaves the menu untouched")

	list, err := svc.ListRestaurants(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Spice Route Express", list[0].Name)
}

func TestUpdateRestaurant_ReplacesMenuWhenGiven(t *testing.T) {
	svc, _ := newTestService(t, newMemCache(), nil)

	view, err := svc.UpdateRestaurant(context.Background(), 7, domain.RestaurantInput{
		Name: "Spice Route", Email: "owner@spiceroute.test",
		MenuItems: []domain.MenuItemInput{{Name: "Thali", PriceCents: 1500}},
	})
	require.NoError(t, err)
	require.Len(t, view.MenuItems, 1)
	assert.Equal(t, "Thali", view.MenuItems[0].Name)
	assert.Equal(t, "15.00", view.MenuItems[0].Price)
}

func TestCreateRestaurant_InvalidatesList(t *testing.T) {
	cache := newMemCache()
	svc, _ := newTestService(t, cache, nil)
	ctx := context.Background()

	_, err := svc.ListRestaurants(ctx)
	require.NoError(t, err)

	created, err := svc.CreateRestaurant(ctx, domain.RestaurantInput{Name: "Noodle Bar", Email: "hi@noodle.test"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, cache.has(AllKey))

	list, err := svc.ListRestaurants(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreateRestaurant_Validation(t *testing.T) {
	svc, _ := newTestService(t, newMemCache(), nil)

	_, err := svc.CreateRestaurant(context.Background(), domain.RestaurantInput{Name: "", Email: "x@y"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteRestaurant(t *testing.T) {
	cache := newMemCache()
	svc, _ := newTestService(t, cache, nil)
	ctx := context.Background()

	_, err := svc.GetRestaurant(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRestaurant(ctx, 7))
	assert.False(t, cache.has("restaurant:7"))

	_, err = svc.GetRestaurant(ctx, 7)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.FindMenuItem(ctx, 70)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteRestaurant(ctx, 7), apperr.ErrNotFound)
}

func TestCacheFailuresFallBackToRepository(t *testing.T) {
	cache := newMemCache()
	cache.failGet = errCacheDown
	cache.failSet = errCacheDown
	cache.failDel = errCacheDown
	svc, st := newTestService(t, cache, nil)
	ctx := context.Background()

	view, err := svc.GetRestaurant(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Spice Route", view.Name)

	_, err = svc.GetRestaurant(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, st.gets)

	_, err = svc.UpdateRestaurant(ctx, 7, domain.RestaurantInput{Name: "Renamed", Email: "owner@spiceroute.test"})
	assert.NoError(t, err, "invalidation failure is not surfaced")
}

func TestCodecFailuresFallBackToRepository(t *testing.T) {
	cache := newMemCache()
	cache.entries["restaurant:7"] = []byte(`{"id":7,"name":"stale"}`)
	svc, st := newTestService(t, cache, brokenCodec{})

	view, err := svc.GetRestaurant(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Spice Route", view.Name)
	assert.Equal(t, 1, st.gets)
}

func TestMenuWritesInvalidateOwner(t *testing.T) {
	cache := newMemCache()
	svc, st := newTestService(t, cache, nil)
	ctx := context.Background()
	st.seed(domain.Restaurant{ID: 8, Name: "Taco Town", Email: "t@taco.test"})

	warm := func() {
		t.Helper()
		for _, id := range []int64{7, 8} {
			_, err := svc.GetRestaurant(ctx, id)
			require.NoError(t, err)
		}
		_, err := svc.ListRestaurants(ctx)
		require.NoError(t, err)
	}

	warm()
	added, err := svc.AddMenuItem(ctx, 7, domain.MenuItemInput{Name: "Lassi", PriceCents: 450})
	require.NoError(t, err)
	assert.Equal(t, "4.50", added.Price)
	assert.False(t, cache.has("restaurant:7"))
	assert.False(t, cache.has(AllKey))
	assert.True(t, cache.has("restaurant:8"))

	view, err := svc.GetRestaurant(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, view.MenuItems, 3)

	warm()
	newOwner := int64(8)
	_, err = svc.UpdateMenuItem(ctx, added.ID, domain.MenuItemInput{Name: "Lassi", PriceCents: 500, RestaurantID: &newOwner})
	require.NoError(t, err)
	assert.False(t, cache.has("restaurant:7"))
	assert.False(t, cache.has("restaurant:8"))

	warm()
	require.NoError(t, svc.DeleteMenuItem(ctx, added.ID))
	assert.False(t, cache.has("restaurant:8"))
	assert.True(t, cache.has("restaurant:7"))
}

func TestAddMenuItem_UnknownRestaurant(t *testing.T) {
	svc, _ := newTestService(t, newMemCache(), nil)

	_, err := svc.AddMenuItem(context.Background(), 99, domain.MenuItemInput{Name: "Ghost", PriceCents: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetMenuItemsByRestaurant(t *testing.T) {
	svc, _ := newTestService(t, newMemCache(), nil)
	ctx := context.Background()

	items, err := svc.GetMenuItemsByRestaurant(ctx, 7)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(70), items[0].ID)

	_, err = svc.GetMenuItemsByRestaurant(ctx, 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

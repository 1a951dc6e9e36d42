package application

import (
	"context"
	"fmt"

	"github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

// Menu items are part of the cached restaurant projection, so every menu write
// invalidates the owning restaurant's keys.

func (s *Service) AddMenuItem(ctx context.Context, restaurantID int64, in domain.MenuItemInput) (domain.MenuItemView, error) {
	if err := in.Validate(); err != nil {
		return domain.MenuItemView{}, err
	}
	if err := s.requireRestaurant(ctx, restaurantID); err != nil {
		return domain.MenuItemView{}, err
	}
	saved, err := s.menu.Create(ctx, domain.MenuItem{
		RestaurantID: restaurantID,
		Name:         in.Name,
		Description:  in.Description,
		PriceCents:   in.PriceCents,
	})
	if err != nil {
		return domain.MenuItemView{}, fmt.Errorf("failed to add menu item: %w", err)
	}
	s.invalidate(ctx, RestaurantKey(restaurantID), AllKey)
	return saved.View(), nil
}

func (s *Service) UpdateMenuItem(ctx context.Context, id int64, in domain.MenuItemInput) (domain.MenuItemView, error) {
	if err := in.Validate(); err != nil {
		return domain.MenuItemView{}, err
	}
	item, err := s.menu.Get(ctx, id)
	if err != nil {
		return domain.MenuItemView{}, err
	}
	previousOwner := item.RestaurantID
	item.Name = in.Name
	item.Description = in.Description
	item.PriceCents = in.PriceCents
	if in.RestaurantID != nil {
		if err := s.requireRestaurant(ctx, *in.RestaurantID); err != nil {
			return domain.MenuItemView{}, err
		}
		item.RestaurantID = *in.RestaurantID
	}
	saved, err := s.menu.Update(ctx, item)
	if err != nil {
		return domain.MenuItemView{}, fmt.Errorf("failed to update menu item: %w", err)
	}
	keys := []string{RestaurantKey(previousOwner), AllKey}
	if saved.RestaurantID != previousOwner {
		keys = append(keys, RestaurantKey(saved.RestaurantID))
	}
	s.invalidate(ctx, keys...)
	return saved.View(), nil
}

func (s *Service) DeleteMenuItem(ctx context.Context, id int64) error {
	item, err := s.menu.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.menu.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete menu item: %w", err)
	}
	s.invalidate(ctx, RestaurantKey(item.RestaurantID), AllKey)
	return nil
}

func (s *Service) GetMenuItemsByRestaurant(ctx context.Context, restaurantID int64) ([]domain.MenuItem, error) {
	if err := s.requireRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.menu.ListByRestaurant(ctx, restaurantID)
}

func (s *Service) FindMenuItem(ctx context.Context, id int64) (domain.MenuItem, error) {
	return s.menu.Get(ctx, id)
}

func (s *Service) requireRestaurant(ctx context.Context, id int64) error {
	ok, err := s.restaurants.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check restaurant: %w", err)
	}
	if !ok {
		return apperr.NotFound(apperr.KindRestaurant, id)
	}
	return nil
}

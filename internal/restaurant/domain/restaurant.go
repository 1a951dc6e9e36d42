package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

type MenuItem struct {
	ID           int64
	RestaurantID int64
	Name         string
	Description  string
	PriceCents   int64
}

// Restaurant owns its menu items; deleting it deletes them.
type Restaurant struct {
	ID        int64
	Name      string
	Email     string
	Address   string
	Contact   string
	MenuItems []MenuItem
}

// RestaurantView is the response projection that is also cached.
// Email is deliberately absent.
type RestaurantView struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Address   string         `json:"address"`
	Contact   string         `json:"contact"`
	MenuItems []MenuItemView `json:"menuItems,omitempty"`
}

type MenuItemView struct {
	ID           int64  `json:"id"`
	RestaurantID int64  `json:"restaurantId"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
}

func (r Restaurant) View() RestaurantView {
	v := RestaurantView{
		ID:      r.ID,
		Name:    r.Name,
		Address: r.Address,
		Contact: r.Contact,
	}
	for _, item := range r.MenuItems {
		v.MenuItems = append(v.MenuItems, item.View())
	}
	return v
}

func (m MenuItem) View() MenuItemView {
	return MenuItemView{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
		Description:  m.Description,
		Price:        FormatPrice(m.PriceCents),
	}
}

// FormatPrice renders minor units as a fixed two-decimal string.
func FormatPrice(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ParsePrice converts a decimal string such as "199.50" to minor units.
func ParsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, apperr.Validation("invalid price %q", s)
	}
	if d.IsNegative() {
		return 0, apperr.Validation("price must not be negative")
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return 0, apperr.Validation("price %q has more than two decimal places", s)
	}
	return d.Shift(2).IntPart(), nil
}

type RestaurantInput struct {
	Name      string
	Email     string
	Address   string
	Contact   string
	MenuItems []MenuItemInput // nil leaves the menu untouched on update
}

type MenuItemInput struct {
	Name         string
	Description  string
	PriceCents   int64
	RestaurantID *int64
}

func (in RestaurantInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("restaurant name is required")
	}
	if !strings.Contains(in.Email, "@") {
		return apperr.Validation("restaurant email is invalid")
	}
	for _, item := range in.MenuItems {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (in MenuItemInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("menu item name is required")
	}
	if in.PriceCents < 0 {
		return apperr.Validation("menu item price must not be negative")
	}
	return nil
}

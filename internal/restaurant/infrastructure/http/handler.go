package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/food-order-events/internal/restaurant/application"
	"github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	"github.com/dmehra2102/food-order-events/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

// menuItemReq accepts price as a JSON number or string; decimal keeps it exact.
type menuItemReq struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	RestaurantID *int64          `json:"restaurantId,omitempty"`
}

func (m menuItemReq) input() (domain.MenuItemInput, error) {
	cents, err := domain.ParsePrice(m.Price.String())
	if err != nil {
		return domain.MenuItemInput{}, err
	}
	return domain.MenuItemInput{Name: m.Name, Description: m.Description, PriceCents: cents, RestaurantID: m.RestaurantID}, nil
}

type restaurantReq struct {
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Address   string        `json:"address"`
	Contact   string        `json:"contact"`
	MenuItems []menuItemReq `json:"menuItems"`
}

func (r restaurantReq) input() (domain.RestaurantInput, error) {
	in := domain.RestaurantInput{Name: r.Name, Email: r.Email, Address: r.Address, Contact: r.Contact}
	if r.MenuItems == nil {
		return in, nil
	}
	in.MenuItems = make([]domain.MenuItemInput, 0, len(r.MenuItems))
	for _, m := range r.MenuItems {
		item, err := m.input()
		if err != nil {
			return domain.RestaurantInput{}, err
		}
		in.MenuItems = append(in.MenuItems, item)
	}
	return in, nil
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/restaurants", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Get("/{id}/menu", h.menu)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	r.Route("/menu-item", func(r chi.Router) {
		r.Post("/", h.addMenuItem)
		r.Get("/menu-items/{id}", h.getMenuItem)
		r.Put("/{id}", h.updateMenuItem)
		r.Delete("/{id}", h.deleteMenuItem)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListRestaurants(r.Context())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Restaurants fetched successfully!", views)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req restaurantReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	view, err := h.service.CreateRestaurant(r.Context(), in)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, "Restaurant added successfully!", view)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	view, err := h.service.GetRestaurant(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Restaurant fetched successfully!", view)
}

func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	items, err := h.service.GetMenuItemsByRestaurant(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	views := make([]domain.MenuItemView, 0, len(items))
	for _, item := range items {
		views = append(views, item.View())
	}
	httpx.JSON(w, http.StatusOK, "Menu fetched successfully!", views)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req restaurantReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	view, err := h.service.UpdateRestaurant(r.Context(), id, in)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Restaurant updated successfully!", view)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.service.DeleteRestaurant(r.Context(), id); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Restaurant deleted successfully!", nil)
}

func (h *Handler) addMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if req.RestaurantID == nil {
		httpx.JSON(w, http.StatusBadRequest, "restaurantId is required", nil)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	view, err := h.service.AddMenuItem(r.Context(), *req.RestaurantID, in)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, "Menu-item saved successfully!", view)
}

func (h *Handler) getMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	item, err := h.service.FindMenuItem(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Menu-item fetched successfully!", item.View())
}

func (h *Handler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req menuItemReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	view, err := h.service.UpdateMenuItem(r.Context(), id, in)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, "Menu-item updated successfully!", view)
}

func (h *Handler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.service.DeleteMenuItem(r.Context(), id); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

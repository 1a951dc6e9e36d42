package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	orderdomain "github.com/dmehra2102/food-order-events/internal/order/domain"
	"github.com/dmehra2102/food-order-events/internal/user/application"
	"github.com/dmehra2102/food-order-events/internal/user/domain"
	"github.com/dmehra2102/food-order-events/pkg/httpx"
)

// OrderHistory serves GET /users/{id}/orders.
type OrderHistory interface {
	GetUserOrders(ctx context.Context, userID int64) ([]orderdomain.Order, error)
}

type Handler struct {
	log     *slog.Logger
	service *application.Service
	orders  OrderHistory
}

func NewHandler(log *slog.Logger, service *application.Service, orders OrderHistory) *Handler {
	return &Handler{log: log, service: service, orders: orders}
}

type userReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/by-email/{email}", h.byEmail)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Get("/{id}/orders", h.userOrders)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Users fetched successfully!", users)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req userReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	u, err := h.service.CreateUser(r.Context(), domain.User{Name: req.Name, Email: req.Email})
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, "User created successfully!", u)
}

func (h *Handler) byEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "User fetched successfully!", u)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "User fetched successfully!", u)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req userReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	u, err := h.service.UpdateUser(r.Context(), id, domain.User{Name: req.Name, Email: req.Email})
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "User updated successfully!", u)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userOrders(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	orders, err := h.orders.GetUserOrders(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Orders fetched successfully!", orders)
}

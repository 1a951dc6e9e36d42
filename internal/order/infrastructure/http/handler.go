package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/food-order-events/internal/order/application"
	"github.com/dmehra2102/food-order-events/internal/order/domain"
	restaurantdomain "github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	"github.com/dmehra2102/food-order-events/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

type placeOrderReq struct {
	UserID       int64   `json:"userId"`
	RestaurantID int64   `json:"restaurantId"`
	MenuItemIDs  []int64 `json:"menuItemIds"`
}

type statusReq struct {
	Status string `json:"status"`
}

type itemResponse struct {
	MenuItemID int64  `json:"menuItemId"`
	Name       string `json:"name"`
	Price      string `json:"price"`
}

type orderResponse struct {
	ID           int64          `json:"id"`
	UserID       int64          `json:"userId"`
	RestaurantID int64          `json:"restaurantId"`
	Items        []itemResponse `json:"items"`
	TotalPrice   string         `json:"totalPrice"`
	Status       string         `json:"status"`
	OrderDate    time.Time      `json:"orderDate"`
}

func toResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		UserID:       o.UserID,
		RestaurantID: o.RestaurantID,
		Items:        make([]itemResponse, 0, len(o.Items)),
		TotalPrice:   restaurantdomain.FormatPrice(o.TotalCents),
		Status:       string(o.Status),
		OrderDate:    o.OrderDate,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, itemResponse{MenuItemID: item.MenuItemID, Name: item.Name, Price: restaurantdomain.FormatPrice(item.PriceCents)})
	}
	return resp
}

func toResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o))
	}
	return out
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/placeOrder", h.placeOrder)
		r.Get("/restaurant/{restaurantId}", h.byRestaurant)
		r.Get("/user/{userId}", h.byUser)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getStatus)
		r.Put("/{id}", h.overrideStatus)
		r.Delete("/{id}", h.cancelOrder)
		r.Delete("/{id}/purge", h.purgeOrder)
	})
	// Restaurant-facing links; GET so they work straight from the notification email.
	r.Route("/order/{id}", func(r chi.Router) {
		r.Get("/accept", h.accept)
		r.Get("/reject", h.reject)
		r.Put("/status", h.restaurantStatus)
	})
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	var req placeOrderReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	span.SetAttributes(attribute.Int64("user.id", req.UserID), attribute.Int64("restaurant.id", req.RestaurantID))

	o, err := h.service.PlaceOrder(ctx, req.UserID, req.RestaurantID, req.MenuItemIDs)
	if err != nil {
		span.RecordError(err)
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, "Order placed successfully", toResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	o, err := h.service.GetOrderDetails(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Order fetched", toResponse(o))
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	status, err := h.service.GetOrderStatus(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Order status fetched", map[string]string{"status": string(status)})
}

func (h *Handler) byRestaurant(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "restaurantId")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	orders, err := h.service.GetOrdersByRestaurant(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Orders fetched", toResponses(orders))
}

func (h *Handler) byUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "userId")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	orders, err := h.service.GetUserOrders(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Orders fetched", toResponses(orders))
}

func (h *Handler) overrideStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req statusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	o, err := h.service.OverrideStatus(r.Context(), id, status)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Order status updated", toResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	o, err := h.service.CancelOrder(ctx, id)
	if err != nil {
		span.RecordError(err)
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Order cancelled", toResponse(o))
}

func (h *Handler) purgeOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.service.PurgeOrder(r.Context(), id); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, "Order purged", nil)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	h.restaurantDecision(w, r, domain.StatusAccepted, "Order accepted")
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.restaurantDecision(w, r, domain.StatusRejected, "Order rejected")
}

func (h *Handler) restaurantStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	h.restaurantDecision(w, r, status, "Order status updated")
}

func (h *Handler) restaurantDecision(w http.ResponseWriter, r *http.Request, next domain.OrderStatus, message string) {
	ctx, span := h.tracer.Start(r.Context(), "RestaurantDecision")
	defer span.End()

	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	span.SetAttributes(attribute.Int64("order.id", id), attribute.String("order.next_status", string(next)))

	o, err := h.service.UpdateStatusForRestaurant(ctx, id, next)
	if err != nil {
		span.RecordError(err)
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, message, toResponse(o))
}

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/istominvi/shaurmaniya/internal/checkout"
	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/service"
)

const maxBodyBytes = 1 << 20

// Handler handles HTTP requests for the storefront.
type Handler struct {
	storefront *service.Storefront
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewHandler(storefront *service.Storefront, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		storefront: storefront,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Router builds the chi router with the full middleware stack.
func (h *Handler) Router(corsOrigins string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(EnableCORS(corsOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/products", h.handleGetProducts)
		r.Get("/categories", h.handleGetCategories)
		r.Get("/branches", h.handleGetBranches)
		r.Post("/configurator/quote", h.handleQuote)

		r.Group(func(r chi.Router) {
			r.Use(Session)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.handleGetCart)
				r.Delete("/", h.handleClearCart)
				r.Post("/items", h.handleAddItem)
				r.Patch("/items/{id}", h.handleUpdateQuantity)
				r.Delete("/items/{id}", h.handleRemoveItem)
				r.Put("/location", h.handleSetLocation)
			})
			r.Post("/checkout", h.handleCheckout)
		})
	})

	return r
}

func (h *Handler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.storefront.Products(r.URL.Query().Get("category")))
}

func (h *Handler) handleGetCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.storefront.Categories())
}

func (h *Handler) handleGetBranches(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.storefront.Branches())
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var sel service.Selection
	if !h.decode(w, r, &sel) {
		return
	}

	quote, err := h.storefront.Quote(r.Context(), sel)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.storefront.Cart(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type AddItemResponse struct {
	Item entity.CartItem  `json:"item"`
	Cart service.CartView `json:"cart"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var sel service.Selection
	if !h.decode(w, r, &sel) {
		return
	}

	item, view, err := h.storefront.AddToCart(r.Context(), SessionID(r.Context()), sel)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, AddItemResponse{Item: item, Cart: view})
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=99"`
}

func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.storefront.UpdateQuantity(r.Context(), SessionID(r.Context()), chi.URLParam(r, "id"), *req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.storefront.RemoveItem(r.Context(), SessionID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.storefront.ClearCart(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type LocationRequest struct {
	Type        entity.LocationType `json:"type" validate:"required,oneof=delivery pickup"`
	Address     string              `json:"address" validate:"max=500"`
	Coordinates *entity.Coordinates `json:"coordinates"`
}

func (h *Handler) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if !h.decode(w, r, &req) {
		return
	}

	loc := entity.LocationInfo{Type: req.Type, Address: req.Address, Coordinates: req.Coordinates}
	view, err := h.storefront.SetLocation(r.Context(), SessionID(r.Context()), loc)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type CheckoutResponse struct {
	Status   string              `json:"status"`
	Order    entity.OrderPayload `json:"order"`
	ClearsAt time.Time           `json:"clearsAt"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var form checkout.Form
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&form); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	res, err := h.storefront.Checkout(r.Context(), SessionID(r.Context()), form)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponse{
		Status:   checkout.StateSucceeded.String(),
		Order:    res.Payload,
		ClearsAt: res.ClearsAt,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{service.ErrVariantNotFound, http.StatusBadRequest, "variant_not_found"},
	{service.ErrOptionNotFound, http.StatusBadRequest, "option_not_found"},
	{service.ErrIncompleteConfiguration, http.StatusUnprocessableEntity, "incomplete_configuration"},
	{service.ErrProductUnavailable, http.StatusConflict, "product_unavailable"},
	{service.ErrInvalidLocation, http.StatusBadRequest, "invalid_location"},
	{service.ErrInvalidSession, http.StatusBadRequest, "invalid_session"},
	{checkout.ErrPolicyNotAccepted, http.StatusUnprocessableEntity, "policy_not_accepted"},
	{checkout.ErrInvalidForm, http.StatusBadRequest, "invalid_form"},
	{checkout.ErrEmptyCart, http.StatusConflict, "empty_cart"},
	{checkout.ErrSubmissionInProgress, http.StatusConflict, "submission_in_progress"},
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			respondErrorJSON(w, m.status, m.code, err.Error())
			return
		}
	}

	var de *checkout.DispatchError
	if errors.As(err, &de) {
		if checkout.IsRetryable(err) {
			w.Header().Set("Retry-After", "5")
			respondErrorJSON(w, http.StatusServiceUnavailable, "order_dispatch_retryable", "order could not be sent, please try again")
			return
		}
		respondErrorJSON(w, http.StatusBadGateway, "order_dispatch_failed", "order was rejected")
		return
	}

	h.logger.Error("Request failed", "path", r.URL.Path, "err", err)
	respondErrorJSON(w, http.StatusInternalServerError, "internal", "internal server error")
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondErrorJSON(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

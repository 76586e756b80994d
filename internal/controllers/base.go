package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TenHe10/CruchCount/internal/cart"
	"github.com/TenHe10/CruchCount/internal/catalog"
	"github.com/TenHe10/CruchCount/internal/middleware"
	"github.com/TenHe10/CruchCount/internal/models"
)

// Storage interface for catalog operations
type Storage interface {
	Upsert(ctx context.Context, barcode, name string, price decimal.Decimal) error
	Get(ctx context.Context, barcode string) (*models.Product, error)
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
	Ping(ctx context.Context) bool
	Close() bool
}

// Basket interface for cart operations
type Basket interface {
	Add(ctx context.Context, barcode string, resolve models.PriceResolver) (*models.CartLine, error)
	SetQuantity(barcode string, quantity int64) (*models.CartLine, error)
	Decrement(barcode string) *models.CartLine
	Remove(barcode string)
	Clear()
	Checkout() (*models.Receipt, error)
	Lines() []models.CartLine
	Totals() (int64, decimal.Decimal)
	SwapCatalog(catalog cart.Catalog)
}

// StoreOpener opens and fully validates a catalog store at path. It is only
// called when the operator switches the backing file at runtime.
type StoreOpener func(ctx context.Context, path string) (Storage, error)

// Log interface for logging
type Log interface {
	Info(string, ...zapcore.Field)
}

// BaseController struct for handling requests
type BaseController struct {
	ctx       context.Context
	mx        sync.Mutex // guards storage rebinding
	storage   Storage
	basket    Basket
	openStore StoreOpener
	log       Log
}

// NewBaseController creates a new BaseController instance
func NewBaseController(ctx context.Context, storage Storage, basket Basket, openStore StoreOpener, log Log) *BaseController {
	return &BaseController{
		ctx:       ctx,
		storage:   storage,
		basket:    basket,
		openStore: openStore,
		log:       log,
	}
}

// Route sets up the routes for the BaseController
func (h *BaseController) Route() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/ping", h.getPing)

	r.Route("/api/v0", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.CompressResponseMiddleware)
			r.Get("/products", h.getProducts)
		})
		r.Post("/products", h.postProduct)
		r.Get("/products/{barcode}", h.getProduct)
		r.Post("/catalog/store", h.postStore)

		r.Get("/cart", h.getCart)
		r.Delete("/cart", h.deleteCart)
		r.Post("/cart/items", h.postCartItem)
		r.Patch("/cart/items/{barcode}", h.patchCartItem)
		r.Post("/cart/items/{barcode}/decrement", h.postDecrement)
		r.Delete("/cart/items/{barcode}", h.deleteCartItem)
		r.Post("/cart/checkout", h.postCheckout)
	})

	return r
}

func (h *BaseController) store() Storage {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.storage
}

// postProduct registers or overwrites a product. The response distinguishes
// a new registration (201) from an overwrite (200), the way the inventory
// form reported "added" versus "overwritten".
func (h *BaseController) postProduct(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	store := h.store()

	existing, err := store.Get(h.ctx, strings.TrimSpace(req.Barcode))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to check product: %v", err))
		return
	}

	if err := store.Upsert(h.ctx, req.Barcode, req.Name, req.Price); err != nil {
		if errors.Is(err, catalog.ErrValidation) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save product: %v", err))
		return
	}

	status := http.StatusCreated
	result := "created"
	if existing != nil {
		status = http.StatusOK
		result = "updated"
	}
	h.respond(w, status, map[string]string{"status": result})
}

func (h *BaseController) getProduct(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	product, err := h.store().Get(h.ctx, barcode)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to retrieve product: %v", err))
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	h.respond(w, http.StatusOK, product)
}

func (h *BaseController) getProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	products, err := h.store().Search(h.ctx, query, limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to search products: %v", err))
		return
	}

	suggestions := make([]models.ProductSuggestion, 0, len(products))
	for _, p := range products {
		suggestions = append(suggestions, models.ProductSuggestion{
			Product: p,
			Display: fmt.Sprintf("%s | %s | %s", p.Barcode, p.Name, p.Price.StringFixed(2)),
		})
	}

	h.respond(w, http.StatusOK, suggestions)
}

// postStore switches the catalog to a different backing file. The new store
// is opened and validated before the old one is released, so a failed open
// keeps the previous store fully usable.
func (h *BaseController) postStore(w http.ResponseWriter, r *http.Request) {
	var req models.SwitchStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	path := strings.TrimSpace(req.Path)
	if path == "" {
		h.respondError(w, http.StatusBadRequest, "path is empty")
		return
	}

	newStore, err := h.openStore(h.ctx, path)
	if err != nil {
		h.respondError(w, http.StatusConflict, fmt.Sprintf("failed to open store, previous store kept: %v", err))
		return
	}

	h.mx.Lock()
	old := h.storage
	h.storage = newStore
	h.mx.Unlock()

	h.basket.SwapCatalog(newStore)
	if old != nil {
		old.Close()
	}

	h.respond(w, http.StatusOK, map[string]string{"path": path})
}

func (h *BaseController) getCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.cartView())
}

// postCartItem resolves a barcode into a cart line. An unknown barcode
// without a one-off price answers 404 with needs_price set, telling the
// client to prompt the operator and retry with a price; retrying with a price
// creates a temporary line that is never persisted to the catalog.
func (h *BaseController) postCartItem(w http.ResponseWriter, r *http.Request) {
	var req models.AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	barcode := strings.TrimSpace(req.Barcode)

	var resolve models.PriceResolver
	if req.Price != nil {
		price := *req.Price
		resolve = func(string) (decimal.Decimal, bool) {
			return price, true
		}
	}

	line, err := h.basket.Add(h.ctx, barcode, resolve)
	switch {
	case errors.Is(err, cart.ErrInvalidBarcode), errors.Is(err, cart.ErrInvalidPrice):
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to add to cart: %v", err))
		return
	case line == nil:
		h.respond(w, http.StatusNotFound, map[string]any{
			"barcode":     barcode,
			"needs_price": true,
		})
		return
	}

	h.respond(w, http.StatusOK, lineView(*line))
}

func (h *BaseController) patchCartItem(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	var req models.SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	line, err := h.basket.SetQuantity(barcode, req.Quantity)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if line == nil {
		h.respondError(w, http.StatusNotFound, "line not found")
		return
	}

	h.respond(w, http.StatusOK, lineView(*line))
}

func (h *BaseController) postDecrement(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	line := h.basket.Decrement(barcode)
	if line == nil {
		h.respond(w, http.StatusOK, map[string]any{
			"barcode": barcode,
			"removed": true,
		})
		return
	}

	h.respond(w, http.StatusOK, lineView(*line))
}

func (h *BaseController) deleteCartItem(w http.ResponseWriter, r *http.Request) {
	h.basket.Remove(chi.URLParam(r, "barcode"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *BaseController) deleteCart(w http.ResponseWriter, r *http.Request) {
	h.basket.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *BaseController) postCheckout(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.basket.Checkout()
	if err != nil {
		if errors.Is(err, cart.ErrEmptyCart) {
			h.respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to checkout: %v", err))
		return
	}

	h.respond(w, http.StatusOK, receipt)
}

func (h *BaseController) getPing(w http.ResponseWriter, r *http.Request) {
	if !h.store().Ping(h.ctx) {
		h.respondError(w, http.StatusInternalServerError, "catalog store unavailable")
		return
	}
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BaseController) cartView() models.CartView {
	lines := h.basket.Lines()
	quantity, amount := h.basket.Totals()

	views := make([]models.CartLineView, 0, len(lines))
	for _, line := range lines {
		views = append(views, lineView(line))
	}

	return models.CartView{
		Lines:         views,
		TotalQuantity: quantity,
		TotalAmount:   amount,
	}
}

func lineView(line models.CartLine) models.CartLineView {
	return models.CartLineView{
		CartLine: line,
		Subtotal: line.Subtotal(),
	}
}

func (h *BaseController) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Info("Failed to encode response", zap.Error(err))
	}
}

func (h *BaseController) respondError(w http.ResponseWriter, status int, msg string) {
	h.respond(w, status, map[string]string{"error": msg})
}

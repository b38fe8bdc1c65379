package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/safar/farm-market/internal/cache"
	"github.com/safar/farm-market/internal/database"
	"github.com/safar/farm-market/internal/events"
	"github.com/safar/farm-market/internal/models"
	"github.com/safar/farm-market/internal/store"
	"github.com/shopspring/decimal"
)

type api struct {
	db        *sql.DB
	catalog   *cache.Catalog
	publisher *events.Publisher
}

func (a *api) register(r *chi.Mux) {
	r.Post("/users", a.createUser)
	r.Get("/users/{id}", a.getUser)
	r.Get("/me", a.getProfile)
	r.Put("/me", a.updateProfile)

	r.Get("/products", a.listAvailableProducts)
	r.Post("/products", a.createProduct)
	r.Get("/products/{id}", a.getProduct)
	r.Put("/products/{id}", a.updateProduct)
	r.Delete("/products/{id}", a.deleteProduct)
	r.Post("/products/{id}/toggle", a.toggleProduct)
	r.Put("/products/{id}/image", a.updateProductImage)
	r.Get("/farmers/{id}/products", a.listFarmerProducts)
	r.Get("/my/products", a.listOwnProducts)

	r.Post("/orders", a.createOrder)
	r.Get("/orders", a.listOrders)
	r.Get("/orders/{id}", a.getOrder)
	r.Post("/orders/{id}/confirm", a.transitionHandler(store.ConfirmOrder, events.TypeOrderConfirmed))
	r.Post("/orders/{id}/reject", a.transitionHandler(store.RejectOrder, events.TypeOrderRejected))
	r.Post("/orders/{id}/complete", a.transitionHandler(store.CompleteOrder, events.TypeOrderCompleted))
	r.Post("/orders/{id}/cancel", a.transitionHandler(store.CancelOrder, events.TypeOrderCancelled))

	r.Get("/stats", a.getStats)
}

func (a *api) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Role     string `json:"role"`
		Address  string `json:"address"`
		State    string `json:"state"`
		District string `json:"district"`
		Phone    string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := store.CreateUser(r.Context(), a.db, store.CreateUserRequest{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		Address:  req.Address,
		State:    req.State,
		District: req.District,
		Phone:    req.Phone,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (a *api) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := store.GetUser(r.Context(), a.db, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (a *api) getProfile(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}

	user, err := store.GetUserByEmail(r.Context(), a.db, email)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (a *api) updateProfile(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Address  *string `json:"address"`
		State    *string `json:"state"`
		District *string `json:"district"`
		Phone    *string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := store.UpdateProfile(r.Context(), a.db, email, store.ProfileUpdate{
		Name:     req.Name,
		Address:  req.Address,
		State:    req.State,
		District: req.District,
		Phone:    req.Phone,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

type productRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Unit         string          `json:"unit"`
	QtyAvailable decimal.Decimal `json:"qty_available"`
}

func (p productRequest) input() store.ProductInput {
	return store.ProductInput{
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		Unit:         p.Unit,
		QtyAvailable: p.QtyAvailable,
	}
}

func (a *api) createProduct(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := store.CreateProduct(r.Context(), a.db, email, req.input())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.catalog.Invalidate(r.Context())
	respondJSON(w, http.StatusCreated, product)
}

func (a *api) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	product, err := store.GetProduct(r.Context(), a.db, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (a *api) listAvailableProducts(w http.ResponseWriter, r *http.Request) {
	if products, ok := a.catalog.GetAvailable(r.Context()); ok {
		respondJSON(w, http.StatusOK, products)
		return
	}

	products, err := store.ListAvailableProducts(r.Context(), a.db)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.catalog.SetAvailable(r.Context(), products)
	respondJSON(w, http.StatusOK, products)
}

func (a *api) listFarmerProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	products, err := store.ListProductsByFarmer(r.Context(), a.db, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (a *api) listOwnProducts(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}

	products, err := store.ListOwnProducts(r.Context(), a.db, email)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (a *api) updateProduct(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := store.UpdateProduct(r.Context(), a.db, email, id, req.input())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.catalog.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, product)
}

func (a *api) deleteProduct(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := store.DeleteProduct(r.Context(), a.db, email, id); err != nil {
		respondStoreError(w, err)
		return
	}

	a.catalog.Invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) toggleProduct(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	product, err := store.ToggleProductActive(r.Context(), a.db, email, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.catalog.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, product)
}

func (a *api) updateProductImage(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := store.UpdateProductImage(r.Context(), a.db, email, id, req.ImageURL)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.catalog.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, product)
}

func (a *api) createOrder(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}

	var req struct {
		FarmerID int64 `json:"farmer_id"`
		Items    []struct {
			ProductID int64           `json:"product_id"`
			Quantity  decimal.Decimal `json:"quantity"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	items := make([]store.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, store.OrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := store.CreateOrder(r.Context(), a.db, email, store.CreateOrderRequest{
		FarmerID: req.FarmerID,
		Items:    items,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	a.publishOrderEvent(events.TypeOrderCreated, order)
	respondJSON(w, http.StatusCreated, order)
}

func (a *api) listOrders(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}

	roleView := r.URL.Query().Get("role")
	if roleView == "" {
		user, err := store.GetUserByEmail(r.Context(), a.db, email)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		roleView = user.Role
	}

	orders, err := store.ListOrders(r.Context(), a.db, email, roleView, r.URL.Query().Get("status"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

func (a *api) getOrder(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := store.GetOrder(r.Context(), a.db, email, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

type transitionFunc func(ctx context.Context, db *sql.DB, actorEmail string, orderID int64) (*store.OrderView, error)

func (a *api) transitionHandler(fn transitionFunc, eventType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := actorEmail(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		order, err := fn(r.Context(), a.db, email, id)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		a.publishOrderEvent(eventType, order)
		respondJSON(w, http.StatusOK, order)
	}
}

func (a *api) getStats(w http.ResponseWriter, r *http.Request) {
	email, ok := actorEmail(w, r)
	if !ok {
		return
	}

	roleView := r.URL.Query().Get("role")
	if roleView == "" {
		user, err := store.GetUserByEmail(r.Context(), a.db, email)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		roleView = user.Role
	}

	if strings.ToUpper(roleView) == models.RoleFarmer {
		stats, err := store.GetFarmerStats(r.Context(), a.db, email)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, stats)
		return
	}

	stats, err := store.GetBuyerStats(r.Context(), a.db, email)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (a *api) publishOrderEvent(eventType string, order *store.OrderView) {
	a.publisher.PublishOrderEvent(eventType, events.OrderPayload{
		OrderID:     order.ID,
		BuyerID:     order.Buyer.ID,
		FarmerID:    order.Farmer.ID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
	})
}

func actorEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := r.Header.Get("X-Account-Email")
	if email == "" {
		respondError(w, http.StatusUnauthorized, "Missing X-Account-Email header")
		return "", false
	}
	return email, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}

func respondStoreError(w http.ResponseWriter, err error) {
	var stockErr *store.InsufficientStockError
	if errors.As(err, &stockErr) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":     stockErr.Error(),
			"product":   stockErr.ProductName,
			"available": stockErr.Available,
			"unit":      stockErr.Unit,
		})
		return
	}

	var valErr *store.ValidationError
	if errors.As(err, &valErr) {
		respondError(w, http.StatusBadRequest, valErr.Msg)
		return
	}

	var authErr *store.AuthorizationError
	if errors.As(err, &authErr) {
		respondError(w, http.StatusForbidden, authErr.Msg)
		return
	}

	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrConcurrencyConflict):
		respondError(w, http.StatusConflict, "Concurrent update, please retry")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

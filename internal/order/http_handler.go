package order

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPHandler is thin ingress: decode, call Service, encode. Full HTTP
// routing is out of scope (spec §1); this is the minimum needed to create
// and look up an order.
type HTTPHandler struct {
	service *Service
}

// NewHTTPHandler wires an HTTPHandler.
func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type createOrderBody struct {
	UserID     string `json:"user_id"`
	SupplierID string `json:"supplier_id"`
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	Items      string `json:"items"`
}

// Create handles POST /orders.
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createOrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	o, err := h.service.CreateOrder(r.Context(), CreateOrderRequest{
		UserID: body.UserID, SupplierID: body.SupplierID,
		ProductID: body.ProductID, Qty: body.Qty, Items: body.Items,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(o)
}

// Get handles GET /orders/{id}, where id is supplied via r.PathValue("id").
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o)
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lavka/internal/repository"
	"lavka/internal/service"
)

const testLocation = "Tverskaya 7, 125009, Moscow, Moscow, RU"

func setupServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	customers := repository.NewMemoryCustomers(store)
	orders := repository.NewMemoryOrders(store)
	payments := repository.NewMemoryPayments(store)
	shipments := repository.NewMemoryShipments(store)
	invoices := repository.NewMemoryInvoices(store)
	carts := repository.NewMemoryCarts(store)

	checkout := service.NewCheckoutService(service.CheckoutDeps{
		Builder:    service.NewOrderAggregateBuilder(store, customers, carts, 100),
		Ledger:     service.NewStockLedger(store),
		Customers:  customers,
		Orders:     orders,
		Payments:   payments,
		Shipments:  shipments,
		Invoices:   invoices,
		Carts:      carts,
		Tx:         repository.NewMemoryTx(store),
		VATPercent: 15,
	})

	return NewServer(
		service.NewProductService(store),
		service.NewCustomerService(customers),
		service.NewCartService(carts, store, customers),
		checkout,
		nil,
	)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type idHolder struct {
	ID int64 `json:"id"`
}

func createProduct(t *testing.T, s *Server, name string, price float64, stock int64) int64 {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/products",
		gin.H{"name": name, "sku": "SKU-" + name, "price": price, "stock": stock})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[idHolder](t, w).ID
}

func createCustomer(t *testing.T, s *Server) int64 {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/customers",
		gin.H{"name": "Ivan", "email": "ivan@example.com", "address": testLocation})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[idHolder](t, w).ID
}

func TestProductEndpoints(t *testing.T) {
	s := setupServer(t)
	id := createProduct(t, s, "Kettle", 1500, 3)

	w := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/products/%d", id), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPut, fmt.Sprintf("/api/v1/products/%d", id),
		gin.H{"name": "Kettle", "sku": "SKU-Kettle", "price": 1700, "stock": 3})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/products?q=ket", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", id), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/products/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCustomer_BadAddressRejected(t *testing.T) {
	s := setupServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/v1/customers",
		gin.H{"name": "Ivan", "address": "Moscow only"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDirectCheckoutFlow(t *testing.T) {
	s := setupServer(t)
	custID := createCustomer(t, s)
	prodID := createProduct(t, s, "Kettle", 200, 5)

	order := gin.H{
		"customer_id":       custID,
		"delivery_location": testLocation,
		"delivery_charge":   100,
		"total_price":       500,
		"payment_method":    "cash",
		"items": []gin.H{
			{"product_id": prodID, "quantity": 2, "price": 200},
		},
	}
	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", order)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[service.CheckoutResult](t, w)
	assert.Equal(t, "Processed", string(res.Status))

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", res.OrderID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d/invoice", res.OrderID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDirectCheckout_ErrorMapping(t *testing.T) {
	s := setupServer(t)
	custID := createCustomer(t, s)
	prodID := createProduct(t, s, "Kettle", 200, 1)

	base := func(total float64, qty int64) gin.H {
		return gin.H{
			"customer_id":       custID,
			"delivery_location": testLocation,
			"delivery_charge":   100,
			"total_price":       total,
			"payment_method":    "cash",
			"items":             []gin.H{{"product_id": prodID, "quantity": qty, "price": 200}},
		}
	}

	// заявленный итог не сходится с пересчитанным
	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", base(999, 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// остатка не хватает
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", base(500, 2))
	assert.Equal(t, http.StatusConflict, w.Code)

	// неизвестный способ оплаты
	bad := base(300, 1)
	bad["payment_method"] = "bitcoin"
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// пустой заказ
	empty := base(100, 1)
	empty["items"] = []gin.H{}
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", empty)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// несуществующий товар
	ghost := base(300, 1)
	ghost["items"] = []gin.H{{"product_id": 999, "quantity": 1, "price": 200}}
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", ghost)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartCheckoutFlow(t *testing.T) {
	s := setupServer(t)
	custID := createCustomer(t, s)
	prodID := createProduct(t, s, "Kettle", 200, 5)

	w := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/customers/%d/cart", custID),
		gin.H{"product_id": prodID, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	itemID := decode[idHolder](t, w).ID

	w = doJSON(t, s, http.MethodPost, "/api/v1/cart-checkout",
		gin.H{"customer_id": custID, "payment_method": "cash", "cart_ids": []int64{itemID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[service.CheckoutResult](t, w)
	assert.InEpsilon(t, 2*200+100.0, res.TotalPrice, 1e-6)

	// корзина потреблена
	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/customers/%d/cart", custID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestConfirmPaymentFlow(t *testing.T) {
	s := setupServer(t)
	custID := createCustomer(t, s)
	prodID := createProduct(t, s, "Kettle", 200, 5)

	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id":       custID,
		"delivery_location": testLocation,
		"delivery_charge":   100,
		"total_price":       300,
		"payment_method":    "card",
		"items":             []gin.H{{"product_id": prodID, "quantity": 1, "price": 200}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[service.CheckoutResult](t, w)

	// счёт появляется только после подтверждения оплаты
	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d/invoice", res.OrderID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/confirm-payment", res.OrderID),
		gin.H{"transaction_id": "ext-1"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d/invoice", res.OrderID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/confirm-payment", res.OrderID),
		gin.H{"transaction_id": "ext-2"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdvanceOrderEndpoint(t *testing.T) {
	s := setupServer(t)
	custID := createCustomer(t, s)
	prodID := createProduct(t, s, "Kettle", 200, 5)

	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id":       custID,
		"delivery_location": testLocation,
		"delivery_charge":   100,
		"total_price":       300,
		"payment_method":    "cash",
		"items":             []gin.H{{"product_id": prodID, "quantity": 1, "price": 200}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[service.CheckoutResult](t, w)

	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/status", res.OrderID),
		gin.H{"status": "AwaitingDelivery"})
	assert.Equal(t, http.StatusOK, w.Code)

	// недопустимый переход
	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/status", res.OrderID),
		gin.H{"status": "Processed"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// неизвестный статус
	w = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/status", res.OrderID),
		gin.H{"status": "Lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

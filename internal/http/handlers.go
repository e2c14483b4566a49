package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"lavka/internal/domain"
	"lavka/internal/repository"
	"lavka/internal/service"
)

type Server struct {
	engine    *gin.Engine
	products  *service.ProductService
	customers *service.CustomerService
	carts     *service.CartService
	checkout  *service.CheckoutService
	metrics   http.Handler
}

func NewServer(products *service.ProductService, customers *service.CustomerService,
	carts *service.CartService, checkout *service.CheckoutService, metrics http.Handler) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	s := &Server{
		engine:    r,
		products:  products,
		customers: customers,
		carts:     carts,
		checkout:  checkout,
		metrics:   metrics,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := s.engine.Group("/api/v1")
	{
		products := v1.Group("/products")
		products.POST("", s.createProduct)
		products.GET(":id", s.getProduct)
		products.PUT(":id", s.updateProduct)
		products.DELETE(":id", s.deleteProduct)
		products.GET("", s.listProducts)

		customers := v1.Group("/customers")
		customers.POST("", s.createCustomer)
		customers.GET(":id", s.getCustomer)
		customers.POST(":id/cart", s.addCartItem)
		customers.GET(":id/cart", s.listCart)

		orders := v1.Group("/orders")
		orders.POST("", s.createOrder)
		orders.GET(":id", s.getOrder)
		orders.GET(":id/invoice", s.getInvoice)
		orders.POST(":id/confirm-payment", s.confirmPayment)
		orders.POST(":id/status", s.advanceOrder)

		v1.POST("/cart-checkout", s.cartCheckout)
	}
}

// Product handlers
type createProductReq struct {
	Name  string  `json:"name"`
	SKU   string  `json:"sku"`
	Price float64 `json:"price"`
	Stock int64   `json:"stock"`
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param input body createProductReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Create(c, domain.Product{Name: req.Name, SKU: req.SKU, Price: req.Price, Stock: req.Stock})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	p, err := s.products.GetByID(c, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type updateProductReq struct {
	Name  string  `json:"name"`
	SKU   string  `json:"sku"`
	Price float64 `json:"price"`
	Stock int64   `json:"stock"`
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param input body updateProductReq true "Update"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req updateProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Update(c, domain.Product{ID: id, Name: req.Name, SKU: req.SKU, Price: req.Price, Stock: req.Stock})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags products
// @Param id path int true "Product ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.products.Delete(c, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags products
// @Produce json
// @Param q query string false "Name contains"
// @Param min_price query number false "Min price"
// @Param max_price query number false "Max price"
// @Success 200 {array} domain.Product
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	var f repository.ProductFilter
	if q := c.Query("q"); q != "" {
		f.NameSubstring = q
	}
	if v := c.Query("min_price"); v != "" {
		if x, err := strconv.ParseFloat(v, 64); err == nil {
			f.MinPrice = &x
		}
	}
	if v := c.Query("max_price"); v != "" {
		if x, err := strconv.ParseFloat(v, 64); err == nil {
			f.MaxPrice = &x
		}
	}
	list, err := s.products.List(c, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// Customer handlers
type createCustomerReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// @Summary Create customer
// @Tags customers
// @Accept json
// @Produce json
// @Param input body createCustomerReq true "Customer"
// @Success 201 {object} domain.Customer
// @Failure 400 {object} map[string]string
// @Router /customers [post]
func (s *Server) createCustomer(c *gin.Context) {
	var req createCustomerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cust, err := s.customers.Create(c, domain.Customer{Name: req.Name, Email: req.Email, Address: req.Address})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cust)
}

// @Summary Get customer by id
// @Tags customers
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} domain.Customer
// @Failure 404 {object} map[string]string
// @Router /customers/{id} [get]
func (s *Server) getCustomer(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	cust, err := s.customers.GetByID(c, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

// Cart handlers
type addCartItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// @Summary Add cart item
// @Tags cart
// @Accept json
// @Produce json
// @Param id path int true "Customer ID"
// @Param input body addCartItemReq true "Item"
// @Success 201 {object} domain.CartItem
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /customers/{id}/cart [post]
func (s *Server) addCartItem(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req addCartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	it, err := s.carts.Add(c, id, req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

// @Summary List cart items
// @Tags cart
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {array} domain.CartItem
// @Router /customers/{id}/cart [get]
func (s *Server) listCart(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	list, err := s.carts.List(c, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Order handlers
type orderItemReq struct {
	ProductID int64   `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Discount  float64 `json:"discount"`
}

type createOrderReq struct {
	CustomerID       int64          `json:"customer_id"`
	CreatedOn        *time.Time     `json:"created_on,omitempty"`
	DeliveryLocation string         `json:"delivery_location"`
	DeliveryCharge   float64        `json:"delivery_charge"`
	TotalPrice       float64        `json:"total_price"`
	PaymentMethod    string         `json:"payment_method"`
	Items            []orderItemReq `json:"items"`
}

// @Summary Create order (direct checkout)
// @Tags orders
// @Accept json
// @Produce json
// @Param input body createOrderReq true "Order"
// @Success 201 {object} service.CheckoutResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := service.DirectOrderInput{
		CustomerID:       req.CustomerID,
		DeliveryLocation: req.DeliveryLocation,
		DeliveryCharge:   req.DeliveryCharge,
		TotalPrice:       req.TotalPrice,
		Method:           method,
		Items:            make([]service.DirectItem, 0, len(req.Items)),
	}
	if req.CreatedOn != nil {
		in.CreatedOn = *req.CreatedOn
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.DirectItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Discount:  it.Discount,
		})
	}
	res, err := s.checkout.Checkout(c, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type cartCheckoutReq struct {
	CustomerID    int64   `json:"customer_id"`
	PaymentMethod string  `json:"payment_method"`
	PaymentStatus string  `json:"payment_status,omitempty"`
	CartIDs       []int64 `json:"cart_ids"`
}

// @Summary Checkout persisted cart rows
// @Tags orders
// @Accept json
// @Produce json
// @Param input body cartCheckoutReq true "Cart checkout"
// @Success 201 {object} service.CheckoutResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /cart-checkout [post]
func (s *Server) cartCheckout(c *gin.Context) {
	var req cartCheckoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.checkout.CheckoutCart(c, service.CartCheckoutInput{
		CustomerID: req.CustomerID,
		Method:     method,
		CartIDs:    req.CartIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type orderView struct {
	Order *domain.Order          `json:"order"`
	Items []domain.OrderLineItem `json:"items"`
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} orderView
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	order, items, err := s.checkout.GetOrder(c, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderView{Order: order, Items: items})
}

type invoiceView struct {
	Invoice *domain.Invoice          `json:"invoice"`
	Items   []domain.InvoiceLineItem `json:"items"`
}

// @Summary Get order invoice
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} invoiceView
// @Failure 404 {object} map[string]string
// @Router /orders/{id}/invoice [get]
func (s *Server) getInvoice(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	inv, items, err := s.checkout.GetInvoice(c, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoiceView{Invoice: inv, Items: items})
}

type confirmPaymentReq struct {
	TransactionID string `json:"transaction_id"`
}

// @Summary Confirm pending payment
// @Tags orders
// @Accept json
// @Param id path int true "Order ID"
// @Param input body confirmPaymentReq true "Confirmation"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/confirm-payment [post]
func (s *Server) confirmPayment(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req confirmPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.checkout.ConfirmPayment(c, id, req.TransactionID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type advanceOrderReq struct {
	Status string `json:"status"`
}

// @Summary Advance order status
// @Tags orders
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param input body advanceOrderReq true "Next status"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/status [post]
func (s *Server) advanceOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req advanceOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := s.checkout.AdvanceOrder(c, id, next)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func writeError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	if status == http.StatusInternalServerError {
		// детали внутренней ошибки не раскрываются наружу
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrPriceMismatch),
		errors.Is(err, domain.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

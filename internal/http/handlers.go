package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"camarero/internal/domain"
	"camarero/internal/payment"
	"camarero/internal/service"
)

type Server struct {
	engine      *gin.Engine
	transitions *service.TransitionService
	queues      *service.QueueService
	intake      *service.OrderIntake
	log         *slog.Logger
}

func NewServer(transitions *service.TransitionService, queues *service.QueueService, intake *service.OrderIntake, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	r := gin.New()
	r.Use(requestLogger(log), gin.Recovery())
	s := &Server{engine: r, transitions: transitions, queues: queues, intake: intake, log: log}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/healthz", s.healthz)

	v1 := s.engine.Group("/api/v1", actorFromHeaders())
	{
		orders := v1.Group("/orders")
		orders.POST("", s.createOrder)
		orders.GET("", s.listOrders)
		orders.GET(":id", s.getOrder)
		orders.GET(":id/history", s.orderHistory)
		orders.POST(":id/items", s.addItems)
		orders.POST(":id/cancel", s.cancelOrder)
		orders.POST(":id/bill", s.requestBill)
		orders.POST(":id/pay", s.markPaid)

		items := v1.Group("/items")
		items.PATCH(":id/status", s.advanceItem)
		items.POST(":id/cancel", s.cancelItem)

		v1.GET("/kds/items", s.kitchenQueue)
		v1.GET("/pickup/items", s.pickupQueue)
	}
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Create order
// @Tags orders
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param input body service.NewOrder true "Order"
// @Success 201 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req service.NewOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_INPUT", "invalid json")
		return
	}
	o, err := s.intake.CreateOrder(c, actorOf(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary List orders for staff
// @Tags orders
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param status query string false "Comma separated order statuses"
// @Success 200 {array} service.OrderSummary
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/orders [get]
func (s *Server) listOrders(c *gin.Context) {
	var statuses []domain.OrderStatus
	for _, v := range splitList(c.Query("status")) {
		statuses = append(statuses, domain.OrderStatus(v))
	}
	list, err := s.queues.StaffOrders(c, actorOf(c).TenantID, statuses)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	o, err := s.transitions.GetOrder(c, actorOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Status history of an order and its items
// @Tags orders
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param id path string true "Order ID"
// @Success 200 {array} domain.StatusLogEntry
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/orders/{id}/history [get]
func (s *Server) orderHistory(c *gin.Context) {
	list, err := s.transitions.History(c, actorOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type cancelOrderReq struct {
	Expected domain.OrderStatus `json:"expected,omitempty"`
}

// @Summary Cancel order
// @Tags orders
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param id path string true "Order ID"
// @Param input body cancelOrderReq false "Expected order status"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/orders/{id}/cancel [post]
func (s *Server) cancelOrder(c *gin.Context) {
	var req cancelOrderReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	o, err := s.transitions.CancelOrder(c, actorOf(c), c.Param("id"), req.Expected)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type addItemsReq struct {
	Items []service.NewOrderItem `json:"items"`
}

// @Summary Add items to an open order
// @Tags orders
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param id path string true "Order ID"
// @Param input body addItemsReq true "Items"
// @Success 200 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/orders/{id}/items [post]
func (s *Server) addItems(c *gin.Context) {
	var req addItemsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_INPUT", "invalid json")
		return
	}
	o, err := s.transitions.AddItems(c, actorOf(c), c.Param("id"), req.Items)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type billReq struct {
	PaymentPreference string `json:"payment_preference,omitempty"`
}

// @Summary Request the bill
// @Tags orders
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param id path string true "Order ID"
// @Param input body billReq false "Payment preference"
// @Success 200 {object} domain.Order
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/orders/{id}/bill [post]
func (s *Server) requestBill(c *gin.Context) {
	var req billReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	o, err := s.transitions.RequestBill(c, actorOf(c), c.Param("id"), req.PaymentPreference)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Mark order paid
// @Tags orders
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param id path string true "Order ID"
// @Param input body service.PaymentDetails true "Payment"
// @Success 200 {object} domain.Order
// @Failure 402 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/orders/{id}/pay [post]
func (s *Server) markPaid(c *gin.Context) {
	var req service.PaymentDetails
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_INPUT", "invalid json")
		return
	}
	o, err := s.transitions.MarkPaid(c, actorOf(c), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type advanceItemReq struct {
	Status   domain.ItemStatus `json:"status"`
	Expected domain.ItemStatus `json:"expected,omitempty"`
}

// @Summary Move an item to the next status
// @Tags items
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param X-Station header string false "KDS station"
// @Param id path string true "Item ID"
// @Param input body advanceItemReq true "Target status"
// @Success 200 {object} service.ItemResult
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/items/{id}/status [patch]
func (s *Server) advanceItem(c *gin.Context) {
	var req advanceItemReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		abortWithError(c, http.StatusBadRequest, "INVALID_INPUT", "status required")
		return
	}
	res, err := s.transitions.AdvanceItem(c, actorOf(c), service.AdvanceRequest{
		ItemID:   c.Param("id"),
		Target:   req.Status,
		Expected: req.Expected,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type cancelItemReq struct {
	Expected domain.ItemStatus `json:"expected,omitempty"`
}

// @Summary Cancel an item
// @Tags items
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param id path string true "Item ID"
// @Param input body cancelItemReq false "Expected item status"
// @Success 200 {object} service.ItemResult
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/items/{id}/cancel [post]
func (s *Server) cancelItem(c *gin.Context) {
	var req cancelItemReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := s.transitions.CancelItem(c, actorOf(c), c.Param("id"), req.Expected)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Kitchen display queue
// @Tags queues
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Param X-Station header string false "KDS station"
// @Param destination query string false "Station, defaults to the actor station"
// @Param status query string false "Comma separated item statuses"
// @Success 200 {array} service.QueueItem
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/kds/items [get]
func (s *Server) kitchenQueue(c *gin.Context) {
	actor := actorOf(c)
	dest := c.Query("destination")
	if dest == "" {
		dest = actor.StationDestination()
	}
	var statuses []domain.ItemStatus
	for _, v := range splitList(c.Query("status")) {
		statuses = append(statuses, domain.ItemStatus(v))
	}
	list, err := s.queues.KitchenQueue(c, actor.TenantID, dest, statuses)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Waiter pickup queue
// @Tags queues
// @Produce json
// @Param X-Tenant-ID header string true "Tenant"
// @Param X-Actor-Role header string true "Role"
// @Success 200 {array} service.QueueItem
// @Router /api/v1/pickup/items [get]
func (s *Server) pickupQueue(c *gin.Context) {
	list, err := s.queues.PickupQueue(c, actorOf(c).TenantID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// bindOptionalJSON пустое тело допустимо
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_INPUT", "invalid json")
		return false
	}
	return true
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := mapErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		abortWithError(c, status, code, "internal error")
		return
	}
	abortWithError(c, status, code, err.Error())
}

func mapErrorToStatus(err error) (int, string) {
	switch {
	case errors.Is(err, payment.ErrDeclined):
		return http.StatusPaymentRequired, "PAYMENT_DECLINED"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, domain.Code(err)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.Code(err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, domain.Code(err)
	case errors.Is(err, domain.ErrStaleState), errors.Is(err, domain.ErrOrderClosed):
		return http.StatusConflict, domain.Code(err)
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, domain.Code(err)
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

package main

import (
	"context"
	"courtbook/src/common"
	"courtbook/src/lib"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
)

const webhookSecret = "whsec_test"

type stubCheckout struct{}

func (stubCheckout) CreateCheckoutSession(ctx context.Context, req lib.CheckoutRequest) (*lib.CheckoutSession, error) {
	return &lib.CheckoutSession{ID: "cs_" + req.Reference, URL: "https://checkout.example/" + req.Reference}, nil
}

type TestSuite struct {
	suite.Suite
	Clock  *clockwork.FakeClock
	Store  *common.MemoryStore
	Engine *common.Engine
	Router *gin.Engine
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	registerValidators()
	os.Setenv("STRIPE_WEBHOOK_SECRET", webhookSecret)
}

func (s *TestSuite) SetupTest() {
	os.Unsetenv("MAINTENANCE_MODE")
	// Monday 2024-01-01 08:00 UTC.
	s.Clock = clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	s.Store = common.NewMemoryStore().WithNow(s.Clock.Now)
	s.Engine = common.NewEngine(s.Store, s.Clock)
	s.Engine.Payments = common.NewPaymentIssuer(s.Clock, stubCheckout{})

	s.Router = setupRouter()
	s.Router = maintenanceModeMiddleware(s.Router)
	registerRoutes(s.Router, s.Engine)
}

func (s *TestSuite) do(method, url string, body any) (int, string) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().Nil(err)
		reader = strings.NewReader(string(b))
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.Router.ServeHTTP(w, req)
	rbytes, err := io.ReadAll(w.Body)
	s.Require().Nil(err)
	return w.Code, string(rbytes)
}

// seedCourt creates a court priced at 100/h before 17:00 and 150/h after, every day.
func (s *TestSuite) seedCourt() uint {
	code, res := s.do("POST", "/api/v1/courts", gin.H{"name": "Court 1"})
	s.Require().Equal(http.StatusCreated, code, res)
	id := uint(gjson.Get(res, "data.id").Uint())

	days := []int{2, 3, 4, 5, 6, 7, 8}
	for _, r := range []gin.H{
		{"start_time": "08:00", "end_time": "17:00", "price_per_hour": 100, "days_of_week": days},
		{"start_time": "17:00", "end_time": "22:00", "price_per_hour": 150, "days_of_week": days},
	} {
		code, res := s.do("POST", fmt.Sprintf("/api/v1/courts/%d/pricing-rules", id), r)
		s.Require().Equal(http.StatusCreated, code, res)
	}
	return id
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	code, _ := s.do("GET", "/api/v1/courts", nil)
	assert.Equal(s.T(), 503, code)
}

func (s *TestSuite) TestPriceQuote() {
	id := s.seedCourt()

	code, res := s.do("GET", fmt.Sprintf("/api/v1/courts/%d/price?date=2024-01-01&start=16:00&end=18:00", id), nil)
	s.Equal(http.StatusOK, code, res)
	s.Equal(250.0, gjson.Get(res, "data.total").Float())
	s.Len(gjson.Get(res, "data.segments").Array(), 2)

	code, _ = s.do("GET", fmt.Sprintf("/api/v1/courts/%d/price?date=2024-01-01&start=16:00&end=25:00", id), nil)
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.do("GET", fmt.Sprintf("/api/v1/courts/%d/price?date=2024-01-01&start=06:00&end=09:00", id), nil)
	s.Equal(http.StatusUnprocessableEntity, code)
}

func (s *TestSuite) TestBookingLifecycle() {
	id := s.seedCourt()

	s.Run("Should create a paid cash booking", func() {
		code, res := s.do("POST", "/api/v1/bookings", gin.H{
			"court_id":       id,
			"customer_id":    7,
			"start_date":     "2024-01-01",
			"start_time":     "16:00",
			"end_time":       "18:00",
			"payment_method": "cash",
		})
		s.Require().Equal(http.StatusCreated, code, res)
		s.Equal("active", gjson.Get(res, "data.booking.status").String())
		s.Equal(250.0, gjson.Get(res, "data.booking.total_price").Float())
		s.Equal("paid", gjson.Get(res, "data.payment.status").String())
	})

	s.Run("Should report the slot as taken", func() {
		code, res := s.do("GET", fmt.Sprintf("/api/v1/courts/%d/availability?date=2024-01-01&start=17:00&end=19:00", id), nil)
		s.Equal(http.StatusOK, code)
		s.False(gjson.Get(res, "data.available").Bool())
	})

	s.Run("Should reject an overlapping booking with 409", func() {
		code, res := s.do("POST", "/api/v1/bookings", gin.H{
			"court_id":       id,
			"customer_id":    8,
			"start_date":     "2024-01-01",
			"start_time":     "17:00",
			"end_time":       "19:00",
			"payment_method": "cash",
		})
		s.Equal(http.StatusConflict, code)
		s.Contains(gjson.Get(res, "error").String(), "already booked")
	})

	s.Run("Should check in and out", func() {
		code, res := s.do("GET", "/api/v1/bookings/1", nil)
		s.Require().Equal(http.StatusOK, code, res)
		s.Equal("full", gjson.Get(res, "data.payment_type").String())
		occID := gjson.Get(res, "data.occurrences.0.id").Uint()

		s.Clock.Advance(8 * time.Hour)
		code, res = s.do("POST", fmt.Sprintf("/api/v1/occurrences/%d/check-in", occID), nil)
		s.Require().Equal(http.StatusOK, code, res)
		s.Equal("checked_in", gjson.Get(res, "data.status").String())

		code, res = s.do("GET", fmt.Sprintf("/api/v1/courts/%d", id), nil)
		s.Equal(http.StatusOK, code)
		s.Equal("in_use", gjson.Get(res, "data.status").String())

		code, res = s.do("POST", fmt.Sprintf("/api/v1/occurrences/%d/items", occID), gin.H{
			"product_id": 3, "name": "Water", "quantity": 2, "unit_price": "25",
		})
		s.Require().Equal(http.StatusCreated, code, res)

		s.Clock.Advance(2 * time.Hour)
		code, res = s.do("GET", fmt.Sprintf("/api/v1/occurrences/%d/checkout", occID), nil)
		s.Require().Equal(http.StatusOK, code, res)
		s.Equal(300.0, gjson.Get(res, "data.total").Float())
		s.Equal(50.0, gjson.Get(res, "data.balance").Float())

		code, res = s.do("POST", fmt.Sprintf("/api/v1/occurrences/%d/checkout", occID), nil)
		s.Require().Equal(http.StatusOK, code, res)
		s.Equal("completed", gjson.Get(res, "data.occurrence.status").String())

		code, res = s.do("GET", fmt.Sprintf("/api/v1/courts/%d", id), nil)
		s.Equal(http.StatusOK, code)
		s.Equal("active", gjson.Get(res, "data.status").String())

		code, _ = s.do("POST", fmt.Sprintf("/api/v1/occurrences/%d/checkout", occID), nil)
		s.Equal(http.StatusConflict, code)
	})
}

func (s *TestSuite) TestBookingValidation() {
	id := s.seedCourt()

	code, res := s.do("POST", "/api/v1/bookings", gin.H{
		"court_id":       id,
		"customer_id":    7,
		"start_date":     "01/02/2024",
		"start_time":     "16:00",
		"end_time":       "18:00",
		"payment_method": "cash",
	})
	s.Equal(http.StatusBadRequest, code)
	s.NotEmpty(gjson.Get(res, "error").String())

	code, _ = s.do("POST", "/api/v1/bookings", gin.H{
		"court_id":       id,
		"customer_id":    7,
		"start_date":     "2024-01-02",
		"start_time":     "18:00",
		"end_time":       "16:00",
		"payment_method": "cash",
	})
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.do("POST", "/api/v1/bookings", gin.H{
		"court_id":       id,
		"customer_id":    7,
		"start_date":     "2024-01-02",
		"end_date":       "2024-01-09",
		"days_of_week":   []int{1},
		"start_time":     "16:00",
		"end_time":       "18:00",
		"payment_method": "cash",
	})
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.do("GET", "/api/v1/bookings/999", nil)
	s.Equal(http.StatusNotFound, code)
}

func (s *TestSuite) TestCourtMaintenance() {
	id := s.seedCourt()

	code, res := s.do("PUT", fmt.Sprintf("/api/v1/courts/%d/status", id), gin.H{"action": "maintenance"})
	s.Require().Equal(http.StatusOK, code, res)
	s.Equal("maintenance", gjson.Get(res, "data.status").String())

	code, _ = s.do("POST", "/api/v1/bookings", gin.H{
		"court_id":       id,
		"customer_id":    7,
		"start_date":     "2024-01-02",
		"start_time":     "10:00",
		"end_time":       "11:00",
		"payment_method": "cash",
	})
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.do("PUT", fmt.Sprintf("/api/v1/courts/%d/status", id), gin.H{"action": "explode"})
	s.Equal(http.StatusBadRequest, code)
}

func (s *TestSuite) TestSettings() {
	code, res := s.do("POST", "/api/v1/settings", gin.H{"group": "booking", "key": "hold_minutes", "value": 30})
	s.Require().Equal(http.StatusOK, code, res)

	code, res = s.do("GET", "/api/v1/settings/booking/hold_minutes", nil)
	s.Equal(http.StatusOK, code)
	s.Equal(int64(30), gjson.Get(res, "data.setting_value").Int())

	code, _ = s.do("GET", "/api/v1/settings/booking/unknown", nil)
	s.Equal(http.StatusNotFound, code)
}

func (s *TestSuite) stripeEvent(eventType, sessionID, paymentStatus string) *httptest.ResponseRecorder {
	payload := fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":%q,"data":{"object":{"id":%q,"object":"checkout.session","payment_status":%q}}}`,
		stripe.APIVersion, eventType, sessionID, paymentStatus)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	s.Router.ServeHTTP(w, req)
	return w
}

func (s *TestSuite) TestStripeWebhookConfirmsCardBooking() {
	id := s.seedCourt()

	code, res := s.do("POST", "/api/v1/bookings", gin.H{
		"court_id":       id,
		"customer_id":    7,
		"start_date":     "2024-01-02",
		"start_time":     "10:00",
		"end_time":       "12:00",
		"payment_method": "card",
	})
	s.Require().Equal(http.StatusCreated, code, res)
	s.Equal("pending_payment", gjson.Get(res, "data.booking.status").String())
	sessionID := gjson.Get(res, "data.payment.checkout_session_id").String()
	s.Require().NotEmpty(sessionID)
	bookingID := gjson.Get(res, "data.booking.id").Uint()

	w := s.stripeEvent("checkout.session.completed", sessionID, "unpaid")
	s.Equal(http.StatusOK, w.Code)
	_, res = s.do("GET", fmt.Sprintf("/api/v1/bookings/%d", bookingID), nil)
	s.Equal("pending_payment", gjson.Get(res, "data.status").String())

	w = s.stripeEvent("checkout.session.completed", sessionID, "paid")
	s.Equal(http.StatusOK, w.Code)
	_, res = s.do("GET", fmt.Sprintf("/api/v1/bookings/%d", bookingID), nil)
	s.Equal("active", gjson.Get(res, "data.status").String())
	s.Equal("paid", gjson.Get(res, "data.payments.0.status").String())

	w = s.stripeEvent("checkout.session.completed", "cs_unknown", "paid")
	s.Equal(http.StatusOK, w.Code)
}

func (s *TestSuite) TestStripeWebhookRejectsBadSignature() {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(`{"type":"checkout.session.completed"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	s.Router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}

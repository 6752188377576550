package payment

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kutable/internal/modules/connect"
)

func setupRouter(h *harness) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(h.svc).RegisterRoutes(r.Group("/"))
	return r
}

func doJSONRequest(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandler_CreatePaymentIntent(t *testing.T) {
	h := newHarness(t, stubVerifier{dest: "acct_barber"}, nil)
	r := setupRouter(h)

	body := map[string]any{
		"barberId":        barberID,
		"clientId":        "cccccccc-0000-0000-0000-000000000001",
		"serviceId":       h.service.ID,
		"appointmentDate": "2026-11-02",
		"appointmentTime": "14:30",
		"clientDetails": map[string]any{
			"firstName": "Jordan", "lastName": "Lee", "phone": "4155552671", "email": "jordan@example.com",
		},
		"totalAmount": 100.00,
	}
	rr := doJSONRequest(r, "/create-payment-intent", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, resp["clientSecret"])
	assert.NotEmpty(t, resp["bookingId"])
	assert.NotEmpty(t, resp["paymentIntentId"])
	assert.Equal(t, "1.00", resp["platformFee"])
}

func TestHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		verifier stubVerifier
		body     map[string]any
		status   int
		code     string
	}{
		{name: "malformed", verifier: stubVerifier{dest: "acct"}, body: map[string]any{"totalAmount": "abc"}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "verification pending", verifier: stubVerifier{err: connect.ErrVerificationPending}, status: http.StatusBadRequest, code: "STRIPE_VERIFICATION_PENDING"},
		{name: "payments disabled", verifier: stubVerifier{err: connect.ErrPaymentsDisabled}, status: http.StatusBadRequest, code: "STRIPE_PAYMENTS_DISABLED"},
		{name: "stripe down", verifier: stubVerifier{err: connect.ErrUpstream}, status: http.StatusBadGateway, code: "STRIPE_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.verifier, nil)
			r := setupRouter(h)
			body := tc.body
			if body == nil {
				body = map[string]any{
					"barberId": barberID, "clientId": "c1", "serviceId": h.service.ID,
					"appointmentDate": "2026-11-02", "appointmentTime": "14:30",
					"clientDetails": map[string]any{"firstName": "A", "lastName": "B", "phone": "4155552671", "email": "a@b.co"},
					"totalAmount":   25,
				}
			}

			rr := doJSONRequest(r, "/create-payment-intent", body)
			assert.Equal(t, tc.status, rr.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tc.code, resp["errorCode"])
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestHandler_BindingRejectsBadFields(t *testing.T) {
	h := newHarness(t, stubVerifier{dest: "acct_barber"}, nil)
	r := setupRouter(h)

	body := map[string]any{
		"barberId": barberID, "clientId": "c1", "serviceId": h.service.ID,
		"appointmentDate": "02/11/2026", "appointmentTime": "14:30",
		"clientDetails": map[string]any{"firstName": "A", "lastName": "B", "phone": "4155552671", "email": "not-an-email"},
		"totalAmount":   25,
	}
	rr := doJSONRequest(r, "/create-payment-intent", body)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp["errorCode"])
	assert.Equal(t, map[string]any{"appointmentDate": "ymd", "clientDetails.email": "email"}, resp["details"])
}

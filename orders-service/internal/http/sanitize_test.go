package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"ring the bell", "ring the bell"},
		{"  <b>fragile</b> ", "fragile"},
		{"<script>alert(1)</script>leave at door", "leave at door"},
		{"Smith & Sons", "Smith & Sons"},
		{`<a href="javascript:alert(1)">click</a>`, "click"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeText(tt.in))
		})
	}
}

func TestCreateOrder_SanitizesFreeText(t *testing.T) {
	mock := &OrderServiceMock{order: sampleOrder()}
	body := strings.Replace(createBody, `"ring the bell"`, `"<img src=x onerror=alert(1)>ring the bell"`, 1)
	body = strings.Replace(body, `"12 Harbour St"`, `"<i>12</i> Harbour St"`, 1)
	rec := httptest.NewRecorder()

	newHandler(mock).CreateOrder(rec, httptest.NewRequest("POST", "/api/v1/orders", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ring the bell", mock.created.Notes)
	assert.Equal(t, "12 Harbour St", mock.created.DeliveryAddress.AddressLine)
}

func TestUpdateOrderStatus_SanitizesNotes(t *testing.T) {
	mock := &OrderServiceMock{order: sampleOrder()}
	rec := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest("PUT", "/", strings.NewReader(`{"status": "CANCELLED", "notes": "<b>customer</b> called"}`)),
		"order_id", uuid.NewString())

	newHandler(mock).UpdateOrderStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, mock.statusUpdated.Notes)
	assert.Equal(t, "customer called", *mock.statusUpdated.Notes)
}

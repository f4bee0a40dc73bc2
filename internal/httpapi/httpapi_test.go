package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xledger/fenbook/internal/engine"
	"github.com/0xledger/fenbook/internal/httpapi"
	"github.com/0xledger/fenbook/internal/order"
)

// fakeGateway runs commands straight through an in-memory engine, skipping
// the dispatch goroutine and sink entirely, since httpapi only needs
// something shaped like a gateway.Gateway to exercise its routing logic.
type fakeGateway struct {
	engine *engine.Engine
}

func (f *fakeGateway) Submit(_ context.Context, cmd engine.Command) ([]order.Event, error) {
	return f.engine.Process(cmd), nil
}

func newServer() *httpapi.Server {
	return httpapi.New(&fakeGateway{engine: engine.New("AAPL")})
}

func TestHealthCheck(t *testing.T) {
	s := newServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health-check", nil)

	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestPostBuy_Accepted(t *testing.T) {
	s := newServer()
	body, _ := json.Marshal(map[string]any{"quantity": 5, "price": "2.50"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/order-book/buy", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var decoded struct {
		Events []order.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Len(t, decoded.Events, 1)
	assert.Equal(t, "accepted", decoded.Events[0].Kind.String())
}

func TestPostSell_InvalidBodyIsBadRequest(t *testing.T) {
	s := newServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/order-book/sell", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteBuy_UnknownIDIsRejectedAsBadRequest(t *testing.T) {
	s := newServer()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/order-book/buy/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var decoded struct {
		Events []order.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Len(t, decoded.Events, 1)
	assert.Equal(t, "rejected", decoded.Events[0].Kind.String())
}

func TestDeleteBuy_MalformedIDIsBadRequest(t *testing.T) {
	s := newServer()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/order-book/buy/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderBook_ReturnsBothSides(t *testing.T) {
	gw := &fakeGateway{engine: engine.New("AAPL")}
	gw.engine.Process(engine.BuyCommand{Quantity: 5, Price: mustDecimal("2")})
	s := httpapi.New(gw)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/order-book", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var decoded struct {
		Buy  []order.Order `json:"buy"`
		Sell []order.Order `json:"sell"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Len(t, decoded.Buy, 1)
	assert.Empty(t, decoded.Sell)
}

func TestPatchBuy_UpdatesOrder(t *testing.T) {
	gw := &fakeGateway{engine: engine.New("AAPL")}
	accepted := gw.engine.Process(engine.BuyCommand{Quantity: 5, Price: mustDecimal("2")})
	id := accepted[0].Order.ID
	s := httpapi.New(gw)

	body, _ := json.Marshal(map[string]any{"quantity": 8, "price": "3"})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/order-book/buy/"+id.String(), bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var decoded struct {
		Events []order.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Len(t, decoded.Events, 2)
	assert.Equal(t, "canceled", decoded.Events[0].Kind.String())
	assert.Equal(t, "accepted", decoded.Events[1].Kind.String())
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

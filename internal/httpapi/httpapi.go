// Package httpapi exposes a single instrument's order book over REST,
// translating each request into one gateway.Submit call and the resulting
// event batch into JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xledger/fenbook/internal/engine"
	"github.com/0xledger/fenbook/internal/order"
)

// Submitter is the narrow surface httpapi needs from a gateway: one
// blocking call per command.
type Submitter interface {
	Submit(ctx context.Context, cmd engine.Command) ([]order.Event, error)
}

// Server wires a Submitter to an HTTP router.
type Server struct {
	router     *mux.Router
	gateway    Submitter
	reqTimeout time.Duration
}

// submit wraps a request's context with the server's per-request timeout
// before handing the command to the gateway, so a wedged dispatch loop
// fails a request rather than hanging it forever.
func (s *Server) submit(r *http.Request, cmd engine.Command) ([]order.Event, error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.reqTimeout)
	defer cancel()
	return s.gateway.Submit(ctx, cmd)
}

// New builds the full route table over gw.
func New(gw Submitter) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		gateway:    gw,
		reqTimeout: 5 * time.Second,
	}
	s.routes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/health-check", s.handleHealthCheck).Methods(http.MethodGet)

	book := s.router.PathPrefix("/api/v1/order-book").Subrouter()
	book.HandleFunc("", s.handleGetState).Methods(http.MethodGet)
	book.HandleFunc("/buy", s.handlePlace(order.Buy)).Methods(http.MethodPost)
	book.HandleFunc("/sell", s.handlePlace(order.Sell)).Methods(http.MethodPost)
	book.HandleFunc("/buy/{id}", s.handleUpdate).Methods(http.MethodPatch)
	book.HandleFunc("/sell/{id}", s.handleUpdate).Methods(http.MethodPatch)
	book.HandleFunc("/buy/{id}", s.handleCancel).Methods(http.MethodDelete)
	book.HandleFunc("/sell/{id}", s.handleCancel).Methods(http.MethodDelete)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	events, err := s.submit(r, engine.GetStateCommand{})
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Buy: events[0].State.Buy, Sell: events[0].State.Sell})
}

// orderRequest mirrors the flat {quantity, price} body the REST surface
// accepts for both placing and updating an order.
type orderRequest struct {
	Quantity uint32          `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (s *Server) handlePlace(side order.Side) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body orderRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}

		var cmd engine.Command
		if side == order.Buy {
			cmd = engine.BuyCommand{Quantity: body.Quantity, Price: body.Price}
		} else {
			cmd = engine.SellCommand{Quantity: body.Quantity, Price: body.Price}
		}

		s.submitAndRespond(w, r, cmd)
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeBadRequest(w, "invalid order id")
		return
	}

	var body orderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	cmd := engine.UpdateCommand{ID: id, NewQuantity: body.Quantity, NewPrice: body.Price}
	s.submitAndRespond(w, r, cmd)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeBadRequest(w, "invalid order id")
		return
	}
	s.submitAndRespond(w, r, engine.CancelCommand{ID: id})
}

// submitAndRespond runs cmd through the gateway and maps the result to an
// HTTP response: a batch containing only a Rejected event is a 400 (the
// command never touched the book), anything else successful is a 200, and
// a Submit-level error (context expiry, closed gateway) is a 500.
func (s *Server) submitAndRespond(w http.ResponseWriter, r *http.Request, cmd engine.Command) {
	events, err := s.submit(r, cmd)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	if len(events) == 1 && events[0].Kind == order.EventRejected {
		writeJSON(w, http.StatusBadRequest, eventsResponse{Events: events})
		return
	}

	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

type eventsResponse struct {
	Events []order.Event `json:"events"`
}

type stateResponse struct {
	Buy  []*order.Order `json:"buy"`
	Sell []*order.Order `json:"sell"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("httpapi: failed to encode response body")
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("httpapi: request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

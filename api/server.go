package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wricardo/cabinsmart/cabin/service"
	"github.com/wricardo/cabinsmart/cabin/store"
	"github.com/wricardo/cabinsmart/transport/websocket"
)

const welcomeMessage = "Bienvenido a CabinSmart API"

// Server represents the REST API server
type Server struct {
	service    service.CabinService
	dispatcher *websocket.Dispatcher
	ws         http.Handler
	logger     *slog.Logger
	router     *mux.Router
}

// NewServer creates a new API server. Command routes run through dispatcher
// so they broadcast exactly like WebSocket commands; ws is mounted at /ws.
func NewServer(dispatcher *websocket.Dispatcher, ws http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service:    dispatcher.Service(),
		dispatcher: dispatcher,
		ws:         ws,
		logger:     logger,
		router:     mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(allowAllOrigins)
	s.router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Seats
	s.router.HandleFunc("/seats", s.handleListSeats).Methods("GET")
	s.router.HandleFunc("/seats/{id}", s.handleGetSeat).Methods("GET")
	s.router.HandleFunc("/seats/{id}/toggle-buckle", s.handleToggleBuckle).Methods("POST")
	s.router.HandleFunc("/seats/{id}/status", s.handleUpdateSeatStatus).Methods("POST")

	// Bathroom
	s.router.HandleFunc("/bathroom/queue", s.handleGetQueue).Methods("GET")
	s.router.HandleFunc("/bathroom/queue", s.handleJoinQueue).Methods("POST")
	s.router.HandleFunc("/bathroom/queue/{seatId}", s.handleLeaveQueue).Methods("DELETE")
	s.router.HandleFunc("/bathroom/status", s.handleGetStatus).Methods("GET")
	s.router.HandleFunc("/bathroom/door-sensor", s.handleDoorSensor).Methods("POST")

	// Query-string forms used by older cabin panels
	s.router.HandleFunc("/bathroom/join-queue", s.handleJoinQueueQuery).Methods("POST")
	s.router.HandleFunc("/bathroom/leave-queue", s.handleLeaveQueueQuery).Methods("POST")

	// Crew
	s.router.HandleFunc("/announcements", s.handleAnnouncement).Methods("POST")

	// WebSocket
	if s.ws != nil {
		s.router.Handle("/ws", s.ws)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a cabin error to its status code and the
// passenger-facing message.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, service.ErrSeatNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyQueued), errors.Is(err, service.ErrAlreadyOccupying):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotQueued):
		status = http.StatusNotFound
	case !service.IsClientError(err):
		status = http.StatusInternalServerError
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondError(w, status, service.UserMessage(err))
}

// decodeBody reads an optional JSON body into v. An empty body is not an
// error.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, cmd websocket.Command) {
	reply, err := s.dispatcher.Dispatch(r.Context(), cmd)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reply.Data)
}

// Read handlers

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

func (s *Server) handleListSeats(w http.ResponseWriter, r *http.Request) {
	seats, err := s.service.Seats(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, websocket.SeatMap(seats))
}

// handleGetSeat answers 200 with an error payload for unknown seats; the
// cabin panels check the body, not the status.
func (s *Server) handleGetSeat(w http.ResponseWriter, r *http.Request) {
	seat, err := s.service.Seat(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, service.ErrSeatNotFound) {
			respondError(w, http.StatusOK, service.UserMessage(err))
			return
		}
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, seat)
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.service.Queue(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if queue == nil {
		queue = []store.QueueEntry{}
	}
	respondJSON(w, http.StatusOK, queue)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Command handlers

func (s *Server) handleToggleBuckle(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, websocket.ToggleSeatBelt{SeatID: mux.Vars(r)["id"]})
}

func (s *Server) handleUpdateSeatStatus(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := decodeBody(r, &updates); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.dispatch(w, r, websocket.UpdateSeatStatus{SeatID: mux.Vars(r)["id"], Updates: updates})
}

func (s *Server) handleJoinQueue(w http.ResponseWriter, r *http.Request) {
	var cmd websocket.JoinBathroomQueue
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.dispatch(w, r, cmd)
}

func (s *Server) handleLeaveQueue(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, websocket.LeaveBathroomQueue{SeatID: mux.Vars(r)["seatId"]})
}

func (s *Server) handleJoinQueueQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	s.dispatch(w, r, websocket.JoinBathroomQueue{
		SeatID:        query.Get("seat_id"),
		PassengerName: query.Get("passenger_name"),
	})
}

func (s *Server) handleLeaveQueueQuery(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, websocket.LeaveBathroomQueue{SeatID: r.URL.Query().Get("seat_id")})
}

func (s *Server) handleDoorSensor(w http.ResponseWriter, r *http.Request) {
	var cmd websocket.BathroomDoorSensor
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.dispatch(w, r, cmd)
}

func (s *Server) handleAnnouncement(w http.ResponseWriter, r *http.Request) {
	var cmd websocket.SafetyAnnouncement
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.dispatch(w, r, cmd)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.Status(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

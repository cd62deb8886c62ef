package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"vintrail/internal/itinerary"
	"vintrail/internal/metrics"
	"vintrail/internal/model"
	"vintrail/internal/store"
)

// ActivePlanHandler handles GET /v1/plans/active
func (s *Server) ActivePlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	plan, err := s.Store.GetActiveDraft(r.Context(), p.UserID)
	if err != nil {
		writeStoreProblem(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// PlansHandler handles POST/GET /v1/plans
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	switch r.Method {
	case http.MethodPost:
		if !s.saves.allow(p.UserID) {
			writeProblem(w, http.StatusTooManyRequests, "Too many saves", "draft save rate exceeded, retry shortly", r.URL.Path)
			return
		}
		var in model.DraftInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateDraftInput(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid draft", err.Error(), r.URL.Path)
			return
		}
		plan, err := s.Store.UpsertDraft(r.Context(), p.UserID, in)
		if err != nil {
			writeStoreProblem(w, err, r.URL.Path)
			return
		}
		metrics.DraftSaves.Inc()
		s.Pub.Emit(r.Context(), "plan.saved", map[string]any{"planId": plan.ID, "userId": plan.UserID, "title": plan.Title})
		s.Broker.Publish(plan.ID, SSEEvent{Type: "plan.saved", Data: map[string]any{"planId": plan.ID, "updatedAt": plan.UpdatedAt.Format(time.RFC3339)}})
		writeJSON(w, http.StatusOK, plan)
	case http.MethodGet:
		state := r.URL.Query().Get("state")
		if state != "" && state != "confirmed" {
			writeProblem(w, http.StatusBadRequest, "Invalid state", "only state=confirmed is supported", r.URL.Path)
			return
		}
		items, err := s.Store.ListConfirmed(r.Context(), p.UserID)
		if err != nil {
			writeStoreProblem(w, err, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PlanByIDHandler handles /v1/plans/{id} and its sub-resources:
// /confirm, /stops/{stopId}/time, /order, /itinerary, /events/stream.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing plan id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	p := s.getPrincipal(r)

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		plan, err := s.Store.GetPlan(r.Context(), p.UserID, id)
		if err != nil {
			writeStoreProblem(w, err, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, plan)
		return
	}

	switch {
	case parts[1] == "confirm":
		s.confirmPlan(w, r, p.UserID, id)
	case parts[1] == "stops" && len(parts) == 4 && parts[3] == "time":
		s.updateStopTime(w, r, p.UserID, id, parts[2])
	case parts[1] == "order":
		s.updateOrder(w, r, p.UserID, id)
	case parts[1] == "itinerary":
		s.itineraryFor(w, r, p.UserID, id)
	case parts[1] == "events" && len(parts) == 3 && parts[2] == "stream":
		s.planEventsSSE(w, r, p.UserID, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) confirmPlan(w http.ResponseWriter, r *http.Request, userID, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	plan, err := s.Store.ConfirmPlan(r.Context(), userID, id, s.Cfg.PlanTTL)
	if err != nil {
		writeStoreProblem(w, err, r.URL.Path)
		return
	}
	metrics.PlansConfirmed.Inc()
	data := map[string]any{"planId": plan.ID, "userId": plan.UserID, "title": plan.Title}
	if plan.ExpiresAt != nil {
		data["expiresAt"] = plan.ExpiresAt.UTC().Format(time.RFC3339)
	}
	s.Pub.Emit(r.Context(), "plan.confirmed", data)
	s.Broker.Publish(plan.ID, SSEEvent{Type: "plan.confirmed", Data: data})
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) updateStopTime(w http.ResponseWriter, r *http.Request, userID, id, stopID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateStopTime(body.Time); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid time", err.Error(), r.URL.Path)
		return
	}
	plan, err := s.Store.UpdateStopTime(r.Context(), userID, id, stopID, body.Time)
	if err != nil {
		writeStoreProblem(w, err, r.URL.Path)
		return
	}
	s.Broker.Publish(plan.ID, SSEEvent{Type: "stop.time.updated", Data: map[string]any{"planId": plan.ID, "stopId": stopID, "time": body.Time}})
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request, userID, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Order []model.OrderEntry `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOrderEntries(body.Order); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid order", err.Error(), r.URL.Path)
		return
	}
	plan, err := s.Store.UpdateCustomOrder(r.Context(), userID, id, body.Order)
	if err != nil {
		writeStoreProblem(w, err, r.URL.Path)
		return
	}
	s.Broker.Publish(plan.ID, SSEEvent{Type: "order.updated", Data: map[string]any{"planId": plan.ID, "stops": len(body.Order)}})
	writeJSON(w, http.StatusOK, plan)
}

// itineraryFor returns the ordered stops plus a computed route. A failing
// directions provider degrades to stops without a route rather than an error.
func (s *Server) itineraryFor(w http.ResponseWriter, r *http.Request, userID, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	plan, err := s.Store.GetPlan(r.Context(), userID, id)
	if err != nil {
		writeStoreProblem(w, err, r.URL.Path)
		return
	}
	stops := itinerary.Order(itinerary.BuildStops(plan), plan.CustomOrder)
	resp := map[string]any{
		"planId": plan.ID,
		"title":  plan.Title,
		"stops":  stops,
	}
	if len(stops) >= 2 {
		points := make([]model.GeoPoint, len(stops))
		for i, st := range stops {
			points[i] = model.GeoPoint{Lat: st.Lat, Lng: st.Lng}
		}
		route, err := s.Directions.Directions(r.Context(), points)
		if err != nil {
			metrics.RouteComputations.WithLabelValues("error").Inc()
			log.Printf("directions failed for plan %s: %v", plan.ID, err)
		} else {
			metrics.RouteComputations.WithLabelValues("ok").Inc()
			resp["route"] = route
		}
	} else {
		metrics.RouteComputations.WithLabelValues("skipped").Inc()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) planEventsSSE(w http.ResponseWriter, r *http.Request, userID, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// ownership check before subscribing
	if _, err := s.Store.GetPlan(r.Context(), userID, id); err != nil {
		writeStoreProblem(w, err, r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions (admin)
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, err := s.Store.ListSubscriptions(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id} (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using the Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

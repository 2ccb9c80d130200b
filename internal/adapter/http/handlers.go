package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/civic-hotspot-service/internal/adapter/report"
	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/interaction"
	"github.com/couchcryptid/civic-hotspot-service/internal/layers"
	"github.com/couchcryptid/civic-hotspot-service/internal/navigator"
	"github.com/couchcryptid/civic-hotspot-service/internal/search"
)

const maxRequestBytes = 1 << 20

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/layers", s.handleLayers)
	mux.HandleFunc("GET /api/records", s.handleRecords)

	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("PUT /api/view", s.handlePan)
	mux.HandleFunc("POST /api/view/fly", s.handleFly)
	mux.HandleFunc("POST /api/view/next", s.handleCycle(1))
	mux.HandleFunc("POST /api/view/prev", s.handleCycle(-1))
	mux.HandleFunc("GET /api/locations", s.handleLocations)

	mux.HandleFunc("POST /api/pick", s.handlePick)
	mux.HandleFunc("GET /api/selection", s.handleSelection)
	mux.HandleFunc("DELETE /api/selection", s.handleClearSelection)

	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/search/input", s.handleSearchInput)
	mux.HandleFunc("GET /api/search/suggestions", s.handleSuggestions)
	mux.HandleFunc("POST /api/search/select", s.handleSearchSelect)
	mux.HandleFunc("DELETE /api/search/marker", s.handleClearMarker)

	mux.HandleFunc("GET /api/style", s.handleStyle)
	mux.HandleFunc("PUT /api/style", s.handleSetStyle)
	mux.HandleFunc("PUT /api/topic", s.handleSetTopic)

	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/report/solution", s.handleSolution)
}

func (s *Server) handleLayers(w http.ResponseWriter, _ *http.Request) {
	set := s.session.Composer.Current()
	if set == nil {
		set = &layers.LayerSet{Layers: []layers.Layer{}}
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("full") == "true" {
		set := s.session.Records()
		if set == nil {
			set = &domain.RecordSet{Records: []domain.GeoRecord{}, Topic: s.session.Refresh.Topic()}
		}
		writeJSON(w, http.StatusOK, set)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Summary())
}

type viewResponse struct {
	View       navigator.ViewState   `json:"view"`
	Transition *navigator.Transition `json:"transition,omitempty"`
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	resp := viewResponse{View: s.session.Navigator.Current()}
	if t, ok := s.session.Navigator.InFlight(); ok {
		resp.Transition = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePan(w http.ResponseWriter, r *http.Request) {
	var v navigator.ViewState
	if !decodeJSON(w, r, &v) {
		return
	}
	err := s.session.Navigator.ApplyUserPan(v)
	switch {
	case errors.Is(err, navigator.ErrInvalidViewState):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, navigator.ErrTransitionInFlight):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, viewResponse{View: s.session.Navigator.Current()})
	}
}

type flyRequest struct {
	Longitude float64  `json:"longitude"`
	Latitude  float64  `json:"latitude"`
	Zoom      *float64 `json:"zoom,omitempty"`
}

func (s *Server) handleFly(w http.ResponseWriter, r *http.Request) {
	var req flyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	zoom := s.session.Navigator.Current().Zoom
	if req.Zoom != nil {
		zoom = *req.Zoom
	}
	t, err := s.session.Navigator.FlyTo(req.Longitude, req.Latitude, zoom)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type cycleResponse struct {
	Location   navigator.Location   `json:"location"`
	Transition navigator.Transition `json:"transition"`
}

func (s *Server) handleCycle(step int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var (
			loc navigator.Location
			t   navigator.Transition
			err error
		)
		if step > 0 {
			loc, t, err = s.session.Navigator.CycleNext()
		} else {
			loc, t, err = s.session.Navigator.CyclePrev()
		}
		switch {
		case errors.Is(err, navigator.ErrNoLocations):
			writeError(w, http.StatusConflict, err)
		case err != nil:
			writeError(w, http.StatusInternalServerError, err)
		default:
			writeJSON(w, http.StatusOK, cycleResponse{Location: loc, Transition: t})
		}
	}
}

func (s *Server) handleLocations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"locations": s.session.Navigator.Locations(),
		"cursor":    s.session.Navigator.Cursor(),
	})
}

type selectionResponse struct {
	Selection *interaction.Selection `json:"selection"`
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	var ev interaction.PickEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	switch ev.Source {
	case "", interaction.SourceHover, interaction.SourceClick:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown pick source %q", ev.Source))
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{Selection: s.session.Broker.Pick(ev)})
}

func (s *Server) handleSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, selectionResponse{Selection: s.session.Broker.Current()})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, _ *http.Request) {
	s.session.Broker.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Search.Resolve(r.Context(), r.URL.Query().Get("q")))
}

type inputRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearchInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.session.Search.Input(r.Context(), req.Query)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Search.Suggestions())
}

// selectRequest chooses exactly one of a suggestion, a coordinate, or a query
// that parses as a coordinate.
type selectRequest struct {
	Suggestion *domain.Suggestion `json:"suggestion,omitempty"`
	Coordinate *search.Coordinate `json:"coordinate,omitempty"`
	Query      string             `json:"query,omitempty"`
}

type selectResponse struct {
	Marker     *domain.SearchMarker `json:"marker"`
	Transition navigator.Transition `json:"transition"`
}

func (s *Server) handleSearchSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		t   navigator.Transition
		err error
	)
	switch {
	case req.Suggestion != nil:
		t, err = s.session.Search.SelectSuggestion(*req.Suggestion)
	case req.Coordinate != nil:
		t, err = s.session.Search.SelectCoordinate(*req.Coordinate)
	case req.Query != "":
		c, ok := search.ParseCoordinates(req.Query)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("query %q is not a coordinate", req.Query))
			return
		}
		t, err = s.session.Search.SelectCoordinate(c)
	default:
		writeError(w, http.StatusBadRequest, errors.New("suggestion, coordinate or query is required"))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, selectResponse{Marker: s.session.Search.Marker(), Transition: t})
}

func (s *Server) handleClearMarker(w http.ResponseWriter, _ *http.Request) {
	s.session.Search.ClearMarker()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStyle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Style())
}

// handleSetStyle applies a partial update over the active style.
func (s *Server) handleSetStyle(w http.ResponseWriter, r *http.Request) {
	style := s.session.Style()
	if !decodeJSON(w, r, &style) {
		return
	}
	if err := s.session.SetStyle(style); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, style)
}

type topicRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) handleSetTopic(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	changed := s.session.SetTopic(req.Topic)
	writeJSON(w, http.StatusOK, map[string]any{"topic": req.Topic, "changed": changed})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	level, err := report.ParseLevel(q.Get("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body, err := s.reports.Generate(r.Context(), q.Get("location"), level)
	if err != nil {
		s.reportError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (s *Server) handleSolution(w http.ResponseWriter, r *http.Request) {
	body, err := s.reports.SolutionDetails(r.Context(), r.URL.Query().Get("problem_id"))
	if err != nil {
		s.reportError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (s *Server) reportError(w http.ResponseWriter, err error) {
	if errors.Is(err, report.ErrMissingLocation) || errors.Is(err, report.ErrMissingProblem) ||
		errors.Is(err, report.ErrInvalidLevel) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.logger.Warn("report collaborator failed", "error", err)
	writeError(w, http.StatusBadGateway, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	sharedobs.WriteJSON(w, status, v)
}

func writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck // client may have gone away
}

// Package http exposes the browser-facing gateway API. Every request
// is authenticated against the session registry, resolved to a fresh
// profile and capability set, then served by fanning out to the auth,
// admin, apprenti and jury services.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"alteris/gateway/internal/auth"
	"alteris/gateway/internal/clients"
	"alteris/gateway/internal/config"
	"alteris/gateway/internal/entretien"
	"alteris/gateway/internal/export"
	"alteris/gateway/internal/mail"
	"alteris/gateway/internal/model"
	"alteris/gateway/internal/notify"
	"alteris/gateway/internal/planning"
	"alteris/gateway/internal/roles"
	"alteris/gateway/internal/roster"
	"alteris/gateway/internal/session"
)

type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	auth     *clients.AuthClient
	admin    *clients.AdminClient
	apprenti *clients.ApprentiClient
	jury     *clients.JuryClient
	sessions *session.Registry
	cache    *planning.Cache
	agg      *notify.Aggregator
	board    *notify.Board
	mailer   mail.Service
	validate *entretien.Validator
}

func NewServer(cfg config.Config, logger *zap.Logger, cs *clients.Clients, sessions *session.Registry, cache *planning.Cache, agg *notify.Aggregator, mailer mail.Service) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		auth:     cs.Auth,
		admin:    cs.Admin,
		apprenti: cs.Apprenti,
		jury:     cs.Jury,
		sessions: sessions,
		cache:    cache,
		agg:      agg,
		board:    notify.NewBoard(agg),
		mailer:   mailer,
		validate: entretien.NewValidator(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/session/login", s.handleLogin)
	r.With(s.sessionMiddleware).Get("/session/me", s.handleGetMe)
	r.With(s.sessionMiddleware).Patch("/session/me", s.handleUpdateMe)
	r.With(s.sessionMiddleware).Post("/session/logout", s.handleLogout)

	r.With(s.sessionMiddleware).Get("/apprentis", s.handleListApprentis)
	r.With(s.sessionMiddleware).Get("/promotions", s.handleListPromotions)
	r.With(s.sessionMiddleware).Get("/notifications", s.handleNotifications)

	r.With(s.sessionMiddleware).Get("/journal/{apprentiId}", s.handleGetJournal)
	r.With(s.sessionMiddleware).Get("/journal/{apprentiId}/documents", s.handleGetDocuments)
	r.With(s.sessionMiddleware).Post("/journal/{apprentiId}/documents", s.handleUploadDocument)
	r.With(s.sessionMiddleware).Get("/journal/{apprentiId}/documents/{documentId}/fichier", s.handleDownloadDocument)
	r.With(s.sessionMiddleware).Post("/journal/{apprentiId}/documents/{documentId}/commentaires", s.handleAddDocumentComment)
	r.With(s.sessionMiddleware).Get("/journal/{apprentiId}/entretiens", s.handleListEntretiens)

	r.With(s.sessionMiddleware).Post("/entretiens", s.handleCreateEntretien)
	r.With(s.sessionMiddleware).Delete("/entretiens/{apprentiId}/{entretienId}", s.handleDeleteEntretien)
	r.With(s.sessionMiddleware).Patch("/entretiens/{apprentiId}/{entretienId}/statut", s.handleVoteEntretien)

	r.With(s.sessionMiddleware).Get("/juries", s.handleListJuries)
	r.With(s.sessionMiddleware).Post("/juries", s.handleCreateJury)
	r.With(s.sessionMiddleware).Get("/juries/timeline-options", s.handleTimelineOptions)
	r.With(s.sessionMiddleware).Get("/juries/export.xlsx", s.handleExportJuries)
	r.With(s.sessionMiddleware).Get("/juries/{juryId}", s.handleGetJury)
	r.With(s.sessionMiddleware).Patch("/juries/{juryId}", s.handleUpdateJury)

	r.With(s.sessionMiddleware).Get("/planning/calendar.ics", s.handleCalendar)

	return r
}

// Auth

type sessionKey struct{}

type sessionState struct {
	id      string
	session session.Session
}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		sess, ok, err := s.sessions.Get(r.Context(), claims.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "session_expired")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, &sessionState{id: claims.ID, session: sess})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) *sessionState {
	value := ctx.Value(sessionKey{})
	state, _ := value.(*sessionState)
	return state
}

// viewer is the per-request resolution: the fresh profile from the
// auth service, its capabilities and the accessible apprentice set.
// Capabilities are recomputed on every request so a role change takes
// effect on the next call.
type viewer struct {
	state *sessionState
	user  *model.User
	caps  roles.Capabilities
	set   *roster.Set
}

func (v *viewer) token() string {
	return v.state.session.UpstreamToken
}

// canAct reports whether the viewer may modify records of the given
// apprentice: themself, someone they follow, or anyone when the viewer
// has the global surface.
func (v *viewer) canAct(apprentiID string) bool {
	return v.set.Follows(apprentiID) || v.caps.CanBrowseAllJournals
}

func (s *Server) loadViewer(w http.ResponseWriter, r *http.Request) (*viewer, bool) {
	state := sessionFromContext(r.Context())
	if state == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return nil, false
	}
	user, err := s.auth.Me(r.Context(), state.session.UpstreamToken)
	if err != nil {
		s.upstreamError(w, r, state.id, err)
		return nil, false
	}
	caps := roles.Resolve(user)
	var full *model.Roster
	if caps.CanBrowseAllJournals {
		full, err = s.admin.Apprentis(r.Context(), state.session.UpstreamToken)
		if err != nil {
			s.logger.Warn("roster fetch failed, keeping followed set", zap.Error(err))
			full = nil
		}
	}
	return &viewer{
		state: state,
		user:  user,
		caps:  caps,
		set:   roster.Build(caps, user, full),
	}, true
}

// upstreamError translates a service call failure. An upstream 401
// means the stored token is dead, so the gateway session is torn down
// with it.
func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	var se *clients.StatusError
	if errors.As(err, &se) {
		if se.Status == http.StatusUnauthorized && sessionID != "" {
			if derr := s.sessions.Delete(r.Context(), sessionID); derr != nil {
				s.logger.Warn("session delete failed", zap.String("session_id", sessionID), zap.Error(derr))
			}
			s.board.Drop(sessionID)
			writeError(w, http.StatusUnauthorized, "not_authenticated")
			return
		}
		writeError(w, se.Status, se.Code)
		return
	}
	s.logger.Error("upstream request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusBadGateway, "upstream_unavailable")
}

type capabilitiesResponse struct {
	Roles                []string `json:"roles"`
	IsApprentice         bool     `json:"isApprentice"`
	CanBrowseAllJournals bool     `json:"canBrowseAllJournals"`
	CanManageJuries      bool     `json:"canManageJuries"`
	SeesGlobalFeed       bool     `json:"seesGlobalFeed"`
	CanApprove           bool     `json:"canApprove"`
	CanEditCompetencies  bool     `json:"canEditCompetencies"`
}

func mapCapabilities(caps roles.Capabilities) capabilitiesResponse {
	kinds := make([]string, 0, len(caps.Kinds))
	for kind := range caps.Kinds {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	return capabilitiesResponse{
		Roles:                kinds,
		IsApprentice:         caps.IsApprentice,
		CanBrowseAllJournals: caps.CanBrowseAllJournals,
		CanManageJuries:      caps.CanManageJuries,
		SeesGlobalFeed:       caps.SeesGlobalFeed,
		CanApprove:           caps.CanApprove,
		CanEditCompetencies:  caps.CanEditCompetencies,
	}
}

// Sessions

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token        string               `json:"token"`
	Me           *model.User          `json:"me"`
	Capabilities capabilitiesResponse `json:"capabilities"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var se *clients.StatusError
		if errors.As(err, &se) {
			writeError(w, se.Status, se.Code)
			return
		}
		s.logger.Error("login upstream failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_unavailable")
		return
	}

	caps := roles.Resolve(&res.Me)
	sessionID := uuid.NewString()
	err = s.sessions.Put(r.Context(), sessionID, session.Session{
		Email:         res.Me.Email,
		UserID:        res.Me.ID,
		Role:          res.Me.Role,
		UpstreamToken: res.AccessToken,
	})
	if err != nil {
		s.logger.Error("session store failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	claims := auth.Claims{UserID: res.Me.ID, Role: res.Me.Role}
	claims.ID = sessionID
	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.SessionTTL, res.Me.Email, claims)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	if s.mailer != nil && caps.IsApprentice {
		me := res.Me
		go s.sendLoginDigest(res.AccessToken, &me, caps)
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:        token,
		Me:           &res.Me,
		Capabilities: mapCapabilities(caps),
	})
}

// sendLoginDigest mails the apprentice their pending deadlines right
// after login. Best effort: failures are logged, never surfaced.
func (s *Server) sendLoginDigest(token string, me *model.User, caps roles.Capabilities) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	set := roster.Build(caps, me, nil)
	feed := s.agg.Feed(ctx, token, me.ID, set, time.Now())
	msg, ok := mail.Digest(me, feed.Items)
	if !ok {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("login digest send failed", zap.String("user_id", me.ID), zap.Error(err))
	}
}

type meResponse struct {
	Me           *model.User          `json:"me"`
	Capabilities capabilitiesResponse `json:"capabilities"`
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Me: v.user, Capabilities: mapCapabilities(v.caps)})
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	state := sessionFromContext(r.Context())
	if state == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req model.UpdateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	user, err := s.auth.UpdateMe(r.Context(), state.session.UpstreamToken, req)
	if err != nil {
		s.upstreamError(w, r, state.id, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Me: user, Capabilities: mapCapabilities(roles.Resolve(user))})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	state := sessionFromContext(r.Context())
	if state == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if err := s.sessions.Delete(r.Context(), state.id); err != nil {
		s.logger.Warn("session delete failed", zap.String("session_id", state.id), zap.Error(err))
	}
	s.board.Drop(state.id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Journal

func (s *Server) handleListApprentis(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apprentis": v.set.All()})
}

func (s *Server) handleListPromotions(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	promotions, err := s.cache.Promotions(r.Context(), v.token())
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotions": promotions})
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	apprentiID := chi.URLParam(r, "apprentiId")
	if !v.set.Contains(apprentiID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	journal, err := s.apprenti.Journal(r.Context(), v.token(), apprentiID)
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journal": journal})
}

func (s *Server) handleGetDocuments(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	apprentiID := chi.URLParam(r, "apprentiId")
	if !v.set.Contains(apprentiID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	bundle, err := s.apprenti.Documents(r.Context(), v.token(), apprentiID)
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	apprentiID := chi.URLParam(r, "apprentiId")
	if !v.canAct(apprentiID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		writeError(w, http.StatusBadRequest, "multipart_required")
		return
	}
	doc, err := s.apprenti.UploadDocument(r.Context(), v.token(), apprentiID, contentType, r.Body)
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": doc})
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	apprentiID := chi.URLParam(r, "apprentiId")
	if !v.set.Contains(apprentiID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	resp, err := s.apprenti.DownloadDocument(r.Context(), v.token(), apprentiID, chi.URLParam(r, "documentId"))
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	defer resp.Body.Close()

	for _, header := range []string{"Content-Type", "Content-Disposition", "Content-Length"} {
		if value := resp.Header.Get(header); value != "" {
			w.Header().Set(header, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Warn("document stream interrupted", zap.Error(err))
	}
}

type commentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleAddDocumentComment(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	apprentiID := chi.URLParam(r, "apprentiId")
	if !v.canAct(apprentiID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "missing_content")
		return
	}
	comment, err := s.apprenti.AddDocumentComment(r.Context(), v.token(), apprentiID, chi.URLParam(r, "documentId"), req.Content)
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

// Entretiens

// entretienPayload extends the service record with the derived shared
// status, which is never stored upstream.
type entretienPayload struct {
	model.Entretien
	StatutGlobal string `json:"statut_global"`
}

func toEntretienPayload(e model.Entretien) entretienPayload {
	return entretienPayload{Entretien: e, StatutGlobal: entretien.OverallOf(&e)}
}

func (s *Server) handleListEntretiens(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	apprentiID := chi.URLParam(r, "apprentiId")
	if !v.set.Contains(apprentiID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	list, err := s.apprenti.Entretiens(r.Context(), v.token(), apprentiID)
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	payloads := make([]entretienPayload, 0, len(list))
	for _, e := range list {
		payloads = append(payloads, toEntretienPayload(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entretiens": payloads})
}

func (s *Server) handleCreateEntretien(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	var req entretien.ScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.ApprentiID != "" && !v.canAct(req.ApprentiID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	index, err := s.cache.Index(r.Context(), v.token())
	if err != nil {
		s.logger.Warn("promotion lookup failed, scheduling windows unresolved", zap.Error(err))
		index = planning.BuildIndex(nil)
	}
	existing, err := s.apprenti.Entretiens(r.Context(), v.token(), req.ApprentiID)
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	if err := s.validate.Check(req, index, existing); err != nil {
		var ve *entretien.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Code)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	created, err := s.apprenti.CreateEntretien(r.Context(), v.token(), req.Upstream())
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entretien": toEntretienPayload(*created)})
}

func (s *Server) handleDeleteEntretien(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	apprentiID := chi.URLParam(r, "apprentiId")
	if !v.canAct(apprentiID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := s.apprenti.DeleteEntretien(r.Context(), v.token(), apprentiID, chi.URLParam(r, "entretienId")); err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type voteRequest struct {
	Role   string `json:"role"`
	Statut string `json:"statut"`
}

func (s *Server) handleVoteEntretien(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	apprentiID := chi.URLParam(r, "apprentiId")
	if !v.set.Contains(apprentiID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !entretien.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if !entretien.ValidStatut(req.Statut) {
		writeError(w, http.StatusBadRequest, "invalid_statut")
		return
	}
	allowed := (req.Role == entretien.RoleTuteur && v.caps.Has(roles.Tuteur)) ||
		(req.Role == entretien.RoleMaitre && v.caps.Has(roles.Maitre))
	if !allowed {
		writeError(w, http.StatusForbidden, "wrong_party")
		return
	}

	updated, err := s.apprenti.SetEntretienStatut(r.Context(), v.token(), apprentiID, chi.URLParam(r, "entretienId"), req.Role, req.Statut)
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	// Re-apply the vote locally so the derived status reflects it even
	// when the upstream echo lags behind the write.
	statut, err := entretien.ApplyVote(updated, req.Role, req.Statut)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entretien":     updated,
		"statut_global": statut,
	})
}

// Juries

func (s *Server) handleListJuries(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	juries, err := s.jury.Juries(r.Context(), v.token())
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	visible := make([]model.Jury, 0, len(juries))
	for _, j := range juries {
		if notify.JuryVisible(j, v.user.ID, v.set) {
			visible = append(visible, j)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

func (s *Server) handleGetJury(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	jury, err := s.jury.InfosCompletes(r.Context(), v.token(), chi.URLParam(r, "juryId"))
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	if !notify.JuryVisible(*jury, v.user.ID, v.set) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, jury)
}

func (s *Server) handleCreateJury(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	if !v.caps.CanManageJuries {
		writeError(w, http.StatusForbidden, "managers_only")
		return
	}
	var req model.JuryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	created, err := s.jury.Create(r.Context(), v.token(), req)
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateJury(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	if !v.caps.CanManageJuries {
		writeError(w, http.StatusForbidden, "managers_only")
		return
	}
	var req model.JuryUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	updated, err := s.jury.Update(r.Context(), v.token(), chi.URLParam(r, "juryId"), req)
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleTimelineOptions(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	if !v.caps.CanManageJuries {
		writeError(w, http.StatusForbidden, "managers_only")
		return
	}
	options, err := s.jury.TimelineOptions(r.Context(), v.token())
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"options": options})
}

func (s *Server) handleExportJuries(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	if !v.caps.CanManageJuries {
		writeError(w, http.StatusForbidden, "managers_only")
		return
	}
	juries, err := s.jury.Juries(r.Context(), v.token())
	if err != nil {
		s.upstreamError(w, r, v.state.id, err)
		return
	}
	index, err := s.cache.Index(r.Context(), v.token())
	if err != nil {
		s.logger.Warn("promotion lookup failed, exporting without timeline labels", zap.Error(err))
		index = planning.BuildIndex(nil)
	}
	buf, filename, err := export.JuryWorkbook(juries, index, time.Now())
	if err != nil {
		s.logger.Error("jury export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Feed

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}
	feed := s.board.Refresh(r.Context(), v.state.id, v.token(), v.user.ID, v.set, time.Now())
	writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadViewer(w, r)
	if !ok {
		return
	}

	var entretiens []model.Entretien
	for _, ap := range v.set.All() {
		if !v.set.Follows(ap.ID) {
			continue
		}
		list, err := s.apprenti.Entretiens(r.Context(), v.token(), ap.ID)
		if err != nil {
			s.logger.Warn("entretiens fetch failed", zap.String("apprenti_id", ap.ID), zap.Error(err))
			continue
		}
		entretiens = append(entretiens, list...)
	}

	var visible []model.Jury
	if juries, err := s.jury.Juries(r.Context(), v.token()); err != nil {
		s.logger.Warn("juries fetch failed", zap.Error(err))
	} else {
		for _, j := range juries {
			if notify.JuryVisible(j, v.user.ID, v.set) {
				visible = append(visible, j)
			}
		}
	}

	name := v.user.FullName
	if name == "" {
		name = v.user.Email
	}
	out := export.Calendar("Alteris - "+name, entretiens, visible, time.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="alteris.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// Utilities

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

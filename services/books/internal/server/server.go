package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"bookkreate/internal/ratelimit"
	"bookkreate/internal/util"
	"bookkreate/pkg/domain"
	"bookkreate/pkg/genapi"
	"bookkreate/pkg/identity"
	"bookkreate/pkg/store"
	"bookkreate/services/books/internal/app"
	"bookkreate/services/books/internal/authclient"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	Auth          *authclient.Client
	TokenVerifier identity.TokenVerifier
	InternalToken string
	GenerateLimit *ratelimit.FixedWindowLimiter
}

// Server exposes HTTP endpoints for the books service.
type Server struct {
	app           *app.App
	auth          *authclient.Client
	tokenVerifier identity.TokenVerifier
	internalToken string
	generateLimit *ratelimit.FixedWindowLimiter
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires the app")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("server requires a token verifier")
	}
	if strings.TrimSpace(cfg.InternalToken) == "" {
		return nil, errors.New("server requires an internal token")
	}
	s := &Server{
		app:           cfg.App,
		auth:          cfg.Auth,
		tokenVerifier: cfg.TokenVerifier,
		internalToken: cfg.InternalToken,
		generateLimit: cfg.GenerateLimit,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("books", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/sessions/anonymous", s.handleAnonymousSession)
	s.mux.Handle("/internal/profiles/", s.withInternal(s.handleInternalProfile))

	s.mux.Handle("/books", s.withUser(s.handleBooks))
	s.mux.Handle("/books/", s.withUser(s.handleBookByID))
	s.mux.Handle("/profile", s.withUser(s.handleProfile))
	s.mux.Handle("/profile/quota", s.withUser(s.handleQuota))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnonymousSession mints a guest identity via the identity provider
// so visitors can try one book without an account.
func (s *Server) handleAnonymousSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "anonymous sessions not configured")
		return
	}
	session, err := s.auth.CreateAnonymousSession(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "identity provider error")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type userHandler func(http.ResponseWriter, *http.Request, domain.Identity)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ident, err := s.tokenVerifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, ident)
	})
}

func (s *Server) withInternal(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.internalToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateBook(w, r, ident)
	case http.MethodGet:
		s.handleListBooks(w, r, ident)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	var in app.CreateBookInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	book, err := s.app.CreateBook(r.Context(), ident, in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	books, err := s.app.ListBooks(r.Context(), ident.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

// /books/{id}, /books/{id}/plan, /books/{id}/export,
// /books/{id}/chapters/{chid}, /books/{id}/chapters/{chid}/content
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/books/")
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}

	book, ok, err := s.app.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		notFound(w, "book not found")
		return
	}
	if book.UserID != ident.ID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	switch len(parts) {
	case 1:
		s.handleBook(w, r, ident, book)
	case 2:
		switch parts[1] {
		case "plan":
			s.handleGeneratePlan(w, r, ident, book.ID)
		case "export":
			s.handleExport(w, r, book.ID)
		default:
			notFound(w, "not found")
		}
	case 3:
		if parts[1] != "chapters" || parts[2] == "" {
			notFound(w, "not found")
			return
		}
		s.handleChapter(w, r, book.ID, parts[2])
	case 4:
		if parts[1] != "chapters" || parts[2] == "" || parts[3] != "content" {
			notFound(w, "not found")
			return
		}
		s.handleGenerateChapter(w, r, ident, book.ID, parts[2])
	default:
		notFound(w, "not found")
	}
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request, ident domain.Identity, book domain.Book) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, book)
	case http.MethodPatch:
		patch, err := decodeBookPatch(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := s.app.UpdateBook(r.Context(), book.ID, patch)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.app.DeleteBook(r.Context(), book.ID, ident.ID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request, bookID, chapterID string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	patch, err := decodeChapterPatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	book, err := s.app.UpdateChapter(r.Context(), bookID, chapterID, patch)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request, ident domain.Identity, bookID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.generateLimit.Allow(ident.ID) {
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}
	book, err := s.app.GenerateBookPlan(r.Context(), bookID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleGenerateChapter(w http.ResponseWriter, r *http.Request, ident domain.Identity, bookID, chapterID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.generateLimit.Allow(ident.ID) {
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}
	book, err := s.app.GenerateChapter(r.Context(), bookID, chapterID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	export, err := s.app.ExportBook(r.Context(), bookID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	profile, err := s.app.Profile(r.Context(), ident)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	decision, err := s.app.CreationQuota(r.Context(), ident)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// /internal/profiles/{uid}/quota-reset
func (s *Server) handleInternalProfile(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/internal/profiles/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "quota-reset" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.ResetQuota(r.Context(), parts[0]); err != nil {
		if errors.Is(err, app.ErrProfileNotFound) {
			notFound(w, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeAppError maps app and workflow errors onto HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var quotaErr *app.QuotaError
	var apiErr *genapi.APIError
	switch {
	case errors.As(err, &quotaErr):
		writeError(w, http.StatusForbidden, quotaErr.Reason)
	case errors.Is(err, app.ErrBookNotFound):
		notFound(w, "book not found")
	case errors.Is(err, app.ErrChapterNotFound):
		notFound(w, "chapter not found")
	case errors.Is(err, app.ErrGenerationInFlight):
		writeError(w, http.StatusConflict, "generation already in progress")
	case errors.Is(err, app.ErrPlanExists):
		writeError(w, http.StatusConflict, "book plan already generated")
	case errors.Is(err, app.ErrExportNotReady):
		writeError(w, http.StatusConflict, "book is not completed")
	case errors.Is(err, app.ErrExportUnavailable):
		writeError(w, http.StatusServiceUnavailable, "exports not configured")
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, "generation service error")
	case strings.Contains(err.Error(), "illegal book transition"),
		strings.Contains(err.Error(), "illegal chapter transition"):
		writeError(w, http.StatusConflict, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// isValidationError recognizes CreateBookInput validation failures, which
// arrive unwrapped from the app layer.
func isValidationError(err error) bool {
	msg := err.Error()
	return strings.HasSuffix(msg, "is required") ||
		strings.Contains(msg, "chapterCount must be") ||
		strings.Contains(msg, "chapters per book")
}

type bookPatchRequest struct {
	Title            *string          `json:"title"`
	CoverDescription *string          `json:"coverDescription"`
	BookDescription  *string          `json:"bookDescription"`
	EndPageContent   *string          `json:"endPageContent"`
	Acknowledgements *string          `json:"acknowledgements"`
	Status           *string          `json:"status"`
	Chapters         []domain.Chapter `json:"chapters"`
}

func decodeBookPatch(r *http.Request) (store.BookPatch, error) {
	var req bookPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		return store.BookPatch{}, errors.New("invalid JSON body")
	}
	patch := store.BookPatch{
		Title:            req.Title,
		CoverDescription: req.CoverDescription,
		BookDescription:  req.BookDescription,
		EndPageContent:   req.EndPageContent,
		Acknowledgements: req.Acknowledgements,
		Chapters:         req.Chapters,
	}
	if req.Status != nil {
		status, ok := domain.ParseBookStatus(*req.Status)
		if !ok {
			return store.BookPatch{}, errors.New("invalid status")
		}
		patch.Status = &status
	}
	for _, ch := range req.Chapters {
		if _, ok := domain.ParseChapterStatus(string(ch.Status)); !ok {
			return store.BookPatch{}, errors.New("invalid chapter status")
		}
	}
	return patch, nil
}

type chapterPatchRequest struct {
	Title     *string `json:"title"`
	Summary   *string `json:"summary"`
	Content   *string `json:"content"`
	WordCount *int    `json:"wordCount"`
	Status    *string `json:"status"`
}

func decodeChapterPatch(r *http.Request) (store.ChapterPatch, error) {
	var req chapterPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		return store.ChapterPatch{}, errors.New("invalid JSON body")
	}
	patch := store.ChapterPatch{
		Title:     req.Title,
		Summary:   req.Summary,
		Content:   req.Content,
		WordCount: req.WordCount,
	}
	if req.Status != nil {
		status, ok := domain.ParseChapterStatus(*req.Status)
		if !ok {
			return store.ChapterPatch{}, errors.New("invalid status")
		}
		patch.Status = &status
	}
	return patch, nil
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForBooks(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForBooks(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == "forbidden":
		return "BOOK_FORBIDDEN"
	case message == "book not found":
		return "BOOK_NOT_FOUND"
	case message == "chapter not found":
		return "CHAPTER_NOT_FOUND"
	case message == "profile not found":
		return "PROFILE_NOT_FOUND"
	case message == "generation already in progress":
		return "GENERATION_IN_PROGRESS"
	case message == "book plan already generated":
		return "BOOK_PLAN_EXISTS"
	case message == "generation service error":
		return "GENERATION_UPSTREAM_ERROR"
	case message == "identity provider error":
		return "AUTH_UPSTREAM_ERROR"
	case message == "book is not completed":
		return "EXPORT_NOT_READY"
	case message == "exports not configured":
		return "EXPORT_UNAVAILABLE"
	case message == "rate limited":
		return "RATE_LIMITED"
	case message == "invalid json body":
		return "BOOK_INVALID_REQUEST"
	case strings.Contains(message, "invalid status"), strings.Contains(message, "invalid chapter status"):
		return "BOOK_INVALID_STATUS"
	case strings.Contains(message, "illegal book transition"), strings.Contains(message, "illegal chapter transition"):
		return "BOOK_ILLEGAL_TRANSITION"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "BOOK_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "BOOK_QUOTA_EXCEEDED"
	case http.StatusNotFound:
		return "BOOK_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/karupanerura/mq-cst/internal/cst"
	"github.com/karupanerura/mq-cst/internal/editscript"
	"github.com/karupanerura/mq-cst/internal/parser"
	"github.com/karupanerura/mq-cst/internal/render"
	"github.com/karupanerura/mq-cst/internal/types"
)

const basePath = "/v1/sessions"

// Options configures the session handler. Zero values take the defaults of
// NewHTTPHandler.
type Options struct {
	Parser        *parser.Parser
	SessionTTL    time.Duration
	SweepInterval time.Duration
	MaxTextBytes  int
}

type session struct {
	mu sync.RWMutex

	id         string
	name       string
	tree       *cst.Tree
	createTime time.Time
	updateTime time.Time
}

type sessionView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
	Revision   uint64    `json:"revision"`
	Size       int       `json:"size"`
	HasError   bool      `json:"hasError"`
}

// view must be called with s.mu held.
func (s *session) view() sessionView {
	return sessionView{
		ID:         s.id,
		Name:       s.name,
		CreateTime: s.createTime,
		UpdateTime: s.updateTime,
		Revision:   s.tree.Revision(),
		Size:       len(s.tree.Text()),
		HasError:   s.tree.Root().HasError(),
	}
}

type sessionResponse struct {
	Session sessionView     `json:"session"`
	Tree    render.Document `json:"tree"`
}

// response must be called with s.mu held.
func (s *session) response() sessionResponse {
	return sessionResponse{
		Session: s.view(),
		Tree:    render.NewDocument(s.name, s.tree),
	}
}

type httpHandler struct {
	parser       *parser.Parser
	ttl          time.Duration
	maxTextBytes int
	now          func() time.Time
	sessions     sync.Map
}

func (h *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == basePath {
		switch r.Method {
		case http.MethodGet:
			h.listSessions(w, r)
			return

		case http.MethodPost:
			h.createSession(w, r)
			return

		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
	}

	sessionID, ok := strings.CutPrefix(r.URL.Path, basePath+"/")
	if !ok || sessionID == "" || strings.ContainsRune(sessionID, '/') {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if i := strings.LastIndexByte(sessionID, ':'); i != -1 {
		customMethod := sessionID[i+1:]
		sessionID = sessionID[:i]
		switch customMethod {
		case "edit":
			if r.Method == http.MethodPost {
				h.editSession(w, r, sessionID)
				return
			}
			fallthrough

		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		h.getSession(w, r, sessionID)
		return

	case http.MethodDelete:
		h.deleteSession(w, r, sessionID)
		return

	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
}

type createSessionRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (h *httpHandler) createSession(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("failed to decode request body: %v", err)
		resError(w, http.StatusBadRequest, &types.Error{Tag: types.DecodeErrorTag, Err: fmt.Errorf("json.Decode: %w", err)})
		return
	}
	if err := h.checkSize(len(req.Text)); err != nil {
		resError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	now := h.now().UTC()
	s := &session{
		id:         uuid.NewString(),
		name:       req.Name,
		tree:       h.parser.Parse([]byte(req.Text)),
		createTime: now,
		updateTime: now,
	}
	h.sessions.Store(s.id, s)

	s.mu.RLock()
	defer s.mu.RUnlock()
	resJSON(w, http.StatusOK, s.response())
}

func (h *httpHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	results := []*session{}
	h.sessions.Range(func(key, value any) bool {
		results = append(results, value.(*session))
		return true
	})

	views := make([]sessionView, len(results))
	for i, s := range results {
		s.mu.RLock()
		views[i] = s.view()
		s.mu.RUnlock()
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].CreateTime.Equal(views[j].CreateTime) {
			return views[i].CreateTime.Before(views[j].CreateTime)
		}
		return views[i].ID < views[j].ID
	})

	resJSON(w, http.StatusOK, map[string][]sessionView{"sessions": views})
}

func (h *httpHandler) getSession(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.lookup(id)
	if err != nil {
		resError(w, http.StatusNotFound, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateTime = h.now().UTC()
	resJSON(w, http.StatusOK, s.response())
}

type editSessionRequest struct {
	Edits json.RawMessage `json:"edits"`
	Text  *string         `json:"text"`
}

func (h *httpHandler) editSession(w http.ResponseWriter, r *http.Request, id string) {
	defer r.Body.Close()

	s, err := h.lookup(id)
	if err != nil {
		resError(w, http.StatusNotFound, err)
		return
	}

	var req editSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("failed to decode request body: %v", err)
		resError(w, http.StatusBadRequest, &types.Error{Tag: types.DecodeErrorTag, Err: fmt.Errorf("json.Decode: %w", err)})
		return
	}
	edits, err := editscript.ParseBatchJSON(req.Edits)
	if err != nil {
		resError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var text []byte
	if req.Text != nil {
		text = []byte(*req.Text)
	} else if text, err = editscript.Apply(s.tree.Text(), edits); err != nil {
		resError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.checkSize(len(text)); err != nil {
		resError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	tree, err := h.parser.Reparse(s.tree, edits, text)
	if err != nil {
		resError(w, http.StatusBadRequest, err)
		return
	}
	s.tree = tree
	s.updateTime = h.now().UTC()
	resJSON(w, http.StatusOK, s.response())
}

func (h *httpHandler) deleteSession(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.lookup(id)
	if err != nil {
		resError(w, http.StatusNotFound, err)
		return
	}
	h.sessions.Delete(id)

	s.mu.RLock()
	defer s.mu.RUnlock()
	resJSON(w, http.StatusOK, s.view())
}

func (h *httpHandler) lookup(id string) (*session, error) {
	if ret, ok := h.sessions.Load(id); ok {
		return ret.(*session), nil
	}
	return nil, &types.Error{
		Tag:   types.SessionNotFoundErrorTag,
		Err:   fmt.Errorf("session %q does not exist", id),
		Extra: map[string]any{"id": id},
	}
}

func (h *httpHandler) checkSize(n int) error {
	if h.maxTextBytes > 0 && n > h.maxTextBytes {
		return &types.Error{
			Tag:   types.TextTooLargeErrorTag,
			Err:   fmt.Errorf("text has %d bytes, the limit is %d", n, h.maxTextBytes),
			Extra: map[string]any{"size": n, "limit": h.maxTextBytes},
		}
	}
	return nil
}

// sweep drops sessions not used since before deadline and returns how many
// were dropped.
func (h *httpHandler) sweep(deadline time.Time) int {
	swept := 0
	h.sessions.Range(func(key, value any) bool {
		s := value.(*session)
		s.mu.RLock()
		idle := s.updateTime.Before(deadline)
		s.mu.RUnlock()
		if idle {
			h.sessions.Delete(key)
			swept++
		}
		return true
	})
	return swept
}

func newHTTPHandler(opts Options) *httpHandler {
	h := &httpHandler{
		parser:       opts.Parser,
		ttl:          opts.SessionTTL,
		maxTextBytes: opts.MaxTextBytes,
		now:          time.Now,
	}
	if h.parser == nil {
		h.parser = parser.New()
	}
	if h.ttl == 0 {
		h.ttl = 30 * time.Minute
	}
	return h
}

// NewHTTPHandler serves parse sessions under /v1/sessions. Idle sessions are
// swept every opts.SweepInterval until ctx is done.
func NewHTTPHandler(ctx context.Context, opts Options) http.Handler {
	h := newHTTPHandler(opts)

	interval := opts.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := h.sweep(h.now().UTC().Add(-h.ttl)); n != 0 {
					log.Printf("swept %d idle sessions", n)
				}
			}
		}
	}()
	return h
}

func resError(w http.ResponseWriter, status int, err error) {
	var detail any = map[string]any{"message": err.Error()}
	var d types.Detailer
	if errors.As(err, &d) {
		detail = d.Detail()
	}
	if err := resJSON(w, status, map[string]any{"error": detail}); err != nil {
		log.Printf("failed to write error response: %v", err)
	}
}

func resJSON(w http.ResponseWriter, status int, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json.MarshalIndent: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)+1))
	w.WriteHeader(status)

	if _, err = w.Write(b); err != nil {
		return fmt.Errorf("w.Write: %w", err)
	}
	if _, err = io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("io.WriteString: %w", err)
	}
	return nil
}

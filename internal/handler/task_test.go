package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/tasktracker/tasktracker/internal/auth"
	"github.com/tasktracker/tasktracker/internal/middleware"
	"github.com/tasktracker/tasktracker/internal/model"
	"github.com/tasktracker/tasktracker/internal/repository"
	"github.com/tasktracker/tasktracker/internal/service"
)

// memTaskStore backs the task service in tests.
type memTaskStore struct {
	mu         sync.Mutex
	tasks      map[string]*model.Task
	categories map[string]*model.Category
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{
		tasks:      make(map[string]*model.Task),
		categories: make(map[string]*model.Category),
	}
}

func (s *memTaskStore) addCategory(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ulid.Make().String()
	s.categories[id] = &model.Category{ID: id, Name: name, CreatedAt: time.Now()}
	return id
}

func (s *memTaskStore) CreateTask(ctx context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[cp.ID] = &cp
	return nil
}

func (s *memTaskStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

func (s *memTaskStore) ListTasksByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Task
	for _, task := range s.tasks {
		if task.UserID == userID {
			cp := *task
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memTaskStore) UpdateTask(ctx context.Context, id string, update repository.TaskUpdate) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	if update.Text != nil {
		task.Text = *update.Text
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.DueAt != nil {
		task.DueAt = update.DueAt
	}
	if update.CategoryID != nil {
		task.CategoryID = *update.CategoryID
	}
	task.UpdatedAt = time.Now()
	cp := *task
	return &cp, nil
}

func (s *memTaskStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return repository.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *memTaskStore) GetCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	cp := *cat
	return &cp, nil
}

// newAPITestServer wires auth and task routes the way main does.
func newAPITestServer(t *testing.T, taskStore *memTaskStore) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := auth.NewTokenCodec([]byte("task-test-secret"), 30*time.Minute)
	authSvc := service.NewAuthService(newMemUserStore(), codec, nil, logger, nil)
	taskSvc := service.NewTaskService(taskStore, nil)

	authHandler := NewAuthHandler(authSvc, logger)
	taskHandler := NewTaskHandler(taskSvc, logger)

	r := chi.NewRouter()
	r.Post("/auth/register", authHandler.Register)
	r.Post("/auth/login", authHandler.Login)
	r.Route("/api/v1/tasks", func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{Logger: logger, Resolver: authSvc}))
		r.Get("/", taskHandler.List)
		r.Post("/", taskHandler.Create)
		r.Get("/{id}", taskHandler.Get)
		r.Put("/{id}", taskHandler.Update)
		r.Delete("/{id}", taskHandler.Delete)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// registerAndLogin creates a user and returns its bearer token.
func registerAndLogin(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()

	body := `{"username":"` + username + `","password":"` + username + ` long password"}`
	resp := postJSON(t, srv.URL+"/auth/register", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", username, resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/auth/login", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", username, resp.StatusCode)
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("invalid login body: %v", err)
	}
	return login.AccessToken
}

func doAuthed(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

// Two users each see only their own tasks; one user's task reads as not
// found to the other, on reads and writes alike.
func TestTaskEndpointsOwnerScoped(t *testing.T) {
	store := newMemTaskStore()
	catID := store.addCategory("work")
	srv := newAPITestServer(t, store)

	aliceToken := registerAndLogin(t, srv, "alice")
	bobToken := registerAndLogin(t, srv, "bob")

	// Alice creates a task.
	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/v1/tasks", aliceToken,
		`{"text":"write report","status":"not_started","category_id":"`+catID+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("invalid create body: %v", err)
	}
	resp.Body.Close()

	// Alice reads it back.
	resp = doAuthed(t, http.MethodGet, srv.URL+"/api/v1/tasks/"+created.ID, aliceToken, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner get: expected 200, got %d", resp.StatusCode)
	}

	// Bob cannot see it.
	resp = doAuthed(t, http.MethodGet, srv.URL+"/api/v1/tasks/"+created.ID, bobToken, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("other user get: expected 404, got %d", resp.StatusCode)
	}

	// Bob cannot update or delete it either.
	resp = doAuthed(t, http.MethodPut, srv.URL+"/api/v1/tasks/"+created.ID, bobToken, `{"text":"hijacked"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("other user update: expected 404, got %d", resp.StatusCode)
	}
	resp = doAuthed(t, http.MethodDelete, srv.URL+"/api/v1/tasks/"+created.ID, bobToken, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("other user delete: expected 404, got %d", resp.StatusCode)
	}

	// Bob's list is empty; alice's has one entry.
	resp = doAuthed(t, http.MethodGet, srv.URL+"/api/v1/tasks", bobToken, "")
	var bobList struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bobList); err != nil {
		t.Fatalf("invalid list body: %v", err)
	}
	resp.Body.Close()
	if len(bobList.Data) != 0 {
		t.Errorf("expected empty list for bob, got %d entries", len(bobList.Data))
	}

	resp = doAuthed(t, http.MethodGet, srv.URL+"/api/v1/tasks", aliceToken, "")
	var aliceList struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&aliceList); err != nil {
		t.Fatalf("invalid list body: %v", err)
	}
	resp.Body.Close()
	if len(aliceList.Data) != 1 {
		t.Errorf("expected 1 task for alice, got %d", len(aliceList.Data))
	}
}

func TestTaskEndpointsValidation(t *testing.T) {
	store := newMemTaskStore()
	catID := store.addCategory("work")
	srv := newAPITestServer(t, store)

	token := registerAndLogin(t, srv, "carol")

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown category", `{"text":"x","status":"not_started","category_id":"missing"}`, http.StatusBadRequest, "CATEGORY_NOT_FOUND"},
		{"bad status", `{"text":"x","status":"paused","category_id":"` + catID + `"}`, http.StatusBadRequest, "INVALID_STATUS"},
		{"empty text", `{"text":"","status":"done","category_id":"` + catID + `"}`, http.StatusBadRequest, "TEXT_REQUIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doAuthed(t, http.MethodPost, srv.URL+"/api/v1/tasks", token, tt.body)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, resp.StatusCode)
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body.Error.Code != tt.wantErr {
				t.Errorf("expected code %s, got %s", tt.wantErr, body.Error.Code)
			}
		})
	}
}

func TestTaskEndpointsRequireAuth(t *testing.T) {
	srv := newAPITestServer(t, newMemTaskStore())

	resp, err := http.Get(srv.URL + "/api/v1/tasks")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}

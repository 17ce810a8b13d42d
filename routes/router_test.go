package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openforum/forum/config"
	"github.com/openforum/forum/middleware"
	"github.com/openforum/forum/schema"
	"github.com/openforum/forum/store"
	"github.com/openforum/forum/testutil"
	"github.com/openforum/forum/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	db     *gorm.DB
	router *gin.Engine
	auth   *middleware.Authenticator
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := config.AppConfig{
		GinMode:            "test",
		LoginURL:           "/accounts/login/",
		RateLimitPerMinute: 10000,
		AllowedOrigins:     []string{"*"},
		TokenTTLHours:      1,
		AdminUsernames:     []string{"admin"},
		IdentityTable:      testutil.IdentityTable,
	}
	db := testutil.SetupTestDB(t)
	auth := &middleware.Authenticator{
		Issuer:    utils.NewTokenIssuer("test-secret", time.Hour),
		Blacklist: utils.NewTokenBlacklist(nil),
		LoginURL:  cfg.LoginURL,
	}
	st := store.New(db, schema.Forum(testutil.IdentityTable))
	return &server{db: db, router: SetupRouter(cfg, st, auth), auth: auth}
}

// login creates a user directly in the identity table and returns a bearer token for it.
func (s *server) login(t *testing.T, name string) (uint, string) {
	t.Helper()
	u := testutil.CreateUser(t, s.db, name)
	token, _, err := s.auth.Issuer.Generate(u.ID, u.Username)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return u.ID, token
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func expect(t *testing.T, w *httptest.ResponseRecorder, status int) envelope {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d: %s", w.Code, status, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func decodeID(t *testing.T, env envelope) uint {
	t.Helper()
	var row struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &row); err != nil || row.ID == 0 {
		t.Fatalf("no id in %s: %v", env.Data, err)
	}
	return row.ID
}

func decodeList(t *testing.T, env envelope) []json.RawMessage {
	t.Helper()
	var rows []json.RawMessage
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatalf("not a list: %s", env.Data)
	}
	return rows
}

func TestHelloWorld(t *testing.T) {
	s := newServer(t)
	_, token := s.login(t, "ana")

	w := s.do(t, http.MethodGet, "/", token, nil)
	if w.Code != http.StatusOK || w.Body.String() != "hello, world" {
		t.Fatalf("GET / = %d %q", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous API client got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/accounts/login/?next=%2F" {
		t.Fatalf("anonymous browser got %d to %q", w.Code, w.Header().Get("Location"))
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	s := newServer(t)
	creds := map[string]string{"username": "bob", "password": "hunter22"}

	expect(t, s.do(t, http.MethodPost, "/api/v1/auth/register", "", creds), http.StatusCreated)
	env := expect(t, s.do(t, http.MethodPost, "/api/v1/auth/register", "", creds), http.StatusBadRequest)
	if !strings.Contains(env.Message, "already taken") {
		t.Errorf("duplicate register message = %q", env.Message)
	}
	expect(t, s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x", "password": "123"}), http.StatusBadRequest)

	expect(t, s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "bob", "password": "wrong!!"}), http.StatusUnauthorized)
	env = expect(t, s.do(t, http.MethodPost, "/api/v1/auth/login", "", creds), http.StatusOK)
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil || login.Token == "" {
		t.Fatalf("no token in %s", env.Data)
	}

	env = expect(t, s.do(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil), http.StatusOK)
	if !strings.Contains(string(env.Data), `"username":"bob"`) {
		t.Errorf("me = %s", env.Data)
	}

	expect(t, s.do(t, http.MethodPost, "/api/v1/auth/logout", login.Token, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil), http.StatusUnauthorized)
}

func TestTopicLifecycle(t *testing.T) {
	s := newServer(t)
	_, ana := s.login(t, "ana")
	_, bob := s.login(t, "bob")
	_, admin := s.login(t, "admin")

	topicID := decodeID(t, expect(t, s.do(t, http.MethodPost, "/api/v1/topics", ana,
		map[string]string{"title": "Go", "description": "the language"}), http.StatusCreated))
	topicPath := fmt.Sprintf("/api/v1/topics/%d", topicID)

	// pending topics are hidden from everyone but the author and admins
	expect(t, s.do(t, http.MethodGet, topicPath, bob, nil), http.StatusNotFound)
	expect(t, s.do(t, http.MethodGet, topicPath, ana, nil), http.StatusOK)
	env := expect(t, s.do(t, http.MethodGet, "/api/v1/topics", bob, nil), http.StatusOK)
	if rows := decodeList(t, env); len(rows) != 0 {
		t.Errorf("non-admin listing = %s", env.Data)
	}

	expect(t, s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/topics/%d/approve", topicID), bob, nil), http.StatusForbidden)
	expect(t, s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/topics/%d/approve", topicID), admin, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/topics/%d/approve", topicID), admin, nil), http.StatusOK)

	if rows := decodeList(t, expect(t, s.do(t, http.MethodGet, "/api/v1/topics", bob, nil), http.StatusOK)); len(rows) != 1 {
		t.Errorf("approved topic not listed, got %d", len(rows))
	}
	env = expect(t, s.do(t, http.MethodGet, topicPath, bob, nil), http.StatusOK)
	if !strings.Contains(string(env.Data), `"is_approved":true`) {
		t.Errorf("topic not approved: %s", env.Data)
	}

	questionID := decodeID(t, expect(t, s.do(t, http.MethodPost, topicPath+"/questions", bob,
		map[string]string{"title": strings.Repeat("q", schema.TitleMaxLength), "description": "why"}), http.StatusCreated))
	env = expect(t, s.do(t, http.MethodPost, topicPath+"/questions", bob,
		map[string]string{"title": strings.Repeat("q", schema.TitleMaxLength+1), "description": "why"}), http.StatusBadRequest)
	if !strings.Contains(string(env.Data), `"field":"title"`) {
		t.Errorf("title error data = %s", env.Data)
	}

	questionPath := fmt.Sprintf("/api/v1/questions/%d", questionID)
	responseID := decodeID(t, expect(t, s.do(t, http.MethodPost, questionPath+"/responses", ana,
		map[string]string{"description": "since 1.18"}), http.StatusCreated))
	expect(t, s.do(t, http.MethodPost, questionPath+"/upvotes", ana, nil), http.StatusCreated)
	expect(t, s.do(t, http.MethodPost, questionPath+"/upvotes", ana, nil), http.StatusCreated)
	expect(t, s.do(t, http.MethodPost, questionPath+"/tags", ana, map[string]uint{"tagged_user_id": 9999}), http.StatusBadRequest)
	expect(t, s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/responses/%d/upvotes", responseID), bob, nil), http.StatusCreated)

	env = expect(t, s.do(t, http.MethodGet, questionPath, ana, nil), http.StatusOK)
	var detail struct {
		Responses []struct {
			ID uint `json:"id"`
		} `json:"responses"`
	}
	if err := json.Unmarshal(env.Data, &detail); err != nil || len(detail.Responses) != 1 {
		t.Fatalf("question detail = %s", env.Data)
	}

	deleted := expect(t, s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/topics/%d", topicID), admin, nil), http.StatusOK)
	if !strings.Contains(string(deleted.Data), fmt.Sprintf(`"%s":1`, schema.ResponseUpVoteTable)) {
		t.Errorf("delete result = %s", deleted.Data)
	}
	for _, table := range []string{schema.TopicTable, schema.QuestionTable, schema.ResponseTable, schema.QuestionUpVoteTable, schema.ResponseUpVoteTable} {
		if n := testutil.CountRows(t, s.db, table); n != 0 {
			t.Errorf("%s has %d rows after cascade", table, n)
		}
	}
	expect(t, s.do(t, http.MethodGet, questionPath, ana, nil), http.StatusNotFound)
}

func TestSoftDeleteRequiresOwnerOrAdmin(t *testing.T) {
	s := newServer(t)
	_, ana := s.login(t, "ana")
	_, bob := s.login(t, "bob")
	_, admin := s.login(t, "admin")

	topicID := decodeID(t, expect(t, s.do(t, http.MethodPost, "/api/v1/topics", ana,
		map[string]string{"title": "Go", "description": "the language"}), http.StatusCreated))
	questionID := decodeID(t, expect(t, s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/topics/%d/questions", topicID), ana,
		map[string]string{"title": "Generics?", "description": "when"}), http.StatusCreated))
	responseID := decodeID(t, expect(t, s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/questions/%d/responses", questionID), ana,
		map[string]string{"description": "1.18"}), http.StatusCreated))

	responsePath := fmt.Sprintf("/api/v1/responses/%d", responseID)
	expect(t, s.do(t, http.MethodDelete, responsePath, bob, nil), http.StatusForbidden)
	expect(t, s.do(t, http.MethodDelete, responsePath, ana, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodDelete, responsePath, ana, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodDelete, "/api/v1/responses/424242", ana, nil), http.StatusNotFound)

	questionPath := fmt.Sprintf("/api/v1/questions/%d", questionID)
	env := expect(t, s.do(t, http.MethodGet, questionPath, ana, nil), http.StatusOK)
	var detail struct {
		Responses []json.RawMessage `json:"responses"`
	}
	if err := json.Unmarshal(env.Data, &detail); err != nil || len(detail.Responses) != 0 {
		t.Errorf("soft-deleted response still listed: %s", env.Data)
	}
	if n := testutil.CountRows(t, s.db, schema.ResponseTable); n != 1 {
		t.Errorf("soft delete removed the row: %d left", n)
	}

	expect(t, s.do(t, http.MethodDelete, questionPath, admin, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodGet, questionPath, ana, nil), http.StatusNotFound)
	expect(t, s.do(t, http.MethodGet, questionPath, admin, nil), http.StatusOK)
}

func TestAdminDeleteUser(t *testing.T) {
	s := newServer(t)
	anaID, ana := s.login(t, "ana")
	bobID, _ := s.login(t, "bob")
	_, admin := s.login(t, "admin")

	expect(t, s.do(t, http.MethodPost, "/api/v1/nominations", ana, map[string]uint{"nominated_user_id": bobID}), http.StatusCreated)

	env := expect(t, s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/users/%d", bobID), admin, nil), http.StatusConflict)
	if !strings.Contains(string(env.Data), schema.NominationTable) {
		t.Errorf("conflict data = %s", env.Data)
	}
	expect(t, s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/users/%d", anaID), ana, nil), http.StatusForbidden)

	carl, _ := s.login(t, "carl")
	expect(t, s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/users/%d", carl), admin, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/users/%d", carl), admin, nil), http.StatusNotFound)
}

func TestBadRequests(t *testing.T) {
	s := newServer(t)
	_, ana := s.login(t, "ana")

	expect(t, s.do(t, http.MethodGet, "/api/v1/topics/abc", ana, nil), http.StatusBadRequest)
	expect(t, s.do(t, http.MethodGet, "/api/v1/topics/0", ana, nil), http.StatusBadRequest)
	expect(t, s.do(t, http.MethodPost, "/api/v1/topics", ana, map[string]string{"title": "no description"}), http.StatusBadRequest)
	expect(t, s.do(t, http.MethodGet, "/api/v1/topics", "", nil), http.StatusUnauthorized)
	expect(t, s.do(t, http.MethodGet, "/api/v1/nope", ana, nil), http.StatusNotFound)
	expect(t, s.do(t, http.MethodGet, "/health", "", nil), http.StatusOK)
}

func TestPendingTopicContentIsHidden(t *testing.T) {
	s := newServer(t)
	_, ana := s.login(t, "ana")
	_, bob := s.login(t, "bob")
	_, admin := s.login(t, "admin")

	topicID := decodeID(t, expect(t, s.do(t, http.MethodPost, "/api/v1/topics", ana,
		map[string]string{"title": "Draft", "description": "pending review"}), http.StatusCreated))
	questionID := decodeID(t, expect(t, s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/topics/%d/questions", topicID), ana,
		map[string]string{"title": "Early?", "description": "before approval"}), http.StatusCreated))
	questionPath := fmt.Sprintf("/api/v1/questions/%d", questionID)
	responseID := decodeID(t, expect(t, s.do(t, http.MethodPost, questionPath+"/responses", ana,
		map[string]string{"description": "self answer"}), http.StatusCreated))
	responseVotes := fmt.Sprintf("/api/v1/responses/%d/upvotes", responseID)

	carlID, _ := s.login(t, "carl")
	hidden := []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodGet, questionPath, nil},
		{http.MethodPost, questionPath + "/responses", map[string]string{"description": "sneaky"}},
		{http.MethodPost, questionPath + "/upvotes", nil},
		{http.MethodPost, questionPath + "/tags", map[string]uint{"tagged_user_id": carlID}},
		{http.MethodPost, responseVotes, nil},
	}
	for _, h := range hidden {
		expect(t, s.do(t, h.method, h.path, bob, h.body), http.StatusNotFound)
	}
	if n := testutil.CountRows(t, s.db, schema.ResponseTable); n != 1 {
		t.Errorf("responses = %d, want 1", n)
	}
	for _, table := range []string{schema.QuestionUpVoteTable, schema.ResponseUpVoteTable, schema.TagTable} {
		if n := testutil.CountRows(t, s.db, table); n != 0 {
			t.Errorf("%s has %d rows under a pending topic", table, n)
		}
	}

	expect(t, s.do(t, http.MethodGet, questionPath, ana, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodPost, responseVotes, admin, nil), http.StatusCreated)

	// once approved the same requests go through
	expect(t, s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/topics/%d/approve", topicID), admin, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodGet, questionPath, bob, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodPost, responseVotes, bob, nil), http.StatusCreated)

	// soft-deleted responses cannot be upvoted by non-admins
	expect(t, s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/responses/%d", responseID), ana, nil), http.StatusOK)
	expect(t, s.do(t, http.MethodPost, responseVotes, bob, nil), http.StatusNotFound)
}

func TestListTopicsIncludesOwnPending(t *testing.T) {
	s := newServer(t)
	_, ana := s.login(t, "ana")
	_, bob := s.login(t, "bob")
	_, admin := s.login(t, "admin")

	expect(t, s.do(t, http.MethodPost, "/api/v1/topics", ana, map[string]string{"title": "Ana's", "description": "d"}), http.StatusCreated)
	expect(t, s.do(t, http.MethodPost, "/api/v1/topics", bob, map[string]string{"title": "Bob's", "description": "d"}), http.StatusCreated)

	for _, tc := range []struct {
		token string
		want  int
	}{{ana, 1}, {bob, 1}, {admin, 2}} {
		if rows := decodeList(t, expect(t, s.do(t, http.MethodGet, "/api/v1/topics", tc.token, nil), http.StatusOK)); len(rows) != tc.want {
			t.Errorf("listed %d topics, want %d", len(rows), tc.want)
		}
	}
}

func TestTitlesRejectEncodedMarkup(t *testing.T) {
	s := newServer(t)
	_, ana := s.login(t, "ana")

	env := expect(t, s.do(t, http.MethodPost, "/api/v1/topics", ana,
		map[string]string{"title": "&lt;script&gt;alert(1)&lt;/script&gt;", "description": "d"}), http.StatusBadRequest)
	if !strings.Contains(string(env.Data), `"field":"title"`) {
		t.Errorf("error data = %s", env.Data)
	}
	if n := testutil.CountRows(t, s.db, schema.TopicTable); n != 0 {
		t.Fatalf("topic stored despite markup title")
	}

	env = expect(t, s.do(t, http.MethodPost, "/api/v1/topics", ana,
		map[string]string{"title": "<b>Q&amp;A</b>", "description": "d"}), http.StatusCreated)
	var topic struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(env.Data, &topic); err != nil || topic.Title != "Q&A" {
		t.Errorf("stored title = %s", env.Data)
	}
}

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/auth"
	"github.com/kartikbazzad/bunbase/tracker/internal/authz"
	"github.com/kartikbazzad/bunbase/tracker/internal/idgen"
	"github.com/kartikbazzad/bunbase/tracker/internal/labels"
	"github.com/kartikbazzad/bunbase/tracker/internal/membership"
	"github.com/kartikbazzad/bunbase/tracker/internal/store/sqlite"
	"github.com/kartikbazzad/bunbase/tracker/internal/tasks"
	"github.com/kartikbazzad/bunbase/tracker/internal/token"
	"github.com/kartikbazzad/bunbase/tracker/internal/users"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	t      *testing.T
	router *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	log := logger.Discard()
	codec, err := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	tokens := token.NewService(codec, token.Config{})
	ids := idgen.New()
	sync := labels.New(st, log)
	authority := membership.New(st, ids, log)
	enforcer, err := authz.NewEnforcer(authority, log)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	router := NewRouter(Deps{
		Auth:           auth.NewService(st, auth.NewBcryptHasher(bcrypt.MinCost), tokens, ids, auth.Config{}, log),
		Users:          users.NewService(st, log),
		Projects:       authority,
		Labels:         sync,
		Tasks:          tasks.NewService(st, sync, ids, log),
		Tokens:         tokens,
		Enforcer:       enforcer,
		Logger:         log,
		LoginPerMinute: 1000,
		LoginBurst:     1000,
	})
	return &testApp{t: t, router: router}
}

func (a *testApp) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) expect(w *httptest.ResponseRecorder, status int, out any) {
	a.t.Helper()
	if w.Code != status {
		a.t.Fatalf("status = %d, want %d: %s", w.Code, status, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			a.t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
}

type session struct {
	ID           string
	AccessToken  string
	RefreshToken string
}

func (a *testApp) signup(name string) session {
	a.t.Helper()
	email := name + "@example.com"
	a.expect(a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "username": name, "password": "s3cret!",
	}), http.StatusCreated, nil)

	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		User         struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	a.expect(a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "s3cret!",
	}), http.StatusOK, &login)
	if login.TokenType != "Bearer" || login.ExpiresIn != 3600 || login.User.ID == "" {
		a.t.Fatalf("login = %+v", login)
	}
	return session{ID: login.User.ID, AccessToken: login.AccessToken, RefreshToken: login.RefreshToken}
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}

func (a *testApp) expectError(w *httptest.ResponseRecorder, status int, code string) errorBody {
	a.t.Helper()
	var body errorBody
	a.expect(w, status, &body)
	if body.Code != code {
		a.t.Fatalf("code = %q, want %q (%s)", body.Code, code, body.Message)
	}
	return body
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup("alice")

	var me struct {
		Username string `json:"username"`
		Password any    `json:"password_hash"`
	}
	app.expect(app.do(http.MethodGet, "/api/v1/user", alice.AccessToken, nil), http.StatusOK, &me)
	if me.Username != "alice" || me.Password != nil {
		t.Errorf("me = %+v", me)
	}

	app.expectError(app.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "nope",
	}), http.StatusUnauthorized, "CREDENTIAL_MISMATCH")

	app.expectError(app.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "alice@example.com", "username": "alice2", "password": "s3cret!",
	}), http.StatusConflict, "CONFLICT")

	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	app.expect(app.do(http.MethodPost, "/api/v1/auth/refresh", alice.RefreshToken, nil), http.StatusOK, &refreshed)
	app.expect(app.do(http.MethodGet, "/api/v1/user", refreshed.AccessToken, nil), http.StatusOK, nil)

	app.expectError(app.do(http.MethodPost, "/api/v1/auth/refresh", alice.AccessToken, nil), http.StatusUnauthorized, "TOKEN_KIND_MISMATCH")
	app.expectError(app.do(http.MethodGet, "/api/v1/user", alice.RefreshToken, nil), http.StatusUnauthorized, "TOKEN_KIND_MISMATCH")
	app.expectError(app.do(http.MethodGet, "/api/v1/user", "", nil), http.StatusUnauthorized, "UNAUTHORIZED")

	app.expect(app.do(http.MethodPost, "/api/v1/auth/logout", alice.AccessToken, nil), http.StatusNoContent, nil)
}

func TestUserSettings(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup("alice")

	var settings struct {
		Theme    string `json:"theme"`
		Language string `json:"language"`
	}
	app.expect(app.do(http.MethodPatch, "/api/v1/user/settings", alice.AccessToken, map[string]string{"theme": "dark"}), http.StatusOK, &settings)
	if settings.Theme != "dark" || settings.Language != "en" {
		t.Errorf("settings = %+v", settings)
	}
	app.expectError(app.do(http.MethodPatch, "/api/v1/user/settings", alice.AccessToken, map[string]string{"language": "xx"}), http.StatusBadRequest, "BAD_REQUEST")
}

type projectBody struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

type taskBody struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Priority string   `json:"priority"`
	Labels   []string `json:"labels"`
}

func TestProjectMembershipAndPermissions(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup("alice")
	bob := app.signup("bob")
	carol := app.signup("carol")

	var project projectBody
	app.expect(app.do(http.MethodPost, "/api/v1/projects", alice.AccessToken, map[string]any{
		"name": "Launch", "labels": []string{"ops", "api"},
	}), http.StatusCreated, &project)
	base := "/api/v1/projects/" + project.ID

	// Non-members are refused; missing projects are not found.
	app.expectError(app.do(http.MethodGet, base, bob.AccessToken, nil), http.StatusForbidden, "FORBIDDEN")
	app.expectError(app.do(http.MethodGet, "/api/v1/projects/missing", alice.AccessToken, nil), http.StatusNotFound, "NOT_FOUND")

	app.expect(app.do(http.MethodPost, base+"/members", alice.AccessToken, map[string]string{
		"user_id": bob.ID, "role": "member",
	}), http.StatusCreated, nil)
	app.expectError(app.do(http.MethodPost, base+"/members", alice.AccessToken, map[string]string{
		"user_id": bob.ID,
	}), http.StatusConflict, "ALREADY_MEMBER")

	// Members read but cannot manage.
	app.expect(app.do(http.MethodGet, base, bob.AccessToken, nil), http.StatusOK, nil)
	app.expectError(app.do(http.MethodPut, base, bob.AccessToken, map[string]string{"name": "x"}), http.StatusForbidden, "FORBIDDEN")
	app.expectError(app.do(http.MethodPost, base+"/members", bob.AccessToken, map[string]string{"user_id": carol.ID}), http.StatusForbidden, "FORBIDDEN")

	var list struct {
		Projects []projectBody `json:"projects"`
	}
	app.expect(app.do(http.MethodGet, "/api/v1/projects", bob.AccessToken, nil), http.StatusOK, &list)
	if len(list.Projects) != 1 || !reflect.DeepEqual(list.Projects[0].Labels, []string{"api", "ops"}) {
		t.Errorf("projects = %+v", list.Projects)
	}

	// The last owner cannot leave or be demoted.
	app.expectError(app.do(http.MethodDelete, base+"/members/"+alice.ID, alice.AccessToken, nil), http.StatusConflict, "LAST_OWNER_VIOLATION")
	app.expectError(app.do(http.MethodPatch, base+"/members/"+alice.ID, alice.AccessToken, map[string]string{"role": "member"}), http.StatusConflict, "LAST_OWNER_VIOLATION")

	// A member may leave on their own.
	app.expect(app.do(http.MethodDelete, base+"/members/"+bob.ID, bob.AccessToken, nil), http.StatusNoContent, nil)
	app.expectError(app.do(http.MethodDelete, base+"/members/"+bob.ID, alice.AccessToken, nil), http.StatusNotFound, "NOT_A_MEMBER")

	// Promote carol, then alice can step down.
	app.expect(app.do(http.MethodPost, base+"/members", alice.AccessToken, map[string]string{"user_id": carol.ID, "role": "owner"}), http.StatusCreated, nil)
	app.expect(app.do(http.MethodPatch, base+"/members/"+alice.ID, alice.AccessToken, map[string]string{"role": "member"}), http.StatusOK, nil)
	app.expectError(app.do(http.MethodDelete, base, alice.AccessToken, nil), http.StatusForbidden, "FORBIDDEN")

	var members struct {
		Members []struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		} `json:"members"`
	}
	app.expect(app.do(http.MethodGet, base+"/members", alice.AccessToken, nil), http.StatusOK, &members)
	if len(members.Members) != 2 {
		t.Errorf("members = %+v", members.Members)
	}
}

func TestOwnershipHandover(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup("alice")
	bob := app.signup("bob")

	var project projectBody
	app.expect(app.do(http.MethodPost, "/api/v1/projects", alice.AccessToken, map[string]any{"name": "Relay"}), http.StatusCreated, &project)
	base := "/api/v1/projects/" + project.ID

	app.expect(app.do(http.MethodPost, base+"/members", alice.AccessToken, map[string]string{"user_id": bob.ID}), http.StatusCreated, nil)
	app.expectError(app.do(http.MethodDelete, base+"/members/"+alice.ID, alice.AccessToken, nil), http.StatusConflict, "LAST_OWNER_VIOLATION")

	app.expect(app.do(http.MethodPatch, base+"/members/"+bob.ID, alice.AccessToken, map[string]string{"role": "owner"}), http.StatusOK, nil)
	app.expect(app.do(http.MethodDelete, base+"/members/"+alice.ID, alice.AccessToken, nil), http.StatusNoContent, nil)

	app.expectError(app.do(http.MethodGet, base, alice.AccessToken, nil), http.StatusForbidden, "FORBIDDEN")
	app.expect(app.do(http.MethodPut, base, bob.AccessToken, map[string]string{"name": "Relay 2"}), http.StatusOK, nil)
	app.expectError(app.do(http.MethodDelete, base+"/members/"+bob.ID, bob.AccessToken, nil), http.StatusConflict, "LAST_OWNER_VIOLATION")
}

func TestLabelsAndTasks(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup("alice")
	bob := app.signup("bob")

	var project projectBody
	app.expect(app.do(http.MethodPost, "/api/v1/projects", alice.AccessToken, map[string]any{"name": "Board"}), http.StatusCreated, &project)
	base := "/api/v1/projects/" + project.ID
	app.expect(app.do(http.MethodPost, base+"/members", alice.AccessToken, map[string]string{"user_id": bob.ID}), http.StatusCreated, nil)

	var task taskBody
	app.expect(app.do(http.MethodPost, base+"/tasks", bob.AccessToken, map[string]any{
		"title": "Write docs", "labels": []string{"docs", "ui"},
	}), http.StatusCreated, &task)
	if task.Status != "todo" || task.Priority != "medium" {
		t.Errorf("task defaults = %+v", task)
	}

	var set struct {
		Labels []string `json:"labels"`
	}
	app.expect(app.do(http.MethodGet, base+"/labels", bob.AccessToken, nil), http.StatusOK, &set)
	if !reflect.DeepEqual(set.Labels, []string{"docs", "ui"}) {
		t.Errorf("labels after create = %v", set.Labels)
	}

	taskURL := base + "/tasks/" + task.ID
	app.expect(app.do(http.MethodPatch, taskURL+"/status", bob.AccessToken, map[string]string{"status": "in progress"}), http.StatusOK, &task)
	if task.Status != "in progress" {
		t.Errorf("status = %q", task.Status)
	}
	app.expectError(app.do(http.MethodPatch, taskURL+"/priority", bob.AccessToken, map[string]string{"priority": "urgent"}), http.StatusBadRequest, "BAD_REQUEST")

	// Only owners delete project labels; removal cascades to tasks.
	app.expectError(app.do(http.MethodDelete, base+"/labels/ui", bob.AccessToken, nil), http.StatusForbidden, "FORBIDDEN")
	app.expect(app.do(http.MethodDelete, base+"/labels/ui", alice.AccessToken, nil), http.StatusNoContent, nil)
	app.expect(app.do(http.MethodGet, taskURL, bob.AccessToken, nil), http.StatusOK, &task)
	if !reflect.DeepEqual(task.Labels, []string{"docs"}) {
		t.Errorf("task labels after removal = %v", task.Labels)
	}

	var batch struct {
		Tasks []taskBody `json:"tasks"`
	}
	app.expect(app.do(http.MethodPost, base+"/tasks/batch", bob.AccessToken, map[string]any{
		"tasks": []map[string]any{{"title": "a"}, {"title": "b", "priority": "high"}},
	}), http.StatusCreated, &batch)
	if len(batch.Tasks) != 2 {
		t.Fatalf("batch = %+v", batch.Tasks)
	}

	errBody := app.expectError(app.do(http.MethodPost, base+"/tasks/batch", bob.AccessToken, map[string]any{
		"tasks": []map[string]any{{"title": "ok"}, {"title": ""}},
	}), http.StatusBadRequest, "BAD_REQUEST")
	if errBody.Details["index"] != "1" {
		t.Errorf("details = %v", errBody.Details)
	}

	var deleted struct {
		DeletedCount int `json:"deleted_count"`
	}
	app.expect(app.do(http.MethodDelete, base+"/tasks", bob.AccessToken, map[string]any{
		"task_ids": []string{batch.Tasks[0].ID, batch.Tasks[1].ID, "unknown"},
	}), http.StatusOK, &deleted)
	if deleted.DeletedCount != 2 {
		t.Errorf("deleted = %d", deleted.DeletedCount)
	}

	var tasksList struct {
		Tasks []taskBody `json:"tasks"`
	}
	app.expect(app.do(http.MethodGet, base+"/tasks", alice.AccessToken, nil), http.StatusOK, &tasksList)
	if len(tasksList.Tasks) != 1 {
		t.Errorf("tasks = %+v", tasksList.Tasks)
	}
}

func TestBatchDeleteProjects(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup("alice")
	bob := app.signup("bob")

	var mine, theirs projectBody
	app.expect(app.do(http.MethodPost, "/api/v1/projects", alice.AccessToken, map[string]any{"name": "mine"}), http.StatusCreated, &mine)
	app.expect(app.do(http.MethodPost, "/api/v1/projects", bob.AccessToken, map[string]any{"name": "theirs"}), http.StatusCreated, &theirs)

	body := app.expectError(app.do(http.MethodDelete, "/api/v1/projects", alice.AccessToken, map[string]any{
		"project_ids": []string{mine.ID, theirs.ID},
	}), http.StatusForbidden, "FORBIDDEN")
	if body.Details["project_id"] != theirs.ID {
		t.Errorf("details = %v", body.Details)
	}
	app.expect(app.do(http.MethodGet, "/api/v1/projects/"+mine.ID, alice.AccessToken, nil), http.StatusOK, nil)

	var deleted struct {
		DeletedCount int `json:"deleted_count"`
	}
	app.expect(app.do(http.MethodDelete, "/api/v1/projects", alice.AccessToken, map[string]any{
		"project_ids": []string{mine.ID, "missing"},
	}), http.StatusOK, &deleted)
	if deleted.DeletedCount != 1 {
		t.Errorf("deleted = %d", deleted.DeletedCount)
	}
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	app := newTestApp(t)
	app.expectError(app.do(http.MethodGet, "/api/v1/nope", "", nil), http.StatusNotFound, "NOT_FOUND")

	w := app.do(http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("tracker_http_requests_total")) {
		t.Errorf("metrics = %d", w.Code)
	}
}

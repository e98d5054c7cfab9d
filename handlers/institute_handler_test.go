package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/learn2pay/backend/middleware"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"github.com/learn2pay/backend/services/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newInstituteHandler(env *testEnv) *InstituteHandler {
	return NewInstituteHandler(env.authSvc, env.instSvc, env.stuSvc, env.cookies, env.auditor, env.logger)
}

func validRegisterBody() RegisterInstituteRequest {
	return RegisterInstituteRequest{
		Name:          "Springfield High",
		Type:          "school",
		ContactEmail:  "admin@springfield.edu",
		ContactPerson: "Seymour Skinner",
		Phone:         "5551234567",
		Address:       "19 Plympton Street",
		Password:      "secret123",
	}
}

func withInstitute(req *http.Request, inst *models.Institute) *http.Request {
	principal := &auth.Principal{Role: models.RoleInstitute, Institute: inst}
	return req.WithContext(middleware.WithPrincipal(req.Context(), principal))
}

func cookieByName(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandleRegisterInstitute(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		env.institutes.On("Create", mock.Anything, mock.Anything).Return(nil)

		body, _ := json.Marshal(validRegisterBody())
		req := httptest.NewRequest(http.MethodPost, "/api/institute/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleRegister(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "Springfield High", data["institute_name"])
		assert.Equal(t, string(models.KYCStatusNotStarted), data["kyc_status"])
		assert.NotContains(t, data, "password_hash")

		assert.True(t, env.auditor.has(models.AuditActionInstituteCreated))
	})

	t.Run("duplicate email reports 400", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		env.institutes.On("Create", mock.Anything, mock.Anything).Return(repositories.ErrDuplicate)

		body, _ := json.Marshal(validRegisterBody())
		req := httptest.NewRequest(http.MethodPost, "/api/institute/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleRegister(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "institute already exists")
	})

	t.Run("validation failure lists field errors", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		input := validRegisterBody()
		input.ContactEmail = "not-an-email"
		input.Password = "short"
		body, _ := json.Marshal(input)

		req := httptest.NewRequest(http.MethodPost, "/api/institute/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleRegister(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		details := response["details"].(map[string]interface{})
		assert.Contains(t, details, "ContactEmail")
		assert.Contains(t, details, "Password")
	})

	t.Run("malformed body", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		req := httptest.NewRequest(http.MethodPost, "/api/institute/register", bytes.NewReader([]byte("{")))
		w := httptest.NewRecorder()

		handler.HandleRegister(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleInstituteLogin(t *testing.T) {
	t.Run("successful login sets both cookies", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		inst := &models.Institute{
			ID:           uuid.New(),
			Name:         "Springfield High",
			ContactEmail: "admin@springfield.edu",
			PasswordHash: env.hash(t, "secret123"),
			KYCStatus:    models.KYCStatusNotStarted,
		}
		env.institutes.On("GetByEmail", mock.Anything, "admin@springfield.edu").Return(inst, nil)
		env.sessions.On("Put", mock.Anything, mock.Anything).Return(nil)
		env.kycRepo.On("GetByInstituteID", mock.Anything, inst.ID).Return(nil, repositories.ErrNotFound)

		body, _ := json.Marshal(LoginRequest{Email: "admin@springfield.edu", Password: "secret123"})
		req := httptest.NewRequest(http.MethodPost, "/api/institute/login", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleLogin(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		access := cookieByName(t, w, AccessTokenCookie)
		require.NotNil(t, access)
		assert.True(t, access.HttpOnly)
		assert.Equal(t, "/", access.Path)
		assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
		assert.NotEmpty(t, access.Value)

		refresh := cookieByName(t, w, RefreshTokenCookie)
		require.NotNil(t, refresh)
		assert.True(t, refresh.HttpOnly)
		assert.Greater(t, refresh.MaxAge, access.MaxAge)

		assert.NotContains(t, w.Body.String(), "password")
		assert.True(t, env.auditor.has(models.AuditActionLoginSuccess))
	})

	t.Run("wrong password is a uniform 401", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		inst := &models.Institute{
			ID:           uuid.New(),
			ContactEmail: "admin@springfield.edu",
			PasswordHash: env.hash(t, "secret123"),
		}
		env.institutes.On("GetByEmail", mock.Anything, "admin@springfield.edu").Return(inst, nil)

		body, _ := json.Marshal(LoginRequest{Email: "admin@springfield.edu", Password: "wrong"})
		req := httptest.NewRequest(http.MethodPost, "/api/institute/login", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleLogin(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid email or password")
		assert.True(t, env.auditor.has(models.AuditActionLoginFailed))
	})

	t.Run("unknown email matches the wrong-password response", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		env.institutes.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, repositories.ErrNotFound)

		body, _ := json.Marshal(LoginRequest{Email: "nobody@example.com", Password: "whatever"})
		req := httptest.NewRequest(http.MethodPost, "/api/institute/login", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleLogin(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid email or password")
	})
}

func TestHandleInstituteRefresh(t *testing.T) {
	t.Run("missing cookie clears both cookies", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		req := httptest.NewRequest(http.MethodPost, "/api/institute/refresh", nil)
		w := httptest.NewRecorder()

		handler.HandleRefresh(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		access := cookieByName(t, w, AccessTokenCookie)
		require.NotNil(t, access)
		assert.Equal(t, -1, access.MaxAge)
		assert.Empty(t, access.Value)
	})

	t.Run("rotated-out token is flagged as reuse", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		inst := &models.Institute{
			ID:           uuid.New(),
			ContactEmail: "admin@springfield.edu",
			PasswordHash: env.hash(t, "secret123"),
		}

		// Issue a real refresh token, then point the stored session elsewhere.
		env.sessions.On("Put", mock.Anything, mock.Anything).Return(nil)
		env.institutes.On("GetByEmail", mock.Anything, inst.ContactEmail).Return(inst, nil)
		_, pair, err := env.authSvc.LoginInstitute(context.Background(), inst.ContactEmail, "secret123")
		require.NoError(t, err)

		env.institutes.On("GetByID", mock.Anything, inst.ID).Return(inst, nil)
		env.sessions.On("Get", mock.Anything, inst.ID, models.RoleInstitute).Return(&models.RefreshSession{
			PrincipalID: inst.ID,
			Role:        models.RoleInstitute,
			TokenID:     uuid.New(),
		}, nil)
		env.sessions.On("Delete", mock.Anything, inst.ID, models.RoleInstitute).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/institute/refresh", nil)
		req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: pair.Refresh})
		w := httptest.NewRecorder()

		handler.HandleRefresh(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.True(t, env.auditor.has(models.AuditActionTokenReuseDetected))

		access := cookieByName(t, w, AccessTokenCookie)
		require.NotNil(t, access)
		assert.Equal(t, -1, access.MaxAge)
	})
}

func TestHandleInstituteLogout(t *testing.T) {
	t.Run("clears cookies and is idempotent", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		inst := &models.Institute{ID: uuid.New()}
		env.sessions.On("Delete", mock.Anything, inst.ID, models.RoleInstitute).Return(nil)

		for i := 0; i < 2; i++ {
			req := withInstitute(httptest.NewRequest(http.MethodPost, "/api/institute/logout", nil), inst)
			w := httptest.NewRecorder()

			handler.HandleLogout(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), "Logged out")

			access := cookieByName(t, w, AccessTokenCookie)
			require.NotNil(t, access)
			assert.Equal(t, -1, access.MaxAge)
		}
		assert.True(t, env.auditor.has(models.AuditActionLogout))
	})
}

func TestHandleGetStudent(t *testing.T) {
	studentID := uuid.New()

	withURLParam := func(req *http.Request, id string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("out-of-tenant student is 404", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)
		inst := &models.Institute{ID: uuid.New()}

		env.students.On("GetByIDForInstitute", mock.Anything, studentID, inst.ID).Return(nil, repositories.ErrNotFound)

		req := httptest.NewRequest(http.MethodGet, "/api/institute/students/"+studentID.String(), nil)
		req = withInstitute(withURLParam(req, studentID.String()), inst)
		w := httptest.NewRecorder()

		handler.HandleGetStudent(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)
		inst := &models.Institute{ID: uuid.New()}

		req := httptest.NewRequest(http.MethodGet, "/api/institute/students/abc", nil)
		req = withInstitute(withURLParam(req, "abc"), inst)
		w := httptest.NewRecorder()

		handler.HandleGetStudent(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("profile hides the password hash", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)
		inst := &models.Institute{ID: uuid.New()}

		stu := &models.Student{
			ID:           studentID,
			InstituteID:  inst.ID,
			StudentName:  "Bart Simpson",
			PasswordHash: "not-for-clients",
		}
		env.students.On("GetByIDForInstitute", mock.Anything, studentID, inst.ID).Return(stu, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/institute/students/"+studentID.String(), nil)
		req = withInstitute(withURLParam(req, studentID.String()), inst)
		w := httptest.NewRecorder()

		handler.HandleGetStudent(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Bart Simpson")
		assert.NotContains(t, w.Body.String(), "not-for-clients")
	})
}

func TestHandleListStudents(t *testing.T) {
	t.Run("returns the tenant's students", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)
		inst := &models.Institute{ID: uuid.New()}

		students := []*models.Student{
			{ID: uuid.New(), InstituteID: inst.ID, StudentName: "Bart Simpson"},
			{ID: uuid.New(), InstituteID: inst.ID, StudentName: "Lisa Simpson"},
		}
		env.students.On("ListByInstitute", mock.Anything, inst.ID).Return(students, nil)

		req := withInstitute(httptest.NewRequest(http.MethodGet, "/api/institute/students", nil), inst)
		w := httptest.NewRecorder()

		handler.HandleListStudents(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Len(t, response["data"], 2)
	})

	t.Run("unauthenticated request is 401", func(t *testing.T) {
		env := newTestEnv(t)
		handler := newInstituteHandler(env)

		req := httptest.NewRequest(http.MethodGet, "/api/institute/students", nil)
		w := httptest.NewRecorder()

		handler.HandleListStudents(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

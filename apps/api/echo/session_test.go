package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/smartlearn/apps/api/echo"
	"github.com/trezcool/smartlearn/core/identity"
	oauthsvc "github.com/trezcool/smartlearn/services/oauth"
)

func decodeSession(t *testing.T, body []byte) echoapi.SessionResponse {
	t.Helper()
	var resp echoapi.SessionResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

// tokenSubject parses `token` with the app secret and returns its subject.
func tokenSubject(t *testing.T, app *testApp, token string) string {
	t.Helper()
	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(app.conf.SecretKey), nil
	})
	require.NoError(t, err)
	return claims.Subject
}

func TestHome(t *testing.T) {
	app := setup(t)
	rec := app.run(t, httpTest{path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Smartlearn API!", rec.Body.String())
}

func Test_sessionApi_login(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantData  interface{}
		wantID    string
		wantEmail string
		wantRole  identity.Role
	}{
		{
			name: "missing email", body: `{"role": "STUDENT"}`, wantCode: http.StatusBadRequest,
			wantData: map[string]string{"email": "this field is required"},
		},
		{
			name: "invalid email", body: `{"email": "lol"}`, wantCode: http.StatusBadRequest,
			wantData: map[string]string{"email": "email must be a valid email address"},
		},
		{
			name: "existing student keeps role", body: `{"email": " Student@Smartlearn.mw ", "role": "teacher"}`,
			wantCode: http.StatusOK, wantID: identity.SeedStudentID, wantEmail: "student@smartlearn.mw", wantRole: identity.RoleStudent,
		},
		{
			name: "reserved email is admin", body: `{"email": "support@smartlearn.com"}`,
			wantCode: http.StatusOK, wantID: identity.AdminID, wantEmail: identity.DefaultAdminEmail, wantRole: identity.RoleAdmin,
		},
		{
			name: "new teacher", body: `{"email": "new.teacher@test.mw", "role": "TEACHER"}`,
			wantCode: http.StatusOK, wantEmail: "new.teacher@test.mw", wantRole: identity.RoleTeacher,
		},
		{
			name: "admin cannot be requested", body: `{"email": "sneaky@test.mw", "role": "ADMIN"}`,
			wantCode: http.StatusOK, wantEmail: "sneaky@test.mw", wantRole: identity.RoleStudent,
		},
		{
			name: "no role", body: `{"email": "plain@test.mw"}`,
			wantCode: http.StatusOK, wantEmail: "plain@test.mw", wantRole: identity.RoleStudent,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := setup(t)
			rec := app.run(t, httpTest{method: http.MethodPost, path: "/v1/session/login", body: []byte(tc.body)})

			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantData != nil {
				checkCodeAndData(t, httpTest{wantCode: tc.wantCode, wantData: marchallObj(t, tc.wantData)}, rec)
				return
			}

			resp := decodeSession(t, rec.Body.Bytes())
			if tc.wantID != "" {
				assert.Equal(t, tc.wantID, resp.Identity.ID)
			}
			assert.Equal(t, tc.wantEmail, resp.Identity.Email)
			assert.Equal(t, tc.wantRole, resp.Identity.Role)
			assert.Equal(t, resp.Identity.ID, tokenSubject(t, app, resp.Token))

			curr, ok, err := app.store.Current(context.Background())
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, resp.Identity.ID, curr.ID)
		})
	}
}

func Test_sessionApi_loginWithGoogle(t *testing.T) {
	app := setup(t)
	rec := app.run(t, httpTest{method: http.MethodPost, path: "/v1/session/google"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeSession(t, rec.Body.Bytes())
	assert.Equal(t, oauthsvc.SimulatedGoogleProfile.Email, resp.Identity.Email)
	assert.Equal(t, oauthsvc.SimulatedGoogleProfile.Picture, resp.Identity.Avatar)
	assert.Equal(t, identity.RoleStudent, resp.Identity.Role)
	assert.Equal(t, identity.StatusNone, resp.Identity.SubscriptionStatus)
}

func Test_sessionApi_signUp(t *testing.T) {
	body := func(name, email, role string) []byte {
		return marchallObj(t, map[string]string{"name": name, "email": email, "role": role, "password": "pwd"})
	}

	t.Run("created", func(t *testing.T) {
		app := setup(t)
		rec := app.run(t, httpTest{method: http.MethodPost, path: "/v1/session/signup", body: body("Jane", "jane@test.mw", "teacher")})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decodeSession(t, rec.Body.Bytes())
		assert.Equal(t, "Jane", resp.Identity.Name)
		assert.Equal(t, identity.RoleTeacher, resp.Identity.Role)
		assert.Equal(t, resp.Identity, app.stored(t, resp.Identity.ID))
	})

	tests := []httpTest{
		{
			name: "email taken", body: body("John", "student@smartlearn.mw", "STUDENT"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": identity.ErrEmailExists.Error()}),
		},
		{
			name: "reserved email", body: body("Eve", "support@smartlearn.com", "STUDENT"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": identity.ErrEmailExists.Error()}),
		},
		{
			name: "admin role", body: body("Eve", "eve@test.mw", "ADMIN"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "role must be one of STUDENT or TEACHER"}),
		},
		{
			name: "missing fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":     "this field is required",
				"email":    "this field is required",
				"role":     "this field is required",
				"password": "this field is required",
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setup(t)
			tt.method = http.MethodPost
			tt.path = "/v1/session/signup"
			checkCodeAndData(t, tt, app.run(t, tt))
		})
	}
}

func Test_sessionApi_retrieve(t *testing.T) {
	app := setup(t)
	student, studentToken := app.login(t, "student@smartlearn.mw", "")

	tests := []httpTest{
		{name: "auth required", path: "/v1/session", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "current", path: "/v1/session", token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, student)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.run(t, tt))
		})
	}

	t.Run("token of a replaced session", func(t *testing.T) {
		app.login(t, "teacher@smartlearn.mw", "")
		tt := httpTest{path: "/v1/session", token: studentToken, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNoSession)}
		checkCodeAndData(t, tt, app.run(t, tt))
	})
}

func Test_sessionApi_logout(t *testing.T) {
	app := setup(t)
	_, token := app.login(t, "student@smartlearn.mw", "")

	rec := app.run(t, httpTest{method: http.MethodPost, path: "/v1/session/logout"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok, err := app.store.Current(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	tt := httpTest{path: "/v1/session", token: token, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNoSession)}
	checkCodeAndData(t, tt, app.run(t, tt))

	// logging out twice is harmless
	rec = app.run(t, httpTest{method: http.MethodPost, path: "/v1/session/logout"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_sessionApi_refresh(t *testing.T) {
	app := setup(t)
	student, token := app.login(t, "student@smartlearn.mw", "")

	_, err := app.dir.Update(context.Background(), student.ID, func(usr *identity.Identity) error {
		usr.AddBooks("b1")
		return nil
	})
	require.NoError(t, err)

	rec := app.run(t, httpTest{method: http.MethodPost, path: "/v1/session/refresh", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeSession(t, rec.Body.Bytes())
	assert.Equal(t, []string{"b1"}, resp.Identity.PurchasedBooks)
	assert.Equal(t, student.ID, tokenSubject(t, app, resp.Token))
}

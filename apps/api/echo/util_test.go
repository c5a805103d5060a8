package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/smartlearn/apps/api/echo"
	"github.com/trezcool/smartlearn/assets"
	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/entitlement"
	"github.com/trezcool/smartlearn/core/identity"
	"github.com/trezcool/smartlearn/core/tutor"
	emailsvc "github.com/trezcool/smartlearn/services/email"
	oauthsvc "github.com/trezcool/smartlearn/services/oauth"
	paymentsvc "github.com/trezcool/smartlearn/services/payment"
	"github.com/trezcool/smartlearn/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errNoSession    = httpErr{Error: "no identity logged in"}
)

type testApp struct {
	srv      *echoapi.Server
	conf     *core.Config
	store    *entitlement.Store
	dir      identity.Repository
	payments *paymentsvc.ProcessorMock
}

type generatorMock struct{}

func (generatorMock) Generate(context.Context, string) (string, error) {
	return "generated", nil
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, logger, true)
	emailsvc.ResetSentMessages()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	identity.InitValidators(validate, translator)

	_, dir, sessions := testutil.OpenLocalStore(t)
	payments := &paymentsvc.ProcessorMock{DeclineReason: "insufficient funds"}
	store, err := entitlement.NewStore(entitlement.Options{
		Directory:  dir,
		Sessions:   sessions,
		Payments:   payments,
		Provider:   oauthsvc.NewSimulatedGoogle(core.OAuthConfig{}),
		Mailer:     emailsvc.NewConsoleServiceMock(conf, logger),
		Logger:     logger,
		Validate:   validate,
		AdminEmail: conf.AdminEmail,
	})
	require.NoError(t, err)

	srv := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		Store:          store,
		Tutor:          tutor.NewService(generatorMock{}, conf.AppName, logger),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return &testApp{srv: srv, conf: conf, store: store, dir: dir, payments: payments}
}

// login logs `email` in through the Store and returns a token issued to the resulting identity.
func (app *testApp) login(t *testing.T, email string, role identity.Role) (identity.Identity, string) {
	t.Helper()
	usr, err := app.store.Login(context.Background(), email, role)
	require.NoError(t, err)
	return usr, app.token(t, usr)
}

func (app *testApp) token(t *testing.T, usr identity.Identity) string {
	t.Helper()
	token, err := echoapi.GenerateToken(echoapi.GetIdentityClaims(usr, app.conf), app.conf.SecretKey)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	return token
}

func (app *testApp) stored(t *testing.T, id string) identity.Identity {
	t.Helper()
	usr, err := app.dir.GetByID(context.Background(), id)
	require.NoError(t, err)
	return usr
}

func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.srv.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/core/report"
	"github.com/trezcool/quizroom/core/user"
	emailsvc "github.com/trezcool/quizroom/services/email"
	eventsvc "github.com/trezcool/quizroom/services/events"
	logsvc "github.com/trezcool/quizroom/services/logger"
	"github.com/trezcool/quizroom/storage/cache"
	inmemdb "github.com/trezcool/quizroom/storage/database/inmem"
	"github.com/trezcool/quizroom/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	Server
	auth          *Authenticator
	usrRepo       user.Repository
	classroomRepo classroom.Repository
	quizRepo      quiz.Repository
	mailSvc       *emailsvc.ConsoleServiceMock
	events        *eventsvc.Recorder
	oauth         *oauthMock
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := inmemdb.Open()
	app := &testApp{
		usrRepo:       inmemdb.NewUserRepository(db),
		classroomRepo: inmemdb.NewClassroomRepository(db),
		quizRepo:      inmemdb.NewQuizRepository(db),
		mailSvc:       emailsvc.NewConsoleServiceMock(conf, logger),
		events:        eventsvc.NewRecorder(),
		oauth:         &oauthMock{},
	}

	// set up services
	usrSvc := user.NewService(app.usrRepo, app.mailSvc, app.events, conf)
	classroomSvc := classroom.NewService(app.classroomRepo, usrSvc, app.mailSvc, app.events)
	quizSvc := quiz.NewService(app.quizRepo, classroomSvc, app.events)
	deps := &Deps{
		Conf:           conf,
		Logger:         logger,
		Validate:       testutil.Validator(),
		Translator:     core.NewTranslator(),
		Blacklist:      cache.NewMemoryBlacklist(),
		OAuth:          app.oauth,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		ClassroomSvc:   classroomSvc,
		QuizSvc:        quizSvc,
		ReportSvc:      report.NewService(classroomSvc, quizSvc, usrSvc, app.mailSvc),
	}

	// set up server
	srv := NewServer("", nil, deps)
	app.Server = srv
	app.auth = srv.(*server).auth
	return app
}

// oauthMock accepts the code "good-code" only.
type oauthMock struct {
	profile user.OAuthProfile
}

func (m *oauthMock) Name() string                { return "google" }
func (m *oauthMock) AuthURL(state string) string { return "https://accounts.example.com/auth?state=" + state }

func (m *oauthMock) Profile(_ context.Context, code string) (user.OAuthProfile, error) {
	if code != "good-code" {
		return user.OAuthProfile{}, core.NewRequestError("invalid authorization code")
	}
	return m.profile, nil
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, app *testApp, usr user.User) string {
	token, err := app.auth.TokenFor(usr)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func unmarshall(t *testing.T, r io.Reader, dest interface{}) {
	if err := json.NewDecoder(r).Decode(dest); err != nil {
		t.Fatalf("unmarshall(): %v", err)
	}
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

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

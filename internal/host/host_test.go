package host

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docassembly-sdk/internal/answercache"
	"docassembly-sdk/internal/common/config"
	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/internal/common/metrics"
	"docassembly-sdk/internal/sessionstore"
	"docassembly-sdk/pkg/document"
	"docassembly-sdk/pkg/services"
	"docassembly-sdk/pkg/template"
)

type MockServices struct {
	mock.Mock
}

func (m *MockServices) GetInterview(ctx context.Context, tpl *template.Template, answersXML string, settings services.InterviewSettings, markedVariables []string, logRef string) (*services.InterviewResult, error) {
	args := m.Called(ctx, tpl, answersXML, settings, markedVariables, logRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.InterviewResult), args.Error(1)
}

func (m *MockServices) AssembleDocument(ctx context.Context, tpl *template.Template, answersXML string, settings services.AssembleDocumentSettings, logRef string) (*services.AssembleDocumentResult, error) {
	args := m.Called(ctx, tpl, answersXML, settings, logRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AssembleDocumentResult), args.Error(1)
}

func (m *MockServices) GetComponentInfo(ctx context.Context, tpl *template.Template, includeDialogs bool, logRef string) (*services.ComponentInfo, error) {
	args := m.Called(ctx, tpl, includeDialogs, logRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ComponentInfo), args.Error(1)
}

func (m *MockServices) GetAnswers(ctx context.Context, readers []io.Reader, logRef string) (string, error) {
	args := m.Called(ctx, readers, logRef)
	return args.String(0), args.Error(1)
}

func forTemplate(name string) interface{} {
	return mock.MatchedBy(func(tpl *template.Template) bool {
		return tpl.FileName() == name
	})
}

type testHost struct {
	svc     *MockServices
	server  *httptest.Server
	mr      *miniredis.Miniredis
	answers *answercache.Cache
}

func createTestHost(t *testing.T, configure ...func(*Options)) *testHost {
	t.Helper()
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := answercache.New(config.AnswerCacheConfig{Dir: t.TempDir(), TTL: 60}, answercache.SystemClock, log)
	svc := &MockServices{}
	opts := Options{
		Services: svc,
		Store:    sessionstore.New(client, config.SessionConfig{TTL: 600, KeyPrefix: "ws:"}, log),
		Answers:  cache,
		Logger:   log,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	h := New(opts)

	server := httptest.NewServer(h.Handler())
	t.Cleanup(server.Close)
	return &testHost{svc: svc, server: server, mr: mr, answers: cache}
}

func (th *testHost) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, th.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Log-Ref", "test-ref")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (th *testHost) create(t *testing.T, req CreateRequest) StatusView {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp := th.do(t, http.MethodPost, "/v1/sessions", string(body))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decode[StatusView](t, resp)
	assert.Equal(t, "/v1/sessions/"+view.ID, resp.Header.Get("Location"))
	return view
}

func createTestResult(name string, docType document.DocumentType, answersXML string) *services.AssembleDocumentResult {
	doc := document.New(name, docType, name+".out", []byte("content of "+name), []*document.NamedStream{
		document.NewNamedStream("logo.png", []byte{0x89}),
	})
	return services.NewAssembleDocumentResult(doc, answersXML, nil, []string{"Date"})
}

func TestHost_FullSession(t *testing.T) {
	th := createTestHost(t)
	active := testutil.ToFloat64(metrics.SessionsActive)

	view := th.create(t, CreateRequest{
		FileName:  "letter.docx",
		PackageID: "pkg-1",
		Answers:   `<AnswerSet><Answer name="Client"><TextValue>Ada</TextValue></Answer></AnswerSet>`,
	})
	assert.False(t, view.Completed)
	assert.Equal(t, 0, view.Done)
	assert.Equal(t, 2, view.Total)
	require.NotNil(t, view.Current)
	assert.Equal(t, "interview", view.Current.Kind)
	assert.Equal(t, "letter", view.Current.Title)
	assert.Equal(t, active+1, testutil.ToFloat64(metrics.SessionsActive))

	th.svc.On("GetInterview", mock.Anything, forTemplate("letter.docx"), mock.Anything, mock.Anything, []string{"Date"}, "test-ref").
		Return(&services.InterviewResult{HTML: "<div>interview</div>"}, nil).Once()

	resp := th.do(t, http.MethodGet, "/v1/sessions/"+view.ID+"/interview?marked=Date", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<div>interview</div>", string(html))

	resp = th.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/interview",
		`<AnswerSet><Answer name="Date"><TextValue>today</TextValue></Answer></AnswerSet>`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[StatusView](t, resp)
	assert.Equal(t, 1, view.Done)
	require.NotNil(t, view.Current)
	assert.Equal(t, "document", view.Current.Kind)

	cached, ok, err := th.answers.Get(view.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, cached, "Ada")
	assert.Contains(t, cached, "today")

	th.svc.On("AssembleDocument", mock.Anything, forTemplate("letter.docx"), mock.Anything, mock.Anything, "test-ref").
		Return(createTestResult("letter.docx", document.WordDOCX, ""), nil).Once()

	resp = th.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/assemble", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[AssembleView](t, resp)
	require.Len(t, out.Documents, 1)
	assert.Nil(t, out.Error)
	assert.Equal(t, "letter.docx", out.Documents[0].TemplateName)
	assert.Equal(t, "letter.docx.out", out.Documents[0].FileName)
	assert.Equal(t, document.WordDOCX.String(), out.Documents[0].Type)
	assert.Equal(t, []byte("content of letter.docx"), out.Documents[0].Content)
	assert.Equal(t, []string{"logo.png"}, out.Documents[0].SupportingFiles)
	assert.Equal(t, []string{"Date"}, out.Documents[0].UnansweredVariables)
	assert.True(t, out.Status.Completed)
	assert.Equal(t, active, testutil.ToFloat64(metrics.SessionsActive))

	resp = th.do(t, http.MethodGet, "/v1/sessions/"+view.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[StatusView](t, resp)
	assert.True(t, view.Completed)
	assert.Nil(t, view.Current)
	assert.Equal(t, []string{"Date"}, view.Items[1].UnansweredVariables)

	th.svc.AssertExpectations(t)
}

func TestHost_CreateFromLocator(t *testing.T) {
	th := createTestHost(t)
	tpl, err := template.New("notice.rtf", template.PackagePathLocation{ID: "pkg-2"}, "/nw", "Notice")
	require.NoError(t, err)

	view := th.create(t, CreateRequest{Template: tpl.Locator()})
	assert.Equal(t, 1, view.Total)
	require.NotNil(t, view.Current)
	assert.Equal(t, "document", view.Current.Kind)
	assert.Equal(t, "Notice", view.Current.Title)
}

func TestHost_SessionSurvivesSeparatorsInTemplateFields(t *testing.T) {
	th := createTestHost(t)
	view := th.create(t, CreateRequest{
		FileName:  "lease.docx",
		PackageID: "clients/acme",
		Switches:  "/nw",
		Title:     "Lease | Addendum: Schedule A/B",
	})

	resp := th.do(t, http.MethodGet, "/v1/sessions/"+view.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[StatusView](t, resp)
	require.NotNil(t, status.Current)
	assert.Equal(t, "Lease | Addendum: Schedule A/B", status.Current.Title)

	th.svc.On("AssembleDocument", mock.Anything, mock.MatchedBy(func(tpl *template.Template) bool {
		pl, ok := tpl.Location().(template.PackageLocation)
		return ok && pl.PackageID() == "clients/acme"
	}), mock.Anything, mock.Anything, mock.Anything).
		Return(createTestResult("lease.docx", document.WordDOCX, ""), nil).Once()

	resp = th.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/assemble", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	th.svc.AssertExpectations(t)
}

func TestHost_CreateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errors.ErrorCode
	}{
		{name: "malformed json", body: "{", code: errors.ErrCodeInvalidArgument},
		{name: "no package", body: `{"fileName":"a.docx"}`, code: errors.ErrCodeInvalidArgument},
		{name: "no file name", body: `{"packageId":"p"}`, code: errors.ErrCodeInvalidArgument},
		{name: "bad locator", body: `{"template":"!!"}`, code: errors.ErrCodeInvalidArgument},
		{name: "bad answers", body: `{"fileName":"a.docx","packageId":"p","answers":"<AnswerSet>"}`, code: errors.ErrCodeAnswersInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := createTestHost(t)
			resp := th.do(t, http.MethodPost, "/v1/sessions", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			stdErr := decode[errors.StandardError](t, resp)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}

func TestHost_UnknownSession(t *testing.T) {
	th := createTestHost(t)

	resp := th.do(t, http.MethodGet, "/v1/sessions/0b8e3c1e-2f0a-4d59-9a57-2d0f6c1f0a11", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeSessionNotFound, decode[errors.StandardError](t, resp).Code)

	resp = th.do(t, http.MethodGet, "/v1/sessions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHost_InterviewWhenComplete(t *testing.T) {
	th := createTestHost(t)
	view := th.create(t, CreateRequest{FileName: "only.cmp", PackageID: "pkg-1", Switches: "/ni"})
	assert.True(t, view.Completed)

	resp := th.do(t, http.MethodGet, "/v1/sessions/"+view.ID+"/interview", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeNoCurrentWorkItem, decode[errors.StandardError](t, resp).Code)
}

func TestHost_FinishInterviewRejectsBadAnswers(t *testing.T) {
	th := createTestHost(t)
	view := th.create(t, CreateRequest{FileName: "letter.docx", PackageID: "pkg-1"})

	resp := th.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/interview", "<not-closed")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = th.do(t, http.MethodGet, "/v1/sessions/"+view.ID, "")
	assert.Equal(t, 0, decode[StatusView](t, resp).Done)
}

func TestHost_AssemblePartialFailure(t *testing.T) {
	th := createTestHost(t)
	parent, err := template.New("main.docx", template.PackagePathLocation{ID: "pkg-1"}, "/nw", "")
	require.NoError(t, err)
	child, err := template.NewPending(parent, "child.rtf", "/nw")
	require.NoError(t, err)

	view := th.create(t, CreateRequest{Template: parent.Locator()})

	first := services.NewAssembleDocumentResult(
		document.New("main.docx", document.WordDOCX, "main.docx", []byte("main"), nil), "", []*template.Template{child}, nil)
	th.svc.On("AssembleDocument", mock.Anything, forTemplate("main.docx"), mock.Anything, mock.Anything, mock.Anything).
		Return(first, nil).Once()
	th.svc.On("AssembleDocument", mock.Anything, forTemplate("child.rtf"), mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.NewEngineError("assemble", "boom", "test-ref")).Once()

	resp := th.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/assemble", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	out := decode[AssembleView](t, resp)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "main.docx", out.Documents[0].FileName)
	require.NotNil(t, out.Error)
	assert.Equal(t, errors.ErrCodeEngine, out.Error.Code)
	assert.Equal(t, 1, out.Status.Done)
	assert.Equal(t, 2, out.Status.Total)

	// Progress made before the failure is persisted.
	th.svc.On("AssembleDocument", mock.Anything, forTemplate("child.rtf"), mock.Anything, mock.Anything, mock.Anything).
		Return(createTestResult("child.rtf", document.WordRTF, ""), nil).Once()

	resp = th.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/assemble", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = decode[AssembleView](t, resp)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "child.rtf", out.Documents[0].TemplateName)
	assert.True(t, out.Status.Completed)
	th.svc.AssertExpectations(t)
}

func TestHost_DeleteAndAnswers(t *testing.T) {
	th := createTestHost(t)
	answersXML := `<AnswerSet><Answer name="Client"><TextValue>Ada</TextValue></Answer></AnswerSet>`
	view := th.create(t, CreateRequest{FileName: "letter.docx", PackageID: "pkg-1", Answers: answersXML})

	resp := th.do(t, http.MethodGet, "/v1/sessions/"+view.ID+"/answers", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Ada")

	// Falls back to the stored session when the cache misses.
	require.NoError(t, th.answers.Delete(view.ID))
	resp = th.do(t, http.MethodGet, "/v1/sessions/"+view.ID+"/answers", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(body, []byte("Ada")))

	resp = th.do(t, http.MethodDelete, "/v1/sessions/"+view.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, th.mr.Exists("ws:"+view.ID))
	assert.Equal(t, 0, th.answers.Len())

	resp = th.do(t, http.MethodGet, "/v1/sessions/"+view.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHost_AnswersOfExpiredSession(t *testing.T) {
	th := createTestHost(t)
	view := th.create(t, CreateRequest{
		FileName:  "letter.docx",
		PackageID: "pkg-1",
		Answers:   `<AnswerSet><Answer name="Client"><TextValue>Ada</TextValue></Answer></AnswerSet>`,
	})
	_, cached, err := th.answers.Get(view.ID)
	require.NoError(t, err)
	require.True(t, cached)

	// The stored session expires while its answers are still cached.
	th.mr.Del("ws:" + view.ID)

	resp := th.do(t, http.MethodGet, "/v1/sessions/"+view.ID+"/answers", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHost_ConfiguredInterviewSettings(t *testing.T) {
	interview, err := InterviewSettingsFromConfig(config.InterviewConfig{
		Format:            "JavaScript",
		PostInterviewURL:  "https://host.example.com/finish",
		InterviewFilesURL: "https://cdn.example.com/interview/",
	})
	require.NoError(t, err)
	assembly := AssemblySettingsFromConfig(config.AssemblyConfig{Settings: map[string]string{"k": "v"}})

	th := createTestHost(t, func(o *Options) {
		o.InterviewSettings = interview
		o.AssemblySettings = assembly
	})
	view := th.create(t, CreateRequest{FileName: "letter.docx", PackageID: "pkg-1"})

	th.svc.On("GetInterview", mock.Anything, forTemplate("letter.docx"), mock.Anything,
		mock.MatchedBy(func(s services.InterviewSettings) bool {
			return s.PostInterviewURL == "https://host.example.com/finish" &&
				s.InterviewFilesURL == "https://cdn.example.com/interview/" &&
				s.Format == services.InterviewFormatJavaScript
		}), mock.Anything, "test-ref").
		Return(&services.InterviewResult{HTML: "<div/>"}, nil).Once()

	resp := th.do(t, http.MethodGet, "/v1/sessions/"+view.ID+"/interview", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = th.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/interview", `<AnswerSet/>`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	th.svc.On("AssembleDocument", mock.Anything, forTemplate("letter.docx"), mock.Anything,
		mock.MatchedBy(func(s services.AssembleDocumentSettings) bool { return s.Settings["k"] == "v" }), "test-ref").
		Return(createTestResult("letter.docx", document.WordDOCX, ""), nil).Once()

	resp = th.do(t, http.MethodPost, "/v1/sessions/"+view.ID+"/assemble", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	th.svc.AssertExpectations(t)
}

package session

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/pkg/answers"
	"docassembly-sdk/pkg/document"
	"docassembly-sdk/pkg/services"
	"docassembly-sdk/pkg/template"
)

var testLocation = template.PackagePathLocation{ID: "pkg-1"}

func createTestTemplate(t *testing.T, name, switches string) *template.Template {
	t.Helper()
	tpl, err := template.New(name, testLocation, switches, "")
	require.NoError(t, err)
	return tpl
}

func createPending(t *testing.T, parent *template.Template, name, switches string) *template.Template {
	t.Helper()
	tpl, err := template.NewPending(parent, name, switches)
	require.NoError(t, err)
	return tpl
}

func createTestResult(tpl *template.Template, answersXML string, pending ...*template.Template) *services.AssembleDocumentResult {
	doc := document.New(tpl.FileName(), tpl.NativeDocumentType(), tpl.Title()+".out", []byte("doc:"+tpl.FileName()), nil)
	return services.NewAssembleDocumentResult(doc, answersXML, pending, []string{"Unanswered " + tpl.Title()})
}

func createTestSession(t *testing.T, svc services.Services, tpl *template.Template, answersXML string) *WorkSession {
	t.Helper()
	s, err := New(svc, tpl, Options{AnswersXML: answersXML, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	return s
}

// answerSet builds answer XML from name/value pairs.
func answerSet(pairs ...string) string {
	var b strings.Builder
	b.WriteString("<AnswerSet>")
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, `<Answer name=%q><TextValue>%s</TextValue></Answer>`, pairs[i], pairs[i+1])
	}
	b.WriteString("</AnswerSet>")
	return b.String()
}

func textAnswer(s *WorkSession, name string) (string, bool) {
	v, ok := s.Answers().Get(name)
	return v.Text, ok
}

func kinds(items []WorkItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch it.(type) {
		case *InterviewWorkItem:
			out = append(out, "I:"+it.Template().FileName())
		case *DocumentWorkItem:
			out = append(out, "D:"+it.Template().FileName())
		}
	}
	return out
}

func completion(items []WorkItem) []bool {
	out := make([]bool, 0, len(items))
	for _, it := range items {
		out = append(out, it.IsCompleted())
	}
	return out
}

func settingsFor(format document.DocumentType, retain bool) interface{} {
	return mock.MatchedBy(func(s services.AssembleDocumentSettings) bool {
		return s.Format == format && s.RetainTransientAnswers == retain
	})
}

func TestNew_SeedsWorkItems(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		switches  string
		want      []string
		completed bool
	}{
		{"interview and document", "letter.docx", "", []string{"I:letter.docx", "D:letter.docx"}, false},
		{"document only", "letter.docx", "/nw", []string{"D:letter.docx"}, false},
		{"interview only", "intake.cmp", "", []string{"I:intake.cmp"}, false},
		{"neither", "intake.cmp", "/ni", []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestSession(t, &MockServices{}, createTestTemplate(t, tt.file, tt.switches), "")
			assert.Equal(t, tt.want, kinds(s.WorkItems()))
			for _, it := range s.WorkItems() {
				assert.False(t, it.IsCompleted())
			}
			assert.Equal(t, tt.completed, s.IsCompleted())
			if tt.completed {
				assert.Nil(t, s.CurrentWorkItem())
			}
		})
	}
}

func TestNew_InvalidArguments(t *testing.T) {
	tpl := createTestTemplate(t, "a.docx", "")

	_, err := New(nil, tpl, Options{})
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.CodeOf(err))

	_, err = New(&MockServices{}, nil, Options{})
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.CodeOf(err))

	_, err = New(&MockServices{}, tpl, Options{AnswersXML: "<AnswerSet><Answer"})
	assert.Equal(t, errors.ErrCodeAnswersInvalid, errors.CodeOf(err))
}

func TestWorkItems_ReturnsCopy(t *testing.T) {
	s := createTestSession(t, &MockServices{}, createTestTemplate(t, "a.docx", ""), "")
	items := s.WorkItems()
	items[0] = nil
	assert.NotNil(t, s.WorkItems()[0])

	// interview and document share one template
	assert.Same(t, s.WorkItems()[0].Template(), s.WorkItems()[1].Template())
	assert.Equal(t, "a", s.WorkItems()[0].Title())
}

func TestAssembleDocuments_NoOpAtInterview(t *testing.T) {
	svc := &MockServices{}
	s := createTestSession(t, svc, createTestTemplate(t, "a.docx", ""), answerSet("A", "1"))
	before, err := s.AnswersXML()
	require.NoError(t, err)

	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	after, err := s.AnswersXML()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, []bool{false, false}, completion(s.WorkItems()))
	svc.AssertNotCalled(t, "AssembleDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAssembleDocuments_NoOpWhenCompleted(t *testing.T) {
	svc := &MockServices{}
	s := createTestSession(t, svc, createTestTemplate(t, "intake.cmp", ""), "")
	require.NoError(t, s.FinishInterview(answerSet("A", "1")))
	require.True(t, s.IsCompleted())

	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	svc.AssertExpectations(t)
}

func TestAssembleDocuments_NoPendingReplacesAnswers(t *testing.T) {
	svc := &MockServices{}
	tpl := createTestTemplate(t, "a.docx", "/nw")
	s := createTestSession(t, svc, tpl, answerSet("Old", "1", "Kept", "2"))

	svc.On("AssembleDocument", mock.Anything, forTemplate("a.docx"),
		mock.MatchedBy(func(x string) bool { return strings.Contains(x, `name="Old"`) }),
		settingsFor(document.WordDOCX, false), "ref-1").
		Return(createTestResult(tpl, answerSet("New", "3")), nil).Once()

	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{LogRef: "ref-1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	defer document.CloseAll(docs)

	assert.Equal(t, "a.docx", docs[0].TemplateName)
	assert.False(t, docs[0].Content.Closed())
	assert.Len(t, s.WorkItems(), 1)
	assert.True(t, s.WorkItems()[0].IsCompleted())
	assert.True(t, s.IsCompleted())

	_, hasOld := textAnswer(s, "Old")
	assert.False(t, hasOld)
	v, ok := textAnswer(s, "New")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	item := s.WorkItems()[0].(*DocumentWorkItem)
	assert.Equal(t, []string{"Unanswered a"}, item.UnansweredVariables())
	svc.AssertExpectations(t)
}

func TestAssembleDocuments_InsertsPendingAfterOrigin(t *testing.T) {
	svc := &MockServices{}
	main := createTestTemplate(t, "main.docx", "")
	child := createPending(t, main, "child.docx", "")
	s := createTestSession(t, svc, main, "")

	require.NoError(t, s.FinishInterview(answerSet("A", "1")))

	svc.On("AssembleDocument", mock.Anything, forTemplate("main.docx"), mock.Anything, mock.Anything, "").
		Return(createTestResult(main, "", child), nil).Once()

	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	defer document.CloseAll(docs)

	items := s.WorkItems()
	assert.Equal(t, []string{"I:main.docx", "D:main.docx", "I:child.docx", "D:child.docx"}, kinds(items))
	assert.Equal(t, []bool{true, true, false, false}, completion(items))
	assert.Same(t, items[2].Template(), items[3].Template())
	assert.Equal(t, testLocation, items[2].Template().Location())

	_, isInterview := s.CurrentWorkItem().(*InterviewWorkItem)
	assert.True(t, isInterview)
	svc.AssertExpectations(t)
}

func TestAssembleDocuments_StopsAtPendingInterview(t *testing.T) {
	svc := &MockServices{}
	a := createTestTemplate(t, "a.docx", "/nw")
	b := createPending(t, a, "b.docx", "")
	c := createPending(t, b, "c.docx", "/nw")
	s := createTestSession(t, svc, a, "")

	svc.On("AssembleDocument", mock.Anything, forTemplate("a.docx"), mock.Anything, mock.Anything, mock.Anything).
		Return(createTestResult(a, "", b), nil).Once()
	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{})
	require.NoError(t, err)
	document.CloseAll(docs)
	require.NoError(t, s.FinishInterview(""))

	svc.On("AssembleDocument", mock.Anything, forTemplate("b.docx"), mock.Anything, mock.Anything, mock.Anything).
		Return(createTestResult(b, "", c), nil).Once()
	svc.On("AssembleDocument", mock.Anything, forTemplate("c.docx"), mock.Anything, mock.Anything, mock.Anything).
		Return(createTestResult(c, ""), nil).Once()

	docs, err = s.AssembleDocuments(context.Background(), AssembleOptions{})
	require.NoError(t, err)
	defer document.CloseAll(docs)
	require.Len(t, docs, 2)

	assert.Equal(t, []string{"D:a.docx", "I:b.docx", "D:b.docx", "D:c.docx"}, kinds(s.WorkItems()))
	assert.True(t, s.IsCompleted())
	svc.AssertExpectations(t)
}

func TestAssembleDocuments_ChainInOneCall(t *testing.T) {
	svc := &MockServices{}
	a := createTestTemplate(t, "a.docx", "/nw")
	b := createPending(t, a, "b.rtf", "/nw")
	c := createPending(t, b, "c.docx", "/nw")
	s := createTestSession(t, svc, a, "")

	svc.On("AssembleDocument", mock.Anything, forTemplate("a.docx"), mock.Anything, settingsFor(document.WordDOCX, false), mock.Anything).
		Return(createTestResult(a, "", b), nil).Once()
	svc.On("AssembleDocument", mock.Anything, forTemplate("b.rtf"), mock.Anything, settingsFor(document.WordRTF, false), mock.Anything).
		Return(createTestResult(b, "", c), nil).Once()
	svc.On("AssembleDocument", mock.Anything, forTemplate("c.docx"), mock.Anything, settingsFor(document.WordDOCX, false), mock.Anything).
		Return(createTestResult(c, ""), nil).Once()

	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{})
	require.NoError(t, err)
	defer document.CloseAll(docs)

	require.Len(t, docs, 3)
	assert.Equal(t, "a.docx", docs[0].TemplateName)
	assert.Equal(t, "b.rtf", docs[1].TemplateName)
	assert.Equal(t, "c.docx", docs[2].TemplateName)
	assert.Equal(t, []bool{true, true, true}, completion(s.WorkItems()))
	assert.True(t, s.IsCompleted())

	done, total := s.Progress()
	assert.Equal(t, 3, done)
	assert.Equal(t, 3, total)
	svc.AssertExpectations(t)
}

func TestAssembleDocuments_RetainsTransientAnswersUnlessLast(t *testing.T) {
	svc := &MockServices{}
	a := createTestTemplate(t, "a.docx", "/nw")
	b := createPending(t, a, "b.docx", "/nw")
	c := createPending(t, a, "c.docx", "/nw")
	s := createTestSession(t, svc, a, "")

	svc.On("AssembleDocument", mock.Anything, forTemplate("a.docx"), mock.Anything, settingsFor(document.WordDOCX, false), mock.Anything).
		Return(createTestResult(a, "", b, c), nil).Once()
	svc.On("AssembleDocument", mock.Anything, forTemplate("b.docx"), mock.Anything, settingsFor(document.WordDOCX, true), mock.Anything).
		Return(createTestResult(b, ""), nil).Once()
	svc.On("AssembleDocument", mock.Anything, forTemplate("c.docx"), mock.Anything, settingsFor(document.WordDOCX, false), mock.Anything).
		Return(createTestResult(c, ""), nil).Once()

	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{})
	require.NoError(t, err)
	defer document.CloseAll(docs)
	assert.Len(t, docs, 3)
	assert.Equal(t, []string{"D:a.docx", "D:b.docx", "D:c.docx"}, kinds(s.WorkItems()))
	svc.AssertExpectations(t)
}

func TestAssembleDocuments_Hooks(t *testing.T) {
	svc := &MockServices{}
	a := createTestTemplate(t, "a.docx", "/nw")
	b := createPending(t, a, "b.docx", "/nw")
	s, err := New(svc, a, Options{
		AnswersXML:       answerSet("Base", "1"),
		AssemblySettings: services.AssembleDocumentSettings{Settings: map[string]string{"shared": "x"}},
	})
	require.NoError(t, err)

	svc.On("AssembleDocument", mock.Anything, forTemplate("a.docx"),
		mock.MatchedBy(func(x string) bool { return strings.Contains(x, `name="Hook"`) }),
		mock.MatchedBy(func(st services.AssembleDocumentSettings) bool {
			return st.Settings["perDoc"] == "1" && st.Settings["shared"] == "x"
		}), mock.Anything).
		Return(createTestResult(a, "", b), nil).Once()
	svc.On("AssembleDocument", mock.Anything, forTemplate("b.docx"),
		mock.MatchedBy(func(x string) bool { return strings.Contains(x, `name="Hook"`) }),
		mock.MatchedBy(func(st services.AssembleDocumentSettings) bool {
			_, leaked := st.Settings["perDoc"]
			return !leaked && st.Settings["shared"] == "x"
		}), mock.Anything).
		Return(createTestResult(b, ""), nil).Once()

	var pre, post []string
	state := &struct{ calls int }{}
	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{
		UserState: state,
		PreAssembly: func(tpl *template.Template, ans *answers.Collection, settings *services.AssembleDocumentSettings, userState interface{}) {
			pre = append(pre, tpl.FileName())
			userState.(*struct{ calls int }).calls++
			if tpl.FileName() == "a.docx" {
				ans.Set("Hook", answers.Text("set"))
				settings.Settings["perDoc"] = "1"
			}
		},
		PostAssembly: func(tpl *template.Template, result *services.AssembleDocumentResult, userState interface{}) {
			post = append(post, tpl.FileName())
			assert.NotNil(t, result.Document())
		},
	})
	require.NoError(t, err)
	defer document.CloseAll(docs)

	assert.Equal(t, []string{"a.docx", "b.docx"}, pre)
	assert.Equal(t, []string{"a.docx", "b.docx"}, post)
	assert.Equal(t, 2, state.calls)

	v, ok := textAnswer(s, "Hook")
	assert.True(t, ok)
	assert.Equal(t, "set", v)
	assert.Equal(t, "x", s.DefaultAssemblySettings().Settings["shared"])
	_, leaked := s.DefaultAssemblySettings().Settings["perDoc"]
	assert.False(t, leaked)
	svc.AssertExpectations(t)
}

func TestAssembleDocuments_FailureReturnsEarlierDocuments(t *testing.T) {
	svc := &MockServices{}
	a := createTestTemplate(t, "a.docx", "/nw")
	b := createPending(t, a, "b.docx", "/nw")
	s := createTestSession(t, svc, a, answerSet("Start", "0"))

	engineErr := errors.NewEngineError("assemble", "template b is broken", "ref")
	svc.On("AssembleDocument", mock.Anything, forTemplate("a.docx"), mock.Anything, mock.Anything, mock.Anything).
		Return(createTestResult(a, answerSet("AfterA", "1"), b), nil).Once()
	svc.On("AssembleDocument", mock.Anything, forTemplate("b.docx"), mock.Anything, mock.Anything, mock.Anything).
		Return(nil, engineErr).Once()

	hook := func(tpl *template.Template, ans *answers.Collection, _ *services.AssembleDocumentSettings, _ interface{}) {
		if tpl.FileName() == "b.docx" {
			ans.Set("Transient", answers.Text("x"))
		}
	}
	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{PreAssembly: hook})
	require.Error(t, err)
	assert.Same(t, engineErr, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.docx", docs[0].TemplateName)
	document.CloseAll(docs)

	assert.Equal(t, []bool{true, false}, completion(s.WorkItems()))
	assert.Empty(t, s.WorkItems()[1].(*DocumentWorkItem).UnansweredVariables())
	_, hasTransient := textAnswer(s, "Transient")
	assert.False(t, hasTransient)
	v, _ := textAnswer(s, "AfterA")
	assert.Equal(t, "1", v)

	// the host may retry the failed item
	svc.On("AssembleDocument", mock.Anything, forTemplate("b.docx"), mock.Anything, mock.Anything, mock.Anything).
		Return(createTestResult(b, ""), nil).Once()
	docs, err = s.AssembleDocuments(context.Background(), AssembleOptions{})
	require.NoError(t, err)
	defer document.CloseAll(docs)
	assert.Len(t, docs, 1)
	assert.True(t, s.IsCompleted())
	svc.AssertExpectations(t)
}

func TestAssembleDocuments_InvalidReturnedAnswers(t *testing.T) {
	svc := &MockServices{}
	a := createTestTemplate(t, "a.docx", "/nw")
	s := createTestSession(t, svc, a, answerSet("Keep", "1"))

	result := createTestResult(a, "<AnswerSet><broken")
	svc.On("AssembleDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(result, nil).Once()

	docs, err := s.AssembleDocuments(context.Background(), AssembleOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAnswersInvalid, errors.CodeOf(err))
	assert.Empty(t, docs)
	assert.False(t, s.WorkItems()[0].IsCompleted())
	_, ok := textAnswer(s, "Keep")
	assert.True(t, ok)
	assert.Nil(t, result.Document())
}

func TestAssembleDocuments_NilResult(t *testing.T) {
	svc := &MockServices{}
	a := createTestTemplate(t, "a.docx", "/nw")
	s := createTestSession(t, svc, a, "")

	svc.On("AssembleDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil).Once()

	_, err := s.AssembleDocuments(context.Background(), AssembleOptions{})
	assert.Equal(t, errors.ErrCodeEngine, errors.CodeOf(err))
	assert.False(t, s.IsCompleted())
}

func TestAssembleDocuments_CanceledContext(t *testing.T) {
	svc := &MockServices{}
	s := createTestSession(t, svc, createTestTemplate(t, "a.docx", "/nw"), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docs, err := s.AssembleDocuments(ctx, AssembleOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, docs)
	svc.AssertNotCalled(t, "AssembleDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinishInterview_OverlaysAndCompletes(t *testing.T) {
	s := createTestSession(t, &MockServices{}, createTestTemplate(t, "a.docx", ""), answerSet("Both", "old", "PriorOnly", "p"))

	require.NoError(t, s.FinishInterview(answerSet("Both", "new", "PostedOnly", "q")))

	both, _ := textAnswer(s, "Both")
	prior, _ := textAnswer(s, "PriorOnly")
	posted, _ := textAnswer(s, "PostedOnly")
	assert.Equal(t, "new", both)
	assert.Equal(t, "p", prior)
	assert.Equal(t, "q", posted)

	assert.Equal(t, []bool{true, false}, completion(s.WorkItems()))
	_, isDoc := s.CurrentWorkItem().(*DocumentWorkItem)
	assert.True(t, isDoc)

	// at a document item answers are still overlaid but nothing completes
	require.NoError(t, s.FinishInterview(answerSet("Later", "1")))
	assert.Equal(t, []bool{true, false}, completion(s.WorkItems()))
	_, ok := textAnswer(s, "Later")
	assert.True(t, ok)
}

func TestFinishInterview_InvalidAnswersLeaveSessionUnchanged(t *testing.T) {
	s := createTestSession(t, &MockServices{}, createTestTemplate(t, "a.docx", ""), answerSet("A", "1"))

	err := s.FinishInterview("<AnswerSet><Answer name='x'><TextValue>")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAnswersInvalid, errors.CodeOf(err))
	assert.Equal(t, []bool{false, false}, completion(s.WorkItems()))
	assert.Equal(t, 1, s.Answers().Len())
}

func TestGetCurrentInterview(t *testing.T) {
	svc := &MockServices{}
	tpl := createTestTemplate(t, "Engagement Letter.docx", "")
	s, err := New(svc, tpl, Options{
		AnswersXML:        answerSet("A", "1"),
		InterviewSettings: services.InterviewSettings{Format: services.InterviewFormatJavaScript},
	})
	require.NoError(t, err)

	want := &services.InterviewResult{HTML: "<div/>"}
	svc.On("GetInterview", mock.Anything, tpl,
		mock.MatchedBy(func(x string) bool { return strings.Contains(x, `name="A"`) }),
		mock.MatchedBy(func(st services.InterviewSettings) bool {
			return st.Title == "Engagement Letter" && st.Format == services.InterviewFormatJavaScript
		}), []string{"A"}, "ref").
		Return(want, nil).Once()

	got, err := s.GetCurrentInterview(context.Background(), nil, []string{"A"}, "ref")
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, "", s.DefaultInterviewSettings().Title)

	svc.On("GetInterview", mock.Anything, tpl, mock.Anything,
		mock.MatchedBy(func(st services.InterviewSettings) bool { return st.Title == "Custom" }), []string(nil), "").
		Return(want, nil).Once()
	_, err = s.GetCurrentInterview(context.Background(), &services.InterviewSettings{Title: "Custom"}, nil, "")
	require.NoError(t, err)

	engineErr := errors.NewTransportError("interview", fmt.Errorf("connection reset"), "")
	svc.On("GetInterview", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "fail").
		Return(nil, engineErr).Once()
	_, err = s.GetCurrentInterview(context.Background(), nil, nil, "fail")
	assert.Same(t, engineErr, err)
	svc.AssertExpectations(t)
}

func TestGetCurrentInterview_CompletedSession(t *testing.T) {
	s := createTestSession(t, &MockServices{}, createTestTemplate(t, "intake.cmp", "/nw"), "")
	_, err := s.GetCurrentInterview(context.Background(), nil, nil, "ref-9")
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeNoCurrentWorkItem, stdErr.Code)
	assert.Equal(t, "ref-9", stdErr.LogRef)
}

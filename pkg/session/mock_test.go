package session

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

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

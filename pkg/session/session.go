// Package session drives a host through the interviews and assemblies a
// template needs, including templates discovered while assembling.
package session

import (
	"context"
	"slices"
	"strings"

	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/pkg/answers"
	"docassembly-sdk/pkg/document"
	"docassembly-sdk/pkg/services"
	"docassembly-sdk/pkg/template"
)

// PreAssemblyFunc runs before each assembly. It may change answers and
// settings in place. Answer changes carry over to later assemblies once the
// assembly succeeds; settings changes apply to this assembly only.
type PreAssemblyFunc func(tpl *template.Template, ans *answers.Collection, settings *services.AssembleDocumentSettings, userState interface{})

// PostAssemblyFunc sees each raw result before the session processes it.
type PostAssemblyFunc func(tpl *template.Template, result *services.AssembleDocumentResult, userState interface{})

// AssembleOptions are the optional arguments of AssembleDocuments.
type AssembleOptions struct {
	PreAssembly  PreAssemblyFunc
	PostAssembly PostAssemblyFunc
	UserState    interface{}
	LogRef       string
}

// Options configures a new WorkSession.
type Options struct {
	// AnswersXML preloads the session's answers.
	AnswersXML        string
	AssemblySettings  services.AssembleDocumentSettings
	InterviewSettings services.InterviewSettings
	Logger            logger.Logger
}

// WorkSession is the ordered plan of interviews and assemblies for a
// template plus the answers collected along the way.
//
// A WorkSession is not safe for concurrent use. Hosts that share one across
// requests must serialize access.
type WorkSession struct {
	svc               services.Services
	tpl               *template.Template
	answers           *answers.Collection
	items             []WorkItem
	assemblySettings  services.AssembleDocumentSettings
	interviewSettings services.InterviewSettings
	logger            logger.Logger
}

// New creates a session for tpl, seeded with its interview and/or document step.
func New(svc services.Services, tpl *template.Template, opts Options) (*WorkSession, error) {
	if svc == nil {
		return nil, errors.NewInvalidArgumentError("services", "services are required", "")
	}
	if tpl == nil {
		return nil, errors.NewInvalidArgumentError("template", "template is required", "")
	}
	ans, err := answers.Parse(opts.AnswersXML)
	if err != nil {
		return nil, errors.NewAnswersInvalidError(err)
	}
	return &WorkSession{
		svc:               svc,
		tpl:               tpl,
		answers:           ans,
		items:             itemsFor(tpl),
		assemblySettings:  opts.AssemblySettings.Clone(),
		interviewSettings: opts.InterviewSettings.Clone(),
		logger:            logger.OrNoOp(opts.Logger),
	}, nil
}

// Template is the template the session was created for.
func (s *WorkSession) Template() *template.Template { return s.tpl }

// Answers is the session's live answer collection.
func (s *WorkSession) Answers() *answers.Collection { return s.answers }

func (s *WorkSession) AnswersXML() (string, error) { return s.answers.XML() }

// WorkItems returns a copy of the item list.
func (s *WorkSession) WorkItems() []WorkItem { return slices.Clone(s.items) }

// CurrentWorkItem is the first incomplete item, or nil when the session is complete.
func (s *WorkSession) CurrentWorkItem() WorkItem {
	if i := s.currentIndex(); i >= 0 {
		return s.items[i]
	}
	return nil
}

func (s *WorkSession) IsCompleted() bool { return s.currentIndex() < 0 }

// Progress reports how many items are completed out of the current total.
func (s *WorkSession) Progress() (completed, total int) {
	for _, it := range s.items {
		if it.IsCompleted() {
			completed++
		}
	}
	return completed, len(s.items)
}

func (s *WorkSession) DefaultAssemblySettings() services.AssembleDocumentSettings {
	return s.assemblySettings.Clone()
}

func (s *WorkSession) DefaultInterviewSettings() services.InterviewSettings {
	return s.interviewSettings.Clone()
}

func (s *WorkSession) currentIndex() int {
	for i, it := range s.items {
		if !it.IsCompleted() {
			return i
		}
	}
	return -1
}

// AssembleDocuments assembles the run of document items starting at the
// current item and stops at the first interview or at the end of the plan.
// It is a no-op when the current item is not a document.
//
// Templates reported as pending by an assembly are inserted right after the
// item that produced them. On failure the documents assembled before the
// failing item are returned along with the error; the failing item and the
// session answers are left as they were.
func (s *WorkSession) AssembleDocuments(ctx context.Context, opts AssembleOptions) ([]*document.Document, error) {
	var docs []*document.Document
	for {
		idx := s.currentIndex()
		if idx < 0 {
			break
		}
		item, ok := s.items[idx].(*DocumentWorkItem)
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		doc, err := s.assembleItem(ctx, idx, item, opts)
		if err != nil {
			return docs, err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *WorkSession) assembleItem(ctx context.Context, idx int, item *DocumentWorkItem, opts AssembleOptions) (*document.Document, error) {
	tpl := item.Template()

	settings := s.assemblySettings.Clone()
	settings.Format = tpl.NativeDocumentType()
	if idx < len(s.items)-1 {
		settings.RetainTransientAnswers = true
	}

	working := s.answers.Clone()
	if opts.PreAssembly != nil {
		opts.PreAssembly(tpl, working, &settings, opts.UserState)
	}
	answerXML, err := working.XML()
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Assembling document", map[string]interface{}{
		logger.KeyTemplate: tpl.FileName(),
		logger.KeyWorkItem: idx,
		logger.KeyLogRef:   opts.LogRef,
	})

	result, err := s.svc.AssembleDocument(ctx, tpl, answerXML, settings, opts.LogRef)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.NewEngineError("assemble", "no result for "+tpl.FileName(), opts.LogRef)
	}
	defer result.Close()

	if opts.PostAssembly != nil {
		opts.PostAssembly(tpl, result, opts.UserState)
	}

	next := working
	if strings.TrimSpace(result.AnswersXML()) != "" {
		next, err = answers.Parse(result.AnswersXML())
		if err != nil {
			return nil, errors.NewAnswersInvalidError(err)
		}
	}

	// Nothing below can fail; the iteration commits as a whole.
	s.answers = next
	s.insertPending(idx, result.PendingAssemblies())
	item.unanswered = append([]string(nil), result.UnansweredVariables()...)
	doc, _ := result.ExtractDocument()
	item.markCompleted()

	s.logger.Debug("Assembled document", map[string]interface{}{
		logger.KeyTemplate: tpl.FileName(),
		logger.KeyCount:    len(result.PendingAssemblies()),
	})
	return doc, nil
}

func (s *WorkSession) insertPending(idx int, pending []*template.Template) {
	var added []WorkItem
	for _, p := range pending {
		added = append(added, itemsFor(p)...)
	}
	if len(added) > 0 {
		s.items = slices.Insert(s.items, idx+1, added...)
	}
}

// GetCurrentInterview renders the interview for the current item's
// template. A nil settings uses the session default; an empty title falls
// back to the template's title.
func (s *WorkSession) GetCurrentInterview(ctx context.Context, settings *services.InterviewSettings, markedVariables []string, logRef string) (*services.InterviewResult, error) {
	cur := s.CurrentWorkItem()
	if cur == nil {
		return nil, errors.NewNoCurrentWorkItemError(logRef)
	}

	is := s.interviewSettings.Clone()
	if settings != nil {
		is = settings.Clone()
	}
	if is.Title == "" {
		is.Title = cur.Template().Title()
	}

	answerXML, err := s.answers.XML()
	if err != nil {
		return nil, err
	}
	return s.svc.GetInterview(ctx, cur.Template(), answerXML, is, markedVariables, logRef)
}

// FinishInterview overlays the posted answers onto the session's answers and
// completes the current item if it is an interview. Invalid XML leaves the
// session unchanged.
func (s *WorkSession) FinishInterview(postedAnswersXML string) error {
	posted, err := answers.Parse(postedAnswersXML)
	if err != nil {
		return errors.NewAnswersInvalidError(err)
	}
	s.answers.Overlay(posted)

	if cur, ok := s.CurrentWorkItem().(*InterviewWorkItem); ok {
		cur.markCompleted()
	}
	return nil
}

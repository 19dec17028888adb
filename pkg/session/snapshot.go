package session

import (
	"fmt"

	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/pkg/answers"
	"docassembly-sdk/pkg/services"
	"docassembly-sdk/pkg/template"
)

// SnapshotVersion is bumped when the snapshot layout changes incompatibly.
const SnapshotVersion = 1

// Item kinds in a snapshot.
const (
	KindInterview = "interview"
	KindDocument  = "document"
)

// Snapshot is the serializable state of a WorkSession. Templates are stored
// as locators.
type Snapshot struct {
	Version           int                               `json:"version"`
	Template          string                            `json:"template"`
	Answers           string                            `json:"answers"`
	Items             []ItemSnapshot                    `json:"items"`
	AssemblySettings  services.AssembleDocumentSettings `json:"assemblySettings"`
	InterviewSettings services.InterviewSettings        `json:"interviewSettings"`
}

type ItemSnapshot struct {
	Kind                string   `json:"kind"`
	Template            string   `json:"template"`
	Completed           bool     `json:"completed"`
	UnansweredVariables []string `json:"unansweredVariables,omitempty"`
}

// Snapshot captures the session so Restore can rebuild it, e.g. in a later request.
func (s *WorkSession) Snapshot() (*Snapshot, error) {
	answerXML, err := s.answers.XML()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Version:           SnapshotVersion,
		Template:          s.tpl.Locator(),
		Answers:           answerXML,
		Items:             make([]ItemSnapshot, 0, len(s.items)),
		AssemblySettings:  s.assemblySettings.Clone(),
		InterviewSettings: s.interviewSettings.Clone(),
	}
	for _, it := range s.items {
		is := ItemSnapshot{
			Template:  it.Template().Locator(),
			Completed: it.IsCompleted(),
		}
		switch v := it.(type) {
		case *InterviewWorkItem:
			is.Kind = KindInterview
		case *DocumentWorkItem:
			is.Kind = KindDocument
			is.UnansweredVariables = v.UnansweredVariables()
		}
		snap.Items = append(snap.Items, is)
	}
	return snap, nil
}

// Restore rebuilds a session from a snapshot.
func Restore(svc services.Services, snap *Snapshot, log logger.Logger) (*WorkSession, error) {
	if svc == nil {
		return nil, errors.NewInvalidArgumentError("services", "services are required", "")
	}
	if snap == nil {
		return nil, errors.NewInvalidArgumentError("snapshot", "snapshot is required", "")
	}
	if snap.Version != SnapshotVersion {
		return nil, errors.NewInvalidArgumentError("snapshot", fmt.Sprintf("unsupported snapshot version %d", snap.Version), "")
	}

	tpl, err := template.FromLocator(snap.Template)
	if err != nil {
		return nil, err
	}
	ans, err := answers.Parse(snap.Answers)
	if err != nil {
		return nil, errors.NewAnswersInvalidError(err)
	}

	// templates shared between an item pair stay shared
	byLocator := map[string]*template.Template{snap.Template: tpl}
	items := make([]WorkItem, 0, len(snap.Items))
	for i, is := range snap.Items {
		itpl, ok := byLocator[is.Template]
		if !ok {
			itpl, err = template.FromLocator(is.Template)
			if err != nil {
				return nil, err
			}
			byLocator[is.Template] = itpl
		}

		var item WorkItem
		switch is.Kind {
		case KindInterview:
			item = newInterviewItem(itpl)
		case KindDocument:
			d := newDocumentItem(itpl)
			d.unanswered = append([]string(nil), is.UnansweredVariables...)
			item = d
		default:
			return nil, errors.NewInvalidArgumentError("snapshot", fmt.Sprintf("item %d has unknown kind %q", i, is.Kind), "")
		}
		if is.Completed {
			item.markCompleted()
		}
		items = append(items, item)
	}

	return &WorkSession{
		svc:               svc,
		tpl:               tpl,
		answers:           ans,
		items:             items,
		assemblySettings:  snap.AssemblySettings.Clone(),
		interviewSettings: snap.InterviewSettings.Clone(),
		logger:            logger.OrNoOp(log),
	}, nil
}

// Package services defines the boundary between a work session and the
// document-assembly engine, plus the values that cross it.
package services

import (
	"context"
	"io"

	"docassembly-sdk/pkg/template"
)

// Services is the engine contract. Implementations are stateless and may be
// shared across sessions; every call may block on network or process I/O.
type Services interface {
	// GetInterview renders the interview for tpl with the given answers.
	GetInterview(ctx context.Context, tpl *template.Template, answersXML string, settings InterviewSettings, markedVariables []string, logRef string) (*InterviewResult, error)

	// AssembleDocument assembles tpl and decodes the engine's answer to a
	// result that owns the produced document.
	AssembleDocument(ctx context.Context, tpl *template.Template, answersXML string, settings AssembleDocumentSettings, logRef string) (*AssembleDocumentResult, error)

	// GetComponentInfo returns the variables (and optionally dialogs) a template uses.
	GetComponentInfo(ctx context.Context, tpl *template.Template, includeDialogs bool, logRef string) (*ComponentInfo, error)

	// GetAnswers overlays the answer sets in order; later readers win.
	GetAnswers(ctx context.Context, answers []io.Reader, logRef string) (string, error)
}

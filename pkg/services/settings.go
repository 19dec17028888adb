package services

import (
	"maps"

	"docassembly-sdk/pkg/document"
)

// AssembleDocumentSettings controls one assembly. It is a value: copy it
// with Clone before changing it per document.
type AssembleDocumentSettings struct {
	Format                 document.DocumentType `json:"format"`
	OutputOptions          map[string]string     `json:"outputOptions,omitempty"`
	RetainTransientAnswers bool                  `json:"retainTransientAnswers"`
	// Settings are passed to the engine verbatim.
	Settings map[string]string `json:"settings,omitempty"`
}

func (s AssembleDocumentSettings) Clone() AssembleDocumentSettings {
	s.OutputOptions = maps.Clone(s.OutputOptions)
	s.Settings = maps.Clone(s.Settings)
	return s
}

// InterviewSettings controls how an interview is rendered and where its
// browser side posts back to.
type InterviewSettings struct {
	Title              string            `json:"title,omitempty"`
	Format             InterviewFormat   `json:"format"`
	Options            InterviewOptions  `json:"options"`
	PostInterviewURL   string            `json:"postInterviewUrl,omitempty"`
	InterviewFilesURL  string            `json:"interviewFilesUrl,omitempty"`
	DocumentPreviewURL string            `json:"documentPreviewUrl,omitempty"`
	SaveAnswersURL     string            `json:"saveAnswersUrl,omitempty"`
	Locale             string            `json:"locale,omitempty"`
	Theme              string            `json:"theme,omitempty"`
	Settings           map[string]string `json:"settings,omitempty"`
}

func (s InterviewSettings) Clone() InterviewSettings {
	s.Settings = maps.Clone(s.Settings)
	return s
}

package host

import (
	"maps"

	"docassembly-sdk/internal/common/config"
	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/pkg/document"
	"docassembly-sdk/pkg/services"
)

// AssemblySettingsFromConfig builds the default assembly settings. The output
// type is left Native; each document is assembled to its template's own type.
func AssemblySettingsFromConfig(cfg config.AssemblyConfig) services.AssembleDocumentSettings {
	return services.AssembleDocumentSettings{
		Format:                 document.Native,
		RetainTransientAnswers: cfg.RetainTransientAnswers,
		Settings:               maps.Clone(cfg.Settings),
	}
}

// InterviewSettingsFromConfig resolves the configured interview defaults.
func InterviewSettingsFromConfig(cfg config.InterviewConfig) (services.InterviewSettings, error) {
	settings := services.InterviewSettings{
		Format:             services.InterviewFormatJavaScript,
		PostInterviewURL:   cfg.PostInterviewURL,
		InterviewFilesURL:  cfg.InterviewFilesURL,
		DocumentPreviewURL: cfg.DocumentPreviewURL,
		SaveAnswersURL:     cfg.SaveAnswersURL,
		Theme:              cfg.Theme,
		Locale:             cfg.Locale,
	}
	if cfg.Format != "" {
		f, err := services.ParseInterviewFormat(cfg.Format)
		if err != nil {
			return settings, errors.NewUnsupportedConfigurationError("interview.format: "+err.Error(), "")
		}
		settings.Format = f
	}
	return settings, nil
}

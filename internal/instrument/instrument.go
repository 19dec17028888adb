// Package instrument decorates services.Services with logging and metrics.
// Results and errors pass through unchanged.
package instrument

import (
	"context"
	"io"
	"time"

	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/internal/common/metrics"
	"docassembly-sdk/internal/common/observability"
	"docassembly-sdk/pkg/services"
	"docassembly-sdk/pkg/template"
)

const (
	opInterview     = "interview"
	opAssemble      = "assemble"
	opComponentInfo = "component_info"
	opAnswers       = "answers"
)

type Services struct {
	next   services.Services
	logger logger.Logger
	obs    *observability.Observability
}

var _ services.Services = (*Services)(nil)

// Wrap instruments next. obs may be nil.
func Wrap(next services.Services, log logger.Logger, obs *observability.Observability) *Services {
	return &Services{
		next:   next,
		logger: logger.OrNoOp(log),
		obs:    obs,
	}
}

func (s *Services) GetInterview(ctx context.Context, tpl *template.Template, answersXML string, settings services.InterviewSettings, markedVariables []string, logRef string) (*services.InterviewResult, error) {
	start := time.Now()
	res, err := s.next.GetInterview(ctx, tpl, answersXML, settings, markedVariables, logRef)
	s.record(ctx, opInterview, tpl, logRef, start, err, nil)
	return res, err
}

func (s *Services) AssembleDocument(ctx context.Context, tpl *template.Template, answersXML string, settings services.AssembleDocumentSettings, logRef string) (*services.AssembleDocumentResult, error) {
	start := time.Now()
	res, err := s.next.AssembleDocument(ctx, tpl, answersXML, settings, logRef)

	var extra map[string]interface{}
	if err == nil && res != nil {
		if doc := res.Document(); doc != nil {
			metrics.DocumentsAssembled.WithLabelValues(doc.Type.String()).Inc()
		}
		pending := len(res.PendingAssemblies())
		metrics.PendingAssemblies.Add(float64(pending))
		extra = map[string]interface{}{
			"pendingAssemblies": pending,
			"unanswered":        len(res.UnansweredVariables()),
		}
	}
	s.record(ctx, opAssemble, tpl, logRef, start, err, extra)
	return res, err
}

func (s *Services) GetComponentInfo(ctx context.Context, tpl *template.Template, includeDialogs bool, logRef string) (*services.ComponentInfo, error) {
	start := time.Now()
	res, err := s.next.GetComponentInfo(ctx, tpl, includeDialogs, logRef)
	s.record(ctx, opComponentInfo, tpl, logRef, start, err, nil)
	return res, err
}

func (s *Services) GetAnswers(ctx context.Context, answers []io.Reader, logRef string) (string, error) {
	start := time.Now()
	res, err := s.next.GetAnswers(ctx, answers, logRef)
	s.record(ctx, opAnswers, nil, logRef, start, err, map[string]interface{}{logger.KeyCount: len(answers)})
	return res, err
}

func (s *Services) record(ctx context.Context, op string, tpl *template.Template, logRef string, start time.Time, err error, extra map[string]interface{}) {
	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
	}

	metrics.EngineCalls.WithLabelValues(op, status).Inc()
	metrics.EngineCallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	s.obs.RecordOperation(ctx, op, status, elapsed)

	fields := map[string]interface{}{
		logger.KeyOperation: op,
		logger.KeyLogRef:    logRef,
		logger.KeyDuration:  elapsed.Milliseconds(),
	}
	if tpl != nil {
		fields[logger.KeyTemplate] = tpl.FileName()
	}
	for k, v := range extra {
		fields[k] = v
	}

	if err != nil {
		fields["errorCode"] = string(errors.CodeOf(err))
		fields["retryable"] = errors.IsRetryable(err)
		s.logger.WithError(err).Error("Engine call failed", fields)
		return
	}
	s.logger.Info("Engine call completed", fields)
}

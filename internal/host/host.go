// Package host is a small web host that drives work sessions over HTTP.
// Sessions live in Redis between requests; answers are mirrored to the
// answer cache.
package host

import (
	"context"
	"net/http"

	"github.com/alexedwards/flow"

	"docassembly-sdk/internal/answercache"
	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/internal/common/metrics"
	"docassembly-sdk/internal/sessionstore"
	"docassembly-sdk/pkg/services"
	"docassembly-sdk/pkg/session"
)

type Options struct {
	Services services.Services
	Store    *sessionstore.Store
	Answers  *answercache.Cache
	Logger   logger.Logger

	// Defaults for new sessions.
	AssemblySettings  services.AssembleDocumentSettings
	InterviewSettings services.InterviewSettings
}

type Host struct {
	svc               services.Services
	store             *sessionstore.Store
	answers           *answercache.Cache
	logger            logger.Logger
	errs              *errors.ErrorHandler
	assemblySettings  services.AssembleDocumentSettings
	interviewSettings services.InterviewSettings
}

func New(opts Options) *Host {
	log := logger.OrNoOp(opts.Logger)
	return &Host{
		svc:               opts.Services,
		store:             opts.Store,
		answers:           opts.Answers,
		logger:            log,
		errs:              errors.NewErrorHandler(log),
		assemblySettings:  opts.AssemblySettings,
		interviewSettings: opts.InterviewSettings,
	}
}

// Handler returns the host's routes.
func (h *Host) Handler() http.Handler {
	mux := flow.New()
	h.Register(mux)
	return mux
}

// Register adds the host's routes to mux.
func (h *Host) Register(mux *flow.Mux) {
	mux.HandleFunc("/v1/sessions", h.createSession, "POST")
	mux.HandleFunc("/v1/sessions/:id", h.getStatus, "GET")
	mux.HandleFunc("/v1/sessions/:id", h.deleteSession, "DELETE")
	mux.HandleFunc("/v1/sessions/:id/interview", h.getInterview, "GET")
	mux.HandleFunc("/v1/sessions/:id/interview", h.finishInterview, "POST")
	mux.HandleFunc("/v1/sessions/:id/assemble", h.assemble, "POST")
	mux.HandleFunc("/v1/sessions/:id/answers", h.getAnswers, "GET")
}

// SweepAnswers expires idle cached answers.
func (h *Host) SweepAnswers() (int, error) {
	if h.answers == nil {
		return 0, nil
	}
	return h.answers.Sweep()
}

// load restores the session named in the route.
func (h *Host) load(ctx context.Context, r *http.Request) (*sessionstore.Record, *session.WorkSession, error) {
	id := flow.Param(r.Context(), "id")
	rec, err := h.store.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ws, err := session.Restore(h.svc, rec.Snapshot, h.logger.With(map[string]interface{}{logger.KeySessionID: id}))
	if err != nil {
		return nil, nil, err
	}
	return rec, ws, nil
}

// persist saves ws back into rec and mirrors its answers. wasCompleted is
// the session state before the request.
func (h *Host) persist(ctx context.Context, rec *sessionstore.Record, ws *session.WorkSession, wasCompleted bool) error {
	snap, err := ws.Snapshot()
	if err != nil {
		return err
	}
	rec.Snapshot = snap
	if err := h.store.Save(ctx, rec); err != nil {
		return err
	}
	if !wasCompleted && ws.IsCompleted() {
		metrics.SessionsActive.Dec()
	}
	h.cacheAnswers(rec.ID, snap.Answers)
	return nil
}

func (h *Host) cacheAnswers(id, answersXML string) {
	if h.answers == nil {
		return
	}
	if err := h.answers.Put(id, answersXML); err != nil {
		h.logger.Warn("Failed to cache answers", map[string]interface{}{
			logger.KeySessionID: id,
			logger.KeyError:     err.Error(),
		})
	}
}

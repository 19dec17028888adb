package host

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/alexedwards/flow"

	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/internal/common/metrics"
	"docassembly-sdk/internal/sessionstore"
	"docassembly-sdk/pkg/document"
	"docassembly-sdk/pkg/session"
	"docassembly-sdk/pkg/template"
)

const maxBody = 10 << 20

// CreateRequest starts a session. Either Template (a locator) or FileName
// plus PackageID identifies the template.
type CreateRequest struct {
	Template   string `json:"template,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	PackageID  string `json:"packageId,omitempty"`
	Switches   string `json:"switches,omitempty"`
	Title      string `json:"title,omitempty"`
	Answers    string `json:"answers,omitempty"`
	BillingRef string `json:"billingRef,omitempty"`
}

type ItemView struct {
	Kind                string   `json:"kind"`
	Template            string   `json:"template"`
	Title               string   `json:"title"`
	Completed           bool     `json:"completed"`
	UnansweredVariables []string `json:"unansweredVariables,omitempty"`
}

type StatusView struct {
	ID        string     `json:"id"`
	Completed bool       `json:"completed"`
	Done      int        `json:"done"`
	Total     int        `json:"total"`
	Current   *ItemView  `json:"current,omitempty"`
	Items     []ItemView `json:"items"`
}

type DocumentView struct {
	TemplateName        string   `json:"templateName"`
	FileName            string   `json:"fileName"`
	Type                string   `json:"type"`
	Content             []byte   `json:"content"`
	SupportingFiles     []string `json:"supportingFiles,omitempty"`
	UnansweredVariables []string `json:"unansweredVariables,omitempty"`
}

type AssembleView struct {
	Documents []DocumentView        `json:"documents"`
	Status    StatusView            `json:"status"`
	Error     *errors.StandardError `json:"error,omitempty"`
}

func itemView(it session.WorkItem) ItemView {
	v := ItemView{
		Template:  it.Template().FileName(),
		Title:     it.Title(),
		Completed: it.IsCompleted(),
	}
	switch item := it.(type) {
	case *session.InterviewWorkItem:
		v.Kind = session.KindInterview
	case *session.DocumentWorkItem:
		v.Kind = session.KindDocument
		v.UnansweredVariables = item.UnansweredVariables()
	}
	return v
}

func statusView(id string, ws *session.WorkSession) StatusView {
	done, total := ws.Progress()
	v := StatusView{
		ID:        id,
		Completed: ws.IsCompleted(),
		Done:      done,
		Total:     total,
		Items:     make([]ItemView, 0, total),
	}
	for _, it := range ws.WorkItems() {
		v.Items = append(v.Items, itemView(it))
	}
	if cur := ws.CurrentWorkItem(); cur != nil {
		cv := itemView(cur)
		v.Current = &cv
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func logRef(r *http.Request) string {
	return r.Header.Get("X-Log-Ref")
}

func (h *Host) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		h.errs.HandleHTTPError(w, r, errors.NewInvalidArgumentError("body", err.Error(), logRef(r)))
		return
	}

	tpl, err := req.template()
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	ws, err := session.New(h.svc, tpl, session.Options{
		AnswersXML:        req.Answers,
		AssemblySettings:  h.assemblySettings,
		InterviewSettings: h.interviewSettings,
		Logger:            h.logger,
	})
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	snap, err := ws.Snapshot()
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	rec := &sessionstore.Record{BillingRef: req.BillingRef, Snapshot: snap}
	if pl, ok := tpl.Location().(template.PackageLocation); ok {
		rec.PackageID = pl.PackageID()
	}
	id, err := h.store.Create(r.Context(), rec)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	if !ws.IsCompleted() {
		metrics.SessionsActive.Inc()
	}
	h.cacheAnswers(id, snap.Answers)

	h.logger.Info("Session created", map[string]interface{}{
		logger.KeySessionID: id,
		logger.KeyTemplate:  tpl.FileName(),
		logger.KeyCount:     len(snap.Items),
	})
	w.Header().Set("Location", "/v1/sessions/"+id)
	writeJSON(w, http.StatusCreated, statusView(id, ws))
}

func (req CreateRequest) template() (*template.Template, error) {
	if req.Template != "" {
		return template.FromLocator(req.Template)
	}
	if req.PackageID == "" {
		return nil, errors.NewInvalidArgumentError("packageId", "packageId or template locator is required", "")
	}
	return template.New(req.FileName, template.PackagePathLocation{ID: req.PackageID}, req.Switches, req.Title)
}

func (h *Host) getStatus(w http.ResponseWriter, r *http.Request) {
	rec, ws, err := h.load(r.Context(), r)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusView(rec.ID, ws))
}

func (h *Host) deleteSession(w http.ResponseWriter, r *http.Request) {
	rec, ws, err := h.load(r.Context(), r)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	if err := h.store.Delete(r.Context(), rec.ID); err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	if !ws.IsCompleted() {
		metrics.SessionsActive.Dec()
	}
	if h.answers != nil {
		_ = h.answers.Delete(rec.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Host) getInterview(w http.ResponseWriter, r *http.Request) {
	_, ws, err := h.load(r.Context(), r)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	var marked []string
	if m := r.URL.Query().Get("marked"); m != "" {
		marked = strings.Split(m, ",")
	}
	res, err := ws.GetCurrentInterview(r.Context(), nil, marked, logRef(r))
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	defer res.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.HTML)
}

func (h *Host) finishInterview(w http.ResponseWriter, r *http.Request) {
	rec, ws, err := h.load(r.Context(), r)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		h.errs.HandleHTTPError(w, r, errors.NewInvalidArgumentError("body", err.Error(), logRef(r)))
		return
	}

	wasCompleted := ws.IsCompleted()
	if err := ws.FinishInterview(string(body)); err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	if err := h.persist(r.Context(), rec, ws, wasCompleted); err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusView(rec.ID, ws))
}

// assemble runs the current run of documents. Documents produced before a
// failure are still returned, next to the error.
func (h *Host) assemble(w http.ResponseWriter, r *http.Request) {
	rec, ws, err := h.load(r.Context(), r)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	wasCompleted := ws.IsCompleted()
	docs, asmErr := ws.AssembleDocuments(r.Context(), session.AssembleOptions{LogRef: logRef(r)})
	defer document.CloseAll(docs)

	if err := h.persist(r.Context(), rec, ws, wasCompleted); err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	view := AssembleView{Documents: make([]DocumentView, 0, len(docs)), Status: statusView(rec.ID, ws)}
	for _, d := range docs {
		dv, err := documentView(d)
		if err != nil {
			h.errs.HandleHTTPError(w, r, err)
			return
		}
		view.Documents = append(view.Documents, dv)
	}

	status := http.StatusOK
	if asmErr != nil {
		stdErr, ok := errors.AsStandardError(asmErr)
		if !ok {
			stdErr = &errors.StandardError{Code: "INTERNAL_ERROR", Message: "Unexpected error", Details: asmErr.Error()}
		}
		view.Error = stdErr
		status = errors.HTTPStatus(stdErr.Code)
		h.logger.WithError(asmErr).Warn("Assembly stopped", map[string]interface{}{
			logger.KeySessionID: rec.ID,
			logger.KeyCount:     len(docs),
		})
	}
	writeJSON(w, status, view)
}

func documentView(d *document.Document) (DocumentView, error) {
	content, err := d.Content.Bytes()
	if err != nil {
		return DocumentView{}, err
	}
	dv := DocumentView{
		TemplateName:        d.TemplateName,
		FileName:            d.FileName,
		Type:                d.Type.String(),
		Content:             content,
		UnansweredVariables: d.UnansweredVariables,
	}
	for _, s := range d.SupportingFiles {
		dv.SupportingFiles = append(dv.SupportingFiles, s.Name)
	}
	return dv, nil
}

// getAnswers serves the cached answer file, falling back to the session.
func (h *Host) getAnswers(w http.ResponseWriter, r *http.Request) {
	id := flow.Param(r.Context(), "id")
	rec, err := h.store.Load(r.Context(), id)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	if h.answers != nil {
		if xml, ok, err := h.answers.Get(id); err == nil && ok {
			writeXML(w, xml)
			return
		}
	}
	h.cacheAnswers(rec.ID, rec.Snapshot.Answers)
	writeXML(w, rec.Snapshot.Answers)
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

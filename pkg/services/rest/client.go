// Package rest implements services.Services against the engine's REST API.
package rest

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"docassembly-sdk/internal/common/errors"
	commonhttp "docassembly-sdk/internal/common/http"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/pkg/answers"
	"docassembly-sdk/pkg/document"
	"docassembly-sdk/pkg/services"
	"docassembly-sdk/pkg/services/multipart"
	"docassembly-sdk/pkg/template"
)

const (
	HeaderDate          = "X-HD-Date"
	HeaderAuthorization = "Authorization"
	HeaderLogRef        = "X-HD-LogRef"

	authScheme = "daysig "
	dateFormat = time.RFC1123
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	SubscriberID string
	SigningKey   string
	BillingRef   string
	Timeout      time.Duration

	// HTTPClient overrides the default transport.
	HTTPClient commonhttp.Doer
	Logger     logger.Logger
	// Now is used for the signed request date.
	Now func() time.Time
}

// Client talks to the engine over HTTP. It requires package-based template
// locations; the engine resolves templates by package id.
type Client struct {
	baseURL      *url.URL
	subscriberID string
	signingKey   string
	billingRef   string
	httpClient   commonhttp.Doer
	logger       logger.Logger
	now          func() time.Time
}

var _ services.Services = (*Client)(nil)

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.NewInvalidArgumentError("BaseURL", "engine base URL is required", "")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("BaseURL", err.Error(), "")
	}
	if opts.SubscriberID == "" {
		return nil, errors.NewInvalidArgumentError("SubscriberID", "subscriber id is required", "")
	}
	if opts.SigningKey == "" {
		return nil, errors.NewInvalidArgumentError("SigningKey", "signing key is required", "")
	}

	c := &Client{
		baseURL:      base,
		subscriberID: opts.SubscriberID,
		signingKey:   opts.SigningKey,
		billingRef:   opts.BillingRef,
		httpClient:   opts.HTTPClient,
		logger:       logger.OrNoOp(opts.Logger),
		now:          opts.Now,
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 2 * time.Minute
		}
		c.httpClient = commonhttp.NewClient(timeout)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

func (c *Client) AssembleDocument(ctx context.Context, tpl *template.Template, answersXML string, settings services.AssembleDocumentSettings, logRef string) (*services.AssembleDocumentResult, error) {
	pkgID, err := c.packageOf(tpl, logRef)
	if err != nil {
		return nil, err
	}

	format := document.FormatForType(settings.Format)
	if format == document.FormatNone {
		format = document.FormatNative
	}
	q := url.Values{}
	q.Set("format", format.String())
	q.Set("retaintransientanswers", strconv.FormatBool(settings.RetainTransientAnswers))
	addSettings(q, settings.Settings)
	for k, v := range settings.OutputOptions {
		q.Set("outputoption."+k, v)
	}

	resp, err := c.do(ctx, http.MethodPost, "assemble", pkgID, tpl, q, []byte(answersXML), logRef, format.String(), strconv.FormatBool(settings.RetainTransientAnswers))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	msg, err := multipart.DecodeResponse(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		return nil, withLogRef(err, logRef)
	}
	res, err := multipart.AssemblyResultFrom(msg)
	if err != nil {
		return nil, withLogRef(err, logRef)
	}
	if res == nil {
		return nil, errors.NewEngineError("assemble", "response has no assembly result", logRef)
	}
	return services.FromAssemblyResult(res, tpl, settings)
}

func (c *Client) GetInterview(ctx context.Context, tpl *template.Template, answersXML string, settings services.InterviewSettings, markedVariables []string, logRef string) (*services.InterviewResult, error) {
	pkgID, err := c.packageOf(tpl, logRef)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("format", settings.Format.String())
	q.Set("options", strconv.FormatUint(uint64(settings.Options), 10))
	setIf(q, "title", settings.Title)
	setIf(q, "posturl", settings.PostInterviewURL)
	setIf(q, "interviewfilesurl", settings.InterviewFilesURL)
	setIf(q, "documentpreviewurl", settings.DocumentPreviewURL)
	setIf(q, "saveanswersurl", settings.SaveAnswersURL)
	setIf(q, "locale", settings.Locale)
	setIf(q, "theme", settings.Theme)
	if len(markedVariables) > 0 {
		q.Set("markedvariables", strings.Join(markedVariables, ","))
	}
	addSettings(q, settings.Settings)

	resp, err := c.do(ctx, http.MethodPost, "interview", pkgID, tpl, q, []byte(answersXML), logRef, settings.Format.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	msg, err := multipart.DecodeResponse(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		return nil, withLogRef(err, logRef)
	}
	list, err := multipart.BinaryObjectsFrom(msg)
	if err != nil {
		return nil, withLogRef(err, logRef)
	}
	if list == nil {
		return nil, errors.NewEngineError("interview", "response has no interview", logRef)
	}

	result := &services.InterviewResult{}
	for i := range list.Items {
		bo := &list.Items[i]
		data, err := bo.Content()
		if err != nil {
			_ = result.Close()
			return nil, errors.NewDecodeFailedError("interview part", err)
		}
		if result.HTML == "" && (bo.Format.Has(document.FormatHTML) || isHTMLName(bo.FileName)) {
			result.HTML = string(data)
			continue
		}
		result.Files = append(result.Files, document.NewNamedStream(bo.FileName, data))
	}
	return result, nil
}

func (c *Client) GetComponentInfo(ctx context.Context, tpl *template.Template, includeDialogs bool, logRef string) (*services.ComponentInfo, error) {
	pkgID, err := c.packageOf(tpl, logRef)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("includedialogs", strconv.FormatBool(includeDialogs))

	resp, err := c.do(ctx, http.MethodGet, "componentinfo", pkgID, tpl, q, nil, logRef, strconv.FormatBool(includeDialogs))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	msg, err := multipart.DecodeResponse(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		return nil, withLogRef(err, logRef)
	}
	list, err := multipart.BinaryObjectsFrom(msg)
	if err != nil {
		return nil, withLogRef(err, logRef)
	}
	if list == nil || len(list.Items) == 0 {
		return nil, errors.NewEngineError("componentinfo", "response has no component info", logRef)
	}

	// The component info document is the first XML object.
	bo := &list.Items[0]
	for i := range list.Items {
		if strings.HasSuffix(strings.ToLower(list.Items[i].FileName), ".xml") {
			bo = &list.Items[i]
			break
		}
	}
	data, err := bo.Content()
	if err != nil {
		return nil, withLogRef(errors.NewDecodeFailedError("component info", err), logRef)
	}
	var info services.ComponentInfo
	if err := xml.Unmarshal(data, &info); err != nil {
		return nil, withLogRef(errors.NewDecodeFailedError("component info", err), logRef)
	}
	return &info, nil
}

// GetAnswers merges locally; the engine is not involved.
func (c *Client) GetAnswers(_ context.Context, readers []io.Reader, logRef string) (string, error) {
	if len(readers) == 0 {
		return "", errors.NewInvalidArgumentError("answers", "at least one answer set is required", logRef)
	}
	merged, err := answers.Merge(readers...)
	if err != nil {
		return "", withLogRef(errors.NewAnswersInvalidError(err), logRef)
	}
	return merged.XML()
}

func (c *Client) packageOf(tpl *template.Template, logRef string) (string, error) {
	if tpl == nil {
		return "", errors.NewInvalidArgumentError("template", "template is required", logRef)
	}
	loc, ok := tpl.Location().(template.PackageLocation)
	if !ok {
		return "", errors.NewUnsupportedConfigurationError(
			fmt.Sprintf("template %s is not in a package location", tpl.FileName()), logRef)
	}
	return loc.PackageID(), nil
}

// do signs and sends a request and classifies non-2xx answers.
func (c *Client) do(ctx context.Context, method, op, pkgID string, tpl *template.Template, q url.Values, body []byte, logRef string, extra ...string) (*http.Response, error) {
	u := c.baseURL.JoinPath(op, url.PathEscape(c.subscriberID), url.PathEscape(pkgID), url.PathEscape(tpl.FileName()))
	if c.billingRef != "" {
		q.Set("billingref", c.billingRef)
	}
	u.RawQuery = q.Encode()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("request", err.Error(), logRef)
	}

	date := c.now().UTC().Format(dateFormat)
	fields := append([]string{c.subscriberID, pkgID, tpl.FileName(), c.billingRef, date}, extra...)
	req.Header.Set(HeaderDate, date)
	req.Header.Set(HeaderAuthorization, authScheme+Sign(c.signingKey, fields...))
	if body != nil {
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	}
	if logRef != "" {
		req.Header.Set(HeaderLogRef, logRef)
	}

	c.logger.Debug("Calling engine", map[string]interface{}{
		logger.KeyOperation: op,
		logger.KeyTemplate:  tpl.FileName(),
		logger.KeyLogRef:    logRef,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(op, err, logRef)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	details := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.NewAuthenticationError(details, logRef)
	case resp.StatusCode >= 500:
		stdErr := errors.NewEngineError(op, details, logRef)
		stdErr.Retryable = resp.StatusCode == http.StatusServiceUnavailable
		return nil, stdErr
	default:
		return nil, errors.NewEngineError(op, details, logRef)
	}
}

func addSettings(q url.Values, settings map[string]string) {
	for k, v := range settings {
		q.Set("setting."+k, v)
	}
}

func setIf(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

func isHTMLName(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".htm") || strings.HasSuffix(n, ".html")
}

func withLogRef(err error, logRef string) error {
	if stdErr, ok := errors.AsStandardError(err); ok && stdErr.LogRef == "" {
		stdErr.LogRef = logRef
	}
	return err
}

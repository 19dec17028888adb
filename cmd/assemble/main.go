// cmd/assemble/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"docassembly-sdk/internal/common/config"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/internal/common/observability"
	"docassembly-sdk/internal/instrument"
	"docassembly-sdk/pkg/document"
	"docassembly-sdk/pkg/services"
	"docassembly-sdk/pkg/services/rest"
	"docassembly-sdk/pkg/session"
	"docassembly-sdk/pkg/template"
)

type options struct {
	configPath string
	fileName   string
	packageID  string
	switches   string
	answers    string
	outDir     string
	info       bool
	logRef     string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to a config file (default: configs/config.yaml lookup)")
	flag.StringVar(&opts.fileName, "template", "", "Template file name inside the package (e.g., letter.docx)")
	flag.StringVar(&opts.packageID, "package", "", "Template package id")
	flag.StringVar(&opts.switches, "switches", "", "Assembly switches (e.g., /nw)")
	flag.StringVar(&opts.answers, "answers", "", "Comma separated answer files, merged in order")
	flag.StringVar(&opts.outDir, "out", ".", "Output directory for documents and interviews")
	flag.BoolVar(&opts.info, "info", false, "Print the template's variables instead of assembling")
	flag.StringVar(&opts.logRef, "logref", "", "Log reference sent with every engine call")
	flag.Parse()

	if opts.fileName == "" || opts.packageID == "" {
		fmt.Fprintln(os.Stderr, "Error: -template and -package are required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	log := logger.NewStructured(cfg.Logging.Level, "console")

	obs := observability.New("assemble-cli")
	defer obs.Shutdown()

	engine, err := rest.New(rest.Options{
		BaseURL:      cfg.Engine.BaseURL,
		SubscriberID: cfg.Engine.SubscriberID,
		SigningKey:   cfg.Engine.SigningKey,
		BillingRef:   cfg.Engine.BillingRef,
		Timeout:      config.GetDuration(cfg.Engine.Timeout),
		Logger:       log,
	})
	if err != nil {
		return err
	}
	svc := instrument.Wrap(engine, log, obs)

	tpl, err := template.New(opts.fileName, template.PackagePathLocation{ID: opts.packageID}, opts.switches, "")
	if err != nil {
		return err
	}

	if opts.info {
		return printInfo(ctx, svc, tpl, opts.logRef, out)
	}

	answerXML, err := mergeAnswers(ctx, svc, opts.answers, opts.logRef)
	if err != nil {
		return err
	}

	ws, err := session.New(svc, tpl, session.Options{AnswersXML: answerXML, Logger: log})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for !ws.IsCompleted() {
		switch item := ws.CurrentWorkItem().(type) {
		case *session.InterviewWorkItem:
			if err := saveInterview(ctx, ws, opts, out); err != nil {
				return err
			}
			// No one answers the interview here; the supplied answers stand.
			current, err := ws.AnswersXML()
			if err != nil {
				return err
			}
			if err := ws.FinishInterview(current); err != nil {
				return err
			}
		case *session.DocumentWorkItem:
			docs, err := ws.AssembleDocuments(ctx, session.AssembleOptions{LogRef: opts.logRef})
			werr := writeDocuments(docs, opts.outDir, out)
			document.CloseAll(docs)
			if err != nil {
				return fmt.Errorf("assembling %s: %w", item.Template().FileName(), err)
			}
			if werr != nil {
				return werr
			}
		}
	}

	done, total := ws.Progress()
	fmt.Fprintf(out, "Session complete: %d/%d work items\n", done, total)
	return nil
}

func mergeAnswers(ctx context.Context, svc services.Services, list, logRef string) (string, error) {
	if list == "" {
		return "", nil
	}
	var readers []io.Reader
	for _, path := range strings.Split(list, ",") {
		f, err := os.Open(strings.TrimSpace(path))
		if err != nil {
			return "", fmt.Errorf("failed to open answer file: %w", err)
		}
		defer f.Close()
		readers = append(readers, f)
	}
	return svc.GetAnswers(ctx, readers, logRef)
}

func saveInterview(ctx context.Context, ws *session.WorkSession, opts options, out io.Writer) error {
	res, err := ws.GetCurrentInterview(ctx, nil, nil, opts.logRef)
	if err != nil {
		return err
	}
	defer res.Close()

	name := ws.CurrentWorkItem().Title() + ".interview.html"
	path := filepath.Join(opts.outDir, name)
	if err := os.WriteFile(path, []byte(res.HTML), 0o644); err != nil {
		return fmt.Errorf("failed to write interview: %w", err)
	}
	fmt.Fprintf(out, "Interview saved: %s\n", path)
	return nil
}

func writeDocuments(docs []*document.Document, dir string, out io.Writer) error {
	for _, d := range docs {
		content, err := d.Content.Bytes()
		if err != nil {
			return err
		}
		path := filepath.Join(dir, filepath.Base(d.FileName))
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
		for _, s := range d.SupportingFiles {
			data, err := s.Content.Bytes()
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, filepath.Base(s.Name)), data, 0o644); err != nil {
				return fmt.Errorf("failed to write supporting file: %w", err)
			}
		}
		fmt.Fprintf(out, "Document saved: %s (%s)", path, d.Type)
		if len(d.UnansweredVariables) > 0 {
			fmt.Fprintf(out, ", unanswered: %s", strings.Join(d.UnansweredVariables, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func printInfo(ctx context.Context, svc services.Services, tpl *template.Template, logRef string, out io.Writer) error {
	info, err := svc.GetComponentInfo(ctx, tpl, true, logRef)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Variables (%d):\n", len(info.Variables))
	for _, v := range info.Variables {
		fmt.Fprintf(out, "  %s\t%s\n", v.Name, v.Type)
	}
	fmt.Fprintf(out, "Dialogs (%d):\n", len(info.Dialogs))
	for _, d := range info.Dialogs {
		fmt.Fprintf(out, "  %s: %s\n", d.Name, strings.Join(d.Variables, ", "))
	}
	return nil
}

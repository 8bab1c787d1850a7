package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/sagarsiwach/sanews-autofit/article"
	"github.com/sagarsiwach/sanews-autofit/config"
	"github.com/sagarsiwach/sanews-autofit/credential"
	"github.com/sagarsiwach/sanews-autofit/document"
	"github.com/sagarsiwach/sanews-autofit/dsl"
	"github.com/sagarsiwach/sanews-autofit/fit"
	"github.com/sagarsiwach/sanews-autofit/oracle"
	canvasrenderer "github.com/sagarsiwach/sanews-autofit/renderer/canvas"
	"github.com/sagarsiwach/sanews-autofit/session"
)

// app is everything a command needs to work on one template.
type app struct {
	cfg      config.Config
	doc      *document.Document
	renderer *canvasrenderer.Renderer
	session  *session.Session
	logger   *log.Logger
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.provider != "" {
		cfg.Oracle.Provider = flags.provider
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func openCredentials(cfg config.Config) (*credential.FileStore, error) {
	return credential.NewFileStore(cfg.Paths.CredentialDir)
}

func openApp(ctx context.Context, flags *globalFlags) (*app, error) {
	logger := loggerFromContext(ctx)
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	baseDir := cfg.Paths.FontDir
	if baseDir == "" {
		baseDir = filepath.Dir(flags.template)
	}
	r := canvasrenderer.NewRenderer(baseDir)

	doc, err := loadTemplate(flags.template, r)
	if err != nil {
		return nil, err
	}
	logger.Debug("template loaded", "path", flags.template, "frames", len(doc.Frames))

	creds, err := openCredentials(cfg)
	if err != nil {
		return nil, err
	}

	sess := session.New(doc, document.NewHost(r), creds, session.Options{
		Logger: logger,
		Fit:    cfg.FitOptions(),
		NewAdjuster: func(apiKey string) (fit.Adjuster, error) {
			a, err := oracle.New(cfg.OracleSettings(apiKey))
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
	return &app{cfg: cfg, doc: doc, renderer: r, session: sess, logger: logger}, nil
}

// loadTemplate parses and builds the template at path.
func loadTemplate(path string, ts document.Typesetter) (*document.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", path, err)
	}
	defer file.Close()

	tpl, err := dsl.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	doc, err := document.Build(tpl, document.BuildOptions{Typesetter: ts})
	if err != nil {
		return nil, fmt.Errorf("build template %s: %w", path, err)
	}
	return doc, nil
}

// loadArticle reads markdown with front matter, JSON or YAML by extension.
func loadArticle(path string) (article.Content, error) {
	var c article.Content
	file, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("open article %s: %w", path, err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.NewDecoder(file).Decode(&c)
	case ".yaml", ".yml":
		err = yaml.NewDecoder(file).Decode(&c)
	default:
		c, err = article.ParseMarkdown(file)
	}
	if err != nil {
		return article.Content{}, fmt.Errorf("read article %s: %w", path, err)
	}
	return c, nil
}

// send handles one message, logging its events as they arrive.
func (a *app) send(ctx context.Context, msg session.Message) (session.Result, error) {
	events := make(chan fit.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			logEvent(a.logger, ev)
		}
	}()
	res, err := a.session.Handle(ctx, msg, events)
	close(events)
	<-done
	return res, err
}

func logEvent(logger *log.Logger, ev fit.Event) {
	switch data := ev.Data.(type) {
	case fit.IterationUpdate:
		logger.Info("fitting", "iteration", data.Iteration)
	case fit.FillComplete:
		logger.Info("filled", "overflow", fmt.Sprintf("%.2fmm", data.Overflow), "needsAdjustment", data.NeedsAdjustment)
	case fit.AutoFitComplete:
		logger.Info("auto-fit complete", "iterations", data.Iterations, "overflow", fmt.Sprintf("%.2fmm", data.Overflow), "maxReached", data.MaxReached)
	case article.Summary:
		logger.Info("layout detected", "columns", data.ColumnCount)
	default:
		if ev.Type == fit.EventError {
			logger.Error(ev.Message)
			return
		}
		logger.Info(string(ev.Type))
	}
}

func contentMessage(typ session.MessageType, frame string, c article.Content) (session.Message, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return session.Message{}, err
	}
	return session.Message{Type: typ, Selection: []string{frame}, Data: data}, nil
}

// writeOutputs exports the frame as PDF and its node tree as JSON when the
// paths are set.
func (a *app) writeOutputs(frameName, pdfPath, debugPath string) error {
	if pdfPath != "" {
		out, err := a.session.Render(frameName, a.renderer)
		if err != nil {
			return err
		}
		if err := writeFile(pdfPath, out); err != nil {
			return err
		}
		a.logger.Info("pdf written", "path", pdfPath)
	}
	if debugPath != "" {
		frame, ok := a.doc.Frame(frameName)
		if !ok {
			return fmt.Errorf("frame %q not found", frameName)
		}
		if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := document.WriteDebugJSON(frame, debugPath); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		a.logger.Info("snapshot written", "path", debugPath)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

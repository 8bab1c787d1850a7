// Package session dispatches UI messages against one template document.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/sagarsiwach/sanews-autofit/article"
	"github.com/sagarsiwach/sanews-autofit/credential"
	"github.com/sagarsiwach/sanews-autofit/document"
	"github.com/sagarsiwach/sanews-autofit/fit"
)

// MessageType names an incoming message.
type MessageType string

const (
	MsgDetectLayout MessageType = "detect-layout"
	MsgFillContent  MessageType = "fill-content"
	MsgSaveAPIKey   MessageType = "save-api-key"
	MsgAutoFit      MessageType = "auto-fit"
	MsgClose        MessageType = "close"
)

// Message is one request from the UI. Selection names the selected nodes;
// Data carries article content for fill-content and auto-fit, and the key
// string for save-api-key.
type Message struct {
	Type      MessageType     `json:"type"`
	Selection []string        `json:"selection,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrClosed is returned for messages that arrive after close.
var ErrClosed = fit.NewError(fit.KindInvalidInput, "session is closed")

// AdjusterFactory builds a rewrite client for a stored API key.
type AdjusterFactory func(apiKey string) (fit.Adjuster, error)

// Options configures a Session.
type Options struct {
	Logger      *log.Logger
	Fit         fit.Options
	NewAdjuster AdjusterFactory
}

// Result is what a handled message produced, besides its events.
type Result struct {
	RunID   string
	Summary *article.Summary
	Fill    *fit.FillComplete
	Outcome *fit.Outcome
}

// Session owns a document and serializes every operation on it.
type Session struct {
	mu          sync.Mutex
	doc         *document.Document
	host        fit.Host
	creds       credential.Store
	newAdjuster AdjusterFactory
	fitOpts     fit.Options
	logger      *log.Logger

	closed bool
	done   chan struct{}
}

func New(doc *document.Document, host fit.Host, creds credential.Store, opts Options) *Session {
	s := &Session{
		doc:         doc,
		host:        host,
		creds:       creds,
		newAdjuster: opts.NewAdjuster,
		fitOpts:     opts.Fit,
		logger:      opts.Logger,
		done:        make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.fitOpts.Logger = s.logger
	return s
}

// Done is closed once a close message has been handled.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Handle processes msg, sending notifications on events. Failures are sent
// as an error event and also returned.
func (s *Session) Handle(ctx context.Context, msg Message, events chan<- fit.Event) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{RunID: fit.NewRunID()}
	if s.closed {
		return res, s.reject(ctx, res.RunID, events, ErrClosed)
	}
	s.logger.Debug("message", "type", msg.Type, "run", res.RunID)

	switch msg.Type {
	case MsgDetectLayout:
		return s.detectLayout(ctx, msg, events, res)
	case MsgFillContent:
		return s.fillContent(ctx, msg, events, res)
	case MsgSaveAPIKey:
		return s.saveAPIKey(ctx, msg, events, res)
	case MsgAutoFit:
		return s.autoFit(ctx, msg, events, res)
	case MsgClose:
		s.closed = true
		close(s.done)
		s.logger.Info("session closed")
		return res, nil
	default:
		return res, s.reject(ctx, res.RunID, events, fit.NewError(fit.KindInvalidInput, "unknown message type %q", msg.Type))
	}
}

func (s *Session) detectLayout(ctx context.Context, msg Message, events chan<- fit.Event, res Result) (Result, error) {
	frame, err := s.selectFrame(msg.Selection, true)
	if err != nil {
		return res, s.reject(ctx, res.RunID, events, err)
	}
	summary := document.DetectLayout(frame).Summary()
	res.Summary = &summary
	fit.Emit(ctx, events, fit.Event{Type: fit.EventLayoutDetected, RunID: res.RunID, Data: summary})
	return res, nil
}

func (s *Session) fillContent(ctx context.Context, msg Message, events chan<- fit.Event, res Result) (Result, error) {
	frame, err := s.selectFrame(msg.Selection, false)
	if err != nil {
		return res, s.reject(ctx, res.RunID, events, err)
	}
	content, err := decodeContent(msg.Data)
	if err != nil {
		return res, s.reject(ctx, res.RunID, events, err)
	}
	ctrl := fit.NewController(s.host, nil, s.fitOpts)
	fill, err := ctrl.Fill(ctx, fit.Job{
		RunID:   res.RunID,
		Layout:  document.DetectLayout(frame),
		Content: content,
		Events:  events,
	})
	if err != nil {
		return res, err
	}
	res.Fill = &fill
	return res, nil
}

func (s *Session) saveAPIKey(ctx context.Context, msg Message, events chan<- fit.Event, res Result) (Result, error) {
	var key string
	if err := json.Unmarshal(msg.Data, &key); err != nil {
		return res, s.reject(ctx, res.RunID, events, fit.WrapError(fit.KindInvalidInput, err, "invalid API key payload"))
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return res, s.reject(ctx, res.RunID, events, fit.NewError(fit.KindInvalidInput, "API key must not be empty"))
	}
	if err := s.creds.Set(ctx, credential.APIKey, key); err != nil {
		return res, s.reject(ctx, res.RunID, events, err)
	}
	s.logger.Info("api key saved")
	fit.Emit(ctx, events, fit.Event{Type: fit.EventAPIKeySaved, RunID: res.RunID})
	return res, nil
}

func (s *Session) autoFit(ctx context.Context, msg Message, events chan<- fit.Event, res Result) (Result, error) {
	frame, err := s.selectFrame(msg.Selection, false)
	if err != nil {
		return res, s.reject(ctx, res.RunID, events, err)
	}
	content, err := decodeContent(msg.Data)
	if err != nil {
		return res, s.reject(ctx, res.RunID, events, err)
	}

	key, err := s.creds.Get(ctx, credential.APIKey)
	if err != nil {
		return res, s.reject(ctx, res.RunID, events, fit.WrapError(fit.KindCredentialMissing, err, fit.MsgSaveKeyFirst))
	}
	if key == "" {
		return res, s.reject(ctx, res.RunID, events, fit.NewError(fit.KindCredentialMissing, fit.MsgSaveKeyFirst))
	}

	layout := document.DetectLayout(frame)
	var adjuster fit.Adjuster
	if len(layout.Columns) > 0 {
		if s.newAdjuster == nil {
			return res, s.reject(ctx, res.RunID, events, fit.NewError(fit.KindOracle, "no rewrite provider configured"))
		}
		if adjuster, err = s.newAdjuster(key); err != nil {
			return res, s.reject(ctx, res.RunID, events, fit.WrapError(fit.KindOracle, err, "configure rewrite provider"))
		}
	}

	// the controller reports a layout without columns itself
	out := fit.NewController(s.host, adjuster, s.fitOpts).AutoFit(ctx, fit.Job{
		RunID:   res.RunID,
		Layout:  layout,
		Content: content,
		Events:  events,
	})
	res.Outcome = &out
	return res, out.Err
}

// selectFrame resolves the selection to one frame. detect selects the more
// specific messages used by detect-layout.
func (s *Session) selectFrame(names []string, detect bool) (*document.ContainerNode, error) {
	nodes, err := s.doc.Select(names...)
	if err == nil {
		var frame *document.ContainerNode
		if frame, err = document.SingleFrame(nodes); err == nil {
			return frame, nil
		}
	}
	msg := fit.MsgSelectFirst
	if detect {
		msg = fit.MsgSelectExactlyOne
		if errors.Is(err, document.ErrNotFrame) {
			msg = fit.MsgSelectFrame
		}
	}
	return nil, &fit.Error{Kind: fit.KindSelection, Message: msg, Cause: err}
}

func decodeContent(data json.RawMessage) (article.Content, error) {
	var c article.Content
	if len(data) == 0 {
		return c, fit.NewError(fit.KindInvalidInput, "missing article content")
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fit.WrapError(fit.KindInvalidInput, err, "invalid article content")
	}
	return c, nil
}

func (s *Session) reject(ctx context.Context, runID string, events chan<- fit.Event, err error) error {
	s.logger.Warn("message rejected", "run", runID, "err", err)
	fit.Emit(ctx, events, userEvent(runID, err))
	return err
}

// userEvent reports selection and credential errors by their fixed message,
// without the underlying cause.
func userEvent(runID string, err error) fit.Event {
	var fe *fit.Error
	if errors.As(err, &fe) && (fe.Kind == fit.KindSelection || fe.Kind == fit.KindCredentialMissing) {
		return fit.Event{Type: fit.EventError, RunID: runID, Message: fe.Message}
	}
	return fit.ErrorEvent(runID, err)
}

// Package notification delivers referral workflow events to interested
// parties. It provides a small template engine, a Notifier interface, and a
// zerolog-backed implementation used when no real delivery channel is
// configured.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event names emitted by the referral workflow.
const (
	EventReferralCreated   = "referral-created"
	EventStageConfirmed    = "stage-confirmed"
	EventReferralCompleted = "referral-completed"
	EventDocumentAttached  = "document-attached"
	EventReferralCancelled = "referral-cancelled"
)

// Event is a single workflow occurrence to be delivered.
type Event struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	ReferralID string            `json:"referral_id"`
	ActorID    string            `json:"actor_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier is the interface the referral service publishes events through.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      EventReferralCreated,
			Name:    "Referral Created",
			Subject: "New referral for {{patient_name}}",
			Body:    "A referral for {{patient_name}} was sent to {{clinic_name}}.",
		},
		{
			ID:      EventStageConfirmed,
			Name:    "Stage Confirmed",
			Subject: "Referral {{referral_id}} advanced to stage {{stage}}",
			Body:    "Referral {{referral_id}} was confirmed at stage {{stage}}: {{stage_label}}.",
		},
		{
			ID:      EventReferralCompleted,
			Name:    "Referral Completed",
			Subject: "Referral {{referral_id}} completed",
			Body:    "The referral for {{patient_name}} has completed all confirmation stages.",
		},
		{
			ID:      EventDocumentAttached,
			Name:    "Document Attached",
			Subject: "Document attached to referral {{referral_id}}",
			Body:    "A {{kind}} document ({{file_name}}) was attached to referral {{referral_id}}.",
		},
		{
			ID:      EventReferralCancelled,
			Name:    "Referral Cancelled",
			Subject: "Referral {{referral_id}} cancelled",
			Body:    "The referral for {{patient_name}} was deactivated.",
		},
	}
	for i := range builtIn {
		tpl := builtIn[i]
		e.templates[tpl.ID] = &tpl
	}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(tpl Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[tpl.ID] = &tpl
}

// Render fills the template identified by id with the supplied data and
// returns the rendered subject and body.
func (e *TemplateEngine) Render(id string, data map[string]string) (string, string, error) {
	e.mu.RLock()
	tpl, ok := e.templates[id]
	e.mu.RUnlock()

	if !ok {
		return "", "", fmt.Errorf("template %q not found", id)
	}

	return substitute(tpl.Subject, data), substitute(tpl.Body, data), nil
}

func substitute(s string, data map[string]string) string {
	for k, v := range data {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}

// LogNotifier renders events through the template engine and writes them to
// the structured log. It is the default Notifier in deployments without an
// email or push channel.
type LogNotifier struct {
	logger zerolog.Logger
	engine *TemplateEngine
}

// NewLogNotifier returns a LogNotifier backed by the built-in templates.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
		engine: NewTemplateEngine(),
	}
}

// Notify renders and logs a workflow event.
func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	subject, body, err := n.engine.Render(event.Name, event.Data)
	if err != nil {
		// Unknown event names still get logged, just without rendering.
		subject = event.Name
		body = ""
	}

	n.logger.Info().
		Str("event_id", event.ID).
		Str("event", event.Name).
		Str("referral_id", event.ReferralID).
		Str("actor_id", event.ActorID).
		Str("subject", subject).
		Str("body", body).
		Time("occurred_at", event.OccurredAt).
		Msg("notification")

	return nil
}

// NopNotifier discards all events. Useful in tests.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Event) error { return nil }

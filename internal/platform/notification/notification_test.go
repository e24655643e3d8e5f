package notification

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Name:    "Test Template",
		Subject: "Hello {{name}}",
		Body:    "Dear {{name}}, your code is {{code}}.",
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{
		"name": "Alice",
		"code": "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Alice" {
		t.Errorf("subject = %q, want %q", subject, "Hello Alice")
	}
	if body != "Dear Alice, your code is 1234." {
		t.Errorf("body = %q, want %q", body, "Dear Alice, your code is 1234.")
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	_, _, err := eng.Render("nonexistent", nil)
	if err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplateEngine_BuiltInTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	builtIn := []string{
		EventReferralCreated,
		EventStageConfirmed,
		EventReferralCompleted,
		EventDocumentAttached,
		EventReferralCancelled,
	}
	for _, id := range builtIn {
		_, _, err := eng.Render(id, map[string]string{
			"patient_name": "Test",
			"clinic_name":  "Clinica Central",
			"referral_id":  "abc-123",
			"stage":        "2",
			"stage_label":  "Recibido",
			"kind":         "final",
			"file_name":    "resumen.pdf",
		})
		if err != nil {
			t.Errorf("built-in template %q not found: %v", id, err)
		}
	}
}

func TestLogNotifier_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	n := NewLogNotifier(logger)

	err := n.Notify(context.Background(), Event{
		Name:       EventStageConfirmed,
		ReferralID: "ref-1",
		ActorID:    "user-1",
		Data: map[string]string{
			"referral_id": "ref-1",
			"stage":       "3",
			"stage_label": "En proceso",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "stage-confirmed") {
		t.Errorf("expected event name in log output, got %s", out)
	}
	if !strings.Contains(out, "ref-1") {
		t.Errorf("expected referral id in log output, got %s", out)
	}
}

func TestLogNotifier_UnknownEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	n := NewLogNotifier(logger)

	err := n.Notify(context.Background(), Event{Name: "something-else"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "something-else") {
		t.Error("expected unknown event to still be logged")
	}
}

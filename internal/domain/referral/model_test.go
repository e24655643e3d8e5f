package referral

import (
	"testing"

	"github.com/google/uuid"
)

func TestStage_MonotonePrefix(t *testing.T) {
	tests := []struct {
		name  string
		flags [4]int16
		want  int
	}{
		{"none confirmed", [4]int16{0, 0, 0, 0}, 0},
		{"first confirmed", [4]int16{1, 0, 0, 0}, 1},
		{"two confirmed", [4]int16{1, 1, 0, 0}, 2},
		{"three confirmed", [4]int16{1, 1, 1, 0}, 3},
		{"all confirmed", [4]int16{1, 1, 1, 1}, 4},
		{"gap stops the count", [4]int16{1, 0, 1, 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Referral{
				Confirmation1: tt.flags[0],
				Confirmation2: tt.flags[1],
				Confirmation3: tt.flags[2],
				Confirmation4: tt.flags[3],
			}
			if got := r.Stage(); got != tt.want {
				t.Errorf("Stage() = %d, want %d", got, tt.want)
			}
			if got := r.Terminal(); got != (tt.want == 4) {
				t.Errorf("Terminal() = %v, want %v", got, tt.want == 4)
			}
		})
	}
}

func TestStamp_SetsFlagAndApproverOnce(t *testing.T) {
	r := &Referral{}
	first := uuid.New()
	second := uuid.New()

	r.stamp(1, first)
	if r.Confirmation1 != 1 {
		t.Fatal("expected confirmation1 set")
	}
	if r.ConfirmedBy1 == nil || *r.ConfirmedBy1 != first {
		t.Fatal("expected approver recorded")
	}

	// A second stamp on the same stage must not overwrite the approver.
	r.stamp(1, second)
	if *r.ConfirmedBy1 != first {
		t.Error("approver was overwritten")
	}
}

func TestStatusLabel(t *testing.T) {
	r := &Referral{Active: true}

	labels := []string{
		"en proceso",
		"pendiente admin 1",
		"pendiente admin 2",
		"pendiente clinica destino",
		"completado",
	}

	for stage, want := range labels {
		if got := r.StatusLabel(); got != want {
			t.Errorf("stage %d: StatusLabel() = %q, want %q", stage, got, want)
		}
		r.stamp(stage+1, uuid.New())
	}

	r.Active = false
	if got := r.StatusLabel(); got != "anulado" {
		t.Errorf("inactive StatusLabel() = %q, want %q", got, "anulado")
	}
}

func TestProgress(t *testing.T) {
	r := &Referral{Active: true}
	want := []int{0, 25, 50, 75, 100}
	for stage, w := range want {
		if got := r.Progress(); got != w {
			t.Errorf("stage %d: Progress() = %d, want %d", stage, got, w)
		}
		r.stamp(stage+1, uuid.New())
	}
}

func TestDocumentKind_Valid(t *testing.T) {
	if !DocInitial.Valid() || !DocFinal.Valid() {
		t.Error("expected initial and final to be valid")
	}
	if DocumentKind("other").Valid() {
		t.Error("expected unknown kind to be invalid")
	}
}

func TestDocumentPath(t *testing.T) {
	initial := "key-initial"
	final := "key-final"
	r := &Referral{InitialDocumentPath: &initial, FinalDocumentPath: &final}

	if got := r.DocumentPath(DocInitial); got == nil || *got != initial {
		t.Error("expected initial path")
	}
	if got := r.DocumentPath(DocFinal); got == nil || *got != final {
		t.Error("expected final path")
	}
}

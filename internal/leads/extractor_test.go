package leads

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
)

type mockNotifier struct {
	mu         sync.Mutex
	candidates []knowledgeModel.LeadCandidate
	err        error
}

func (m *mockNotifier) CreateLead(ctx context.Context, candidate knowledgeModel.LeadCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append(m.candidates, candidate)
	return m.err
}

func TestFindEmails(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "Single_Email",
			text: "contact me at jane@example.com please",
			want: []string{"jane@example.com"},
		},
		{
			name: "No_Contact_Info",
			text: "no contact info here",
			want: nil,
		},
		{
			name: "Duplicates_Collapsed_Case_Insensitive",
			text: "Jane@Example.com or jane@example.com, either works",
			want: []string{"jane@example.com"},
		},
		{
			name: "Multiple_In_Order",
			text: "reach bob@acme.io or sales@acme.io",
			want: []string{"bob@acme.io", "sales@acme.io"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindEmails(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("FindEmails got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Email %d got %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScanTurn_SessionDedup(t *testing.T) {
	notifier := &mockNotifier{}
	e := NewExtractor(notifier)
	ctx := context.Background()

	e.ScanTurn(ctx, "bot-1", "sess-1", "contact me at jane@example.com")
	e.ScanTurn(ctx, "bot-1", "sess-1", "again: jane@example.com")

	if len(notifier.candidates) != 1 {
		t.Fatalf("Expected 1 candidate after repeat in same session, got %d", len(notifier.candidates))
	}
	if notifier.candidates[0].Email != "jane@example.com" || notifier.candidates[0].BotId != "bot-1" {
		t.Errorf("Candidate got %+v", notifier.candidates[0])
	}
}

func TestScanTurn_NewSessionEmitsAgain(t *testing.T) {
	notifier := &mockNotifier{}
	e := NewExtractor(notifier)
	ctx := context.Background()

	e.ScanTurn(ctx, "bot-1", "sess-1", "jane@example.com")
	e.ScanTurn(ctx, "bot-1", "sess-2", "jane@example.com")

	if len(notifier.candidates) != 2 {
		t.Errorf("Dedup is per session; expected 2 candidates, got %d", len(notifier.candidates))
	}
}

func TestScanTurn_DeliveryFailureIsSwallowed(t *testing.T) {
	notifier := &mockNotifier{err: errors.New("crm down")}
	e := NewExtractor(notifier)

	//must not panic or surface the error
	e.ScanTurn(context.Background(), "bot-1", "sess-1", "jane@example.com")

	if len(notifier.candidates) != 1 {
		t.Errorf("Candidate should still have been attempted, got %d", len(notifier.candidates))
	}
}

func TestEndSession_DropsDedupState(t *testing.T) {
	notifier := &mockNotifier{}
	e := NewExtractor(notifier)
	ctx := context.Background()

	e.ScanTurn(ctx, "bot-1", "sess-1", "jane@example.com")
	e.EndSession("sess-1")
	e.ScanTurn(ctx, "bot-1", "sess-1", "jane@example.com")

	if len(notifier.candidates) != 2 {
		t.Errorf("Expected re-emission after EndSession, got %d candidates", len(notifier.candidates))
	}
}

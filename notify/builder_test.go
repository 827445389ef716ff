package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"mounotify/mou"
)

var asOf = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func sampleAgreement() mou.Summary {
	return mou.Summary{
		ID:               "mou-1",
		Title:            "Joint Robotics Lab",
		Organization:     "Acme Industries",
		Status:           "active",
		EndDate:          asOf.AddDate(0, 0, 90),
		CoordinatorName:  "Priya",
		CoordinatorEmail: "priya@example.edu",
		Events: []mou.Event{
			{Title: "Kickoff", Date: asOf.AddDate(0, 0, -30), Completed: true},
			{Title: "Mid Review", Date: asOf.AddDate(0, 0, 15)},
		},
	}
}

func TestBuildDeterministic(t *testing.T) {
	agreement := sampleAgreement()
	first := Build(agreement, asOf)
	second := Build(agreement, asOf)
	if first.Subject != second.Subject || first.Body != second.Body {
		t.Fatalf("expected byte-identical content for identical inputs")
	}
}

func TestBuildSubjectAndGreeting(t *testing.T) {
	content := Build(sampleAgreement(), asOf)
	if content.Subject != "Monthly MOU Update: Joint Robotics Lab" {
		t.Fatalf("unexpected subject %q", content.Subject)
	}
	if !strings.HasPrefix(content.Body, "Dear Priya,") {
		t.Fatalf("expected greeting with coordinator name, got %q", firstLine(content.Body))
	}

	anonymous := sampleAgreement()
	anonymous.CoordinatorName = ""
	content = Build(anonymous, asOf)
	if !strings.HasPrefix(content.Body, "Dear Coordinator,") {
		t.Fatalf("expected fallback greeting, got %q", firstLine(content.Body))
	}
}

func TestBuildExpiryWarningBoundary(t *testing.T) {
	soon := sampleAgreement()
	soon.EndDate = asOf.AddDate(0, 0, 20)
	if !strings.Contains(Build(soon, asOf).Body, "WARNING") {
		t.Errorf("expected warning at 20 days to expiry")
	}

	later := sampleAgreement()
	later.EndDate = asOf.AddDate(0, 0, 40)
	if strings.Contains(Build(later, asOf).Body, "WARNING") {
		t.Errorf("expected no warning at 40 days to expiry")
	}
}

func TestDaysToExpiry(t *testing.T) {
	cases := []struct {
		name string
		end  time.Time
		want int
	}{
		{"same day", asOf, 0},
		{"twenty days", asOf.AddDate(0, 0, 20), 20},
		{"forty days", asOf.AddDate(0, 0, 40), 40},
		{"already past", asOf.AddDate(0, 0, -3), -3},
		{"ignores time of day", time.Date(2025, 6, 2, 23, 59, 0, 0, time.UTC), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DaysToExpiry(tc.end, asOf); got != tc.want {
				t.Fatalf("DaysToExpiry(%s) = %d, want %d", tc.end.Format("2006-01-02"), got, tc.want)
			}
		})
	}

	if !ExpiringSoon(asOf.AddDate(0, 0, 30), asOf) {
		t.Errorf("expected 30 days out to count as expiring soon")
	}
	if ExpiringSoon(asOf.AddDate(0, 0, 31), asOf) {
		t.Errorf("expected 31 days out not to count as expiring soon")
	}
}

func TestBuildPendingEventCap(t *testing.T) {
	agreement := sampleAgreement()
	agreement.Events = nil
	for i := 0; i < 7; i++ {
		agreement.Events = append(agreement.Events, mou.Event{
			Title: fmt.Sprintf("Event %d", i+1),
			Date:  asOf.AddDate(0, 0, i+1),
		})
	}

	body := Build(agreement, asOf).Body
	for i := 0; i < 5; i++ {
		if !strings.Contains(body, fmt.Sprintf("Event %d", i+1)) {
			t.Errorf("expected event %d to be listed", i+1)
		}
	}
	if strings.Contains(body, "Event 6 (") || strings.Contains(body, "Event 7 (") {
		t.Errorf("expected events past the cap to be collapsed")
	}
	if !strings.Contains(body, "... and 2 more") {
		t.Errorf("expected overflow line for 2 extra pending events")
	}
	if !strings.Contains(body, "Pending: 7") {
		t.Errorf("expected pending count to include capped events")
	}
}

func TestBuildEventCounts(t *testing.T) {
	body := Build(sampleAgreement(), asOf).Body
	for _, want := range []string{"Total Events: 2", "Completed: 1", "Pending: 1"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q", want)
		}
	}
	if !strings.Contains(body, "Status: ACTIVE") {
		t.Errorf("expected uppercased status")
	}
}

func TestRecipients(t *testing.T) {
	agreement := sampleAgreement()
	agreement.StaffCoordinatorEmail = "staff@example.edu"
	got := Recipients(agreement)
	if len(got) != 2 || got[0] != "priya@example.edu" || got[1] != "staff@example.edu" {
		t.Fatalf("unexpected recipients %v", got)
	}

	agreement.StaffCoordinatorEmail = agreement.CoordinatorEmail
	if got := Recipients(agreement); len(got) != 1 {
		t.Fatalf("expected duplicate address collapsed, got %v", got)
	}

	agreement.CoordinatorEmail = ""
	agreement.StaffCoordinatorEmail = ""
	if got := Recipients(agreement); len(got) != 0 {
		t.Fatalf("expected no recipients, got %v", got)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

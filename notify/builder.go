// Package notify renders per-recipient notification content from an
// agreement summary. Building is pure: no clock, no store, no transport.
package notify

import (
	"fmt"
	"strings"
	"time"

	"mounotify/mou"
)

// Content is a rendered notification ready for a transport.
type Content struct {
	Subject string
	Body    string
}

// maxPendingListed caps the pending events itemized in the body; the
// remainder collapses into an overflow line.
const maxPendingListed = 5

// expirySoonDays is the warning threshold for agreements nearing their
// end date.
const expirySoonDays = 30

// Build renders the monthly update for one agreement as of the given date.
// Deterministic: identical inputs always produce byte-identical content.
func Build(agreement mou.Summary, asOf time.Time) Content {
	subject := fmt.Sprintf("Monthly MOU Update: %s", agreement.Title)

	daysToExpiry := DaysToExpiry(agreement.EndDate, asOf)

	total := len(agreement.Events)
	completed := 0
	pending := make([]mou.Event, 0, total)
	for _, e := range agreement.Events {
		if e.Completed {
			completed++
		} else {
			pending = append(pending, e)
		}
	}

	coordinator := agreement.CoordinatorName
	if coordinator == "" {
		coordinator = "Coordinator"
	}
	organization := agreement.Organization
	if organization == "" {
		organization = "N/A"
	}

	lines := []string{
		fmt.Sprintf("Dear %s,", coordinator),
		"",
		fmt.Sprintf("This is your monthly update for the MOU: %s", agreement.Title),
		"",
		"MOU Details:",
		fmt.Sprintf("  Organization: %s", organization),
		fmt.Sprintf("  Status: %s", strings.ToUpper(agreement.Status)),
		fmt.Sprintf("  Valid Until: %s", agreement.EndDate.Format("2006-01-02")),
		fmt.Sprintf("  Days Remaining: %d days", daysToExpiry),
		"",
		"Event Summary:",
		fmt.Sprintf("  Total Events: %d", total),
		fmt.Sprintf("  Completed: %d", completed),
		fmt.Sprintf("  Pending: %d", len(pending)),
		"",
	}

	if daysToExpiry <= expirySoonDays {
		lines = append(lines,
			"WARNING: This MOU will expire in less than 30 days!",
			"Please take necessary action to renew if needed.",
			"",
		)
	}

	if len(pending) > 0 {
		lines = append(lines, "Pending Events:")
		listed := pending
		if len(listed) > maxPendingListed {
			listed = listed[:maxPendingListed]
		}
		for _, e := range listed {
			lines = append(lines, fmt.Sprintf("  - %s (Due: %s)", e.Title, e.Date.Format("2006-01-02")))
		}
		if len(pending) > maxPendingListed {
			lines = append(lines, fmt.Sprintf("  ... and %d more", len(pending)-maxPendingListed))
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		"For more details, please log in to the MOU Management System.",
		"",
		"Best regards,",
		"MOU Management System",
	)

	return Content{
		Subject: subject,
		Body:    strings.Join(lines, "\n"),
	}
}

// DaysToExpiry counts whole days between asOf and the end date, floored.
// Both arguments are compared at date granularity; time of day is ignored.
func DaysToExpiry(endDate, asOf time.Time) int {
	end := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC)
	from := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	return int(end.Sub(from) / (24 * time.Hour))
}

// ExpiringSoon reports whether the agreement crosses the warning
// threshold as of the given date.
func ExpiringSoon(endDate, asOf time.Time) bool {
	return DaysToExpiry(endDate, asOf) <= expirySoonDays
}

// Recipients collects the distinct coordinator addresses for an
// agreement: MOU coordinator first, then staff coordinator. Empty
// addresses are dropped.
func Recipients(agreement mou.Summary) []string {
	out := make([]string, 0, 2)
	if agreement.CoordinatorEmail != "" {
		out = append(out, agreement.CoordinatorEmail)
	}
	if agreement.StaffCoordinatorEmail != "" && agreement.StaffCoordinatorEmail != agreement.CoordinatorEmail {
		out = append(out, agreement.StaffCoordinatorEmail)
	}
	return out
}

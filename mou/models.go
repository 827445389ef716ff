package mou

import "time"

// Summary is the read-only view of a memorandum of understanding consumed
// by the notification job. It mirrors the mous table and should not carry
// JSON annotations so it can be reused by different presentation layers.
type Summary struct {
	ID                    string
	Title                 string
	Organization          string
	Status                string
	StartDate             time.Time
	EndDate               time.Time
	CoordinatorName       string
	CoordinatorEmail      string
	StaffCoordinatorName  string
	StaffCoordinatorEmail string
	Events                []Event
}

// Event is a scheduled activity under an agreement.
type Event struct {
	Title     string
	Date      time.Time
	Completed bool
}

package lease

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Lease mirrors a task_locks row: a time-bounded mutual-exclusion record
// keyed by task name. At most one non-expired row exists per task.
type Lease struct {
	TaskName   string
	HolderID   string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Handle proves ownership of an acquired lease. Release checks the holder
// id so a handle superseded by a later reclaim cannot remove the new
// holder's row.
type Handle struct {
	TaskName  string
	HolderID  string
	ExpiresAt time.Time
	// Reclaimed is true when the acquire replaced an expired lease left
	// behind by a crashed holder.
	Reclaimed bool
}

// NewHolderID derives a holder identity from the hostname plus a random
// suffix, so multiple workers on one host stay distinguishable.
func NewHolderID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// Package queue implements the change-driven work queue: idempotent enqueue,
// the pending/processing/complete/error lifecycle, and the batch consumer
// that turns pending items into warm requests.
package queue

import "time"

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Entity types accepted by the queue.
const (
	EntityTypeProduct  = "product"
	EntityTypeCategory = "category"
	EntityTypeCMSPage  = "cms_page"
)

// Item is one row of the work queue. TargetEntityID identifies the changed
// entity; ID is the queue row's own identity.
type Item struct {
	ID             int64
	TargetEntityID int64
	EntityType     string
	StoreID        int
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

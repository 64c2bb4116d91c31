package notify

import (
	"context"

	"taskplanner/internal/model"
)

// PermissionState tracks the host platform's notification permission.
type PermissionState string

const (
	PermissionUnrequested PermissionState = "unrequested"
	PermissionDefault     PermissionState = "default"
	// PermissionGranted is terminal and enables delivery.
	PermissionGranted PermissionState = "granted"
	// PermissionDenied is terminal for the session; no automatic re-prompt.
	PermissionDenied PermissionState = "denied"
)

// Notification is one rendered reminder. Tag identifies it to platforms
// that dedupe by tag; Tasks carries the structured batch for ports that can
// forward more than title/body text.
type Notification struct {
	Title   string
	Body    string
	Tag     string
	Grouped bool
	Tasks   []model.ReminderEvent
}

// Port abstracts the host's notification capability so the permission state
// machine stays testable without ambient global state. A host without the
// capability returns false from Available and the dispatcher no-ops.
type Port interface {
	Available() bool
	RequestPermission(ctx context.Context) (PermissionState, error)
	Show(ctx context.Context, n Notification) error
}

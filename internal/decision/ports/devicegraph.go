package ports

import "context"

// DeviceGraphPort links devices to the users seen on them.
type DeviceGraphPort interface {
	// Link records userID on deviceID and returns how many distinct users the
	// device is now linked to.
	Link(ctx context.Context, deviceID, userID string) (int, error)
}

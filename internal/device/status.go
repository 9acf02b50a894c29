package device

import "github.com/waconsole/waconsole/internal/models"

// CanTransition guards status assignment. The gateway is the source of
// truth, so most moves are legal; the only forbidden move is back into
// connecting from connected, which would clobber a live session with a
// stale QR observation. Same-status writes are idempotent.
func CanTransition(from, to models.DeviceStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from == models.DeviceConnected && to == models.DeviceConnecting {
		return false
	}
	return true
}

// observedStatus resolves a gateway report against the stored status.
// A report the transition guard refuses, such as SCAN_QR_CODE observed
// moments after the session came up, leaves the stored status in place
// instead of failing the poll.
func observedStatus(current, reported models.DeviceStatus) models.DeviceStatus {
	if !CanTransition(current, reported) {
		return current
	}
	return reported
}

// MapGatewayStatus translates WAHA session states into the device
// status enumeration.
func MapGatewayStatus(s string) models.DeviceStatus {
	switch s {
	case "WORKING":
		return models.DeviceConnected
	case "STARTING", "SCAN_QR_CODE":
		return models.DeviceConnecting
	default:
		// STOPPED, FAILED, and anything unknown read as disconnected.
		return models.DeviceDisconnected
	}
}

package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/device"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/queue"
)

const (
	syncPollInterval = 10 * time.Second
	syncMaxAttempts  = 30
)

// DeviceSyncWorker implements the server side of the pairing poll:
// after a QR is issued it keeps asking the gateway whether the session
// connected, re-enqueuing itself at a fixed interval until it either
// observes the connection or gives up and parks the device as
// disconnected.
type DeviceSyncWorker struct {
	devices *device.Service
	jobs    *queue.Client
}

func NewDeviceSyncWorker(devices *device.Service, jobs *queue.Client) *DeviceSyncWorker {
	return &DeviceSyncWorker{devices: devices, jobs: jobs}
}

func (w *DeviceSyncWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DeviceSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	deviceID, err := uuid.Parse(payload.DeviceID)
	if err != nil {
		return fmt.Errorf("invalid device id: %w", err)
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}

	d, err := w.devices.GetByTenant(ctx, tenantID, deviceID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			// Deleted mid-pairing; nothing to sync.
			return nil
		}
		return err
	}
	if d.Status != models.DeviceConnecting {
		// Webhook or a client poll already settled the status.
		return nil
	}

	status, err := w.devices.SessionStatus(ctx, d)
	if err != nil {
		slog.Warn("device sync gateway check failed", "device_id", d.ID, "error", err)
		status = models.DeviceConnecting
	}

	if status == models.DeviceConnected {
		_, err := w.devices.ApplyStatusByID(ctx, tenantID, deviceID, models.DeviceConnected)
		return err
	}

	if payload.Attempt >= syncMaxAttempts {
		slog.Info("device pairing timed out", "device_id", d.ID, "attempts", payload.Attempt)
		_, err := w.devices.ApplyStatusByID(ctx, tenantID, deviceID, models.DeviceDisconnected)
		return err
	}

	payload.Attempt++
	return w.jobs.EnqueueDeviceSync(payload, syncPollInterval)
}

package message

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/waha"
)

type fakeDeviceDirectory struct {
	devices map[uuid.UUID]*models.Device
}

func (f *fakeDeviceDirectory) Get(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	if d, ok := f.devices[id]; ok {
		return d, nil
	}
	return nil, apperr.New(apperr.KindNotFound, "device not found")
}

func (f *fakeDeviceDirectory) IncrementSent(ctx context.Context, id uuid.UUID) error { return nil }

type fakeGateway struct {
	calls int
}

func (f *fakeGateway) SendText(ctx context.Context, session, chatID, text string) (*waha.SendResult, error) {
	f.calls++
	return &waha.SendResult{ID: "ext-1"}, nil
}

func TestSendValidatesBeforeGateway(t *testing.T) {
	deviceID := uuid.New()
	mkDevice := func(status models.DeviceStatus, active bool) *models.Device {
		return &models.Device{
			ID:        deviceID,
			TenantID:  uuid.New(),
			SessionID: "wa_test",
			Status:    status,
			IsActive:  active,
		}
	}
	validReq := SendRequest{DeviceID: deviceID, Recipient: "6281234567890", Content: "hello"}

	cases := []struct {
		name   string
		device *models.Device
		req    SendRequest
		kind   apperr.Kind
	}{
		{"empty content", mkDevice(models.DeviceConnected, true),
			SendRequest{DeviceID: deviceID, Recipient: "6281234567890", Content: "   "}, apperr.KindInvalid},
		{"bad recipient", mkDevice(models.DeviceConnected, true),
			SendRequest{DeviceID: deviceID, Recipient: "not-a-number", Content: "hello"}, apperr.KindInvalid},
		{"unknown device", mkDevice(models.DeviceConnected, true),
			SendRequest{DeviceID: uuid.New(), Recipient: "6281234567890", Content: "hello"}, apperr.KindNotFound},
		{"inactive device", mkDevice(models.DeviceConnected, false), validReq, apperr.KindInvalid},
		{"disconnected device", mkDevice(models.DeviceDisconnected, true), validReq, apperr.KindInvalid},
		{"connecting device", mkDevice(models.DeviceConnecting, true), validReq, apperr.KindInvalid},
		{"no user in context", mkDevice(models.DeviceConnected, true), validReq, apperr.KindUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{}
			dir := &fakeDeviceDirectory{devices: map[uuid.UUID]*models.Device{deviceID: tc.device}}
			svc := NewService(nil, gw, dir, nil)

			_, err := svc.Send(context.Background(), tc.req)
			if err == nil {
				t.Fatal("Send succeeded, want error")
			}
			if got := apperr.KindOf(err); got != tc.kind {
				t.Errorf("error kind = %v, want %v", got, tc.kind)
			}
			if gw.calls != 0 {
				t.Errorf("gateway called %d times during validation failure", gw.calls)
			}
		})
	}
}

func TestChatID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+62 812-3456-7890", "6281234567890@c.us"},
		{"6281234567890", "6281234567890@c.us"},
		{"(628) 1234-5678", "62812345678@c.us"},
		{"12345678", "12345678@c.us"},
		{"123456789012345", "123456789012345@c.us"},
	}
	for _, tc := range cases {
		got, err := ChatID(tc.in)
		if err != nil {
			t.Errorf("ChatID(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ChatID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestChatIDRejectsInvalid(t *testing.T) {
	cases := []string{
		"",
		"1234567",          // too short
		"1234567890123456", // too long
		"62abc1234567",
		"ops@example.com",
		"+62;81234567890",
	}
	for _, in := range cases {
		got, err := ChatID(in)
		if err == nil {
			t.Errorf("ChatID(%q) = %q, want error", in, got)
			continue
		}
		if apperr.KindOf(err) != apperr.KindInvalid {
			t.Errorf("ChatID(%q) kind = %v, want KindInvalid", in, apperr.KindOf(err))
		}
	}
}

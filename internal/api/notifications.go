package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"tourprism/internal/models"
	"tourprism/pkg/errors"
)

func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var raw []byte
	if err := c.getJSON(ctx, "GET /api/notifications", "/api/notifications", nil, &raw); err != nil {
		return nil, err
	}
	list, err := decodeNotifications(raw)
	if err != nil {
		return nil, errors.Wrap(errors.KindRejected, err, "decode notifications").WithMsgID("error.generic")
	}
	return list, nil
}

func decodeNotifications(raw []byte) ([]models.Notification, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var list []models.Notification
	if raw[0] == '[' {
		err := json.Unmarshal(raw, &list)
		return list, err
	}
	var env struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return env.Notifications, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodPatch, "PATCH /api/notifications/:id/read", pathf("/api/notifications/%s/read", id), nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPatch, "PATCH /api/notifications/mark-all-read", "/api/notifications/mark-all-read", nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodDelete, "DELETE /api/notifications/:id", pathf("/api/notifications/%s", id), nil, nil)
}

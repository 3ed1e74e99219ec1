package models

import (
	"encoding/json"

	"github.com/Is0cre/growtent/internal/models"
)

type LoginRequest struct {
	Password string `json:"password"`
}

type CreateProjectRequest struct {
	Name              string `json:"name" binding:"required"`
	Notes             string `json:"notes"`
	TimelapseEnabled  bool   `json:"timelapse_enabled"`
	TimelapseInterval int    `json:"timelapse_interval"`
}

type UpdateProjectRequest struct {
	Name              *string `json:"name"`
	Notes             *string `json:"notes"`
	TimelapseEnabled  *bool   `json:"timelapse_enabled"`
	TimelapseInterval *int    `json:"timelapse_interval"`
}

type DeviceSettingsRequest struct {
	Mode       models.DeviceMode     `json:"mode" binding:"required"`
	Enabled    bool                  `json:"enabled"`
	Schedule   []models.ScheduleRule `json:"schedule"`
	Thresholds models.Thresholds     `json:"thresholds"`
}

type AddDiaryEntryRequest struct {
	Title  string          `json:"title" binding:"required"`
	Text   string          `json:"text"`
	Photos json.RawMessage `json:"photos"`
}

type DeviceStatus struct {
	Name    string            `json:"name"`
	State   bool              `json:"state"`
	Mode    models.DeviceMode `json:"mode"`
	Enabled bool              `json:"enabled"`
}

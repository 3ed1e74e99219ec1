package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Is0cre/growtent/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// --- Projects ---

// CreateProject inserts a new project. A newly created project starts active;
// any previously active project is completed first so at most one stays active.
func (d *DB) CreateProject(ctx context.Context, name, notes string, timelapseEnabled bool, timelapseInterval int) (*models.Project, error) {
	if timelapseInterval < models.MinTimelapseInterval {
		timelapseInterval = models.MinTimelapseInterval
	}
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE projects SET status = $1, end_date = NOW() WHERE status = $2`,
		models.ProjectCompleted, models.ProjectActive); err != nil {
		return nil, err
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO projects (name, notes, status, timelapse_enabled, timelapse_interval)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		name, notes, models.ProjectActive, timelapseEnabled, timelapseInterval).Scan(&id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return d.GetProject(ctx, id)
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.Notes, &p.Status, &p.StartDate, &p.EndDate,
		&p.TimelapseEnabled, &p.TimelapseInterval, &p.TimelapseLastCap, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const projectCols = `id, name, notes, status, start_date, end_date,
	timelapse_enabled, timelapse_interval, timelapse_last_capture, created_at`

// GetProject fetches one project by id
func (d *DB) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	return scanProject(d.pool.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = $1`, id))
}

// GetActiveProject returns the single active project, or ErrNotFound
func (d *DB) GetActiveProject(ctx context.Context) (*models.Project, error) {
	return scanProject(d.pool.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE status = $1 ORDER BY id DESC LIMIT 1`,
		models.ProjectActive))
}

// GetAllProjects fetches all projects, newest first
func (d *DB) GetAllProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+projectCols+` FROM projects ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// GetProjectsNeedingTimelapse returns active projects with timelapse enabled
func (d *DB) GetProjectsNeedingTimelapse(ctx context.Context) ([]models.Project, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT `+projectCols+` FROM projects WHERE status = $1 AND timelapse_enabled`,
		models.ProjectActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateProject updates the editable fields of a project
func (d *DB) UpdateProject(ctx context.Context, p *models.Project) error {
	if p.TimelapseInterval < models.MinTimelapseInterval {
		p.TimelapseInterval = models.MinTimelapseInterval
	}
	_, err := d.pool.Exec(ctx,
		`UPDATE projects SET name = $1, notes = $2, timelapse_enabled = $3, timelapse_interval = $4
		 WHERE id = $5`,
		p.Name, p.Notes, p.TimelapseEnabled, p.TimelapseInterval, p.ID)
	return err
}

// SetProjectStatus moves a project through its lifecycle
func (d *DB) SetProjectStatus(ctx context.Context, id int64, status models.ProjectStatus) error {
	if status == models.ProjectActive {
		tx, err := d.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET status = $1, end_date = NOW() WHERE status = $2 AND id <> $3`,
			models.ProjectCompleted, models.ProjectActive, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET status = $1, end_date = NULL WHERE id = $2`,
			models.ProjectActive, id); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	_, err := d.pool.Exec(ctx,
		`UPDATE projects SET status = $1, end_date = COALESCE(end_date, NOW()) WHERE id = $2`,
		status, id)
	return err
}

// UpdateTimelapseCapture records the instant of the last successful capture
func (d *DB) UpdateTimelapseCapture(ctx context.Context, projectID int64, at time.Time) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE projects SET timelapse_last_capture = $1 WHERE id = $2`, at, projectID)
	return err
}

// --- Sensor logs ---

// LogSensorData persists one reading, optionally attributed to a project
func (d *DB) LogSensorData(ctx context.Context, projectID *int64, r models.SensorReading) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO sensor_logs (project_id, captured_at, temperature, humidity, pressure, gas_resistance)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		projectID, r.CapturedAt, r.Temperature, r.Humidity, r.Pressure, r.GasResistance)
	return err
}

// GetSensorHistory fetches readings in [from, to], newest first, capped at limit
func (d *DB) GetSensorHistory(ctx context.Context, projectID *int64, from, to time.Time, limit int) ([]models.SensorLog, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	rows, err := d.pool.Query(ctx,
		`SELECT id, project_id, captured_at, temperature, humidity, pressure, gas_resistance
		 FROM sensor_logs
		 WHERE captured_at BETWEEN $1 AND $2 AND ($3::bigint IS NULL OR project_id = $3)
		 ORDER BY captured_at DESC LIMIT $4`,
		from, to, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.SensorLog
	for rows.Next() {
		var l models.SensorLog
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.CapturedAt,
			&l.Temperature, &l.Humidity, &l.Pressure, &l.GasResistance); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetSensorStats aggregates readings over [from, to]
func (d *DB) GetSensorStats(ctx context.Context, from, to time.Time) (*models.SensorStats, error) {
	var s models.SensorStats
	err := d.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(MIN(temperature), 0), COALESCE(MAX(temperature), 0), COALESCE(AVG(temperature), 0),
		        COALESCE(MIN(humidity), 0), COALESCE(MAX(humidity), 0), COALESCE(AVG(humidity), 0)
		 FROM sensor_logs WHERE captured_at BETWEEN $1 AND $2`,
		from, to).Scan(&s.Samples, &s.TempMin, &s.TempMax, &s.TempAvg, &s.HumMin, &s.HumMax, &s.HumAvg)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetUnsyncedSensorLogs fetches readings not yet pushed to the external server
func (d *DB) GetUnsyncedSensorLogs(ctx context.Context, limit int) ([]models.SensorLog, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, project_id, captured_at, temperature, humidity, pressure, gas_resistance
		 FROM sensor_logs WHERE NOT synced ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.SensorLog
	for rows.Next() {
		var l models.SensorLog
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.CapturedAt,
			&l.Temperature, &l.Humidity, &l.Pressure, &l.GasResistance); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// MarkSensorLogsSynced flags readings as pushed
func (d *DB) MarkSensorLogsSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := d.pool.Exec(ctx, `UPDATE sensor_logs SET synced = TRUE WHERE id = ANY($1)`, ids)
	return err
}

// --- Device settings and states ---

// GetDeviceSettings fetches one device's configuration
func (d *DB) GetDeviceSettings(ctx context.Context, name string) (*models.DeviceConfig, error) {
	var cfg models.DeviceConfig
	var schedule, thresholds []byte
	err := d.pool.QueryRow(ctx,
		`SELECT device_name, mode, enabled, schedule, thresholds, updated_at
		 FROM device_settings WHERE device_name = $1`, name).
		Scan(&cfg.Name, &cfg.Mode, &cfg.Enabled, &schedule, &thresholds, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schedule, &cfg.Schedule); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(thresholds, &cfg.Thresholds); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetAllDeviceSettings fetches every device's configuration keyed by name
func (d *DB) GetAllDeviceSettings(ctx context.Context) (map[string]models.DeviceConfig, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT device_name, mode, enabled, schedule, thresholds, updated_at FROM device_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]models.DeviceConfig)
	for rows.Next() {
		var cfg models.DeviceConfig
		var schedule, thresholds []byte
		if err := rows.Scan(&cfg.Name, &cfg.Mode, &cfg.Enabled, &schedule, &thresholds, &cfg.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(schedule, &cfg.Schedule); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(thresholds, &cfg.Thresholds); err != nil {
			return nil, err
		}
		settings[cfg.Name] = cfg
	}
	return settings, rows.Err()
}

// SaveDeviceSettings upserts a device configuration
func (d *DB) SaveDeviceSettings(ctx context.Context, cfg models.DeviceConfig) error {
	schedule, err := json.Marshal(cfg.Schedule)
	if err != nil {
		return err
	}
	if cfg.Schedule == nil {
		schedule = []byte("[]")
	}
	thresholds, err := json.Marshal(cfg.Thresholds)
	if err != nil {
		return err
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO device_settings (device_name, mode, enabled, schedule, thresholds, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (device_name) DO UPDATE
		 SET mode = EXCLUDED.mode, enabled = EXCLUDED.enabled, schedule = EXCLUDED.schedule,
		     thresholds = EXCLUDED.thresholds, updated_at = NOW()`,
		cfg.Name, cfg.Mode, cfg.Enabled, schedule, thresholds)
	return err
}

// UpdateDeviceState persists the last commanded relay state (1 on, 0 off)
func (d *DB) UpdateDeviceState(ctx context.Context, name string, state int) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO device_states (device_name, state, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (device_name) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		name, state)
	return err
}

// GetAllDeviceStates returns the persisted relay states keyed by device name
func (d *DB) GetAllDeviceStates(ctx context.Context) (map[string]int, error) {
	rows, err := d.pool.Query(ctx, `SELECT device_name, state FROM device_states`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]int)
	for rows.Next() {
		var name string
		var state int
		if err := rows.Scan(&name, &state); err != nil {
			return nil, err
		}
		states[name] = state
	}
	return states, rows.Err()
}

// --- Alert settings ---

// GetAlertSettings fetches the singleton alert configuration
func (d *DB) GetAlertSettings(ctx context.Context) (*models.AlertSettings, error) {
	var s models.AlertSettings
	err := d.pool.QueryRow(ctx,
		`SELECT enabled, temp_min, temp_max, humidity_min, humidity_max, notification_interval
		 FROM alert_settings WHERE id = 1`).
		Scan(&s.Enabled, &s.TempMin, &s.TempMax, &s.HumidityMin, &s.HumidityMax, &s.NotificationInterval)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveAlertSettings upserts the singleton alert configuration
func (d *DB) SaveAlertSettings(ctx context.Context, s models.AlertSettings) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO alert_settings (id, enabled, temp_min, temp_max, humidity_min, humidity_max, notification_interval, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET enabled = EXCLUDED.enabled, temp_min = EXCLUDED.temp_min, temp_max = EXCLUDED.temp_max,
		     humidity_min = EXCLUDED.humidity_min, humidity_max = EXCLUDED.humidity_max,
		     notification_interval = EXCLUDED.notification_interval, updated_at = NOW()`,
		s.Enabled, s.TempMin, s.TempMax, s.HumidityMin, s.HumidityMax, s.NotificationInterval)
	return err
}

// --- Timelapse images ---

// SaveTimelapseImage appends an image record
func (d *DB) SaveTimelapseImage(ctx context.Context, projectID *int64, at time.Time, filepath string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO timelapse_images (project_id, captured_at, filepath) VALUES ($1, $2, $3)`,
		projectID, at, filepath)
	return err
}

// GetTimelapseImages fetches a project's frames in capture order
func (d *DB) GetTimelapseImages(ctx context.Context, projectID int64) ([]models.TimelapseImage, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, project_id, captured_at, filepath FROM timelapse_images
		 WHERE project_id = $1 ORDER BY captured_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.TimelapseImage
	for rows.Next() {
		var img models.TimelapseImage
		if err := rows.Scan(&img.ID, &img.ProjectID, &img.Timestamp, &img.Filepath); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// GetTimelapseImageCount counts a project's frames
func (d *DB) GetTimelapseImageCount(ctx context.Context, projectID int64) (int, error) {
	var n int
	err := d.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM timelapse_images WHERE project_id = $1`, projectID).Scan(&n)
	return n, err
}

// --- Diary ---

// CreateDiaryEntry appends a note to a project's diary
func (d *DB) CreateDiaryEntry(ctx context.Context, e models.DiaryEntry) (int64, error) {
	photos := e.Photos
	if photos == nil {
		photos = json.RawMessage("[]")
	}
	var id int64
	err := d.pool.QueryRow(ctx,
		`INSERT INTO diary_entries (project_id, title, body, photos) VALUES ($1, $2, $3, $4) RETURNING id`,
		e.ProjectID, e.Title, e.Text, photos).Scan(&id)
	return id, err
}

// GetDiaryEntries fetches a project's diary, newest first
func (d *DB) GetDiaryEntries(ctx context.Context, projectID int64) ([]models.DiaryEntry, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, project_id, created_at, title, body, photos FROM diary_entries
		 WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.DiaryEntry
	for rows.Next() {
		var e models.DiaryEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Timestamp, &e.Title, &e.Text, &e.Photos); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteDiaryEntry removes a diary entry
func (d *DB) DeleteDiaryEntry(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM diary_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- System settings ---

// GetSystemSetting fetches one free-form setting value
func (d *DB) GetSystemSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.pool.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// SetSystemSetting upserts one free-form setting value
func (d *DB) SetSystemSetting(ctx context.Context, key, value string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO system_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	return err
}

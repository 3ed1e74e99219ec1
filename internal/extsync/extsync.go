// Package extsync pushes sensor history to an external aggregation server.
// The sync consumes the core's outputs only; it never influences decisions.
package extsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Is0cre/growtent/internal/db"
)

const batchSize = 500

// Syncer pushes unsynced readings in batches.
type Syncer struct {
	store  *db.DB
	url    string
	apiKey string
	client *http.Client
	log    zerolog.Logger
}

func New(store *db.DB, url, apiKey string, log zerolog.Logger) *Syncer {
	return &Syncer{
		store:  store,
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// Run pushes one batch of unsynced readings and marks them on success.
// Returns the number of readings pushed.
func (s *Syncer) Run(ctx context.Context) (int, error) {
	if s.url == "" {
		return 0, fmt.Errorf("external sync URL not configured")
	}

	logs, err := s.store.GetUnsyncedSensorLogs(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("loading unsynced readings: %w", err)
	}
	if len(logs) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(map[string]any{"readings": logs})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("pushing readings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("pushing readings: status %d: %s", resp.StatusCode, payload)
	}

	ids := make([]int64, len(logs))
	for i, l := range logs {
		ids[i] = l.ID
	}
	if err := s.store.MarkSensorLogsSynced(ctx, ids); err != nil {
		return 0, fmt.Errorf("marking readings synced: %w", err)
	}

	s.log.Info().Int("count", len(ids)).Msg("pushed readings to external server")
	return len(ids), nil
}

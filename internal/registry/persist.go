package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fixitrock/rockdl/internal/engine/types"
)

var errMalformed = errors.New("malformed registry snapshot")

// marshalLocked encodes the registry as [[id, record], ...] in insertion order.
func (r *Registry) marshalLocked() ([]byte, error) {
	pairs := make([][2]any, 0, len(r.order))
	for _, id := range r.order {
		pairs = append(pairs, [2]any{id, r.records[id]})
	}
	return json.Marshal(pairs)
}

// Marshal returns the persisted form of the registry.
func (r *Registry) Marshal() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marshalLocked()
}

// decodeSnapshot parses the persisted form. Any deviation from the expected
// shape is reported as errMalformed so the caller can start empty.
func decodeSnapshot(data []byte) (map[string]*types.DownloadRecord, []string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	records := make(map[string]*types.DownloadRecord, len(raw))
	order := make([]string, 0, len(raw))

	for i, entry := range raw {
		var pair []json.RawMessage
		if err := json.Unmarshal(entry, &pair); err != nil || len(pair) != 2 {
			return nil, nil, fmt.Errorf("%w: entry %d is not a pair", errMalformed, i)
		}

		var id string
		if err := json.Unmarshal(pair[0], &id); err != nil || id == "" {
			return nil, nil, fmt.Errorf("%w: entry %d has no id", errMalformed, i)
		}

		var rec types.DownloadRecord
		if err := json.Unmarshal(pair[1], &rec); err != nil {
			return nil, nil, fmt.Errorf("%w: entry %d: %v", errMalformed, i, err)
		}
		if !validStatus(rec.Status) {
			return nil, nil, fmt.Errorf("%w: entry %d has status %q", errMalformed, i, rec.Status)
		}

		if _, dup := records[id]; dup {
			continue
		}
		rec.ID = id
		records[id] = &rec
		order = append(order, id)
	}

	return records, order, nil
}

func validStatus(s types.Status) bool {
	switch s {
	case types.StatusQueued, types.StatusDownloading, types.StatusPaused,
		types.StatusCompleted, types.StatusError:
		return true
	}
	return false
}

// load rehydrates from storage. Errors leave the registry empty.
func (r *Registry) load() {
	if r.storage == nil {
		return
	}

	payload, ok, err := r.storage.Get(StorageKey)
	if err != nil {
		r.log.Warn("registry: load failed", zap.Error(err))
		return
	}
	if !ok || payload == "" {
		return
	}

	records, order, err := decodeSnapshot([]byte(payload))
	if err != nil {
		r.log.Warn("registry: resetting to empty", zap.Error(err))
		return
	}

	if r.interruptedAsPaused {
		for _, rec := range records {
			if rec.Status == types.StatusDownloading {
				rec.Status = types.StatusPaused
				rec.Speed = 0
			}
		}
	}

	r.mu.Lock()
	r.records = records
	r.order = order
	r.mu.Unlock()
}

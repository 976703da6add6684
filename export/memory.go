package export

import (
	"context"
	"sort"
	"sync"
)

// MemoryHistory stores render records in memory.
type MemoryHistory struct {
	mu      sync.RWMutex
	records []RenderRecord
	max     int
}

// NewMemoryHistory keeps at most max records (0 keeps everything).
func NewMemoryHistory(max int) *MemoryHistory {
	return &MemoryHistory{max: max}
}

// Record implements HistoryStore.
func (h *MemoryHistory) Record(ctx context.Context, record RenderRecord) error {
	_ = ctx
	if record.ID == "" {
		return NewError(KindValidation, "record ID is required", nil)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	if h.max > 0 && len(h.records) > h.max {
		h.records = append([]RenderRecord(nil), h.records[len(h.records)-h.max:]...)
	}
	return nil
}

// List implements HistoryStore. Records are returned newest first.
func (h *MemoryHistory) List(ctx context.Context, filter HistoryFilter) ([]RenderRecord, error) {
	_ = ctx
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]RenderRecord, 0, len(h.records))
	for _, record := range h.records {
		if filter.Mode != "" && record.Mode != filter.Mode {
			continue
		}
		if filter.State != "" && record.State != filter.State {
			continue
		}
		if !filter.Since.IsZero() && record.StartedAt.Before(filter.Since) {
			continue
		}
		out = append(out, record)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

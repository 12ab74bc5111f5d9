package analytics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/models"
	"go.uber.org/zap"
)

// Tracker records per-day, per-model usage as JSON files and evaluates the
// configured alert thresholds. All writes are best-effort: a tracker failure
// must never fail the request that triggered it.
type Tracker struct {
	mu             sync.Mutex
	dir            string
	enabled        bool
	errorRateAlert float64
	dailyCostAlert float64
	logger         *zap.Logger
}

// UsageRecord is one day of usage for one model.
type UsageRecord struct {
	Date         string  `json:"date"` // YYYY-MM-DD
	Model        string  `json:"model"`
	RequestCount int64   `json:"request_count"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CacheHits    int64   `json:"cache_hits"`
	Failures     int64   `json:"failures"`
	Cost         float64 `json:"cost"`
}

// Summary aggregates usage over a window of days.
type Summary struct {
	Days         int                     `json:"days"`
	Requests     int64                   `json:"requests"`
	InputTokens  int64                   `json:"input_tokens"`
	OutputTokens int64                   `json:"output_tokens"`
	CacheHits    int64                   `json:"cache_hits"`
	Failures     int64                   `json:"failures"`
	Cost         float64                 `json:"cost"`
	PerModel     map[string]*UsageRecord `json:"per_model"`
}

// NewTracker creates a usage tracker rooted at cfg.Dir.
func NewTracker(cfg config.AnalyticsConfig, logger *zap.Logger) *Tracker {
	return &Tracker{
		dir:            cfg.Dir,
		enabled:        cfg.Enabled,
		errorRateAlert: cfg.ErrorRateAlert,
		dailyCostAlert: cfg.DailyCostAlert,
		logger:         logger,
	}
}

// Record books one request outcome against today's record for the model.
func (t *Tracker) Record(model string, usage models.Usage, cached, failed bool) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.dir, 0755); err != nil {
		t.logger.Warn("failed to create analytics directory", zap.Error(err))
		return
	}

	today := time.Now().Format("2006-01-02")
	path := filepath.Join(t.dir, fmt.Sprintf("%s_%s.json", today, model))

	record := UsageRecord{Date: today, Model: model}
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, &record)
	}

	record.RequestCount++
	if cached {
		record.CacheHits++
	} else {
		record.InputTokens += int64(usage.PromptTokens)
		record.OutputTokens += int64(usage.CompletionTokens)
		record.Cost += models.EstimateCost(model, usage)
	}
	if failed {
		record.Failures++
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err == nil {
		err = os.WriteFile(path, data, 0644)
	}
	if err != nil {
		t.logger.Warn("failed to write usage record", zap.Error(err))
	}
}

// Summary aggregates usage records from the last `days` days.
func (t *Tracker) Summary(days int) (*Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := &Summary{Days: days, PerModel: make(map[string]*UsageRecord)}

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return summary, nil
		}
		return nil, fmt.Errorf("failed to read analytics directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -days)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		dateStr, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		recordDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil || recordDate.Before(cutoff) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(t.dir, entry.Name()))
		if err != nil {
			continue
		}
		var record UsageRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}

		summary.Requests += record.RequestCount
		summary.InputTokens += record.InputTokens
		summary.OutputTokens += record.OutputTokens
		summary.CacheHits += record.CacheHits
		summary.Failures += record.Failures
		summary.Cost += record.Cost

		agg, ok := summary.PerModel[record.Model]
		if !ok {
			agg = &UsageRecord{Model: record.Model}
			summary.PerModel[record.Model] = agg
		}
		agg.RequestCount += record.RequestCount
		agg.InputTokens += record.InputTokens
		agg.OutputTokens += record.OutputTokens
		agg.CacheHits += record.CacheHits
		agg.Failures += record.Failures
		agg.Cost += record.Cost
	}

	return summary, nil
}

// Alerts evaluates threshold breaches on a summary. Empty means healthy.
func (t *Tracker) Alerts(s *Summary) []string {
	var alerts []string

	if t.errorRateAlert > 0 && s.Requests > 0 {
		rate := float64(s.Failures) / float64(s.Requests)
		if rate >= t.errorRateAlert {
			alerts = append(alerts, fmt.Sprintf(
				"error rate %.1f%% exceeds %.1f%% threshold",
				rate*100, t.errorRateAlert*100))
		}
	}

	if t.dailyCostAlert > 0 && s.Days == 1 && s.Cost >= t.dailyCostAlert {
		alerts = append(alerts, fmt.Sprintf(
			"daily cost $%.2f exceeds $%.2f threshold",
			s.Cost, t.dailyCostAlert))
	}

	return alerts
}

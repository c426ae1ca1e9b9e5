// Package analytics derives alarm response metrics from recorded alarms.
package analytics

import (
	"context"
	"errors"
	"sort"
	"time"

	alarms "gse-control/internal/alarms/domain"
)

// Summary is the fleet-wide alarm response picture for a time range.
type Summary struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	TotalAlarms   int             `json:"total_alarms"`
	Acknowledged  int             `json:"acknowledged"`
	Cleared       int             `json:"cleared"`
	MTTA          time.Duration   `json:"mtta_ns"`
	MTTR          time.Duration   `json:"mttr_ns"`
	DeviceMetrics []DeviceMetrics `json:"device_metrics"`
}

// DeviceMetrics is per-device alarm frequency by severity.
type DeviceMetrics struct {
	DeviceID   string         `json:"device_id"`
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByType     map[string]int `json:"by_type"`
}

// Service computes alarm analytics over the alarm store.
type Service struct {
	repo alarms.Repository
}

// NewService constructs the analytics service.
func NewService(repo alarms.Repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("analytics: nil repository")
	}
	return &Service{repo: repo}, nil
}

// Summarize computes MTTA, MTTR, and per-device frequency for alarms
// triggered inside [from, to]. Zero bounds select everything.
func (s *Service) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{From: from, To: to}
	var ackTotal, clearTotal time.Duration
	perDevice := make(map[string]*DeviceMetrics)

	for _, alarm := range all {
		if !from.IsZero() && alarm.TriggeredAt.Before(from) {
			continue
		}
		if !to.IsZero() && alarm.TriggeredAt.After(to) {
			continue
		}
		summary.TotalAlarms++

		if alarm.Acknowledged() {
			summary.Acknowledged++
			ackTotal += alarm.AckedAt.Sub(alarm.TriggeredAt)
		}
		if alarm.Status == alarms.StatusCleared {
			summary.Cleared++
			clearTotal += alarm.Duration
		}

		device, ok := perDevice[alarm.DeviceID]
		if !ok {
			device = &DeviceMetrics{
				DeviceID:   alarm.DeviceID,
				BySeverity: make(map[string]int),
				ByType:     make(map[string]int),
			}
			perDevice[alarm.DeviceID] = device
		}
		device.Total++
		device.BySeverity[alarm.Severity.String()]++
		device.ByType[string(alarm.Type)]++
	}

	if summary.Acknowledged > 0 {
		summary.MTTA = ackTotal / time.Duration(summary.Acknowledged)
	}
	if summary.Cleared > 0 {
		summary.MTTR = clearTotal / time.Duration(summary.Cleared)
	}

	summary.DeviceMetrics = make([]DeviceMetrics, 0, len(perDevice))
	for _, device := range perDevice {
		summary.DeviceMetrics = append(summary.DeviceMetrics, *device)
	}
	sort.Slice(summary.DeviceMetrics, func(i, j int) bool {
		return summary.DeviceMetrics[i].DeviceID < summary.DeviceMetrics[j].DeviceID
	})
	return summary, nil
}

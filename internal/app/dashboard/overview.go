package dashboard

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kaliumosint/api/pkg/domain/intel"
)

const (
	overviewPoints  = 12
	clockLayout     = "15:04"
	overviewTimeout = 20 * time.Second
)

// shodanTimeLayouts are the timestamp forms seen in host search matches.
var shodanTimeLayouts = []string{
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// ActivityPoint is one bar of the activity chart.
type ActivityPoint struct {
	Timestamp string `json:"timestamp"`
	Value     int    `json:"value"`
}

// ThreatPoint is one bar of the threat chart.
type ThreatPoint struct {
	Timestamp string `json:"timestamp"`
	Count     int    `json:"count"`
	Type      string `json:"type"`
}

// Overview is the aggregated dashboard payload.
type Overview struct {
	RecentScans int               `json:"recent_scans"`
	DataSources int               `json:"data_sources"`
	Activity    []ActivityPoint   `json:"activity"`
	Threats     []ThreatPoint     `json:"threats"`
	Sources     map[string]Source `json:"sources"`
}

// Overview fetches the four endpoints concurrently. Without a target the
// charts are empty. Decoding problems zero the affected figure.
func (s *Service) Overview(ctx context.Context, target string, timeout time.Duration) (Overview, error) {
	if timeout <= 0 {
		timeout = overviewTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoints := []Endpoint{EndpointScans, EndpointSources}
	if strings.TrimSpace(target) != "" {
		endpoints = append(endpoints, EndpointActivity, EndpointThreats)
	}

	responses := make([]Response, len(endpoints))
	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range endpoints {
		g.Go(func() error {
			resp, err := s.Fetch(gctx, ep, target)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	now := time.Now()
	out := Overview{
		Activity: []ActivityPoint{},
		Threats:  []ThreatPoint{},
		Sources:  make(map[string]Source, len(responses)),
	}
	for _, resp := range responses {
		out.Sources[string(resp.Endpoint)] = resp.Source
		switch resp.Endpoint {
		case EndpointScans:
			out.RecentScans = recentScans(resp.Body)
		case EndpointSources:
			out.DataSources = dataSources(resp.Body)
		case EndpointActivity:
			out.Activity = activity(resp.Body, now)
		case EndpointThreats:
			out.Threats = threats(resp.Body, now)
		}
	}
	return out, nil
}

func recentScans(body json.RawMessage) int {
	var doc intel.HostCountResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0
	}
	return doc.Total
}

func dataSources(body json.RawMessage) int {
	var ports []int
	if err := json.Unmarshal(body, &ports); err != nil {
		return 0
	}
	return len(ports)
}

func activity(body json.RawMessage, now time.Time) []ActivityPoint {
	var doc intel.HostSearchResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return []ActivityPoint{}
	}

	matches := doc.Matches[:min(overviewPoints, len(doc.Matches))]
	out := make([]ActivityPoint, 0, len(matches))
	for i, m := range matches {
		value := len(m.Ports)
		if value == 0 {
			value = i + 1
		}
		out = append(out, ActivityPoint{
			Timestamp: clock(m.Timestamp, shodanTimeLayouts, now),
			Value:     value,
		})
	}
	return out
}

func threats(body json.RawMessage, now time.Time) []ThreatPoint {
	var doc intel.URLSearchResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return []ThreatPoint{}
	}

	results := doc.Results[:min(overviewPoints, len(doc.Results))]
	out := make([]ThreatPoint, 0, len(results))
	for _, r := range results {
		out = append(out, ThreatPoint{
			Timestamp: clock(r.Task.Time, []string{time.RFC3339Nano}, now),
			Count:     r.Stats.Malicious,
			Type:      "malicious",
		})
	}
	return out
}

// clock formats raw as HH:MM, falling back to now when it does not parse.
func clock(raw string, layouts []string, now time.Time) string {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(clockLayout)
		}
	}
	return now.Format(clockLayout)
}

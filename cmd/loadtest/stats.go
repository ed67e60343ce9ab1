package main

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Stats accumulates request outcomes per retrieval model.
type Stats struct {
	mu     sync.Mutex
	models map[string]*modelStats
}

type modelStats struct {
	requests    int64
	errors      int64
	zeroResults int64
	latencies   []time.Duration
	statusCodes map[int]int64
}

// Summary is the report for one model.
type Summary struct {
	Model       string
	Requests    int64
	Errors      int64
	ZeroResults int64
	Min, Avg    time.Duration
	P50, P90    time.Duration
	P99, Max    time.Duration
	StdDev      time.Duration
	StatusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{models: make(map[string]*modelStats)}
}

// Record adds one request. statusCode is 0 when the request never got a
// response; totalHits is ignored unless the request succeeded.
func (s *Stats) Record(model string, duration time.Duration, statusCode, totalHits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.models[model]
	if !ok {
		ms = &modelStats{statusCodes: make(map[int]int64)}
		s.models[model] = ms
	}
	ms.requests++
	if statusCode == 0 {
		ms.errors++
		return
	}
	ms.statusCodes[statusCode]++
	ms.latencies = append(ms.latencies, duration)
	if statusCode < 200 || statusCode >= 300 {
		ms.errors++
		return
	}
	if totalHits == 0 {
		ms.zeroResults++
	}
}

// Summaries returns one Summary per model, sorted by model name.
func (s *Stats) Summaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Summary, 0, len(s.models))
	for name, ms := range s.models {
		sum := Summary{
			Model:       name,
			Requests:    ms.requests,
			Errors:      ms.errors,
			ZeroResults: ms.zeroResults,
			StatusCodes: make(map[int]int64, len(ms.statusCodes)),
		}
		for code, n := range ms.statusCodes {
			sum.StatusCodes[code] = n
		}
		if len(ms.latencies) > 0 {
			lat := make([]time.Duration, len(ms.latencies))
			copy(lat, ms.latencies)
			sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
			var total time.Duration
			for _, l := range lat {
				total += l
			}
			sum.Avg = total / time.Duration(len(lat))
			var sq float64
			for _, l := range lat {
				d := float64(l - sum.Avg)
				sq += d * d
			}
			sum.Min, sum.Max = lat[0], lat[len(lat)-1]
			sum.P50 = percentile(lat, 50)
			sum.P90 = percentile(lat, 90)
			sum.P99 = percentile(lat, 99)
			sum.StdDev = time.Duration(math.Sqrt(sq / float64(len(lat))))
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

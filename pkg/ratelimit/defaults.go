package ratelimit

import "time"

// DefaultQuota applies to any pair without an explicit quota
var DefaultQuota = Quota{Limit: 60, Interval: time.Minute}

// DefaultQuotas are the documented per-platform budgets. Config may override any of them.
func DefaultQuotas() map[string]map[OpClass]Quota {
	day := 24 * time.Hour
	return map[string]map[OpClass]Quota{
		// Twitter: 50 posts per day, 300 reads per 15 min
		"twitter": {
			OpPost: {Limit: 50, Interval: day},
			OpRead: {Limit: 300, Interval: 15 * time.Minute},
		},
		// LinkedIn: 100 requests per day
		"linkedin": {
			OpPost: {Limit: 100, Interval: day},
			OpRead: {Limit: 100, Interval: day},
		},
		"facebook": {
			OpPost: {Limit: 25, Interval: time.Hour},
			OpRead: {Limit: 200, Interval: time.Hour},
		},
		"instagram": {
			OpPost: {Limit: 25, Interval: day},
			OpRead: {Limit: 200, Interval: time.Hour},
		},
		"youtube": {
			OpPost: {Limit: 6, Interval: day},
			OpRead: {Limit: 100, Interval: time.Minute},
		},
		"tiktok": {
			OpPost: {Limit: 6, Interval: time.Minute},
			OpRead: {Limit: 600, Interval: time.Minute},
		},
		// Reddit: 60 requests per minute
		"reddit": {
			OpPost: {Limit: 10, Interval: time.Minute},
			OpRead: {Limit: 60, Interval: time.Minute},
		},
		"pinterest": {
			OpPost: {Limit: 100, Interval: time.Minute},
			OpRead: {Limit: 1000, Interval: time.Hour},
		},
		"snapchat": {
			OpPost: {Limit: 10, Interval: time.Minute},
			OpRead: {Limit: 100, Interval: time.Minute},
		},
		"discord": {
			OpPost: {Limit: 5, Interval: 5 * time.Second},
			OpRead: {Limit: 50, Interval: time.Second},
		},
	}
}

// ApplyDefaults loads DefaultQuotas into g
func ApplyDefaults(g *Governor) {
	for platform, ops := range DefaultQuotas() {
		for op, q := range ops {
			g.SetQuota(platform, op, q)
		}
	}
}

package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/social-agent/internal/config"
	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/logger"
	"github.com/social-agent/pkg/ratelimit"
)

// Set is the platform registry the job executor resolves adapters from
type Set struct {
	clients map[models.Platform]Client
}

// NewSet registers the given adapters; a later adapter for the same platform wins
func NewSet(clients ...Client) *Set {
	s := &Set{clients: make(map[models.Platform]Client, len(clients))}
	for _, c := range clients {
		s.clients[c.Platform()] = c
	}
	return s
}

// NewDefaultSet wires all ten adapters from configuration.
// Configured quotas override the governor's built-in defaults.
func NewDefaultSet(cfg *config.Config, gov *ratelimit.Governor, log *logger.Logger) *Set {
	deps := Deps{Governor: gov, Log: log}

	if gov != nil {
		for _, p := range models.AllPlatforms {
			applyQuotas(gov, p, cfg.Platform(string(p)))
		}
	}

	url := func(p models.Platform) string { return cfg.Platform(string(p)).BaseURL }
	return NewSet(
		NewTwitter(url(models.PlatformTwitter), deps),
		NewLinkedIn(url(models.PlatformLinkedIn), deps),
		NewFacebook(url(models.PlatformFacebook), deps),
		NewInstagram(url(models.PlatformInstagram), deps),
		NewYouTube(url(models.PlatformYouTube), deps),
		NewTikTok(url(models.PlatformTikTok), deps),
		NewReddit(url(models.PlatformReddit), deps),
		NewPinterest(url(models.PlatformPinterest), deps),
		NewSnapchat(url(models.PlatformSnapchat), deps),
		NewDiscord(url(models.PlatformDiscord), deps),
	)
}

func applyQuotas(gov *ratelimit.Governor, p models.Platform, pc config.PlatformConfig) {
	if pc.PostLimit > 0 {
		gov.SetQuota(string(p), ratelimit.OpPost, ratelimit.Quota{
			Limit:    pc.PostLimit,
			Interval: config.MustDuration(pc.PostInterval, time.Hour),
		})
	}
	if pc.ReadLimit > 0 {
		gov.SetQuota(string(p), ratelimit.OpRead, ratelimit.Quota{
			Limit:    pc.ReadLimit,
			Interval: config.MustDuration(pc.ReadInterval, time.Minute),
		})
	}
}

// Get returns the adapter for p
func (s *Set) Get(p models.Platform) (Client, error) {
	c, ok := s.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, p)
	}
	return c, nil
}

// Platforms lists registered platforms in a stable order
func (s *Set) Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(s.clients))
	for p := range s.clients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CheckAll probes the requested platforms concurrently, returning results in input order.
// Unknown platforms come back unhealthy rather than failing the sweep.
func (s *Set) CheckAll(ctx context.Context, platforms []models.Platform) []Health {
	results := make([]Health, len(platforms))

	var wg sync.WaitGroup
	for i, p := range platforms {
		c, err := s.Get(p)
		if err != nil {
			results[i] = Health{Platform: p, Error: err.Error()}
			continue
		}
		wg.Add(1)
		go func(i int, c Client) {
			defer wg.Done()
			results[i] = c.CheckHealth(ctx)
		}(i, c)
	}
	wg.Wait()

	return results
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/metrics"
)

const jobFeedCacheKey = "jobfeed:listing"

// Job is one listing from a RemoteOK-compatible feed.
type Job struct {
	Slug        string      `json:"slug"`
	ID          string      `json:"id"`
	Epoch       json.Number `json:"epoch"`
	Date        string      `json:"date"`
	Company     string      `json:"company"`
	CompanyLogo string      `json:"company_logo"`
	Position    string      `json:"position"`
	Tags        []string    `json:"tags"`
	Logo        string      `json:"logo"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	URL         string      `json:"url"`
	ApplyURL    string      `json:"apply_url"`
	MatchScore  int         `json:"match_score"`
}

type JobFeedService interface {
	// FetchJobs returns current listings. When skills are given every job is
	// scored against them and the result is sorted best match first.
	FetchJobs(ctx context.Context, skills []string) ([]Job, error)
}

type JobFeedConfig struct {
	URL        string
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

type jobFeedService struct {
	url        string
	cacheTTL   time.Duration
	httpClient *http.Client
	cache      redis.Cmdable
	log        *zap.Logger
}

// NewJobFeedService builds the feed client. cache may be nil, in which case
// every call goes to the feed.
func NewJobFeedService(cfg JobFeedConfig, cache redis.Cmdable, log *zap.Logger) JobFeedService {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &jobFeedService{
		url:        cfg.URL,
		cacheTTL:   cfg.CacheTTL,
		httpClient: httpClient,
		cache:      cache,
		log:        logger.OrNop(log),
	}
}

func (s *jobFeedService) FetchJobs(ctx context.Context, skills []string) ([]Job, error) {
	raw, err := s.listing(ctx)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode job feed: %w", err)
	}

	// the feed starts with a legal notice that is not a job
	if len(jobs) > 0 && jobs[0].Slug == "" {
		jobs = jobs[1:]
	}

	if len(skills) > 0 {
		for i := range jobs {
			jobs[i].MatchScore = MatchScore(jobs[i].Tags, skills)
		}
		sort.SliceStable(jobs, func(i, j int) bool {
			return jobs[i].MatchScore > jobs[j].MatchScore
		})
	}

	return jobs, nil
}

// listing returns the raw feed body, from the cache when possible.
func (s *jobFeedService) listing(ctx context.Context) ([]byte, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, jobFeedCacheKey).Bytes()
		switch {
		case err == nil:
			metrics.CaptureCache("hit")
			return cached, nil
		case errors.Is(err, redis.Nil):
			metrics.CaptureCache("miss")
		default:
			metrics.CaptureCache("error")
			s.log.Warn("job feed cache unavailable", zap.Error(err))
		}
	}

	raw, err := s.download(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, jobFeedCacheKey, raw, s.cacheTTL).Err(); err != nil {
			s.log.Warn("failed to cache job feed", zap.Error(err))
		}
	}

	return raw, nil
}

func (s *jobFeedService) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build job feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// RemoteOK rejects requests without a user agent
	req.Header.Set("User-Agent", "resume-analyzer/1.0")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.CaptureDependency("job_feed", 0, time.Since(start))
		return nil, fmt.Errorf("failed to fetch job feed: %w", err)
	}
	defer resp.Body.Close()
	metrics.CaptureDependency("job_feed", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("job feed returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read job feed: %w", err)
	}

	s.log.Debug("job feed downloaded", zap.Int("bytes", len(raw)), zap.Duration("latency", time.Since(start)))

	return raw, nil
}

// MatchScore is the share of skills (0-100) that overlap a job tag. A skill
// matches when either string contains the other, ignoring case.
func MatchScore(tags, skills []string) int {
	if len(tags) == 0 || len(skills) == 0 {
		return 0
	}

	lowerTags := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			lowerTags = append(lowerTags, tag)
		}
	}

	matches := 0
	for _, skill := range skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill == "" {
			continue
		}
		for _, tag := range lowerTags {
			if strings.Contains(tag, skill) || strings.Contains(skill, tag) {
				matches++
				break
			}
		}
	}

	return min(matches*100/len(skills), 100)
}

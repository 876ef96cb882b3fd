package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

// IProfileService resolves learner profiles. Failures never surface: the
// caller gets an empty profile instead.
type IProfileService interface {
	GetProfile(ctx context.Context, userId string) entity.Profile
}

type profileService struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
	cache   *gocache.Cache
	logger  logger.ILogger
}

// NewProfileService talks to {baseURL}/users/{id}/profile. An empty baseURL
// disables lookups.
func NewProfileService(baseURL, apiKey string, timeout, cacheTTL time.Duration, log logger.ILogger) IProfileService {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &profileService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
		timeout: timeout,
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
		logger:  log,
	}
}

func (ps *profileService) GetProfile(ctx context.Context, userId string) entity.Profile {
	if ps.baseURL == "" || userId == "" {
		return entity.Profile{}
	}
	if cached, ok := ps.cache.Get(userId); ok {
		return cached.(entity.Profile)
	}

	profile, err := ps.fetch(ctx, userId)
	if err != nil {
		ps.logger.Warn("PROFILE", "Profile lookup failed, continuing without profile", map[string]interface{}{
			"user_id": userId,
			"error":   err,
		})
		return entity.Profile{}
	}
	ps.cache.SetDefault(userId, profile)
	return profile
}

func (ps *profileService) fetch(ctx context.Context, userId string) (entity.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, ps.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/users/%s/profile", ps.baseURL, url.PathEscape(userId))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return entity.Profile{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ps.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+ps.apiKey)
	}

	resp, err := ps.client.Do(req)
	if err != nil {
		return entity.Profile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return entity.Profile{}, fmt.Errorf("profile service status %d: %s", resp.StatusCode, string(body))
	}

	var profile entity.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return entity.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if profile.UserId == "" {
		profile.UserId = userId
	}
	return profile, nil
}

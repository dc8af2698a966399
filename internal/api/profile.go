package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Profile is the authenticated user's profile as reported by the server
type Profile struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	OnboardingComplete bool      `json:"onboardingComplete"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Ready reports whether the account can open chat turns
func (p *Profile) Ready() bool {
	return p != nil && p.OnboardingComplete
}

// GetProfile fetches the authenticated user's profile
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.doJSON(ctx, http.MethodGet, "/v1/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// WaitForProfile polls the profile endpoint until onboarding completes.
//
// Polling is bounded: a fixed interval between attempts and a terminal
// failure once the attempt budget is spent, never an unbounded loop. A
// profile that exists but is not ready keeps polling; a transport error
// other than USER_NOT_READY fails immediately.
func (c *Client) WaitForProfile(ctx context.Context, attempts int, interval time.Duration) (*Profile, error) {
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}

		profile, err := c.GetProfile(ctx)
		if err != nil {
			if !IsCode(err, ErrCodeUserNotReady) {
				return nil, err
			}
			lastErr = err
			continue
		}
		if profile.Ready() {
			return profile, nil
		}
		lastErr = &Error{Code: ErrCodeUserNotReady, Message: "your onboarding is not complete yet", StatusCode: http.StatusConflict}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("profile never became ready")
	}
	return nil, fmt.Errorf("profile not ready after %d attempts: %w", attempts, lastErr)
}

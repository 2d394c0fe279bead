/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package lightning

import "time"

// fastTask is the duration under which a task earns the time bonus.
const fastTask = 30 * time.Second

// Reward is the outcome signal for one session. Unset optional fields are nil.
type Reward struct {
	Success        bool
	TokensUsed     *int64
	ExpectedTokens *int64
	Duration       *time.Duration
	UserRating     *int
}

// RewardOption sets an optional Reward field.
type RewardOption func(*Reward)

// WithTokensUsed records the tokens the task consumed. Negative values are ignored.
func WithTokensUsed(n int64) RewardOption {
	return func(r *Reward) {
		if n >= 0 {
			r.TokensUsed = &n
		}
	}
}

// WithExpectedTokens records the token budget the task was expected to need.
// Negative values are ignored.
func WithExpectedTokens(n int64) RewardOption {
	return func(r *Reward) {
		if n >= 0 {
			r.ExpectedTokens = &n
		}
	}
}

// WithDuration overrides the duration otherwise derived from the session start.
// Negative values are ignored.
func WithDuration(d time.Duration) RewardOption {
	return func(r *Reward) {
		if d >= 0 {
			r.Duration = &d
		}
	}
}

// WithUserRating records user feedback on a 1-5 scale. Other values are ignored.
func WithUserRating(rating int) RewardOption {
	return func(r *Reward) {
		if rating >= 1 && rating <= 5 {
			r.UserRating = &rating
		}
	}
}

// NewReward builds a Reward from the task outcome and options.
func NewReward(success bool, opts ...RewardOption) Reward {
	r := Reward{Success: success}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Score computes the shaped scalar reward for the outcome:
// +1.0 on success or -0.5 on failure, +0.1 when fewer tokens than expected
// were used, +0.1 when the task took under 30 seconds, and (rating-3)*0.2
// for user feedback.
func (r Reward) Score() float64 {
	score := -0.5
	if r.Success {
		score = 1.0
	}
	if r.TokensUsed != nil && r.ExpectedTokens != nil &&
		*r.TokensUsed > 0 && *r.ExpectedTokens > 0 && *r.TokensUsed < *r.ExpectedTokens {
		score += 0.1
	}
	if r.Duration != nil && *r.Duration > 0 && *r.Duration < fastTask {
		score += 0.1
	}
	if r.UserRating != nil {
		score += float64(*r.UserRating-3) * 0.2
	}
	return score
}

// rewardRequest is the body of POST /session/reward.
type rewardRequest struct {
	SessionID      string   `json:"session_id"`
	Success        bool     `json:"success"`
	TokensUsed     *int64   `json:"tokens_used,omitempty"`
	ExpectedTokens *int64   `json:"expected_tokens,omitempty"`
	Duration       *float64 `json:"duration,omitempty"`
	UserRating     *int     `json:"user_rating,omitempty"`
}

func (r Reward) request(sessionID string) rewardRequest {
	req := rewardRequest{
		SessionID:      sessionID,
		Success:        r.Success,
		TokensUsed:     r.TokensUsed,
		ExpectedTokens: r.ExpectedTokens,
		UserRating:     r.UserRating,
	}
	if r.Duration != nil {
		seconds := r.Duration.Seconds()
		req.Duration = &seconds
	}
	return req
}

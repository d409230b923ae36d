package settings

import "context"

// DefaultSubscriptionURL is offered when no settings row exists.
const DefaultSubscriptionURL = "https://instagram.com/"

// Settings is the single global bot configuration record.
type Settings struct {
	SubscriptionURL string `json:"subscription_url"`
}

// SubscriptionURLOrDefault is nil-safe.
func (s *Settings) SubscriptionURLOrDefault() string {
	if s == nil || s.SubscriptionURL == "" {
		return DefaultSubscriptionURL
	}
	return s.SubscriptionURL
}

// Repository reads the settings record. Get returns nil when none is stored.
type Repository interface {
	Get(ctx context.Context) (*Settings, error)
}

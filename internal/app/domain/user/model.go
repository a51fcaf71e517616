package user

import "time"

// Tier is a subscription tier, mutated only by the subscription engine.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// User is created on first external sign-in and identified by the upstream
// identity provider's subject id.
type User struct {
	ID              string    `json:"id"`
	ExternalSubject string    `json:"-"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	Timezone        string    `json:"timezone"`
	Tier            Tier      `json:"tier"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

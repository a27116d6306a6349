package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

// WebhookLocation is the tenant reference embedded in CRM workflow webhooks.
type WebhookLocation struct {
	ID string `json:"id"`
}

// WebhookPayload covers the three webhook shapes the CRM sends: workflow
// webhooks for properties and leads (id, location, customData) and native
// delete events (type, objectKey, locationId).
type WebhookPayload struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ObjectKey  string          `json:"objectKey"`
	LocationID string          `json:"locationId"`
	Location   WebhookLocation `json:"location"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	CustomData map[string]any  `json:"customData"`
	// Data carries older workflow payloads; read only as a fallback.
	Data map[string]any `json:"data"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type WebhookResponse struct {
	Status       string `json:"status"` // success | warning | ignored
	Msg          string `json:"msg,omitempty"`
	MatchesFound int    `json:"matches_found"`
}

type DeleteResponse struct {
	Status  string `json:"status"` // deleted | ignored
	Message string `json:"message"`
}

package model

import "time"

// CRMToken stores the OAuth credential issued by the CRM marketplace for a tenant.
// UpdatedAt doubles as the issue time: every refresh rewrites the row.
type CRMToken struct {
	LocationID   string `gorm:"type:varchar(255);primaryKey"`
	AccessToken  string `gorm:"type:text;not null"`
	RefreshToken string `gorm:"type:text;not null"`
	TokenType    string `gorm:"type:varchar(50)"`
	// ExpiresIn is the advertised lifetime in seconds.
	ExpiresIn int    `gorm:"not null;default:86400"`
	Scope     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CRMToken) TableName() string { return "crm_tokens" }

// ValidAt reports whether the token is still usable at now, keeping margin in reserve.
func (t *CRMToken) ValidAt(now time.Time, margin time.Duration) bool {
	expiresAt := t.UpdatedAt.Add(time.Duration(t.ExpiresIn)*time.Second - margin)
	return now.Before(expiresAt)
}

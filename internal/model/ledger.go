package model

import "time"

// Investment is one tracked campaign spend entry.
type Investment struct {
	ID         string    `json:"id,omitempty"`
	CampaignID string    `json:"campaign_id"`
	Amount     float64   `json:"amount"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
}

// Conversion is one tracked student conversion with its revenue.
type Conversion struct {
	ID             string    `json:"id,omitempty"`
	CampaignID     string    `json:"campaign_id"`
	StudentID      string    `json:"student_id"`
	Revenue        float64   `json:"revenue"`
	ConversionType string    `json:"conversion_type"`
	Timestamp      time.Time `json:"timestamp"`
}

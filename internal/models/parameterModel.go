package models

import (
	"time"
)

// Parameters is the adjustable part of the scorer configuration. A single row
// (ID 1) is checkpointed after every learning adjustment.
type Parameters struct {
	ID      uint   `gorm:"primaryKey" json:"-"`
	Profile string `gorm:"not null" json:"profile"`

	MinConfidence      float64 `gorm:"type:decimal(10,4);not null" json:"min_confidence"`
	GoldenPocketWeight float64 `gorm:"type:decimal(10,4);not null" json:"golden_pocket_weight"`
	SFPWeight          float64 `gorm:"type:decimal(10,4);not null" json:"sfp_weight"`

	// SamplesAtAdjustment is the closed sample count seen by the last adjustment
	SamplesAtAdjustment int64 `json:"samples_at_adjustment"`

	UpdatedAt time.Time `json:"updated_at"`
}

const ParametersRowID = 1

package indicators

import (
	"nse-newsfeatures/internal/models"
)

// VolumeChange calculates the one-period percent change of volume.
type VolumeChange struct{}

// NewVolumeChange creates a new VolumeChange indicator.
func NewVolumeChange() *VolumeChange {
	return &VolumeChange{}
}

func (v *VolumeChange) Name() string {
	return "VOL_CHG"
}

func (v *VolumeChange) Period() int {
	return 2
}

// Calculate returns undefined where the previous volume is zero.
func (v *VolumeChange) Calculate(candles []models.Candle) ([]float64, error) {
	return PctChange(volumes(candles), 1), nil
}

package render

import (
	"errors"
	"fmt"
	"math"
	"regexp"
)

// ColorRule colors cells by their distance from a threshold: cells at or above it get ColorHigh,
// cells below get ColorLow, with opacity growing linearly up to full at a distance of |Threshold|.
type ColorRule struct {
	Threshold float64 `json:"threshold"`
	ColorLow  string  `json:"colorLow"`
	ColorHigh string  `json:"colorHigh"`
}

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Returns the rule's color for the value, with a two-digit hex alpha suffix encoding the
// intensity. The intensity is 0 when the threshold is 0.
func (rule ColorRule) Background(value float64) string {
	intensity := 0.0
	if rule.Threshold != 0 {
		intensity = math.Min(math.Abs(value-rule.Threshold)/math.Abs(rule.Threshold), 1)
	}
	if math.IsNaN(intensity) {
		intensity = 0
	}

	color := rule.ColorLow
	if value >= rule.Threshold {
		color = rule.ColorHigh
	}

	return fmt.Sprintf("%s%02x", color, int(math.Round(intensity*255)))
}

func (rule ColorRule) Validate() error {
	if !hexColorPattern.MatchString(rule.ColorLow) || !hexColorPattern.MatchString(rule.ColorHigh) {
		return errors.New("colors must be on the form #RRGGBB")
	}
	return nil
}

package raster

import "math"

// MaskStatsResult summarizes a mask
type MaskStatsResult struct {
	MaskedPixels  int     `json:"masked_pixels"`
	KeptPixels    int     `json:"kept_pixels"`
	TotalPixels   int     `json:"total_pixels"`
	MaskedPercent float64 `json:"masked_percent"`
	KeptPercent   float64 `json:"kept_percent"`
}

// MaskStats counts masked and kept pixels
func MaskStats(m *Mask) *MaskStatsResult {
	total := m.Width * m.Height
	masked := m.Count()

	res := &MaskStatsResult{
		MaskedPixels: masked,
		KeptPixels:   total - masked,
		TotalPixels:  total,
	}
	if total > 0 {
		res.MaskedPercent = math.Round(float64(masked)/float64(total)*1000) / 10
		res.KeptPercent = math.Round(float64(total-masked)/float64(total)*1000) / 10
	}
	return res
}

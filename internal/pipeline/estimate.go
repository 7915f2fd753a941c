package pipeline

import (
	"time"

	"voxsplit/internal/separation"
)

// Wall-time multipliers per audio second, measured against typical consumer
// hardware. CPU separation runs several times slower than realtime; GPU
// separation faster.
const (
	gpuTimeFactor  = 0.6
	cpuTimeFactor  = 2.5
	autoTimeFactor = 1.2
)

// EstimateProcessingTime predicts the wall time a run over trackSeconds of
// audio will take on the given device. The estimate seeds the ETA shown
// before the first measurable progress arrives.
func EstimateProcessingTime(trackSeconds float64, device separation.Device) time.Duration {
	if trackSeconds <= 0 {
		return 0
	}
	factor := autoTimeFactor
	switch device {
	case separation.DeviceCUDA:
		factor = gpuTimeFactor
	case separation.DeviceCPU:
		factor = cpuTimeFactor
	}
	return time.Duration(trackSeconds * factor * float64(time.Second))
}

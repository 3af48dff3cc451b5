package simulate

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Physiological baselines for synthetic wearables.
const (
	restingHeartRate  = 62.0
	heartRateJitter   = 6.0
	baselineHRV       = 72.0
	hrvJitter         = 10.0
	baselineSleep     = 78.0
	sleepJitter       = 8.0
	stressHeartRate   = 112.0
	stressHRV         = 28.0
	breathCycleLength = 12.0

	randomFloatDivisor = 1000000
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// device is one synthetic wearable with its own drift.
type device struct {
	id       string
	name     string
	kind     string
	phase    float64
	stressed bool
}

func newDevices(n int) []*device {
	kinds := []string{"wristband", "chest_strap", "ring"}
	out := make([]*device, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &device{
			id:    uuid.New().String(),
			name:  "sim-" + kinds[i%len(kinds)],
			kind:  kinds[i%len(kinds)],
			phase: getRandomFloat() * 2 * math.Pi,
		})
	}
	return out
}

// sample produces one reading. Heart rate follows a slow breathing
// oscillation around the baseline; a stressed device pins near the
// stress profile instead.
func (d *device) sample(elapsed time.Duration) reading {
	t := elapsed.Seconds()
	osc := math.Sin(t/breathCycleLength*2*math.Pi + d.phase)

	hr := restingHeartRate + osc*heartRateJitter + (getRandomFloat()-0.5)*4
	hrv := baselineHRV + osc*hrvJitter + (getRandomFloat()-0.5)*6
	if d.stressed {
		hr = stressHeartRate + (getRandomFloat()-0.5)*10
		hrv = stressHRV + (getRandomFloat()-0.5)*8
	}
	hrv = clamp(hrv, 0, 100)

	r := reading{
		DeviceID:  d.id,
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		HeartRate: &hr,
		HRV:       &hrv,
	}

	// Rings also report sleep quality, once per breath cycle to keep
	// the channel sparse like real hardware.
	if d.kind == "ring" && int(t)%int(breathCycleLength) == 0 {
		sleep := clamp(baselineSleep+(getRandomFloat()-0.5)*sleepJitter, 0, 100)
		r.SleepQuality = &sleep
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

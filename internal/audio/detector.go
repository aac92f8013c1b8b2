package audio

import "time"

// detector tracks voice activity with hang-time hysteresis: once a
// sample crosses the threshold, activity stays asserted until the hang
// duration elapses with no sample above threshold. Brief dips between
// words therefore don't flip the reported state.
type detector struct {
	threshold float64
	hang      time.Duration
	now       func() time.Time

	active    bool
	lastAbove time.Time
}

func newDetector(threshold float64, hang time.Duration) *detector {
	return &detector{
		threshold: threshold,
		hang:      hang,
		now:       time.Now,
	}
}

// observe processes one level sample and returns the reported activity state.
func (d *detector) observe(level float64) bool {
	if level > d.threshold {
		d.active = true
		d.lastAbove = d.now()
		return true
	}
	if d.active && d.now().Sub(d.lastAbove) >= d.hang {
		d.active = false
	}
	return d.active
}

// meanMagnitude computes the mean absolute sample magnitude of 16-bit
// little-endian PCM, normalized to [0, 1].
func meanMagnitude(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	var n int
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(pcm[i]) | int16(pcm[i+1])<<8
		v := float64(s) / 32768.0
		if v < 0 {
			v = -v
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

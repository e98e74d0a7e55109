package s2_signals

import (
	"math"

	"github.com/wonny/momentum-lab/internal/contracts"
)

// MomentumCalculator computes skip-shifted, volatility-adjusted momentum for
// one symbol's own trading history.
// ⭐ SSOT: 모멘텀 시그널 계산은 여기서만
type MomentumCalculator struct {
	skip     int
	volFloor float64
	volPower float64

	closes []float64
	sum    []float64 // prefix sums of daily returns, sum[k] = r[1] + ... + r[k]
	sumSq  []float64
}

// NewMomentumCalculator prepares prefix sums over a close history
func NewMomentumCalculator(closes []float64, skip int, volFloor, volPower float64) *MomentumCalculator {
	c := &MomentumCalculator{
		skip:     skip,
		volFloor: volFloor,
		volPower: volPower,
		closes:   closes,
		sum:      make([]float64, len(closes)),
		sumSq:    make([]float64, len(closes)),
	}

	for k := 1; k < len(closes); k++ {
		r := 0.0
		if closes[k-1] != 0 {
			r = closes[k]/closes[k-1] - 1
		}
		c.sum[k] = c.sum[k-1] + r
		c.sumSq[k] = c.sumSq[k-1] + r*r
	}

	return c
}

// Required returns the history (prior observations) a horizon needs
func (c *MomentumCalculator) Required(h contracts.Horizon) int {
	return c.skip + h.Days()
}

// Score computes the horizon values at the symbol's k-th observation.
// It returns an InsufficientHistoryError when k < skip + h.
func (c *MomentumCalculator) Score(k int, h contracts.Horizon) (contracts.HorizonScore, error) {
	need := c.Required(h)
	if k < need || k >= len(c.closes) {
		return contracts.HorizonScore{}, &contracts.InsufficientHistoryError{
			Horizon: h,
			Have:    k,
			Need:    need,
		}
	}

	end := k - c.skip
	start := end - h.Days()

	momentum := 0.0
	if c.closes[start] != 0 {
		momentum = c.closes[end]/c.closes[start] - 1
	}

	vol := math.Max(c.stdev(start+1, end), c.volFloor)
	score := momentum / math.Pow(vol, c.volPower)

	return contracts.HorizonScore{
		Score:      score,
		Momentum:   momentum,
		Volatility: vol,
	}, nil
}

// stdev returns the sample standard deviation of daily returns r[from..to]
func (c *MomentumCalculator) stdev(from, to int) float64 {
	n := float64(to - from + 1)
	if n < 2 {
		return 0
	}

	s := c.sum[to] - c.sum[from-1]
	sq := c.sumSq[to] - c.sumSq[from-1]
	variance := (sq - s*s/n) / (n - 1)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

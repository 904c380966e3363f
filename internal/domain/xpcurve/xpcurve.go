// Package xpcurve converts cumulative experience into a level and the progress
// toward the next level.
package xpcurve

import (
	"math"
	"sort"
)

// Curve constants.
const (
	DefaultMaxLevel = 99
	baseIncrement   = 300
	growthDivisor   = 7
	scaleDivisor    = 4
	fullProgress    = 100
)

// MaxSupportedLevel is the highest accepted cap. Beyond it the accumulated
// experience leaves the range where float64 steps stay exact.
const MaxSupportedLevel = 250

// Info is the derived level and percentage progress toward the next level.
type Info struct {
	Level    int     `json:"level"`
	Progress float64 `json:"progress"`
}

// Option applies a configuration option to a Curve.
type Option func(*Curve)

// WithMaxLevel sets the level cap. Values below 2 are ignored and values above
// MaxSupportedLevel are clamped to it.
func WithMaxLevel(level int) Option {
	return func(c *Curve) {
		if level >= 2 {
			c.maxLevel = min(level, MaxSupportedLevel)
		}
	}
}

// Curve holds a precomputed threshold table. thresholds[i] is the cumulative
// experience required for level i+1; the table is immutable after New.
type Curve struct {
	maxLevel   int
	thresholds []int64
}

var defaultCurve = New()

// New builds a curve with the given options.
func New(opts ...Option) *Curve {
	c := &Curve{maxLevel: DefaultMaxLevel}
	for _, opt := range opts {
		opt(c)
	}
	c.thresholds = buildThresholds(c.maxLevel)
	return c
}

func buildThresholds(maxLevel int) []int64 {
	t := make([]int64, 0, maxLevel)
	t = append(t, 0)
	var acc int64
	for lvl := 2; lvl <= maxLevel; lvl++ {
		n := float64(lvl - 1)
		acc += int64(math.Floor(n + baseIncrement*math.Pow(2, n/growthDivisor)))
		t = append(t, acc/scaleDivisor)
	}
	return t
}

// MaxLevel returns the level cap.
func (c *Curve) MaxLevel() int { return c.maxLevel }

// Threshold returns the cumulative experience required for a 1-based level.
// Levels outside [1, MaxLevel] are clamped.
func (c *Curve) Threshold(level int) int64 {
	switch {
	case level < 1:
		level = 1
	case level > c.maxLevel:
		level = c.maxLevel
	}
	return c.thresholds[level-1]
}

// LevelInfo returns the level for experience and the linear progress between
// the surrounding thresholds. Experience at or above the last threshold yields
// the cap with 100 progress. Negative experience is treated as zero.
func (c *Curve) LevelInfo(experience int64) Info {
	if experience < 0 {
		experience = 0
	}
	t := c.thresholds
	// upper bound: first threshold strictly greater than experience
	i := sort.Search(len(t), func(j int) bool { return t[j] > experience })
	if i >= len(t) {
		return Info{Level: c.maxLevel, Progress: fullProgress}
	}

	var prev int64
	if i > 0 {
		prev = t[i-1]
	}
	progress := float64(experience-prev) / float64(t[i]-prev) * fullProgress
	return Info{Level: i, Progress: progress}
}

// LevelInfo uses the default 99-level curve.
func LevelInfo(experience int64) Info { return defaultCurve.LevelInfo(experience) }

// Threshold uses the default 99-level curve.
func Threshold(level int) int64 { return defaultCurve.Threshold(level) }

// MaxLevel returns the default curve's cap.
func MaxLevel() int { return defaultCurve.maxLevel }

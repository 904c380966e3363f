package feedsim

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	mrand "math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/skillwatch/internal/domain/skills"
	"github.com/okian/skillwatch/internal/domain/xpcurve"
)

// Constants for profile generation.
const (
	maxExperience    = 200_000_000
	hitpointsFloor   = 1154 // level 10
	maxStartLevel    = 85
	maxGainPerMinute = 400
	unrankedOdds     = 12 // one in N skills starts untrained
	rankCeiling      = 2_500_000
	rankDivisor      = 80
	activityRows     = 3
	randomDivisor    = 1_000_000
)

// profile is a player's deterministic starting point and progression rate.
type profile struct {
	base []int64
	gain []int64
}

// newProfile derives a stable profile from the player name so the same player
// always starts from the same experience.
func newProfile(player string, count int) profile {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(strings.TrimSpace(player))))
	rng := mrand.New(mrand.NewPCG(binary.BigEndian.Uint64(id[:8]), binary.BigEndian.Uint64(id[8:])))

	p := profile{base: make([]int64, count), gain: make([]int64, count)}
	ceiling := xpcurve.Threshold(maxStartLevel)
	for i := range p.base {
		if rng.IntN(unrankedOdds) == 0 {
			continue
		}
		p.base[i] = rng.Int64N(ceiling)
		p.gain[i] = rng.Int64N(maxGainPerMinute)
	}
	return p
}

// experienceAt returns per-skill experience after elapsed time.
func (p profile) experienceAt(elapsed time.Duration) []int64 {
	minutes := int64(elapsed / time.Minute)
	out := make([]int64, len(p.base))
	for i := range p.base {
		if p.base[i] == 0 {
			continue
		}
		xp := p.base[i] + p.gain[i]*minutes
		if xp > maxExperience {
			xp = maxExperience
		}
		out[i] = xp
	}
	return out
}

// render writes the feed text for names, whose first entry is the overall row.
func render(names []string, xp []int64) string {
	var b strings.Builder
	var totalLevel int
	var totalXP int64
	rows := make([]string, 0, len(names)+activityRows)

	for i, name := range names {
		if name == skills.Overall {
			continue
		}
		exp := xp[i]
		if name == "hitpoints" && exp < hitpointsFloor {
			exp = hitpointsFloor
		}
		level := xpcurve.LevelInfo(exp).Level
		totalLevel += level
		totalXP += exp
		if exp == 0 {
			rows = append(rows, "-1,1,-1")
			continue
		}
		rows = append(rows, row(rankFor(exp), level, exp))
	}

	b.WriteString(row(rankFor(totalXP/int64(len(names))), totalLevel, totalXP))
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	// activity rows follow the skills in the real feed and carry no experience
	for i := 0; i < activityRows; i++ {
		b.WriteString("-1,-1\n")
	}
	return b.String()
}

func row(rank, level int, xp int64) string {
	return strconv.Itoa(rank) + "," + strconv.Itoa(level) + "," + strconv.FormatInt(xp, 10)
}

func rankFor(xp int64) int {
	r := rankCeiling - xp/rankDivisor
	if r < 1 {
		return 1
	}
	return int(r)
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomDivisor))
	return float64(n.Int64()) / float64(randomDivisor)
}

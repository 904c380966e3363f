// Package feed parses the plain-text scoreboard feed into skill snapshots.
//
// The feed has one row per entry in a fixed order, each row being
// "rank,level,experience". Rows the upstream omits are filled with the
// unranked default rather than failing the parse.
package feed

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/okian/skillwatch/internal/domain/skills"
)

// Field positions within a row.
const (
	fieldRank = iota
	fieldLevel
	fieldExperience
)

// DefaultURL is the public scoreboard endpoint serving the feed.
const DefaultURL = "https://secure.runescape.com/m=hiscore_oldschool/index_lite.ws"

// maxExactFloat is the largest magnitude a float64 holds without losing integer precision.
const maxExactFloat = 1 << 53

// Option applies a configuration option to a Parser.
type Option func(*Parser)

// WithNames sets the ordered entry names rows are mapped onto.
func WithNames(names []string) Option {
	return func(p *Parser) {
		if len(names) > 0 {
			p.names = append([]string(nil), names...)
		}
	}
}

// Parser maps feed rows positionally onto an ordered name set.
type Parser struct {
	names []string
}

var defaultParser = NewParser()

// NewParser creates a parser over skills.Names unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{names: skills.Names()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts raw feed text into a snapshot covering every configured name.
// It never fails: short feeds and malformed numbers fall back to defaults.
func (p *Parser) Parse(raw string) skills.Snapshot {
	rows := splitRows(raw)
	records := make(map[string]skills.Record, len(p.names))
	for i, name := range p.names {
		if i >= len(rows) {
			records[name] = skills.Unranked()
			continue
		}
		records[name] = parseRow(rows[i])
	}
	return skills.NewSnapshot(p.names, records)
}

// Defaulted counts the entries of raw that had no row in the feed.
func (p *Parser) Defaulted(raw string) int {
	n := len(p.names) - len(splitRows(raw))
	if n < 0 {
		return 0
	}
	return n
}

// Decode reads a feed body and parses it. It fails only when the body cannot
// be read or is not valid UTF-8 text.
func (p *Parser) Decode(r io.Reader) (skills.Snapshot, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return skills.Snapshot{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if !utf8.Valid(body) {
		return skills.Snapshot{}, fmt.Errorf("%w: body is not valid utf-8", ErrDecode)
	}
	return p.Parse(string(body)), nil
}

// Parse uses the default entry names.
func Parse(raw string) skills.Snapshot { return defaultParser.Parse(raw) }

func splitRows(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	rows := strings.Split(raw, "\n")
	for i := range rows {
		rows[i] = strings.TrimRight(rows[i], "\r")
	}
	return rows
}

func parseRow(row string) skills.Record {
	def := skills.Unranked()
	fields := strings.Split(row, ",")

	rec := skills.Record{
		Rank:       int(coerce(fields, fieldRank, int64(def.Rank))),
		Level:      int(coerce(fields, fieldLevel, int64(def.Level))),
		Experience: coerce(fields, fieldExperience, def.Experience),
	}
	// The upstream reports -1 experience for some unranked entries.
	if rec.Level < def.Level {
		rec.Level = def.Level
	}
	if rec.Experience < 0 {
		rec.Experience = 0
	}
	return rec
}

// coerce reads fields[idx] as an integer, accepting finite decimals by
// truncation, and returns def when the field is missing or not numeric.
func coerce(fields []string, idx int, def int64) int64 {
	if idx >= len(fields) {
		return def
	}
	s := strings.TrimSpace(fields[idx])
	if s == "" {
		return def
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxExactFloat {
		return def
	}
	return int64(f)
}

package repository

import (
	"strconv"
	"strings"

	"github.com/okian/hogu/internal/domain/correlation"
	"github.com/okian/hogu/internal/domain/protocol"
)

// Enrichment detail keys.
const (
	detailHitLevels   = "hit_levels"
	detailHitLevelMax = "hit_level_max"
	detailHitLevelAvg = "hit_level_avg"
)

type detail struct {
	key, value, typ string
}

func intDetail(key string, v int) detail { return detail{key, strconv.Itoa(v), "int"} }

func textDetail(key, v string) detail { return detail{key, v, "string"} }

// payloadDetails flattens a payload into queryable detail rows.
func payloadDetails(p protocol.Payload) []detail {
	switch p := p.(type) {
	case protocol.Point:
		return []detail{textDetail("athlete", p.Athlete.String()), intDetail("point_type", p.PointType)}
	case protocol.HitLevel:
		return []detail{textDetail("athlete", p.Athlete.String()), intDetail("level", p.Level)}
	case protocol.Warnings:
		return []detail{intDetail("blue_warnings", p.Blue), intDetail("red_warnings", p.Red)}
	case protocol.Score:
		return []detail{intDetail("blue_score", p.Blue), intDetail("red_score", p.Red)}
	case protocol.Injury:
		return nonEmpty(textDetail("athlete", p.Athlete.String()), textDetail("time", p.Time),
			intDetail("seconds", p.Seconds), textDetail("action", p.Action))
	case protocol.Challenge:
		out := []detail{textDetail("source", p.Source.String())}
		if p.HasResult {
			out = append(out, intDetail("result", p.Result))
		}
		return out
	case protocol.Clock:
		return nonEmpty(textDetail("time", p.Time), intDetail("seconds", p.Seconds), textDetail("action", p.Action))
	case protocol.Break:
		return nonEmpty(textDetail("time", p.Time), intDetail("seconds", p.Seconds), textDetail("action", p.Action))
	case protocol.Round:
		return []detail{intDetail("round", p.Number)}
	case protocol.MatchConfig:
		return nonEmpty(textDetail("match_number", p.Number), textDetail("category", p.Category),
			textDetail("weight", p.Weight), intDetail("rounds", p.Rounds),
			textDetail("bg_color", p.BgColor), textDetail("fg_color", p.FgColor))
	case protocol.Athletes:
		return nonEmpty(
			textDetail("blue_short", p.Blue.Short), textDetail("blue_long", p.Blue.Long), textDetail("blue_country", p.Blue.Country),
			textDetail("red_short", p.Red.Short), textDetail("red_long", p.Red.Long), textDetail("red_country", p.Red.Country),
		)
	case protocol.Winner:
		return []detail{textDetail("side", p.Side.String())}
	case protocol.WinnerRounds:
		return []detail{
			intDetail("round1_winner", p.Rounds[0]),
			intDetail("round2_winner", p.Rounds[1]),
			intDetail("round3_winner", p.Rounds[2]),
		}
	case protocol.FightLoaded, protocol.FightReady:
		return nil
	case protocol.Deprecated:
		return fieldDetails(p.Fields)
	case protocol.Raw:
		return fieldDetails(p.Fields)
	default:
		return nil
	}
}

func fieldDetails(fields []string) []detail {
	out := make([]detail, 0, len(fields))
	for i, f := range fields {
		out = append(out, textDetail("field_"+strconv.Itoa(i+1), f))
	}
	return out
}

func nonEmpty(ds ...detail) []detail {
	out := ds[:0]
	for _, d := range ds {
		if d.value != "" {
			out = append(out, d)
		}
	}
	return out
}

// enrichmentDetails renders readings as "85,90", max as "90" and the average
// with one decimal ("87.5").
func enrichmentDetails(e *correlation.Enrichment) []detail {
	if e == nil || len(e.Readings) == 0 {
		return nil
	}
	values := make([]string, len(e.Readings))
	for i, r := range e.Readings {
		values[i] = strconv.Itoa(r)
	}
	return []detail{
		{detailHitLevels, strings.Join(values, ","), "string"},
		{detailHitLevelMax, strconv.Itoa(e.Max), "int"},
		{detailHitLevelAvg, strconv.FormatFloat(e.Average, 'f', 1, 64), "float"},
	}
}

// decodeEnrichment rebuilds an enrichment from its hit_levels row. Max and
// average are derived from the readings, exactly as the window computes them.
func decodeEnrichment(csv string) (correlation.Enrichment, bool) {
	parts := strings.Split(csv, ",")
	readings := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return correlation.Enrichment{}, false
		}
		readings = append(readings, v)
	}
	if len(readings) == 0 {
		return correlation.Enrichment{}, false
	}
	sum, maxV := 0, readings[0]
	for _, v := range readings {
		sum += v
		if v > maxV {
			maxV = v
		}
	}
	return correlation.Enrichment{
		Readings: readings,
		Max:      maxV,
		Average:  float64(sum) / float64(len(readings)),
	}, true
}

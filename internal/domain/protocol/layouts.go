package protocol

import "sort"

// layout binds an event code to its fields and payload constructor.
type layout struct {
	kind   Kind
	fields []field
	build  func(code string, x extracted) Payload
}

var timerActions = []string{"start", "stop"}

var (
	pointLayout = &layout{
		kind:   KindPoint,
		fields: []field{intField("point_type", 1, 5)},
		build: func(code string, x extracted) Payload {
			return Point{Athlete: athleteOf(code), PointType: x.int(0)}
		},
	}
	hitLevelLayout = &layout{
		kind:   KindHitLevel,
		fields: []field{intField("level", 1, 100)},
		build: func(code string, x extracted) Payload {
			return HitLevel{Athlete: athleteOf(code), Level: x.int(0)}
		},
	}
	warningsLayout = &layout{
		kind: KindWarnings,
		fields: []field{
			intField("blue_warnings", 0, 99),
			marker("wg2"),
			intField("red_warnings", 0, 99),
		},
		build: func(_ string, x extracted) Payload {
			return Warnings{Blue: x.int(0), Red: x.int(2)}
		},
	}
	scoreLayout = &layout{
		kind: KindScore,
		fields: []field{
			intField("blue_score", 0, 999),
			marker("sc2"),
			intField("red_score", 0, 999),
		},
		build: func(_ string, x extracted) Payload {
			return Score{Blue: x.int(0), Red: x.int(2)}
		},
	}
	injuryLayout = &layout{
		kind: KindInjury,
		fields: []field{
			timeField("time"),
			optional(enumField("action", "show", "hide", "reset")),
		},
		build: func(code string, x extracted) Payload {
			return Injury{Athlete: athleteOf(code), Time: x.text(0), Seconds: x.int(0), Action: x.text(1)}
		},
	}
	challengeLayout = &layout{
		kind:   KindChallenge,
		fields: []field{optional(intField("result", -1, 1))},
		build: func(code string, x extracted) Payload {
			return Challenge{Source: athleteOf(code), HasResult: x.has(0), Result: x.int(0)}
		},
	}
	clockLayout = &layout{
		kind:   KindClock,
		fields: []field{timeField("time"), optional(enumField("action", timerActions...))},
		build: func(_ string, x extracted) Payload {
			return Clock{Time: x.text(0), Seconds: x.int(0), Action: x.text(1)}
		},
	}
	breakLayout = &layout{
		kind:   KindBreak,
		fields: []field{timeField("time"), optional(enumField("action", timerActions...))},
		build: func(_ string, x extracted) Payload {
			return Break{Time: x.text(0), Seconds: x.int(0), Action: x.text(1)}
		},
	}
	roundLayout = &layout{
		kind:   KindRound,
		fields: []field{intField("round", 1, 9)},
		build: func(_ string, x extracted) Payload {
			return Round{Number: x.int(0)}
		},
	}
	matchConfigLayout = &layout{
		kind: KindMatchConfig,
		fields: []field{
			textField("match_number"),
			optional(textField("category")),
			optional(textField("weight")),
			intField("rounds", 1, 9),
			colorField("bg_color"),
			colorField("fg_color"),
		},
		build: func(_ string, x extracted) Payload {
			return MatchConfig{
				Number:   x.text(0),
				Category: x.text(1),
				Weight:   x.text(2),
				Rounds:   x.int(3),
				BgColor:  x.text(4),
				FgColor:  x.text(5),
			}
		},
	}
	athletesLayout = &layout{
		kind: KindAthletes,
		fields: []field{
			textField("blue_short"),
			optional(textField("blue_long")),
			optional(textField("blue_country")),
			marker("at2"),
			textField("red_short"),
			optional(textField("red_long")),
			optional(textField("red_country")),
		},
		build: func(_ string, x extracted) Payload {
			return Athletes{
				Blue: AthleteInfo{Short: x.text(0), Long: x.text(1), Country: x.text(2)},
				Red:  AthleteInfo{Short: x.text(4), Long: x.text(5), Country: x.text(6)},
			}
		},
	}
	winnerLayout = &layout{
		kind:   KindWinner,
		fields: []field{enumField("side", "BLUE", "RED")},
		build: func(_ string, x extracted) Payload {
			w := Winner{}
			switch x.text(0) {
			case "BLUE":
				w.Side = Blue
			case "RED":
				w.Side = Red
			}
			return w
		},
	}
	winnerRoundsLayout = &layout{
		kind: KindWinnerRounds,
		fields: []field{
			marker("rd1"), intField("round1_winner", 0, 2),
			marker("rd2"), intField("round2_winner", 0, 2),
			marker("rd3"), intField("round3_winner", 0, 2),
		},
		build: func(_ string, x extracted) Payload {
			return WinnerRounds{Rounds: [3]int{x.int(1), x.int(3), x.int(5)}}
		},
	}
	fightLoadedLayout = &layout{
		kind:   KindFightLoaded,
		fields: []field{marker("FightLoaded")},
		build:  func(string, extracted) Payload { return FightLoaded{} },
	}
	fightReadyLayout = &layout{
		kind:   KindFightReady,
		fields: []field{marker("FightReady")},
		build:  func(string, extracted) Payload { return FightReady{} },
	}
)

// layouts is keyed by lowercase event code.
var layouts = map[string]*layout{
	"pt1": pointLayout, "pt2": pointLayout,
	"hl1": hitLevelLayout, "hl2": hitLevelLayout,
	"wg1": warningsLayout,
	"sc1": scoreLayout,
	"ij0": injuryLayout, "ij1": injuryLayout, "ij2": injuryLayout,
	"ch0": challengeLayout, "ch1": challengeLayout, "ch2": challengeLayout,
	"clk": clockLayout,
	"brk": breakLayout,
	"rnd": roundLayout,
	"mch": matchConfigLayout,
	"at1": athletesLayout,
	"win": winnerLayout,
	"wrd": winnerRoundsLayout,
	"pre": fightLoadedLayout,
	"rdy": fightReadyLayout,
}

// deprecatedCodes are accepted but retired from the current protocol.
var deprecatedCodes = map[string]bool{
	"avt": true,
}

// subCategories tag known-but-unmodeled prefixes.
var subCategories = map[string]string{
	"ivr": "video_replay",
	"sup": "supervision",
	"hlt": "health_check",
	"tm1": "team",
	"tm2": "team",
}

func subCategoryOf(code string) string {
	if tag, ok := subCategories[code]; ok {
		return tag
	}
	// s11..s29: per-round scores.
	if len(code) == 3 && code[0] == 's' && (code[1] == '1' || code[1] == '2') && code[2] >= '0' && code[2] <= '9' {
		return "round_score"
	}
	return ""
}

func athleteOf(code string) Athlete {
	switch code[len(code)-1] {
	case '1':
		return Blue
	case '2':
		return Red
	default:
		return Referee
	}
}

// Codes returns every recognized event code in sorted order.
func Codes() []string {
	out := make([]string, 0, len(layouts))
	for code := range layouts {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

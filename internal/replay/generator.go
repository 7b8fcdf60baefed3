package replay

import (
	"fmt"
	"math/rand/v2"
)

// Generator produces protocol-conformant match flows. The same seed always
// yields the same datagrams.
type Generator struct {
	rng       *rand.Rand
	exchanges int
}

// NewGenerator creates a generator with exchanges scoring exchanges per round.
func NewGenerator(seed uint64, exchanges int) *Generator {
	if exchanges <= 0 {
		exchanges = 10
	}
	return &Generator{
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		exchanges: exchanges,
	}
}

// Match returns the datagrams of one match numbered number: fight loaded,
// athletes, configuration, rounds with clock, hits, points, scores and
// warnings, breaks, and the winner.
func (g *Generator) Match(number int) []string {
	var out []string
	out = append(out,
		"pre;FightLoaded;",
		"at1;KIM;Kim Taejoon;KOR;at2;JEN;Jendoubi;TUN;",
		fmt.Sprintf("mch;%d;M-58;58kg;%d;#0000FF;#FF0000", number, roundsPerMatch),
		"rdy;FightReady;",
	)

	var score, warnings [3]int // indexed by athlete 1 and 2
	roundWins := [roundsPerMatch]int{}
	for round := 1; round <= roundsPerMatch; round++ {
		out = append(out,
			fmt.Sprintf("rnd;%d;", round),
			"clk;2:00;start;",
		)
		for i := 0; i < g.exchanges; i++ {
			athlete := 1 + g.rng.IntN(2)
			out = append(out, fmt.Sprintf("hl%d;%d;", athlete, minHitLevel+g.rng.IntN(maxHitLevel-minHitLevel+1)))

			switch g.rng.IntN(4) {
			case 0, 1:
				pt := 1 + g.rng.IntN(maxPointType)
				score[athlete] += pointValue(pt)
				out = append(out,
					fmt.Sprintf("pt%d;%d;", athlete, pt),
					fmt.Sprintf("sc1;%d;sc2;%d;", score[1], score[2]),
				)
			case 2:
				if warnings[athlete] < 9 {
					warnings[athlete]++
					out = append(out, fmt.Sprintf("wg1;%d;wg2;%d;", warnings[1], warnings[2]))
				}
			}
		}
		out = append(out, "clk;0:00;stop;")
		switch {
		case score[1] > score[2]:
			roundWins[round-1] = 1
		case score[2] > score[1]:
			roundWins[round-1] = 2
		}
		if round < roundsPerMatch {
			out = append(out, "brk;1:00;")
		}
	}

	out = append(out,
		fmt.Sprintf("wrd;rd1;%d;rd2;%d;rd3;%d", roundWins[0], roundWins[1], roundWins[2]),
		"win;"+winner(score),
	)
	return out
}

// Matches returns n consecutive matches numbered from 101.
func (g *Generator) Matches(n int) []string {
	var out []string
	for i := 0; i < n; i++ {
		out = append(out, g.Match(101+i)...)
	}
	return out
}

// pointValue maps a point type onto a score increment.
func pointValue(pointType int) int {
	switch pointType {
	case 1:
		return 1
	case 2, 4:
		return 2
	default:
		return 3
	}
}

func winner(score [3]int) string {
	if score[2] > score[1] {
		return "RED;"
	}
	return "BLUE;"
}

package protocol

// Payload is the sealed sum of event payloads. Every kind has exactly one
// payload struct; a type switch over Payload is exhaustive over this file.
type Payload interface {
	Kind() Kind
	sealed()
}

// Point is a scoring event. PointType 1 punch, 2 body, 3 head,
// 4 technical body, 5 technical head.
type Point struct {
	Athlete   Athlete `json:"athlete"`
	PointType int     `json:"point_type"`
}

// HitLevel is an auxiliary impact-intensity reading.
type HitLevel struct {
	Athlete Athlete `json:"athlete"`
	Level   int     `json:"level"`
}

// Warnings carries the gam-jeom counts of both sides.
type Warnings struct {
	Blue int `json:"blue"`
	Red  int `json:"red"`
}

// Score carries the running score of both sides.
type Score struct {
	Blue int `json:"blue"`
	Red  int `json:"red"`
}

// Injury reports an injury timer action.
type Injury struct {
	Athlete Athlete `json:"athlete"`
	Time    string  `json:"time"`
	Seconds int     `json:"seconds"`
	Action  string  `json:"action,omitempty"`
}

// Challenge reports a video-replay request and, once decided, its result.
type Challenge struct {
	Source    Athlete `json:"source"`
	HasResult bool    `json:"has_result"`
	Result    int     `json:"result"`
}

// Clock reports the round clock.
type Clock struct {
	Time    string `json:"time"`
	Seconds int    `json:"seconds"`
	Action  string `json:"action,omitempty"`
}

// Break reports the between-rounds break clock.
type Break struct {
	Time    string `json:"time"`
	Seconds int    `json:"seconds"`
	Action  string `json:"action,omitempty"`
}

// Round announces the current round number.
type Round struct {
	Number int `json:"number"`
}

// MatchConfig announces a new match.
type MatchConfig struct {
	Number   string `json:"number"`
	Category string `json:"category,omitempty"`
	Weight   string `json:"weight,omitempty"`
	Rounds   int    `json:"rounds"`
	BgColor  string `json:"bg_color,omitempty"`
	FgColor  string `json:"fg_color,omitempty"`
}

// AthleteInfo describes one competitor.
type AthleteInfo struct {
	Short   string `json:"short"`
	Long    string `json:"long,omitempty"`
	Country string `json:"country,omitempty"`
}

// Athletes introduces both competitors.
type Athletes struct {
	Blue AthleteInfo `json:"blue"`
	Red  AthleteInfo `json:"red"`
}

// Winner declares the match winner.
type Winner struct {
	Side Athlete `json:"side"`
}

// WinnerRounds carries per-round winners (0 none, 1 blue, 2 red).
type WinnerRounds struct {
	Rounds [3]int `json:"rounds"`
}

// FightLoaded signals that a new fight was loaded.
type FightLoaded struct{}

// FightReady signals that the loaded fight is ready to start.
type FightReady struct{}

// Deprecated preserves the fields of a retired code.
type Deprecated struct {
	Fields []string `json:"fields,omitempty"`
}

// Raw preserves the fields of an unrecognized payload.
type Raw struct {
	Fields []string `json:"fields,omitempty"`
}

func (Point) Kind() Kind        { return KindPoint }
func (HitLevel) Kind() Kind     { return KindHitLevel }
func (Warnings) Kind() Kind     { return KindWarnings }
func (Score) Kind() Kind        { return KindScore }
func (Injury) Kind() Kind       { return KindInjury }
func (Challenge) Kind() Kind    { return KindChallenge }
func (Clock) Kind() Kind        { return KindClock }
func (Break) Kind() Kind        { return KindBreak }
func (Round) Kind() Kind        { return KindRound }
func (MatchConfig) Kind() Kind  { return KindMatchConfig }
func (Athletes) Kind() Kind     { return KindAthletes }
func (Winner) Kind() Kind       { return KindWinner }
func (WinnerRounds) Kind() Kind { return KindWinnerRounds }
func (FightLoaded) Kind() Kind  { return KindFightLoaded }
func (FightReady) Kind() Kind   { return KindFightReady }
func (Deprecated) Kind() Kind   { return KindDeprecated }
func (Raw) Kind() Kind          { return KindRaw }

func (Point) sealed()        {}
func (HitLevel) sealed()     {}
func (Warnings) sealed()     {}
func (Score) sealed()        {}
func (Injury) sealed()       {}
func (Challenge) sealed()    {}
func (Clock) sealed()        {}
func (Break) sealed()        {}
func (Round) sealed()        {}
func (MatchConfig) sealed()  {}
func (Athletes) sealed()     {}
func (Winner) sealed()       {}
func (WinnerRounds) sealed() {}
func (FightLoaded) sealed()  {}
func (FightReady) sealed()   {}
func (Deprecated) sealed()   {}
func (Raw) sealed()          {}

package analytics

import (
	"encoding/json"
	"sync"
	"time"
)

// RegimeSummary counts finished games of one regime.
type RegimeSummary struct {
	Games     int `json:"games"`
	BotWins   int `json:"botWins"`
	HumanWins int `json:"humanWins"`
	Draws     int `json:"draws"`
	Abandoned int `json:"abandoned"`
}

// Summary is a point-in-time copy of the aggregated metrics.
type Summary struct {
	TotalGames      int                      `json:"totalGames"`
	MovesPlayed     int                      `json:"movesPlayed"`
	AverageDuration float64                  `json:"averageDuration"`
	Regimes         map[string]RegimeSummary `json:"regimes"`
	Policies        map[string]int           `json:"policies"`
	AverageNodes    float64                  `json:"averageNodes"`
	GamesPerDay     map[string]int           `json:"gamesPerDay"`
	UserGames       map[string]int           `json:"userGames"`
	UserWins        map[string]int           `json:"userWins"`
}

// Aggregator folds the event stream into counters.
type Aggregator struct {
	mu            sync.Mutex
	botName       string
	totalGames    int
	movesPlayed   int
	gameDurations []float64
	regimes       map[string]RegimeSummary
	policies      map[string]int
	searchNodes   float64
	searches      int
	gamesPerDay   map[string]int
	userGames     map[string]int
	userWins      map[string]int
}

func NewAggregator(botName string) *Aggregator {
	return &Aggregator{
		botName:     botName,
		regimes:     make(map[string]RegimeSummary),
		policies:    make(map[string]int),
		gamesPerDay: make(map[string]int),
		userGames:   make(map[string]int),
		userWins:    make(map[string]int),
	}
}

// Decode parses one message value.
func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

func (a *Aggregator) Record(e Event) {
	switch e.Event {
	case EventGameFinished:
		a.recordGameFinished(e.Payload, e.Timestamp)
	case EventEngineDecision:
		a.recordDecision(e.Payload)
	case EventMovePlayed:
		a.mu.Lock()
		a.movesPlayed++
		a.mu.Unlock()
	}
}

func (a *Aggregator) recordGameFinished(payload map[string]any, timestamp time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalGames++
	regime, _ := payload["regime"].(string)
	winner, _ := payload["winner"].(string)
	outcome, _ := payload["outcome"].(string)
	user, _ := payload["username"].(string)

	s := a.regimes[regime]
	s.Games++
	switch {
	case outcome == "draw":
		s.Draws++
	case winner == "":
		s.Abandoned++
	case winner == a.botName:
		s.BotWins++
	default:
		s.HumanWins++
		a.userWins[winner]++
	}
	a.regimes[regime] = s

	if duration, ok := payload["duration"].(float64); ok {
		a.gameDurations = append(a.gameDurations, duration)
	}
	a.gamesPerDay[timestamp.Format("2006-01-02")]++
	if user != "" {
		a.userGames[user]++
	}
}

func (a *Aggregator) recordDecision(payload map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	policy, _ := payload["policy"].(string)
	a.policies[policy]++
	if nodes, ok := payload["nodes"].(float64); ok && policy == "search" {
		a.searchNodes += nodes
		a.searches++
	}
}

func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{
		TotalGames:  a.totalGames,
		MovesPlayed: a.movesPlayed,
		Regimes:     make(map[string]RegimeSummary, len(a.regimes)),
		Policies:    make(map[string]int, len(a.policies)),
		GamesPerDay: make(map[string]int, len(a.gamesPerDay)),
		UserGames:   make(map[string]int, len(a.userGames)),
		UserWins:    make(map[string]int, len(a.userWins)),
	}
	if len(a.gameDurations) > 0 {
		sum := 0.0
		for _, d := range a.gameDurations {
			sum += d
		}
		s.AverageDuration = sum / float64(len(a.gameDurations))
	}
	if a.searches > 0 {
		s.AverageNodes = a.searchNodes / float64(a.searches)
	}
	for k, v := range a.regimes {
		s.Regimes[k] = v
	}
	for k, v := range a.policies {
		s.Policies[k] = v
	}
	for k, v := range a.gamesPerDay {
		s.GamesPerDay[k] = v
	}
	for k, v := range a.userGames {
		s.UserGames[k] = v
	}
	for k, v := range a.userWins {
		s.UserWins[k] = v
	}
	return s
}

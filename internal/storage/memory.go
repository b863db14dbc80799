package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps results for the lifetime of the process. It is the
// fallback when no database is configured.
type MemoryStore struct {
	mu     sync.Mutex
	botTag string
	games  map[resultKey]CompletedGame
}

type resultKey struct {
	id    string
	round int
}

func NewMemoryStore(botName string) *MemoryStore {
	return &MemoryStore{botTag: botName, games: make(map[resultKey]CompletedGame)}
}

func (m *MemoryStore) SaveGame(_ context.Context, game CompletedGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := resultKey{id: game.ID, round: game.Round}
	if _, ok := m.games[key]; !ok {
		m.games[key] = game
	}
	return nil
}

func (m *MemoryStore) GetLeaderboard(_ context.Context, limit int) ([]LeaderboardRow, error) {
	m.mu.Lock()
	wins := make(map[string]int)
	for _, g := range m.games {
		if g.Winner != "" && g.Winner != m.botTag {
			wins[g.Winner]++
		}
	}
	m.mu.Unlock()

	res := make([]LeaderboardRow, 0, len(wins))
	for name, n := range wins {
		res = append(res, LeaderboardRow{Username: name, Wins: n})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Wins != res[j].Wins {
			return res[i].Wins > res[j].Wins
		}
		return res[i].Username < res[j].Username
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) GetRegimeStats(_ context.Context) ([]RegimeStats, error) {
	m.mu.Lock()
	byRegime := make(map[string]*RegimeStats)
	for _, g := range m.games {
		s, ok := byRegime[g.Regime]
		if !ok {
			s = &RegimeStats{Regime: g.Regime}
			byRegime[g.Regime] = s
		}
		s.Games++
		switch {
		case g.Outcome == "draw":
			s.Draws++
		case g.Winner == m.botTag:
			s.BotWins++
		case g.Winner != "":
			s.HumanWins++
		}
	}
	m.mu.Unlock()

	res := make([]RegimeStats, 0, len(byRegime))
	for _, s := range byRegime {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Regime < res[j].Regime })
	return res, nil
}

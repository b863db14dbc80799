package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// CompletedGame is the result record of one finished game. A restarted
// session keeps its ID, so ID and Round together identify a result. Boards
// are not stored; games cannot be resumed.
type CompletedGame struct {
	ID        string
	Round     int
	Username  string
	Regime    string
	Winner    string
	Outcome   string
	Moves     int
	StartedAt time.Time
	EndedAt   time.Time
}

type LeaderboardRow struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
}

// RegimeStats counts outcomes per regime. BotWins and HumanWins exclude
// draws and abandoned games.
type RegimeStats struct {
	Regime    string `json:"regime"`
	Games     int    `json:"games"`
	BotWins   int    `json:"botWins"`
	HumanWins int    `json:"humanWins"`
	Draws     int    `json:"draws"`
}

type Store interface {
	SaveGame(ctx context.Context, game CompletedGame) error
	GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)
	GetRegimeStats(ctx context.Context) ([]RegimeStats, error)
}

// PostgresStore is safe for concurrent use; results are saved from
// goroutines while handlers query.
type PostgresStore struct {
	pool   *pgxpool.Pool
	botTag string
}

func NewPostgresStore(ctx context.Context, url, botName string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, botTag: botName}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) EnsureTables(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS game_results (
	id TEXT NOT NULL,
	round INTEGER NOT NULL,
	username TEXT NOT NULL,
	regime TEXT NOT NULL,
	winner TEXT,
	outcome TEXT NOT NULL,
	moves INTEGER NOT NULL,
	started_at TIMESTAMP,
	ended_at TIMESTAMP,
	PRIMARY KEY (id, round)
);
`)
	return err
}

func (p *PostgresStore) SaveGame(ctx context.Context, game CompletedGame) error {
	if p == nil || p.pool == nil {
		return nil
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO game_results (id, round, username, regime, winner, outcome, moves, started_at, ended_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (id, round) DO NOTHING`,
		game.ID, game.Round, game.Username, game.Regime, game.Winner, game.Outcome, game.Moves, game.StartedAt, game.EndedAt)
	if err != nil {
		log.Error().Err(err).Str("game", game.ID).Msg("failed to save game")
	}
	return err
}

func (p *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	rows, err := p.pool.Query(ctx, `
SELECT winner, COUNT(*) as wins
FROM game_results
WHERE winner IS NOT NULL AND winner <> '' AND winner <> $2
GROUP BY winner
ORDER BY wins DESC, winner
LIMIT $1`, limit, p.botTag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.Username, &row.Wins); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

func (p *PostgresStore) GetRegimeStats(ctx context.Context) ([]RegimeStats, error) {
	rows, err := p.pool.Query(ctx, `
SELECT regime,
	COUNT(*),
	COUNT(*) FILTER (WHERE winner = $1),
	COUNT(*) FILTER (WHERE winner <> '' AND winner <> $1),
	COUNT(*) FILTER (WHERE outcome = 'draw')
FROM game_results
GROUP BY regime
ORDER BY regime`, p.botTag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []RegimeStats
	for rows.Next() {
		var s RegimeStats
		if err := rows.Scan(&s.Regime, &s.Games, &s.BotWins, &s.HumanWins, &s.Draws); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

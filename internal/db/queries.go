package db

import (
	"context"
	"time"
)

const insertBattleHistory = `
INSERT INTO battle_history (
    id, battle_id, user_id, date, opponent_name, opponent_kind,
    own_pokemon_name, own_pokemon_sprite, opponent_pokemon_name, opponent_pokemon_sprite,
    own_score, opponent_score, outcome
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertBattleHistoryParams struct {
	ID                    string
	BattleID              string
	UserID                string
	Date                  time.Time
	OpponentName          string
	OpponentKind          string
	OwnPokemonName        string
	OwnPokemonSprite      string
	OpponentPokemonName   string
	OpponentPokemonSprite string
	OwnScore              float64
	OpponentScore         float64
	Outcome               string
}

func (q *Queries) InsertBattleHistory(ctx context.Context, arg InsertBattleHistoryParams) error {
	_, err := q.db.ExecContext(ctx, insertBattleHistory,
		arg.ID,
		arg.BattleID,
		arg.UserID,
		arg.Date,
		arg.OpponentName,
		arg.OpponentKind,
		arg.OwnPokemonName,
		arg.OwnPokemonSprite,
		arg.OpponentPokemonName,
		arg.OpponentPokemonSprite,
		arg.OwnScore,
		arg.OpponentScore,
		arg.Outcome,
	)
	return err
}

const listBattleHistoryByUser = `
SELECT id, battle_id, user_id, date, opponent_name, opponent_kind,
       own_pokemon_name, own_pokemon_sprite, opponent_pokemon_name, opponent_pokemon_sprite,
       own_score, opponent_score, outcome
FROM battle_history
WHERE user_id = ?
ORDER BY rowid DESC
LIMIT ?
`

type ListBattleHistoryByUserParams struct {
	UserID string
	Limit  int64
}

func (q *Queries) ListBattleHistoryByUser(ctx context.Context, arg ListBattleHistoryByUserParams) ([]BattleHistory, error) {
	rows, err := q.db.QueryContext(ctx, listBattleHistoryByUser, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BattleHistory
	for rows.Next() {
		var i BattleHistory
		if err := rows.Scan(
			&i.ID,
			&i.BattleID,
			&i.UserID,
			&i.Date,
			&i.OpponentName,
			&i.OpponentKind,
			&i.OwnPokemonName,
			&i.OwnPokemonSprite,
			&i.OpponentPokemonName,
			&i.OpponentPokemonSprite,
			&i.OwnScore,
			&i.OpponentScore,
			&i.Outcome,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertUserStats = `
INSERT INTO user_stats (user_id, username, total_battles, wins, losses, win_rate, updated_at)
VALUES (?1, ?2, 1, ?3, ?4, CAST(?3 AS REAL) * 100.0, ?5)
ON CONFLICT (user_id) DO UPDATE SET
    username      = excluded.username,
    total_battles = user_stats.total_battles + 1,
    wins          = user_stats.wins + excluded.wins,
    losses        = user_stats.losses + excluded.losses,
    win_rate      = CAST(user_stats.wins + excluded.wins AS REAL) * 100.0 / (user_stats.total_battles + 1),
    updated_at    = excluded.updated_at
`

type UpsertUserStatsParams struct {
	UserID    string
	Username  string
	Wins      int64
	Losses    int64
	UpdatedAt time.Time
}

// UpsertUserStats counts one battle for the user. Wins and Losses are 0 or 1.
func (q *Queries) UpsertUserStats(ctx context.Context, arg UpsertUserStatsParams) error {
	_, err := q.db.ExecContext(ctx, upsertUserStats,
		arg.UserID,
		arg.Username,
		arg.Wins,
		arg.Losses,
		arg.UpdatedAt,
	)
	return err
}

const getUserStats = `
SELECT user_id, username, total_battles, wins, losses, win_rate, updated_at
FROM user_stats
WHERE user_id = ?
`

func (q *Queries) GetUserStats(ctx context.Context, userID string) (UserStat, error) {
	row := q.db.QueryRowContext(ctx, getUserStats, userID)
	var i UserStat
	err := row.Scan(
		&i.UserID,
		&i.Username,
		&i.TotalBattles,
		&i.Wins,
		&i.Losses,
		&i.WinRate,
		&i.UpdatedAt,
	)
	return i, err
}

const listRankings = `
SELECT user_id, username, total_battles, wins, losses, win_rate, updated_at
FROM user_stats
WHERE total_battles > 0
ORDER BY wins DESC, win_rate DESC, total_battles DESC
`

func (q *Queries) ListRankings(ctx context.Context) ([]UserStat, error) {
	rows, err := q.db.QueryContext(ctx, listRankings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []UserStat
	for rows.Next() {
		var i UserStat
		if err := rows.Scan(
			&i.UserID,
			&i.Username,
			&i.TotalBattles,
			&i.Wins,
			&i.Losses,
			&i.WinRate,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertFavorite = `
INSERT INTO favorites (user_id, name, payload, created_at)
VALUES (?, ?, ?, ?)
`

type InsertFavoriteParams struct {
	UserID    string
	Name      string
	Payload   string
	CreatedAt time.Time
}

func (q *Queries) InsertFavorite(ctx context.Context, arg InsertFavoriteParams) error {
	_, err := q.db.ExecContext(ctx, insertFavorite,
		arg.UserID,
		arg.Name,
		arg.Payload,
		arg.CreatedAt,
	)
	return err
}

const listFavoritesByUser = `
SELECT user_id, name, payload, created_at
FROM favorites
WHERE user_id = ?
ORDER BY created_at ASC
`

func (q *Queries) ListFavoritesByUser(ctx context.Context, userID string) ([]Favorite, error) {
	rows, err := q.db.QueryContext(ctx, listFavoritesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Favorite
	for rows.Next() {
		var i Favorite
		if err := rows.Scan(
			&i.UserID,
			&i.Name,
			&i.Payload,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteFavorite = `
DELETE FROM favorites
WHERE user_id = ? AND name = ?
`

func (q *Queries) DeleteFavorite(ctx context.Context, userID, name string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteFavorite, userID, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Package featurestore implements the feature-store and grading ports
// on Postgres. The warehouse pipeline that populates the tables is
// owned elsewhere; this package only reads.
package featurestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/courtside/propcast/internal/domain"
	"github.com/courtside/propcast/internal/ports"
)

// DB abstracts the pgx pool operations the store needs, so tests can
// substitute a stub connection.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ ports.FeatureStore   = (*PostgresStore)(nil)
	_ ports.GradingService = (*PostgresStore)(nil)
	_ DB                   = (*pgxpool.Pool)(nil)
)

// PostgresStore reads prediction features, slate membership, and graded
// outcomes from Postgres. Connectivity failures surface as
// domain.TransientError so workers retry with backoff; a player with no
// feature row surfaces as domain.ErrInsufficientData.
type PostgresStore struct {
	db     DB
	logger *zap.Logger
}

// NewPostgresStore creates a store over an existing pool.
func NewPostgresStore(db DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.Named("featurestore")}
}

const contextQuery = `
SELECT opponent_id, opponent_tier,
       last5_avg, last10_avg, season_avg, games_played,
       fatigue_score, rest_days, venue,
       pace_score, usage_score, zone_mismatch_score,
       betting_line, feature_vector
FROM player_features
WHERE player_id = $1 AND contest_id = $2`

const gameLogQuery = `
SELECT points, opponent_tier, rest_days, venue, form_bucket, played_at
FROM game_logs
WHERE player_id = $1
ORDER BY played_at DESC
LIMIT 20`

const shotZoneQuery = `
SELECT zone, attempt_share, efficiency
FROM shot_zones
WHERE player_id = $1`

const zoneDefenseQuery = `
SELECT zone, allowed_pct, league_avg_pct
FROM zone_defense
WHERE team_id = $1`

// LoadContext assembles the full context snapshot for one
// (player, contest) pair. Optional sections (game logs, shot zones,
// opponent defense, feature vector) stay empty when the warehouse has
// no rows; the scoring methods abstain on their own terms.
func (s *PostgresStore) LoadContext(ctx context.Context, playerID, contestID string) (*domain.PredictionContext, error) {
	pc := &domain.PredictionContext{
		PlayerID:  playerID,
		ContestID: contestID,
		AsOf:      time.Now().UTC(),
	}

	var venue string
	err := s.db.QueryRow(ctx, contextQuery, playerID, contestID).Scan(
		&pc.OpponentID, &pc.OpponentTier,
		&pc.Last5Avg, &pc.Last10Avg, &pc.SeasonAvg, &pc.GamesPlayed,
		&pc.FatigueScore, &pc.RestDays, &venue,
		&pc.PaceScore, &pc.UsageScore, &pc.ZoneMismatchScore,
		&pc.BettingLine, &pc.FeatureVector,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("player %s contest %s: %w", playerID, contestID, domain.ErrInsufficientData)
	}
	if err != nil {
		return nil, domain.NewTransientError("featurestore.context", err)
	}
	pc.Venue = domain.Venue(venue)

	if pc.RecentGames, err = s.recentGames(ctx, playerID); err != nil {
		return nil, err
	}
	if pc.ShotZones, err = s.shotZones(ctx, playerID); err != nil {
		return nil, err
	}
	if pc.OpponentZoneDefense, err = s.zoneDefense(ctx, pc.OpponentID); err != nil {
		return nil, err
	}

	return pc, nil
}

func (s *PostgresStore) recentGames(ctx context.Context, playerID string) ([]domain.GameLog, error) {
	rows, err := s.db.Query(ctx, gameLogQuery, playerID)
	if err != nil {
		return nil, domain.NewTransientError("featurestore.game_logs", err)
	}
	defer rows.Close()

	var games []domain.GameLog
	for rows.Next() {
		var g domain.GameLog
		var venue string
		if err := rows.Scan(&g.Points, &g.OpponentTier, &g.RestDays, &venue, &g.FormBucket, &g.PlayedAt); err != nil {
			return nil, fmt.Errorf("scan game log: %w", err)
		}
		g.Venue = domain.Venue(venue)
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransientError("featurestore.game_logs", err)
	}
	return games, nil
}

func (s *PostgresStore) shotZones(ctx context.Context, playerID string) ([]domain.ZoneShare, error) {
	rows, err := s.db.Query(ctx, shotZoneQuery, playerID)
	if err != nil {
		return nil, domain.NewTransientError("featurestore.shot_zones", err)
	}
	defer rows.Close()

	var zones []domain.ZoneShare
	for rows.Next() {
		var zs domain.ZoneShare
		var zone string
		if err := rows.Scan(&zone, &zs.AttemptShare, &zs.Efficiency); err != nil {
			return nil, fmt.Errorf("scan shot zone: %w", err)
		}
		zs.Zone = domain.Zone(zone)
		zones = append(zones, zs)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransientError("featurestore.shot_zones", err)
	}
	return zones, nil
}

func (s *PostgresStore) zoneDefense(ctx context.Context, opponentID string) (map[domain.Zone]domain.ZoneDefense, error) {
	if opponentID == "" {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, zoneDefenseQuery, opponentID)
	if err != nil {
		return nil, domain.NewTransientError("featurestore.zone_defense", err)
	}
	defer rows.Close()

	defense := make(map[domain.Zone]domain.ZoneDefense)
	for rows.Next() {
		var zone string
		var zd domain.ZoneDefense
		if err := rows.Scan(&zone, &zd.AllowedPct, &zd.LeagueAvgPct); err != nil {
			return nil, fmt.Errorf("scan zone defense: %w", err)
		}
		defense[domain.Zone(zone)] = zd
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransientError("featurestore.zone_defense", err)
	}
	if len(defense) == 0 {
		return nil, nil
	}
	return defense, nil
}

// SlatePlayers resolves every (player, contest) pair scheduled for a
// contest date.
func (s *PostgresStore) SlatePlayers(ctx context.Context, contestDate string) ([]domain.SlateEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT player_id, contest_id FROM slate_entries WHERE contest_date = $1`,
		contestDate)
	if err != nil {
		return nil, domain.NewTransientError("featurestore.slate", err)
	}
	defer rows.Close()

	var slate []domain.SlateEntry
	for rows.Next() {
		var entry domain.SlateEntry
		if err := rows.Scan(&entry.PlayerID, &entry.ContestID); err != nil {
			return nil, fmt.Errorf("scan slate entry: %w", err)
		}
		slate = append(slate, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransientError("featurestore.slate", err)
	}
	return slate, nil
}

// GradedOutcomes returns every graded outcome inside the trailing
// window, consumed by the weight updater.
func (s *PostgresStore) GradedOutcomes(ctx context.Context, window time.Duration) ([]domain.GradedOutcome, error) {
	rows, err := s.db.Query(ctx,
		`SELECT system_id, predicted, actual, graded_at
		 FROM graded_outcomes
		 WHERE graded_at >= $1`,
		time.Now().UTC().Add(-window))
	if err != nil {
		return nil, domain.NewTransientError("featurestore.graded_outcomes", err)
	}
	defer rows.Close()

	var outcomes []domain.GradedOutcome
	for rows.Next() {
		var o domain.GradedOutcome
		var system string
		if err := rows.Scan(&system, &o.Predicted, &o.Actual, &o.GradedAt); err != nil {
			return nil, fmt.Errorf("scan graded outcome: %w", err)
		}
		o.SystemID = domain.SystemID(system)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransientError("featurestore.graded_outcomes", err)
	}
	return outcomes, nil
}

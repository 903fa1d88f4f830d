package domain

import (
	"time"
)

// Venue indicates where the player's contest is being played.
type Venue string

// Supported venue values.
const (
	// VenueHome indicates the player's team is hosting the contest.
	VenueHome Venue = "home"

	// VenueAway indicates the player's team is visiting.
	VenueAway Venue = "away"
)

// Zone identifies a region of the floor for shot-distribution and
// defensive profiles.
type Zone string

// Supported shot zones.
const (
	ZoneRim      Zone = "rim"
	ZonePaint    Zone = "paint"
	ZoneMidRange Zone = "midrange"
	ZoneThree    Zone = "three"
)

// ZoneShare describes how much of a player's offense flows through one
// zone and how efficiently they convert there.
type ZoneShare struct {
	// Zone is the floor region this share describes.
	Zone Zone `json:"zone"`

	// AttemptShare is the fraction of the player's attempts taken from
	// this zone (0.0 to 1.0). Shares across all zones sum to 1.
	AttemptShare float64 `json:"attempt_share"`

	// Efficiency is the player's points-per-attempt from this zone.
	Efficiency float64 `json:"efficiency"`
}

// ZoneDefense describes an opponent's defensive performance in one zone
// relative to the rest of the league.
type ZoneDefense struct {
	// AllowedPct is the scoring percentage the opponent allows in this
	// zone.
	AllowedPct float64 `json:"allowed_pct"`

	// LeagueAvgPct is the league-average scoring percentage for the
	// same zone, used to express the opponent's defense as a signed
	// weakness.
	LeagueAvgPct float64 `json:"league_avg_pct"`
}

// Weakness returns the opponent's zone weakness in percentage points.
// Positive values mean the opponent defends this zone worse than
// league average, which favors the shooter.
func (z ZoneDefense) Weakness() float64 { return z.AllowedPct - z.LeagueAvgPct }

// GameLog is one historical game used by the similarity model's
// case-based retrieval and by the baseline model's consistency
// estimate.
type GameLog struct {
	// Points is the player's actual scoring output in the game.
	Points float64 `json:"points"`

	// OpponentTier buckets the opposing defense (1 = elite, 5 = worst).
	OpponentTier int `json:"opponent_tier"`

	// RestDays is how many days off the player had before the game.
	RestDays int `json:"rest_days"`

	// Venue is where the game was played from the player's perspective.
	Venue Venue `json:"venue"`

	// FormBucket captures the player's form entering the game:
	// -1 cold, 0 neutral, +1 hot.
	FormBucket int `json:"form_bucket"`

	// PlayedAt records when the game took place.
	PlayedAt time.Time `json:"played_at"`
}

// PredictionContext is the immutable snapshot of everything the scoring
// methods need for one (player, contest) pair. It is assembled fresh
// for each dispatched work item, never mutated, and discarded once the
// worker finishes.
type PredictionContext struct {
	// PlayerID identifies the player being predicted.
	PlayerID string `json:"player_id"`

	// ContestID identifies the scheduled contest.
	ContestID string `json:"contest_id"`

	// OpponentID identifies the opposing team.
	OpponentID string `json:"opponent_id"`

	// OpponentTier buckets the opposing defense (1 = elite, 5 =
	// worst), matching GameLog.OpponentTier for case-based retrieval.
	OpponentTier int `json:"opponent_tier"`

	// Last5Avg, Last10Avg, and SeasonAvg are the player's rolling
	// scoring averages over the named windows.
	Last5Avg  float64 `json:"last5_avg"`
	Last10Avg float64 `json:"last10_avg"`
	SeasonAvg float64 `json:"season_avg"`

	// GamesPlayed is the number of games available this season. The
	// baseline method abstains below its minimum.
	GamesPlayed int `json:"games_played"`

	// RecentGames holds the trailing game logs used for case-based
	// retrieval and consistency scoring, most recent first.
	RecentGames []GameLog `json:"recent_games,omitempty"`

	// FatigueScore rates how rested the player is (0 exhausted to 100
	// fully fresh). 70 is the neutral point.
	FatigueScore float64 `json:"fatigue_score"`

	// ShotZones is the player's shot-distribution profile.
	ShotZones []ZoneShare `json:"shot_zones,omitempty"`

	// OpponentZoneDefense maps each zone to the opponent's defensive
	// profile there.
	OpponentZoneDefense map[Zone]ZoneDefense `json:"opponent_zone_defense,omitempty"`

	// ZoneMismatchScore is the precomputed signed mismatch between the
	// player's primary zone and the opponent's defense of it. Positive
	// favors the player.
	ZoneMismatchScore float64 `json:"zone_mismatch_score"`

	// RestDays is the number of days since the player's last game.
	// Zero indicates the back half of a back-to-back.
	RestDays int `json:"rest_days"`

	// Venue is home or away for the player's team.
	Venue Venue `json:"venue"`

	// PaceScore is the projected pace impact in points, signed, with 0
	// neutral.
	PaceScore float64 `json:"pace_score"`

	// UsageScore is the projected usage impact in points, signed, with
	// 0 neutral.
	UsageScore float64 `json:"usage_score"`

	// FeatureVector is the fixed-length input for the learned model.
	// Missing features are NaN.
	FeatureVector []float64 `json:"feature_vector,omitempty"`

	// BettingLine is the current market line for the player's scoring
	// prop.
	BettingLine float64 `json:"betting_line"`

	// AsOf records when the snapshot was assembled.
	AsOf time.Time `json:"as_of"`
}

// FormBucket classifies the player's current form by comparing the
// last-5 average against the season average: -1 cold, 0 neutral,
// +1 hot.
func (c *PredictionContext) FormBucket() int {
	const threshold = 2.5
	delta := c.Last5Avg - c.SeasonAvg
	switch {
	case delta > threshold:
		return 1
	case delta < -threshold:
		return -1
	default:
		return 0
	}
}

// PrimaryZone returns the zone carrying the largest share of the
// player's attempts, and false when no shot-zone data is available.
func (c *PredictionContext) PrimaryZone() (ZoneShare, bool) {
	if len(c.ShotZones) == 0 {
		return ZoneShare{}, false
	}
	best := c.ShotZones[0]
	for _, zs := range c.ShotZones[1:] {
		if zs.AttemptShare > best.AttemptShare {
			best = zs
		}
	}
	return best, true
}

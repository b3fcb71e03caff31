package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/channel-digest/internal/core/domain"
)

// AddStats increments the (user, day) counters, creating the row on first use.
// Increments from concurrent or repeated runs sum up.
func (db *DB) AddStats(ctx context.Context, userID int64, day time.Time, d domain.StatsDelta) error {
	return db.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO processing_stats AS ps (
				user_id, date, messages_collected, messages_processed, sources_processed,
				messages_filtered, topics_matched, collection_time, filtering_time
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (user_id, date) DO UPDATE SET
				messages_collected = ps.messages_collected + EXCLUDED.messages_collected,
				messages_processed = ps.messages_processed + EXCLUDED.messages_processed,
				sources_processed = ps.sources_processed + EXCLUDED.sources_processed,
				messages_filtered = ps.messages_filtered + EXCLUDED.messages_filtered,
				topics_matched = ps.topics_matched + EXCLUDED.topics_matched,
				collection_time = ps.collection_time + EXCLUDED.collection_time,
				filtering_time = ps.filtering_time + EXCLUDED.filtering_time,
				updated_at = now()
		`, userID, toDate(domain.DayKey(day)),
			safeIntToInt32(d.MessagesCollected), safeIntToInt32(d.MessagesProcessed), safeIntToInt32(d.SourcesProcessed),
			safeIntToInt32(d.MessagesFiltered), safeIntToInt32(d.TopicsMatched),
			d.CollectionTime.Seconds(), d.FilteringTime.Seconds())
		if err != nil {
			return fmt.Errorf("add stats: %w", err)
		}

		return nil
	})
}

// GetStats returns the counters for (user, day); a missing row yields zeroes.
func (db *DB) GetStats(ctx context.Context, userID int64, day time.Time) (domain.DailyStats, error) {
	key := domain.DayKey(day)
	stats := domain.DailyStats{UserID: userID, Date: key}

	var (
		date                          pgtype.Date
		collected, processed, sources int32
		filtered, topics              int32
		collectionSecs, filteringSecs float64
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT date, messages_collected, messages_processed, sources_processed,
		       messages_filtered, topics_matched, collection_time, filtering_time
		FROM processing_stats
		WHERE user_id = $1 AND date = $2
	`, userID, toDate(key)).Scan(&date, &collected, &processed, &sources, &filtered, &topics, &collectionSecs, &filteringSecs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stats, nil
		}

		return domain.DailyStats{}, fmt.Errorf("get stats: %w", err)
	}

	stats.MessagesCollected = int(collected)
	stats.MessagesProcessed = int(processed)
	stats.SourcesProcessed = int(sources)
	stats.MessagesFiltered = int(filtered)
	stats.TopicsMatched = int(topics)
	stats.CollectionTime = secondsToDuration(collectionSecs)
	stats.FilteringTime = secondsToDuration(filteringSecs)

	return stats, nil
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

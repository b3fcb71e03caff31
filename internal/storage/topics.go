package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
)

const pgUniqueViolation = "23505"

// ErrTopicExists is returned when a user already has the same topic.
var ErrTopicExists = errors.New("topic already exists")

// ListUserTopics returns a user's topics with their cached embeddings.
func (db *DB) ListUserTopics(ctx context.Context, userID int64) ([]domain.Topic, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, topic, cached_embedding
		FROM user_topics
		WHERE user_id = $1
		ORDER BY created_at, topic
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.Topic

	for rows.Next() {
		var (
			t   domain.Topic
			id  pgtype.UUID
			vec *pgvector.Vector
		)

		if err := rows.Scan(&id, &t.UserID, &t.Text, &vec); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}

		t.ID = fromUUID(id)
		if vec != nil {
			t.CachedEmbedding = vec.Slice()
		}

		topics = append(topics, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}

	return topics, nil
}

// AddTopic declares a new interest for a user.
func (db *DB) AddTopic(ctx context.Context, userID int64, text string) (domain.Topic, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Topic{}, fmt.Errorf("add topic: %w", coreerrors.ErrInvalidInput)
	}

	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO user_topics (user_id, topic) VALUES ($1, $2) RETURNING id
	`, userID, SanitizeUTF8(text)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.Topic{}, fmt.Errorf("add topic %q: %w", text, ErrTopicExists)
		}

		return domain.Topic{}, fmt.Errorf("add topic: %w", err)
	}

	return domain.Topic{ID: fromUUID(id), UserID: userID, Text: text}, nil
}

// SaveTopicEmbedding caches the vector of a topic.
func (db *DB) SaveTopicEmbedding(ctx context.Context, topicID uuid.UUID, embedding []float32) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE user_topics SET cached_embedding = $2 WHERE id = $1
	`, toUUID(topicID), pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("save topic embedding: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("topic %s: %w", topicID, coreerrors.ErrNotFound)
	}

	return nil
}

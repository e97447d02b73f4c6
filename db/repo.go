package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/n0rdy/guardian/common"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
)

type GuardianRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dbPath string) (*GuardianRepo, error) {
	db, err := sql.Open("sqlite", dbPath+dsnPragmas)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &GuardianRepo{
		db: db,
	}, nil
}

// GetQueue returns the queue record together with its owner, or nil if the queue has never been seen.
func (gr *GuardianRepo) GetQueue(name string, ctx context.Context) (*QueueRecord, error) {
	query := `
		SELECT q.name, q.vhost, q.created_at, q.updated_at, u.username, u.email, u.created_at
		FROM queues q
		LEFT JOIN users u ON u.username = q.owner
		WHERE q.name = ?;`

	var (
		record         QueueRecord
		ownerUsername  sql.NullString
		ownerEmail     sql.NullString
		ownerCreatedAt sql.NullInt64
	)
	err := gr.db.QueryRowContext(ctx, query,
		name, // WHERE q.name = ?
	).Scan(&record.Name, &record.Vhost, &record.CreatedAt, &record.UpdatedAt, &ownerUsername, &ownerEmail, &ownerCreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("queue", name).Msg("failed to select queue")
		return nil, common.ErrInternal
	}

	if ownerUsername.Valid {
		record.Owner = &User{
			Username:  ownerUsername.String,
			Email:     ownerEmail.String,
			CreatedAt: ownerCreatedAt.Int64,
		}
	}
	return &record, nil
}

// CreateQueue inserts an ownerless queue record unless one with the same name already exists,
// and returns whatever is stored afterwards. Concurrent first sightings of the same queue end up with a single row.
func (gr *GuardianRepo) CreateQueue(newQueue *NewQueue, ctx context.Context) (*QueueRecord, error) {
	query := `
		INSERT INTO queues (name, vhost, owner, created_at, updated_at)
		VALUES (?, ?, NULL, ?, ?)
		ON CONFLICT (name) DO NOTHING;`

	result, err := gr.db.ExecContext(ctx, query,
		newQueue.Name,      // name
		newQueue.Vhost,     // vhost
		newQueue.CreatedAt, // created_at
		newQueue.CreatedAt, // updated_at
	)
	if err != nil {
		log.Error().Err(err).Str("queue", newQueue.Name).Msg("failed to insert new queue")
		return nil, common.ErrInternal
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error().Err(err).Str("queue", newQueue.Name).Msg("failed to get rows affected after queue insert")
		return nil, common.ErrInternal
	}
	if rowsAffected == 0 {
		log.Warn().Str("queue", newQueue.Name).Msg("queue was already created by someone else, using the stored record")
	}

	record, err := gr.GetQueue(newQueue.Name, ctx)
	if err != nil {
		return nil, err
	}
	if record == nil {
		log.Error().Str("queue", newQueue.Name).Msg("queue disappeared right after being created")
		return nil, common.ErrNotFoundQueue
	}
	return record, nil
}

func (gr *GuardianRepo) UpdateQueueOwner(name string, owner string, ctx context.Context) error {
	query := `
		UPDATE queues
		SET
			owner = ?,
			updated_at = ?
		WHERE name = ?;`

	result, err := gr.db.ExecContext(ctx, query,
		owner,                  // owner = ?
		time.Now().UnixMilli(), // updated_at = ?
		name,                   // WHERE name = ?
	)
	if err != nil {
		log.Error().Err(err).Str("queue", name).Str("owner", owner).Msg("failed to update queue owner")
		return common.ErrInternal
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error().Err(err).Str("queue", name).Msg("failed to get rows affected after owner update")
		return common.ErrInternal
	}
	if rowsAffected == 0 {
		return common.ErrNotFoundQueue
	}
	return nil
}

func (gr *GuardianRepo) SelectAllQueues(ctx context.Context) ([]QueueRecord, error) {
	query := `
		SELECT q.name, q.vhost, q.created_at, q.updated_at, u.username, u.email, u.created_at
		FROM queues q
		LEFT JOIN users u ON u.username = q.owner
		ORDER BY q.name ASC;`

	rows, err := gr.db.QueryContext(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("failed to select queues")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	var records []QueueRecord
	for rows.Next() {
		var (
			record         QueueRecord
			ownerUsername  sql.NullString
			ownerEmail     sql.NullString
			ownerCreatedAt sql.NullInt64
		)
		if err := rows.Scan(&record.Name, &record.Vhost, &record.CreatedAt, &record.UpdatedAt, &ownerUsername, &ownerEmail, &ownerCreatedAt); err != nil {
			log.Error().Err(err).Msg("failed to scan queue row")
			return nil, common.ErrInternal
		}
		if ownerUsername.Valid {
			record.Owner = &User{
				Username:  ownerUsername.String,
				Email:     ownerEmail.String,
				CreatedAt: ownerCreatedAt.Int64,
			}
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to iterate over queue rows")
		return nil, common.ErrInternal
	}
	return records, nil
}

// GetUser returns nil if no user with the given username is registered.
func (gr *GuardianRepo) GetUser(username string, ctx context.Context) (*User, error) {
	query := `
		SELECT username, email, created_at
		FROM users
		WHERE username = ?;`

	var user User
	err := gr.db.QueryRowContext(ctx, query,
		username, // WHERE username = ?
	).Scan(&user.Username, &user.Email, &user.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("failed to select user")
		return nil, common.ErrInternal
	}
	return &user, nil
}

func (gr *GuardianRepo) InsertUser(newUser *NewUser, ctx context.Context) error {
	query := `
		INSERT INTO users (username, email, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO NOTHING;`

	result, err := gr.db.ExecContext(ctx, query,
		newUser.Username,  // username
		newUser.Email,     // email
		newUser.CreatedAt, // created_at
	)
	if err != nil {
		log.Error().Err(err).Str("username", newUser.Username).Msg("failed to insert new user")
		return common.ErrInternal
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error().Err(err).Str("username", newUser.Username).Msg("failed to get rows affected after user insert")
		return common.ErrInternal
	}
	if rowsAffected == 0 {
		return common.ErrConflictUser
	}
	return nil
}

func (gr *GuardianRepo) SelectAllUsers(ctx context.Context) ([]User, error) {
	query := `
		SELECT username, email, created_at
		FROM users
		ORDER BY username ASC;`

	rows, err := gr.db.QueryContext(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("failed to select users")
		return nil, common.ErrInternal
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.Username, &user.Email, &user.CreatedAt); err != nil {
			log.Error().Err(err).Msg("failed to scan user row")
			return nil, common.ErrInternal
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("failed to iterate over user rows")
		return nil, common.ErrInternal
	}
	return users, nil
}

func (gr *GuardianRepo) Ping(ctx context.Context) error {
	return gr.db.PingContext(ctx)
}

// Optimize runs SQLite's own query planner maintenance. Safe to call periodically.
func (gr *GuardianRepo) Optimize(ctx context.Context) {
	if _, err := gr.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		log.Error().Err(err).Msg("failed to optimize database")
		return
	}
	log.Debug().Msg("database optimized")
}

func (gr *GuardianRepo) Close() error {
	return gr.db.Close()
}

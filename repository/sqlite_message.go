package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hatchlab/hatchdesk/database"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
)

const messageWithSenderColumns = `
	m.id, m.conversation_id, m.sender_id, m.content, m.created_at, m.deleted_at,
	u.id, u.email, u.name, u.role, u.avatar_url, u.created_at`

type sqliteMessageRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteMessageRepo returns a MessageRepository over db.
func NewSQLiteMessageRepo(db *sql.DB) MessageRepository {
	return &sqliteMessageRepo{db: db, now: time.Now}
}

func (r *sqliteMessageRepo) Create(ctx context.Context, message *models.Message) error {
	now := r.now().UTC()

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO messages (conversation_id, sender_id, content, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id, created_at`,
			message.ConversationID, message.SenderID, message.Content, now,
		).Scan(&message.ID, &message.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE conversations SET last_message_id = ?, updated_at = ? WHERE id = ?`,
			message.ID, now, message.ConversationID,
		)
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: conversation %d", pkg.ErrNotFound, message.ConversationID)
		}

		return nil
	})
}

func (r *sqliteMessageRepo) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `
		SELECT ` + messageWithSenderColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = ?`

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %d", pkg.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func (r *sqliteMessageRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Message, error) {
	result := make(map[int64]models.Message, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT ` + messageWithSenderColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id IN (` + placeholders(len(ids)) + `)`

	rows, err := r.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		result[msg.ID] = *msg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return result, nil
}

func (r *sqliteMessageRepo) ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]models.Message, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := `
		SELECT ` + messageWithSenderColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.id DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, total, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	u := &models.User{}
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt, &m.DeletedAt,
		&u.ID, &u.Email, &u.Name, &u.Role, &u.AvatarURL, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Sender = u
	return m, nil
}

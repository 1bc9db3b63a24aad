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

const conversationColumns = `c.id, c.title, c.is_group, c.last_message_id, c.created_at, c.updated_at`

// sortColumns whitelists the columns a list may be ordered by.
var sortColumns = map[string]string{
	models.SortUpdatedAt: "c.updated_at",
	models.SortCreatedAt: "c.created_at",
	models.SortID:        "c.id",
}

type sqliteConversationRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteConversationRepo returns a ConversationRepository over db. It
// needs the pool itself because Create runs in a transaction.
func NewSQLiteConversationRepo(db *sql.DB) ConversationRepository {
	return &sqliteConversationRepo{db: db, now: time.Now}
}

func (r *sqliteConversationRepo) Create(ctx context.Context, conv *models.Conversation, participants []models.ConversationParticipant) error {
	now := r.now().UTC()

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO conversations (title, is_group, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			RETURNING id, created_at, updated_at`,
			conv.Title, conv.IsGroup, now, now,
		).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}

		conv.Participants = make([]models.ConversationParticipant, 0, len(participants))
		for _, p := range participants {
			if p.Role == "" {
				p.Role = models.ParticipantRoleMember
			}
			p.ConversationID = conv.ID

			err := tx.QueryRowContext(ctx, `
				INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
				VALUES (?, ?, ?, ?)
				RETURNING id, joined_at`,
				p.ConversationID, p.UserID, p.Role, now,
			).Scan(&p.ID, &p.JoinedAt)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: user %d is already a participant", pkg.ErrAlreadyExists, p.UserID)
				}
				return fmt.Errorf("failed to add participant %d: %w", p.UserID, err)
			}
			conv.Participants = append(conv.Participants, p)
		}

		return nil
	})
}

func (r *sqliteConversationRepo) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.id = ?`

	conv, err := scanConversation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation %d", pkg.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (r *sqliteConversationRepo) FindDirect(ctx context.Context, userA, userB int64) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id = ?
		JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id = ?
		WHERE c.is_group = 0
		ORDER BY c.id
		LIMIT 1`

	conv, err := scanConversation(r.db.QueryRowContext(ctx, query, userA, userB))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find direct conversation: %w", err)
	}
	return conv, nil
}

// ListForUser counts as unread the messages of other senders after the
// user's read position. Deleted messages are not counted.
func (r *sqliteConversationRepo) ListForUser(ctx context.Context, userID int64, p models.ListParams) ([]models.ConversationWithUnread, int, error) {
	column, ok := sortColumns[p.Sort]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unsupported sort %q", pkg.ErrBadRequest, p.Sort)
	}
	dir := "DESC"
	if p.Order == models.OrderAsc {
		dir = "ASC"
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_participants WHERE user_id = ?`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	query := `
		SELECT ` + conversationColumns + `,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id
			   AND m.sender_id != p.user_id
			   AND m.deleted_at IS NULL
			   AND m.id > COALESCE(p.last_read_message_id, 0)
			) AS unread_count
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = ?
		ORDER BY ` + column + ` ` + dir + `, c.id ` + dir + `
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, userID, p.PerPage, models.Offset(p.Page, p.PerPage))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	convs := []models.ConversationWithUnread{}
	for rows.Next() {
		var c models.ConversationWithUnread
		if err := rows.Scan(
			&c.ID, &c.Title, &c.IsGroup, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt,
			&c.UnreadCount,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating conversation rows: %w", err)
	}

	return convs, total, nil
}

func (r *sqliteConversationRepo) GetParticipants(ctx context.Context, conversationIDs []int64) (map[int64][]models.ConversationParticipant, error) {
	result := make(map[int64][]models.ConversationParticipant, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT p.id, p.conversation_id, p.user_id, p.role, p.last_read_message_id, p.joined_at,
			u.id, u.email, u.name, u.role, u.avatar_url, u.created_at
		FROM conversation_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id IN (` + placeholders(len(conversationIDs)) + `)
		ORDER BY p.conversation_id, p.id`

	rows, err := r.db.QueryContext(ctx, query, int64Args(conversationIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.ConversationParticipant
		var u models.User
		if err := rows.Scan(
			&p.ID, &p.ConversationID, &p.UserID, &p.Role, &p.LastReadMessageID, &p.JoinedAt,
			&u.ID, &u.Email, &u.Name, &u.Role, &u.AvatarURL, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		p.User = &u
		result[p.ConversationID] = append(result[p.ConversationID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}

	return result, nil
}

func (r *sqliteConversationRepo) GetParticipant(ctx context.Context, conversationID, userID int64) (*models.ConversationParticipant, error) {
	query := `
		SELECT id, conversation_id, user_id, role, last_read_message_id, joined_at
		FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ?`

	p := &models.ConversationParticipant{}
	err := r.db.QueryRowContext(ctx, query, conversationID, userID).Scan(
		&p.ID, &p.ConversationID, &p.UserID, &p.Role, &p.LastReadMessageID, &p.JoinedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *sqliteConversationRepo) ParticipantUserIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = ? ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant ids: %w", err)
	}
	return ids, nil
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(&c.ID, &c.Title, &c.IsGroup, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

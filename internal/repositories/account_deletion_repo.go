package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pslattery/gatehouse/internal/database"
	"github.com/pslattery/gatehouse/internal/models"
)

type AccountDeletionRepository struct {
	pool *pgxpool.Pool
}

func NewAccountDeletionRepository(db *database.DB) *AccountDeletionRepository {
	return &AccountDeletionRepository{pool: db.Pool}
}

// Create writes the audit record. Callers must write this row before
// deleting the user so a crash between the two steps never loses the trail.
func (r *AccountDeletionRepository) Create(ctx context.Context, record *models.AccountDeletion) (*models.AccountDeletion, error) {
	record.ID = uuid.New().String()
	record.DeletedAt = time.Now()

	query := `
		INSERT INTO account_deletions (id, user_id, email, reason, deleted_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID, record.UserID, record.Email, record.Reason, record.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return record, nil
}

func (r *AccountDeletionRepository) GetByUserID(ctx context.Context, userID string) (*models.AccountDeletion, error) {
	query := `
		SELECT id, user_id, email, reason, deleted_at
		FROM account_deletions WHERE user_id = $1
	`

	var record models.AccountDeletion
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&record.ID, &record.UserID, &record.Email, &record.Reason, &record.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &record, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/manorfm/connectM/internal/domain"
	"github.com/manorfm/connectM/internal/infrastructure/database"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

const selectConnections = `
	SELECT id, user_id, provider_id, provider_user_id, rank, display_name, profile_url, image_url,
		access_token, secret, refresh_token, expires_at, created_at, updated_at
	FROM user_connections`

// PostgresConnectionRepository implements UsersConnectionRepository using PostgreSQL
type PostgresConnectionRepository struct {
	db        *database.Postgres
	providers domain.ProviderLister
	sealer    domain.TokenSealer
	logger    *zap.Logger
}

// NewConnectionRepository creates a new PostgresConnectionRepository
func NewConnectionRepository(db *database.Postgres, providers domain.ProviderLister, sealer domain.TokenSealer, logger *zap.Logger) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{
		db:        db,
		providers: providers,
		sealer:    sealer,
		logger:    logger,
	}
}

// ForUser returns the repository of userID
func (r *PostgresConnectionRepository) ForUser(userID string) domain.ConnectionRepository {
	return &postgresUserConnections{PostgresConnectionRepository: r, userID: userID}
}

// Ping checks the database connection
func (r *PostgresConnectionRepository) Ping(ctx context.Context) error {
	return r.db.Ping()
}

type postgresUserConnections struct {
	*PostgresConnectionRepository
	userID string
}

func (r *postgresUserConnections) FindAllConnections(ctx context.Context) (map[string][]*domain.Connection, error) {
	connections, err := r.query(ctx, selectConnections+`
		WHERE user_id = $1
		ORDER BY provider_id, rank`, r.userID)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]*domain.Connection)
	for _, providerID := range r.providers.RegisteredProviderIDs() {
		result[providerID] = []*domain.Connection{}
	}
	for _, conn := range connections {
		result[conn.Key.ProviderID] = append(result[conn.Key.ProviderID], conn)
	}
	return result, nil
}

func (r *postgresUserConnections) FindConnections(ctx context.Context, providerID string) ([]*domain.Connection, error) {
	return r.query(ctx, selectConnections+`
		WHERE user_id = $1 AND provider_id = $2
		ORDER BY rank`, r.userID, providerID)
}

func (r *postgresUserConnections) FindConnection(ctx context.Context, key domain.ConnectionKey) (*domain.Connection, error) {
	row := r.db.QueryRow(ctx, selectConnections+`
		WHERE user_id = $1 AND provider_id = $2 AND provider_user_id = $3`,
		r.userID, key.ProviderID, key.ProviderUserID)
	return r.scanOne(row)
}

func (r *postgresUserConnections) FindPrimaryConnection(ctx context.Context, providerID string) (*domain.Connection, error) {
	row := r.db.QueryRow(ctx, selectConnections+`
		WHERE user_id = $1 AND provider_id = $2
		ORDER BY rank
		LIMIT 1`, r.userID, providerID)
	return r.scanOne(row)
}

func (r *postgresUserConnections) AddConnection(ctx context.Context, conn *domain.Connection) error {
	sealed, err := r.seal(conn.Credentials)
	if err != nil {
		return err
	}

	now := time.Now()
	if conn.ID == (ulid.ULID{}) {
		conn.ID = ulid.Make()
	}
	conn.UserID = r.userID
	conn.CreatedAt = now
	conn.UpdatedAt = now

	// rank and uniqueness are settled by the single statement
	err = r.db.QueryRow(ctx, `
		INSERT INTO user_connections (id, user_id, provider_id, provider_user_id, rank, display_name,
			profile_url, image_url, access_token, secret, refresh_token, expires_at, created_at, updated_at)
		SELECT $1, $2, $3, $4, COALESCE(MAX(rank), 0) + 1, $5, $6, $7, $8, $9, $10, $11::timestamptz, $12::timestamptz, $12::timestamptz
		FROM user_connections
		WHERE user_id = $2 AND provider_id = $3
		ON CONFLICT (user_id, provider_id, provider_user_id) DO NOTHING
		RETURNING rank
	`, conn.ID.String(), r.userID, conn.Key.ProviderID, conn.Key.ProviderUserID, conn.DisplayName,
		conn.ProfileURL, conn.ImageURL, sealed.AccessToken, sealed.Secret, sealed.RefreshToken,
		conn.Credentials.ExpiresAt, now).Scan(&conn.Rank)

	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		return domain.NewDuplicateConnectionError(conn)
	}
	if err != nil {
		r.logger.Error("Failed to insert connection",
			zap.String("user_id", r.userID),
			zap.String("provider_id", conn.Key.ProviderID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrDatabaseQuery, err)
	}
	return nil
}

func (r *postgresUserConnections) UpdateConnection(ctx context.Context, conn *domain.Connection) error {
	sealed, err := r.seal(conn.Credentials)
	if err != nil {
		return err
	}

	tag, err := r.db.ExecRaw(ctx, `
		UPDATE user_connections
		SET display_name = $1, profile_url = $2, image_url = $3, access_token = $4, secret = $5,
			refresh_token = $6, expires_at = $7, updated_at = $8
		WHERE user_id = $9 AND provider_id = $10 AND provider_user_id = $11
	`, conn.DisplayName, conn.ProfileURL, conn.ImageURL, sealed.AccessToken, sealed.Secret,
		sealed.RefreshToken, conn.Credentials.ExpiresAt, conn.UpdatedAt,
		r.userID, conn.Key.ProviderID, conn.Key.ProviderUserID)
	if err != nil {
		r.logger.Error("Failed to update connection", zap.String("connection", conn.Key.String()), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrDatabaseQuery, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func (r *postgresUserConnections) RemoveConnection(ctx context.Context, key domain.ConnectionKey) error {
	err := r.db.Exec(ctx, `
		DELETE FROM user_connections
		WHERE user_id = $1 AND provider_id = $2 AND provider_user_id = $3
	`, r.userID, key.ProviderID, key.ProviderUserID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabaseQuery, err)
	}
	return nil
}

func (r *postgresUserConnections) RemoveConnections(ctx context.Context, providerID string) error {
	err := r.db.Exec(ctx, `
		DELETE FROM user_connections
		WHERE user_id = $1 AND provider_id = $2
	`, r.userID, providerID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabaseQuery, err)
	}
	return nil
}

func (r *postgresUserConnections) query(ctx context.Context, sql string, args ...interface{}) ([]*domain.Connection, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		r.logger.Error("Failed to query connections", zap.String("user_id", r.userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabaseQuery, err)
	}
	defer rows.Close()

	connections := []*domain.Connection{}
	for rows.Next() {
		conn, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabaseQuery, err)
	}
	return connections, nil
}

func (r *postgresUserConnections) scanOne(row pgx.Row) (*domain.Connection, error) {
	conn, err := r.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConnectionNotFound
	}
	return conn, err
}

func (r *postgresUserConnections) scan(row pgx.Row) (*domain.Connection, error) {
	var id string
	conn := &domain.Connection{}
	sealed := domain.Credentials{}

	err := row.Scan(&id, &conn.UserID, &conn.Key.ProviderID, &conn.Key.ProviderUserID, &conn.Rank,
		&conn.DisplayName, &conn.ProfileURL, &conn.ImageURL, &sealed.AccessToken, &sealed.Secret,
		&sealed.RefreshToken, &conn.Credentials.ExpiresAt, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabaseQuery, err)
	}

	if conn.ID, err = domain.ParseULID(id); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabaseQuery, err)
	}

	if conn.Credentials.AccessToken, err = r.sealer.Open(sealed.AccessToken); err != nil {
		return nil, fmt.Errorf("%w: access token: %v", domain.ErrInternal, err)
	}
	if conn.Credentials.Secret, err = r.sealer.Open(sealed.Secret); err != nil {
		return nil, fmt.Errorf("%w: token secret: %v", domain.ErrInternal, err)
	}
	if conn.Credentials.RefreshToken, err = r.sealer.Open(sealed.RefreshToken); err != nil {
		return nil, fmt.Errorf("%w: refresh token: %v", domain.ErrInternal, err)
	}

	return conn, nil
}

func (r *postgresUserConnections) seal(creds domain.Credentials) (domain.Credentials, error) {
	var (
		sealed domain.Credentials
		err    error
	)
	if sealed.AccessToken, err = r.sealer.Seal(creds.AccessToken); err != nil {
		return sealed, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if sealed.Secret, err = r.sealer.Seal(creds.Secret); err != nil {
		return sealed, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if sealed.RefreshToken, err = r.sealer.Seal(creds.RefreshToken); err != nil {
		return sealed, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return sealed, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

package identity

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orgledger/backend/internal/config"
	"github.com/orgledger/backend/internal/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

// PostgresDirectory reads the users table owned by the auth system. It
// backs PIN storage, recipient lookup by email and the password re-check.
type PostgresDirectory struct {
	db     *sql.DB
	argon2 config.Argon2Config
	logger *zap.Logger
}

func NewPostgresDirectory(db *sql.DB, argon2Cfg config.Argon2Config, logger *zap.Logger) *PostgresDirectory {
	return &PostgresDirectory{
		db:     db,
		argon2: argon2Cfg,
		logger: logger,
	}
}

func (d *PostgresDirectory) GetPinHash(ctx context.Context, userID string) (string, error) {
	var pinHash sql.NullString
	err := d.db.QueryRowContext(ctx,
		"SELECT transaction_pin FROM users WHERE id = $1", userID).Scan(&pinHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", services.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return pinHash.String, nil
}

func (d *PostgresDirectory) SetPinHash(ctx context.Context, userID, pinHash string, updatedAt time.Time) error {
	result, err := d.db.ExecContext(ctx,
		"UPDATE users SET transaction_pin = $1, pin_updated_at = $2, updated_at = $2 WHERE id = $3",
		pinHash, updatedAt, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return services.ErrUserNotFound
	}
	return nil
}

func (d *PostgresDirectory) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var userID string
	err := d.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE LOWER(email) = LOWER($1)", strings.TrimSpace(email)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", services.ErrUserNotFound
	}
	return userID, err
}

// VerifyPassword checks password against the stored argon2id hash. It
// creates no session.
func (d *PostgresDirectory) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	var stored string
	err := d.db.QueryRowContext(ctx,
		"SELECT password_hash FROM users WHERE id = $1", userID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, services.ErrUserNotFound
	}
	if err != nil {
		return false, err
	}

	ok := d.verify(password, stored)
	if !ok {
		d.logger.Warn("password re-check failed", zap.String("user_id", userID))
	}
	return ok, nil
}

// HashPassword produces the "salt$hash" form the auth system stores.
func (d *PostgresDirectory) HashPassword(password string) (string, error) {
	salt := make([]byte, d.argon2.SaltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := d.derive(password, salt)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func (d *PostgresDirectory) verify(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(hash, d.derive(password, salt)) == 1
}

func (d *PostgresDirectory) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, d.argon2.Time, d.argon2.Memory, d.argon2.Threads, d.argon2.KeyLength)
}

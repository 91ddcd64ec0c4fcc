package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trivia-game-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the username is unknown, so the
// authenticate path costs the same either way.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// AccountStore persists player accounts in the players table.
type AccountStore struct {
	db    *bun.DB
	clock func() time.Time
}

func NewAccountStore(db *bun.DB) *AccountStore {
	return &AccountStore{db: db, clock: time.Now}
}

// Register inserts a new player with a bcrypt-hashed password. The unique
// constraint on username is the arbiter; a violation surfaces as
// domain.ErrDuplicateUsername.
func (s *AccountStore) Register(ctx context.Context, username, password string) (domain.Player, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Player{}, fmt.Errorf("hash password: %w", err)
	}

	player := domain.Player{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.clock().UTC(),
	}
	if _, err := s.db.NewInsert().Model(&player).Returning("id").Exec(ctx); err != nil {
		if sqlState(err) == "23505" {
			return domain.Player{}, domain.ErrDuplicateUsername
		}
		return domain.Player{}, fmt.Errorf("insert player: %w", err)
	}
	return player, nil
}

// Authenticate checks the password against the stored hash. Unknown usernames
// and wrong passwords return the same error.
func (s *AccountStore) Authenticate(ctx context.Context, username, password string) (domain.Player, error) {
	var player domain.Player
	err := s.db.NewSelect().Model(&player).Where("username = ?", username).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return domain.Player{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("select player: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(password)) != nil {
		return domain.Player{}, domain.ErrInvalidCredentials
	}
	return player, nil
}

// sqlState extracts the SQLSTATE code from a pgdriver error, or "".
func sqlState(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}

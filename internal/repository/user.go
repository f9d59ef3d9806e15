package repository

import (
	"database/sql"
	"strings"

	"github.com/opskit/flowline/internal/domain"
)

const userColumns = ` id, username, key_id, api_key_hash, enabled, created `

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Save(u *domain.User) (int64, error) {
	vals := []interface{}{u.Username, u.KeyID, u.APIKeyHash, u.Enabled, formatDateInDatabase(u.Created)}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO users (
		username, key_id, api_key_hash, enabled, created
	) VALUES (` + strings.Join(pps, ", ") + `)`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, vals...).Scan(&u.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				u.ID = id
			}
		}
	}
	return u.ID, err
}

// FindByKeyID looks up an enabled user by the public half of its api key.
func (r *UserRepository) FindByKeyID(keyID string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE key_id = ` + placeholder(1) + ` AND enabled = ` + boolLiteral(true) + `
	`
	var u domain.User
	err := r.db.QueryRow(query, keyID).Scan(
		&u.ID,
		&u.Username,
		&u.KeyID,
		&u.APIKeyHash,
		&u.Enabled,
		&u.Created,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByUsername(username string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = ` + placeholder(1) + `
	`
	var u domain.User
	err := r.db.QueryRow(query, username).Scan(
		&u.ID,
		&u.Username,
		&u.KeyID,
		&u.APIKeyHash,
		&u.Enabled,
		&u.Created,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// boolLiteral renders a boolean for dialects that store booleans as integers.
func boolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

package store

import (
	"database/sql"
	"fmt"
	"time"
)

type User struct {
	ID           int64      `json:"id"`
	ClientID     *int64     `json:"client_id,omitempty"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	SiteID       *int64     `json:"site_id,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// TenantID returns the user's client id, or 0 for users outside any tenant.
func (u *User) TenantID() int64 {
	if u.ClientID == nil {
		return 0
	}
	return *u.ClientID
}

const userSelectCols = `id, client_id, username, password_hash, full_name, email, role, site_id, active, created_at, last_login_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var clientID, siteID sql.NullInt64
	var createdAt, lastLogin any
	if err := row.Scan(&u.ID, &clientID, &u.Username, &u.PasswordHash, &u.FullName, &u.Email,
		&u.Role, &siteID, &u.Active, &createdAt, &lastLogin); err != nil {
		return nil, notFound(err)
	}
	u.ClientID = intPtr(clientID)
	u.SiteID = intPtr(siteID)
	u.CreatedAt = parseTime(createdAt)
	u.LastLoginAt = parseTimePtr(lastLogin)
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]*User, error) {
	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) CreateUser(u *User) error {
	id, err := db.insert(`INSERT INTO users (client_id, username, password_hash, full_name, email, role, site_id, active) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt(u.ClientID), u.Username, u.PasswordHash, u.FullName, u.Email, u.Role, nullInt(u.SiteID), u.Active)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return nil
}

func (db *DB) UpdateUser(u *User) error {
	return mustAffect(db.exec(`UPDATE users SET full_name=?, email=?, role=?, site_id=?, active=? WHERE id=?`,
		u.FullName, u.Email, u.Role, nullInt(u.SiteID), u.Active, u.ID))
}

func (db *DB) SetUserPassword(id int64, hash string) error {
	return mustAffect(db.exec(`UPDATE users SET password_hash=? WHERE id=?`, hash, id))
}

// SetClientUsersActive toggles every user of a client, used on approval/suspension.
func (db *DB) SetClientUsersActive(clientID int64, active bool) error {
	_, err := db.exec(`UPDATE users SET active=? WHERE client_id=?`, active, clientID)
	return err
}

func (db *DB) TouchUserLogin(id int64) error {
	_, err := db.exec(`UPDATE users SET last_login_at=datetime('now') WHERE id=?`, id)
	return err
}

func (db *DB) DeleteUser(id int64) error {
	return mustAffect(db.exec(`DELETE FROM users WHERE id=?`, id))
}

func (db *DB) GetUser(id int64) (*User, error) {
	return scanUser(db.queryRow(fmt.Sprintf(`SELECT %s FROM users WHERE id=?`, userSelectCols), id))
}

func (db *DB) GetUserByUsername(username string) (*User, error) {
	return scanUser(db.queryRow(fmt.Sprintf(`SELECT %s FROM users WHERE username=?`, userSelectCols), username))
}

// ListUsers lists a client's users; clientID 0 lists every user.
func (db *DB) ListUsers(clientID int64) ([]*User, error) {
	var rows *sql.Rows
	var err error
	if clientID > 0 {
		rows, err = db.query(fmt.Sprintf(`SELECT %s FROM users WHERE client_id=? ORDER BY username`, userSelectCols), clientID)
	} else {
		rows, err = db.query(fmt.Sprintf(`SELECT %s FROM users ORDER BY username`, userSelectCols))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// ListUsersByRole returns active users of a client holding one of roles.
func (db *DB) ListUsersByRole(clientID int64, roles ...string) ([]*User, error) {
	args := []any{clientID, true}
	for _, r := range roles {
		args = append(args, r)
	}
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM users WHERE client_id=? AND active=? AND role IN %s ORDER BY id`,
		userSelectCols, placeholders(len(roles))), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (db *DB) UserExists() (bool, error) {
	var count int
	err := db.queryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count > 0, err
}

// --- Role permissions ---

type Permission struct {
	Role   string `json:"role"`
	Module string `json:"module"`
	Action string `json:"action"`
}

func (db *DB) ListPermissions() ([]Permission, error) {
	rows, err := db.query(`SELECT role, module, action FROM role_permissions ORDER BY role, module, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.Role, &p.Module, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (db *DB) CountPermissions() (int, error) {
	var n int
	err := db.queryRow(`SELECT COUNT(*) FROM role_permissions`).Scan(&n)
	return n, err
}

// ReplaceRolePermissions swaps the whole permission set of a role.
func (db *DB) ReplaceRolePermissions(role string, perms []Permission) error {
	return db.WithTx(func(tx *DB) error {
		if _, err := tx.exec(`DELETE FROM role_permissions WHERE role=?`, role); err != nil {
			return err
		}
		for _, p := range perms {
			if _, err := tx.exec(`INSERT INTO role_permissions (role, module, action) VALUES (?, ?, ?)`, role, p.Module, p.Action); err != nil {
				return fmt.Errorf("insert permission %s/%s: %w", p.Module, p.Action, err)
			}
		}
		return nil
	})
}

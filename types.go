package shieldforge

import "context"

// UserProvider is the persistence boundary for accounts. The Engine never stores users
// itself; it reads them and writes new password hashes through this interface.
//
// Implementations should return an error matching ErrUserNotFound for unknown users.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

// UserRecord is the account view the Engine needs.
type UserRecord struct {
	UserID       string
	Identifier   string
	Email        string
	PasswordHash string
	Disabled     bool
}

// PasswordVerification is the result of VerifyPassword.
type PasswordVerification struct {
	Match bool
	// NeedsRehash is set when the stored hash should be replaced with HashPassword's output
	// after a successful login.
	NeedsRehash bool
}

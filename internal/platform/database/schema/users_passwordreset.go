// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserPasswordResetTable represents the 'users.passwordreset' table
type UserPasswordResetTable struct {
	Table     string
	ID        string
	Email     string
	TokenHash string
	ExpiresAt string
	IsUsed    string
	UsedAt    string
	CreatedAt string
}

// UserPasswordReset is the schema definition for users.passwordreset
var UserPasswordReset = UserPasswordResetTable{
	Table:     "users.passwordreset",
	ID:        "id",
	Email:     "email",
	TokenHash: "tokenhash",
	ExpiresAt: "expiresat",
	IsUsed:    "isused",
	UsedAt:    "usedat",
	CreatedAt: "createdat",
}

func (t UserPasswordResetTable) Columns() []string {
	return []string{t.ID, t.Email, t.TokenHash, t.ExpiresAt, t.IsUsed, t.UsedAt, t.CreatedAt}
}

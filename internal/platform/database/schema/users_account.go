// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table          string
	ID             string
	Email          string
	Username       string
	Password       string
	Name           string
	Role           string
	OrganizationID string
	IsActive       string
	TokenVersion   string
	CreatedAt      string
	UpdatedAt      string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:          "users.account",
	ID:             "id",
	Email:          "email",
	Username:       "username",
	Password:       "passwordhash",
	Name:           "name",
	Role:           "role",
	OrganizationID: "organizationid",
	IsActive:       "isactive",
	TokenVersion:   "tokenversion",
	CreatedAt:      "createdat",
	UpdatedAt:      "updatedat",
}

// Columns returns all standard column names
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Email, t.Username, t.Password, t.Name, t.Role,
		t.OrganizationID, t.IsActive, t.TokenVersion, t.CreatedAt, t.UpdatedAt,
	}
}

// UserAccountUniversityTable represents the 'users.accountuniversity' link table
type UserAccountUniversityTable struct {
	Table        string
	AccountID    string
	UniversityID string
}

// UserAccountUniversity is the schema definition for users.accountuniversity
var UserAccountUniversity = UserAccountUniversityTable{
	Table:        "users.accountuniversity",
	AccountID:    "accountid",
	UniversityID: "universityid",
}

// UserAccountCourseTable represents the 'users.accountcourse' link table
type UserAccountCourseTable struct {
	Table     string
	AccountID string
	CourseID  string
}

// UserAccountCourse is the schema definition for users.accountcourse
var UserAccountCourse = UserAccountCourseTable{
	Table:     "users.accountcourse",
	AccountID: "accountid",
	CourseID:  "courseid",
}

// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// DirectoryOrganizationTable represents the 'directory.organization' table
type DirectoryOrganizationTable struct {
	Table string
	ID    string
	Name  string
}

// DirectoryOrganization is the schema definition for directory.organization
var DirectoryOrganization = DirectoryOrganizationTable{
	Table: "directory.organization",
	ID:    "id",
	Name:  "name",
}

// DirectoryUniversityTable represents the 'directory.university' table
type DirectoryUniversityTable struct {
	Table          string
	ID             string
	Name           string
	OrganizationID string
}

// DirectoryUniversity is the schema definition for directory.university
var DirectoryUniversity = DirectoryUniversityTable{
	Table:          "directory.university",
	ID:             "id",
	Name:           "name",
	OrganizationID: "organizationid",
}

// DirectoryCourseTable represents the 'directory.course' table
type DirectoryCourseTable struct {
	Table        string
	ID           string
	Name         string
	UniversityID string
	FormID       string
}

// DirectoryCourse is the schema definition for directory.course
var DirectoryCourse = DirectoryCourseTable{
	Table:        "directory.course",
	ID:           "id",
	Name:         "name",
	UniversityID: "universityid",
	FormID:       "formid",
}

// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid generates and checks the identifiers used as primary keys.

Accounts and reset grants are keyed by UUIDv7, so rows sort by creation time
and B-tree inserts stay append-mostly.
*/
package uuid

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a new UUIDv7 string.
//
// It panics only when the OS random source fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("uuid: failed to generate UUIDv7: " + err.Error())
	}
	return id.String()
}

// Valid reports whether value is a canonical 36-character UUID of any version.
// Braced and URN forms are rejected.
func Valid(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(strings.ToLower(value))
	return err == nil
}

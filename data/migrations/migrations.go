// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migrations embeds the versioned SQL schema so the binary can
// migrate a database without shipping the .sql files alongside it.
package migrations

import "embed"

// Files holds every NNNNNN_name.{up,down}.sql file in this directory.
//
//go:embed *.sql
var Files embed.FS

// Package historybun stores calendar render history with Bun.
//
// OpenSQLite gives a ready-to-use SQLite database (in memory by default);
// any Bun dialect works with NewStore once CreateSchema has run.
package historybun

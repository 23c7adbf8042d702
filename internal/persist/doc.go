// Package persist saves and loads results stores.
//
// JSON documents are the only persisted state: SaveJSON and LoadJSON
// round-trip a store exactly, and LoadInto hands a component the variables
// tagged with its kind. ExportWorkbook writes a SQLite file with one table
// per variable for use in external tools; it is never read back.
//
// Every failure is a *Error with a Code. Nothing is swallowed.
package persist

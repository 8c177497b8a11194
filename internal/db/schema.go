// Package db exports a dataset into a relational database.
package db

import _ "embed"

//go:embed schema.sql
var Schema string

// tables in the order they are cleared, dependents first
var tables = []string{
	"listings",
	"evolutions",
	"creature_categories",
	"categories",
	"creatures",
}

type Direction string

const (
	DIRECTION_FROM Direction = "from"
	DIRECTION_TO   Direction = "to"
)

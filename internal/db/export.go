package db

import (
	"context"
	"database/sql"
	"digimon-scraper/internal/digimon"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect is a database/sql driver name, either "sqlite" or "postgres".
type Dialect string

const (
	DIALECT_SQLITE   Dialect = "sqlite"
	DIALECT_POSTGRES Dialect = "postgres"
)

func ParseDialect(name string) (Dialect, error) {
	switch Dialect(strings.ToLower(name)) {
	case DIALECT_SQLITE, "sqlite3", "":
		return DIALECT_SQLITE, nil
	case DIALECT_POSTGRES, "postgresql":
		return DIALECT_POSTGRES, nil
	}
	return "", fmt.Errorf("unknown database dialect %q", name)
}

// placeholders returns the bind parameters for n values.
func (d Dialect) placeholders(n int) string {
	params := make([]string, n)
	for i := range params {
		if d == DIALECT_POSTGRES {
			params[i] = fmt.Sprintf("$%d", i+1)
			continue
		}
		params[i] = "?"
	}
	return strings.Join(params, ", ")
}

func (d Dialect) insert(table string, columns ...string) string {
	return fmt.Sprintf(
		"insert into %s (%s) values (%s)",
		table, strings.Join(columns, ", "), d.placeholders(len(columns)),
	)
}

// Open opens dsn and makes sure the schema exists.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	database, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, err
	}
	_, err = database.ExecContext(ctx, Schema)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return database, nil
}

type Exporter struct {
	db      *sql.DB
	dialect Dialect
}

func NewExporter(database *sql.DB, dialect Dialect) Exporter {
	return Exporter{db: database, dialect: dialect}
}

// Export replaces the contents of every table with ds in one transaction.
func (e Exporter) Export(ctx context.Context, ds digimon.Dataset) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range tables {
		_, err = tx.ExecContext(ctx, "delete from "+table)
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, creature := range ds.Digimons {
		err = e.insertCreature(ctx, tx, creature)
		if err != nil {
			return fmt.Errorf("insert %s: %w", creature.Id, err)
		}
	}

	err = e.insertCategories(ctx, tx, ds.Digimons)
	if err != nil {
		return err
	}

	for _, creature := range ds.Digimons {
		err = e.insertEdges(ctx, tx, creature.Id, DIRECTION_FROM, creature.EvolvesFrom)
		if err != nil {
			return err
		}
		err = e.insertEdges(ctx, tx, creature.Id, DIRECTION_TO, creature.EvolvesTo)
		if err != nil {
			return err
		}
	}

	insertListing := e.dialect.insert("listings", "stage", "position", "creature_id", "name", "href")
	for _, stage := range digimon.Stages() {
		for i, stub := range *ds.Lists.Stage(stage) {
			_, err = tx.ExecContext(ctx, insertListing, stage.Key(), i, stub.Id, stub.Name, stub.Href)
			if err != nil {
				return fmt.Errorf("insert listing %s/%s: %w", stage.Key(), stub.Id, err)
			}
		}
	}

	return tx.Commit()
}

func (e Exporter) insertCreature(ctx context.Context, tx *sql.Tx, c *digimon.Creature) error {
	encoded := make([]string, 7)
	for i, v := range []any{c.Names, c.Levels, c.Classes, c.Types, c.Attributes, c.Fields, c.MinWeights} {
		serialized, err := json.Marshal(v)
		if err != nil {
			return err
		}
		encoded[i] = string(serialized)
	}

	var level sql.NullString
	if c.Level.Valid() {
		level = sql.NullString{String: c.Level.String(), Valid: true}
	}
	var minWeight sql.NullInt64
	if c.MinWeight != nil {
		minWeight = sql.NullInt64{Int64: int64(*c.MinWeight), Valid: true}
	}

	_, err := tx.ExecContext(
		ctx,
		e.dialect.insert(
			"creatures",
			"id", "name", "href", "description", "img", "img_origin", "level", "digimon_class", "min_weight",
			"names", "levels", "classes", "types", "attributes", "fields", "min_weights",
		),
		c.Id, c.Name, c.Href, c.Description, nullable(c.Img), nullable(c.ImgOrigin), level, c.DigimonClass, minWeight,
		encoded[0], encoded[1], encoded[2], encoded[3], encoded[4], encoded[5], encoded[6],
	)
	return err
}

func (e Exporter) insertCategories(ctx context.Context, tx *sql.Tx, creatures []*digimon.Creature) error {
	insertCategory := e.dialect.insert("categories", "id", "name", "img", "title", "href")
	insertLink := e.dialect.insert("creature_categories", "creature_id", "category_id")

	seen := map[string]struct{}{}
	for _, creature := range creatures {
		linked := map[string]struct{}{}
		for _, category := range creature.Categories {
			if category.Id == "" {
				continue
			}
			if _, ok := seen[category.Id]; !ok {
				seen[category.Id] = struct{}{}
				_, err := tx.ExecContext(ctx, insertCategory, category.Id, category.Name, category.Img, category.Title, category.Href)
				if err != nil {
					return fmt.Errorf("insert category %s: %w", category.Id, err)
				}
			}
			if _, ok := linked[category.Id]; ok {
				continue
			}
			linked[category.Id] = struct{}{}
			_, err := tx.ExecContext(ctx, insertLink, creature.Id, category.Id)
			if err != nil {
				return fmt.Errorf("link category %s to %s: %w", category.Id, creature.Id, err)
			}
		}
	}
	return nil
}

func (e Exporter) insertEdges(ctx context.Context, tx *sql.Tx, creatureId string, direction Direction, edges []digimon.Edge) error {
	query := e.dialect.insert(
		"evolutions",
		"creature_id", "direction", "position", "target_id", "name", "url", "canon", "note", "line",
	)
	for i, edge := range edges {
		_, err := tx.ExecContext(ctx, query, creatureId, string(direction), i, edge.Id, edge.Name, edge.Url, edge.Canon, edge.Note, edge.Line)
		if err != nil {
			return fmt.Errorf("insert evolution %s -> %s: %w", creatureId, edge.Id, err)
		}
	}
	return nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Package sqlstore loads validated farm records into the relational
// catalogue: municipalities, farms, and their observations.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
)

// dialect captures the differences between the supported drivers.
type dialect struct {
	driver string
	// prefix qualifies table names ("fincas." on PostgreSQL).
	prefix string
	// dollar placeholders ($1, $2, ...) instead of "?".
	dollar bool
}

var dialects = map[string]dialect{
	"postgres": {driver: "postgres", prefix: "fincas.", dollar: true},
	"sqlite":   {driver: "sqlite"},
}

// Store writes farm records with database/sql.
// It implements pipeline.Persister.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// A single connection serialises writers; SQLite allows only one.
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, dialect: d, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables on SQLite. PostgreSQL deployments apply
// sql/schema.sql out of band.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.dialect.driver != "sqlite" {
		return nil
	}
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS cat_municipio (
		municipio_id INTEGER PRIMARY KEY AUTOINCREMENT,
		nombre       TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS finca (
		finca_id          INTEGER PRIMARY KEY AUTOINCREMENT,
		municipio_id      INTEGER REFERENCES cat_municipio (municipio_id),
		latitud           REAL NOT NULL,
		longitud          REAL NOT NULL,
		altitud           REAL,
		arboles_x_mz      REAL,
		fecha_diagnostico TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS finca_obs (
		finca_id           INTEGER NOT NULL REFERENCES finca (finca_id),
		obs_plagas         TEXT,
		obs_control_plagas TEXT,
		obs_finales        TEXT
	)`,
}

// Persist upserts the municipality catalogue, then inserts the farms and
// their observations. Each step runs in its own transaction, so a failed
// farm insert leaves the catalogue in place.
func (s *Store) Persist(ctx context.Context, records []domain.FarmRecord) (domain.StoreResult, error) {
	names := domain.MunicipalityNames(records)
	if err := s.UpsertMunicipalities(ctx, names); err != nil {
		return domain.StoreResult{}, err
	}
	ids, err := s.InsertFarms(ctx, records)
	if err != nil {
		return domain.StoreResult{Municipalities: len(names)}, err
	}
	return domain.StoreResult{Municipalities: len(names), FarmIDs: ids}, nil
}

// UpsertMunicipalities adds names missing from the catalogue. Existing
// names are left untouched.
func (s *Store) UpsertMunicipalities(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.query(
			`INSERT INTO {p}cat_municipio (nombre) VALUES (?) ON CONFLICT (nombre) DO NOTHING`))
		if err != nil {
			return fmt.Errorf("prepare municipality upsert: %w", err)
		}
		defer stmt.Close()

		for _, n := range names {
			if _, err := stmt.ExecContext(ctx, n); err != nil {
				return fmt.Errorf("upsert municipality %q: %w", n, err)
			}
		}
		return nil
	})
}

// InsertFarms inserts one finca row per record, resolving the municipality
// key by name, and one finca_obs row for each record with observations. It
// returns the generated farm IDs in record order.
func (s *Store) InsertFarms(ctx context.Context, records []domain.FarmRecord) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(records))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		municipalities, err := s.municipalityIDs(ctx, tx)
		if err != nil {
			return err
		}

		farmStmt, err := tx.PrepareContext(ctx, s.query(
			`INSERT INTO {p}finca (municipio_id, latitud, longitud, altitud, arboles_x_mz, fecha_diagnostico)
			 VALUES (?, ?, ?, ?, ?, ?) RETURNING finca_id`))
		if err != nil {
			return fmt.Errorf("prepare farm insert: %w", err)
		}
		defer farmStmt.Close()

		obsStmt, err := tx.PrepareContext(ctx, s.query(
			`INSERT INTO {p}finca_obs (finca_id, obs_plagas, obs_control_plagas, obs_finales) VALUES (?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare observation insert: %w", err)
		}
		defer obsStmt.Close()

		for i, r := range records {
			var municipalityID sql.NullInt64
			if r.Municipality != nil {
				if id, ok := municipalities[*r.Municipality]; ok {
					municipalityID = sql.NullInt64{Int64: id, Valid: true}
				}
			}

			var id int64
			err := farmStmt.QueryRowContext(ctx,
				municipalityID, r.Latitude, r.Longitude, r.Altitude, r.TreeDensity, r.DiagnosisDate,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("insert farm %d: %w", i, err)
			}
			ids = append(ids, id)

			if !r.HasObservations() {
				continue
			}
			if _, err := obsStmt.ExecContext(ctx,
				id, r.PestObservation, r.PestControlObservation, r.FinalObservation,
			); err != nil {
				return fmt.Errorf("insert observations for farm %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("farms inserted", "count", len(ids))
	return ids, nil
}

func (s *Store) municipalityIDs(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, s.query(`SELECT municipio_id, nombre FROM {p}cat_municipio`))
	if err != nil {
		return nil, fmt.Errorf("load municipalities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan municipality: %w", err)
		}
		out[name] = id
	}
	return out, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// query expands the {p} table prefix and rebinds "?" placeholders for the
// dialect.
func (s *Store) query(q string) string {
	q = strings.ReplaceAll(q, "{p}", s.dialect.prefix)
	if !s.dialect.dollar {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

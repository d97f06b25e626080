package storage

// sqlite.go — persistencia del bot en un único archivo SQLite.
//
// Dos responsabilidades:
//   - `research`: cache content-addressed por fingerprint. UNA fila por
//     fingerprint (UPSERT, last write wins). La frescura (TTL) la decide el
//     lector; aquí solo se guarda retrieved_at.
//   - `cycles`: log append-only de resúmenes de ciclo. Nunca se muta; las
//     entradas por-mercado se serializan como JSON en una columna.
//
// Prune automático al arrancar: cycles > 90d. El prune de research lo dirige
// la cache con su TTL.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/evbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Cache de research, una fila por fingerprint
CREATE TABLE IF NOT EXISTS research (
    fingerprint  TEXT PRIMARY KEY,
    market_id    TEXT NOT NULL,
    question     TEXT,
    summary      TEXT,
    probability  REAL NOT NULL DEFAULT 0.5,
    confidence   REAL NOT NULL DEFAULT 0,
    key_factors  TEXT,
    sources      TEXT,
    retrieved_at DATETIME NOT NULL
);

-- Log append-only de ciclos
CREATE TABLE IF NOT EXISTS cycles (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id         TEXT NOT NULL,
    started_at       DATETIME NOT NULL,
    finished_at      DATETIME NOT NULL,
    dry_run          INTEGER NOT NULL DEFAULT 0,
    trading_paused   INTEGER NOT NULL DEFAULT 0,
    notes            TEXT,
    markets_seen     INTEGER NOT NULL DEFAULT 0,
    research_calls   INTEGER NOT NULL DEFAULT 0,
    cache_hits       INTEGER NOT NULL DEFAULT 0,
    capital_total    REAL NOT NULL DEFAULT 0,
    capital_reserved REAL NOT NULL DEFAULT 0,
    entries          TEXT
);

CREATE INDEX IF NOT EXISTS idx_research_at ON research(retrieved_at DESC);
CREATE INDEX IF NOT EXISTS idx_cycles_at   ON cycles(started_at DESC);
`

const retentionCycles = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.ResearchStore y ports.CycleStore.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia ciclos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOldCycles(context.Background())
	return s, nil
}

// Close cierra la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// GetResearch devuelve el resultado guardado para el fingerprint, si existe.
func (s *SQLiteStorage) GetResearch(ctx context.Context, fingerprint string) (domain.ResearchResult, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, market_id, question, summary, probability,
		       confidence, key_factors, sources, retrieved_at
		FROM research WHERE fingerprint = ?`, fingerprint)

	var r domain.ResearchResult
	var factors, sources sql.NullString
	err := row.Scan(&r.Fingerprint, &r.MarketID, &r.Question, &r.Summary,
		&r.Probability, &r.Confidence, &factors, &sources, &r.RetrievedAt)
	if err == sql.ErrNoRows {
		return domain.ResearchResult{}, false, nil
	}
	if err != nil {
		return domain.ResearchResult{}, false, fmt.Errorf("storage.GetResearch: %w", err)
	}

	if factors.Valid && factors.String != "" {
		if err := json.Unmarshal([]byte(factors.String), &r.KeyFactors); err != nil {
			return domain.ResearchResult{}, false, fmt.Errorf("storage.GetResearch: key_factors: %w", err)
		}
	}
	if sources.Valid && sources.String != "" {
		if err := json.Unmarshal([]byte(sources.String), &r.Sources); err != nil {
			return domain.ResearchResult{}, false, fmt.Errorf("storage.GetResearch: sources: %w", err)
		}
	}
	return r, true, nil
}

// PutResearch inserta o reemplaza el resultado por fingerprint.
func (s *SQLiteStorage) PutResearch(ctx context.Context, r domain.ResearchResult) error {
	factors, err := json.Marshal(r.KeyFactors)
	if err != nil {
		return fmt.Errorf("storage.PutResearch: key_factors: %w", err)
	}
	sources, err := json.Marshal(r.Sources)
	if err != nil {
		return fmt.Errorf("storage.PutResearch: sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO research
		    (fingerprint, market_id, question, summary, probability,
		     confidence, key_factors, sources, retrieved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
		    market_id    = excluded.market_id,
		    question     = excluded.question,
		    summary      = excluded.summary,
		    probability  = excluded.probability,
		    confidence   = excluded.confidence,
		    key_factors  = excluded.key_factors,
		    sources      = excluded.sources,
		    retrieved_at = excluded.retrieved_at`,
		r.Fingerprint, r.MarketID, r.Question, r.Summary, r.Probability,
		r.Confidence, string(factors), string(sources), r.RetrievedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.PutResearch: %w", err)
	}
	return nil
}

// PruneResearch borra filas recuperadas antes del instante dado.
func (s *SQLiteStorage) PruneResearch(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM research WHERE retrieved_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("storage.PruneResearch: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AppendCycle persiste el resumen de un ciclo. Append-only.
func (s *SQLiteStorage) AppendCycle(ctx context.Context, summary domain.CycleSummary) error {
	entries, err := json.Marshal(summary.Entries)
	if err != nil {
		return fmt.Errorf("storage.AppendCycle: entries: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cycles
		    (cycle_id, started_at, finished_at, dry_run, trading_paused,
		     notes, markets_seen, research_calls, cache_hits,
		     capital_total, capital_reserved, entries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.CycleID, summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
		boolToInt(summary.DryRun), boolToInt(summary.TradingPaused),
		summary.Notes, summary.MarketsSeen, summary.ResearchCalls,
		summary.CacheHits, summary.Capital.Total, summary.Capital.Reserved,
		string(entries))
	if err != nil {
		return fmt.Errorf("storage.AppendCycle: %w", err)
	}
	return nil
}

// RecentCycles devuelve los n resúmenes más recientes, el más nuevo primero.
func (s *SQLiteStorage) RecentCycles(ctx context.Context, n int) ([]domain.CycleSummary, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle_id, started_at, finished_at, dry_run, trading_paused,
		       notes, markets_seen, research_calls, cache_hits,
		       capital_total, capital_reserved, entries
		FROM cycles ORDER BY started_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentCycles: %w", err)
	}
	defer rows.Close()

	var summaries []domain.CycleSummary
	for rows.Next() {
		var s domain.CycleSummary
		var dryRun, paused int
		var notes, entries sql.NullString
		if err := rows.Scan(&s.CycleID, &s.StartedAt, &s.FinishedAt, &dryRun,
			&paused, &notes, &s.MarketsSeen, &s.ResearchCalls, &s.CacheHits,
			&s.Capital.Total, &s.Capital.Reserved, &entries); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: scan: %w", err)
		}
		s.DryRun = dryRun != 0
		s.TradingPaused = paused != 0
		s.Notes = notes.String
		if entries.Valid && entries.String != "" {
			if err := json.Unmarshal([]byte(entries.String), &s.Entries); err != nil {
				return nil, fmt.Errorf("storage.RecentCycles: entries: %w", err)
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// pruneOldCycles borra ciclos con más de 90 días. Best effort.
func (s *SQLiteStorage) pruneOldCycles(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionCycles)
	_, _ = s.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, cutoff)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package history

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/aalsanie/shamash-sub001/internal/aggregator"
	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/finding"
)

// ScanRecord is one persisted scan summary row.
type ScanRecord struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	ConfigHash   string
	ClassCount   int
	EdgeCount    int
	FindingCount int
	ScoreValue   int
	ScoreBand    string
}

// Store persists scan summaries and their findings for later querying.
type Store struct {
	db *DB
}

// NewStore wraps an open DB connection.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// RecordScan inserts one scan summary and its findings in a single
// transaction, returning the assigned scan id.
func (s *Store) RecordScan(started, finished time.Time, configHash string, classCount, edgeCount int, findings []finding.Finding, score aggregator.Score) (int64, error) {
	tx, err := s.db.Conn.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	insertScan := sq.Insert("scan").
		Columns("started_at", "finished_at", "config_hash", "class_count", "edge_count", "finding_count", "score_value", "score_band").
		Values(started.Unix(), finished.Unix(), configHash, classCount, edgeCount, len(findings), score.Value, string(score.Band))

	res, err := insertScan.RunWith(tx).Exec()
	if err != nil {
		return 0, err
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(findings) > 0 {
		insertFindings := sq.Insert("finding").
			Columns("scan_id", "rule_id", "severity", "message", "file_path", "class_fqn", "member_name")
		for _, f := range findings {
			insertFindings = insertFindings.Values(scanID, f.RuleID, string(f.Severity), f.Message, f.FilePath, f.ClassFqn, f.MemberName)
		}
		if _, err := insertFindings.RunWith(tx).Exec(); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return scanID, nil
}

// RecentScans returns the most recent scans, newest first, up to limit.
func (s *Store) RecentScans(limit int) ([]ScanRecord, error) {
	rows, err := sq.Select("id", "started_at", "finished_at", "config_hash", "class_count", "edge_count", "finding_count", "score_value", "score_band").
		From("scan").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		RunWith(s.db.Conn).
		Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		var r ScanRecord
		var startedUnix, finishedUnix int64
		if err := rows.Scan(&r.ID, &startedUnix, &finishedUnix, &r.ConfigHash, &r.ClassCount, &r.EdgeCount, &r.FindingCount, &r.ScoreValue, &r.ScoreBand); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(startedUnix, 0).UTC()
		r.FinishedAt = time.Unix(finishedUnix, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindingsForScan returns the findings persisted for one scan id.
func (s *Store) FindingsForScan(scanID int64) ([]finding.Finding, error) {
	rows, err := sq.Select("rule_id", "severity", "message", "file_path", "class_fqn", "member_name").
		From("finding").
		Where(sq.Eq{"scan_id": scanID}).
		OrderBy("id ASC").
		RunWith(s.db.Conn).
		Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finding.Finding
	for rows.Next() {
		var f finding.Finding
		var severity string
		if err := rows.Scan(&f.RuleID, &severity, &f.Message, &f.FilePath, &f.ClassFqn, &f.MemberName); err != nil {
			return nil, err
		}
		f.Severity = config.Severity(severity)
		out = append(out, f)
	}
	return out, rows.Err()
}

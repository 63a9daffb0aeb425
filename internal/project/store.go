package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reelsmith/internal/config"
)

// Store manages pipeline run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewRun inserts a pending run for a project.
func (s *Store) NewRun(ctx context.Context, projectID, title, prompt string, autoUpload bool, assets Assets) (*Item, error) {
	item := &Item{
		ProjectID:  projectID,
		Title:      title,
		Prompt:     prompt,
		AutoUpload: autoUpload,
		Status:     StatusPending,
	}
	if err := item.SetAssets(assets); err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO pipeline_runs (
            project_id, title, prompt, auto_upload, status, progress,
            retry_count, assets_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ProjectID,
		nullableString(item.Title),
		item.Prompt,
		boolToInt(item.AutoUpload),
		item.Status,
		0.0,
		0,
		nullableString(item.AssetsJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a run by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM pipeline_runs WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return item, nil
}

// LatestForProject returns the most recent run for a project.
func (s *Store) LatestForProject(ctx context.Context, projectID string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM pipeline_runs WHERE project_id = ? ORDER BY id DESC LIMIT 1`,
		projectID,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest for project: %w", err)
	}
	return item, nil
}

// ActiveRunForProject returns a non-terminal run for the project, if any.
// At most one run per project may be outside completed/failed at a time.
func (s *Store) ActiveRunForProject(ctx context.Context, projectID string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM pipeline_runs
         WHERE project_id = ? AND status NOT IN (?, ?) ORDER BY id LIMIT 1`,
		projectID,
		StatusCompleted,
		StatusFailed,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active run for project: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing run.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("run is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE pipeline_runs
         SET project_id = ?, title = ?, prompt = ?, auto_upload = ?, status = ?,
             progress = ?, retry_count = ?, errors_json = ?, fatal_error = ?,
             script_json = ?, cast_json = ?, clips_json = ?, assets_json = ?,
             video_path = ?, upload_video_id = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		item.ProjectID,
		nullableString(item.Title),
		item.Prompt,
		boolToInt(item.AutoUpload),
		item.Status,
		item.Progress,
		item.RetryCount,
		nullableString(item.ErrorsJSON),
		nullableString(item.FatalError),
		nullableString(item.ScriptJSON),
		nullableString(item.CastJSON),
		nullableString(item.ClipsJSON),
		nullableString(item.AssetsJSON),
		nullableString(item.VideoPath),
		nullableString(item.UploadVideoID),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(item.LastHeartbeat),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// Transition atomically moves a run from one status to another. Returns false
// when the run was not in the expected status.
func (s *Store) Transition(ctx context.Context, id int64, from, to Status) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE pipeline_runs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns runs filtered by status set (or all runs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM pipeline_runs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextForStatuses returns the oldest run matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + itemColumns + ` FROM pipeline_runs WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight run.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE pipeline_runs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing rolls runs stuck in a processing status back to that
// stage's start status when their heartbeat is older than the cutoff.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)

	var total int64
	for processing, start := range processingRollbacks {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE pipeline_runs
             SET status = ?, last_heartbeat = NULL, updated_at = ?
             WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
			start,
			now,
			processing,
			cutoffStr,
		)
		if err != nil {
			return total, fmt.Errorf("reclaim stale runs: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// ResetStuckProcessing rolls every in-flight run back to its stage start
// status. Called on daemon startup to recover from crashes.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var total int64
	for processing, start := range processingRollbacks {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE pipeline_runs
             SET status = ?, last_heartbeat = NULL, updated_at = ?
             WHERE status = ?`,
			start,
			now,
			processing,
		)
		if err != nil {
			return total, fmt.Errorf("reset stuck runs: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// RetryFailed moves failed runs back into the ladder at the furthest stage
// their surviving outputs allow. With no ids, all failed runs are retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	var items []*Item
	if len(ids) == 0 {
		failed, err := s.List(ctx, StatusFailed)
		if err != nil {
			return 0, err
		}
		items = failed
	} else {
		for _, id := range ids {
			item, err := s.GetByID(ctx, id)
			if err != nil {
				return 0, err
			}
			if item != nil && item.Status == StatusFailed {
				items = append(items, item)
			}
		}
	}

	var count int64
	for _, item := range items {
		item.Status = ResumeStatus(item)
		item.FatalError = ""
		item.RetryCount = 0
		item.Progress = 0
		item.LastHeartbeat = nil
		if err := s.Update(ctx, item); err != nil {
			// An older failed run for a project that already has an active
			// run stays failed; the active run owns the project.
			if IsActiveConflict(err) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// IsActiveConflict reports whether err is the unique-index violation raised
// when a write would give a project a second non-terminal run.
func IsActiveConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "idx_pipeline_runs_active_project")
}

// ResumeStatus computes the stage start status a run re-enters the ladder at,
// based on which outputs survived.
func ResumeStatus(item *Item) Status {
	switch {
	case item == nil:
		return StatusPending
	case item.VideoPath != "":
		return StatusVideoReady
	case strings.TrimSpace(item.ClipsJSON) != "":
		return StatusAudioReady
	case strings.TrimSpace(item.CastJSON) != "":
		return StatusCastReady
	case strings.TrimSpace(item.ScriptJSON) != "":
		return StatusScriptReady
	default:
		return StatusPending
	}
}

// HealthSummary describes aggregated run counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Stats returns a count of runs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM pipeline_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates run state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		default:
			if IsProcessingStatus(status) {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// Remove deletes a run by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all runs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed runs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_runs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

const itemColumns = "id, project_id, title, prompt, auto_upload, status, progress, retry_count, errors_json, fatal_error, script_json, cast_json, clips_json, assets_json, video_path, upload_video_id, created_at, updated_at, last_heartbeat"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id            int64
		projectID     string
		title         sql.NullString
		prompt        string
		autoUpload    sql.NullInt64
		statusStr     string
		progress      sql.NullFloat64
		retryCount    sql.NullInt64
		errorsJSON    sql.NullString
		fatalError    sql.NullString
		scriptJSON    sql.NullString
		castJSON      sql.NullString
		clipsJSON     sql.NullString
		assetsJSON    sql.NullString
		videoPath     sql.NullString
		uploadVideoID sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		heartbeatRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&title,
		&prompt,
		&autoUpload,
		&statusStr,
		&progress,
		&retryCount,
		&errorsJSON,
		&fatalError,
		&scriptJSON,
		&castJSON,
		&clipsJSON,
		&assetsJSON,
		&videoPath,
		&uploadVideoID,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:            id,
		ProjectID:     projectID,
		Title:         title.String,
		Prompt:        prompt,
		AutoUpload:    autoUpload.Int64 != 0,
		Status:        Status(statusStr),
		Progress:      progress.Float64,
		RetryCount:    int(retryCount.Int64),
		ErrorsJSON:    errorsJSON.String,
		FatalError:    fatalError.String,
		ScriptJSON:    scriptJSON.String,
		CastJSON:      castJSON.String,
		ClipsJSON:     clipsJSON.String,
		AssetsJSON:    assetsJSON.String,
		VideoPath:     videoPath.String,
		UploadVideoID: uploadVideoID.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

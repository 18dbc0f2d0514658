package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/terrapper/poddigest/internal/model"
)

// SQLiteRepository backs Repository with a pure-Go sqlite driver. It is the
// default repository for a single-process deployment and for tests that
// want real SQL semantics instead of a mock.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens dsn and ensures the schema exists.
func NewSQLiteRepository(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writers, matches its single-writer guidance

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS podcasts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT,
			feed_url TEXT UNIQUE NOT NULL,
			artwork_url TEXT,
			external_id TEXT,
			last_crawled_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			podcast_id TEXT NOT NULL,
			priority TEXT NOT NULL,
			active INTEGER NOT NULL,
			UNIQUE(user_id, podcast_id)
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			podcast_id TEXT NOT NULL,
			title TEXT NOT NULL,
			audio_url TEXT NOT NULL,
			published_at TEXT NOT NULL,
			duration_sec INTEGER NOT NULL,
			guid TEXT NOT NULL,
			transcript_status TEXT NOT NULL,
			UNIQUE(podcast_id, guid)
		)`,
		`CREATE TABLE IF NOT EXISTS transcripts (
			episode_id TEXT PRIMARY KEY,
			full_text TEXT,
			segments TEXT NOT NULL,
			language TEXT,
			status TEXT NOT NULL,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS digest_configs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			target_length_minutes INTEGER NOT NULL,
			clip_length_preference TEXT NOT NULL,
			structure TEXT NOT NULL,
			breadth_depth INTEGER NOT NULL,
			voice_id TEXT,
			narration_depth TEXT NOT NULL,
			music_style TEXT,
			transition_style TEXT NOT NULL,
			delivery_day INTEGER NOT NULL,
			delivery_hour INTEGER NOT NULL,
			delivery_minute INTEGER NOT NULL,
			delivery_method TEXT NOT NULL,
			is_active INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS digests (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			config_id TEXT NOT NULL,
			title TEXT,
			week_start TEXT NOT NULL,
			week_end TEXT NOT NULL,
			audio_object_key TEXT,
			total_duration_sec REAL,
			clip_count INTEGER NOT NULL DEFAULT 0,
			chapters TEXT,
			status TEXT NOT NULL,
			error TEXT,
			created_at TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_digests_config ON digests(config_id, status)`,
		`CREATE TABLE IF NOT EXISTS digest_clips (
			id TEXT PRIMARY KEY,
			digest_id TEXT NOT NULL,
			episode_id TEXT NOT NULL,
			start_sec REAL NOT NULL,
			end_sec REAL NOT NULL,
			score REAL NOT NULL,
			score_dims TEXT NOT NULL,
			position INTEGER NOT NULL,
			feedback_tag TEXT,
			UNIQUE(digest_id, position)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func timeStr(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func (r *SQLiteRepository) UpsertPodcast(ctx context.Context, p model.Podcast) (model.Podcast, error) {
	var lastCrawled sql.NullString
	if p.LastCrawledAt != nil {
		lastCrawled = sql.NullString{String: timeStr(*p.LastCrawledAt), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO podcasts (id, title, author, feed_url, artwork_url, external_id, last_crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_url) DO UPDATE SET
			title=excluded.title, author=excluded.author, artwork_url=excluded.artwork_url,
			external_id=excluded.external_id,
			last_crawled_at=COALESCE(excluded.last_crawled_at, podcasts.last_crawled_at)
	`, p.ID, p.Title, p.Author, p.FeedURL, p.ArtworkURL, p.ExternalID, lastCrawled)
	if err != nil {
		return model.Podcast{}, fmt.Errorf("upsert podcast: %w", err)
	}
	return r.getPodcastByFeedURL(ctx, p.FeedURL)
}

func (r *SQLiteRepository) getPodcastByFeedURL(ctx context.Context, feedURL string) (model.Podcast, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, title, author, feed_url, artwork_url, external_id, last_crawled_at FROM podcasts WHERE feed_url = ?`, feedURL)
	return scanPodcast(row)
}

func (r *SQLiteRepository) GetPodcast(ctx context.Context, id string) (model.Podcast, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, title, author, feed_url, artwork_url, external_id, last_crawled_at FROM podcasts WHERE id = ?`, id)
	return scanPodcast(row)
}

func scanPodcast(row *sql.Row) (model.Podcast, error) {
	var p model.Podcast
	var lastCrawled sql.NullString
	if err := row.Scan(&p.ID, &p.Title, &p.Author, &p.FeedURL, &p.ArtworkURL, &p.ExternalID, &lastCrawled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Podcast{}, ErrNotFound
		}
		return model.Podcast{}, err
	}
	if lastCrawled.Valid {
		t, err := parseTime(lastCrawled.String)
		if err == nil {
			p.LastCrawledAt = &t
		}
	}
	return p, nil
}

func (r *SQLiteRepository) ListActiveSubscriptions(ctx context.Context, userID string) ([]model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, podcast_id, priority, active FROM subscriptions WHERE user_id = ? AND active = 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		var s model.Subscription
		var active int
		if err := rows.Scan(&s.ID, &s.UserID, &s.PodcastID, &s.Priority, &active); err != nil {
			return nil, err
		}
		s.Active = active == 1
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpsertEpisode(ctx context.Context, e model.Episode) (model.Episode, bool, error) {
	if e.TranscriptStatus == "" {
		e.TranscriptStatus = model.TranscriptPending
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO episodes (id, podcast_id, title, audio_url, published_at, duration_sec, guid, transcript_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(podcast_id, guid) DO NOTHING
	`, e.ID, e.PodcastID, e.Title, e.AudioURL, timeStr(e.PublishedAt), e.DurationSec, e.GUID, e.TranscriptStatus)
	if err != nil {
		return model.Episode{}, false, fmt.Errorf("upsert episode: %w", err)
	}
	n, _ := res.RowsAffected()

	row := r.db.QueryRowContext(ctx, `SELECT id, podcast_id, title, audio_url, published_at, duration_sec, guid, transcript_status FROM episodes WHERE podcast_id = ? AND guid = ?`, e.PodcastID, e.GUID)
	got, err := scanEpisode(row)
	if err != nil {
		return model.Episode{}, false, err
	}
	return got, n > 0, nil
}

func scanEpisode(row *sql.Row) (model.Episode, error) {
	var ep model.Episode
	var published string
	if err := row.Scan(&ep.ID, &ep.PodcastID, &ep.Title, &ep.AudioURL, &published, &ep.DurationSec, &ep.GUID, &ep.TranscriptStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Episode{}, ErrNotFound
		}
		return model.Episode{}, err
	}
	t, err := parseTime(published)
	if err != nil {
		return model.Episode{}, fmt.Errorf("parse published_at: %w", err)
	}
	ep.PublishedAt = t
	return ep, nil
}

func (r *SQLiteRepository) GetEpisode(ctx context.Context, id string) (model.Episode, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, podcast_id, title, audio_url, published_at, duration_sec, guid, transcript_status FROM episodes WHERE id = ?`, id)
	return scanEpisode(row)
}

func (r *SQLiteRepository) SetEpisodeTranscriptStatus(ctx context.Context, episodeID string, status model.TranscriptStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE episodes SET transcript_status = ? WHERE id = ?`, status, episodeID)
	if err != nil {
		return fmt.Errorf("set transcript status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListEpisodesPublishedSince(ctx context.Context, podcastIDs []string, since time.Time, limit int) ([]model.Episode, error) {
	if len(podcastIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, podcast_id, title, audio_url, published_at, duration_sec, guid, transcript_status
		FROM episodes WHERE published_at >= ? AND podcast_id IN (` + placeholders(len(podcastIDs)) + `)
		ORDER BY published_at DESC LIMIT ?`
	args := make([]any, 0, len(podcastIDs)+2)
	args = append(args, timeStr(since))
	for _, id := range podcastIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes since: %w", err)
	}
	defer rows.Close()

	var out []model.Episode
	for rows.Next() {
		var ep model.Episode
		var published string
		if err := rows.Scan(&ep.ID, &ep.PodcastID, &ep.Title, &ep.AudioURL, &published, &ep.DurationSec, &ep.GUID, &ep.TranscriptStatus); err != nil {
			return nil, err
		}
		t, err := parseTime(published)
		if err != nil {
			return nil, err
		}
		ep.PublishedAt = t
		out = append(out, ep)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

func (r *SQLiteRepository) SaveTranscript(ctx context.Context, t model.Transcript) error {
	segJSON, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transcripts (episode_id, full_text, segments, language, status, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(episode_id) DO UPDATE SET
			full_text=excluded.full_text, segments=excluded.segments, language=excluded.language,
			status=excluded.status, error=excluded.error
	`, t.EpisodeID, t.FullText, string(segJSON), t.Language, t.Status, t.Error)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindCompletedTranscript(ctx context.Context, episodeID string) (*model.Transcript, error) {
	row := r.db.QueryRowContext(ctx, `SELECT episode_id, full_text, segments, language, status, error FROM transcripts WHERE episode_id = ? AND status = ?`, episodeID, model.TranscriptCompleted)
	var t model.Transcript
	var segJSON string
	if err := row.Scan(&t.EpisodeID, &t.FullText, &segJSON, &t.Language, &t.Status, &t.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find completed transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(segJSON), &t.Segments); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	return &t, nil
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, id string) (model.DigestConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, target_length_minutes, clip_length_preference, structure,
		breadth_depth, voice_id, narration_depth, music_style, transition_style, delivery_day, delivery_hour,
		delivery_minute, delivery_method, is_active FROM digest_configs WHERE id = ?`, id)
	return scanConfig(row)
}

func scanConfig(row *sql.Row) (model.DigestConfig, error) {
	var c model.DigestConfig
	var deliveryDay int
	var active int
	if err := row.Scan(&c.ID, &c.UserID, &c.TargetLengthMinutes, &c.ClipLengthPreference, &c.Structure,
		&c.BreadthDepth, &c.VoiceID, &c.NarrationDepth, &c.MusicStyle, &c.TransitionStyle, &deliveryDay,
		&c.DeliveryHour, &c.DeliveryMinute, &c.DeliveryMethod, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DigestConfig{}, ErrNotFound
		}
		return model.DigestConfig{}, err
	}
	c.DeliveryDay = time.Weekday(deliveryDay)
	c.IsActive = active == 1
	return c, nil
}

func (r *SQLiteRepository) ListActiveConfigs(ctx context.Context) ([]model.DigestConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, target_length_minutes, clip_length_preference, structure,
		breadth_depth, voice_id, narration_depth, music_style, transition_style, delivery_day, delivery_hour,
		delivery_minute, delivery_method, is_active FROM digest_configs WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("list active configs: %w", err)
	}
	defer rows.Close()

	var out []model.DigestConfig
	for rows.Next() {
		var c model.DigestConfig
		var deliveryDay, active int
		if err := rows.Scan(&c.ID, &c.UserID, &c.TargetLengthMinutes, &c.ClipLengthPreference, &c.Structure,
			&c.BreadthDepth, &c.VoiceID, &c.NarrationDepth, &c.MusicStyle, &c.TransitionStyle, &deliveryDay,
			&c.DeliveryHour, &c.DeliveryMinute, &c.DeliveryMethod, &active); err != nil {
			return nil, err
		}
		c.DeliveryDay = time.Weekday(deliveryDay)
		c.IsActive = active == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateDigest(ctx context.Context, d model.Digest) (model.Digest, error) {
	if d.Status == "" {
		d.Status = model.DigestPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = d.WeekEnd
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO digests (id, user_id, config_id, title, week_start, week_end, status, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, d.ID, d.UserID, d.ConfigID, d.Title, timeStr(d.WeekStart), timeStr(d.WeekEnd), d.Status, timeStr(d.CreatedAt))
	if err != nil {
		return model.Digest{}, fmt.Errorf("create digest: %w", err)
	}
	return r.FindDigestForUpdate(ctx, d.ID)
}

func (r *SQLiteRepository) FindDigestForUpdate(ctx context.Context, id string) (model.Digest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, config_id, title, week_start, week_end, audio_object_key,
		total_duration_sec, clip_count, chapters, status, error, created_at, version FROM digests WHERE id = ?`, id)

	var d model.Digest
	var weekStart, weekEnd, createdAt string
	var audioKey, chapterJSON, errText sql.NullString
	var totalDuration sql.NullFloat64
	if err := row.Scan(&d.ID, &d.UserID, &d.ConfigID, &d.Title, &weekStart, &weekEnd, &audioKey,
		&totalDuration, &d.ClipCount, &chapterJSON, &d.Status, &errText, &createdAt, &d.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Digest{}, ErrNotFound
		}
		return model.Digest{}, fmt.Errorf("find digest: %w", err)
	}

	var err error
	if d.WeekStart, err = parseTime(weekStart); err != nil {
		return model.Digest{}, err
	}
	if d.WeekEnd, err = parseTime(weekEnd); err != nil {
		return model.Digest{}, err
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Digest{}, err
	}
	if audioKey.Valid {
		d.AudioObjectKey = audioKey.String
	}
	if errText.Valid {
		d.Error = errText.String
	}
	if totalDuration.Valid {
		v := totalDuration.Float64
		d.TotalDurationSec = &v
	}
	if chapterJSON.Valid && chapterJSON.String != "" {
		if err := json.Unmarshal([]byte(chapterJSON.String), &d.Chapters); err != nil {
			return model.Digest{}, fmt.Errorf("unmarshal chapters: %w", err)
		}
	}
	return d, nil
}

func (r *SQLiteRepository) SetDigestStatus(ctx context.Context, id string, status model.DigestStatus, errMsg string, expectedVersion int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE digests SET status = ?, error = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, status, nullableString(errMsg), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("set digest status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := r.FindDigestForUpdate(ctx, id); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *SQLiteRepository) SetDigestArtifact(ctx context.Context, id string, audioObjectKey string, totalDurationSec float64, chapters []model.Chapter) error {
	chapterJSON, err := json.Marshal(chapters)
	if err != nil {
		return fmt.Errorf("marshal chapters: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE digests SET audio_object_key = ?, total_duration_sec = ?, chapters = ?, version = version + 1
		WHERE id = ?
	`, audioObjectKey, totalDurationSec, string(chapterJSON), id)
	if err != nil {
		return fmt.Errorf("set digest artifact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) HasNonTerminalDigest(ctx context.Context, configID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM digests WHERE config_id = ? AND status NOT IN (?, ?)`,
		configID, model.DigestCompleted, model.DigestFailed)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("has non-terminal digest: %w", err)
	}
	return count > 0, nil
}

func (r *SQLiteRepository) ListCompletedDigestsForUser(ctx context.Context, userID string) ([]model.Digest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM digests WHERE user_id = ? AND status = ? ORDER BY created_at DESC`, userID, model.DigestCompleted)
	if err != nil {
		return nil, fmt.Errorf("list completed digests: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Digest, 0, len(ids))
	for _, id := range ids {
		d, err := r.FindDigestForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *SQLiteRepository) AppendClip(ctx context.Context, c model.DigestClip) error {
	dimsJSON, err := json.Marshal(c.ScoreDimensions)
	if err != nil {
		return fmt.Errorf("marshal score dimensions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO digest_clips (id, digest_id, episode_id, start_sec, end_sec, score, score_dims, position, feedback_tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.DigestID, c.EpisodeID, c.StartSec, c.EndSec, c.Score, string(dimsJSON), c.Position, nullableString(string(c.FeedbackTag)))
	if err != nil {
		return fmt.Errorf("append clip: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListClips(ctx context.Context, digestID string) ([]model.DigestClip, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, digest_id, episode_id, start_sec, end_sec, score, score_dims, position, feedback_tag
		FROM digest_clips WHERE digest_id = ? ORDER BY position ASC`, digestID)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var out []model.DigestClip
	for rows.Next() {
		var c model.DigestClip
		var dimsJSON string
		var feedback sql.NullString
		if err := rows.Scan(&c.ID, &c.DigestID, &c.EpisodeID, &c.StartSec, &c.EndSec, &c.Score, &dimsJSON, &c.Position, &feedback); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dimsJSON), &c.ScoreDimensions); err != nil {
			return nil, fmt.Errorf("unmarshal score dimensions: %w", err)
		}
		if feedback.Valid {
			c.FeedbackTag = model.FeedbackTag(feedback.String)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetDigestClipCount(ctx context.Context, digestID string, count int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE digests SET clip_count = ? WHERE id = ?`, count, digestID)
	if err != nil {
		return fmt.Errorf("set clip count: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repository = (*SQLiteRepository)(nil)

// Package corpus is the SQLite-backed library snapshot and the sole mutator
// of scored track fields. The engine only ever sees the read-only query
// surface.
package corpus

import (
	"database/sql"
	_ "embed"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"trackstar-srv/internal/models"
)

//go:embed schema.sql
var schema string

// Store wraps the library database.
type Store struct {
	db *sql.DB
}

// Open initializes the schema and performance pragmas on an existing
// connection. WAL mode keeps concurrent scan reads from blocking result
// writes.
func Open(db *sql.DB) (*Store, error) {
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA cache_size=-2000;"); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

const trackColumns = `id, title, artist, album, isrc, duration, popularity, album_type, spotify_single, mb_single`

// TracksByISRC returns all recordings by the artist sharing the ISRC.
func (s *Store) TracksByISRC(artist, isrc string) ([]models.TrackRecord, error) {
	return s.queryTracks(
		`SELECT `+trackColumns+` FROM tracks WHERE artist = ? AND isrc = ? AND isrc != ''`,
		artist, isrc)
}

// TracksByArtist returns every recording by the artist.
func (s *Store) TracksByArtist(artist string) ([]models.TrackRecord, error) {
	return s.queryTracks(
		`SELECT `+trackColumns+` FROM tracks WHERE artist = ?`, artist)
}

// AlbumTracks returns one album's tracks.
func (s *Store) AlbumTracks(artist, album string) ([]models.TrackRecord, error) {
	return s.queryTracks(
		`SELECT `+trackColumns+` FROM tracks WHERE artist = ? AND album = ?`,
		artist, album)
}

// AllTracks returns the whole corpus, for maintenance passes.
func (s *Store) AllTracks() ([]models.TrackRecord, error) {
	return s.queryTracks(`SELECT ` + trackColumns + ` FROM tracks ORDER BY artist, album, title`)
}

// UpdatePopularity refreshes one track's raw popularity from a backfill.
func (s *Store) UpdatePopularity(id string, popularity float64) error {
	_, err := s.db.Exec(`UPDATE tracks SET popularity = ? WHERE id = ?`, popularity, id)
	return err
}

// Albums lists distinct (artist, album) pairs for batch scans.
func (s *Store) Albums() ([][2]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT artist, album FROM tracks WHERE album != '' ORDER BY artist, album`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var artist, album string
		if err := rows.Scan(&artist, &album); err != nil {
			return nil, err
		}
		out = append(out, [2]string{artist, album})
	}
	return out, rows.Err()
}

// UpsertTrack inserts or refreshes a library track. COALESCE keeps fields
// another import already filled from being wiped by a sparser source.
func (s *Store) UpsertTrack(t models.TrackRecord) error {
	_, err := s.db.Exec(`
	INSERT INTO tracks (id, title, artist, album, isrc, duration, popularity, album_type, spotify_single, mb_single)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title       = excluded.title,
		artist      = excluded.artist,
		album       = excluded.album,
		isrc        = COALESCE(NULLIF(excluded.isrc, ''), tracks.isrc),
		duration    = CASE WHEN excluded.duration > 0 THEN excluded.duration ELSE tracks.duration END,
		popularity  = CASE WHEN excluded.popularity > 0 THEN excluded.popularity ELSE tracks.popularity END,
		album_type  = COALESCE(NULLIF(excluded.album_type, ''), tracks.album_type),
		spotify_single = MAX(excluded.spotify_single, tracks.spotify_single),
		mb_single      = MAX(excluded.mb_single, tracks.mb_single);`,
		t.ID, t.Title, t.Artist, t.Album, t.ISRC, t.Duration, t.Popularity,
		t.AlbumType, boolInt(t.SpotifySingle), boolInt(t.MusicBrainzSingle))
	return err
}

// SaveScore writes the detection and rating outcome back for one track.
func (s *Store) SaveScore(id string, det models.DetectionResult, dec models.RatingDecision) error {
	_, err := s.db.Exec(`
	UPDATE tracks SET
		is_single         = ?,
		single_confidence = ?,
		single_sources    = ?,
		global_popularity = ?,
		zscore            = ?,
		stars             = ?,
		last_scored       = CURRENT_TIMESTAMP
	WHERE id = ?`,
		boolInt(det.IsSingle), string(det.Confidence), strings.Join(det.Sources, ","),
		det.GlobalPopularity, det.ZScore, dec.Stars, id)
	return err
}

// SaveTags stores the special-tag set for one track.
func (s *Store) SaveTags(id string, tagNames []string) error {
	_, err := s.db.Exec(`UPDATE tracks SET special_tags = ? WHERE id = ?`,
		strings.Join(tagNames, ","), id)
	return err
}

func (s *Store) queryTracks(query string, args ...interface{}) ([]models.TrackRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TrackRecord
	for rows.Next() {
		var t models.TrackRecord
		var spotifySingle, mbSingle int
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.ISRC,
			&t.Duration, &t.Popularity, &t.AlbumType, &spotifySingle, &mbSingle); err != nil {
			return nil, err
		}
		t.SpotifySingle = spotifySingle != 0
		t.MusicBrainzSingle = mbSingle != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"trackstar-srv/internal/albumstats"
	"trackstar-srv/internal/corpus"
	"trackstar-srv/internal/detect"
	"trackstar-srv/internal/models"
	"trackstar-srv/internal/providers"
	"trackstar-srv/internal/rating"
	"trackstar-srv/internal/tags"
)

/* =========================
   Recovery Middleware
   ========================= */

func RecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC: %v\n%s", err, debug.Stack())
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

/* =========================
   SSE Helpers
   ========================= */

func setupSSE(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return flusher, nil
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Println("SSE marshal error:", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()
}

/* =========================
   Handlers
   ========================= */

type server struct {
	store    *corpus.Store
	detector *detect.Detector
	web      *providers.SpotifyWeb
	sp       *providers.Spotify
}

// handleDetect scores one submitted track synchronously. Album statistics
// come from whatever the corpus knows about the track's album.
func (s *server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var track models.TrackRecord
	if err := json.NewDecoder(r.Body).Decode(&track); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if track.Title == "" || track.Artist == "" {
		http.Error(w, "title and artist are required", http.StatusBadRequest)
		return
	}

	var stats *albumstats.Stats
	if track.Album != "" {
		albumTracks, err := s.store.AlbumTracks(track.Artist, track.Album)
		if err == nil && len(albumTracks) > 0 {
			scores := make([]albumstats.TrackScore, len(albumTracks))
			for i, t := range albumTracks {
				scores[i] = albumstats.TrackScore{Title: t.Title, Popularity: t.Popularity}
			}
			stats = albumstats.Compute(scores)
		}
	}

	det := s.detector.Detect(r.Context(), track, stats)
	dec := rating.Decide(det, positionOf(track, stats), rating.DefaultConfig())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detect.ScoredTrack{Track: track, Detection: det, Rating: dec})
}

// handleImport upserts library tracks into the corpus.
func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	var tracks []models.TrackRecord
	if err := json.NewDecoder(r.Body).Decode(&tracks); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	imported := 0
	for _, t := range tracks {
		if t.ID == "" || t.Title == "" || t.Artist == "" {
			continue
		}
		if err := s.store.UpsertTrack(t); err != nil {
			http.Error(w, "import failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		imported++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"imported": imported})
}

// handleScan walks every album in the corpus, streaming per-track results
// over SSE and persisting scores as it goes.
func (s *server) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	albums, err := s.store.Albums()
	if err != nil {
		http.Error(w, "corpus unavailable: "+err.Error(), http.StatusInternalServerError)
		return
	}

	flusher, err := setupSSE(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	send := func(v any) { sendEvent(w, flusher, v) }

	scored := 0
	for i, pair := range albums {
		select {
		case <-ctx.Done():
			log.Println("Client disconnected, scan aborted")
			return
		default:
		}

		artist, album := pair[0], pair[1]
		results, err := s.detector.ScoreAlbum(ctx, artist, album)
		if err != nil {
			send(map[string]any{"status": "error", "artist": artist, "album": album, "message": err.Error()})
			continue
		}

		for _, res := range results {
			if err := s.store.SaveScore(res.Track.ID, res.Detection, res.Rating); err != nil {
				log.Printf("save score for %s: %v", res.Track.ID, err)
			}
			if names := tagNames(res.Track); len(names) > 0 {
				if err := s.store.SaveTags(res.Track.ID, names); err != nil {
					log.Printf("save tags for %s: %v", res.Track.ID, err)
				}
			}
			scored++
			send(map[string]any{
				"status": "processing",
				"index":  i + 1,
				"total":  len(albums),
				"artist": artist,
				"album":  album,
				"result": res,
			})
		}
	}

	send(map[string]any{
		"status": "complete",
		"meta": map[string]any{
			"albums":    len(albums),
			"tracks":    scored,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// handleBackfill refreshes raw popularity from the Spotify web-player flow
// and re-derives special tags, with audio features when a Web API client is
// configured. Tags are unioned across recordings sharing an ISRC.
func (s *server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tracks, err := s.store.AllTracks()
	if err != nil {
		http.Error(w, "corpus unavailable: "+err.Error(), http.StatusInternalServerError)
		return
	}

	updated := 0
	byISRC := make(map[string][]tags.Tag)
	trackTags := make(map[string][]tags.Tag, len(tracks))

	for _, t := range tracks {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if pop, err := s.web.TrackPopularity(t.ID); err == nil && pop > 0 {
			if err := s.store.UpdatePopularity(t.ID, pop); err == nil {
				updated++
			}
		}

		var feat *tags.AudioFeatures
		if s.sp != nil {
			if f, err := s.sp.AudioFeatures(ctx, t.ID); err == nil {
				feat = f
			}
		}
		detected := tags.Detect(t.Title, t.Album, nil, feat)
		trackTags[t.ID] = detected
		if t.ISRC != "" {
			byISRC[t.ISRC] = tags.Union(byISRC[t.ISRC], detected)
		}
	}

	tagged := 0
	for _, t := range tracks {
		final := trackTags[t.ID]
		if t.ISRC != "" {
			final = byISRC[t.ISRC]
		}
		if len(final) == 0 {
			continue
		}
		names := make([]string, len(final))
		for i, tag := range final {
			names[i] = string(tag)
		}
		if err := s.store.SaveTags(t.ID, names); err != nil {
			log.Printf("save tags for %s: %v", t.ID, err)
			continue
		}
		tagged++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"popularity_updated": updated, "tagged": tagged})
}

func tagNames(t models.TrackRecord) []string {
	detected := tags.Detect(t.Title, t.Album, nil, nil)
	names := make([]string, len(detected))
	for i, tag := range detected {
		names[i] = string(tag)
	}
	return names
}

func positionOf(track models.TrackRecord, stats *albumstats.Stats) rating.Position {
	pos := rating.Position{Rank: 0, Count: 1, Popularity: track.Popularity}
	if stats == nil {
		return pos
	}
	pos.Count = len(stats.Tracks)
	pos.MedianPopularity = stats.Median
	pos.MeanTop50Z = stats.MeanTop50Z
	for _, t := range stats.Tracks {
		if t.Popularity > track.Popularity {
			pos.Rank++
		}
	}
	return pos
}

/* =========================
   Main
   ========================= */

func main() {
	_ = godotenv.Load()

	// Database setup
	dbPath := os.Getenv("TRACKSTAR_DB")
	if dbPath == "" {
		dbPath = "./data/library.db"
	}
	_ = os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	store, err := corpus.Open(db)
	if err != nil {
		log.Fatalf("Failed to init DB schema: %v", err)
	}

	// Provider evidence sources. A missing credential disables that source
	// instead of aborting: detection proceeds with whatever remains.
	var extra []detect.EvidenceSource
	var sp *providers.Spotify

	spotifyID := os.Getenv("SPOTIFY_ID")
	spotifySecret := os.Getenv("SPOTIFY_SECRET")
	if spotifyID != "" && spotifySecret != "" {
		config := &clientcredentials.Config{
			ClientID:     spotifyID,
			ClientSecret: spotifySecret,
			TokenURL:     spotifyauth.TokenURL,
		}
		httpClient := config.Client(context.Background())
		sp = providers.NewSpotify(spotify.New(httpClient))
		extra = append(extra, sp)
	} else {
		log.Println("WARN: SPOTIFY_ID/SPOTIFY_SECRET not set, Spotify evidence disabled")
	}

	if token := os.Getenv("DISCOGS_TOKEN"); token != "" {
		extra = append(extra, providers.NewDiscogs(token))
	} else {
		log.Println("WARN: DISCOGS_TOKEN not set, Discogs evidence disabled")
	}

	extra = append(extra, providers.NewMusicBrainz())

	detector := detect.New(store, extra, providers.NewVideoSearch(), rating.DefaultConfig())
	srv := &server{store: store, detector: detector, web: providers.NewSpotifyWeb(), sp: sp}

	// Routing
	http.HandleFunc("/api/v1/detect", RecoveryMiddleware(requirePost(srv.handleDetect)))
	http.HandleFunc("/api/v1/tracks", RecoveryMiddleware(requirePost(srv.handleImport)))
	http.HandleFunc("/api/v1/scan", RecoveryMiddleware(requirePost(srv.handleScan)))
	http.HandleFunc("/api/v1/backfill", RecoveryMiddleware(requirePost(srv.handleBackfill)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("trackstar scoring engine listening on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func requirePost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

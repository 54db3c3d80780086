//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dazeez1/notes-app/config"
	"github.com/dazeez1/notes-app/internal/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		shutdownServer(srv)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	shutdownServer(srv)
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

// envelope mirrors the response wrapper every endpoint answers with.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type noteBody struct {
	ID       int64    `json:"id"`
	Title    string   `json:"noteTitle"`
	Content  string   `json:"noteContent"`
	Tags     []string `json:"noteTags"`
	Pinned   bool     `json:"isNotePinned"`
	Archived bool     `json:"isNoteArchived"`
}

type listBody struct {
	Notes []noteBody `json:"notes"`
	Total int64      `json:"total"`
	Limit int        `json:"limit"`
	Skip  int        `json:"skip"`
}

func TestNotesLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())
	phone := fmt.Sprintf("+1555%07d", time.Now().UnixNano()%10000000)
	password := "testpass123!"

	token := registerAndVerify(t, baseURL, email, phone, password)

	// Login with the same credentials must also work.
	loginToken := login(t, baseURL, email, password)
	if loginToken == "" {
		t.Fatalf("expected a login token")
	}

	work := createNote(t, baseURL, token, "Sprint planning", "prepare the board", []string{"Work", "agenda"})
	if work.Title != "Sprint planning" {
		t.Fatalf("unexpected note title: %q", work.Title)
	}
	if work.Tags[0] != "work" {
		t.Fatalf("expected lowercased tag, got %q", work.Tags[0])
	}

	home := createNote(t, baseURL, token, "Grocery list", "milk and eggs", []string{"home"})
	pinned := createNote(t, baseURL, token, "Important reminder", "renew passport", nil)

	// Pin sorts the note ahead of newer ones.
	toggled := patchNote(t, baseURL, token, pinned.ID, "pin")
	if !toggled.Pinned {
		t.Fatalf("expected note %d to be pinned", pinned.ID)
	}

	listing := listNotes(t, baseURL, token, "")
	if listing.Total != 3 {
		t.Fatalf("expected 3 notes, got %d", listing.Total)
	}
	if listing.Notes[0].ID != pinned.ID {
		t.Fatalf("expected pinned note first, got %d", listing.Notes[0].ID)
	}

	// OR semantics over multiple tags.
	filtered := listNotes(t, baseURL, token, "?tags=work,home")
	if filtered.Total != 2 {
		t.Fatalf("expected 2 tagged notes, got %d", filtered.Total)
	}

	// Archived notes disappear from default listings.
	archived := patchNote(t, baseURL, token, home.ID, "archive")
	if !archived.Archived {
		t.Fatalf("expected note %d to be archived", home.ID)
	}
	listing = listNotes(t, baseURL, token, "")
	if listing.Total != 2 {
		t.Fatalf("expected 2 visible notes, got %d", listing.Total)
	}
	listing = listNotes(t, baseURL, token, "?includeArchived=true")
	if listing.Total != 3 {
		t.Fatalf("expected 3 notes including archived, got %d", listing.Total)
	}

	// Full-text search ranks matches and skips archived notes.
	results := searchNotes(t, baseURL, token, "sprint")
	if results.Total != 1 || results.Notes[0].ID != work.ID {
		t.Fatalf("unexpected search results: %+v", results)
	}
	results = searchNotes(t, baseURL, token, "grocery")
	if results.Total != 0 {
		t.Fatalf("archived note must not surface in search, got %d", results.Total)
	}

	updated := updateNote(t, baseURL, token, work.ID, map[string]any{"noteTitle": "Sprint retro"})
	if updated.Title != "Sprint retro" {
		t.Fatalf("unexpected updated title: %q", updated.Title)
	}
	if updated.Content != "prepare the board" {
		t.Fatalf("omitted content must stay, got %q", updated.Content)
	}

	stats := noteStats(t, baseURL, token)
	if stats.Stats.TotalNotes != 3 || stats.Stats.PinnedNotes != 1 || stats.Stats.ArchivedNotes != 1 {
		t.Fatalf("unexpected stats: %+v", stats.Stats)
	}
	if stats.Stats.TotalTags != 3 {
		t.Fatalf("expected 3 tag occurrences, got %d", stats.Stats.TotalTags)
	}

	deleteNote(t, baseURL, token, home.ID)
	expectStatus(t, baseURL, token, http.MethodGet, fmt.Sprintf("/notes/%d", home.ID), nil, http.StatusNotFound, "NOT_FOUND")

	// A second account cannot see or touch the first account's notes.
	otherEmail := fmt.Sprintf("other_%d@example.com", time.Now().UnixNano())
	otherPhone := fmt.Sprintf("+1666%07d", time.Now().UnixNano()%10000000)
	otherToken := registerAndVerify(t, baseURL, otherEmail, otherPhone, password)

	expectStatus(t, baseURL, otherToken, http.MethodGet, fmt.Sprintf("/notes/%d", work.ID), nil, http.StatusNotFound, "NOT_FOUND")
	expectStatus(t, baseURL, otherToken, http.MethodDelete, fmt.Sprintf("/notes/%d", work.ID), nil, http.StatusNotFound, "NOT_FOUND")
}

func TestAuthGuards(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	expectStatus(t, baseURL, "", http.MethodGet, "/notes", nil, http.StatusUnauthorized, "UNAUTHENTICATED")
	expectStatus(t, baseURL, "garbage", http.MethodGet, "/notes", nil, http.StatusUnauthorized, "TOKEN_MALFORMED")

	email := fmt.Sprintf("guard_%d@example.com", time.Now().UnixNano())
	phone := fmt.Sprintf("+1777%07d", time.Now().UnixNano()%10000000)
	signup(t, baseURL, email, phone, "testpass123!")

	// Unverified accounts cannot log in.
	body := map[string]string{"emailAddress": email, "password": "testpass123!"}
	expectStatus(t, baseURL, "", http.MethodPost, "/auth/login", body, http.StatusUnauthorized, "EMAIL_NOT_VERIFIED")

	// A wrong code is rejected without consuming the pending one.
	wrong := map[string]string{"emailAddress": email, "otpCode": "000000"}
	if code := readPendingOTP(t, email); code == "000000" {
		wrong["otpCode"] = "000001"
	}
	expectStatus(t, baseURL, "", http.MethodPost, "/auth/verify-otp", wrong, http.StatusBadRequest, "INVALID_OTP")

	verify(t, baseURL, email, readPendingOTP(t, email))
}

func registerAndVerify(t *testing.T, baseURL, email, phone, password string) string {
	t.Helper()
	signup(t, baseURL, email, phone, password)
	return verify(t, baseURL, email, readPendingOTP(t, email))
}

func signup(t *testing.T, baseURL, email, phone, password string) {
	t.Helper()

	payload := map[string]string{
		"fullName":     "Test User",
		"emailAddress": email,
		"phoneNumber":  phone,
		"password":     password,
	}
	resp := request(t, baseURL, "", http.MethodPost, "/auth/signup", payload)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("signup status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

func verify(t *testing.T, baseURL, email, otp string) string {
	t.Helper()

	payload := map[string]string{"emailAddress": email, "otpCode": otp}
	resp := request(t, baseURL, "", http.MethodPost, "/auth/verify-otp", payload)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("verify status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return tokenFromBody(t, resp.Body)
}

func login(t *testing.T, baseURL, email, password string) string {
	t.Helper()

	payload := map[string]string{"emailAddress": email, "password": password}
	resp := request(t, baseURL, "", http.MethodPost, "/auth/login", payload)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return tokenFromBody(t, resp.Body)
}

func tokenFromBody(t *testing.T, body io.Reader) string {
	t.Helper()

	var parsed envelope
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(parsed.Data, &data); err != nil {
		t.Fatalf("decode auth data: %v", err)
	}
	if data.Token == "" {
		t.Fatalf("missing token in auth response")
	}
	return data.Token
}

// readPendingOTP reads the active verification code straight from the
// database; there is no real mailbox in the test environment.
func readPendingOTP(t *testing.T, email string) string {
	t.Helper()

	cfg := config.LoadConfig()
	db, err := sql.Open("postgres", buildPostgresURL(cfg))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var otp sql.NullString
	err = db.QueryRowContext(ctx, "SELECT email_otp FROM users WHERE lower(email) = lower($1)", email).Scan(&otp)
	if err != nil {
		t.Fatalf("read otp: %v", err)
	}
	if !otp.Valid {
		t.Fatalf("no pending otp for %s", email)
	}
	return otp.String
}

func createNote(t *testing.T, baseURL, token, title, content string, tags []string) noteBody {
	t.Helper()

	payload := map[string]any{"noteTitle": title, "noteContent": content, "noteTags": tags}
	resp := request(t, baseURL, token, http.MethodPost, "/notes", payload)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("create note status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return noteFromBody(t, resp.Body)
}

func updateNote(t *testing.T, baseURL, token string, id int64, fields map[string]any) noteBody {
	t.Helper()

	resp := request(t, baseURL, token, http.MethodPut, fmt.Sprintf("/notes/%d", id), fields)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("update note status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return noteFromBody(t, resp.Body)
}

func patchNote(t *testing.T, baseURL, token string, id int64, action string) noteBody {
	t.Helper()

	resp := request(t, baseURL, token, http.MethodPatch, fmt.Sprintf("/notes/%d/%s", id, action), nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s note status %d: %s", action, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return noteFromBody(t, resp.Body)
}

func deleteNote(t *testing.T, baseURL, token string, id int64) {
	t.Helper()

	resp := request(t, baseURL, token, http.MethodDelete, fmt.Sprintf("/notes/%d", id), nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("delete note status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

func noteFromBody(t *testing.T, body io.Reader) noteBody {
	t.Helper()

	var parsed envelope
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		t.Fatalf("decode note response: %v", err)
	}
	var data struct {
		Note noteBody `json:"note"`
	}
	if err := json.Unmarshal(parsed.Data, &data); err != nil {
		t.Fatalf("decode note data: %v", err)
	}
	return data.Note
}

func listNotes(t *testing.T, baseURL, token, query string) listBody {
	t.Helper()
	return listFromPath(t, baseURL, token, "/notes"+query)
}

func searchNotes(t *testing.T, baseURL, token, q string) listBody {
	t.Helper()
	return listFromPath(t, baseURL, token, "/notes/search?q="+q)
}

func listFromPath(t *testing.T, baseURL, token, path string) listBody {
	t.Helper()

	resp := request(t, baseURL, token, http.MethodGet, path, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("list status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed envelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	var data listBody
	if err := json.Unmarshal(parsed.Data, &data); err != nil {
		t.Fatalf("decode list data: %v", err)
	}
	return data
}

type statsBody struct {
	Stats struct {
		TotalNotes    int64 `json:"totalNotes"`
		PinnedNotes   int64 `json:"pinnedNotes"`
		ArchivedNotes int64 `json:"archivedNotes"`
		TotalTags     int64 `json:"totalTags"`
	} `json:"stats"`
	PopularTags []struct {
		Tag   string `json:"tag"`
		Count int64  `json:"count"`
	} `json:"popularTags"`
}

func noteStats(t *testing.T, baseURL, token string) statsBody {
	t.Helper()

	resp := request(t, baseURL, token, http.MethodGet, "/notes/stats", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("stats status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed envelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode stats response: %v", err)
	}
	var data statsBody
	if err := json.Unmarshal(parsed.Data, &data); err != nil {
		t.Fatalf("decode stats data: %v", err)
	}
	return data
}

func expectStatus(t *testing.T, baseURL, token, method, path string, body any, status int, code string) {
	t.Helper()

	resp := request(t, baseURL, token, method, path, body)
	defer resp.Body.Close()

	if resp.StatusCode != status {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status %d, want %d: %s", method, path, resp.StatusCode, status, strings.TrimSpace(string(msg)))
	}

	var parsed envelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if parsed.Error != code {
		t.Fatalf("%s %s error %q, want %q", method, path, parsed.Error, code)
	}
}

func request(t *testing.T, baseURL, token, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "notes")
	_ = os.Setenv("DB_PASSWORD", "notes")
	_ = os.Setenv("DB_NAME", "notes_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("MAILER_BACKEND", "log")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func shutdownServer(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	feedDir    string
}

func setupCLITestEnv(t *testing.T, extra string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, key := range []string{"GOOGLE_API_KEY", "GOOGLE_CSE_ID", "BING_API_KEY", "SERPAPI_KEY", "NTFY_TOPIC"} {
		t.Setenv(key, "")
	}
	feedDir := filepath.Join(base, "raw_data")
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
database_path = %q
feed_dir = %q
log_dir = %q

[network]
requests_per_second = 1000

[logging]
level = "error"
%s`, base, filepath.Join(base, "catalog.db"), feedDir, filepath.Join(base, "logs"), extra)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath, feedDir: feedDir}
}

func (e *cliTestEnv) writeFeed(t *testing.T, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(e.feedDir, 0o755); err != nil {
		t.Fatalf("mkdir feed: %v", err)
	}
	path := filepath.Join(e.feedDir, "raw_products_001.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestCLIRunAndInspect(t *testing.T) {
	env := setupCLITestEnv(t, "")
	env.writeFeed(t,
		`{"id": 1, "sku": "T500", "name": "Reloj Inteligente T500", "sale_price": 45900, "suggested_price": 79900, "user_id": 10, "user_name": "Tienda Uno", "stock": 4}`,
		`{"id": 2, "sku": "T500-N", "name": "Reloj Inteligente T500 Negro", "sale_price": 47900, "suggested_price": 81900, "user_id": 11, "user_name": "Tienda Dos", "stock": 2}`,
	)

	out, _, err := runCLI(t, env, "run", "--stages", "ingest,cluster")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "ingest")
	requireContains(t, out, "cluster")

	out, _, err = runCLI(t, env, "clusters")
	if err != nil {
		t.Fatalf("clusters: %v", err)
	}
	requireContains(t, out, "Reloj Inteligente T500")
	requireContains(t, out, "OPPORTUNITY")

	out, _, err = runCLI(t, env, "--json", "clusters")
	if err != nil {
		t.Fatalf("clusters --json: %v", err)
	}
	var clusters []struct {
		ClusterID    string `json:"cluster_id"`
		MemberCount  int    `json:"member_count"`
		ListingCount int    `json:"listing_count"`
	}
	if err := json.Unmarshal([]byte(out), &clusters); err != nil {
		t.Fatalf("decode clusters: %v\n%s", err, out)
	}
	if len(clusters) != 1 || clusters[0].MemberCount != 2 || clusters[0].ListingCount != 2 {
		t.Fatalf("unexpected clusters %+v", clusters)
	}

	out, _, err = runCLI(t, env, "show", "2")
	if err != nil {
		t.Fatalf("show by listing: %v", err)
	}
	requireContains(t, out, clusters[0].ClusterID)
	requireContains(t, out, "Tienda Dos")

	out, _, err = runCLI(t, env, "show", clusters[0].ClusterID)
	if err != nil {
		t.Fatalf("show by cluster: %v", err)
	}
	requireContains(t, out, "Saturation: OPPORTUNITY")

	if _, _, err := runCLI(t, env, "show", "does-not-exist"); err == nil {
		t.Fatal("expected an error for an unknown cluster")
	}

	out, _, err = runCLI(t, env, "--json", "stats")
	if err != nil {
		t.Fatalf("stats --json: %v", err)
	}
	var stats struct {
		Listings int `json:"listings"`
		Clusters int `json:"clusters"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Listings != 2 || stats.Clusters != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	out, _, err = runCLI(t, env, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "Multi-listing clusters")
}

func TestCLIIngestJSONSummary(t *testing.T) {
	env := setupCLITestEnv(t, "")
	path := filepath.Join(env.baseDir, "extra.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\": 5, \"name\": \"Lampara Solar\", \"sale_price\": 10, \"suggested_price\": 20}\nbroken\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, _, err := runCLI(t, env, "--json", "ingest", path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var summaries []summaryView
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(summaries) != 1 || summaries[0].Updated != 1 || summaries[0].Reasons["malformed"] != 1 {
		t.Fatalf("unexpected summary %+v", summaries)
	}
}

func TestCLIRunRejectsUnknownStage(t *testing.T) {
	env := setupCLITestEnv(t, "")
	_, _, err := runCLI(t, env, "run", "--stages", "ingest,encode")
	if err == nil || !strings.Contains(err.Error(), "encode") {
		t.Fatalf("expected unknown stage error, got %v", err)
	}
}

func TestCLIMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/MCO/search" || r.URL.Query().Get("q") != "reloj t500" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": [{"id": "MCO123", "title": "Reloj T500 Original", "price": 89900, "currency_id": "COP", "permalink": "https://articulo.example/MCO123"}]}`)
	}))
	t.Cleanup(srv.Close)

	env := setupCLITestEnv(t, fmt.Sprintf("\n[providers]\nmeli_base_url = %q\n", srv.URL))
	out, _, err := runCLI(t, env, "market", "reloj", "t500")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	requireContains(t, out, "MCO123")
	requireContains(t, out, "89900.00")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Image providers: mercadolibre")
	requireContains(t, out, "Price providers: mercadolibre")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestCLITestNotify(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
	}))
	t.Cleanup(srv.Close)

	disabled := setupCLITestEnv(t, "")
	out, _, err := runCLI(t, disabled, "test-notify")
	if err != nil {
		t.Fatalf("test-notify disabled: %v", err)
	}
	requireContains(t, out, "Notifications are disabled")

	env := setupCLITestEnv(t, fmt.Sprintf("\n[notifications]\nntfy_topic = %q\n", srv.URL))
	out, _, err = runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if body != "Notification system test" {
		t.Fatalf("unexpected notification body %q", body)
	}
}

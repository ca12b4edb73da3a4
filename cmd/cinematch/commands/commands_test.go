package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender/handler"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/rpc"
)

const movies = `title,genres,keywords,tagline,cast,director
Alpha,Action Thriller,heist,,Ann Lee,Nolan
Beta,Action Thriller,heist,,Ann Lee,Nolan
Gamma,Drama Romance,wedding,,Bo Kim,Curtis
`

// writeConfig writes a catalog and a config pointing at it.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "movies.csv")
	if err := os.WriteFile(csvPath, []byte(movies), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "catalog:\n  source: csv\n  path: " + csvPath + "\nlogging:\n  format: text\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmdFlags(t *testing.T) {
	cmd := NewRootCmd()
	tests := []struct {
		flag      string
		shorthand string
		defValue  string
	}{
		{"config", "c", ""},
		{"log-level", "", "warn"},
		{"output", "o", "table"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			f := cmd.PersistentFlags().Lookup(tt.flag)
			if f == nil {
				t.Fatalf("--%s flag not found", tt.flag)
			}
			if f.Shorthand != tt.shorthand {
				t.Errorf("--%s shorthand = %q, want %q", tt.flag, f.Shorthand, tt.shorthand)
			}
			if f.DefValue != tt.defValue {
				t.Errorf("--%s default = %q, want %q", tt.flag, f.DefValue, tt.defValue)
			}
		})
	}

	want := map[string]bool{"recommend": false, "resolve": false, "snapshot": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRecommendTable(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "-c", cfg, "recommend", "-k", "2", "alpha")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.Contains(lines[0], `matched "Alpha"`) {
		t.Errorf("header = %q", lines[0])
	}
	// header, blank, column titles, two rows
	if len(lines) != 5 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasSuffix(lines[3], "Beta") || !strings.HasPrefix(lines[3], "1") {
		t.Errorf("first row = %q, want rank 1 Beta", lines[3])
	}
}

func TestRecommendJSON(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "-c", cfg, "-o", "json", "recommend", "-k", "1", "Gamma")
	if err != nil {
		t.Fatal(err)
	}
	var resp proto.RecommendResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if resp.Match != "Gamma" || len(resp.Items) != 1 || resp.Items[0].Title == "Gamma" {
		t.Errorf("response = %+v", resp)
	}
}

func TestCommandErrors(t *testing.T) {
	cfg := writeConfig(t)
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no match", []string{"-c", cfg, "recommend", "zzzzzzzzzz"}, apperrors.ErrNoMatch},
		{"bad k", []string{"-c", cfg, "recommend", "--k=-1", "Alpha"}, apperrors.ErrInvalidInput},
		{"resolve no match", []string{"-c", cfg, "resolve", "qqqqqqqq"}, apperrors.ErrNoMatch},
		{"corrupt snapshot", []string{"-c", cfg, "snapshot", "inspect", cfg}, apperrors.ErrSnapshotCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := run(t, "-c", cfg, "-o", "yaml", "resolve", "Alpha"); err == nil {
		t.Error("unknown --output accepted")
	}
	if _, err := run(t, "-c", cfg, "recommend"); err == nil {
		t.Error("recommend without a title accepted")
	}
}

func TestResolve(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "-c", cfg, "resolve", "Bet")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Beta\t(index 1,") {
		t.Errorf("output = %q", out)
	}
}

func TestSnapshotBuildAndInspect(t *testing.T) {
	cfg := writeConfig(t)
	dir := t.TempDir()
	out, err := run(t, "-c", cfg, "-o", "json", "snapshot", "build", "--out", dir)
	if err != nil {
		t.Fatal(err)
	}
	var built struct {
		Path        string `json:"path"`
		Items       int    `json:"items"`
		Fingerprint string `json:"fingerprint"`
	}
	if err := json.Unmarshal([]byte(out), &built); err != nil {
		t.Fatal(err)
	}
	if built.Items != 3 || filepath.Dir(built.Path) != dir {
		t.Fatalf("build = %+v", built)
	}

	out, err = run(t, "-c", cfg, "snapshot", "inspect", built.Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"items", "3", built.Fingerprint, "smooth"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestRemote(t *testing.T) {
	cfgPath := writeConfig(t)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	m, err := bootstrap.LoadModel(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := rpc.NewServer()
	handler.RegisterRPC(s, recommender.New(m, recommender.OptionsFromConfig(cfg)))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go s.Serve(ln)
	t.Cleanup(s.Stop)
	addr := ln.Addr().String()

	out, err := run(t, "-o", "json", "recommend", "--remote", addr, "-k", "2", "Alpha")
	if err != nil {
		t.Fatal(err)
	}
	var resp proto.RecommendResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Match != "Alpha" || len(resp.Items) != 2 || resp.Items[0].Title != "Beta" {
		t.Errorf("remote response = %+v", resp)
	}

	_, err = run(t, "resolve", "--remote", addr, "zzzzzzzz")
	if !errors.Is(err, apperrors.ErrNoMatch) {
		t.Errorf("remote resolve err = %v, want ErrNoMatch", err)
	}
}

package main

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tagwatch/tagwatch/pkg/mapping"
	"github.com/tagwatch/tagwatch/pkg/metrics"
)

func TestStartMetricsServer(t *testing.T) {
	registry := metrics.NewRegistry()
	registry.RecordRun("analyzed", 10*time.Millisecond)
	registry.RecordRun("unchanged", 5*time.Millisecond)

	addr, stop, err := startMetricsServer("127.0.0.1:0", registry, nil)
	if err != nil {
		t.Fatalf("startMetricsServer: %v", err)
	}
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`tagwatch_runs_total{status="analyzed"} 1`,
		`tagwatch_runs_total{status="unchanged"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestStartMetricsServerBadAddr(t *testing.T) {
	if _, _, err := startMetricsServer("not-an-address", metrics.NewRegistry(), nil); err == nil {
		t.Error("invalid listen address must fail")
	}
}

func TestIsRollback(t *testing.T) {
	tests := []struct {
		oldID, newID string
		want         bool
	}{
		{"42", "41", true},
		{"41", "42", false},
		{"42", "42", false},
		{"v42", "41", false},
		{"42", "draft", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := isRollback(tt.oldID, tt.newID); got != tt.want {
			t.Errorf("isRollback(%q, %q) = %v, want %v", tt.oldID, tt.newID, got, tt.want)
		}
	}
}

func TestFilterEntries(t *testing.T) {
	entries := []mapping.Entry{
		{ContainerPublicID: "GTM-AAAA111", PropertyID: "1"},
		{ContainerPublicID: "GTM-BBBB222", PropertyID: "2"},
		{ContainerPublicID: "GTM-CCCC333", PropertyID: "3"},
	}

	if got := filterEntries(entries, ""); len(got) != 3 {
		t.Errorf("empty filter kept %d entries", len(got))
	}
	got := filterEntries(entries, "GTM-CCCC333, GTM-AAAA111")
	if len(got) != 2 || got[0].ContainerPublicID != "GTM-AAAA111" || got[1].ContainerPublicID != "GTM-CCCC333" {
		t.Errorf("filtered = %+v", got)
	}
	if got := filterEntries(entries, "GTM-NOPE000"); len(got) != 0 {
		t.Errorf("unmatched filter kept %d entries", len(got))
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clinicalGym/business/orchestrator"
	"clinicalGym/pkg/utils"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEnvsCommand(t *testing.T) {
	out, err := run(t, "envs")
	if err != nil {
		t.Fatalf("envs: %v", err)
	}
	for _, name := range []string{"ed_triage", "alert_triage", "bed_allocation", "claims_routing", "or_scheduling"} {
		if !strings.Contains(out, name) {
			t.Fatalf("missing %s in:\n%s", name, out)
		}
	}
}

func TestTrainCommandIsReproducible(t *testing.T) {
	args := []string{"train", "--environment", "alert_triage", "--episodes", "4", "--seed", "7", "--quiet"}
	a, err := run(t, args...)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	b, err := run(t, args...)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if a != b {
		t.Fatalf("seeded runs differ:\n%s\n%s", a, b)
	}
	if !strings.Contains(a, "alert_triage/softmax: 4 episodes") {
		t.Fatalf("unexpected summary:\n%s", a)
	}
}

func TestTrainCommandWritesPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "curve.png")
	if _, err := run(t, "train", "--episodes", "3", "--policy", "random", "--plot", path, "--quiet"); err != nil {
		t.Fatalf("train: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("plot not written: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("plot is empty")
	}
}

func TestTrainCommandErrors(t *testing.T) {
	if _, err := run(t, "train", "--environment", "nope"); err == nil {
		t.Fatal("expected unknown environment error")
	}
	if _, err := run(t, "train", "--policy", "oracle"); err == nil {
		t.Fatal("expected unknown policy error")
	}
	if _, err := run(t, "train", "--episodes", "0"); err == nil {
		t.Fatal("expected episodes error")
	}
}

func TestOrchestrateCommand(t *testing.T) {
	out, err := run(t, "orchestrate", "--environments", "ed_triage, claims_routing", "--episodes", "2", "--seed", "1")
	if err != nil {
		t.Fatalf("orchestrate: %v", err)
	}
	var res orchestrator.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(res.Workflows) != 2 || res.Workflows[1].Environment != "claims_routing" || res.Workflows[0].Episodes != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test")
	out, err := run(t, "token", "--user", "erin", "--role", "admin")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := utils.ParseJWT(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != "erin" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

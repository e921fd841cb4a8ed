package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gigmarket/gigmarket/internal/models"
)

type fakeModerator struct {
	verified map[string]bool
	tiers    map[string]models.Tier
	reset    []string
	err      error
}

func (f *fakeModerator) PendingWorkers(context.Context, int) ([]models.Profile, error) {
	return []models.Profile{{ID: "w1", Role: models.RoleWorker}}, f.err
}
func (f *fakeModerator) Verify(_ context.Context, id string, v bool) error {
	if f.err != nil {
		return f.err
	}
	f.verified[id] = v
	return nil
}
func (f *fakeModerator) ChangeTier(_ context.Context, id string, tier models.Tier) error {
	f.tiers[id] = tier
	return f.err
}
func (f *fakeModerator) ResetUsage(_ context.Context, ids []string) (int64, error) {
	f.reset = ids
	return int64(len(ids)), f.err
}

func newFake() *fakeModerator {
	return &fakeModerator{verified: map[string]bool{}, tiers: map[string]models.Tier{}}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		cmd     command
		wantErr bool
		wantOut string
	}{
		{"list", command{name: "list", limit: 5}, false, `"id": "w1"`},
		{"verify", command{name: "verify", id: "w1"}, false, "w1: verified"},
		{"unverify", command{name: "unverify", id: "w1"}, false, "w1: unverified"},
		{"verify without id", command{name: "verify"}, true, ""},
		{"tier", command{name: "tier", id: "u1", tier: "pro"}, false, "u1: tier pro"},
		{"tier without tier", command{name: "tier", id: "u1"}, true, ""},
		{"reset usage", command{name: "reset-usage", id: "a, b,,c"}, false, "reset usage of 3 profiles"},
		{"reset usage without ids", command{name: "reset-usage", id: " , "}, true, ""},
		{"unknown", command{name: "drop"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), newFake(), tt.cmd, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("run error = %v; wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output %q does not contain %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestRun_PropagatesErrors(t *testing.T) {
	f := newFake()
	f.err = errors.New("db down")
	if err := run(context.Background(), f, command{name: "verify", id: "w1"}, &bytes.Buffer{}); err == nil {
		t.Errorf("expected error, got nil")
	}
}

func TestRun_ResetUsageIDs(t *testing.T) {
	f := newFake()
	if err := run(context.Background(), f, command{name: "reset-usage", id: "a, b,,c"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(f.reset, ",") != "a,b,c" {
		t.Errorf("reset ids = %v; want [a b c]", f.reset)
	}
}

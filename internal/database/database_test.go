package database

import (
	"database/sql"
	"testing"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := InitDB(":memory:")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndGetRounds(t *testing.T) {
	db := setupTestDB(t)

	if err := InsertRound(db, "run-1", "calc-1", 1, "nonce-a", "running"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := InsertRound(db, "run-2", "calc-1", 2, "nonce-b", "running"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := InsertRound(db, "run-3", "other", 1, "", "running"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rounds, err := GetRounds(db, "calc-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("rounds = %d, want 2", len(rounds))
	}
	if rounds[0].Round != 1 || rounds[1].Round != 2 {
		t.Errorf("rounds out of order: %+v", rounds)
	}
	if rounds[0].Nonce != "nonce-a" {
		t.Errorf("Nonce = %q", rounds[0].Nonce)
	}
}

func TestUpdateRoundResult(t *testing.T) {
	db := setupTestDB(t)

	if err := InsertRound(db, "run-1", "calc-1", 1, "", "running"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	err := UpdateRoundResult(db, "run-1", "success",
		"https://github.com/octo/calc-1-round-1",
		"https://octo.github.io/calc-1-round-1/",
		"abc123", "deployed")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	rounds, err := GetRounds(db, "calc-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	r := rounds[0]
	if r.Status != "success" {
		t.Errorf("Status = %q", r.Status)
	}
	if r.CommitSHA != "abc123" {
		t.Errorf("CommitSHA = %q", r.CommitSHA)
	}
	if r.PagesURL != "https://octo.github.io/calc-1-round-1/" {
		t.Errorf("PagesURL = %q", r.PagesURL)
	}
}

func TestUpdateRoundStatus(t *testing.T) {
	db := setupTestDB(t)

	if err := InsertRound(db, "run-1", "calc-1", 1, "", "running"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := UpdateRoundStatus(db, "run-1", "error", "generation failed"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	rounds, _ := GetRounds(db, "calc-1")
	if rounds[0].Status != "error" || rounds[0].Message != "generation failed" {
		t.Errorf("round = %+v", rounds[0])
	}
}

func TestGetRoundsUnknownTask(t *testing.T) {
	db := setupTestDB(t)

	rounds, err := GetRounds(db, "missing")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(rounds) != 0 {
		t.Errorf("rounds = %d, want 0", len(rounds))
	}
}

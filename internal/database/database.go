package database

import (
	"database/sql"
	"fmt"
	"log"

	"pagesmith-deployment/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the round ledger and creates its schema. The ledger is
// observability only: repository state is always re-derived from the
// hosting provider.
func InitDB(path string) *sql.DB {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	createTable := `
	CREATE TABLE IF NOT EXISTS rounds (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		round INTEGER NOT NULL,
		nonce TEXT,
		status TEXT NOT NULL,
		repo_url TEXT,
		pages_url TEXT,
		commit_sha TEXT,
		message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_rounds_task ON rounds(task, round);`

	if _, err := db.Exec(createTable); err != nil {
		log.Fatal("Failed to create table:", err)
	}

	return db
}

func InsertRound(db *sql.DB, id, task string, round int, nonce, status string) error {
	stmt, err := db.Prepare("INSERT INTO rounds (id, task, round, nonce, status) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(id, task, round, nonce, status); err != nil {
		return fmt.Errorf("failed to insert round: %w", err)
	}
	return nil
}

func UpdateRoundStatus(db *sql.DB, id, status, message string) error {
	stmt, err := db.Prepare("UPDATE rounds SET status = ?, message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(status, message, id)
	return err
}

func UpdateRoundResult(db *sql.DB, id, status, repoURL, pagesURL, commitSHA, message string) error {
	stmt, err := db.Prepare(`UPDATE rounds SET status = ?, repo_url = ?, pages_url = ?,
		commit_sha = ?, message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(status, repoURL, pagesURL, commitSHA, message, id)
	return err
}

// GetRounds returns all recorded rounds for a task, oldest first.
func GetRounds(db *sql.DB, task string) ([]models.Round, error) {
	rows, err := db.Query(`SELECT id, task, round, IFNULL(nonce, ''), status, IFNULL(repo_url, ''),
		IFNULL(pages_url, ''), IFNULL(commit_sha, ''), IFNULL(message, ''), created_at, updated_at
		FROM rounds WHERE task = ? ORDER BY round ASC, created_at ASC`, task)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []models.Round
	for rows.Next() {
		var r models.Round
		if err := rows.Scan(&r.ID, &r.Task, &r.Round, &r.Nonce, &r.Status, &r.RepoURL,
			&r.PagesURL, &r.CommitSHA, &r.Message, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

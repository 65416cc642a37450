package state

import (
	"fmt"

	"github.com/surge-downloader/coursedl/internal/engine/types"
)

// RecordCompleted inserts or replaces a ledger row.
func RecordCompleted(e types.DownloadEntry) error {
	conn, err := GetDB()
	if err != nil {
		return err
	}

	_, err = conn.Exec(`
		INSERT OR REPLACE INTO downloads(id, course_slug, kind, title, dest_path, bytes, completed_at, time_taken)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.CourseSlug, string(e.Kind), e.Title, e.DestPath, e.Bytes, e.CompletedAt, e.TimeTaken)
	if err != nil {
		return fmt.Errorf("recording download %s: %w", e.ID, err)
	}
	return nil
}

// ListAllDownloads returns every row, newest first.
func ListAllDownloads() ([]types.DownloadEntry, error) {
	return ListDownloads(0)
}

// ListDownloads returns up to limit rows, newest first. limit <= 0 means all.
func ListDownloads(limit int) ([]types.DownloadEntry, error) {
	conn, err := GetDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := conn.Query(`
		SELECT id, course_slug, kind, title, dest_path, bytes, completed_at, time_taken
		FROM downloads ORDER BY completed_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing downloads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []types.DownloadEntry{}
	for rows.Next() {
		var e types.DownloadEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.CourseSlug, &kind, &e.Title, &e.DestPath, &e.Bytes, &e.CompletedAt, &e.TimeTaken); err != nil {
			return nil, err
		}
		e.Kind = types.ItemKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RemoveFromMasterList deletes a row by ID.
func RemoveFromMasterList(id string) error {
	conn, err := GetDB()
	if err != nil {
		return err
	}
	res, err := conn.Exec(`DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("removing download %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("download %s not found", id)
	}
	return nil
}

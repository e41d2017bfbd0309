package store

import (
	"fmt"
	"time"

	"sptnr-core/catalog"
	"sptnr-core/shared/apperr"
)

// RecordScan implements record_scan(artist, album, type, count, status),
// spec.md §4.3.
func (s *Store) RecordScan(artist, album string, scanType catalog.ScanType, tracksProcessed int, status catalog.ScanStatus) error {
	_, err := s.db.Exec(`INSERT INTO scan_history (artist, album, scan_type, timestamp, tracks_processed, status) VALUES (?,?,?,?,?,?)`,
		artist, album, string(scanType), time.Now(), tracksProcessed, string(status))
	if err != nil {
		return fmt.Errorf("%w: recording scan for (%q,%q): %v", apperr.ErrStore, artist, album, err)
	}
	return nil
}

// WasAlbumScanned implements was_album_scanned(artist, album, type,
// within_days): true if a completed scan_history row exists for this album
// within the last withinDays days, used by the pipeline's skip-if-recent
// check (spec.md §4.6).
func (s *Store) WasAlbumScanned(artist, album string, scanType catalog.ScanType, withinDays int) (bool, error) {
	cutoff := time.Now().AddDate(0, 0, -withinDays)
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM scan_history WHERE artist=? AND album=? AND scan_type=? AND status='completed' AND timestamp >= ?`,
		artist, album, string(scanType), cutoff).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("%w: checking scan history for (%q,%q): %v", apperr.ErrStore, artist, album, err)
	}
	return count > 0, nil
}

// RecentScans implements recent_scans(limit) for the dashboard/status API.
func (s *Store) RecentScans(limit int) ([]*catalog.ScanHistoryEntry, error) {
	rows, err := s.db.Query(`SELECT id, artist, album, scan_type, timestamp, tracks_processed, status FROM scan_history ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: reading recent scans: %v", apperr.ErrStore, err)
	}
	defer rows.Close()

	var out []*catalog.ScanHistoryEntry
	for rows.Next() {
		var e catalog.ScanHistoryEntry
		var scanType, status string
		if err := rows.Scan(&e.ID, &e.Artist, &e.Album, &scanType, &e.Timestamp, &e.TracksProcessed, &status); err != nil {
			return nil, fmt.Errorf("%w: scanning scan history row: %v", apperr.ErrStore, err)
		}
		e.ScanType = catalog.ScanType(scanType)
		e.Status = catalog.ScanStatus(status)
		out = append(out, &e)
	}
	return out, nil
}

package armdb

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-cmm/armcast/internal/telemetry"
)

// Session describes one measurement capture.
type Session struct {
	SessionID   string   `json:"session_id"`
	ArmModel    string   `json:"arm_model"`
	ArmSerial   string   `json:"arm_serial"`
	ArmFirmware string   `json:"arm_firmware"`
	StartedAt   float64  `json:"started_at"`
	EndedAt     *float64 `json:"ended_at,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	SampleCount int64    `json:"sample_count"`
}

// BeginSession creates a new session for the given arm and returns its ID.
func (db *DB) BeginSession(identity telemetry.ArmIdentity, notes string) (string, error) {
	sessionID := uuid.NewString()

	_, err := db.Exec(`
		INSERT INTO sessions (session_id, arm_model, arm_serial, arm_firmware, started_at, notes)
		VALUES (?, ?, ?, ?, UNIXEPOCH('subsec'), ?)`,
		sessionID, identity.ModelName, identity.SerialNumber, identity.FirmwareVersion, notes,
	)
	if err != nil {
		return "", fmt.Errorf("failed to begin session: %w", err)
	}

	return sessionID, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID string) error {
	result, err := db.Exec(
		`UPDATE sessions SET ended_at = UNIXEPOCH('subsec') WHERE session_id = ? AND ended_at IS NULL`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no open session with id %s", sessionID)
	}
	return nil
}

// RecordSample stores one pose sample under a session.
func (db *DB) RecordSample(sessionID string, s *telemetry.PoseSample) error {
	_, err := db.Exec(`
		INSERT INTO samples (
			session_id, seq, ts, recv_ns, x, y, z, a, b, c,
			j1, j2, j3, j4, j5, j6, j7, buttons, flags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, s.Seq, s.Timestamp, s.ReceivedNanos, s.X, s.Y, s.Z, s.A, s.B, s.C,
		s.Joints[0], s.Joints[1], s.Joints[2], s.Joints[3], s.Joints[4], s.Joints[5], s.Joints[6],
		int64(s.Buttons), int64(s.Flags),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// RecordButtonEvent stores one probe button transition.
func (db *DB) RecordButtonEvent(sessionID string, seq uint64, previous, current telemetry.ButtonMask) error {
	_, err := db.Exec(
		`INSERT INTO button_events (session_id, seq, previous, current) VALUES (?, ?, ?, ?)`,
		sessionID, seq, int64(previous), int64(current),
	)
	if err != nil {
		return fmt.Errorf("failed to insert button event: %w", err)
	}
	return nil
}

// Sessions lists the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT s.session_id, s.arm_model, s.arm_serial, s.arm_firmware,
			s.started_at, s.ended_at, s.notes,
			(SELECT COUNT(*) FROM samples WHERE session_id = s.session_id)
		FROM sessions s ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.SessionID, &s.ArmModel, &s.ArmSerial, &s.ArmFirmware,
			&s.StartedAt, &s.EndedAt, &s.Notes, &s.SampleCount,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Samples returns samples for a session ordered by sequence number, starting
// after afterSeq.
func (db *DB) Samples(sessionID string, afterSeq uint64, limit int) ([]telemetry.PoseSample, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT seq, ts, recv_ns, x, y, z, a, b, c, j1, j2, j3, j4, j5, j6, j7, buttons, flags
		FROM samples WHERE session_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?`,
		sessionID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []telemetry.PoseSample
	for rows.Next() {
		var s telemetry.PoseSample
		var buttons, flags int64
		if err := rows.Scan(
			&s.Seq, &s.Timestamp, &s.ReceivedNanos, &s.X, &s.Y, &s.Z, &s.A, &s.B, &s.C,
			&s.Joints[0], &s.Joints[1], &s.Joints[2], &s.Joints[3], &s.Joints[4], &s.Joints[5], &s.Joints[6],
			&buttons, &flags,
		); err != nil {
			return nil, err
		}
		s.Buttons = telemetry.ButtonMask(buttons)
		s.Flags = telemetry.StatusFlags(flags)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// SessionStats summarises one session's sample stream.
type SessionStats struct {
	SessionID    string                       `json:"session_id"`
	SampleCount  int64                        `json:"sample_count"`
	ButtonEvents int64                        `json:"button_events"`
	FirstSeq     uint64                       `json:"first_seq"`
	LastSeq      uint64                       `json:"last_seq"`
	FirstTS      float64                      `json:"first_ts"`
	LastTS       float64                      `json:"last_ts"`
	AvgHz        float64                      `json:"avg_hz"`
	JointMin     [telemetry.NumJoints]float64 `json:"joint_min"`
	JointMax     [telemetry.NumJoints]float64 `json:"joint_max"`
}

// Stats computes summary statistics for a session.
func (db *DB) Stats(sessionID string) (SessionStats, error) {
	stats := SessionStats{SessionID: sessionID}

	err := db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(MIN(seq), 0), COALESCE(MAX(seq), 0),
			COALESCE(MIN(ts), 0), COALESCE(MAX(ts), 0)
		FROM samples WHERE session_id = ?`, sessionID,
	).Scan(&stats.SampleCount, &stats.FirstSeq, &stats.LastSeq, &stats.FirstTS, &stats.LastTS)
	if err != nil {
		return stats, fmt.Errorf("failed to query session stats: %w", err)
	}

	err = db.QueryRow(
		`SELECT COUNT(*) FROM button_events WHERE session_id = ?`, sessionID,
	).Scan(&stats.ButtonEvents)
	if err != nil {
		return stats, fmt.Errorf("failed to count button events: %w", err)
	}

	if stats.SampleCount > 0 {
		var dest []interface{}
		for i := 0; i < telemetry.NumJoints; i++ {
			dest = append(dest, &stats.JointMin[i], &stats.JointMax[i])
		}
		err = db.QueryRow(`
			SELECT MIN(j1), MAX(j1), MIN(j2), MAX(j2), MIN(j3), MAX(j3),
				MIN(j4), MAX(j4), MIN(j5), MAX(j5), MIN(j6), MAX(j6), MIN(j7), MAX(j7)
			FROM samples WHERE session_id = ?`, sessionID,
		).Scan(dest...)
		if err != nil {
			return stats, fmt.Errorf("failed to query joint ranges: %w", err)
		}
	}

	if span := stats.LastTS - stats.FirstTS; span > 0 && stats.SampleCount > 1 {
		stats.AvgHz = float64(stats.SampleCount-1) / span
	}

	return stats, nil
}

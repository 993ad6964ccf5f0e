package db

import (
	"database/sql"
	"errors"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store keeps the history of training runs.
type Store struct {
	database *sql.DB
}

// Open opens (creating when needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        model_name VARCHAR(50) NOT NULL,
        dataset_path TEXT NOT NULL,
        data_points INTEGER NOT NULL,
        train_points INTEGER NOT NULL,
        held_out_points INTEGER NOT NULL,
        train_ratio REAL NOT NULL,
        seed INTEGER NOT NULL,
        slope REAL NOT NULL,
        intercept REAL NOT NULL,
        r2 REAL,
        artifact_path TEXT NOT NULL,
        trained_at DATETIME NOT NULL,
        UNIQUE(run_id)
    );
    CREATE INDEX IF NOT EXISTS idx_training_log_trained_at ON training_log(trained_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &Store{database: database}, nil
}

func (s *Store) Close() error {
	return s.database.Close()
}

// TrainingLog is one completed training run. R2 is NaN when the held-out score was undefined.
type TrainingLog struct {
	RunID         string    `json:"run_id"`
	ModelName     string    `json:"model_name"`
	DatasetPath   string    `json:"dataset_path"`
	DataPoints    int       `json:"data_points"`
	TrainPoints   int       `json:"train_points"`
	HeldOutPoints int       `json:"held_out_points"`
	TrainRatio    float64   `json:"train_ratio"`
	Seed          int64     `json:"seed"`
	Slope         float64   `json:"slope"`
	Intercept     float64   `json:"intercept"`
	R2            float64   `json:"r2"`
	ArtifactPath  string    `json:"artifact_path"`
	TrainedAt     time.Time `json:"trained_at"`
}

func (s *Store) SaveTrainingLog(log TrainingLog) error {
	if log.RunID == "" {
		return errors.New("run id required")
	}
	r2 := sql.NullFloat64{Float64: log.R2, Valid: !math.IsNaN(log.R2) && !math.IsInf(log.R2, 0)}
	_, err := s.database.Exec(`
        INSERT INTO training_log (
            run_id, model_name, dataset_path, data_points, train_points, held_out_points,
            train_ratio, seed, slope, intercept, r2, artifact_path, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.RunID, log.ModelName, log.DatasetPath, log.DataPoints, log.TrainPoints, log.HeldOutPoints,
		log.TrainRatio, log.Seed, log.Slope, log.Intercept, r2, log.ArtifactPath, log.TrainedAt.UTC(),
	)
	return err
}

// LoadTrainingLog returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) LoadTrainingLog(limit int) ([]TrainingLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.database.Query(`
        SELECT run_id, model_name, dataset_path, data_points, train_points, held_out_points,
               train_ratio, seed, slope, intercept, r2, artifact_path, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		var r2 sql.NullFloat64
		if err := rows.Scan(&log.RunID, &log.ModelName, &log.DatasetPath, &log.DataPoints, &log.TrainPoints,
			&log.HeldOutPoints, &log.TrainRatio, &log.Seed, &log.Slope, &log.Intercept, &r2,
			&log.ArtifactPath, &log.TrainedAt); err != nil {
			return nil, err
		}
		log.R2 = math.NaN()
		if r2.Valid {
			log.R2 = r2.Float64
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/answers"
	"github.com/xkilldash9x/easyapply/internal/secrets"
)

// ErrNotFound is returned when a job or profile does not exist for the user.
var ErrNotFound = errors.New("record not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can use pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL implementation of schemas.Repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

var _ schemas.Repository = (*Store)(nil)

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

const sqlGetJob = `
    SELECT id, user_id, job_url, company, title, COALESCE(match_score, 0), status
    FROM jobs
    WHERE id = $1 AND user_id = $2;
`

// GetJob loads a job owned by userID.
func (s *Store) GetJob(ctx context.Context, userID, jobID string) (*schemas.Job, error) {
	var j schemas.Job
	err := s.pool.QueryRow(ctx, sqlGetJob, jobID, userID).
		Scan(&j.ID, &j.UserID, &j.URL, &j.Company, &j.Title, &j.MatchScore, &j.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return &j, nil
}

const sqlGetProfile = `
    SELECT id, full_name, email, phone_number, work_experience, skills
    FROM profiles
    WHERE id = $1;
`

// GetProfile loads the profile of userID. JSON columns that fail to decode
// are logged and left empty so a malformed history never blocks an attempt.
func (s *Store) GetProfile(ctx context.Context, userID string) (*schemas.Profile, error) {
	var (
		p                  schemas.Profile
		experience, skills []byte
	)
	err := s.pool.QueryRow(ctx, sqlGetProfile, userID).
		Scan(&p.UserID, &p.FullName, &p.Email, &p.Phone, &experience, &skills)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}

	if len(experience) > 0 {
		if err := json.Unmarshal(experience, &p.WorkExperience); err != nil {
			s.log.Warn("Failed to decode work experience.", zap.String("user_id", userID), zap.Error(err))
			p.WorkExperience = nil
		}
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &p.Skills); err != nil {
			s.log.Warn("Failed to decode skills.", zap.String("user_id", userID), zap.Error(err))
			p.Skills = nil
		}
	}
	return &p, nil
}

const sqlLoadQuestionBank = `
    SELECT user_id, question_text, answer_text, category, updated_at
    FROM linkedin_question_bank
    WHERE user_id = $1
    ORDER BY updated_at DESC;
`

// LoadQuestionBank returns the user's stored answers, newest first. Answers
// may be ciphertext.
func (s *Store) LoadQuestionBank(ctx context.Context, userID string) ([]schemas.BankEntry, error) {
	return s.queryEntries(ctx, sqlLoadQuestionBank, userID)
}

const sqlUpsertAnswer = `
    INSERT INTO linkedin_question_bank (user_id, question_key, question_text, answer_text, category, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $6)
    ON CONFLICT (user_id, question_key) DO UPDATE SET
        question_text = EXCLUDED.question_text,
        answer_text = EXCLUDED.answer_text,
        category = EXCLUDED.category,
        updated_at = EXCLUDED.updated_at;
`

// UpsertAnswer stores an answer keyed by the user and the normalized question
// text. A later answer to the same question replaces the earlier one.
func (s *Store) UpsertAnswer(ctx context.Context, e schemas.BankEntry) error {
	key := answers.Normalize(e.Question)
	if key == "" {
		return errors.New("refusing to store an answer without a question")
	}
	category := e.Category
	if category == "" {
		category = schemas.CategoryGeneral
	}
	if _, err := s.pool.Exec(ctx, sqlUpsertAnswer, e.UserID, key, e.Question, e.Answer, string(category), s.now()); err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}
	return nil
}

const sqlInsertApplication = `
    INSERT INTO applications (id, user_id, job_id, company, role_title, status, match_score, success_screenshot_path, applied_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`

const sqlMarkJobApplied = `
    UPDATE jobs SET status = $1, updated_at = $2
    WHERE id = $3 AND user_id = $4;
`

// RecordApplication writes the application log entry and marks the job with
// the same status in one transaction.
func (s *Store) RecordApplication(ctx context.Context, rec schemas.ApplicationRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	now := s.now()
	var screenshot *string
	if rec.ScreenshotPath != "" {
		screenshot = &rec.ScreenshotPath
	}

	if _, err := tx.Exec(ctx, sqlInsertApplication,
		uuid.NewString(), rec.UserID, rec.JobID, rec.Company, rec.RoleTitle,
		rec.Status, rec.MatchScore, screenshot, now,
	); err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}

	tag, err := tx.Exec(ctx, sqlMarkJobApplied, rec.Status, now, rec.JobID, rec.UserID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Warn("Application recorded for a job that no longer exists.", zap.String("job_id", rec.JobID))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const sqlListUnencryptedSensitive = `
    SELECT user_id, question_text, answer_text, category, updated_at
    FROM linkedin_question_bank
    WHERE category IN ('salary', 'visa', 'sensitive') AND answer_text NOT LIKE $1
    ORDER BY user_id, updated_at;
`

// ListUnencryptedSensitive returns sensitive answers still stored in plain text.
func (s *Store) ListUnencryptedSensitive(ctx context.Context) ([]schemas.BankEntry, error) {
	return s.queryEntries(ctx, sqlListUnencryptedSensitive, secrets.TokenPrefix+"%")
}

const sqlUpdateAnswerCiphertext = `
    UPDATE linkedin_question_bank SET answer_text = $1
    WHERE user_id = $2 AND question_key = $3;
`

// UpdateAnswerCiphertext replaces a stored answer in place without touching
// its timestamp, so encrypting old rows does not reorder the bank.
func (s *Store) UpdateAnswerCiphertext(ctx context.Context, userID, question, ciphertext string) error {
	tag, err := s.pool.Exec(ctx, sqlUpdateAnswerCiphertext, ciphertext, userID, answers.Normalize(question))
	if err != nil {
		return fmt.Errorf("failed to update answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("answer for %q: %w", question, ErrNotFound)
	}
	return nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]schemas.BankEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query question bank: %w", err)
	}
	defer rows.Close()

	var entries []schemas.BankEntry
	for rows.Next() {
		var (
			e        schemas.BankEntry
			category string
		)
		if err := rows.Scan(&e.UserID, &e.Question, &e.Answer, &category, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question bank row: %w", err)
		}
		e.Category = schemas.Category(category)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

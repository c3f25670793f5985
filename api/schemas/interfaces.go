package schemas

import "context"

// -- Persistence Interfaces --

// JobSource loads the inputs of one attempt.
type JobSource interface {
	GetJob(ctx context.Context, userID, jobID string) (*Job, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	LoadQuestionBank(ctx context.Context, userID string) ([]BankEntry, error)
}

// BankWriter persists learned answers. Implementations upsert on
// (owner, normalized question text); the latest answer wins.
type BankWriter interface {
	UpsertAnswer(ctx context.Context, entry BankEntry) error
}

// ApplicationLog records submitted applications and marks the job as applied.
type ApplicationLog interface {
	RecordApplication(ctx context.Context, rec ApplicationRecord) error
}

// Repository is everything the engine needs from storage.
type Repository interface {
	JobSource
	BankWriter
	ApplicationLog
}

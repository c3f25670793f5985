// File: internal/learning/learner.go
package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/answers"
	"github.com/xkilldash9x/easyapply/internal/form"
)

// Encrypter protects sensitive answers before they are stored.
type Encrypter interface {
	Encrypt(plain string) (string, error)
}

// Result summarizes one learning pass.
type Result struct {
	// Learned holds the entries as written, with sensitive answers encrypted.
	Learned []schemas.BankEntry
	// Dropped lists labels whose answers could not be encrypted.
	Dropped []string
}

// Learner turns human corrections into question-bank entries.
type Learner struct {
	writer schemas.BankWriter
	enc    Encrypter
	logger *zap.Logger
}

// New creates a Learner. enc may be nil, in which case sensitive answers are
// never stored.
func New(writer schemas.BankWriter, enc Encrypter, logger *zap.Logger) *Learner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Learner{writer: writer, enc: enc, logger: logger.Named("learner")}
}

// Classify assigns a storage category from keywords in label.
func Classify(label string) schemas.Category {
	n := answers.Normalize(label)
	switch {
	case hasAny(n, "salary", "pay", "compensation"):
		return schemas.CategorySalary
	case hasAny(n, "visa", "sponsor", "citizen"):
		return schemas.CategoryVisa
	case hasAny(n, "experience", "years"):
		return schemas.CategoryExperience
	}
	return schemas.CategoryGeneral
}

// Learn stores every labeled field that exists in both snapshots and whose
// value changed to something non-empty. Salary, visa and otherwise sensitive
// answers are encrypted; a field whose encryption fails is dropped, never
// stored in plain text. Upsert failures do not stop the pass and are returned
// joined.
func (l *Learner) Learn(ctx context.Context, owner string, before, after []form.Field) (Result, error) {
	var res Result
	prev := form.Values(before)
	seen := make(map[string]bool, len(after))
	var errs []error

	for _, f := range after {
		if !f.Labeled() || f.Kind == form.KindFile || seen[f.Label] {
			continue
		}
		seen[f.Label] = true

		old, ok := prev[f.Label]
		value := strings.TrimSpace(f.Value)
		if !ok || value == "" || value == strings.TrimSpace(old) {
			continue
		}

		category := Classify(f.Label)
		if category == schemas.CategorySalary || category == schemas.CategoryVisa || answers.IsSensitive(f.Label) {
			category = schemas.CategorySensitive
		}

		stored := value
		if category.RequiresEncryption() {
			enc, err := l.encrypt(value)
			if err != nil {
				l.logger.Error("Failed to encrypt learned answer; not storing it.",
					zap.String("question", f.Label), zap.Error(err))
				res.Dropped = append(res.Dropped, f.Label)
				continue
			}
			stored = enc
		}

		entry := schemas.BankEntry{UserID: owner, Question: f.Label, Answer: stored, Category: category}
		if err := l.writer.UpsertAnswer(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("failed to store answer for %q: %w", f.Label, err))
			continue
		}
		res.Learned = append(res.Learned, entry)
		l.logger.Info("Learned answer from human correction.",
			zap.String("question", f.Label),
			zap.String("category", string(category)))
	}
	return res, errors.Join(errs...)
}

func (l *Learner) encrypt(value string) (string, error) {
	if l.enc == nil {
		return "", errors.New("no encrypter configured")
	}
	return l.enc.Encrypt(value)
}

func hasAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

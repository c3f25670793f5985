// File: internal/answers/resolver.go
package answers

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/secrets"
)

// Source names the pipeline stage that produced an answer.
type Source string

const (
	SourceProfile   Source = "profile"
	SourceBankExact Source = "bank_exact"
	SourceBankFuzzy Source = "bank_fuzzy"
	SourceDerived   Source = "derived"
)

// Answer is a resolved value for one label.
type Answer struct {
	Value  string
	Source Source
	// Question is the stored question that matched, for bank sources.
	Question string
	// Score is the similarity for fuzzy matches and 100 for exact ones.
	Score int
}

// Decrypter turns stored ciphertext back into plain text.
type Decrypter interface {
	Decrypt(token string) (string, error)
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithClock replaces time.Now for derived experience.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

type bankItem struct {
	entry      schemas.BankEntry
	normalized string
}

// Resolver answers form labels for one attempt. It is not safe for concurrent use.
type Resolver struct {
	profile schemas.Profile
	bank    []bankItem
	exact   map[string]int
	dec     Decrypter
	logger  *zap.Logger
	now     func() time.Time

	skipped     []string
	skippedSeen map[string]bool
}

// NewResolver builds a resolver over a snapshot of the user's question bank.
// dec may be nil, in which case ciphertext answers are used as stored.
func NewResolver(profile schemas.Profile, bank []schemas.BankEntry, dec Decrypter, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		profile:     profile,
		exact:       make(map[string]int, len(bank)),
		dec:         dec,
		logger:      logger.Named("resolver"),
		now:         time.Now,
		skippedSeen: make(map[string]bool),
	}
	for _, e := range bank {
		n := Normalize(e.Question)
		if n == "" || e.Answer == "" {
			continue
		}
		r.bank = append(r.bank, bankItem{entry: e, normalized: n})
		if _, dup := r.exact[n]; !dup {
			r.exact[n] = len(r.bank) - 1
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the value to fill for label. It returns false for
// unlabeled fields, sensitive labels (recorded in Skipped) and labels with no
// known answer.
func (r *Resolver) Resolve(label string) (Answer, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Answer{}, false
	}
	if IsSensitive(label) {
		r.skip(label)
		r.logger.Info("Sensitive field left for human review.", zap.String("label", label))
		return Answer{}, false
	}

	ans, ok := r.lookup(label)
	if !ok {
		return Answer{}, false
	}
	ans.Value = r.decrypt(label, ans.Value)
	return ans, true
}

// Skipped returns the sensitive labels seen so far, deduplicated, in order.
func (r *Resolver) Skipped() []string {
	return append([]string(nil), r.skipped...)
}

func (r *Resolver) lookup(label string) (Answer, bool) {
	n := Normalize(label)

	if v := r.fromProfile(n); v != "" {
		return Answer{Value: v, Source: SourceProfile}, true
	}

	if i, ok := r.exact[n]; ok {
		e := r.bank[i].entry
		return Answer{Value: e.Answer, Source: SourceBankExact, Question: e.Question, Score: 100}, true
	}

	best, bestScore := -1, 0
	for i, item := range r.bank {
		if s := Similarity(n, item.normalized); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 && bestScore >= FuzzyThreshold {
		e := r.bank[best].entry
		r.logger.Debug("Fuzzy question match.",
			zap.String("label", label),
			zap.String("question", e.Question),
			zap.Int("score", bestScore))
		return Answer{Value: e.Answer, Source: SourceBankFuzzy, Question: e.Question, Score: bestScore}, true
	}

	if containsAny(n, "years") && containsAny(n, "experience") {
		years := r.experienceYears()
		r.logger.Debug("Derived years of experience.", zap.String("label", label), zap.Int("years", years))
		return Answer{Value: strconv.Itoa(years), Source: SourceDerived}, true
	}
	return Answer{}, false
}

// fromProfile maps well-known labels onto profile fields. An empty profile
// value falls through to the question bank.
func (r *Resolver) fromProfile(normalized string) string {
	switch {
	case containsAny(normalized, "phone", "mobile"):
		return r.profile.Phone
	case containsAny(normalized, "email", "e mail"):
		return r.profile.Email
	case containsAny(normalized, "first name"):
		return r.profile.FirstName()
	case containsAny(normalized, "last name"):
		return r.profile.LastName()
	}
	return ""
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// experienceYears counts whole years since the earliest work-experience start,
// falling back to half the skill count. The result is at least 1.
func (r *Resolver) experienceYears() int {
	earliest := 0
	for _, w := range r.profile.WorkExperience {
		m := yearPattern.FindString(w.StartDate)
		if m == "" {
			continue
		}
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if earliest == 0 || y < earliest {
			earliest = y
		}
	}
	if earliest > 0 {
		return max(1, r.now().Year()-earliest)
	}
	return max(1, len(r.profile.Skills)/2)
}

// decrypt returns the plain text of value, or value itself when it is not
// ciphertext or cannot be decrypted.
func (r *Resolver) decrypt(label, value string) string {
	if !secrets.IsCiphertext(value) {
		return value
	}
	if r.dec == nil {
		r.logger.Warn("Stored answer is encrypted but no key is configured; using it as stored.", zap.String("label", label))
		return value
	}
	plain, err := r.dec.Decrypt(value)
	if err != nil {
		r.logger.Warn("Failed to decrypt stored answer; using it as stored.", zap.String("label", label), zap.Error(err))
		return value
	}
	return plain
}

func (r *Resolver) skip(label string) {
	if r.skippedSeen[label] {
		return
	}
	r.skippedSeen[label] = true
	r.skipped = append(r.skipped, label)
}

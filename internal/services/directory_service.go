package services

import (
	"context"

	"github.com/vytor/assessment/internal/auth"
	"github.com/vytor/assessment/internal/errors"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
	"github.com/vytor/assessment/internal/roster"
)

// DirectoryService owns participant identities: seeding from the roster,
// healing legacy and duplicate records, login and language preference.
type DirectoryService interface {
	EnsureSeed(ctx context.Context, r *roster.Roster) (models.SeedReport, error)
	EnsureEntry(ctx context.Context, r *roster.Roster, entry roster.Entry) (models.SeedReport, error)
	Authenticate(ctx context.Context, id, pin string) (*models.AuthResult, error)
	SetLanguage(ctx context.Context, id string, lang models.Language) error
	Profile(ctx context.Context, id string) (*models.Participant, error)
}

type directoryService struct {
	participants repository.ParticipantRepository
	sessions     repository.SessionRepository
	answers      repository.AnswerRepository
	hasher       auth.PINHasher
	opts         options
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(
	participants repository.ParticipantRepository,
	sessions repository.SessionRepository,
	answers repository.AnswerRepository,
	hasher auth.PINHasher,
	opts ...Option,
) DirectoryService {
	return &directoryService{
		participants: participants,
		sessions:     sessions,
		answers:      answers,
		hasher:       hasher,
		opts:         buildOptions(opts),
	}
}

func (s *directoryService) EnsureSeed(ctx context.Context, r *roster.Roster) (models.SeedReport, error) {
	log := logger.FromContext(ctx)
	log.Debug("ensuring roster seed: entries=%d", len(r.Entries))

	var report models.SeedReport
	for _, entry := range r.Entries {
		one, err := s.EnsureEntry(ctx, r, entry)
		if err != nil {
			return report, err
		}
		report.Created = append(report.Created, one.Created...)
		report.Migrated = append(report.Migrated, one.Migrated...)
		report.Merged = append(report.Merged, one.Merged...)
		report.Updated = append(report.Updated, one.Updated...)
	}

	if report.Writes() > 0 {
		log.Info("roster reconciled: created=%d migrated=%d merged=%d updated=%d",
			len(report.Created), len(report.Migrated), len(report.Merged), len(report.Updated))
	}
	return report, nil
}

// EnsureEntry reconciles one entry of r. Records sharing the entry's name
// count as legacy only when their id is not itself a canonical id in r.
func (s *directoryService) EnsureEntry(ctx context.Context, r *roster.Roster, entry roster.Entry) (models.SeedReport, error) {
	log := logger.FromContext(ctx).WithField("participant_id", entry.ID)
	var report models.SeedReport

	existing, err := s.participants.Get(ctx, entry.ID)
	if err != nil {
		log.Error("failed to get participant: %v", err)
		return report, storeError(err)
	}
	named, err := s.participants.FindByName(ctx, entry.Name)
	if err != nil {
		log.Error("failed to find participants by name: %v", err)
		return report, storeError(err)
	}
	var legacy []models.Participant
	for _, p := range named {
		if p.ID == entry.ID {
			continue
		}
		if _, canonical := r.Find(p.ID); canonical {
			log.Debug("leaving %s alone: it is another roster identity", p.ID)
			continue
		}
		legacy = append(legacy, p)
	}

	if existing == nil {
		hash, err := s.hasher.Hash(entry.PIN)
		if err != nil {
			return report, errors.NewInternalError(err)
		}
		canonical := models.Participant{
			ID:        entry.ID,
			Name:      entry.Name,
			PINHash:   hash,
			Role:      entry.Role,
			CreatedAt: s.opts.now(),
		}
		if len(legacy) == 0 {
			if err := s.participants.Insert(ctx, canonical); err != nil {
				log.Error("failed to create participant: %v", err)
				return report, storeError(err)
			}
			report.Created = append(report.Created, entry.ID)
			return report, nil
		}

		// The oldest legacy record becomes the canonical one.
		oldest := legacy[0]
		canonical.CreatedAt = oldest.CreatedAt
		canonical.Language = oldest.Language
		if err := s.participants.Adopt(ctx, oldest.ID, canonical); err != nil {
			log.Error("failed to adopt legacy record %s: %v", oldest.ID, err)
			return report, storeError(err)
		}
		log.Info("adopted legacy record %s", oldest.ID)
		report.Migrated = append(report.Migrated, oldest.ID)
		legacy = legacy[1:]
	} else if err := s.syncCredentials(ctx, existing, entry, &report); err != nil {
		return report, err
	}

	for _, dup := range legacy {
		if err := s.mergeDuplicate(ctx, entry.ID, dup.ID); err != nil {
			return report, err
		}
		report.Merged = append(report.Merged, dup.ID)
	}
	return report, nil
}

// mergeDuplicate keeps the duplicate's progress only when it has strictly
// more answers than the canonical record.
func (s *directoryService) mergeDuplicate(ctx context.Context, canonicalID, duplicateID string) error {
	log := logger.FromContext(ctx).WithField("participant_id", canonicalID)

	canonicalCount, err := s.answers.Count(ctx, canonicalID)
	if err != nil {
		return storeError(err)
	}
	duplicateCount, err := s.answers.Count(ctx, duplicateID)
	if err != nil {
		return storeError(err)
	}
	keep := duplicateCount > canonicalCount
	if err := s.participants.Merge(ctx, canonicalID, duplicateID, keep); err != nil {
		log.Error("failed to merge duplicate %s: %v", duplicateID, err)
		return storeError(err)
	}
	log.Info("merged duplicate %s: canonical_answers=%d duplicate_answers=%d kept_duplicate=%t",
		duplicateID, canonicalCount, duplicateCount, keep)
	return nil
}

func (s *directoryService) syncCredentials(ctx context.Context, existing *models.Participant, entry roster.Entry, report *models.SeedReport) error {
	if existing.Name == entry.Name && s.hasher.Matches(existing.PINHash, entry.PIN) {
		return nil
	}
	hash := existing.PINHash
	if !s.hasher.Matches(existing.PINHash, entry.PIN) {
		var err error
		if hash, err = s.hasher.Hash(entry.PIN); err != nil {
			return errors.NewInternalError(err)
		}
	}
	if err := s.participants.UpdateCredentials(ctx, entry.ID, entry.Name, hash); err != nil {
		logger.FromContext(ctx).Error("failed to update credentials for %s: %v", entry.ID, err)
		return storeError(err)
	}
	report.Updated = append(report.Updated, entry.ID)
	return nil
}

func (s *directoryService) Authenticate(ctx context.Context, id, pin string) (*models.AuthResult, error) {
	log := logger.FromContext(ctx)
	log.Debug("authenticating participant: id=%s", id)

	p, err := s.participants.Get(ctx, id)
	if err != nil {
		log.Error("failed to get participant: %v", err)
		return nil, storeError(err)
	}
	if p == nil || !s.hasher.Matches(p.PINHash, pin) {
		return nil, errors.NewInvalidCredentialsError()
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		log.Error("failed to get session: %v", err)
		return nil, storeError(err)
	}

	profile := *p
	profile.PINHash = ""
	return &models.AuthResult{
		Profile:     profile,
		HasProgress: hasProgress(session),
	}, nil
}

// hasProgress reports whether an unfinished session has anything worth resuming.
func hasProgress(s *models.Session) bool {
	if s == nil || s.IsCompleted {
		return false
	}
	return s.CurrentIndex > 0 || s.TotalTimeSpent > 0
}

func (s *directoryService) SetLanguage(ctx context.Context, id string, lang models.Language) error {
	if !lang.Valid() {
		return errors.NewValidationError("language", "must be one of en, fr, ar")
	}
	updated, err := s.participants.UpdateLanguage(ctx, id, lang)
	if err != nil {
		logger.FromContext(ctx).Error("failed to set language: %v", err)
		return storeError(err)
	}
	if !updated {
		return errors.NewNotFoundError("participant", id)
	}
	return nil
}

func (s *directoryService) Profile(ctx context.Context, id string) (*models.Participant, error) {
	p, err := s.participants.Get(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Error("failed to get participant: %v", err)
		return nil, storeError(err)
	}
	if p == nil {
		return nil, errors.NewNotFoundError("participant", id)
	}
	profile := *p
	profile.PINHash = ""
	return &profile, nil
}

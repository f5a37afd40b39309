package sqlstore

import (
	"context"

	"github.com/Masterminds/squirrel"

	"github.com/vytor/assessment/internal/db"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
)

var answerColumns = []string{"participant_id", "question_id", "section", "answer_text", "time_spent", "updated_at"}

type answerRepository struct {
	db *db.DB
}

// NewAnswerRepository creates a new AnswerRepository implementation
func NewAnswerRepository(conn *db.DB) repository.AnswerRepository {
	return &answerRepository{db: conn}
}

func (r *answerRepository) ListByParticipant(ctx context.Context, participantID string) ([]models.Answer, error) {
	logger.FromContext(ctx).WithPrefix("answer_repo").Debug("listing answers: participant_id=%s", participantID)
	return r.list(ctx, r.db.Builder().
		Select(answerColumns...).
		From("answers").
		Where(squirrel.Eq{"participant_id": participantID}).
		OrderBy("question_id ASC"))
}

func (r *answerRepository) List(ctx context.Context) ([]models.Answer, error) {
	logger.FromContext(ctx).WithPrefix("answer_repo").Debug("listing all answers")
	return r.list(ctx, r.db.Builder().
		Select(answerColumns...).
		From("answers").
		OrderBy("participant_id ASC", "question_id ASC"))
}

func (r *answerRepository) list(ctx context.Context, q squirrel.SelectBuilder) ([]models.Answer, error) {
	log := logger.FromContext(ctx).WithPrefix("answer_repo")

	rows, err := query(ctx, r.db, q)
	if err != nil {
		log.Error("failed to query answers: %v", err)
		return nil, err
	}
	defer rows.Close()

	answers := []models.Answer{}
	for rows.Next() {
		var (
			a         models.Answer
			updatedAt int64
		)
		if err := rows.Scan(&a.ParticipantID, &a.QuestionID, &a.Section, &a.AnswerText, &a.TimeSpent, &updatedAt); err != nil {
			log.Error("failed to scan answer row: %v", err)
			return nil, err
		}
		a.UpdatedAt = fromMillis(updatedAt)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (r *answerRepository) Count(ctx context.Context, participantID string) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("answer_repo")
	log.Debug("counting answers: participant_id=%s", participantID)

	row, err := queryRow(ctx, r.db, r.db.Builder().
		Select("COUNT(*)").
		From("answers").
		Where(squirrel.Eq{"participant_id": participantID}))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		log.Error("failed to count answers: %v", err)
		return 0, err
	}
	return n, nil
}

func (r *answerRepository) CountByParticipant(ctx context.Context) (map[string]int, error) {
	log := logger.FromContext(ctx).WithPrefix("answer_repo")
	log.Debug("counting answers per participant")

	rows, err := query(ctx, r.db, r.db.Builder().
		Select("participant_id", "COUNT(*)").
		From("answers").
		GroupBy("participant_id"))
	if err != nil {
		log.Error("failed to count answers: %v", err)
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

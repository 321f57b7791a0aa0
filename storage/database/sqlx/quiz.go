package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/quiz"
)

const (
	quizColumns = `q.id, q.classroom_id, q.title, q.description, q.due_date, q.duration_minutes, q.is_active,
	q.created_at, q.updated_at, (SELECT COUNT(*) FROM quiz_questions qq WHERE qq.quiz_id = q.id) AS question_count`
	questionColumns   = `qs.id, qs.creator_id, qs.text, qs.type, qs.options, qs.correct_answers, qs.created_at, qs.updated_at`
	submissionColumns = `id, quiz_id, student_id, score, total_questions, submitted_at`
)

type (
	quizRow struct {
		ID              string    `db:"id"`
		ClassroomID     string    `db:"classroom_id"`
		Title           string    `db:"title"`
		Description     string    `db:"description"`
		DueDate         time.Time `db:"due_date"`
		DurationMinutes int       `db:"duration_minutes"`
		IsActive        bool      `db:"is_active"`
		CreatedAt       time.Time `db:"created_at"`
		UpdatedAt       time.Time `db:"updated_at"`
		QuestionCount   int       `db:"question_count"`
	}

	questionRow struct {
		ID             string    `db:"id"`
		CreatorID      string    `db:"creator_id"`
		Text           string    `db:"text"`
		Type           string    `db:"type"`
		Options        string    `db:"options"`
		CorrectAnswers string    `db:"correct_answers"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}

	submissionRow struct {
		ID             string    `db:"id"`
		QuizID         string    `db:"quiz_id"`
		StudentID      string    `db:"student_id"`
		Score          int       `db:"score"`
		TotalQuestions int       `db:"total_questions"`
		SubmittedAt    time.Time `db:"submitted_at"`
	}

	answerRow struct {
		ID           string `db:"id"`
		SubmissionID string `db:"submission_id"`
		QuestionID   string `db:"question_id"`
		Answer       string `db:"answer"`
		IsCorrect    bool   `db:"is_correct"`
	}
)

func toQuizRow(q quiz.Quiz) quizRow {
	return quizRow{
		ID:              q.ID,
		ClassroomID:     q.ClassroomID,
		Title:           q.Title,
		Description:     q.Description,
		DueDate:         q.DueDate.UTC(),
		DurationMinutes: q.DurationMinutes,
		IsActive:        q.IsActive,
		CreatedAt:       q.CreatedAt.UTC(),
		UpdatedAt:       q.UpdatedAt.UTC(),
	}
}

func (r quizRow) toQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:              r.ID,
		ClassroomID:     r.ClassroomID,
		Title:           r.Title,
		Description:     r.Description,
		DueDate:         r.DueDate.UTC(),
		DurationMinutes: r.DurationMinutes,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		QuestionCount:   r.QuestionCount,
	}
}

func toQuestionRow(q quiz.Question) questionRow {
	return questionRow{
		ID:             q.ID,
		CreatorID:      q.CreatorID,
		Text:           q.Text,
		Type:           q.Type,
		Options:        joinLines(q.Options),
		CorrectAnswers: joinLines(q.CorrectAnswers),
		CreatedAt:      q.CreatedAt.UTC(),
		UpdatedAt:      q.UpdatedAt.UTC(),
	}
}

func (r questionRow) toQuestion() quiz.Question {
	return quiz.Question{
		ID:             r.ID,
		CreatorID:      r.CreatorID,
		Text:           r.Text,
		Type:           r.Type,
		Options:        splitLines(r.Options),
		CorrectAnswers: splitLines(r.CorrectAnswers),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func (r submissionRow) toSubmission() quiz.Submission {
	return quiz.Submission{
		ID:             r.ID,
		QuizID:         r.QuizID,
		StudentID:      r.StudentID,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		SubmittedAt:    r.SubmittedAt.UTC(),
	}
}

type quizRepository struct {
	db core.DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db core.DB) quiz.Repository {
	return &quizRepository{db: db}
}

// Quizzes

func (repo *quizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	q.ID = uuid.New().String()
	row := toQuizRow(q)
	query := `INSERT INTO quizzes (id, classroom_id, title, description, due_date, duration_minutes, is_active, created_at, updated_at)
		VALUES (:id, :classroom_id, :title, :description, :due_date, :duration_minutes, :is_active, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return row.toQuiz(), nil
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	if !validUUID(id) {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	var row quizRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+quizColumns+` FROM quizzes q WHERE q.id = $1`, id); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "finding quiz")
	}
	return row.toQuiz(), nil
}

func (repo *quizRepository) QueryQuizzes(ctx context.Context, filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ClassroomIDs != nil {
		ids := validUUIDs(filter.ClassroomIDs)
		if len(ids) == 0 {
			return []quiz.Quiz{}, nil
		}
		conds = append(conds, "q.classroom_id IN (?)")
		args = append(args, ids)
	}

	var rows []quizRow
	query := `SELECT ` + quizColumns + ` FROM quizzes q` + where(conds) + ` ORDER BY q.due_date, q.created_at`
	if err := selectIn(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	res := make([]quiz.Quiz, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toQuiz())
	}
	return res, nil
}

func (repo *quizRepository) UpdateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	query := `UPDATE quizzes SET title = :title, description = :description, due_date = :due_date,
		duration_minutes = :duration_minutes, is_active = :is_active, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, toQuizRow(q))
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	return q, nil
}

func (repo *quizRepository) DeactivateQuizzes(ctx context.Context, ids ...string) error {
	if ids = validUUIDs(ids); len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE quizzes SET is_active = FALSE, updated_at = ? WHERE id IN (?)`, time.Now().UTC(), ids)
	if err != nil {
		return errors.Wrap(err, "expanding IN query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deactivating quizzes")
	}
	return nil
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id string) error {
	if !validUUID(id) {
		return quiz.ErrNotFound
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return nil
}

// Questions

func (repo *quizRepository) CreateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	q.ID = uuid.New().String()
	row := toQuestionRow(q)
	query := `INSERT INTO questions (id, creator_id, text, type, options, correct_answers, created_at, updated_at)
		VALUES (:id, :creator_id, :text, :type, :options, :correct_answers, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return quiz.Question{}, errors.Wrap(err, "inserting question")
	}
	return row.toQuestion(), nil
}

func (repo *quizRepository) GetQuestion(ctx context.Context, id string) (quiz.Question, error) {
	if !validUUID(id) {
		return quiz.Question{}, quiz.ErrQuestionNotFound
	}
	var row questionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+questionColumns+` FROM questions qs WHERE qs.id = $1`, id); err != nil {
		return quiz.Question{}, trapNoRowsErr(err, quiz.ErrQuestionNotFound, "finding question")
	}
	return row.toQuestion(), nil
}

func (repo *quizRepository) QueryQuestions(ctx context.Context, filter quiz.QuestionFilter) ([]quiz.Question, error) {
	var (
		conds []string
		args  []interface{}
		from  = ` FROM questions qs`
		order = ` ORDER BY qs.created_at DESC`
	)
	if filter.QuizID != "" {
		if !validUUID(filter.QuizID) {
			return []quiz.Question{}, nil
		}
		from += ` JOIN quiz_questions qq ON qq.question_id = qs.id`
		conds = append(conds, "qq.quiz_id = ?")
		args = append(args, filter.QuizID)
		order = ` ORDER BY qq.position`
	}
	if filter.CreatorID != "" {
		conds = append(conds, "qs.creator_id = ?")
		args = append(args, filter.CreatorID)
	}
	if filter.IDs != nil {
		ids := validUUIDs(filter.IDs)
		if len(ids) == 0 {
			return []quiz.Question{}, nil
		}
		conds = append(conds, "qs.id IN (?)")
		args = append(args, ids)
	}

	var rows []questionRow
	if err := selectIn(ctx, repo.db, &rows, `SELECT `+questionColumns+from+where(conds)+order, args...); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	res := make([]quiz.Question, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toQuestion())
	}
	return res, nil
}

func (repo *quizRepository) UpdateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	query := `UPDATE questions SET text = :text, type = :type, options = :options,
		correct_answers = :correct_answers, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, toQuestionRow(q))
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "updating question")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quiz.Question{}, quiz.ErrQuestionNotFound
	}
	return q, nil
}

func (repo *quizRepository) DeleteQuestion(ctx context.Context, id string) error {
	if !validUUID(id) {
		return quiz.ErrQuestionNotFound
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return nil
}

func (repo *quizRepository) AddQuizQuestions(ctx context.Context, quizID string, questionIDs ...string) error {
	return inTx(ctx, repo.db, func(tx core.DBTransactor) error {
		var pos int
		if err := tx.GetContext(ctx, &pos, `SELECT COALESCE(MAX(position), 0) FROM quiz_questions WHERE quiz_id = $1`, quizID); err != nil {
			return errors.Wrap(err, "finding last question position")
		}
		for _, id := range questionIDs {
			res, err := tx.ExecContext(
				ctx,
				`INSERT INTO quiz_questions (quiz_id, question_id, position) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				quizID, id, pos+1,
			)
			if err != nil {
				return errors.Wrap(err, "adding quiz question")
			}
			if n, err := res.RowsAffected(); err == nil && n > 0 {
				pos++
			}
		}
		return nil
	})
}

func (repo *quizRepository) RemoveQuizQuestion(ctx context.Context, quizID, questionID string) error {
	if !(validUUID(quizID) && validUUID(questionID)) {
		return quiz.ErrQuestionNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM quiz_questions WHERE quiz_id = $1 AND question_id = $2`, quizID, questionID)
	if err != nil {
		return errors.Wrap(err, "removing quiz question")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quiz.ErrQuestionNotFound
	}
	return nil
}

// Submissions

func (repo *quizRepository) CreateSubmission(ctx context.Context, s quiz.Submission) (quiz.Submission, error) {
	s.ID = uuid.New().String()
	s.SubmittedAt = s.SubmittedAt.UTC()
	err := inTx(ctx, repo.db, func(tx core.DBTransactor) error {
		_, err := tx.NamedExecContext(
			ctx,
			`INSERT INTO submissions (`+submissionColumns+`)
			VALUES (:id, :quiz_id, :student_id, :score, :total_questions, :submitted_at)`,
			submissionRow{
				ID:             s.ID,
				QuizID:         s.QuizID,
				StudentID:      s.StudentID,
				Score:          s.Score,
				TotalQuestions: s.TotalQuestions,
				SubmittedAt:    s.SubmittedAt,
			},
		)
		if err != nil {
			if _, ok := uniqueViolated(err); ok {
				return quiz.ErrAlreadySubmitted
			}
			return errors.Wrap(err, "inserting submission")
		}

		for i := range s.Answers {
			s.Answers[i].ID = uuid.New().String()
			s.Answers[i].SubmissionID = s.ID
			ans := s.Answers[i]
			_, err = tx.NamedExecContext(
				ctx,
				`INSERT INTO answers (id, submission_id, question_id, answer, is_correct)
				VALUES (:id, :submission_id, :question_id, :answer, :is_correct)`,
				answerRow{
					ID:           ans.ID,
					SubmissionID: ans.SubmissionID,
					QuestionID:   ans.QuestionID,
					Answer:       ans.Answer,
					IsCorrect:    ans.IsCorrect,
				},
			)
			if err != nil {
				return errors.Wrap(err, "inserting answer")
			}
		}
		return nil
	})
	if err != nil {
		return quiz.Submission{}, err
	}
	return s, nil
}

func (repo *quizRepository) GetSubmission(ctx context.Context, quizID, studentID string) (quiz.Submission, error) {
	if !(validUUID(quizID) && validUUID(studentID)) {
		return quiz.Submission{}, quiz.ErrSubmissionNotFound
	}
	var row submissionRow
	err := repo.db.GetContext(
		ctx,
		&row,
		`SELECT `+submissionColumns+` FROM submissions WHERE quiz_id = $1 AND student_id = $2`,
		quizID, studentID,
	)
	if err != nil {
		return quiz.Submission{}, trapNoRowsErr(err, quiz.ErrSubmissionNotFound, "finding submission")
	}

	sub := row.toSubmission()
	if sub.Answers, err = repo.answers(ctx, sub.ID); err != nil {
		return quiz.Submission{}, err
	}
	return sub, nil
}

func (repo *quizRepository) QuerySubmissions(ctx context.Context, filter quiz.SubmissionFilter) ([]quiz.Submission, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.QuizIDs != nil {
		ids := validUUIDs(filter.QuizIDs)
		if len(ids) == 0 {
			return []quiz.Submission{}, nil
		}
		conds = append(conds, "quiz_id IN (?)")
		args = append(args, ids)
	}
	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}

	var rows []submissionRow
	query := `SELECT ` + submissionColumns + ` FROM submissions` + where(conds) + ` ORDER BY submitted_at`
	if err := selectIn(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	subs := make([]quiz.Submission, 0, len(rows))
	for _, r := range rows {
		sub := r.toSubmission()
		if filter.WithAnswers {
			var err error
			if sub.Answers, err = repo.answers(ctx, sub.ID); err != nil {
				return nil, err
			}
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (repo *quizRepository) answers(ctx context.Context, submissionID string) ([]quiz.Answer, error) {
	var rows []answerRow
	err := repo.db.SelectContext(
		ctx,
		&rows,
		`SELECT id, submission_id, question_id, answer, is_correct FROM answers WHERE submission_id = $1`,
		submissionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	res := make([]quiz.Answer, 0, len(rows))
	for _, r := range rows {
		res = append(res, quiz.Answer{
			ID:           r.ID,
			SubmissionID: r.SubmissionID,
			QuestionID:   r.QuestionID,
			Answer:       r.Answer,
			IsCorrect:    r.IsCorrect,
		})
	}
	return res, nil
}

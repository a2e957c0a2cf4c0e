package scholarshiprepo

import (
	"context"
	"database/sql"

	"scholarhub/model"
)

type Repo interface {
	Create(ctx context.Context, s *model.Scholarship) error
	List(ctx context.Context) ([]model.Scholarship, error)
	ByID(ctx context.Context, id int64) (*model.Scholarship, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const cols = `id, name, description, city, major, degree, language, semester, eligibility,
deadline, price, agent_commission, hq_commission, created_at`

func (r *repo) Create(ctx context.Context, s *model.Scholarship) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO scholarships
			(name, description, city, major, degree, language, semester, eligibility,
			 deadline, price, agent_commission, hq_commission)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at`,
		s.Name, s.Description, s.City, s.Major, s.Degree, s.Language, s.Semester,
		s.Eligibility, s.Deadline, s.Price, s.AgentCommission, s.HQCommission,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *repo) List(ctx context.Context) ([]model.Scholarship, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+cols+` FROM scholarships ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Scholarship
	for rows.Next() {
		var s model.Scholarship
		if err := scan(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Scholarship, error) {
	s := &model.Scholarship{}
	row := r.db.QueryRowContext(ctx, `SELECT `+cols+` FROM scholarships WHERE id=$1`, id)
	if err := scan(row, s); err != nil {
		return nil, err
	}
	return s, nil
}

type scanner interface{ Scan(dest ...any) error }

func scan(row scanner, s *model.Scholarship) error {
	return row.Scan(
		&s.ID, &s.Name, &s.Description, &s.City, &s.Major, &s.Degree, &s.Language,
		&s.Semester, &s.Eligibility, &s.Deadline, &s.Price, &s.AgentCommission,
		&s.HQCommission, &s.CreatedAt,
	)
}

package scholarshipsvc

import (
	"context"
	"errors"
	scholarshiprepo "scholarhub/repository/scholarship"
	"time"

	"scholarhub/model"

	"github.com/shopspring/decimal"
)

var ErrBadInput = errors.New("bad input")

type CreateReq struct {
	Name            string
	Description     string
	City            string
	Major           string
	Degree          string
	Language        string
	Semester        string
	Eligibility     string
	Deadline        *time.Time
	Price           decimal.Decimal
	AgentCommission decimal.Decimal
	HQCommission    decimal.Decimal
}

type Service interface {
	Create(ctx context.Context, req CreateReq) (*model.Scholarship, error)
	List(ctx context.Context) ([]model.Scholarship, error)
	Detail(ctx context.Context, id int64) (*model.Scholarship, error)
}

type service struct{ r scholarshiprepo.Repo }

func New(r scholarshiprepo.Repo) Service { return &service{r: r} }

func (s *service) Create(ctx context.Context, req CreateReq) (*model.Scholarship, error) {
	if req.Name == "" || req.Price.IsNegative() ||
		req.AgentCommission.IsNegative() || req.HQCommission.IsNegative() {
		return nil, ErrBadInput
	}

	sch := &model.Scholarship{
		Name:            req.Name,
		Description:     req.Description,
		City:            req.City,
		Major:           req.Major,
		Degree:          req.Degree,
		Language:        req.Language,
		Semester:        req.Semester,
		Eligibility:     req.Eligibility,
		Deadline:        req.Deadline,
		Price:           req.Price,
		AgentCommission: req.AgentCommission,
		HQCommission:    req.HQCommission,
	}
	if err := s.r.Create(ctx, sch); err != nil {
		return nil, err
	}
	return sch, nil
}

func (s *service) List(ctx context.Context) ([]model.Scholarship, error) {
	return s.r.List(ctx)
}

func (s *service) Detail(ctx context.Context, id int64) (*model.Scholarship, error) {
	return s.r.ByID(ctx, id)
}

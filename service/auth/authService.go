package authsvc

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"scholarhub/model"
	userrepo "scholarhub/repository/user"
	"scholarhub/util/hash"
	jwtutil "scholarhub/util/jwt"
)

var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already taken")
	ErrInvalidCreds  = errors.New("invalid credentials")
	ErrInactive      = errors.New("account is not active")
)

type Service interface {
	// Register creates a student account. Staff accounts (office, agent,
	// headquarters, admin) are provisioned out of band.
	Register(ctx context.Context, req model.RegisterReq) (*model.User, string, error)
	Login(ctx context.Context, req model.LoginReq) (*model.User, string, error)
}

type service struct {
	ur     userrepo.Repo
	secret string
}

func New(ur userrepo.Repo, secret string) Service { return &service{ur: ur, secret: secret} }

func (s *service) Register(ctx context.Context, req model.RegisterReq) (*model.User, string, error) {
	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	u := &model.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hashed,
		Role:         model.RoleStudent,
	}

	if err := s.ur.Create(ctx, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return nil, "", ErrEmailTaken
			}
			return nil, "", ErrUsernameTaken
		}
		return nil, "", err
	}

	tok, err := jwtutil.Issue(s.secret, u.ID, string(u.Role), 72)
	if err != nil {
		return nil, "", err
	}
	return u, tok, nil
}

func (s *service) Login(ctx context.Context, req model.LoginReq) (*model.User, string, error) {
	u, err := s.ur.ByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", err
	}
	if !hash.CheckPassword(u.PasswordHash, req.Password) {
		return nil, "", ErrInvalidCreds
	}
	if u.Status != "active" {
		return nil, "", ErrInactive
	}

	tok, err := jwtutil.Issue(s.secret, u.ID, string(u.Role), 72)
	if err != nil {
		return nil, "", err
	}
	return u, tok, nil
}

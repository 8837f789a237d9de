package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateRequest struct {
	Name    string `json:"name"`
	Credits int64  `json:"credits"`
}

type TopUpRequest struct {
	ID      string `json:"id"`
	Credits int64  `json:"credits"`
}

type Response struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Credits       int64     `json:"credits"`
	AvailableHits int64     `json:"available_hits"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	TopUp(ctx context.Context, req TopUpRequest) (*Response, error)
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidCredits = errors.New("invalid_credits")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
	ErrNameTaken      = errors.New("name_taken")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}

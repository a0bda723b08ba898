package service

import (
	"context"
	"errors"
	"redemption-gate/internal/model"
	"redemption-gate/internal/repository"
	apperrors "redemption-gate/pkg/errors"
	"testing"
	"time"
)

func TestCreateCode(t *testing.T) {
	svc := NewCodeService(repository.NewMemoryLedger(time.Second))
	season := 2

	code, err := svc.CreateCode(context.Background(), &model.CreateCodeRequest{
		Code:           " summer-26 ",
		Capacity:       3,
		Season:         &season,
		CooldownPeriod: "1h",
	})
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	if code.Code != "SUMMER-26" {
		t.Fatalf("expected normalized code, got %q", code.Code)
	}
	if code.ID == "" || code.CooldownPeriod != time.Hour || code.ConsumedCount != 0 {
		t.Fatalf("unexpected code %+v", code)
	}

	details, err := svc.GetCodeDetails(context.Background(), "summer-26")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Remaining != 3 || details.Season == nil || *details.Season != 2 || len(details.RedeemedBy) != 0 {
		t.Fatalf("unexpected details %+v", details)
	}
}

func TestCreateCodeRejects(t *testing.T) {
	tests := []struct {
		name string
		req  model.CreateCodeRequest
		want error
	}{
		{name: "zero capacity", req: model.CreateCodeRequest{Code: "A", Capacity: 0}, want: apperrors.ErrInvalidRequest},
		{name: "bad code", req: model.CreateCodeRequest{Code: "a b", Capacity: 1}, want: apperrors.ErrInvalidRequest},
		{name: "bad cooldown", req: model.CreateCodeRequest{Code: "A", Capacity: 1, CooldownPeriod: "soon"}, want: apperrors.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCodeService(repository.NewMemoryLedger(time.Second))
			if _, err := svc.CreateCode(context.Background(), &tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateCodeDuplicate(t *testing.T) {
	svc := NewCodeService(repository.NewMemoryLedger(time.Second))
	req := &model.CreateCodeRequest{Code: "ONCE", Capacity: 1}

	if _, err := svc.CreateCode(context.Background(), req); err != nil {
		t.Fatalf("create code: %v", err)
	}
	if _, err := svc.CreateCode(context.Background(), req); !errors.Is(err, apperrors.ErrCodeAlreadyExists) {
		t.Fatalf("expected ErrCodeAlreadyExists, got %v", err)
	}
}

func TestRemainingUnknownCode(t *testing.T) {
	svc := NewCodeService(repository.NewMemoryLedger(time.Second))
	if _, err := svc.Remaining(context.Background(), "MISSING"); !errors.Is(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetPinHash(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockUserDirectory) SetPinHash(ctx context.Context, userID, pinHash string, updatedAt time.Time) error {
	args := m.Called(ctx, userID, pinHash, updatedAt)
	return args.Error(0)
}

type MockPasswordVerifier struct {
	mock.Mock
}

func (m *MockPasswordVerifier) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	args := m.Called(ctx, userID, password)
	return args.Bool(0), args.Error(1)
}

type MockPinVerifier struct {
	mock.Mock
}

func (m *MockPinVerifier) VerifyPin(ctx context.Context, userID, pin string) error {
	args := m.Called(ctx, userID, pin)
	return args.Error(0)
}

type MockRecipientLookup struct {
	mock.Mock
}

func (m *MockRecipientLookup) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

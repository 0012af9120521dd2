package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestHashPin(t *testing.T) {
	// sha256("1234")
	assert.Equal(t, "03ac674216f3e15c761ee1a5e255f067953623c8b388b4459e13f978d7c846f4", HashPin("1234"))
	assert.Len(t, HashPin("987654"), 64)
}

func TestPinService_SetPin(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the hash", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("SetPinHash", ctx, "user-1", HashPin("1234"), mock.AnythingOfType("time.Time")).Return(nil)

		service := NewPinService(users, nil, nil, nil, nil, zap.NewNop())
		assert.NoError(t, service.SetPin(ctx, "user-1", "1234"))
		users.AssertExpectations(t)
	})

	t.Run("rejects malformed pins", func(t *testing.T) {
		users := new(MockUserDirectory)
		service := NewPinService(users, nil, nil, nil, nil, zap.NewNop())

		for _, pin := range []string{"", "123", "1234567", "12a4", "١٢٣٤"} {
			assert.ErrorIs(t, service.SetPin(ctx, "user-1", pin), ErrInvalidPinFormat, pin)
		}
		users.AssertNotCalled(t, "SetPinHash", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("SetPinHash", ctx, "ghost", mock.Anything, mock.Anything).Return(ErrUserNotFound)

		service := NewPinService(users, nil, nil, nil, nil, zap.NewNop())
		assert.ErrorIs(t, service.SetPin(ctx, "ghost", "1234"), ErrUserNotFound)
	})
}

func TestPinService_SetPinWithPasswordCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong password never touches the pin", func(t *testing.T) {
		users := new(MockUserDirectory)
		passwords := new(MockPasswordVerifier)
		passwords.On("VerifyPassword", ctx, "user-1", "nope").Return(false, nil)

		service := NewPinService(users, passwords, nil, nil, nil, zap.NewNop())
		err := service.SetPinWithPasswordCheck(ctx, "user-1", "1234", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		users.AssertNotCalled(t, "SetPinHash", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("correct password sets the pin", func(t *testing.T) {
		users := new(MockUserDirectory)
		passwords := new(MockPasswordVerifier)
		passwords.On("VerifyPassword", ctx, "user-1", "secret").Return(true, nil)
		users.On("SetPinHash", ctx, "user-1", HashPin("4321"), mock.Anything).Return(nil)

		service := NewPinService(users, passwords, nil, nil, nil, zap.NewNop())
		assert.NoError(t, service.SetPinWithPasswordCheck(ctx, "user-1", "4321", "secret"))
		users.AssertExpectations(t)
		passwords.AssertExpectations(t)
	})

	t.Run("identity failure is unexpected", func(t *testing.T) {
		passwords := new(MockPasswordVerifier)
		passwords.On("VerifyPassword", ctx, "user-1", "secret").Return(false, errors.New("db down"))

		service := NewPinService(new(MockUserDirectory), passwords, nil, nil, nil, zap.NewNop())
		assert.ErrorIs(t, service.SetPinWithPasswordCheck(ctx, "user-1", "4321", "secret"), ErrUnexpected)
	})
}

func TestPinService_VerifyPin(t *testing.T) {
	ctx := context.Background()

	t.Run("matching pin", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("GetPinHash", ctx, "user-1").Return(HashPin("1234"), nil)

		service := NewPinService(users, nil, nil, nil, nil, zap.NewNop())
		assert.NoError(t, service.VerifyPin(ctx, "user-1", "1234"))
	})

	t.Run("mismatch", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("GetPinHash", ctx, "user-1").Return(HashPin("1234"), nil)

		service := NewPinService(users, nil, nil, nil, nil, zap.NewNop())
		assert.ErrorIs(t, service.VerifyPin(ctx, "user-1", "0000"), ErrInvalidPin)
	})

	t.Run("pin never set", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("GetPinHash", ctx, "user-1").Return("", nil)

		service := NewPinService(users, nil, nil, nil, nil, zap.NewNop())
		assert.ErrorIs(t, service.VerifyPin(ctx, "user-1", "1234"), ErrPinNotSet)
	})

	t.Run("unknown user", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("GetPinHash", ctx, "ghost").Return("", ErrUserNotFound)

		service := NewPinService(users, nil, nil, nil, nil, zap.NewNop())
		assert.ErrorIs(t, service.VerifyPin(ctx, "ghost", "1234"), ErrUserNotFound)
	})
}

func TestPinService_VerifyPinWithLimiter(t *testing.T) {
	ctx := context.Background()
	window := 15 * time.Minute

	t.Run("failure is counted", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("pin_attempts:user-1").RedisNil()
		redisMock.ExpectIncr("pin_attempts:user-1").SetVal(1)
		redisMock.ExpectExpire("pin_attempts:user-1", window).SetVal(true)

		users := new(MockUserDirectory)
		users.On("GetPinHash", ctx, "user-1").Return(HashPin("1234"), nil)

		limiter := NewPinAttemptLimiter(client, 3, window, zap.NewNop())
		service := NewPinService(users, nil, limiter, nil, nil, zap.NewNop())

		assert.ErrorIs(t, service.VerifyPin(ctx, "user-1", "9999"), ErrInvalidPin)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("success clears the counter", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("pin_attempts:user-1").SetVal("2")
		redisMock.ExpectDel("pin_attempts:user-1").SetVal(1)

		users := new(MockUserDirectory)
		users.On("GetPinHash", ctx, "user-1").Return(HashPin("1234"), nil)

		limiter := NewPinAttemptLimiter(client, 3, window, zap.NewNop())
		service := NewPinService(users, nil, limiter, nil, nil, zap.NewNop())

		assert.NoError(t, service.VerifyPin(ctx, "user-1", "1234"))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("locked out even with the right pin", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("pin_attempts:user-1").SetVal("3")

		users := new(MockUserDirectory)
		limiter := NewPinAttemptLimiter(client, 3, window, zap.NewNop())
		service := NewPinService(users, nil, limiter, nil, nil, zap.NewNop())

		assert.ErrorIs(t, service.VerifyPin(ctx, "user-1", "1234"), ErrPinLocked)
		users.AssertNotCalled(t, "GetPinHash", mock.Anything, mock.Anything)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("redis outage fails open", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("pin_attempts:user-1").SetErr(errors.New("connection refused"))
		redisMock.ExpectDel("pin_attempts:user-1").SetErr(errors.New("connection refused"))

		users := new(MockUserDirectory)
		users.On("GetPinHash", ctx, "user-1").Return(HashPin("1234"), nil)

		limiter := NewPinAttemptLimiter(client, 3, window, zap.NewNop())
		service := NewPinService(users, nil, limiter, nil, nil, zap.NewNop())

		assert.NoError(t, service.VerifyPin(ctx, "user-1", "1234"))
	})
}

func TestPinAttemptLimiter_Disabled(t *testing.T) {
	var limiter *PinAttemptLimiter
	ctx := context.Background()
	assert.NotPanics(t, func() {
		assert.False(t, limiter.Locked(ctx, "user-1"))
		limiter.RecordFailure(ctx, "user-1")
		limiter.Reset(ctx, "user-1")
	})

	noRedis := NewPinAttemptLimiter(nil, 3, time.Minute, zap.NewNop())
	assert.False(t, noRedis.Locked(ctx, "user-1"))
}

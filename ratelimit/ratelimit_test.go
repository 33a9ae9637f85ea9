package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionLimiter_AdmitsUnderLimit(t *testing.T) {
	l := NewSubmissionLimiter()
	for i := 0; i < 3; i++ {
		ok, _ := l.Check("endpoint-1", "1.2.3.4", 3, 60)
		assert.True(t, ok)
	}
}

func TestSubmissionLimiter_DeniesAtLimit(t *testing.T) {
	l := NewSubmissionLimiter()
	for i := 0; i < 3; i++ {
		ok, _ := l.Check("endpoint-1", "1.2.3.4", 3, 60)
		assert.True(t, ok)
	}
	ok, retryAfter := l.Check("endpoint-1", "1.2.3.4", 3, 60)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, retryAfter, int64(0))
	assert.LessOrEqual(t, retryAfter, int64(60))
}

func TestSubmissionLimiter_ResetsAfterWindow(t *testing.T) {
	l := NewSubmissionLimiter()
	base := time.Now()
	l.now = func() time.Time { return base }

	for i := 0; i < 2; i++ {
		ok, _ := l.Check("endpoint-1", "1.2.3.4", 2, 60)
		assert.True(t, ok)
	}
	ok, _ := l.Check("endpoint-1", "1.2.3.4", 2, 60)
	assert.False(t, ok)

	l.now = func() time.Time { return base.Add(61 * time.Second) }
	ok, _ = l.Check("endpoint-1", "1.2.3.4", 2, 60)
	assert.True(t, ok)
}

func TestSubmissionLimiter_IsolatesKeys(t *testing.T) {
	l := NewSubmissionLimiter()
	for i := 0; i < 2; i++ {
		ok, _ := l.Check("endpoint-1", "1.2.3.4", 2, 60)
		assert.True(t, ok)
	}
	ok, _ := l.Check("endpoint-1", "1.2.3.4", 2, 60)
	assert.False(t, ok, "endpoint-1 should be at its limit")

	ok, _ = l.Check("endpoint-2", "1.2.3.4", 2, 60)
	assert.True(t, ok, "a different endpoint must have its own budget")
}

func TestSubmissionLimiter_Sweep(t *testing.T) {
	l := NewSubmissionLimiter()
	base := time.Now()
	l.now = func() time.Time { return base }
	l.Check("endpoint-1", "1.2.3.4", 10, 60)

	l.now = func() time.Time { return base.Add(time.Hour) }
	l.Sweep(10 * time.Minute)

	l.now = func() time.Time { return base.Add(time.Hour) }
	ok, _ := l.Check("endpoint-1", "1.2.3.4", 1, 60)
	assert.True(t, ok, "swept entry should behave as fresh")
}

func TestLoginLimiter_CheckDoesNotIncrement(t *testing.T) {
	l := NewLoginLimiter()
	for i := 0; i < 10; i++ {
		ok, _ := l.Check("User@Example.com")
		assert.True(t, ok)
	}
}

func TestLoginLimiter_DeniesAfterFiveFailures(t *testing.T) {
	l := NewLoginLimiter()
	for i := 0; i < 5; i++ {
		l.RecordFailure("user@example.com")
	}
	ok, retryAfter := l.Check("USER@EXAMPLE.COM")
	assert.False(t, ok)
	assert.GreaterOrEqual(t, retryAfter, int64(0))
}

func TestLoginLimiter_ResetsAfterWindow(t *testing.T) {
	l := NewLoginLimiter()
	base := time.Now()
	l.now = func() time.Time { return base }
	for i := 0; i < 5; i++ {
		l.RecordFailure("user@example.com")
	}
	ok, _ := l.Check("user@example.com")
	assert.False(t, ok)

	l.now = func() time.Time { return base.Add(16 * time.Minute) }
	ok, _ = l.Check("user@example.com")
	assert.True(t, ok)
}

func TestLoginLimiter_IsCaseInsensitive(t *testing.T) {
	l := NewLoginLimiter()
	for i := 0; i < 5; i++ {
		l.RecordFailure("User@Example.com")
	}
	ok, _ := l.Check("user@example.com")
	assert.False(t, ok)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atinyakov/passvault/internal/keyvault"
)

var (
	// ErrBiometricsUnavailable indicates no BiometricGate is configured.
	ErrBiometricsUnavailable = errors.New("session: biometrics unavailable")
	// ErrBiometricsDenied indicates the device owner was not authenticated.
	ErrBiometricsDenied = errors.New("session: biometric authentication denied")
)

// BiometricGate asks the platform to authenticate the device owner.
type BiometricGate interface {
	Authenticate(ctx context.Context, reason string) (bool, error)
}

// Verifier checks a master secret.
type Verifier interface {
	VerifyMasterSecret(secret string) (bool, error)
}

// Session is the caller-held unlock flag. It gates nothing by itself; the
// caller consults Unlocked before exposing vault contents. Unlocking never
// touches the data-encryption key.
type Session struct {
	verifier Verifier
	gate     BiometricGate
	now      func() time.Time

	mu         sync.Mutex
	unlocked   bool
	lastActive time.Time
	idle       time.Duration
}

// NewSession returns a locked session. gate may be nil.
func NewSession(v Verifier, gate BiometricGate) *Session {
	return &Session{verifier: v, gate: gate, now: time.Now}
}

// AutoLockAfter locks the session once it has been idle for d. Zero disables
// auto-lock.
func (s *Session) AutoLockAfter(d time.Duration) {
	s.mu.Lock()
	s.idle = d
	s.mu.Unlock()
}

// Unlock verifies secret and unlocks the session.
func (s *Session) Unlock(ctx context.Context, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := s.verifier.VerifyMasterSecret(secret)
	if err != nil {
		return err
	}
	if !ok {
		return keyvault.ErrInvalidCredential
	}
	s.markUnlocked()
	return nil
}

// UnlockWithBiometrics unlocks the session if the device owner authenticates.
func (s *Session) UnlockWithBiometrics(ctx context.Context, reason string) error {
	if s.gate == nil {
		return ErrBiometricsUnavailable
	}
	ok, err := s.gate.Authenticate(ctx, reason)
	if err != nil {
		return fmt.Errorf("biometric authentication: %w", err)
	}
	if !ok {
		return ErrBiometricsDenied
	}
	s.markUnlocked()
	return nil
}

func (s *Session) markUnlocked() {
	s.mu.Lock()
	s.unlocked = true
	s.lastActive = s.now()
	s.mu.Unlock()
}

// Lock locks the session.
func (s *Session) Lock() {
	s.mu.Lock()
	s.unlocked = false
	s.mu.Unlock()
}

// Unlocked reports whether the session is unlocked, locking it first if the
// idle timeout has passed. A true result counts as activity.
func (s *Session) Unlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unlocked {
		return false
	}
	now := s.now()
	if s.idle > 0 && now.Sub(s.lastActive) >= s.idle {
		s.unlocked = false
		return false
	}
	s.lastActive = now
	return true
}

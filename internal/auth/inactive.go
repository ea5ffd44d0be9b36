// ABOUTME: Owner alerting when credentials hit a deactivated project.
// ABOUTME: Throttles the alert email to one per cooldown window.

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/shoutbox/shoutbox/internal/store"
)

// inactiveCooldown is the minimum gap between two owner alerts for the
// same project.
const inactiveCooldown = 24 * time.Hour

// OwnerNotifier delivers the "your project is deactivated" alert.
// Implemented by the email sender; a nil notifier disables alerting
// without disabling the refusal itself.
type OwnerNotifier interface {
	NotifyProjectInactive(ctx context.Context, p *store.Project) error
}

// InactiveWatcher refuses authentication against deactivated projects and
// alerts the owner at most once per cooldown window. The last-alert stamp
// lives on the project row so the throttle survives restarts.
type InactiveWatcher struct {
	store    store.ProjectStore
	notifier OwnerNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewInactiveWatcher builds a watcher. notifier may be nil.
func NewInactiveWatcher(st store.ProjectStore, notifier OwnerNotifier, logger *slog.Logger) *InactiveWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InactiveWatcher{
		store:    st,
		notifier: notifier,
		logger:   logger.With("component", "auth"),
		now:      time.Now,
	}
}

// Refuse records an authentication attempt against an inactive project and
// returns the error every scheme propagates for it. The alert is sent
// before returning, never concurrently, so a test observes it
// deterministically; delivery failures are logged and swallowed because
// the refusal must stand either way.
func (w *InactiveWatcher) Refuse(ctx context.Context, p *store.Project) error {
	if w == nil {
		return ErrInactive
	}
	now := w.now().UTC()
	if p.LastInactiveNotice != nil && now.Sub(*p.LastInactiveNotice) < inactiveCooldown {
		return ErrInactive
	}
	if w.notifier != nil {
		if err := w.notifier.NotifyProjectInactive(ctx, p); err != nil {
			w.logger.Warn("inactive project alert failed", "project", p.PublicKey, "error", err)
			return ErrInactive
		}
	}
	stamp := now
	p.LastInactiveNotice = &stamp
	if err := w.store.UpdateProject(ctx, p); err != nil {
		w.logger.Warn("recording inactive alert stamp failed", "project", p.PublicKey, "error", err)
	}
	w.logger.Info("alerted owner of inactive project", "project", p.PublicKey, "owner", p.OwnerEmail)
	return ErrInactive
}

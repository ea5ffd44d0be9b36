// ABOUTME: Tests for conditional email outcomes and the cooldown stamp.
// ABOUTME: Uses a recording notifier instead of a real SMTP relay.

package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoutbox/shoutbox/internal/store"
)

// recordingNotifier captures outgoing mail instead of sending it.
type recordingNotifier struct {
	messages []string // recipient addresses, in order
	inactive []string // project public keys alerted
}

func (n *recordingNotifier) SendMessageEmail(_ context.Context, _ *store.Project, _ *store.Message, toEmail string) error {
	n.messages = append(n.messages, toEmail)
	return nil
}

func (n *recordingNotifier) NotifyProjectInactive(_ context.Context, p *store.Project) error {
	n.inactive = append(n.inactive, p.PublicKey)
	return nil
}

func offlinePerson(id int64, email string) *store.Person {
	return &store.Person{ID: id, Username: "u", Email: email}
}

func TestEmailChatMembers_Outcomes(t *testing.T) {
	st := setupFanoutStore(t)
	ctx := context.Background()

	senderID := int64(1)
	msg := &store.Message{ID: 1, ChatID: 1, SenderID: &senderID, Text: "hi"}

	t.Run("disabled when project opted out", func(t *testing.T) {
		project := fanoutProject(t, st)
		project.EmailsEnabled = false

		e := NewEmailer(st, &recordingNotifier{}, nil)
		outcome, sent := e.EmailChatMembers(ctx, project, msg, []*store.Person{offlinePerson(2, "p@example.com")})
		assert.Equal(t, EmailDisabled, outcome)
		assert.Empty(t, sent)
	})

	t.Run("disabled on throttled plans", func(t *testing.T) {
		for _, plan := range []string{store.PlanBasic, store.PlanLight, "basic_monthly"} {
			project := fanoutProject(t, st)
			project.PlanType = plan

			e := NewEmailer(st, &recordingNotifier{}, nil)
			outcome, _ := e.EmailChatMembers(ctx, project, msg, []*store.Person{offlinePerson(2, "p@example.com")})
			assert.Equal(t, EmailDisabled, outcome, "plan %q", plan)
		}
	})

	t.Run("throttled inside the cooldown", func(t *testing.T) {
		project := fanoutProject(t, st)
		project.EmailLastSent = time.Now().UTC().Add(-time.Minute)

		e := NewEmailer(st, &recordingNotifier{}, nil)
		outcome, _ := e.EmailChatMembers(ctx, project, msg, []*store.Person{offlinePerson(2, "p@example.com")})
		assert.Equal(t, EmailThrottled, outcome)
	})

	t.Run("no users qualify", func(t *testing.T) {
		project := fanoutProject(t, st)
		project.EmailLastSent = time.Now().UTC().Add(-time.Hour)

		online := &store.Person{ID: 2, Email: "online@example.com", IsOnline: true}
		noEmail := &store.Person{ID: 3}
		sender := &store.Person{ID: senderID, Email: "sender@example.com"}

		notifier := &recordingNotifier{}
		e := NewEmailer(st, notifier, nil)
		outcome, sent := e.EmailChatMembers(ctx, project, msg, []*store.Person{online, noEmail, sender})
		assert.Equal(t, EmailNoUsers, outcome)
		assert.Empty(t, sent)
		assert.Empty(t, notifier.messages)
	})

	t.Run("success stamps the cooldown", func(t *testing.T) {
		project := fanoutProject(t, st)
		project.EmailLastSent = time.Now().UTC().Add(-time.Hour)

		notifier := &recordingNotifier{}
		e := NewEmailer(st, notifier, nil)
		outcome, sent := e.EmailChatMembers(ctx, project, msg, []*store.Person{
			offlinePerson(2, "a@example.com"),
			offlinePerson(3, "b@example.com"),
		})
		require.Equal(t, EmailSuccess, outcome)
		assert.Equal(t, []string{"a@example.com", "b@example.com"}, sent)
		assert.Equal(t, sent, notifier.messages)

		// The stamp is persisted so a second run inside the window throttles.
		stored, err := st.GetProject(ctx, project.PublicKey)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), stored.EmailLastSent, 5*time.Second)

		outcome, _ = e.EmailChatMembers(ctx, stored, msg, []*store.Person{offlinePerson(2, "a@example.com")})
		assert.Equal(t, EmailThrottled, outcome)
	})
}

func TestNeedsThrottle(t *testing.T) {
	assert.True(t, needsThrottle(store.PlanBasic))
	assert.True(t, needsThrottle("light_annual"))
	assert.False(t, needsThrottle(store.PlanProduction))
	assert.False(t, needsThrottle(store.PlanProfessional))
}

func TestSMTPNotifier_LogsWithoutRelay(t *testing.T) {
	n, err := NewSMTPNotifier("", "", "", "", "noreply@example.com", nil)
	require.NoError(t, err)

	project := &store.Project{Title: "Widget Chat", OwnerEmail: "owner@example.com"}
	msg := &store.Message{SenderUsername: "alice", Text: "hello"}

	assert.NoError(t, n.SendMessageEmail(context.Background(), project, msg, "p@example.com"))
	assert.NoError(t, n.NotifyProjectInactive(context.Background(), project))
}

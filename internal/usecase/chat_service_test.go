package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidchat/internal/domain/entity"
	"bidchat/internal/domain/repository"
	"bidchat/pkg/errors"
)

type recordingSink struct {
	mu        sync.Mutex
	messages  []sinkDelivery
	presences map[string][]entity.Presence
}

type sinkDelivery struct {
	email        string
	counterparty string
	fresh        []entity.Message
}

func newRecordingSink() *recordingSink {
	return &recordingSink{presences: make(map[string][]entity.Presence)}
}

func (s *recordingSink) DeliverMessages(email, counterparty string, fresh []entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sinkDelivery{email: email, counterparty: counterparty, fresh: fresh})
}

func (s *recordingSink) DeliverPresence(email string, presences []entity.Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presences[email] = presences
}

func newServiceFixture() (*ChatService, *recordingSink, map[string]*fakeChannel) {
	sink := newRecordingSink()
	channels := make(map[string]*fakeChannel)
	factory := func(ctx context.Context, session *entity.Session) (repository.ChatChannel, error) {
		ch := newFakeChannel()
		channels[session.Email] = ch
		return ch, nil
	}
	return NewChatService(context.Background(), factory, sink), sink, channels
}

func TestStartRoutesDeliveriesThroughSink(t *testing.T) {
	service, sink, channels := newServiceFixture()

	_, err := service.Start(&entity.Session{Email: "alice@example.com", AdminType: "user"})
	require.NoError(t, err)

	channels["alice@example.com"].deliver("admin", []entity.Message{
		{Sender: "admin@example.com", Text: "hello", Timestamp: 1, Recipient: "alice@example.com", IsAdmin: true},
	})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.messages, 1)
	assert.Equal(t, "alice@example.com", sink.messages[0].email)
	assert.Equal(t, "admin", sink.messages[0].counterparty)
	require.Len(t, sink.messages[0].fresh, 1)
}

func TestStartTwiceReplacesManager(t *testing.T) {
	service, _, channels := newServiceFixture()
	session := &entity.Session{Email: "alice@example.com", AdminType: "user"}

	first, err := service.Start(session)
	require.NoError(t, err)
	firstChannel := channels["alice@example.com"]

	second, err := service.Start(session)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 1, firstChannel.closes)

	current, err := service.ManagerFor("alice@example.com")
	require.NoError(t, err)
	assert.Same(t, second, current)
}

func TestManagerForUnknownEmail(t *testing.T) {
	service, _, _ := newServiceFixture()

	_, err := service.ManagerFor("nobody@example.com")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestStopForReleasesChannel(t *testing.T) {
	service, _, channels := newServiceFixture()

	_, err := service.Start(&entity.Session{Email: "alice@example.com", AdminType: "user"})
	require.NoError(t, err)

	service.StopFor("alice@example.com")

	assert.Equal(t, 1, channels["alice@example.com"].closes)
	_, err = service.ManagerFor("alice@example.com")
	assert.Error(t, err)

	// A second stop is harmless.
	service.StopFor("alice@example.com")
	assert.Equal(t, 1, channels["alice@example.com"].closes)
}

func TestStopAllTearsDownEverySession(t *testing.T) {
	service, _, channels := newServiceFixture()

	_, err := service.Start(&entity.Session{Email: "alice@example.com", AdminType: "user"})
	require.NoError(t, err)
	_, err = service.Start(&entity.Session{Email: "admin@example.com", AdminType: "super"})
	require.NoError(t, err)

	service.StopAll()

	assert.Equal(t, 1, channels["alice@example.com"].closes)
	assert.Equal(t, 1, channels["admin@example.com"].closes)
}

func TestAdminSessionSubscribesPresence(t *testing.T) {
	service, sink, channels := newServiceFixture()

	_, err := service.Start(&entity.Session{Email: "admin@example.com", AdminType: "super"})
	require.NoError(t, err)

	channel := channels["admin@example.com"]
	require.NotNil(t, channel.presenceFn)

	channel.presenceFn([]entity.Presence{{Email: "bob@example.com", LastActive: 7}})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.presences["admin@example.com"], 1)
	assert.Equal(t, "bob@example.com", sink.presences["admin@example.com"][0].Email)
}

package gmail

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

type fakePage struct {
	ids  []string
	next string
}

type fakeAPI struct {
	mu        sync.Mutex
	pages     map[string]fakePage
	messages  map[string]*gmailapi.Message
	getErrs   map[string]error
	listErrs  []error // consumed one per List call before pages are served
	listCalls int
	getCalls  int
	sentRaw   []string
	sendErr   error
}

func (f *fakeAPI) ListIDs(ctx context.Context, query, pageToken string, maxResults int64) ([]string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		return nil, "", err
	}
	page := f.pages[pageToken]
	return page.ids, page.next, nil
}

func (f *fakeAPI) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if err, ok := f.getErrs[id]; ok {
		return nil, err
	}
	if msg, ok := f.messages[id]; ok {
		return msg, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) Send(ctx context.Context, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentRaw = append(f.sentRaw, raw)
	return f.sendErr
}

func simpleMessage(id, body string) *gmailapi.Message {
	return &gmailapi.Message{
		Id: id,
		Payload: &gmailapi.MessagePart{
			Body: &gmailapi.MessagePartBody{Data: enc(body)},
		},
	}
}

func newTestService(api MailAPI, maxElapsed time.Duration) *Service {
	return &Service{
		maxElapsed: maxElapsed,
		logger:     zap.NewNop(),
		newAPI: func(ctx context.Context, accessToken string) (MailAPI, error) {
			return api, nil
		},
	}
}

func TestFetchWindowPaginationTermination(t *testing.T) {
	api := &fakeAPI{
		pages: map[string]fakePage{
			"":   {ids: []string{"m1", "m2"}, next: "t1"},
			"t1": {ids: []string{"m3"}, next: "t2"},
			"t2": {ids: []string{"m4"}, next: ""},
		},
		messages: map[string]*gmailapi.Message{
			"m1": simpleMessage("m1", "a"),
			"m2": simpleMessage("m2", "b"),
			"m3": simpleMessage("m3", "c"),
			"m4": simpleMessage("m4", "d"),
		},
	}
	svc := newTestService(api, time.Second)

	emails, err := svc.FetchWindow(context.Background(), "token", 7)
	require.NoError(t, err)
	assert.Equal(t, 3, api.listCalls)
	assert.Len(t, emails, 4)
}

func TestFetchWindowPerItemFaultIsolation(t *testing.T) {
	api := &fakeAPI{
		pages: map[string]fakePage{
			"": {ids: []string{"m1", "m2", "m3", "m4", "m5"}},
		},
		messages: map[string]*gmailapi.Message{
			"m1": simpleMessage("m1", "a"),
			"m2": simpleMessage("m2", "b"),
			"m4": simpleMessage("m4", "d"),
			"m5": simpleMessage("m5", "e"),
		},
		getErrs: map[string]error{
			"m3": errors.New("malformed message"),
		},
	}
	svc := newTestService(api, time.Second)

	emails, err := svc.FetchWindow(context.Background(), "token", 0)
	require.NoError(t, err)
	assert.Len(t, emails, 4)
	for _, email := range emails {
		assert.NotEqual(t, "m3", email.ID)
	}
}

func TestFetchWindowRetriesRateLimit(t *testing.T) {
	api := &fakeAPI{
		listErrs: []error{
			&googleapi.Error{Code: http.StatusTooManyRequests},
			&googleapi.Error{Code: http.StatusForbidden},
		},
		pages: map[string]fakePage{
			"": {ids: []string{"m1"}},
		},
		messages: map[string]*gmailapi.Message{
			"m1": simpleMessage("m1", "a"),
		},
	}
	svc := newTestService(api, 10*time.Second)

	emails, err := svc.FetchWindow(context.Background(), "token", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, api.listCalls)
	assert.Len(t, emails, 1)
}

func TestFetchWindowSurfacesCredentialRejection(t *testing.T) {
	api := &fakeAPI{
		pages: map[string]fakePage{
			"": {ids: []string{"m1", "m2"}},
		},
		messages: map[string]*gmailapi.Message{
			"m2": simpleMessage("m2", "b"),
		},
		getErrs: map[string]error{
			"m1": &googleapi.Error{Code: http.StatusUnauthorized},
		},
	}
	svc := newTestService(api, time.Second)

	_, err := svc.FetchWindow(context.Background(), "token", 0)
	assert.ErrorIs(t, err, ErrCredentialRejected)
}

func TestFetchByID(t *testing.T) {
	api := &fakeAPI{
		messages: map[string]*gmailapi.Message{
			"m1": simpleMessage("m1", "hello"),
		},
	}
	svc := newTestService(api, time.Second)

	email, err := svc.FetchByID(context.Background(), "token", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", email.ID)
	assert.Equal(t, "hello", email.Body)
}

func TestSendEmailComposesRaw(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(api, time.Second)

	err := svc.SendEmail(context.Background(), "token", "me@example.com", "you@example.com", "Hello", "Body text")
	require.NoError(t, err)
	require.Len(t, api.sentRaw, 1)
	assert.NotEmpty(t, api.sentRaw[0])
}

func TestSendEmailInvalidRecipient(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(api, time.Second)

	err := svc.SendEmail(context.Background(), "token", "me@example.com", "not an address", "Hello", "Body")
	assert.Error(t, err)
	assert.Empty(t, api.sentRaw)
}

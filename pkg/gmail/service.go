package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	emaildomain "clustermail-backend/internal/email/domain"
)

// ErrCredentialRejected is returned when the provider rejects the bearer
// credential. The pipeline does not refresh tokens itself; the caller owns
// the credential lifecycle.
var ErrCredentialRejected = errors.New("gmail: credential rejected")

const (
	listPageSize     = 100
	fetchConcurrency = 10
	backoffBase      = 500 * time.Millisecond
)

// MailAPI is the slice of the Gmail API the fetcher consumes.
type MailAPI interface {
	ListIDs(ctx context.Context, query, pageToken string, maxResults int64) ([]string, string, error)
	GetMessage(ctx context.Context, id string) (*gmailapi.Message, error)
	Send(ctx context.Context, raw string) error
}

type Service struct {
	maxElapsed time.Duration
	logger     *zap.Logger
	newAPI     func(ctx context.Context, accessToken string) (MailAPI, error)
}

func NewService(maxElapsed time.Duration, logger *zap.Logger) *Service {
	return &Service{
		maxElapsed: maxElapsed,
		logger:     logger,
		newAPI:     newGmailAPI,
	}
}

// FetchWindow walks the paginated listing for messages newer than
// lookbackDays (0 means all time), fetches each message body with bounded
// concurrency and normalizes it. A failure on a single message drops that
// message only; the rest of the batch is returned. Result order is not
// significant.
func (s *Service) FetchWindow(ctx context.Context, accessToken string, lookbackDays int) ([]*emaildomain.Email, error) {
	api, err := s.newAPI(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	query := ""
	if lookbackDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -lookbackDays)
		query = fmt.Sprintf("after:%d/%d/%d", cutoff.Year(), int(cutoff.Month()), cutoff.Day())
	}

	var ids []string
	pageToken := ""
	for {
		var pageIDs []string
		var next string
		err := s.withRetry(ctx, func() error {
			var listErr error
			pageIDs, next, listErr = api.ListIDs(ctx, query, pageToken, listPageSize)
			return listErr
		})
		if err != nil {
			return nil, classifyAuthError(err)
		}

		ids = append(ids, pageIDs...)
		if next == "" {
			break
		}
		pageToken = next
	}

	return s.fetchAll(ctx, api, ids)
}

// FetchByID fetches and normalizes a single message.
func (s *Service) FetchByID(ctx context.Context, accessToken, id string) (*emaildomain.Email, error) {
	api, err := s.newAPI(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return s.fetchOne(ctx, api, id)
}

// fetchAll runs the per-ID gets as a bounded-concurrency batch and joins
// before returning; nothing downstream starts until every get has settled.
func (s *Service) fetchAll(ctx context.Context, api MailAPI, ids []string) ([]*emaildomain.Email, error) {
	if len(ids) == 0 {
		return []*emaildomain.Email{}, nil
	}

	type result struct {
		email *emaildomain.Email
		err   error
	}

	results := make(chan result, len(ids))
	semaphore := make(chan struct{}, fetchConcurrency)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			email, err := s.fetchOne(ctx, api, id)
			results <- result{email, err}
		}(id)
	}
	wg.Wait()
	close(results)

	emails := make([]*emaildomain.Email, 0, len(ids))
	var credErr error
	for r := range results {
		switch {
		case r.err == nil:
			emails = append(emails, r.email)
		case errors.Is(r.err, ErrCredentialRejected):
			credErr = r.err
		default:
			// Per-item failure: drop this message, keep the batch.
			s.logger.Warn("dropping unfetchable message", zap.Error(r.err))
		}
	}
	if credErr != nil {
		return nil, credErr
	}
	return emails, nil
}

func (s *Service) fetchOne(ctx context.Context, api MailAPI, id string) (*emaildomain.Email, error) {
	var msg *gmailapi.Message
	err := s.withRetry(ctx, func() error {
		var getErr error
		msg, getErr = api.GetMessage(ctx, id)
		return getErr
	})
	if err != nil {
		return nil, classifyAuthError(err)
	}
	return Normalize(msg), nil
}

// withRetry retries rate-limit (429) and forbidden (403) responses with
// capped exponential backoff. The sleep suspends only this call; other
// in-flight fetches keep running.
func (s *Service) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = backoffBase
	policy.Multiplier = 2
	policy.MaxElapsedTime = s.maxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
}

func isTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code == http.StatusForbidden
	}
	return false
}

func classifyAuthError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return ErrCredentialRejected
	}
	return err
}

// newGmailAPI builds the real Gmail client for one bearer credential.
func newGmailAPI(ctx context.Context, accessToken string) (MailAPI, error) {
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	srv, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &liveAPI{srv: srv}, nil
}

type liveAPI struct {
	srv *gmailapi.Service
}

func (a *liveAPI) ListIDs(ctx context.Context, query, pageToken string, maxResults int64) ([]string, string, error) {
	call := a.srv.Users.Messages.List("me").MaxResults(maxResults).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, resp.NextPageToken, nil
}

func (a *liveAPI) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	return a.srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
}

func (a *liveAPI) Send(ctx context.Context, raw string) error {
	_, err := a.srv.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	return err
}

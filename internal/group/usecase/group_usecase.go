package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	emaildomain "clustermail-backend/internal/email/domain"
	emailrepo "clustermail-backend/internal/email/repository"
	groupdomain "clustermail-backend/internal/group/domain"
	"clustermail-backend/internal/group/repository"
)

const resolveConcurrency = 5

// Fetcher is the single-message fetch path used to resolve membership rows
// whose message is not cached locally yet.
type Fetcher interface {
	FetchByID(ctx context.Context, accessToken, id string) (*emaildomain.Email, error)
}

// ClusterTrigger kicks the external clustering job for a user.
type ClusterTrigger interface {
	TriggerClustering(ctx context.Context, userEmail string) error
}

type GroupUsecase interface {
	// GetGroups assembles the user's groups. When clustering has not run yet
	// it records the trigger marker, fires the job and returns whatever
	// memberships currently exist with state pending; the caller re-polls.
	GetGroups(ctx context.Context, userEmail, accessToken string) (*groupdomain.GroupsResult, error)
	// RenameGroup renames one group and returns the refreshed view.
	RenameGroup(ctx context.Context, userEmail, accessToken string, groupID int, name string) (*groupdomain.GroupsResult, error)
	// AddToGroup adds a message to a group (idempotent) and returns the
	// refreshed view.
	AddToGroup(ctx context.Context, userEmail, accessToken string, groupID int, emailID string) (*groupdomain.GroupsResult, error)
}

type groupUsecase struct {
	groupRepo repository.GroupRepository
	emailRepo emailrepo.EmailRepository
	fetcher   Fetcher
	trigger   ClusterTrigger
	logger    *zap.Logger
}

func NewGroupUsecase(
	groupRepo repository.GroupRepository,
	emailRepo emailrepo.EmailRepository,
	fetcher Fetcher,
	trigger ClusterTrigger,
	logger *zap.Logger,
) GroupUsecase {
	return &groupUsecase{
		groupRepo: groupRepo,
		emailRepo: emailRepo,
		fetcher:   fetcher,
		trigger:   trigger,
		logger:    logger,
	}
}

func (u *groupUsecase) GetGroups(ctx context.Context, userEmail, accessToken string) (*groupdomain.GroupsResult, error) {
	hasGroups, err := u.groupRepo.HasGroups(ctx, userEmail)
	if err != nil {
		return nil, fmt.Errorf("checking clustering state: %w", err)
	}

	if !hasGroups {
		u.maybeTriggerClustering(ctx, userEmail)
	}

	memberships, err := u.groupRepo.ListMemberships(ctx, userEmail)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}

	emailsByID, err := u.resolveMessages(ctx, userEmail, accessToken, memberships)
	if err != nil {
		return nil, err
	}

	groups := assembleGroups(memberships, emailsByID)

	state := groupdomain.ClusterStateReady
	if len(groups) == 0 {
		state = groupdomain.ClusterStatePending
	}

	return &groupdomain.GroupsResult{State: state, Groups: groups}, nil
}

// maybeTriggerClustering records the trigger marker atomically and, if this
// request won the insert, fires the clustering job in the background. The
// trigger is best-effort: on failure the marker is cleared so the next
// GetGroups retries.
func (u *groupUsecase) maybeTriggerClustering(ctx context.Context, userEmail string) {
	alreadyTriggered, err := u.groupRepo.EnsureClusterTriggered(ctx, userEmail)
	if err != nil {
		u.logger.Warn("could not record cluster trigger marker",
			zap.String("user", userEmail), zap.Error(err))
		return
	}
	if alreadyTriggered {
		return
	}

	go func() {
		// Detached from the request: the job outlives the HTTP call.
		triggerCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := u.trigger.TriggerClustering(triggerCtx, userEmail); err != nil {
			u.logger.Warn("cluster trigger failed",
				zap.String("user", userEmail), zap.Error(err))
			if clearErr := u.groupRepo.ClearClusterMarker(context.Background(), userEmail); clearErr != nil {
				u.logger.Error("could not clear cluster marker",
					zap.String("user", userEmail), zap.Error(clearErr))
			}
		}
	}()
}

// resolveMessages maps every referenced message ID to its full record,
// reading the local store first and falling back to a provider fetch plus
// upsert for anything not cached. A membership row must never be returned
// without its message, so any resolution failure fails the call.
func (u *groupUsecase) resolveMessages(ctx context.Context, userEmail, accessToken string, memberships []groupdomain.Membership) (map[string]*emaildomain.Email, error) {
	ids := make([]string, 0, len(memberships))
	seen := make(map[string]bool, len(memberships))
	for _, m := range memberships {
		if !seen[m.EmailID] {
			seen[m.EmailID] = true
			ids = append(ids, m.EmailID)
		}
	}

	emailsByID := make(map[string]*emaildomain.Email, len(ids))
	var mu sync.Mutex
	var firstErr error

	semaphore := make(chan struct{}, resolveConcurrency)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			email, err := u.resolveOne(ctx, userEmail, accessToken, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			emailsByID[id] = email
		}(id)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return emailsByID, nil
}

func (u *groupUsecase) resolveOne(ctx context.Context, userEmail, accessToken, id string) (*emaildomain.Email, error) {
	email, err := u.emailRepo.GetByID(ctx, userEmail, id)
	if err != nil {
		return nil, fmt.Errorf("looking up message %s: %w", id, err)
	}
	if email != nil {
		return email, nil
	}

	fetched, err := u.fetcher.FetchByID(ctx, accessToken, id)
	if err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", id, err)
	}
	if err := u.emailRepo.Upsert(ctx, userEmail, fetched, emailrepo.KeepExisting); err != nil {
		return nil, fmt.Errorf("caching message %s: %w", id, err)
	}
	return fetched, nil
}

// assembleGroups folds membership rows into groups, keeping the first-seen
// name for each group and appending members in membership order.
func assembleGroups(memberships []groupdomain.Membership, emailsByID map[string]*emaildomain.Email) []*groupdomain.GroupView {
	groups := make([]*groupdomain.GroupView, 0)
	byID := make(map[int]*groupdomain.GroupView)

	for _, m := range memberships {
		email, ok := emailsByID[m.EmailID]
		if !ok {
			continue
		}
		group, exists := byID[m.GroupID]
		if !exists {
			group = &groupdomain.GroupView{GroupID: m.GroupID, Name: m.GroupName}
			byID[m.GroupID] = group
			groups = append(groups, group)
		}
		group.Emails = append(group.Emails, email)
	}

	return groups
}

func (u *groupUsecase) RenameGroup(ctx context.Context, userEmail, accessToken string, groupID int, name string) (*groupdomain.GroupsResult, error) {
	if err := u.groupRepo.RenameGroup(ctx, userEmail, groupID, name); err != nil {
		return nil, err
	}
	return u.GetGroups(ctx, userEmail, accessToken)
}

func (u *groupUsecase) AddToGroup(ctx context.Context, userEmail, accessToken string, groupID int, emailID string) (*groupdomain.GroupsResult, error) {
	if err := u.groupRepo.AddMembership(ctx, userEmail, groupID, emailID); err != nil {
		return nil, err
	}
	return u.GetGroups(ctx, userEmail, accessToken)
}

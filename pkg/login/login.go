package login

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/authbridge/authbridge/pkg/store"
)

// Service drives the login request lifecycle: a client opens a request, the
// user authenticates with the identity provider out of band, and the protocol
// handler delivers the resulting profile back through the request.
type Service struct {
	requests store.Store[*store.Request]
	users    store.Store[*store.User]
	log      logrus.FieldLogger
}

// NewService creates a login service over the given request and user stores.
func NewService(requests store.Store[*store.Request], users store.Store[*store.User], log logrus.FieldLogger) *Service {
	return &Service{
		requests: requests,
		users:    users,
		log:      log,
	}
}

// StartRequest opens a new login request for the named user. The request
// identifier is an opaque UUID that appears in the login URL handed to the
// browser and in the status long poll.
func (s *Service) StartRequest(ctx context.Context, userID string, forceAuthn bool) (*store.Request, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user identifier", store.ErrInvalidArgument)
	}
	request := store.NewRequest(uuid.New().String(), userID, forceAuthn)
	if err := s.requests.Put(ctx, request.ID, request); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"request": request.ID,
		"user":    userID,
	}).Info("login request started")
	return request, nil
}

// FindRequest returns the login request, consuming it if it has completed.
// A pending request can be found any number of times; a completed request is
// delivered to exactly one caller.
func (s *Service) FindRequest(ctx context.Context, requestID string) (*store.Request, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: missing request identifier", store.ErrInvalidArgument)
	}
	return s.requests.Get(ctx, requestID)
}

// AssignProvider records which identity provider the browser was sent to,
// so the protocol callback can find the right validation handle. The updated
// request is returned; the entry keeps its original expiry.
func (s *Service) AssignProvider(ctx context.Context, requestID, providerID string) (*store.Request, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	updated := *request
	updated.Provider = providerID
	if err := s.requests.Put(ctx, requestID, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ReceiveUserProfile records the authenticated profile for the given login
// request. The request is marked complete and the profile becomes available
// for a single take via GetUserByID.
func (s *Service) ReceiveUserProfile(ctx context.Context, requestID string, profile map[string]any) (*store.User, error) {
	if profile == nil {
		return nil, fmt.Errorf("%w: missing profile", store.ErrInvalidArgument)
	}
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	completed := request.Complete(request.UserID, profile)
	if err := s.requests.Put(ctx, requestID, completed); err != nil {
		return nil, err
	}
	user := store.NewUser(request.UserID, profile)
	if err := s.users.Put(ctx, user.ID, user); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"request": requestID,
		"user":    user.ID,
	}).Info("user profile received")
	return user, nil
}

// GetUserByID takes the authenticated profile for the named user. The first
// successful call removes the profile; later calls report not found.
func (s *Service) GetUserByID(ctx context.Context, userID string) (*store.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user identifier", store.ErrInvalidArgument)
	}
	return s.users.Get(ctx, userID)
}

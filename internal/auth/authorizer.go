// Package auth wraps the external identity collaborator. The engine does
// not own users or roles; it only asks whether a caller may manage a
// given quiz.
package auth

import (
	"context"
	"fmt"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/quizforge/assessment-engine/internal/models"
)

// Authorizer answers management permission checks for quiz operations.
// Learner-facing operations (start/submit/abandon) are authorized by
// ownership and need no external check.
type Authorizer interface {
	CanManage(ctx context.Context, userID string, quiz *models.Quiz) (bool, error)
}

// CasdoorAuthorizer resolves roles through a Casdoor organization.
type CasdoorAuthorizer struct {
	client *casdoorsdk.Client
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Certificate  string
	Organization string
	Application  string
}

func NewCasdoorAuthorizer(cfg CasdoorConfig) *CasdoorAuthorizer {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)
	return &CasdoorAuthorizer{client: client}
}

// CanManage allows the quiz creator, admins, and users holding an
// instructor role.
func (a *CasdoorAuthorizer) CanManage(ctx context.Context, userID string, quiz *models.Quiz) (bool, error) {
	if quiz != nil && quiz.CreatedBy == userID {
		return true, nil
	}

	user, err := a.client.GetUser(userID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve user %s: %w", userID, err)
	}
	if user == nil {
		return false, nil
	}
	if user.IsAdmin {
		return true, nil
	}
	for _, role := range user.Roles {
		if role.Name == "instructor" || role.Name == "teacher" {
			return true, nil
		}
	}
	return false, nil
}

// StaticAuthorizer is a fixed-answer implementation for tests and local
// development.
type StaticAuthorizer struct {
	Managers map[string]bool
}

func NewStaticAuthorizer(managerIDs ...string) *StaticAuthorizer {
	managers := make(map[string]bool, len(managerIDs))
	for _, id := range managerIDs {
		managers[id] = true
	}
	return &StaticAuthorizer{Managers: managers}
}

func (a *StaticAuthorizer) CanManage(_ context.Context, userID string, quiz *models.Quiz) (bool, error) {
	if quiz != nil && quiz.CreatedBy == userID {
		return true, nil
	}
	return a.Managers[userID], nil
}

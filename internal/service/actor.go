package service

import (
	"strings"

	"github.com/noah-isme/steward-api/internal/models"
)

// Actor identifies who is performing an operation and within which tenant.
type Actor struct {
	OrgID   string
	UserID  string
	IsAdmin bool
}

// SystemActor is the synthetic actor used for automated transitions.
func SystemActor(orgID string) Actor {
	return Actor{OrgID: orgID, UserID: models.SystemActorID, IsAdmin: true}
}

func (a Actor) requireMember() error {
	if strings.TrimSpace(a.OrgID) == "" {
		return ErrMissingOrganization
	}
	return nil
}

func (a Actor) requireAdmin() error {
	if err := a.requireMember(); err != nil {
		return err
	}
	if !a.IsAdmin {
		return ErrAdminRequired
	}
	return nil
}

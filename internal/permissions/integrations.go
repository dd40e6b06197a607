package permissions

import "context"

// OrganisationDirectory is an optional integration reporting manager
// relationships between users. Deployments without an organisation plugin use
// the no-op implementation, which never grants anything.
type OrganisationDirectory interface {
	IsManagerOverUser(ctx context.Context, managerID, userID string) (bool, error)
}

// TenancyFilter is an optional multi-tenancy integration that can hide users
// from viewers in other tenants. The no-op implementation hides nobody.
type TenancyFilter interface {
	IsUserHidden(ctx context.Context, viewerID, userID string) (bool, error)
}

type noopOrganisationDirectory struct{}

func (noopOrganisationDirectory) IsManagerOverUser(context.Context, string, string) (bool, error) {
	return false, nil
}

type noopTenancyFilter struct{}

func (noopTenancyFilter) IsUserHidden(context.Context, string, string) (bool, error) {
	return false, nil
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
)

func TestVerify(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	issuer := f.user(t, "verify-issuer")
	student := f.user(t, "verify-student")
	verifier := f.user(t, "verify-verifier")
	scope := f.categoryScope(t, "Verification")

	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Manage, scope.ID))
	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Issue, scope.ID))
	require.NoError(t, f.caps.Grant(ctx, verifier.ID, capability.Verify, f.system.ID))

	tpl, err := f.templates.CreateTemplate(ctx, issuer.ID, CreateTemplateInput{
		Name:    "Verifiable",
		ScopeID: scope.ID,
	})
	require.NoError(t, err)

	issue, err := f.issues.IssueCertificate(ctx, issuer.ID, IssueInput{
		TemplateID: tpl.ID,
		UserID:     student.ID,
	})
	require.NoError(t, err)

	result, err := f.verify.Verify(ctx, verifier.ID, issue.Code)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.False(t, result.Expired)
	require.Equal(t, issue.ID, result.Issue.ID)
	require.NotNil(t, result.Issue.Template)

	// Unknown codes fail quietly instead of erroring.
	result, err = f.verify.Verify(ctx, verifier.ID, "NOSUCHCODE")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Nil(t, result.Issue)

	_, err = f.verify.Verify(ctx, student.ID, issue.Code)
	var accessErr *permissions.AccessError
	require.ErrorAs(t, err, &accessErr)
	require.Equal(t, capability.Verify, accessErr.Capability)
}

func TestVerifyExpiredIssue(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	issuer := f.user(t, "verify-exp-issuer")
	student := f.user(t, "verify-exp-student")
	verifier := f.user(t, "verify-exp-verifier")
	scope := f.categoryScope(t, "Expiry")

	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Manage, scope.ID))
	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Issue, scope.ID))
	require.NoError(t, f.caps.Grant(ctx, verifier.ID, capability.Verify, f.system.ID))

	tpl, err := f.templates.CreateTemplate(ctx, issuer.ID, CreateTemplateInput{
		Name:    "Expirable",
		ScopeID: scope.ID,
	})
	require.NoError(t, err)

	expires := time.Now().Add(time.Hour)
	issue, err := f.issues.IssueCertificate(ctx, issuer.ID, IssueInput{
		TemplateID: tpl.ID,
		UserID:     student.ID,
		ExpiresAt:  &expires,
	})
	require.NoError(t, err)

	f.verify.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	result, err := f.verify.Verify(ctx, verifier.ID, issue.Code)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.True(t, result.Expired)
	require.Equal(t, issue.ID, result.Issue.ID)
}

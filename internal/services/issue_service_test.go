package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

func TestIssueCertificate(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	issuer := f.user(t, "issue-issuer")
	student := f.user(t, "issue-student")
	outsider := f.user(t, "issue-outsider")
	scope := f.categoryScope(t, "Issuing")

	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Manage, scope.ID))
	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Issue, scope.ID))

	tpl, err := f.templates.CreateTemplate(ctx, issuer.ID, CreateTemplateInput{
		Name:    "Issuable",
		ScopeID: scope.ID,
	})
	require.NoError(t, err)

	issue, err := f.issues.IssueCertificate(ctx, issuer.ID, IssueInput{
		TemplateID: tpl.ID,
		UserID:     student.ID,
		Data:       map[string]string{"certificationname": "Safety basics"},
	})
	require.NoError(t, err)
	require.Regexp(t, codePattern, issue.Code)
	require.Equal(t, student.ID, issue.UserID)

	second, err := f.issues.IssueCertificate(ctx, issuer.ID, IssueInput{
		TemplateID: tpl.ID,
		UserID:     student.ID,
	})
	require.NoError(t, err)
	require.NotEqual(t, issue.Code, second.Code)

	_, err = f.issues.IssueCertificate(ctx, outsider.ID, IssueInput{
		TemplateID: tpl.ID,
		UserID:     student.ID,
	})
	var accessErr *permissions.AccessError
	require.ErrorAs(t, err, &accessErr)
	require.Equal(t, capability.Issue, accessErr.Capability)
	require.Equal(t, scope.ID, accessErr.ScopeID)

	_, err = f.issues.IssueCertificate(ctx, issuer.ID, IssueInput{
		TemplateID: "00000000-0000-0000-0000-000000000000",
		UserID:     student.ID,
	})
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestListIssuesForUser(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	issuer := f.user(t, "list-issuer")
	student := f.user(t, "list-student")
	stranger := f.user(t, "list-stranger")
	scope := f.categoryScope(t, "Listing")

	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Manage, scope.ID))
	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Issue, f.system.ID))

	tpl, err := f.templates.CreateTemplate(ctx, issuer.ID, CreateTemplateInput{
		Name:    "Listed",
		ScopeID: scope.ID,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := f.issues.IssueCertificate(ctx, issuer.ID, IssueInput{
			TemplateID: tpl.ID,
			UserID:     student.ID,
		})
		require.NoError(t, err)
	}

	// Users always see their own list.
	own, err := f.issues.ListIssuesForUser(ctx, student.ID, student.ID)
	require.NoError(t, err)
	require.Len(t, own, 2)
	require.NotNil(t, own[0].Template)

	// System-scope issuers see anybody's list.
	viewed, err := f.issues.ListIssuesForUser(ctx, issuer.ID, student.ID)
	require.NoError(t, err)
	require.Len(t, viewed, 2)

	_, err = f.issues.ListIssuesForUser(ctx, stranger.ID, student.ID)
	var accessErr *permissions.AccessError
	require.ErrorAs(t, err, &accessErr)
}

func TestGetIssueForViewer(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	issuer := f.user(t, "view-issuer")
	student := f.user(t, "view-student")
	stranger := f.user(t, "view-stranger")
	scope := f.categoryScope(t, "Viewing")

	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Manage, scope.ID))
	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Issue, scope.ID))

	tpl, err := f.templates.CreateTemplate(ctx, issuer.ID, CreateTemplateInput{
		Name:    "Viewable",
		ScopeID: scope.ID,
	})
	require.NoError(t, err)

	issue, err := f.issues.IssueCertificate(ctx, issuer.ID, IssueInput{
		TemplateID: tpl.ID,
		UserID:     student.ID,
	})
	require.NoError(t, err)

	got, err := f.issues.GetIssueForViewer(ctx, student.ID, issue.Code)
	require.NoError(t, err)
	require.Equal(t, issue.ID, got.ID)

	_, err = f.issues.GetIssueForViewer(ctx, stranger.ID, issue.Code)
	var accessErr *permissions.AccessError
	require.ErrorAs(t, err, &accessErr)

	_, err = f.issues.GetIssueForViewer(ctx, student.ID, "NOSUCHCODE")
	require.ErrorIs(t, err, ErrIssueNotFound)
}

func TestRevokeIssue(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	issuer := f.user(t, "revoke-issuer")
	student := f.user(t, "revoke-student")
	scope := f.categoryScope(t, "Revocation")

	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Manage, scope.ID))
	require.NoError(t, f.caps.Grant(ctx, issuer.ID, capability.Issue, scope.ID))

	tpl, err := f.templates.CreateTemplate(ctx, issuer.ID, CreateTemplateInput{
		Name:    "Revocable",
		ScopeID: scope.ID,
	})
	require.NoError(t, err)

	expires := time.Now().Add(24 * time.Hour)
	issue, err := f.issues.IssueCertificate(ctx, issuer.ID, IssueInput{
		TemplateID: tpl.ID,
		UserID:     student.ID,
		ExpiresAt:  &expires,
	})
	require.NoError(t, err)

	err = f.issues.RevokeIssue(ctx, student.ID, issue.ID)
	var accessErr *permissions.AccessError
	require.ErrorAs(t, err, &accessErr)

	require.NoError(t, f.issues.RevokeIssue(ctx, issuer.ID, issue.ID))
	require.ErrorIs(t, f.issues.RevokeIssue(ctx, issuer.ID, issue.ID), ErrIssueNotFound)
}

func TestGenerateCodeStaysOnAlphabet(t *testing.T) {
	seen := make(map[rune]bool)
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		require.Regexp(t, codePattern, code)
		for _, r := range code {
			seen[r] = true
		}
	}
	// 2000 characters over a 36-symbol alphabet should touch nearly all of it.
	require.Greater(t, len(seen), 30)
}

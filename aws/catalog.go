package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sso"

	"ssograb/logging"
)

// ListAssignments enumerates every (account, role) pair visible to the access
// token, following pagination at both levels. Accounts without an ID and
// roles without a name are logged and skipped. An empty catalog is returned
// as an empty slice, not an error; the caller decides whether that is
// terminal.
func (c *Client) ListAssignments(ctx context.Context, accessToken string) ([]AccountRoleEntry, error) {
	var entries []AccountRoleEntry
	var nextToken *string

	for {
		resp, err := c.sso.ListAccounts(ctx, &sso.ListAccountsInput{
			AccessToken: aws.String(accessToken),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}

		for _, acc := range resp.AccountList {
			if acc.AccountId == nil {
				logging.Warnf("skipping account with missing account ID (name: %q)", aws.ToString(acc.AccountName))
				continue
			}

			accountName := aws.ToString(acc.AccountName)
			if accountName == "" {
				accountName = "Unknown"
			}

			roles, err := c.listAccountRoles(ctx, accessToken, *acc.AccountId)
			if err != nil {
				return nil, err
			}

			for _, roleName := range roles {
				entries = append(entries, AccountRoleEntry{
					AccountID:   *acc.AccountId,
					AccountName: accountName,
					RoleName:    roleName,
				})
			}
		}

		nextToken = resp.NextToken
		if nextToken == nil {
			break
		}
	}

	return entries, nil
}

// listAccountRoles lists all roles for one account, following pagination.
func (c *Client) listAccountRoles(ctx context.Context, accessToken, accountID string) ([]string, error) {
	var roles []string
	var nextToken *string

	for {
		resp, err := c.sso.ListAccountRoles(ctx, &sso.ListAccountRolesInput{
			AccessToken: aws.String(accessToken),
			AccountId:   aws.String(accountID),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list roles for account %s: %w", accountID, err)
		}

		for _, role := range resp.RoleList {
			if role.RoleName == nil {
				logging.Warnf("skipping role with missing name in account %s", accountID)
				continue
			}
			roles = append(roles, *role.RoleName)
		}

		nextToken = resp.NextToken
		if nextToken == nil {
			break
		}
	}

	return roles, nil
}

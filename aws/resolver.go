package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sso"

	"ssograb/logging"
)

// Sink persists a resolved credential as the default profile. It returns the
// path it wrote to.
type Sink interface {
	PersistDefault(accessKeyID, secretAccessKey, sessionToken string) (string, error)
}

// Resolver turns the operator's selections into one credential.
type Resolver struct {
	sso  SSOAPI
	sink Sink
}

// NewResolver builds a resolver that fetches role credentials through api and
// hands the winning credential to sink.
func NewResolver(api SSOAPI, sink Sink) *Resolver {
	return &Resolver{sso: api, sink: sink}
}

// Resolve walks the selections in the order given and fetches temporary
// credentials for each until one succeeds; once a selection resolves, later
// ones are never attempted. Malformed selection strings, fetch errors, and
// empty credential payloads are logged and skipped. If every selection is
// exhausted without a credential, ErrNoCredentialsResolved is returned.
//
// The winning credential is persisted through the sink before returning, but
// a persistence failure does not fail the resolution: the credential is still
// returned, with the sink error reported in Resolution.PersistErr.
func (r *Resolver) Resolve(ctx context.Context, accessToken string, selections []string) (*Resolution, error) {
	for _, selection := range selections {
		accountID, roleName, ok := parseSelection(selection)
		if !ok {
			logging.Warnf("skipping malformed selection %q: want exactly two %q separators", selection, displayDelimiter)
			continue
		}

		resp, err := r.sso.GetRoleCredentials(ctx, &sso.GetRoleCredentialsInput{
			AccessToken: aws.String(accessToken),
			AccountId:   aws.String(accountID),
			RoleName:    aws.String(roleName),
		})
		if err != nil {
			logging.Warnf("failed to fetch credentials for account %s role %s: %v", accountID, roleName, err)
			continue
		}

		rc := resp.RoleCredentials
		if rc == nil || rc.AccessKeyId == nil || rc.SecretAccessKey == nil || rc.SessionToken == nil {
			logging.Warnf("empty credential payload for account %s role %s", accountID, roleName)
			continue
		}

		res := &Resolution{
			Credential: Credential{
				AccountID:       accountID,
				RoleName:        roleName,
				AccessKeyID:     *rc.AccessKeyId,
				SecretAccessKey: *rc.SecretAccessKey,
				SessionToken:    *rc.SessionToken,
			},
		}

		res.SavedTo, res.PersistErr = r.sink.PersistDefault(
			res.Credential.AccessKeyID, res.Credential.SecretAccessKey, res.Credential.SessionToken)
		if res.PersistErr != nil {
			logging.Warnf("credentials resolved but could not be persisted: %v", res.PersistErr)
		}

		return res, nil
	}

	return nil, ErrNoCredentialsResolved
}

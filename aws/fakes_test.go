package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// fakeOIDC scripts the OIDC API for fault-injection tests.
type fakeOIDC struct {
	register    func(*ssooidc.RegisterClientInput) (*ssooidc.RegisterClientOutput, error)
	start       func(*ssooidc.StartDeviceAuthorizationInput) (*ssooidc.StartDeviceAuthorizationOutput, error)
	createToken func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error)

	tokenCalls int
}

func (f *fakeOIDC) RegisterClient(_ context.Context, params *ssooidc.RegisterClientInput, _ ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error) {
	return f.register(params)
}

func (f *fakeOIDC) StartDeviceAuthorization(_ context.Context, params *ssooidc.StartDeviceAuthorizationInput, _ ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error) {
	return f.start(params)
}

func (f *fakeOIDC) CreateToken(_ context.Context, params *ssooidc.CreateTokenInput, _ ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error) {
	f.tokenCalls++
	return f.createToken(params)
}

// fakeSSO scripts the SSO portal API and records credential fetches.
type fakeSSO struct {
	listAccounts func(*sso.ListAccountsInput) (*sso.ListAccountsOutput, error)
	listRoles    func(*sso.ListAccountRolesInput) (*sso.ListAccountRolesOutput, error)
	getCreds     func(*sso.GetRoleCredentialsInput) (*sso.GetRoleCredentialsOutput, error)

	// credFetches records "accountID/roleName" in call order.
	credFetches []string
}

func (f *fakeSSO) ListAccounts(_ context.Context, params *sso.ListAccountsInput, _ ...func(*sso.Options)) (*sso.ListAccountsOutput, error) {
	return f.listAccounts(params)
}

func (f *fakeSSO) ListAccountRoles(_ context.Context, params *sso.ListAccountRolesInput, _ ...func(*sso.Options)) (*sso.ListAccountRolesOutput, error) {
	return f.listRoles(params)
}

func (f *fakeSSO) GetRoleCredentials(_ context.Context, params *sso.GetRoleCredentialsInput, _ ...func(*sso.Options)) (*sso.GetRoleCredentialsOutput, error) {
	f.credFetches = append(f.credFetches, *params.AccountId+"/"+*params.RoleName)
	return f.getCreds(params)
}

// fakeSTS scripts the caller-identity check.
type fakeSTS struct {
	identity func(*sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error)
}

func (f *fakeSTS) GetCallerIdentity(_ context.Context, params *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return f.identity(params)
}

// fakeSink records persisted credentials and can be made to fail.
type fakeSink struct {
	persisted [][]string
	path      string
	err       error
}

func (f *fakeSink) PersistDefault(accessKeyID, secretAccessKey, sessionToken string) (string, error) {
	f.persisted = append(f.persisted, []string{accessKeyID, secretAccessKey, sessionToken})
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

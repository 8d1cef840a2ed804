package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const defaultPollInterval = 5 * time.Second

// Sentinel errors for the terminal failure modes of a run. Each one maps to
// its own user-visible message in the UI.
var (
	ErrNoAssignments         = errors.New("no accounts or roles are assigned to this user")
	ErrNothingSelected       = errors.New("no accounts or roles were selected")
	ErrNoCredentialsResolved = errors.New("none of the selected accounts and roles yielded credentials")
)

// OIDCAPI is the slice of the SSO OIDC client used by the login flow.
// *ssooidc.Client satisfies it; tests substitute fakes.
type OIDCAPI interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

// SSOAPI is the slice of the SSO portal client used by the catalog and the
// resolver. *sso.Client satisfies it.
type SSOAPI interface {
	ListAccounts(ctx context.Context, params *sso.ListAccountsInput, optFns ...func(*sso.Options)) (*sso.ListAccountsOutput, error)
	ListAccountRoles(ctx context.Context, params *sso.ListAccountRolesInput, optFns ...func(*sso.Options)) (*sso.ListAccountRolesOutput, error)
	GetRoleCredentials(ctx context.Context, params *sso.GetRoleCredentialsInput, optFns ...func(*sso.Options)) (*sso.GetRoleCredentialsOutput, error)
}

// STSAPI is the slice of the STS client used for the post-resolution
// caller-identity check.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// newSTSClient builds an STS client bound to a set of temporary credentials.
// Overridable in tests to avoid real STS calls.
var newSTSClient = func(cfg aws.Config, cred Credential) STSAPI {
	return sts.NewFromConfig(cfg, func(o *sts.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(
			cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken)
	})
}

// Client wraps the AWS service clients for a single region.
type Client struct {
	cfg  aws.Config
	oidc OIDCAPI
	sso  SSOAPI
}

// NewClient initializes AWS service clients for a specific region.
func NewClient(region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &Client{
		cfg:  cfg,
		oidc: ssooidc.NewFromConfig(cfg),
		sso:  sso.NewFromConfig(cfg),
	}, nil
}

// Region returns the configured AWS region.
func (c *Client) Region() string {
	return c.cfg.Region
}

// OIDC exposes the SSO OIDC API slice, for wiring into a Poller.
func (c *Client) OIDC() OIDCAPI {
	return c.oidc
}

// SSO exposes the SSO portal API slice, for wiring into a Resolver.
func (c *Client) SSO() SSOAPI {
	return c.sso
}

// RegisterClient registers an OAuth public client with the provider. The
// returned registration is scoped to this run and never persisted.
// Registration failures are not retried.
func (c *Client) RegisterClient(ctx context.Context, clientName, clientType string) (ClientRegistration, error) {
	out, err := c.oidc.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String(clientName),
		ClientType: aws.String(clientType),
	})
	if err != nil {
		return ClientRegistration{}, fmt.Errorf("failed to register OIDC client: %w", err)
	}
	if out.ClientId == nil || out.ClientSecret == nil {
		return ClientRegistration{}, errors.New("failed to register OIDC client: provider response missing client_id or client_secret")
	}

	return ClientRegistration{
		ClientID:     *out.ClientId,
		ClientSecret: *out.ClientSecret,
	}, nil
}

// StartDeviceAuthorization starts a device-code grant for the registered
// client against the given start URL.
func (c *Client) StartDeviceAuthorization(ctx context.Context, reg ClientRegistration, startURL string) (*DeviceAuthorization, error) {
	out, err := c.oidc.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     aws.String(reg.ClientID),
		ClientSecret: aws.String(reg.ClientSecret),
		StartUrl:     aws.String(startURL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start device authorization: %w", err)
	}
	if out.DeviceCode == nil || out.UserCode == nil || out.VerificationUri == nil || out.VerificationUriComplete == nil {
		return nil, errors.New("failed to start device authorization: provider response missing device authorization fields")
	}

	interval := time.Duration(out.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &DeviceAuthorization{
		DeviceCode:              *out.DeviceCode,
		UserCode:                *out.UserCode,
		VerificationUri:         *out.VerificationUri,
		VerificationUriComplete: *out.VerificationUriComplete,
		Interval:                interval,
		ExpiresAt:               time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}, nil
}

// VerifyCredential calls STS GetCallerIdentity with the resolved temporary
// credentials and returns the caller ARN. Purely informational; callers treat
// failure as a warning.
func (c *Client) VerifyCredential(ctx context.Context, cred Credential) (string, error) {
	out, err := newSTSClient(c.cfg, cred).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to verify credentials with STS: %w", err)
	}
	return aws.ToString(out.Arn), nil
}

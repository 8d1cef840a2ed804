package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/aws/smithy-go"

	"ssograb/logging"
)

const deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// slowDownPenalty is added to the base interval when the provider signals
// slow_down. Fixed-penalty policy: the base interval itself is never changed,
// so repeated slow_down responses do not compound.
const slowDownPenalty = 5 * time.Second

// Poller drives the device-grant token exchange until the provider issues a
// token, rejects the grant, or ctx is canceled. Pending and slow_down
// responses are absorbed; everything else is terminal on the first occurrence.
type Poller struct {
	oidc     OIDCAPI
	interval time.Duration

	// sleep is swapped out in tests to record requested durations.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller honoring the provider-mandated base interval.
func NewPoller(oidc OIDCAPI, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		oidc:     oidc,
		interval: interval,
		sleep:    sleepCtx,
	}
}

// PollForToken exchanges the device code for an access token. There is no
// attempt or wall-clock bound; the flow is human-interactive and ends on a
// terminal provider response or ctx cancellation.
func (p *Poller) PollForToken(ctx context.Context, reg ClientRegistration, deviceCode string) (string, error) {
	for {
		out, err := p.oidc.CreateToken(ctx, &ssooidc.CreateTokenInput{
			ClientId:     aws.String(reg.ClientID),
			ClientSecret: aws.String(reg.ClientSecret),
			DeviceCode:   aws.String(deviceCode),
			GrantType:    aws.String(deviceGrantType),
		})
		if err == nil {
			if out.AccessToken == nil || *out.AccessToken == "" {
				return "", errors.New("token exchange succeeded but the response carried no access token")
			}
			return *out.AccessToken, nil
		}

		var pending *types.AuthorizationPendingException
		var slowDown *types.SlowDownException
		switch {
		case errors.As(err, &pending):
			logging.Debugf("authorization pending, retrying in %s", p.interval)
			if err := p.sleep(ctx, p.interval); err != nil {
				return "", err
			}
		case errors.As(err, &slowDown):
			logging.Debugf("provider asked to slow down, retrying in %s", p.interval+slowDownPenalty)
			if err := p.sleep(ctx, p.interval+slowDownPenalty); err != nil {
				return "", err
			}
		default:
			// Denial, expiry, or anything else: surface the provider's
			// message unmodified and stop.
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
				return "", fmt.Errorf("token exchange failed: %s", apiErr.ErrorMessage())
			}
			return "", fmt.Errorf("token exchange failed: %w", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

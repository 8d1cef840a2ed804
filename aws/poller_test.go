package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseInterval = 2 * time.Second

var testReg = ClientRegistration{ClientID: "client-id", ClientSecret: "client-secret"}

// scriptedOIDC returns a fakeOIDC whose CreateToken yields the given errors
// in order and then succeeds with an access token.
func scriptedOIDC(t *testing.T, failures ...error) *fakeOIDC {
	t.Helper()
	f := &fakeOIDC{}
	i := 0
	f.createToken = func(in *ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error) {
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", *in.GrantType)
		assert.Equal(t, "device-code", *in.DeviceCode)
		if i < len(failures) {
			err := failures[i]
			i++
			return nil, err
		}
		return &ssooidc.CreateTokenOutput{AccessToken: aws.String("the-token")}, nil
	}
	return f
}

// sleepRecorder swaps the poller's sleep for one that records durations.
func sleepRecorder(p *Poller) *[]time.Duration {
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func pendingErr() error {
	return &types.AuthorizationPendingException{Message: aws.String("authorization pending")}
}

func slowDownErr() error {
	return &types.SlowDownException{Message: aws.String("slow down")}
}

func TestPollForToken_ConvergesAfterPending(t *testing.T) {
	oidc := scriptedOIDC(t, pendingErr(), pendingErr(), pendingErr())
	p := NewPoller(oidc, baseInterval)
	slept := sleepRecorder(p)

	token, err := p.PollForToken(context.Background(), testReg, "device-code")
	require.NoError(t, err)
	assert.Equal(t, "the-token", token)
	assert.Equal(t, 4, oidc.tokenCalls)
	assert.Equal(t, []time.Duration{baseInterval, baseInterval, baseInterval}, *slept)
}

func TestPollForToken_SlowDownAddsFixedPenalty(t *testing.T) {
	oidc := scriptedOIDC(t, slowDownErr())
	p := NewPoller(oidc, baseInterval)
	slept := sleepRecorder(p)

	token, err := p.PollForToken(context.Background(), testReg, "device-code")
	require.NoError(t, err)
	assert.Equal(t, "the-token", token)
	assert.Equal(t, 2, oidc.tokenCalls)
	assert.Equal(t, []time.Duration{baseInterval + slowDownPenalty}, *slept)
}

func TestPollForToken_SlowDownDoesNotCompound(t *testing.T) {
	// Two consecutive slow_down responses each sleep base+penalty; the base
	// interval itself never grows, so a later pending sleeps the plain base.
	oidc := scriptedOIDC(t, slowDownErr(), slowDownErr(), pendingErr())
	p := NewPoller(oidc, baseInterval)
	slept := sleepRecorder(p)

	_, err := p.PollForToken(context.Background(), testReg, "device-code")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		baseInterval + slowDownPenalty,
		baseInterval + slowDownPenalty,
		baseInterval,
	}, *slept)
}

func TestPollForToken_FatalShortCircuit(t *testing.T) {
	oidc := scriptedOIDC(t, &types.AccessDeniedException{Message: aws.String("User denied the request")})
	p := NewPoller(oidc, baseInterval)
	slept := sleepRecorder(p)

	_, err := p.PollForToken(context.Background(), testReg, "device-code")
	require.EqualError(t, err, "token exchange failed: User denied the request")
	assert.Equal(t, 1, oidc.tokenCalls)
	assert.Empty(t, *slept)
}

func TestPollForToken_ExpiredTokenIsFatal(t *testing.T) {
	oidc := scriptedOIDC(t, &types.ExpiredTokenException{Message: aws.String("Device code expired")})
	p := NewPoller(oidc, baseInterval)
	slept := sleepRecorder(p)

	_, err := p.PollForToken(context.Background(), testReg, "device-code")
	require.EqualError(t, err, "token exchange failed: Device code expired")
	assert.Equal(t, 1, oidc.tokenCalls)
	assert.Empty(t, *slept)
}

func TestPollForToken_NonAPIErrorIsFatal(t *testing.T) {
	boom := errors.New("connection reset")
	oidc := scriptedOIDC(t, boom)
	p := NewPoller(oidc, baseInterval)
	sleepRecorder(p)

	_, err := p.PollForToken(context.Background(), testReg, "device-code")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, oidc.tokenCalls)
}

func TestPollForToken_EmptyAccessTokenIsFatal(t *testing.T) {
	oidc := &fakeOIDC{
		createToken: func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error) {
			return &ssooidc.CreateTokenOutput{}, nil
		},
	}
	p := NewPoller(oidc, baseInterval)

	_, err := p.PollForToken(context.Background(), testReg, "device-code")
	assert.ErrorContains(t, err, "no access token")
	assert.Equal(t, 1, oidc.tokenCalls)
}

func TestPollForToken_CancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	oidc := scriptedOIDC(t, pendingErr())
	p := NewPoller(oidc, baseInterval)

	_, err := p.PollForToken(ctx, testReg, "device-code")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, oidc.tokenCalls)
}

func TestNewPoller_NonPositiveIntervalDefaults(t *testing.T) {
	p := NewPoller(&fakeOIDC{}, 0)
	assert.Equal(t, defaultPollInterval, p.interval)
}

package paramstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	lastIn *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func valueOut(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(v), Type: types.ParameterTypeSecureString,
	}}
}

func TestLookup_Found(t *testing.T) {
	api := &fakeAPI{getOut: valueOut("redis://cache:6379/0")}
	client, err := New(api)
	require.NoError(t, err)

	v, found, err := client.Lookup(context.Background(), " /app/config/redis_url ")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "redis://cache:6379/0", v)
	require.Equal(t, "/app/config/redis_url", *api.lastIn.Name)
	require.True(t, *api.lastIn.WithDecryption)
}

func TestLookup_NotFound(t *testing.T) {
	api := &fakeAPI{getErr: fmt.Errorf("operation error: %w", &types.ParameterNotFound{Message: strPtr("nope")})}
	client, err := New(api)
	require.NoError(t, err)

	v, found, err := client.Lookup(context.Background(), "/app/missing")
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, v)
}

func TestLookup_Errors(t *testing.T) {
	client, err := New(&fakeAPI{getErr: errors.New("boom")})
	require.NoError(t, err)
	_, _, err = client.Lookup(context.Background(), "p")
	require.ErrorContains(t, err, "boom")

	client, err = New(&fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p")}}})
	require.NoError(t, err)
	_, _, err = client.Lookup(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")

	_, _, err = client.Lookup(context.Background(), "  ")
	require.ErrorContains(t, err, "required")

	_, _, err = (&Client{}).Lookup(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}

func TestPath(t *testing.T) {
	require.Equal(t, "/app/prod/config/redis_url", Path("/app/prod/", "/config/redis_url"))
	require.Equal(t, "/app/config/redis_url", Path("/app", "config/redis_url"))
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}

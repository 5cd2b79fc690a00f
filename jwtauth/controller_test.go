package jwtauth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/realtime-jwtauth/credential"
	"github.com/upb/realtime-jwtauth/credential/credentialtest"
	"github.com/upb/realtime-jwtauth/internal/shared"
)

// MockConnection is a mock implementation of Connection
type MockConnection struct {
	mock.Mock
}

func (m *MockConnection) Authorize(ctx context.Context, userID, gameVersion string, payload *UserPayload) error {
	args := m.Called(ctx, userID, gameVersion, payload)
	return args.Error(0)
}

// MockVerifier is a mock implementation of TokenVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(tokenString string) (*credential.ClaimSet, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.ClaimSet), args.Error(1)
}

type fakeRegistrar struct {
	controllers map[string]AnonymousController
}

func (r *fakeRegistrar) AddController(name string, c AnonymousController) error {
	if r.controllers == nil {
		r.controllers = map[string]AnonymousController{}
	}
	r.controllers[name] = c
	return nil
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	verifier, err := credential.NewVerifier(credential.Config{Secret: credentialtest.Secret})
	require.NoError(t, err)
	return NewController(verifier)
}

// call runs Handle and returns what the callback received
func call(t *testing.T, c *Controller, conn Connection, params Params) (bool, error) {
	t.Helper()
	var (
		gotErr error
		gotOK  bool
		calls  int
	)
	c.Handle(context.Background(), conn, params, func(err error, ok bool) {
		calls++
		gotErr, gotOK = err, ok
	})
	require.Equal(t, 1, calls, "callback must be invoked exactly once")
	return gotOK, gotErr
}

func TestRegister(t *testing.T) {
	t.Run("default name", func(t *testing.T) {
		r := &fakeRegistrar{}
		c := newTestController(t)

		require.NoError(t, Register(r, c))
		assert.Same(t, c, r.controllers["jwtAuth"])
		assert.Equal(t, DefaultName, c.Name())
	})

	t.Run("custom name", func(t *testing.T) {
		r := &fakeRegistrar{}
		verifier := new(MockVerifier)
		c := NewController(verifier, WithName("lobbyAuth"))

		require.NoError(t, Register(r, c))
		assert.Contains(t, r.controllers, "lobbyAuth")
		assert.NotContains(t, r.controllers, "jwtAuth")
	})

	t.Run("empty name keeps the default", func(t *testing.T) {
		c := NewController(new(MockVerifier), WithName(""))
		assert.Equal(t, DefaultName, c.Name())
	})
}

func TestInit(t *testing.T) {
	c := newTestController(t)
	assert.NoError(t, c.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Init(ctx), context.Canceled)
}

func TestHandle_MissingAccessToken(t *testing.T) {
	verifier := new(MockVerifier)
	conn := new(MockConnection)
	c := NewController(verifier)

	for _, params := range []Params{
		{},
		{"accessToken": ""},
		{"accessToken": 42},
		{"selectedGroups": []any{"1"}},
	} {
		ok, err := call(t, c, conn, params)
		assert.False(t, ok)
		assert.ErrorIs(t, err, shared.ErrInvalidCredential)
	}

	verifier.AssertNotCalled(t, "Verify", mock.Anything)
	conn.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_VerificationFailures(t *testing.T) {
	user := map[string]any{"id": "ASD123"}

	tests := []struct {
		name     string
		token    string
		wantType shared.ErrorType
	}{
		{
			name:     "signed with a different secret",
			token:    credentialtest.Sign(t, "INVALIDTOKEN", user),
			wantType: shared.ErrorTypeInvalidSignature,
		},
		{
			name:     "expired",
			token:    credentialtest.Sign(t, credentialtest.Secret, user, credentialtest.WithExpiry(time.Now().Add(-time.Minute))),
			wantType: shared.ErrorTypeExpired,
		},
		{
			name:     "garbage",
			token:    "abc.def.ghi",
			wantType: shared.ErrorTypeInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := new(MockConnection)
			c := newTestController(t)

			ok, err := call(t, c, conn, Params{"accessToken": tt.token})

			assert.False(t, ok)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, shared.GetErrorType(err))
			conn.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_VerifierErrorIsNotWrapped(t *testing.T) {
	verifyErr := shared.NewDomainError(shared.ErrorTypeExpired, "token expired", errors.New("exp"))
	verifier := new(MockVerifier)
	verifier.On("Verify", "tok").Return(nil, verifyErr)
	conn := new(MockConnection)

	ok, err := call(t, NewController(verifier), conn, Params{"accessToken": "tok"})

	assert.False(t, ok)
	assert.Same(t, verifyErr, err)
	verifier.AssertExpectations(t)
	conn.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_NoSelection(t *testing.T) {
	token := credentialtest.Sign(t, credentialtest.Secret,
		map[string]any{"id": "ASD123", "name": "Ada"},
		credentialtest.WithGroups("1", "2", "3"))

	for name, params := range map[string]Params{
		"absent":                   {"accessToken": token},
		"empty":                    {"accessToken": token, "selectedGroups": []any{}},
		"null":                     {"accessToken": token, "selectedGroups": nil},
		"not an array":             {"accessToken": token, "selectedGroups": "1,2"},
		"mixed types":              {"accessToken": token, "selectedGroups": []any{"1", 2}},
		"ungranted and non-string": {"accessToken": token, "selectedGroups": []any{"admin", 2}},
	} {
		t.Run(name, func(t *testing.T) {
			conn := new(MockConnection)
			conn.On("Authorize", mock.Anything, "ASD123", "", mock.MatchedBy(func(p *UserPayload) bool {
				return p.SelectedGroups == nil &&
					p.UserID == "ASD123" &&
					p.User["name"] == "Ada"
			})).Return(nil).Once()

			ok, err := call(t, newTestController(t), conn, params)

			assert.NoError(t, err)
			assert.True(t, ok)
			conn.AssertExpectations(t)
		})
	}
}

func TestHandle_SelectionWithinGroups(t *testing.T) {
	token := credentialtest.Sign(t, credentialtest.Secret,
		map[string]any{"id": "ASD123"},
		credentialtest.WithGroups("1", "2", "3"))

	var got *UserPayload
	conn := new(MockConnection)
	conn.On("Authorize", mock.Anything, "ASD123", "1.4.2", mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(3).(*UserPayload) }).
		Return(nil).Once()

	ok, err := call(t, newTestController(t), conn, Params{
		"accessToken":    token,
		"selectedGroups": []any{"3", "1"},
		"gameVersion":    "1.4.2",
	})

	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, []string{"3", "1"}, got.SelectedGroups)
	conn.AssertExpectations(t)
}

func TestHandle_SelectionOutsideGroups(t *testing.T) {
	tests := []struct {
		name     string
		opts     []credentialtest.Option
		selected []any
		want     string
	}{
		{
			name:     "one unauthorized entry rejects the request",
			opts:     []credentialtest.Option{credentialtest.WithGroups("1", "2", "3")},
			selected: []any{"2", "5"},
			want:     "5",
		},
		{
			name:     "first unauthorized entry is reported",
			opts:     []credentialtest.Option{credentialtest.WithGroups("1", "2", "3")},
			selected: []any{"9", "1", "8"},
			want:     "9",
		},
		{
			name:     "token without a groups collection",
			selected: []any{"1"},
			want:     "1",
		},
		{
			name:     "token with an empty groups collection",
			opts:     []credentialtest.Option{credentialtest.WithGroups()},
			selected: []any{"1"},
			want:     "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := credentialtest.Sign(t, credentialtest.Secret, map[string]any{"id": "ASD123"}, tt.opts...)
			conn := new(MockConnection)

			ok, err := call(t, newTestController(t), conn, Params{
				"accessToken":    token,
				"selectedGroups": tt.selected,
			})

			assert.False(t, ok)
			assert.ErrorIs(t, err, shared.ErrGroupNotAuthorized)
			assert.Equal(t, tt.want, shared.GetErrorDetails(err)["group"])
			conn.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_HostErrorIsReturnedVerbatim(t *testing.T) {
	hostErr := errors.New("connection already authorized")
	token := credentialtest.Sign(t, credentialtest.Secret, map[string]any{"id": "ASD123"})

	conn := new(MockConnection)
	conn.On("Authorize", mock.Anything, "ASD123", "", mock.Anything).Return(hostErr).Once()

	ok, err := call(t, newTestController(t), conn, Params{"accessToken": token})

	assert.False(t, ok)
	assert.Same(t, hostErr, err)
	assert.True(t, shared.IsHostFailure(err))
	conn.AssertExpectations(t)
}

func TestAuthorize_PassesContextToHost(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	token := credentialtest.Sign(t, credentialtest.Secret, map[string]any{"id": "ASD123"})

	conn := new(MockConnection)
	conn.On("Authorize", ctx, "ASD123", "7", mock.Anything).Return(nil).Once()

	err := newTestController(t).Authorize(ctx, conn, Request{AccessToken: token, GameVersion: "7"})

	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestUserPayload(t *testing.T) {
	token := credentialtest.Sign(t, credentialtest.Secret,
		map[string]any{
			"id":             "ASD123",
			"name":           "Ada",
			"selectedGroups": []string{"forged"},
		},
		credentialtest.WithGroups("red", "blue"))

	verifier, err := credential.NewVerifier(credential.Config{Secret: credentialtest.Secret})
	require.NoError(t, err)
	claims, err := verifier.Verify(token)
	require.NoError(t, err)

	t.Run("selection overrides the user field", func(t *testing.T) {
		payload := newUserPayload(claims, []string{"blue"})

		b, err := json.Marshal(payload)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"ASD123","name":"Ada","selectedGroups":["blue"]}`, string(b))
	})

	t.Run("no selection is null", func(t *testing.T) {
		payload := newUserPayload(claims, nil)

		b, err := json.Marshal(payload)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"ASD123","name":"Ada","selectedGroups":null}`, string(b))
		assert.Nil(t, payload.SelectedGroups)
	})

	t.Run("payload does not alias the request", func(t *testing.T) {
		selected := []string{"red"}
		payload := newUserPayload(claims, selected)
		selected[0] = "blue"

		assert.Equal(t, []string{"red"}, payload.SelectedGroups)
		assert.Equal(t, "ASD123", payload.Fields()["id"])
	})
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   Request
	}{
		{
			name:   "empty",
			params: Params{},
			want:   Request{},
		},
		{
			name: "all fields",
			params: Params{
				"accessToken":    "tok",
				"selectedGroups": []any{"a", "b"},
				"gameVersion":    "2.0",
			},
			want: Request{AccessToken: "tok", SelectedGroups: []string{"a", "b"}, GameVersion: "2.0"},
		},
		{
			name:   "typed string slice",
			params: Params{"selectedGroups": []string{"a"}},
			want:   Request{SelectedGroups: []string{"a"}},
		},
		{
			name:   "numeric game version",
			params: Params{"gameVersion": float64(12)},
			want:   Request{GameVersion: "12"},
		},
		{
			name:   "json number game version",
			params: Params{"gameVersion": json.Number("3")},
			want:   Request{GameVersion: "3"},
		},
		{
			name:   "structured game version",
			params: Params{"gameVersion": map[string]any{"major": float64(1)}},
			want:   Request{GameVersion: `{"major":1}`},
		},
		{
			name:   "selection with a non-string entry",
			params: Params{"selectedGroups": []any{"a", true}},
			want:   Request{},
		},
		{
			name:   "non-string token",
			params: Params{"accessToken": []any{"tok"}},
			want:   Request{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeRequest(tt.params))
		})
	}
}

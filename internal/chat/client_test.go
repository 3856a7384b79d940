package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

type fakeAPI struct {
	postErrs   []error
	posts      int
	updates    int
	ephemerals []string
	history    []slack.Message
	views      []slack.ModalViewRequest
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.posts++
	if len(f.postErrs) > 0 {
		err := f.postErrs[0]
		f.postErrs = f.postErrs[1:]
		if err != nil {
			return "", "", err
		}
	}
	return channelID, "1700000000.000100", nil
}

func (f *fakeAPI) UpdateMessageContext(_ context.Context, channelID, timestamp string, _ ...slack.MsgOption) (string, string, string, error) {
	f.updates++
	return channelID, timestamp, "", nil
}

func (f *fakeAPI) PostEphemeralContext(_ context.Context, _, userID string, _ ...slack.MsgOption) (string, error) {
	f.ephemerals = append(f.ephemerals, userID)
	return "1700000000.000200", nil
}

func (f *fakeAPI) OpenViewContext(_ context.Context, _ string, view slack.ModalViewRequest) (*slack.ViewResponse, error) {
	f.views = append(f.views, view)
	return &slack.ViewResponse{}, nil
}

func (f *fakeAPI) GetConversationHistoryContext(_ context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	resp := &slack.GetConversationHistoryResponse{}
	for _, m := range f.history {
		if m.Timestamp <= params.Latest {
			resp.Messages = append(resp.Messages, m)
		}
	}
	return resp, nil
}

func (f *fakeAPI) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	return &slack.User{ID: user, Profile: slack.UserProfile{Email: user + "@bars.example"}}, nil
}

func newTestClient(api API) *Client {
	c := NewClient(api, 3, nil)
	c.SetRetryInterval(time.Millisecond)
	return c
}

func TestPost_RetriesTransientErrors(t *testing.T) {
	api := &fakeAPI{postErrs: []error{errors.New("connection reset"), &slack.RateLimitedError{RetryAfter: time.Millisecond}}}
	c := newTestClient(api)

	ref, err := c.Post(context.Background(), "C1", Message{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, MessageRef{Channel: "C1", Timestamp: "1700000000.000100"}, ref)
	assert.Equal(t, 3, api.posts)
}

func TestPost_SlackErrorIsPermanent(t *testing.T) {
	api := &fakeAPI{postErrs: []error{slack.SlackErrorResponse{Err: "channel_not_found"}}}
	c := newTestClient(api)

	_, err := c.Post(context.Background(), "C1", Message{Text: "hi"})
	var gerr *apperrors.ErrGateway
	require.True(t, errors.As(err, &gerr))
	assert.Contains(t, err.Error(), "channel_not_found")
	assert.Equal(t, 1, api.posts)
}

func TestFetch(t *testing.T) {
	api := &fakeAPI{history: []slack.Message{
		{Msg: slack.Msg{Timestamp: "1.000", Text: "first"}},
		{Msg: slack.Msg{
			Timestamp: "2.000",
			Text:      "second",
			Metadata:  slack.SlackMetadata{EventType: "refund_request", EventPayload: map[string]interface{}{"v": 1}},
		}},
	}}
	c := newTestClient(api)

	msg, err := c.Fetch(context.Background(), MessageRef{Channel: "C1", Timestamp: "2.000"})
	require.NoError(t, err)
	assert.Equal(t, "second", msg.Text)
	require.NotNil(t, msg.Metadata)
	assert.Equal(t, "refund_request", msg.Metadata.EventType)

	msg, err = c.Fetch(context.Background(), MessageRef{Channel: "C1", Timestamp: "1.000"})
	require.NoError(t, err)
	assert.Nil(t, msg.Metadata)

	_, err = c.Fetch(context.Background(), MessageRef{Channel: "C1", Timestamp: "1.500"})
	var nf *apperrors.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestPostPrivateNoticeAndModal(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(api)

	require.NoError(t, c.PostPrivateNotice(context.Background(), "C1", "U1", "nope"))
	assert.Equal(t, []string{"U1"}, api.ephemerals)

	email, err := c.UserEmail(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "U1@bars.example", email)

	require.NoError(t, c.OpenModal(context.Background(), "trigger", slack.ModalViewRequest{CallbackID: "x"}))
	require.Len(t, api.views, 1)
	assert.Equal(t, "x", api.views[0].CallbackID)
}

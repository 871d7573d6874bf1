package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpError_KindMatching(t *testing.T) {
	t.Parallel()

	err := InvalidInput("chat.AppendMessage", "content is empty")
	assert.True(t, IsInvalidInput(err))
	assert.False(t, IsInvalidState(err))
	assert.False(t, IsDelivery(err))
	assert.Equal(t, "chat.AppendMessage: invalid_input: content is empty", err.Error())

	st := InvalidState("chat.Listener.Start", "")
	assert.True(t, IsInvalidState(st))
	assert.Equal(t, "chat.Listener.Start: invalid_state", st.Error())
}

func TestDeliveryError_MatchesKindAndCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("smtp: 550 mailbox unavailable")
	err := Delivery("email", "dr@example.com", cause)

	assert.True(t, IsDelivery(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dr@example.com")

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "email", de.Channel)

	invalid := Delivery("sms", "", InvalidInput("notify.sms", "address is empty"))
	assert.True(t, IsDelivery(invalid))
	assert.True(t, IsInvalidInput(invalid))
}

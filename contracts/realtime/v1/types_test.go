package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	ok := Envelope{V: Version, Type: TypeMessageSend, TS: time.Now(), Payload: json.RawMessage(`{}`)}
	assert.NoError(t, ok.Validate())

	cases := map[string]Envelope{
		"missing version": {Type: TypeMessageSend},
		"wrong version":   {V: "v2", Type: TypeMessageSend},
		"missing type":    {V: Version},
		"unknown type":    {V: Version, Type: "conversation_join"},
	}
	for name, env := range cases {
		assert.Error(t, env.Validate(), name)
	}
}

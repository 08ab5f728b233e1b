package pipeline

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"topicId":"` + id.String() + `","correlationId":"c-1","questionsToGenerate":5}`, false},
		{"correlation id optional", `{"topicId":"` + id.String() + `","questionsToGenerate":5}`, false},
		{"missing topic", `{"correlationId":"c-1","questionsToGenerate":5}`, true},
		{"topic not a uuid", `{"topicId":"nope","questionsToGenerate":5}`, true},
		{"missing count", `{"topicId":"` + id.String() + `"}`, true},
		{"zero count", `{"topicId":"` + id.String() + `","questionsToGenerate":0}`, true},
		{"negative count", `{"topicId":"` + id.String() + `","questionsToGenerate":-1}`, true},
		{"not json", `topicId=1`, true},
		{"wrong type", `{"topicId":"` + id.String() + `","questionsToGenerate":"5"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id.String(), env.TopicID)
			assert.Equal(t, 5, env.QuestionsToGenerate)
		})
	}
}

func TestEnvelopeMarshalUsesWireNames(t *testing.T) {
	id := uuid.New()
	raw, err := NewEnvelope(id, "corr", 7).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"topicId":"`+id.String()+`","correlationId":"corr","questionsToGenerate":7}`,
		string(raw))

	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	got, err := env.TopicUUID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CompletionRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  CompletionRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}, MaxTokens: 20},
		},
		{
			name:    "no messages",
			req:     CompletionRequest{System: "sys"},
			wantErr: true,
		},
		{
			name:    "system role in history",
			req:     CompletionRequest{Messages: []ChatMessage{{Role: ChatRoleSystem, Content: "sys"}}},
			wantErr: true,
		},
		{
			name:    "negative max tokens",
			req:     CompletionRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}, MaxTokens: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithSystem(t *testing.T) {
	req := CompletionRequest{
		System:   "You play text adventures.",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "West of House"}},
	}
	msgs := req.WithSystem()
	assert.Len(t, msgs, 2)
	assert.Equal(t, ChatRoleSystem, msgs[0].Role)
	assert.Equal(t, "West of House", msgs[1].Content)

	req.System = ""
	assert.Len(t, req.WithSystem(), 1)
}

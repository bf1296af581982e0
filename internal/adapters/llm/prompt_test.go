package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/novalabs/nova-agent/internal/domain"
)

func TestRenderTranscript(t *testing.T) {
	msgs := []*domain.Message{
		{Text: "hi there", Mood: domain.MoodUser},
		{Text: "hello! how are you?", Mood: domain.MoodAssistant},
		{Text: "good, thanks", Mood: domain.MoodUser},
	}

	got := RenderTranscript(msgs)
	assert.Equal(t, "User: hi there\nNova: hello! how are you?\nUser: good, thanks", got)
}

func TestRenderTranscriptEmpty(t *testing.T) {
	assert.Equal(t, "", RenderTranscript(nil))
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"bare json":      {`{"summary":[]}`, `{"summary":[]}`},
		"plain fence":    {"```\n{\"a\":1}\n```", `{"a":1}`},
		"json fence":     {"```json\n[[0,1],[2]]\n```", "[[0,1],[2]]"},
		"whitespace":     {"  ```json\n{}\n```  ", "{}"},
		"no closing tag": {"```json\n{}", "{}"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripCodeFence(tc.in))
		})
	}
}

func TestMockDialogStreamsReply(t *testing.T) {
	mock := NewMockDialog()
	mock.Reply = "short answer"

	stream, err := mock.Stream(t.Context(), "question")
	assert.NoError(t, err)

	var out string
	for chunk := range stream {
		out += chunk
	}
	assert.Equal(t, "short answer", out)
}

func TestGroqClientWithoutKeyReturnsSentinel(t *testing.T) {
	client := NewGroqClient("", "", "")

	reply, err := client.Generate(t.Context(), "hello")
	assert.NoError(t, err)
	assert.Equal(t, NotConfiguredSentinel, reply)

	stream, err := client.Stream(t.Context(), "hello")
	assert.NoError(t, err)

	var out string
	for chunk := range stream {
		out += chunk
	}
	assert.Equal(t, NotConfiguredSentinel, out)
}

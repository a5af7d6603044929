package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFailoverLLMClient(t *testing.T) {
	ok := LLMResponse{Text: "ok"}
	tests := []struct {
		name          string
		primary       *stubLLMClient
		secondary     *stubLLMClient
		wantText      string
		wantErr       bool
		wantSecondary int
	}{
		{"primary succeeds", &stubLLMClient{response: ok}, &stubLLMClient{response: LLMResponse{Text: "no"}}, "ok", false, 0},
		{"primary fails", &stubLLMClient{err: errors.New("down")}, &stubLLMClient{response: ok}, "ok", false, 1},
		{"both fail", &stubLLMClient{err: errors.New("down")}, &stubLLMClient{err: errors.New("also down")}, "", true, 1},
		{"no secondary", &stubLLMClient{err: errors.New("down")}, nil, "", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var secondary LLMClient
			if tt.secondary != nil {
				secondary = tt.secondary
			}
			client := NewFailoverLLMClient(tt.primary, secondary, nil)
			resp, err := client.Complete(context.Background(), LLMRequest{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if resp.Text != tt.wantText {
				t.Fatalf("text = %q, want %q", resp.Text, tt.wantText)
			}
			if tt.secondary != nil && tt.secondary.calls != tt.wantSecondary {
				t.Fatalf("secondary calls = %d, want %d", tt.secondary.calls, tt.wantSecondary)
			}
		})
	}
}

func TestFailoverLLMClient_SkipsSecondaryWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	secondary := &stubLLMClient{response: LLMResponse{Text: "late"}}
	client := NewFailoverLLMClient(&stubLLMClient{err: context.Canceled}, secondary, nil)

	if _, err := client.Complete(ctx, LLMRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary should not be called after cancellation")
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"intent\":\"greeting\"}\n```": `{"intent":"greeting"}`,
		`Sure: {"a":{"b":1}} done`:               `{"a":{"b":1}}`,
		"no json here":                           "",
	}
	for in, want := range tests {
		if got := extractJSONObject(in); strings.TrimSpace(got) != want {
			t.Fatalf("extractJSONObject(%q) = %q, want %q", in, got, want)
		}
	}
}

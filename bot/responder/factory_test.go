package responder

import (
	"context"
	"testing"

	"github.com/m3rciful/petbot/core/config"
)

func TestNewTransportModes(t *testing.T) {
	cases := []struct {
		cfg  config.ResponderConfig
		name string
	}{
		{config.ResponderConfig{Mode: config.ResponderProcess, Command: "/usr/bin/responder"}, "process"},
		{config.ResponderConfig{Mode: config.ResponderHTTP, URL: "http://localhost:9000"}, "http"},
		{config.ResponderConfig{Mode: config.ResponderOpenAI, OpenAIAPIKey: "k", OpenAIModel: "m"}, "openai"},
		{config.ResponderConfig{Mode: config.ResponderEcho}, "echo"},
	}
	for _, tc := range cases {
		tr, err := NewTransport(tc.cfg)
		if err != nil {
			t.Fatalf("NewTransport(%s) error = %v", tc.name, err)
		}
		if tr.Name() != tc.name {
			t.Fatalf("name = %q, want %q", tr.Name(), tc.name)
		}
	}
	if _, err := NewTransport(config.ResponderConfig{Mode: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestEchoTransport(t *testing.T) {
	resp, err := EchoTransport{}.Call(context.Background(), Request{
		Message:    "hello",
		PetDetails: map[string]string{"pet_name": "Milo"},
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.Text != "I heard you: hello\nHow is Milo doing?" {
		t.Fatalf("text = %q", resp.Text)
	}
}

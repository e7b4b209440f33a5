package responder

import (
	"fmt"

	"github.com/m3rciful/petbot/core/config"
)

// NewTransport builds the transport selected by cfg.Mode.
func NewTransport(cfg config.ResponderConfig) (Transport, error) {
	switch cfg.Mode {
	case config.ResponderProcess:
		if cfg.Command == "" {
			return nil, fmt.Errorf("responder: process mode requires a command")
		}
		return NewProcessTransport(cfg.Command, cfg.Args, cfg.WorkDir), nil
	case config.ResponderHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("responder: http mode requires a url")
		}
		return NewHTTPTransport(cfg.URL, nil), nil
	case config.ResponderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("responder: openai mode requires an api key")
		}
		return NewOpenAITransport(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	case config.ResponderEcho:
		return EchoTransport{}, nil
	default:
		return nil, fmt.Errorf("responder: unknown mode %q", cfg.Mode)
	}
}

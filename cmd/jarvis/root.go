package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	orchestration "github.com/koscakluka/ema-jarvis/core"
	"github.com/koscakluka/ema-jarvis/core/audio"
	"github.com/koscakluka/ema-jarvis/core/audio/miniaudio"
	"github.com/koscakluka/ema-jarvis/core/audio/portaudio"
	"github.com/koscakluka/ema-jarvis/core/events"
	"github.com/koscakluka/ema-jarvis/core/hotword"
	"github.com/koscakluka/ema-jarvis/core/llms/groq"
	"github.com/koscakluka/ema-jarvis/core/llms/ollama"
	"github.com/koscakluka/ema-jarvis/core/llms/openai"
	"github.com/koscakluka/ema-jarvis/core/speechtotext"
	sttdeepgram "github.com/koscakluka/ema-jarvis/core/speechtotext/deepgram"
	ttsdeepgram "github.com/koscakluka/ema-jarvis/core/texttospeech/deepgram"
)

var (
	_ orchestration.HotwordControl = (*hotword.Detector)(nil)
	_ orchestration.Transcriber    = (*sttdeepgram.CommandTranscriber)(nil)
	_ orchestration.Speaker        = (*ttsdeepgram.Speaker)(nil)
	_ orchestration.StreamingLLM   = (*ollama.Client)(nil)
	_ orchestration.StreamingLLM   = (*groq.Client)(nil)
	_ orchestration.StreamingLLM   = (*openai.Client)(nil)
	_ speechtotext.Recognizer      = (*sttdeepgram.Client)(nil)
	_ audio.Source                 = (*audio.Fanout)(nil)
	_ audioDevice                  = (*miniaudio.Client)(nil)
	_ audioDevice                  = (*portaudio.Client)(nil)
)

const statusBufferSize = 16

var (
	llmProvider     string
	model           string
	ollamaURL       string
	keyword         string
	audioBackend    string
	voiceName       string
	captureTimeout  time.Duration
	responseTimeout time.Duration
	otlpEndpoint    string
	noTUI           bool
)

var rootCmd = &cobra.Command{
	Use:   "jarvis",
	Short: "Voice assistant answering to a keyword",
	Long: `jarvis listens to the microphone for its keyword, acknowledges it, captures
the spoken command and speaks the language model's answer sentence by sentence.

Only one conversation runs at a time; the keyword is ignored while jarvis is
busy listening or answering.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&llmProvider, "llm", "ollama", "language model provider (ollama, groq, openai)")
	flags.StringVar(&model, "model", "", "model name (defaults to the provider's default)")
	flags.StringVar(&ollamaURL, "ollama-url", "", "Ollama generate endpoint (default http://localhost:11434/api/generate)")
	flags.StringVar(&keyword, "keyword", hotword.DefaultKeyword, "keyword that starts a conversation")
	flags.StringVar(&audioBackend, "audio-backend", "miniaudio", "audio backend (miniaudio, portaudio)")
	flags.StringVar(&voiceName, "voice", "", "Deepgram voice (defaults to aura-2-zeus-en)")
	flags.DurationVar(&captureTimeout, "capture-timeout", 0, "maximum time spent waiting for a command, 0 to disable")
	flags.DurationVar(&responseTimeout, "response-timeout", 0, "maximum time spent reading an answer, 0 to disable")
	flags.StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint for traces and logs")
	flags.BoolVar(&noTUI, "no-tui", false, "log state changes instead of showing the status view")
}

// audioDevice is a microphone and a speaker in one.
type audioDevice interface {
	audio.Input
	audio.Output
	Close()
}

func run(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if otlpEndpoint != "" {
		shutdown, err := setupTelemetry(ctx, otlpEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: failed to flush telemetry: %v", err)
			}
		}()
	}

	device, err := openAudio(audioBackend)
	if err != nil {
		return err
	}
	defer device.Close()

	fanout := audio.NewFanout(device)
	go func() {
		if err := fanout.Run(ctx); err != nil {
			log.Printf("Error: audio capture stopped: %v", err)
		}
	}()

	recognizer, err := sttdeepgram.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create speech recognizer: %w", err)
	}

	speakerOpts := []ttsdeepgram.SpeakerOption{}
	if voiceName != "" {
		voice, ok := ttsdeepgram.ParseVoice(voiceName)
		if !ok {
			return fmt.Errorf("unknown voice %q", voiceName)
		}
		speakerOpts = append(speakerOpts, ttsdeepgram.WithVoice(voice))
	}
	speaker, err := ttsdeepgram.NewSpeaker(device, speakerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create speaker: %w", err)
	}
	defer speaker.Close()

	llm, modelName, err := newLanguageModel(llmProvider, model)
	if err != nil {
		return err
	}

	detector := hotword.NewDetector(fanout, recognizer, hotword.WithKeyword(keyword))
	transcriber := sttdeepgram.NewCommandTranscriber(recognizer, fanout,
		sttdeepgram.WithCommandKeyterms(detector.Keyword()),
	)
	sink := orchestration.NewChannelStatusSink(statusBufferSize)

	opts := []orchestration.AssistantOption{
		orchestration.WithTranscriber(transcriber),
		orchestration.WithSpeaker(speaker),
		orchestration.WithStreamingLLM(llm),
		orchestration.WithStatusSink(sink),
		orchestration.WithModel(modelName),
		orchestration.WithCaptureTimeout(captureTimeout),
		orchestration.WithResponseTimeout(responseTimeout),
	}

	if noTUI {
		return runHeadless(ctx, detector, sink, opts)
	}
	return runWithStatusView(ctx, detector, sink, opts)
}

func runHeadless(ctx context.Context, detector *hotword.Detector, sink *orchestration.ChannelStatusSink, opts []orchestration.AssistantOption) error {
	assistant := orchestration.NewAssistant(detector, append(opts,
		orchestration.WithSpokenUtteranceCallback(func(utterance string) {
			log.Printf("Said: %s", utterance)
		}),
		orchestration.WithTurnEndedCallback(func(outcome orchestration.TurnOutcome) {
			log.Printf("Turn ended: %s", outcome)
		}),
	)...)

	go logStates(sink.Events())

	log.Printf("Listening for %q", detector.Keyword())
	return assistant.Run(ctx)
}

func logStates(states <-chan events.StateChanged) {
	for event := range states {
		log.Printf("State: %s", event.State)
	}
}

func runWithStatusView(ctx context.Context, detector *hotword.Detector, sink *orchestration.ChannelStatusSink, opts []orchestration.AssistantOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newStatusView(detector.Keyword(), sink.Events()), tea.WithContext(ctx))

	assistant := orchestration.NewAssistant(detector, append(opts,
		orchestration.WithSpokenUtteranceCallback(func(utterance string) {
			program.Send(utteranceMsg(utterance))
		}),
		orchestration.WithTurnEndedCallback(func(outcome orchestration.TurnOutcome) {
			program.Send(outcomeMsg(outcome))
		}),
	)...)

	assistantErr := make(chan error, 1)
	go func() {
		assistantErr <- assistant.Run(ctx)
		program.Quit()
	}()

	_, err := program.Run()
	cancel()
	if runErr := <-assistantErr; runErr != nil {
		return runErr
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("status view failed: %w", err)
	}
	return nil
}

func openAudio(backend string) (audioDevice, error) {
	switch strings.ToLower(backend) {
	case "miniaudio":
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to open miniaudio devices: %w", err)
		}
		return client, nil
	case "portaudio":
		client, err := portaudio.NewClient(portaudio.DefaultBufferSize)
		if err != nil {
			return nil, fmt.Errorf("failed to open portaudio devices: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}

// newLanguageModel returns the client for provider and the model its prompts
// should use.
func newLanguageModel(provider, model string) (orchestration.StreamingLLM, string, error) {
	switch strings.ToLower(provider) {
	case "ollama":
		opts := []ollama.ClientOption{}
		if ollamaURL != "" {
			opts = append(opts, ollama.WithURL(ollamaURL))
		}
		return ollama.NewClient(opts...), modelOrDefault(model, ollama.DefaultModel), nil
	case "groq":
		client, err := groq.NewClient()
		if err != nil {
			return nil, "", fmt.Errorf("failed to create groq client: %w", err)
		}
		return client, modelOrDefault(model, groq.DefaultModel), nil
	case "openai":
		client, err := openai.NewClient()
		if err != nil {
			return nil, "", fmt.Errorf("failed to create openai client: %w", err)
		}
		return client, modelOrDefault(model, openai.DefaultModel), nil
	default:
		return nil, "", fmt.Errorf("unknown language model provider %q", provider)
	}
}

func modelOrDefault(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}

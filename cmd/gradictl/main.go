// Command gradictl drives the serial-attached mediation device end to
// end: open the bridge, wire up the selected ASR/LLM/TTS backends, and run
// the turn controller until interrupted.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gradi/mediation/pkg/asr"
	"github.com/gradi/mediation/pkg/journal"
	"github.com/gradi/mediation/pkg/llm"
	"github.com/gradi/mediation/pkg/serialbridge"
	"github.com/gradi/mediation/pkg/tts"
	"github.com/gradi/mediation/pkg/turncontroller"
	"github.com/gradi/mediation/pkg/vad"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	sampleRate := envInt("AUDIO_SAMPLE_RATE", 16000)

	serialPort := os.Getenv("SERIAL_PORT")
	if serialPort == "" {
		log.Fatal("Error: SERIAL_PORT must be set.")
	}

	logPath := os.Getenv("JOURNAL_PATH")
	if logPath == "" {
		logPath = "gradictl-journal.jsonl"
	}

	stdlog := journal.NewStdLogger(os.Getenv("LOG_LEVEL"))

	asrProviderName := os.Getenv("ASR_PROVIDER")
	if asrProviderName == "" {
		asrProviderName = "groq"
	}
	llmProviderName := os.Getenv("LLM_PROVIDER")
	if llmProviderName == "" {
		llmProviderName = "groq"
	}

	asrP := buildASR(asrProviderName, sampleRate)
	llmP := buildLLM(llmProviderName)
	ttsP := buildTTS()

	fmt.Printf("Configured: ASR=%s | LLM=%s | TTS=lokutor | sample_rate=%dHz\n", asrProviderName, llmProviderName, sampleRate)

	bridge, err := serialbridge.Open(serialPort, stdlog)
	if err != nil {
		log.Fatalf("Error: opening serial bridge: %v", err)
	}
	defer bridge.Close()

	vadCfg, err := vad.NewConfig(
		sampleRate,
		envInt("VAD_FRAME_MS", 20),
		envInt("VAD_AGGRESSIVENESS", 2),
		envInt("VAD_START_TRIGGER", 3),
		envInt("VAD_STOP_TRIGGER", 15),
		envInt("VAD_PREROLL_FRAMES", 5),
	)
	if err != nil {
		log.Fatalf("Error: building VAD config: %v", err)
	}
	classifier := buildClassifier(vadCfg)
	vadStream := vad.NewStream(vadCfg, classifier)

	jrnl, err := journal.Open(logPath, stdlog)
	if err != nil {
		log.Fatalf("Error: opening journal sink: %v", err)
	}
	defer jrnl.Close()

	cfg := turncontroller.DefaultConfig(sampleRate, vadCfg, logPath)
	cfg.PlaybackGainDB = envFloat("PLAYBACK_GAIN_DB", cfg.PlaybackGainDB)
	cfg.TTSExpectedSampleRate = envInt("TTS_EXPECTED_SAMPLE_RATE", cfg.TTSExpectedSampleRate)
	cfg.MaxCaptureSeconds = envFloat("MAX_CAPTURE_SECONDS", cfg.MaxCaptureSeconds)

	controller, err := turncontroller.New(bridge, vadStream, asrP, llmP, ttsP, jrnl, stdlog, cfg)
	if err != nil {
		log.Fatalf("Error: building turn controller: %v", err)
	}

	go func() {
		for event := range controller.Events() {
			fmt.Printf("[%s] turn=%s %v\n", event.State, event.TurnID, event.Metadata)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- controller.Run(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		fmt.Println("\nShutting down...")
		controller.Stop()
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			log.Fatalf("Error: controller stopped: %v", err)
		}
	}
}

func buildClassifier(vadCfg vad.Config) vad.Classifier {
	if os.Getenv("VAD_BACKEND") != "silero" {
		if v := os.Getenv("VAD_ENERGY_THRESHOLD"); v != "" {
			return vad.NewEnergyClassifier(envFloat("VAD_ENERGY_THRESHOLD", 0))
		}
		return vad.NewEnergyClassifierForAggressiveness(vadCfg.Aggressiveness)
	}
	modelPath := os.Getenv("SILERO_MODEL_PATH")
	if modelPath == "" {
		log.Fatal("Error: SILERO_MODEL_PATH must be set for VAD_BACKEND=silero")
	}
	classifier, err := vad.NewSileroClassifier(modelPath, float32(envFloat("VAD_ENERGY_THRESHOLD", 0.5)))
	if err != nil {
		log.Fatalf("Error: loading silero classifier: %v", err)
	}
	return classifier
}

func buildASR(name string, sampleRate int) asr.Provider {
	switch name {
	case "whispercpp":
		binary := os.Getenv("WHISPERCPP_BINARY")
		model := os.Getenv("WHISPERCPP_MODEL")
		if binary == "" || model == "" {
			log.Fatal("Error: WHISPERCPP_BINARY and WHISPERCPP_MODEL must be set for whispercpp ASR")
		}
		return asr.NewWhisperCPP(binary, model)
	case "vosk":
		model := os.Getenv("VOSK_MODEL_PATH")
		if model == "" {
			log.Fatal("Error: VOSK_MODEL_PATH must be set for vosk ASR")
		}
		v, err := asr.NewVosk(model, sampleRate)
		if err != nil {
			log.Fatalf("Error: loading vosk model: %v", err)
		}
		return v
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai ASR")
		}
		return asr.NewHTTPClient("openai", "https://api.openai.com/v1/audio/transcriptions", key, envOr("OPENAI_ASR_MODEL", "whisper-1"))
	case "groq":
		fallthrough
	default:
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			log.Fatal("Error: GROQ_API_KEY must be set for groq ASR")
		}
		return asr.NewHTTPClient("groq", "https://api.groq.com/openai/v1/audio/transcriptions", key, envOr("GROQ_ASR_MODEL", "whisper-large-v3-turbo"))
	}
}

func buildLLM(name string) llm.Provider {
	template := os.Getenv("REWRITE_PROMPT_TEMPLATE")
	switch name {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai LLM")
		}
		return llm.NewOpenAI(key, envOr("OPENAI_LLM_MODEL", "gpt-4o-mini"), template)
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			log.Fatal("Error: ANTHROPIC_API_KEY must be set for anthropic LLM")
		}
		return llm.NewAnthropic(key, envOr("ANTHROPIC_LLM_MODEL", "claude-3-5-haiku-20241022"), template)
	case "google":
		key := os.Getenv("GOOGLE_API_KEY")
		if key == "" {
			log.Fatal("Error: GOOGLE_API_KEY must be set for google LLM")
		}
		return llm.NewGoogle(key, envOr("GOOGLE_LLM_MODEL", "gemini-1.5-flash"), template)
	case "groq":
		fallthrough
	default:
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			log.Fatal("Error: GROQ_API_KEY must be set for groq LLM")
		}
		return llm.NewGroq(key, envOr("GROQ_LLM_MODEL", "llama-3.3-70b-versatile"), template)
	}
}

func buildTTS() tts.Provider {
	key := os.Getenv("LOKUTOR_API_KEY")
	if key == "" {
		log.Fatal("Error: LOKUTOR_API_KEY must be set.")
	}
	voice := envOr("LOKUTOR_VOICE", "default")
	lang := envOr("LOKUTOR_LANGUAGE", "en")
	return tts.NewLokutor(key, voice, lang)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Error: %s must be an integer, got %q", key, v)
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("Error: %s must be a number, got %q", key, v)
	}
	return f
}

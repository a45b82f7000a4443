package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Lokutor streams synthesis over the vendor's websocket API. Adapted from
// the teacher's callback-based StreamSynthesize into the turn controller's
// Chunk sequence: binary frames become sequenced Chunks, a leading JSON
// text frame (if the server sends one before audio) supplies
// content-type/sample-rate headers, and "EOS" closes the stream with
// totals.
type Lokutor struct {
	apiKey string
	host   string
	scheme string // "wss" in production; tests override to "ws"
	voice  string
	lang   string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewLokutor builds a Lokutor TTS backend. voice/lang select the synthesis
// voice and language tag sent with every request.
func NewLokutor(apiKey, voice, lang string) *Lokutor {
	if voice == "" {
		voice = "F1"
	}
	if lang == "" {
		lang = "en"
	}
	return &Lokutor{apiKey: apiKey, host: "api.lokutor.com", scheme: "wss", voice: voice, lang: lang}
}

func (t *Lokutor) Name() string { return "lokutor" }

func (t *Lokutor) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("tts: lokutor dial: %w", err)
	}
	t.conn = conn
	return conn, nil
}

// StreamSynthesize implements Provider.
func (t *Lokutor) StreamSynthesize(ctx context.Context, text string, onChunk func(Chunk) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]any{
		"text":    text,
		"voice":   t.voice,
		"lang":    t.lang,
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "write failed")
		return fmt.Errorf("tts: send synthesis request: %w", err)
	}

	start := time.Now()
	seq := 0
	total := 0
	firstLatency := 0.0
	contentType := ""
	headers := map[string]string{}

	for {
		msgType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "read failed")
			return fmt.Errorf("tts: lokutor read: %w", err)
		}

		switch msgType {
		case websocket.MessageBinary:
			if seq == 0 {
				firstLatency = time.Since(start).Seconds()
			}
			total += len(payload)
			chunk := Chunk{
				Sequence:          seq,
				Data:              payload,
				FirstChunkLatency: firstLatency,
				ContentType:       contentType,
				Headers:           headers,
			}
			seq++
			if err := onChunk(chunk); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := strings.TrimSpace(string(payload))
			switch {
			case msg == "EOS":
				return onChunk(Chunk{
					Sequence:    seq,
					IsLast:      true,
					TotalBytes:  total,
					Elapsed:     time.Since(start).Seconds(),
					ContentType: contentType,
					Headers:     headers,
				})
			case strings.HasPrefix(msg, "ERR:"):
				return fmt.Errorf("tts: lokutor error: %s", msg)
			case strings.HasPrefix(msg, "{"):
				contentType, headers = parseMeta(msg)
			}
		}
	}
}

// parseMeta decodes an optional pre-audio JSON control frame carrying
// content-type/sample-rate metadata (e.g. {"content_type":"audio/pcm",
// "sample_rate":24000}).
func parseMeta(msg string) (contentType string, headers map[string]string) {
	var decoded struct {
		ContentType string `json:"content_type"`
		SampleRate  int    `json:"sample_rate"`
	}
	headers = map[string]string{}
	if err := json.Unmarshal([]byte(msg), &decoded); err != nil {
		return "", headers
	}
	if decoded.SampleRate > 0 {
		headers["x-audio-sample-rate"] = strconv.Itoa(decoded.SampleRate)
	}
	return decoded.ContentType, headers
}

// Close releases the underlying websocket connection, if any.
func (t *Lokutor) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}

var _ Provider = (*Lokutor)(nil)

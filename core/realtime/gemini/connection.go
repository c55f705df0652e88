package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/memoir-voice/core/realtime"
	"google.golang.org/genai"
)

type connection struct {
	session   *genai.Session
	mimeType  string
	remoteVAD bool

	// genai sessions do not serialize writes.
	writeMu      sync.Mutex
	activityOpen bool
	pendingText  []string

	closed    atomic.Bool
	closeOnce sync.Once
}

func newConnection(session *genai.Session, handshake realtime.Handshake) *connection {
	return &connection{
		session:   session,
		mimeType:  fmt.Sprintf("audio/pcm;rate=%d", handshake.Audio.SampleRate),
		remoteVAD: handshake.TurnDetection.Remote,
	}
}

// awaitSetup waits for the server to acknowledge the setup message, which
// is when a rejected key or model surfaces.
func (c *connection) awaitSetup(ctx context.Context) error {
	result := make(chan error, 1)
	go func() {
		message, err := c.session.Receive()
		switch {
		case err != nil:
			result <- classify(realtime.OperationConnect, err)
		case message.SetupComplete == nil:
			result <- realtime.NewFatalError(realtime.ProviderGemini, realtime.OperationConnect, errors.New("unexpected message before setup completed"))
		default:
			result <- nil
		}
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		_ = c.Close()
		return realtime.ClassifyError(realtime.ProviderGemini, realtime.OperationConnect, ctx.Err())
	}
}

func (c *connection) Send(ctx context.Context, fragment realtime.Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closed.Load() {
		return realtime.NewFatalError(realtime.ProviderGemini, realtime.OperationSend, realtime.ErrConnectionClosed)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	switch fragment.Kind {
	case realtime.FragmentAudioChunk:
		if len(fragment.Audio) == 0 {
			return nil
		}
		if err := c.startActivity(); err != nil {
			return err
		}
		return c.send(genai.LiveRealtimeInput{
			Audio: &genai.Blob{Data: fragment.Audio, MIMEType: c.mimeType},
		})

	case realtime.FragmentTranscriptDelta:
		c.pendingText = append(c.pendingText, fragment.Text)
		return nil

	case realtime.FragmentCommit:
		return c.commit()
	}

	return fmt.Errorf("cannot send %s fragment", fragment.Kind)
}

func (c *connection) startActivity() error {
	if c.remoteVAD || c.activityOpen {
		return nil
	}
	if err := c.send(genai.LiveRealtimeInput{ActivityStart: &genai.ActivityStart{}}); err != nil {
		return err
	}
	c.activityOpen = true
	return nil
}

func (c *connection) commit() error {
	if c.activityOpen {
		c.activityOpen = false
		if err := c.send(genai.LiveRealtimeInput{ActivityEnd: &genai.ActivityEnd{}}); err != nil {
			return err
		}
	}

	if len(c.pendingText) > 0 {
		text := strings.Join(c.pendingText, "")
		c.pendingText = nil
		err := c.session.SendClientContent(genai.LiveClientContentInput{
			Turns:        []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
			TurnComplete: genai.Ptr(true),
		})
		if err != nil {
			return classify(realtime.OperationSend, err)
		}
	}
	return nil
}

func (c *connection) send(input genai.LiveRealtimeInput) error {
	if err := c.session.SendRealtimeInput(input); err != nil {
		return classify(realtime.OperationSend, err)
	}
	return nil
}

func (c *connection) Receive() iter.Seq2[realtime.Fragment, error] {
	return func(yield func(realtime.Fragment, error) bool) {
		for {
			message, err := c.session.Receive()
			if err != nil {
				if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
					return
				}
				if isInBandError(err) {
					if !yield(realtime.NewErrorFragment("server_error", err.Error()), nil) {
						return
					}
					continue
				}
				yield(realtime.Fragment{}, classify(realtime.OperationReceive, err))
				return
			}

			for _, fragment := range translate(message) {
				if !yield(fragment, nil) {
					return
				}
			}
		}
	}
}

// Speak is not offered by the Live API outside of a turn.
func (c *connection) Speak(context.Context, string) ([]byte, error) {
	return nil, &realtime.CapabilityError{Provider: realtime.ProviderGemini, Operation: realtime.OperationSpeak}
}

func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.session.Close()
	})
	return err
}

func translate(message *genai.LiveServerMessage) []realtime.Fragment {
	if message.GoAway != nil {
		logger.Warn("server is going away", "time_left", message.GoAway.TimeLeft)
	}

	content := message.ServerContent
	if content == nil {
		return nil
	}

	var fragments []realtime.Fragment
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				fragments = append(fragments, realtime.NewAudioChunk(part.InlineData.Data))
			}
		}
	}
	if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
		fragments = append(fragments, realtime.NewTranscriptDelta(content.OutputTranscription.Text))
	}
	if content.Interrupted {
		fragments = append(fragments, realtime.NewErrorFragment("interrupted", "generation was interrupted"))
	}
	if content.TurnComplete {
		fragments = append(fragments, realtime.NewTurnComplete())
	}
	return fragments
}

// isInBandError reports errors genai returns for error messages read
// successfully off the socket.
func isInBandError(err error) bool {
	return strings.HasPrefix(err.Error(), "received error in response")
}

func classify(op string, err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
		// The Live API closes with a policy violation for invalid keys and
		// unknown models.
		return realtime.NewFatalError(realtime.ProviderGemini, op, err)
	}
	return realtime.ClassifyError(realtime.ProviderGemini, op, err)
}

package realtime

import "fmt"

type FragmentKind int

const (
	// FragmentAudioChunk carries raw PCM audio. Inbound it is synthesized
	// reply audio, outbound it is captured user audio.
	FragmentAudioChunk FragmentKind = iota + 1
	// FragmentTranscriptDelta carries text. Inbound it is a piece of the
	// reply transcript, outbound it is typed user input.
	FragmentTranscriptDelta
	// FragmentTurnComplete marks the end of the remote reply.
	FragmentTurnComplete
	// FragmentError reports that the remote failed the current turn.
	FragmentError
	// FragmentCommit is outbound only: the user input is complete and a
	// reply is requested.
	FragmentCommit
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentAudioChunk:
		return "audio_chunk"
	case FragmentTranscriptDelta:
		return "transcript_delta"
	case FragmentTurnComplete:
		return "turn_complete"
	case FragmentError:
		return "error"
	case FragmentCommit:
		return "commit"
	}
	return fmt.Sprintf("fragment(%d)", int(k))
}

// Fragment is one provider independent unit of the realtime wire protocol.
type Fragment struct {
	Kind FragmentKind

	Audio []byte
	Text  string

	// Code and Reason are only set for FragmentError.
	Code   string
	Reason string
}

func NewAudioChunk(audio []byte) Fragment {
	return Fragment{Kind: FragmentAudioChunk, Audio: audio}
}

func NewTranscriptDelta(text string) Fragment {
	return Fragment{Kind: FragmentTranscriptDelta, Text: text}
}

func NewTurnComplete() Fragment {
	return Fragment{Kind: FragmentTurnComplete}
}

func NewErrorFragment(code, reason string) Fragment {
	return Fragment{Kind: FragmentError, Code: code, Reason: reason}
}

func NewCommit() Fragment {
	return Fragment{Kind: FragmentCommit}
}

// Err returns the remote failure carried by an error fragment, nil otherwise.
func (f Fragment) Err() error {
	if f.Kind != FragmentError {
		return nil
	}
	return &RemoteError{Code: f.Code, Reason: f.Reason}
}

func (f Fragment) String() string {
	switch f.Kind {
	case FragmentAudioChunk:
		return fmt.Sprintf("%s(%d bytes)", f.Kind, len(f.Audio))
	case FragmentTranscriptDelta:
		return fmt.Sprintf("%s(%q)", f.Kind, f.Text)
	case FragmentError:
		return fmt.Sprintf("%s(%s: %s)", f.Kind, f.Code, f.Reason)
	}
	return f.Kind.String()
}

package commands

import (
	"errors"
	"fmt"

	"github.com/koscakluka/memoir-voice/core/config"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

// describeError prefixes err with the reason a user can act on.
func describeError(err error) error {
	var (
		configErr     *config.ConfigError
		capabilityErr *realtime.CapabilityError
	)
	if errors.As(err, &configErr) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if errors.As(err, &capabilityErr) {
		return fmt.Errorf("%s cannot %s: %w", capabilityErr.Provider, capabilityErr.Operation, err)
	}
	if transportErr, ok := realtime.AsTransportError(err); ok {
		switch {
		case transportErr.IsAuth():
			return fmt.Errorf("%s rejected the credentials: %w", transportErr.Provider, err)
		case transportErr.Retryable:
			return fmt.Errorf("network failure talking to %s: %w", transportErr.Provider, err)
		}
		return fmt.Errorf("%s refused the session: %w", transportErr.Provider, err)
	}
	return err
}

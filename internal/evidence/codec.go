package evidence

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is bumped whenever the Evidence shape changes incompatibly.
// Stored cases keep the version they were written with, so old evidence
// remains readable after the shape evolves.
const SchemaVersion = 1

type envelope struct {
	SchemaVersion int      `json:"schema_version"`
	Evidence      Evidence `json:"evidence"`
}

// Encode serializes evidence inside the versioned envelope.
func Encode(ev Evidence) (string, error) {
	raw, err := json.Marshal(envelope{SchemaVersion: SchemaVersion, Evidence: ev})
	if err != nil {
		return "", fmt.Errorf("failed to encode evidence: %w", err)
	}
	return string(raw), nil
}

// Decode parses a stored evidence blob. Unknown schema versions are rejected;
// added fields within a known version are tolerated.
func Decode(raw string) (Evidence, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Evidence{}, fmt.Errorf("failed to decode evidence: %w", err)
	}
	if env.SchemaVersion != SchemaVersion {
		return Evidence{}, fmt.Errorf("unsupported evidence schema version %d", env.SchemaVersion)
	}
	return env.Evidence, nil
}

package credentials

import "errors"

// ErrConfigCorrupt is returned when the stored broker configuration cannot
// be decrypted or parsed. The caller must treat the configuration as absent
// and ask for reconfiguration; partially decrypted values are never exposed.
var ErrConfigCorrupt = errors.New("credentials: stored configuration cannot be decrypted")

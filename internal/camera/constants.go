package camera

import "time"

// GrabTimeout bounds a single ffmpeg invocation.
const GrabTimeout = 5 * time.Second

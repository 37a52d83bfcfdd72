package room

import "github.com/wfunc/zobbo/models"

// Stats is the metrics surface a room reports into. It is defined here
// to keep the room package free of any monitoring dependency.
type Stats interface {
	GameStarted()
	GameCompleted()
}

// Recorder archives finished matches. Implementations must be safe to
// call from a goroutine; a nil Recorder disables archiving.
type Recorder interface {
	RecordMatch(rec *models.MatchRecord)
}

package notify

import (
	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"catnip/video"
)

// Notification is sent to all NotifyListeners registered with Notifier.
type Notification struct {
	TimeString string
	Identifier string
}

type NotifyListener interface {
	Notify(n *Notification) error
}

// Notifier forwards motion event starts to external notification
// channels, honoring quiet hours. It implements video.Listener.
type Notifier struct {
	Listeners []NotifyListener

	// Quiet hours: events starting outside [HoursStart, HoursEnd) are not
	// announced.
	HoursStart int
	HoursEnd   int
}

func (n *Notifier) EventStarted(e *video.Event) {
	ts := e.Start

	if ts.Hour() < n.HoursStart || ts.Hour() >= n.HoursEnd {
		log.Infof("Would send notification, but currently in quiet hours.")
		return
	}

	notification := &Notification{
		TimeString: ts.Format("3:04 PM"),
		Identifier: e.ID,
	}
	log.Infof("Sending notification: %v", spew.Sdump(notification))
	for _, l := range n.Listeners {
		go func(l NotifyListener) {
			if err := l.Notify(notification); err != nil {
				log.Errorf("Failed to send notification: %v", err)
			}
		}(l)
	}
}

func (n *Notifier) EventEnded(e *video.Event) {}

func (n *Notifier) RecordingReady(r *video.Recording) {}

package serve

import (
	"encoding/json"
	"net/http"

	"catnip/store"
)

const defaultEventLimit = 50

type EventEntry struct {
	ID          string
	Timestamp   int64
	EndedAt     int64
	Frames      int
	VideoPath   string
	DurationSec int
}

type EventsResponse struct {
	Items []*EventEntry
	Count int
}

// EventServer serves the most recent motion events from the event store.
type EventServer struct {
	Store *store.Store
}

func (s *EventServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Store.Recent(defaultEventLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := &EventsResponse{}
	for _, rec := range recs {
		resp.Items = append(resp.Items, &EventEntry{
			ID:          rec.Identifier,
			Timestamp:   rec.StartedAt.Unix(),
			EndedAt:     rec.EndedAt.Unix(),
			Frames:      rec.Frames,
			VideoPath:   rec.VideoPath,
			DurationSec: rec.DurationSec,
		})
	}
	resp.Count = len(resp.Items)

	js, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
